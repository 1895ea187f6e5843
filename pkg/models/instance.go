package models

import (
	"errors"
	"fmt"
)

// Tag keys read from the instance to build TemplateVars
const (
	TagEnvironment = "environment"
	TagBrand       = "brand"
	TagComponent   = "component"
)

// ErrMissingTag is returned when a tag needed for template variables is absent
var ErrMissingTag = errors.New("required instance tag missing")

// InstanceContext holds the identity and tags of the instance being provisioned.
// It is built once at startup and never modified afterwards.
type InstanceContext struct {
	AccountID     string            `yaml:"account_id" json:"account_id"`
	InstanceID    string            `yaml:"instance_id" json:"instance_id"`
	Region        string            `yaml:"region" json:"region"`
	ReservationID string            `yaml:"reservation_id" json:"reservation_id"`
	Tags          map[string]string `yaml:"tags" json:"tags,omitempty"`
}

// TemplateVars are the variables substituted into agent config templates
type TemplateVars struct {
	Env   string
	Brand string
}

// VarsFromTags derives TemplateVars from instance tags.
//
// The brand comes from the "brand" tag. Instances that carry no brand tag
// fall back to their "component" tag, which some fleets use instead.
func VarsFromTags(tags map[string]string) (TemplateVars, error) {
	env := tags[TagEnvironment]
	if env == "" {
		return TemplateVars{}, fmt.Errorf("%w: %s", ErrMissingTag, TagEnvironment)
	}
	brand := tags[TagBrand]
	if brand == "" {
		brand = tags[TagComponent]
	}
	if brand == "" {
		return TemplateVars{}, fmt.Errorf("%w: %s (or %s)", ErrMissingTag, TagBrand, TagComponent)
	}
	return TemplateVars{Env: env, Brand: brand}, nil
}

// Prefix returns the "{env}-{brand}-" prefix used for remote resource names
func (v TemplateVars) Prefix() string {
	return v.Env + "-" + v.Brand + "-"
}

// Context returns the variables keyed by the names used in templates
func (v TemplateVars) Context() map[string]any {
	return map[string]any{
		"env":   v.Env,
		"brand": v.Brand,
	}
}
