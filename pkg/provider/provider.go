package provider

import (
	"context"
	"errors"

	"github.com/mosajjal/awslogs-provision/pkg/models"
)

// ErrMetadataUnavailable is returned when the instance identity cannot be discovered
var ErrMetadataUnavailable = errors.New("instance metadata unavailable")

// MetadataProvider defines the interface for discovering the instance being provisioned
type MetadataProvider interface {
	// Name returns the provider name (aws, static)
	Name() string

	// InstanceContext returns the identity and tags of the current instance
	InstanceContext(ctx context.Context) (*models.InstanceContext, error)
}
