package static

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mosajjal/awslogs-provision/pkg/models"
	"github.com/mosajjal/awslogs-provision/pkg/provider"
)

// Provider implements the MetadataProvider interface from a YAML file, for
// running outside of EC2
type Provider struct {
	path string
}

// NewProvider creates a new static provider reading from path
func NewProvider(path string) *Provider {
	return &Provider{path: path}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "static"
}

// InstanceContext loads the instance context from the file
func (p *Provider) InstanceContext(ctx context.Context) (*models.InstanceContext, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrMetadataUnavailable, err)
	}

	var ictx models.InstanceContext
	if err := yaml.Unmarshal(data, &ictx); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", provider.ErrMetadataUnavailable, p.path, err)
	}
	if ictx.InstanceID == "" || ictx.Region == "" {
		return nil, fmt.Errorf("%w: %s must set instance_id and region", provider.ErrMetadataUnavailable, p.path)
	}
	return &ictx, nil
}
