package storage

import (
	"context"

	"github.com/mosajjal/awslogs-provision/pkg/models"
)

// StorageBackend defines the interface for fallback storage of run reports
type StorageBackend interface {
	// Store saves events when HEC delivery fails
	Store(ctx context.Context, events []*models.Event) error

	// Close cleans up resources
	Close() error
}

// StorageConfig holds common storage configuration
type StorageConfig struct {
	URL       string // https://BUCKET.s3.REGION.amazonaws.com/PREFIX/ or s3://BUCKET/PREFIX
	AccessKey string
	SecretKey string
}

// HasStaticCredentials reports whether the backend should use its own
// credentials rather than the instance role
func (c StorageConfig) HasStaticCredentials() bool {
	return c.AccessKey != "" && c.SecretKey != ""
}
