package static

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mosajjal/awslogs-provision/pkg/provider"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "instance.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write instance file: %v", err)
	}
	return path
}

func TestProvider_InstanceContext(t *testing.T) {
	path := writeFile(t, `
account_id: "123456789012"
instance_id: i-0abc
region: eu-west-1
reservation_id: r-0def
tags:
  environment: prod
  brand: acme
`)

	p := NewProvider(path)
	if p.Name() != "static" {
		t.Errorf("Expected provider name to be 'static', got '%s'", p.Name())
	}

	ictx, err := p.InstanceContext(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if ictx.AccountID != "123456789012" {
		t.Errorf("Expected account id '123456789012', got '%s'", ictx.AccountID)
	}
	if ictx.Region != "eu-west-1" {
		t.Errorf("Expected region 'eu-west-1', got '%s'", ictx.Region)
	}
	if ictx.Tags["brand"] != "acme" {
		t.Errorf("Expected brand tag 'acme', got '%s'", ictx.Tags["brand"])
	}
}

func TestProvider_InstanceContext_Errors(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(t.TempDir(), "nope.yaml")},
		{"invalid yaml", writeFile(t, "tags: [unterminated")},
		{"no instance id", writeFile(t, "region: eu-west-1\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProvider(tt.path).InstanceContext(context.Background())
			if !errors.Is(err, provider.ErrMetadataUnavailable) {
				t.Errorf("Expected ErrMetadataUnavailable, got %v", err)
			}
		})
	}
}
