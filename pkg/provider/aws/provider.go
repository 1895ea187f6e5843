package aws

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/ec2"

	"github.com/mosajjal/awslogs-provision/pkg/models"
	"github.com/mosajjal/awslogs-provision/pkg/provider"
)

// Metadata endpoint limits. The endpoint is local, so anything slower than
// this means we are not on an instance.
const (
	MetadataTimeout     = 2 * time.Second
	MetadataMaxAttempts = 3
)

// IMDSAPI is the subset of the instance metadata client used by Provider
type IMDSAPI interface {
	GetInstanceIdentityDocument(ctx context.Context, params *imds.GetInstanceIdentityDocumentInput, optFns ...func(*imds.Options)) (*imds.GetInstanceIdentityDocumentOutput, error)
	GetMetadata(ctx context.Context, params *imds.GetMetadataInput, optFns ...func(*imds.Options)) (*imds.GetMetadataOutput, error)
}

// EC2API is the subset of the EC2 client used by Provider
type EC2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
}

// Provider implements the MetadataProvider interface for EC2 instances
type Provider struct {
	imds      IMDSAPI
	newEC2API func(region string) EC2API
}

// NewProvider creates a new AWS provider. The EC2 client is created lazily
// for the region reported by the identity document.
func NewProvider(cfg awssdk.Config) *Provider {
	client := imds.NewFromConfig(cfg, func(o *imds.Options) {
		o.HTTPClient = awshttp.NewBuildableClient().WithTimeout(MetadataTimeout)
		o.Retryer = retry.NewStandard(func(so *retry.StandardOptions) {
			so.MaxAttempts = MetadataMaxAttempts
		})
	})
	return &Provider{
		imds: client,
		newEC2API: func(region string) EC2API {
			return ec2.NewFromConfig(cfg, func(o *ec2.Options) {
				o.Region = region
			})
		},
	}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "aws"
}

// InstanceContext reads the identity document and reservation id from IMDS,
// then looks up the instance tags through the EC2 API.
func (p *Provider) InstanceContext(ctx context.Context) (*models.InstanceContext, error) {
	slog.Info("finding instance identity and reservation id")

	doc, err := p.imds.GetInstanceIdentityDocument(ctx, &imds.GetInstanceIdentityDocumentInput{})
	if err != nil {
		return nil, fmt.Errorf("%w: identity document: %v", provider.ErrMetadataUnavailable, err)
	}
	if doc.AccountID == "" || doc.InstanceID == "" || doc.Region == "" {
		return nil, fmt.Errorf("%w: incomplete identity document", provider.ErrMetadataUnavailable)
	}

	reservationID, err := p.getMetadata(ctx, "reservation-id")
	if err != nil {
		return nil, fmt.Errorf("%w: reservation-id: %v", provider.ErrMetadataUnavailable, err)
	}

	ictx := &models.InstanceContext{
		AccountID:     doc.AccountID,
		InstanceID:    doc.InstanceID,
		Region:        doc.Region,
		ReservationID: reservationID,
	}
	slog.Info("found instance identity",
		"account_id", ictx.AccountID,
		"instance_id", ictx.InstanceID,
		"region", ictx.Region,
		"reservation_id", ictx.ReservationID)

	tags, err := p.instanceTags(ctx, ictx.Region, ictx.InstanceID)
	if err != nil {
		return nil, err
	}
	ictx.Tags = tags
	return ictx, nil
}

func (p *Provider) getMetadata(ctx context.Context, path string) (string, error) {
	out, err := p.imds.GetMetadata(ctx, &imds.GetMetadataInput{Path: path})
	if err != nil {
		return "", err
	}
	defer out.Content.Close()

	b, err := io.ReadAll(out.Content)
	if err != nil {
		return "", fmt.Errorf("failed to read metadata: %w", err)
	}
	value := strings.TrimSpace(string(b))
	if value == "" {
		return "", fmt.Errorf("empty response for %s", path)
	}
	return value, nil
}

// instanceTags describes the own instance, since tags are not part of the
// identity document.
func (p *Provider) instanceTags(ctx context.Context, region, instanceID string) (map[string]string, error) {
	out, err := p.newEC2API(region).DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe instance %s: %w", instanceID, err)
	}

	for _, reservation := range out.Reservations {
		for _, instance := range reservation.Instances {
			if awssdk.ToString(instance.InstanceId) != instanceID {
				continue
			}
			tags := make(map[string]string, len(instance.Tags))
			for _, tag := range instance.Tags {
				tags[awssdk.ToString(tag.Key)] = awssdk.ToString(tag.Value)
			}
			return tags, nil
		}
	}
	return nil, fmt.Errorf("%w: instance %s not returned by DescribeInstances", provider.ErrMetadataUnavailable, instanceID)
}
