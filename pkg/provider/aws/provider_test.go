package aws

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/mosajjal/awslogs-provision/pkg/provider"
)

type fakeIMDS struct {
	doc         imds.InstanceIdentityDocument
	docErr      error
	reservation string
}

func (f *fakeIMDS) GetInstanceIdentityDocument(ctx context.Context, params *imds.GetInstanceIdentityDocumentInput, optFns ...func(*imds.Options)) (*imds.GetInstanceIdentityDocumentOutput, error) {
	if f.docErr != nil {
		return nil, f.docErr
	}
	return &imds.GetInstanceIdentityDocumentOutput{InstanceIdentityDocument: f.doc}, nil
}

func (f *fakeIMDS) GetMetadata(ctx context.Context, params *imds.GetMetadataInput, optFns ...func(*imds.Options)) (*imds.GetMetadataOutput, error) {
	if params.Path != "reservation-id" {
		return nil, errors.New("unexpected path " + params.Path)
	}
	return &imds.GetMetadataOutput{Content: io.NopCloser(strings.NewReader(f.reservation + "\n"))}, nil
}

type fakeEC2 struct {
	region    string
	instances []ec2types.Instance
}

func (f *fakeEC2) DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	return &ec2.DescribeInstancesOutput{
		Reservations: []ec2types.Reservation{{Instances: f.instances}},
	}, nil
}

func newTestProvider(md *fakeIMDS, api *fakeEC2) *Provider {
	return &Provider{
		imds: md,
		newEC2API: func(region string) EC2API {
			api.region = region
			return api
		},
	}
}

func TestProvider_Name(t *testing.T) {
	p := newTestProvider(&fakeIMDS{}, &fakeEC2{})
	if p.Name() != "aws" {
		t.Errorf("Expected provider name to be 'aws', got '%s'", p.Name())
	}
}

func TestProvider_InstanceContext(t *testing.T) {
	md := &fakeIMDS{
		doc: imds.InstanceIdentityDocument{
			AccountID:  "123456789012",
			InstanceID: "i-0abc",
			Region:     "ap-southeast-2",
		},
		reservation: "r-0def",
	}
	api := &fakeEC2{
		instances: []ec2types.Instance{
			{
				InstanceId: awssdk.String("i-0abc"),
				Tags: []ec2types.Tag{
					{Key: awssdk.String("environment"), Value: awssdk.String("prod")},
					{Key: awssdk.String("brand"), Value: awssdk.String("acme")},
				},
			},
		},
	}

	ictx, err := newTestProvider(md, api).InstanceContext(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if ictx.AccountID != "123456789012" {
		t.Errorf("Expected account id '123456789012', got '%s'", ictx.AccountID)
	}
	if ictx.ReservationID != "r-0def" {
		t.Errorf("Expected reservation id 'r-0def', got '%s'", ictx.ReservationID)
	}
	if api.region != "ap-southeast-2" {
		t.Errorf("Expected EC2 client for 'ap-southeast-2', got '%s'", api.region)
	}
	if ictx.Tags["environment"] != "prod" || ictx.Tags["brand"] != "acme" {
		t.Errorf("Unexpected tags: %v", ictx.Tags)
	}
}

func TestProvider_InstanceContext_Unavailable(t *testing.T) {
	tests := []struct {
		name string
		md   *fakeIMDS
		api  *fakeEC2
	}{
		{
			name: "endpoint unreachable",
			md:   &fakeIMDS{docErr: errors.New("dial tcp 169.254.169.254:80: i/o timeout")},
			api:  &fakeEC2{},
		},
		{
			name: "empty identity document",
			md:   &fakeIMDS{reservation: "r-0def"},
			api:  &fakeEC2{},
		},
		{
			name: "identity document without account id",
			md: &fakeIMDS{
				doc:         imds.InstanceIdentityDocument{InstanceID: "i-0abc", Region: "us-east-1"},
				reservation: "r-0def",
			},
			api: &fakeEC2{instances: []ec2types.Instance{{InstanceId: awssdk.String("i-0abc")}}},
		},
		{
			name: "instance not described",
			md: &fakeIMDS{
				doc:         imds.InstanceIdentityDocument{AccountID: "123456789012", InstanceID: "i-0abc", Region: "us-east-1"},
				reservation: "r-0def",
			},
			api: &fakeEC2{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestProvider(tt.md, tt.api).InstanceContext(context.Background())
			if !errors.Is(err, provider.ErrMetadataUnavailable) {
				t.Errorf("Expected ErrMetadataUnavailable, got %v", err)
			}
		})
	}
}
