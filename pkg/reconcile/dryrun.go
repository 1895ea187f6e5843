package reconcile

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
)

// DryRunAPI logs the calls the reconciler would make without sending them.
// Every log group is reported as existing.
type DryRunAPI struct {
	Calls []string
}

func (d *DryRunAPI) record(op string, attrs ...any) {
	d.Calls = append(d.Calls, op)
	slog.Info("dry run: skipping "+op, attrs...)
}

func (d *DryRunAPI) PutRetentionPolicy(ctx context.Context, params *cloudwatchlogs.PutRetentionPolicyInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutRetentionPolicyOutput, error) {
	d.record("PutRetentionPolicy", "log_group", aws.ToString(params.LogGroupName), "days", aws.ToInt32(params.RetentionInDays))
	return &cloudwatchlogs.PutRetentionPolicyOutput{}, nil
}

func (d *DryRunAPI) CreateLogGroup(ctx context.Context, params *cloudwatchlogs.CreateLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error) {
	d.record("CreateLogGroup", "log_group", aws.ToString(params.LogGroupName))
	return &cloudwatchlogs.CreateLogGroupOutput{}, nil
}

func (d *DryRunAPI) PutMetricFilter(ctx context.Context, params *cloudwatchlogs.PutMetricFilterInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutMetricFilterOutput, error) {
	d.record("PutMetricFilter", "log_group", aws.ToString(params.LogGroupName), "filter", aws.ToString(params.FilterName))
	return &cloudwatchlogs.PutMetricFilterOutput{}, nil
}

func (d *DryRunAPI) PutSubscriptionFilter(ctx context.Context, params *cloudwatchlogs.PutSubscriptionFilterInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutSubscriptionFilterOutput, error) {
	d.record("PutSubscriptionFilter", "log_group", aws.ToString(params.LogGroupName),
		"filter", aws.ToString(params.FilterName), "destination", aws.ToString(params.DestinationArn))
	return &cloudwatchlogs.PutSubscriptionFilterOutput{}, nil
}
