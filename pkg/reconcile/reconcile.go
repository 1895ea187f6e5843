package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/smithy-go"

	"github.com/mosajjal/awslogs-provision/pkg/models"
	"github.com/mosajjal/awslogs-provision/pkg/render"
)

// LogsAPI is the subset of the CloudWatch Logs client used by Reconciler
type LogsAPI interface {
	PutRetentionPolicy(ctx context.Context, params *cloudwatchlogs.PutRetentionPolicyInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutRetentionPolicyOutput, error)
	CreateLogGroup(ctx context.Context, params *cloudwatchlogs.CreateLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error)
	PutMetricFilter(ctx context.Context, params *cloudwatchlogs.PutMetricFilterInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutMetricFilterOutput, error)
	PutSubscriptionFilter(ctx context.Context, params *cloudwatchlogs.PutSubscriptionFilterInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutSubscriptionFilterOutput, error)
}

// Reconciler applies log group specs to CloudWatch Logs
type Reconciler struct {
	api LogsAPI
}

// NewReconciler creates a new Reconciler
func NewReconciler(api LogsAPI) *Reconciler {
	return &Reconciler{api: api}
}

// Reconcile configures every log group in groups, in key order. It stops at
// the first error; groups already configured stay configured. The results
// for all groups handled so far are returned either way.
func (r *Reconciler) Reconcile(ctx context.Context, groups map[string]models.LogGroupSpec, ictx *models.InstanceContext, vars models.TemplateVars) ([]models.LogGroupResult, error) {
	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	subVars := SubscriptionVars(ictx, vars)
	results := make([]models.LogGroupResult, 0, len(keys))
	for _, key := range keys {
		res, err := r.reconcileGroup(ctx, key, groups[key], vars, subVars)
		results = append(results, res)
		if err != nil {
			return results, fmt.Errorf("log group %s: %w", key, err)
		}
	}
	return results, nil
}

// LogGroupName returns the remote name of a log group spec
func LogGroupName(spec models.LogGroupSpec, vars models.TemplateVars) string {
	return vars.Prefix() + spec.LogFile
}

// SubscriptionVars builds the variables available to subscription filter templates
func SubscriptionVars(ictx *models.InstanceContext, vars models.TemplateVars) map[string]any {
	tags := ictx.Tags
	if tags == nil {
		tags = map[string]string{}
	}
	return map[string]any{
		"account_id":  ictx.AccountID,
		"region":      ictx.Region,
		"instance_id": ictx.InstanceID,
		"env":         vars.Env,
		"brand":       vars.Brand,
		"tags":        tags,
	}
}

func (r *Reconciler) reconcileGroup(ctx context.Context, key string, spec models.LogGroupSpec, vars models.TemplateVars, subVars map[string]any) (models.LogGroupResult, error) {
	name := LogGroupName(spec, vars)
	res := models.LogGroupResult{Key: key, LogGroup: name}

	created, err := r.ensureRetention(ctx, name, spec.Retention)
	res.Created = created
	if err != nil {
		return res, err
	}
	res.RetentionDays = spec.Retention

	for _, mf := range spec.MetricFilters {
		filterName := vars.Prefix() + mf.Name
		slog.Info("applying metric filter", "filter", filterName, "log_group", name)
		_, err := r.api.PutMetricFilter(ctx, &cloudwatchlogs.PutMetricFilterInput{
			LogGroupName:          aws.String(name),
			FilterName:            aws.String(filterName),
			FilterPattern:         aws.String(mf.Pattern),
			MetricTransformations: metricTransformations(mf.Transformations),
		})
		if err != nil {
			return res, fmt.Errorf("failed to put metric filter %s: %w", filterName, err)
		}
		res.MetricFilters = append(res.MetricFilters, filterName)
	}

	if sf := spec.SubscriptionFilter; sf != nil {
		filterName, err := r.putSubscriptionFilter(ctx, name, sf, subVars)
		if err != nil {
			return res, err
		}
		res.SubscriptionFilter = filterName
	}
	return res, nil
}

// ensureRetention sets the retention policy, creating the log group first
// when CloudWatch reports it missing. It reports whether the group was created.
func (r *Reconciler) ensureRetention(ctx context.Context, name string, days int32) (bool, error) {
	slog.Info("setting retention policy", "log_group", name, "days", days)
	err := r.putRetention(ctx, name, days)
	if err == nil {
		return false, nil
	}

	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return false, fmt.Errorf("failed to set retention (%s): %w", errorCode(err), err)
	}

	slog.Info("log group not found, creating it", "log_group", name)
	_, err = r.api.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(name),
	})
	var exists *types.ResourceAlreadyExistsException
	if err != nil && !errors.As(err, &exists) {
		return false, fmt.Errorf("failed to create log group: %w", err)
	}

	if err := r.putRetention(ctx, name, days); err != nil {
		return true, fmt.Errorf("failed to set retention after create: %w", err)
	}
	return true, nil
}

func (r *Reconciler) putRetention(ctx context.Context, name string, days int32) error {
	_, err := r.api.PutRetentionPolicy(ctx, &cloudwatchlogs.PutRetentionPolicyInput{
		LogGroupName:    aws.String(name),
		RetentionInDays: aws.Int32(days),
	})
	return err
}

func (r *Reconciler) putSubscriptionFilter(ctx context.Context, logGroup string, sf *models.SubscriptionFilterSpec, subVars map[string]any) (string, error) {
	filterName, err := render.String(sf.Name, subVars)
	if err != nil {
		return "", err
	}
	destination, err := render.String(sf.DestinationARN, subVars)
	if err != nil {
		return "", err
	}

	input := &cloudwatchlogs.PutSubscriptionFilterInput{
		LogGroupName:   aws.String(logGroup),
		FilterName:     aws.String(filterName),
		FilterPattern:  aws.String(sf.Pattern),
		DestinationArn: aws.String(destination),
		Distribution:   types.DistributionByLogStream,
	}
	if sf.RoleARN != "" {
		role, err := render.String(sf.RoleARN, subVars)
		if err != nil {
			return "", err
		}
		input.RoleArn = aws.String(role)
	}

	slog.Info("applying subscription filter", "filter", filterName, "log_group", logGroup, "destination", destination)
	if _, err := r.api.PutSubscriptionFilter(ctx, input); err != nil {
		return "", fmt.Errorf("failed to put subscription filter %s: %w", filterName, err)
	}
	return filterName, nil
}

// errorCode returns the API error code of err, or "unknown" for transport
// and client side failures
func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return "unknown"
}

func metricTransformations(in []models.MetricTransformation) []types.MetricTransformation {
	out := make([]types.MetricTransformation, 0, len(in))
	for _, t := range in {
		mt := types.MetricTransformation{
			MetricName:      aws.String(t.MetricName),
			MetricNamespace: aws.String(t.MetricNamespace),
			MetricValue:     aws.String(t.MetricValue),
			DefaultValue:    t.DefaultValue,
		}
		if t.Unit != "" {
			mt.Unit = types.StandardUnit(t.Unit)
		}
		out = append(out, mt)
	}
	return out
}
