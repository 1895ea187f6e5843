package models

// LogGroupSpec describes how one log group should be configured in CloudWatch Logs
type LogGroupSpec struct {
	LogFile            string                  `yaml:"log_file"`
	Retention          int32                   `yaml:"retention"` // days
	MetricFilters      []MetricFilterSpec      `yaml:"metric_filters"`
	SubscriptionFilter *SubscriptionFilterSpec `yaml:"subscription_filter"`
}

// MetricFilterSpec describes a metric filter applied to a log group
type MetricFilterSpec struct {
	Name            string                 `yaml:"name"`
	Pattern         string                 `yaml:"pattern"`
	Transformations []MetricTransformation `yaml:"transformations"`
}

// MetricTransformation maps matching log events to a CloudWatch metric
type MetricTransformation struct {
	MetricName      string   `yaml:"metric_name"`
	MetricNamespace string   `yaml:"metric_namespace"`
	MetricValue     string   `yaml:"metric_value"`
	DefaultValue    *float64 `yaml:"default_value"`
	Unit            string   `yaml:"unit"`
}

// SubscriptionFilterSpec forwards a log group to another destination.
// Name, DestinationARN and RoleARN are templates rendered against the
// instance identity before use.
type SubscriptionFilterSpec struct {
	Name           string `yaml:"name"`
	Pattern        string `yaml:"pattern"`
	DestinationARN string `yaml:"destination_arn"`
	RoleARN        string `yaml:"role_arn"`
}
