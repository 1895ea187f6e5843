package models

import "time"

// LogGroupResult records what the reconciler did to a single log group
type LogGroupResult struct {
	Key                string   `json:"key"`
	LogGroup           string   `json:"log_group"`
	Created            bool     `json:"created"`
	RetentionDays      int32    `json:"retention_days"`
	MetricFilters      []string `json:"metric_filters,omitempty"`
	SubscriptionFilter string   `json:"subscription_filter,omitempty"`
}

// Report summarises one provisioning run
type Report struct {
	RunID      string           `json:"run_id"`
	AccountID  string           `json:"account_id,omitempty"`
	InstanceID string           `json:"instance_id,omitempty"`
	Region     string           `json:"region,omitempty"`
	Env        string           `json:"env,omitempty"`
	Brand      string           `json:"brand,omitempty"`
	DryRun     bool             `json:"dry_run"`
	ScratchDir string           `json:"scratch_dir,omitempty"`
	Calls      []string         `json:"dry_run_calls,omitempty"`
	Rendered   []string         `json:"rendered,omitempty"`
	LogGroups  []LogGroupResult `json:"log_groups,omitempty"`
	Started    time.Time        `json:"started"`
	Finished   time.Time        `json:"finished"`
	Error      string           `json:"error,omitempty"`
}

// Event represents a report to be sent to Splunk HEC
type Event struct {
	Time       time.Time
	Host       string
	Source     string
	SourceType string
	Index      string
	Event      interface{}
}
