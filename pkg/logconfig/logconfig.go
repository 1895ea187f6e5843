// Package logconfig loads the per-component log group spec files and merges
// them into the set of log groups to reconcile.
//
// Each component drops a <component>.logs.yaml file into the scripts
// directory, mapping a logical key to a log group spec:
//
//	apache-error:
//	  log_file: /var/log/apache2/error.log
//	  retention: 14
//	  metric_filters:
//	    - name: apache-errors
//	      pattern: Error
//	      transformations:
//	        - metric_name: ApacheErrors
//	          metric_namespace: WEBHOP
//	          metric_value: "1"
//	          default_value: 0
//
// Files are merged in filename order. A key defined in more than one file
// takes the value from the file that sorts last.
package logconfig

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mosajjal/awslogs-provision/pkg/models"
)

// SpecSuffix is the suffix of log group spec files
const SpecSuffix = ".logs.yaml"

// ErrInvalidSpec is returned when a log group spec is missing a required field
var ErrInvalidSpec = errors.New("invalid log group spec")

// Consolidate loads every spec file in dir and merges them
func Consolidate(dir string) (map[string]models.LogGroupSpec, error) {
	files, err := Discover(dir)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]models.LogGroupSpec)
	origin := make(map[string]string)
	for _, file := range files {
		specs, err := LoadFile(file)
		if err != nil {
			return nil, err
		}
		for key, spec := range specs {
			if prev, ok := origin[key]; ok {
				slog.Warn("log group key defined twice, later file wins",
					"key", key, "previous", prev, "file", file)
			}
			if err := Validate(key, spec); err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			merged[key] = spec
			origin[key] = file
		}
	}

	slog.Info("consolidated log group configuration", "files", len(files), "log_groups", len(merged))
	return merged, nil
}

// Discover lists the spec files in dir sorted by name
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), SpecSuffix) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// LoadFile parses a single spec file. An empty file yields an empty mapping.
func LoadFile(path string) (map[string]models.LogGroupSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	specs := make(map[string]models.LogGroupSpec)
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&specs); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return specs, nil
}

// Validate checks the fields the reconciler depends on
func Validate(key string, spec models.LogGroupSpec) error {
	if spec.LogFile == "" {
		return fmt.Errorf("%w: %s: log_file is required", ErrInvalidSpec, key)
	}
	if spec.Retention <= 0 {
		return fmt.Errorf("%w: %s: retention must be a positive number of days", ErrInvalidSpec, key)
	}
	for i, mf := range spec.MetricFilters {
		if mf.Name == "" {
			return fmt.Errorf("%w: %s: metric_filters[%d]: name is required", ErrInvalidSpec, key, i)
		}
		for j, tr := range mf.Transformations {
			if tr.MetricName == "" || tr.MetricNamespace == "" || tr.MetricValue == "" {
				return fmt.Errorf("%w: %s: metric_filters[%d].transformations[%d]: metric_name, metric_namespace and metric_value are required",
					ErrInvalidSpec, key, i, j)
			}
		}
	}
	if sf := spec.SubscriptionFilter; sf != nil {
		if sf.Name == "" || sf.DestinationARN == "" {
			return fmt.Errorf("%w: %s: subscription_filter needs name and destination_arn", ErrInvalidSpec, key)
		}
	}
	return nil
}
