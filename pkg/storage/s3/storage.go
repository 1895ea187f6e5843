package s3

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/mosajjal/awslogs-provision/pkg/models"
	"github.com/mosajjal/awslogs-provision/pkg/storage"
)

// PutObjectAPI is the subset of the S3 client used by Storage
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Storage implements S3 backend for storage
type Storage struct {
	client    PutObjectAPI
	bucket    string
	keyPrefix string
	now       func() time.Time
}

// NewStorage creates a new S3 storage backend
func NewStorage(cfg storage.StorageConfig, awsCfg aws.Config) (*Storage, error) {
	bucket, keyPrefix, err := ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	if cfg.HasStaticCredentials() {
		awsCfg = awsCfg.Copy()
		awsCfg.Credentials = aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		)
	}

	return &Storage{
		client:    s3.NewFromConfig(awsCfg),
		bucket:    bucket,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}, nil
}

// ParseURL extracts the bucket and key prefix from an S3 URL. It accepts
// s3://bucket/prefix, virtual-hosted-style and path-style HTTPS URLs.
func ParseURL(raw string) (bucket, keyPrefix string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid S3 URL: %w", err)
	}

	switch {
	case u.Scheme == "s3":
		bucket = u.Host
		keyPrefix = strings.Trim(u.Path, "/")
	case strings.Contains(u.Host, ".s3.") || strings.Contains(u.Host, ".s3-"):
		// Virtual-hosted-style URL: bucket.s3.region.amazonaws.com
		bucket = strings.Split(u.Host, ".")[0]
		keyPrefix = strings.Trim(u.Path, "/")
	default:
		// Path-style URL: s3.region.amazonaws.com/bucket
		pathParts := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)
		bucket = pathParts[0]
		if len(pathParts) > 1 {
			keyPrefix = pathParts[1]
		}
	}

	if bucket == "" {
		return "", "", fmt.Errorf("could not parse bucket name from URL: %s", raw)
	}
	return bucket, keyPrefix, nil
}

// Store saves events to S3 as gzipped, newline separated JSON
func (s *Storage) Store(ctx context.Context, events []*models.Event) error {
	var buf bytes.Buffer
	gz, _ := gzip.NewWriterLevel(&buf, gzip.BestCompression)

	for _, event := range events {
		var eventData []byte
		switch v := event.Event.(type) {
		case string:
			eventData = []byte(v)
		case []byte:
			eventData = v
		default:
			var err error
			eventData, err = json.Marshal(v)
			if err != nil {
				slog.Warn("failed to marshal event", "error", err)
				continue
			}
		}

		if _, err := gz.Write(append(eventData, '\n')); err != nil {
			return fmt.Errorf("failed to compress events: %w", err)
		}
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to compress events: %w", err)
	}

	key := s.objectKey(s.now().UTC(), uuid.New().String())
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(s.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(buf.Bytes()),
		ContentType:     aws.String("application/json"),
		ContentEncoding: aws.String("gzip"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}

	slog.Info("stored events in S3", "count", len(events), "bucket", s.bucket, "key", key)
	return nil
}

// objectKey partitions objects by hour: PREFIX/YYYY/MM/DD/HH/TIMESTAMP-ID.json.gz
func (s *Storage) objectKey(now time.Time, id string) string {
	key := fmt.Sprintf("%d/%02d/%02d/%02d/%s-%s.json.gz",
		now.Year(),
		now.Month(),
		now.Day(),
		now.Hour(),
		now.Format("2006-01-02T15:04:05.000Z"),
		id,
	)
	if s.keyPrefix == "" {
		return key
	}
	return s.keyPrefix + "/" + key
}

// Close cleans up resources
func (s *Storage) Close() error {
	return nil
}
