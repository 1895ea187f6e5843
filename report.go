package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/google/uuid"

	"github.com/mosajjal/awslogs-provision/pkg/hec"
	"github.com/mosajjal/awslogs-provision/pkg/models"
	"github.com/mosajjal/awslogs-provision/pkg/storage"
	s3storage "github.com/mosajjal/awslogs-provision/pkg/storage/s3"
)

const reportTimeout = 30 * time.Second

type runReport struct {
	*models.Report
}

func newReport(dryRun bool) *runReport {
	return &runReport{&models.Report{
		RunID:   uuid.New().String(),
		DryRun:  dryRun,
		Started: time.Now().UTC(),
	}}
}

func (r *runReport) setInstance(ictx *models.InstanceContext) {
	r.AccountID = ictx.AccountID
	r.InstanceID = ictx.InstanceID
	r.Region = ictx.Region
}

func (r *runReport) finish(err error) {
	r.Finished = time.Now().UTC()
	if err != nil {
		r.Error = err.Error()
	}
}

// sendReport ships the run report to HEC, or straight to S3 when only a
// bucket is configured. Failures are logged and never fail the run.
func sendReport(ctx context.Context, awsCfg aws.Config, args Args, report *models.Report) {
	if len(args.HECEndpoints) == 0 && args.ReportS3URL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancel()

	var failureStorage storage.StorageBackend
	if args.ReportS3URL != "" {
		s, err := s3storage.NewStorage(storage.StorageConfig{
			URL:       args.ReportS3URL,
			AccessKey: args.S3AccessKeyID,
			SecretKey: args.S3AccessKeySecret,
		}, awsCfg)
		if err != nil {
			slog.Warn("failed to set up report storage", "error", err)
		} else {
			failureStorage = s
		}
	}

	host := report.InstanceID
	if host == "" {
		host = "unknown"
	}
	events := []*models.Event{{
		Time:  report.Finished,
		Host:  host,
		Event: report,
	}}

	if len(args.HECEndpoints) == 0 {
		if failureStorage == nil {
			return
		}
		if err := failureStorage.Store(ctx, events); err != nil {
			slog.Warn("failed to store run report", "error", err)
		}
		return
	}

	token, err := resolveToken(ctx, awsCfg, args.HECToken)
	if err != nil {
		slog.Warn("failed to resolve HEC token", "error", err)
		return
	}
	client, err := hec.NewClient(hec.Config{
		Endpoints:     args.HECEndpoints,
		TLSSkipVerify: args.HECTLSSkipVerify,
		Proxy:         args.HECProxy,
		Token:         token,
		Index:         args.HECIndex,
		Source:        args.HECSource,
		SourceType:    args.HECSourcetype,
		Host:          host,
		ChannelID:     args.HECChannelID,
		Timeout:       args.HECTimeout,
	}, failureStorage)
	if err != nil {
		slog.Warn("failed to create HEC client", "error", err)
		return
	}
	defer client.Close()

	if err := client.SendEvents(ctx, events); err != nil {
		slog.Warn("failed to deliver run report", "run_id", report.RunID, "error", err)
	}
}

// secretGetter is the part of the Secrets Manager client used for tokens
type secretGetter interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// resolveToken returns token unchanged unless it is a Secrets Manager ARN,
// in which case the secret value is fetched
func resolveToken(ctx context.Context, awsCfg aws.Config, token string) (string, error) {
	if !isSecretARN(token) {
		return token, nil
	}
	return fetchSecret(ctx, secretsmanager.NewFromConfig(awsCfg), token)
}

func isSecretARN(s string) bool {
	return strings.HasPrefix(s, "arn:aws:secretsmanager:")
}

func fetchSecret(ctx context.Context, client secretGetter, arn string) (string, error) {
	slog.Info("fetching HEC token from AWS Secrets Manager")
	secret, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(arn),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get secret from Secrets Manager: %w", err)
	}
	if secret.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", arn)
	}
	return *secret.SecretString, nil
}
