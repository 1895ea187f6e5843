package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"

	"github.com/mosajjal/awslogs-provision/pkg/logconfig"
	"github.com/mosajjal/awslogs-provision/pkg/logging"
	"github.com/mosajjal/awslogs-provision/pkg/models"
	"github.com/mosajjal/awslogs-provision/pkg/provider"
	awsprovider "github.com/mosajjal/awslogs-provision/pkg/provider/aws"
	"github.com/mosajjal/awslogs-provision/pkg/provider/static"
	"github.com/mosajjal/awslogs-provision/pkg/reconcile"
	"github.com/mosajjal/awslogs-provision/pkg/render"
)

// Exit codes
const (
	exitOK                  = 0
	exitFailure             = 1
	exitUsage               = 2
	exitMetadataUnavailable = 3
)

type Args struct {
	TemplateDir string `arg:"positional,required" placeholder:"CONFIG_TEMPLATE_FOLDER" help:"directory holding the *.conf.j2 agent config templates"`
	ScriptsDir  string `arg:"positional,required" placeholder:"SCRIPTS_DIR" help:"directory holding the main agent template and the *.logs.yaml log group specs"`

	MainTemplate string `arg:"--main-template,env:AWSLOGS_MAIN_TEMPLATE" default:"awslogs.conf.j2" help:"main agent template, relative to SCRIPTS_DIR"`
	TargetDir    string `arg:"--target-dir,env:AWSLOGS_TARGET_DIR" default:"/var/awslogs/etc/config" help:"where rendered *.conf files are written"`
	MainConfig   string `arg:"--main-config,env:AWSLOGS_MAIN_CONFIG" default:"/var/awslogs/etc/awslogs.conf" help:"where the rendered main template is written"`
	Region       string `arg:"--region,env:AWS_REGION" help:"override the region reported by instance metadata"`
	InstanceFile string `arg:"--instance-file,env:AWSLOGS_INSTANCE_FILE" help:"read instance identity and tags from this YAML file instead of EC2 metadata"`
	DryRun       bool   `arg:"--dry-run,env:AWSLOGS_DRY_RUN" help:"render into a temporary directory, kept for inspection, and log CloudWatch Logs calls without making them"`
	LogLevel     string `arg:"--log-level,env:AWSLOGS_LOG_LEVEL" default:"info"`
	LogFormat    string `arg:"--log-format,env:AWSLOGS_LOG_FORMAT" default:"text" help:"text or json"`

	HECEndpoints     []string      `arg:"--hec-endpoint,env:HEC_ENDPOINTS" help:"Splunk HEC endpoints for the run report"`
	HECToken         string        `arg:"--hec-token,env:HEC_TOKEN" help:"HEC token, or a Secrets Manager ARN holding it"`
	HECIndex         string        `arg:"--hec-index,env:HEC_INDEX" default:"main"`
	HECSource        string        `arg:"--hec-source,env:HEC_SOURCE" default:"awslogs-provision"`
	HECSourcetype    string        `arg:"--hec-sourcetype,env:HEC_SOURCETYPE" default:"awslogs:provision"`
	HECTLSSkipVerify bool          `arg:"--hec-tls-skip-verify,env:HEC_TLS_SKIP_VERIFY"`
	HECProxy         string        `arg:"--hec-proxy,env:HEC_PROXY"`
	HECChannelID     string        `arg:"--hec-channel-id,env:HEC_CHANNEL_ID" help:"HEC channel UUID, generated when empty or invalid"`
	HECTimeout       time.Duration `arg:"--hec-timeout,env:HEC_TIMEOUT" default:"5s"`

	ReportS3URL       string `arg:"--report-s3-url,env:S3_URL" help:"example: https://YOURBUCKET.s3.ap-southeast-2.amazonaws.com/YOURFOLDER/"`
	S3AccessKeyID     string `arg:"--s3-access-key-id,env:S3_ACCESS_KEY_ID"`
	S3AccessKeySecret string `arg:"--s3-access-key-secret,env:S3_ACCESS_KEY_SECRET"`
}

func (Args) Description() string {
	return "Renders awslogs agent configuration and configures the matching CloudWatch Logs groups for this instance."
}

func main() {
	var args Args
	p, err := arg.NewParser(arg.Config{}, &args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUsage)
	}
	if err := p.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, arg.ErrHelp) {
			p.WriteHelp(os.Stdout)
			os.Exit(exitOK)
		}
		p.WriteUsage(os.Stderr)
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitUsage)
	}

	logging.Init(os.Stderr, args.LogFormat, logging.ParseLevel(args.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := exitOK
	if _, err := run(ctx, args); err != nil {
		slog.Error("provisioning failed", "error", err)
		code = exitCode(err)
	}
	stop()
	os.Exit(code)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, provider.ErrMetadataUnavailable):
		return exitMetadataUnavailable
	default:
		return exitFailure
	}
}

// run provisions the instance and returns the run report, which is also
// shipped to HEC or S3 when configured
func run(ctx context.Context, args Args) (report *runReport, err error) {
	report = newReport(args.DryRun)

	awsCfg, err := loadAWSConfig(ctx, args.Region)
	if err != nil {
		report.finish(err)
		return report, err
	}
	defer func() {
		report.finish(err)
		sendReport(ctx, awsCfg, args, report.Report)
	}()

	mp := metadataProvider(args, awsCfg)
	slog.Info("getting instance metadata", "provider", mp.Name())
	ictx, err := mp.InstanceContext(ctx)
	if err != nil {
		return report, err
	}
	if args.Region != "" {
		ictx.Region = args.Region
	}
	if awsCfg.Region == "" {
		awsCfg.Region = ictx.Region
	}
	report.setInstance(ictx)

	vars, err := models.VarsFromTags(ictx.Tags)
	if err != nil {
		return report, err
	}
	report.Env, report.Brand = vars.Env, vars.Brand

	renderer, scratchDir, err := newRenderer(args)
	if err != nil {
		return report, err
	}
	report.ScratchDir = scratchDir
	written, err := renderer.Render(args.TemplateDir, filepath.Join(args.ScriptsDir, args.MainTemplate), vars.Context())
	report.Rendered = written
	if err != nil {
		return report, err
	}

	groups, err := logconfig.Consolidate(args.ScriptsDir)
	if err != nil {
		return report, err
	}

	var api reconcile.LogsAPI
	dryRun := &reconcile.DryRunAPI{}
	if args.DryRun {
		api = dryRun
	} else {
		api = cloudwatchlogs.NewFromConfig(awsCfg, func(o *cloudwatchlogs.Options) {
			o.Region = ictx.Region
		})
	}
	results, err := reconcile.NewReconciler(api).Reconcile(ctx, groups, ictx, vars)
	report.LogGroups = results
	report.Calls = dryRun.Calls
	if err != nil {
		return report, err
	}

	slog.Info("provisioning complete", "rendered", len(written), "log_groups", len(results))
	return report, nil
}

func loadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("unable to load AWS config: %w", err)
	}
	return cfg, nil
}

func metadataProvider(args Args, awsCfg aws.Config) provider.MetadataProvider {
	if args.InstanceFile != "" {
		return static.NewProvider(args.InstanceFile)
	}
	return awsprovider.NewProvider(awsCfg)
}

// newRenderer writes into a scratch directory on dry runs so the live agent
// configuration is left alone. The directory is returned and kept for
// inspection.
func newRenderer(args Args) (*render.Renderer, string, error) {
	cfg := render.Config{TargetDir: args.TargetDir, MainTarget: args.MainConfig}
	if !args.DryRun {
		return render.NewRenderer(cfg), "", nil
	}
	dir, err := os.MkdirTemp("", "awslogs-provision-")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create dry run directory: %w", err)
	}
	slog.Info("dry run: rendering into scratch directory", "dir", dir)
	cfg.TargetDir = filepath.Join(dir, "config")
	cfg.MainTarget = filepath.Join(dir, filepath.Base(args.MainConfig))
	return render.NewRenderer(cfg), dir, nil
}
