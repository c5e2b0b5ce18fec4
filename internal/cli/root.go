package cli

import (
	"fmt"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/driftless/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Dir is the service directory; Config the service file, discovered in
	// Dir when empty.
	Dir    string
	Config string

	Stage       string
	Region      string
	Bucket      string
	DBPath      string
	Force       bool
	ClockSkew   time.Duration
	Concurrency int

	// Endpoint is the S3 endpoint; empty uses AWS.
	Endpoint string
	// MetricsFile receives the pipeline counters in the Prometheus text
	// format when set.
	MetricsFile string

	// Connect builds the cloud clients (for testing). If nil, defaults to
	// the AWS SDK and minio clients.
	Connect Connector
	// Clock overrides the pipeline clock (for testing).
	Clock clock.Clock
	// Logger overrides the logger built from --verbose and --format.
	Logger *zap.Logger
	// LookupEnv overrides os.LookupEnv for DRIFTLESS_* fallbacks.
	LookupEnv func(string) (string, bool)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the driftless CLI.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWithOptions(&RootOptions{})
}

// NewRootCommandWithOptions creates the root command around opts, so tests
// can inject a connector, clock and logger.
func NewRootCommandWithOptions(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "driftless",
		Short: "driftless - skip deploys that change nothing",
		Long: `Deploy serverless services to CloudFormation, skipping the deploy when
neither the code nor the compiled template changed since the last one, and
cleaning up log subscription filters the stack no longer wants.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVarP(&opts.Dir, "dir", "C", ".", "service directory")
	flags.StringVarP(&opts.Config, "config", "c", "", "service file (default: discovered in --dir)")
	flags.StringVarP(&opts.Stage, "stage", "s", "", "stage (env "+config.EnvPrefix+"STAGE, default "+config.DefaultStage+")")
	flags.StringVarP(&opts.Region, "region", "r", "", "region (env "+config.EnvPrefix+"REGION, default "+config.DefaultRegion+")")
	flags.StringVar(&opts.Bucket, "bucket", "", "deployment bucket (env "+config.EnvPrefix+"BUCKET)")
	flags.StringVar(&opts.DBPath, "db", config.DefaultDBPath, "path to the ledger database (env "+config.EnvPrefix+"DB)")
	flags.BoolVarP(&opts.Force, "force", "f", false, "deploy even when nothing changed (env "+config.EnvPrefix+"FORCE)")
	flags.DurationVar(&opts.ClockSkew, "clock-skew", 0, "tolerated clock difference to the provider (env "+config.EnvPrefix+"CLOCK_SKEW)")
	flags.IntVar(&opts.Concurrency, "concurrency", config.DefaultConcurrency, "parallel remote calls (env "+config.EnvPrefix+"CONCURRENCY)")
	flags.StringVar(&opts.Endpoint, "s3-endpoint", "", "S3 compatible endpoint")
	flags.StringVar(&opts.MetricsFile, "metrics-file", "", "write pipeline counters to this file")

	// Add subcommands
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewDeployCommand(opts))
	cmd.AddCommand(NewVersionHashCommand(opts))
	cmd.AddCommand(NewPlanLogsCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
