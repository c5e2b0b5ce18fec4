package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/driftless/internal/config"
	"github.com/roach88/driftless/internal/logging"
	"github.com/roach88/driftless/internal/pipeline"
	"github.com/roach88/driftless/internal/provider/awsprov"
	"github.com/roach88/driftless/internal/provider/s3store"
	"github.com/roach88/driftless/internal/service"
	"github.com/roach88/driftless/internal/store"
)

// Connector builds the cloud clients for a region. The returned Deps carry
// no ledger; the session adds it.
type Connector func(ctx context.Context, region string, opts *RootOptions) (pipeline.Deps, error)

// ConnectAWS builds the clients from the default AWS credential chain.
func ConnectAWS(ctx context.Context, region string, opts *RootOptions) (pipeline.Deps, error) {
	prov, err := awsprov.Load(ctx, region)
	if err != nil {
		return pipeline.Deps{}, err
	}
	objects, err := s3store.New(s3store.Config{Endpoint: opts.Endpoint, Region: region})
	if err != nil {
		return pipeline.Deps{}, err
	}
	return pipeline.Deps{
		Objects:   objects,
		Functions: prov.Functions,
		Logs:      prov.Logs,
		Stacks:    prov.Stacks,
		Accounts:  prov.Identity,
	}, nil
}

// session is everything a command runs with.
type session struct {
	settings  config.Settings
	service   *service.Service
	dir       string
	ledger    *store.Store
	pipeline  *pipeline.Pipeline
	registry  *prometheus.Registry
	logger    *zap.Logger
	formatter *OutputFormatter
}

// sessionNeeds selects what a command opens.
type sessionNeeds struct {
	cloud bool
}

// runSession resolves settings, loads the service, opens the ledger and,
// when needed, connects to the cloud, then runs fn. Failures are written
// through the formatter and returned as ExitError.
func runSession(cmd *cobra.Command, opts *RootOptions, needs sessionNeeds, fn func(ctx context.Context, s *session) error) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx, cmd, opts, needs, formatter)
	if err != nil {
		return formatter.Fail(err)
	}
	defer s.close(opts)

	if err := fn(ctx, s); err != nil {
		return formatter.Fail(err)
	}
	return nil
}

func openSession(ctx context.Context, cmd *cobra.Command, opts *RootOptions, needs sessionNeeds, formatter *OutputFormatter) (*session, error) {
	settings, err := resolveSettings(cmd, opts)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		if logger, err = logging.New(opts.Verbose, opts.Format); err != nil {
			return nil, err
		}
	}

	path := opts.Config
	if path == "" {
		if path, err = config.Discover(opts.Dir); err != nil {
			return nil, err
		}
	}
	svc, err := config.Load(path, settings)
	if err != nil {
		return nil, err
	}
	formatter.VerboseLog("Loaded service %s from %s (stage %s, region %s)",
		svc.Name, path, svc.Provider.Stage, svc.Provider.Region)

	dbPath := settings.DBPath
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(opts.Dir, dbPath)
	}
	ledger, err := store.Open(dbPath)
	if err != nil {
		return nil, &commandError{code: ErrCodeLedger, err: err}
	}

	s := &session{
		settings:  settings,
		service:   svc,
		dir:       filepath.Dir(path),
		ledger:    ledger,
		registry:  prometheus.NewRegistry(),
		logger:    logger,
		formatter: formatter,
	}

	// Commands that never reach the cloud run the pipeline with the ledger
	// alone.
	var deps pipeline.Deps
	if needs.cloud {
		connect := opts.Connect
		if connect == nil {
			connect = ConnectAWS
		}
		if deps, err = connect(ctx, svc.Provider.Region, opts); err != nil {
			ledger.Close()
			return nil, &commandError{code: ErrCodeConnect, err: err, exit: ExitFailure}
		}
	}
	deps.Ledger = ledger

	popts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(pipeline.NewMetrics(s.registry)),
	}
	if opts.Clock != nil {
		popts = append(popts, pipeline.WithClock(opts.Clock))
	}
	s.pipeline = pipeline.New(deps, popts...)
	return s, nil
}

func (s *session) close(opts *RootOptions) {
	if opts.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(opts.MetricsFile, s.registry); err != nil {
			s.logger.Warn("failed to write metrics file", zap.String("path", opts.MetricsFile), zap.Error(err))
		}
	}
	if err := s.ledger.Close(); err != nil {
		s.logger.Error("error closing ledger", zap.Error(err))
	}
	_ = s.logger.Sync()
}

func (s *session) options() pipeline.Options {
	return pipeline.Options{
		Force:       s.settings.Force,
		ClockSkew:   s.settings.ClockSkew,
		Concurrency: s.settings.Concurrency,
	}
}

func (s *session) bundle() (*pipeline.Bundle, error) {
	return pipeline.LoadBundle(s.service, s.dir)
}

// resolveSettings layers explicit flags over DRIFTLESS_* variables over
// defaults.
func resolveSettings(cmd *cobra.Command, opts *RootOptions) (config.Settings, error) {
	settings, err := config.DefaultSettings(opts.LookupEnv)
	if err != nil {
		return settings, &commandError{code: ErrCodeSettings, err: err}
	}

	changed := cmd.Flags().Changed
	if changed("stage") {
		settings.Stage = opts.Stage
	}
	if changed("region") {
		settings.Region = opts.Region
	}
	if changed("bucket") {
		settings.Bucket = opts.Bucket
	}
	if changed("db") {
		settings.DBPath = opts.DBPath
	}
	if changed("force") {
		settings.Force = opts.Force
	}
	if changed("clock-skew") {
		settings.ClockSkew = opts.ClockSkew
	}
	if changed("concurrency") {
		settings.Concurrency = opts.Concurrency
	}

	if err := settings.Validate(); err != nil {
		return settings, &commandError{code: ErrCodeSettings, err: err}
	}
	return settings, nil
}

func bool2word(b bool, yes, no string) string {
	if b {
		return yes
	}
	return no
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
