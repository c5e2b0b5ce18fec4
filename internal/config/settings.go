package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/roach88/driftless/internal/service"
)

// Defaults for Settings.
const (
	DefaultStage       = "dev"
	DefaultRegion      = "us-east-1"
	DefaultConcurrency = 5
	DefaultDBPath      = ".driftless/ledger.db"
)

// EnvPrefix prefixes every environment fallback, e.g. DRIFTLESS_STAGE.
const EnvPrefix = "DRIFTLESS_"

// Settings are per-invocation deploy options.
type Settings struct {
	Stage       string
	Region      string
	Bucket      string
	DBPath      string
	Force       bool
	ClockSkew   time.Duration
	Concurrency int
}

// DefaultSettings returns Settings with defaults overlaid by DRIFTLESS_*
// environment variables from lookup. A nil lookup uses os.LookupEnv. Stage
// and region stay empty unless set so the service file can provide them;
// Apply falls back to DefaultStage and DefaultRegion.
func DefaultSettings(lookup func(string) (string, bool)) (Settings, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	s := Settings{
		DBPath:      DefaultDBPath,
		Concurrency: DefaultConcurrency,
	}

	if v, ok := lookup(EnvPrefix + "STAGE"); ok && v != "" {
		s.Stage = v
	}
	if v, ok := lookup(EnvPrefix + "REGION"); ok && v != "" {
		s.Region = v
	}
	if v, ok := lookup(EnvPrefix + "BUCKET"); ok {
		s.Bucket = v
	}
	if v, ok := lookup(EnvPrefix + "DB"); ok && v != "" {
		s.DBPath = v
	}
	if v, ok := lookup(EnvPrefix + "FORCE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return s, fmt.Errorf("%sFORCE: %w", EnvPrefix, err)
		}
		s.Force = b
	}
	if v, ok := lookup(EnvPrefix + "CLOCK_SKEW"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return s, fmt.Errorf("%sCLOCK_SKEW: %w", EnvPrefix, err)
		}
		s.ClockSkew = d
	}
	if v, ok := lookup(EnvPrefix + "CONCURRENCY"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return s, fmt.Errorf("%sCONCURRENCY: %w", EnvPrefix, err)
		}
		s.Concurrency = n
	}
	return s, nil
}

// Validate rejects settings no deploy can run with.
func (s Settings) Validate() error {
	if s.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", s.Concurrency)
	}
	if s.ClockSkew < 0 {
		return fmt.Errorf("clock skew must not be negative, got %s", s.ClockSkew)
	}
	return nil
}

// Apply overlays the settings onto values the service file left empty.
// Stage and region given explicitly always win.
func (s Settings) Apply(svc *service.Service) {
	if s.Stage != "" {
		svc.Provider.Stage = s.Stage
	}
	if svc.Provider.Stage == "" {
		svc.Provider.Stage = DefaultStage
	}
	if s.Region != "" {
		svc.Provider.Region = s.Region
	}
	if svc.Provider.Region == "" {
		svc.Provider.Region = DefaultRegion
	}
	if s.Bucket != "" {
		svc.Provider.DeploymentBucket = s.Bucket
	}
}
