package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/google/uuid"
	"github.com/opencontainers/go-digest"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/driftless/internal/canon"
	"github.com/roach88/driftless/internal/cfn"
	"github.com/roach88/driftless/internal/deploy"
	"github.com/roach88/driftless/internal/logsub"
	"github.com/roach88/driftless/internal/naming"
	"github.com/roach88/driftless/internal/provider/awsprov"
	"github.com/roach88/driftless/internal/service"
	"github.com/roach88/driftless/internal/store"
	"github.com/roach88/driftless/internal/template"
	"github.com/roach88/driftless/internal/version"
)

const (
	contentTypeJSON = "application/json"
	contentTypeZip  = "application/zip"

	decisionSkip    = "skip"
	decisionProceed = "proceed"
)

// ObjectStore lists, reads and writes deployment objects.
type ObjectStore interface {
	deploy.ObjectLister
	deploy.ObjectStater
	Put(ctx context.Context, bucket, key string, data []byte, contentType, contentHash string) error
}

// LogClient reads and deletes log subscription filters.
type LogClient interface {
	logsub.FilterSource
	logsub.Deleter
}

// StackClient reads and applies stacks.
type StackClient interface {
	DeploymentBucket(ctx context.Context, stackName string) (string, error)
	Apply(ctx context.Context, stackName string, src awsprov.TemplateSource, tags map[string]string) (awsprov.ApplyResult, error)
}

// AccountReader returns the caller's account.
type AccountReader interface {
	Account(ctx context.Context) (awsprov.Account, error)
}

// Ledger records deploy outcomes. Write failures are logged, never fatal.
type Ledger interface {
	WriteDeploy(ctx context.Context, d store.Deploy) error
	WriteFunctionVersions(ctx context.Context, versions []store.FunctionVersion) error
	WriteFilterDeletions(ctx context.Context, deletions []store.FilterDeletion) error
	LastFunctionVersions(ctx context.Context, stack string) (map[string]store.FunctionVersion, error)
}

// Deps are the collaborators of a Pipeline. Ledger is optional.
type Deps struct {
	Objects   ObjectStore
	Functions deploy.FunctionReader
	Logs      LogClient
	Stacks    StackClient
	Accounts  AccountReader
	Ledger    Ledger
}

// Options tune one run.
type Options struct {
	Force             bool
	ClockSkew         time.Duration
	Concurrency       int
	EnforceHashUpdate bool
}

func (o Options) concurrency() int {
	if o.Concurrency > 0 {
		return o.Concurrency
	}
	return deploy.DefaultConcurrency
}

// Pipeline deploys services.
type Pipeline struct {
	deps    Deps
	clock   clock.Clock
	logger  *zap.Logger
	metrics *Metrics
	checker *deploy.Checker
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock sets the clock deploy folders and ledger records are stamped with.
func WithClock(c clock.Clock) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics sets the counters updated by each run.
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) {
		if m != nil {
			p.metrics = m
		}
	}
}

// New returns a Pipeline. Without WithMetrics counters are kept but never
// registered.
func New(deps Deps, opts ...Option) *Pipeline {
	p := &Pipeline{
		deps:   deps,
		clock:  clock.NewClock(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = NewMetrics(nil)
	}
	p.checker = deploy.NewChecker(p.logger)
	return p
}

// Report is the outcome of Deploy or Check.
type Report struct {
	DeployID     uuid.UUID           `json:"deploy_id"`
	Stack        string              `json:"stack"`
	Bucket       string              `json:"bucket,omitempty"`
	Directory    string              `json:"directory,omitempty"`
	Decision     deploy.Decision     `json:"decision"`
	TemplateHash string              `json:"template_hash"`
	Versions     []template.Version  `json:"versions"`
	Filters      logsub.Result       `json:"filters"`
	Applied      awsprov.ApplyResult `json:"applied,omitempty"`
}

// prepared is a compiled deploy that has not touched the provider yet.
type prepared struct {
	compiled  *template.Compiled
	directory string
	files     map[string]file
	local     deploy.LocalSet
	hash      string
	now       time.Time
}

type file struct {
	data        []byte
	contentType string
	hash        string
}

// Deploy evaluates svc against its last deployment and, when something
// changed, reconciles log subscription filters, uploads the bundle and
// applies the stack. A stack without a configured bucket that does not
// exist yet is created with only its deployment bucket first.
func (p *Pipeline) Deploy(ctx context.Context, svc *service.Service, bundle *Bundle, opts Options) (*Report, error) {
	stack := svc.StackName()
	bucket, found, err := p.bucket(ctx, svc)
	if err != nil {
		return nil, err
	}
	if !found {
		if bucket, err = p.createCore(ctx, svc); err != nil {
			return nil, err
		}
	}

	prep, err := p.prepare(ctx, svc, bundle, opts)
	if err != nil {
		return nil, err
	}
	report := &Report{
		DeployID:     store.NewDeployID(),
		Stack:        stack,
		Bucket:       bucket,
		Directory:    prep.directory,
		TemplateHash: prep.hash,
		Versions:     prep.compiled.Versions,
	}

	report.Decision, err = p.checker.Evaluate(ctx, prep.local, p.remote(svc, bucket), p.evalOptions(prep, opts))
	if err != nil {
		return nil, err
	}
	p.recordDecision(ctx, report, prep.now)
	if report.Decision.Skip {
		return report, nil
	}

	// Stale filters go first: the update would otherwise add filters to
	// groups already at the ceiling.
	if report.Filters, err = p.reconcile(ctx, svc, report.DeployID, opts); err != nil {
		return report, err
	}

	if err := p.upload(ctx, bucket, prep, opts); err != nil {
		return report, err
	}

	src := awsprov.TemplateSource{URL: templateURL(bucket, svc.Provider.Region, path.Join(prep.directory, TemplateFileName))}
	report.Applied, err = p.deps.Stacks.Apply(ctx, stack, src, svc.Provider.Tags)
	if err != nil {
		return report, err
	}
	p.logger.Info("stack applied",
		zap.String("stack", stack),
		zap.String("result", string(report.Applied)),
		zap.String("directory", prep.directory))

	p.recordVersions(ctx, stack, prep)
	return report, nil
}

// Check evaluates deployment necessity only. Nothing is created, uploaded
// or deleted, and nothing is written to the ledger.
func (p *Pipeline) Check(ctx context.Context, svc *service.Service, bundle *Bundle, opts Options) (*Report, error) {
	bucket, found, err := p.bucket(ctx, svc)
	if err != nil {
		return nil, err
	}
	prep, err := p.prepare(ctx, svc, bundle, opts)
	if err != nil {
		return nil, err
	}
	report := &Report{
		Stack:        svc.StackName(),
		Bucket:       bucket,
		TemplateHash: prep.hash,
		Versions:     prep.compiled.Versions,
	}
	if !found && !opts.Force {
		report.Decision = deploy.Decision{Reason: deploy.ReasonFirstDeploy}
		return report, nil
	}
	report.Decision, err = p.checker.Evaluate(ctx, prep.local, p.remote(svc, bucket), p.evalOptions(prep, opts))
	if err != nil {
		return nil, err
	}
	p.metrics.Decisions.WithLabelValues(decisionLabel(report.Decision)).Inc()
	return report, nil
}

// VersionHashes compiles svc and returns every function's version hash
// compared to the last one recorded.
func (p *Pipeline) VersionHashes(ctx context.Context, svc *service.Service, bundle *Bundle, opts Options) ([]template.Version, error) {
	prep, err := p.prepare(ctx, svc, bundle, opts)
	if err != nil {
		return nil, err
	}
	return prep.compiled.Versions, nil
}

// PlanLogs computes the subscription filter deletions a deploy would issue.
func (p *Pipeline) PlanLogs(ctx context.Context, svc *service.Service) (logsub.Plan, error) {
	owner, err := p.owner(ctx, svc)
	if err != nil {
		return logsub.Plan{}, err
	}
	return logsub.NewReconciler(p.deps.Logs, p.deps.Logs, logsub.WithLogger(p.logger)).Plan(ctx, svc, owner)
}

// bucket returns the deployment bucket and whether it exists. A missing
// stack reports false.
func (p *Pipeline) bucket(ctx context.Context, svc *service.Service) (string, bool, error) {
	if svc.Provider.DeploymentBucket != "" {
		return svc.Provider.DeploymentBucket, true, nil
	}
	name, err := p.deps.Stacks.DeploymentBucket(ctx, svc.StackName())
	if errors.Is(err, awsprov.ErrStackNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return name, true, nil
}

func (p *Pipeline) createCore(ctx context.Context, svc *service.Service) (string, error) {
	stack := svc.StackName()
	body, err := canon.MarshalContent(template.Core())
	if err != nil {
		return "", fmt.Errorf("core template: %w", err)
	}
	p.logger.Info("creating stack", zap.String("stack", stack))
	if _, err := p.deps.Stacks.Apply(ctx, stack, awsprov.TemplateSource{Body: string(body)}, svc.Provider.Tags); err != nil {
		return "", err
	}
	bucket, err := p.deps.Stacks.DeploymentBucket(ctx, stack)
	if err != nil {
		return "", fmt.Errorf("deployment bucket of new stack %s: %w", stack, err)
	}
	return bucket, nil
}

func (p *Pipeline) prepare(ctx context.Context, svc *service.Service, bundle *Bundle, opts Options) (*prepared, error) {
	now := p.clock.Now()
	dir := path.Join(naming.DeploymentPrefix(svc.Name, svc.Provider.Stage), naming.DeploymentDirectory(now))

	compiled, err := template.Compile(svc, template.Input{
		Directory:  dir,
		Identities: bundle.Identities(),
		Previous:   p.previousVersions(ctx, svc.StackName()),
		Options:    []version.Option{version.EnforceHashUpdate(opts.EnforceHashUpdate)},
	})
	if err != nil {
		return nil, err
	}

	templateHash, err := canon.TemplateHash(compiled.Template)
	if err != nil {
		return nil, err
	}
	templateData, err := canon.MarshalContent(compiled.Template)
	if err != nil {
		return nil, fmt.Errorf("marshal template: %w", err)
	}
	stateData, err := canon.MarshalContent(stateOf(svc, compiled))
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}

	files := map[string]file{
		TemplateFileName: {data: templateData, contentType: contentTypeJSON, hash: templateHash},
		StateFileName:    {data: stateData, contentType: contentTypeJSON, hash: canon.BytesSHA256(stateData)},
	}
	for _, name := range bundle.Names() {
		if _, ok := files[name]; ok {
			return nil, fmt.Errorf("artifact %s collides with a generated file", name)
		}
		data := bundle.Files[name]
		files[name] = file{data: data, contentType: contentTypeZip, hash: canon.BytesSHA256(data)}
	}

	local := deploy.LocalSet{Functions: make(map[string]string, len(bundle.Functions))}
	for _, name := range sortedNames(files) {
		f := files[name]
		size := int64(len(f.data))
		local.Artifacts = append(local.Artifacts, deploy.ArtifactDescriptor{
			Key:         path.Join(dir, name),
			ContentHash: f.hash,
			Size:        &size,
		})
	}
	for key, name := range bundle.Functions {
		local.Functions[svc.DeployedFunctionName(key)] = name
	}

	return &prepared{
		compiled:  compiled,
		directory: dir,
		files:     files,
		local:     local,
		hash:      templateHash,
		now:       now,
	}, nil
}

func (p *Pipeline) remote(svc *service.Service, bucket string) deploy.RemoteSource {
	return deploy.RemoteSource{
		Bucket:    bucket,
		Prefix:    naming.DeploymentPrefix(svc.Name, svc.Provider.Stage),
		Stack:     svc.StackName(),
		Lister:    p.deps.Objects,
		Stater:    p.deps.Objects,
		Functions: p.deps.Functions,
	}
}

func (p *Pipeline) evalOptions(prep *prepared, opts Options) deploy.Options {
	return deploy.Options{
		Force:       opts.Force,
		Now:         prep.now,
		ClockSkew:   opts.ClockSkew,
		Concurrency: opts.concurrency(),
	}
}

func (p *Pipeline) owner(ctx context.Context, svc *service.Service) (logsub.Owner, error) {
	acct, err := p.deps.Accounts.Account(ctx)
	if err != nil {
		return logsub.Owner{}, err
	}
	return logsub.OwnerForService(svc, acct.ID, nil), nil
}

// reconcile deletes stale filters. A limit violation fails before any
// deletion; failed deletions are recorded and then fail the deploy.
func (p *Pipeline) reconcile(ctx context.Context, svc *service.Service, deployID uuid.UUID, opts Options) (logsub.Result, error) {
	owner, err := p.owner(ctx, svc)
	if err != nil {
		return logsub.Result{}, err
	}
	r := logsub.NewReconciler(p.deps.Logs, p.deps.Logs,
		logsub.WithWorkers(opts.concurrency()),
		logsub.WithLogger(p.logger))
	_, result, err := r.Run(ctx, svc, owner)

	p.metrics.FilterDeletions.WithLabelValues("deleted").Add(float64(len(result.Deleted)))
	p.metrics.FilterDeletions.WithLabelValues("failed").Add(float64(len(result.Failed)))
	p.recordDeletions(ctx, deployID, result)
	return result, err
}

func (p *Pipeline) upload(ctx context.Context, bucket string, prep *prepared, opts Options) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.concurrency())
	for _, name := range sortedNames(prep.files) {
		f := prep.files[name]
		key := path.Join(prep.directory, name)
		g.Go(func() error {
			if err := p.deps.Objects.Put(ctx, bucket, key, f.data, f.contentType, f.hash); err != nil {
				return fmt.Errorf("upload %s: %w", key, err)
			}
			p.logger.Debug("uploaded artifact", zap.String("key", key), zap.Int("size", len(f.data)))
			return nil
		})
	}
	return g.Wait()
}

func (p *Pipeline) previousVersions(ctx context.Context, stack string) map[string]digest.Digest {
	if p.deps.Ledger == nil {
		return nil
	}
	last, err := p.deps.Ledger.LastFunctionVersions(ctx, stack)
	if err != nil {
		p.logger.Warn("read last function versions", zap.String("stack", stack), zap.Error(err))
		return nil
	}
	out := make(map[string]digest.Digest, len(last))
	for fn, v := range last {
		out[fn] = digest.Digest(v.Hash)
	}
	return out
}

func (p *Pipeline) recordDecision(ctx context.Context, report *Report, now time.Time) {
	label := decisionLabel(report.Decision)
	p.metrics.Decisions.WithLabelValues(label).Inc()
	if report.Decision.Skip {
		p.logger.Info("service unchanged, skipping deployment",
			zap.String("stack", report.Stack),
			zap.String("directory", report.Decision.Directory))
	} else {
		p.logger.Info("deploying",
			zap.String("stack", report.Stack),
			zap.String("reason", string(report.Decision.Reason)),
			zap.String("detail", report.Decision.Detail))
	}
	if p.deps.Ledger == nil {
		return
	}
	err := p.deps.Ledger.WriteDeploy(ctx, store.Deploy{
		ID:           report.DeployID,
		Stack:        report.Stack,
		StartedAt:    now,
		Decision:     label,
		Reason:       string(report.Decision.Reason),
		TemplateHash: report.TemplateHash,
	})
	if err != nil {
		p.logger.Warn("record deploy", zap.Stringer("deploy_id", report.DeployID), zap.Error(err))
	}
}

func (p *Pipeline) recordDeletions(ctx context.Context, deployID uuid.UUID, result logsub.Result) {
	if p.deps.Ledger == nil || len(result.Deleted)+len(result.Failed) == 0 {
		return
	}
	rows := make([]store.FilterDeletion, 0, len(result.Deleted)+len(result.Failed))
	for _, d := range result.Deleted {
		rows = append(rows, store.FilterDeletion{DeployID: deployID, LogGroup: d.LogGroupName, FilterName: d.FilterName})
	}
	for _, f := range result.Failed {
		rows = append(rows, store.FilterDeletion{
			DeployID:   deployID,
			LogGroup:   f.LogGroupName,
			FilterName: f.FilterName,
			Error:      f.Err.Error(),
		})
	}
	if err := p.deps.Ledger.WriteFilterDeletions(ctx, rows); err != nil {
		p.logger.Warn("record filter deletions", zap.Stringer("deploy_id", deployID), zap.Error(err))
	}
}

func (p *Pipeline) recordVersions(ctx context.Context, stack string, prep *prepared) {
	if p.deps.Ledger == nil {
		return
	}
	rows := make([]store.FunctionVersion, 0, len(prep.compiled.Versions))
	for _, v := range prep.compiled.Versions {
		rows = append(rows, store.FunctionVersion{
			Stack:      stack,
			Function:   v.Function,
			Hash:       v.Current.String(),
			LogicalID:  v.LogicalID,
			RecordedAt: prep.now,
		})
	}
	if err := p.deps.Ledger.WriteFunctionVersions(ctx, rows); err != nil {
		p.logger.Warn("record function versions", zap.String("stack", stack), zap.Error(err))
	}
}

func decisionLabel(d deploy.Decision) string {
	if d.Skip {
		return decisionSkip
	}
	return decisionProceed
}

// templateURL is the virtual-hosted URL of an uploaded template.
func templateURL(bucket, region, key string) string {
	host := "s3." + region + ".amazonaws.com"
	if cfn.PartitionForRegion(region) == "aws-cn" {
		host += ".cn"
	}
	return "https://" + bucket + "." + host + "/" + key
}
