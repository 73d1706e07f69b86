// Package outcome consolidates the lifecycle events of a test framework run
// into one outcome per scenario and hands them to reporters.
package outcome

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/optimism/op-service/cliapp"

	"github.com/ethereum-optimism/infra/op-outcome/datasource"
	"github.com/ethereum-optimism/infra/op-outcome/discovery"
	"github.com/ethereum-optimism/infra/op-outcome/reporting"
	"github.com/ethereum-optimism/infra/op-outcome/service"
	"github.com/ethereum-optimism/infra/op-outcome/store"
	"github.com/ethereum-optimism/infra/op-outcome/types"
)

var _ cliapp.Lifecycle = (*Processor)(nil)

// Processor processes one host event log. It implements cliapp.Lifecycle.
type Processor struct {
	config    *Config
	version   string
	tracer    trace.Tracer
	session   *Session
	reporters reporting.MultiReporter
	service   *service.Service
	closers   []func() error
	startedAt time.Time

	mu       sync.Mutex
	outcomes []*types.TestOutcome

	running          atomic.Bool
	shutdownCallback func(error)
}

func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*Processor, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating outcome processor with config",
		"input", config.Input,
		"dialect", config.Dialect,
		"dataSources", config.DataSources,
		"sourceDir", config.SourceDir,
		"outputDir", config.OutputDir,
		"runID", config.RunID)

	p := &Processor{
		config:           config,
		version:          version,
		tracer:           otel.Tracer("outcome processor"),
		startedAt:        time.Now(),
		shutdownCallback: shutdownCallback,
	}

	data, skips, err := p.collaborators(ctx)
	if err != nil {
		return nil, err
	}
	p.session, err = NewSession(SessionConfig{
		Log:        config.Log,
		Dialect:    config.Dialect,
		DataSource: data,
		Skips:      skips,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	p.reporters = reporting.MultiReporter{
		reporting.NewConsoleReporter(config.Log, os.Stdout),
		reporting.NewYAMLReporter(config.Log, config.RunID),
		reporting.NewMetricsReporter(config.RunID),
	}
	if config.PostgresURI != "" {
		db, err := store.New(ctx, config.Log, config.PostgresURI)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, db.Close)
		if err := db.Migrate(ctx); err != nil {
			return nil, errors.Join(err, p.close())
		}
		p.reporters = append(p.reporters, store.NewSink(config.Log, db, config.RunID, p.startedAt))
	}

	var metricsAddr string
	if config.Metrics.Enabled {
		metricsAddr = net.JoinHostPort(config.Metrics.ListenAddr, strconv.Itoa(config.Metrics.ListenPort))
	}
	if config.HealthzAddr != "" || metricsAddr != "" {
		p.service = service.New(config.Log, p, config.HealthzAddr, metricsAddr)
	}

	config.Log.Info("outcome.New: created session and reporters", "reporters", len(p.reporters))
	return p, nil
}

// collaborators builds the data source and skip resolvers from the config
func (p *Processor) collaborators(ctx context.Context) (datasource.Resolver, discovery.SkipResolver, error) {
	var data datasource.Resolver = datasource.NoData{}
	var skips discovery.ChainResolver

	if p.config.DataSources != "" {
		manifest, err := datasource.NewManifestResolver(ctx, p.config.Log, p.config.DataSources)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load data sources: %w", err)
		}
		data = manifest
		if disabled := manifest.Disabled(); len(disabled) > 0 {
			skips = append(skips, discovery.NewStaticResolver(disabled...))
		}
	}
	if p.config.SourceDir != "" {
		source, err := discovery.NewSourceResolver(p.config.Log, p.config.SourceDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create source resolver: %w", err)
		}
		skips = append(skips, source)
	}

	if len(skips) == 0 {
		return data, discovery.NoneDisabled{}, nil
	}
	return data, skips, nil
}

// Start processes the input and reports the outcomes. It returns a
// TestFailureError when a scenario failed and a RuntimeError when the input
// could not be processed.
func (p *Processor) Start(ctx context.Context) error {
	p.running.Store(true)
	if p.service != nil {
		p.service.Start(ctx)
	}

	p.config.Log.Info("Processing host events", "run_id", p.config.RunID, "dialect", p.config.Dialect)
	outcomes, err := p.process(ctx)
	if err != nil {
		p.config.Log.Error("Runtime error processing host events", "error", err)
		return NewRuntimeError(err)
	}

	overall := overallResult(outcomes)
	p.config.Log.Info("Outcome processing completed", "run_id", p.config.RunID, "scenarios", len(outcomes), "result", overall)
	if overall.IsUnsuccessful() {
		return NewTestFailureError(describeFailures(outcomes))
	}

	go func() {
		p.shutdownCallback(nil)
	}()
	return nil
}

func (p *Processor) process(ctx context.Context) ([]*types.TestOutcome, error) {
	ctx, span := p.tracer.Start(ctx, fmt.Sprintf("plan %s", p.config.RunID), trace.WithAttributes(
		attribute.String("dialect", string(p.config.Dialect)),
		attribute.String("version", p.version),
	))
	defer span.End()

	input, err := p.openInput()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer input.Close()

	outcomes, err := p.session.Run(ctx, input)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("scenarios", len(outcomes)))

	p.mu.Lock()
	p.outcomes = outcomes
	p.mu.Unlock()

	if err := p.reporters.GenerateReportsFor(ctx, outcomes, p.config.OutputDir); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to report outcomes: %w", err)
	}
	return outcomes, nil
}

func (p *Processor) openInput() (io.ReadCloser, error) {
	if p.config.Input == StdinInput {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(p.config.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, nil
}

// Stop implements the cliapp.Lifecycle interface.
func (p *Processor) Stop(ctx context.Context) error {
	p.config.Log.Info("Stopping op-outcome")
	if !p.running.Swap(false) {
		p.config.Log.Debug("Processor already stopped, nothing to do")
		return nil
	}
	if p.service != nil {
		p.service.Shutdown()
	}
	return p.close()
}

func (p *Processor) close() error {
	var errs []error
	for _, c := range p.closers {
		errs = append(errs, c())
	}
	p.closers = nil
	return errors.Join(errs...)
}

// Stopped implements the cliapp.Lifecycle interface.
func (p *Processor) Stopped() bool {
	return !p.running.Load()
}

// Outcomes returns the consolidated outcomes once the input is processed
func (p *Processor) Outcomes() []*types.TestOutcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*types.TestOutcome(nil), p.outcomes...)
}

// Status implements service.StatusProvider
func (p *Processor) Status() service.Status {
	status := service.Status{
		RunID:     p.config.RunID,
		Finished:  p.session.Finished(),
		Summary:   p.session.Summary(),
		Scenarios: make([]service.ScenarioStatus, 0),
	}
	for _, o := range p.Outcomes() {
		status.Scenarios = append(status.Scenarios, service.ScenarioStatus{
			Name:     o.BaseName(),
			Title:    o.TitleWithQualifier(),
			TestCase: o.TestCase,
			Result:   o.Result(),
		})
	}
	return status
}

func overallResult(outcomes []*types.TestOutcome) types.Result {
	results := make([]types.Result, 0, len(outcomes))
	for _, o := range outcomes {
		results = append(results, o.Result())
	}
	return types.Rollup(results...)
}

// describeFailures lists the unsuccessful scenarios
func describeFailures(outcomes []*types.TestOutcome) string {
	var failed []string
	for _, o := range outcomes {
		if o.Result().IsUnsuccessful() {
			failed = append(failed, fmt.Sprintf("%s (%s)", o.TitleWithQualifier(), o.Result()))
		}
	}
	return fmt.Sprintf("%d of %d scenarios unsuccessful: %s", len(failed), len(outcomes), strings.Join(failed, ", "))
}
