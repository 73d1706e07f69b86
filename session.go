package outcome

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-outcome/aggregator"
	"github.com/ethereum-optimism/infra/op-outcome/datasource"
	"github.com/ethereum-optimism/infra/op-outcome/discovery"
	"github.com/ethereum-optimism/infra/op-outcome/eventbus"
	"github.com/ethereum-optimism/infra/op-outcome/host"
	"github.com/ethereum-optimism/infra/op-outcome/host/gotest"
	"github.com/ethereum-optimism/infra/op-outcome/host/lifecycle"
	"github.com/ethereum-optimism/infra/op-outcome/listener"
	"github.com/ethereum-optimism/infra/op-outcome/recorder"
	"github.com/ethereum-optimism/infra/op-outcome/types"
)

type SessionConfig struct {
	Log        log.Logger
	Dialect    host.Dialect
	DataSource datasource.Resolver
	Skips      discovery.SkipResolver
}

// Session wires the event bus, step recorder, outcome listener and host
// adapter of one test plan. A session replays a single plan.
type Session struct {
	log      log.Logger
	dialect  host.Dialect
	recorder *recorder.StepRecorder
	listener *listener.OutcomeListener
	adapter  host.Adapter
}

func NewSession(cfg SessionConfig) (*Session, error) {
	if !cfg.Dialect.IsValid() {
		return nil, fmt.Errorf("unknown dialect %q", cfg.Dialect)
	}
	logger := cfg.Log
	if logger == nil {
		logger = log.New()
		logger.Error("No logger provided, using default")
	}

	clock := host.NewReplayClock()
	bus := eventbus.New(logger)
	rec := recorder.New(logger, recorder.WithClock(clock))
	bus.RegisterListener(rec)

	l, err := listener.New(listener.Config{
		Log:        logger,
		Bus:        bus,
		Recorder:   rec,
		Aggregator: aggregator.New(logger),
		DataSource: cfg.DataSource,
		Skips:      cfg.Skips,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create outcome listener: %w", err)
	}

	var adapter host.Adapter
	switch cfg.Dialect {
	case host.DialectGoTest:
		adapter = gotest.New(gotest.Config{
			Log:        logger,
			Clock:      clock,
			DataSource: cfg.DataSource,
			Skips:      cfg.Skips,
		})
	case host.DialectLifecycle:
		adapter = lifecycle.New(lifecycle.Config{Log: logger, Clock: clock})
	}

	return &Session{
		log:      logger.New("component", "session", "dialect", cfg.Dialect),
		dialect:  cfg.Dialect,
		recorder: rec,
		listener: l,
		adapter:  adapter,
	}, nil
}

// Run replays the host event log and returns the consolidated outcomes,
// one per scenario
func (s *Session) Run(ctx context.Context, r io.Reader) ([]*types.TestOutcome, error) {
	s.log.Info("Replaying host events")
	if err := s.adapter.Run(ctx, r, s.listener); err != nil {
		return nil, fmt.Errorf("failed to replay %s events: %w", s.dialect, err)
	}
	if !s.listener.Finished() {
		return nil, errors.New("test plan did not finish")
	}
	if name, ok := s.recorder.InFlight(); ok {
		s.log.Warn("Test left unfinished by the host", "test", name)
	}

	outcomes := s.listener.Outcomes()
	stats := s.listener.Stats()
	s.log.Info("Test plan processed",
		"scenarios", len(outcomes),
		"invocations", stats.Inputs,
		"duplicates", stats.Duplicates,
		"rows_merged", stats.RowsMerged,
		"rows_reconciled", stats.RowsReconciled)
	return outcomes, nil
}

func (s *Session) Outcomes() []*types.TestOutcome {
	return s.listener.Outcomes()
}

func (s *Session) Summary() listener.Summary {
	return s.listener.Summary()
}

func (s *Session) Stats() aggregator.Stats {
	return s.listener.Stats()
}

func (s *Session) Finished() bool {
	return s.listener.Finished()
}

// RecorderState reports whether a test is still being recorded
func (s *Session) RecorderState() recorder.State {
	return s.recorder.State()
}
