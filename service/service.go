// Package service serves health, run status and prometheus metrics while
// a test plan is processed.
package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-outcome/metrics"
)

type Service struct {
	log         log.Logger
	healthzAddr string
	metricsAddr string

	Healthz *HealthzServer
	Metrics *MetricsServer
}

// New creates a service. An empty address disables its server.
func New(logger log.Logger, status StatusProvider, healthzAddr string, metricsAddr string) *Service {
	logger = logger.New("component", "service")
	return &Service{
		log:         logger,
		healthzAddr: healthzAddr,
		metricsAddr: metricsAddr,
		Healthz:     NewHealthzServer(logger, status),
		Metrics:     &MetricsServer{},
	}
}

func (s *Service) Start(ctx context.Context) {
	s.log.Info("service starting")

	if s.healthzAddr != "" {
		go func() {
			s.log.Info("starting healthz server", "addr", s.healthzAddr)
			if err := s.Healthz.Start(ctx, s.healthzAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("error starting healthz server", "err", err)
				metrics.RecordErrorDetails("healthz_server", err)
			}
		}()
	}

	if s.metricsAddr != "" {
		go func() {
			s.log.Info("starting metrics server", "addr", s.metricsAddr)
			if err := s.Metrics.Start(ctx, s.metricsAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("error starting metrics server", "err", err)
				metrics.RecordErrorDetails("metrics_server", err)
			}
		}()
	}

	s.log.Info("service started")
}

func (s *Service) Shutdown() {
	s.log.Info("service shutting down")

	_ = s.Healthz.Shutdown()
	s.log.Info("healthz stopped")

	_ = s.Metrics.Shutdown()
	s.log.Info("metrics stopped")

	s.log.Info("service stopped")
}
