// Package server implements HTTP server for health checks and metrics.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jittakal/satbqueue/internal/config/dto"
)

// HealthChecker interface for checking component health.
type HealthChecker interface {
	Liveness() bool
	Readiness(ctx context.Context) bool
	IsHealthy() bool
	GetStatus() map[string]string
}

// Server represents the HTTP server for health and metrics.
type Server struct {
	healthServer  *http.Server
	metricsServer *http.Server
	logger        *zap.Logger
}

// NewServer creates a new HTTP server. The metrics server is omitted when
// metrics are disabled.
func NewServer(
	cfg dto.ObservabilityConfig,
	healthChecker HealthChecker,
	registry *prometheus.Registry,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	livenessPath := cfg.Health.LivenessPath
	if livenessPath == "" {
		livenessPath = "/health/live"
	}
	readinessPath := cfg.Health.ReadinessPath
	if readinessPath == "" {
		readinessPath = "/health/ready"
	}

	// Health server
	healthMux := http.NewServeMux()
	healthMux.HandleFunc(livenessPath, LivenessHandler(healthChecker, logger))
	healthMux.HandleFunc(readinessPath, ReadinessHandler(healthChecker, logger))

	s := &Server{
		healthServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Health.Port),
			Handler:      healthMux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		logger: logger,
	}

	if cfg.Metrics.Enabled {
		metricsPath := cfg.Metrics.Path
		if metricsPath == "" {
			metricsPath = "/metrics"
		}
		metricsMux := http.NewServeMux()
		metricsMux.Handle(metricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

		s.metricsServer = &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:      metricsMux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
	}

	return s
}

func (s *Server) servers() []*http.Server {
	if s.metricsServer == nil {
		return []*http.Server{s.healthServer}
	}
	return []*http.Server{s.healthServer, s.metricsServer}
}

// Start starts the HTTP servers in the background.
func (s *Server) Start() error {
	for _, srv := range s.servers() {
		go func(srv *http.Server) {
			s.logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.logger.Error("HTTP server failed", zap.String("addr", srv.Addr), zap.Error(err))
			}
		}(srv)
	}
	return nil
}

// Shutdown gracefully shuts down the servers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP servers")

	servers := s.servers()
	errChan := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			errChan <- srv.Shutdown(ctx)
		}(srv)
	}

	var lastErr error
	for range servers {
		if err := <-errChan; err != nil {
			s.logger.Error("Error shutting down server", zap.Error(err))
			lastErr = err
		}
	}

	return lastErr
}
