package server

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/jittakal/satbqueue/internal/config/dto"
)

func testConfig(healthPort, metricsPort int, metrics bool) dto.ObservabilityConfig {
	return dto.ObservabilityConfig{
		Metrics: dto.MetricsConfig{Enabled: metrics, Port: metricsPort, Path: "/metrics"},
		Health: dto.HealthConfig{
			Port:          healthPort,
			LivenessPath:  "/health/live",
			ReadinessPath: "/health/ready",
		},
	}
}

func TestServer_NewServer(t *testing.T) {
	registry := prometheus.NewRegistry()
	checker := &mockHealthChecker{liveness: true, readiness: true, healthy: true}

	server := NewServer(testConfig(8080, 9090, true), checker, registry, zap.NewNop())
	if server == nil {
		t.Fatal("Server should not be nil")
	}
	if len(server.servers()) != 2 {
		t.Errorf("servers = %d, want 2", len(server.servers()))
	}

	server = NewServer(testConfig(8080, 9090, false), checker, registry, nil)
	if len(server.servers()) != 1 {
		t.Errorf("servers with metrics disabled = %d, want 1", len(server.servers()))
	}
}

func TestServer_Start(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_metric_total",
		Help: "Test metric",
	})
	registry.MustRegister(counter)
	counter.Inc()

	checker := &mockHealthChecker{liveness: true, readiness: true, healthy: true}

	// Use high port numbers to avoid conflicts
	server := NewServer(testConfig(58080, 59090, true), checker, registry, zap.NewNop())
	if err := server.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	time.Sleep(100 * time.Millisecond)

	resp, err := http.Get("http://localhost:58080/health/live")
	if err != nil {
		t.Fatalf("Failed to connect to health server: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Health check returned status %d", resp.StatusCode)
	}

	resp, err = http.Get("http://localhost:59090/metrics")
	if err != nil {
		t.Fatalf("Failed to connect to metrics server: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "test_metric_total") {
		t.Error("metrics response should contain test_metric_total")
	}
}

func TestServer_Shutdown(t *testing.T) {
	registry := prometheus.NewRegistry()
	checker := &mockHealthChecker{liveness: true, readiness: true, healthy: true}

	server := NewServer(testConfig(58081, 59091, true), checker, registry, zap.NewNop())
	server.Start()

	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if _, err := http.Get("http://localhost:58081/health/live"); err == nil {
		t.Error("Expected error connecting to stopped health server")
	}
}
