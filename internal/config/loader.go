package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/jittakal/satbqueue/internal/config/dto"
)

// Loader handles configuration loading and validation
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// Load loads configuration from file and environment variables
func (l *Loader) Load(path string) (*dto.ApplicationConfig, error) {
	l.setDefaults()

	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Only expand values containing a ${...} reference.
	for _, key := range l.v.AllKeys() {
		value := l.v.GetString(key)
		if strings.Contains(value, "${") {
			l.v.Set(key, os.ExpandEnv(value))
		}
	}

	var config dto.ApplicationConfig
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func (l *Loader) setDefaults() {
	// Application defaults
	l.v.SetDefault("application.name", "satbsim")
	l.v.SetDefault("application.version", "1.0.0")
	l.v.SetDefault("application.environment", "development")

	// Queue defaults
	l.v.SetDefault("queue.buffer_capacity", 1024)
	l.v.SetDefault("queue.process_completed_threshold", 20)
	l.v.SetDefault("queue.enqueue_threshold_percent", 0)
	l.v.SetDefault("queue.filter_before_enqueue", true)

	// Marking defaults
	l.v.SetDefault("marking.workers", 2)
	l.v.SetDefault("marking.heap_objects", 1<<20)
	l.v.SetDefault("marking.poll_interval_ms", 5)
	l.v.SetDefault("marking.concurrent_phase_ms", 100)
	l.v.SetDefault("marking.cycle_interval_ms", 250)
	l.v.SetDefault("marking.abandon_every", 0)
	l.v.SetDefault("marking.max_cycles", 0)

	// Workload defaults
	l.v.SetDefault("workload.mutators", 8)
	l.v.SetDefault("workload.shared_writers", 1)
	l.v.SetDefault("workload.batch_size", 256)
	l.v.SetDefault("workload.null_percent", 5)
	l.v.SetDefault("workload.pause_us", 50)

	// Report defaults
	l.v.SetDefault("report.sink", "log")
	l.v.SetDefault("report.file.base_path", "./reports")
	l.v.SetDefault("report.file.format", "parquet")
	l.v.SetDefault("report.file.compression", "snappy")
	l.v.SetDefault("report.file.batch_size", 16)
	l.v.SetDefault("report.file.upload.backend", "none")
	l.v.SetDefault("report.file.upload.prefix", "satb/cycles")
	l.v.SetDefault("report.file.upload.delete_local", false)
	l.v.SetDefault("report.file.upload.s3.bucket", "")
	l.v.SetDefault("report.file.upload.s3.region", "")
	l.v.SetDefault("report.file.upload.gcs.bucket", "")
	l.v.SetDefault("report.file.upload.azure.account_name", "")
	l.v.SetDefault("report.file.upload.azure.account_key", "")
	l.v.SetDefault("report.file.upload.azure.container", "")
	l.v.SetDefault("report.kafka.bootstrap_servers", []string{})
	l.v.SetDefault("report.kafka.topic", "satb-mark-cycles")
	l.v.SetDefault("report.kafka.security_protocol", "PLAINTEXT")
	l.v.SetDefault("report.kafka.sasl_mechanism", "PLAIN")
	l.v.SetDefault("report.kafka.compression", "snappy")
	l.v.SetDefault("report.kafka.required_acks", -1)
	l.v.SetDefault("report.kafka.retry_max", 3)
	l.v.SetDefault("report.kafka.idempotent", false)
	l.v.SetDefault("report.kafka.source", "satbsim")

	// Observability defaults
	l.v.SetDefault("observability.logging.level", "info")
	l.v.SetDefault("observability.logging.format", "json")
	l.v.SetDefault("observability.logging.output", "stdout")
	l.v.SetDefault("observability.metrics.enabled", true)
	l.v.SetDefault("observability.metrics.port", 9090)
	l.v.SetDefault("observability.metrics.path", "/metrics")
	l.v.SetDefault("observability.health.port", 8080)
	l.v.SetDefault("observability.health.liveness_path", "/health/live")
	l.v.SetDefault("observability.health.readiness_path", "/health/ready")

	// Shutdown defaults
	l.v.SetDefault("shutdown.grace_period_seconds", 30)
}

// Validate validates the configuration
func (l *Loader) Validate(config *dto.ApplicationConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}

	if config.Report.Sink == "kafka" {
		switch config.Report.Kafka.SecurityProtocol {
		case "PLAINTEXT", "SASL_SSL", "SASL_PLAINTEXT":
		default:
			return fmt.Errorf("unsupported security protocol: %s", config.Report.Kafka.SecurityProtocol)
		}
	}

	// Port validation
	if config.Observability.Metrics.Port < 1 || config.Observability.Metrics.Port > 65535 {
		return fmt.Errorf("invalid metrics port: %d", config.Observability.Metrics.Port)
	}
	if config.Observability.Health.Port < 1 || config.Observability.Health.Port > 65535 {
		return fmt.Errorf("invalid health port: %d", config.Observability.Health.Port)
	}

	return nil
}
