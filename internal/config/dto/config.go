package dto

import (
	"fmt"
	"time"
)

// ApplicationConfig is the root configuration structure
type ApplicationConfig struct {
	Application   ApplicationInfo     `mapstructure:"application"`
	Queue         QueueConfig         `mapstructure:"queue"`
	Marking       MarkingConfig       `mapstructure:"marking"`
	Workload      WorkloadConfig      `mapstructure:"workload"`
	Report        ReportConfig        `mapstructure:"report"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Shutdown      ShutdownConfig      `mapstructure:"shutdown"`
}

// ApplicationInfo contains application metadata
type ApplicationInfo struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// QueueConfig contains mark queue set settings
type QueueConfig struct {
	BufferCapacity            int  `mapstructure:"buffer_capacity"`
	ProcessCompletedThreshold int  `mapstructure:"process_completed_threshold"`
	EnqueueThresholdPercent   int  `mapstructure:"enqueue_threshold_percent"`
	FilterBeforeEnqueue       bool `mapstructure:"filter_before_enqueue"`
}

// MarkingConfig contains mark cycle settings
type MarkingConfig struct {
	Workers           int `mapstructure:"workers"`
	HeapObjects       int `mapstructure:"heap_objects"`
	PollIntervalMS    int `mapstructure:"poll_interval_ms"`
	ConcurrentPhaseMS int `mapstructure:"concurrent_phase_ms"`
	CycleIntervalMS   int `mapstructure:"cycle_interval_ms"`
	AbandonEvery      int `mapstructure:"abandon_every"`
	MaxCycles         int `mapstructure:"max_cycles"`
}

// PollInterval returns the drainer poll interval.
func (c MarkingConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// ConcurrentPhase returns the length of the concurrent marking phase.
func (c MarkingConfig) ConcurrentPhase() time.Duration {
	return time.Duration(c.ConcurrentPhaseMS) * time.Millisecond
}

// CycleInterval returns the delay between mark cycles.
func (c MarkingConfig) CycleInterval() time.Duration {
	return time.Duration(c.CycleIntervalMS) * time.Millisecond
}

// WorkloadConfig contains mutator workload settings
type WorkloadConfig struct {
	Mutators      int `mapstructure:"mutators"`
	SharedWriters int `mapstructure:"shared_writers"`
	BatchSize     int `mapstructure:"batch_size"`
	NullPercent   int `mapstructure:"null_percent"`
	PauseUS       int `mapstructure:"pause_us"`
}

// Pause returns the mutator pause between batches.
func (c WorkloadConfig) Pause() time.Duration {
	return time.Duration(c.PauseUS) * time.Microsecond
}

// ReportConfig contains cycle report sink settings
type ReportConfig struct {
	Sink  string            `mapstructure:"sink"`
	File  FileReportConfig  `mapstructure:"file"`
	Kafka KafkaReportConfig `mapstructure:"kafka"`
}

// FileReportConfig contains local filesystem report settings
type FileReportConfig struct {
	BasePath    string       `mapstructure:"base_path"`
	Format      string       `mapstructure:"format"`
	Compression string       `mapstructure:"compression"`
	BatchSize   int          `mapstructure:"batch_size"`
	Upload      UploadConfig `mapstructure:"upload"`
}

// UploadConfig contains object storage upload settings for report files
type UploadConfig struct {
	Backend     string            `mapstructure:"backend"`
	Prefix      string            `mapstructure:"prefix"`
	DeleteLocal bool              `mapstructure:"delete_local"`
	S3          S3UploadConfig    `mapstructure:"s3"`
	GCS         GCSUploadConfig   `mapstructure:"gcs"`
	Azure       AzureUploadConfig `mapstructure:"azure"`
}

// S3UploadConfig contains AWS S3 settings
type S3UploadConfig struct {
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	SSEEnabled   bool   `mapstructure:"sse_enabled"`
	SSEKMSKeyID  string `mapstructure:"sse_kms_key_id"`
}

// GCSUploadConfig contains Google Cloud Storage settings
type GCSUploadConfig struct {
	Bucket               string `mapstructure:"bucket"`
	ProjectID            string `mapstructure:"project_id"`
	CredentialsFile      string `mapstructure:"credentials_file"`
	Endpoint             string `mapstructure:"endpoint"`
	UseDefaultCredential bool   `mapstructure:"use_default_credential"`
}

// AzureUploadConfig contains Azure Blob Storage settings
type AzureUploadConfig struct {
	AccountName string `mapstructure:"account_name"`
	AccountKey  string `mapstructure:"account_key"`
	Container   string `mapstructure:"container"`
	Endpoint    string `mapstructure:"endpoint"`
}

// KafkaReportConfig contains Kafka report producer settings
type KafkaReportConfig struct {
	BootstrapServers []string     `mapstructure:"bootstrap_servers"`
	Topic            string       `mapstructure:"topic"`
	SecurityProtocol string       `mapstructure:"security_protocol"`
	SASLMechanism    string       `mapstructure:"sasl_mechanism"`
	SASLUsername     string       `mapstructure:"sasl_username"`
	SASLPassword     string       `mapstructure:"sasl_password"`
	TLS              TLSConfig    `mapstructure:"tls"`
	AWSMSK           AWSMSKConfig `mapstructure:"aws_msk"`
	Compression      string       `mapstructure:"compression"`
	RequiredAcks     int          `mapstructure:"required_acks"`
	RetryMax         int          `mapstructure:"retry_max"`
	Idempotent       bool         `mapstructure:"idempotent"`
	Source           string       `mapstructure:"source"`
}

// TLSConfig contains TLS settings
type TLSConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
	CACertFile         string `mapstructure:"ca_cert_file"`
	ClientCertFile     string `mapstructure:"client_cert_file"`
	ClientKeyFile      string `mapstructure:"client_key_file"`
}

// AWSMSKConfig contains AWS MSK IAM settings
type AWSMSKConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Region  string `mapstructure:"region"`
}

// ObservabilityConfig contains observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Health  HealthConfig  `mapstructure:"health"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig contains metrics settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// HealthConfig contains health check settings
type HealthConfig struct {
	Port          int    `mapstructure:"port"`
	LivenessPath  string `mapstructure:"liveness_path"`
	ReadinessPath string `mapstructure:"readiness_path"`
}

// ShutdownConfig contains shutdown settings
type ShutdownConfig struct {
	GracePeriodSeconds int `mapstructure:"grace_period_seconds"`
}

// GracePeriod returns the shutdown grace period.
func (c ShutdownConfig) GracePeriod() time.Duration {
	return time.Duration(c.GracePeriodSeconds) * time.Second
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.Application.Name == "" {
		return fmt.Errorf("application name is required")
	}
	if err := c.Queue.Validate(); err != nil {
		return err
	}
	if err := c.Marking.Validate(); err != nil {
		return err
	}
	if err := c.Workload.Validate(); err != nil {
		return err
	}
	return c.Report.Validate()
}

// Validate validates queue configuration.
func (c *QueueConfig) Validate() error {
	if c.BufferCapacity <= 0 {
		return fmt.Errorf("queue buffer capacity must be positive")
	}
	if c.EnqueueThresholdPercent < 0 || c.EnqueueThresholdPercent >= 100 {
		return fmt.Errorf("queue enqueue threshold percent must be in [0, 100)")
	}
	return nil
}

// Validate validates marking configuration.
func (c *MarkingConfig) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("marking workers must be positive")
	}
	if c.HeapObjects <= 0 {
		return fmt.Errorf("marking heap objects must be positive")
	}
	if c.PollIntervalMS <= 0 {
		return fmt.Errorf("marking poll interval must be positive")
	}
	if c.CycleIntervalMS <= 0 {
		return fmt.Errorf("marking cycle interval must be positive")
	}
	if c.ConcurrentPhaseMS < 0 {
		return fmt.Errorf("marking concurrent phase must not be negative")
	}
	if c.AbandonEvery < 0 || c.MaxCycles < 0 {
		return fmt.Errorf("marking abandon_every and max_cycles must not be negative")
	}
	return nil
}

// Validate validates workload configuration.
func (c *WorkloadConfig) Validate() error {
	if c.Mutators <= 0 {
		return fmt.Errorf("workload mutators must be positive")
	}
	if c.SharedWriters < 0 {
		return fmt.Errorf("workload shared writers must not be negative")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("workload batch size must be positive")
	}
	if c.NullPercent < 0 || c.NullPercent > 100 {
		return fmt.Errorf("workload null percent must be in [0, 100]")
	}
	return nil
}

// Validate validates report configuration.
func (c *ReportConfig) Validate() error {
	switch c.Sink {
	case "log":
		return nil
	case "file":
		return c.File.Validate()
	case "kafka":
		return c.Kafka.Validate()
	default:
		return fmt.Errorf("unsupported report sink: %s", c.Sink)
	}
}

// Validate validates file report configuration.
func (c *FileReportConfig) Validate() error {
	if c.BasePath == "" {
		return fmt.Errorf("file base path is required")
	}
	if c.Format != "avro" && c.Format != "parquet" {
		return fmt.Errorf("unsupported report format: %s", c.Format)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("file batch size must be positive")
	}
	return c.Upload.Validate()
}

// Validate validates upload configuration.
func (c *UploadConfig) Validate() error {
	switch c.Backend {
	case "", "none":
		return nil
	case "s3":
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3 bucket is required")
		}
		if c.S3.Region == "" {
			return fmt.Errorf("s3 region is required")
		}
	case "gcs":
		if c.GCS.Bucket == "" {
			return fmt.Errorf("gcs bucket is required")
		}
	case "azure":
		if c.Azure.AccountName == "" {
			return fmt.Errorf("azure account name is required")
		}
		if c.Azure.AccountKey == "" {
			return fmt.Errorf("azure account key is required")
		}
		if c.Azure.Container == "" {
			return fmt.Errorf("azure container is required")
		}
	default:
		return fmt.Errorf("unsupported upload backend: %s", c.Backend)
	}
	return nil
}

// Validate validates Kafka report configuration.
func (c *KafkaReportConfig) Validate() error {
	if len(c.BootstrapServers) == 0 {
		return fmt.Errorf("kafka bootstrap servers are required")
	}
	if c.Topic == "" {
		return fmt.Errorf("kafka topic is required")
	}
	return nil
}
