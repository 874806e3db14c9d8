package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jittakal/satbqueue/internal/config/dto"
	"github.com/jittakal/satbqueue/internal/errors"
	"github.com/jittakal/satbqueue/pkg/report"
)

// Ensure implementation satisfies interface at compile time.
var _ report.Reporter = (*FileReporter)(nil)

// FileReporter buffers reports and writes them in batches to the local
// filesystem. Files are partitioned by the start date of the first cycle
// in the batch: base_path/dt=YYYY-MM-DD/cycles_YYYYMMDD_HHMMSS_NNN.ext.
// With an Uploader each file is also copied to object storage under the
// configured prefix; failed uploads are retried on the next flush.
type FileReporter struct {
	basePath     string
	batchSize    int
	encoder      Encoder
	uploader     Uploader
	uploadPrefix string
	deleteLocal  bool
	logger       *zap.Logger
	metrics      MetricsCollector

	mu            sync.Mutex
	pending       []report.CycleReport
	closed        bool
	fileSequence  int    // Sequence counter for files created in the same second
	lastTimestamp string // Last timestamp used for filename generation
	files         []string
	failedUploads []string
}

// NewFileReporter creates a file sink, with the uploader selected by
// cfg.Upload.
func NewFileReporter(cfg dto.FileReportConfig, logger *zap.Logger, metrics MetricsCollector) (*FileReporter, error) {
	uploader, err := NewUploader(cfg.Upload, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create uploader: %w", err)
	}
	reporter, err := NewFileReporterWithUploader(cfg, uploader, logger, metrics)
	if err != nil {
		if uploader != nil {
			_ = uploader.Close()
		}
		return nil, err
	}
	return reporter, nil
}

// NewFileReporterWithUploader creates a file sink using uploader, which may
// be nil to keep files local only.
func NewFileReporterWithUploader(
	cfg dto.FileReportConfig,
	uploader Uploader,
	logger *zap.Logger,
	metrics MetricsCollector,
) (*FileReporter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("file batch size must be positive, got %d", cfg.BatchSize)
	}

	if err := os.MkdirAll(cfg.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	encoder, err := NewEncoder(cfg.Format, cfg.Compression)
	if err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	backend := UploadNone
	if uploader != nil {
		backend = uploader.Backend()
	}
	logger.Info("File reporter created",
		zap.String("base_path", cfg.BasePath),
		zap.String("format", cfg.Format),
		zap.String("compression", cfg.Compression),
		zap.Int("batch_size", cfg.BatchSize),
		zap.String("upload_backend", backend),
	)

	return &FileReporter{
		basePath:     cfg.BasePath,
		batchSize:    cfg.BatchSize,
		encoder:      encoder,
		uploader:     uploader,
		uploadPrefix: cfg.Upload.Prefix,
		deleteLocal:  cfg.Upload.DeleteLocal,
		logger:       logger,
		metrics:      metrics,
		pending:      make([]report.CycleReport, 0, cfg.BatchSize),
	}, nil
}

// Report buffers r and writes a file once the batch is full. A report whose
// ID is already pending is not buffered twice, so a failed write can be
// retried with the same report.
func (f *FileReporter) Report(ctx context.Context, r report.CycleReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return &errors.ReportError{Sink: SinkFile, Operation: "write", Err: errors.ErrReporterClosed}
	}

	if n := len(f.pending); n == 0 || f.pending[n-1].ID != r.ID {
		f.pending = append(f.pending, r)
	}
	if len(f.pending) < f.batchSize {
		return nil
	}
	return f.flushLocked(ctx)
}

// Flush writes any pending reports and retries failed uploads.
func (f *FileReporter) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flushLocked(context.Background())
}

// Close flushes pending reports and closes the uploader. Further reports
// are rejected.
func (f *FileReporter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true

	f.logger.Info("Closing file reporter",
		zap.Int("pending", len(f.pending)),
		zap.Int("failed_uploads", len(f.failedUploads)),
	)
	err := f.flushLocked(context.Background())
	if f.uploader != nil {
		if closeErr := f.uploader.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

// Files returns the paths written so far.
func (f *FileReporter) Files() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.files...)
}

// FailedUploads returns the written files still waiting to be uploaded.
func (f *FileReporter) FailedUploads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.failedUploads...)
}

func (f *FileReporter) flushLocked(ctx context.Context) error {
	uploadErr := f.retryUploadsLocked(ctx)
	if len(f.pending) == 0 {
		return uploadErr
	}

	startTime := time.Now()
	dir := filepath.Join(f.basePath, "dt="+f.pending[0].StartedAt.UTC().Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		f.recordFailure()
		return &errors.ReportError{Sink: SinkFile, Operation: "create", Err: err}
	}

	timestamp := startTime.UTC().Format("20060102_150405")
	if timestamp == f.lastTimestamp {
		f.fileSequence++
	} else {
		f.fileSequence = 1
		f.lastTimestamp = timestamp
	}
	path := filepath.Join(dir, fmt.Sprintf("cycles_%s_%03d%s", timestamp, f.fileSequence, f.encoder.FileExtension()))

	size, err := f.encoder.Encode(path, f.pending)
	if err != nil {
		f.recordFailure()
		return &errors.ReportError{Sink: SinkFile, Operation: "write", Err: err}
	}

	f.logger.Info("Wrote cycle reports to file",
		zap.String("path", path),
		zap.Int("report_count", len(f.pending)),
		zap.Int64("file_size", size),
		zap.String("format", f.encoder.Format()),
		zap.Int64("total_duration_ms", time.Since(startTime).Milliseconds()),
	)

	if f.metrics != nil {
		for range f.pending {
			f.metrics.IncReportsPublished(SinkFile, StatusSuccess)
		}
		f.metrics.ObserveReportFileSize(f.encoder.Format(), float64(size))
	}

	f.files = append(f.files, path)
	f.pending = f.pending[:0]

	if f.uploader == nil {
		return uploadErr
	}
	if err := f.upload(ctx, path); err != nil {
		f.failedUploads = append(f.failedUploads, path)
		return err
	}
	return uploadErr
}

// retryUploadsLocked uploads files whose earlier upload failed and returns
// the first error.
func (f *FileReporter) retryUploadsLocked(ctx context.Context) error {
	if f.uploader == nil || len(f.failedUploads) == 0 {
		return nil
	}

	var firstErr error
	remaining := f.failedUploads[:0]
	for _, path := range f.failedUploads {
		if err := f.upload(ctx, path); err != nil {
			remaining = append(remaining, path)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	f.failedUploads = remaining
	return firstErr
}

func (f *FileReporter) upload(ctx context.Context, path string) error {
	backend := f.uploader.Backend()

	rel, err := filepath.Rel(f.basePath, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	key := objectKey(f.uploadPrefix, filepath.ToSlash(rel))

	if err := f.uploader.Upload(ctx, path, key); err != nil {
		f.logger.Error("Failed to upload report file",
			zap.String("path", path),
			zap.String("key", key),
			zap.String("backend", backend),
			zap.Error(err),
		)
		if f.metrics != nil {
			f.metrics.IncReportsPublished(backend, StatusFailure)
		}
		return &errors.ReportError{Sink: backend, Operation: "upload", Err: err}
	}

	if f.metrics != nil {
		f.metrics.IncReportsPublished(backend, StatusSuccess)
	}
	if f.deleteLocal {
		if err := os.Remove(path); err != nil {
			f.logger.Warn("Failed to remove uploaded report file", zap.String("path", path), zap.Error(err))
		}
	}
	return nil
}

func (f *FileReporter) recordFailure() {
	if f.metrics != nil {
		f.metrics.IncReportsPublished(SinkFile, StatusFailure)
	}
}
