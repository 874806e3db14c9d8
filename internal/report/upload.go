package report

import (
	"context"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/jittakal/satbqueue/internal/config/dto"
)

// Upload backends.
const (
	UploadNone  = "none"
	UploadS3    = "s3"
	UploadGCS   = "gcs"
	UploadAzure = "azure"
)

// Uploader copies a written report file to object storage.
type Uploader interface {
	// Upload stores the file at localPath under key.
	Upload(ctx context.Context, localPath, key string) error
	// Backend returns the backend name used in logs and metrics.
	Backend() string
	Close() error
}

// NewUploader creates the uploader selected by cfg.Backend. It returns nil
// when uploads are disabled.
func NewUploader(cfg dto.UploadConfig, logger *zap.Logger) (Uploader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Backend {
	case "", UploadNone:
		return nil, nil
	case UploadS3:
		uploader, err := NewS3Uploader(cfg.S3, logger)
		if err != nil {
			return nil, err
		}
		return uploader, nil
	case UploadGCS:
		uploader, err := NewGCSUploader(cfg.GCS, logger)
		if err != nil {
			return nil, err
		}
		return uploader, nil
	case UploadAzure:
		uploader, err := NewAzureUploader(cfg.Azure, logger)
		if err != nil {
			return nil, err
		}
		return uploader, nil
	default:
		return nil, fmt.Errorf("unsupported upload backend: %s", cfg.Backend)
	}
}

// objectKey joins prefix and the file's path relative to the sink's base
// path into a slash separated object key.
func objectKey(prefix, relPath string) string {
	relPath = strings.ReplaceAll(relPath, "\\", "/")
	return strings.TrimPrefix(path.Join(prefix, relPath), "/")
}

// contentType returns the MIME type for a report file.
func contentType(key string) string {
	switch {
	case strings.HasSuffix(key, ".avro"):
		return "application/avro"
	case strings.HasSuffix(key, ".gz"):
		return "application/gzip"
	default:
		return "application/octet-stream"
	}
}
