package report

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/jittakal/satbqueue/internal/config/dto"
)

// Ensure implementation satisfies interface at compile time.
var _ Uploader = (*S3Uploader)(nil)

// S3Uploader uploads report files to AWS S3 or an S3 compatible endpoint,
// with optional server-side encryption.
type S3Uploader struct {
	uploader    *manager.Uploader
	bucket      string
	sseEnabled  bool
	sseKMSKeyID string
	logger      *zap.Logger
}

// NewS3Uploader creates a new S3 uploader.
func NewS3Uploader(cfg dto.S3UploadConfig, logger *zap.Logger) (*S3Uploader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	awsConfig, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 10 * 1024 * 1024 // 10MB parts
		u.Concurrency = 2
	})

	logger.Info("S3 uploader created",
		zap.String("bucket", cfg.Bucket),
		zap.String("region", cfg.Region),
		zap.String("endpoint", cfg.Endpoint),
		zap.Bool("sse_enabled", cfg.SSEEnabled),
	)

	return &S3Uploader{
		uploader:    uploader,
		bucket:      cfg.Bucket,
		sseEnabled:  cfg.SSEEnabled,
		sseKMSKeyID: cfg.SSEKMSKeyID,
		logger:      logger,
	}, nil
}

// Upload uploads the file at localPath to s3://bucket/key.
func (u *S3Uploader) Upload(ctx context.Context, localPath, key string) error {
	startTime := time.Now()

	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open report file: %w", err)
	}
	defer file.Close()

	input := &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(contentType(key)),
	}
	if u.sseEnabled {
		if u.sseKMSKeyID != "" {
			input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
			input.SSEKMSKeyId = aws.String(u.sseKMSKeyID)
		} else {
			input.ServerSideEncryption = types.ServerSideEncryptionAes256
		}
	}

	result, err := u.uploader.Upload(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}

	u.logger.Info("Uploaded report file to S3",
		zap.String("bucket", u.bucket),
		zap.String("key", key),
		zap.String("location", result.Location),
		zap.Int64("total_duration_ms", time.Since(startTime).Milliseconds()),
	)
	return nil
}

// Backend returns the backend name.
func (u *S3Uploader) Backend() string {
	return UploadS3
}

// Close closes the S3 uploader.
func (u *S3Uploader) Close() error {
	u.logger.Info("Closing S3 uploader")
	return nil
}
