package report

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"go.uber.org/zap"

	"github.com/jittakal/satbqueue/internal/config/dto"
)

// Ensure implementation satisfies interface at compile time.
var _ Uploader = (*AzureUploader)(nil)

// AzureUploader uploads report files to Azure Blob Storage using account
// key authentication.
type AzureUploader struct {
	client    *azblob.Client
	container string
	logger    *zap.Logger
}

// azureConnectionString builds the account connection string. A custom
// endpoint replaces the public endpoint suffix.
func azureConnectionString(cfg dto.AzureUploadConfig) string {
	if cfg.Endpoint != "" {
		return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;BlobEndpoint=%s",
			cfg.AccountName, cfg.AccountKey, cfg.Endpoint)
	}
	return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;EndpointSuffix=core.windows.net",
		cfg.AccountName, cfg.AccountKey)
}

// NewAzureUploader creates a new Azure Blob Storage uploader.
func NewAzureUploader(cfg dto.AzureUploadConfig, logger *zap.Logger) (*AzureUploader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Container == "" {
		return nil, fmt.Errorf("azure container is required")
	}

	client, err := azblob.NewClientFromConnectionString(azureConnectionString(cfg), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	logger.Info("Azure uploader created",
		zap.String("account", cfg.AccountName),
		zap.String("container", cfg.Container),
	)

	return &AzureUploader{
		client:    client,
		container: cfg.Container,
		logger:    logger,
	}, nil
}

// Upload uploads the file at localPath as blob key in the container.
func (u *AzureUploader) Upload(ctx context.Context, localPath, key string) error {
	startTime := time.Now()

	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open report file: %w", err)
	}
	defer file.Close()

	if _, err := u.client.UploadFile(ctx, u.container, key, file, nil); err != nil {
		return fmt.Errorf("failed to upload to Azure Blob: %w", err)
	}

	u.logger.Info("Uploaded report file to Azure Blob",
		zap.String("container", u.container),
		zap.String("blob", key),
		zap.Int64("total_duration_ms", time.Since(startTime).Milliseconds()),
	)
	return nil
}

// Backend returns the backend name.
func (u *AzureUploader) Backend() string {
	return UploadAzure
}

// Close closes the Azure uploader.
func (u *AzureUploader) Close() error {
	u.logger.Info("Azure uploader closed")
	return nil
}
