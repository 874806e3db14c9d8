package report

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jittakal/satbqueue/internal/config/dto"
	apperrors "github.com/jittakal/satbqueue/internal/errors"
)

type fakeUploader struct {
	mu      sync.Mutex
	fail    int
	keys    []string
	sizes   []int64
	closed  bool
	backend string
}

func (f *fakeUploader) Upload(_ context.Context, localPath, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail > 0 {
		f.fail--
		return errors.New("bucket unavailable")
	}
	info, err := os.Stat(localPath)
	if err != nil {
		return err
	}
	f.keys = append(f.keys, key)
	f.sizes = append(f.sizes, info.Size())
	return nil
}

func (f *fakeUploader) Backend() string {
	if f.backend == "" {
		return UploadS3
	}
	return f.backend
}

func (f *fakeUploader) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		rel    string
		want   string
	}{
		{"with prefix", "satb/cycles", "dt=2026-03-14/cycles_1.parquet", "satb/cycles/dt=2026-03-14/cycles_1.parquet"},
		{"trailing slash", "satb/", "dt=2026-03-14/a.avro", "satb/dt=2026-03-14/a.avro"},
		{"no prefix", "", "dt=2026-03-14/a.avro", "dt=2026-03-14/a.avro"},
		{"leading slash", "/root", "a.avro", "root/a.avro"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := objectKey(tt.prefix, tt.rel); got != tt.want {
				t.Errorf("objectKey() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestContentType(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"a/cycles.avro", "application/avro"},
		{"a/cycles.avro.gz", "application/gzip"},
		{"a/cycles.parquet", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := contentType(tt.key); got != tt.want {
			t.Errorf("contentType(%s) = %s, want %s", tt.key, got, tt.want)
		}
	}
}

func TestNewUploader(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "credentials"))

	tests := []struct {
		name    string
		cfg     dto.UploadConfig
		want    string
		wantErr bool
	}{
		{"disabled", dto.UploadConfig{}, "", false},
		{"none", dto.UploadConfig{Backend: UploadNone}, "", false},
		{
			name: "s3",
			cfg: dto.UploadConfig{Backend: UploadS3, S3: dto.S3UploadConfig{
				Bucket: "reports", Region: "us-east-1", Endpoint: "http://127.0.0.1:9000", UsePathStyle: true,
			}},
			want: UploadS3,
		},
		{
			name: "gcs emulator",
			cfg: dto.UploadConfig{Backend: UploadGCS, GCS: dto.GCSUploadConfig{
				Bucket: "reports", Endpoint: "http://127.0.0.1:4443/storage/v1/",
			}},
			want: UploadGCS,
		},
		{
			name: "azure",
			cfg: dto.UploadConfig{Backend: UploadAzure, Azure: dto.AzureUploadConfig{
				AccountName: "satb", AccountKey: "a2V5", Container: "reports",
				Endpoint: "http://127.0.0.1:10000/satb",
			}},
			want: UploadAzure,
		},
		{"s3 without bucket", dto.UploadConfig{Backend: UploadS3}, "", true},
		{"azure without container", dto.UploadConfig{Backend: UploadAzure}, "", true},
		{"unknown", dto.UploadConfig{Backend: "ftp"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uploader, err := NewUploader(tt.cfg, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewUploader() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.want == "" {
				if uploader != nil {
					t.Errorf("NewUploader() = %T, want nil", uploader)
				}
				return
			}
			if uploader == nil {
				t.Fatal("NewUploader() returned nil uploader")
			}
			defer uploader.Close()
			if got := uploader.Backend(); got != tt.want {
				t.Errorf("Backend() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAzureConnectionString(t *testing.T) {
	cfg := dto.AzureUploadConfig{AccountName: "satb", AccountKey: "a2V5"}
	got := azureConnectionString(cfg)
	if !strings.Contains(got, "EndpointSuffix=core.windows.net") {
		t.Errorf("connection string %q should use the public endpoint", got)
	}

	cfg.Endpoint = "http://127.0.0.1:10000/satb"
	got = azureConnectionString(cfg)
	if !strings.Contains(got, "BlobEndpoint=http://127.0.0.1:10000/satb") {
		t.Errorf("connection string %q should use the custom endpoint", got)
	}
}

func TestFileReporter_UploadsFiles(t *testing.T) {
	base := t.TempDir()
	metrics := newFakeMetrics()
	uploader := &fakeUploader{}
	reporter, err := NewFileReporterWithUploader(dto.FileReportConfig{
		BasePath:  base,
		Format:    FormatAvro,
		BatchSize: 2,
		Upload:    dto.UploadConfig{Prefix: "satb/cycles"},
	}, uploader, nil, metrics)
	if err != nil {
		t.Fatalf("NewFileReporterWithUploader() error = %v", err)
	}

	for _, r := range sampleReports(3) {
		if err := reporter.Report(context.Background(), r); err != nil {
			t.Fatalf("Report() error = %v", err)
		}
	}
	if err := reporter.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if len(uploader.keys) != 2 {
		t.Fatalf("uploads = %d, want 2", len(uploader.keys))
	}
	for i, key := range uploader.keys {
		if !strings.HasPrefix(key, "satb/cycles/dt=2026-03-14/cycles_") || !strings.HasSuffix(key, ".avro") {
			t.Errorf("key %s does not follow prefix/dt=date/cycles_*.avro", key)
		}
		if uploader.sizes[i] == 0 {
			t.Errorf("upload %d was empty", i)
		}
	}
	if !uploader.closed {
		t.Error("Close() should close the uploader")
	}
	if got := metrics.count("s3/success"); got != 2 {
		t.Errorf("upload successes = %d, want 2", got)
	}
}

func TestFileReporter_RetriesFailedUploads(t *testing.T) {
	metrics := newFakeMetrics()
	uploader := &fakeUploader{fail: 1}
	reporter, err := NewFileReporterWithUploader(dto.FileReportConfig{
		BasePath:  t.TempDir(),
		Format:    FormatParquet,
		BatchSize: 1,
	}, uploader, nil, metrics)
	if err != nil {
		t.Fatalf("NewFileReporterWithUploader() error = %v", err)
	}

	reports := sampleReports(2)
	err = reporter.Report(context.Background(), reports[0])
	var reportErr *apperrors.ReportError
	if !errors.As(err, &reportErr) || reportErr.Operation != "upload" {
		t.Fatalf("Report() error = %v, want upload ReportError", err)
	}
	if apperrors.IsRetryable(err) {
		t.Error("upload failure should not be retryable by the caller")
	}
	if got := len(reporter.FailedUploads()); got != 1 {
		t.Fatalf("FailedUploads() = %d, want 1", got)
	}
	if got := len(reporter.Files()); got != 1 {
		t.Errorf("Files() = %d, want 1 (file is kept locally)", got)
	}

	if err := reporter.Report(context.Background(), reports[1]); err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	if got := len(reporter.FailedUploads()); got != 0 {
		t.Errorf("FailedUploads() = %d after retry, want 0", got)
	}
	if len(uploader.keys) != 2 {
		t.Errorf("uploads = %d, want 2", len(uploader.keys))
	}
	if got := metrics.count("s3/failure"); got != 1 {
		t.Errorf("upload failures = %d, want 1", got)
	}
	_ = reporter.Close()
}

func TestFileReporter_DeleteLocalAfterUpload(t *testing.T) {
	uploader := &fakeUploader{backend: UploadGCS}
	reporter, err := NewFileReporterWithUploader(dto.FileReportConfig{
		BasePath:  t.TempDir(),
		Format:    FormatAvro,
		BatchSize: 1,
		Upload:    dto.UploadConfig{DeleteLocal: true},
	}, uploader, nil, nil)
	if err != nil {
		t.Fatalf("NewFileReporterWithUploader() error = %v", err)
	}
	defer reporter.Close()

	if err := reporter.Report(context.Background(), sampleReports(1)[0]); err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	path := reporter.Files()[0]
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Stat(%s) error = %v, want not exist", path, err)
	}
	if len(uploader.keys) != 1 {
		t.Errorf("uploads = %d, want 1", len(uploader.keys))
	}
}

func TestS3Uploader_Upload(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "credentials"))

	var mu sync.Mutex
	var method, path string
	var received int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		method, path, received = r.Method, r.URL.Path, len(body)
		mu.Unlock()
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	uploader, err := NewS3Uploader(dto.S3UploadConfig{
		Bucket:       "reports",
		Region:       "us-east-1",
		Endpoint:     server.URL,
		UsePathStyle: true,
	}, nil)
	if err != nil {
		t.Fatalf("NewS3Uploader() error = %v", err)
	}
	defer uploader.Close()

	local := filepath.Join(t.TempDir(), "cycles.avro")
	if err := os.WriteFile(local, []byte("Obj\x01 report bytes"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if err := uploader.Upload(context.Background(), local, "satb/cycles/cycles.avro"); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if method != http.MethodPut {
		t.Errorf("method = %s, want PUT", method)
	}
	if path != "/reports/satb/cycles/cycles.avro" {
		t.Errorf("path = %s, want /reports/satb/cycles/cycles.avro", path)
	}
	if received == 0 {
		t.Error("server received an empty body")
	}
}

func TestUploaders_MissingFile(t *testing.T) {
	uploader, err := NewAzureUploader(dto.AzureUploadConfig{
		AccountName: "satb", AccountKey: "a2V5", Container: "reports",
		Endpoint: "http://127.0.0.1:10000/satb",
	}, nil)
	if err != nil {
		t.Fatalf("NewAzureUploader() error = %v", err)
	}
	missing := filepath.Join(t.TempDir(), "missing.avro")
	if err := uploader.Upload(context.Background(), missing, "k"); err == nil {
		t.Error("Upload() expected error for a missing file")
	}
}
