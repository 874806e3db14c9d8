package report

import (
	"fmt"

	"github.com/jittakal/satbqueue/pkg/report"
)

// Sink names.
const (
	SinkLog   = "log"
	SinkFile  = "file"
	SinkKafka = "kafka"
)

// File formats.
const (
	FormatAvro    = "avro"
	FormatParquet = "parquet"
)

// Publish outcomes used as the status metric label.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// MetricsCollector records report publishing metrics.
type MetricsCollector interface {
	IncReportsPublished(sink string, status string)
	ObserveReportFileSize(format string, size float64)
}

// Encoder writes a batch of reports to a file.
type Encoder interface {
	// Encode writes reports to filePath and returns the file size in bytes.
	Encode(filePath string, reports []report.CycleReport) (int64, error)
	Format() string
	FileExtension() string
}

// NewEncoder creates an encoder for the given format.
func NewEncoder(format, compression string) (Encoder, error) {
	switch format {
	case FormatParquet:
		return NewParquetEncoder(compression), nil
	case FormatAvro:
		return NewAvroEncoder(compression)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", format)
	}
}

// SupportedCompressions returns supported compression codecs for a given format.
func SupportedCompressions(format string) []string {
	switch format {
	case FormatParquet:
		return []string{"uncompressed", "snappy", "gzip", "lz4", "zstd"}
	case FormatAvro:
		return []string{"uncompressed", "gzip", "deflate", "snappy"}
	default:
		return []string{}
	}
}
