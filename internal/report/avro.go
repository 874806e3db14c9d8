package report

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/linkedin/goavro/v2"

	"github.com/jittakal/satbqueue/pkg/report"
)

// Ensure implementation satisfies interface at compile time.
var _ Encoder = (*AvroEncoder)(nil)

// AvroEncoder writes cycle reports as an Avro object container file.
// "gzip" compresses the whole file; "deflate" and "snappy" use the
// container's block codecs.
type AvroEncoder struct {
	codec       *goavro.Codec
	compression string
}

// NewAvroEncoder creates a new Avro encoder with specified compression.
func NewAvroEncoder(compression string) (*AvroEncoder, error) {
	codec, err := goavro.NewCodec(avroSchema())
	if err != nil {
		return nil, fmt.Errorf("failed to create avro codec: %w", err)
	}
	return &AvroEncoder{
		codec:       codec,
		compression: strings.ToLower(compression),
	}, nil
}

// avroSchema returns the Avro schema for cycle reports.
func avroSchema() string {
	return `{
		"type": "record",
		"name": "CycleReport",
		"namespace": "com.satbqueue.marking",
		"fields": [
			{"name": "id", "type": "string"},
			{"name": "sequence", "type": "long"},
			{"name": "outcome", "type": "string"},
			{"name": "started_at", "type": "string"},
			{"name": "finished_at", "type": "string"},
			{"name": "start_pause_ns", "type": "long"},
			{"name": "final_pause_ns", "type": "long"},
			{"name": "mutators", "type": "long"},
			{"name": "buffers_enqueued", "type": "long"},
			{"name": "buffers_processed", "type": "long"},
			{"name": "buffers_abandoned", "type": "long"},
			{"name": "entries_processed", "type": "long"},
			{"name": "entries_filtered", "type": "long"},
			{"name": "objects_marked", "type": "long"}
		]
	}`
}

func (e *AvroEncoder) blockCodec() string {
	switch e.compression {
	case "deflate":
		return goavro.CompressionDeflateLabel
	case "snappy":
		return goavro.CompressionSnappyLabel
	default:
		return goavro.CompressionNullLabel
	}
}

// Encode writes reports to filePath and returns the file size.
func (e *AvroEncoder) Encode(filePath string, reports []report.CycleReport) (int64, error) {
	if len(reports) == 0 {
		return 0, fmt.Errorf("no reports to encode")
	}

	file, err := os.Create(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	var writer io.Writer = file
	var gzipWriter *gzip.Writer
	if e.compression == "gzip" {
		gzipWriter = gzip.NewWriter(file)
		writer = gzipWriter
	}

	ocfWriter, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               writer,
		Codec:           e.codec,
		CompressionName: e.blockCodec(),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create OCF writer: %w", err)
	}

	records := make([]interface{}, 0, len(reports))
	for _, r := range reports {
		records = append(records, toAvroMap(r))
	}
	if err := ocfWriter.Append(records); err != nil {
		return 0, fmt.Errorf("failed to write reports: %w", err)
	}

	if gzipWriter != nil {
		if err := gzipWriter.Close(); err != nil {
			return 0, fmt.Errorf("failed to close gzip writer: %w", err)
		}
	}
	if err := file.Close(); err != nil {
		return 0, fmt.Errorf("failed to close file: %w", err)
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to stat file: %w", err)
	}
	return info.Size(), nil
}

func toAvroMap(r report.CycleReport) map[string]interface{} {
	return map[string]interface{}{
		"id":                r.ID,
		"sequence":          r.Sequence,
		"outcome":           string(r.Outcome),
		"started_at":        r.StartedAt.UTC().Format(time.RFC3339Nano),
		"finished_at":       r.FinishedAt.UTC().Format(time.RFC3339Nano),
		"start_pause_ns":    r.StartPause.Nanoseconds(),
		"final_pause_ns":    r.FinalPause.Nanoseconds(),
		"mutators":          int64(r.Mutators),
		"buffers_enqueued":  r.BuffersEnqueued,
		"buffers_processed": r.BuffersProcessed,
		"buffers_abandoned": r.BuffersAbandoned,
		"entries_processed": r.EntriesProcessed,
		"entries_filtered":  r.EntriesFiltered,
		"objects_marked":    r.ObjectsMarked,
	}
}

// Format returns the file format name.
func (e *AvroEncoder) Format() string {
	return FormatAvro
}

// FileExtension returns the file extension.
func (e *AvroEncoder) FileExtension() string {
	if e.compression == "gzip" {
		return ".avro.gz"
	}
	return ".avro"
}
