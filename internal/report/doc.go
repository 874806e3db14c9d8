// Package report implements the sinks that publish mark cycle reports.
//
// Three sinks are available, selected by the report.sink setting:
//
//   - log: every report is written as a structured zap entry
//   - file: reports are batched and written as Avro or Parquet files
//   - kafka: every report is published as a JSON CloudEvent
//
// # Creating a Reporter
//
// Use New to build the configured sink:
//
//	reporter, err := report.New(cfg.Report, logger, metrics)
//	if err != nil {
//	    return err
//	}
//	defer reporter.Close()
//
// # File Sink
//
// The file sink buffers reports until file.batch_size is reached and writes
// them with an Encoder. Close flushes whatever is still pending. Avro files
// accept gzip, deflate or snappy compression; Parquet files accept snappy,
// gzip, lz4, zstd or uncompressed.
//
// # Object Storage Upload
//
// When file.upload.backend is s3, gcs or azure every written file is also
// uploaded under file.upload.prefix, keeping the dt=YYYY-MM-DD partition
// in the object key. A failed upload leaves the file on disk and is retried
// on the next flush.
//
// # Kafka Sink
//
// The kafka sink uses a sarama SyncProducer. Security follows the
// security_protocol and sasl_mechanism settings: PLAIN, SCRAM-SHA-256,
// SCRAM-SHA-512 and AWS_MSK_IAM are supported.
//
// # Errors
//
// Publishing failures are returned as *errors.ReportError so callers can
// decide whether to retry with errors.IsRetryable.
package report
