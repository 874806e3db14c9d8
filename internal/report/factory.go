package report

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/jittakal/satbqueue/internal/config/dto"
	"github.com/jittakal/satbqueue/pkg/report"
)

// New creates the reporter selected by cfg.Sink.
func New(cfg dto.ReportConfig, logger *zap.Logger, metrics MetricsCollector) (report.Reporter, error) {
	switch cfg.Sink {
	case "", SinkLog:
		return NewLogReporter(logger, metrics), nil
	case SinkFile:
		reporter, err := NewFileReporter(cfg.File, logger, metrics)
		if err != nil {
			return nil, err
		}
		return reporter, nil
	case SinkKafka:
		reporter, err := NewKafkaReporter(cfg.Kafka, logger, metrics)
		if err != nil {
			return nil, err
		}
		return reporter, nil
	default:
		return nil, fmt.Errorf("unsupported report sink: %s", cfg.Sink)
	}
}
