package marking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jittakal/satbqueue/internal/markqueue"
	"github.com/jittakal/satbqueue/pkg/satb"
)

// DrainerConfig contains background drainer configuration.
type DrainerConfig struct {
	Workers      int
	PollInterval time.Duration
}

// Drainer runs background workers that process completed buffers as they
// appear. Workers wake on the queue set notification and on a poll ticker,
// so buffers below the signalling threshold are picked up as well.
type Drainer struct {
	qs       *markqueue.QueueSet
	consumer satb.BufferConsumer
	cfg      DrainerConfig
	logger   *zap.Logger

	// Workers hold gate for reading around each buffer; Exclusive takes it
	// for writing to wait out buffers in flight.
	gate sync.RWMutex

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewDrainer creates a drainer feeding completed buffers of qs to consumer.
func NewDrainer(qs *markqueue.QueueSet, consumer satb.BufferConsumer, cfg DrainerConfig, logger *zap.Logger) (*Drainer, error) {
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("drainer workers must not be negative, got %d", cfg.Workers)
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("drainer poll interval must be positive, got %v", cfg.PollInterval)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Drainer{
		qs:       qs,
		consumer: consumer,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Start launches the workers. They run until ctx is cancelled or Stop is
// called.
func (d *Drainer) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return fmt.Errorf("drainer already running")
	}

	ctx, d.cancel = context.WithCancel(ctx)
	d.running = true
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.run(ctx, i)
	}

	d.logger.Info("Drainer started",
		zap.Int("workers", d.cfg.Workers),
		zap.Duration("poll_interval", d.cfg.PollInterval),
	)
	return nil
}

// Stop cancels the workers and waits for them to exit.
func (d *Drainer) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.cancel()
	d.running = false
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info("Drainer stopped")
}

func (d *Drainer) run(ctx context.Context, worker int) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.qs.Notify():
		case <-ticker.C:
		}

		if n := d.drain(); n > 0 {
			d.logger.Debug("Drained completed buffers",
				zap.Int("worker", worker),
				zap.Int("buffers", n),
			)
		}
	}
}

func (d *Drainer) drain() int {
	n := 0
	for {
		d.gate.RLock()
		ok := d.qs.DrainOne(d.consumer)
		d.gate.RUnlock()
		if !ok {
			return n
		}
		n++
	}
}

// Exclusive runs fn while no worker is processing a buffer.
func (d *Drainer) Exclusive(fn func()) {
	d.gate.Lock()
	defer d.gate.Unlock()
	fn()
}

// DrainAll processes completed buffers on the calling goroutine until none
// remain and returns how many were processed. Workers are held off for the
// duration.
func (d *Drainer) DrainAll() int {
	n := 0
	d.Exclusive(func() {
		for d.qs.DrainOne(d.consumer) {
			n++
		}
	})
	return n
}
