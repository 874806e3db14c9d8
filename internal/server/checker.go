package server

import (
	"context"
	"strconv"
	"sync/atomic"

	"github.com/jittakal/satbqueue/internal/markqueue"
)

// StatsSource exposes a queue set snapshot.
type StatsSource interface {
	Stats() markqueue.Stats
}

// Ensure implementation satisfies interface at compile time.
var _ HealthChecker = (*QueueSetChecker)(nil)

// QueueSetChecker reports readiness once the simulator has started and
// publishes queue set statistics as readiness checks.
type QueueSetChecker struct {
	source StatsSource
	ready  atomic.Bool
	alive  atomic.Bool
}

// NewQueueSetChecker creates a checker that is alive but not yet ready.
func NewQueueSetChecker(source StatsSource) *QueueSetChecker {
	c := &QueueSetChecker{source: source}
	c.alive.Store(true)
	return c
}

// SetReady marks the simulator ready or not ready.
func (c *QueueSetChecker) SetReady(ready bool) {
	c.ready.Store(ready)
}

// SetAlive marks the process alive or not alive.
func (c *QueueSetChecker) SetAlive(alive bool) {
	c.alive.Store(alive)
}

func (c *QueueSetChecker) Liveness() bool {
	return c.alive.Load()
}

func (c *QueueSetChecker) Readiness(ctx context.Context) bool {
	return c.alive.Load() && c.ready.Load()
}

func (c *QueueSetChecker) IsHealthy() bool {
	return c.Liveness() && c.ready.Load()
}

// GetStatus renders the current queue set statistics.
func (c *QueueSetChecker) GetStatus() map[string]string {
	stats := c.source.Stats()
	marking := "idle"
	if stats.Active {
		marking = "active"
	}
	return map[string]string{
		"marking":           marking,
		"process_completed": strconv.FormatBool(stats.ProcessCompleted),
		"completed_buffers": strconv.Itoa(stats.CompletedBuffers),
		"free_buffers":      strconv.Itoa(stats.FreeBuffers),
		"allocated_buffers": strconv.FormatInt(stats.AllocatedBuffers, 10),
		"buffers_processed": strconv.FormatInt(stats.BuffersProcessed, 10),
		"buffers_abandoned": strconv.FormatInt(stats.BuffersAbandoned, 10),
	}
}
