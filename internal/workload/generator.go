// Package workload generates the reference overwrites performed by
// simulated mutator threads.
package workload

import (
	"fmt"

	"github.com/jaswdr/faker"

	"github.com/jittakal/satbqueue/pkg/satb"
)

// Config contains workload generator configuration.
type Config struct {
	// HeapObjects is the number of objects in the simulated heap. Generated
	// entries are object ids in [1, HeapObjects].
	HeapObjects int
	// NullPercent is the share of overwritten slots that held null.
	NullPercent int
	// BatchSize is the number of overwrites per batch.
	BatchSize int
}

// Validate checks the workload configuration.
func (c Config) Validate() error {
	if c.HeapObjects <= 0 {
		return fmt.Errorf("heap objects must be positive, got %d", c.HeapObjects)
	}
	if c.NullPercent < 0 || c.NullPercent > 100 {
		return fmt.Errorf("null percent must be in [0, 100], got %d", c.NullPercent)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	return nil
}

// Generator produces random overwritten reference values. A Generator is
// not safe for concurrent use; give each mutator its own.
type Generator struct {
	config Config
	faker  faker.Faker
}

// NewGenerator creates a new workload generator.
func NewGenerator(config Config) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workload config: %w", err)
	}
	return &Generator{
		config: config,
		faker:  faker.New(),
	}, nil
}

// Next returns the previous value of one overwritten reference slot.
func (g *Generator) Next() satb.Entry {
	if g.config.NullPercent > 0 && g.faker.IntBetween(1, 100) <= g.config.NullPercent {
		return 0
	}
	return satb.Entry(g.faker.IntBetween(1, g.config.HeapObjects))
}

// Batch returns BatchSize entries, reusing dst's storage when it is large
// enough.
func (g *Generator) Batch(dst []satb.Entry) []satb.Entry {
	dst = dst[:0]
	for i := 0; i < g.config.BatchSize; i++ {
		dst = append(dst, g.Next())
	}
	return dst
}
