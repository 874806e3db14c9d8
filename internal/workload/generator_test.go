package workload

import (
	"testing"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "valid", config: Config{HeapObjects: 100, NullPercent: 5, BatchSize: 10}},
		{name: "all null", config: Config{HeapObjects: 1, NullPercent: 100, BatchSize: 1}},
		{name: "no heap", config: Config{HeapObjects: 0, BatchSize: 10}, wantErr: true},
		{name: "null percent above 100", config: Config{HeapObjects: 10, NullPercent: 101, BatchSize: 10}, wantErr: true},
		{name: "negative null percent", config: Config{HeapObjects: 10, NullPercent: -1, BatchSize: 10}, wantErr: true},
		{name: "empty batch", config: Config{HeapObjects: 10}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewGenerator_InvalidConfig(t *testing.T) {
	if _, err := NewGenerator(Config{}); err == nil {
		t.Error("NewGenerator() with zero config should fail")
	}
}

func TestGenerator_NextInRange(t *testing.T) {
	g, err := NewGenerator(Config{HeapObjects: 50, NullPercent: 0, BatchSize: 1})
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}

	for i := 0; i < 1000; i++ {
		e := g.Next()
		if e.Null() {
			t.Fatal("Next() returned null with NullPercent 0")
		}
		if e < 1 || e > 50 {
			t.Fatalf("Next() = %d, want in [1, 50]", e)
		}
	}
}

func TestGenerator_AllNull(t *testing.T) {
	g, err := NewGenerator(Config{HeapObjects: 50, NullPercent: 100, BatchSize: 1})
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}
	for i := 0; i < 100; i++ {
		if e := g.Next(); !e.Null() {
			t.Fatalf("Next() = %d, want null", e)
		}
	}
}

func TestGenerator_Batch(t *testing.T) {
	g, err := NewGenerator(Config{HeapObjects: 10, NullPercent: 20, BatchSize: 32})
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}

	batch := g.Batch(nil)
	if len(batch) != 32 {
		t.Fatalf("len(Batch()) = %d, want 32", len(batch))
	}

	again := g.Batch(batch)
	if len(again) != 32 {
		t.Errorf("len(Batch(reused)) = %d, want 32", len(again))
	}
	if &again[0] != &batch[0] {
		t.Error("Batch should reuse the provided storage")
	}
}
