package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/vybium/vybium-recursion/internal/vybium-recursion/core"
)

// Config represents the configuration for a recursive proving run
type Config struct {
	// Execution parameters
	ShardSize int `json:"shard_size"` // Cycles per execution segment (power of 2)

	// Resource parameters
	MaxTraceCells int `json:"max_trace_cells"` // Upper bound on rows*width a single prove call may commit
	Workers       int `json:"workers"`         // Parallel stage invocations

	// Hash function
	HashFunction string                  `json:"hash_function"` // Only "poseidon" is supported
	Poseidon     core.PoseidonParameters `json:"poseidon"`

	// FRI parameters of the reference backend
	FRIQueries int `json:"fri_queries"`

	// Segment window
	SkipSegments Bound `json:"skip_segments"`
	MaxSegments  Bound `json:"max_segments"`

	// Retry policy for resource exhaustion
	ProvingRetries uint64        `json:"proving_retries"`
	RetryBackoff   time.Duration `json:"retry_backoff"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		ShardSize:      1 << 10,
		MaxTraceCells:  1 << 24,
		Workers:        4,
		HashFunction:   "poseidon",
		Poseidon:       core.DefaultPoseidonParameters(),
		FRIQueries:     16,
		SkipSegments:   Unbounded,
		MaxSegments:    Unbounded,
		ProvingRetries: 0,
		RetryBackoff:   100 * time.Millisecond,
	}
}

// LoadConfig reads a JSON configuration from path on top of DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if !IsPowerOfTwo(c.ShardSize) {
		return fmt.Errorf("shard size must be a power of 2, got %d", c.ShardSize)
	}

	if c.MaxTraceCells <= 0 {
		return fmt.Errorf("max trace cells must be positive")
	}

	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}

	if c.HashFunction != "poseidon" {
		return fmt.Errorf("hash function must be 'poseidon', got '%s'", c.HashFunction)
	}

	if err := c.Poseidon.Validate(); err != nil {
		return err
	}

	if c.FRIQueries <= 0 {
		return fmt.Errorf("FRI queries must be positive")
	}

	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff must be non-negative")
	}

	return nil
}

// HashConfig derives the digest hash configuration.
func (c *Config) HashConfig() (core.HashConfig, error) {
	if c.Poseidon == core.DefaultPoseidonParameters() {
		return core.DefaultHashConfig(), nil
	}
	return core.NewHashConfig(c.Poseidon)
}

// WithShardSize sets the shard size
func (c *Config) WithShardSize(size int) *Config {
	c.ShardSize = size
	return c
}

// WithMaxTraceCells sets the per-invocation trace bound
func (c *Config) WithMaxTraceCells(cells int) *Config {
	c.MaxTraceCells = cells
	return c
}

// WithWorkers sets the worker count
func (c *Config) WithWorkers(workers int) *Config {
	c.Workers = workers
	return c
}

// WithSegmentWindow sets the segment window
func (c *Config) WithSegmentWindow(skip, take Bound) *Config {
	c.SkipSegments = skip
	c.MaxSegments = take
	return c
}

// WithRetries sets the retry policy
func (c *Config) WithRetries(retries uint64, backoff time.Duration) *Config {
	c.ProvingRetries = retries
	c.RetryBackoff = backoff
	return c
}

// Clone creates a copy of the configuration
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
