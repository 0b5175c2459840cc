package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

func TestPowerOfTwoHelpers(t *testing.T) {
	assert.True(t, IsPowerOfTwo(1))
	assert.True(t, IsPowerOfTwo(1024))
	assert.False(t, IsPowerOfTwo(0))
	assert.False(t, IsPowerOfTwo(-4))
	assert.False(t, IsPowerOfTwo(6))

	for n, want := range map[int]int{-1: 1, 0: 1, 1: 1, 2: 2, 3: 4, 5: 8, 1024: 1024, 1025: 2048} {
		assert.Equal(t, want, NextPowerOfTwo(n), "NextPowerOfTwo(%d)", n)
	}
	for n, want := range map[int]int{0: 0, 1: 0, 2: 1, 3: 2, 4: 2, 5: 3, 8: 3} {
		assert.Equal(t, want, CeilLog2(n), "CeilLog2(%d)", n)
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	require.NotNil(t, config)
	require.NoError(t, config.Validate())

	hc, err := config.HashConfig()
	require.NoError(t, err)
	assert.False(t, hc.IsZero())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"shard size not a power of two", func(c *Config) { c.ShardSize = 1000 }},
		{"zero trace cells", func(c *Config) { c.MaxTraceCells = 0 }},
		{"zero workers", func(c *Config) { c.Workers = 0 }},
		{"unknown hash", func(c *Config) { c.HashFunction = "sha3" }},
		{"bad poseidon", func(c *Config) { c.Poseidon.Rate = c.Poseidon.Width }},
		{"zero queries", func(c *Config) { c.FRIQueries = 0 }},
		{"negative backoff", func(c *Config) { c.RetryBackoff = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfigBuildersAndClone(t *testing.T) {
	cfg := DefaultConfig().
		WithShardSize(64).
		WithMaxTraceCells(4096).
		WithWorkers(2).
		WithSegmentWindow(Bounded(1), Bounded(2)).
		WithRetries(3, time.Millisecond)

	clone := cfg.Clone()
	assert.Equal(t, cfg, clone)

	clone.Workers = 9
	assert.Equal(t, 2, cfg.Workers)

	n, ok := cfg.MaxSegments.Get()
	assert.True(t, ok)
	assert.Equal(t, 2, n)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"shard_size": 16, "workers": 2, "max_segments": 3}`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.ShardSize)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, "poseidon", cfg.HashFunction)
	n, ok := cfg.MaxSegments.Get()
	assert.True(t, ok)
	assert.Equal(t, 3, n)
	_, ok = cfg.SkipSegments.Get()
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(path, []byte(`{"shard_size": 3}`), 0o600))
	_, err = LoadConfig(path)
	assert.Error(t, err)

	_, err = LoadConfig(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestChannelDeterminism(t *testing.T) {
	a := NewChannel("test")
	b := NewChannel("test")
	a.SendElements([]field.Element{field.New(1), field.New(2)})
	b.SendElements([]field.Element{field.New(1), field.New(2)})

	assert.Equal(t, a.State(), b.State())
	assert.Equal(t, a.ReceiveRandomFieldElements(3), b.ReceiveRandomFieldElements(3))
	assert.Equal(t, a.String(), b.String())

	c := NewChannel("other")
	c.SendElements([]field.Element{field.New(1), field.New(2)})
	assert.NotEqual(t, a.State(), c.State())
}

func TestChannelSendChangesState(t *testing.T) {
	ch := NewChannel("test")
	before := ch.State()
	ch.Send([]byte("data"))
	assert.NotEqual(t, before, ch.State())
	assert.Len(t, ch.Proof(), 2)
}
