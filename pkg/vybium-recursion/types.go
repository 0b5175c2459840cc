package vybiumrecursion

import (
	recursion "github.com/vybium/vybium-recursion/internal/vybium-recursion"
	"github.com/vybium/vybium-recursion/internal/vybium-recursion/core"
	"github.com/vybium/vybium-recursion/internal/vybium-recursion/protocols"
	"github.com/vybium/vybium-recursion/internal/vybium-recursion/utils"
)

// Config configures a proving run
type Config = utils.Config

// Bound is an optional segment count
type Bound = utils.Bound

// Digest is an 8 element public values digest
type Digest = core.Digest

// Word is a 32-bit value split into byte limbs
type Word = core.Word

// RecursionPublicValues are the public values of core, compress and shrink proofs
type RecursionPublicValues = protocols.RecursionPublicValues

// RootPublicValues are the public values of a root proof
type RootPublicValues = protocols.RootPublicValues

// ShardProof is a single stage proof
type ShardProof = protocols.ShardProof

// RootProof is the output of a complete run
type RootProof = recursion.RootProof

// Stdin holds program input
type Stdin = recursion.Stdin

// ProverComponents binds a prover to each stage
type ProverComponents = recursion.ProverComponents

// State is the progress of a proving run
type State = recursion.State

// Option configures a Prover
type Option = recursion.Option

var (
	// Unbounded applies no segment bound
	Unbounded = utils.Unbounded

	// Bounded limits a segment count to n
	Bounded = utils.Bounded

	// NewStdin creates an empty program input
	NewStdin = recursion.NewStdin

	// WithLogger sets the logger of a Prover
	WithLogger = recursion.WithLogger

	// WithTransitionHook observes state changes
	WithTransitionHook = recursion.WithTransitionHook
)

// Run states
const (
	StateInitial     = recursion.StateInitial
	StateBaseProven  = recursion.StateBaseProven
	StateCompressing = recursion.StateCompressing
	StateShrunk      = recursion.StateShrunk
	StateRooted      = recursion.StateRooted
)

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return utils.DefaultConfig()
}

// LoadConfig reads a JSON configuration file
func LoadConfig(path string) (*Config, error) {
	return utils.LoadConfig(path)
}

// NewRootPublicValues builds root public values
func NewRootPublicValues(vkDigest Digest, committedValueDigest [8]Word, digest Digest) RootPublicValues {
	return protocols.NewRootPublicValues(vkDigest, committedValueDigest, digest)
}
