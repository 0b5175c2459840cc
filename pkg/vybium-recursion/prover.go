package vybiumrecursion

import (
	"context"

	recursion "github.com/vybium/vybium-recursion/internal/vybium-recursion"
)

// Prover proves programs on the reference word machine
type Prover struct {
	pipeline *recursion.Pipeline
}

// NewProver creates a prover with the reference CPU backend
func NewProver(config *Config, opts ...Option) (*Prover, error) {
	if config == nil {
		config = DefaultConfig()
	}
	components, err := recursion.DefaultProverComponents(config)
	if err != nil {
		return nil, err
	}
	return NewProverWithComponents(config, components, opts...)
}

// NewProverWithComponents creates a prover with custom stage provers
func NewProverWithComponents(config *Config, components ProverComponents, opts ...Option) (*Prover, error) {
	if config == nil {
		config = DefaultConfig()
	}
	pipeline, err := recursion.NewPipeline(components, recursion.NewWordMachine(config.ShardSize), config, opts...)
	if err != nil {
		return nil, err
	}
	return &Prover{pipeline: pipeline}, nil
}

// Prove proves the execution of program on stdin down to a root proof
func (p *Prover) Prove(ctx context.Context, program []byte, stdin *Stdin) (*RootProof, error) {
	return p.pipeline.Prove(ctx, program, stdin)
}

// Verify checks a root proof
func (p *Prover) Verify(root *RootProof) error {
	return p.pipeline.Verify(root)
}

// VerifyPartial checks the proof of a windowed run and returns the public
// values it exposes
func (p *Prover) VerifyPartial(root *RootProof) (RecursionPublicValues, error) {
	return p.pipeline.VerifyPartial(root)
}

// Cycles returns the cycle count of program on stdin
func (p *Prover) Cycles(program []byte, stdin *Stdin) (uint64, error) {
	return recursion.GetCycles(recursion.NewWordMachine(1), program, stdin)
}

// SaveProof writes a root proof to path
func SaveProof(path string, root *RootProof) error {
	return recursion.SaveSnapshot(path, root)
}

// LoadProof reads a root proof from path
func LoadProof(path string) (*RootProof, error) {
	return recursion.LoadSnapshot(path)
}

// VKDigestBN254 returns the vk digest of a root proof as a decimal BN254
// scalar
func VKDigestBN254(root *RootProof) string {
	digest := recursion.VKDigestBN254(*root.PublicValues.VKDigest())
	return digest.String()
}

// CommittedValueDigest returns the 32 bytes the program committed to
func CommittedValueDigest(root *RootProof) [32]byte {
	return recursion.CommittedValueDigestBytes(root)
}
