package core

import (
	"fmt"
	"sync"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

// HashConfig holds the permutation used for public value digests. It is a
// value type; every hasher it hands out works on its own clone of the
// permutation and its own sponge state.
type HashConfig struct {
	perm *Permutation
}

var (
	defaultPermOnce sync.Once
	defaultPerm     *Permutation
	defaultPermErr  error
)

// NewHashConfig derives a configuration from params.
func NewHashConfig(params PoseidonParameters) (HashConfig, error) {
	perm, err := NewPermutation(params)
	if err != nil {
		return HashConfig{}, err
	}
	return HashConfig{perm: perm}, nil
}

// DefaultHashConfig returns the configuration for DefaultPoseidonParameters.
// The constants are derived once per process.
func DefaultHashConfig() HashConfig {
	defaultPermOnce.Do(func() {
		defaultPerm, defaultPermErr = NewPermutation(DefaultPoseidonParameters())
	})
	if defaultPermErr != nil {
		panic(fmt.Sprintf("default poseidon parameters are invalid: %v", defaultPermErr))
	}
	return HashConfig{perm: defaultPerm}
}

// IsZero reports whether the configuration was never initialized.
func (c HashConfig) IsZero() bool {
	return c.perm == nil
}

// Parameters returns the Poseidon parameters of the configuration.
func (c HashConfig) Parameters() PoseidonParameters {
	return c.perm.Parameters()
}

// Hasher returns a sponge over a fresh clone of the permutation.
func (c HashConfig) Hasher() *PaddingFreeSponge {
	return NewPaddingFreeSponge(c.perm.Clone())
}

// HashSlice is shorthand for c.Hasher().HashSlice(input).
func (c HashConfig) HashSlice(input []field.Element) Digest {
	return c.Hasher().HashSlice(input)
}

// PaddingFreeSponge hashes in overwrite mode without padding. Inputs of
// different lengths that differ only by trailing zeros collide, so it must
// only be used on fixed-length layouts.
type PaddingFreeSponge struct {
	perm *Permutation
}

// NewPaddingFreeSponge wraps perm.
func NewPaddingFreeSponge(perm *Permutation) *PaddingFreeSponge {
	return &PaddingFreeSponge{perm: perm}
}

// HashSlice absorbs input rate elements at a time, permuting after each
// chunk, and returns the first DigestWidth state elements.
func (s *PaddingFreeSponge) HashSlice(input []field.Element) Digest {
	state := make([]field.Element, s.perm.Width())
	for i := range state {
		state[i] = field.Zero
	}

	rate := s.perm.Rate()
	for start := 0; start < len(input); start += rate {
		end := min(start+rate, len(input))
		copy(state, input[start:end])
		s.perm.Permute(state)
	}

	return DigestFromSlice(state)
}
