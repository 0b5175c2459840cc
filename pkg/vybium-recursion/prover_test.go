package vybiumrecursion

import (
	"context"
	"encoding/binary"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func program(n int) []byte {
	out := make([]byte, 0, 4*n)
	for i := 0; i < n; i++ {
		out = binary.LittleEndian.AppendUint32(out, uint32(3*i+1))
	}
	return out
}

func TestProverEndToEnd(t *testing.T) {
	var states []State
	config := DefaultConfig().WithShardSize(8)
	prover, err := NewProver(config, WithTransitionHook(func(_, to State) { states = append(states, to) }))
	require.NoError(t, err)

	stdin := NewStdin()
	stdin.WriteUint32(7)
	root, err := prover.Prove(context.Background(), program(30), stdin)
	require.NoError(t, err)
	assert.Equal(t, 4, root.Segments)
	assert.Equal(t, 2, root.Rounds)
	assert.Equal(t, StateRooted, states[len(states)-1])
	require.NoError(t, prover.Verify(root))

	cycles, err := prover.Cycles(program(30), stdin)
	require.NoError(t, err)
	assert.Equal(t, uint64(30), cycles)

	path := filepath.Join(t.TempDir(), "root.proof")
	require.NoError(t, SaveProof(path, root))
	loaded, err := LoadProof(path)
	require.NoError(t, err)
	require.NoError(t, prover.Verify(loaded))
	assert.Equal(t, VKDigestBN254(root), VKDigestBN254(loaded))
	assert.Equal(t, CommittedValueDigest(root), CommittedValueDigest(loaded))
}

func TestProverErrors(t *testing.T) {
	_, err := NewProver(DefaultConfig().WithWorkers(0))
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrInvalidConfig))
	assert.True(t, errors.Is(err, &Error{Kind: ErrInvalidConfig}))

	_, err = NewProverWithComponents(DefaultConfig(), nil)
	assert.True(t, IsKind(err, ErrCapabilityMismatch))

	prover, err := NewProver(nil)
	require.NoError(t, err)
	_, err = prover.Prove(context.Background(), []byte{1}, nil)
	assert.True(t, IsKind(err, ErrIOFailure))

	budget := DefaultConfig().WithShardSize(8).WithMaxTraceCells(4)
	prover, err = NewProver(budget)
	require.NoError(t, err)
	_, err = prover.Prove(context.Background(), program(8), nil)
	assert.True(t, errors.Is(err, ErrResourceExhausted))
	assert.True(t, IsKind(err, ErrProvingFailure))
}
