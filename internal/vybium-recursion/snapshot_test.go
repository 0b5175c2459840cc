package vybiumrecursion

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-recursion/internal/vybium-recursion/core"
	"github.com/vybium/vybium-recursion/internal/vybium-recursion/protocols"
	"github.com/vybium/vybium-recursion/internal/vybium-recursion/utils"
)

func TestSnapshotRoundTrip(t *testing.T) {
	p := newTestPipeline(t, testConfig(), nil)
	root, err := p.Prove(context.Background(), testProgram(12), nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "root.proof")
	require.NoError(t, SaveSnapshot(path, root))

	loaded, err := LoadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, root, loaded)
	require.NoError(t, p.Verify(loaded))

	first, err := EncodeSnapshot(root)
	require.NoError(t, err)
	second, err := EncodeSnapshot(loaded)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSnapshotKeepsPartialFlag(t *testing.T) {
	cfg := testConfig().WithSegmentWindow(utils.Bounded(1), utils.Unbounded)
	p := newTestPipeline(t, cfg, nil)
	root, err := p.Prove(context.Background(), testProgram(12), nil)
	require.NoError(t, err)
	require.True(t, root.Partial)

	data, err := EncodeSnapshot(root)
	require.NoError(t, err)
	loaded, err := DecodeSnapshot(data)
	require.NoError(t, err)
	assert.True(t, loaded.Partial)
	assert.True(t, protocols.IsKind(p.Verify(loaded), protocols.ErrPublicValuesMismatch))
	_, err = p.VerifyPartial(loaded)
	require.NoError(t, err)
}

func TestSnapshotRejectsCorruption(t *testing.T) {
	p := newTestPipeline(t, testConfig(), nil)
	root, err := p.Prove(context.Background(), testProgram(4), nil)
	require.NoError(t, err)
	data, err := EncodeSnapshot(root)
	require.NoError(t, err)

	flipped := append([]byte(nil), data...)
	flipped[len(flipped)-1] ^= 0xff
	_, err = DecodeSnapshot(flipped)
	assert.True(t, protocols.IsKind(err, protocols.ErrIOFailure))

	_, err = DecodeSnapshot(data[:10])
	assert.True(t, protocols.IsKind(err, protocols.ErrIOFailure))

	_, err = DecodeSnapshot(append([]byte("XXXX"), data[4:]...))
	assert.True(t, protocols.IsKind(err, protocols.ErrIOFailure))

	_, err = LoadSnapshot(filepath.Join(t.TempDir(), "missing"))
	assert.True(t, protocols.IsKind(err, protocols.ErrIOFailure))

	_, err = EncodeSnapshot(nil)
	assert.True(t, protocols.IsKind(err, protocols.ErrIOFailure))
}

func TestLoadProgramAndCycles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "program.bin")
	require.NoError(t, os.WriteFile(path, testProgram(6), 0o600))

	program, err := LoadProgram(path)
	require.NoError(t, err)
	cycles, err := GetCycles(NewWordMachine(4), program, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), cycles)

	_, err = LoadProgram(filepath.Join(dir, "missing.bin"))
	assert.True(t, protocols.IsKind(err, protocols.ErrIOFailure))

	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o600))
	_, err = LoadProgram(path)
	assert.True(t, protocols.IsKind(err, protocols.ErrIOFailure))

	_, err = GetCycles(NewWordMachine(4), []byte{1}, nil)
	assert.True(t, protocols.IsKind(err, protocols.ErrProvingFailure))
}

func TestWordMachineSegments(t *testing.T) {
	stdin := NewStdin()
	stdin.Write([]byte{1, 0, 0, 0, 2})
	record, err := NewWordMachine(4).Execute(testProgram(10), stdin)
	require.NoError(t, err)

	assert.Equal(t, uint64(10), record.Cycles())
	require.Equal(t, 3, record.NumSegments())

	var segments []Segment
	for seg := range record.Segments() {
		segments = append(segments, seg)
	}
	assert.Len(t, segments[0].Rows, 4)
	assert.Len(t, segments[2].Rows, 2)
	assert.Equal(t, uint64(DefaultPCStart+4*protocols.PCStep), segments[1].StartPC)
	assert.True(t, segments[0].NextPC.Equal(field.New(segments[1].StartPC)))
	assert.True(t, segments[2].NextPC.Equal(protocols.HaltPC))

	// seed 1 + 2, then 1 + ... + 10
	last := segments[2].Rows[1]
	assert.Equal(t, uint64(3+55), last[protocols.ColAcc].Value())

	hc := core.DefaultHashConfig()
	vk := core.DigestFromUint64s([core.DigestWidth]uint64{1, 2, 3, 4, 5, 6, 7, 8})
	for _, seg := range segments {
		pv := record.PublicValues(hc, seg, vk)
		require.NoError(t, protocols.AssertRecursionPublicValuesValid(hc, &pv))
		require.NoError(t, protocols.NewRiscvAir().Eval(&protocols.Witness{Rows: seg.Rows, PublicValues: pv.Slice()}))
	}

	_, err = (&WordMachine{ShardSize: 0}).Execute(testProgram(4), nil)
	assert.Error(t, err)
}

func TestVKDigestBN254(t *testing.T) {
	a := core.DigestFromUint64s([core.DigestWidth]uint64{0, 0, 0, 0, 0, 0, 0, 7})
	got := VKDigestBN254(a)
	assert.Equal(t, "7", got.String())

	b := core.DigestFromUint64s([core.DigestWidth]uint64{0, 0, 0, 0, 0, 0, 1, 0})
	got = VKDigestBN254(b)
	assert.Equal(t, "18446744073709551616", got.String())

	c := core.DigestFromUint64s([core.DigestWidth]uint64{1, 2, 3, 4, 5, 6, 7, 8})
	first, second := VKDigestBN254(c), VKDigestBN254(c)
	assert.True(t, first.Equal(&second))
}
