package protocols

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-recursion/internal/vybium-recursion/core"
)

func testVK() core.Digest {
	return core.DigestFromUint64s([core.DigestWidth]uint64{11, 12, 13, 14, 15, 16, 17, 18})
}

// segmentPublicValues describes shard `shard` of n instructions starting at
// startPC, with a valid digest.
func segmentPublicValues(cfg core.HashConfig, startPC uint64, shard uint64, n int, halt bool) RecursionPublicValues {
	pv := NewRecursionPublicValues()
	pv.StartPC = field.New(startPC)
	pv.NextPC = field.New(startPC + uint64(n)*PCStep)
	if halt {
		pv.NextPC = HaltPC
	}
	pv.StartShard = field.New(shard)
	pv.NextShard = field.New(shard + 1)
	pv.StartExecutionShard = field.New(shard)
	pv.NextExecutionShard = field.New(shard + 1)
	pv.VKDigest = testVK()
	pv.ContainsExecutionShard = field.One
	pv.IsComplete = boolElement(IsCompleteExecution(&pv))
	if halt {
		pv.CommittedValueDigest[0] = core.WordFromUint32(0xcafebabe)
	}
	pv.Digest = RecursionPublicValuesDigest(cfg, &pv)
	return pv
}

func randomPublicValues(values []uint64) RecursionPublicValues {
	var arr [RecursionPublicValuesLen]field.Element
	for i := range arr {
		arr[i] = field.New(values[i])
	}
	return RecursionPublicValuesFromArray(arr)
}

func TestPublicValuesLayout(t *testing.T) {
	assert.Equal(t, RecursionPublicValuesLen-core.DigestWidth, NumPVElmsToHash)
	assert.Equal(t, 81, NumPVElmsToHash)
	assert.Equal(t, 48, RootPublicValuesLen)

	pv := NewRecursionPublicValues()
	pv.CommittedValueDigest[0] = core.WordFromUint32(0x04030201)
	pv.StartPC = field.New(100)
	pv.ExitCode = field.New(7)
	pv.Digest[7] = field.New(99)

	arr := pv.AsArray()
	assert.Equal(t, uint64(1), arr[0].Value())
	assert.Equal(t, uint64(4), arr[3].Value())
	assert.Equal(t, uint64(100), arr[40].Value())
	assert.Equal(t, uint64(7), arr[NumPVElmsToHash-1].Value())
	assert.Equal(t, uint64(99), arr[RecursionPublicValuesLen-1].Value())

	back, err := RecursionPublicValuesFromSlice(arr[:])
	require.NoError(t, err)
	assert.Equal(t, pv, back)

	_, err = RecursionPublicValuesFromSlice(arr[:10])
	assert.Error(t, err)
}

func TestRecursionDigestProperties(t *testing.T) {
	cfg := core.DefaultHashConfig()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("digest is deterministic", prop.ForAll(
		func(values []uint64) bool {
			a, b := randomPublicValues(values), randomPublicValues(values)
			return RecursionPublicValuesDigest(cfg, &a).Equal(RecursionPublicValuesDigest(cfg, &b))
		},
		gen.SliceOfN(RecursionPublicValuesLen, gen.UInt64Range(0, field.P-1)),
	))

	properties.Property("hashed elements change the digest", prop.ForAll(
		func(values []uint64, idx int) bool {
			pv := randomPublicValues(values)
			before := RecursionPublicValuesDigest(cfg, &pv)
			values[idx] = (values[idx] + 1) % field.P
			changed := randomPublicValues(values)
			return !before.Equal(RecursionPublicValuesDigest(cfg, &changed))
		},
		gen.SliceOfN(RecursionPublicValuesLen, gen.UInt64Range(0, field.P-1)),
		gen.IntRange(0, NumPVElmsToHash-1),
	))

	properties.Property("the digest field is not hashed", prop.ForAll(
		func(values []uint64, idx int) bool {
			pv := randomPublicValues(values)
			before := RecursionPublicValuesDigest(cfg, &pv)
			pv.Digest[idx] = pv.Digest[idx].Add(field.One)
			return before.Equal(RecursionPublicValuesDigest(cfg, &pv))
		},
		gen.SliceOfN(RecursionPublicValuesLen, gen.UInt64Range(0, field.P-1)),
		gen.IntRange(0, core.DigestWidth-1),
	))

	properties.TestingRun(t)
}

func TestAssertRecursionPublicValuesValid(t *testing.T) {
	cfg := core.DefaultHashConfig()
	pv := segmentPublicValues(cfg, 0x1000, 1, 8, false)
	require.NoError(t, AssertRecursionPublicValuesValid(cfg, &pv))

	pv.Digest[2] = pv.Digest[2].Add(field.One)
	pv.Digest[5] = pv.Digest[5].Add(field.One)
	err := AssertRecursionPublicValuesValid(cfg, &pv)
	require.Error(t, err)

	var mismatch *DigestMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, []int{2, 5}, mismatch.Indices())
	assert.True(t, mismatch.Actual.Equal(pv.Digest))
	assert.Contains(t, err.Error(), "digest element 2")
	assert.Contains(t, err.Error(), "1 more elements differ")

	// Changing a hashed field without refreshing the digest is caught too.
	pv = segmentPublicValues(cfg, 0x1000, 1, 8, false)
	pv.NextShard = field.New(9)
	assert.Error(t, AssertRecursionPublicValuesValid(cfg, &pv))
}

func TestRootDigestComposition(t *testing.T) {
	cfg := core.DefaultHashConfig()
	vk := testVK()
	words := core.WordsFromBytesBE([32]byte{0: 0xde, 1: 0xad, 31: 0x01})

	input := make([]field.Element, 0, 40)
	for _, e := range vk {
		input = append(input, e)
	}
	for _, w := range words {
		for _, limb := range w {
			input = append(input, limb)
		}
	}
	want := cfg.HashSlice(input)
	assert.Equal(t, [core.DigestWidth]uint64{
		8219548805176788334, 4900263316670834962, 6615657135968513434, 9659292070312566526,
		5640733637797946551, 4789660130708714339, 4156302664090068802, 12976863139307548136,
	}, want.Uint64s())

	pv := NewRootPublicValues(vk, words, want)
	assert.True(t, want.Equal(RootPublicValuesDigest(cfg, &pv)))
	require.NoError(t, AssertRootPublicValuesValid(cfg, &pv))
	assert.Equal(t, [32]byte{0: 0xde, 1: 0xad, 31: 0x01}, CommittedValueDigestBytes(*pv.CommittedValueDigest()))

	arr := pv.AsArray()
	back, err := RootPublicValuesFromSlice(arr[:])
	require.NoError(t, err)
	assert.Equal(t, pv, back)

	bad := NewRootPublicValues(vk, words, core.Digest{})
	var mismatch *DigestMismatchError
	require.ErrorAs(t, AssertRootPublicValuesValid(cfg, &bad), &mismatch)
	assert.NotEmpty(t, mismatch.Indices())
}

// The halted first shard of segmentPublicValues: committed word 0xcafebabe,
// pc 0x1000 to halt, shards 1 to 2, vk 11..18, complete.
func TestRecursionDigestKnownAnswer(t *testing.T) {
	cfg := core.DefaultHashConfig()
	pv := segmentPublicValues(cfg, 0x1000, 1, 4, true)
	require.True(t, pv.IsComplete.IsOne())
	assert.Equal(t, [core.DigestWidth]uint64{
		17308738398126583202, 5636817147005120053, 9280371029019915752, 10372219918833844499,
		3127077555407994695, 15054951620943270156, 16749233660356319701, 9885487768818281442,
	}, pv.Digest.Uint64s())
}

func TestDigestsDifferAcrossConfigs(t *testing.T) {
	params := core.DefaultPoseidonParameters()
	params.RoundsPartial = 23
	other, err := core.NewHashConfig(params)
	require.NoError(t, err)

	cfg := core.DefaultHashConfig()
	pv := segmentPublicValues(cfg, 0x1000, 1, 4, true)
	assert.False(t, RecursionPublicValuesDigest(cfg, &pv).Equal(RecursionPublicValuesDigest(other, &pv)))
	assert.Error(t, AssertRecursionPublicValuesValid(other, &pv))
}

func TestReducePublicValues(t *testing.T) {
	cfg := core.DefaultHashConfig()
	compressVK := core.DigestFromUint64s([core.DigestWidth]uint64{1, 1, 1, 1, 1, 1, 1, 1})

	left := segmentPublicValues(cfg, 0x1000, 1, 8, false)
	right := segmentPublicValues(cfg, 0x1000+8*PCStep, 2, 4, true)

	out, err := ReducePublicValues(cfg, []RecursionPublicValues{left, right}, compressVK)
	require.NoError(t, err)
	require.NoError(t, AssertRecursionPublicValuesValid(cfg, &out))
	assert.True(t, out.StartPC.Equal(left.StartPC))
	assert.True(t, out.NextPC.Equal(HaltPC))
	assert.Equal(t, uint64(1), out.StartShard.Value())
	assert.Equal(t, uint64(3), out.NextShard.Value())
	assert.True(t, out.IsComplete.IsOne())
	assert.True(t, out.CompressVKDigest.Equal(compressVK))
	assert.Equal(t, right.CommittedValueDigest, out.CommittedValueDigest)

	_, err = ReducePublicValues(cfg, []RecursionPublicValues{right, left}, compressVK)
	assert.Error(t, err)
	_, err = ReducePublicValues(cfg, nil, compressVK)
	assert.Error(t, err)
}

func TestCheckContinuity(t *testing.T) {
	cfg := core.DefaultHashConfig()
	left := segmentPublicValues(cfg, 0x1000, 1, 8, false)
	right := segmentPublicValues(cfg, 0x1000+8*PCStep, 2, 8, false)
	require.NoError(t, CheckContinuity(&left, &right))

	tests := []struct {
		name   string
		mutate func(*RecursionPublicValues)
	}{
		{"pc gap", func(pv *RecursionPublicValues) { pv.StartPC = pv.StartPC.Add(field.One) }},
		{"shard gap", func(pv *RecursionPublicValues) { pv.StartShard = field.New(3) }},
		{"execution shard gap", func(pv *RecursionPublicValues) { pv.StartExecutionShard = field.New(5) }},
		{"deferred chain", func(pv *RecursionPublicValues) { pv.StartReconstructDeferredDigest[0] = field.One }},
		{"vk", func(pv *RecursionPublicValues) { pv.VKDigest[3] = field.Zero }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := right
			tt.mutate(&r)
			assert.Error(t, CheckContinuity(&left, &r))
		})
	}

	halted := segmentPublicValues(cfg, 0x1000, 1, 8, true)
	assert.Error(t, CheckContinuity(&halted, &right))
}
