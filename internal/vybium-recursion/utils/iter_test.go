package utils

import (
	"slices"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func boundFrom(set bool, n int) Bound {
	if !set {
		return Unbounded
	}
	return Bounded(n)
}

func TestMaybeRangeContract(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("length and order follow skip-then-take", prop.ForAll(
		func(n int, skipSet bool, skip int, takeSet bool, take int) bool {
			input := make([]int, n)
			for i := range input {
				input[i] = i * 3
			}

			got := slices.Collect(MaybeRange(slices.Values(input), boundFrom(skipSet, skip), boundFrom(takeSet, take)))

			start := 0
			if skipSet {
				start = min(skip, n)
			}
			want := input[start:]
			if takeSet {
				want = want[:min(take, len(want))]
			}
			return slices.Equal(got, want)
		},
		gen.IntRange(0, 20),
		gen.Bool(),
		gen.IntRange(0, 25),
		gen.Bool(),
		gen.IntRange(0, 25),
	))

	properties.TestingRun(t)
}

func TestMaybeSkipTakeEdgeCases(t *testing.T) {
	input := []int{1, 2, 3}

	tests := []struct {
		name       string
		skip, take Bound
		want       []int
	}{
		{"pass-through", Unbounded, Unbounded, []int{1, 2, 3}},
		{"skip only", Bounded(1), Unbounded, []int{2, 3}},
		{"take only", Unbounded, Bounded(2), []int{1, 2}},
		{"skip and take", Bounded(1), Bounded(1), []int{2}},
		{"zero skip", Bounded(0), Unbounded, []int{1, 2, 3}},
		{"zero take", Unbounded, Bounded(0), nil},
		{"skip past end", Bounded(5), Unbounded, nil},
		{"take past end", Bounded(2), Bounded(10), []int{3}},
		{"negative clamps to zero", Bounded(-4), Bounded(-1), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := slices.Collect(MaybeRange(slices.Values(input), tt.skip, tt.take))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMaybeTakeIsLazy(t *testing.T) {
	pulled := 0
	infinite := func(yield func(int) bool) {
		for i := 0; ; i++ {
			pulled++
			if !yield(i) {
				return
			}
		}
	}

	got := slices.Collect(MaybeRange(infinite, Bounded(3), Bounded(2)))
	assert.Equal(t, []int{3, 4}, got)
	assert.Equal(t, 5, pulled)

	pulled = 0
	assert.Empty(t, slices.Collect(MaybeTake(infinite, Bounded(0))))
	assert.Zero(t, pulled)
}

func TestBoundJSON(t *testing.T) {
	b, err := Bounded(4).MarshalJSON()
	assert.NoError(t, err)
	assert.Equal(t, "4", string(b))

	b, err = Unbounded.MarshalJSON()
	assert.NoError(t, err)
	assert.Equal(t, "null", string(b))

	var got Bound
	assert.NoError(t, got.UnmarshalJSON([]byte("7")))
	n, ok := got.Get()
	assert.True(t, ok)
	assert.Equal(t, 7, n)

	assert.NoError(t, got.UnmarshalJSON([]byte("null")))
	_, ok = got.Get()
	assert.False(t, ok)
}
