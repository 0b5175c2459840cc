package protocols

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-recursion/internal/vybium-recursion/core"
)

// HaltPC is the next program counter of a segment that ends the execution.
var HaltPC = field.Zero

// IsCompleteExecution reports whether pv covers an execution from its first
// shard up to the halt.
func IsCompleteExecution(pv *RecursionPublicValues) bool {
	return pv.StartShard.IsOne() && pv.NextPC.Equal(HaltPC)
}

// CheckContinuity verifies that right describes the execution directly
// following left.
func CheckContinuity(left, right *RecursionPublicValues) error {
	if left.NextPC.Equal(HaltPC) {
		return fmt.Errorf("proof of shards [%s, %s) halted but is followed by shard %s",
			left.StartShard, left.NextShard, right.StartShard)
	}
	if !left.NextPC.Equal(right.StartPC) {
		return fmt.Errorf("pc discontinuity: next pc %s, start pc %s", left.NextPC, right.StartPC)
	}
	if !left.NextShard.Equal(right.StartShard) {
		return fmt.Errorf("shard discontinuity: next shard %s, start shard %s", left.NextShard, right.StartShard)
	}
	if !left.NextExecutionShard.Equal(right.StartExecutionShard) {
		return fmt.Errorf("execution shard discontinuity: next %s, start %s",
			left.NextExecutionShard, right.StartExecutionShard)
	}
	if !left.EndReconstructDeferredDigest.Equal(right.StartReconstructDeferredDigest) {
		return fmt.Errorf("deferred digest chain broken: end %s, start %s",
			left.EndReconstructDeferredDigest, right.StartReconstructDeferredDigest)
	}
	if !left.VKDigest.Equal(right.VKDigest) {
		return fmt.Errorf("vk digest differs: %s vs %s", left.VKDigest, right.VKDigest)
	}
	return nil
}

// ReducePublicValues computes the public values of a proof joining
// children, which must be adjacent and in execution order. The result
// carries a freshly computed digest.
func ReducePublicValues(cfg core.HashConfig, children []RecursionPublicValues, compressVK core.Digest) (RecursionPublicValues, error) {
	out, err := reduce(children, compressVK)
	if err != nil {
		return RecursionPublicValues{}, err
	}
	out.Digest = RecursionPublicValuesDigest(cfg, &out)
	return out, nil
}

// reduce fills every hashed field of the joined public values.
func reduce(children []RecursionPublicValues, compressVK core.Digest) (RecursionPublicValues, error) {
	if len(children) == 0 {
		return RecursionPublicValues{}, fmt.Errorf("nothing to reduce")
	}
	for i := 1; i < len(children); i++ {
		if err := CheckContinuity(&children[i-1], &children[i]); err != nil {
			return RecursionPublicValues{}, fmt.Errorf("children %d and %d: %w", i-1, i, err)
		}
	}

	first, last := &children[0], &children[len(children)-1]
	out := *last
	out.StartPC = first.StartPC
	out.StartShard = first.StartShard
	out.StartExecutionShard = first.StartExecutionShard
	out.StartReconstructDeferredDigest = first.StartReconstructDeferredDigest
	out.CompressVKDigest = compressVK

	out.ContainsExecutionShard = field.Zero
	for i := range children {
		if children[i].ContainsExecutionShard.IsOne() {
			out.ContainsExecutionShard = field.One
		}
	}
	out.IsComplete = boolElement(IsCompleteExecution(&out))
	return out, nil
}

func boolElement(b bool) field.Element {
	if b {
		return field.One
	}
	return field.Zero
}

func equalHashedPrefix(a, b *RecursionPublicValues) bool {
	x, y := a.AsArray(), b.AsArray()
	for i := 0; i < NumPVElmsToHash; i++ {
		if !x[i].Equal(y[i]) {
			return false
		}
	}
	return true
}
