package protocols

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-recursion/internal/vybium-recursion/core"
)

// RecursionPublicValuesDigest hashes the first NumPVElmsToHash elements of
// pv. The Digest field itself never contributes.
func RecursionPublicValuesDigest(cfg core.HashConfig, pv *RecursionPublicValues) core.Digest {
	arr := pv.AsArray()
	return cfg.Hasher().HashSlice(arr[:NumPVElmsToHash])
}

// RootPublicValuesDigest hashes the vk digest followed by the committed
// value digest words, flattened in order.
func RootPublicValuesDigest(cfg core.HashConfig, pv *RootPublicValues) core.Digest {
	input := make([]field.Element, 0, core.DigestWidth+committedValueDigestLen)
	input = append(input, pv.VKDigest()[:]...)
	input = append(input, core.WordsToElements(pv.CommittedValueDigest()[:])...)
	return cfg.Hasher().HashSlice(input)
}

// AssertRecursionPublicValuesValid recomputes the digest of pv and checks
// it against the claimed one. On mismatch it returns a *DigestMismatchError.
func AssertRecursionPublicValuesValid(cfg core.HashConfig, pv *RecursionPublicValues) error {
	expected := RecursionPublicValuesDigest(cfg, pv)
	if mismatch := newDigestMismatch(expected, pv.Digest); mismatch != nil {
		return mismatch
	}
	return nil
}

// AssertRootPublicValuesValid is AssertRecursionPublicValuesValid for root
// public values.
func AssertRootPublicValuesValid(cfg core.HashConfig, pv *RootPublicValues) error {
	expected := RootPublicValuesDigest(cfg, pv)
	if mismatch := newDigestMismatch(expected, *pv.Digest()); mismatch != nil {
		return mismatch
	}
	return nil
}

// VKDigestFromProof reads the program vk digest out of a recursive proof.
func VKDigestFromProof(proof *ShardProof) (core.Digest, error) {
	if proof == nil {
		return core.Digest{}, fmt.Errorf("nil proof")
	}
	pv, err := RecursionPublicValuesFromSlice(proof.PublicValues)
	if err != nil {
		return core.Digest{}, fmt.Errorf("%s proof: %w", proof.Stage, err)
	}
	return pv.VKDigest, nil
}
