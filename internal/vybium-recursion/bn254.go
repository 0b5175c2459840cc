package vybiumrecursion

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/vybium/vybium-recursion/internal/vybium-recursion/core"
	"github.com/vybium/vybium-recursion/internal/vybium-recursion/protocols"
)

// VKDigestBN254 packs a vk digest into one BN254 scalar, most significant
// element first, each element taking 64 bits. The packing is reduced modulo
// the scalar field order.
func VKDigestBN254(digest core.Digest) fr.Element {
	var shift fr.Element
	shift.SetUint64(1 << 32)
	shift.Square(&shift)

	var acc, limb fr.Element
	for _, e := range digest {
		acc.Mul(&acc, &shift)
		limb.SetUint64(e.Value())
		acc.Add(&acc, &limb)
	}
	return acc
}

// CommittedValueDigestBytes returns the committed value digest of a root
// proof as the 32 bytes the program committed.
func CommittedValueDigestBytes(root *RootProof) [32]byte {
	return protocols.CommittedValueDigestBytes(*root.PublicValues.CommittedValueDigest())
}
