package protocols

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-recursion/internal/vybium-recursion/core"
)

// PVDigestNumWords is the number of words in a committed value digest.
const PVDigestNumWords = 8

// Layout of RecursionPublicValues when flattened. Every field before Digest
// is hashed.
const (
	committedValueDigestLen = PVDigestNumWords * core.WordSize
	recursionScalarsLen     = 6 // pcs and shard counters
	recursionFlagsLen       = 3 // is_complete, contains_execution_shard, exit_code

	// NumPVElmsToHash is the length of the hashed prefix.
	NumPVElmsToHash = committedValueDigestLen +
		core.DigestWidth + // deferred proofs digest
		recursionScalarsLen +
		2*core.DigestWidth + // deferred digest reconstruction
		2*core.DigestWidth + // vk digests
		recursionFlagsLen

	// RecursionPublicValuesLen is the flattened length including the digest.
	RecursionPublicValuesLen = NumPVElmsToHash + core.DigestWidth

	// RootPublicValuesLen is the flattened length of RootPublicValues.
	RootPublicValuesLen = core.DigestWidth + committedValueDigestLen + core.DigestWidth
)

// RecursionPublicValues are the public values exposed by every recursive
// proof (compress and shrink) and by the core stage once lifted.
type RecursionPublicValues struct {
	CommittedValueDigest [PVDigestNumWords]core.Word
	DeferredProofsDigest core.Digest

	StartPC             field.Element
	NextPC              field.Element
	StartShard          field.Element
	NextShard           field.Element
	StartExecutionShard field.Element
	NextExecutionShard  field.Element

	StartReconstructDeferredDigest core.Digest
	EndReconstructDeferredDigest   core.Digest

	// VKDigest is the digest of the program verifying key.
	VKDigest core.Digest
	// CompressVKDigest is the digest of the recursion verifying key.
	CompressVKDigest core.Digest

	IsComplete             field.Element
	ContainsExecutionShard field.Element
	ExitCode               field.Element

	// Digest is the claimed hash of the first NumPVElmsToHash elements.
	Digest core.Digest
}

// NewRecursionPublicValues returns zeroed public values.
func NewRecursionPublicValues() RecursionPublicValues {
	var zero [RecursionPublicValuesLen]field.Element
	for i := range zero {
		zero[i] = field.Zero
	}
	return RecursionPublicValuesFromArray(zero)
}

// AsArray flattens the public values in layout order.
func (pv *RecursionPublicValues) AsArray() [RecursionPublicValuesLen]field.Element {
	var out [RecursionPublicValuesLen]field.Element
	w := elementWriter{dst: out[:]}
	for _, word := range pv.CommittedValueDigest {
		w.put(word[:]...)
	}
	w.put(pv.DeferredProofsDigest[:]...)
	w.put(pv.StartPC, pv.NextPC, pv.StartShard, pv.NextShard, pv.StartExecutionShard, pv.NextExecutionShard)
	w.put(pv.StartReconstructDeferredDigest[:]...)
	w.put(pv.EndReconstructDeferredDigest[:]...)
	w.put(pv.VKDigest[:]...)
	w.put(pv.CompressVKDigest[:]...)
	w.put(pv.IsComplete, pv.ContainsExecutionShard, pv.ExitCode)
	w.put(pv.Digest[:]...)
	return out
}

// Slice is AsArray as a slice.
func (pv *RecursionPublicValues) Slice() []field.Element {
	arr := pv.AsArray()
	return arr[:]
}

// RecursionPublicValuesFromArray is the inverse of AsArray.
func RecursionPublicValuesFromArray(arr [RecursionPublicValuesLen]field.Element) RecursionPublicValues {
	var pv RecursionPublicValues
	r := elementReader{src: arr[:]}
	for i := range pv.CommittedValueDigest {
		r.take(pv.CommittedValueDigest[i][:])
	}
	r.take(pv.DeferredProofsDigest[:])
	pv.StartPC = r.next()
	pv.NextPC = r.next()
	pv.StartShard = r.next()
	pv.NextShard = r.next()
	pv.StartExecutionShard = r.next()
	pv.NextExecutionShard = r.next()
	r.take(pv.StartReconstructDeferredDigest[:])
	r.take(pv.EndReconstructDeferredDigest[:])
	r.take(pv.VKDigest[:])
	r.take(pv.CompressVKDigest[:])
	pv.IsComplete = r.next()
	pv.ContainsExecutionShard = r.next()
	pv.ExitCode = r.next()
	r.take(pv.Digest[:])
	return pv
}

// RecursionPublicValuesFromSlice parses a proof's raw public values.
func RecursionPublicValuesFromSlice(s []field.Element) (RecursionPublicValues, error) {
	if len(s) != RecursionPublicValuesLen {
		return RecursionPublicValues{}, fmt.Errorf("recursion public values must have %d elements, got %d",
			RecursionPublicValuesLen, len(s))
	}
	var arr [RecursionPublicValuesLen]field.Element
	copy(arr[:], s)
	return RecursionPublicValuesFromArray(arr), nil
}

// RootPublicValues are the public values of the final wrapped proof.
type RootPublicValues struct {
	vkDigest             core.Digest
	committedValueDigest [PVDigestNumWords]core.Word
	digest               core.Digest
}

// NewRootPublicValues builds root public values.
func NewRootPublicValues(vkDigest core.Digest, committedValueDigest [PVDigestNumWords]core.Word, digest core.Digest) RootPublicValues {
	return RootPublicValues{
		vkDigest:             vkDigest,
		committedValueDigest: committedValueDigest,
		digest:               digest,
	}
}

// VKDigest returns the program verifying key digest.
func (pv *RootPublicValues) VKDigest() *core.Digest {
	return &pv.vkDigest
}

// CommittedValueDigest returns the digest of the program's committed values.
func (pv *RootPublicValues) CommittedValueDigest() *[PVDigestNumWords]core.Word {
	return &pv.committedValueDigest
}

// Digest returns the claimed root digest.
func (pv *RootPublicValues) Digest() *core.Digest {
	return &pv.digest
}

// AsArray flattens vk digest, committed value digest and digest in order.
func (pv *RootPublicValues) AsArray() [RootPublicValuesLen]field.Element {
	var out [RootPublicValuesLen]field.Element
	w := elementWriter{dst: out[:]}
	w.put(pv.vkDigest[:]...)
	w.put(core.WordsToElements(pv.committedValueDigest[:])...)
	w.put(pv.digest[:]...)
	return out
}

// RootPublicValuesFromSlice is the inverse of AsArray.
func RootPublicValuesFromSlice(s []field.Element) (RootPublicValues, error) {
	if len(s) != RootPublicValuesLen {
		return RootPublicValues{}, fmt.Errorf("root public values must have %d elements, got %d",
			RootPublicValuesLen, len(s))
	}
	var pv RootPublicValues
	r := elementReader{src: s}
	r.take(pv.vkDigest[:])
	for i := range pv.committedValueDigest {
		r.take(pv.committedValueDigest[i][:])
	}
	r.take(pv.digest[:])
	return pv, nil
}

// CommittedValueDigestBytes returns the committed value digest as 32
// big-endian bytes, the form in which the program committed it.
func CommittedValueDigestBytes(words [PVDigestNumWords]core.Word) [32]byte {
	var u [8]uint32
	for i, w := range words {
		u[i] = w.Uint32()
	}
	return core.WordsToBytesBE(u)
}

type elementWriter struct {
	dst []field.Element
	pos int
}

func (w *elementWriter) put(elems ...field.Element) {
	w.pos += copy(w.dst[w.pos:], elems)
}

type elementReader struct {
	src []field.Element
	pos int
}

func (r *elementReader) next() field.Element {
	e := r.src[r.pos]
	r.pos++
	return e
}

func (r *elementReader) take(dst []field.Element) {
	r.pos += copy(dst, r.src[r.pos:r.pos+len(dst)])
}
