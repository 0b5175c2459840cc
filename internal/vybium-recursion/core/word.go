package core

import (
	"encoding/binary"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

// WordSize is the number of limbs in a Word.
const WordSize = 4

// Word is a 32-bit value split into four byte limbs, least significant first.
type Word [WordSize]field.Element

// WordFromUint32 splits v into little-endian byte limbs.
func WordFromUint32(v uint32) Word {
	var w Word
	for i := 0; i < WordSize; i++ {
		w[i] = field.New(uint64((v >> (8 * i)) & 0xff))
	}
	return w
}

// Uint32 recombines the limbs. Limbs are truncated to their low byte.
func (w Word) Uint32() uint32 {
	var v uint32
	for i := 0; i < WordSize; i++ {
		v |= uint32(w[i].Value()&0xff) << (8 * i)
	}
	return v
}

// WordsToElements flattens words limb by limb, keeping their order.
func WordsToElements(words []Word) []field.Element {
	out := make([]field.Element, 0, len(words)*WordSize)
	for _, w := range words {
		out = append(out, w[:]...)
	}
	return out
}

// WordsToBytesBE encodes eight u32 words as 32 big-endian bytes.
func WordsToBytesBE(words [8]uint32) [32]byte {
	var out [32]byte
	for i, w := range words {
		binary.BigEndian.PutUint32(out[i*4:(i+1)*4], w)
	}
	return out
}

// WordsFromBytesBE is the inverse of WordsToBytesBE.
func WordsFromBytesBE(b [32]byte) [8]Word {
	var out [8]Word
	for i := range out {
		out[i] = WordFromUint32(binary.BigEndian.Uint32(b[i*4 : (i+1)*4]))
	}
	return out
}
