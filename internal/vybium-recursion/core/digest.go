package core

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

// DigestWidth is the number of field elements in a digest.
const DigestWidth = 8

// Digest is the output of the public value hash.
type Digest [DigestWidth]field.Element

// Equal reports whether d and other agree in every element.
func (d Digest) Equal(other Digest) bool {
	for i := range d {
		if !d[i].Equal(other[i]) {
			return false
		}
	}
	return true
}

// Elements returns the digest as a slice.
func (d Digest) Elements() []field.Element {
	out := make([]field.Element, DigestWidth)
	copy(out, d[:])
	return out
}

// Bytes encodes each element as 8 little-endian bytes.
func (d Digest) Bytes() []byte {
	out := make([]byte, DigestWidth*8)
	for i, e := range d {
		binary.LittleEndian.PutUint64(out[i*8:], e.Value())
	}
	return out
}

// String returns the hex encoding of Bytes.
func (d Digest) String() string {
	return hex.EncodeToString(d.Bytes())
}

// Uint64s returns the canonical values of the elements.
func (d Digest) Uint64s() [DigestWidth]uint64 {
	var out [DigestWidth]uint64
	for i, e := range d {
		out[i] = e.Value()
	}
	return out
}

// DigestFromUint64s is the inverse of Uint64s. Values are reduced mod p.
func DigestFromUint64s(values [DigestWidth]uint64) Digest {
	var d Digest
	for i, v := range values {
		d[i] = field.New(v)
	}
	return d
}

// DigestFromSlice copies the first DigestWidth elements of s. It panics if s
// is shorter.
func DigestFromSlice(s []field.Element) Digest {
	var d Digest
	copy(d[:], s[:DigestWidth])
	return d
}
