package utils

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

// Channel represents a Fiat-Shamir transcript channel over sha3-256
type Channel struct {
	state []byte
	proof []string
}

// NewChannel creates a new Fiat-Shamir channel bound to a domain label
func NewChannel(domain string) *Channel {
	c := &Channel{
		state: []byte{0},
		proof: make([]string, 0, 16),
	}
	c.Send([]byte(domain))
	return c
}

// Send appends data to the channel state
func (c *Channel) Send(data []byte) {
	c.proof = append(c.proof, fmt.Sprintf("send:%s", hex.EncodeToString(data)))
	c.state = hashState(append(c.state, data...))
}

// SendElements absorbs field elements as little-endian u64s
func (c *Channel) SendElements(elems []field.Element) {
	buf := make([]byte, 8*len(elems))
	for i, e := range elems {
		binary.LittleEndian.PutUint64(buf[8*i:], e.Value())
	}
	c.Send(buf)
}

// ReceiveRandomFieldElement samples a field element from the channel state.
// The low 64 bits of the state are rejected while they exceed the modulus.
func (c *Channel) ReceiveRandomFieldElement() field.Element {
	for {
		v := binary.LittleEndian.Uint64(c.state[:8])
		c.state = hashState(c.state)
		if v < field.P {
			e := field.New(v)
			c.proof = append(c.proof, fmt.Sprintf("receiveRandomFieldElement:%s", e.String()))
			return e
		}
	}
}

// ReceiveRandomFieldElements samples n field elements
func (c *Channel) ReceiveRandomFieldElements(n int) []field.Element {
	out := make([]field.Element, n)
	for i := range out {
		out[i] = c.ReceiveRandomFieldElement()
	}
	return out
}

// State returns the current channel state
func (c *Channel) State() []byte {
	return append([]byte(nil), c.state...)
}

// Proof returns the proof transcript
func (c *Channel) Proof() []string {
	return append([]string(nil), c.proof...)
}

// String returns a string representation of the channel proof
func (c *Channel) String() string {
	return strings.Join(c.proof, " ")
}

func hashState(data []byte) []byte {
	h := sha3.Sum256(data)
	return h[:]
}
