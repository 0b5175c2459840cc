package core

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

// PoseidonParameters describes a Poseidon instance over the Goldilocks field.
type PoseidonParameters struct {
	Width         int `json:"width"`          // t: state width
	Rate          int `json:"rate"`           // r: elements absorbed per permutation
	RoundsFull    int `json:"rounds_full"`    // RF
	RoundsPartial int `json:"rounds_partial"` // RP
	SboxPower     int `json:"sbox_power"`     // α, must be coprime to p-1
}

// DefaultPoseidonParameters returns the width-16, rate-8 instance used for
// public value digests. The capacity (8) equals the digest width.
//
// x^5 is not a permutation of Goldilocks since 5 divides p-1, so α = 7.
func DefaultPoseidonParameters() PoseidonParameters {
	return PoseidonParameters{
		Width:         16,
		Rate:          8,
		RoundsFull:    8,
		RoundsPartial: 22,
		SboxPower:     7,
	}
}

// Validate checks the parameters can instantiate a permutation producing a
// full digest.
func (p PoseidonParameters) Validate() error {
	if p.Width <= 0 || p.Rate <= 0 || p.Rate >= p.Width {
		return fmt.Errorf("poseidon: rate %d must be in (0, width %d)", p.Rate, p.Width)
	}
	if p.Width < DigestWidth {
		return fmt.Errorf("poseidon: width %d is smaller than digest width %d", p.Width, DigestWidth)
	}
	if p.RoundsFull <= 0 || p.RoundsFull%2 != 0 {
		return fmt.Errorf("poseidon: full rounds must be a positive even number, got %d", p.RoundsFull)
	}
	if p.RoundsPartial < 0 {
		return fmt.Errorf("poseidon: partial rounds must be non-negative, got %d", p.RoundsPartial)
	}
	if p.SboxPower < 3 || gcd(uint64(p.SboxPower), field.P-1) != 1 {
		return fmt.Errorf("poseidon: s-box power %d is not a permutation of the field", p.SboxPower)
	}
	return nil
}

// gcd is Euclid's algorithm. x^α permutes the field iff gcd(α, p-1) = 1.
func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// Permutation is a Poseidon permutation with round constants derived from a
// Grain LFSR and a Cauchy MDS matrix. It holds no sponge state; callers own
// the state they permute, so a Permutation is safe for concurrent use.
type Permutation struct {
	params         PoseidonParameters
	roundConstants [][]field.Element
	mdsMatrix      [][]field.Element
}

// NewPermutation derives the constants for params.
func NewPermutation(params PoseidonParameters) (*Permutation, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	mds, err := generateMDSMatrix(params.Width)
	if err != nil {
		return nil, fmt.Errorf("failed to generate MDS matrix: %w", err)
	}

	return &Permutation{
		params:         params,
		roundConstants: generateRoundConstants(params),
		mdsMatrix:      mds,
	}, nil
}

// Parameters returns the parameters the permutation was derived from.
func (p *Permutation) Parameters() PoseidonParameters {
	return p.params
}

// Width returns the state width.
func (p *Permutation) Width() int {
	return p.params.Width
}

// Rate returns the sponge rate.
func (p *Permutation) Rate() int {
	return p.params.Rate
}

// Clone returns a deep copy of the permutation.
func (p *Permutation) Clone() *Permutation {
	rc := make([][]field.Element, len(p.roundConstants))
	for i := range p.roundConstants {
		rc[i] = append([]field.Element(nil), p.roundConstants[i]...)
	}
	mds := make([][]field.Element, len(p.mdsMatrix))
	for i := range p.mdsMatrix {
		mds[i] = append([]field.Element(nil), p.mdsMatrix[i]...)
	}
	return &Permutation{params: p.params, roundConstants: rc, mdsMatrix: mds}
}

// Permute applies the permutation to state in place. len(state) must equal
// the width.
func (p *Permutation) Permute(state []field.Element) {
	if len(state) != p.params.Width {
		panic(fmt.Sprintf("poseidon: state has %d elements, want %d", len(state), p.params.Width))
	}

	half := p.params.RoundsFull / 2
	round := 0
	for i := 0; i < half; i++ {
		p.fullRound(state, round)
		round++
	}
	for i := 0; i < p.params.RoundsPartial; i++ {
		p.partialRound(state, round)
		round++
	}
	for i := 0; i < half; i++ {
		p.fullRound(state, round)
		round++
	}
}

func (p *Permutation) fullRound(state []field.Element, round int) {
	for i := range state {
		state[i] = p.sbox(state[i].Add(p.roundConstants[round][i]))
	}
	p.applyMDS(state)
}

func (p *Permutation) partialRound(state []field.Element, round int) {
	for i := range state {
		state[i] = state[i].Add(p.roundConstants[round][i])
	}
	state[0] = p.sbox(state[0])
	p.applyMDS(state)
}

func (p *Permutation) sbox(x field.Element) field.Element {
	result := x
	for i := 1; i < p.params.SboxPower; i++ {
		result = result.Mul(x)
	}
	return result
}

func (p *Permutation) applyMDS(state []field.Element) {
	var buf [32]field.Element
	out := buf[:0]
	if len(state) > len(buf) {
		out = make([]field.Element, 0, len(state))
	}
	for i := range state {
		acc := field.Zero
		for j := range state {
			acc = acc.Add(state[j].Mul(p.mdsMatrix[i][j]))
		}
		out = append(out, acc)
	}
	copy(state, out)
}

// generateRoundConstants draws RF+RP rows of width constants from the LFSR.
func generateRoundConstants(params PoseidonParameters) [][]field.Element {
	lfsr := newGrainLFSR(params)

	total := params.RoundsFull + params.RoundsPartial
	constants := make([][]field.Element, total)
	for round := 0; round < total; round++ {
		constants[round] = make([]field.Element, params.Width)
		for i := 0; i < params.Width; i++ {
			constants[round][i] = lfsr.nextFieldElement()
		}
	}
	return constants
}

// generateMDSMatrix builds the Cauchy matrix M[i][j] = 1/(x_i + y_j) with
// x_i = i+1 and y_j = j+width+1, which is MDS for distinct x and y.
func generateMDSMatrix(width int) ([][]field.Element, error) {
	matrix := make([][]field.Element, width)
	for i := 0; i < width; i++ {
		matrix[i] = make([]field.Element, width)
		for j := 0; j < width; j++ {
			sum := field.New(uint64(i + 1)).Add(field.New(uint64(j + width + 1)))
			if sum.IsZero() {
				return nil, fmt.Errorf("singular Cauchy entry at (%d, %d)", i, j)
			}
			matrix[i][j] = sum.Inverse()
		}
	}
	return matrix, nil
}

// grainLFSR is the 80-bit self-shrinking generator from the Poseidon paper.
type grainLFSR struct {
	state [80]bool
}

func newGrainLFSR(params PoseidonParameters) *grainLFSR {
	g := &grainLFSR{}

	// b0, b1: prime field
	g.state[0] = false
	g.state[1] = true

	// b2-b5: s-box type, 0 for x^α
	// b6-b17: field size n
	const fieldBits = 64
	for i := 0; i < 12; i++ {
		g.state[6+i] = (fieldBits>>(11-i))&1 == 1
	}
	// b18-b29: t
	for i := 0; i < 12; i++ {
		g.state[18+i] = (params.Width>>(11-i))&1 == 1
	}
	// b30-b39: RF
	for i := 0; i < 10; i++ {
		g.state[30+i] = (params.RoundsFull>>(9-i))&1 == 1
	}
	// b40-b49: RP
	for i := 0; i < 10; i++ {
		g.state[40+i] = (params.RoundsPartial>>(9-i))&1 == 1
	}
	// b50-b79
	for i := 50; i < 80; i++ {
		g.state[i] = true
	}

	for i := 0; i < 160; i++ {
		g.update()
	}
	return g
}

// update shifts in b_{i+80} = b_{i+62} ⊕ b_{i+51} ⊕ b_{i+38} ⊕ b_{i+23} ⊕ b_{i+13} ⊕ b_i.
func (g *grainLFSR) update() bool {
	newBit := g.state[62] != g.state[51] != g.state[38] != g.state[23] != g.state[13] != g.state[0]
	copy(g.state[:79], g.state[1:])
	g.state[79] = newBit
	return newBit
}

// sampleBit discards pairs whose first bit is zero.
func (g *grainLFSR) sampleBit() bool {
	for {
		first := g.update()
		second := g.update()
		if first {
			return second
		}
	}
}

// nextFieldElement rejection-samples 64-bit values below the modulus.
func (g *grainLFSR) nextFieldElement() field.Element {
	for {
		var v uint64
		for i := 0; i < 64; i++ {
			v <<= 1
			if g.sampleBit() {
				v |= 1
			}
		}
		if v < field.P {
			return field.New(v)
		}
	}
}
