package protocols

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/hash"

	"github.com/vybium/vybium-recursion/internal/vybium-recursion/utils"
)

var (
	_ MachineProver[*CoreSC, *RiscvAir]     = (*CpuProver[*CoreSC, *RiscvAir])(nil)
	_ MachineProver[*InnerSC, *CompressAir] = (*CpuProver[*InnerSC, *CompressAir])(nil)
	_ MachineProver[*InnerSC, *ShrinkAir]   = (*CpuProver[*InnerSC, *ShrinkAir])(nil)
)

// CpuProver is the reference backend. It checks the constraints directly,
// commits the trace rows into a Tip5 Merkle tree and opens the rows selected
// by the Fiat-Shamir challenges.
type CpuProver[C StarkConfig, A ConstraintSystem] struct {
	config  C
	machine A
}

// NewCpuProver binds a configuration and a constraint system
func NewCpuProver[C StarkConfig, A ConstraintSystem](config C, machine A) *CpuProver[C, A] {
	return &CpuProver[C, A]{config: config, machine: machine}
}

// Config returns the stark configuration
func (p *CpuProver[C, A]) Config() C { return p.config }

// Machine returns the constraint system
func (p *CpuProver[C, A]) Machine() A { return p.machine }

// Prove generates a proof for the witness
func (p *CpuProver[C, A]) Prove(w *Witness) (*ShardProof, error) {
	if w == nil {
		return nil, fmt.Errorf("nil witness")
	}
	if cells, budget := w.Cells(), p.config.MaxTraceCells(); cells > budget {
		return nil, fmt.Errorf("%s trace of %d cells exceeds the budget of %d: %w",
			p.machine.Name(), cells, budget, ErrResourceExhausted)
	}
	if err := p.machine.Eval(w); err != nil {
		return nil, fmt.Errorf("%s constraints not satisfied: %w", p.machine.Name(), err)
	}

	// Step 1: Commit to the trace
	leaves := hashRows(w.Rows, p.machine.Width())
	root, err := commitLeaves(leaves)
	if err != nil {
		return nil, err
	}

	// Step 2: Derive query challenges
	publicValues := append([]field.Element(nil), w.PublicValues...)
	challenges := p.challenges(root, len(w.Rows), publicValues)

	// Step 3: Open the queried rows
	openings := make([]Opening, len(challenges))
	for i, c := range challenges {
		idx := queryIndex(c, len(leaves))
		row := make([]field.Element, p.machine.Width())
		if idx < len(w.Rows) {
			copy(row, w.Rows[idx])
		} else {
			for j := range row {
				row[j] = field.Zero
			}
		}
		openings[i] = Opening{Index: idx, Row: row}
	}

	return &ShardProof{
		Stage:        p.machine.Stage(),
		AIR:          p.machine.Name(),
		Config:       p.config.Name(),
		Commitment:   root,
		Leaves:       leaves,
		Height:       len(w.Rows),
		Challenges:   challenges,
		Openings:     openings,
		PublicValues: publicValues,
	}, nil
}

// Verify checks the commitment, the transcript and every opening
func (p *CpuProver[C, A]) Verify(proof *ShardProof) error {
	if proof == nil {
		return fmt.Errorf("nil proof")
	}
	if proof.AIR != p.machine.Name() || proof.Config != p.config.Name() || proof.Stage != p.machine.Stage() {
		return fmt.Errorf("proof for %s/%s at %s stage cannot be verified by %s/%s",
			proof.AIR, proof.Config, proof.Stage, p.machine.Name(), p.config.Name())
	}
	n := len(proof.Leaves)
	if n < 2 || !utils.IsPowerOfTwo(n) || proof.Height <= 0 || proof.Height > n {
		return fmt.Errorf("invalid trace height %d for %d leaves", proof.Height, n)
	}

	root, err := commitLeaves(proof.Leaves)
	if err != nil {
		return err
	}
	if !digestsEqual(root, proof.Commitment) {
		return fmt.Errorf("trace commitment does not match leaves")
	}

	challenges := p.challenges(proof.Commitment, proof.Height, proof.PublicValues)
	if len(proof.Challenges) != len(challenges) || len(proof.Openings) != len(challenges) {
		return fmt.Errorf("expected %d queries, got %d challenges and %d openings",
			len(challenges), len(proof.Challenges), len(proof.Openings))
	}
	for i, c := range challenges {
		if !c.Equal(proof.Challenges[i]) {
			return fmt.Errorf("challenge %d does not match transcript", i)
		}
		opening := proof.Openings[i]
		if opening.Index != queryIndex(c, n) {
			return fmt.Errorf("opening %d at index %d, expected %d", i, opening.Index, queryIndex(c, n))
		}
		if len(opening.Row) != p.machine.Width() {
			return fmt.Errorf("opening %d has width %d, expected %d", i, len(opening.Row), p.machine.Width())
		}
		if !digestsEqual(hash.HashVarlen(opening.Row), proof.Leaves[opening.Index]) {
			return fmt.Errorf("opening %d does not match committed leaf %d", i, opening.Index)
		}
	}
	return nil
}

func (p *CpuProver[C, A]) challenges(root hash.Digest, height int, publicValues []field.Element) []field.Element {
	ch := utils.NewChannel(p.machine.Name())
	ch.Send([]byte(p.config.Name()))
	ch.SendElements(root[:])
	ch.SendElements([]field.Element{field.New(uint64(height))})
	ch.SendElements(publicValues)
	return ch.ReceiveRandomFieldElements(p.config.NumQueries())
}

func queryIndex(c field.Element, n int) int {
	return int(c.Value() % uint64(n))
}

func digestsEqual(a, b hash.Digest) bool {
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
