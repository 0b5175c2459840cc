package protocols

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

// Constraint system identifiers
const (
	RiscvAirName    = "riscv"
	CompressAirName = "compress"
	ShrinkAirName   = "shrink"
)

// Execution trace columns
const (
	ColClk = iota
	ColPC
	ColInstr
	ColAcc
	RiscvAirWidth
)

// PCStep is the program counter increment per executed instruction.
const PCStep = 4

// CompressArity is the maximum number of proofs joined by one compress
// invocation.
const CompressArity = 2

// ConstraintSystem describes the AIR a prover commits to
type ConstraintSystem interface {
	Name() string
	Stage() Stage
	Width() int
	// Eval checks the witness against the constraints
	Eval(w *Witness) error
}

// RiscvAir constrains an execution segment of the word machine.
type RiscvAir struct{}

// NewRiscvAir creates the execution constraint system
func NewRiscvAir() *RiscvAir { return &RiscvAir{} }

func (a *RiscvAir) Name() string { return RiscvAirName }
func (a *RiscvAir) Stage() Stage { return StageCore }
func (a *RiscvAir) Width() int   { return RiscvAirWidth }

// Eval checks the clock, pc and accumulator transitions and that the public
// values describe the segment.
func (a *RiscvAir) Eval(w *Witness) error {
	if err := checkShape(w, a.Width()); err != nil {
		return err
	}
	pv, err := RecursionPublicValuesFromSlice(w.PublicValues)
	if err != nil {
		return err
	}

	step := field.New(PCStep)
	for i := 1; i < len(w.Rows); i++ {
		prev, row := w.Rows[i-1], w.Rows[i]
		if !row[ColClk].Equal(prev[ColClk].Add(field.One)) {
			return fmt.Errorf("row %d: clock does not advance by one", i)
		}
		if !row[ColPC].Equal(prev[ColPC].Add(step)) {
			return fmt.Errorf("row %d: pc does not advance by %d", i, PCStep)
		}
		if !row[ColAcc].Equal(prev[ColAcc].Add(row[ColInstr])) {
			return fmt.Errorf("row %d: accumulator transition violated", i)
		}
	}

	first, last := w.Rows[0], w.Rows[len(w.Rows)-1]
	if !pv.StartPC.Equal(first[ColPC]) {
		return fmt.Errorf("start pc %s does not match first row pc %s", pv.StartPC, first[ColPC])
	}
	if !pv.NextPC.Equal(last[ColPC].Add(step)) && !pv.NextPC.Equal(HaltPC) {
		return fmt.Errorf("next pc %s does not follow last row pc %s", pv.NextPC, last[ColPC])
	}
	if !pv.NextShard.Equal(pv.StartShard.Add(field.One)) {
		return fmt.Errorf("a segment must span exactly one shard")
	}
	if !pv.ContainsExecutionShard.IsOne() {
		return fmt.Errorf("execution segment must set contains_execution_shard")
	}
	if !pv.IsComplete.Equal(boolElement(IsCompleteExecution(&pv))) {
		return fmt.Errorf("is_complete flag is inconsistent")
	}
	return nil
}

// CompressAir constrains the join of up to CompressArity adjacent proofs.
// Each trace row holds the public values of one child.
type CompressAir struct{}

// NewCompressAir creates the compress constraint system
func NewCompressAir() *CompressAir { return &CompressAir{} }

func (a *CompressAir) Name() string { return CompressAirName }
func (a *CompressAir) Stage() Stage { return StageCompress }
func (a *CompressAir) Width() int   { return RecursionPublicValuesLen }

// Eval checks that the exposed public values are the reduction of the
// children.
func (a *CompressAir) Eval(w *Witness) error {
	if err := checkShape(w, a.Width()); err != nil {
		return err
	}
	if len(w.Rows) > CompressArity {
		return fmt.Errorf("compress joins at most %d proofs, got %d", CompressArity, len(w.Rows))
	}
	out, err := RecursionPublicValuesFromSlice(w.PublicValues)
	if err != nil {
		return err
	}

	children := make([]RecursionPublicValues, len(w.Rows))
	for i, row := range w.Rows {
		children[i], _ = RecursionPublicValuesFromSlice(row)
	}
	want, err := reduce(children, out.CompressVKDigest)
	if err != nil {
		return err
	}
	if !equalHashedPrefix(&want, &out) {
		return fmt.Errorf("public values are not the reduction of the children")
	}
	return nil
}

// ShrinkAir constrains a re-proof of a single compressed proof.
type ShrinkAir struct{}

// NewShrinkAir creates the shrink constraint system
func NewShrinkAir() *ShrinkAir { return &ShrinkAir{} }

func (a *ShrinkAir) Name() string { return ShrinkAirName }
func (a *ShrinkAir) Stage() Stage { return StageShrink }
func (a *ShrinkAir) Width() int   { return RecursionPublicValuesLen }

// Eval checks that the public values pass through unchanged.
func (a *ShrinkAir) Eval(w *Witness) error {
	if err := checkShape(w, a.Width()); err != nil {
		return err
	}
	if len(w.Rows) != 1 {
		return fmt.Errorf("shrink takes exactly one proof, got %d", len(w.Rows))
	}
	in, _ := RecursionPublicValuesFromSlice(w.Rows[0])
	out, err := RecursionPublicValuesFromSlice(w.PublicValues)
	if err != nil {
		return err
	}
	if !equalHashedPrefix(&in, &out) {
		return fmt.Errorf("shrink must not change public values")
	}
	return nil
}

func checkShape(w *Witness, width int) error {
	if w == nil || len(w.Rows) == 0 {
		return fmt.Errorf("empty trace")
	}
	for i, row := range w.Rows {
		if len(row) != width {
			return fmt.Errorf("row %d has width %d, expected %d", i, len(row), width)
		}
	}
	return nil
}
