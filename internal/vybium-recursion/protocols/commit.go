package protocols

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/hash"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/merkle"

	"github.com/vybium/vybium-recursion/internal/vybium-recursion/core"
	"github.com/vybium/vybium-recursion/internal/vybium-recursion/utils"
)

// hashRows hashes every row into a Tip5 leaf. The trace is padded with zero
// rows up to a power of two of at least two leaves.
func hashRows(rows [][]field.Element, width int) []hash.Digest {
	height := utils.NextPowerOfTwo(max(len(rows), 2))
	leaves := make([]hash.Digest, height)

	zero := make([]field.Element, width)
	for i := range zero {
		zero[i] = field.Zero
	}
	for i := range leaves {
		row := zero
		if i < len(rows) {
			row = rows[i]
		}
		leaves[i] = hash.HashVarlen(row)
	}
	return leaves
}

// commitLeaves builds the Merkle tree over leaves and returns its root.
func commitLeaves(leaves []hash.Digest) (hash.Digest, error) {
	tree, err := merkle.New(leaves)
	if err != nil {
		return hash.Digest{}, fmt.Errorf("failed to create Merkle tree: %w", err)
	}
	return tree.Root(), nil
}

// VerifyingKey commits to the preprocessed data of a machine: the program
// for the core stage, the machine descriptor for recursive stages.
type VerifyingKey struct {
	Commitment hash.Digest
	PCStart    field.Element
	Width      int
	// Digest binds the key into public values.
	Digest core.Digest
}

// NewVerifyingKey commits to preprocessed and derives the vk digest as the
// hash of the commitment, the start pc and the width.
func NewVerifyingKey(cfg core.HashConfig, preprocessed [][]field.Element, pcStart field.Element, width int) (*VerifyingKey, error) {
	root, err := commitLeaves(hashRows(preprocessed, width))
	if err != nil {
		return nil, err
	}

	input := make([]field.Element, 0, hash.DigestLen+2)
	input = append(input, root[:]...)
	input = append(input, pcStart, field.New(uint64(width)))

	return &VerifyingKey{
		Commitment: root,
		PCStart:    pcStart,
		Width:      width,
		Digest:     cfg.HashSlice(input),
	}, nil
}

// ProgramVerifyingKey commits to a program given as instruction words.
func ProgramVerifyingKey(cfg core.HashConfig, program []uint32, pcStart uint32) (*VerifyingKey, error) {
	if len(program) == 0 {
		return nil, fmt.Errorf("empty program")
	}
	rows := make([][]field.Element, len(program))
	for i, instr := range program {
		pc := uint64(pcStart) + uint64(i)*PCStep
		rows[i] = []field.Element{field.New(pc), field.New(uint64(instr))}
	}
	return NewVerifyingKey(cfg, rows, field.New(uint64(pcStart)), 2)
}

// MachineVerifyingKey commits to the descriptor of a recursive machine so
// that its vk digest changes with the configuration or the AIR.
func MachineVerifyingKey(cfg core.HashConfig, sc StarkConfig, air ConstraintSystem) (*VerifyingKey, error) {
	row := make([]field.Element, 0, 4)
	row = append(row, encodeName(sc.Name())...)
	row = append(row, encodeName(air.Name())...)
	row = append(row, field.New(uint64(air.Width())), field.New(uint64(sc.NumQueries())))
	return NewVerifyingKey(cfg, [][]field.Element{row}, field.Zero, len(row))
}

func encodeName(name string) []field.Element {
	var v uint64
	for i := 0; i < len(name) && i < 7; i++ {
		v |= uint64(name[i]) << (8 * i)
	}
	return []field.Element{field.New(v), field.New(uint64(len(name)))}
}
