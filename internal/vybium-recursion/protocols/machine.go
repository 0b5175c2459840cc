package protocols

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/hash"

	"github.com/vybium/vybium-recursion/internal/vybium-recursion/core"
	"github.com/vybium/vybium-recursion/internal/vybium-recursion/utils"
)

// Stark configuration identifiers
const (
	CoreSCName  = "core-sc"
	InnerSCName = "inner-sc"
)

// StarkConfig is a proof system configuration
type StarkConfig interface {
	Name() string
	HashConfig() core.HashConfig
	NumQueries() int
	MaxTraceCells() int
}

type starkConfig struct {
	hash     core.HashConfig
	queries  int
	maxCells int
}

func newStarkConfig(cfg *utils.Config) (starkConfig, error) {
	if err := cfg.Validate(); err != nil {
		return starkConfig{}, err
	}
	hc, err := cfg.HashConfig()
	if err != nil {
		return starkConfig{}, err
	}
	return starkConfig{hash: hc, queries: cfg.FRIQueries, maxCells: cfg.MaxTraceCells}, nil
}

func (c *starkConfig) HashConfig() core.HashConfig { return c.hash }
func (c *starkConfig) NumQueries() int             { return c.queries }
func (c *starkConfig) MaxTraceCells() int          { return c.maxCells }

// CoreSC configures proofs of execution segments
type CoreSC struct {
	starkConfig
}

// NewCoreSC creates the core stark configuration
func NewCoreSC(cfg *utils.Config) (*CoreSC, error) {
	sc, err := newStarkConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &CoreSC{sc}, nil
}

// Name returns CoreSCName
func (c *CoreSC) Name() string { return CoreSCName }

// InnerSC configures recursive proofs (compress and shrink)
type InnerSC struct {
	starkConfig
}

// NewInnerSC creates the inner stark configuration
func NewInnerSC(cfg *utils.Config) (*InnerSC, error) {
	sc, err := newStarkConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &InnerSC{sc}, nil
}

// Name returns InnerSCName
func (c *InnerSC) Name() string { return InnerSCName }

// Witness is the input of a single prove call: the trace rows and the public
// values the proof will expose.
type Witness struct {
	Rows         [][]field.Element
	PublicValues []field.Element
}

// Cells returns the number of trace cells
func (w *Witness) Cells() int {
	n := 0
	for _, row := range w.Rows {
		n += len(row)
	}
	return n
}

// Opening is a trace row revealed at a queried index
type Opening struct {
	Index int
	Row   []field.Element
}

// ShardProof is a proof of one constraint system instance
type ShardProof struct {
	Stage  Stage
	AIR    string
	Config string

	Commitment hash.Digest
	Leaves     []hash.Digest
	Height     int

	Challenges []field.Element
	Openings   []Opening

	PublicValues []field.Element
}

// RecursionPublicValues parses the proof's public values
func (p *ShardProof) RecursionPublicValues() (RecursionPublicValues, error) {
	pv, err := RecursionPublicValuesFromSlice(p.PublicValues)
	if err != nil {
		return RecursionPublicValues{}, fmt.Errorf("%s proof: %w", p.Stage, err)
	}
	return pv, nil
}

// MachineProver proves and verifies instances of one constraint system
// under one stark configuration. The type parameters fix the pairing a
// pipeline stage requires.
type MachineProver[C StarkConfig, A ConstraintSystem] interface {
	Config() C
	Machine() A
	Prove(w *Witness) (*ShardProof, error)
	Verify(proof *ShardProof) error
}
