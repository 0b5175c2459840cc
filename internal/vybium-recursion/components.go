package vybiumrecursion

import (
	"fmt"

	"github.com/vybium/vybium-recursion/internal/vybium-recursion/protocols"
	"github.com/vybium/vybium-recursion/internal/vybium-recursion/utils"
)

// Stage prover bindings. The type parameters fix the configuration and
// constraint system each stage requires.
type (
	CoreProver     = protocols.MachineProver[*protocols.CoreSC, *protocols.RiscvAir]
	CompressProver = protocols.MachineProver[*protocols.InnerSC, *protocols.CompressAir]
	ShrinkProver   = protocols.MachineProver[*protocols.InnerSC, *protocols.ShrinkAir]
)

// ProverComponents supplies one prover per pipeline stage. It is the only
// place a proving backend is chosen; the pipeline never depends on a
// concrete prover type.
type ProverComponents interface {
	CoreProver() CoreProver
	CompressProver() CompressProver
	ShrinkProver() ShrinkProver
}

// StaticComponents is a ProverComponents over fixed bindings
type StaticComponents struct {
	core     CoreProver
	compress CompressProver
	shrink   ShrinkProver
}

// NewStaticComponents bundles three stage provers
func NewStaticComponents(core CoreProver, compress CompressProver, shrink ShrinkProver) *StaticComponents {
	return &StaticComponents{core: core, compress: compress, shrink: shrink}
}

func (c *StaticComponents) CoreProver() CoreProver         { return c.core }
func (c *StaticComponents) CompressProver() CompressProver { return c.compress }
func (c *StaticComponents) ShrinkProver() ShrinkProver     { return c.shrink }

// DefaultProverComponents binds the reference CpuProver to every stage
func DefaultProverComponents(cfg *utils.Config) (*StaticComponents, error) {
	coreSC, err := protocols.NewCoreSC(cfg)
	if err != nil {
		return nil, protocols.NewError(protocols.ErrInvalidConfig, protocols.StageCore, "core stark config", err)
	}
	innerSC, err := protocols.NewInnerSC(cfg)
	if err != nil {
		return nil, protocols.NewError(protocols.ErrInvalidConfig, protocols.StageCompress, "inner stark config", err)
	}

	return NewStaticComponents(
		protocols.NewCpuProver(coreSC, protocols.NewRiscvAir()),
		protocols.NewCpuProver(innerSC, protocols.NewCompressAir()),
		protocols.NewCpuProver(innerSC, protocols.NewShrinkAir()),
	), nil
}

// capability is what a stage expects of its binding
type capability struct {
	stage  protocols.Stage
	config string
	air    string
}

var (
	coreCapability     = capability{protocols.StageCore, protocols.CoreSCName, protocols.RiscvAirName}
	compressCapability = capability{protocols.StageCompress, protocols.InnerSCName, protocols.CompressAirName}
	shrinkCapability   = capability{protocols.StageShrink, protocols.InnerSCName, protocols.ShrinkAirName}
)

// ValidateComponents checks that every binding is present and declares the
// configuration and constraint system its stage requires, and that all
// stages hash public values the same way.
func ValidateComponents(c ProverComponents) error {
	if c == nil {
		return protocols.NewError(protocols.ErrCapabilityMismatch, protocols.StageUnknown, "no prover components", nil)
	}

	core := c.CoreProver()
	if core == nil {
		return missingBinding(protocols.StageCore)
	}
	if err := checkBinding(coreCapability, core.Config(), core.Machine()); err != nil {
		return err
	}

	compress := c.CompressProver()
	if compress == nil {
		return missingBinding(protocols.StageCompress)
	}
	if err := checkBinding(compressCapability, compress.Config(), compress.Machine()); err != nil {
		return err
	}

	shrink := c.ShrinkProver()
	if shrink == nil {
		return missingBinding(protocols.StageShrink)
	}
	if err := checkBinding(shrinkCapability, shrink.Config(), shrink.Machine()); err != nil {
		return err
	}

	params := core.Config().HashConfig().Parameters()
	if compress.Config().HashConfig().Parameters() != params {
		return protocols.NewError(protocols.ErrCapabilityMismatch, protocols.StageCompress,
			"hash parameters differ from the core stage", nil)
	}
	if shrink.Config().HashConfig().Parameters() != params {
		return protocols.NewError(protocols.ErrCapabilityMismatch, protocols.StageShrink,
			"hash parameters differ from the core stage", nil)
	}
	return nil
}

func missingBinding(stage protocols.Stage) error {
	return protocols.NewError(protocols.ErrCapabilityMismatch, stage, "no prover bound", nil)
}

func checkBinding[C protocols.StarkConfig, A protocols.ConstraintSystem](want capability, config C, machine A) error {
	if isNil(config) || isNil(machine) {
		return protocols.NewError(protocols.ErrCapabilityMismatch, want.stage, "prover has no configuration or constraint system", nil)
	}
	if config.HashConfig().IsZero() {
		return protocols.NewError(protocols.ErrCapabilityMismatch, want.stage, "configuration has no hash", nil)
	}
	if got := config.Name(); got != want.config {
		return protocols.NewError(protocols.ErrCapabilityMismatch, want.stage,
			fmt.Sprintf("configuration %q, expected %q", got, want.config), nil)
	}
	if got := machine.Name(); got != want.air {
		return protocols.NewError(protocols.ErrCapabilityMismatch, want.stage,
			fmt.Sprintf("constraint system %q, expected %q", got, want.air), nil)
	}
	if got := machine.Stage(); got != want.stage {
		return protocols.NewError(protocols.ErrCapabilityMismatch, want.stage,
			fmt.Sprintf("constraint system belongs to the %s stage", got), nil)
	}
	return nil
}

// isNil reports whether v is a nil interface or holds a nil pointer of one of
// the stage types.
func isNil(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case *protocols.CoreSC:
		return x == nil
	case *protocols.InnerSC:
		return x == nil
	case *protocols.RiscvAir:
		return x == nil
	case *protocols.CompressAir:
		return x == nil
	case *protocols.ShrinkAir:
		return x == nil
	}
	return false
}
