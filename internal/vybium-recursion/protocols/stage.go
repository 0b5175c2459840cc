package protocols

// Stage identifies a step of the recursive proving pipeline.
type Stage int

const (
	StageUnknown Stage = iota
	// StageCore proves a single execution segment.
	StageCore
	// StageCompress joins two proofs into one.
	StageCompress
	// StageShrink reduces the size of the final compressed proof.
	StageShrink
	// StageRoot binds the vk digest and committed value digest.
	StageRoot
)

func (s Stage) String() string {
	switch s {
	case StageCore:
		return "core"
	case StageCompress:
		return "compress"
	case StageShrink:
		return "shrink"
	case StageRoot:
		return "root"
	default:
		return "unknown"
	}
}
