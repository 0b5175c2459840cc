package vybiumrecursion

import (
	"bytes"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
	"go.uber.org/multierr"
	"golang.org/x/crypto/blake2b"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/hash"

	"github.com/vybium/vybium-recursion/internal/vybium-recursion/protocols"
)

const snapshotVersion = 1

var snapshotMagic = []byte("VRRP")

type snapshotOpening struct {
	Index int      `cbor:"1,keyasint"`
	Row   []uint64 `cbor:"2,keyasint"`
}

type snapshotProof struct {
	Stage        int               `cbor:"1,keyasint"`
	AIR          string            `cbor:"2,keyasint"`
	Config       string            `cbor:"3,keyasint"`
	Commitment   []uint64          `cbor:"4,keyasint"`
	Leaves       [][]uint64        `cbor:"5,keyasint"`
	Height       int               `cbor:"6,keyasint"`
	Challenges   []uint64          `cbor:"7,keyasint"`
	Openings     []snapshotOpening `cbor:"8,keyasint"`
	PublicValues []uint64          `cbor:"9,keyasint"`
}

type snapshot struct {
	Version          int           `cbor:"1,keyasint"`
	Proof            snapshotProof `cbor:"2,keyasint"`
	RootPublicValues []uint64      `cbor:"3,keyasint"`
	Rounds           int           `cbor:"4,keyasint"`
	Segments         int           `cbor:"5,keyasint"`
	Cycles           uint64        `cbor:"6,keyasint"`
	Partial          bool          `cbor:"7,keyasint"`
}

// EncodeSnapshot serializes a root proof as deterministic CBOR framed by a
// magic and a blake2b-256 checksum of the payload.
func EncodeSnapshot(root *RootProof) ([]byte, error) {
	if root == nil || root.Proof == nil {
		return nil, protocols.NewError(protocols.ErrIOFailure, protocols.StageRoot, "no proof to encode", nil)
	}
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, protocols.NewError(protocols.ErrIOFailure, protocols.StageRoot, "cbor encoder", err)
	}

	rootPV := root.PublicValues.AsArray()
	payload, err := em.Marshal(snapshot{
		Version:          snapshotVersion,
		Proof:            toSnapshotProof(root.Proof),
		RootPublicValues: toUint64s(rootPV[:]),
		Rounds:           root.Rounds,
		Segments:         root.Segments,
		Cycles:           root.Cycles,
		Partial:          root.Partial,
	})
	if err != nil {
		return nil, protocols.NewError(protocols.ErrIOFailure, protocols.StageRoot, "encode snapshot", err)
	}

	sum := blake2b.Sum256(payload)
	out := make([]byte, 0, len(snapshotMagic)+len(sum)+len(payload))
	out = append(out, snapshotMagic...)
	out = append(out, sum[:]...)
	return append(out, payload...), nil
}

// DecodeSnapshot is the inverse of EncodeSnapshot
func DecodeSnapshot(data []byte) (*RootProof, error) {
	header := len(snapshotMagic) + blake2b.Size256
	if len(data) < header || !bytes.Equal(data[:len(snapshotMagic)], snapshotMagic) {
		return nil, snapshotError("not a root proof snapshot", nil)
	}
	payload := data[header:]
	sum := blake2b.Sum256(payload)
	if !bytes.Equal(sum[:], data[len(snapshotMagic):header]) {
		return nil, snapshotError("checksum mismatch", nil)
	}

	var s snapshot
	if err := cbor.Unmarshal(payload, &s); err != nil {
		return nil, snapshotError("decode snapshot", err)
	}
	if s.Version != snapshotVersion {
		return nil, snapshotError(fmt.Sprintf("unsupported snapshot version %d", s.Version), nil)
	}

	proof, err := fromSnapshotProof(&s.Proof)
	if err != nil {
		return nil, snapshotError("decode proof", err)
	}
	elems, err := toElements(s.RootPublicValues)
	if err != nil {
		return nil, snapshotError("decode root public values", err)
	}
	rootPV, err := protocols.RootPublicValuesFromSlice(elems)
	if err != nil {
		return nil, snapshotError("decode root public values", err)
	}

	return &RootProof{
		Proof:        proof,
		PublicValues: rootPV,
		Rounds:       s.Rounds,
		Segments:     s.Segments,
		Cycles:       s.Cycles,
		Partial:      s.Partial,
	}, nil
}

// SaveSnapshot writes a root proof to path
func SaveSnapshot(path string, root *RootProof) (err error) {
	data, err := EncodeSnapshot(root)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return snapshotError("create snapshot", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = multierr.Append(err, snapshotError("close snapshot", cerr))
		}
	}()

	if _, err := f.Write(data); err != nil {
		return snapshotError("write snapshot", err)
	}
	return nil
}

// LoadSnapshot reads a root proof from path
func LoadSnapshot(path string) (*RootProof, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, snapshotError("read snapshot", err)
	}
	return DecodeSnapshot(data)
}

func snapshotError(msg string, cause error) error {
	return protocols.NewError(protocols.ErrIOFailure, protocols.StageRoot, msg, cause)
}

func toSnapshotProof(p *protocols.ShardProof) snapshotProof {
	leaves := make([][]uint64, len(p.Leaves))
	for i, leaf := range p.Leaves {
		leaves[i] = toUint64s(leaf[:])
	}
	openings := make([]snapshotOpening, len(p.Openings))
	for i, o := range p.Openings {
		openings[i] = snapshotOpening{Index: o.Index, Row: toUint64s(o.Row)}
	}
	return snapshotProof{
		Stage:        int(p.Stage),
		AIR:          p.AIR,
		Config:       p.Config,
		Commitment:   toUint64s(p.Commitment[:]),
		Leaves:       leaves,
		Height:       p.Height,
		Challenges:   toUint64s(p.Challenges),
		Openings:     openings,
		PublicValues: toUint64s(p.PublicValues),
	}
}

func fromSnapshotProof(s *snapshotProof) (*protocols.ShardProof, error) {
	commitment, err := toHashDigest(s.Commitment)
	if err != nil {
		return nil, fmt.Errorf("commitment: %w", err)
	}
	leaves := make([]hash.Digest, len(s.Leaves))
	for i, leaf := range s.Leaves {
		if leaves[i], err = toHashDigest(leaf); err != nil {
			return nil, fmt.Errorf("leaf %d: %w", i, err)
		}
	}
	challenges, err := toElements(s.Challenges)
	if err != nil {
		return nil, fmt.Errorf("challenges: %w", err)
	}
	openings := make([]protocols.Opening, len(s.Openings))
	for i, o := range s.Openings {
		row, err := toElements(o.Row)
		if err != nil {
			return nil, fmt.Errorf("opening %d: %w", i, err)
		}
		openings[i] = protocols.Opening{Index: o.Index, Row: row}
	}
	publicValues, err := toElements(s.PublicValues)
	if err != nil {
		return nil, fmt.Errorf("public values: %w", err)
	}

	return &protocols.ShardProof{
		Stage:        protocols.Stage(s.Stage),
		AIR:          s.AIR,
		Config:       s.Config,
		Commitment:   commitment,
		Leaves:       leaves,
		Height:       s.Height,
		Challenges:   challenges,
		Openings:     openings,
		PublicValues: publicValues,
	}, nil
}

func toUint64s(elems []field.Element) []uint64 {
	out := make([]uint64, len(elems))
	for i, e := range elems {
		out[i] = e.Value()
	}
	return out
}

func toElements(values []uint64) ([]field.Element, error) {
	out := make([]field.Element, len(values))
	for i, v := range values {
		if v >= field.P {
			return nil, fmt.Errorf("element %d is not reduced: %d", i, v)
		}
		out[i] = field.New(v)
	}
	return out, nil
}

func toHashDigest(values []uint64) (hash.Digest, error) {
	var d hash.Digest
	if len(values) != len(d) {
		return d, fmt.Errorf("digest has %d elements, expected %d", len(values), len(d))
	}
	elems, err := toElements(values)
	if err != nil {
		return d, err
	}
	copy(d[:], elems)
	return d, nil
}
