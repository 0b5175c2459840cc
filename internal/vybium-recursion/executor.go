package vybiumrecursion

import (
	"encoding/binary"
	"fmt"
	"iter"
	"slices"

	"golang.org/x/crypto/sha3"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-recursion/internal/vybium-recursion/core"
	"github.com/vybium/vybium-recursion/internal/vybium-recursion/protocols"
)

// DefaultPCStart is the address of the first instruction.
const DefaultPCStart = 0x1000

// Stdin holds the input buffers of a program.
type Stdin struct {
	buffer [][]byte
}

// NewStdin creates an empty input
func NewStdin() *Stdin {
	return &Stdin{}
}

// Write appends a buffer
func (s *Stdin) Write(data []byte) {
	s.buffer = append(s.buffer, append([]byte(nil), data...))
}

// WriteUint32 appends v as a little-endian buffer
func (s *Stdin) WriteUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	s.Write(b[:])
}

// Buffers returns the written buffers in order
func (s *Stdin) Buffers() [][]byte {
	if s == nil {
		return nil
	}
	return slices.Clone(s.buffer)
}

// Executor runs a program and records its trace in segments.
type Executor interface {
	Execute(program []byte, stdin *Stdin) (*ExecutionRecord, error)
	Cycles(program []byte, stdin *Stdin) (uint64, error)
}

// Segment is a contiguous slice of the execution trace proven by one core
// proof.
type Segment struct {
	Index   int
	StartPC uint64
	// NextPC is protocols.HaltPC for the final segment.
	NextPC field.Element
	Rows   [][]field.Element
}

// ExecutionRecord is the result of running a program
type ExecutionRecord struct {
	segments             []Segment
	cycles               uint64
	committedValueDigest [protocols.PVDigestNumWords]core.Word
	exitCode             uint32
	output               []byte
}

// NewExecutionRecord builds a record. The committed value digest is the
// sha3-256 digest of output.
func NewExecutionRecord(segments []Segment, cycles uint64, output []byte, exitCode uint32) *ExecutionRecord {
	digest := sha3.Sum256(output)
	return &ExecutionRecord{
		segments:             segments,
		cycles:               cycles,
		committedValueDigest: core.WordsFromBytesBE(digest),
		exitCode:             exitCode,
		output:               slices.Clone(output),
	}
}

// Segments yields the segments in execution order
func (r *ExecutionRecord) Segments() iter.Seq[Segment] {
	return slices.Values(r.segments)
}

// NumSegments returns the number of segments
func (r *ExecutionRecord) NumSegments() int { return len(r.segments) }

// Cycles returns the number of executed cycles
func (r *ExecutionRecord) Cycles() uint64 { return r.cycles }

// Output returns the committed output bytes
func (r *ExecutionRecord) Output() []byte { return slices.Clone(r.output) }

// CommittedValueDigest returns the sha3-256 digest of the output as words
func (r *ExecutionRecord) CommittedValueDigest() [protocols.PVDigestNumWords]core.Word {
	return r.committedValueDigest
}

// ExitCode returns the program exit code
func (r *ExecutionRecord) ExitCode() uint32 { return r.exitCode }

// PublicValues returns the public values of seg, bound to the program vk and
// carrying a fresh digest.
func (r *ExecutionRecord) PublicValues(hc core.HashConfig, seg Segment, vkDigest core.Digest) protocols.RecursionPublicValues {
	shard := field.New(uint64(seg.Index + 1))
	next := field.New(uint64(seg.Index + 2))

	pv := protocols.NewRecursionPublicValues()
	pv.CommittedValueDigest = r.committedValueDigest
	pv.StartPC = field.New(seg.StartPC)
	pv.NextPC = seg.NextPC
	pv.StartShard = shard
	pv.NextShard = next
	pv.StartExecutionShard = shard
	pv.NextExecutionShard = next
	pv.VKDigest = vkDigest
	pv.ContainsExecutionShard = field.One
	if protocols.IsCompleteExecution(&pv) {
		pv.IsComplete = field.One
	}
	pv.ExitCode = field.New(uint64(r.exitCode))
	pv.Digest = protocols.RecursionPublicValuesDigest(hc, &pv)
	return pv
}

// DecodeProgram splits a program image into little-endian instruction words
func DecodeProgram(program []byte) ([]uint32, error) {
	if len(program) == 0 {
		return nil, fmt.Errorf("empty program")
	}
	if len(program)%4 != 0 {
		return nil, fmt.Errorf("program length %d is not a multiple of 4", len(program))
	}
	words := make([]uint32, len(program)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(program[4*i:])
	}
	return words, nil
}

// WordMachine is a deterministic reference machine: each cycle executes one
// instruction word and adds it to an accumulator seeded from stdin. The
// program halts after its last word and commits the accumulator.
type WordMachine struct {
	ShardSize int
	PCStart   uint32
}

// NewWordMachine creates a machine that cuts segments of shardSize cycles
func NewWordMachine(shardSize int) *WordMachine {
	return &WordMachine{ShardSize: shardSize, PCStart: DefaultPCStart}
}

// Execute runs the program and records its trace
func (m *WordMachine) Execute(program []byte, stdin *Stdin) (*ExecutionRecord, error) {
	if m.ShardSize <= 0 {
		return nil, fmt.Errorf("shard size must be positive, got %d", m.ShardSize)
	}
	words, err := DecodeProgram(program)
	if err != nil {
		return nil, err
	}

	acc := seed(stdin)
	rows := make([][]field.Element, len(words))
	for clk, instr := range words {
		in := field.New(uint64(instr))
		acc = acc.Add(in)
		rows[clk] = []field.Element{
			field.New(uint64(clk)),
			field.New(m.pc(clk)),
			in,
			acc,
		}
	}

	var segments []Segment
	for start := 0; start < len(rows); start += m.ShardSize {
		end := min(start+m.ShardSize, len(rows))
		next := protocols.HaltPC
		if end < len(rows) {
			next = field.New(m.pc(end))
		}
		segments = append(segments, Segment{
			Index:   len(segments),
			StartPC: m.pc(start),
			NextPC:  next,
			Rows:    rows[start:end],
		})
	}

	output := binary.LittleEndian.AppendUint64(nil, acc.Value())
	return NewExecutionRecord(segments, uint64(len(words)), output, 0), nil
}

// Cycles counts the cycles of a run without recording a trace
func (m *WordMachine) Cycles(program []byte, stdin *Stdin) (uint64, error) {
	words, err := DecodeProgram(program)
	if err != nil {
		return 0, err
	}
	return uint64(len(words)), nil
}

func (m *WordMachine) pc(clk int) uint64 {
	return uint64(m.PCStart) + uint64(clk)*protocols.PCStep
}

// seed folds the stdin buffers into the initial accumulator, four bytes at a
// time.
func seed(stdin *Stdin) field.Element {
	acc := field.Zero
	for _, buf := range stdin.Buffers() {
		for i := 0; i < len(buf); i += 4 {
			var chunk [4]byte
			copy(chunk[:], buf[i:])
			acc = acc.Add(field.New(uint64(binary.LittleEndian.Uint32(chunk[:]))))
		}
	}
	return acc
}
