package vybiumrecursion

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-recursion/internal/vybium-recursion/core"
	"github.com/vybium/vybium-recursion/internal/vybium-recursion/protocols"
	"github.com/vybium/vybium-recursion/internal/vybium-recursion/utils"
)

// State is the progress of a single proving run
type State int

const (
	StateInitial State = iota
	// StateBaseProven means every segment has a verified core proof
	StateBaseProven
	// StateCompressing means at least one compress round has started
	StateCompressing
	// StateShrunk means the single compressed proof was shrunk
	StateShrunk
	// StateRooted means the root public values were bound and checked
	StateRooted
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateBaseProven:
		return "base-proven"
	case StateCompressing:
		return "compressing"
	case StateShrunk:
		return "shrunk"
	case StateRooted:
		return "rooted"
	default:
		return "unknown"
	}
}

// Options configures a Pipeline
type Options struct {
	Logger zerolog.Logger
	// OnTransition is called on every state change of a run
	OnTransition func(from, to State)
}

// Option modifies Options
type Option func(*Options)

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

// WithTransitionHook sets the state change callback
func WithTransitionHook(fn func(from, to State)) Option {
	return func(o *Options) { o.OnTransition = fn }
}

// RootProof is the output of a run. A windowed run proves a sub-range of
// the execution; its proof is Partial and carries no root public values.
type RootProof struct {
	Proof        *protocols.ShardProof
	PublicValues protocols.RootPublicValues
	Rounds       int
	Segments     int
	Cycles       uint64
	Partial      bool
}

// Pipeline proves programs through the core, compress, shrink and root
// stages. It is read-only after construction and safe for concurrent use.
type Pipeline struct {
	components ProverComponents
	executor   Executor
	config     *utils.Config
	hash       core.HashConfig
	compressVK *protocols.VerifyingKey
	opts       Options
}

// NewPipeline validates the configuration and the prover bindings
func NewPipeline(components ProverComponents, executor Executor, config *utils.Config, opts ...Option) (*Pipeline, error) {
	if config == nil {
		config = utils.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, protocols.NewError(protocols.ErrInvalidConfig, protocols.StageUnknown, "invalid configuration", err)
	}
	if executor == nil {
		return nil, protocols.NewError(protocols.ErrInvalidConfig, protocols.StageUnknown, "no executor", nil)
	}
	if err := ValidateComponents(components); err != nil {
		return nil, err
	}

	hc, err := config.HashConfig()
	if err != nil {
		return nil, protocols.NewError(protocols.ErrInvalidConfig, protocols.StageUnknown, "hash configuration", err)
	}
	if components.CoreProver().Config().HashConfig().Parameters() != hc.Parameters() {
		return nil, protocols.NewError(protocols.ErrCapabilityMismatch, protocols.StageCore,
			"prover hash parameters differ from the configuration", nil)
	}

	compress := components.CompressProver()
	compressVK, err := protocols.MachineVerifyingKey(hc, compress.Config(), compress.Machine())
	if err != nil {
		return nil, protocols.NewError(protocols.ErrProvingFailure, protocols.StageCompress, "compress verifying key", err)
	}

	o := Options{Logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	return &Pipeline{
		components: components,
		executor:   executor,
		config:     config.Clone(),
		hash:       hc,
		compressVK: compressVK,
		opts:       o,
	}, nil
}

// HashConfig returns the hash configuration used for public value digests
func (p *Pipeline) HashConfig() core.HashConfig { return p.hash }

// run tracks the state of one Prove call
type run struct {
	p     *Pipeline
	state State
}

func (r *run) transition(to State) {
	from := r.state
	r.state = to
	r.p.opts.Logger.Debug().Stringer("from", from).Stringer("to", to).Msg("state transition")
	if r.p.opts.OnTransition != nil {
		r.p.opts.OnTransition(from, to)
	}
}

// Prove executes program on stdin and proves the execution down to a root
// proof. On any error no root proof is returned.
func (p *Pipeline) Prove(ctx context.Context, program []byte, stdin *Stdin) (*RootProof, error) {
	r := &run{p: p, state: StateInitial}
	log := p.opts.Logger

	words, err := DecodeProgram(program)
	if err != nil {
		return nil, protocols.NewError(protocols.ErrIOFailure, protocols.StageCore, "invalid program", err)
	}
	vk, err := protocols.ProgramVerifyingKey(p.hash, words, DefaultPCStart)
	if err != nil {
		return nil, protocols.NewError(protocols.ErrProvingFailure, protocols.StageCore, "program verifying key", err)
	}

	record, err := p.executor.Execute(program, stdin)
	if err != nil {
		return nil, protocols.NewError(protocols.ErrProvingFailure, protocols.StageCore, "execution failed", err)
	}
	segments := slices.Collect(utils.MaybeRange(record.Segments(), p.config.SkipSegments, p.config.MaxSegments))
	if len(segments) == 0 {
		return nil, protocols.NewError(protocols.ErrProvingFailure, protocols.StageCore, "no segments to prove", nil)
	}
	windowed := len(segments) < record.NumSegments()
	log.Info().
		Uint64("cycles", record.Cycles()).
		Int("segments", len(segments)).
		Int("total_segments", record.NumSegments()).
		Int("expected_rounds", max(1, utils.CeilLog2(len(segments)))).
		Str("vk", vk.Digest.String()).
		Msg("execution recorded")

	// Step 1: Core proofs
	pvs, err := p.proveCore(ctx, record, segments, vk.Digest)
	if err != nil {
		return nil, err
	}
	r.transition(StateBaseProven)

	// Step 2: Compress rounds
	r.transition(StateCompressing)
	compressed, rounds, err := p.compress(ctx, pvs)
	if err != nil {
		return nil, err
	}

	// Step 3: Shrink
	shrunk, pv, err := p.shrink(ctx, compressed)
	if err != nil {
		return nil, err
	}
	r.transition(StateShrunk)

	// Step 4: Root
	if !pv.VKDigest.Equal(vk.Digest) {
		return nil, protocols.NewError(protocols.ErrPublicValuesMismatch, protocols.StageRoot,
			"vk digest differs from the program verifying key", nil)
	}
	if windowed {
		// A sub-range never gets root public values, so it cannot stand in
		// for the whole execution.
		log.Info().Int("rounds", rounds).Uint64("start_shard", pv.StartShard.Value()).Msg("windowed run, root not bound")
		return &RootProof{
			Proof:    shrunk,
			Rounds:   rounds,
			Segments: len(segments),
			Cycles:   record.Cycles(),
			Partial:  true,
		}, nil
	}
	if err := checkComplete(&pv); err != nil {
		return nil, err
	}
	rootPV := p.root(&pv)
	r.transition(StateRooted)

	log.Info().Int("rounds", rounds).Str("digest", rootPV.Digest().String()).Msg("root proof ready")
	return &RootProof{
		Proof:        shrunk,
		PublicValues: rootPV,
		Rounds:       rounds,
		Segments:     len(segments),
		Cycles:       record.Cycles(),
	}, nil
}

func (p *Pipeline) proveCore(ctx context.Context, record *ExecutionRecord, segments []Segment, vkDigest core.Digest) ([]protocols.RecursionPublicValues, error) {
	prover := p.components.CoreProver()
	pvs := make([]protocols.RecursionPublicValues, len(segments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Workers)
	for i, seg := range segments {
		g.Go(func() error {
			pv := record.PublicValues(p.hash, seg, vkDigest)
			w := &protocols.Witness{Rows: seg.Rows, PublicValues: pv.Slice()}
			_, out, err := runStage(gctx, p, prover, w)
			if err != nil {
				return err
			}
			p.opts.Logger.Debug().Str("stage", "core").Int("segment", seg.Index).Msg("segment proven")
			pvs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pvs, nil
}

// compress joins adjacent proofs pairwise until one remains. An odd proof
// at the end of a round is carried to the next. A single proof still goes
// through one round.
func (p *Pipeline) compress(ctx context.Context, pvs []protocols.RecursionPublicValues) (protocols.RecursionPublicValues, int, error) {
	prover := p.components.CompressProver()
	rounds := 0

	for rounds == 0 || len(pvs) > 1 {
		rounds++
		groups := groupForRound(len(pvs))
		next := make([]protocols.RecursionPublicValues, len(groups))
		p.opts.Logger.Info().Str("stage", "compress").Int("round", rounds).Int("inputs", len(pvs)).Msg("compress round")

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.config.Workers)
		for gi, grp := range groups {
			children := pvs[grp.start:grp.end]
			if grp.carry {
				next[gi] = children[0]
				continue
			}
			g.Go(func() error {
				out, err := p.join(gctx, prover, children)
				if err != nil {
					return fmt.Errorf("round %d: %w", rounds, err)
				}
				next[gi] = out
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return protocols.RecursionPublicValues{}, rounds, err
		}
		pvs = next
	}
	return pvs[0], rounds, nil
}

type group struct {
	start, end int
	carry      bool
}

func groupForRound(n int) []group {
	if n == 1 {
		return []group{{start: 0, end: 1}}
	}
	groups := make([]group, 0, (n+1)/2)
	for i := 0; i < n; i += protocols.CompressArity {
		end := min(i+protocols.CompressArity, n)
		groups = append(groups, group{start: i, end: end, carry: end-i == 1})
	}
	return groups
}

// join proves one compress step over children, which must already be in
// execution order.
func (p *Pipeline) join(ctx context.Context, prover CompressProver, children []protocols.RecursionPublicValues) (protocols.RecursionPublicValues, error) {
	for i := range children {
		if err := protocols.AssertRecursionPublicValuesValid(p.hash, &children[i]); err != nil {
			return protocols.RecursionPublicValues{}, protocols.NewError(protocols.ErrDigestMismatch, protocols.StageCompress,
				fmt.Sprintf("input %d", i), err)
		}
	}
	reduced, err := protocols.ReducePublicValues(p.hash, children, p.compressVK.Digest)
	if err != nil {
		return protocols.RecursionPublicValues{}, protocols.NewError(protocols.ErrPublicValuesMismatch, protocols.StageCompress, "", err)
	}

	rows := make([][]field.Element, len(children))
	for i := range children {
		rows[i] = children[i].Slice()
	}
	_, out, err := runStage(ctx, p, prover, &protocols.Witness{Rows: rows, PublicValues: reduced.Slice()})
	return out, err
}

func (p *Pipeline) shrink(ctx context.Context, pv protocols.RecursionPublicValues) (*protocols.ShardProof, protocols.RecursionPublicValues, error) {
	if err := protocols.AssertRecursionPublicValuesValid(p.hash, &pv); err != nil {
		return nil, protocols.RecursionPublicValues{}, protocols.NewError(protocols.ErrDigestMismatch, protocols.StageShrink, "input", err)
	}
	w := &protocols.Witness{Rows: [][]field.Element{pv.Slice()}, PublicValues: pv.Slice()}
	proof, out, err := runStage(ctx, p, p.components.ShrinkProver(), w)
	if err != nil {
		return nil, protocols.RecursionPublicValues{}, err
	}
	p.opts.Logger.Info().Str("stage", "shrink").Int("height", proof.Height).Msg("proof shrunk")
	return proof, out, nil
}

// root binds the vk digest and the committed value digest of pv. The
// binding is checked against the shrink proof in Verify.
func (p *Pipeline) root(pv *protocols.RecursionPublicValues) protocols.RootPublicValues {
	unbound := protocols.NewRootPublicValues(pv.VKDigest, pv.CommittedValueDigest, core.Digest{})
	digest := protocols.RootPublicValuesDigest(p.hash, &unbound)
	return protocols.NewRootPublicValues(pv.VKDigest, pv.CommittedValueDigest, digest)
}

// checkComplete requires pv to cover the execution from its first shard up
// to the halt.
func checkComplete(pv *protocols.RecursionPublicValues) error {
	if !pv.StartShard.IsOne() || !pv.IsComplete.IsOne() || !protocols.IsCompleteExecution(pv) {
		return protocols.NewError(protocols.ErrPublicValuesMismatch, protocols.StageRoot,
			fmt.Sprintf("execution is not complete (start shard %d, is_complete %d)",
				pv.StartShard.Value(), pv.IsComplete.Value()), nil)
	}
	return nil
}

// runStage proves w, verifies the proof and asserts the digest of the public
// values it exposes. Cancellation is observed before proving.
func runStage[C protocols.StarkConfig, A protocols.ConstraintSystem](ctx context.Context, p *Pipeline, prover protocols.MachineProver[C, A], w *protocols.Witness) (*protocols.ShardProof, protocols.RecursionPublicValues, error) {
	var zero protocols.RecursionPublicValues
	stage := prover.Machine().Stage()
	if err := ctx.Err(); err != nil {
		return nil, zero, err
	}

	proof, err := p.prove(ctx, stage, func() (*protocols.ShardProof, error) { return prover.Prove(w) })
	if err != nil {
		return nil, zero, err
	}
	if err := prover.Verify(proof); err != nil {
		return nil, zero, protocols.NewError(protocols.ErrInvalidProof, stage, "", err)
	}
	pv, err := proof.RecursionPublicValues()
	if err != nil {
		return nil, zero, protocols.NewError(protocols.ErrInvalidProof, stage, "", err)
	}
	if err := protocols.AssertRecursionPublicValuesValid(p.hash, &pv); err != nil {
		p.opts.Logger.Error().Err(err).Stringer("stage", stage).Msg("public values digest mismatch")
		return nil, zero, protocols.NewError(protocols.ErrDigestMismatch, stage, "emitted public values", err)
	}
	return proof, pv, nil
}

// prove calls fn once, or retries it on resource exhaustion when retries
// are configured.
func (p *Pipeline) prove(ctx context.Context, stage protocols.Stage, fn func() (*protocols.ShardProof, error)) (*protocols.ShardProof, error) {
	if p.config.ProvingRetries == 0 {
		proof, err := fn()
		if err != nil {
			return nil, protocols.NewError(protocols.ErrProvingFailure, stage, "", err)
		}
		return proof, nil
	}

	var proof *protocols.ShardProof
	backoff := retry.WithMaxRetries(p.config.ProvingRetries, retry.NewExponential(max(p.config.RetryBackoff, time.Millisecond)))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		proof, err = fn()
		if errors.Is(err, protocols.ErrResourceExhausted) {
			p.opts.Logger.Warn().Err(err).Stringer("stage", stage).Msg("retrying after resource exhaustion")
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, err
		}
		return nil, protocols.NewError(protocols.ErrProvingFailure, stage, "", err)
	}
	return proof, nil
}

// Verify checks a root proof of a complete execution: the shrink proof, the
// recursion digest it exposes, completeness and the root digest binding.
// Partial proofs are rejected.
func (p *Pipeline) Verify(root *RootProof) error {
	pv, err := p.verifyShrunk(root)
	if err != nil {
		return err
	}
	if root.Partial {
		return protocols.NewError(protocols.ErrPublicValuesMismatch, protocols.StageRoot,
			"proof covers a segment window, not the whole execution", nil)
	}
	if err := checkComplete(&pv); err != nil {
		return err
	}

	rootPV := root.PublicValues
	if !rootPV.VKDigest().Equal(pv.VKDigest) || !wordsEqual(rootPV.CommittedValueDigest()[:], pv.CommittedValueDigest[:]) {
		return protocols.NewError(protocols.ErrPublicValuesMismatch, protocols.StageRoot,
			"root public values do not match the shrink proof", nil)
	}
	if err := protocols.AssertRootPublicValuesValid(p.hash, &rootPV); err != nil {
		return protocols.NewError(protocols.ErrDigestMismatch, protocols.StageRoot, "", err)
	}
	return nil
}

// VerifyPartial checks the shrink proof of a windowed run and the recursion
// digest it exposes. It says nothing about completeness.
func (p *Pipeline) VerifyPartial(root *RootProof) (protocols.RecursionPublicValues, error) {
	return p.verifyShrunk(root)
}

func (p *Pipeline) verifyShrunk(root *RootProof) (protocols.RecursionPublicValues, error) {
	var zero protocols.RecursionPublicValues
	if root == nil || root.Proof == nil {
		return zero, protocols.NewError(protocols.ErrInvalidProof, protocols.StageRoot, "no proof", nil)
	}
	if err := p.components.ShrinkProver().Verify(root.Proof); err != nil {
		return zero, protocols.NewError(protocols.ErrInvalidProof, protocols.StageShrink, "", err)
	}
	pv, err := root.Proof.RecursionPublicValues()
	if err != nil {
		return zero, protocols.NewError(protocols.ErrInvalidProof, protocols.StageShrink, "", err)
	}
	if err := protocols.AssertRecursionPublicValuesValid(p.hash, &pv); err != nil {
		return zero, protocols.NewError(protocols.ErrDigestMismatch, protocols.StageShrink, "", err)
	}
	return pv, nil
}

func wordsEqual(a, b []core.Word) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		for j := range a[i] {
			if !a[i][j].Equal(b[i][j]) {
				return false
			}
		}
	}
	return true
}
