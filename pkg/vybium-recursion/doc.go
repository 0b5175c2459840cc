// Package vybiumrecursion proves program executions with recursively
// composed STARK proofs.
//
// An execution is split into segments. Every segment gets a core proof,
// adjacent proofs are joined pairwise by compress proofs until a single
// proof remains, which is shrunk and finally bound into root public values.
// Each proof exposes public values together with a Poseidon digest over
// them; the digest is recomputed and checked at every join, so a stage
// cannot drop, reorder or forge the execution facts it certifies.
//
// # Quick Start
//
//	config := vybiumrecursion.DefaultConfig().WithShardSize(1 << 12)
//	prover, err := vybiumrecursion.NewProver(config)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	stdin := vybiumrecursion.NewStdin()
//	stdin.WriteUint32(42)
//
//	root, err := prover.Prove(ctx, program, stdin)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if err := prover.Verify(root); err != nil {
//		log.Fatal(err)
//	}
//
// # Proving Backends
//
// Each stage is bound to a prover through ProverComponents. The reference
// CPU backend is returned by DefaultProverComponents; any other backend is
// plugged in with NewProverWithComponents and is validated before use.
//
// # Errors
//
// Errors carry a Kind and the Stage they occurred at:
//
//	if errors.Is(err, &vybiumrecursion.Error{Kind: vybiumrecursion.ErrDigestMismatch}) {
//		// a public values digest did not match
//	}
package vybiumrecursion
