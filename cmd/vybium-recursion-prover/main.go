package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	recursion "github.com/vybium/vybium-recursion/internal/vybium-recursion"
	"github.com/vybium/vybium-recursion/pkg/vybium-recursion"
)

func main() {
	app := &cli.App{
		Name:  "vybium-recursion-prover",
		Usage: "Proves program executions with recursive STARK composition",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to a JSON config file",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log every state transition",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "prove",
				Usage: "Execute a program and prove it down to a root proof",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "program", Usage: "Path to the program image", Required: true},
					&cli.StringFlag{Name: "stdin", Usage: "Optional file written to the program input"},
					&cli.StringFlag{Name: "output", Usage: "Path of the root proof snapshot", Value: "root.proof"},
					&cli.IntFlag{Name: "shard-size", Usage: "Cycles per segment (overrides config)"},
					&cli.IntFlag{Name: "workers", Usage: "Parallel stage invocations (overrides config)"},
				},
				Action: prove,
			},
			{
				Name:  "cycles",
				Usage: "Count the cycles of a program",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "program", Usage: "Path to the program image", Required: true},
					&cli.StringFlag{Name: "stdin", Usage: "Optional file written to the program input"},
				},
				Action: cycles,
			},
			{
				Name:  "verify",
				Usage: "Verify a root proof snapshot",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "proof", Usage: "Path of the root proof snapshot", Value: "root.proof"},
				},
				Action: verify,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(c *cli.Context) zerolog.Logger {
	level := zerolog.InfoLevel
	if c.Bool("verbose") {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		Level(level).
		With().Timestamp().Logger()
}

func loadConfig(c *cli.Context) (*vybiumrecursion.Config, error) {
	path := c.String("config")
	if path == "" {
		return vybiumrecursion.DefaultConfig(), nil
	}
	return vybiumrecursion.LoadConfig(path)
}

func readInput(c *cli.Context) (*vybiumrecursion.Stdin, error) {
	stdin := vybiumrecursion.NewStdin()
	path := c.String("stdin")
	if path == "" {
		return stdin, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read stdin file: %w", err)
	}
	stdin.Write(data)
	return stdin, nil
}

func prove(c *cli.Context) error {
	log := newLogger(c)
	config, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("shard-size") {
		config.WithShardSize(c.Int("shard-size"))
	}
	if c.IsSet("workers") {
		config.WithWorkers(c.Int("workers"))
	}

	program, err := recursion.LoadProgram(c.String("program"))
	if err != nil {
		return err
	}
	stdin, err := readInput(c)
	if err != nil {
		return err
	}

	prover, err := vybiumrecursion.NewProver(config,
		vybiumrecursion.WithLogger(log),
		vybiumrecursion.WithTransitionHook(func(from, to vybiumrecursion.State) {
			log.Info().Stringer("from", from).Stringer("to", to).Msg("pipeline")
		}),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	root, err := prover.Prove(ctx, program, stdin)
	if err != nil {
		return err
	}
	log.Info().
		Dur("elapsed", time.Since(start)).
		Int("segments", root.Segments).
		Int("rounds", root.Rounds).
		Uint64("cycles", root.Cycles).
		Msg("proof generated")

	if err := vybiumrecursion.SaveProof(c.String("output"), root); err != nil {
		return err
	}
	log.Info().Str("path", c.String("output")).Msg("root proof written")
	return nil
}

func cycles(c *cli.Context) error {
	program, err := recursion.LoadProgram(c.String("program"))
	if err != nil {
		return err
	}
	stdin, err := readInput(c)
	if err != nil {
		return err
	}
	n, err := recursion.GetCycles(recursion.NewWordMachine(1), program, stdin)
	if err != nil {
		return err
	}
	fmt.Println(n)
	return nil
}

func verify(c *cli.Context) error {
	log := newLogger(c)
	config, err := loadConfig(c)
	if err != nil {
		return err
	}
	prover, err := vybiumrecursion.NewProver(config, vybiumrecursion.WithLogger(log))
	if err != nil {
		return err
	}

	root, err := vybiumrecursion.LoadProof(c.String("proof"))
	if err != nil {
		return err
	}
	if root.Partial {
		pv, err := prover.VerifyPartial(root)
		if err != nil {
			return err
		}
		log.Warn().Msg("proof covers a segment window only")
		fmt.Printf("shards: %d..%d\n", pv.StartShard.Value(), pv.NextShard.Value()-1)
		return nil
	}
	if err := prover.Verify(root); err != nil {
		return err
	}

	committed := vybiumrecursion.CommittedValueDigest(root)
	log.Info().Msg("root proof is valid")
	fmt.Printf("vk_digest_bn254: %s\n", vybiumrecursion.VKDigestBN254(root))
	fmt.Printf("committed_value_digest: %s\n", hex.EncodeToString(committed[:]))
	return nil
}
