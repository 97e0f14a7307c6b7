package main

import (
	"fmt"
	"log/slog"

	"github.com/CTAG07/MarkovTool/pkg/markov"
	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		storeName string
		repeat    int
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a chain and print its trajectory",
		Long: `Builds a chain from a matrix file, a stored matrix or a random matrix and runs it.

The matrix source is chosen in this order: --matrix, --store (when no --matrix
is given, the named matrix is loaded from the database), then a random matrix
of --size states. With --store, every run report is saved in the database.
Storing a different matrix under an existing name drops the runs recorded
over the old one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := chainConfigFromFlags(cmd, a.config.Chain)
			if err != nil {
				return err
			}
			if repeat < 1 {
				return fmt.Errorf("--repeat must be at least 1, got %d", repeat)
			}
			return a.runChain(cmd, cc, storeName, repeat, asJSON)
		},
	}

	addChainFlags(cmd)
	cmd.Flags().StringVar(&storeName, "store", "", "Name of the stored matrix to run, or to save --matrix/--size under")
	cmd.Flags().IntVar(&repeat, "repeat", 1, "Number of runs, restarting the chain with its reset mode in between")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print reports as JSON")
	return cmd
}

// addChainFlags registers the flags that override the chain section of the config.
func addChainFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("matrix", "", "Matrix file (.txt/.csv delimited, .json, .yaml)")
	flags.Int("size", 0, "Number of states of a random matrix")
	flags.Int("initial", 0, "Fixed initial state")
	flags.Float64Slice("distribution", nil, "Initial state distribution, comma separated")
	flags.Uint64("seed", 0, "Process seed; omit for a fresh seed every full reset")
	flags.Uint64("construction-seed", 0, "Construction seed for random matrices and the first initial pick")
	flags.String("reset", "", "Reset mode between repeated runs (full, preserve)")
	flags.Int("steps", 0, "Number of steps per run")
	flags.Bool("record", false, "Record the full path of every run")
}

// chainConfigFromFlags copies base and applies every chain flag the user set.
func chainConfigFromFlags(cmd *cobra.Command, base *ChainConfig) (*ChainConfig, error) {
	cc := *base
	flags := cmd.Flags()

	var err error
	if flags.Changed("matrix") {
		if cc.MatrixPath, err = flags.GetString("matrix"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("size") {
		if cc.Size, err = flags.GetInt("size"); err != nil {
			return nil, err
		}
		cc.MatrixPath = ""
	}
	if flags.Changed("initial") {
		k, err := flags.GetInt("initial")
		if err != nil {
			return nil, err
		}
		cc.InitialState = &k
		cc.InitialDistribution = nil
	}
	if flags.Changed("distribution") {
		if cc.InitialDistribution, err = flags.GetFloat64Slice("distribution"); err != nil {
			return nil, err
		}
		cc.InitialState = nil
	}
	if flags.Changed("seed") {
		v, err := flags.GetUint64("seed")
		if err != nil {
			return nil, err
		}
		cc.ProcessSeed = &v
	}
	if flags.Changed("construction-seed") {
		v, err := flags.GetUint64("construction-seed")
		if err != nil {
			return nil, err
		}
		cc.ConstructionSeed = &v
	}
	if flags.Changed("reset") {
		if cc.ResetMode, err = flags.GetString("reset"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("steps") {
		if cc.Steps, err = flags.GetInt("steps"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("record") {
		if cc.Record, err = flags.GetBool("record"); err != nil {
			return nil, err
		}
	}
	return &cc, nil
}

func (a *app) runChain(cmd *cobra.Command, cc *ChainConfig, storeName string, repeat int, asJSON bool) error {
	ctx := cmd.Context()

	opts, err := cc.Options()
	if err != nil {
		return err
	}
	opts = append(opts, markov.WithLogger(a.logger))

	var (
		store *markov.Store
		info  markov.MatrixInfo
	)
	if storeName != "" {
		var closeStore func()
		store, closeStore, err = a.openStore()
		if err != nil {
			return err
		}
		defer closeStore()
	}

	var chain *markov.Chain
	switch {
	case cc.MatrixPath != "":
		chain, err = markov.NewFromFile(cc.MatrixPath, opts...)
	case store != nil && !cmd.Flags().Changed("size"):
		if info, err = store.GetMatrixInfo(ctx, storeName); err != nil {
			if markov.IsNotFound(err) {
				return fmt.Errorf("no stored matrix named '%s'", storeName)
			}
			return err
		}
		var m markov.TransitionMatrix
		if m, err = store.LoadMatrix(ctx, info); err != nil {
			return err
		}
		chain, err = markov.New(m, opts...)
	default:
		chain, err = markov.NewRandom(cc.Size, opts...)
	}
	if err != nil {
		return fmt.Errorf("failed to build chain: %w", err)
	}

	if store != nil && info.Id == 0 {
		if info, err = store.SaveMatrix(ctx, storeName, chain.Matrix()); err != nil {
			return err
		}
	}

	r, err := a.renderer(cmd)
	if err != nil {
		return err
	}

	reports := make([]markov.Report, 0, repeat)
	for i := 0; i < repeat; i++ {
		if i > 0 {
			if err = chain.Restart(); err != nil {
				return fmt.Errorf("failed to restart chain: %w", err)
			}
		}
		report, err := chain.Run(cc.Steps, cc.Record)
		if err != nil {
			return err
		}
		reports = append(reports, report)

		if store != nil {
			id, err := store.SaveRun(ctx, info, report)
			if err != nil {
				return err
			}
			a.logger.Debug("Run stored", slog.String("run_id", id), slog.Int("run", i))
		}
		if !asJSON {
			if i > 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout())
			}
			r.Report(report)
		}
	}

	if asJSON {
		if repeat == 1 {
			return r.JSON(reports[0])
		}
		return r.JSON(reports)
	}
	return nil
}
