package main

import (
	"fmt"

	"github.com/CTAG07/MarkovTool/pkg/markov"
	"github.com/spf13/cobra"
)

func newMatricesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "matrices",
		Short: "List and manage stored matrices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			infos, err := store.ListMatrices(cmd.Context())
			if err != nil {
				return err
			}
			r, err := a.renderer(cmd)
			if err != nil {
				return err
			}
			r.Matrices(infos)
			return nil
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add NAME FILE",
			Short: "Store a matrix file under a name, replacing any matrix with that name",
			Long: `Stores a matrix file under a name. A matrix already stored under that name is
replaced; if its data differs, the runs recorded over it are deleted.`,
			Args: cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				rows, err := markov.LoadMatrixFile(args[1])
				if err != nil {
					return err
				}
				m, err := markov.NewTransitionMatrix(rows)
				if err != nil {
					return err
				}
				return a.saveMatrix(cmd, args[0], m)
			},
		},
		newMatricesShowCmd(a),
		&cobra.Command{
			Use:   "rm NAME",
			Short: "Remove a stored matrix and all of its runs",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, closeStore, err := a.openStore()
				if err != nil {
					return err
				}
				defer closeStore()

				info, err := lookupMatrix(cmd, store, args[0])
				if err != nil {
					return err
				}
				if err = store.RemoveMatrix(cmd.Context(), info); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "removed '%s'\n", info.Name)
				return nil
			},
		},
	)
	return cmd
}

func newMatricesShowCmd(a *app) *cobra.Command {
	var (
		format string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "show NAME",
		Short: "Print a stored matrix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := markov.ParseFormat(format)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("format") && out != "" {
				f = markov.FormatFromPath(out)
			}

			store, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			info, err := lookupMatrix(cmd, store, args[0])
			if err != nil {
				return err
			}
			m, err := store.LoadMatrix(cmd.Context(), info)
			if err != nil {
				return err
			}
			return writeMatrixOutput(cmd, out, m, f)
		},
	}
	cmd.Flags().StringVar(&format, "format", "delimited", "Output format (delimited, json, yaml)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the matrix to this file instead of stdout")
	return cmd
}

// lookupMatrix resolves a stored matrix by name with a readable not-found error.
func lookupMatrix(cmd *cobra.Command, store *markov.Store, name string) (markov.MatrixInfo, error) {
	info, err := store.GetMatrixInfo(cmd.Context(), name)
	if markov.IsNotFound(err) {
		return info, fmt.Errorf("no stored matrix named '%s'", name)
	}
	return info, err
}
