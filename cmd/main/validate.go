package main

import (
	"fmt"

	"github.com/CTAG07/MarkovTool/pkg/markov"
	"github.com/spf13/cobra"
)

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE...",
		Short: "Check matrix files",
		Long:  `Loads every matrix file and checks that it is square with non-negative, finite entries and rows summing to 1.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				rows, err := markov.LoadMatrixFile(path)
				if err == nil {
					_, err = markov.NewTransitionMatrix(rows)
				}
				if err != nil {
					failed++
					a.logger.Debug("Matrix rejected", "path", path, "error", err)
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", path, err)
					continue
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d states)\n", path, len(rows))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d matrices are invalid", failed, len(args))
			}
			return nil
		},
	}
}
