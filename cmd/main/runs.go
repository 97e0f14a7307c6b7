package main

import (
	"fmt"

	"github.com/CTAG07/MarkovTool/pkg/markov"
	"github.com/spf13/cobra"
)

func newRunsCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "runs NAME",
		Short: "List the stored runs of a matrix",
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
			runs, err := store.ListRuns(cmd.Context(), info)
			if err != nil {
				return err
			}
			r, err := a.renderer(cmd)
			if err != nil {
				return err
			}
			if asJSON {
				return r.JSON(runs)
			}
			r.Runs(runs)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print runs as JSON")

	cmd.AddCommand(&cobra.Command{
		Use:   "show ID",
		Short: "Print one stored run report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			run, err := store.GetRun(cmd.Context(), args[0])
			if err != nil {
				if markov.IsNotFound(err) {
					return fmt.Errorf("no stored run with id '%s'", args[0])
				}
				return err
			}
			r, err := a.renderer(cmd)
			if err != nil {
				return err
			}
			r.Report(run.Report)
			return nil
		},
	})
	return cmd
}
