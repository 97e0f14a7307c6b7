package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
)

func newExportCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export NAME",
		Short: "Export a stored matrix and its runs as JSON",
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
			if out == "" {
				return store.ExportMatrix(cmd.Context(), info, cmd.OutOrStdout())
			}
			var buf bytes.Buffer
			if err = store.ExportMatrix(cmd.Context(), info, &buf); err != nil {
				return err
			}
			if err = atomic.WriteFile(out, &buf); err != nil {
				return fmt.Errorf("failed to write export file: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the export to this file instead of stdout")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import a matrix and its runs from an export file (- for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open import file: %w", err)
				}
				defer func(f *os.File) {
					_ = f.Close()
				}(f)
				r = f
			}

			store, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			info, err := store.ImportMatrix(cmd.Context(), r)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported '%s' (id=%d, %d states)\n", info.Name, info.Id, info.Size)
			return nil
		},
	}
}
