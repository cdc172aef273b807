package main

import (
	"fmt"

	"catalog-lens/pkg/sanitize"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newSanitizeCmd() *cobra.Command {
	var (
		dir    string
		mode   string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "sanitize",
		Short: "Strip hot-reload code from an emitted production bundle",
		RunE: func(cmd *cobra.Command, _ []string) error {
			results, err := sanitize.Dir(dir, sanitize.DirOptions{Mode: mode, DryRun: dryRun})
			if err != nil {
				return codeError(1, "sanitize %s: %s", dir, err)
			}

			out := cmd.OutOrStdout()
			if mode != sanitize.ModeProduction {
				color.New(color.FgYellow).Fprintf(out, "Mode %q keeps hot reload; nothing rewritten\n", mode)
				return nil
			}
			if len(results) == 0 {
				fmt.Fprintln(out, "No hot-reload code found")
				return nil
			}
			for _, r := range results {
				if dryRun {
					color.New(color.FgCyan).Fprintf(out, "--- %s\n", r.Path)
					fmt.Fprintln(out, r.Diff)
					continue
				}
				color.New(color.FgGreen).Fprintf(out, "rewrote %s\n", r.Path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "dist", "Directory holding the emitted bundle")
	cmd.Flags().StringVar(&mode, "mode", sanitize.ModeProduction, "Build mode")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print diffs instead of writing files")
	return cmd
}
