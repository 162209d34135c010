package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"signscribe/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var serverOnly bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check directories, database, model and prediction service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			var results []preflight.Result
			if serverOnly {
				results = preflight.RunServer(cmd.Context(), cfg)
			} else {
				results = preflight.RunAll(cmd.Context(), cfg)
			}

			rows := make([][]string, 0, len(results))
			for _, result := range results {
				rows = append(rows, []string{result.Name, checkState(result), result.Detail})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"Check", "State", "Detail"}, rows))

			failed := preflight.Failed(results)
			if len(failed) == 0 {
				fmt.Fprintln(out, "All checks passed")
				return nil
			}
			names := make([]string, 0, len(failed))
			for _, result := range failed {
				names = append(names, result.Name)
			}
			return fmt.Errorf("%d check(s) failed: %s", len(failed), strings.Join(names, ", "))
		},
	}
	cmd.Flags().BoolVar(&serverOnly, "server", false, "Only run the checks signscribed needs")
	return cmd
}

func checkState(result preflight.Result) string {
	switch {
	case result.Passed:
		return "ok"
	case result.Optional:
		return "missing (optional)"
	default:
		return "FAILED"
	}
}
