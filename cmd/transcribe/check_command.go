package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"media-transcript-go/internal/deps"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report external tool availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			fmt.Fprintln(cmd.OutOrStdout(), renderStatuses(statuses))
			return deps.Require(statuses)
		},
	}
}

func renderStatuses(statuses []deps.Status) string {
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		location := s.Path
		if !s.Available {
			location = s.Detail
		}
		rows = append(rows, []string{s.Name, yesNo(s.Available), yesNo(!s.Optional), location, s.Description})
	}
	return renderTable([]string{"Tool", "Found", "Required", "Path", "Used for"}, rows, nil)
}
