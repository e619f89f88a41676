package cmd

import (
	"github.com/spf13/cobra"

	"github.com/liuxd6825/telemetry/lib/consts"
)

func getCmdVersion(gs *globalState) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show application version",
		Long:  `Show the application version and exit.`,
		Run: func(_ *cobra.Command, _ []string) {
			gs.console.Printf("telemetry v%s\n", consts.FullVersion())
		},
	}
}
