package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func sweepCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one escalation sweep pass against the configured store",
		Long: `sweep resolves every pending approval request whose deadline has
passed, exactly as the periodic sweeper in "serve" does, and prints the
counts as JSON. Notifications left undelivered by an earlier run are
re-armed first. Deliveries that are due are sent before the command
exits; retries that need a delay are picked up by the next run. Useful
from cron when no server is running.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := g.setup(true)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.notify.Resume(cmd.Context()); err != nil {
				return err
			}
			res := a.escalation.Sweep(cmd.Context())
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
}
