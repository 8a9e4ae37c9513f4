package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Report external tool availability and engine status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.ensureEngine()
			if err != nil {
				return err
			}
			health := eng.Health(cmd.Context())
			out := cmd.OutOrStdout()

			rows := make([][]string, 0, len(health.Tools))
			for _, tool := range health.Tools {
				state := "ok"
				if !tool.Available {
					state = "missing"
					if tool.Optional {
						state = "missing (fallback available)"
					}
				}
				detail := tool.Detail
				if detail == "" {
					detail = tool.Description
				}
				rows = append(rows, []string{tool.Name, state, detail})
			}
			fmt.Fprintln(out, renderTable([]string{"Tool", "State", "Detail"}, rows))

			fmt.Fprintf(out, "hash: %s/%s (%d bits)\n", health.Hash.Algorithm, health.Hash.Version, health.Hash.Bits)
			fmt.Fprintf(out, "extraction slots: %d in flight / %d, %d queued\n", health.InFlight, health.Limit, health.QueueDepth)
			if health.Cache.Path != "" {
				fmt.Fprintf(out, "hash cache: %d entries at %s\n", health.Cache.Entries, health.Cache.Path)
			} else {
				fmt.Fprintln(out, "hash cache: disabled")
			}
			if !health.Ready() {
				return fmt.Errorf("required tools missing")
			}
			return nil
		},
	}
	return cmd
}
