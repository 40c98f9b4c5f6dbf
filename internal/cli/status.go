package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/gocoro/pkg/coro"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the live scheduler of a running 'gocoro run --addr'",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewClient(flagServer, logger)
			resp, err := client.Get("/api/v1/scheduler")
			if err != nil {
				return fmt.Errorf("get scheduler: %w", err)
			}

			var data struct {
				RunID string `json:"run_id"`
				coro.Snapshot
			}
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			out := cmd.OutOrStdout()
			if data.RunID != "" {
				fmt.Fprintf(out, "Run:      %s\n", data.RunID)
			}
			fmt.Fprintf(out, "Active:   %v\n", data.Active)
			fmt.Fprintf(out, "Slots:    %d/%d in use\n", data.ActiveCount, data.Capacity)
			fmt.Fprintf(out, "Passes:   %d (last delta %s)\n", data.Passes, data.TickDelta.Round(time.Microsecond))
			if len(data.Tasks) == 0 {
				return nil
			}

			fmt.Fprintln(out)
			fmt.Fprintf(out, "%4s  %-24s  %-7s  %-10s  %6s  %s\n", "SLOT", "TASK", "CURSOR", "WAIT", "STEPS", "STATE")
			fmt.Fprintf(out, "%4s  %-24s  %-7s  %-10s  %6s  %s\n", "----", "----", "------", "----", "-----", "-----")
			for _, t := range data.Tasks {
				fmt.Fprintf(out, "%4d  %-24s  %-7s  %-10s  %6d  %s\n",
					t.Slot, t.Name, fmt.Sprintf("%d/%d", t.Cursor, t.FinalCursor), t.WaitTimer, t.Steps, t.State)
			}
			return nil
		},
	}
}
