package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newEventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events <run-id>",
		Short: "Show the task lifecycle events of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			st, err := openJournal(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			run, err := st.GetRun(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("get run: %w", err)
			}
			if run == nil {
				return fmt.Errorf("run %s not found", id)
			}
			events, err := st.ListEvents(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("list events: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run:      %s\n", run.ID)
			fmt.Fprintf(out, "Workload: %s (capacity %d)\n", run.Workload, run.Capacity)
			fmt.Fprintf(out, "State:    %s\n", run.State)
			fmt.Fprintf(out, "Started:  %s\n", humanize.Time(run.StartedAt))
			if run.Error != "" {
				fmt.Fprintf(out, "Error:    %s\n", run.Error)
			}
			if len(events) == 0 {
				fmt.Fprintln(out, "\nNo events recorded.")
				return nil
			}

			fmt.Fprintln(out)
			const row = "%6s  %-24s  %-10s  %4s  %5s  %-7s  %6s  %s\n"
			fmt.Fprintf(out, row, "PASS", "TASK", "EVENT", "SLOT", "GEN", "CURSOR", "STEPS", "OFFSET")
			fmt.Fprintf(out, row, "----", "----", "-----", "----", "---", "------", "-----", "------")
			for _, ev := range events {
				fmt.Fprintf(out, row,
					strconv.FormatUint(ev.Pass, 10), ev.Task, ev.Event, strconv.Itoa(ev.Slot),
					strconv.FormatUint(ev.Generation, 10), fmt.Sprintf("%d/%d", ev.Cursor, ev.FinalCursor),
					strconv.FormatUint(ev.Steps, 10), "+"+ev.At.Sub(run.StartedAt).Round(time.Millisecond).String())
			}
			return nil
		},
	}
}
