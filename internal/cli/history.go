package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/me/gocoro/pkg/model"
)

func newHistoryCmd() *cobra.Command {
	opts := model.DefaultListOptions()

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List journaled runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.State != "" {
				st, ok := model.ParseRunState(opts.State)
				if !ok {
					return fmt.Errorf("unknown run state %q", opts.State)
				}
				opts.State = st.String()
			}

			st, err := openJournal(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			runs, total, err := st.ListRuns(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs found.")
				return nil
			}

			const row = "%-40s  %-10s  %-20s  %8s  %5s  %-16s  %s\n"
			fmt.Fprintf(out, row, "ID", "STATE", "WORKLOAD", "TICKS", "TASKS", "STARTED", "DURATION")
			fmt.Fprintf(out, row, "--", "-----", "--------", "-----", "-----", "-------", "--------")
			for _, r := range runs {
				dur := "-"
				if r.FinishedAt != nil {
					dur = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
				}
				fmt.Fprintf(out, row, r.ID, r.State, r.Workload, humanize.Comma(int64(r.Ticks)),
					strconv.Itoa(r.Started), humanize.Time(r.StartedAt), dur)
			}

			if opts.Offset+len(runs) < total {
				fmt.Fprintf(out, "\n(%d of %d shown)\n", len(runs), total)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", opts.Limit, "Maximum runs to show")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "Skip this many runs")
	cmd.Flags().StringVar(&opts.State, "state", "", "Only runs in this state (RUNNING, COMPLETED, CANCELLED, FAILED)")
	cmd.Flags().StringVar(&opts.Workload, "workload", "", "Only runs of this workload")
	return cmd
}
