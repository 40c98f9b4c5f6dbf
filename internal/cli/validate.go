package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/gocoro/internal/workload"
	"github.com/me/gocoro/pkg/model"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <workload.yaml>",
		Short: "Check a workload file without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			w, err := workload.Load(args[0])
			if err != nil {
				var apiErr *model.APIError
				if errors.As(err, &apiErr) {
					fmt.Fprintf(out, "%s: %s\n", args[0], apiErr.Message)
					for _, d := range apiErr.Details {
						fmt.Fprintf(out, "  - %s: %s\n", d.Field, d.Message)
					}
					return fmt.Errorf("workload %s is invalid", args[0])
				}
				return err
			}

			steps, autostart := 0, 0
			for _, t := range w.Tasks {
				steps += len(t.Steps)
				if t.StartsAutomatically() {
					autostart += t.Instances()
				}
			}
			fmt.Fprintf(out, "Workload %q is valid\n", w.Name)
			fmt.Fprintf(out, "  Tasks:     %d (%d steps)\n", len(w.Tasks), steps)
			fmt.Fprintf(out, "  Autostart: %d instances\n", autostart)
			if w.Capacity > 0 {
				fmt.Fprintf(out, "  Capacity:  %d\n", w.Capacity)
			}
			return nil
		},
	}
}
