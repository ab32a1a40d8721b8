package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/helvemed/meddiff/internal/runlog"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect diff run history",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded diff runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		l, err := runlog.Open(cfg.Runlog.Path)
		if err != nil {
			return err
		}
		defer l.Close()

		operation, _ := cmd.Flags().GetString("operation")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := l.List(ctx, runlog.Filter{
			Operation: operation,
			Status:    status,
			Limit:     limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		l, err := runlog.Open(cfg.Runlog.Path)
		if err != nil {
			return err
		}
		defer l.Close()

		run, err := l.Get(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

func formatRunsList(out io.Writer, runs []runlog.Run) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tOPERATION\tOLD\tNEW\tSTATUS\tCHANGES\tSTARTED")
	for _, r := range runs {
		changes := "-"
		if r.Result != nil {
			changes = fmt.Sprint(r.Result.Changes)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Operation, r.OldLabel, r.NewLabel, r.Status, changes,
			r.StartedAt.Local().Format(time.DateTime),
		)
	}
	w.Flush()
}

func init() {
	runsListCmd.Flags().String("operation", "", "filter by operation (registration, pricelist, merge)")
	runsListCmd.Flags().String("status", "", "filter by status (running, complete, failed)")
	runsListCmd.Flags().Int("limit", 50, "maximum runs to list")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}
