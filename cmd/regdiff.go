package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/helvemed/meddiff/internal/diff"
	"github.com/helvemed/meddiff/internal/model"
	"github.com/helvemed/meddiff/internal/report"
	"github.com/helvemed/meddiff/internal/runlog"
	"github.com/helvemed/meddiff/internal/snapshot"
	"github.com/helvemed/meddiff/internal/taxonomy"
)

var regDiffCmd = &cobra.Command{
	Use:   "diff-registrations <old-export> <new-export>",
	Short: "Diff two Swissmedic registration snapshots",
	Long:  "Compares two dated packages exports (CSV or XLSX) field by field and writes a flag-coded change-set JSON.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		oldSnap, err := snapshot.LoadRegistrations(args[0])
		if err != nil {
			return err
		}
		newSnap, err := snapshot.LoadRegistrations(args[1])
		if err != nil {
			return err
		}

		return recordRun(ctx, "registration", oldSnap.Label, newSnap.Label, func() (*runlog.Result, error) {
			cls := taxonomy.NewClassifier()
			cs, err := diff.Registrations(oldSnap, newSnap, cls)
			if err != nil {
				return nil, err
			}
			cs.Legend = cls.FullLegend()

			outPath := filepath.Join(cfg.Data.DiffDir,
				fmt.Sprintf("swissmedic-diff_%s-%s.json", oldSnap.Label, newSnap.Label))
			if err := report.WriteJSON(outPath, cs); err != nil {
				return nil, eris.Wrap(err, "write registration change-set")
			}

			printChangeSummary(cs, cls)
			fmt.Printf("\nDiff written to %s\n", outPath)
			return changeSetResult(cs, outPath), nil
		})
	},
}

// printChangeSummary prints per-flag change counts in taxonomy order.
func printChangeSummary(cs *model.ChangeSet, cls *taxonomy.Classifier) {
	counts := map[int]int{}
	for _, c := range cs.Changes {
		counts[c.Flag]++
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Flag\tCategory\tCount\n")
	for f := taxonomy.FlagNew; f <= taxonomy.FlagPriceCut; f++ {
		if counts[int(f)] == 0 {
			continue
		}
		fmt.Fprintf(w, "%d\t%s\t%d\n", f, cls.Name(f), counts[int(f)])
	}
	w.Flush()
}

func init() {
	rootCmd.AddCommand(regDiffCmd)
}
