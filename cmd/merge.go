package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/helvemed/meddiff/internal/model"
	"github.com/helvemed/meddiff/internal/report"
	"github.com/helvemed/meddiff/internal/runlog"
	"github.com/helvemed/meddiff/internal/taxonomy"
)

var mergeHTML bool

var mergeCmd = &cobra.Command{
	Use:   "merge <price-diff.json> <registration-diff.json>",
	Short: "Merge the two change-sets into one report",
	Long:  "Unions a price change-set and a registration change-set by identifier and writes the combined flag-coded report, optionally with an HTML rendering.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		priceCS, err := report.ReadChangeSet(args[0])
		if err != nil {
			return err
		}
		regCS, err := report.ReadChangeSet(args[1])
		if err != nil {
			return err
		}

		oldLabel := priceCS.OldLabel + "+" + regCS.OldLabel
		newLabel := priceCS.NewLabel + "+" + regCS.NewLabel

		return recordRun(ctx, "merge", oldLabel, newLabel, func() (*runlog.Result, error) {
			cls := taxonomy.NewClassifier()
			merged := report.Merge(priceCS, regCS, cls, time.Now())
			merged.PriceSource = args[0]
			merged.RegistrationSource = args[1]

			outPath := filepath.Join(cfg.Data.DiffDir,
				fmt.Sprintf("med-drugs-update_%s.json", todayLabel()))
			if err := report.WriteJSON(outPath, merged); err != nil {
				return nil, eris.Wrap(err, "write merged report")
			}

			printMergeSummary(merged)
			fmt.Printf("\nMerge completed -> %s\n", outPath)

			changes := 0
			for _, e := range merged.Entries {
				changes += len(e.Changes)
			}

			if mergeHTML {
				htmlPath := strings.TrimSuffix(outPath, ".json") + ".html"
				if err := report.WriteHTML(htmlPath, merged); err != nil {
					return nil, eris.Wrap(err, "write html report")
				}
				fmt.Printf("HTML output  -> %s\n", htmlPath)
			}

			return &runlog.Result{Changes: changes, OutputPath: outPath}, nil
		})
	},
}

func printMergeSummary(merged *model.MergedReport) {
	counts := map[int]int{}
	for _, e := range merged.Entries {
		for _, c := range e.Changes {
			counts[c.Flag]++
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Flag\tCategory\tCount\n")
	for f := 1; f <= 15; f++ {
		if counts[f] == 0 {
			continue
		}
		fmt.Fprintf(w, "%d\t%s\t%d\n", f, merged.Legend[fmt.Sprint(f)], counts[f])
	}
	w.Flush()
	fmt.Printf("%d products affected\n", len(merged.Entries))
}

func init() {
	mergeCmd.Flags().BoolVar(&mergeHTML, "html", false, "also write an HTML rendering of the report")
	rootCmd.AddCommand(mergeCmd)
}
