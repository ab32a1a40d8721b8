package main

import (
	"fmt"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/helvemed/meddiff/internal/diff"
	"github.com/helvemed/meddiff/internal/model"
	"github.com/helvemed/meddiff/internal/pricelist"
	"github.com/helvemed/meddiff/internal/report"
	"github.com/helvemed/meddiff/internal/runlog"
	"github.com/helvemed/meddiff/internal/snapshot"
	"github.com/helvemed/meddiff/internal/taxonomy"
)

var (
	priceDiffCategory string
	priceDiffTerse    bool
)

var priceDiffCmd = &cobra.Command{
	Use:   "diff-prices <old-export> <new-export>",
	Short: "Diff two FOPH SL price snapshots",
	Long:  "Compares effective prices and SL membership between two FHIR NDJSON exports and writes a flag-coded change-set JSON.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var filterFlag taxonomy.Flag
		if priceDiffCategory != "" {
			f, ok := taxonomy.FlagForCategory(priceDiffCategory)
			if !ok {
				return eris.Errorf("unknown change category %q", priceDiffCategory)
			}
			filterFlag = f
		}

		var oldSnap, newSnap *model.PriceSnapshot
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			oldSnap, err = snapshot.LoadPriceList(gctx, args[0])
			return err
		})
		g.Go(func() (err error) {
			newSnap, err = snapshot.LoadPriceList(gctx, args[1])
			return err
		})
		if err := g.Wait(); err != nil {
			return err
		}

		return recordRun(ctx, "pricelist", oldSnap.Label, newSnap.Label, func() (*runlog.Result, error) {
			cls := taxonomy.NewClassifier()
			res := pricelist.NewResolver()

			cs, err := diff.PriceLists(ctx, oldSnap, newSnap, cls, res, diff.Options{
				Workers: cfg.Diff.Workers,
			})
			if err != nil {
				return nil, err
			}
			cs.Legend = cls.FullLegend()

			outPath := filepath.Join(cfg.Data.DiffDir,
				fmt.Sprintf("sl-diff_%s-%s.json", oldSnap.Label, newSnap.Label))
			if err := report.WriteJSON(outPath, cs); err != nil {
				return nil, eris.Wrap(err, "write price change-set")
			}

			if filterFlag != 0 {
				printFiltered(cs, filterFlag)
			} else {
				printChangeSummary(cs, cls)
			}
			fmt.Printf("\nDiff written to %s\n", outPath)
			return changeSetResult(cs, outPath), nil
		})
	},
}

// printFiltered narrows output to one category; terse mode prints bare
// identifiers, one per line.
func printFiltered(cs *model.ChangeSet, f taxonomy.Flag) {
	filtered := diff.FilterByFlag(cs.Changes, f)

	if priceDiffTerse {
		for _, id := range diff.GTINs(filtered) {
			fmt.Println(id)
		}
		return
	}

	for _, c := range filtered {
		if c.Old != "" || c.New != "" {
			fmt.Printf("%s  %s  %s -> %s\n", c.GTIN, c.Name, c.Old, c.New)
			continue
		}
		fmt.Printf("%s  %s\n", c.GTIN, c.Name)
	}
	fmt.Printf("%d changes\n", len(filtered))
}

func init() {
	priceDiffCmd.Flags().StringVar(&priceDiffCategory, "category", "", "only report one change category (e.g. price_rise, sl_entry)")
	priceDiffCmd.Flags().BoolVar(&priceDiffTerse, "terse", false, "with --category, print bare identifiers only")
	rootCmd.AddCommand(priceDiffCmd)
}
