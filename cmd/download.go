package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/helvemed/meddiff/internal/fetcher"
)

// registrationDateColumns are the export columns carrying Excel serial
// dates (issue, revocation, expiry).
var registrationDateColumns = []int{7, 8, 9}

var (
	downloadSwissmedic bool
	downloadFHIR       bool
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download the current registry exports",
	Long:  "Fetches the Swissmedic packages XLSX (converted to CSV) and the latest FOPH SL FHIR NDJSON, named by today's date.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if !downloadSwissmedic && !downloadFHIR {
			downloadSwissmedic = true
			downloadFHIR = true
		}

		f := newFetcher()
		label := todayLabel()

		g, ctx := errgroup.WithContext(ctx)

		if downloadSwissmedic {
			g.Go(func() error {
				path := filepath.Join(cfg.Data.CSVDir, fmt.Sprintf("swissmedic_%s.csv", label))
				if err := downloadSwissmedicCSV(ctx, f, path); err != nil {
					return err
				}
				fmt.Printf("Downloaded %s\n", path)
				return nil
			})
		}

		if downloadFHIR {
			g.Go(func() error {
				path := filepath.Join(cfg.Data.NDJSONDir, fmt.Sprintf("sl_foph_%s.ndjson", label))
				if err := downloadFOPHBundles(ctx, f, path); err != nil {
					return err
				}
				fmt.Printf("Downloaded %s\n", path)
				return nil
			})
		}

		return g.Wait()
	},
}

func downloadSwissmedicCSV(ctx context.Context, f *fetcher.HTTPFetcher, path string) error {
	body, err := f.Download(ctx, cfg.Sources.SwissmedicURL)
	if err != nil {
		return eris.Wrap(err, "download swissmedic export")
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return eris.Wrap(err, "read swissmedic export")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "create csv dir")
	}

	var buf bytes.Buffer
	if err := fetcher.XLSXToCSV(data, &buf, fetcher.ConvertOptions{
		DateColumns: registrationDateColumns,
	}); err != nil {
		return eris.Wrap(err, "convert swissmedic export")
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return eris.Wrapf(err, "write %s", path)
	}

	zap.L().Info("swissmedic export converted",
		zap.String("path", path),
		zap.Int("xlsx_bytes", len(data)),
		zap.Int("csv_bytes", buf.Len()),
	)
	return nil
}

// fophResourceIndex is the subset of the FOPH resource index the download
// needs: the relative URL of the current FHIR export.
type fophResourceIndex struct {
	FHIR struct {
		FileURL string `json:"fileUrl"`
	} `json:"fhir"`
}

func downloadFOPHBundles(ctx context.Context, f *fetcher.HTTPFetcher, path string) error {
	body, err := f.Download(ctx, cfg.Sources.FOPHResourceURL)
	if err != nil {
		return eris.Wrap(err, "fetch foph resource index")
	}
	defer body.Close()

	index, err := fetcher.DecodeJSONObject[fophResourceIndex](body)
	if err != nil {
		return eris.Wrap(err, "parse foph resource index")
	}
	if index.FHIR.FileURL == "" {
		return eris.New("foph resource index has no fhir.fileUrl")
	}

	url := cfg.Sources.FOPHStaticBase + index.FHIR.FileURL
	if _, err := f.DownloadToFile(ctx, url, path); err != nil {
		return eris.Wrap(err, "download foph export")
	}
	return nil
}

func init() {
	downloadCmd.Flags().BoolVar(&downloadSwissmedic, "swissmedic", false, "download the Swissmedic packages export")
	downloadCmd.Flags().BoolVar(&downloadFHIR, "fhir", false, "download the FOPH SL FHIR export")
	rootCmd.AddCommand(downloadCmd)
}
