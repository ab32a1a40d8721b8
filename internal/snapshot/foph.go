package snapshot

import (
	"context"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/helvemed/meddiff/internal/fetcher"
	"github.com/helvemed/meddiff/internal/model"
)

// FHIR codes used by the FOPH SL export.
const (
	gtinIdentifierSystem = "urn:oid:2.51.1.1"
	slAuthorizationCode  = "756000002003"
	retailPriceCode      = "756002005001"
	exFactoryPriceCode   = "756002005002"
)

type fhirCoding struct {
	System string `json:"system"`
	Code   string `json:"code"`
}

type fhirIdentifier struct {
	System string `json:"system"`
	Value  string `json:"value"`
}

type fhirExtension struct {
	URL                  string          `json:"url"`
	Extension            []fhirExtension `json:"extension"`
	ValueCodeableConcept *struct {
		Coding []fhirCoding `json:"coding"`
	} `json:"valueCodeableConcept"`
	ValueMoney *struct {
		Value decimal.Decimal `json:"value"`
	} `json:"valueMoney"`
	ValueDate string `json:"valueDate"`
}

// fhirResource is the superset of the PackagedProductDefinition and
// RegulatedAuthorization fields the loader reads.
type fhirResource struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id"`
	Description  string `json:"description"`
	Text         struct {
		Div string `json:"div"`
	} `json:"text"`
	Packaging struct {
		Identifier []fhirIdentifier `json:"identifier"`
	} `json:"packaging"`
	Type struct {
		Coding []fhirCoding `json:"coding"`
	} `json:"type"`
	Subject []struct {
		Reference string `json:"reference"`
	} `json:"subject"`
	Extension []fhirExtension `json:"extension"`
}

type fhirBundle struct {
	ResourceType string `json:"resourceType"`
	Timestamp    string `json:"timestamp"`
	Meta         struct {
		LastUpdated string `json:"lastUpdated"`
	} `json:"meta"`
	Entry []struct {
		Resource fhirResource `json:"resource"`
	} `json:"entry"`
}

// LoadPriceList reads a FOPH SL FHIR bundle export. The as-of date for
// effective-price resolution comes from the bundle timestamps (most common
// date wins); when no bundle carries one, the filename date or the file
// modification time stand in.
func LoadPriceList(ctx context.Context, path string) (*model.PriceSnapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "snapshot: open %s", path)
	}
	defer f.Close()

	var bundles []fhirBundle
	outCh, errCh := fetcher.DecodeJSONStream[fhirBundle](ctx, f)
	for b := range outCh {
		if b.ResourceType == "Bundle" {
			bundles = append(bundles, b)
		}
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrapf(err, "snapshot: parse %s", path)
	}
	if len(bundles) == 0 {
		return nil, eris.Errorf("snapshot: no FHIR bundles in %s", path)
	}

	asOf := effectiveDate(bundles, fallbackDate(path))
	snap := &model.PriceSnapshot{
		Label:   asOf.Format(DateLayout),
		AsOf:    asOf,
		Entries: collectEntries(bundles),
	}

	zap.L().Info("price snapshot loaded",
		zap.String("path", path),
		zap.String("label", snap.Label),
		zap.Int("bundles", len(bundles)),
		zap.Int("packages", len(snap.Entries)),
	)
	return snap, nil
}

// effectiveDate picks the most common bundle timestamp date; ties break
// toward the earlier date so repeated runs agree.
func effectiveDate(bundles []fhirBundle, fallback time.Time) time.Time {
	counts := map[time.Time]int{}
	for _, b := range bundles {
		ts := b.Timestamp
		if ts == "" {
			ts = b.Meta.LastUpdated
		}
		if len(ts) < 10 {
			continue
		}
		if t, err := time.Parse("2006-01-02", ts[:10]); err == nil {
			counts[t]++
		}
	}
	if len(counts) == 0 {
		zap.L().Info("no bundle timestamps, using fallback date",
			zap.String("date", fallback.Format(DateLayout)))
		return fallback
	}

	var best time.Time
	bestCount := 0
	for t, n := range counts {
		if n > bestCount || (n == bestCount && t.Before(best)) {
			best, bestCount = t, n
		}
	}
	return best
}

// collectEntries walks every bundle and assembles one ListEntry per package.
// A package found in more than one bundle keeps the last occurrence, matching
// the upstream export where re-emitted bundles supersede earlier ones.
func collectEntries(bundles []fhirBundle) []model.ListEntry {
	byID := map[string]model.ListEntry{}

	for _, b := range bundles {
		for _, e := range b.Entry {
			res := e.Resource
			if res.ResourceType != "PackagedProductDefinition" {
				continue
			}

			id := packageGTIN(res)
			if id == "" {
				continue
			}

			entry := model.ListEntry{
				GTIN: id,
				Name: packageName(res),
			}

			subject := "PackagedProductDefinition/" + res.ID
			for _, other := range b.Entry {
				auth := other.Resource
				if auth.ResourceType != "RegulatedAuthorization" {
					continue
				}
				if !hasCode(auth.Type.Coding, slAuthorizationCode) {
					continue
				}
				if len(auth.Subject) == 0 || auth.Subject[0].Reference != subject {
					continue
				}
				entry.HasSLEntry = true
				entry.Facts = append(entry.Facts, priceFacts(auth.Extension)...)
			}

			if entry.HasSLEntry || len(entry.Facts) > 0 {
				byID[id] = entry
			}
		}
	}

	entries := make([]model.ListEntry, 0, len(byID))
	for _, entry := range byID {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].GTIN < entries[j].GTIN })
	return entries
}

// packageGTIN returns the package's 13-digit Swiss GTIN, or "" when the
// resource carries none.
func packageGTIN(res fhirResource) string {
	for _, id := range res.Packaging.Identifier {
		if id.System == gtinIdentifierSystem && len(id.Value) == 13 && strings.HasPrefix(id.Value, "7680") {
			return id.Value
		}
	}
	return ""
}

func packageName(res fhirResource) string {
	if res.Description != "" {
		return res.Description
	}
	if res.Text.Div != "" {
		return res.Text.Div
	}
	return "Unknown Product"
}

func hasCode(codings []fhirCoding, code string) bool {
	for _, c := range codings {
		if c.Code == code {
			return true
		}
	}
	return false
}

// priceFacts extracts dated price facts from an authorization's productPrice
// extensions. Facts without a positive amount or a parseable change date are
// dropped, as they are upstream placeholders.
func priceFacts(exts []fhirExtension) []model.PriceFact {
	var facts []model.PriceFact

	for _, ext := range exts {
		if !strings.Contains(ext.URL, "productPrice") {
			continue
		}

		var (
			typeCode   string
			amount     decimal.Decimal
			changeDate string
		)
		for _, sub := range ext.Extension {
			switch sub.URL {
			case "type":
				if sub.ValueCodeableConcept != nil && len(sub.ValueCodeableConcept.Coding) > 0 {
					typeCode = sub.ValueCodeableConcept.Coding[0].Code
				}
			case "value":
				if sub.ValueMoney != nil {
					amount = sub.ValueMoney.Value
				}
			case "changeDate":
				changeDate = sub.ValueDate
			}
		}

		var category model.PriceCategory
		switch typeCode {
		case retailPriceCode:
			category = model.CategoryRetail
		case exFactoryPriceCode:
			category = model.CategoryExFactory
		default:
			continue
		}

		if !amount.IsPositive() || len(changeDate) < 10 {
			continue
		}
		t, err := time.Parse("2006-01-02", changeDate[:10])
		if err != nil {
			continue
		}

		facts = append(facts, model.PriceFact{
			Category:   category,
			Amount:     amount,
			ChangeDate: t,
		})
	}

	return facts
}
