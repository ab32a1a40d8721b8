package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helvemed/meddiff/internal/model"
)

const testBundle = `{"resourceType":"Bundle","timestamp":"2026-01-06T03:00:00Z","entry":[` +
	`{"resource":{"resourceType":"PackagedProductDefinition","id":"ppd1",` +
	`"description":"Aspirin Cardio 100 mg",` +
	`"packaging":{"identifier":[{"system":"urn:oid:2.51.1.1","value":"7680123456781"}]}}},` +
	`{"resource":{"resourceType":"RegulatedAuthorization","id":"ra1",` +
	`"type":{"coding":[{"code":"756000002003"}]},` +
	`"subject":[{"reference":"PackagedProductDefinition/ppd1"}],` +
	`"extension":[{"url":"http://example.org/productPrice","extension":[` +
	`{"url":"type","valueCodeableConcept":{"coding":[{"code":"756002005001"}]}},` +
	`{"url":"value","valueMoney":{"value":21.55}},` +
	`{"url":"changeDate","valueDate":"2025-12-01"}]},` +
	`{"url":"http://example.org/productPrice","extension":[` +
	`{"url":"type","valueCodeableConcept":{"coding":[{"code":"756002005002"}]}},` +
	`{"url":"value","valueMoney":{"value":12.30}},` +
	`{"url":"changeDate","valueDate":"2025-12-01"}]}]}}]}`

func writeSnapshotFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPriceList(t *testing.T) {
	path := writeSnapshotFile(t, "sl_06.01.2026.ndjson", testBundle+"\n")

	snap, err := LoadPriceList(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "06.01.2026", snap.Label)
	assert.True(t, snap.AsOf.Equal(time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC)))
	require.Len(t, snap.Entries, 1)

	entry := snap.Entries[0]
	assert.Equal(t, "7680123456781", entry.GTIN)
	assert.Equal(t, "Aspirin Cardio 100 mg", entry.Name)
	assert.True(t, entry.HasSLEntry)
	require.Len(t, entry.Facts, 2)

	assert.Equal(t, model.CategoryRetail, entry.Facts[0].Category)
	assert.True(t, entry.Facts[0].Amount.Equal(decimal.RequireFromString("21.55")))
	assert.Equal(t, model.CategoryExFactory, entry.Facts[1].Category)
	assert.True(t, entry.Facts[1].Amount.Equal(decimal.RequireFromString("12.30")))
	assert.True(t, entry.Facts[0].ChangeDate.Equal(time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)))
}

func TestLoadPriceListNoBundles(t *testing.T) {
	path := writeSnapshotFile(t, "sl.ndjson", `{"resourceType":"Patient"}`+"\n")

	_, err := LoadPriceList(context.Background(), path)
	assert.Error(t, err)
}

func TestLoadPriceListFallbackDate(t *testing.T) {
	bundle := `{"resourceType":"Bundle","entry":[` +
		`{"resource":{"resourceType":"PackagedProductDefinition","id":"p",` +
		`"packaging":{"identifier":[{"system":"urn:oid:2.51.1.1","value":"7680001230014"}]}}},` +
		`{"resource":{"resourceType":"RegulatedAuthorization","id":"r",` +
		`"type":{"coding":[{"code":"756000002003"}]},` +
		`"subject":[{"reference":"PackagedProductDefinition/p"}]}}]}`
	path := writeSnapshotFile(t, "sl_20.11.2025.ndjson", bundle+"\n")

	snap, err := LoadPriceList(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, snap.AsOf.Equal(time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC)))

	// SL entry without prices is still listed.
	require.Len(t, snap.Entries, 1)
	assert.True(t, snap.Entries[0].HasSLEntry)
	assert.Empty(t, snap.Entries[0].Facts)
}

func TestEffectiveDateMostCommonWins(t *testing.T) {
	bundles := []fhirBundle{
		{Timestamp: "2026-01-06T01:00:00Z"},
		{Timestamp: "2026-01-06T02:00:00Z"},
		{Timestamp: "2026-01-05T23:00:00Z"},
	}

	got := effectiveDate(bundles, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.True(t, got.Equal(time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC)))
}

func TestEffectiveDateMetaLastUpdated(t *testing.T) {
	b := fhirBundle{}
	b.Meta.LastUpdated = "2026-02-01T00:00:00Z"

	got := effectiveDate([]fhirBundle{b}, time.Time{})
	assert.True(t, got.Equal(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)))
}

func TestCollectEntriesSkipsForeignIdentifiers(t *testing.T) {
	b := fhirBundle{ResourceType: "Bundle"}
	res := fhirResource{ResourceType: "PackagedProductDefinition", ID: "x"}
	res.Packaging.Identifier = []fhirIdentifier{
		{System: "urn:oid:2.51.1.1", Value: "4012345678901"}, // not a Swiss prefix
		{System: "some-other-system", Value: "7680123456781"},
	}
	b.Entry = []struct {
		Resource fhirResource `json:"resource"`
	}{{Resource: res}}

	assert.Empty(t, collectEntries([]fhirBundle{b}))
}

func TestPriceFactsDropsPlaceholders(t *testing.T) {
	typeExt := func(code string) fhirExtension {
		return fhirExtension{URL: "type", ValueCodeableConcept: &struct {
			Coding []fhirCoding `json:"coding"`
		}{Coding: []fhirCoding{{Code: code}}}}
	}
	moneyExt := func(v string) fhirExtension {
		return fhirExtension{URL: "value", ValueMoney: &struct {
			Value decimal.Decimal `json:"value"`
		}{Value: decimal.RequireFromString(v)}}
	}

	exts := []fhirExtension{
		// zero amount
		{URL: "productPrice", Extension: []fhirExtension{
			typeExt(retailPriceCode), moneyExt("0"), {URL: "changeDate", ValueDate: "2025-01-01"},
		}},
		// missing change date
		{URL: "productPrice", Extension: []fhirExtension{
			typeExt(retailPriceCode), moneyExt("10"),
		}},
		// unknown price type
		{URL: "productPrice", Extension: []fhirExtension{
			typeExt("999999"), moneyExt("10"), {URL: "changeDate", ValueDate: "2025-01-01"},
		}},
		// valid
		{URL: "productPrice", Extension: []fhirExtension{
			typeExt(exFactoryPriceCode), moneyExt("9.95"), {URL: "changeDate", ValueDate: "2025-01-01"},
		}},
	}

	facts := priceFacts(exts)
	require.Len(t, facts, 1)
	assert.Equal(t, model.CategoryExFactory, facts[0].Category)
	assert.True(t, facts[0].Amount.Equal(decimal.RequireFromString("9.95")))
}
