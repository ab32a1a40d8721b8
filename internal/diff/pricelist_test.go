package diff

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helvemed/meddiff/internal/model"
	"github.com/helvemed/meddiff/internal/pricelist"
	"github.com/helvemed/meddiff/internal/taxonomy"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func priceFact(cat model.PriceCategory, amount string, at time.Time) model.PriceFact {
	return model.PriceFact{Category: cat, Amount: decimal.RequireFromString(amount), ChangeDate: at}
}

func entry(id, name string, sl bool, facts ...model.PriceFact) model.ListEntry {
	return model.ListEntry{GTIN: id, Name: name, HasSLEntry: sl, Facts: facts}
}

func priceSnapshot(label string, asOf time.Time, entries ...model.ListEntry) *model.PriceSnapshot {
	return &model.PriceSnapshot{Label: label, AsOf: asOf, Entries: entries}
}

func runPriceDiff(t *testing.T, oldSnap, newSnap *model.PriceSnapshot, opts Options) *model.ChangeSet {
	t.Helper()
	cs, err := PriceLists(context.Background(), oldSnap, newSnap, taxonomy.NewClassifier(), pricelist.NewResolver(), opts)
	require.NoError(t, err)
	return cs
}

func TestPriceListsIdempotent(t *testing.T) {
	asOf := day(2026, 1, 6)
	snap := priceSnapshot("06.01.2026", asOf,
		entry("7680123456781", "Aspirin", true, priceFact(model.CategoryRetail, "20.00", day(2025, 1, 1))),
	)

	cs := runPriceDiff(t, snap, snap, Options{})
	assert.Empty(t, cs.Changes)
	assert.Equal(t, "pricelist", cs.Source)
}

func TestPriceListsRiseAndCut(t *testing.T) {
	oldAsOf, newAsOf := day(2025, 12, 1), day(2026, 1, 6)

	t.Run("retail increase yields flag 13", func(t *testing.T) {
		oldSnap := priceSnapshot("old", oldAsOf,
			entry("7680123456781", "Aspirin", true, priceFact(model.CategoryRetail, "20.00", day(2025, 1, 1))))
		newSnap := priceSnapshot("new", newAsOf,
			entry("7680123456781", "Aspirin", true, priceFact(model.CategoryRetail, "25.00", day(2026, 1, 1))))

		cs := runPriceDiff(t, oldSnap, newSnap, Options{})
		require.Len(t, cs.Changes, 1)
		c := cs.Changes[0]
		assert.Equal(t, model.KindPriceChanged, c.Kind)
		assert.Equal(t, model.FieldRetailPrice, c.Field)
		assert.Equal(t, 13, c.Flag)
		assert.Equal(t, "20.00", c.Old)
		assert.Equal(t, "25.00", c.New)
	})

	t.Run("exfactory decrease yields flag 15", func(t *testing.T) {
		oldSnap := priceSnapshot("old", oldAsOf,
			entry("7680123456781", "Aspirin", true, priceFact(model.CategoryExFactory, "12.00", day(2025, 1, 1))))
		newSnap := priceSnapshot("new", newAsOf,
			entry("7680123456781", "Aspirin", true, priceFact(model.CategoryExFactory, "9.50", day(2026, 1, 1))))

		cs := runPriceDiff(t, oldSnap, newSnap, Options{})
		require.Len(t, cs.Changes, 1)
		assert.Equal(t, 15, cs.Changes[0].Flag)
		assert.Equal(t, model.FieldExFactoryPrice, cs.Changes[0].Field)
	})

	t.Run("unchanged price yields nothing", func(t *testing.T) {
		oldSnap := priceSnapshot("old", oldAsOf,
			entry("7680123456781", "Aspirin", true, priceFact(model.CategoryRetail, "20.00", day(2025, 1, 1))))
		newSnap := priceSnapshot("new", newAsOf,
			entry("7680123456781", "Aspirin", true, priceFact(model.CategoryRetail, "20.00", day(2025, 1, 1))))

		cs := runPriceDiff(t, oldSnap, newSnap, Options{})
		assert.Empty(t, cs.Changes)
	})

	t.Run("appearing price counts as rise", func(t *testing.T) {
		oldSnap := priceSnapshot("old", oldAsOf, entry("7680123456781", "Aspirin", true))
		newSnap := priceSnapshot("new", newAsOf,
			entry("7680123456781", "Aspirin", true, priceFact(model.CategoryRetail, "20.00", day(2026, 1, 1))))

		cs := runPriceDiff(t, oldSnap, newSnap, Options{})
		require.Len(t, cs.Changes, 1)
		assert.Equal(t, 13, cs.Changes[0].Flag)
		assert.Empty(t, cs.Changes[0].Old)
		assert.Equal(t, "20.00", cs.Changes[0].New)
	})

	t.Run("both categories compared independently", func(t *testing.T) {
		oldSnap := priceSnapshot("old", oldAsOf,
			entry("7680123456781", "Aspirin", true,
				priceFact(model.CategoryRetail, "20.00", day(2025, 1, 1)),
				priceFact(model.CategoryExFactory, "12.00", day(2025, 1, 1))))
		newSnap := priceSnapshot("new", newAsOf,
			entry("7680123456781", "Aspirin", true,
				priceFact(model.CategoryRetail, "25.00", day(2026, 1, 1)),
				priceFact(model.CategoryExFactory, "11.00", day(2026, 1, 1))))

		cs := runPriceDiff(t, oldSnap, newSnap, Options{})
		require.Len(t, cs.Changes, 2)
		assert.Equal(t, model.FieldRetailPrice, cs.Changes[0].Field)
		assert.Equal(t, 13, cs.Changes[0].Flag)
		assert.Equal(t, model.FieldExFactoryPrice, cs.Changes[1].Field)
		assert.Equal(t, 15, cs.Changes[1].Flag)
	})
}

func TestPriceListsEffectiveDateResolution(t *testing.T) {
	// The same fact list resolves differently under the two as-of dates; only
	// the fact that became effective between the snapshots shows up as change.
	facts := []model.PriceFact{
		priceFact(model.CategoryRetail, "20.00", day(2025, 1, 1)),
		priceFact(model.CategoryRetail, "22.00", day(2026, 1, 1)),
	}
	oldSnap := priceSnapshot("old", day(2025, 12, 1), entry("7680123456781", "Aspirin", true, facts...))
	newSnap := priceSnapshot("new", day(2026, 1, 6), entry("7680123456781", "Aspirin", true, facts...))

	cs := runPriceDiff(t, oldSnap, newSnap, Options{})
	require.Len(t, cs.Changes, 1)
	assert.Equal(t, "20.00", cs.Changes[0].Old)
	assert.Equal(t, "22.00", cs.Changes[0].New)
	assert.Equal(t, 13, cs.Changes[0].Flag)
}

func TestPriceListsEntryLifecycle(t *testing.T) {
	asOf := day(2026, 1, 6)

	t.Run("new and deleted packages", func(t *testing.T) {
		oldSnap := priceSnapshot("old", asOf, entry("7680111110002", "OldOnly", true))
		newSnap := priceSnapshot("new", asOf, entry("7680222220001", "NewOnly", true))

		cs := runPriceDiff(t, oldSnap, newSnap, Options{})
		require.Len(t, cs.Changes, 2)
		assert.Equal(t, model.KindDeleted, cs.Changes[0].Kind)
		assert.Equal(t, "7680111110002", cs.Changes[0].GTIN)
		assert.Equal(t, model.KindNew, cs.Changes[1].Kind)
		assert.Equal(t, "7680222220001", cs.Changes[1].GTIN)
	})

	t.Run("new and deleted packages carry effective prices", func(t *testing.T) {
		oldSnap := priceSnapshot("old", asOf,
			entry("7680111110002", "OldOnly", true,
				priceFact(model.CategoryRetail, "18.00", day(2025, 1, 1)),
				priceFact(model.CategoryExFactory, "11.50", day(2025, 1, 1))))
		newSnap := priceSnapshot("new", asOf,
			entry("7680222220001", "NewOnly", true,
				priceFact(model.CategoryRetail, "30.00", day(2026, 1, 1))))

		cs := runPriceDiff(t, oldSnap, newSnap, Options{})
		require.Len(t, cs.Changes, 2)

		deleted := cs.Changes[0]
		assert.Equal(t, model.KindDeleted, deleted.Kind)
		assert.Equal(t, "18.00", deleted.Retail)
		assert.Equal(t, "11.50", deleted.ExFactory)

		added := cs.Changes[1]
		assert.Equal(t, model.KindNew, added.Kind)
		assert.Equal(t, "30.00", added.Retail)
		assert.Empty(t, added.ExFactory, "unpriced category stays blank")
	})

	t.Run("sl entry gained", func(t *testing.T) {
		oldSnap := priceSnapshot("old", asOf, entry("7680123456781", "Aspirin", false))
		newSnap := priceSnapshot("new", asOf, entry("7680123456781", "Aspirin", true))

		cs := runPriceDiff(t, oldSnap, newSnap, Options{})
		require.Len(t, cs.Changes, 1)
		assert.Equal(t, model.KindListEntryAdded, cs.Changes[0].Kind)
		assert.Equal(t, 10, cs.Changes[0].Flag)
	})

	t.Run("sl entry lost", func(t *testing.T) {
		oldSnap := priceSnapshot("old", asOf, entry("7680123456781", "Aspirin", true))
		newSnap := priceSnapshot("new", asOf, entry("7680123456781", "Aspirin", false))

		cs := runPriceDiff(t, oldSnap, newSnap, Options{})
		require.Len(t, cs.Changes, 1)
		assert.Equal(t, model.KindListEntryRemoved, cs.Changes[0].Kind)
		assert.Equal(t, 2, cs.Changes[0].Flag)
	})

	t.Run("name change", func(t *testing.T) {
		oldSnap := priceSnapshot("old", asOf, entry("7680123456781", "Aspirin", true))
		newSnap := priceSnapshot("new", asOf, entry("7680123456781", "Aspirin Cardio", true))

		cs := runPriceDiff(t, oldSnap, newSnap, Options{})
		require.Len(t, cs.Changes, 1)
		assert.Equal(t, 3, cs.Changes[0].Flag)
		assert.Equal(t, "Aspirin", cs.Changes[0].Old)
		assert.Equal(t, "Aspirin Cardio", cs.Changes[0].New)
	})
}

func TestPriceListsPartitionInvariance(t *testing.T) {
	asOf := day(2026, 1, 6)
	oldAsOf := day(2025, 12, 1)

	var oldEntries, newEntries []model.ListEntry
	for i := range 50 {
		id := string(rune('0'+i/10)) + string(rune('0'+i%10))
		gtinID := "76801234500" + id
		oldEntries = append(oldEntries, entry(gtinID, "Prod"+id, i%3 != 0,
			priceFact(model.CategoryRetail, decimal.NewFromInt(int64(10+i)).String(), day(2025, 1, 1))))
		newEntries = append(newEntries, entry(gtinID, "Prod"+id, i%4 != 0,
			priceFact(model.CategoryRetail, decimal.NewFromInt(int64(10+i*2)).String(), day(2026, 1, 1))))
	}
	oldSnap := priceSnapshot("old", oldAsOf, oldEntries...)
	newSnap := priceSnapshot("new", asOf, newEntries...)

	baseline := runPriceDiff(t, oldSnap, newSnap, Options{Workers: 1})
	require.NotEmpty(t, baseline.Changes)

	for _, workers := range []int{2, 3, 8, 64} {
		cs := runPriceDiff(t, oldSnap, newSnap, Options{Workers: workers})
		assert.Equal(t, baseline.Changes, cs.Changes, "workers=%d", workers)
	}
}

func TestPriceListsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	asOf := day(2026, 1, 6)
	snap := priceSnapshot("s", asOf, entry("7680123456781", "Aspirin", true))
	_, err := PriceLists(ctx, snap, snap, taxonomy.NewClassifier(), pricelist.NewResolver(), Options{})
	assert.Error(t, err)
}

func TestPriceListsTieCountSurfaces(t *testing.T) {
	asOf := day(2026, 1, 6)
	oldSnap := priceSnapshot("old", day(2025, 12, 1),
		entry("7680123456781", "Aspirin", true,
			priceFact(model.CategoryRetail, "20.00", day(2025, 1, 1)),
			priceFact(model.CategoryRetail, "21.00", day(2025, 1, 1))))
	newSnap := priceSnapshot("new", asOf,
		entry("7680123456781", "Aspirin", true,
			priceFact(model.CategoryRetail, "25.00", day(2026, 1, 1))))

	cs := runPriceDiff(t, oldSnap, newSnap, Options{})
	require.Len(t, cs.Changes, 1)
	assert.Equal(t, "21.00", cs.Changes[0].Old, "tie resolved to last fact in source order")
	assert.Equal(t, int64(1), cs.PriceTieCount)
}
