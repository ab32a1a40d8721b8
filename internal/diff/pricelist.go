package diff

import (
	"context"
	"runtime"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/helvemed/meddiff/internal/model"
	"github.com/helvemed/meddiff/internal/pricelist"
	"github.com/helvemed/meddiff/internal/taxonomy"
)

// PriceLists compares two price-list snapshots. Effective prices are resolved
// per entry against each snapshot's own reference date. The per-identifier
// comparisons are independent, so the identifier set is partitioned across
// workers; the only shared inputs are the two read-only snapshot maps and the
// stateless resolver and classifier, so no locking is needed. Partition
// results are concatenated and post-sorted, which makes the output identical
// for any partition count.
func PriceLists(ctx context.Context, oldSnap, newSnap *model.PriceSnapshot, cls *taxonomy.Classifier, res *pricelist.Resolver, opts Options) (*model.ChangeSet, error) {
	oldByID, err := indexEntries(oldSnap.Entries)
	if err != nil {
		return nil, eris.Wrap(err, "diff: index old price snapshot")
	}
	newByID, err := indexEntries(newSnap.Entries)
	if err != nil {
		return nil, eris.Wrap(err, "diff: index new price snapshot")
	}

	ids := unionIDs(oldByID, newByID)

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(ids) {
		workers = max(len(ids), 1)
	}

	cmp := &priceComparer{
		oldByID:  oldByID,
		newByID:  newByID,
		oldAsOf:  oldSnap.AsOf,
		newAsOf:  newSnap.AsOf,
		resolver: res,
		cls:      cls,
	}

	parts := make([][]model.ChangeRecord, workers)
	g, gctx := errgroup.WithContext(ctx)
	chunk := (len(ids) + workers - 1) / workers
	for w := range workers {
		lo := w * chunk
		hi := min(lo+chunk, len(ids))
		if lo >= hi {
			continue
		}
		g.Go(func() error {
			part, err := cmp.comparePartition(gctx, ids[lo:hi])
			if err != nil {
				return err
			}
			parts[w] = part
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var changes []model.ChangeRecord
	for _, part := range parts {
		changes = append(changes, part...)
	}
	sortChanges(changes)

	zap.L().Info("price-list diff complete",
		zap.String("old", oldSnap.Label),
		zap.String("new", newSnap.Label),
		zap.Int("old_entries", len(oldByID)),
		zap.Int("new_entries", len(newByID)),
		zap.Int("changes", len(changes)),
		zap.Int64("price_ties", res.TieCount()),
	)

	return &model.ChangeSet{
		Source:        "pricelist",
		OldLabel:      oldSnap.Label,
		NewLabel:      newSnap.Label,
		GeneratedAt:   time.Now().UTC(),
		Legend:        cls.FullLegend(),
		Changes:       changes,
		PriceTieCount: res.TieCount(),
	}, nil
}

type priceComparer struct {
	oldByID  map[string]model.ListEntry
	newByID  map[string]model.ListEntry
	oldAsOf  time.Time
	newAsOf  time.Time
	resolver *pricelist.Resolver
	cls      *taxonomy.Classifier
}

func (c *priceComparer) comparePartition(ctx context.Context, ids []string) ([]model.ChangeRecord, error) {
	var out []model.ChangeRecord
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "diff: price partition cancelled")
		}
		changes, err := c.compareOne(id)
		if err != nil {
			return nil, err
		}
		out = append(out, changes...)
	}
	return out, nil
}

func (c *priceComparer) compareOne(id string) ([]model.ChangeRecord, error) {
	oldE, inOld := c.oldByID[id]
	newE, inNew := c.newByID[id]

	switch {
	case inNew && !inOld:
		flag, err := c.cls.Classify(model.KindNew, "", nil, nil)
		if err != nil {
			return nil, err
		}
		rec := model.ChangeRecord{GTIN: id, Name: newE.Name, Kind: model.KindNew, Flag: int(flag)}
		rec.Retail, rec.ExFactory = c.effectivePrices(newE, c.newAsOf)
		return []model.ChangeRecord{rec}, nil

	case inOld && !inNew:
		flag, err := c.cls.Classify(model.KindDeleted, "", nil, nil)
		if err != nil {
			return nil, err
		}
		rec := model.ChangeRecord{GTIN: id, Name: oldE.Name, Kind: model.KindDeleted, Flag: int(flag)}
		rec.Retail, rec.ExFactory = c.effectivePrices(oldE, c.oldAsOf)
		return []model.ChangeRecord{rec}, nil
	}

	var out []model.ChangeRecord

	if !oldE.HasSLEntry && newE.HasSLEntry {
		flag, err := c.cls.Classify(model.KindListEntryAdded, "", nil, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, model.ChangeRecord{GTIN: id, Name: newE.Name, Kind: model.KindListEntryAdded, Flag: int(flag)})
	}
	if oldE.HasSLEntry && !newE.HasSLEntry {
		flag, err := c.cls.Classify(model.KindListEntryRemoved, "", nil, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, model.ChangeRecord{GTIN: id, Name: newE.Name, Kind: model.KindListEntryRemoved, Flag: int(flag)})
	}

	if oldE.Name != newE.Name {
		flag, err := c.cls.Classify(model.KindFieldChanged, model.FieldName, nil, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, model.ChangeRecord{
			GTIN:  id,
			Name:  newE.Name,
			Kind:  model.KindFieldChanged,
			Field: model.FieldName,
			Old:   oldE.Name,
			New:   newE.Name,
			Flag:  int(flag),
		})
	}

	for _, pc := range []struct {
		field string
		cat   model.PriceCategory
	}{
		{model.FieldRetailPrice, model.CategoryRetail},
		{model.FieldExFactoryPrice, model.CategoryExFactory},
	} {
		rec, err := c.comparePrice(id, newE.Name, pc.field, pc.cat, oldE, newE)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			out = append(out, *rec)
		}
	}

	return out, nil
}

// effectivePrices resolves both price categories of an entry that only
// exists on one side of the diff, so its record still shows what the package
// cost. Absent categories stay empty.
func (c *priceComparer) effectivePrices(e model.ListEntry, asOf time.Time) (retail, exfactory string) {
	if amt, ok := c.resolver.Effective(e.Facts, asOf, model.CategoryRetail); ok {
		retail = amt.StringFixed(2)
	}
	if amt, ok := c.resolver.Effective(e.Facts, asOf, model.CategoryExFactory); ok {
		exfactory = amt.StringFixed(2)
	}
	return retail, exfactory
}

// comparePrice emits at most one record per category. An absent price
// compares as zero, so a price appearing counts as a rise and a price
// disappearing as a cut; the absent side keeps an empty display value.
func (c *priceComparer) comparePrice(id, name, field string, cat model.PriceCategory, oldE, newE model.ListEntry) (*model.ChangeRecord, error) {
	oldAmt, oldOK := c.resolver.Effective(oldE.Facts, c.oldAsOf, cat)
	newAmt, newOK := c.resolver.Effective(newE.Facts, c.newAsOf, cat)

	oldCmp, newCmp := decimal.Zero, decimal.Zero
	if oldOK {
		oldCmp = oldAmt
	}
	if newOK {
		newCmp = newAmt
	}
	if oldCmp.Equal(newCmp) {
		return nil, nil
	}

	flag, err := c.cls.Classify(model.KindPriceChanged, field, &oldCmp, &newCmp)
	if err != nil {
		return nil, err
	}

	rec := model.ChangeRecord{
		GTIN:  id,
		Name:  name,
		Kind:  model.KindPriceChanged,
		Field: field,
		Flag:  int(flag),
	}
	if oldOK {
		rec.Old = oldAmt.StringFixed(2)
	}
	if newOK {
		rec.New = newAmt.StringFixed(2)
	}
	return &rec, nil
}

func indexEntries(entries []model.ListEntry) (map[string]model.ListEntry, error) {
	byID := make(map[string]model.ListEntry, len(entries))
	for _, e := range entries {
		if e.GTIN == "" {
			return nil, eris.Errorf("diff: price-list entry %q has no identifier", e.Name)
		}
		byID[e.GTIN] = e
	}
	return byID, nil
}

func unionIDs(a, b map[string]model.ListEntry) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	ids := make([]string, 0, len(a)+len(b))
	for id := range a {
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for id := range b {
		if _, ok := seen[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
