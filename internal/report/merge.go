// Package report combines the two differs' change-sets into one
// identifier-keyed report and renders it.
package report

import (
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/helvemed/meddiff/internal/model"
	"github.com/helvemed/meddiff/internal/taxonomy"
)

// Merge groups both change-sets by identifier and unions their records.
// Grouping is purely by identifier, so the result does not depend on which
// set is passed first. When both sources report the same product as deleted,
// the duplicate deletion notes collapse into one.
func Merge(price, registration *model.ChangeSet, cls *taxonomy.Classifier, now time.Time) *model.MergedReport {
	byID := make(map[string][]model.ChangeRecord)
	for _, c := range price.Changes {
		byID[c.GTIN] = append(byID[c.GTIN], c)
	}
	for _, c := range registration.Changes {
		byID[c.GTIN] = append(byID[c.GTIN], c)
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	legend := make(map[string]string)
	entries := make([]model.MergedEntry, 0, len(ids))
	for _, id := range ids {
		changes := collapseDeletions(byID[id])
		sortEntryChanges(changes)

		for _, c := range changes {
			legend[strconv.Itoa(c.Flag)] = cls.Name(taxonomy.Flag(c.Flag))
		}

		entries = append(entries, model.MergedEntry{
			GTIN:    id,
			Name:    entryName(changes),
			Changes: changes,
		})
	}

	zap.L().Info("change-sets merged",
		zap.Int("price_changes", len(price.Changes)),
		zap.Int("registration_changes", len(registration.Changes)),
		zap.Int("entries", len(entries)),
	)

	return &model.MergedReport{
		GeneratedOn:        now.Format("02.01.2006"),
		PriceSource:        sourceLabel(price),
		RegistrationSource: sourceLabel(registration),
		Legend:             legend,
		Entries:            entries,
	}
}

// collapseDeletions keeps at most one deletion note per product. The survivor
// is chosen by display name, not input position, so the merge stays
// commutative when the sources disagree on the name; effective prices from a
// dropped note are folded into the survivor. A full deletion also subsumes a
// list-entry removal reported by the other source.
func collapseDeletions(changes []model.ChangeRecord) []model.ChangeRecord {
	best := -1
	for i, c := range changes {
		if c.Kind != model.KindDeleted {
			continue
		}
		if best == -1 || richerDeletion(c, changes[best]) {
			best = i
		}
	}
	if best == -1 {
		return changes
	}

	survivor := changes[best]
	for i, c := range changes {
		if i == best || c.Kind != model.KindDeleted {
			continue
		}
		if survivor.Retail == "" {
			survivor.Retail = c.Retail
		}
		if survivor.ExFactory == "" {
			survivor.ExFactory = c.ExFactory
		}
	}

	out := make([]model.ChangeRecord, 0, len(changes))
	for i, c := range changes {
		switch c.Kind {
		case model.KindDeleted:
			if i != best {
				continue
			}
			c = survivor
		case model.KindListEntryRemoved:
			continue
		}
		out = append(out, c)
	}
	return out
}

// richerDeletion prefers the more descriptive deletion note: longer names
// win, equal lengths break lexicographically.
func richerDeletion(a, b model.ChangeRecord) bool {
	if len(a.Name) != len(b.Name) {
		return len(a.Name) > len(b.Name)
	}
	return a.Name < b.Name
}

// sortEntryChanges fixes a within-entry order so the merge is commutative in
// its two inputs.
func sortEntryChanges(changes []model.ChangeRecord) {
	sort.SliceStable(changes, func(i, j int) bool {
		a, b := changes[i], changes[j]
		if a.Flag != b.Flag {
			return a.Flag < b.Flag
		}
		if a.Field != b.Field {
			return a.Field < b.Field
		}
		return a.Old < b.Old
	})
}

func entryName(changes []model.ChangeRecord) string {
	for _, c := range changes {
		if c.Name != "" {
			return c.Name
		}
	}
	return ""
}

func sourceLabel(cs *model.ChangeSet) string {
	if cs.OldLabel == "" && cs.NewLabel == "" {
		return cs.Source
	}
	return cs.OldLabel + "-" + cs.NewLabel
}
