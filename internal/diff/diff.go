// Package diff compares two dated snapshots of the same product universe and
// emits typed, flag-coded change records.
package diff

import (
	"sort"
	"strings"

	"github.com/helvemed/meddiff/internal/gtin"
	"github.com/helvemed/meddiff/internal/model"
	"github.com/helvemed/meddiff/internal/taxonomy"
)

// Options tunes diff execution.
type Options struct {
	// Workers bounds the concurrent partitions of the price-list differ.
	// Zero means one partition per logical CPU.
	Workers int
}

// keyOf returns the record's identifier, building it from the registration
// number and pack code when the loader has not done so already. A build
// failure aborts the enclosing diff run.
func keyOf(rec model.RegistrationRecord) (string, error) {
	if rec.GTIN != "" {
		return rec.GTIN, nil
	}
	return gtin.Build(rec.RegNr, rec.PackCode)
}

// displayName mirrors the registry's "name owner" label for add/delete notes.
func displayName(name, owner string) string {
	return strings.TrimSpace(name + " " + owner)
}

// fieldOrder fixes a deterministic ordering of compared fields within one
// identifier.
var fieldOrder = map[string]int{
	"":                        0,
	model.FieldName:           1,
	model.FieldOwner:          2,
	model.FieldCategory:       3,
	model.FieldComposition:    4,
	model.FieldIndication:     5,
	model.FieldSequence:       6,
	model.FieldExpiryDate:     7,
	model.FieldRetailPrice:    8,
	model.FieldExFactoryPrice: 9,
}

// sortChanges orders records by (identifier, field, kind) so output is
// reproducible regardless of map iteration or partition boundaries.
func sortChanges(changes []model.ChangeRecord) {
	sort.SliceStable(changes, func(i, j int) bool {
		a, b := changes[i], changes[j]
		if a.GTIN != b.GTIN {
			return a.GTIN < b.GTIN
		}
		if fieldOrder[a.Field] != fieldOrder[b.Field] {
			return fieldOrder[a.Field] < fieldOrder[b.Field]
		}
		return a.Kind < b.Kind
	})
}

// FilterByFlag narrows a change sequence to one taxonomy category. It is a
// pure projection over the differ output, not a separate diff path.
func FilterByFlag(changes []model.ChangeRecord, f taxonomy.Flag) []model.ChangeRecord {
	var out []model.ChangeRecord
	for _, c := range changes {
		if c.Flag == int(f) {
			out = append(out, c)
		}
	}
	return out
}

// GTINs projects a change sequence to bare identifiers, preserving order and
// dropping consecutive duplicates (terse output mode).
func GTINs(changes []model.ChangeRecord) []string {
	var out []string
	for _, c := range changes {
		if len(out) > 0 && out[len(out)-1] == c.GTIN {
			continue
		}
		out = append(out, c.GTIN)
	}
	return out
}
