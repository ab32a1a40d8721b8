// Package taxonomy assigns the fixed numeric change codes shared by both
// differs. The table is immutable; both differs are handed the same
// classifier so their change-sets stay mergeable under one flag legend.
package taxonomy

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/helvemed/meddiff/internal/model"
)

// Flag is one of the fixed numeric taxonomy codes 1-15.
type Flag int

const (
	FlagNew           Flag = 1
	FlagSLEntryDelete Flag = 2
	FlagNameBase      Flag = 3
	FlagAddress       Flag = 4 // owner/holder
	FlagIKSCat        Flag = 5
	FlagComposition   Flag = 6
	FlagIndication    Flag = 7
	FlagSequence      Flag = 8
	FlagExpiryDate    Flag = 9
	FlagSLEntry       Flag = 10
	FlagPrice         Flag = 11
	// 12 (comment) is reserved and never assigned.
	FlagPriceRise Flag = 13
	FlagDelete    Flag = 14
	FlagPriceCut  Flag = 15
)

// ErrUnclassified marks a (kind, field) pair with no taxonomy entry. This is
// fatal for a diff run: it means the upstream schema drifted and continuing
// would emit misleading flags.
var ErrUnclassified = eris.New("taxonomy: unclassified change")

var flagNames = map[Flag]string{
	FlagNew:           "new",
	FlagSLEntryDelete: "sl_entry_delete",
	FlagNameBase:      "name_base",
	FlagAddress:       "address",
	FlagIKSCat:        "ikscat",
	FlagComposition:   "composition",
	FlagIndication:    "indication",
	FlagSequence:      "sequence",
	FlagExpiryDate:    "expiry_date",
	FlagSLEntry:       "sl_entry",
	FlagPrice:         "price",
	Flag(12):          "comment",
	FlagPriceRise:     "price_rise",
	FlagDelete:        "delete",
	FlagPriceCut:      "price_cut",
}

type tableKey struct {
	kind  model.ChangeKind
	field string
}

// Classifier maps detected changes to flags via an immutable lookup table.
type Classifier struct {
	table map[tableKey]Flag
}

// NewClassifier builds the shared lookup table.
func NewClassifier() *Classifier {
	return &Classifier{table: map[tableKey]Flag{
		{model.KindNew, ""}:              FlagNew,
		{model.KindDeleted, ""}:          FlagDelete,
		{model.KindListEntryAdded, ""}:   FlagSLEntry,
		{model.KindListEntryRemoved, ""}: FlagSLEntryDelete,

		{model.KindFieldChanged, model.FieldName}:        FlagNameBase,
		{model.KindFieldChanged, model.FieldOwner}:       FlagAddress,
		{model.KindFieldChanged, model.FieldCategory}:    FlagIKSCat,
		{model.KindFieldChanged, model.FieldComposition}: FlagComposition,
		{model.KindFieldChanged, model.FieldIndication}:  FlagIndication,
		{model.KindFieldChanged, model.FieldSequence}:    FlagSequence,
		{model.KindFieldChanged, model.FieldExpiryDate}:  FlagExpiryDate,
	}}
}

// Classify returns the flag for a detected change. Price changes need both
// amounts so the direction can be inspected; all other kinds ignore them.
func (c *Classifier) Classify(kind model.ChangeKind, field string, oldAmt, newAmt *decimal.Decimal) (Flag, error) {
	if kind == model.KindPriceChanged {
		return c.classifyPrice(field, oldAmt, newAmt)
	}

	key := tableKey{kind: kind}
	if kind == model.KindFieldChanged {
		key.field = field
	}
	f, ok := c.table[key]
	if !ok {
		return 0, eris.Wrapf(ErrUnclassified, "kind %q field %q", kind, field)
	}
	return f, nil
}

func (c *Classifier) classifyPrice(field string, oldAmt, newAmt *decimal.Decimal) (Flag, error) {
	if field != model.FieldRetailPrice && field != model.FieldExFactoryPrice {
		return 0, eris.Wrapf(ErrUnclassified, "price change on field %q", field)
	}
	if oldAmt == nil || newAmt == nil {
		return 0, eris.Wrapf(ErrUnclassified, "price change on %q without both amounts", field)
	}
	switch newAmt.Cmp(*oldAmt) {
	case 1:
		return FlagPriceRise, nil
	case -1:
		return FlagPriceCut, nil
	}
	// Equal amounts are not a change; the differs never emit a record for
	// them, so reaching this point is a schema/logic drift.
	return 0, eris.Wrapf(ErrUnclassified, "price change on %q with equal amounts", field)
}

// Name returns the category name of a flag, or "" if the code is undefined.
func (c *Classifier) Name(f Flag) string {
	return flagNames[f]
}

// FullLegend returns the complete code-to-category mapping, keyed by the
// decimal string form of each code.
func (c *Classifier) FullLegend() map[string]string {
	legend := make(map[string]string, len(flagNames))
	for f, name := range flagNames {
		legend[strconv.Itoa(int(f))] = name
	}
	return legend
}

// FlagForCategory resolves a category name (as used in the legend and the
// --category filter) back to its flag. Returns false for unknown names and
// for the reserved "comment" code.
func FlagForCategory(name string) (Flag, bool) {
	for f, n := range flagNames {
		if n == name && f != Flag(12) {
			return f, true
		}
	}
	return 0, false
}
