package model

import "time"

// ChangeKind classifies what a differ detected for one product.
type ChangeKind string

const (
	KindNew              ChangeKind = "new"
	KindDeleted          ChangeKind = "deleted"
	KindFieldChanged     ChangeKind = "field_changed"
	KindPriceChanged     ChangeKind = "price_changed"
	KindListEntryAdded   ChangeKind = "list_entry_added"
	KindListEntryRemoved ChangeKind = "list_entry_removed"
)

// Field names a registration or price-list attribute a differ compares.
// These are the only field values the classifier accepts.
const (
	FieldName           = "name"
	FieldOwner          = "owner"
	FieldCategory       = "category"
	FieldComposition    = "composition"
	FieldIndication     = "indication"
	FieldSequence       = "sequence"
	FieldExpiryDate     = "expiry_date"
	FieldRetailPrice    = "retail_price"
	FieldExFactoryPrice = "exfactory_price"
)

// ChangeRecord is one detected difference between two snapshots for one
// product, tagged with its numeric flag.
type ChangeRecord struct {
	GTIN  string     `json:"gtin"`
	Name  string     `json:"name,omitempty"` // product name at the time of the change
	Kind  ChangeKind `json:"kind"`
	Field string     `json:"field,omitempty"`
	Old   string     `json:"old,omitempty"`
	New   string     `json:"new,omitempty"`
	Flag  int        `json:"flag"`
	// Retail and ExFactory carry the effective prices of a package that only
	// exists on one side of the diff, where no old/new pair applies.
	Retail    string `json:"retail_price,omitempty"`
	ExFactory string `json:"exfactory_price,omitempty"`
}

// ChangeSet is one differ's full output: an ordered sequence of change
// records plus the metadata of the two snapshots being compared.
type ChangeSet struct {
	Source      string            `json:"source"` // "pricelist" or "registration"
	OldLabel    string            `json:"old"`
	NewLabel    string            `json:"new"`
	GeneratedAt time.Time         `json:"generated_at"`
	Legend      map[string]string `json:"_flag_legend,omitempty"`
	Changes     []ChangeRecord    `json:"changes"`
	// PriceTieCount counts price facts that tied on their effective date and
	// were resolved by source order. Diagnostic only.
	PriceTieCount int64 `json:"price_tie_count,omitempty"`
}

// MergedEntry is one product's combined view across both sources.
type MergedEntry struct {
	GTIN    string         `json:"gtin"`
	Name    string         `json:"name,omitempty"`
	Changes []ChangeRecord `json:"changes"`
}

// MergedReport is the identifier-keyed union of the two change-sets plus the
// shared flag legend.
type MergedReport struct {
	GeneratedOn        string            `json:"generated_on"`
	PriceSource        string            `json:"price_source"`
	RegistrationSource string            `json:"registration_source"`
	Legend             map[string]string `json:"_flag_legend"`
	Entries            []MergedEntry     `json:"entries"`
}
