package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceCategory distinguishes the two reimbursement price kinds on the SL.
type PriceCategory string

const (
	CategoryRetail    PriceCategory = "retail"
	CategoryExFactory PriceCategory = "exfactory"
)

// PriceFact is one dated price for one category. Facts are immutable once a
// snapshot is loaded; only the resolver derives effective values from them.
type PriceFact struct {
	Category   PriceCategory   `json:"category"`
	Amount     decimal.Decimal `json:"amount"`
	ChangeDate time.Time       `json:"change_date"` // date precision, UTC
}

// ListEntry is one product's presence on the reimbursed-price list.
type ListEntry struct {
	GTIN       string      `json:"gtin"`
	Name       string      `json:"name"`
	HasSLEntry bool        `json:"has_sl_entry"`
	Facts      []PriceFact `json:"facts,omitempty"`
}

// PriceSnapshot is one dated extract of the price list.
type PriceSnapshot struct {
	Label   string      `json:"label"` // e.g. "06.01.2026", from filename or file date
	AsOf    time.Time   `json:"as_of"` // reference date for effective-price resolution
	Entries []ListEntry `json:"entries"`
}

// RegistrationRecord is one pharmaceutical package as registered with the
// authority. Immutable within a snapshot.
type RegistrationRecord struct {
	GTIN        string `json:"gtin"`
	RegNr       string `json:"regnr"`
	PackCode    string `json:"pack_code"`
	Name        string `json:"name"`
	Owner       string `json:"owner"`
	Category    string `json:"category"`
	Composition string `json:"composition"`
	Indication  string `json:"indication"`
	Sequence    string `json:"sequence"`
	ExpiryDate  string `json:"expiry_date"`
}

// RegistrationSnapshot is one dated extract of the registration registry.
type RegistrationSnapshot struct {
	Label   string               `json:"label"`
	Records []RegistrationRecord `json:"records"`
}
