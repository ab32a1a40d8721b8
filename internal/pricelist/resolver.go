// Package pricelist resolves time-dependent price facts to the single value
// in force on a given date.
package pricelist

import (
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/helvemed/meddiff/internal/model"
)

// Resolver selects effective prices from dated fact lists. It is stateless
// apart from a tie diagnostic counter and safe for concurrent use.
type Resolver struct {
	ties atomic.Int64
}

// NewResolver returns a Resolver with a zeroed tie counter.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Effective returns the amount of the fact with the latest change date not
// after asOf, among facts of the given category. The second return value is
// false when no fact qualifies (category never active as of that date).
//
// When several facts share the maximal change date the last one in source
// order wins. Upstream ordering is not contractually stable, so each such tie
// is counted for data-quality monitoring rather than silently absorbed. Ties
// on dates superseded by a newer fact never influence the result and are not
// counted.
func (r *Resolver) Effective(facts []model.PriceFact, asOf time.Time, cat model.PriceCategory) (decimal.Decimal, bool) {
	var (
		best   decimal.Decimal
		at     time.Time
		found  bool
		tiedAt int64
	)
	for _, f := range facts {
		if f.Category != cat || f.ChangeDate.After(asOf) {
			continue
		}
		switch {
		case !found || f.ChangeDate.After(at):
			best = f.Amount
			at = f.ChangeDate
			found = true
			tiedAt = 0
		case f.ChangeDate.Equal(at):
			best = f.Amount
			tiedAt++
		}
	}
	if !found {
		return decimal.Decimal{}, false
	}
	if tiedAt > 0 {
		r.ties.Add(tiedAt)
	}
	return best, true
}

// TieCount reports how many effective-date ties have been resolved by source
// order since the resolver was created.
func (r *Resolver) TieCount() int64 {
	return r.ties.Load()
}
