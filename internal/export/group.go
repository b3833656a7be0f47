// Package export renders material records as CSV, XLSX and Parquet documents.
package export

import (
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/pipetakeoff/constants"
	"github.com/joseph-ayodele/pipetakeoff/internal/entity"
)

// CategoryGroup is a run of records sharing one known category, or the
// trailing run of everything else.
type CategoryGroup struct {
	Category string // empty for the "other" group
	Known    bool
	Records  []entity.MaterialRecord
}

// Total sums the group's quantities exactly.
func (g CategoryGroup) Total() decimal.Decimal {
	return sum(g.Records)
}

// FirstUnit is the unit of the group's first record, used on subtotal rows.
func (g CategoryGroup) FirstUnit() string {
	if len(g.Records) == 0 {
		return ""
	}
	return g.Records[0].Unit
}

// Group orders records by the canonical category order, then appends every
// record whose category is not one of the known five. Input order is kept
// inside each group. Empty groups are omitted.
func Group(records []entity.MaterialRecord) []CategoryGroup {
	var groups []CategoryGroup
	for _, cat := range constants.Categories() {
		var recs []entity.MaterialRecord
		for _, r := range records {
			if r.Category == string(cat) {
				recs = append(recs, r)
			}
		}
		if len(recs) > 0 {
			groups = append(groups, CategoryGroup{Category: string(cat), Known: true, Records: recs})
		}
	}

	var other []entity.MaterialRecord
	for _, r := range records {
		if !constants.IsKnown(r.Category) {
			other = append(other, r)
		}
	}
	if len(other) > 0 {
		groups = append(groups, CategoryGroup{Records: other})
	}
	return groups
}

// Ordered flattens Group into a single list.
func Ordered(records []entity.MaterialRecord) []entity.MaterialRecord {
	out := make([]entity.MaterialRecord, 0, len(records))
	for _, g := range Group(records) {
		out = append(out, g.Records...)
	}
	return out
}

func sum(records []entity.MaterialRecord) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.Quantity)
	}
	return total
}
