package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/pipetakeoff/constants"
)

func init() {
	// Quantities travel as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// MaterialRecord is one line of a takeoff, machine-extracted or entered by hand.
type MaterialRecord struct {
	ID            uuid.UUID       `json:"id"`
	Category      string          `json:"category"`
	Description   string          `json:"description"`
	Size          string          `json:"size"`
	Material      string          `json:"material"`
	Quantity      decimal.Decimal `json:"quantity"`
	Unit          string          `json:"unit"`
	Confidence    string          `json:"confidence"`
	Notes         *string         `json:"notes"`
	IsManualEntry bool            `json:"isManualEntry"`
}

// ManualInput carries the caller-supplied fields of a hand-entered record.
type ManualInput struct {
	Category    string
	Description string
	Size        string
	Material    string
	Quantity    decimal.Decimal
	Unit        string
	Notes       *string
}

// NewManualRecord builds a record created outside the extraction pipeline.
// Manual entries are recorded with High confidence; negative quantities become zero.
func NewManualRecord(in ManualInput) MaterialRecord {
	unit := in.Unit
	if unit == "" {
		unit = constants.DefaultUnit
	}
	qty := in.Quantity
	if qty.IsNegative() {
		qty = decimal.Zero
	}
	return MaterialRecord{
		ID:            uuid.New(),
		Category:      in.Category,
		Description:   in.Description,
		Size:          in.Size,
		Material:      in.Material,
		Quantity:      qty,
		Unit:          unit,
		Confidence:    string(constants.High),
		Notes:         in.Notes,
		IsManualEntry: true,
	}
}

// Quantities are kept within what a 128-bit decimal holds: at most 29
// significant digits, 29 integer digits and 28 fractional digits.
const (
	MaxQuantityDigits = 29
	MaxQuantityScale  = 28
)

// QuantityInRange reports whether d fits the quantity bounds. Values outside
// them are refused before anything formats them, since rendering a decimal
// with a huge exponent expands every digit.
func QuantityInRange(d decimal.Decimal) bool {
	exp := int64(d.Exponent())
	digits := int64(d.NumDigits())
	return exp >= -MaxQuantityScale &&
		digits <= MaxQuantityDigits &&
		digits+exp <= MaxQuantityDigits
}

// NotesOrEmpty returns the notes text, or "" when absent.
func (m MaterialRecord) NotesOrEmpty() string {
	if m.Notes == nil {
		return ""
	}
	return *m.Notes
}

// ExtractionOutcome is the parser's result for one analyzed page.
type ExtractionOutcome struct {
	Materials    []MaterialRecord `json:"materials"`
	DrawingNotes *string          `json:"drawingNotes"`
	AnalyzedAt   time.Time        `json:"analyzedAt"`
}
