package export

import (
	"bytes"
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/joseph-ayodele/pipetakeoff/internal/entity"
)

// ParquetRow is the columnar shape of one record. Quantity is carried both as
// a double for analytics and as exact text.
type ParquetRow struct {
	ID            string  `parquet:"id"`
	Category      string  `parquet:"category"`
	Description   string  `parquet:"description"`
	Size          string  `parquet:"size"`
	Material      string  `parquet:"material"`
	Quantity      float64 `parquet:"quantity"`
	QuantityExact string  `parquet:"quantity_exact"`
	Unit          string  `parquet:"unit"`
	Confidence    string  `parquet:"confidence"`
	Notes         *string `parquet:"notes,optional"`
	IsManualEntry bool    `parquet:"is_manual_entry"`
}

// Parquet writes one row per record in grouping order.
func Parquet(records []entity.MaterialRecord) ([]byte, error) {
	ordered := Ordered(records)
	rows := make([]ParquetRow, len(ordered))
	for i, r := range ordered {
		rows[i] = ParquetRow{
			ID:            r.ID.String(),
			Category:      r.Category,
			Description:   r.Description,
			Size:          r.Size,
			Material:      r.Material,
			Quantity:      r.Quantity.InexactFloat64(),
			QuantityExact: r.Quantity.String(),
			Unit:          r.Unit,
			Confidence:    r.Confidence,
			Notes:         r.Notes,
			IsManualEntry: r.IsManualEntry,
		}
	}

	var buf bytes.Buffer
	w := parquet.NewGenericWriter[ParquetRow](&buf)
	if _, err := w.Write(rows); err != nil {
		return nil, fmt.Errorf("parquet write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("parquet close: %w", err)
	}
	return buf.Bytes(), nil
}
