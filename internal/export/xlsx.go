package export

import (
	"fmt"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/pipetakeoff/constants"
	"github.com/joseph-ayodele/pipetakeoff/internal/entity"
)

const SheetName = "Materials Takeoff"

// Fill colours, as RGB hex.
const (
	headerFill = "ADD8E6" // light blue
	highFill   = "90EE90" // light green
	mediumFill = "FFFFE0" // light yellow
	lowFill    = "F08080" // light coral
)

const (
	minColWidth = 10
	maxColWidth = 60
)

func confidenceFill(c string) string {
	switch c {
	case string(constants.High):
		return highFill
	case string(constants.Medium):
		return mediumFill
	case string(constants.Low):
		return lowFill
	}
	return ""
}

type styleKey struct {
	bold   bool
	italic bool
	right  bool
	fill   string
}

// sheetWriter tracks the cursor, a style cache and content widths while the
// workbook is filled.
type sheetWriter struct {
	f      *excelize.File
	row    int
	styles map[styleKey]int
	widths []int
	err    error
}

// XLSX builds the takeoff workbook: header, grouped rows with per-category
// subtotals, unmatched categories without subtotal, and a grand total.
func XLSX(records []entity.MaterialRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("xlsx rename sheet: %w", err)
	}

	w := &sheetWriter{f: f, row: 1, styles: map[styleKey]int{}, widths: make([]int, len(columns))}

	for i, h := range columns {
		w.set(i+1, h, styleKey{bold: true, fill: headerFill})
	}
	w.row++

	for _, g := range Group(records) {
		for _, r := range g.Records {
			w.record(r)
		}
		if !g.Known {
			continue
		}
		w.set(4, g.Category+" Total:", styleKey{bold: true, right: true})
		w.set(5, g.Total().InexactFloat64(), styleKey{bold: true})
		w.set(6, g.FirstUnit(), styleKey{})
		w.row += 2
	}

	w.row++
	w.set(4, "GRAND TOTAL:", styleKey{bold: true, right: true})
	w.set(5, sum(records).InexactFloat64(), styleKey{bold: true})

	w.applyWidths()
	if w.err != nil {
		return nil, fmt.Errorf("xlsx build: %w", w.err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func (w *sheetWriter) record(r entity.MaterialRecord) {
	values := []any{
		r.Category,
		r.Description,
		r.Size,
		r.Material,
		r.Quantity.InexactFloat64(),
		r.Unit,
		r.Confidence,
		r.NotesOrEmpty(),
	}
	for i, v := range values {
		key := styleKey{italic: r.IsManualEntry}
		if i == 6 {
			key.fill = confidenceFill(r.Confidence)
		}
		w.set(i+1, v, key)
	}
	w.row++
}

// set writes one cell on the current row and styles it unless key is the zero style.
func (w *sheetWriter) set(col int, v any, key styleKey) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, w.row)
	if err != nil {
		w.err = err
		return
	}
	if err := w.f.SetCellValue(SheetName, cell, v); err != nil {
		w.err = err
		return
	}
	w.track(col, v)

	if key == (styleKey{}) {
		return
	}
	id, err := w.style(key)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetCellStyle(SheetName, cell, cell, id)
}

func (w *sheetWriter) style(key styleKey) (int, error) {
	if id, ok := w.styles[key]; ok {
		return id, nil
	}
	st := &excelize.Style{Font: &excelize.Font{Bold: key.bold, Italic: key.italic}}
	if key.fill != "" {
		st.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{key.fill}}
	}
	if key.right {
		st.Alignment = &excelize.Alignment{Horizontal: "right"}
	}
	id, err := w.f.NewStyle(st)
	if err != nil {
		return 0, err
	}
	w.styles[key] = id
	return id, nil
}

func (w *sheetWriter) track(col int, v any) {
	n := utf8.RuneCountInString(fmt.Sprint(v))
	if n > w.widths[col-1] {
		w.widths[col-1] = n
	}
}

func (w *sheetWriter) applyWidths() {
	for i, n := range w.widths {
		if w.err != nil {
			return
		}
		width := min(max(n+2, minColWidth), maxColWidth)
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			w.err = err
			return
		}
		w.err = w.f.SetColWidth(SheetName, name, name, float64(width))
	}
}
