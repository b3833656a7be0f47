// Package extraction turns a model's takeoff reply into material records.
package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/pipetakeoff/constants"
	"github.com/joseph-ayodele/pipetakeoff/internal/entity"
	"github.com/joseph-ayodele/pipetakeoff/internal/llm"
)

// Parser never fails: malformed input yields an empty outcome, malformed
// elements are dropped, malformed fields take their defaults.
type Parser struct {
	logger     *slog.Logger
	now        func() time.Time
	itemSchema *jsonschema.Schema // nil disables drift diagnostics
}

type Option func(*Parser)

func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		if now != nil {
			p.now = now
		}
	}
}

func NewParser(logger *slog.Logger, opts ...Option) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Parser{logger: logger, now: time.Now}
	for _, o := range opts {
		o(p)
	}

	schema, err := llm.CompileSchema("material-item.json", llm.MaterialItemSchema())
	if err != nil {
		logger.Error("extraction.schema_compile_failed", "error", err)
	} else {
		p.itemSchema = schema
	}
	return p
}

// Parse reads raw model text. It is safe for concurrent use.
func (p *Parser) Parse(raw string) entity.ExtractionOutcome {
	out := entity.ExtractionOutcome{
		Materials:  []entity.MaterialRecord{},
		AnalyzedAt: p.now().UTC(),
	}

	text := stripFence(raw)
	if text == "" {
		p.logger.Warn("extraction.empty_response")
		return out
	}

	var root object
	if err := json.Unmarshal([]byte(text), &root); err != nil || root == nil {
		p.logger.Warn("extraction.malformed_payload", "error", err, "bytes", len(raw), "preview", preview(text))
		return out
	}

	out.DrawingNotes = root.stringPtr("drawingNotes")

	elems, ok := p.materials(root)
	if !ok {
		return out
	}

	skipped := 0
	for i, elem := range elems {
		rec, ok := p.decodeElement(i, elem)
		if !ok {
			skipped++
			continue
		}
		out.Materials = append(out.Materials, rec)
	}

	p.logger.Info("extraction.parsed",
		"materials", len(out.Materials),
		"skipped", skipped,
		"has_drawing_notes", out.DrawingNotes != nil,
	)
	return out
}

func (p *Parser) materials(root object) ([]json.RawMessage, bool) {
	raw := root.raw("materials")
	if len(raw) == 0 {
		p.logger.Warn("extraction.materials_missing")
		return nil, false
	}
	if raw[0] != '[' {
		p.logger.Warn("extraction.materials_not_array", "preview", preview(string(raw)))
		return nil, false
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		p.logger.Warn("extraction.materials_undecodable", "error", err)
		return nil, false
	}
	return elems, true
}

// decodeElement isolates one array element so a bad one cannot spoil the rest.
func (p *Parser) decodeElement(index int, raw json.RawMessage) (rec entity.MaterialRecord, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("extraction.element_skipped", "index", index, "reason", fmt.Sprint(r))
			ok = false
		}
	}()

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		p.logger.Warn("extraction.element_skipped", "index", index, "reason", "not an object")
		return entity.MaterialRecord{}, false
	}
	var obj object
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		p.logger.Warn("extraction.element_skipped", "index", index, "reason", err.Error())
		return entity.MaterialRecord{}, false
	}

	p.checkDrift(index, trimmed)

	qty, inRange := obj.quantity("quantity")
	if !inRange {
		p.logger.Warn("extraction.quantity_out_of_range", "index", index, "raw", preview(string(obj.raw("quantity"))))
	}

	return entity.MaterialRecord{
		ID:            uuid.New(),
		Category:      obj.stringOr("category", constants.UnknownCategory),
		Description:   obj.stringOr("description", ""),
		Size:          obj.stringOr("size", ""),
		Material:      obj.stringOr("material", ""),
		Quantity:      qty,
		Unit:          obj.stringOr("unit", constants.DefaultUnit),
		Confidence:    obj.stringOr("confidence", constants.DefaultConfidence),
		Notes:         obj.stringPtr("notes"),
		IsManualEntry: false,
	}, true
}

// checkDrift logs where an element departs from the requested shape. It never
// changes what gets parsed.
func (p *Parser) checkDrift(index int, raw []byte) {
	if p.itemSchema == nil {
		return
	}
	// Plain float64 decoding: a number beyond float range fails here instead
	// of reaching the validator as an unbounded literal.
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return
	}
	if err := p.itemSchema.Validate(v); err != nil {
		p.logger.Warn("extraction.schema_drift", "index", index, "detail", err.Error())
	}
}

func preview(s string) string {
	const max = 120
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
