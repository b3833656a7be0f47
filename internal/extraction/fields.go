package extraction

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/pipetakeoff/internal/entity"
)

// object is one decoded JSON object with its members left raw, so each field
// can be read on its own terms.
type object map[string]json.RawMessage

func (o object) raw(key string) []byte {
	return bytes.TrimSpace(o[key])
}

// stringField reports the member as a string, or false when it is absent or not a JSON string.
func (o object) stringField(key string) (string, bool) {
	raw := o.raw(key)
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func (o object) stringOr(key, def string) string {
	if s, ok := o.stringField(key); ok {
		return s
	}
	return def
}

func (o object) stringPtr(key string) *string {
	if s, ok := o.stringField(key); ok {
		return &s
	}
	return nil
}

// quantity accepts a JSON number or a string holding one. Anything else,
// and any negative value, reads as zero. A value outside the quantity bounds
// also reads as zero, with ok false so the caller can log the drop.
func (o object) quantity(key string) (decimal.Decimal, bool) {
	raw := o.raw(key)
	if len(raw) == 0 {
		return decimal.Zero, true
	}
	var text string
	switch c := raw[0]; {
	case c == '"':
		if err := json.Unmarshal(raw, &text); err != nil {
			return decimal.Zero, true
		}
		text = strings.TrimSpace(text)
	case c == '-' || (c >= '0' && c <= '9'):
		text = string(raw)
	default:
		return decimal.Zero, true
	}
	d, err := decimal.NewFromString(text)
	if err != nil || d.IsNegative() {
		return decimal.Zero, true
	}
	if !entity.QuantityInRange(d) {
		return decimal.Zero, false
	}
	return d, true
}
