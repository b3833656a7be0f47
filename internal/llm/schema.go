package llm

import "github.com/joseph-ayodele/pipetakeoff/constants"

// MaterialItemSchema describes one element of the "materials" array as the
// prompt asks for it. Replies that drift from it are still parsed leniently.
func MaterialItemSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"category":    map[string]any{"type": "string", "enum": constants.AsStringSlice()},
			"description": map[string]any{"type": "string"},
			"size":        map[string]any{"type": "string"},
			"material":    map[string]any{"type": "string"},
			"quantity":    map[string]any{"type": "number", "minimum": 0},
			"unit":        map[string]any{"type": "string"},
			"confidence": map[string]any{
				"type": "string",
				"enum": []string{string(constants.High), string(constants.Medium), string(constants.Low)},
			},
			"notes": map[string]any{"type": []string{"string", "null"}},
		},
		"required": []string{"category", "description", "quantity", "unit"},
	}
}

// MaterialsSchema describes the whole reply payload.
func MaterialsSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"materials": map[string]any{
				"type":  "array",
				"items": MaterialItemSchema(),
			},
			"drawingNotes": map[string]any{"type": []string{"string", "null"}},
		},
		"required": []string{"materials"},
	}
}
