package llm

import (
	"fmt"
	"strings"

	"github.com/tyler-sommer/stick"

	"github.com/joseph-ayodele/pipetakeoff/constants"
)

const takeoffTemplate = `You are an expert construction estimator specializing in piping systems.
Analyze this construction drawing and identify all piping materials visible.

For each item found, provide:
- Category: {{ category_list }}
- Description (e.g., '4" PVC SCH40 Pipe', '4" 90° PVC Elbow')
- Size/Diameter
- Material (PVC, DI, HDPE, Steel, Copper, etc.)
- Quantity or Length (use drawing scale if visible, otherwise estimate)
- Unit (LF for linear pipe, {{ default_unit }} for fittings/valves/equipment)
- Confidence: {{ confidence_list }}
- Notes (optional, for any clarifications)

Return as JSON with this exact structure:
{
  "materials": [
    {
      "category": "Pipe",
      "description": "4\" PVC SCH40 Pipe",
      "size": "4\"",
      "material": "PVC",
      "quantity": 150,
      "unit": "LF",
      "confidence": "High",
      "notes": ""
    }
  ],
  "drawingNotes": "Optional notes about scale, unclear items, or assumptions made"
}

Focus on identifying:
- Underground piping runs
- Above-grade mechanical piping
- Pumping station piping
- Tank connections
- Filter assemblies
- Wellhead piping
- All fittings (elbows, tees, reducers, couplings, flanges)
- All valves (gate, ball, check, butterfly)
- Equipment connections

If scale is not determinable, note lengths as estimates and set confidence to "Low".
If you cannot identify an item clearly, still include it with confidence "Low".
`

// PromptBuilder renders the default takeoff instructions once and hands them
// out unless the caller brings their own.
type PromptBuilder struct {
	defaultPrompt string
}

func NewPromptBuilder() (*PromptBuilder, error) {
	env := stick.New(nil)
	vars := map[string]stick.Value{
		"category_list":   joinOr(constants.AsStringSlice()),
		"confidence_list": joinOr([]string{string(constants.High), string(constants.Medium), string(constants.Low)}),
		"default_unit":    constants.DefaultUnit,
	}

	var out strings.Builder
	if err := env.Execute(takeoffTemplate, &out, vars); err != nil {
		return nil, fmt.Errorf("render takeoff prompt: %w", err)
	}
	return &PromptBuilder{defaultPrompt: out.String()}, nil
}

// Build returns custom when it has any non-blank content, otherwise the default prompt.
func (b *PromptBuilder) Build(custom string) string {
	if strings.TrimSpace(custom) != "" {
		return custom
	}
	return b.defaultPrompt
}

func (b *PromptBuilder) Default() string { return b.defaultPrompt }

// joinOr renders ["a","b","c"] as "a, b, or c".
func joinOr(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " or " + items[1]
	}
	return strings.Join(items[:len(items)-1], ", ") + ", or " + items[len(items)-1]
}
