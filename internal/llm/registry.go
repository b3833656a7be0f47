package llm

import (
	"slices"
	"strings"

	"github.com/joseph-ayodele/pipetakeoff/internal/common"
)

// Registry resolves a provider name to a VisionModel.
type Registry struct {
	models   map[string]VisionModel
	fallback string
}

func NewRegistry(defaultName string, models ...VisionModel) *Registry {
	r := &Registry{models: make(map[string]VisionModel, len(models)), fallback: strings.ToLower(defaultName)}
	for _, m := range models {
		r.models[strings.ToLower(m.Name())] = m
	}
	return r
}

// Get returns the named provider, or the default one for an empty name.
func (r *Registry) Get(name string) (VisionModel, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = r.fallback
	}
	m, ok := r.models[key]
	if !ok {
		return nil, common.InvalidInputErrorf("unknown model provider %q (available: %s)", name, strings.Join(r.Names(), ", "))
	}
	return m, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.models))
	for n := range r.models {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
