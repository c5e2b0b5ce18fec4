package pipeline

import (
	"sort"

	"github.com/roach88/driftless/internal/service"
	"github.com/roach88/driftless/internal/template"
)

// stateOf summarizes what a deploy leaves behind: every function version
// hash and layer identity. It carries no timestamp or artifact location, so
// an unchanged service produces identical state bytes.
func stateOf(svc *service.Service, compiled *template.Compiled) map[string]any {
	functions := make(map[string]any, len(compiled.Hashes.Functions))
	for key, h := range compiled.Hashes.Functions {
		functions[key] = h.String()
	}
	layers := make(map[string]any, len(compiled.Hashes.Layers))
	for id, h := range compiled.Hashes.Layers {
		layers[id] = h.String()
	}
	return map[string]any{
		"service":   svc.Name,
		"stage":     svc.Provider.Stage,
		"region":    svc.Provider.Region,
		"functions": functions,
		"layers":    layers,
	}
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
