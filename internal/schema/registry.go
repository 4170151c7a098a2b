// Package schema loads the per-kind document schemas embedded in the binary
// and validates field sets against them. The registry is built once at
// startup and never mutated afterwards.
package schema

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"

	"samplecore/pkg/domain"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Definition is the decoded form of one kind schema. Only the subset of JSON
// Schema the catalog relies on is modelled: required properties, property
// types, enums, string item lists, and string-valued maps.
type Definition struct {
	Title                string              `json:"title"`
	Type                 string              `json:"type"`
	Properties           map[string]Property `json:"properties"`
	Required             []string            `json:"required"`
	AdditionalProperties json.RawMessage     `json:"additionalProperties"`
}

// Property describes a single schema property.
type Property struct {
	Type                 string    `json:"type"`
	Enum                 []string  `json:"enum"`
	MinLength            int       `json:"minLength"`
	Items                *Property `json:"items"`
	AdditionalProperties *Property `json:"additionalProperties"`
}

// Registry is the immutable set of named schemas.
type Registry struct {
	defs map[domain.Kind]Definition
}

// Load decodes every embedded schema file and returns the registry. Called
// once during process startup; the result is shared read-only thereafter.
func Load() (*Registry, error) {
	defs := make(map[domain.Kind]Definition, len(domain.Kinds()))
	for _, kind := range domain.Kinds() {
		raw, err := schemaFS.ReadFile(fmt.Sprintf("schemas/%s.json", kind))
		if err != nil {
			return nil, fmt.Errorf("read schema for %s: %w", kind, err)
		}
		var def Definition
		if err := json.Unmarshal(raw, &def); err != nil {
			return nil, fmt.Errorf("decode schema for %s: %w", kind, err)
		}
		defs[kind] = def
	}
	return &Registry{defs: defs}, nil
}

// MustLoad is Load for main functions and tests where a broken embed is fatal.
func MustLoad() *Registry {
	reg, err := Load()
	if err != nil {
		panic(err)
	}
	return reg
}

// Definition returns the schema for the kind.
func (r *Registry) Definition(kind domain.Kind) (Definition, bool) {
	def, ok := r.defs[kind]
	return def, ok
}

// Kinds returns the kinds known to the registry in sorted order.
func (r *Registry) Kinds() []domain.Kind {
	out := make([]domain.Kind, 0, len(r.defs))
	for kind := range r.defs {
		out = append(out, kind)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
