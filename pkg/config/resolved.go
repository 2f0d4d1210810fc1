package config

import (
	"maps"
	"slices"

	"github.com/matzehuels/stackbuild/pkg/codec"
	"github.com/matzehuels/stackbuild/pkg/platform"
)

// Resolved is a configuration resolved for one platform. It is immutable; the
// accessors return copies.
type Resolved struct {
	Platform platform.Platform

	schema Schema
	values map[string]any
	set    map[string]bool
}

// IsSet reports whether the manifest supplied a value for name, either in
// the base configuration or in a matching override.
func (r *Resolved) IsSet(name string) bool {
	return r.set[name]
}

// String returns a string field.
func (r *Resolved) String(name string) string {
	s, _ := r.values[name].(string)
	return s
}

// Bool returns a bool field.
func (r *Resolved) Bool(name string) bool {
	b, _ := r.values[name].(bool)
	return b
}

// StringList returns a string list field.
func (r *Resolved) StringList(name string) []string {
	l, _ := r.values[name].([]string)
	return slices.Clone(l)
}

// StringMap returns a string map field.
func (r *Resolved) StringMap(name string) map[string]string {
	m, _ := r.values[name].(map[string]string)
	return maps.Clone(m)
}

// Struct returns a table field.
func (r *Resolved) Struct(name string) map[string]any {
	m, _ := r.values[name].(map[string]any)
	return maps.Clone(m)
}

// StructList returns a table list field.
func (r *Resolved) StructList(name string) []map[string]any {
	l, _ := r.values[name].([]map[string]any)
	out := make([]map[string]any, len(l))
	for i, m := range l {
		out[i] = maps.Clone(m)
	}
	return out
}

// Map returns every field keyed by name, in a form suitable for YAML or CBOR
// encoding.
func (r *Resolved) Map() map[string]any {
	out := make(map[string]any, len(r.values))
	for _, f := range r.schema {
		out[f.Name] = r.values[f.Name]
	}
	return out
}

// Canonical returns the deterministic CBOR encoding of the resolved values.
// Equal configurations always encode to identical bytes.
func (r *Resolved) Canonical() ([]byte, error) {
	return codec.Marshal(r.Map())
}
