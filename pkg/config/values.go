package config

import (
	"maps"
	"slices"

	"github.com/matzehuels/stackbuild/pkg/errors"
	"github.com/matzehuels/stackbuild/pkg/platform"
)

// Values is a raw configuration table as decoded from a manifest.
type Values map[string]any

// Override is a configuration table scoped to a target selector.
type Override struct {
	Selector platform.Selector
	Values   Values
}

// BuildConfiguration is the base configuration plus its target overrides, as
// declared by the manifest.
type BuildConfiguration struct {
	Base      Values
	Overrides []Override
}

// normalize converts a decoded manifest value into the canonical Go type for
// kind: []string, string, bool, map[string]string, map[string]any or
// []map[string]any. TOML, YAML and JSON decoders disagree on container types,
// so everything funnels through here before resolution.
func normalize(kind Kind, v any) (any, bool) {
	switch kind {
	case String:
		s, ok := v.(string)
		return s, ok
	case Bool:
		b, ok := v.(bool)
		return b, ok
	case StringList:
		switch x := v.(type) {
		case []string:
			return slices.Clone(x), true
		case []any:
			out := make([]string, 0, len(x))
			for _, e := range x {
				s, ok := e.(string)
				if !ok {
					return nil, false
				}
				out = append(out, s)
			}
			return out, true
		}
	case StringMap:
		switch x := v.(type) {
		case map[string]string:
			return maps.Clone(x), true
		case map[string]any:
			out := make(map[string]string, len(x))
			for k, e := range x {
				s, ok := e.(string)
				if !ok {
					return nil, false
				}
				out[k] = s
			}
			return out, true
		}
	case Struct:
		m, ok := asTable(v)
		return m, ok
	case StructList:
		switch x := v.(type) {
		case []map[string]any:
			out := make([]map[string]any, len(x))
			for i, e := range x {
				out[i] = maps.Clone(e)
			}
			return out, true
		case []any:
			out := make([]map[string]any, 0, len(x))
			for _, e := range x {
				m, ok := asTable(e)
				if !ok {
					return nil, false
				}
				out = append(out, m)
			}
			return out, true
		}
	}
	return nil, false
}

func asTable(v any) (map[string]any, bool) {
	switch x := v.(type) {
	case map[string]any:
		return maps.Clone(x), true
	case Values:
		return maps.Clone(map[string]any(x)), true
	}
	return nil, false
}

func typeError(f Field, sel platform.Selector, v any) error {
	err := errors.New(errors.ErrCodeConfig, "field %q: expected %s, got %T", f.Name, f.Kind, v).WithField(f.Name)
	if sel != "" {
		err = err.WithSelector(string(sel))
	}
	return err
}

// zero returns the field default, or the empty value of its kind.
func zero(f Field) any {
	if f.Default != nil {
		if v, ok := normalize(f.Kind, f.Default); ok {
			return v
		}
	}
	switch f.Kind {
	case String:
		return ""
	case Bool:
		return false
	case StringList:
		return []string(nil)
	case StringMap:
		return map[string]string(nil)
	case Struct:
		return map[string]any(nil)
	}
	return []map[string]any(nil)
}
