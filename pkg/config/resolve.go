package config

import (
	"maps"
	"slices"
	"strings"

	"github.com/matzehuels/stackbuild/pkg/errors"
	"github.com/matzehuels/stackbuild/pkg/platform"
)

// ResolveField resolves one field for platform p.
//
// base is the field's normalized base value, or nil when the base
// configuration does not set it. overrides are the target overrides declared
// for the whole configuration; only those setting field.Name are considered.
// The returned bool reports whether the value came from the manifest rather
// than the field default.
func ResolveField(field Field, base any, overrides []Override, p platform.Platform) (any, bool, error) {
	if err := field.validate(); err != nil {
		return nil, false, err
	}

	var declaring []Override
	for _, o := range overrides {
		if _, ok := o.Values[field.Name]; ok {
			declaring = append(declaring, o)
		}
	}

	if field.Policy == Forbidden && len(declaring) > 0 {
		sel := declaring[0].Selector
		return nil, false, errors.New(errors.ErrCodeConfig, "field %q cannot have a target specific value (found under target %q)", field.Name, sel).
			WithField(field.Name).WithSelector(string(sel))
	}

	var matching []Override
	for _, o := range declaring {
		if o.Selector.Matches(p) {
			matching = append(matching, o)
		}
	}
	if len(matching) > 1 {
		slices.SortStableFunc(matching, func(a, b Override) int { return platform.Compare(a.Selector, b.Selector) })
		sels := make([]string, len(matching))
		for i, o := range matching {
			sels[i] = string(o.Selector)
		}
		return nil, false, errors.New(errors.ErrCodeConfig, "field %q is set by more than one target matching %s: %s", field.Name, p, strings.Join(sels, ", ")).
			WithField(field.Name).WithSelector(sels[0])
	}

	if len(matching) == 0 {
		if base == nil {
			return zero(field), false, nil
		}
		return base, true, nil
	}

	o := matching[0]
	raw := o.Values[field.Name]
	value, ok := normalize(field.Kind, raw)
	if !ok {
		return nil, false, typeError(field, o.Selector, raw)
	}

	if field.Policy == Overwrite || base == nil {
		return value, true, nil
	}
	return mergeMaps(base, value), true, nil
}

// mergeMaps returns base with the keys of override inserted or replaced.
// Both values must be of the same normalized map type.
func mergeMaps(base, override any) any {
	switch b := base.(type) {
	case map[string]string:
		out := maps.Clone(b)
		if out == nil {
			out = map[string]string{}
		}
		maps.Copy(out, override.(map[string]string))
		return out
	case map[string]any:
		out := maps.Clone(b)
		if out == nil {
			out = map[string]any{}
		}
		maps.Copy(out, override.(map[string]any))
		return out
	}
	return override
}

// Resolve resolves every field of schema for platform p. Keys not declared in
// schema, in the base configuration or in any override, are rejected.
func Resolve(schema Schema, cfg BuildConfiguration, p platform.Platform) (*Resolved, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if err := checkUnknown(schema, cfg); err != nil {
		return nil, err
	}

	r := &Resolved{
		Platform: p,
		schema:   schema,
		values:   make(map[string]any, len(schema)),
		set:      make(map[string]bool, len(schema)),
	}
	for _, f := range schema {
		var base any
		if raw, ok := cfg.Base[f.Name]; ok {
			v, ok := normalize(f.Kind, raw)
			if !ok {
				return nil, typeError(f, "", raw)
			}
			base = v
		}
		v, set, err := ResolveField(f, base, cfg.Overrides, p)
		if err != nil {
			return nil, err
		}
		r.values[f.Name] = v
		r.set[f.Name] = set
	}
	return r, nil
}

func checkUnknown(schema Schema, cfg BuildConfiguration) error {
	for _, k := range sortedKeys(cfg.Base) {
		if _, ok := schema.Lookup(k); !ok {
			return errors.New(errors.ErrCodeConfig, "unknown configuration field %q", k).WithField(k)
		}
	}
	for _, o := range cfg.Overrides {
		for _, k := range sortedKeys(o.Values) {
			if _, ok := schema.Lookup(k); !ok {
				return errors.New(errors.ErrCodeConfig, "unknown configuration field %q in target %q", k, o.Selector).
					WithField(k).WithSelector(string(o.Selector))
			}
		}
	}
	return nil
}

func sortedKeys(v Values) []string {
	return slices.Sorted(maps.Keys(v))
}
