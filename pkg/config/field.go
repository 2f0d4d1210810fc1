// Package config resolves a backend's build configuration for one target
// platform.
//
// A manifest declares a base configuration plus any number of target
// overrides, each scoped by a [platform.Selector]. Every configuration field
// carries a [MergePolicy] that decides how a matching override combines with
// the base value:
//
//   - [Overwrite]: the override replaces the base value verbatim. Lists are
//     replaced, never appended to.
//   - [Merge]: map-valued fields only. Override keys are inserted into the
//     base map, overwriting existing keys.
//   - [Forbidden]: the field may not appear in any target override at all.
//
// Two overrides that both match the requested platform and both set the same
// field are rejected. There is no first-wins or last-wins rule and selector
// specificity does not break the tie.
//
// # Usage
//
//	schema := append(config.CommonFields(), config.Field{
//	    Name: "build-type", Kind: config.String, Policy: config.Overwrite, Default: "Release",
//	})
//	resolved, err := config.Resolve(schema, manifest.Config, platform.Linux64)
//	if err != nil {
//	    return err // *errors.Error with code CONFIG_ERROR
//	}
//	args := resolved.StringList(config.FieldExtraArgs)
package config

import (
	"fmt"

	"github.com/matzehuels/stackbuild/pkg/errors"
)

// Kind is the value type of a configuration field.
type Kind int

const (
	StringList Kind = iota
	String
	Bool
	StringMap
	Struct
	StructList
)

func (k Kind) String() string {
	switch k {
	case StringList:
		return "string list"
	case String:
		return "string"
	case Bool:
		return "bool"
	case StringMap:
		return "string map"
	case Struct:
		return "table"
	case StructList:
		return "table list"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// isMap reports whether values of this kind are keyed maps.
func (k Kind) isMap() bool {
	return k == StringMap || k == Struct
}

// MergePolicy decides how a target override combines with the base value.
type MergePolicy int

const (
	Overwrite MergePolicy = iota
	Merge
	Forbidden
)

func (p MergePolicy) String() string {
	switch p {
	case Overwrite:
		return "overwrite"
	case Merge:
		return "merge"
	case Forbidden:
		return "forbidden"
	}
	return fmt.Sprintf("MergePolicy(%d)", int(p))
}

// Field describes one configuration key.
type Field struct {
	Name    string
	Kind    Kind
	Policy  MergePolicy
	Default any
}

// validate checks that the policy is applicable to the field's kind.
func (f Field) validate() error {
	if f.Policy == Merge && !f.Kind.isMap() {
		return errors.New(errors.ErrCodeConfig, "field %q: merge policy requires a map-valued field, got %s", f.Name, f.Kind).
			WithField(f.Name)
	}
	return nil
}

// Common field names shared by every backend.
const (
	FieldEnv             = "env"
	FieldExtraArgs       = "extra-args"
	FieldExtraInputGlobs = "extra-input-globs"
	FieldDebugDir        = "debug-dir"
	FieldCompilers       = "compilers"
)

// Schema is the ordered set of fields a backend accepts.
type Schema []Field

// CommonFields returns the fields every backend accepts.
func CommonFields() Schema {
	return Schema{
		{Name: FieldEnv, Kind: StringMap, Policy: Merge},
		{Name: FieldExtraArgs, Kind: StringList, Policy: Overwrite},
		{Name: FieldExtraInputGlobs, Kind: StringList, Policy: Overwrite},
		{Name: FieldDebugDir, Kind: String, Policy: Forbidden},
		{Name: FieldCompilers, Kind: StringList, Policy: Overwrite},
	}
}

// With returns a copy of s where fields replace same-named entries and
// otherwise are appended. Backends use it to change a common default, such as
// the compilers list.
func (s Schema) With(fields ...Field) Schema {
	out := make(Schema, len(s), len(s)+len(fields))
	copy(out, s)
	for _, f := range fields {
		if i := out.index(f.Name); i >= 0 {
			out[i] = f
			continue
		}
		out = append(out, f)
	}
	return out
}

// Lookup returns the field named name.
func (s Schema) Lookup(name string) (Field, bool) {
	if i := s.index(name); i >= 0 {
		return s[i], true
	}
	return Field{}, false
}

func (s Schema) index(name string) int {
	for i, f := range s {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Validate checks every field's policy against its kind and rejects
// duplicate names.
func (s Schema) Validate() error {
	seen := make(map[string]bool, len(s))
	for _, f := range s {
		if seen[f.Name] {
			return errors.New(errors.ErrCodeConfig, "field %q declared twice", f.Name).WithField(f.Name)
		}
		seen[f.Name] = true
		if err := f.validate(); err != nil {
			return err
		}
	}
	return nil
}
