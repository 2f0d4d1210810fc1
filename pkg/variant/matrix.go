package variant

import (
	"maps"
	"slices"
	"strings"

	"github.com/matzehuels/stackbuild/pkg/platform"
)

// Config is a user variant configuration: each key lists the values to
// build.
type Config map[string][]string

// Combination assigns one value to each used variant key.
type Combination map[string]string

// String renders c as "k=v,k=v" with sorted keys, or "default" when empty.
func (c Combination) String() string {
	if len(c) == 0 {
		return "default"
	}
	keys := slices.Sorted(maps.Keys(c))
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + c[k]
	}
	return strings.Join(parts, ",")
}

// Matches reports whether every key of sel has the same value in c.
func (c Combination) Matches(sel map[string]string) bool {
	for k, v := range sel {
		if c[k] != v {
			return false
		}
	}
	return true
}

// UsedKeys returns the variant keys that influence the given languages, sorted.
func UsedKeys(t *Table, languages []string) []string {
	set := map[string]bool{}
	for _, lang := range languages {
		for _, k := range t.Keys(lang) {
			set[k] = true
		}
	}
	return slices.Sorted(maps.Keys(set))
}

// Combinations returns the cartesian product of cfg restricted to keys.
// Keys absent from cfg or with no values are skipped. Keys are walked in
// sorted order and values in declaration order, so the result is stable.
// With nothing to combine the result is a single empty combination.
func (cfg Config) Combinations(keys []string) []Combination {
	keys = slices.Clone(keys)
	slices.Sort(keys)

	result := []Combination{{}}
	for _, k := range keys {
		values := cfg[k]
		if len(values) == 0 {
			continue
		}
		next := make([]Combination, 0, len(result)*len(values))
		for _, prev := range result {
			for _, v := range values {
				c := maps.Clone(prev)
				c[k] = v
				next = append(next, c)
			}
		}
		result = next
	}
	return result
}

// Set is the compilers resolved for one combination.
type Set struct {
	Combination Combination       `json:"combination" yaml:"combination" cbor:"combination"`
	Compilers   []CompilerVariant `json:"compilers" yaml:"compilers" cbor:"compilers"`
}

// Expand resolves the languages for every combination of cfg over the keys
// those languages use.
func Expand(t *Table, languages []string, p platform.Platform, cfg Config) ([]Set, error) {
	combos := cfg.Combinations(UsedKeys(t, languages))
	out := make([]Set, 0, len(combos))
	for _, c := range combos {
		vs, err := ResolveAll(t, languages, p, c)
		if err != nil {
			return nil, err
		}
		out = append(out, Set{Combination: c, Compilers: vs})
	}
	return out, nil
}
