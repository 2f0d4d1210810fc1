package fingerprint

import (
	"slices"
	"strings"
)

// Policy decides how extra globs combine with a backend's defaults.
type Policy int

const (
	// Union adds the extras to the defaults.
	Union Policy = iota
	// Replace uses only the extras when any are given.
	Replace
)

// GlobSet is the set of input patterns for one request.
type GlobSet struct {
	Defaults []string
	Extras   []string
	Policy   Policy
}

// Patterns returns the effective patterns, deduplicated and sorted. Include
// and exclude patterns are both returned; exclusion is applied by Compute.
func (g GlobSet) Patterns() []string {
	var out []string
	if g.Policy == Replace && len(g.Extras) > 0 {
		out = slices.Clone(g.Extras)
	} else {
		out = append(slices.Clone(g.Defaults), g.Extras...)
	}
	for i, p := range out {
		out[i] = clean(p)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func clean(pattern string) string {
	neg := strings.HasPrefix(pattern, "!")
	p := strings.TrimPrefix(pattern, "!")
	p = strings.TrimPrefix(strings.ReplaceAll(p, "\\", "/"), "./")
	if neg {
		return "!" + p
	}
	return p
}

// split separates include patterns from exclude patterns, dropping the "!".
func split(patterns []string) (include, exclude []string) {
	for _, p := range patterns {
		if rest, ok := strings.CutPrefix(p, "!"); ok {
			exclude = append(exclude, rest)
			continue
		}
		include = append(include, p)
	}
	return include, exclude
}
