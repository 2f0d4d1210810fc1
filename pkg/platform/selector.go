package platform

import (
	"slices"

	"github.com/matzehuels/stackbuild/pkg/errors"
)

// Selector scopes a configuration override to a set of platforms.
type Selector string

// Group selectors.
const (
	SelectLinux Selector = "linux"
	SelectOsx   Selector = "osx"
	SelectWin   Selector = "win"
	SelectUnix  Selector = "unix"
)

// ParseSelector validates s. Unknown selectors are configuration errors.
func ParseSelector(s string) (Selector, error) {
	sel := Selector(s)
	switch sel {
	case SelectLinux, SelectOsx, SelectWin, SelectUnix:
		return sel, nil
	}
	if slices.Contains(All, Platform(s)) {
		return sel, nil
	}
	return "", errors.New(errors.ErrCodeConfig, "unknown target selector %q", s).WithSelector(s)
}

// Matches reports whether sel applies to p.
func (sel Selector) Matches(p Platform) bool {
	switch sel {
	case SelectLinux:
		return p.Family() == FamilyLinux
	case SelectOsx:
		return p.Family() == FamilyOsx
	case SelectWin:
		return p.Family() == FamilyWin
	case SelectUnix:
		return p.IsUnix()
	}
	return Platform(sel) == p
}

// Specificity ranks selectors: an exact platform (2) over a family (1) over
// unix (0). It orders diagnostics and never decides between conflicting
// overrides.
func (sel Selector) Specificity() int {
	switch sel {
	case SelectUnix:
		return 0
	case SelectLinux, SelectOsx, SelectWin:
		return 1
	}
	return 2
}

func (sel Selector) String() string { return string(sel) }

// Compare orders selectors by descending specificity, then by name.
func Compare(a, b Selector) int {
	if sa, sb := a.Specificity(), b.Specificity(); sa != sb {
		return sb - sa
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
