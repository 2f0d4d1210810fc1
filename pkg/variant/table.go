// Package variant resolves the compiler a build uses for each language it
// needs, and expands user variant configuration into the set of builds to run.
//
// Most languages are resolved through a [Table] of per-family defaults that
// the user may override with the templated keys "<lang>_compiler" and
// "<lang>_compiler_version". Mojo alone instead resolves to the fixed
// toolchain package mojo-compiler whose version alone is overridable; it is
// the one [FixedPackage] language and never consults the table.
//
// Resolution never falls back to another compiler family: asking for cuda on
// osx, where there is no default, fails unless the user supplies both name
// and version.
package variant

import (
	"maps"

	"github.com/matzehuels/stackbuild/pkg/platform"
)

// Kind is how a language's compiler is resolved.
type Kind int

const (
	// Templated languages resolve through the table and the
	// <lang>_compiler / <lang>_compiler_version override keys.
	Templated Kind = iota
	// FixedPackage is mojo, which always resolves to mojo-compiler.
	FixedPackage
)

// The fixed-package case. It is not configurable.
const (
	fixedLanguage = "mojo"
	fixedPackage  = "mojo-compiler"
)

func (k Kind) String() string {
	if k == FixedPackage {
		return "fixed-package"
	}
	return "templated"
}

// Default is a table entry: the compiler name and version for one language
// on one platform family.
type Default struct {
	Name    string
	Version string
}

type key struct {
	language string
	family   platform.Family
}

// Table holds compiler defaults keyed by language and platform family. A
// Table is immutable once built.
type Table struct {
	defaults map[key]Default
}

// Builder assembles a Table.
type Builder struct {
	defaults map[key]Default
}

// NewBuilder returns an empty table builder.
func NewBuilder() *Builder {
	return &Builder{defaults: map[key]Default{}}
}

// Default sets the compiler for language on every given family.
func (b *Builder) Default(language string, d Default, families ...platform.Family) *Builder {
	for _, f := range families {
		b.defaults[key{language, f}] = d
	}
	return b
}

// Build returns the immutable table.
func (b *Builder) Build() *Table {
	return &Table{defaults: maps.Clone(b.defaults)}
}

// DefaultTable returns the built-in compiler defaults.
func DefaultTable() *Table {
	const (
		linux      = platform.FamilyLinux
		osx        = platform.FamilyOsx
		win        = platform.FamilyWin
		emscripten = platform.FamilyEmscripten
	)
	return NewBuilder().
		Default("c", Default{"gcc", "14"}, linux).
		Default("c", Default{"clang", "19"}, osx).
		Default("c", Default{"vs2019", "16"}, win).
		Default("c", Default{"emscripten", "3.1"}, emscripten).
		Default("cxx", Default{"gxx", "14"}, linux).
		Default("cxx", Default{"clangxx", "19"}, osx).
		Default("cxx", Default{"vs2019", "16"}, win).
		Default("cxx", Default{"emscripten", "3.1"}, emscripten).
		Default("fortran", Default{"gfortran", "14"}, linux, osx, win).
		Default("rust", Default{"rust", "1.86"}, linux, osx, win).
		Default("cuda", Default{"cuda", "12.6"}, linux, win).
		Default("go", Default{"go", "1.24"}, linux, osx, win).
		Build()
}

// Kind returns how language is resolved.
func (t *Table) Kind(language string) Kind {
	if language == fixedLanguage {
		return FixedPackage
	}
	return Templated
}

// Package returns the package a fixed-package language resolves to.
func (t *Table) Package(language string) (string, bool) {
	if language == fixedLanguage {
		return fixedPackage, true
	}
	return "", false
}

// Lookup returns the default compiler for language on family.
func (t *Table) Lookup(language string, family platform.Family) (Default, bool) {
	d, ok := t.defaults[key{language, family}]
	return d, ok
}

// NameKey is the override key selecting the compiler name for language.
func NameKey(language string) string { return language + "_compiler" }

// VersionKey is the override key selecting the compiler version for language.
func VersionKey(language string) string { return language + "_compiler_version" }

// Keys returns the override keys that influence language.
func (t *Table) Keys(language string) []string {
	if pkg, ok := t.Package(language); ok {
		return []string{pkg}
	}
	return []string{NameKey(language), VersionKey(language)}
}
