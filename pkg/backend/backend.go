// Package backend defines the contract between the shared protocol core and a
// language-specific build backend.
//
// Each backend binary binds exactly one [Adapter] at process start; there is
// no runtime registry. The core does everything that is common to all
// languages (manifest loading, configuration resolution, compiler variants,
// fingerprinting, process execution) and asks the adapter only for the parts
// that differ:
//
//   - which files are build inputs ([Adapter.DefaultInputGlobs])
//   - what package the project produces ([Adapter.ExtractMetadata])
//   - which commands build it ([Adapter.BuildScript])
//
// BuildScript is pure construction. Adapters never start processes; the
// executor runs the returned commands.
package backend

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/matzehuels/stackbuild/pkg/config"
	"github.com/matzehuels/stackbuild/pkg/fingerprint"
	"github.com/matzehuels/stackbuild/pkg/manifest"
	"github.com/matzehuels/stackbuild/pkg/variant"
)

// Adapter is the capability set a language backend supplies.
type Adapter interface {
	// Info describes the backend.
	Info() Info

	// DefaultInputGlobs returns the input patterns for a build. The
	// extra-input-globs field is folded in by the core.
	DefaultInputGlobs(cfg *config.Resolved) fingerprint.GlobSet

	// ExtractMetadata returns the package the project produces. Fields the
	// project manifest leaves empty may be read from the language's native
	// manifest in m.Dir.
	ExtractMetadata(m *manifest.Manifest, cfg *config.Resolved) (*PackageMetadata, error)

	// BuildScript returns the commands that build and install the package.
	BuildScript(in BuildInput) ([]Command, error)
}

// Info describes a backend.
type Info struct {
	Name         string
	Version      string
	Capabilities Capabilities
	Schema       config.Schema
}

// Capabilities are advertised to the frontend during initialize.
type Capabilities struct {
	ProvidesMetadata bool `json:"provides_metadata" cbor:"provides_metadata"`
	ProvidesBuild    bool `json:"provides_build" cbor:"provides_build"`
	Editable         bool `json:"editable" cbor:"editable"`
	Variants         bool `json:"variants" cbor:"variants"`
	Cancel           bool `json:"cancel" cbor:"cancel"`
}

// Intersect returns the capabilities both c and o advertise.
func (c Capabilities) Intersect(o Capabilities) Capabilities {
	return Capabilities{
		ProvidesMetadata: c.ProvidesMetadata && o.ProvidesMetadata,
		ProvidesBuild:    c.ProvidesBuild && o.ProvidesBuild,
		Editable:         c.Editable && o.Editable,
		Variants:         c.Variants && o.Variants,
		Cancel:           c.Cancel && o.Cancel,
	}
}

// DefaultCapabilities are shared by every adapter; adapters switch on what
// they add.
func DefaultCapabilities() Capabilities {
	return Capabilities{ProvidesMetadata: true, ProvidesBuild: true, Variants: true, Cancel: true}
}

// Prefix holds the environment prefixes a build script works against.
type Prefix struct {
	Host    string `json:"host" cbor:"host"`       // host dependencies (link against)
	Build   string `json:"build" cbor:"build"`     // build tools (run)
	Install string `json:"install" cbor:"install"` // installation target
}

// BuildInput is everything an adapter needs to construct a build script.
type BuildInput struct {
	WorkDir  string
	Config   *config.Resolved
	Metadata *PackageMetadata
	Variants []variant.CompilerVariant
	Prefix   Prefix
	Editable bool
}

// Command is one external process invocation.
type Command struct {
	Name string
	Args []string
	Env  map[string]string
	Dir  string

	// Path lists directories searched for executables before the inherited
	// PATH.
	Path []string

	// Creates lists directories that must exist before the command runs.
	Creates []string
}

// String renders c as a shell-like line for logs and debug artifacts.
func (c Command) String() string {
	var b strings.Builder
	if len(c.Path) > 0 {
		fmt.Fprintf(&b, "PATH=%s ", quote(strings.Join(append(slices.Clone(c.Path), "$PATH"), string(filepath.ListSeparator))))
	}
	for _, k := range slices.Sorted(maps.Keys(c.Env)) {
		fmt.Fprintf(&b, "%s=%s ", k, quote(c.Env[k]))
	}
	b.WriteString(quote(c.Name))
	for _, a := range c.Args {
		b.WriteByte(' ')
		b.WriteString(quote(a))
	}
	return b.String()
}

func quote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n\"'$\\") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// PackageMetadata describes the package a project produces.
type PackageMetadata struct {
	Name         string                `json:"name" yaml:"name" cbor:"name"`
	Version      string                `json:"version" yaml:"version" cbor:"version"`
	Description  string                `json:"description,omitempty" yaml:"description,omitempty" cbor:"description,omitempty"`
	License      string                `json:"license,omitempty" yaml:"license,omitempty" cbor:"license,omitempty"`
	Homepage     string                `json:"homepage,omitempty" yaml:"homepage,omitempty" cbor:"homepage,omitempty"`
	Repository   string                `json:"repository,omitempty" yaml:"repository,omitempty" cbor:"repository,omitempty"`
	NoArch       bool                  `json:"noarch,omitempty" yaml:"noarch,omitempty" cbor:"noarch,omitempty"`
	Dependencies manifest.Dependencies `json:"dependencies" yaml:"dependencies" cbor:"dependencies"`
	Variants     []variant.Set         `json:"variants,omitempty" yaml:"variants,omitempty" cbor:"variants,omitempty"`
}
