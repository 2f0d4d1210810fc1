// Package manifest loads the project manifest a frontend points a backend at.
//
// Manifests may be written in TOML, YAML or JSON with comments; the format is
// chosen by file extension. All three share one layout:
//
//	[package]
//	name = "demo"
//	version = "0.1.0"
//
//	[package.build]
//	backend = "stackbuild-rust"
//
//	[package.build.config]
//	extra-args = ["--release"]
//
//	[package.build.target.linux-64.config]
//	extra-args = ["--release", "--locked"]
//
//	[package.build.variants]
//	c_compiler = ["clang"]
//
//	[package.run-dependencies]
//	openssl = "*"
//
//	[package.target.linux.host-dependencies]
//	libfoo = ">=1"
//
// Manifests are parsed fresh on every request and never cached.
package manifest

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/matzehuels/stackbuild/pkg/config"
	"github.com/matzehuels/stackbuild/pkg/errors"
	"github.com/matzehuels/stackbuild/pkg/platform"
)

// DefaultNames are tried, in order, when Load is given a directory.
var DefaultNames = []string{"stackbuild.toml", "stackbuild.yaml", "stackbuild.yml", "stackbuild.jsonc", "stackbuild.json"}

// Package is the package identity declared by the manifest. Fields left
// empty may be filled by a backend from its native manifest.
type Package struct {
	Name        string
	Version     string
	Description string
	License     string
	Homepage    string
	Repository  string
}

// Dependencies maps package names to version specs per dependency kind.
type Dependencies struct {
	Build map[string]string `json:"build,omitempty" yaml:"build,omitempty" cbor:"build,omitempty"`
	Host  map[string]string `json:"host,omitempty" yaml:"host,omitempty" cbor:"host,omitempty"`
	Run   map[string]string `json:"run,omitempty" yaml:"run,omitempty" cbor:"run,omitempty"`
}

// Merge returns d with the entries of o added or replaced.
func (d Dependencies) Merge(o Dependencies) Dependencies {
	merge := func(a, b map[string]string) map[string]string {
		if len(a) == 0 && len(b) == 0 {
			return nil
		}
		out := maps.Clone(a)
		if out == nil {
			out = map[string]string{}
		}
		maps.Copy(out, b)
		return out
	}
	return Dependencies{
		Build: merge(d.Build, o.Build),
		Host:  merge(d.Host, o.Host),
		Run:   merge(d.Run, o.Run),
	}
}

type targetDependencies struct {
	selector platform.Selector
	deps     Dependencies
}

// Manifest is a parsed project manifest.
type Manifest struct {
	Path    string // absolute manifest path
	Dir     string // project root, the manifest's directory
	Format  string // toml, yaml or jsonc
	Package Package
	Backend string

	// Config is the backend configuration with its target overrides,
	// sorted by descending selector specificity.
	Config config.BuildConfiguration

	// Variants maps variant keys (e.g. c_compiler) to the values the
	// user wants built.
	Variants map[string][]string

	deps       Dependencies
	targetDeps []targetDependencies
}

// Dependencies returns the dependencies that apply to platform p: the
// unscoped ones plus those of every matching target, most specific last.
func (m *Manifest) Dependencies(p platform.Platform) Dependencies {
	out := m.deps.Merge(Dependencies{})
	for i := len(m.targetDeps) - 1; i >= 0; i-- {
		t := m.targetDeps[i]
		if t.selector.Matches(p) {
			out = out.Merge(t.deps)
		}
	}
	return out
}

// Load reads and parses the manifest at path. If path is a directory, the
// first of DefaultNames present in it is used.
func Load(path string) (*Manifest, error) {
	if err := errors.ValidateManifestPath(path); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfig, err, "resolving manifest path").WithPath(path)
	}
	if fi, err := os.Stat(abs); err == nil && fi.IsDir() {
		abs, err = find(abs)
		if err != nil {
			return nil, err
		}
	}

	dec := decoderFor(abs)
	if dec == nil {
		return nil, errors.New(errors.ErrCodeConfig, "unsupported manifest format: %s", filepath.Base(abs)).WithPath(abs)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfig, err, "reading manifest").WithPath(abs)
	}
	doc, err := dec.Decode(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfig, err, "parsing %s manifest", dec.Type()).WithPath(abs)
	}

	m, err := fromDocument(doc)
	if err != nil {
		return nil, err
	}
	m.Path = abs
	m.Dir = filepath.Dir(abs)
	m.Format = dec.Type()
	return m, nil
}

func find(dir string) (string, error) {
	for _, name := range DefaultNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", errors.New(errors.ErrCodeConfig, "no manifest found in %s", dir).WithPath(dir)
}

func fromDocument(doc map[string]any) (*Manifest, error) {
	pkg, ok := table(doc, "package")
	if !ok {
		return nil, errors.New(errors.ErrCodeConfig, "manifest has no [package] table")
	}

	m := &Manifest{
		Package: Package{
			Name:        str(pkg, "name"),
			Version:     str(pkg, "version"),
			Description: str(pkg, "description"),
			License:     str(pkg, "license"),
			Homepage:    str(pkg, "homepage"),
			Repository:  str(pkg, "repository"),
		},
	}

	if build, ok := table(pkg, "build"); ok {
		m.Backend = str(build, "backend")

		if base, ok := table(build, "config"); ok {
			m.Config.Base = config.Values(base)
		}

		targets, _ := table(build, "target")
		for _, key := range slices.Sorted(maps.Keys(targets)) {
			sel, err := platform.ParseSelector(key)
			if err != nil {
				return nil, err
			}
			t, ok := targets[key].(map[string]any)
			if !ok {
				return nil, errors.New(errors.ErrCodeConfig, "target %q must be a table", key).WithSelector(key)
			}
			if cfg, ok := table(t, "config"); ok {
				m.Config.Overrides = append(m.Config.Overrides, config.Override{Selector: sel, Values: config.Values(cfg)})
			}
		}
		slices.SortStableFunc(m.Config.Overrides, func(a, b config.Override) int {
			return platform.Compare(a.Selector, b.Selector)
		})

		variants, err := parseVariants(build)
		if err != nil {
			return nil, err
		}
		m.Variants = variants
	}

	m.deps = parseDependencies(pkg)
	targets, _ := table(pkg, "target")
	for _, key := range slices.Sorted(maps.Keys(targets)) {
		sel, err := platform.ParseSelector(key)
		if err != nil {
			return nil, err
		}
		t, ok := targets[key].(map[string]any)
		if !ok {
			return nil, errors.New(errors.ErrCodeConfig, "target %q must be a table", key).WithSelector(key)
		}
		m.targetDeps = append(m.targetDeps, targetDependencies{selector: sel, deps: parseDependencies(t)})
	}
	slices.SortStableFunc(m.targetDeps, func(a, b targetDependencies) int {
		return platform.Compare(a.selector, b.selector)
	})

	return m, nil
}

func parseVariants(build map[string]any) (map[string][]string, error) {
	raw, ok := table(build, "variants")
	if !ok {
		return nil, nil
	}
	out := make(map[string][]string, len(raw))
	for k, v := range raw {
		switch x := v.(type) {
		case string:
			out[k] = []string{x}
		case []any:
			vals := make([]string, 0, len(x))
			for _, e := range x {
				vals = append(vals, fmt.Sprint(e))
			}
			out[k] = vals
		default:
			return nil, errors.New(errors.ErrCodeConfig, "variant %q must be a string or a list of strings", k)
		}
	}
	return out, nil
}

func parseDependencies(t map[string]any) Dependencies {
	return Dependencies{
		Build: specs(t, "build-dependencies"),
		Host:  specs(t, "host-dependencies"),
		Run:   specs(t, "run-dependencies"),
	}
}

// specs reads a dependency table. Values are either a version spec string or
// a table with a "version" key; anything else means any version.
func specs(t map[string]any, key string) map[string]string {
	raw, ok := table(t, key)
	if !ok || len(raw) == 0 {
		return nil
	}
	out := make(map[string]string, len(raw))
	for name, v := range raw {
		spec := "*"
		switch x := v.(type) {
		case string:
			spec = x
		case map[string]any:
			if s := str(x, "version"); s != "" {
				spec = s
			}
		}
		out[name] = spec
	}
	return out
}

func table(t map[string]any, key string) (map[string]any, bool) {
	v, ok := t[key].(map[string]any)
	return v, ok
}

func str(t map[string]any, key string) string {
	switch v := t[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
