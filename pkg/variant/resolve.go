package variant

import (
	"fmt"

	"github.com/matzehuels/stackbuild/pkg/errors"
	"github.com/matzehuels/stackbuild/pkg/platform"
)

// CompilerVariant is the compiler resolved for one language on one platform.
type CompilerVariant struct {
	Language string            `json:"language" yaml:"language" cbor:"language"`
	Platform platform.Platform `json:"platform" yaml:"platform" cbor:"platform"`
	Kind     Kind              `json:"-" yaml:"-" cbor:"-"`
	Name     string            `json:"name" yaml:"name" cbor:"name"`
	Version  string            `json:"version" yaml:"version" cbor:"version"`
}

// Spec renders the package spec a frontend installs for this compiler:
// "<name>_<platform> <version>.*" for templated compilers and
// "<package> <version>" for fixed packages.
func (v CompilerVariant) Spec() string {
	if v.Kind == FixedPackage {
		return fmt.Sprintf("%s %s", v.Name, v.Version)
	}
	return fmt.Sprintf("%s_%s %s.*", v.Name, v.Platform, v.Version)
}

func (v CompilerVariant) String() string { return v.Spec() }

// ResolveVariant resolves the compiler for language on p. overrides holds one
// value per variant key, as produced by a single matrix combination.
func ResolveVariant(t *Table, language string, p platform.Platform, overrides map[string]string) (CompilerVariant, error) {
	if pkg, ok := t.Package(language); ok {
		version := overrides[pkg]
		if version == "" {
			version = "*"
		}
		return CompilerVariant{Language: language, Platform: p, Kind: FixedPackage, Name: pkg, Version: version}, nil
	}

	d, _ := t.Lookup(language, p.Family())
	name := d.Name
	if o := overrides[NameKey(language)]; o != "" {
		name = o
	}
	version := d.Version
	if o := overrides[VersionKey(language)]; o != "" {
		version = o
	}

	if name == "" || version == "" {
		missing := NameKey(language)
		if name != "" {
			missing = VersionKey(language)
		}
		return CompilerVariant{}, errors.New(errors.ErrCodeVariantResolution,
			"no %s compiler for %s: set %s", language, p, missing).WithVariant(language, string(p))
	}
	return CompilerVariant{Language: language, Platform: p, Kind: Templated, Name: name, Version: version}, nil
}

// ResolveAll resolves every language for one combination, in the order given.
func ResolveAll(t *Table, languages []string, p platform.Platform, combo Combination) ([]CompilerVariant, error) {
	out := make([]CompilerVariant, 0, len(languages))
	for _, lang := range languages {
		v, err := ResolveVariant(t, lang, p, combo)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
