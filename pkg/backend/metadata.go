package backend

import (
	"maps"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/matzehuels/stackbuild/pkg/config"
	"github.com/matzehuels/stackbuild/pkg/errors"
	"github.com/matzehuels/stackbuild/pkg/manifest"
	"github.com/matzehuels/stackbuild/pkg/variant"
)

// FromManifest seeds metadata with what the project manifest declares.
func FromManifest(m *manifest.Manifest, cfg *config.Resolved) *PackageMetadata {
	return &PackageMetadata{
		Name:         m.Package.Name,
		Version:      m.Package.Version,
		Description:  m.Package.Description,
		License:      m.Package.License,
		Homepage:     m.Package.Homepage,
		Repository:   m.Package.Repository,
		Dependencies: m.Dependencies(cfg.Platform),
	}
}

// Fill copies fields from native into md where md leaves them empty. The
// project manifest always wins over the language's native manifest.
func (md *PackageMetadata) Fill(native PackageMetadata) {
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&md.Name, native.Name)
	fill(&md.Version, native.Version)
	fill(&md.Description, native.Description)
	fill(&md.License, native.License)
	fill(&md.Homepage, native.Homepage)
	fill(&md.Repository, native.Repository)
}

// Validate checks that md names a buildable package. Conda package names are
// lowercase, so names are normalized before checking.
func (md *PackageMetadata) Validate() error {
	if md.Name == "" {
		return errors.New(errors.ErrCodeMetadata, "package name is not set")
	}
	md.Name = strings.ToLower(md.Name)
	if err := errors.ValidateCondaPackageName(md.Name); err != nil {
		return errors.Wrap(errors.ErrCodeMetadata, err, "invalid package name %q", md.Name)
	}
	if md.Version == "" {
		return errors.New(errors.ErrCodeMetadata, "package %s has no version", md.Name)
	}
	return nil
}

// Languages returns the compiler languages a build needs, as configured.
func Languages(cfg *config.Resolved) []string {
	return cfg.StringList(config.FieldCompilers)
}

// Globs returns the adapter's default globs combined with the configured
// extra-input-globs.
func Globs(a Adapter, cfg *config.Resolved) []string {
	set := a.DefaultInputGlobs(cfg)
	set.Extras = append(set.Extras, cfg.StringList(config.FieldExtraInputGlobs)...)
	return set.Patterns()
}

// Env returns the environment for build commands. Configured env entries win
// over extra, and extra wins over the variables derived from the compiler
// variants.
func Env(in BuildInput, extra map[string]string) map[string]string {
	env := CompilerEnv(in.Variants)
	maps.Copy(env, extra)
	if in.Config != nil {
		maps.Copy(env, in.Config.StringMap(config.FieldEnv))
	}
	return env
}

// CompilerEnv maps resolved compilers to the variables build tools read.
func CompilerEnv(vs []variant.CompilerVariant) map[string]string {
	env := map[string]string{}
	for _, v := range vs {
		if v.Kind == variant.FixedPackage {
			continue
		}
		switch v.Language {
		case "c":
			env["CC"] = executable(v.Name, false)
		case "cxx":
			env["CXX"] = executable(v.Name, true)
		case "fortran":
			env["FC"] = v.Name
		case "rust":
			env["RUSTUP_TOOLCHAIN"] = v.Version
		}
	}
	return env
}

// executable is the driver a compiler package puts on PATH.
func executable(name string, cxx bool) string {
	switch name {
	case "gxx":
		return "g++"
	case "clangxx":
		return "clang++"
	case "vs2019", "vs2022":
		return "cl"
	case "emscripten":
		if cxx {
			return "em++"
		}
		return "emcc"
	}
	return name
}

// SearchPath returns the executable directories of the build and host
// prefixes, build first. Windows prefixes use the conda layout.
func (in BuildInput) SearchPath() []string {
	var dirs []string
	for _, prefix := range []string{in.Prefix.Build, in.Prefix.Host} {
		if prefix == "" {
			continue
		}
		for _, d := range binDirs(prefix) {
			if !slices.Contains(dirs, d) {
				dirs = append(dirs, d)
			}
		}
	}
	return dirs
}

func binDirs(prefix string) []string {
	if runtime.GOOS == "windows" {
		return []string{prefix, filepath.Join(prefix, "Library", "bin"), filepath.Join(prefix, "Scripts")}
	}
	return []string{filepath.Join(prefix, "bin")}
}
