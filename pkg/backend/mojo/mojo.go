// Package mojo implements the Mojo build backend.
//
// A project builds any number of binaries (the bins field) and at most one
// Mojo package (the pkg field). When neither is declared the targets are
// derived from the project layout:
//
//   - main.mojo or main.🔥 at the project root builds a binary named after
//     the package;
//   - otherwise <name>/__init__.mojo (or __init__.🔥) builds a package.
//
// A project with both layouts gets the binary; the package must then be
// declared explicitly.
package mojo

import (
	"os"
	"path"
	"path/filepath"

	"github.com/matzehuels/stackbuild/pkg/backend"
	"github.com/matzehuels/stackbuild/pkg/buildinfo"
	"github.com/matzehuels/stackbuild/pkg/config"
	"github.com/matzehuels/stackbuild/pkg/errors"
	"github.com/matzehuels/stackbuild/pkg/fingerprint"
	"github.com/matzehuels/stackbuild/pkg/manifest"
)

// Configuration fields.
const (
	FieldBins = "bins"
	FieldPkg  = "pkg"
)

var extensions = []string{".mojo", ".🔥"}

// Adapter is the Mojo backend.
type Adapter struct{}

// New returns the Mojo backend.
func New() *Adapter { return &Adapter{} }

func (a *Adapter) Info() backend.Info {
	return backend.Info{
		Name:         "stackbuild-mojo",
		Version:      buildinfo.Version,
		Capabilities: backend.DefaultCapabilities(),
		Schema: config.CommonFields().With(
			config.Field{Name: config.FieldCompilers, Kind: config.StringList, Policy: config.Overwrite, Default: []string{"mojo"}},
			config.Field{Name: FieldBins, Kind: config.StructList, Policy: config.Overwrite},
			config.Field{Name: FieldPkg, Kind: config.Struct, Policy: config.Merge},
		),
	}
}

func (a *Adapter) DefaultInputGlobs(*config.Resolved) fingerprint.GlobSet {
	return fingerprint.GlobSet{Defaults: []string{"**/*.mojo", "**/*.🔥"}}
}

func (a *Adapter) ExtractMetadata(m *manifest.Manifest, cfg *config.Resolved) (*backend.PackageMetadata, error) {
	md := backend.FromManifest(m, cfg)
	if err := md.Validate(); err != nil {
		return nil, err
	}
	return md, nil
}

// target is one binary or package to build.
type target struct {
	name      string
	path      string
	extraArgs []string
}

func (a *Adapter) BuildScript(in backend.BuildInput) ([]backend.Command, error) {
	if in.Metadata == nil {
		return nil, errors.New(errors.ErrCodeInternal, "mojo build requires package metadata")
	}
	bins, pkg, err := targets(in.WorkDir, in.Config, in.Metadata.Name)
	if err != nil {
		return nil, err
	}

	env := backend.Env(in, nil)
	path := in.SearchPath()
	extra := in.Config.StringList(config.FieldExtraArgs)
	binDir := filepath.Join(in.Prefix.Install, "bin")
	pkgDir := filepath.Join(in.Prefix.Install, "lib", "mojo")

	var cmds []backend.Command
	for _, b := range bins {
		args := []string{"build", b.path, "-o", filepath.Join(binDir, b.name)}
		args = append(args, b.extraArgs...)
		args = append(args, extra...)
		cmds = append(cmds, backend.Command{Name: "mojo", Args: args, Env: env, Dir: in.WorkDir, Path: path, Creates: []string{binDir}})
	}
	if pkg != nil {
		args := []string{"package", pkg.path, "-o", filepath.Join(pkgDir, pkg.name+".mojopkg")}
		args = append(args, pkg.extraArgs...)
		args = append(args, extra...)
		cmds = append(cmds, backend.Command{Name: "mojo", Args: args, Env: env, Dir: in.WorkDir, Path: path, Creates: []string{pkgDir}})
	}
	return cmds, nil
}

// targets returns the declared targets, or derives them from the layout
// when neither bins nor pkg is declared.
func targets(dir string, cfg *config.Resolved, name string) ([]target, *target, error) {
	if !cfg.IsSet(FieldBins) && !cfg.IsSet(FieldPkg) {
		return derive(dir, name)
	}

	var bins []target
	for i, raw := range cfg.StructList(FieldBins) {
		t, err := parseTarget(raw, name, "")
		if err != nil {
			return nil, nil, errors.Wrap(errors.ErrCodeConfig, err, "bins[%d]", i).WithField(FieldBins)
		}
		bins = append(bins, t)
	}

	var pkg *target
	if cfg.IsSet(FieldPkg) {
		t, err := parseTarget(cfg.Struct(FieldPkg), name, name)
		if err != nil {
			return nil, nil, errors.Wrap(errors.ErrCodeConfig, err, "pkg").WithField(FieldPkg)
		}
		pkg = &t
	}
	return bins, pkg, nil
}

func derive(dir, name string) ([]target, *target, error) {
	for _, ext := range extensions {
		if exists(filepath.Join(dir, "main"+ext)) {
			return []target{{name: name, path: "main" + ext}}, nil, nil
		}
	}
	for _, ext := range extensions {
		if exists(filepath.Join(dir, name, "__init__"+ext)) {
			return nil, &target{name: name, path: name}, nil
		}
	}
	return nil, nil, errors.New(errors.ErrCodeConfig,
		"nothing to build: add main.mojo, %s/__init__.mojo, or declare bins or pkg", name).WithField(FieldBins)
}

func parseTarget(raw map[string]any, defaultName, defaultPath string) (target, error) {
	t := target{name: defaultName, path: defaultPath}
	if s, ok := raw["name"].(string); ok && s != "" {
		t.name = s
	}
	if s, ok := raw["path"].(string); ok && s != "" {
		t.path = path.Clean(s)
	}
	if t.path == "" {
		return t, errors.New(errors.ErrCodeConfig, "target %q has no path", t.name)
	}
	if err := errors.ValidatePath(t.path); err != nil {
		return t, err
	}
	switch v := raw["extra-args"].(type) {
	case nil:
	case []any:
		for _, a := range v {
			s, ok := a.(string)
			if !ok {
				return t, errors.New(errors.ErrCodeConfig, "extra-args of %q must be strings", t.name)
			}
			t.extraArgs = append(t.extraArgs, s)
		}
	case []string:
		t.extraArgs = append(t.extraArgs, v...)
	default:
		return t, errors.New(errors.ErrCodeConfig, "extra-args of %q must be a list", t.name)
	}
	return t, nil
}

func exists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}
