// Package python implements the pip build backend.
//
// Packages are installed with pip, or with uv when uv is among the host
// dependencies. Packages are noarch unless the noarch field says otherwise.
package python

import (
	"github.com/matzehuels/stackbuild/pkg/backend"
	"github.com/matzehuels/stackbuild/pkg/buildinfo"
	"github.com/matzehuels/stackbuild/pkg/config"
	"github.com/matzehuels/stackbuild/pkg/fingerprint"
	"github.com/matzehuels/stackbuild/pkg/manifest"
)

// FieldNoArch selects a noarch (pure python) package.
const FieldNoArch = "noarch"

// Adapter is the python backend.
type Adapter struct{}

// New returns the python backend.
func New() *Adapter { return &Adapter{} }

func (a *Adapter) Info() backend.Info {
	caps := backend.DefaultCapabilities()
	caps.Editable = true
	return backend.Info{
		Name:         "stackbuild-python",
		Version:      buildinfo.Version,
		Capabilities: caps,
		Schema: config.CommonFields().With(
			config.Field{Name: FieldNoArch, Kind: config.Bool, Policy: config.Overwrite, Default: true},
		),
	}
}

func (a *Adapter) DefaultInputGlobs(*config.Resolved) fingerprint.GlobSet {
	return fingerprint.GlobSet{
		Defaults: []string{"**/*.py", "**/*.pyx", "pyproject.toml", "setup.py", "setup.cfg"},
	}
}

func (a *Adapter) ExtractMetadata(m *manifest.Manifest, cfg *config.Resolved) (*backend.PackageMetadata, error) {
	md := backend.FromManifest(m, cfg)
	native, err := readPyproject(m.Dir)
	if err != nil {
		return nil, err
	}
	if native != nil {
		md.Fill(*native)
	}
	md.NoArch = cfg.Bool(FieldNoArch)
	if err := md.Validate(); err != nil {
		return nil, err
	}
	return md, nil
}

// installer returns the command prefix that installs into prefix. The
// interpreter is found on the host prefix's search path.
func installer(md *backend.PackageMetadata, prefix string) (string, []string) {
	if md != nil {
		if _, ok := md.Dependencies.Host["uv"]; ok {
			return "uv", []string{"pip", "install", "--prefix", prefix, "--no-deps", "--no-build-isolation", "-vv"}
		}
	}
	return "python", []string{"-m", "pip", "install", "--prefix", prefix, "--ignore-installed", "--no-deps", "--no-build-isolation", "-vv"}
}

func (a *Adapter) BuildScript(in backend.BuildInput) ([]backend.Command, error) {
	name, args := installer(in.Metadata, in.Prefix.Install)
	args = append(args, in.Config.StringList(config.FieldExtraArgs)...)
	if in.Editable {
		args = append(args, "-e")
	}
	args = append(args, ".")

	env := backend.Env(in, map[string]string{"PREFIX": in.Prefix.Install})
	if name == "uv" && in.Prefix.Host != "" {
		env["UV_PYTHON"] = in.Prefix.Host
	}
	return []backend.Command{{Name: name, Args: args, Env: env, Dir: in.WorkDir, Path: in.SearchPath()}}, nil
}
