// Package rust implements the cargo build backend.
//
// Packages are built with "cargo install" into the install prefix. Metadata
// the project manifest leaves out is read from Cargo.toml, including values
// inherited from a workspace root, unless ignore-cargo-manifest is set.
package rust

import (
	"github.com/matzehuels/stackbuild/pkg/backend"
	"github.com/matzehuels/stackbuild/pkg/buildinfo"
	"github.com/matzehuels/stackbuild/pkg/config"
	"github.com/matzehuels/stackbuild/pkg/fingerprint"
	"github.com/matzehuels/stackbuild/pkg/manifest"
)

// FieldIgnoreCargoManifest disables reading metadata from Cargo.toml.
const FieldIgnoreCargoManifest = "ignore-cargo-manifest"

// Adapter is the rust backend.
type Adapter struct{}

// New returns the rust backend.
func New() *Adapter { return &Adapter{} }

func (a *Adapter) Info() backend.Info {
	return backend.Info{
		Name:         "stackbuild-rust",
		Version:      buildinfo.Version,
		Capabilities: backend.DefaultCapabilities(),
		Schema: config.CommonFields().With(
			config.Field{Name: config.FieldCompilers, Kind: config.StringList, Policy: config.Overwrite, Default: []string{"rust"}},
			config.Field{Name: FieldIgnoreCargoManifest, Kind: config.Bool, Policy: config.Overwrite},
		),
	}
}

func (a *Adapter) DefaultInputGlobs(*config.Resolved) fingerprint.GlobSet {
	return fingerprint.GlobSet{
		Defaults: []string{"**/*.rs", "Cargo.toml", "Cargo.lock", "build.rs"},
	}
}

func (a *Adapter) ExtractMetadata(m *manifest.Manifest, cfg *config.Resolved) (*backend.PackageMetadata, error) {
	md := backend.FromManifest(m, cfg)
	if !cfg.Bool(FieldIgnoreCargoManifest) {
		native, err := readCargo(m.Dir)
		if err != nil {
			return nil, err
		}
		if native != nil {
			md.Fill(*native)
		}
	}
	if err := md.Validate(); err != nil {
		return nil, err
	}
	return md, nil
}

func (a *Adapter) BuildScript(in backend.BuildInput) ([]backend.Command, error) {
	extra := map[string]string{}
	if in.Metadata != nil {
		if _, ok := in.Metadata.Dependencies.Host["openssl"]; ok {
			extra["OPENSSL_DIR"] = in.Prefix.Host
		}
		if _, ok := in.Metadata.Dependencies.Build["sccache"]; ok {
			extra["RUSTC_WRAPPER"] = "sccache"
		}
	}

	args := []string{"install", "--locked", "--root", in.Prefix.Install, "--path", ".", "--no-track"}
	args = append(args, in.Config.StringList(config.FieldExtraArgs)...)

	return []backend.Command{{
		Name: "cargo",
		Args: args,
		Env:  backend.Env(in, extra),
		Dir:  in.WorkDir,
		Path: in.SearchPath(),
	}}, nil
}
