package rust

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/stackbuild/pkg/backend"
	"github.com/matzehuels/stackbuild/pkg/errors"
)

type cargoFile struct {
	Package   map[string]any `toml:"package"`
	Workspace struct {
		Package map[string]any `toml:"package"`
	} `toml:"workspace"`
}

var inheritable = []string{"version", "description", "license", "homepage", "repository"}

// readCargo reads package metadata from dir/Cargo.toml. A missing Cargo.toml
// is not an error.
func readCargo(dir string) (*backend.PackageMetadata, error) {
	path := filepath.Join(dir, "Cargo.toml")
	cargo, err := parseCargo(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeMetadata, err, "parsing Cargo.toml").WithPath(path)
	}
	if cargo.Package == nil {
		return nil, nil
	}

	fields := map[string]string{}
	if name, ok := cargo.Package["name"].(string); ok {
		if err := errors.ValidateCratesPackageName(name); err != nil {
			return nil, errors.Wrap(errors.ErrCodeMetadata, err, "Cargo.toml").WithPath(path).WithField("name")
		}
		fields["name"] = name
	}

	var workspace map[string]any
	for _, key := range inheritable {
		switch v := cargo.Package[key].(type) {
		case string:
			fields[key] = v
		case map[string]any:
			if inherit, _ := v["workspace"].(bool); !inherit {
				continue
			}
			if workspace == nil {
				workspace, err = findWorkspace(dir, cargo)
				if err != nil {
					return nil, err
				}
			}
			s, ok := workspace[key].(string)
			if !ok {
				return nil, errors.New(errors.ErrCodeMetadata, "missing inherited value %q from workspace", key).WithPath(path).WithField(key)
			}
			fields[key] = s
		}
	}

	return &backend.PackageMetadata{
		Name:        fields["name"],
		Version:     fields["version"],
		Description: fields["description"],
		License:     fields["license"],
		Homepage:    fields["homepage"],
		Repository:  fields["repository"],
	}, nil
}

// findWorkspace returns the [workspace.package] table of the nearest
// Cargo.toml declaring a workspace, starting with the crate's own.
func findWorkspace(dir string, own *cargoFile) (map[string]any, error) {
	if own.Workspace.Package != nil {
		return own.Workspace.Package, nil
	}
	for d := filepath.Dir(dir); ; d = filepath.Dir(d) {
		path := filepath.Join(d, "Cargo.toml")
		c, err := parseCargo(path)
		if err == nil && c.Workspace.Package != nil {
			return c.Workspace.Package, nil
		}
		if err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeMetadata, err, "parsing workspace manifest").WithPath(path)
		}
		if filepath.Dir(d) == d {
			break
		}
	}
	return map[string]any{}, nil
}

func parseCargo(path string) (*cargoFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cargo cargoFile
	if err := toml.Unmarshal(data, &cargo); err != nil {
		return nil, err
	}
	return &cargo, nil
}
