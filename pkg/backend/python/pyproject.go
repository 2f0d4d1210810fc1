package python

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/stackbuild/pkg/backend"
	"github.com/matzehuels/stackbuild/pkg/errors"
)

type pyprojectFile struct {
	Project struct {
		Name        string            `toml:"name"`
		Version     string            `toml:"version"`
		Description string            `toml:"description"`
		License     any               `toml:"license"`
		URLs        map[string]string `toml:"urls"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Name        string `toml:"name"`
			Version     string `toml:"version"`
			Description string `toml:"description"`
			License     string `toml:"license"`
			Homepage    string `toml:"homepage"`
			Repository  string `toml:"repository"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

// readPyproject reads package metadata from dir/pyproject.toml, preferring
// the PEP 621 [project] table over [tool.poetry]. A missing file is not an
// error.
func readPyproject(dir string) (*backend.PackageMetadata, error) {
	path := filepath.Join(dir, "pyproject.toml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeMetadata, err, "reading pyproject.toml").WithPath(path)
	}
	var py pyprojectFile
	if err := toml.Unmarshal(data, &py); err != nil {
		return nil, errors.Wrap(errors.ErrCodeMetadata, err, "parsing pyproject.toml").WithPath(path)
	}

	p, poetry := py.Project, py.Tool.Poetry
	md := &backend.PackageMetadata{
		Name:        p.Name,
		Version:     p.Version,
		Description: p.Description,
		License:     license(p.License),
		Homepage:    url(p.URLs, "homepage"),
		Repository:  url(p.URLs, "repository", "source"),
	}
	md.Fill(backend.PackageMetadata{
		Name:        poetry.Name,
		Version:     poetry.Version,
		Description: poetry.Description,
		License:     poetry.License,
		Homepage:    poetry.Homepage,
		Repository:  poetry.Repository,
	})
	if md.Name != "" {
		if err := errors.ValidatePythonPackageName(md.Name); err != nil {
			return nil, errors.Wrap(errors.ErrCodeMetadata, err, "pyproject.toml").WithPath(path)
		}
		// Conda names use dashes where PyPI allows underscores and dots.
		md.Name = strings.NewReplacer("_", "-", ".", "-").Replace(strings.ToLower(md.Name))
	}
	return md, nil
}

// license handles both the PEP 639 string form and the legacy
// {text = "..."} / {file = "..."} table.
func license(v any) string {
	switch l := v.(type) {
	case string:
		return l
	case map[string]any:
		if s, ok := l["text"].(string); ok {
			return s
		}
	}
	return ""
}

func url(urls map[string]string, keys ...string) string {
	for k, v := range urls {
		for _, want := range keys {
			if strings.EqualFold(k, want) {
				return v
			}
		}
	}
	return ""
}
