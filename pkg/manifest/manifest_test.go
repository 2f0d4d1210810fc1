package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/stackbuild/pkg/config"
	"github.com/matzehuels/stackbuild/pkg/errors"
	"github.com/matzehuels/stackbuild/pkg/platform"
)

const tomlManifest = `
[package]
name = "demo"
version = "0.1.0"
license = "MIT"

[package.build]
backend = "stackbuild-rust"

[package.build.config]
extra-args = ["--release"]
env = { RUST_LOG = "info" }

[package.build.target.linux-64.config]
extra-args = ["--release", "--locked"]

[package.build.target.unix.config]
env = { UNIX = "1" }

[package.build.variants]
c_compiler = ["clang", "gcc"]
rust_compiler_version = "1.85"

[package.run-dependencies]
openssl = "*"

[package.target.linux.host-dependencies]
libfoo = ">=1"

[package.target.linux-64.host-dependencies]
libfoo = ">=2"
`

const yamlManifest = `
package:
  name: demo
  version: 0.1.0
  build:
    backend: stackbuild-rust
    config:
      extra-args: ["--release"]
      env:
        RUST_LOG: info
    target:
      linux-64:
        config:
          extra-args: ["--release", "--locked"]
      unix:
        config:
          env:
            UNIX: "1"
    variants:
      c_compiler: [clang, gcc]
      rust_compiler_version: "1.85"
  run-dependencies:
    openssl: "*"
  target:
    linux:
      host-dependencies:
        libfoo: ">=1"
    linux-64:
      host-dependencies:
        libfoo: ">=2"
`

const jsoncManifest = `{
  // JSON with comments and trailing commas
  "package": {
    "name": "demo",
    "version": "0.1.0",
    "build": {
      "backend": "stackbuild-rust",
      "config": {"extra-args": ["--release"], "env": {"RUST_LOG": "info"}},
      "target": {
        "linux-64": {"config": {"extra-args": ["--release", "--locked"]}},
        "unix": {"config": {"env": {"UNIX": "1"}}},
      },
      "variants": {"c_compiler": ["clang", "gcc"], "rust_compiler_version": "1.85"},
    },
    "run-dependencies": {"openssl": "*"},
    "target": {
      "linux": {"host-dependencies": {"libfoo": ">=1"}},
      "linux-64": {"host-dependencies": {"libfoo": ">=2"}},
    },
  },
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadFormats(t *testing.T) {
	tests := []struct {
		file    string
		content string
		format  string
	}{
		{"stackbuild.toml", tomlManifest, "toml"},
		{"stackbuild.yaml", yamlManifest, "yaml"},
		{"stackbuild.jsonc", jsoncManifest, "jsonc"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			dir := t.TempDir()
			path := writeFile(t, dir, tt.file, tt.content)

			m, err := Load(path)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if m.Format != tt.format {
				t.Errorf("Format = %q, want %q", m.Format, tt.format)
			}
			if m.Dir != dir {
				t.Errorf("Dir = %q, want %q", m.Dir, dir)
			}
			if m.Package.Name != "demo" || m.Package.Version != "0.1.0" {
				t.Errorf("Package = %+v", m.Package)
			}
			if m.Backend != "stackbuild-rust" {
				t.Errorf("Backend = %q", m.Backend)
			}

			wantSels := []platform.Selector{"linux-64", "unix"}
			var gotSels []platform.Selector
			for _, o := range m.Config.Overrides {
				gotSels = append(gotSels, o.Selector)
			}
			if diff := cmp.Diff(wantSels, gotSels); diff != "" {
				t.Errorf("override selectors (-want +got):\n%s", diff)
			}

			wantVariants := map[string][]string{
				"c_compiler":            {"clang", "gcc"},
				"rust_compiler_version": {"1.85"},
			}
			if diff := cmp.Diff(wantVariants, m.Variants); diff != "" {
				t.Errorf("Variants (-want +got):\n%s", diff)
			}

			r, err := config.Resolve(config.CommonFields(), m.Config, platform.Linux64)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if diff := cmp.Diff([]string{"--release", "--locked"}, r.StringList(config.FieldExtraArgs)); diff != "" {
				t.Errorf("extra-args (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(map[string]string{"RUST_LOG": "info", "UNIX": "1"}, r.StringMap(config.FieldEnv)); diff != "" {
				t.Errorf("env (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDependencies(t *testing.T) {
	dir := t.TempDir()
	m, err := Load(writeFile(t, dir, "stackbuild.toml", tomlManifest))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		platform platform.Platform
		want     Dependencies
	}{
		{platform.Linux64, Dependencies{Run: map[string]string{"openssl": "*"}, Host: map[string]string{"libfoo": ">=2"}}},
		{platform.LinuxAarch64, Dependencies{Run: map[string]string{"openssl": "*"}, Host: map[string]string{"libfoo": ">=1"}}},
		{platform.Win64, Dependencies{Run: map[string]string{"openssl": "*"}}},
	}
	for _, tt := range tests {
		t.Run(string(tt.platform), func(t *testing.T) {
			if diff := cmp.Diff(tt.want, m.Dependencies(tt.platform)); diff != "" {
				t.Errorf("Dependencies (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "stackbuild.yaml", yamlManifest)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load(dir) error = %v", err)
	}
	if m.Format != "yaml" {
		t.Errorf("Format = %q", m.Format)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		code    errors.Code
	}{
		{"unsupported extension", "stackbuild.ini", "x=1", errors.ErrCodeConfig},
		{"bad toml", "stackbuild.toml", "[package\nname=", errors.ErrCodeConfig},
		{"no package table", "stackbuild.toml", "[build]\nbackend = \"x\"\n", errors.ErrCodeConfig},
		{"unknown selector", "stackbuild.toml", "[package]\nname = \"x\"\n[package.build.target.windows.config]\nextra-args = []\n", errors.ErrCodeConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), tt.file, tt.content)
			_, err := Load(path)
			if !errors.Is(err, tt.code) {
				t.Errorf("Load() error = %v, want %s", err, tt.code)
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "stackbuild.toml"))
		if !errors.Is(err, errors.ErrCodeConfig) {
			t.Errorf("Load() error = %v", err)
		}
	})
	t.Run("empty directory", func(t *testing.T) {
		_, err := Load(t.TempDir())
		if !errors.Is(err, errors.ErrCodeConfig) {
			t.Errorf("Load() error = %v", err)
		}
	})
}

func TestLoadExamples(t *testing.T) {
	tests := []struct {
		dir     string
		name    string
		backend string
		format  string
	}{
		{"rust", "hello-rs", "stackbuild-rust", "toml"},
		{"cmake", "hello-cmake", "stackbuild-cmake", "yaml"},
		{"mojo", "hello-mojo", "stackbuild-mojo", "jsonc"},
		{"python", "hello-py", "stackbuild-python", "toml"},
	}
	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			m, err := Load(filepath.Join("..", "..", "examples", tt.dir))
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if m.Package.Name != tt.name || m.Backend != tt.backend || m.Format != tt.format {
				t.Errorf("got %s/%s/%s", m.Package.Name, m.Backend, m.Format)
			}
		})
	}
}
