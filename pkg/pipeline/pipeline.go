// Package pipeline runs the requests a backend serves.
//
// Both request kinds share one control flow:
//
//  1. Load the project manifest (fresh on every request)
//  2. Resolve the build configuration for the requested platform
//  3. Resolve the compiler variants of every variant combination
//  4. Fingerprint the build inputs
//  5. Ask the adapter for metadata or a build script
//
// Builds then hand the script to an executor and report the files that
// appeared under the install prefix. Any failure before step 5 happens
// before a process starts.
//
// # Usage
//
//	runner := pipeline.NewRunner(rust.New(), variant.DefaultTable(), executor.New(logger), logger)
//	res, err := runner.Build(ctx, pipeline.BuildRequest{
//	    ManifestPath: "stackbuild.toml",
//	    Platform:     platform.Linux64,
//	    Prefix:       backend.Prefix{Install: "/tmp/out"},
//	})
package pipeline

import (
	"path/filepath"

	"github.com/matzehuels/stackbuild/pkg/backend"
	"github.com/matzehuels/stackbuild/pkg/errors"
	"github.com/matzehuels/stackbuild/pkg/platform"
	"github.com/matzehuels/stackbuild/pkg/variant"
)

// =============================================================================
// Requests
// =============================================================================

// MetadataRequest asks for the package a project produces.
type MetadataRequest struct {
	ManifestPath string            `json:"manifest_path" cbor:"manifest_path"`
	Platform     platform.Platform `json:"target_platform" cbor:"target_platform"`
}

// Validate checks the request and fills in the platform when empty.
func (r *MetadataRequest) Validate() error {
	return validate(r.ManifestPath, &r.Platform)
}

// BuildRequest asks for a build into Prefix.Install.
type BuildRequest struct {
	ManifestPath string            `json:"manifest_path" cbor:"manifest_path"`
	Platform     platform.Platform `json:"target_platform" cbor:"target_platform"`
	Prefix       backend.Prefix    `json:"prefix" cbor:"prefix"`
	Editable     bool              `json:"editable,omitempty" cbor:"editable,omitempty"`

	// Variant selects one variant combination by key/value. With no
	// selector the first combination is built.
	Variant map[string]string `json:"variant,omitempty" cbor:"variant,omitempty"`
}

// Validate checks the request and fills in the platform when empty.
func (r *BuildRequest) Validate() error {
	if err := validate(r.ManifestPath, &r.Platform); err != nil {
		return err
	}
	if r.Prefix.Install == "" {
		return errors.New(errors.ErrCodeConfig, "install prefix is required").WithField("prefix")
	}
	if !filepath.IsAbs(r.Prefix.Install) {
		return errors.New(errors.ErrCodeConfig, "install prefix must be absolute").WithField("prefix").WithPath(r.Prefix.Install)
	}
	return nil
}

func validate(manifestPath string, p *platform.Platform) error {
	if err := errors.ValidateManifestPath(manifestPath); err != nil {
		return errors.Wrap(errors.ErrCodeConfig, err, "invalid request").WithField("manifest_path")
	}
	if *p == "" {
		*p = platform.Current()
		return nil
	}
	parsed, err := platform.Parse(string(*p))
	if err != nil {
		return errors.Wrap(errors.ErrCodeConfig, err, "invalid request").WithField("target_platform").WithVariant("", string(*p))
	}
	*p = parsed
	return nil
}

// =============================================================================
// Results
// =============================================================================

// MetadataResult is the answer to a MetadataRequest.
type MetadataResult struct {
	Metadata    *backend.PackageMetadata `json:"metadata" cbor:"metadata"`
	InputGlobs  []string                 `json:"input_globs" cbor:"input_globs"`
	Fingerprint string                   `json:"fingerprint" cbor:"fingerprint"`
	Variants    []variant.Set            `json:"variants" cbor:"variants"`
	Warnings    []string                 `json:"warnings,omitempty" cbor:"warnings,omitempty"`
}

// BuildResult is the answer to a BuildRequest.
type BuildResult struct {
	ArtifactPaths  []string    `json:"artifact_paths" cbor:"artifact_paths"`
	Fingerprint    string      `json:"fingerprint" cbor:"fingerprint"`
	CapturedOutput string      `json:"captured_output" cbor:"captured_output"`
	Variant        variant.Set `json:"variant" cbor:"variant"`
	Warnings       []string    `json:"warnings,omitempty" cbor:"warnings,omitempty"`
}
