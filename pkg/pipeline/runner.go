package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stackbuild/pkg/backend"
	"github.com/matzehuels/stackbuild/pkg/codec"
	"github.com/matzehuels/stackbuild/pkg/config"
	"github.com/matzehuels/stackbuild/pkg/debugdir"
	"github.com/matzehuels/stackbuild/pkg/errors"
	"github.com/matzehuels/stackbuild/pkg/executor"
	"github.com/matzehuels/stackbuild/pkg/fingerprint"
	"github.com/matzehuels/stackbuild/pkg/manifest"
	"github.com/matzehuels/stackbuild/pkg/observability"
	"github.com/matzehuels/stackbuild/pkg/platform"
	"github.com/matzehuels/stackbuild/pkg/variant"
)

// Runner executes requests against one adapter.
//
// The Runner keeps no per-request state, so sessions can share it.
type Runner struct {
	Adapter  backend.Adapter
	Table    *variant.Table
	Executor executor.Runner
	Logger   *log.Logger
}

// NewRunner creates a runner. A nil table uses the default compiler table; a
// nil executor runs commands as child processes.
func NewRunner(a backend.Adapter, t *variant.Table, exec executor.Runner, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	if t == nil {
		t = variant.DefaultTable()
	}
	if exec == nil {
		exec = executor.New(logger)
	}
	return &Runner{Adapter: a, Table: t, Executor: exec, Logger: logger}
}

// prepared is the state shared by both request kinds once the manifest,
// configuration and variants are resolved.
type prepared struct {
	manifest    *manifest.Manifest
	config      *config.Resolved
	variants    []variant.Set
	globs       []string
	fingerprint *fingerprint.Result
	sink        debugdir.Sink
}

// identity is everything besides file content that a fingerprint covers:
// the resolved configuration and the compiler variants being built.
type identity struct {
	Config   codec.RawMessage `cbor:"config"`
	Variants []variant.Set    `cbor:"variants"`
}

func (r *Runner) prepare(ctx context.Context, path string, p platform.Platform) (*prepared, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeCancelled, err, "request cancelled")
	}

	m, err := manifest.Load(path)
	if err != nil {
		return nil, err
	}
	r.Logger.Debug("loaded manifest", "path", m.Path, "format", m.Format)

	cfg, err := config.Resolve(r.Adapter.Info().Schema, m.Config, p)
	if err != nil {
		return nil, err
	}

	sets, err := variant.Expand(r.Table, backend.Languages(cfg), p, m.Variants)
	if err != nil {
		return nil, err
	}

	return &prepared{
		manifest: m,
		config:   cfg,
		variants: sets,
		globs:    backend.Globs(r.Adapter, cfg),
		sink:     debugdir.New(debugDir(m, cfg)),
	}, nil
}

// digest fingerprints the matched inputs together with the configuration and
// the given variant sets, and stores the result in st.
func (r *Runner) digest(ctx context.Context, st *prepared, sets []variant.Set) error {
	canonical, err := st.config.Canonical()
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode resolved configuration")
	}
	id, err := codec.Marshal(identity{Config: canonical, Variants: sets})
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode build identity")
	}

	start := time.Now()
	fp, err := fingerprint.Compute(ctx, st.manifest.Dir, st.globs, id)
	files := 0
	if fp != nil {
		files = len(fp.Files)
	}
	observability.Fingerprint().OnFingerprint(ctx, files, time.Since(start), err)
	if err != nil {
		return err
	}
	r.Logger.Info("fingerprinted inputs", "files", files, "digest", short(fp.Digest), "duration", time.Since(start).Round(time.Millisecond))
	st.fingerprint = fp
	return nil
}

// Metadata answers a MetadataRequest.
func (r *Runner) Metadata(ctx context.Context, req MetadataRequest) (*MetadataResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	st, err := r.prepare(ctx, req.ManifestPath, req.Platform)
	if err != nil {
		return nil, err
	}
	if err := r.digest(ctx, st, st.variants); err != nil {
		return nil, err
	}

	md, err := r.Adapter.ExtractMetadata(st.manifest, st.config)
	if err != nil {
		return nil, err
	}
	md.Variants = st.variants

	res := &MetadataResult{
		Metadata:    md,
		InputGlobs:  st.globs,
		Fingerprint: st.fingerprint.Digest,
		Variants:    st.variants,
		Warnings:    slices.Clone(st.fingerprint.Warnings),
	}
	res.Warnings = append(res.Warnings, r.writeDebug(ctx, st, "get_metadata", nil)...)
	r.Logger.Info("extracted metadata", "name", md.Name, "version", md.Version, "variants", len(st.variants))
	return res, nil
}

// Build answers a BuildRequest.
func (r *Runner) Build(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Editable && !r.Adapter.Info().Capabilities.Editable {
		return nil, errors.New(errors.ErrCodeConfig, "%s does not support editable builds", r.Adapter.Info().Name).WithField("editable")
	}

	st, err := r.prepare(ctx, req.ManifestPath, req.Platform)
	if err != nil {
		return nil, err
	}

	set, warnings, err := selectVariant(st.variants, req.Variant, req.Platform)
	if err != nil {
		return nil, err
	}
	if err := r.digest(ctx, st, []variant.Set{set}); err != nil {
		return nil, err
	}
	warnings = append(slices.Clone(st.fingerprint.Warnings), warnings...)

	md, err := r.Adapter.ExtractMetadata(st.manifest, st.config)
	if err != nil {
		return nil, err
	}

	script, err := r.Adapter.BuildScript(backend.BuildInput{
		WorkDir:  st.manifest.Dir,
		Config:   st.config,
		Metadata: md,
		Variants: set.Compilers,
		Prefix:   req.Prefix,
		Editable: req.Editable,
	})
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, r.writeDebug(ctx, st, "build", script)...)

	before, err := snapshot(req.Prefix.Install)
	if err != nil {
		return nil, err
	}

	r.Logger.Info("building", "package", md.Name, "variant", set.Combination.String(), "commands", len(script))
	start := time.Now()
	out, err := r.Executor.Run(ctx, script)
	if err != nil {
		return nil, err
	}

	artifacts, err := changed(req.Prefix.Install, before)
	if err != nil {
		return nil, err
	}
	r.Logger.Info("built", "package", md.Name, "artifacts", len(artifacts), "duration", time.Since(start).Round(time.Millisecond))

	return &BuildResult{
		ArtifactPaths:  artifacts,
		Fingerprint:    st.fingerprint.Digest,
		CapturedOutput: string(out.Output),
		Variant:        set,
		Warnings:       warnings,
	}, nil
}

// selectVariant picks the combination matching sel. With an empty selector
// the first combination is built and a warning names the others.
func selectVariant(sets []variant.Set, sel map[string]string, p platform.Platform) (variant.Set, []string, error) {
	if len(sel) == 0 {
		var warnings []string
		if len(sets) > 1 {
			warnings = append(warnings, fmt.Sprintf("%d variant combinations, building %s", len(sets), sets[0].Combination))
		}
		return sets[0], warnings, nil
	}

	var matches []variant.Set
	for _, s := range sets {
		if s.Combination.Matches(sel) {
			matches = append(matches, s)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil, nil
	case 0:
		return variant.Set{}, nil, errors.New(errors.ErrCodeVariantResolution,
			"no variant combination matches %s", variant.Combination(sel)).WithVariant("", string(p))
	default:
		return variant.Set{}, nil, errors.New(errors.ErrCodeVariantResolution,
			"variant selector %s matches %d combinations", variant.Combination(sel), len(matches)).WithVariant("", string(p))
	}
}

// writeDebug stores the request's debug artifacts. Failures are reported as
// warnings; debug output never fails a request.
func (r *Runner) writeDebug(ctx context.Context, st *prepared, method string, script []backend.Command) []string {
	rec := debugdir.Record{Method: method, Config: st.config, Fingerprint: st.fingerprint, Script: script}
	if err := st.sink.Write(ctx, rec); err != nil {
		r.Logger.Warn("debug artifacts not written", "err", err)
		return []string{"debug artifacts not written: " + errors.UserMessage(err)}
	}
	return nil
}

func debugDir(m *manifest.Manifest, cfg *config.Resolved) string {
	dir := cfg.String(config.FieldDebugDir)
	if dir == "" || filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(m.Dir, dir)
}

// fileState identifies a file version well enough to notice a rebuild,
// including one that restores the previous size and mtime.
type fileState struct {
	size    int64
	modTime time.Time
	ino     uint64
	ctime   int64
}

func snapshot(root string) (map[string]fileState, error) {
	files := map[string]fileState{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == root {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		ino, ctime, err := statIdentity(path)
		if err != nil {
			return err
		}
		files[path] = fileState{size: info.Size(), modTime: info.ModTime(), ino: ino, ctime: ctime}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "scan install prefix").WithPath(root)
	}
	return files, nil
}

// changed lists the files under root that are new or modified since before.
func changed(root string, before map[string]fileState) ([]string, error) {
	after, err := snapshot(root)
	if err != nil {
		return nil, err
	}
	var out []string
	for path, st := range after {
		if prev, ok := before[path]; !ok || prev != st {
			out = append(out, path)
		}
	}
	slices.Sort(out)
	return out, nil
}

func short(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
