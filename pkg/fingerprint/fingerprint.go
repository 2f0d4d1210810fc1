// Package fingerprint computes the digest that identifies a build's inputs.
//
// A fingerprint covers every file matched by the request's input globs plus
// the canonical bytes of the resolved configuration. It does not depend on
// the order globs are declared in or the order the filesystem is walked in,
// and it changes whenever a matched file's content or path changes.
//
// Digest layout, hashed with BLAKE3-256:
//
//	for each matched path, sorted:
//	    u64 len(path) | path | u64 len(content) | content
//	u64 len(config) | config
//
// Lengths are big-endian. The length prefixes keep ("ab","c") and ("a","bc")
// from hashing alike.
package fingerprint

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/zeebo/blake3"

	"github.com/matzehuels/stackbuild/pkg/errors"
)

// WarnNoInputs is reported when no file matches the input globs.
const WarnNoInputs = "no input files matched"

// Result is a computed fingerprint.
type Result struct {
	Digest   string   // lowercase hex BLAKE3-256
	Files    []string // matched paths, slash separated, relative to the work dir
	Warnings []string
}

// Compute matches patterns under workDir and hashes the matched files
// together with config. Patterns starting with "!" exclude matches of the
// remaining patterns.
func Compute(ctx context.Context, workDir string, patterns []string, config []byte) (*Result, error) {
	files, owner, err := Match(workDir, patterns)
	if err != nil {
		return nil, err
	}

	h := blake3.New()
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(errors.ErrCodeCancelled, err, "fingerprint cancelled")
		}
		content, err := os.ReadFile(filepath.Join(workDir, filepath.FromSlash(rel)))
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeGlob, err, "reading matched file %s", rel).
				WithPattern(owner[rel]).WithPath(rel)
		}
		writeChunk(h, []byte(rel))
		writeChunk(h, content)
	}
	writeChunk(h, config)

	res := &Result{
		Digest: hex.EncodeToString(h.Sum(nil)),
		Files:  files,
	}
	if len(files) == 0 {
		res.Warnings = append(res.Warnings, WarnNoInputs)
	}
	return res, nil
}

func writeChunk(h hash.Hash, b []byte) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(b)))
	h.Write(n[:])
	h.Write(b)
}

// Match expands patterns under workDir into a sorted, deduplicated list of
// regular files. The returned map records, for each file, the first include
// pattern (in sorted order) that matched it.
func Match(workDir string, patterns []string) ([]string, map[string]string, error) {
	include, exclude := split(patterns)
	for _, p := range append(slices.Clone(include), exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, nil, errors.New(errors.ErrCodeGlob, "invalid glob pattern %q", p).WithPattern(p)
		}
	}
	sort.Strings(include)

	fsys := os.DirFS(workDir)
	owner := map[string]string{}
	for _, p := range include {
		matches, err := doublestar.Glob(fsys, p, doublestar.WithFilesOnly(), doublestar.WithFailOnIOErrors())
		if err != nil {
			return nil, nil, errors.Wrap(errors.ErrCodeGlob, err, "expanding %q", p).WithPattern(p)
		}
		for _, m := range matches {
			if _, ok := owner[m]; !ok {
				owner[m] = p
			}
		}
	}

	files := make([]string, 0, len(owner))
	for m := range owner {
		if excluded(m, exclude) {
			delete(owner, m)
			continue
		}
		files = append(files, m)
	}
	sort.Strings(files)
	return files, owner, nil
}

func excluded(path string, exclude []string) bool {
	for _, p := range exclude {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}
