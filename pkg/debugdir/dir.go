package debugdir

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/stackbuild/pkg/errors"
)

// DirSink writes records as files in a directory. Each record replaces the
// files of the previous one.
type DirSink struct {
	dir string
}

// Dir returns the target directory.
func (s *DirSink) Dir() string { return s.dir }

// resolvedDoc is the YAML layout of resolved-config.yaml.
type resolvedDoc struct {
	Method   string         `yaml:"method"`
	Platform string         `yaml:"platform"`
	Config   map[string]any `yaml:"config"`
}

// Write stores rec. Files of parts missing from rec are removed so the
// directory never mixes two requests.
func (s *DirSink) Write(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return s.wrap(err, s.dir)
	}

	if rec.Config != nil {
		doc := resolvedDoc{Method: rec.Method, Platform: string(rec.Config.Platform), Config: rec.Config.Map()}
		data, err := yaml.Marshal(doc)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "encode resolved configuration")
		}
		if err := s.write(ResolvedConfigFile, data); err != nil {
			return err
		}
	} else if err := s.remove(ResolvedConfigFile); err != nil {
		return err
	}

	if fp := rec.Fingerprint; fp != nil {
		if err := s.write(FingerprintFile, []byte(fp.Digest+"\n")); err != nil {
			return err
		}
		if err := s.write(InputFilesFile, lines(fp.Files)); err != nil {
			return err
		}
	} else if err := s.remove(FingerprintFile, InputFilesFile); err != nil {
		return err
	}

	if rec.Script != nil {
		var b strings.Builder
		for _, c := range rec.Script {
			if c.Dir != "" {
				fmt.Fprintf(&b, "# in %s\n", c.Dir)
			}
			b.WriteString(c.String())
			b.WriteByte('\n')
		}
		if err := s.write(BuildScriptFile, []byte(b.String())); err != nil {
			return err
		}
	} else if err := s.remove(BuildScriptFile); err != nil {
		return err
	}
	return nil
}

// write replaces name atomically through a temp file in the same directory.
func (s *DirSink) write(name string, data []byte) error {
	path := filepath.Join(s.dir, name)
	f, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return s.wrap(err, path)
	}
	tmp := f.Name()
	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmp, 0o644)
	}
	if err == nil {
		err = os.Rename(tmp, path)
	}
	if err != nil {
		_ = os.Remove(tmp)
		return s.wrap(err, path)
	}
	return nil
}

func (s *DirSink) remove(names ...string) error {
	for _, name := range names {
		path := filepath.Join(s.dir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return s.wrap(err, path)
		}
	}
	return nil
}

func (s *DirSink) wrap(err error, path string) error {
	return errors.Wrap(errors.ErrCodeInternal, err, "write debug artifact").WithPath(path)
}

func lines(ss []string) []byte {
	if len(ss) == 0 {
		return nil
	}
	return []byte(strings.Join(ss, "\n") + "\n")
}

var _ Sink = (*DirSink)(nil)
