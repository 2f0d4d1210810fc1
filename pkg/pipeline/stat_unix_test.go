//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestChangedSeesReplacedFile(t *testing.T) {
	root := t.TempDir()
	lib := filepath.Join(root, "lib", "libdemo.so")
	kept := filepath.Join(root, "share", "README")
	mtime := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, p := range []string{lib, kept} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("old"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(p, mtime, mtime); err != nil {
			t.Fatal(err)
		}
	}

	before, err := snapshot(root)
	if err != nil {
		t.Fatal(err)
	}

	// Same size and mtime, new content installed by rename.
	tmp := lib + ".new"
	if err := os.WriteFile(tmp, []byte("new"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(tmp, mtime, mtime); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, lib); err != nil {
		t.Fatal(err)
	}

	got, err := changed(root, before)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{lib}, got); diff != "" {
		t.Errorf("changed (-want +got):\n%s", diff)
	}
}
