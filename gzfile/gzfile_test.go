package gzfile

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestWriterReader(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"out.ndjson", "out.ndjson.gz"} {
		t.Run(name, func(t *testing.T) {
			target := filepath.Join(dir, "sub", name)
			for _, line := range []string{"one\n", "two\n"} {
				w, err := Create(target, nil)
				if err != nil {
					t.Fatal(err)
				}
				if _, err := w.Write([]byte(line)); err != nil {
					t.Fatal(err)
				}
				if err := w.Close(); err != nil {
					t.Fatal(err)
				}
			}

			r, err := Open(target)
			if err != nil {
				t.Fatal(err)
			}
			defer r.Close()
			if got, want := r.Compressed(), filepath.Ext(name) == ".gz"; got != want {
				t.Errorf("compressed %v, want %v", got, want)
			}
			// Appended gzip members read back as one stream.
			b, err := io.ReadAll(r)
			if err != nil {
				t.Fatal(err)
			}
			if string(b) != "one\ntwo\n" {
				t.Errorf("read %q", b)
			}
		})
	}
}

func TestOpen_missing(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "nope")); !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestOpen_empty(t *testing.T) {
	target := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(target, nil, 0600); err != nil {
		t.Fatal(err)
	}
	r, err := Open(target)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	b, _ := io.ReadAll(r)
	if len(b) != 0 || r.Compressed() {
		t.Errorf("read %q", b)
	}
}
