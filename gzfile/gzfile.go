// Package gzfile opens candidate input and filtered output files,
// compressed or not.
package gzfile

import (
	"bufio"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rotblauer/fixguard/params"
)

// Stdio is the path naming stdin or stdout.
const Stdio = "-"

var gzipMagic = []byte{0x1f, 0x8b}

// Reader reads a file, transparently gunzipping it when it starts with
// the gzip magic bytes.
type Reader struct {
	f      *os.File
	gzr    *gzip.Reader
	r      io.Reader
	closed bool
}

// Open opens path for reading. Stdio reads stdin.
func Open(path string) (*Reader, error) {
	f := os.Stdin
	if path != Stdio {
		var err error
		if f, err = os.Open(path); err != nil {
			return nil, err
		}
	}
	return newReader(f)
}

func newReader(f *os.File) (*Reader, error) {
	br := bufio.NewReader(f)
	g := &Reader{f: f, r: br}
	head, err := br.Peek(len(gzipMagic))
	if err != nil || string(head) != string(gzipMagic) {
		// Short or empty input is read as-is.
		return g, nil
	}
	gzr, err := gzip.NewReader(br)
	if err != nil {
		_ = g.closeFile()
		return nil, err
	}
	g.gzr = gzr
	g.r = gzr
	return g, nil
}

// Read satisfies the io.Reader interface.
func (g *Reader) Read(p []byte) (int, error) {
	return g.r.Read(p)
}

// Compressed reports whether the input is gzipped.
func (g *Reader) Compressed() bool {
	return g.gzr != nil
}

func (g *Reader) Path() string {
	return g.f.Name()
}

// Close closes the gzip reader and the file. Stdin is left open.
func (g *Reader) Close() error {
	if g.closed {
		return nil
	}
	g.closed = true
	if g.gzr != nil {
		if err := g.gzr.Close(); err != nil {
			return err
		}
	}
	return g.closeFile()
}

func (g *Reader) closeFile() error {
	if g.f == os.Stdin {
		return nil
	}
	return g.f.Close()
}

type WriterConfig struct {
	CompressionLevel int
	Flag             int
	FilePerm         os.FileMode
	DirPerm          os.FileMode
}

func DefaultWriterConfig() *WriterConfig {
	return &WriterConfig{
		CompressionLevel: params.DefaultGZipCompressionLevel,
		Flag:             os.O_WRONLY | os.O_APPEND | os.O_CREATE,
		FilePerm:         0660,
		DirPerm:          0770,
	}
}

// Writer appends to a file, gzipped when the path ends in .gz.
// The file is exclusively locked from the first write until Close.
type Writer struct {
	f      *os.File
	gzw    *gzip.Writer
	w      io.Writer
	locked bool
	closed bool
}

// Create opens path for appending. Stdio writes stdout, uncompressed.
func Create(path string, config *WriterConfig) (*Writer, error) {
	if path == Stdio {
		return &Writer{f: os.Stdout, w: os.Stdout}, nil
	}
	if config == nil {
		config = DefaultWriterConfig()
	}
	if err := os.MkdirAll(filepath.Dir(path), config.DirPerm); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, config.Flag, config.FilePerm)
	if err != nil {
		return nil, err
	}
	g := &Writer{f: f, w: f}
	if strings.HasSuffix(path, ".gz") {
		gzw, err := gzip.NewWriterLevel(f, config.CompressionLevel)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		g.gzw = gzw
		g.w = gzw
	}
	return g, nil
}

func (g *Writer) Write(p []byte) (int, error) {
	g.lock()
	return g.w.Write(p)
}

func (g *Writer) Path() string {
	return g.f.Name()
}

// lock locks the file for exclusive access.
// The lock is released when the file is closed.
func (g *Writer) lock() {
	if g.locked || g.closed || g.f == os.Stdout {
		return
	}
	_ = syscall.Flock(int(g.f.Fd()), syscall.LOCK_EX)
	g.locked = true
}

// Close flushes and closes the file. Stdout is flushed only.
func (g *Writer) Close() error {
	if g.closed {
		return nil
	}
	g.closed = true
	if g.gzw != nil {
		if err := g.gzw.Close(); err != nil {
			return err
		}
	}
	if g.f == os.Stdout {
		return nil
	}
	return g.f.Close()
}
