// Package xyzio opens the input and output streams of geoid-convert.
package xyzio

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Stdin is the input path that selects standard input.
const Stdin = "-"

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// A Compression is a compression format of an input stream.
type Compression string

const (
	None Compression = ""
	Gzip Compression = "gzip"
	Zstd Compression = "zstd"
	XZ   Compression = "xz"
)

// multiReadCloser closes all of its closers, in order, when closed.
type multiReadCloser struct {
	io.Reader
	closers []io.Closer
}

func (m *multiReadCloser) Close() error {
	var err error
	for _, c := range m.closers {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

type closerFunc func() error

func (f closerFunc) Close() error {
	return f()
}

// OpenInput opens the input at path for reading. An empty path or Stdin
// selects stdin. Compressed inputs are decompressed transparently.
func OpenInput(path string, stdin io.Reader) (io.ReadCloser, error) {
	var r io.Reader
	var closers []io.Closer
	if path == "" || path == Stdin {
		r = stdin
	} else {
		file, err := os.Open(path)
		if err != nil {
			return nil, openError(path, err)
		}
		r = file
		closers = append(closers, file)
	}

	br := bufio.NewReader(r)
	// A short or failed peek leaves the input uncompressed and is reported by
	// the first read.
	header, _ := br.Peek(len(xzMagic))
	compression := DetectCompression(path, header)
	decompressed, closer, err := newDecompressor(compression, br)
	if err != nil {
		for _, c := range closers {
			_ = c.Close()
		}
		return nil, openError(path, err)
	}
	if closer != nil {
		closers = append([]io.Closer{closer}, closers...)
	}
	return &multiReadCloser{
		Reader:  decompressed,
		closers: closers,
	}, nil
}

// DetectCompression returns the compression of a stream from the magic bytes
// in header, falling back to path's extension.
func DetectCompression(path string, header []byte) Compression {
	switch {
	case bytes.HasPrefix(header, gzipMagic):
		return Gzip
	case bytes.HasPrefix(header, zstdMagic):
		return Zstd
	case bytes.HasPrefix(header, xzMagic):
		return XZ
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		return Gzip
	case ".zst":
		return Zstd
	case ".xz":
		return XZ
	default:
		return None
	}
}

func newDecompressor(compression Compression, r io.Reader) (io.Reader, io.Closer, error) {
	switch compression {
	case Gzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return gr, gr, nil
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, closerFunc(func() error {
			zr.Close()
			return nil
		}), nil
	case XZ:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return xr, nil, nil
	default:
		return r, nil, nil
	}
}

func openError(path string, err error) error {
	if path == "" {
		path = Stdin
	}
	return fmt.Errorf("could not open input file: '%s': %w", path, err)
}

// An Output is an output stream. Output files are written to a temporary file
// which replaces path when the Output is closed, so readers of path never see
// a partially written file.
type Output struct {
	io.Writer
	pendingFile *renameio.PendingFile
}

// CreateOutput creates the output at path. An empty path selects stdout.
func CreateOutput(path string, stdout io.Writer) (*Output, error) {
	if path == "" {
		return &Output{
			Writer: stdout,
		}, nil
	}
	pendingFile, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o666))
	if err != nil {
		return nil, fmt.Errorf("could not create output file: '%s': %w", path, err)
	}
	return &Output{
		Writer:      pendingFile,
		pendingFile: pendingFile,
	}, nil
}

// Close closes o, replacing the output file with everything written so far.
func (o *Output) Close() error {
	if o.pendingFile == nil {
		return nil
	}
	defer o.pendingFile.Cleanup() //nolint:errcheck
	return o.pendingFile.CloseAtomicallyReplace()
}
