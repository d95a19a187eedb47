package geoid

import "io"

// A ByteReader is a read-only, seekable stream over a byte slice, typically an
// embedded file. It does not copy or modify the slice. Seeks are clamped to
// the bounds of the slice and never fail.
type ByteReader struct {
	data []byte
	pos  int64
}

var (
	_ io.ReadSeeker = &ByteReader{}
	_ io.ReaderAt   = &ByteReader{}
)

// NewByteReader returns a new ByteReader that reads from data.
func NewByteReader(data []byte) *ByteReader {
	return &ByteReader{
		data: data,
	}
}

// Read implements io.Reader. At the end of the data it returns io.EOF.
func (r *ByteReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if r.pos >= int64(len(r.data)) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += int64(n)
	return n, nil
}

// ReadAt implements io.ReaderAt. It does not change the position of r.
func (r *ByteReader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(r.data)) {
		if len(p) == 0 && off == int64(len(r.data)) {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := copy(p, r.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Seek implements io.Seeker. The new position is clamped to [0, r.Size()].
// Unknown values of whence leave the position unchanged.
func (r *ByteReader) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		return r.SeekAbsolute(offset), nil
	case io.SeekCurrent:
		// Compare against the remaining and consumed lengths so that r.pos+offset
		// is never computed out of range.
		switch {
		case offset > int64(len(r.data))-r.pos:
			r.pos = int64(len(r.data))
		case offset < -r.pos:
			r.pos = 0
		default:
			r.pos += offset
		}
	case io.SeekEnd:
		switch {
		case offset > 0:
			r.pos = int64(len(r.data))
		case offset < -int64(len(r.data)):
			r.pos = 0
		default:
			r.pos = int64(len(r.data)) + offset
		}
	}
	return r.pos, nil
}

// SeekAbsolute sets the position of r to position, clamped to [0, r.Size()],
// and returns the new position.
func (r *ByteReader) SeekAbsolute(position int64) int64 {
	r.pos = min(max(position, 0), int64(len(r.data)))
	return r.pos
}

// Len returns the number of unread bytes.
func (r *ByteReader) Len() int {
	return len(r.data) - int(r.pos)
}

// Size returns the length of the underlying data.
func (r *ByteReader) Size() int64 {
	return int64(len(r.data))
}
