package zipjis

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
)

// ByteRangeReader is the external byte-range fetch contract the Parser is
// built on. Implementations may be backed by a local file, an in-memory
// buffer, or a remote blob store; reads may suspend, so every method takes a
// context.
type ByteRangeReader interface {
	// Size returns the total size of the underlying archive in bytes.
	Size(ctx context.Context) (int64, error)

	// ReadAt reads len(p) bytes starting at off. Implementations should
	// behave like io.ReaderAt with respect to short reads near EOF: the
	// Parser tolerates io.EOF together with a partial read.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
}

// FileReader adapts an *os.File (or anything providing io.ReaderAt and a
// known size) to ByteRangeReader, for use by callers reading archives from
// local disk.
type FileReader struct {
	r    io.ReaderAt
	size int64
}

// NewFileReader wraps f, using the file's current size on disk.
func NewFileReader(f *os.File) (*FileReader, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "stat archive file")
	}
	return &FileReader{r: f, size: info.Size()}, nil
}

// NewReaderAtReader wraps an arbitrary io.ReaderAt of known size.
func NewReaderAtReader(r io.ReaderAt, size int64) *FileReader {
	return &FileReader{r: r, size: size}
}

func (f *FileReader) Size(ctx context.Context) (int64, error) {
	return f.size, nil
}

func (f *FileReader) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return f.r.ReadAt(p, off)
}

// MemoryReader is a ByteRangeReader backed by an in-memory byte slice,
// primarily useful for tests and small archives.
type MemoryReader struct {
	data []byte
}

// NewMemoryReader wraps data. data is not copied; the caller must not mutate
// it while the reader is in use.
func NewMemoryReader(data []byte) *MemoryReader {
	return &MemoryReader{data: data}
}

func (m *MemoryReader) Size(ctx context.Context) (int64, error) {
	return int64(len(m.data)), nil
}

func (m *MemoryReader) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if off < 0 || off > int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// readFull reads exactly len(p) bytes at off from r. A short read that
// reaches io.EOF is reported as a truncation error rather than silently
// returning partial data, since every caller in this package relies on
// getting the full requested range or an explicit error.
func readFull(ctx context.Context, r ByteRangeReader, off int64, p []byte) error {
	n, err := r.ReadAt(ctx, p, off)
	if n == len(p) {
		return nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return errors.Wrapf(err, "read %d bytes at offset %d", len(p), off)
}
