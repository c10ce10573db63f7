// Package ops implements the per-operation-kind executors of spec.md
// §4.3: each consumes zero or more input extents and produces exactly
// the bytes of an operation's destination extents.
package ops

import (
	"io"
	"os"

	"github.com/StevenDoesStuffs/android-ota-extractor/update_metadata"
)

// ExtentWriter sequentially fills a list of destination extents on an
// image file, in list order, as described by spec.md §3: "their
// concatenation (in list order) forms a logical byte range".
type ExtentWriter struct {
	f         *os.File
	extents   []update_metadata.Extent
	blockSize int64

	idx       int
	remaining int64 // bytes left in the current extent
	offset    int64 // absolute file offset of the next write
}

// NewExtentWriter returns a writer over dst, positioned at the start of
// the first extent.
func NewExtentWriter(f *os.File, extents []update_metadata.Extent, blockSize uint32) *ExtentWriter {
	w := &ExtentWriter{f: f, extents: extents, blockSize: int64(blockSize)}
	w.enterExtent(0)
	return w
}

func (w *ExtentWriter) enterExtent(i int) {
	w.idx = i
	if i >= len(w.extents) {
		w.remaining = 0
		return
	}
	e := w.extents[i]
	w.remaining = int64(e.NumBlocks) * w.blockSize
	w.offset = int64(e.StartBlock) * w.blockSize
}

// Write implements io.Writer, spilling across extent boundaries as needed.
func (w *ExtentWriter) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		if w.remaining == 0 {
			if w.idx+1 >= len(w.extents) {
				return total, io.ErrShortWrite
			}
			w.enterExtent(w.idx + 1)
		}
		chunk := p
		if int64(len(chunk)) > w.remaining {
			chunk = chunk[:w.remaining]
		}
		n, err := w.f.WriteAt(chunk, w.offset)
		total += n
		w.offset += int64(n)
		w.remaining -= int64(n)
		p = p[n:]
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// ExtentReader sequentially reads a list of source extents off an image
// file, in list order.
type ExtentReader struct {
	f         *os.File
	extents   []update_metadata.Extent
	blockSize int64

	idx       int
	remaining int64
	offset    int64
}

// NewExtentReader returns a reader over src, positioned at the start of
// the first extent.
func NewExtentReader(f *os.File, extents []update_metadata.Extent, blockSize uint32) *ExtentReader {
	r := &ExtentReader{f: f, extents: extents, blockSize: int64(blockSize)}
	r.enterExtent(0)
	return r
}

func (r *ExtentReader) enterExtent(i int) {
	r.idx = i
	if i >= len(r.extents) {
		r.remaining = 0
		return
	}
	e := r.extents[i]
	r.remaining = int64(e.NumBlocks) * r.blockSize
	r.offset = int64(e.StartBlock) * r.blockSize
}

// Read implements io.Reader, crossing extent boundaries as needed.
func (r *ExtentReader) Read(p []byte) (int, error) {
	for r.remaining == 0 {
		if r.idx+1 >= len(r.extents) {
			return 0, io.EOF
		}
		r.enterExtent(r.idx + 1)
	}
	if int64(len(p)) > r.remaining {
		p = p[:r.remaining]
	}
	n, err := r.f.ReadAt(p, r.offset)
	r.offset += int64(n)
	r.remaining -= int64(n)
	if err == io.EOF && n == len(p) {
		// os.File.ReadAt may report EOF even on a full read that lands
		// exactly at end-of-file; that read is reported as a success, and
		// io.EOF comes from the next Read once every extent is consumed.
		err = nil
	}
	return n, err
}

// TotalBytes returns the total byte length addressed by extents at the
// given block size.
func TotalBytes(extents []update_metadata.Extent, blockSize uint32) int64 {
	return int64(update_metadata.TotalBlocks(extents)) * int64(blockSize)
}
