package ops

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/StevenDoesStuffs/android-ota-extractor/update_metadata"
)

// ErrUnsupportedOperation is returned for PUFFDIFF and any operation
// kind this core does not recognize, per spec.md §4.3 and §7.
var ErrUnsupportedOperation = errors.New("unsupported operation type")

// ErrLengthMismatch is returned when a replace or copy operation's data
// ends before it has filled the operation's destination extents. Data
// that runs past them fails with io.ErrShortWrite instead, and bsdiff
// length mismatches are reported as ErrPatchApplication.
var ErrLengthMismatch = errors.New("operation produced the wrong output length")

// ErrPatchApplication is returned when a bsdiff patch cannot be applied
// against the supplied old image (corrupt patch, out-of-range seek, or
// a patched-length mismatch), per spec.md §7's PatchApplicationError.
var ErrPatchApplication = errors.New("bsdiff patch application failed")

// Context carries everything one operation's executor needs: the open
// source and destination image files (Src is nil for full-OTA
// operations that never read an old image) plus the operation's raw
// payload blob, already hash-verified by the caller per spec.md §4.4.
type Context struct {
	Src       *os.File
	Dst       *os.File
	BlockSize uint32
	Blob      []byte
}

// Executor applies one InstallOperation, writing exactly the bytes of
// op.DstExtents and nothing else.
type Executor func(ctx *Context, op *update_metadata.InstallOperation) error

var dispatch = map[update_metadata.Type]Executor{
	update_metadata.Type_REPLACE:        execReplace,
	update_metadata.Type_REPLACE_BZ:     execReplaceBZ,
	update_metadata.Type_REPLACE_XZ:     execReplaceXZ,
	update_metadata.Type_REPLACE_BROTLI: execReplaceBrotli,
	update_metadata.Type_REPLACE_ZSTD:   execReplaceZstd,
	update_metadata.Type_ZERO:           execZero,
	update_metadata.Type_DISCARD:        execZero, // spec.md §4.3: DISCARD zeroes for determinism
	update_metadata.Type_MOVE:           execCopy,
	update_metadata.Type_SOURCE_COPY:    execCopy,
	update_metadata.Type_SOURCE_BSDIFF:  execSourceBsdiff,
	update_metadata.Type_BROTLI_BSDIFF:  execBrotliBsdiff,
	update_metadata.Type_PUFFDIFF:       execUnsupported,
}

// Execute dispatches to the executor registered for op.Type.
func Execute(ctx *Context, op *update_metadata.InstallOperation) error {
	fn, ok := dispatch[op.Type]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedOperation, op.Type)
	}
	return fn(ctx, op)
}

func execUnsupported(ctx *Context, op *update_metadata.InstallOperation) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedOperation, op.Type)
}

func copyAll(dst io.Writer, src io.Reader, want int64) error {
	n, err := io.Copy(dst, src)
	if err != nil {
		return err
	}
	if n != want {
		return fmt.Errorf("%w: wrote %d bytes, want %d", ErrLengthMismatch, n, want)
	}
	return nil
}
