package ops

import (
	"errors"

	"github.com/StevenDoesStuffs/android-ota-extractor/update_metadata"
)

// ErrNoSource is returned when an operation needs a source image but
// ctx.Src is nil; the caller (partition.Update) is expected to have
// already rejected this case as MissingSource before dispatching.
var ErrNoSource = errors.New("operation requires a source image")

func execCopy(ctx *Context, op *update_metadata.InstallOperation) error {
	if ctx.Src == nil {
		return ErrNoSource
	}
	r := NewExtentReader(ctx.Src, op.SrcExtents, ctx.BlockSize)
	w := NewExtentWriter(ctx.Dst, op.DstExtents, ctx.BlockSize)
	return copyAll(w, r, TotalBytes(op.DstExtents, ctx.BlockSize))
}
