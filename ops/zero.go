package ops

import "github.com/StevenDoesStuffs/android-ota-extractor/update_metadata"

// zeroChunk is reused across extents to avoid allocating a full extent's
// worth of zero bytes at once.
var zeroChunk = make([]byte, 1<<20)

func execZero(ctx *Context, op *update_metadata.InstallOperation) error {
	for _, e := range op.DstExtents {
		remaining := int64(e.NumBlocks) * int64(ctx.BlockSize)
		offset := int64(e.StartBlock) * int64(ctx.BlockSize)
		for remaining > 0 {
			n := int64(len(zeroChunk))
			if n > remaining {
				n = remaining
			}
			if _, err := ctx.Dst.WriteAt(zeroChunk[:n], offset); err != nil {
				return err
			}
			offset += n
			remaining -= n
		}
	}
	return nil
}
