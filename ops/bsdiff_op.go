package ops

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"

	"github.com/StevenDoesStuffs/android-ota-extractor/bsdiff"
	"github.com/StevenDoesStuffs/android-ota-extractor/update_metadata"
)

func execSourceBsdiff(ctx *Context, op *update_metadata.InstallOperation) error {
	return applyBsdiff(ctx, op, bytes.NewReader(ctx.Blob))
}

func execBrotliBsdiff(ctx *Context, op *update_metadata.InstallOperation) error {
	br := brotli.NewReader(bytes.NewReader(ctx.Blob))
	patch, err := io.ReadAll(br)
	if err != nil {
		return fmt.Errorf("brotli_bsdiff: decompressing patch: %w", err)
	}
	return applyBsdiff(ctx, op, bytes.NewReader(patch))
}

func applyBsdiff(ctx *Context, op *update_metadata.InstallOperation, patch io.Reader) error {
	if ctx.Src == nil {
		return ErrNoSource
	}
	old := NewExtentReader(ctx.Src, op.SrcExtents, ctx.BlockSize)
	w := &countingWriter{w: NewExtentWriter(ctx.Dst, op.DstExtents, ctx.BlockSize)}

	if err := bsdiff.Apply(old, patch, w); err != nil {
		return fmt.Errorf("%w: %v", ErrPatchApplication, err)
	}

	want := TotalBytes(op.DstExtents, ctx.BlockSize)
	if w.n != want {
		return fmt.Errorf("%w: patch produced %d bytes, want %d", ErrPatchApplication, w.n, want)
	}
	return nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
