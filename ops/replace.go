package ops

import (
	"bytes"

	"github.com/DataDog/zstd"
	"github.com/andybalholm/brotli"
	"github.com/dsnet/compress/bzip2"
	"github.com/remyoudompheng/go-liblzma"

	"github.com/StevenDoesStuffs/android-ota-extractor/update_metadata"
)

func execReplace(ctx *Context, op *update_metadata.InstallOperation) error {
	w := NewExtentWriter(ctx.Dst, op.DstExtents, ctx.BlockSize)
	return copyAll(w, bytes.NewReader(ctx.Blob), TotalBytes(op.DstExtents, ctx.BlockSize))
}

func execReplaceBZ(ctx *Context, op *update_metadata.InstallOperation) error {
	r, err := bzip2.NewReader(bytes.NewReader(ctx.Blob), nil)
	if err != nil {
		return err
	}
	defer r.Close()
	w := NewExtentWriter(ctx.Dst, op.DstExtents, ctx.BlockSize)
	return copyAll(w, r, TotalBytes(op.DstExtents, ctx.BlockSize))
}

func execReplaceXZ(ctx *Context, op *update_metadata.InstallOperation) error {
	r, err := xz.NewReader(bytes.NewReader(ctx.Blob))
	if err != nil {
		return err
	}
	defer r.Close()
	w := NewExtentWriter(ctx.Dst, op.DstExtents, ctx.BlockSize)
	return copyAll(w, r, TotalBytes(op.DstExtents, ctx.BlockSize))
}

func execReplaceBrotli(ctx *Context, op *update_metadata.InstallOperation) error {
	r := brotli.NewReader(bytes.NewReader(ctx.Blob))
	w := NewExtentWriter(ctx.Dst, op.DstExtents, ctx.BlockSize)
	return copyAll(w, r, TotalBytes(op.DstExtents, ctx.BlockSize))
}

func execReplaceZstd(ctx *Context, op *update_metadata.InstallOperation) error {
	r := zstd.NewReader(bytes.NewReader(ctx.Blob))
	defer r.Close()
	w := NewExtentWriter(ctx.Dst, op.DstExtents, ctx.BlockSize)
	return copyAll(w, r, TotalBytes(op.DstExtents, ctx.BlockSize))
}
