package ops

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/dsnet/compress/bzip2"

	"github.com/StevenDoesStuffs/android-ota-extractor/update_metadata"
)

// buildExtraOnlyPatch assembles a bsdiff4 patch that ignores the old
// image entirely and reconstructs newData as one extra block, mirroring
// bsdiff/bsdiff_test.go's fixture builder.
func buildExtraOnlyPatch(t *testing.T, newData []byte) []byte {
	t.Helper()

	ctrl := make([]byte, 24)
	binary.LittleEndian.PutUint64(ctrl[8:16], uint64(len(newData)))

	compress := func(p []byte) []byte {
		var buf bytes.Buffer
		w, err := bzip2.NewWriter(&buf, nil)
		if err != nil {
			t.Fatalf("bzip2.NewWriter: %v", err)
		}
		if _, err := w.Write(p); err != nil {
			t.Fatalf("bzip2 write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("bzip2 close: %v", err)
		}
		return buf.Bytes()
	}

	ctrlBZ, diffBZ, extraBZ := compress(ctrl), compress(nil), compress(newData)

	var header [32]byte
	copy(header[0:8], "BSDIFF40")
	binary.LittleEndian.PutUint64(header[8:16], uint64(len(ctrlBZ)))
	binary.LittleEndian.PutUint64(header[16:24], uint64(len(diffBZ)))
	binary.LittleEndian.PutUint64(header[24:32], uint64(len(newData)))

	var out bytes.Buffer
	out.Write(header[:])
	out.Write(ctrlBZ)
	out.Write(diffBZ)
	out.Write(extraBZ)
	return out.Bytes()
}

func TestExecuteSourceBsdiff(t *testing.T) {
	const blockSize = 16
	want := bytes.Repeat([]byte("U"), blockSize)
	patch := buildExtraOnlyPatch(t, want)

	src := newDstFile(t, blockSize)
	dst := newDstFile(t, blockSize)

	op := &update_metadata.InstallOperation{
		Type:       update_metadata.Type_SOURCE_BSDIFF,
		SrcExtents: []update_metadata.Extent{{StartBlock: 0, NumBlocks: 1}},
		DstExtents: []update_metadata.Extent{{StartBlock: 0, NumBlocks: 1}},
	}
	if err := Execute(&Context{Src: src, Dst: dst, BlockSize: blockSize, Blob: patch}, op); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := readExtents(t, dst, op.DstExtents, blockSize); !bytes.Equal(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExecuteBrotliBsdiff(t *testing.T) {
	const blockSize = 16
	want := bytes.Repeat([]byte("V"), blockSize)
	patch := buildExtraOnlyPatch(t, want)

	var compressed bytes.Buffer
	bw := brotli.NewWriter(&compressed)
	if _, err := bw.Write(patch); err != nil {
		t.Fatalf("brotli write: %v", err)
	}
	if err := bw.Close(); err != nil {
		t.Fatalf("brotli close: %v", err)
	}

	src := newDstFile(t, blockSize)
	dst := newDstFile(t, blockSize)

	op := &update_metadata.InstallOperation{
		Type:       update_metadata.Type_BROTLI_BSDIFF,
		SrcExtents: []update_metadata.Extent{{StartBlock: 0, NumBlocks: 1}},
		DstExtents: []update_metadata.Extent{{StartBlock: 0, NumBlocks: 1}},
	}
	if err := Execute(&Context{Src: src, Dst: dst, BlockSize: blockSize, Blob: compressed.Bytes()}, op); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := readExtents(t, dst, op.DstExtents, blockSize); !bytes.Equal(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExecuteSourceBsdiffCorruptPatch(t *testing.T) {
	const blockSize = 16
	src := newDstFile(t, blockSize)
	dst := newDstFile(t, blockSize)

	op := &update_metadata.InstallOperation{
		Type:       update_metadata.Type_SOURCE_BSDIFF,
		SrcExtents: []update_metadata.Extent{{StartBlock: 0, NumBlocks: 1}},
		DstExtents: []update_metadata.Extent{{StartBlock: 0, NumBlocks: 1}},
	}
	err := Execute(&Context{Src: src, Dst: dst, BlockSize: blockSize, Blob: []byte("not a bsdiff patch at all")}, op)
	if !errors.Is(err, ErrPatchApplication) {
		t.Fatalf("Execute error = %v, want ErrPatchApplication", err)
	}
}

func TestExecuteSourceBsdiffMissingSource(t *testing.T) {
	const blockSize = 16
	dst := newDstFile(t, blockSize)
	op := &update_metadata.InstallOperation{
		Type:       update_metadata.Type_SOURCE_BSDIFF,
		SrcExtents: []update_metadata.Extent{{StartBlock: 0, NumBlocks: 1}},
		DstExtents: []update_metadata.Extent{{StartBlock: 0, NumBlocks: 1}},
	}
	err := Execute(&Context{Dst: dst, BlockSize: blockSize, Blob: []byte("not a real patch")}, op)
	if !errors.Is(err, ErrNoSource) {
		t.Fatalf("Execute error = %v, want ErrNoSource", err)
	}
}
