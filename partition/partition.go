// Package partition orchestrates the ordered execution of one
// partition's operation list into a destination image file, per
// spec.md §4.4.
package partition

import (
	"io"
	"os"
	"path/filepath"

	"github.com/coreos/pkg/capnslog"

	otaextract "github.com/StevenDoesStuffs/android-ota-extractor"
	"github.com/StevenDoesStuffs/android-ota-extractor/ops"
	"github.com/StevenDoesStuffs/android-ota-extractor/update_metadata"
)

var plog = capnslog.NewPackageLogger("github.com/StevenDoesStuffs/android-ota-extractor", "partition")

// Options controls hash verification for one partition run.
type Options struct {
	// SkipHash disables every hash read, computation, and comparison in
	// this package, per spec.md §8 "When skip_hash is true, no hash is
	// read, computed, or compared by the core."
	SkipHash bool
}

// Update reconstructs pu's new image under dstDir, consuming pu's
// operations from reader and, when incremental operations are present,
// the old image under srcDir.
func Update(reader *otaextract.Reader, pu *update_metadata.PartitionUpdate, dstDir, srcDir string, opts Options) (err error) {
	blockSize := reader.BlockSize()
	dstPath := filepath.Join(dstDir, pu.PartitionName+".img")

	if cerr := CheckCoverage(pu, blockSize); cerr != nil {
		return cerr
	}

	needsSource := partitionNeedsSource(pu)
	if needsSource && srcDir == "" {
		return &otaextract.PayloadError{Kind: otaextract.ErrMissingSource, Partition: pu.PartitionName, OpIndex: -1, Pos: -1}
	}

	dstFile, err := os.OpenFile(dstPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return &otaextract.PayloadError{Kind: otaextract.ErrIO, Partition: pu.PartitionName, Path: dstPath, OpIndex: -1, Pos: -1, Err: err}
	}
	defer dstFile.Close()

	var newSize int64
	if pu.NewPartitionInfo != nil {
		newSize = int64(pu.NewPartitionInfo.Size)
	}
	if err := dstFile.Truncate(newSize); err != nil {
		return &otaextract.PayloadError{Kind: otaextract.ErrIO, Partition: pu.PartitionName, Path: dstPath, OpIndex: -1, Pos: -1, Err: err}
	}

	var srcFile *os.File
	if srcDir != "" {
		srcPath := filepath.Join(srcDir, pu.PartitionName+".img")
		srcFile, err = os.Open(srcPath)
		if err != nil {
			if needsSource {
				return &otaextract.PayloadError{Kind: otaextract.ErrMissingSource, Partition: pu.PartitionName, Path: srcPath, OpIndex: -1, Pos: -1, Err: err}
			}
		} else {
			defer srcFile.Close()
			if !opts.SkipHash && pu.OldPartitionInfo != nil && len(pu.OldPartitionInfo.Hash) != 0 {
				sum, herr := hashFilePrefix(srcFile, int64(pu.OldPartitionInfo.Size))
				if herr != nil {
					return &otaextract.PayloadError{Kind: otaextract.ErrIO, Partition: pu.PartitionName, Path: srcPath, OpIndex: -1, Pos: -1, Err: herr}
				}
				if sum != sliceTo32(pu.OldPartitionInfo.Hash) {
					return &otaextract.PayloadError{Kind: otaextract.ErrSourceHashMismatch, Partition: pu.PartitionName, Path: srcPath, OpIndex: -1, Pos: -1}
				}
			}
		}
	}

	for i, op := range pu.Operations {
		if !opts.SkipHash && len(op.SrcSha256Hash) != 0 {
			if srcFile == nil {
				return &otaextract.PayloadError{Kind: otaextract.ErrMissingSource, Partition: pu.PartitionName, OpIndex: i, Pos: -1}
			}
			sum, herr := hashExtents(srcFile, op.SrcExtents, blockSize)
			if herr != nil {
				return &otaextract.PayloadError{Kind: otaextract.ErrIO, Partition: pu.PartitionName, OpIndex: i, Pos: -1, Err: herr}
			}
			if sum != sliceTo32(op.SrcSha256Hash) {
				return &otaextract.PayloadError{Kind: otaextract.ErrSourceHashMismatch, Partition: pu.PartitionName, OpIndex: i, Pos: -1}
			}
		}

		blob, berr := reader.ReadBlob(op)
		if berr != nil {
			return berr
		}

		if !opts.SkipHash && len(op.DataSha256Hash) != 0 {
			sum := otaextract.Sum256(blob)
			if sum != sliceTo32(op.DataSha256Hash) {
				return &otaextract.PayloadError{Kind: otaextract.ErrDataHashMismatch, Partition: pu.PartitionName, OpIndex: i, Pos: -1}
			}
		}

		ctx := &ops.Context{Src: srcFile, Dst: dstFile, BlockSize: blockSize, Blob: blob}
		plog.Infof("partition %s: operation %d/%d (%s)", pu.PartitionName, i+1, len(pu.Operations), op.Type)
		if oerr := ops.Execute(ctx, op); oerr != nil {
			return classifyOpError(pu.PartitionName, i, oerr)
		}
	}

	if !opts.SkipHash && pu.NewPartitionInfo != nil && len(pu.NewPartitionInfo.Hash) != 0 {
		sum, herr := hashFilePrefix(dstFile, newSize)
		if herr != nil {
			return &otaextract.PayloadError{Kind: otaextract.ErrIO, Partition: pu.PartitionName, Path: dstPath, OpIndex: -1, Pos: -1, Err: herr}
		}
		if sum != sliceTo32(pu.NewPartitionInfo.Hash) {
			return &otaextract.PayloadError{Kind: otaextract.ErrDestinationHashMismatch, Partition: pu.PartitionName, Path: dstPath, OpIndex: -1, Pos: -1}
		}
	}

	plog.Infof("partition %s: wrote %s (%d bytes)", pu.PartitionName, dstPath, newSize)
	return nil
}

func partitionNeedsSource(pu *update_metadata.PartitionUpdate) bool {
	for _, op := range pu.Operations {
		if len(op.SrcExtents) != 0 {
			return true
		}
	}
	return false
}

func classifyOpError(partitionName string, idx int, err error) error {
	switch {
	case err == ops.ErrUnsupportedOperation, isWrapped(err, ops.ErrUnsupportedOperation):
		return &otaextract.PayloadError{Kind: otaextract.ErrUnsupportedOperation, Partition: partitionName, OpIndex: idx, Pos: -1, Err: err}
	case err == ops.ErrNoSource:
		return &otaextract.PayloadError{Kind: otaextract.ErrMissingSource, Partition: partitionName, OpIndex: idx, Pos: -1, Err: err}
	case isWrapped(err, ops.ErrPatchApplication):
		return &otaextract.PayloadError{Kind: otaextract.ErrPatchApplication, Partition: partitionName, OpIndex: idx, Pos: -1, Err: err}
	default:
		return &otaextract.PayloadError{Kind: otaextract.ErrDecompression, Partition: partitionName, OpIndex: idx, Pos: -1, Err: err}
	}
}

func isWrapped(err, target error) bool {
	for e := err; e != nil; {
		if e == target {
			return true
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		e = u.Unwrap()
	}
	return false
}

func hashFilePrefix(f *os.File, n int64) ([32]byte, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return [32]byte{}, err
	}
	h := otaextract.NewHasher()
	if _, err := io.CopyN(h, f, n); err != nil {
		return [32]byte{}, err
	}
	return h.Finalize(), nil
}

func hashExtents(f *os.File, extents []update_metadata.Extent, blockSize uint32) ([32]byte, error) {
	r := ops.NewExtentReader(f, extents, blockSize)
	h := otaextract.NewHasher()
	if _, err := io.Copy(h, r); err != nil {
		return [32]byte{}, err
	}
	return h.Finalize(), nil
}

func sliceTo32(b []byte) [32]byte {
	var out [32]byte
	copy(out[:], b)
	return out
}
