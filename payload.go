// Package otaextract decodes Android A/B OTA payload.bin envelopes and
// reconstructs partition images, following spec.md's payload envelope
// and manifest layout (§3, §6).
package otaextract

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/StevenDoesStuffs/android-ota-extractor/update_metadata"
)

// Magic is the four-byte prefix every payload begins with.
const Magic = "CrAU"

const (
	fixedHeaderSize = 4 + 8 + 8 // magic + version + manifest_size
	sigLenFieldSize = 4         // metadata_signature_size, version >= 2 only
)

// Reader opens a payload.bin, validates its envelope, decodes the
// embedded manifest, and exposes random-access retrieval of operation
// data blobs. The envelope and manifest are parsed once at Open and are
// immutable thereafter; blob reads may happen in any order afterwards.
type Reader struct {
	f    *os.File
	path string

	Version  uint64
	Manifest *update_metadata.DeltaArchiveManifest

	dataSectionStart int64
}

// Open validates and decodes the payload at path, per spec.md §4.2's
// Open contract.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &PayloadError{Kind: ErrIO, Path: path, OpIndex: -1, Pos: -1, Err: err}
	}
	r, err := decodeEnvelope(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func decodeEnvelope(f *os.File, path string) (*Reader, error) {
	var fixed struct {
		Magic        [4]byte
		Version      uint64
		ManifestSize uint64
	}
	if err := binary.Read(f, binary.BigEndian, &fixed); err != nil {
		return nil, &PayloadError{Kind: ErrTruncatedPayload, Path: path, OpIndex: -1, Pos: -1, Err: err}
	}
	if string(fixed.Magic[:]) != Magic {
		return nil, &PayloadError{Kind: ErrInvalidMagic, Path: path, OpIndex: -1, Pos: -1}
	}
	if fixed.Version != 1 && fixed.Version != 2 {
		return nil, &PayloadError{Kind: ErrUnsupportedVersion, Path: path, OpIndex: -1, Pos: -1,
			Err: staticErr("unsupported payload version")}
	}
	if fixed.ManifestSize == 0 {
		return nil, &PayloadError{Kind: ErrManifestDecode, Path: path, OpIndex: -1, Pos: -1,
			Err: staticErr("manifest_size is zero")}
	}

	var sigLen uint32
	headerSize := int64(fixedHeaderSize)
	if fixed.Version >= 2 {
		if err := binary.Read(f, binary.BigEndian, &sigLen); err != nil {
			return nil, &PayloadError{Kind: ErrTruncatedPayload, Path: path, OpIndex: -1, Pos: -1, Err: err}
		}
		headerSize += sigLenFieldSize
	}

	manifestBuf := make([]byte, fixed.ManifestSize)
	if _, err := io.ReadFull(f, manifestBuf); err != nil {
		return nil, &PayloadError{Kind: ErrTruncatedPayload, Path: path, OpIndex: -1, Pos: -1, Err: err}
	}

	manifest, err := update_metadata.Unmarshal(manifestBuf)
	if err != nil {
		return nil, &PayloadError{Kind: ErrManifestDecode, Path: path, OpIndex: -1, Pos: -1, Err: err}
	}

	dataSectionStart := headerSize + int64(fixed.ManifestSize) + int64(sigLen)

	fi, err := f.Stat()
	if err != nil {
		return nil, &PayloadError{Kind: ErrIO, Path: path, OpIndex: -1, Pos: -1, Err: err}
	}
	if fi.Size() < dataSectionStart {
		return nil, &PayloadError{Kind: ErrTruncatedPayload, Path: path, OpIndex: -1, Pos: dataSectionStart}
	}

	return &Reader{
		f:                f,
		path:             path,
		Version:          fixed.Version,
		Manifest:         manifest,
		dataSectionStart: dataSectionStart,
	}, nil
}

// BlockSize returns the manifest's declared block size.
func (r *Reader) BlockSize() uint32 {
	return r.Manifest.BlockSize
}

// Partitions returns the manifest's partitions in manifest order.
func (r *Reader) Partitions() []*update_metadata.PartitionUpdate {
	return r.Manifest.Partitions
}

// FindPartition returns the named partition, or nil if absent.
func (r *Reader) FindPartition(name string) *update_metadata.PartitionUpdate {
	for _, p := range r.Manifest.Partitions {
		if p.PartitionName == name {
			return p
		}
	}
	return nil
}

// ReadBlob returns exactly op.DataLength bytes starting at
// dataSectionStart + op.DataOffset. Operations with no data (ZERO,
// DISCARD, SOURCE_COPY) have DataLength 0 and this returns nil, nil.
// The returned slice is owned by the caller; ReadBlob never retains it.
func (r *Reader) ReadBlob(op *update_metadata.InstallOperation) ([]byte, error) {
	if op.DataLength == 0 {
		return nil, nil
	}
	buf := make([]byte, op.DataLength)
	n, err := r.f.ReadAt(buf, r.dataSectionStart+int64(op.DataOffset))
	if err != nil && err != io.EOF {
		return nil, &PayloadError{Kind: ErrIO, Path: r.path, OpIndex: -1,
			Pos: r.dataSectionStart + int64(op.DataOffset), Err: err}
	}
	if uint64(n) != op.DataLength {
		return nil, &PayloadError{Kind: ErrTruncatedPayload, Path: r.path, OpIndex: -1,
			Pos: r.dataSectionStart + int64(op.DataOffset)}
	}
	return buf, nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.f.Close()
}

type staticErr string

func (e staticErr) Error() string { return string(e) }
