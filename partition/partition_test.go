package partition

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	otaextract "github.com/StevenDoesStuffs/android-ota-extractor"
	"github.com/StevenDoesStuffs/android-ota-extractor/update_metadata"
)

const testBlockSize = 4096

// writePayload assembles a minimal v1 payload.bin (no signature field)
// wrapping the given manifest, and returns its path.
func writePayload(t *testing.T, manifest *update_metadata.DeltaArchiveManifest, dataBlobs [][]byte) string {
	t.Helper()

	manifestBytes := update_metadata.Marshal(manifest)

	path := filepath.Join(t.TempDir(), "payload.bin")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer f.Close()

	var hdr bytes.Buffer
	hdr.WriteString(otaextract.Magic)
	binary.Write(&hdr, binary.BigEndian, uint64(1))
	binary.Write(&hdr, binary.BigEndian, uint64(len(manifestBytes)))
	hdr.Write(manifestBytes)
	for _, b := range dataBlobs {
		hdr.Write(b)
	}

	if _, err := f.Write(hdr.Bytes()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return path
}

func sum32(b []byte) []byte {
	s := sha256.Sum256(b)
	return s[:]
}

func TestUpdateFullReplace(t *testing.T) {
	blob := bytes.Repeat([]byte("P"), testBlockSize)
	manifest := &update_metadata.DeltaArchiveManifest{
		BlockSize: testBlockSize,
		Partitions: []*update_metadata.PartitionUpdate{
			{
				PartitionName:    "boot",
				NewPartitionInfo: &update_metadata.PartitionInfo{Size: testBlockSize, Hash: sum32(blob)},
				Operations: []*update_metadata.InstallOperation{
					{
						Type:           update_metadata.Type_REPLACE,
						DataOffset:     0,
						DataLength:     uint64(len(blob)),
						DstExtents:     []update_metadata.Extent{{StartBlock: 0, NumBlocks: 1}},
						DataSha256Hash: sum32(blob),
					},
				},
			},
		},
	}

	path := writePayload(t, manifest, [][]byte{blob})
	reader, err := otaextract.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reader.Close()

	dstDir := t.TempDir()
	if err := Update(reader, manifest.Partitions[0], dstDir, "", Options{}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dstDir, "boot.img"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(got, blob) {
		t.Errorf("dest content mismatch")
	}
}

func TestUpdateDataHashMismatch(t *testing.T) {
	blob := bytes.Repeat([]byte("P"), testBlockSize)
	manifest := &update_metadata.DeltaArchiveManifest{
		BlockSize: testBlockSize,
		Partitions: []*update_metadata.PartitionUpdate{
			{
				PartitionName:    "boot",
				NewPartitionInfo: &update_metadata.PartitionInfo{Size: testBlockSize},
				Operations: []*update_metadata.InstallOperation{
					{
						Type:           update_metadata.Type_REPLACE,
						DataLength:     uint64(len(blob)),
						DstExtents:     []update_metadata.Extent{{StartBlock: 0, NumBlocks: 1}},
						DataSha256Hash: sum32([]byte("wrong expected hash.......!!!!!")),
					},
				},
			},
		},
	}

	path := writePayload(t, manifest, [][]byte{blob})
	reader, err := otaextract.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reader.Close()

	err = Update(reader, manifest.Partitions[0], t.TempDir(), "", Options{})
	var pe *otaextract.PayloadError
	if !errors.As(err, &pe) || pe.Kind != otaextract.ErrDataHashMismatch {
		t.Fatalf("Update error = %v, want ErrDataHashMismatch", err)
	}
}

func TestUpdateMissingSourceForIncremental(t *testing.T) {
	manifest := &update_metadata.DeltaArchiveManifest{
		BlockSize: testBlockSize,
		Partitions: []*update_metadata.PartitionUpdate{
			{
				PartitionName:    "system",
				NewPartitionInfo: &update_metadata.PartitionInfo{Size: testBlockSize},
				Operations: []*update_metadata.InstallOperation{
					{
						Type:       update_metadata.Type_SOURCE_COPY,
						SrcExtents: []update_metadata.Extent{{StartBlock: 0, NumBlocks: 1}},
						DstExtents: []update_metadata.Extent{{StartBlock: 0, NumBlocks: 1}},
					},
				},
			},
		},
	}

	path := writePayload(t, manifest, nil)
	reader, err := otaextract.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reader.Close()

	err = Update(reader, manifest.Partitions[0], t.TempDir(), "", Options{})
	var pe *otaextract.PayloadError
	if !errors.As(err, &pe) || pe.Kind != otaextract.ErrMissingSource {
		t.Fatalf("Update error = %v, want ErrMissingSource", err)
	}
}

func TestUpdateSkipHashIgnoresMismatch(t *testing.T) {
	blob := bytes.Repeat([]byte("P"), testBlockSize)
	manifest := &update_metadata.DeltaArchiveManifest{
		BlockSize: testBlockSize,
		Partitions: []*update_metadata.PartitionUpdate{
			{
				PartitionName:    "boot",
				NewPartitionInfo: &update_metadata.PartitionInfo{Size: testBlockSize, Hash: []byte("wrong")},
				Operations: []*update_metadata.InstallOperation{
					{
						Type:           update_metadata.Type_REPLACE,
						DataLength:     uint64(len(blob)),
						DstExtents:     []update_metadata.Extent{{StartBlock: 0, NumBlocks: 1}},
						DataSha256Hash: []byte("also wrong"),
					},
				},
			},
		},
	}

	path := writePayload(t, manifest, [][]byte{blob})
	reader, err := otaextract.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reader.Close()

	if err := Update(reader, manifest.Partitions[0], t.TempDir(), "", Options{SkipHash: true}); err != nil {
		t.Fatalf("Update with SkipHash: %v", err)
	}
}

func TestUpdateBsdiffPatchApplicationError(t *testing.T) {
	manifest := &update_metadata.DeltaArchiveManifest{
		BlockSize: testBlockSize,
		Partitions: []*update_metadata.PartitionUpdate{
			{
				PartitionName:    "system",
				NewPartitionInfo: &update_metadata.PartitionInfo{Size: testBlockSize},
				Operations: []*update_metadata.InstallOperation{
					{
						Type:       update_metadata.Type_SOURCE_BSDIFF,
						DataLength: uint64(len("not a bsdiff patch at all")),
						SrcExtents: []update_metadata.Extent{{StartBlock: 0, NumBlocks: 1}},
						DstExtents: []update_metadata.Extent{{StartBlock: 0, NumBlocks: 1}},
					},
				},
			},
		},
	}

	srcDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "system.img"), bytes.Repeat([]byte("Q"), testBlockSize), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	path := writePayload(t, manifest, [][]byte{[]byte("not a bsdiff patch at all")})
	reader, err := otaextract.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reader.Close()

	err = Update(reader, manifest.Partitions[0], t.TempDir(), srcDir, Options{})
	var pe *otaextract.PayloadError
	if !errors.As(err, &pe) || pe.Kind != otaextract.ErrPatchApplication {
		t.Fatalf("Update error = %v, want ErrPatchApplication", err)
	}
}

func TestUpdateUnsupportedOperation(t *testing.T) {
	manifest := &update_metadata.DeltaArchiveManifest{
		BlockSize: testBlockSize,
		Partitions: []*update_metadata.PartitionUpdate{
			{
				PartitionName:    "boot",
				NewPartitionInfo: &update_metadata.PartitionInfo{Size: testBlockSize},
				Operations: []*update_metadata.InstallOperation{
					{
						Type:       update_metadata.Type_PUFFDIFF,
						DstExtents: []update_metadata.Extent{{StartBlock: 0, NumBlocks: 1}},
					},
				},
			},
		},
	}

	path := writePayload(t, manifest, nil)
	reader, err := otaextract.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reader.Close()

	err = Update(reader, manifest.Partitions[0], t.TempDir(), "", Options{})
	var pe *otaextract.PayloadError
	if !errors.As(err, &pe) || pe.Kind != otaextract.ErrUnsupportedOperation {
		t.Fatalf("Update error = %v, want ErrUnsupportedOperation", err)
	}
}
