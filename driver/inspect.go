package driver

import (
	otaextract "github.com/StevenDoesStuffs/android-ota-extractor"
	"github.com/StevenDoesStuffs/android-ota-extractor/update_metadata"
)

// OperationSummary is one line of an operation-level dump.
type OperationSummary struct {
	Index       int
	Type        update_metadata.Type
	SrcExtents  []update_metadata.Extent
	DstExtents  []update_metadata.Extent
	DataLength  uint64
	HasDataHash bool
	HasSrcHash  bool
}

// PartitionSummary is the inspect-mode metadata for one partition.
type PartitionSummary struct {
	Name           string
	OldSize        uint64
	NewSize        uint64
	OldHash        []byte
	NewHash        []byte
	OperationCount int
	// Operations is populated only for partitions named in the
	// --dump-ops filter, or for every partition when --dump-ops is given
	// without names; it is nil when --dump-ops is absent.
	Operations []OperationSummary
}

// Summary is the structured result of inspect mode: manifest-level
// metadata plus per-partition metadata, per spec.md §4.2's Inspect
// surface. Printing it is the CLI adapter's job, not the core's.
type Summary struct {
	Version    uint64
	BlockSize  uint32
	Partitions []PartitionSummary
}

// Inspect decodes payloadPath's envelope and manifest without executing
// any operation, and returns a structured summary. dumpOps names the
// partitions whose operations should be included in full; a nil or empty
// dumpOps names none. dumpAll includes the operations of every partition
// regardless of dumpOps.
func Inspect(payloadPath string, dumpOps map[string]bool, dumpAll bool) (*Summary, error) {
	reader, err := otaextract.Open(payloadPath)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	s := &Summary{Version: reader.Version, BlockSize: reader.BlockSize()}
	for _, pu := range reader.Partitions() {
		ps := PartitionSummary{Name: pu.PartitionName, OperationCount: len(pu.Operations)}
		if pu.OldPartitionInfo != nil {
			ps.OldSize = pu.OldPartitionInfo.Size
			ps.OldHash = pu.OldPartitionInfo.Hash
		}
		if pu.NewPartitionInfo != nil {
			ps.NewSize = pu.NewPartitionInfo.Size
			ps.NewHash = pu.NewPartitionInfo.Hash
		}

		if dumpAll || dumpOps[pu.PartitionName] {
			ps.Operations = make([]OperationSummary, len(pu.Operations))
			for i, op := range pu.Operations {
				ps.Operations[i] = OperationSummary{
					Index:       i,
					Type:        op.Type,
					SrcExtents:  op.SrcExtents,
					DstExtents:  op.DstExtents,
					DataLength:  op.DataLength,
					HasDataHash: len(op.DataSha256Hash) != 0,
					HasSrcHash:  len(op.SrcSha256Hash) != 0,
				}
			}
		}

		s.Partitions = append(s.Partitions, ps)
	}
	return s, nil
}
