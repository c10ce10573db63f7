// Package update_metadata holds a hand-maintained decoder for the
// DeltaArchiveManifest wire schema used by the Android A/B OTA updater
// (external/update_engine's update_metadata.proto). There is no protoc
// toolchain available in this build, so the schema is decoded field by
// field with google.golang.org/protobuf's low-level protowire package
// instead of through generated proto.Message code. Only a subset of the
// schema's fields is represented; everything else is skipped on decode.
package update_metadata

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Type is the InstallOperation.Type enum.
type Type int32

const (
	Type_REPLACE        Type = 0
	Type_REPLACE_BZ     Type = 1
	Type_MOVE           Type = 2 // historical COPY encoding, same semantics as SOURCE_COPY
	Type_BSDIFF         Type = 3
	Type_SOURCE_COPY    Type = 4
	Type_SOURCE_BSDIFF  Type = 5
	Type_ZERO           Type = 6
	Type_DISCARD        Type = 7
	Type_REPLACE_XZ     Type = 8
	Type_PUFFDIFF       Type = 9
	Type_BROTLI_BSDIFF  Type = 10
	Type_REPLACE_BROTLI Type = 11
	Type_REPLACE_ZSTD   Type = 13 // supplemented, see SPEC_FULL.md §4
)

func (t Type) String() string {
	switch t {
	case Type_REPLACE:
		return "REPLACE"
	case Type_REPLACE_BZ:
		return "REPLACE_BZ"
	case Type_MOVE:
		return "MOVE(COPY)"
	case Type_BSDIFF:
		return "BSDIFF"
	case Type_SOURCE_COPY:
		return "SOURCE_COPY"
	case Type_SOURCE_BSDIFF:
		return "SOURCE_BSDIFF"
	case Type_ZERO:
		return "ZERO"
	case Type_DISCARD:
		return "DISCARD"
	case Type_REPLACE_XZ:
		return "REPLACE_XZ"
	case Type_PUFFDIFF:
		return "PUFFDIFF"
	case Type_BROTLI_BSDIFF:
		return "BROTLI_BSDIFF"
	case Type_REPLACE_BROTLI:
		return "REPLACE_BROTLI"
	case Type_REPLACE_ZSTD:
		return "REPLACE_ZSTD"
	default:
		return fmt.Sprintf("Type(%d)", int32(t))
	}
}

// Extent is a contiguous block run on an image.
type Extent struct {
	StartBlock uint64
	NumBlocks  uint64
}

// InstallOperation is one entry in a PartitionUpdate's operation list.
type InstallOperation struct {
	Type           Type
	DataOffset     uint64
	DataLength     uint64
	SrcExtents     []Extent
	SrcLength      uint64
	DstExtents     []Extent
	DstLength      uint64
	DataSha256Hash []byte
	SrcSha256Hash  []byte
}

// PartitionInfo carries a size/hash pair for either side of an update.
type PartitionInfo struct {
	Size uint64
	Hash []byte
}

// PartitionUpdate is the unit of work for one partition.
type PartitionUpdate struct {
	PartitionName    string
	RunPostinstall   bool
	PostinstallPath  string
	OldPartitionInfo *PartitionInfo
	NewPartitionInfo *PartitionInfo
	Operations       []*InstallOperation
}

// DeltaArchiveManifest is the structured manifest embedded in a payload.
type DeltaArchiveManifest struct {
	BlockSize        uint32
	SignaturesOffset uint64
	SignaturesSize   uint64
	MinorVersion     uint64
	Partitions       []*PartitionUpdate
	MaxTimestamp     int64
}

// Field numbers, matching the public update_metadata.proto layout.
const (
	fieldManifestBlockSize        = 3
	fieldManifestSignaturesOffset = 4
	fieldManifestSignaturesSize   = 5
	fieldManifestMinorVersion     = 12
	fieldManifestPartitions       = 13
	fieldManifestMaxTimestamp     = 22

	fieldPartitionName            = 1
	fieldPartitionRunPostinstall  = 2
	fieldPartitionPostinstallPath = 3
	// fields 4 (filesystem_type) and 5 (new_partition_signature) are not
	// represented in PartitionUpdate and fall through to the decoder's
	// unknown-field skip path.
	fieldPartitionOldInfo    = 6
	fieldPartitionNewInfo    = 7
	fieldPartitionOperations = 8

	fieldOpType           = 1
	fieldOpDataOffset     = 2
	fieldOpDataLength     = 3
	fieldOpSrcExtents     = 4
	fieldOpSrcLength      = 5
	fieldOpDstExtents     = 6
	fieldOpDstLength      = 7
	fieldOpDataSha256Hash = 8
	fieldOpSrcSha256Hash  = 9

	fieldInfoSize = 1
	fieldInfoHash = 2

	fieldExtentStartBlock = 1
	fieldExtentNumBlocks  = 2
)

// ErrDecode wraps a protowire consumption failure with enough context to
// report to the caller as a ManifestDecodeError.
type ErrDecode struct {
	Context string
	Offset  int
}

func (e *ErrDecode) Error() string {
	return fmt.Sprintf("update_metadata: malformed %s at byte %d", e.Context, e.Offset)
}

// Unmarshal decodes a DeltaArchiveManifest from its protobuf wire bytes.
func Unmarshal(data []byte) (*DeltaArchiveManifest, error) {
	m := &DeltaArchiveManifest{BlockSize: 4096}
	orig := data
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, &ErrDecode{"manifest tag", len(orig) - len(data)}
		}
		data = data[n:]

		switch {
		case num == fieldManifestBlockSize && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, &ErrDecode{"block_size", len(orig) - len(data)}
			}
			m.BlockSize = uint32(v)
			data = data[n:]
		case num == fieldManifestSignaturesOffset && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, &ErrDecode{"signatures_offset", len(orig) - len(data)}
			}
			m.SignaturesOffset = v
			data = data[n:]
		case num == fieldManifestSignaturesSize && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, &ErrDecode{"signatures_size", len(orig) - len(data)}
			}
			m.SignaturesSize = v
			data = data[n:]
		case num == fieldManifestMinorVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, &ErrDecode{"minor_version", len(orig) - len(data)}
			}
			m.MinorVersion = v
			data = data[n:]
		case num == fieldManifestMaxTimestamp && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, &ErrDecode{"max_timestamp", len(orig) - len(data)}
			}
			m.MaxTimestamp = int64(v)
			data = data[n:]
		case num == fieldManifestPartitions && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, &ErrDecode{"partitions", len(orig) - len(data)}
			}
			pu, err := unmarshalPartitionUpdate(v)
			if err != nil {
				return nil, err
			}
			m.Partitions = append(m.Partitions, pu)
			data = data[n:]
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, &ErrDecode{"unknown manifest field", len(orig) - len(data)}
			}
			data = data[n:]
		}
	}
	return m, nil
}

func unmarshalPartitionUpdate(data []byte) (*PartitionUpdate, error) {
	pu := &PartitionUpdate{}
	orig := data
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, &ErrDecode{"partition tag", len(orig) - len(data)}
		}
		data = data[n:]

		switch {
		case num == fieldPartitionName && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, &ErrDecode{"partition_name", len(orig) - len(data)}
			}
			pu.PartitionName = string(v)
			data = data[n:]
		case num == fieldPartitionRunPostinstall && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, &ErrDecode{"run_postinstall", len(orig) - len(data)}
			}
			pu.RunPostinstall = v != 0
			data = data[n:]
		case num == fieldPartitionPostinstallPath && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, &ErrDecode{"postinstall_path", len(orig) - len(data)}
			}
			pu.PostinstallPath = string(v)
			data = data[n:]
		case num == fieldPartitionOldInfo && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, &ErrDecode{"old_partition_info", len(orig) - len(data)}
			}
			info, err := unmarshalPartitionInfo(v)
			if err != nil {
				return nil, err
			}
			pu.OldPartitionInfo = info
			data = data[n:]
		case num == fieldPartitionNewInfo && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, &ErrDecode{"new_partition_info", len(orig) - len(data)}
			}
			info, err := unmarshalPartitionInfo(v)
			if err != nil {
				return nil, err
			}
			pu.NewPartitionInfo = info
			data = data[n:]
		case num == fieldPartitionOperations && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, &ErrDecode{"operations", len(orig) - len(data)}
			}
			op, err := unmarshalInstallOperation(v)
			if err != nil {
				return nil, err
			}
			pu.Operations = append(pu.Operations, op)
			data = data[n:]
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, &ErrDecode{"unknown partition field", len(orig) - len(data)}
			}
			data = data[n:]
		}
	}
	return pu, nil
}

func unmarshalPartitionInfo(data []byte) (*PartitionInfo, error) {
	info := &PartitionInfo{}
	orig := data
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, &ErrDecode{"partition_info tag", len(orig) - len(data)}
		}
		data = data[n:]

		switch {
		case num == fieldInfoSize && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, &ErrDecode{"partition_info.size", len(orig) - len(data)}
			}
			info.Size = v
			data = data[n:]
		case num == fieldInfoHash && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, &ErrDecode{"partition_info.hash", len(orig) - len(data)}
			}
			info.Hash = append([]byte(nil), v...)
			data = data[n:]
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, &ErrDecode{"unknown partition_info field", len(orig) - len(data)}
			}
			data = data[n:]
		}
	}
	return info, nil
}

func unmarshalInstallOperation(data []byte) (*InstallOperation, error) {
	op := &InstallOperation{}
	orig := data
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, &ErrDecode{"operation tag", len(orig) - len(data)}
		}
		data = data[n:]

		switch {
		case num == fieldOpType && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, &ErrDecode{"operation.type", len(orig) - len(data)}
			}
			op.Type = Type(int32(v))
			data = data[n:]
		case num == fieldOpDataOffset && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, &ErrDecode{"operation.data_offset", len(orig) - len(data)}
			}
			op.DataOffset = v
			data = data[n:]
		case num == fieldOpDataLength && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, &ErrDecode{"operation.data_length", len(orig) - len(data)}
			}
			op.DataLength = v
			data = data[n:]
		case num == fieldOpSrcLength && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, &ErrDecode{"operation.src_length", len(orig) - len(data)}
			}
			op.SrcLength = v
			data = data[n:]
		case num == fieldOpDstLength && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, &ErrDecode{"operation.dst_length", len(orig) - len(data)}
			}
			op.DstLength = v
			data = data[n:]
		case num == fieldOpSrcExtents && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, &ErrDecode{"operation.src_extents", len(orig) - len(data)}
			}
			ext, err := unmarshalExtent(v)
			if err != nil {
				return nil, err
			}
			op.SrcExtents = append(op.SrcExtents, ext)
			data = data[n:]
		case num == fieldOpDstExtents && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, &ErrDecode{"operation.dst_extents", len(orig) - len(data)}
			}
			ext, err := unmarshalExtent(v)
			if err != nil {
				return nil, err
			}
			op.DstExtents = append(op.DstExtents, ext)
			data = data[n:]
		case num == fieldOpDataSha256Hash && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, &ErrDecode{"operation.data_sha256_hash", len(orig) - len(data)}
			}
			op.DataSha256Hash = append([]byte(nil), v...)
			data = data[n:]
		case num == fieldOpSrcSha256Hash && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, &ErrDecode{"operation.src_sha256_hash", len(orig) - len(data)}
			}
			op.SrcSha256Hash = append([]byte(nil), v...)
			data = data[n:]
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, &ErrDecode{"unknown operation field", len(orig) - len(data)}
			}
			data = data[n:]
		}
	}
	return op, nil
}

func unmarshalExtent(data []byte) (Extent, error) {
	ext := Extent{}
	orig := data
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return ext, &ErrDecode{"extent tag", len(orig) - len(data)}
		}
		data = data[n:]

		switch {
		case num == fieldExtentStartBlock && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return ext, &ErrDecode{"extent.start_block", len(orig) - len(data)}
			}
			ext.StartBlock = v
			data = data[n:]
		case num == fieldExtentNumBlocks && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return ext, &ErrDecode{"extent.num_blocks", len(orig) - len(data)}
			}
			ext.NumBlocks = v
			data = data[n:]
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return ext, &ErrDecode{"unknown extent field", len(orig) - len(data)}
			}
			data = data[n:]
		}
	}
	return ext, nil
}

// TotalBlocks sums NumBlocks across a slice of extents.
func TotalBlocks(extents []Extent) uint64 {
	var total uint64
	for _, e := range extents {
		total += e.NumBlocks
	}
	return total
}
