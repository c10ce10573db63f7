package update_metadata

import "google.golang.org/protobuf/encoding/protowire"

// Marshal re-encodes a manifest to its protobuf wire form. It exists
// mainly so tests can build fixture payloads without a protoc toolchain;
// production use of this core only ever decodes manifests, per spec.md's
// "read/apply only" non-goal.
func Marshal(m *DeltaArchiveManifest) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldManifestBlockSize, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.BlockSize))
	if m.SignaturesOffset != 0 {
		b = protowire.AppendTag(b, fieldManifestSignaturesOffset, protowire.VarintType)
		b = protowire.AppendVarint(b, m.SignaturesOffset)
	}
	if m.SignaturesSize != 0 {
		b = protowire.AppendTag(b, fieldManifestSignaturesSize, protowire.VarintType)
		b = protowire.AppendVarint(b, m.SignaturesSize)
	}
	b = protowire.AppendTag(b, fieldManifestMinorVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, m.MinorVersion)
	for _, pu := range m.Partitions {
		b = protowire.AppendTag(b, fieldManifestPartitions, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalPartitionUpdate(pu))
	}
	if m.MaxTimestamp != 0 {
		b = protowire.AppendTag(b, fieldManifestMaxTimestamp, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.MaxTimestamp))
	}
	return b
}

func marshalPartitionUpdate(pu *PartitionUpdate) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldPartitionName, protowire.BytesType)
	b = protowire.AppendString(b, pu.PartitionName)
	if pu.RunPostinstall {
		b = protowire.AppendTag(b, fieldPartitionRunPostinstall, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	if pu.PostinstallPath != "" {
		b = protowire.AppendTag(b, fieldPartitionPostinstallPath, protowire.BytesType)
		b = protowire.AppendString(b, pu.PostinstallPath)
	}
	if pu.OldPartitionInfo != nil {
		b = protowire.AppendTag(b, fieldPartitionOldInfo, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalPartitionInfo(pu.OldPartitionInfo))
	}
	if pu.NewPartitionInfo != nil {
		b = protowire.AppendTag(b, fieldPartitionNewInfo, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalPartitionInfo(pu.NewPartitionInfo))
	}
	for _, op := range pu.Operations {
		b = protowire.AppendTag(b, fieldPartitionOperations, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalInstallOperation(op))
	}
	return b
}

func marshalPartitionInfo(info *PartitionInfo) []byte {
	var b []byte
	if info.Size != 0 {
		b = protowire.AppendTag(b, fieldInfoSize, protowire.VarintType)
		b = protowire.AppendVarint(b, info.Size)
	}
	if len(info.Hash) != 0 {
		b = protowire.AppendTag(b, fieldInfoHash, protowire.BytesType)
		b = protowire.AppendBytes(b, info.Hash)
	}
	return b
}

func marshalInstallOperation(op *InstallOperation) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldOpType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(int32(op.Type)))
	if op.DataLength != 0 || op.DataOffset != 0 {
		b = protowire.AppendTag(b, fieldOpDataOffset, protowire.VarintType)
		b = protowire.AppendVarint(b, op.DataOffset)
		b = protowire.AppendTag(b, fieldOpDataLength, protowire.VarintType)
		b = protowire.AppendVarint(b, op.DataLength)
	}
	for _, e := range op.SrcExtents {
		b = protowire.AppendTag(b, fieldOpSrcExtents, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalExtent(e))
	}
	if op.SrcLength != 0 {
		b = protowire.AppendTag(b, fieldOpSrcLength, protowire.VarintType)
		b = protowire.AppendVarint(b, op.SrcLength)
	}
	for _, e := range op.DstExtents {
		b = protowire.AppendTag(b, fieldOpDstExtents, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalExtent(e))
	}
	if op.DstLength != 0 {
		b = protowire.AppendTag(b, fieldOpDstLength, protowire.VarintType)
		b = protowire.AppendVarint(b, op.DstLength)
	}
	if len(op.DataSha256Hash) != 0 {
		b = protowire.AppendTag(b, fieldOpDataSha256Hash, protowire.BytesType)
		b = protowire.AppendBytes(b, op.DataSha256Hash)
	}
	if len(op.SrcSha256Hash) != 0 {
		b = protowire.AppendTag(b, fieldOpSrcSha256Hash, protowire.BytesType)
		b = protowire.AppendBytes(b, op.SrcSha256Hash)
	}
	return b
}

func marshalExtent(e Extent) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldExtentStartBlock, protowire.VarintType)
	b = protowire.AppendVarint(b, e.StartBlock)
	b = protowire.AppendTag(b, fieldExtentNumBlocks, protowire.VarintType)
	b = protowire.AppendVarint(b, e.NumBlocks)
	return b
}
