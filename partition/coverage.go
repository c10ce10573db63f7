package partition

import (
	"sort"
	"strconv"

	otaextract "github.com/StevenDoesStuffs/android-ota-extractor"
	"github.com/StevenDoesStuffs/android-ota-extractor/update_metadata"
)

// CheckCoverage verifies that the union of every operation's
// dst_extents covers [0, ceil(new_size/block_size)) exactly once, per
// spec.md §4.4. It runs independently of hash checking and is always
// performed.
func CheckCoverage(pu *update_metadata.PartitionUpdate, blockSize uint32) error {
	var newSize uint64
	if pu.NewPartitionInfo != nil {
		newSize = pu.NewPartitionInfo.Size
	}
	wantBlocks := (newSize + uint64(blockSize) - 1) / uint64(blockSize)

	type span struct{ start, end uint64 } // [start, end)
	var spans []span
	for _, op := range pu.Operations {
		for _, e := range op.DstExtents {
			spans = append(spans, span{e.StartBlock, e.StartBlock + e.NumBlocks})
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	var covered uint64
	for i, s := range spans {
		if s.start != covered {
			return malformed(pu.PartitionName, "destination extents leave a gap or overlap before block "+strconv.FormatUint(s.start, 10))
		}
		if i > 0 && s.start < spans[i-1].end {
			return malformed(pu.PartitionName, "destination extents overlap at block "+strconv.FormatUint(s.start, 10))
		}
		covered = s.end
	}
	if covered != wantBlocks {
		return malformed(pu.PartitionName, "destination extents cover "+strconv.FormatUint(covered, 10)+" blocks, want "+strconv.FormatUint(wantBlocks, 10))
	}
	return nil
}

func malformed(partition, msg string) error {
	return &otaextract.PayloadError{
		Kind:      otaextract.ErrMalformedManifest,
		Partition: partition,
		OpIndex:   -1,
		Pos:       -1,
		Err:       staticErr(msg),
	}
}

type staticErr string

func (e staticErr) Error() string { return string(e) }
