// Package driver is the top-level entry point of the core (spec.md
// §4.5): given a payload, a destination directory, an optional source
// directory, and a partition filter, it iterates the selected
// partitions and delegates to package partition, or produces a
// structured manifest summary in inspect mode.
package driver

import (
	"context"
	"sync"

	"github.com/coreos/pkg/capnslog"
	"github.com/panjf2000/ants/v2"

	otaextract "github.com/StevenDoesStuffs/android-ota-extractor"
	"github.com/StevenDoesStuffs/android-ota-extractor/partition"
	"github.com/StevenDoesStuffs/android-ota-extractor/update_metadata"
)

var plog = capnslog.NewPackageLogger("github.com/StevenDoesStuffs/android-ota-extractor", "driver")

// ExtractOptions configures one extract run.
type ExtractOptions struct {
	DstDir string
	SrcDir string
	// Parts selects which partitions to process by name. Empty or nil
	// means all partitions in manifest order.
	Parts []string
	// SkipHash disables all hash verification, per spec.md §8.
	SkipHash bool
	// Workers bounds partition-level parallelism. 0 or 1 means
	// sequential processing; parallelism is a free implementation
	// choice per spec.md §5, not required for correctness.
	Workers int
	// Progress, when non-nil, is called once per completed partition
	// (success or failure) for progress reporting by the caller.
	Progress func(partitionName string, done, total int, err error)
}

// Extract opens payloadPath and reconstructs every selected partition
// under opts.DstDir.
func Extract(ctx context.Context, payloadPath string, opts ExtractOptions) error {
	reader, err := otaextract.Open(payloadPath)
	if err != nil {
		return err
	}
	defer reader.Close()

	selected, err := selectPartitions(reader.Partitions(), opts.Parts)
	if err != nil {
		return err
	}

	popts := partition.Options{SkipHash: opts.SkipHash}

	if opts.Workers <= 1 {
		for i, pu := range selected {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			err := partition.Update(reader, pu, opts.DstDir, opts.SrcDir, popts)
			if opts.Progress != nil {
				opts.Progress(pu.PartitionName, i+1, len(selected), err)
			}
			if err != nil {
				return err
			}
		}
		return nil
	}

	return extractParallel(ctx, reader, selected, opts, popts)
}

func extractParallel(ctx context.Context, reader *otaextract.Reader, selected []*update_metadata.PartitionUpdate, opts ExtractOptions, popts partition.Options) error {
	pool, err := ants.NewPool(opts.Workers)
	if err != nil {
		return err
	}
	defer pool.Release()

	var (
		mu       sync.Mutex
		firstErr error
		wg       sync.WaitGroup
		done     int
	)
	total := len(selected)

	for _, pu := range selected {
		if ctx.Err() != nil {
			break
		}
		mu.Lock()
		if firstErr != nil {
			mu.Unlock()
			break
		}
		mu.Unlock()

		pu := pu
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			err := partition.Update(reader, pu, opts.DstDir, opts.SrcDir, popts)
			mu.Lock()
			done++
			if err != nil && firstErr == nil {
				firstErr = err
			}
			progressDone, progressErr := done, err
			mu.Unlock()
			if opts.Progress != nil {
				opts.Progress(pu.PartitionName, progressDone, total, progressErr)
			}
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			if firstErr == nil {
				firstErr = submitErr
			}
			mu.Unlock()
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

func selectPartitions(all []*update_metadata.PartitionUpdate, names []string) ([]*update_metadata.PartitionUpdate, error) {
	if len(names) == 0 {
		return all, nil
	}
	byName := make(map[string]*update_metadata.PartitionUpdate, len(all))
	for _, p := range all {
		byName[p.PartitionName] = p
	}
	out := make([]*update_metadata.PartitionUpdate, 0, len(names))
	for _, name := range names {
		p, ok := byName[name]
		if !ok {
			return nil, &otaextract.PayloadError{Kind: otaextract.ErrUnknownPartition, Partition: name, OpIndex: -1, Pos: -1}
		}
		out = append(out, p)
	}
	return out, nil
}
