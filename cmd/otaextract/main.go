// Command otaextract is the CLI surface around the core: "inspect" and
// "extract" subcommands, per spec.md §6. Argument parsing, progress
// bars, and colorized output live here; none of it is part of the core.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/colorstring"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/StevenDoesStuffs/android-ota-extractor/driver"
	"github.com/StevenDoesStuffs/android-ota-extractor/zipsource"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "inspect":
		err = runInspect(os.Args[2:])
	case "extract":
		err = runExtract(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, colorstring.Color("[red]error:[reset] "+err.Error()))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  otaextract inspect <file> [--dump-ops[=<names>]]
  otaextract extract --dst <dir> [--src <dir>] [--parts=<names>] [--skip-hash] [-T workers] <file>`)
}

// resolvePayload returns a plain on-disk path to payload.bin, extracting
// it from a zip archive into a temp file first if needed.
func resolvePayload(input string) (path string, cleanup func(), err error) {
	isZip, err := zipsource.IsZip(input)
	if err != nil {
		return "", nil, err
	}
	if !isZip {
		return input, func() {}, nil
	}

	tmp, err := os.CreateTemp("", "payload-*.bin")
	if err != nil {
		return "", nil, err
	}
	tmpPath := tmp.Name()
	tmp.Close()

	if err := zipsource.ExtractTo(input, tmpPath); err != nil {
		os.Remove(tmpPath)
		return "", nil, err
	}
	return tmpPath, func() { os.Remove(tmpPath) }, nil
}

func runInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	var dumpOpsArg string
	dumpAll := false
	fs.BoolFunc("dump-ops", "dump operations for named partitions, or all if no names given", func(s string) error {
		if s == "" || s == "true" {
			dumpAll = true
			return nil
		}
		dumpOpsArg = s
		return nil
	})
	// The payload file may come before the flags; the flag package stops
	// at the first non-flag argument, so move it to the end.
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		args = append(append([]string{}, args[1:]...), args[0])
	}
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("inspect: expected exactly one payload file argument")
	}

	path, cleanup, err := resolvePayload(fs.Arg(0))
	if err != nil {
		return err
	}
	defer cleanup()

	dumpOps := map[string]bool{}
	if dumpOpsArg != "" {
		for _, name := range strings.Split(dumpOpsArg, ",") {
			dumpOps[name] = true
		}
	}

	summary, err := driver.Inspect(path, dumpOps, dumpAll)
	if err != nil {
		return err
	}
	printSummary(summary)
	return nil
}

func printSummary(s *driver.Summary) {
	fmt.Printf("payload version: %d\n", s.Version)
	fmt.Printf("block size: %d\n", s.BlockSize)
	fmt.Printf("partitions: %d\n", len(s.Partitions))
	for _, p := range s.Partitions {
		fmt.Println(colorstring.Color(fmt.Sprintf("  [green]%s[reset]  old=%d new=%d ops=%d",
			p.Name, p.OldSize, p.NewSize, p.OperationCount)))
		for _, op := range p.Operations {
			fmt.Printf("    op %d: %s data_len=%d src_extents=%v dst_extents=%v data_hash=%v src_hash=%v\n",
				op.Index, op.Type, op.DataLength, op.SrcExtents, op.DstExtents, op.HasDataHash, op.HasSrcHash)
		}
	}
}

func runExtract(args []string) error {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	dst := fs.String("dst", "", "destination directory")
	src := fs.String("src", "", "source directory (required for incremental payloads)")
	parts := fs.String("parts", "", "comma-separated partition names (default: all)")
	skipHash := fs.Bool("skip-hash", false, "disable all hash verification")
	workers := fs.Int("T", 1, "partition-level worker pool size")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("extract: expected exactly one payload file argument")
	}
	if *dst == "" {
		return fmt.Errorf("extract: --dst is required")
	}
	if err := os.MkdirAll(*dst, 0755); err != nil {
		return err
	}

	path, cleanup, err := resolvePayload(fs.Arg(0))
	if err != nil {
		return err
	}
	defer cleanup()

	var partNames []string
	if *parts != "" {
		partNames = strings.Split(*parts, ",")
	}

	var bar *progressbar.ProgressBar
	showBar := term.IsTerminal(int(os.Stderr.Fd()))

	opts := driver.ExtractOptions{
		DstDir:   *dst,
		SrcDir:   *src,
		Parts:    partNames,
		SkipHash: *skipHash,
		Workers:  *workers,
		Progress: func(name string, done, total int, err error) {
			if bar == nil && showBar {
				bar = progressbar.Default(int64(total), "extracting")
			}
			if bar != nil {
				bar.Describe(filepath.Base(name))
				bar.Set(done)
			}
			if err != nil {
				fmt.Fprintln(os.Stderr, colorstring.Color("[red]FAIL[reset] "+name+": "+err.Error()))
			}
		},
	}

	return driver.Extract(context.Background(), path, opts)
}
