// Package zipsource is the thin, explicitly out-of-scope adapter around
// the outer OTA ZIP container (spec.md §1 "Out of scope" collaborators).
// The core (otaextract.Reader) only ever opens payload.bin by path, so
// this package's job is to locate payload.bin inside a ZIP archive and
// materialize it to a plain file the core can open and seek freely.
//
// Adapted from the teacher's ZipPayloadReader, which streamed payload.bin
// out of the archive on demand (useful when the source is a non-seekable
// network range-reader); ExtractTo instead copies it once to local disk
// up front, matching spec.md's "may be seeked" assumption about the
// payload path and its "streaming from a non-seekable source" non-goal.
package zipsource

import (
	"archive/zip"
	"errors"
	"io"
	"os"
	"strings"
)

// ErrNoPayload is returned when the archive has no payload.bin entry.
var ErrNoPayload = errors.New("zipsource: payload.bin not found in archive")

// ExtractTo copies the payload.bin entry of the zip at zipPath into a new
// file at destPath, overwriting any existing file there.
func ExtractTo(zipPath, destPath string) error {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return err
	}
	defer zr.Close()

	entry := findPayload(zr.File)
	if entry == nil {
		return ErrNoPayload
	}

	src, err := entry.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return err
	}
	return dst.Sync()
}

// IsZip reports whether the file at path begins with a local-file-header
// ZIP signature, mirroring the teacher's sniff-the-magic-bytes dispatch
// in cmd/main.go.
func IsZip(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	sig := make([]byte, 4)
	if _, err := io.ReadFull(f, sig); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return false, nil
		}
		return false, err
	}
	return string(sig) == "PK\x03\x04", nil
}

func findPayload(files []*zip.File) *zip.File {
	for _, f := range files {
		if strings.HasSuffix(f.Name, "payload.bin") {
			return f
		}
	}
	return nil
}
