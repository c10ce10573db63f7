package zipsource

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func writeZip(t *testing.T, entries map[string][]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ota.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip.Create(%s): %v", name, err)
		}
		if _, err := w.Write(content); err != nil {
			t.Fatalf("zip write(%s): %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip.Close: %v", err)
	}
	return path
}

func TestExtractToFindsPayload(t *testing.T) {
	want := []byte("pretend payload bytes")
	zipPath := writeZip(t, map[string][]byte{
		"META-INF/com/android/metadata": []byte("ota-type=AB\n"),
		"payload.bin":                   want,
		"payload_properties.txt":        []byte("FILE_HASH=abc"),
	})

	destPath := filepath.Join(t.TempDir(), "extracted.bin")
	if err := ExtractTo(zipPath, destPath); err != nil {
		t.Fatalf("ExtractTo: %v", err)
	}

	got, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtractToNoPayloadEntry(t *testing.T) {
	zipPath := writeZip(t, map[string][]byte{"README.txt": []byte("nothing here")})
	err := ExtractTo(zipPath, filepath.Join(t.TempDir(), "out.bin"))
	if err != ErrNoPayload {
		t.Fatalf("ExtractTo error = %v, want ErrNoPayload", err)
	}
}

func TestIsZipDetectsMagic(t *testing.T) {
	zipPath := writeZip(t, map[string][]byte{"payload.bin": []byte("x")})
	isZip, err := IsZip(zipPath)
	if err != nil {
		t.Fatalf("IsZip: %v", err)
	}
	if !isZip {
		t.Error("IsZip = false, want true for a real zip file")
	}

	plainPath := filepath.Join(t.TempDir(), "payload.bin")
	if err := os.WriteFile(plainPath, []byte("CrAU\x00\x00\x00\x00"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	isZip, err = IsZip(plainPath)
	if err != nil {
		t.Fatalf("IsZip: %v", err)
	}
	if isZip {
		t.Error("IsZip = true, want false for a raw payload file")
	}
}

func TestIsZipShortFile(t *testing.T) {
	shortPath := filepath.Join(t.TempDir(), "tiny")
	if err := os.WriteFile(shortPath, []byte("ab"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	isZip, err := IsZip(shortPath)
	if err != nil {
		t.Fatalf("IsZip: %v", err)
	}
	if isZip {
		t.Error("IsZip = true, want false for a file shorter than the magic")
	}
}
