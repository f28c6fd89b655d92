package zip

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteArchive(t *testing.T) {
	dir := t.TempDir()
	one := filepath.Join(dir, "one.png")
	two := filepath.Join(dir, "two.png")
	if err := os.WriteFile(one, []byte("first"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(two, []byte("second"), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	entries := []Entry{
		{Name: "ref-a/prompt-1/one.png", Path: one},
		{Name: "ref-a/prompt-2/two.png", Path: two},
		{Name: "ref-a/prompt-3/gone.png", Path: filepath.Join(dir, "missing.png")},
	}
	if err := WriteArchive(&buf, entries); err != nil {
		t.Fatalf("WriteArchive: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("read archive back: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("archive has %d files, want 2 (missing source skipped)", len(zr.File))
	}

	got := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		got[f.Name] = string(data)
	}
	if got["ref-a/prompt-1/one.png"] != "first" || got["ref-a/prompt-2/two.png"] != "second" {
		t.Fatalf("unexpected archive contents: %v", got)
	}
}
