package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "simple", input: "Red Sunset", want: "red-sunset"},
		{name: "punctuation stripped", input: "a cat, in space!", want: "a-cat-in-space"},
		{name: "underscores become dashes", input: "ref_image_01.png", want: "ref-image-01png"},
		{name: "collapses runs", input: "a  --  b", want: "a-b"},
		{name: "cjk preserved", input: "城市 夜景", want: "城市-夜景"},
		{name: "empty", input: "   ", want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Slugify(tc.input); got != tc.want {
				t.Fatalf("Slugify(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "separators removed", input: `a/b\c:d`, want: "abcd"},
		{name: "whitespace dashed", input: "my  file.png", want: "my-file.png"},
		{name: "empty falls back", input: "???", want: "item"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeFilename(tc.input); got != tc.want {
				t.Fatalf("SanitizeFilename(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestDeleteFilesIgnoresMissing(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "keep.png")
	if err := os.WriteFile(existing, []byte("x"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	svc := NewFileService()
	if err := svc.DeleteFiles([]string{existing, filepath.Join(dir, "missing.png"), ""}); err != nil {
		t.Fatalf("DeleteFiles returned error: %v", err)
	}
	if _, err := os.Stat(existing); !os.IsNotExist(err) {
		t.Fatalf("existing file should be removed, stat err = %v", err)
	}
	// Second pass over the same paths must stay clean.
	if err := svc.DeleteFiles([]string{existing}); err != nil {
		t.Fatalf("repeated DeleteFiles returned error: %v", err)
	}
}

func TestSaveMockOutputLayout(t *testing.T) {
	dir := t.TempDir()
	ref := filepath.Join(dir, "ref.jpg")
	if err := os.WriteFile(ref, []byte("jpegdata"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	svc := NewFileService()
	out, err := svc.SaveMockOutput(ref, filepath.Join(dir, "out"), "Ref Image.jpg", "A cat in space")
	if err != nil {
		t.Fatalf("SaveMockOutput returned error: %v", err)
	}
	rel, err := filepath.Rel(filepath.Join(dir, "out"), out)
	if err != nil {
		t.Fatalf("rel: %v", err)
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 3 {
		t.Fatalf("unexpected layout %q", rel)
	}
	if parts[0] != "ref-imagejpg" {
		t.Fatalf("ref slug mismatch: %q", parts[0])
	}
	if parts[1] != "a-cat-in-space" {
		t.Fatalf("prompt slug mismatch: %q", parts[1])
	}
	data, err := os.ReadFile(out)
	if err != nil || string(data) != "jpegdata" {
		t.Fatalf("output content mismatch: %q err=%v", data, err)
	}
}

func TestTruncateKeepsRuneBoundary(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{name: "short unchanged", input: "abc", max: 80, want: "abc"},
		{name: "ascii cut at max", input: strings.Repeat("x", 100), max: 80, want: strings.Repeat("x", 80)},
		// 分 is 3 bytes; byte 80 falls inside a rune, so the cut backs
		// up to the previous boundary at 78.
		{name: "cjk backs up to boundary", input: strings.Repeat("分", 40), max: 80, want: strings.Repeat("分", 26)},
		{name: "boundary exactly at max", input: strings.Repeat("分", 40), max: 81, want: strings.Repeat("分", 27)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := truncate(tc.input, tc.max)
			if got != tc.want {
				t.Fatalf("truncate(%q, %d) = %q, want %q", tc.input, tc.max, got, tc.want)
			}
			if !utf8.ValidString(got) {
				t.Fatalf("truncate produced invalid UTF-8: %q", got)
			}
		})
	}
}

func TestTaskOutputDirLongCJKPrompt(t *testing.T) {
	got := TaskOutputDir("/base", "ref.png", strings.Repeat("城市夜景", 20), "task_1")
	parts := strings.Split(filepath.ToSlash(got), "/")
	promptSlug := parts[len(parts)-2]
	if len(promptSlug) > 80 {
		t.Fatalf("prompt segment is %d bytes, want <= 80", len(promptSlug))
	}
	if !utf8.ValidString(promptSlug) {
		t.Fatalf("prompt segment is invalid UTF-8: %q", promptSlug)
	}
}

func TestTaskOutputDir(t *testing.T) {
	got := TaskOutputDir("/base", "Ref.png", "night city", "task_1")
	want := filepath.Join("/base", "refpng", "night-city", "task_1")
	if got != want {
		t.Fatalf("TaskOutputDir = %q, want %q", got, want)
	}
}
