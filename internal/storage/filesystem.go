package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
	"unicode/utf8"
)

// FileService persists generation outputs onto the local filesystem and
// provides the directory/delete helpers the scheduler depends on.
type FileService struct{}

// NewFileService returns a FileService.
func NewFileService() *FileService {
	return &FileService{}
}

// EnsureDir creates dirPath and any missing parents.
func (s *FileService) EnsureDir(dirPath string) error {
	if dirPath == "" {
		return errors.New("storage: directory path is required")
	}
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		return fmt.Errorf("storage: ensure directory: %w", err)
	}
	return nil
}

// DeleteFiles removes each path, ignoring files that are already gone
// so repeated deletions stay idempotent.
func (s *FileService) DeleteFiles(paths []string) error {
	var firstErr error
	for _, target := range paths {
		if target == "" {
			continue
		}
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("storage: delete %s: %w", target, err)
			}
		}
	}
	return firstErr
}

// WriteFile writes data at path, creating parent directories as needed.
func (s *FileService) WriteFile(path string, data []byte) error {
	if err := s.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("storage: write file: %w", err)
	}
	return nil
}

// SaveMockOutput copies the reference image into the per-task layout
// used by the offline runner, returning the written path.
func (s *FileService) SaveMockOutput(referencePath, baseOutputDir, refName, promptText string) (string, error) {
	promptSlug := truncate(Slugify(promptText), 80)
	if promptSlug == "" {
		promptSlug = "prompt"
	}
	refSlug := Slugify(refName)
	if refSlug == "" {
		refSlug = "reference"
	}
	ext := filepath.Ext(referencePath)
	if ext == "" {
		ext = ".png"
	}

	targetDir := filepath.Join(baseOutputDir, refSlug, promptSlug)
	if err := s.EnsureDir(targetDir); err != nil {
		return "", err
	}

	outputPath := filepath.Join(targetDir, strconv.FormatInt(time.Now().UnixMilli(), 10)+ext)
	if err := copyFile(referencePath, outputPath); err != nil {
		return "", fmt.Errorf("storage: save mock output: %w", err)
	}
	return outputPath, nil
}

// TaskOutputDir derives the idempotent per-task output directory, keyed
// by task identity so repeated attempts land in the same place.
func TaskOutputDir(baseDir, refName, promptText, taskID string) string {
	refSlug := Slugify(refName)
	if refSlug == "" {
		refSlug = "reference"
	}
	promptSlug := truncate(Slugify(promptText), 80)
	if promptSlug == "" {
		promptSlug = "prompt"
	}
	return filepath.Join(baseDir, refSlug, promptSlug, taskID)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// truncate caps s at max bytes without cutting a multi-byte rune,
// slugs keep CJK characters and must stay valid UTF-8 as path segments.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
