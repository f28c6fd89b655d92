// Package zip builds export archives from files on disk.
package zip

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
)

// Entry maps one file on disk to its path inside the archive.
type Entry struct {
	Name string
	Path string
}

// WriteArchive streams entries into w as a zip archive. Source files
// that disappeared since the entry list was built are skipped, any
// other error aborts the archive.
func WriteArchive(w io.Writer, entries []Entry) error {
	zw := zip.NewWriter(w)
	for _, entry := range entries {
		if err := addEntry(zw, entry); err != nil {
			zw.Close()
			return err
		}
	}
	return zw.Close()
}

func addEntry(zw *zip.Writer, entry Entry) error {
	f, err := os.Open(entry.Path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", entry.Path, err)
	}
	defer f.Close()

	dst, err := zw.Create(entry.Name)
	if err != nil {
		return fmt.Errorf("add %s: %w", entry.Name, err)
	}
	if _, err := io.Copy(dst, f); err != nil {
		return fmt.Errorf("write %s: %w", entry.Name, err)
	}
	return nil
}
