package ioutils

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// ErrInvalidZip reports a file that is not a ZIP archive.
var ErrInvalidZip = errors.New("invalid ZIP file format")

// ValidateZip reads every entry of the archive at path so the CRC of each
// one is checked.
func ValidateZip(path string) error {
	r, err := zip.OpenReader(path)
	if err != nil {
		if errors.Is(err, zip.ErrFormat) {
			return ErrInvalidZip
		}
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		if err := checkEntry(f); err != nil {
			return fmt.Errorf("corrupted entry %s: %w", f.Name, err)
		}
	}
	return nil
}

func checkEntry(f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = io.Copy(io.Discard, rc)
	return err
}

// ZipStatus is the validation result of one archive.
type ZipStatus struct {
	Path string
	Size int64
	Err  error
}

// Valid reports whether the archive passed validation.
func (s ZipStatus) Valid() bool {
	return s.Err == nil
}

// ValidateZips validates every *.zip file in dir, sorted by name.
func ValidateZips(dir string) ([]ZipStatus, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, err
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*.zip"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	statuses := make([]ZipStatus, 0, len(paths))
	for _, path := range paths {
		status := ZipStatus{Path: path}
		if info, err := os.Stat(path); err == nil {
			status.Size = info.Size()
		}
		status.Err = ValidateZip(path)
		statuses = append(statuses, status)
	}
	return statuses, nil
}
