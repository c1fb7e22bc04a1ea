package zipindex

import (
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zip"
)

// ErrEntryNotFound is returned by OpenEntry when inner does not name a
// file within the archive.
var ErrEntryNotFound = errors.New("zipindex: entry not found")

// EntryReader is a handle over a single archive-hosted file's bytes.
// Byte reads reopen the archive for the duration of the handle, per
// spec.md's DESIGN NOTES: metadata answers are served from the Index's
// memory, but extraction still goes through the archive itself.
type EntryReader struct {
	zr *zip.ReadCloser
	rc io.ReadCloser
}

// OpenEntry opens zipPath and returns a reader positioned at the start of
// the entry named inner. The caller must Close the EntryReader when done.
func OpenEntry(zipPath, inner string) (*EntryReader, error) {
	inner = normalizeInner(inner)

	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("zipindex: open %s: %w", zipPath, err)
	}

	for _, f := range zr.File {
		name := normalizeInner(f.Name)
		if name != inner || f.FileInfo().IsDir() {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			_ = zr.Close()

			return nil, fmt.Errorf("zipindex: open entry %s in %s: %w", inner, zipPath, err)
		}

		return &EntryReader{zr: zr, rc: rc}, nil
	}

	_ = zr.Close()

	return nil, fmt.Errorf("%w: %s in %s", ErrEntryNotFound, inner, zipPath)
}

// Read implements io.Reader.
func (e *EntryReader) Read(p []byte) (int, error) {
	n, err := e.rc.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("zipindex: read entry: %w", err)
	}

	return n, err //nolint:wrapcheck
}

// Close releases the entry reader and the underlying archive handle.
func (e *EntryReader) Close() error {
	err1 := e.rc.Close()
	err2 := e.zr.Close()

	if err1 != nil {
		return fmt.Errorf("zipindex: close entry: %w", err1)
	}
	if err2 != nil {
		return fmt.Errorf("zipindex: close archive: %w", err2)
	}

	return nil
}

// ReadAll reads the entry named inner from zipPath fully into memory, for
// small-file in-memory serving paths.
func ReadAll(zipPath, inner string) ([]byte, error) {
	er, err := OpenEntry(zipPath, inner)
	if err != nil {
		return nil, err
	}
	defer er.Close() //nolint:errcheck

	data, err := io.ReadAll(er)
	if err != nil {
		return nil, fmt.Errorf("zipindex: read all %s in %s: %w", inner, zipPath, err)
	}

	return data, nil
}
