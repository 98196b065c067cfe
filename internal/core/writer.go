package core

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
)

// ArtifactWriter persists packaged variants.
//
// Layout:
//
//	{outputDir}/
//	  {filename}       (primary)
//	  {filename}.gz    (when Gzip is set, best compression)
//
// Both files always carry the same mtime. Content is fully materialized in
// memory and written to a temp file before being renamed into place, so a
// concurrent reader sees either the previous build or the new one.
type ArtifactWriter struct {
	Gzip bool
}

// NewArtifactWriter creates a writer that also produces gzip siblings when gz is set.
func NewArtifactWriter(gz bool) *ArtifactWriter {
	return &ArtifactWriter{Gzip: gz}
}

// Persist writes filename (and its .gz sibling) under outputDir and stamps
// every written file with mtime. It returns the written paths.
func (w *ArtifactWriter) Persist(outputDir, filename string, content []byte, mtime time.Time) ([]string, error) {
	if err := EnsureWritableDir(outputDir); err != nil {
		return nil, err
	}

	primary := filepath.Join(outputDir, filename)
	type pending struct {
		path string
		data []byte
	}
	writes := []pending{{path: primary, data: content}}

	if w.Gzip {
		zipped, err := gzipBytes(content, mtime)
		if err != nil {
			return nil, fmt.Errorf("gzip %s: %w", filename, err)
		}
		writes = append(writes, pending{path: primary + ".gz", data: zipped})
	}

	files := make([]string, 0, len(writes))
	for _, p := range writes {
		if err := WriteFileAtomic(p.path, p.data, 0644, mtime); err != nil {
			return nil, fmt.Errorf("writing %s: %w", p.path, err)
		}
		files = append(files, p.path)
	}

	// Timestamps are finalized last: a file only looks fresh once every
	// sibling is in place.
	for _, f := range files {
		if err := os.Chtimes(f, mtime, mtime); err != nil {
			return nil, fmt.Errorf("setting mtime on %s: %w", f, err)
		}
	}
	return files, nil
}

// EnsureWritableDir creates dir (recursively) when missing and verifies that
// files can be created in it.
func EnsureWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &OutputNotWritableError{Dir: dir, Err: err}
	}
	check, err := os.CreateTemp(dir, ".ram-writable-*")
	if err != nil {
		return &OutputNotWritableError{Dir: dir, Err: err}
	}
	name := check.Name()
	_ = check.Close()
	_ = os.Remove(name)
	return nil
}

func gzipBytes(content []byte, mtime time.Time) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	// A fixed header mtime keeps repeated builds byte-identical.
	zw.ModTime = mtime
	if _, err := zw.Write(content); err != nil {
		_ = zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFileAtomic writes data to a temp file beside path and renames it into
// place. A non-zero mtime is stamped on the file before the rename.
func WriteFileAtomic(path string, data []byte, perm os.FileMode, mtime time.Time) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	tmp, err := os.CreateTemp(dir, "."+base+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	_ = tmp.Sync() // best-effort durability
	if err := tmp.Close(); err != nil {
		return err
	}
	if !mtime.IsZero() {
		if err := os.Chtimes(tmpName, mtime, mtime); err != nil {
			return err
		}
	}
	return os.Rename(tmpName, path)
}
