// Package archive normalizes compressed or archived inputs so adapters can
// work against a plain dataset file. Single-file compression is streamed to a
// temp directory; zip archives are extracted with path-traversal guarding and
// must contain exactly one dataset (or one shapefile bundle).
package archive

import (
	"archive/zip"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// UnpackError reports an input that could not be normalized into a single
// dataset file. Callers surface it as a corruption finding.
type UnpackError struct {
	Path    string
	Message string
	Cause   error
}

func (e *UnpackError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("unpack error: %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("unpack error: %s: %s", e.Path, e.Message)
}

func (e *UnpackError) Unwrap() error { return e.Cause }

var compressExts = map[string]struct{}{
	".gz":  {},
	".bz2": {},
	".zst": {},
}

// IsCompressed reports whether the path carries a single-file compression
// suffix handled by OpenReader.
func IsCompressed(path string) bool {
	_, ok := compressExts[strings.ToLower(filepath.Ext(path))]
	return ok
}

// IsArchive reports whether the path needs Normalize before an adapter can
// open it.
func IsArchive(path string) bool {
	p := strings.ToLower(path)
	return strings.HasSuffix(p, ".zip") || IsCompressed(p)
}

// OpenReader opens a file for streaming, transparently decompressing
// .gz/.bz2/.zst suffixes. The returned closer owns the underlying file.
func OpenReader(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, &UnpackError{Path: path, Message: "bad gzip stream", Cause: err}
		}
		return &wrappedReader{r: zr, closers: []io.Closer{zr, f}}, nil
	case ".bz2":
		return &wrappedReader{r: bzip2.NewReader(f), closers: []io.Closer{f}}, nil
	case ".zst":
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, &UnpackError{Path: path, Message: "bad zstd stream", Cause: err}
		}
		rc := zr.IOReadCloser()
		return &wrappedReader{r: rc, closers: []io.Closer{rc, f}}, nil
	}
	return f, nil
}

type wrappedReader struct {
	r       io.Reader
	closers []io.Closer
}

func (w *wrappedReader) Read(p []byte) (int, error) { return w.r.Read(p) }

func (w *wrappedReader) Close() error {
	var first error
	for _, c := range w.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Normalize resolves an input path to a dataset file an adapter can open
// directly. Plain files pass through untouched with a no-op cleanup.
// Compressed/archived inputs are materialized under a temp directory which
// the cleanup function removes.
func Normalize(path string) (string, func(), error) {
	noop := func() {}
	info, err := os.Stat(path)
	if err != nil {
		return "", noop, &UnpackError{Path: path, Message: "file not found", Cause: err}
	}
	if info.IsDir() {
		return "", noop, &UnpackError{Path: path, Message: "input is a directory"}
	}
	if !IsArchive(path) {
		return path, noop, nil
	}

	tmpDir, err := os.MkdirTemp("", "quap-unpack-*")
	if err != nil {
		return "", noop, fmt.Errorf("create unpack dir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(tmpDir) }

	var out string
	if strings.HasSuffix(strings.ToLower(path), ".zip") {
		out, err = extractZip(path, tmpDir)
	} else {
		out, err = decompressSingle(path, tmpDir)
	}
	if err != nil {
		cleanup()
		return "", noop, err
	}
	return out, cleanup, nil
}

func decompressSingle(path, tmpDir string) (string, error) {
	r, err := OpenReader(path)
	if err != nil {
		return "", err
	}
	defer r.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if name == "" {
		name = "dataset"
	}
	out := filepath.Join(tmpDir, name)
	f, err := os.Create(out)
	if err != nil {
		return "", fmt.Errorf("create decompressed file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", &UnpackError{Path: path, Message: "decompression failed", Cause: err}
	}
	return out, nil
}

func extractZip(path, tmpDir string) (string, error) {
	zr, err := zip.OpenReader(path)
	if errors.Is(err, zip.ErrInsecurePath) {
		return "", &UnpackError{Path: path, Message: "unsafe member path", Cause: err}
	}
	if err != nil {
		return "", &UnpackError{Path: path, Message: "cannot open zip", Cause: err}
	}
	defer zr.Close()

	var extracted []string
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		dest, err := safeJoin(tmpDir, f.Name)
		if err != nil {
			return "", &UnpackError{Path: path, Message: "unsafe member path", Cause: err}
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return "", fmt.Errorf("create extract dir: %w", err)
		}
		if err := extractMember(f, dest); err != nil {
			return "", &UnpackError{Path: path, Message: "extraction failed", Cause: err}
		}
		extracted = append(extracted, dest)
	}

	if len(extracted) == 0 {
		return "", &UnpackError{Path: path, Message: "archive contained no files"}
	}
	if len(extracted) == 1 {
		return extracted[0], nil
	}
	if shp := shapefileBundleRoot(extracted); shp != "" {
		return shp, nil
	}
	return "", &UnpackError{Path: path, Message: "archive contains multiple files and is not a single shapefile bundle"}
}

func extractMember(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, rc)
	return err
}

func safeJoin(root, name string) (string, error) {
	if strings.HasPrefix(name, "/") || strings.HasPrefix(name, "\\") {
		return "", fmt.Errorf("absolute member path %q", name)
	}
	clean := filepath.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("member path %q escapes archive root", name)
	}
	return filepath.Join(root, clean), nil
}

// shapefileBundleRoot returns the .shp path when the extracted files form
// exactly one shapefile dataset (one .shp with matching .dbf and .shx).
func shapefileBundleRoot(paths []string) string {
	var shp string
	for _, p := range paths {
		if strings.EqualFold(filepath.Ext(p), ".shp") {
			if shp != "" {
				return ""
			}
			shp = p
		}
	}
	if shp == "" {
		return ""
	}
	stem := strings.TrimSuffix(shp, filepath.Ext(shp))
	var hasDBF, hasSHX bool
	for _, p := range paths {
		if strings.TrimSuffix(p, filepath.Ext(p)) != stem {
			continue
		}
		switch strings.ToLower(filepath.Ext(p)) {
		case ".dbf":
			hasDBF = true
		case ".shx":
			hasSHX = true
		}
	}
	if hasDBF && hasSHX {
		return shp
	}
	return ""
}
