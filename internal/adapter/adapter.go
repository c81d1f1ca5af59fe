// Package adapter exposes uniform lazy chunked access over heterogeneous
// dataset formats: delimited text, Parquet, GeoPackage, and Shapefile. Each
// variant implements the same small capability set independently; format
// selection happens by extension.
package adapter

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Format identifies a source format family.
type Format string

const (
	FormatCSV        Format = "CSV"
	FormatParquet    Format = "GEOPARQUET"
	FormatGeoPackage Format = "GEOPACKAGE"
	FormatShapefile  Format = "SHAPEFILE"
)

// Cell is one value pulled from a dataset. Raw is the textual rendering of
// the physical value; logical typing is enforced later by the engine.
type Cell struct {
	Raw  string
	Null bool
}

// Chunk is an ordered, bounded batch of rows. Base is the number of data
// rows preceding this chunk, so row ordinals can be derived without the
// consumer counting. Chunks are consumed and discarded; never retained.
type Chunk struct {
	Columns []string
	Rows    [][]Cell
	Base    int64
}

// ChunkIter walks a handle's chunks in order. The sequence is finite and not
// restartable. After Next returns false, Err reports whether iteration ended
// cleanly or hit an I/O fault.
type ChunkIter interface {
	Next() bool
	Chunk() Chunk
	Err() error
}

// Handle is an open dataset, exclusively owned by one validation run.
type Handle interface {
	// SchemaProbe returns column name -> physical type from metadata only;
	// it never scans rows.
	SchemaProbe() (map[string]string, error)
	// Chunks starts pull-based iteration. Blocking I/O happens per pull.
	Chunks(ctx context.Context, chunkSize int) ChunkIter
	// Close releases the handle. Idempotent.
	Close() error
}

// Adapter opens a concrete file as a Handle.
type Adapter interface {
	Open(path string) (Handle, error)
}

// CorruptionError reports a file that cannot be opened or read as its
// declared format: bad magic bytes, unreadable header, missing sidecars,
// truncation mid-stream.
type CorruptionError struct {
	Path    string
	Message string
	Cause   error
}

func (e *CorruptionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("corrupted input: %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("corrupted input: %s: %s", e.Path, e.Message)
}

func (e *CorruptionError) Unwrap() error { return e.Cause }

// Detect maps a file extension to its format family. Compression suffixes on
// delimited text (.csv.gz etc.) are looked through.
func Detect(path string) (Format, error) {
	p := strings.ToLower(path)
	for _, suffix := range []string{".gz", ".bz2", ".zst"} {
		p = strings.TrimSuffix(p, suffix)
	}
	switch filepath.Ext(p) {
	case ".csv", ".tsv", ".txt":
		return FormatCSV, nil
	case ".parquet":
		return FormatParquet, nil
	case ".gpkg":
		return FormatGeoPackage, nil
	case ".shp":
		return FormatShapefile, nil
	}
	return "", fmt.Errorf("cannot detect format from extension of %q; pass an explicit format", path)
}

// ParseFormat validates a caller-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToUpper(s)) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatParquet:
		return FormatParquet, nil
	case FormatGeoPackage:
		return FormatGeoPackage, nil
	case FormatShapefile:
		return FormatShapefile, nil
	}
	return "", fmt.Errorf("unsupported format %q", s)
}

// Options carries format-specific knobs supplied by the caller.
type Options struct {
	// Delimiter overrides the field separator for delimited text.
	Delimiter rune
	// Layer selects the feature table for GeoPackage inputs; empty means
	// the first discovered layer.
	Layer string
}

// For returns the adapter implementation for a format.
func For(format Format, opts Options) (Adapter, error) {
	switch format {
	case FormatCSV:
		return NewCSV(opts.Delimiter), nil
	case FormatParquet:
		return NewParquet(), nil
	case FormatGeoPackage:
		return NewGeoPackage(opts.Layer), nil
	case FormatShapefile:
		return NewShapefile(), nil
	}
	return nil, fmt.Errorf("unsupported format %q", format)
}
