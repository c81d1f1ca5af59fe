package adapter

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"strings"

	shp "github.com/jonas-p/go-shp"
)

// GeometryColumn is the synthetic column name under which a shapefile's
// geometry is exposed alongside its DBF attributes.
const GeometryColumn = "geometry"

// ShapefileAdapter reads ESRI shapefiles. The .shx and .dbf sidecars must be
// present with the same base name, and their record counts must agree,
// before any row is yielded.
type ShapefileAdapter struct{}

func NewShapefile() *ShapefileAdapter { return &ShapefileAdapter{} }

func (a *ShapefileAdapter) Open(path string) (Handle, error) {
	stem := strings.TrimSuffix(path, ".shp")
	shxPath, dbfPath := stem+".shx", stem+".dbf"
	for _, sidecar := range []string{shxPath, dbfPath} {
		if _, err := os.Stat(sidecar); err != nil {
			return nil, &CorruptionError{Path: path, Message: "missing sidecar " + sidecar, Cause: err}
		}
	}

	shxCount, err := shxRecordCount(shxPath)
	if err != nil {
		return nil, &CorruptionError{Path: path, Message: "unreadable .shx index", Cause: err}
	}
	dbfCount, err := dbfRecordCount(dbfPath)
	if err != nil {
		return nil, &CorruptionError{Path: path, Message: "unreadable .dbf header", Cause: err}
	}
	if shxCount != dbfCount {
		return nil, &CorruptionError{Path: path, Message: fmt.Sprintf(
			"sidecar record counts disagree: .shx has %d, .dbf has %d", shxCount, dbfCount)}
	}

	r, err := shp.Open(path)
	if err != nil {
		return nil, &CorruptionError{Path: path, Message: "unreadable shapefile header", Cause: err}
	}

	fields := r.Fields()
	columns := make([]string, 0, len(fields)+1)
	types := make(map[string]string, len(fields)+1)
	for _, f := range fields {
		name := f.String()
		columns = append(columns, name)
		types[name] = dbfFieldType(f.Fieldtype)
	}
	columns = append(columns, GeometryColumn)
	types[GeometryColumn] = "geometry"

	return &shapefileHandle{path: path, r: r, columns: columns, types: types, nAttrs: len(fields)}, nil
}

// shxRecordCount derives the record count from the .shx file length: a fixed
// 100-byte header followed by one 8-byte entry per record.
func shxRecordCount(path string) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	size := info.Size()
	if size < 100 || (size-100)%8 != 0 {
		return 0, fmt.Errorf("implausible .shx size %d", size)
	}
	return int((size - 100) / 8), nil
}

// dbfRecordCount reads the record count from bytes 4..8 of the DBF header.
func dbfRecordCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	var header [8]byte
	if _, err := f.ReadAt(header[:], 0); err != nil {
		return 0, err
	}
	return int(binary.LittleEndian.Uint32(header[4:8])), nil
}

func dbfFieldType(t byte) string {
	switch t {
	case 'N':
		return "numeric"
	case 'F':
		return "float"
	case 'D':
		return "date"
	case 'L':
		return "bool"
	default:
		return "string"
	}
}

type shapefileHandle struct {
	path    string
	r       *shp.Reader
	columns []string
	types   map[string]string
	nAttrs  int
	closed  bool
}

func (h *shapefileHandle) SchemaProbe() (map[string]string, error) {
	out := make(map[string]string, len(h.types))
	for k, v := range h.types {
		out[k] = v
	}
	return out, nil
}

func (h *shapefileHandle) Chunks(ctx context.Context, chunkSize int) ChunkIter {
	return &shapefileChunkIter{h: h, ctx: ctx, size: chunkSize}
}

func (h *shapefileHandle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	return h.r.Close()
}

type shapefileChunkIter struct {
	h     *shapefileHandle
	ctx   context.Context
	size  int
	chunk Chunk
	base  int64
	err   error
	done  bool
}

func (it *shapefileChunkIter) Next() bool {
	if it.done || it.err != nil {
		return false
	}
	if err := it.ctx.Err(); err != nil {
		it.err = err
		return false
	}

	rows := make([][]Cell, 0, it.size)
	for len(rows) < it.size {
		if !it.h.r.Next() {
			if err := it.h.r.Err(); err != nil {
				it.err = &CorruptionError{Path: it.h.path, Message: "shape decode failure mid-scan", Cause: err}
			} else {
				it.done = true
			}
			break
		}
		n, shape := it.h.r.Shape()
		row := make([]Cell, it.h.nAttrs+1)
		for i := 0; i < it.h.nAttrs; i++ {
			v := strings.TrimRight(it.h.r.ReadAttribute(n, i), "\x00 ")
			row[i] = Cell{Raw: v, Null: v == ""}
		}
		if _, isNull := shape.(*shp.Null); shape == nil || isNull {
			row[it.h.nAttrs] = Cell{Null: true}
		} else {
			row[it.h.nAttrs] = Cell{Raw: fmt.Sprintf("%T", shape)}
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return false
	}
	it.chunk = Chunk{Columns: it.h.columns, Rows: rows, Base: it.base}
	it.base += int64(len(rows))
	return true
}

func (it *shapefileChunkIter) Chunk() Chunk { return it.chunk }

func (it *shapefileChunkIter) Err() error {
	if it.done {
		return nil
	}
	return it.err
}
