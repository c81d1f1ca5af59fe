package adapter

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"io"

	"github.com/quapdata/quap-validate/internal/archive"
)

// CSVAdapter streams row-oriented delimited text, decompressing .gz/.bz2/.zst
// wrappers transparently. The header row supplies the physical schema; every
// physical type is "string" and logical typing is left to the engine.
type CSVAdapter struct {
	delimiter rune
}

// NewCSV returns a delimited-text adapter. A zero delimiter means comma.
func NewCSV(delimiter rune) *CSVAdapter {
	return &CSVAdapter{delimiter: delimiter}
}

func (a *CSVAdapter) Open(path string) (Handle, error) {
	rc, err := archive.OpenReader(path)
	if err != nil {
		return nil, &CorruptionError{Path: path, Message: "cannot open delimited text", Cause: err}
	}

	cr := csv.NewReader(bufio.NewReaderSize(rc, 256<<10))
	if a.delimiter != 0 {
		cr.Comma = a.delimiter
	}
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		rc.Close()
		if errors.Is(err, io.EOF) {
			return nil, &CorruptionError{Path: path, Message: "empty file, no header row"}
		}
		return nil, &CorruptionError{Path: path, Message: "unreadable header row", Cause: err}
	}
	columns := make([]string, len(header))
	copy(columns, header)

	return &csvHandle{path: path, rc: rc, cr: cr, columns: columns}, nil
}

type csvHandle struct {
	path    string
	rc      io.ReadCloser
	cr      *csv.Reader
	columns []string
	closed  bool
}

func (h *csvHandle) SchemaProbe() (map[string]string, error) {
	out := make(map[string]string, len(h.columns))
	for _, c := range h.columns {
		out[c] = "string"
	}
	return out, nil
}

func (h *csvHandle) Chunks(ctx context.Context, chunkSize int) ChunkIter {
	return &csvChunkIter{h: h, ctx: ctx, size: chunkSize}
}

func (h *csvHandle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	return h.rc.Close()
}

type csvChunkIter struct {
	h     *csvHandle
	ctx   context.Context
	size  int
	chunk Chunk
	base  int64
	err   error
	done  bool
}

func (it *csvChunkIter) Next() bool {
	if it.done || it.err != nil {
		return false
	}
	if err := it.ctx.Err(); err != nil {
		it.err = err
		return false
	}

	rows := make([][]Cell, 0, it.size)
	for len(rows) < it.size {
		rec, err := it.h.cr.Read()
		if errors.Is(err, io.EOF) {
			it.done = true
			break
		}
		if err != nil {
			// Ragged rows and quoting faults are corruption mid-stream;
			// rows already collected in this chunk still count.
			it.err = &CorruptionError{Path: it.h.path, Message: "decode failure mid-scan", Cause: err}
			break
		}
		row := make([]Cell, len(rec))
		for i, v := range rec {
			row[i] = Cell{Raw: v, Null: v == ""}
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

func (it *csvChunkIter) Chunk() Chunk { return it.chunk }

func (it *csvChunkIter) Err() error {
	if it.done {
		return nil
	}
	return it.err
}
