package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// GeoPackageAdapter reads feature tables out of a GeoPackage (a SQLite
// container). Layer discovery prefers the gpkg_contents catalog; containers
// without one fall back to plain sqlite_master enumeration, silently, so a
// bare SQLite table store still validates.
type GeoPackageAdapter struct {
	layer string
}

// NewGeoPackage returns a GeoPackage adapter. An empty layer selects the
// first discovered feature table.
func NewGeoPackage(layer string) *GeoPackageAdapter {
	return &GeoPackageAdapter{layer: layer}
}

func (a *GeoPackageAdapter) Open(path string) (Handle, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &CorruptionError{Path: path, Message: "cannot open geopackage", Cause: err}
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, &CorruptionError{Path: path, Message: "cannot open geopackage", Cause: err}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &CorruptionError{Path: path, Message: "not a readable sqlite container", Cause: err}
	}

	// Fast integrity screen before any table read.
	if msgs, err := quickCheck(db); err != nil {
		db.Close()
		return nil, &CorruptionError{Path: path, Message: "integrity check failed", Cause: err}
	} else if len(msgs) > 0 {
		db.Close()
		return nil, &CorruptionError{Path: path, Message: "integrity check reported: " + strings.Join(msgs, "; ")}
	}

	layer := a.layer
	if layer == "" {
		layer, err = discoverLayer(db, path)
		if err != nil {
			db.Close()
			return nil, err
		}
	}

	columns, types, err := tableColumns(db, layer)
	if err != nil {
		db.Close()
		return nil, &CorruptionError{Path: path, Message: fmt.Sprintf("cannot read layer %q", layer), Cause: err}
	}
	if len(columns) == 0 {
		db.Close()
		return nil, &CorruptionError{Path: path, Message: fmt.Sprintf("layer %q not found", layer)}
	}

	return &gpkgHandle{path: path, db: db, layer: layer, columns: columns, types: types}, nil
}

func quickCheck(db *sql.DB) ([]string, error) {
	rows, err := db.Query("PRAGMA quick_check")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var msgs []string
	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return nil, err
		}
		if msg != "ok" {
			msgs = append(msgs, msg)
		}
	}
	return msgs, rows.Err()
}

// discoverLayer finds the first feature table. Primary strategy: the
// gpkg_contents catalog. Fallback when the catalog is absent or unreadable:
// enumerate user tables from sqlite_master. The fallback succeeding is not
// an error surface, only a debug-level note.
func discoverLayer(db *sql.DB, path string) (string, error) {
	var layer string
	err := db.QueryRow(
		"SELECT table_name FROM gpkg_contents WHERE data_type = 'features' ORDER BY table_name LIMIT 1",
	).Scan(&layer)
	if err == nil {
		return layer, nil
	}

	log.Debug().Str("path", path).Err(err).Msg("gpkg_contents unavailable, falling back to sqlite_master")
	err = db.QueryRow(
		`SELECT name FROM sqlite_master
		 WHERE type = 'table' AND name NOT LIKE 'gpkg_%' AND name NOT LIKE 'sqlite_%' AND name NOT LIKE 'rtree_%'
		 ORDER BY name LIMIT 1`,
	).Scan(&layer)
	if err != nil {
		return "", &CorruptionError{Path: path, Message: "no feature layers found", Cause: err}
	}
	return layer, nil
}

func tableColumns(db *sql.DB, layer string) ([]string, map[string]string, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(layer)))
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var columns []string
	types := make(map[string]string)
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return nil, nil, err
		}
		columns = append(columns, name)
		types[name] = strings.ToLower(typ)
	}
	return columns, types, rows.Err()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

type gpkgHandle struct {
	path    string
	db      *sql.DB
	layer   string
	columns []string
	types   map[string]string
	closed  bool
}

// Layer reports the feature table this handle reads.
func (h *gpkgHandle) Layer() string { return h.layer }

func (h *gpkgHandle) SchemaProbe() (map[string]string, error) {
	out := make(map[string]string, len(h.types))
	for k, v := range h.types {
		out[k] = v
	}
	return out, nil
}

func (h *gpkgHandle) Chunks(ctx context.Context, chunkSize int) ChunkIter {
	return &gpkgChunkIter{h: h, ctx: ctx, size: chunkSize}
}

func (h *gpkgHandle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	return h.db.Close()
}

// gpkgChunkIter pages through the layer with LIMIT/OFFSET so memory stays
// bounded regardless of table size.
type gpkgChunkIter struct {
	h     *gpkgHandle
	ctx   context.Context
	size  int
	chunk Chunk
	base  int64
	err   error
	done  bool
}

func (it *gpkgChunkIter) Next() bool {
	if it.done || it.err != nil {
		return false
	}
	if err := it.ctx.Err(); err != nil {
		it.err = err
		return false
	}

	selects := make([]string, len(it.h.columns))
	for i, c := range it.h.columns {
		selects[i] = quoteIdent(c)
	}
	q := fmt.Sprintf("SELECT %s FROM %s LIMIT ? OFFSET ?",
		strings.Join(selects, ", "), quoteIdent(it.h.layer))

	rows, err := it.h.db.QueryContext(it.ctx, q, it.size, it.base)
	if err != nil {
		it.err = &CorruptionError{Path: it.h.path, Message: "read failure mid-scan", Cause: err}
		return false
	}
	defer rows.Close()

	var out [][]Cell
	scan := make([]any, len(it.h.columns))
	vals := make([]sql.NullString, len(it.h.columns))
	for i := range vals {
		scan[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(scan...); err != nil {
			it.err = &CorruptionError{Path: it.h.path, Message: "row decode failure mid-scan", Cause: err}
			break
		}
		row := make([]Cell, len(vals))
		for i, v := range vals {
			row[i] = Cell{Raw: v.String, Null: !v.Valid}
		}
		out = append(out, row)
	}
	if it.err == nil {
		if err := rows.Err(); err != nil {
			it.err = &CorruptionError{Path: it.h.path, Message: "read failure mid-scan", Cause: err}
		}
	}
	if len(out) == 0 {
		if it.err == nil {
			it.done = true
		}
		return false
	}
	it.chunk = Chunk{Columns: it.h.columns, Rows: out, Base: it.base}
	it.base += int64(len(out))
	return true
}

func (it *gpkgChunkIter) Chunk() Chunk { return it.chunk }

func (it *gpkgChunkIter) Err() error {
	if it.done {
		return nil
	}
	return it.err
}
