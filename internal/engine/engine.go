// Package engine drives a source adapter through a dataset in bounded-memory
// chunks, applying template rules and feeding violations to the aggregator.
// One Run is single-threaded and synchronous; independent runs share nothing.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/quapdata/quap-validate/internal/adapter"
	"github.com/quapdata/quap-validate/internal/config"
	"github.com/quapdata/quap-validate/internal/template"
	"github.com/quapdata/quap-validate/internal/violation"
)

// Result is the outcome of one validation run, frozen once Run returns.
type Result struct {
	RowCount int64
	Probe    map[string]string
	Agg      *violation.Aggregator
	Started  time.Time
	Finished time.Time
}

// Duration is the wall-clock time the run took.
func (r *Result) Duration() time.Duration { return r.Finished.Sub(r.Started) }

// Runner validates datasets against templates with fixed options. Safe to
// reuse across runs; each run owns its own handle, buffers, and aggregator.
type Runner struct {
	opts config.Options
	log  zerolog.Logger
}

func New(opts config.Options, logger zerolog.Logger) *Runner {
	return &Runner{opts: opts, log: logger}
}

// Run executes the full state machine: open, schema check, scan, finalize.
// It never returns an error for dataset problems; those become violations.
// The returned result always carries a usable aggregator.
func (r *Runner) Run(ctx context.Context, ad adapter.Adapter, path string, tpl *template.Template) *Result {
	res := &Result{
		Agg:     violation.NewAggregator(r.opts.MaxStoredViolations),
		Started: time.Now(),
	}
	defer func() { res.Finished = time.Now() }()

	handle, err := ad.Open(path)
	if err != nil {
		r.log.Debug().Str("path", path).Err(err).Msg("open failed")
		res.Agg.Add(violation.New(violation.KindCorruption, "", err.Error()))
		return res
	}
	defer handle.Close()

	probe, err := handle.SchemaProbe()
	if err != nil {
		res.Agg.Add(violation.New(violation.KindCorruption, "", err.Error()))
		return res
	}
	res.Probe = probe

	colmap := r.schemaCheck(tpl, probe, res.Agg)
	if res.Agg.Has(violation.KindSchema) {
		// Missing required columns are a hard stop; scanning a file that
		// cannot satisfy the template is wasted I/O on large inputs.
		r.log.Debug().Str("path", path).Msg("schema check failed, skipping scan")
		return res
	}

	r.scan(ctx, handle, tpl, colmap, res)
	return res
}

// schemaCheck compares the physical schema against the template and returns
// the declared-to-physical column mapping for columns that are present.
// Geometry columns may resolve through conventional aliases.
func (r *Runner) schemaCheck(tpl *template.Template, probe map[string]string, agg *violation.Aggregator) map[string]string {
	colmap := make(map[string]string, len(tpl.Columns))
	for i := range tpl.Columns {
		col := &tpl.Columns[i]
		physical := col.Name
		if _, ok := probe[physical]; !ok && col.DType == template.DTypeGeometry {
			physical = adapter.ResolveGeometryColumn(col.Name, probe)
			if physical != "" {
				r.log.Debug().Str("declared", col.Name).Str("physical", physical).Msg("geometry column resolved via alias")
			}
		}
		if physical == "" {
			physical = col.Name
		}
		if _, ok := probe[physical]; ok {
			colmap[col.Name] = physical
			continue
		}
		if col.Required {
			agg.Add(violation.New(violation.KindSchema, col.Name,
				fmt.Sprintf("required column %q missing from input schema", col.Name)))
		}
	}

	if !tpl.ExtraColumnsAllowed() {
		declared := make(map[string]struct{}, len(colmap))
		for _, physical := range colmap {
			declared[physical] = struct{}{}
		}
		var extras []string
		for name := range probe {
			if _, ok := declared[name]; !ok {
				extras = append(extras, name)
			}
		}
		sort.Strings(extras)
		for _, name := range extras {
			agg.Add(violation.NewWarning(violation.KindSchema, name, "column not declared in template"))
		}
	}
	return colmap
}

func (r *Runner) scan(ctx context.Context, handle adapter.Handle, tpl *template.Template, colmap map[string]string, res *Result) {
	// One seen-set per unique column, keyed by canonicalized value. Bounded
	// by column cardinality, not file size.
	uniques := make(map[string]map[string]struct{})
	for i := range tpl.Columns {
		if tpl.Columns[i].Unique {
			uniques[tpl.Columns[i].Name] = make(map[string]struct{})
		}
	}

	it := handle.Chunks(ctx, r.opts.ChunkSize)
	for it.Next() {
		chunk := it.Chunk()
		indices := columnIndices(chunk.Columns, colmap)
		for j, row := range chunk.Rows {
			rowIdx := chunk.Base + int64(j) + 1
			for i := range tpl.Columns {
				col := &tpl.Columns[i]
				pos, present := indices[col.Name]
				if !present || pos >= len(row) {
					continue
				}
				r.checkCell(tpl, col, row[pos], rowIdx, uniques[col.Name], res.Agg)
			}
		}
		res.RowCount += int64(len(chunk.Rows))
	}

	if err := it.Err(); err != nil {
		var ce *adapter.CorruptionError
		switch {
		case errors.As(err, &ce):
			res.Agg.Add(violation.New(violation.KindCorruption, "", ce.Error()))
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			// A caller-imposed abort leaves no consistent partial report.
			res.Agg.MarkInternalFailure()
		default:
			res.Agg.Add(violation.New(violation.KindCorruption, "", err.Error()))
		}
	}
}

// checkCell applies the fixed rule order: type, null, enum, range, then
// uniqueness. A type failure suppresses the remaining checks for that cell.
func (r *Runner) checkCell(tpl *template.Template, col *template.Column, cell adapter.Cell, rowIdx int64, seen map[string]struct{}, agg *violation.Aggregator) {
	isNull := cell.Null || cell.Raw == "" || tpl.IsNullEquivalent(cell.Raw)
	if isNull {
		if col.Required {
			agg.Add(violation.NewAt(violation.KindNull, col.Name, rowIdx,
				"null value in required column"))
		}
		return
	}

	if err := coerce(col.DType, cell.Raw); err != nil {
		agg.Add(violation.NewAt(violation.KindType, col.Name, rowIdx, err.Error()))
		return
	}

	canon := col.CanonicalValue(cell.Raw)
	if !col.EnumContains(canon) {
		agg.Add(violation.NewAt(violation.KindEnum, col.Name, rowIdx,
			fmt.Sprintf("value %q not in declared enum", cell.Raw)))
	}

	if col.Range != nil {
		if ok, err := inRange(col.Range, cell.Raw); err == nil && !ok {
			agg.Add(violation.NewAt(violation.KindRange, col.Name, rowIdx,
				fmt.Sprintf("value %q outside declared range", cell.Raw)))
		}
	}

	if seen != nil {
		if _, dup := seen[canon]; dup {
			agg.Add(violation.NewAt(violation.KindDuplicate, col.Name, rowIdx,
				fmt.Sprintf("duplicate value %q in unique column", cell.Raw)))
		} else {
			seen[canon] = struct{}{}
		}
	}
}

// columnIndices maps declared column names to positions in a chunk's column
// list, following the declared-to-physical mapping.
func columnIndices(columns []string, colmap map[string]string) map[string]int {
	pos := make(map[string]int, len(columns))
	for i, c := range columns {
		pos[c] = i
	}
	out := make(map[string]int, len(colmap))
	for declared, physical := range colmap {
		if i, ok := pos[physical]; ok {
			out[declared] = i
		}
	}
	return out
}
