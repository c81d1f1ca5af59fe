// Package report assembles the final structured result of a validation run
// and maps it to a process exit code. A report is built once from finalized
// engine state and never mutated afterwards.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quapdata/quap-validate/internal/engine"
	"github.com/quapdata/quap-validate/internal/template"
	"github.com/quapdata/quap-validate/internal/violation"
)

// ToolVersion is stamped into report provenance.
const ToolVersion = "0.2.0"

// InputMeta describes the validated input.
type InputMeta struct {
	Path      string `json:"path"`
	Format    string `json:"format,omitempty"`
	Layer     string `json:"layer,omitempty"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
}

// Provenance records who produced the report.
type Provenance struct {
	ToolVersion string `json:"tool_version"`
	GitRev      string `json:"git_rev,omitempty"`
	RunID       string `json:"run_id"`
}

// Report is the immutable outcome of one validation run.
type Report struct {
	OK              bool                   `json:"ok"`
	TemplateID      string                 `json:"template_id"`
	TemplateVersion string                 `json:"template_version"`
	Input           InputMeta              `json:"input"`
	Provenance      Provenance             `json:"provenance"`
	StartedAt       string                 `json:"started_at"`
	FinishedAt      string                 `json:"finished_at"`
	DurationSec     float64                `json:"duration_sec"`
	RowCount        int64                  `json:"row_count"`
	Counts          map[violation.Kind]int `json:"violation_counts"`
	WarningCount    int                    `json:"warning_count"`
	Violations      []violation.Violation  `json:"violations"`
	Warnings        []violation.Violation  `json:"warnings,omitempty"`
	Truncated       bool                   `json:"truncated"`
	ExitCode        int                    `json:"exit_code"`
}

// Build freezes a finalized engine result into a report.
func Build(tpl *template.Template, input InputMeta, res *engine.Result) *Report {
	input.Path = RedactPath(input.Path)
	if input.SizeBytes == 0 {
		if info, err := os.Stat(input.Path); err == nil {
			input.SizeBytes = info.Size()
		}
	}
	return &Report{
		OK:              res.Agg.OK(),
		TemplateID:      tpl.TemplateID,
		TemplateVersion: tpl.Version,
		Input:           input,
		Provenance: Provenance{
			ToolVersion: ToolVersion,
			GitRev:      os.Getenv("GIT_REV"),
			RunID:       uuid.NewString(),
		},
		StartedAt:    res.Started.UTC().Format(time.RFC3339),
		FinishedAt:   res.Finished.UTC().Format(time.RFC3339),
		DurationSec:  res.Duration().Seconds(),
		RowCount:     res.RowCount,
		Counts:       res.Agg.Counts(),
		WarningCount: len(res.Agg.Warnings()),
		Violations:   res.Agg.Violations(),
		Warnings:     res.Agg.Warnings(),
		Truncated:    res.Agg.Truncated(),
		ExitCode:     res.Agg.ExitCode(),
	}
}

// Summary renders the human-facing one-line result. It must agree with the
// JSON report and the exit code on severity.
func (r *Report) Summary() string {
	status := "failed"
	if r.OK {
		status = "ok"
	}
	errors := 0
	for _, n := range r.Counts {
		errors += n
	}
	return fmt.Sprintf("%s template=%s:%s rows=%d errors=%d warnings=%d duration=%.2fs",
		status, r.TemplateID, r.TemplateVersion, r.RowCount, errors, r.WarningCount, r.DurationSec)
}

// JSON renders the report as indented JSON.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// WriteJSON writes the JSON report to path, creating parent directories.
func (r *Report) WriteJSON(path string) error {
	data, err := r.JSON()
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// RedactPath strips credentials from URI-style paths so reports never leak
// secrets (s3://key:secret@bucket/x becomes s3://***@bucket/x).
func RedactPath(p string) string {
	schemeIdx := strings.Index(p, "://")
	if schemeIdx < 0 {
		return p
	}
	rest := p[schemeIdx+3:]
	atIdx := strings.Index(rest, "@")
	if atIdx < 0 || !strings.Contains(rest[:atIdx], ":") {
		return p
	}
	return p[:schemeIdx+3] + "***@" + rest[atIdx+1:]
}
