package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/quapdata/quap-validate/internal/adapter"
	"github.com/quapdata/quap-validate/internal/archive"
	"github.com/quapdata/quap-validate/internal/config"
	"github.com/quapdata/quap-validate/internal/engine"
	"github.com/quapdata/quap-validate/internal/report"
	"github.com/quapdata/quap-validate/internal/template"
	"github.com/quapdata/quap-validate/internal/violation"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate one dataset against a template",
	Long:  "Validate a dataset file against a registered template, print a one-line summary, and exit with a code reflecting the most severe finding.",
	RunE:  runValidate,
}

var (
	validateInput         string
	validateFormat        string
	validateLayer         string
	validateTemplateID    string
	validateVersion       string
	validateTemplateDirs  []string
	validateReportPath    string
	validatePrintJSON     bool
	validateChunkSize     int
	validateMaxViolations int
	validateDelimiter     string
)

func init() {
	validateCmd.Flags().StringVarP(&validateInput, "input", "i", "", "Path to the dataset file (required)")
	validateCmd.Flags().StringVar(&validateFormat, "format", "", "Force input format: csv, geoparquet, geopackage, shapefile (default: detect from extension)")
	validateCmd.Flags().StringVar(&validateLayer, "layer", "", "Feature table name for GeoPackage inputs")
	validateCmd.Flags().StringVar(&validateTemplateID, "template-id", "", "Template id or alias (required)")
	validateCmd.Flags().StringVar(&validateVersion, "template-version", "", "Exact template version (default: highest available)")
	validateCmd.Flags().StringArrayVar(&validateTemplateDirs, "templates-dir", nil, "Template search directory (repeatable)")
	validateCmd.Flags().StringVar(&validateReportPath, "report", "", "Write the JSON report to this path")
	validateCmd.Flags().BoolVar(&validatePrintJSON, "print-json", false, "Print the full JSON report to stdout")
	validateCmd.Flags().IntVar(&validateChunkSize, "chunk-size", 0, "Rows per streamed chunk (default from QUAP_CHUNK_SIZE or 50000)")
	validateCmd.Flags().IntVar(&validateMaxViolations, "max-violations", 0, "Cap on stored violation details (default from QUAP_MAX_VIOLATIONS or 2000)")
	validateCmd.Flags().StringVar(&validateDelimiter, "delimiter", "", `Field delimiter for delimited text (single character or \t)`)
	_ = validateCmd.MarkFlagRequired("input")
	_ = validateCmd.MarkFlagRequired("template-id")

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	opts, err := runOptions(validateChunkSize, validateMaxViolations)
	if err != nil {
		return err
	}

	reg := template.NewRegistry(templateSearchDirs(validateTemplateDirs))
	tpl, err := reg.Load(validateTemplateID, validateVersion)
	if err != nil {
		return fmt.Errorf("load template: %w", err)
	}

	rep, err := validateOne(cmd, opts, tpl, validateInput, validateFormat, validateLayer, validateDelimiter)
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, rep.Summary())
	if validatePrintJSON {
		data, err := rep.JSON()
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		fmt.Fprintln(os.Stdout, string(data))
	}
	if validateReportPath != "" {
		if err := rep.WriteJSON(validateReportPath); err != nil {
			return err
		}
	}

	if rep.ExitCode != violation.ExitOK {
		os.Exit(rep.ExitCode)
	}
	return nil
}

// validateOne runs a full validation of a single input and builds its report.
// Dataset-level problems (unreadable file, corrupt archive) become corruption
// violations in the report rather than errors; only operator mistakes (bad
// flags, unknown format) surface as errors.
func validateOne(cmd *cobra.Command, opts config.Options, tpl *template.Template, input, formatFlag, layer, delimiter string) (*report.Report, error) {
	delim, err := parseDelimiter(delimiter)
	if err != nil {
		return nil, err
	}

	datasetPath, cleanup, err := archive.Normalize(input)
	if err != nil {
		logger.Debug().Str("input", input).Err(err).Msg("input normalization failed")
		return corruptReport(opts, tpl, input, formatFlag, layer, err), nil
	}
	defer cleanup()

	var format adapter.Format
	if formatFlag != "" {
		format, err = adapter.ParseFormat(formatFlag)
	} else {
		format, err = adapter.Detect(datasetPath)
	}
	if err != nil {
		return nil, err
	}

	ad, err := adapter.For(format, adapter.Options{Delimiter: delim, Layer: layer})
	if err != nil {
		return nil, err
	}

	runner := engine.New(opts, logger)
	res := runner.Run(cmd.Context(), ad, datasetPath, tpl)

	meta := report.InputMeta{Path: input, Format: string(format), Layer: layer}
	return report.Build(tpl, meta, res), nil
}

// corruptReport builds a report for inputs that failed before the engine
// could open them, so unpack failures carry the same exit code as any other
// corrupted input.
func corruptReport(opts config.Options, tpl *template.Template, input, format, layer string, cause error) *report.Report {
	agg := violation.NewAggregator(opts.MaxStoredViolations)
	agg.Add(violation.New(violation.KindCorruption, "", cause.Error()))
	now := time.Now()
	res := &engine.Result{Agg: agg, Started: now, Finished: now}
	return report.Build(tpl, report.InputMeta{Path: input, Format: format, Layer: layer}, res)
}

// runOptions overlays flag values onto env-derived defaults.
func runOptions(chunkSize, maxViolations int) (config.Options, error) {
	opts, err := config.FromEnv()
	if err != nil {
		return opts, err
	}
	if chunkSize > 0 {
		opts.ChunkSize = chunkSize
	}
	if maxViolations > 0 {
		opts.MaxStoredViolations = maxViolations
	}
	return opts, opts.Validate()
}

// templateSearchDirs falls back to ./templates when no directory is given.
// EnvTemplatesDir entries are appended by the registry itself.
func templateSearchDirs(dirs []string) []string {
	if len(dirs) > 0 {
		return dirs
	}
	return []string{"templates"}
}

func parseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return 0, nil
	case `\t`:
		return '\t', nil
	}
	runes := []rune(s)
	if len(runes) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
	}
	return runes[0], nil
}
