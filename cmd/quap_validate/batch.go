package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/quapdata/quap-validate/internal/report"
	"github.com/quapdata/quap-validate/internal/template"
	"github.com/quapdata/quap-validate/internal/violation"
)

var batchCmd = &cobra.Command{
	Use:   "batch INPUT...",
	Short: "Validate many datasets against one template",
	Long:  "Validate each input independently against the same template, printing one summary line per input. The exit code is the most severe outcome across all runs.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBatch,
}

var (
	batchFormat        string
	batchLayer         string
	batchTemplateID    string
	batchVersion       string
	batchTemplateDirs  []string
	batchChunkSize     int
	batchMaxViolations int
	batchDelimiter     string
	batchConcurrency   int
)

func init() {
	batchCmd.Flags().StringVar(&batchFormat, "format", "", "Force input format for every input (default: detect per file)")
	batchCmd.Flags().StringVar(&batchLayer, "layer", "", "Feature table name for GeoPackage inputs")
	batchCmd.Flags().StringVar(&batchTemplateID, "template-id", "", "Template id or alias (required)")
	batchCmd.Flags().StringVar(&batchVersion, "template-version", "", "Exact template version (default: highest available)")
	batchCmd.Flags().StringArrayVar(&batchTemplateDirs, "templates-dir", nil, "Template search directory (repeatable)")
	batchCmd.Flags().IntVar(&batchChunkSize, "chunk-size", 0, "Rows per streamed chunk")
	batchCmd.Flags().IntVar(&batchMaxViolations, "max-violations", 0, "Cap on stored violation details per input")
	batchCmd.Flags().StringVar(&batchDelimiter, "delimiter", "", `Field delimiter for delimited text (single character or \t)`)
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 4, "Number of inputs validated in parallel")
	_ = batchCmd.MarkFlagRequired("template-id")

	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	opts, err := runOptions(batchChunkSize, batchMaxViolations)
	if err != nil {
		return err
	}
	if batchConcurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", batchConcurrency)
	}

	reg := template.NewRegistry(templateSearchDirs(batchTemplateDirs))
	tpl, err := reg.Load(batchTemplateID, batchVersion)
	if err != nil {
		return fmt.Errorf("load template: %w", err)
	}

	reports := make([]*report.Report, len(args))
	g, _ := errgroup.WithContext(cmd.Context())
	g.SetLimit(batchConcurrency)
	for i, input := range args {
		g.Go(func() error {
			rep, err := validateOne(cmd, opts, tpl, input, batchFormat, batchLayer, batchDelimiter)
			if err != nil {
				return fmt.Errorf("%s: %w", input, err)
			}
			reports[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	worst := violation.ExitOK
	for i, rep := range reports {
		fmt.Fprintf(os.Stdout, "%s: %s\n", args[i], rep.Summary())
		if exitSeverity(rep.ExitCode) > exitSeverity(worst) {
			worst = rep.ExitCode
		}
	}
	if worst != violation.ExitOK {
		os.Exit(worst)
	}
	return nil
}

// exitSeverity ranks exit codes so the batch result carries the most severe
// per-input outcome, mirroring the within-run severity order.
func exitSeverity(code int) int {
	switch code {
	case violation.ExitCorrupted:
		return 5
	case violation.ExitSchema:
		return 4
	case violation.ExitTypeValues:
		return 3
	case violation.ExitDuplicates:
		return 2
	case violation.ExitOther:
		return 1
	}
	return 0
}
