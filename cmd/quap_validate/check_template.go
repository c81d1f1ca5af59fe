package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quapdata/quap-validate/internal/template"
)

var checkTemplateCmd = &cobra.Command{
	Use:   "check-template PATH",
	Short: "Validate a template file without running a dataset validation",
	Long:  "Validate a template JSON file against the companion schema (or an alternate one) plus all structural consistency rules, and report every problem found.",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheckTemplate,
}

var checkSchemaPath string

func init() {
	checkTemplateCmd.Flags().StringVar(&checkSchemaPath, "schema", "", "Alternate JSON-Schema file (default: embedded companion schema)")

	rootCmd.AddCommand(checkTemplateCmd)
}

func runCheckTemplate(_ *cobra.Command, args []string) error {
	path := args[0]
	doc, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read template: %w", err)
	}

	if checkSchemaPath != "" {
		schema, err := os.ReadFile(checkSchemaPath)
		if err != nil {
			return fmt.Errorf("read schema: %w", err)
		}
		if err := template.ValidateDocument(doc, schema); err != nil {
			return fmt.Errorf("template %s does not match schema %s: %w", path, checkSchemaPath, err)
		}
	}

	tpl, err := template.Parse(doc, path)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "ok %s:%s (%d columns)\n", tpl.TemplateID, tpl.Version, len(tpl.Columns))
	return nil
}
