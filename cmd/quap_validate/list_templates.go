package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/quapdata/quap-validate/internal/template"
)

var listTemplatesCmd = &cobra.Command{
	Use:   "list-templates",
	Short: "List templates discoverable on the search path",
	RunE:  runListTemplates,
}

var listTemplateDirs []string

func init() {
	listTemplatesCmd.Flags().StringArrayVar(&listTemplateDirs, "templates-dir", nil, "Template search directory (repeatable)")

	rootCmd.AddCommand(listTemplatesCmd)
}

func runListTemplates(_ *cobra.Command, _ []string) error {
	reg := template.NewRegistry(templateSearchDirs(listTemplateDirs))
	listed := reg.List()
	if len(listed) == 0 {
		fmt.Fprintf(os.Stdout, "no templates found in: %v\n", reg.Dirs())
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TEMPLATE ID\tVERSION\tLABEL\tSOURCE")
	for _, t := range listed {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.TemplateID, t.Version, t.Label, t.Dir)
	}
	return w.Flush()
}
