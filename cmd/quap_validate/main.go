// Package main provides the quap_validate CLI for validating tabular and
// geospatial datasets against declarative templates.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/quapdata/quap-validate/internal/violation"
)

var rootCmd = &cobra.Command{
	Use:   "quap_validate",
	Short: "Template-driven dataset validation",
	Long:  "quap_validate checks CSV, GeoParquet, GeoPackage, and Shapefile datasets against versioned JSON templates, streaming rows in bounded chunks and reporting every rule violation.",
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		setupLogger()
	},
}

var (
	debugMode bool
	logger    zerolog.Logger
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging (also QUAP_DEBUG=1)")
}

func setupLogger() {
	level := zerolog.WarnLevel
	if debugMode || os.Getenv("QUAP_DEBUG") == "1" {
		level = zerolog.DebugLevel
	}
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(violation.ExitOther)
	}
}
