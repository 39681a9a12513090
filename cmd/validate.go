// =============================================================================
// Invoice Mailer - Validate Command
// =============================================================================
//
// This file defines the 'validate' command. It checks the configuration,
// reads the input through the aggregator and inspects the template, without
// rendering or sending anything.
//
// COMMAND USAGE:
//   invoicer validate [--input file] [--template file]
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/ginjaninja78/xlsx-invoice-mailer/internal/pipeline"
	"github.com/ginjaninja78/xlsx-invoice-mailer/internal/render"
	"github.com/spf13/cobra"
)

var (
	validateInput    string
	validateTemplate string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check configuration, input and template without processing",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}
		defer logger.Sync()
		fmt.Fprintln(out, "Configuration: ok")

		if validateInput != "" {
			cfg.Paths.Input = validateInput
		}
		if validateTemplate != "" {
			cfg.Paths.Template = validateTemplate
		}

		opts := pipeline.OptionsFromConfig(cfg)
		opts.DryRun = true
		_, stats, err := pipeline.New(opts, pipeline.Deps{Logger: logger}).Collect(cmd.Context())
		if err != nil {
			return fmt.Errorf("input %s: %w", cfg.Paths.Input, err)
		}
		fmt.Fprintf(out, "Input:         ok (%d rows, %d skipped, %d invoices, %d line items)\n",
			stats.RowsRead, stats.RowsSkipped, stats.InvoicesCreated, stats.LineItems)

		report, err := render.Inspect(cfg.Paths.Template)
		if err != nil {
			return err
		}
		if report.OK() {
			fmt.Fprintln(out, "Template:      ok")
			return nil
		}

		fmt.Fprintf(out, "Template:      %d problem(s)\n", len(report.Problems))
		for _, problem := range report.Problems {
			fmt.Fprintf(out, "  - %s: %s\n", problem.Region, problem.Reason)
		}
		if report.Layout.HasItemsTable() {
			// Missing totals rows only leave those values out.
			return nil
		}
		return fmt.Errorf("template %s is incomplete", cfg.Paths.Template)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVar(&validateInput, "input", "", "Spreadsheet to read (overrides paths.input)")
	validateCmd.Flags().StringVar(&validateTemplate, "template", "", "Template document (overrides paths.template)")
}
