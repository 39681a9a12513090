// =============================================================================
// Invoice Mailer - Preview Command
// =============================================================================
//
// This file defines the 'preview' command, which prints a text bill for
// every invoice in the input without writing files or sending mail.
//
// COMMAND USAGE:
//   invoicer preview [--input file]
//
// =============================================================================

package cmd

import (
	"github.com/ginjaninja78/xlsx-invoice-mailer/internal/pipeline"
	"github.com/spf13/cobra"
)

var previewInput string

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Print the bill of every invoice in the input",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}
		defer logger.Sync()

		if previewInput != "" {
			cfg.Paths.Input = previewInput
		}

		opts := pipeline.OptionsFromConfig(cfg)
		opts.DryRun = true
		invoices, _, err := pipeline.New(opts, pipeline.Deps{Logger: logger}).Collect(cmd.Context())
		if err != nil {
			return err
		}

		return pipeline.Preview(cmd.OutOrStdout(), invoices, cfg.CompanyProfile(), cfg.PricingPolicy(), cfg.Template.DateFormat)
	},
}

func init() {
	rootCmd.AddCommand(previewCmd)
	previewCmd.Flags().StringVar(&previewInput, "input", "", "Spreadsheet to read (overrides paths.input)")
}
