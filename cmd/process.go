// =============================================================================
// Invoice Mailer - Process Command
// =============================================================================
//
// This file defines the 'process' command, the main command. It runs the
// whole pipeline over the input spreadsheet.
//
// COMMAND USAGE:
//   invoicer process [flags]
//
// FLAGS:
//   --input       : Spreadsheet to read (overrides paths.input)
//   --template    : Template document (overrides paths.template)
//   --output      : Output directory (overrides paths.output_dir)
//   --dry-run     : Read and aggregate only; write and send nothing
//   --no-email    : Render invoices without mailing them
//   --keep-going  : Continue with the remaining invoices after a failure
//   --fail-fast   : Stop at the first failed invoice
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"

	"github.com/ginjaninja78/xlsx-invoice-mailer/internal/config"
	"github.com/ginjaninja78/xlsx-invoice-mailer/internal/document"
	"github.com/ginjaninja78/xlsx-invoice-mailer/internal/notify"
	"github.com/ginjaninja78/xlsx-invoice-mailer/internal/pipeline"
	"github.com/ginjaninja78/xlsx-invoice-mailer/internal/render"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	inputPath    string
	templatePath string
	outputDir    string
	dryRun       bool
	noEmail      bool
	keepGoing    bool
	failFast     bool
)

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Render every invoice in the input and mail it to the client",
	Long: `The process command reads the input spreadsheet, groups rows into
invoices by invoice_id, renders each invoice from the template into a PDF in
the output directory and mails it to the client.

On completion:
  - A processing summary is written to the output directory
  - Failed invoices are listed in an error log
  - After a fully successful run the input is archived, when
    paths.input_archive_dir is set`,

	RunE: func(cmd *cobra.Command, args []string) error {
		if keepGoing && failFast {
			return errors.New("--keep-going and --fail-fast are mutually exclusive")
		}

		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}
		defer logger.Sync()

		applyPathFlags(cfg)
		opts := pipeline.OptionsFromConfig(cfg)
		opts.DryRun = dryRun
		if noEmail {
			opts.SendEmail = false
		}
		if keepGoing {
			opts.ContinueOnError = true
		}
		if failFast {
			opts.ContinueOnError = false
		}

		p := pipeline.New(opts, buildDeps(cfg, logger))
		result := p.Run(cmd.Context())
		printResult(cmd, result, opts)

		if !result.Success {
			return fmt.Errorf("run %s finished with %d failure(s)", result.RunID, failureCount(result))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVar(&inputPath, "input", "", "Spreadsheet to read (overrides paths.input)")
	processCmd.Flags().StringVar(&templatePath, "template", "", "Template document (overrides paths.template)")
	processCmd.Flags().StringVar(&outputDir, "output", "", "Output directory (overrides paths.output_dir)")
	processCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Read and aggregate only; write and send nothing")
	processCmd.Flags().BoolVar(&noEmail, "no-email", false, "Render invoices without mailing them")
	processCmd.Flags().BoolVar(&keepGoing, "keep-going", false, "Continue with the remaining invoices after a failure")
	processCmd.Flags().BoolVar(&failFast, "fail-fast", false, "Stop at the first failed invoice")
}

// =============================================================================
// HELPERS
// =============================================================================

// applyPathFlags copies the path flags over the configuration.
func applyPathFlags(cfg *config.Config) {
	if inputPath != "" {
		cfg.Paths.Input = inputPath
	}
	if templatePath != "" {
		cfg.Paths.Template = templatePath
	}
	if outputDir != "" {
		cfg.Paths.OutputDir = outputDir
	}
}

// buildDeps wires the renderer and notifier from the configuration.
func buildDeps(cfg *config.Config, logger *zap.Logger) pipeline.Deps {
	renderer := render.New(render.Options{
		OutputDir:        cfg.Paths.OutputDir,
		Company:          cfg.CompanyProfile(),
		Policy:           cfg.PricingPolicy(),
		DateLayout:       cfg.Template.DateFormat,
		EmphasisSize:     cfg.Template.EmphasisSize,
		StrictItemsTable: cfg.Template.StrictItemsTable,
	}, document.NewPDFConverter(), logger)

	transport := notify.NewSMTPTransport(notify.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
	})
	sender := notify.New(notify.Config{
		Account:          cfg.SMTP.Username,
		FromName:         cfg.SenderName(),
		DefaultRecipient: cfg.SMTP.DefaultRecipient,
		Signature:        cfg.SMTP.Signature,
	}, transport, logger)

	return pipeline.Deps{
		Renderer: renderer,
		Sender:   sender,
		Logger:   logger,
	}
}

func failureCount(result pipeline.Result) int {
	if result.Stats.Failed > 0 {
		return result.Stats.Failed
	}
	return 1
}

// printResult writes the run report to stdout.
func printResult(cmd *cobra.Command, result pipeline.Result, opts pipeline.Options) {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "=== Invoice Mailer ===")
	fmt.Fprintf(out, "Run ID:        %s\n", result.RunID)
	fmt.Fprintf(out, "Input:         %s\n", result.InputFile)
	if opts.DryRun {
		fmt.Fprintln(out, "Mode:          dry run (nothing written or sent)")
	}
	fmt.Fprintf(out, "Rows read:     %d (skipped %d)\n", result.Stats.RowsRead, result.Stats.RowsSkipped)
	fmt.Fprintf(out, "Invoices:      %d (%d line items)\n", result.Stats.InvoicesCreated, result.Stats.LineItems)
	if !opts.DryRun {
		fmt.Fprintf(out, "Rendered:      %d\n", result.Stats.Rendered)
		fmt.Fprintf(out, "Sent:          %d\n", result.Stats.Sent)
		fmt.Fprintf(out, "Failed:        %d\n", result.Stats.Failed)
	}
	fmt.Fprintf(out, "Duration:      %s\n", result.Stats.ProcessingTime)

	for _, o := range result.Invoices {
		status := "ok"
		switch {
		case o.Err != nil:
			status = "FAILED: " + o.Err.Error()
		case o.Sent:
			status = "sent to " + o.Recipient
		case o.Rendered:
			status = "rendered"
		}
		fmt.Fprintf(out, "  %-16s %12s  %s\n", o.InvoiceID, o.Total.StringFixed(2), status)
	}

	if result.SummaryLog != "" {
		fmt.Fprintf(out, "Summary:       %s\n", result.SummaryLog)
	}
	if result.ErrorLog != "" {
		fmt.Fprintf(out, "Error log:     %s\n", result.ErrorLog)
	}
	if result.ArchivedInput != "" {
		fmt.Fprintf(out, "Archived:      %s\n", result.ArchivedInput)
	}
}
