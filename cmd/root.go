// =============================================================================
// Invoice Mailer - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every other command
// is attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (invoicer)
//   ├── processCmd  (invoicer process)
//   ├── previewCmd  (invoicer preview)
//   ├── validateCmd (invoicer validate)
//   └── versionCmd  (invoicer version)
//
// The root command owns the global flags and builds the configuration and
// logger the subcommands share.
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ginjaninja78/xlsx-invoice-mailer/internal/config"
	"github.com/ginjaninja78/xlsx-invoice-mailer/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the configuration file.
var cfgFile string

// envFile holds the path to the .env file with secrets.
var envFile string

// verbose enables debug logging when set to true.
var verbose bool

// logFormat overrides log.format ("json" or "console").
var logFormat string

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "invoicer",
	Short: "Invoice Mailer - Turn spreadsheet orders into mailed PDF invoices",
	Long: `Invoice Mailer reads order rows from a spreadsheet, groups them into
invoices, renders each invoice from a template document into a PDF and mails
it to the client.

Key Features:
  - xlsx and csv input with date, quantity and currency coercion
  - Tax, shipping and threshold discount computed with exact decimals
  - Template placeholders and an expanding line-items table
  - SMTP delivery with fallback recipients
  - Per-invoice failure isolation with summary and error logs

Example Usage:
  invoicer process                      # Render and mail every invoice
  invoicer process --no-email           # Render only
  invoicer preview                      # Print bills to the console
  invoicer validate                     # Check configuration, input and template`,

	SilenceUsage: true,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the configuration file",
	)

	rootCmd.PersistentFlags().StringVar(
		&envFile,
		"env-file",
		".env",
		"Path to a .env file with secrets (GMAIL_ACCOUNT, GMAIL_PASSWORD)",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)

	rootCmd.PersistentFlags().StringVar(
		&logFormat,
		"log-format",
		"",
		"Log format: json or console (overrides log.format)",
	)
}

// =============================================================================
// SHARED SETUP
// =============================================================================

// loadRuntime loads the configuration and builds the logger.
func loadRuntime() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile, envFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	format := cfg.Log.Format
	if logFormat != "" {
		format = logFormat
	}

	logger, err := logging.New(logging.Config{
		ServiceName:   rootCmd.Name(),
		Version:       Version,
		Level:         level,
		Format:        format,
		IncludeCaller: cfg.Log.Caller,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
