// =============================================================================
// Invoice Mailer - Main Entry Point
// =============================================================================
//
// This is the main entry point for the invoicer CLI. It delegates command
// execution to the cmd package.
//
// USAGE:
//   invoicer process       - Render and mail every invoice in the input
//   invoicer preview       - Print the invoices as text bills
//   invoicer validate      - Check configuration, input and template
//   invoicer version       - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Core logic (row source, invoices, documents,
//                      rendering, mail, pipeline)
//   - pkg/           : Shared file utilities
//   - templates/     : Sample invoice template document
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/xlsx-invoice-mailer/cmd"
)

func main() {
	cmd.Execute()
}
