// =============================================================================
// Invoice Mailer - Version Command
// =============================================================================
//
// This file defines the 'version' command, which displays the application
// version and build information. The module path and VCS revision come
// from the build info embedded by the Go toolchain, when available.
//
// COMMAND USAGE:
//   invoicer version
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// These variables are set at build time using ldflags.
// Example build command:
//   go build -ldflags "-X 'github.com/ginjaninja78/xlsx-invoice-mailer/cmd.Version=1.0.0'"

// Version is the application version.
var Version = "0.1.0"

// BuildDate is the date the application was built.
var BuildDate = "unknown"

// versionCmd represents the 'version' command.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the application version",
	Run: func(cmd *cobra.Command, args []string) {
		info, _ := debug.ReadBuildInfo()
		printVersion(cmd.OutOrStdout(), info)
	},
}

// printVersion writes the version report. info may be nil.
func printVersion(out io.Writer, info *debug.BuildInfo) {
	fmt.Fprintln(out, "Invoice Mailer")
	fmt.Fprintf(out, "Version:    %s\n", Version)
	fmt.Fprintf(out, "Build Date: %s\n", BuildDate)
	fmt.Fprintf(out, "Go Version: %s\n", runtime.Version())
	if info == nil {
		return
	}

	fmt.Fprintf(out, "Module:     %s\n", info.Main.Path)
	var revision, modified string
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			modified = setting.Value
		}
	}
	if revision == "" {
		return
	}
	if modified == "true" {
		revision += " (modified)"
	}
	fmt.Fprintf(out, "Commit:     %s\n", revision)
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
