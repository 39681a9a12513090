// =============================================================================
// Invoice Mailer - File Manager Utility
// =============================================================================
//
// This module provides the file handling around a pipeline run:
//   - Directory management (output and archive directories)
//   - Output file naming for rendered invoices
//   - Input archival after a fully successful run
//   - Error log and processing summary generation
//
// ARCHIVAL STRATEGY:
//   - The input workbook is moved to input_archive after a run in which
//     every invoice succeeded, when an archive directory is configured
//   - Failed runs leave the input in place so it can be fixed and re-run
//   - Error logs and summaries are written to the output directory
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for a run.
type FileManager struct {
	// OutputDir is the directory rendered invoices and logs go to.
	OutputDir string

	// InputArchiveDir receives the input after a successful run. Empty
	// disables archival.
	InputArchiveDir string

	// UseTimestampSubdirs creates date-based subdirectories in the archive.
	// Example: input_archive/2024/01/15/invoice_details.xlsx
	UseTimestampSubdirs bool

	now func() time.Time
}

// NewFileManager creates a new FileManager.
func NewFileManager(outputDir, inputArchiveDir string) *FileManager {
	return &FileManager{
		OutputDir:       outputDir,
		InputArchiveDir: inputArchiveDir,
		now:             time.Now,
	}
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDirectories creates the output and archive directories if they
// don't exist.
func (fm *FileManager) EnsureDirectories() error {
	for _, dir := range []string{fm.OutputDir, fm.InputArchiveDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// =============================================================================
// FILE ARCHIVAL
// =============================================================================

// ArchiveInputFile moves an input file to the archive directory and
// returns its new path. Without an archive directory it is a no-op.
func (fm *FileManager) ArchiveInputFile(filePath string) (string, error) {
	if fm.InputArchiveDir == "" {
		return filePath, nil
	}

	archivePath := fm.archivePath(filePath)
	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	if err := os.Rename(filePath, archivePath); err != nil {
		// If rename fails (e.g., cross-device), try copy and delete.
		if err := copyFile(filePath, archivePath); err != nil {
			return "", fmt.Errorf("failed to copy file to archive: %w", err)
		}
		if err := os.Remove(filePath); err != nil {
			return "", fmt.Errorf("failed to remove original file: %w", err)
		}
	}

	return archivePath, nil
}

func (fm *FileManager) archivePath(filePath string) string {
	fileName := filepath.Base(filePath)
	if !fm.UseTimestampSubdirs {
		return filepath.Join(fm.InputArchiveDir, fileName)
	}

	now := fm.clock()
	return filepath.Join(
		fm.InputArchiveDir,
		fmt.Sprintf("%d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		fmt.Sprintf("%02d", now.Day()),
		fileName,
	)
}

func (fm *FileManager) clock() time.Time {
	if fm.now == nil {
		return time.Now()
	}
	return fm.now()
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

var safeFileName = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// OutputBaseName returns the file name, without extension, for an
// invoice id. Ids that are already safe file names are kept as they are
// (INV-001 stays INV-001); anything else is slugged.
//
// EXAMPLE:
//
//	"INV-001"        -> "INV-001"
//	"INV 2024/07 #3" -> "inv-2024-07-3"
func OutputBaseName(invoiceID string) string {
	if safeFileName.MatchString(invoiceID) && invoiceID != "." && invoiceID != ".." {
		return invoiceID
	}
	if s := slug.Make(invoiceID); s != "" {
		return s
	}
	return "invoice"
}

// OutputNames hands out one output base name per invoice id for a run.
// Two ids that map to the same name (compared case-insensitively) get
// distinct names: the later one carries a suffix derived from its id.
//
// EXAMPLE:
//
//	Reserve("inv-1") -> "inv-1"
//	Reserve("INV 1") -> "inv-1-<8 hex digits>"
type OutputNames struct {
	mu      sync.Mutex
	byID    map[string]string
	claimed map[string]string
}

// NewOutputNames creates an empty registry.
func NewOutputNames() *OutputNames {
	return &OutputNames{
		byID:    make(map[string]string),
		claimed: make(map[string]string),
	}
}

// Reserve returns the base name for invoiceID. The same id always gets
// the same name.
func (n *OutputNames) Reserve(invoiceID string) string {
	n.mu.Lock()
	defer n.mu.Unlock()

	if name, ok := n.byID[invoiceID]; ok {
		return name
	}

	taken := func(name string) bool {
		_, ok := n.claimed[strings.ToLower(name)]
		return ok
	}

	base := OutputBaseName(invoiceID)
	name := base
	if taken(name) {
		name = base + "-" + idSuffix(invoiceID)
	}
	for i := 2; taken(name); i++ {
		name = fmt.Sprintf("%s-%s-%d", base, idSuffix(invoiceID), i)
	}

	n.byID[invoiceID] = name
	n.claimed[strings.ToLower(name)] = invoiceID
	return name
}

// idSuffix is a short stable digest of an invoice id.
func idSuffix(invoiceID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(invoiceID)).String()[:8]
}

// =============================================================================
// ERROR LOG GENERATION
// =============================================================================

// ErrorLogEntry represents a single error log entry.
type ErrorLogEntry struct {
	Timestamp    time.Time
	FileName     string
	ErrorType    string
	ErrorMessage string
	RowNumber    int
	FieldName    string
	FieldValue   string
	InvoiceID    string

	// SourceRows are the sheet rows of the failed invoice.
	SourceRows []int
}

// WriteErrorLog writes error entries to error_log_<timestamp>.txt in
// outputDir and returns the path. No entries means no file.
func WriteErrorLog(entries []ErrorLogEntry, outputDir string) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	now := time.Now()
	logPath := filepath.Join(outputDir, fmt.Sprintf("error_log_%s.txt", now.Format("20060102_150405")))

	file, err := os.Create(logPath)
	if err != nil {
		return "", fmt.Errorf("failed to create error log: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	fmt.Fprintf(writer, "Invoice Mailer - Error Log\n"+
		"Generated: %s\n"+
		"Total Errors: %d\n"+
		"================================================================================\n\n",
		now.Format("2006-01-02 15:04:05"),
		len(entries))

	for i, entry := range entries {
		fmt.Fprintf(writer, "Error #%d\n"+
			"  Timestamp:      %s\n"+
			"  File:           %s\n"+
			"  Error Type:     %s\n"+
			"  Message:        %s\n",
			i+1,
			entry.Timestamp.Format("2006-01-02 15:04:05"),
			entry.FileName,
			entry.ErrorType,
			entry.ErrorMessage)

		if entry.InvoiceID != "" {
			fmt.Fprintf(writer, "  Invoice:        %s\n", entry.InvoiceID)
		}
		if len(entry.SourceRows) > 0 {
			fmt.Fprintf(writer, "  Source Rows:    %s\n", joinRows(entry.SourceRows))
		}
		if entry.RowNumber > 0 {
			fmt.Fprintf(writer, "  Row Number:     %d\n", entry.RowNumber)
		}
		if entry.FieldName != "" {
			fmt.Fprintf(writer, "  Field:          %s\n", entry.FieldName)
		}
		if entry.FieldValue != "" {
			fmt.Fprintf(writer, "  Value:          %s\n", entry.FieldValue)
		}
		writer.WriteString("\n")
	}

	writer.WriteString("================================================================================\n" +
		"End of Error Log\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush error log: %w", err)
	}
	return logPath, nil
}

func joinRows(rows []int) string {
	parts := make([]string, len(rows))
	for i, r := range rows {
		parts[i] = strconv.Itoa(r)
	}
	return strings.Join(parts, ", ")
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// ProcessingSummary contains summary information about a run.
type ProcessingSummary struct {
	RunID           string
	InputFile       string
	StartTime       time.Time
	EndTime         time.Time
	RowsRead        int
	RowsSkipped     int
	InvoicesCreated int
	LineItems       int
	Rendered        int
	Sent            int
	Failed          int
	Invoices        []InvoiceInfo
}

// InvoiceInfo is the outcome of one invoice.
type InvoiceInfo struct {
	InvoiceID    string
	Recipient    string
	OutputFile   string
	Total        string
	Sent         bool
	ErrorMessage string
}

// WriteSummaryLog writes processing_summary_<timestamp>.txt to outputDir
// and returns the path.
func WriteSummaryLog(summary ProcessingSummary, outputDir string) (string, error) {
	timestamp := time.Now().Format("20060102_150405")
	summaryPath := filepath.Join(outputDir, fmt.Sprintf("processing_summary_%s.txt", timestamp))

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	duration := summary.EndTime.Sub(summary.StartTime)
	fmt.Fprintf(writer, "Invoice Mailer - Processing Summary\n"+
		"================================================================================\n\n"+
		"Run Information:\n"+
		"  Run ID:         %s\n"+
		"  Input:          %s\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n\n"+
		"Statistics:\n"+
		"  Rows Read:          %d\n"+
		"  Rows Skipped:       %d\n"+
		"  Invoices:           %d\n"+
		"  Line Items:         %d\n"+
		"  Rendered:           %d\n"+
		"  Sent:               %d\n"+
		"  Failed:             %d\n\n",
		summary.RunID,
		summary.InputFile,
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		duration.String(),
		summary.RowsRead,
		summary.RowsSkipped,
		summary.InvoicesCreated,
		summary.LineItems,
		summary.Rendered,
		summary.Sent,
		summary.Failed)

	if len(summary.Invoices) > 0 {
		writer.WriteString("Invoices:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, info := range summary.Invoices {
			fmt.Fprintf(writer, "  Invoice:      %s\n", info.InvoiceID)
			fmt.Fprintf(writer, "  Total:        %s\n", info.Total)
			if info.OutputFile != "" {
				fmt.Fprintf(writer, "  Output:       %s\n", info.OutputFile)
			}
			if info.Sent {
				fmt.Fprintf(writer, "  Sent To:      %s\n", info.Recipient)
			}
			if info.ErrorMessage != "" {
				fmt.Fprintf(writer, "  Error:        %s\n", info.ErrorMessage)
			}
			writer.WriteString("\n")
		}
	}

	writer.WriteString("================================================================================\n" +
		"End of Summary\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}
	return summaryPath, nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}
	return destFile.Sync()
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
