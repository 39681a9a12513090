// =============================================================================
// Invoice Mailer - Pipeline Module
// =============================================================================
//
// This module orchestrates one run over an input spreadsheet.
//
// PIPELINE:
//   1. Open the input and read every data row in order
//   2. Fold each row into its invoice aggregate (first-seen order)
//   3. For each finished invoice, render it from the template
//   4. Mail the rendered document to the client
//   5. Write the processing summary and error log
//   6. Archive the input after a fully successful run
//
// FAILURE HANDLING:
//   - Malformed rows abort the run, or are skipped and logged
//     (processing.on_malformed_row)
//   - A failed render or send fails only that invoice when
//     ContinueOnError is set; otherwise the run stops there
//   - All failures are combined into Result.Error
//
// Processing is sequential: one invoice is rendered and sent at a time.
//
// =============================================================================

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ginjaninja78/xlsx-invoice-mailer/internal/apperr"
	"github.com/ginjaninja78/xlsx-invoice-mailer/internal/config"
	"github.com/ginjaninja78/xlsx-invoice-mailer/internal/invoice"
	"github.com/ginjaninja78/xlsx-invoice-mailer/internal/logging"
	"github.com/ginjaninja78/xlsx-invoice-mailer/internal/rowsource"
	"github.com/ginjaninja78/xlsx-invoice-mailer/pkg/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Renderer renders one invoice and returns the document path.
type Renderer interface {
	Render(ctx context.Context, inv *invoice.Invoice, templatePath string) (string, error)
}

// Sender mails a rendered invoice and returns the recipient used.
type Sender interface {
	SendTo(ctx context.Context, documentPath, invoiceID, clientName, clientEmail string) (string, error)
}

// Deps are the pipeline's collaborators. Sender may be nil when mail is
// disabled.
type Deps struct {
	Renderer Renderer
	Sender   Sender
	Logger   *zap.Logger
}

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures a run.
type Options struct {
	InputPath       string
	TemplatePath    string
	OutputDir       string
	InputArchiveDir string

	// ArchiveTimestampSubdirs files the archived input under yyyy/mm/dd.
	ArchiveTimestampSubdirs bool

	Source rowsource.Options
	Policy invoice.PricingPolicy

	// OnMalformedRow is config.OnMalformedAbort or config.OnMalformedSkip.
	OnMalformedRow string

	ContinueOnError bool
	SendEmail       bool

	// DryRun reads and aggregates only: nothing is rendered, sent or
	// written.
	DryRun bool
}

// OptionsFromConfig maps the configuration onto run options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		InputPath:       cfg.Paths.Input,
		TemplatePath:    cfg.Paths.Template,
		OutputDir:       cfg.Paths.OutputDir,
		InputArchiveDir: cfg.Paths.InputArchiveDir,

		ArchiveTimestampSubdirs: cfg.Paths.ArchiveTimestampSubdirs,

		Source: rowsource.Options{
			Sheet:       cfg.Input.Sheet,
			Delimiter:   cfg.Input.Delimiter,
			DateLayouts: cfg.Input.DateLayouts,
		},
		Policy:          cfg.PricingPolicy(),
		OnMalformedRow:  cfg.Processing.OnMalformedRow,
		ContinueOnError: cfg.Processing.ContinueOnError,
		SendEmail:       cfg.Processing.SendEmail,
	}
}

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result is the outcome of a run.
type Result struct {
	RunID     string
	InputFile string

	// Success is true when every row was read and every invoice was
	// rendered (and sent, when mail is enabled).
	Success bool

	// Error combines every failure of the run. Use multierr.Errors to
	// split it.
	Error error

	Stats    Stats
	Invoices []InvoiceOutcome

	// SummaryLog and ErrorLog are the written log paths, if any.
	SummaryLog string
	ErrorLog   string

	// ArchivedInput is the new input path when it was archived.
	ArchivedInput string
}

// Stats contains run statistics.
type Stats struct {
	// RowsRead counts data rows examined, including skipped ones.
	RowsRead int

	// RowsSkipped counts malformed rows skipped under the skip policy.
	RowsSkipped int

	InvoicesCreated int
	LineItems       int
	Rendered        int
	Sent            int
	Failed          int

	ProcessingTime time.Duration
}

// InvoiceOutcome is what happened to one invoice.
type InvoiceOutcome struct {
	InvoiceID  string
	Total      decimal.Decimal
	OutputFile string
	Recipient  string
	Rendered   bool
	Sent       bool
	Err        error
}

// =============================================================================
// PIPELINE
// =============================================================================

// Pipeline runs the row source, aggregator, renderer and notifier.
type Pipeline struct {
	opts   Options
	deps   Deps
	logger *zap.Logger
}

// New creates a Pipeline.
func New(opts Options, deps Deps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.OnMalformedRow == "" {
		opts.OnMalformedRow = config.OnMalformedAbort
	}
	return &Pipeline{opts: opts, deps: deps, logger: logger}
}

// Run executes the whole pipeline.
func (p *Pipeline) Run(ctx context.Context) Result {
	startTime := time.Now()
	result := Result{
		RunID:     uuid.NewString(),
		InputFile: p.opts.InputPath,
	}
	log := logging.WithRun(p.logger, result.RunID)
	var errs error
	var entries []utils.ErrorLogEntry

	fail := func(err error, inv *invoice.Invoice) {
		errs = multierr.Append(errs, err)
		entries = append(entries, errorEntry(p.opts.InputPath, inv, err))
	}

	fm := utils.NewFileManager(p.opts.OutputDir, p.opts.InputArchiveDir)
	fm.UseTimestampSubdirs = p.opts.ArchiveTimestampSubdirs
	if !p.opts.DryRun {
		if err := fm.EnsureDirectories(); err != nil {
			result.Error = err
			result.Stats.ProcessingTime = time.Since(startTime)
			return result
		}
	}

	log.Info("starting run",
		zap.String("input", p.opts.InputPath),
		zap.String("template", p.opts.TemplatePath),
		zap.Bool("dry_run", p.opts.DryRun),
		zap.Bool("send_email", p.opts.SendEmail))

	// =========================================================================
	// STEP 1-2: READ AND AGGREGATE
	// =========================================================================

	// Skipped rows go to the error log but do not fail the run.
	invoices, stats, err := p.collect(ctx, log, func(err error) {
		entries = append(entries, errorEntry(p.opts.InputPath, nil, err))
	})
	result.Stats = stats
	if err != nil {
		fail(err, nil)
	}

	// =========================================================================
	// STEP 3-4: RENDER AND SEND
	// =========================================================================

	if err == nil && !p.opts.DryRun {
		for _, inv := range invoices {
			if ctxErr := ctx.Err(); ctxErr != nil {
				fail(ctxErr, nil)
				break
			}

			outcome := p.deliver(ctx, log, inv)
			result.Invoices = append(result.Invoices, outcome)
			if outcome.Rendered {
				result.Stats.Rendered++
			}
			if outcome.Sent {
				result.Stats.Sent++
			}
			if outcome.Err != nil {
				result.Stats.Failed++
				fail(outcome.Err, inv)
				if !p.opts.ContinueOnError {
					log.Warn("stopping after failed invoice", zap.String("invoice_id", inv.InvoiceID))
					break
				}
			}
		}
	} else if p.opts.DryRun {
		for _, inv := range invoices {
			result.Invoices = append(result.Invoices, InvoiceOutcome{InvoiceID: inv.InvoiceID, Total: inv.Total})
		}
	}

	result.Error = errs
	result.Success = errs == nil
	result.Stats.ProcessingTime = time.Since(startTime)

	// =========================================================================
	// STEP 5-6: LOGS AND ARCHIVE
	// =========================================================================

	if !p.opts.DryRun {
		p.writeLogs(&result, entries, startTime, log)

		if result.Success && p.opts.InputArchiveDir != "" {
			archived, err := fm.ArchiveInputFile(p.opts.InputPath)
			if err != nil {
				// Log the error but don't fail the run.
				log.Warn("failed to archive input", zap.Error(err))
			} else {
				result.ArchivedInput = archived
			}
		}
	}

	log.Info("run complete",
		zap.Bool("success", result.Success),
		zap.Int("rows", result.Stats.RowsRead),
		zap.Int("skipped", result.Stats.RowsSkipped),
		zap.Int("invoices", result.Stats.InvoicesCreated),
		zap.Int("rendered", result.Stats.Rendered),
		zap.Int("sent", result.Stats.Sent),
		zap.Int("failed", result.Stats.Failed),
		zap.Duration("duration", result.Stats.ProcessingTime))

	return result
}

// Collect reads and aggregates the input without rendering anything.
// Rows skipped under the skip policy are only logged.
func (p *Pipeline) Collect(ctx context.Context) ([]*invoice.Invoice, Stats, error) {
	return p.collect(ctx, p.logger, func(error) {})
}

// collect runs the row source into the aggregator. onSkip observes each
// malformed row skipped under the skip policy; a returned error stops the
// run.
func (p *Pipeline) collect(ctx context.Context, log *zap.Logger, onSkip func(error)) ([]*invoice.Invoice, Stats, error) {
	var stats Stats

	src, err := rowsource.Open(p.opts.InputPath, p.opts.Source)
	if err != nil {
		return nil, stats, err
	}

	agg := invoice.NewAggregator(p.opts.Policy)
	total := src.TotalRecordCount()
	log.Debug("opened input", zap.Int("records", total))

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		rec, ok, err := src.Read(i)
		if !ok {
			break
		}
		stats.RowsRead++
		if err == nil {
			err = agg.Ingest(rec)
		}
		if err == nil {
			continue
		}

		var mre *apperr.MalformedRecordError
		if p.opts.OnMalformedRow == config.OnMalformedSkip && errors.As(err, &mre) {
			stats.RowsSkipped++
			log.Warn("skipping malformed row", zap.Int("row", mre.Row), zap.Error(err))
			onSkip(err)
			continue
		}
		return nil, stats, err
	}

	invoices := agg.FinishedInvoices()
	stats.InvoicesCreated = len(invoices)
	stats.LineItems = agg.LineItemCount()
	log.Info("aggregated invoices",
		zap.Int("invoices", stats.InvoicesCreated),
		zap.Int("line_items", stats.LineItems))

	return invoices, stats, nil
}

// deliver renders and sends one invoice.
func (p *Pipeline) deliver(ctx context.Context, log *zap.Logger, inv *invoice.Invoice) InvoiceOutcome {
	log = logging.WithInvoice(log, inv.InvoiceID)
	outcome := InvoiceOutcome{InvoiceID: inv.InvoiceID, Total: inv.Total}

	path, err := p.deps.Renderer.Render(ctx, inv, p.opts.TemplatePath)
	if err != nil {
		log.Error("failed to render invoice", zap.Error(err))
		outcome.Err = fmt.Errorf("failed to render invoice %s: %w", inv.InvoiceID, err)
		return outcome
	}
	outcome.Rendered = true
	outcome.OutputFile = path
	log.Info("rendered invoice", zap.String("output", path), zap.String("total", invoice.FormatMoney(inv.Total)))

	if !p.opts.SendEmail || p.deps.Sender == nil {
		return outcome
	}

	to, err := p.deps.Sender.SendTo(ctx, path, inv.InvoiceID, inv.ClientName, inv.ClientEmail)
	if err != nil {
		log.Error("failed to send invoice", zap.Error(err))
		outcome.Err = fmt.Errorf("failed to send invoice %s: %w", inv.InvoiceID, err)
		return outcome
	}
	outcome.Sent = true
	outcome.Recipient = to
	return outcome
}

// writeLogs writes the summary and, when there were failures, the error
// log.
func (p *Pipeline) writeLogs(result *Result, entries []utils.ErrorLogEntry, start time.Time, log *zap.Logger) {
	summary := utils.ProcessingSummary{
		RunID:           result.RunID,
		InputFile:       result.InputFile,
		StartTime:       start,
		EndTime:         time.Now(),
		RowsRead:        result.Stats.RowsRead,
		RowsSkipped:     result.Stats.RowsSkipped,
		InvoicesCreated: result.Stats.InvoicesCreated,
		LineItems:       result.Stats.LineItems,
		Rendered:        result.Stats.Rendered,
		Sent:            result.Stats.Sent,
		Failed:          result.Stats.Failed,
	}
	for _, o := range result.Invoices {
		info := utils.InvoiceInfo{
			InvoiceID:  o.InvoiceID,
			Recipient:  o.Recipient,
			OutputFile: o.OutputFile,
			Total:      invoice.FormatMoney(o.Total),
			Sent:       o.Sent,
		}
		if o.Err != nil {
			info.ErrorMessage = o.Err.Error()
		}
		summary.Invoices = append(summary.Invoices, info)
	}

	path, err := utils.WriteSummaryLog(summary, p.opts.OutputDir)
	if err != nil {
		log.Warn("failed to write summary", zap.Error(err))
	}
	result.SummaryLog = path

	path, err = utils.WriteErrorLog(entries, p.opts.OutputDir)
	if err != nil {
		log.Warn("failed to write error log", zap.Error(err))
	}
	result.ErrorLog = path
}

// errorEntry turns an error into an error log entry, picking up the row
// and column of malformed records and the source rows of a failed
// invoice. inv is nil for failures outside any invoice.
func errorEntry(fileName string, inv *invoice.Invoice, err error) utils.ErrorLogEntry {
	entry := utils.ErrorLogEntry{
		Timestamp:    time.Now(),
		FileName:     fileName,
		ErrorType:    apperr.KindOf(err),
		ErrorMessage: err.Error(),
	}
	if inv != nil {
		entry.InvoiceID = inv.InvoiceID
		entry.SourceRows = inv.SourceRows
	}
	var mre *apperr.MalformedRecordError
	if errors.As(err, &mre) {
		entry.RowNumber = mre.Row
		entry.FieldName = mre.Column
		entry.FieldValue = mre.Value
	}
	var nre *apperr.NoRecipientError
	if entry.InvoiceID == "" && errors.As(err, &nre) {
		entry.InvoiceID = nre.InvoiceID
	}
	return entry
}
