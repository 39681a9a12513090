package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ginjaninja78/xlsx-invoice-mailer/internal/apperr"
	"github.com/ginjaninja78/xlsx-invoice-mailer/internal/config"
	"github.com/ginjaninja78/xlsx-invoice-mailer/internal/invoice"
	"github.com/ginjaninja78/xlsx-invoice-mailer/internal/rowsource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/multierr"
)

const csvHeader = "invoice_id,client_name,client_email,invoice_date,due_date,product,quantity,rate,payment_mode,billing_address,shipping_address,shipping_amount,shipped_to_client\n"

func writeCSV(t *testing.T, dir string, rows ...string) string {
	t.Helper()
	path := filepath.Join(dir, "invoice_details.csv")
	require.NoError(t, os.WriteFile(path, []byte(csvHeader+strings.Join(rows, "\n")+"\n"), 0644))
	return path
}

var sampleRows = []string{
	"INV-1,Acme,ap@acme.test,2024-01-15,2024-02-14,Widget,2,100,Bank,1 Main St,2 Dock Rd,0,",
	"INV-2,Globex,,2024-01-16,2024-02-15,Service,10,500,Card,9 Elm,9 Elm,0,",
	"INV-1,Acme,ap@acme.test,2024-01-15,2024-02-14,Gadget,3,50,Bank,1 Main St,2 Dock Rd,0,",
}

type fakeRenderer struct {
	dir  string
	fail map[string]error
	seen []string
}

func (f *fakeRenderer) Render(_ context.Context, inv *invoice.Invoice, _ string) (string, error) {
	f.seen = append(f.seen, inv.InvoiceID)
	if err := f.fail[inv.InvoiceID]; err != nil {
		return "", err
	}
	path := filepath.Join(f.dir, inv.InvoiceID+".pdf")
	return path, os.WriteFile(path, []byte("%PDF"), 0644)
}

type fakeSender struct {
	fail map[string]error
	sent []string
}

func (f *fakeSender) SendTo(_ context.Context, _, invoiceID, _, clientEmail string) (string, error) {
	if err := f.fail[invoiceID]; err != nil {
		return "", err
	}
	f.sent = append(f.sent, invoiceID)
	if clientEmail == "" {
		clientEmail = "fallback@example.com"
	}
	return clientEmail, nil
}

func testOptions(dir, input string) Options {
	return Options{
		InputPath:       input,
		TemplatePath:    "template.yaml",
		OutputDir:       filepath.Join(dir, "out"),
		Policy:          invoice.NewPricingPolicy(10, 5, 2000, invoice.NegativeReject),
		OnMalformedRow:  config.OnMalformedAbort,
		ContinueOnError: true,
		SendEmail:       true,
	}
}

func TestRun_RendersAndSendsInFirstSeenOrder(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir, writeCSV(t, dir, sampleRows...))
	renderer := &fakeRenderer{dir: dir}
	sender := &fakeSender{}

	result := New(opts, Deps{Renderer: renderer, Sender: sender}).Run(context.Background())
	require.NoError(t, result.Error)
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.RunID)

	assert.Equal(t, []string{"INV-1", "INV-2"}, renderer.seen)
	assert.Equal(t, []string{"INV-1", "INV-2"}, sender.sent)

	assert.Equal(t, 3, result.Stats.RowsRead)
	assert.Equal(t, 2, result.Stats.InvoicesCreated)
	assert.Equal(t, 3, result.Stats.LineItems)
	assert.Equal(t, 2, result.Stats.Rendered)
	assert.Equal(t, 2, result.Stats.Sent)
	assert.Zero(t, result.Stats.Failed)

	require.Len(t, result.Invoices, 2)
	assert.Equal(t, "385.00", invoice.FormatMoney(result.Invoices[0].Total))
	assert.Equal(t, "ap@acme.test", result.Invoices[0].Recipient)
	assert.Equal(t, "fallback@example.com", result.Invoices[1].Recipient)

	assert.FileExists(t, result.SummaryLog)
	assert.Empty(t, result.ErrorLog)
}

func TestRun_IsolatesFailedInvoices(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir, writeCSV(t, dir, sampleRows...))
	renderer := &fakeRenderer{dir: dir}
	sender := &fakeSender{fail: map[string]error{
		"INV-1": &apperr.TransportError{Stage: "smtp", InvoiceID: "INV-1", Err: errors.New("connection reset")},
	}}

	result := New(opts, Deps{Renderer: renderer, Sender: sender}).Run(context.Background())
	assert.False(t, result.Success)
	require.Error(t, result.Error)

	var te *apperr.TransportError
	assert.ErrorAs(t, result.Error, &te)
	assert.Len(t, multierr.Errors(result.Error), 1)

	assert.Equal(t, []string{"INV-2"}, sender.sent, "later invoices still go out")
	assert.Equal(t, 2, result.Stats.Rendered)
	assert.Equal(t, 1, result.Stats.Sent)
	assert.Equal(t, 1, result.Stats.Failed)

	require.NotEmpty(t, result.ErrorLog)
	data, err := os.ReadFile(result.ErrorLog)
	require.NoError(t, err)
	assert.Contains(t, string(data), "INV-1")
	assert.Contains(t, string(data), apperr.KindTransport)
	assert.Contains(t, string(data), "Source Rows:    2, 4")
}

func TestRun_StopsOnFirstFailureWithoutContinue(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir, writeCSV(t, dir, sampleRows...))
	opts.ContinueOnError = false
	renderer := &fakeRenderer{dir: dir, fail: map[string]error{"INV-1": errors.New("boom")}}
	sender := &fakeSender{}

	result := New(opts, Deps{Renderer: renderer, Sender: sender}).Run(context.Background())
	assert.False(t, result.Success)
	assert.Equal(t, []string{"INV-1"}, renderer.seen)
	assert.Empty(t, sender.sent)
	assert.Equal(t, 1, result.Stats.Failed)
}

func TestRun_MalformedRowPolicies(t *testing.T) {
	rows := append([]string{}, sampleRows...)
	rows = append(rows, "INV-3,Initech,,2024-01-17,2024-02-16,Gizmo,many,5,Card,x,y,0,")

	t.Run("abort", func(t *testing.T) {
		dir := t.TempDir()
		renderer := &fakeRenderer{dir: dir}
		result := New(testOptions(dir, writeCSV(t, dir, rows...)), Deps{Renderer: renderer}).Run(context.Background())

		var mre *apperr.MalformedRecordError
		require.ErrorAs(t, result.Error, &mre)
		assert.Equal(t, 5, mre.Row)
		assert.Equal(t, "quantity", mre.Column)
		assert.Empty(t, renderer.seen, "nothing rendered after abort")
		assert.NotEmpty(t, result.ErrorLog)
	})

	t.Run("skip", func(t *testing.T) {
		dir := t.TempDir()
		opts := testOptions(dir, writeCSV(t, dir, rows...))
		opts.OnMalformedRow = config.OnMalformedSkip
		opts.SendEmail = false
		renderer := &fakeRenderer{dir: dir}

		result := New(opts, Deps{Renderer: renderer}).Run(context.Background())
		require.NoError(t, result.Error)
		assert.True(t, result.Success)
		assert.Equal(t, 4, result.Stats.RowsRead)
		assert.Equal(t, 1, result.Stats.RowsSkipped)
		assert.Equal(t, 2, result.Stats.InvoicesCreated)
		assert.Zero(t, result.Stats.Sent)
		assert.NotEmpty(t, result.ErrorLog, "skipped rows are reported")
	})
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir, writeCSV(t, dir, sampleRows...))
	opts.DryRun = true
	renderer := &fakeRenderer{dir: dir}

	result := New(opts, Deps{Renderer: renderer, Sender: &fakeSender{}}).Run(context.Background())
	require.NoError(t, result.Error)
	assert.Empty(t, renderer.seen)
	assert.Len(t, result.Invoices, 2)
	assert.NoDirExists(t, opts.OutputDir)
}

func TestRun_ArchivesInputAfterSuccess(t *testing.T) {
	dir := t.TempDir()
	input := writeCSV(t, dir, sampleRows...)
	opts := testOptions(dir, input)
	opts.InputArchiveDir = filepath.Join(dir, "archive")

	result := New(opts, Deps{Renderer: &fakeRenderer{dir: dir}, Sender: &fakeSender{}}).Run(context.Background())
	require.NoError(t, result.Error)
	assert.Equal(t, filepath.Join(opts.InputArchiveDir, "invoice_details.csv"), result.ArchivedInput)
	assert.NoFileExists(t, input)
}

func TestRun_ArchivesIntoTimestampSubdirs(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir, writeCSV(t, dir, sampleRows...))
	opts.InputArchiveDir = filepath.Join(dir, "archive")
	opts.ArchiveTimestampSubdirs = true

	result := New(opts, Deps{Renderer: &fakeRenderer{dir: dir}, Sender: &fakeSender{}}).Run(context.Background())
	require.NoError(t, result.Error)

	rel, err := filepath.Rel(opts.InputArchiveDir, result.ArchivedInput)
	require.NoError(t, err)
	assert.Regexp(t, `^\d{4}/\d{2}/\d{2}/invoice_details\.csv$`, filepath.ToSlash(rel))
	assert.FileExists(t, result.ArchivedInput)
}

func TestOptionsFromConfig_ReaderAndArchive(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	require.NoError(t, err)
	cfg.Input.Delimiter = ";"
	cfg.Paths.ArchiveTimestampSubdirs = true

	opts := OptionsFromConfig(cfg)
	assert.Equal(t, ";", opts.Source.Delimiter)
	assert.True(t, opts.ArchiveTimestampSubdirs)

	dir := t.TempDir()
	input := filepath.Join(dir, "orders.csv")
	semicolon := strings.ReplaceAll(csvHeader+sampleRows[0]+"\n", ",", ";")
	require.NoError(t, os.WriteFile(input, []byte(semicolon), 0644))
	opts.InputPath = input

	invoices, stats, err := New(opts, Deps{}).Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.RowsRead)
	require.Len(t, invoices, 1)
	assert.Equal(t, "INV-1", invoices[0].InvoiceID)
}

func TestRun_MissingInput(t *testing.T) {
	dir := t.TempDir()
	result := New(testOptions(dir, filepath.Join(dir, "missing.xlsx")), Deps{Renderer: &fakeRenderer{dir: dir}}).Run(context.Background())
	assert.False(t, result.Success)
	assert.Error(t, result.Error)
}

func TestRun_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	renderer := &fakeRenderer{dir: dir}
	result := New(testOptions(dir, writeCSV(t, dir, sampleRows...)), Deps{Renderer: renderer}).Run(ctx)
	assert.ErrorIs(t, result.Error, context.Canceled)
	assert.Empty(t, renderer.seen)
}

func TestCollect_XLSXAndPreview(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "invoice_details.xlsx")

	f := excelize.NewFile()
	header := make([]interface{}, len(rowsource.ColumnNames))
	for i, name := range rowsource.ColumnNames {
		header[i] = name
	}
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &header))
	row := []interface{}{"INV-9", "Acme", "ap@acme.test", "2024-07-01", "2024-07-31", "Consulting", 10, 500, "Bank", "1 Main\nSt", "2 Dock Rd", 100}
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &row))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	opts := testOptions(dir, path)
	invoices, stats, err := New(opts, Deps{}).Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, 1, stats.InvoicesCreated)
	assert.Equal(t, "5320.00", invoice.FormatMoney(invoices[0].Total))

	var buf bytes.Buffer
	require.NoError(t, Preview(&buf, invoices, invoice.Company{Name: "Anushka Traders"}, opts.Policy, ""))
	out := buf.String()
	assert.Contains(t, out, "Anushka Traders")
	assert.Contains(t, out, "INV-9")
	assert.Contains(t, out, "01-07-2024")
	assert.Contains(t, out, "1 Main St")
	assert.Contains(t, out, "Tax (10%):")
	assert.Contains(t, out, "280.00")
	assert.Contains(t, out, "5320.00")
}
