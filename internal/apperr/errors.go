// =============================================================================
// Invoice Mailer - Error Kinds
// =============================================================================
//
// This package defines the error kinds shared by every stage of the invoice
// pipeline. Each kind is a pointer type so callers can match it with
// errors.As, and each exposes a short Kind() code for logs and summaries.
//
// ERROR KINDS:
//   - MalformedRecordError   : a spreadsheet cell could not be coerced
//   - TemplateStructureError : an expected template region is missing
//   - NoRecipientError       : no usable email address for an invoice
//   - TransportError         : document conversion or mail delivery failed
//
// =============================================================================

package apperr

import (
	"errors"
	"fmt"
)

// =============================================================================
// ERROR CODES
// =============================================================================

const (
	KindMalformedRecord   = "MALFORMED_RECORD"
	KindTemplateStructure = "TEMPLATE_STRUCTURE"
	KindNoRecipient       = "NO_RECIPIENT"
	KindTransport         = "TRANSPORT"
	KindUnknown           = "UNKNOWN"
)

// =============================================================================
// MALFORMED RECORD
// =============================================================================

// MalformedRecordError reports a cell that cannot be coerced to its
// semantic type (date, integer, currency) or a row with the wrong shape.
type MalformedRecordError struct {
	// Row is the 1-based spreadsheet row number (the header is row 1).
	Row int

	// Column is the column name, e.g. "quantity".
	Column string

	// Value is the raw cell text that failed coercion.
	Value string

	// Reason is a human-readable description of the failure.
	Reason string

	// Err is the underlying parse error, if any.
	Err error
}

// Error implements the error interface.
func (e *MalformedRecordError) Error() string {
	msg := fmt.Sprintf("malformed record at row %d, column %q", e.Row, e.Column)
	if e.Value != "" {
		msg += fmt.Sprintf(" (value: %q)", e.Value)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Unwrap returns the underlying parse error.
func (e *MalformedRecordError) Unwrap() error { return e.Err }

// Kind returns the error code.
func (e *MalformedRecordError) Kind() string { return KindMalformedRecord }

// =============================================================================
// TEMPLATE STRUCTURE
// =============================================================================

// TemplateStructureError reports that the template lacks a region the
// renderer expected, such as the 4-column DESCRIPTION table.
type TemplateStructureError struct {
	Template string
	Region   string
	Reason   string
}

func (e *TemplateStructureError) Error() string {
	return fmt.Sprintf("template %s: %s: %s", e.Template, e.Region, e.Reason)
}

func (e *TemplateStructureError) Kind() string { return KindTemplateStructure }

// =============================================================================
// NO RECIPIENT
// =============================================================================

// NoRecipientError is returned when neither the client email nor any
// configured fallback address is available.
type NoRecipientError struct {
	InvoiceID string
}

func (e *NoRecipientError) Error() string {
	return fmt.Sprintf("no recipient address for invoice %s", e.InvoiceID)
}

func (e *NoRecipientError) Kind() string { return KindNoRecipient }

// =============================================================================
// TRANSPORT
// =============================================================================

// TransportError wraps a failure of an external collaborator: the
// document converter ("convert") or the mail transport ("smtp").
type TransportError struct {
	Stage     string
	InvoiceID string
	Err       error
}

func (e *TransportError) Error() string {
	if e.InvoiceID != "" {
		return fmt.Sprintf("%s failed for invoice %s: %v", e.Stage, e.InvoiceID, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Kind() string { return KindTransport }

// =============================================================================
// HELPERS
// =============================================================================

type kinded interface {
	Kind() string
}

// KindOf returns the code of the first error kind found in err's chain,
// or KindUnknown.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindUnknown
}
