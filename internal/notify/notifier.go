// =============================================================================
// Invoice Mailer - Notifier
// =============================================================================
//
// This module mails a rendered invoice to its client.
//
// RECIPIENT RESOLUTION (first non-empty wins):
//   1. The client email from the spreadsheet
//   2. The configured default recipient
//   3. The sender account itself
// When none is available the send fails with apperr.NoRecipientError.
//
// MESSAGE:
//   Subject: Invoice <id> from <sender>
//   Body:    Dear <client>,
//
//            Here is your invoice <id> from <sender>.
//   One attachment: the rendered document.
//
// There are no retries; a transport failure is returned to the caller.
//
// =============================================================================

package notify

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/ginjaninja78/xlsx-invoice-mailer/internal/apperr"
	"go.uber.org/zap"
)

// Transport delivers an encoded message.
type Transport interface {
	Send(ctx context.Context, from string, to []string, msg []byte) error
}

// Config holds the sender identity.
type Config struct {
	// Account is the sender mailbox, also the last-resort recipient.
	Account string

	// FromName is the sender display name used in the subject and body.
	// Empty uses Account.
	FromName string

	// DefaultRecipient receives invoices whose client has no email.
	DefaultRecipient string

	// Signature is appended to the body when set.
	Signature string
}

// Notifier composes and sends invoice mails.
type Notifier struct {
	cfg       Config
	transport Transport
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a Notifier. A nil logger disables logging.
func New(cfg Config, transport Transport, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		cfg:       cfg,
		transport: transport,
		logger:    logger,
		now:       time.Now,
	}
}

// Recipient resolves the address an invoice is sent to.
func (n *Notifier) Recipient(invoiceID, clientEmail string) (string, error) {
	for _, candidate := range []string{clientEmail, n.cfg.DefaultRecipient, n.cfg.Account} {
		if addr := strings.TrimSpace(candidate); addr != "" {
			return addr, nil
		}
	}
	return "", &apperr.NoRecipientError{InvoiceID: invoiceID}
}

// Send mails the document at documentPath for one invoice.
func (n *Notifier) Send(ctx context.Context, documentPath, invoiceID, clientName, clientEmail string) error {
	_, err := n.SendTo(ctx, documentPath, invoiceID, clientName, clientEmail)
	return err
}

// SendTo is Send that also returns the resolved recipient.
func (n *Notifier) SendTo(ctx context.Context, documentPath, invoiceID, clientName, clientEmail string) (string, error) {
	to, err := n.Recipient(invoiceID, clientEmail)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(clientEmail) == "" {
		n.logger.Info("client has no email, using fallback recipient",
			zap.String("invoice_id", invoiceID),
			zap.String("recipient", to))
	}

	attachment, err := LoadAttachment(documentPath)
	if err != nil {
		return "", err
	}

	msg := Message{
		From:        mail.Address{Name: n.cfg.FromName, Address: n.cfg.Account},
		To:          []string{to},
		Subject:     Subject(invoiceID, n.sender()),
		Body:        n.body(invoiceID, clientName),
		Attachments: []Attachment{attachment},
		Date:        n.now(),
	}
	data, err := msg.Bytes()
	if err != nil {
		return "", err
	}

	if err := n.transport.Send(ctx, n.cfg.Account, []string{to}, data); err != nil {
		var te *apperr.TransportError
		if errors.As(err, &te) {
			te.InvoiceID = invoiceID
			return "", te
		}
		return "", &apperr.TransportError{Stage: "smtp", InvoiceID: invoiceID, Err: err}
	}

	n.logger.Info("invoice sent",
		zap.String("invoice_id", invoiceID),
		zap.String("recipient", to),
		zap.String("attachment", attachment.Name))
	return to, nil
}

// Subject returns the mail subject for an invoice.
func Subject(invoiceID, sender string) string {
	return fmt.Sprintf("Invoice %s from %s", invoiceID, sender)
}

func (n *Notifier) sender() string {
	if n.cfg.FromName != "" {
		return n.cfg.FromName
	}
	return n.cfg.Account
}

func (n *Notifier) body(invoiceID, clientName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\nHere is your invoice %s from %s.\n", clientName, invoiceID, n.sender())
	if n.cfg.Signature != "" {
		b.WriteString("\n")
		b.WriteString(n.cfg.Signature)
		b.WriteString("\n")
	}
	return b.String()
}
