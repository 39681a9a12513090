package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ginjaninja78/xlsx-invoice-mailer/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	from string
	to   []string
	msg  []byte
	err  error
}

func (f *fakeTransport) Send(_ context.Context, from string, to []string, msg []byte) error {
	f.from, f.to, f.msg = from, to, msg
	return f.err
}

func writePDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "INV-1.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\n%fake invoice\n"), 0644))
	return path
}

func TestRecipient_Fallbacks(t *testing.T) {
	n := New(Config{Account: "sender@example.com", DefaultRecipient: "billing@example.com"}, &fakeTransport{}, nil)

	to, err := n.Recipient("INV-1", " client@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "client@example.com", to)

	to, err = n.Recipient("INV-1", "")
	require.NoError(t, err)
	assert.Equal(t, "billing@example.com", to)

	n = New(Config{Account: "sender@example.com"}, &fakeTransport{}, nil)
	to, err = n.Recipient("INV-1", "  ")
	require.NoError(t, err)
	assert.Equal(t, "sender@example.com", to)
}

func TestSend_NoRecipient(t *testing.T) {
	transport := &fakeTransport{}
	n := New(Config{}, transport, nil)

	err := n.Send(context.Background(), writePDF(t), "INV-9", "Acme", "")
	var nre *apperr.NoRecipientError
	require.ErrorAs(t, err, &nre)
	assert.Equal(t, "INV-9", nre.InvoiceID)
	assert.Nil(t, transport.msg, "nothing sent")
}

func TestSend_ComposesMessage(t *testing.T) {
	transport := &fakeTransport{}
	n := New(Config{
		Account:   "sender@example.com",
		FromName:  "Anushka Traders",
		Signature: "Accounts team",
	}, transport, nil)

	to, err := n.SendTo(context.Background(), writePDF(t), "INV-1", "Acme", "client@example.com")
	require.NoError(t, err)
	assert.Equal(t, "client@example.com", to)
	assert.Equal(t, "sender@example.com", transport.from)
	assert.Equal(t, []string{"client@example.com"}, transport.to)

	msg, err := mail.ReadMessage(bytes.NewReader(transport.msg))
	require.NoError(t, err)
	assert.Equal(t, "Invoice INV-1 from Anushka Traders", msg.Header.Get("Subject"))
	assert.Equal(t, "client@example.com", msg.Header.Get("To"))
	assert.Contains(t, msg.Header.Get("From"), "sender@example.com")
	assert.Regexp(t, `^<[0-9a-f-]{36}@example\.com>$`, msg.Header.Get("Message-ID"))

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/mixed", mediaType)

	mr := multipart.NewReader(msg.Body, params["boundary"])

	body, err := mr.NextPart()
	require.NoError(t, err)
	text, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "Dear Acme,\r\n\r\nHere is your invoice INV-1 from Anushka Traders.\r\n\r\nAccounts team\r\n", string(text))

	attachment, err := mr.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "INV-1.pdf", attachment.FileName())
	assert.True(t, strings.HasPrefix(attachment.Header.Get("Content-Type"), "application/pdf"))

	encoded, err := io.ReadAll(attachment)
	require.NoError(t, err)
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(string(encoded), "\r\n", ""))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4\n%fake invoice\n", string(decoded))

	_, err = mr.NextPart()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSend_TransportFailure(t *testing.T) {
	transport := &fakeTransport{err: errors.New("connection reset")}
	n := New(Config{Account: "sender@example.com"}, transport, nil)

	err := n.Send(context.Background(), writePDF(t), "INV-1", "Acme", "client@example.com")
	var te *apperr.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "smtp", te.Stage)
	assert.Equal(t, "INV-1", te.InvoiceID)
	assert.Equal(t, apperr.KindTransport, apperr.KindOf(err))
}

func TestSend_MissingAttachment(t *testing.T) {
	transport := &fakeTransport{}
	n := New(Config{Account: "sender@example.com"}, transport, nil)

	err := n.Send(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"), "INV-1", "Acme", "")
	assert.Error(t, err)
	assert.Nil(t, transport.msg)
}

func TestBase64Lines(t *testing.T) {
	out := encodeBase64Lines(bytes.Repeat([]byte{0xff}, 200))
	for _, line := range strings.Split(strings.TrimSuffix(string(out), "\r\n"), "\r\n") {
		assert.LessOrEqual(t, len(line), base64LineLength)
	}
}

func TestSMTPTransport_ConnectFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())

	transport := NewSMTPTransport(SMTPConfig{Host: "127.0.0.1", Port: addr.Port})
	err = transport.Send(context.Background(), "a@example.com", []string{"b@example.com"}, []byte("hi"))

	var te *apperr.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "smtp", te.Stage)
}
