package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMalformedRecordError_Message(t *testing.T) {
	err := &MalformedRecordError{Row: 4, Column: "quantity", Value: "two", Reason: "not an integer"}
	assert.Equal(t, `malformed record at row 4, column "quantity" (value: "two"): not an integer`, err.Error())
}

func TestKindOf_WrappedErrors(t *testing.T) {
	cause := errors.New("connection refused")
	wrapped := fmt.Errorf("failed to send invoice: %w", &TransportError{Stage: "smtp", InvoiceID: "INV-1", Err: cause})

	assert.Equal(t, KindTransport, KindOf(wrapped))
	assert.ErrorIs(t, wrapped, cause)

	var te *TransportError
	require.ErrorAs(t, wrapped, &te)
	assert.Equal(t, "smtp", te.Stage)

	assert.Equal(t, KindNoRecipient, KindOf(&NoRecipientError{InvoiceID: "INV-2"}))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, "", KindOf(nil))
}
