package mailbox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailroute/internal/model"
)

func TestComposeForward(t *testing.T) {
	msg := ComposeForward("desk@example.com", model.ForwardRequest{
		RecipientAddress: "finance@example.com",
		OriginalSubject:  "Invoice #42",
		OriginalBody:     "Please pay by Friday.",
	})

	assert.Equal(t, "desk@example.com", msg.From)
	assert.Equal(t, "finance@example.com", msg.To)
	assert.Equal(t, "FWD: Invoice #42", msg.Subject)
	assert.Equal(t, "Original Email Body:\n\nPlease pay by Friday.", msg.Body)
}

func TestForwardMessage_Render(t *testing.T) {
	msg := ComposeForward("desk@example.com", model.ForwardRequest{
		RecipientAddress: "finance@example.com",
		OriginalSubject:  "Facture réglée",
		OriginalBody:     "Merci, c'est payé.",
	})

	raw, err := msg.Render()
	require.NoError(t, err)
	require.NotEmpty(t, msg.MessageID)
	assert.True(t, strings.HasSuffix(msg.MessageID, "@example.com"))

	text := string(raw)
	assert.Contains(t, text, "multipart/mixed")
	assert.Contains(t, text, "text/plain; charset=utf-8")
	assert.Contains(t, text, "<"+msg.MessageID+">")

	decoded, err := DecodeMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, "FWD: Facture réglée", decoded.Subject)
	assert.Equal(t,
		"Original Email Body:\n\nMerci, c'est payé.",
		strings.ReplaceAll(decoded.Body, "\r\n", "\n"),
	)
}

func TestForwardMessage_RenderKeepsMessageID(t *testing.T) {
	msg := ComposeForward("desk@example.com", model.ForwardRequest{
		RecipientAddress: "hr@example.com",
		OriginalSubject:  "Leave request",
	})
	msg.MessageID = "fixed-id@example.com"

	raw, err := msg.Render()
	require.NoError(t, err)
	assert.Equal(t, "fixed-id@example.com", msg.MessageID)
	assert.Contains(t, string(raw), "<fixed-id@example.com>")
}

func TestAddressDomain(t *testing.T) {
	assert.Equal(t, "example.com", addressDomain("desk@example.com"))
	assert.Equal(t, "localhost", addressDomain("desk"))
	assert.Equal(t, "localhost", addressDomain("desk@"))
}
