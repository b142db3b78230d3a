package mailbox

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/nhle/mailroute/internal/model"
)

// Forwarded copies carry this subject prefix and body preamble.
const (
	ForwardSubjectPrefix = "FWD: "
	ForwardBodyPreamble  = "Original Email Body:\n\n"
)

// ForwardMessage is a composed forward, ready to be rendered to RFC 5322
// bytes.
type ForwardMessage struct {
	From      string
	To        string
	Subject   string
	Body      string
	Date      time.Time
	MessageID string
}

// ComposeForward builds the forwarded copy of an email. It never fails;
// rendering does.
func ComposeForward(from string, req model.ForwardRequest) ForwardMessage {
	return ForwardMessage{
		From:    from,
		To:      req.RecipientAddress,
		Subject: ForwardSubjectPrefix + req.OriginalSubject,
		Body:    ForwardBodyPreamble + req.OriginalBody,
		Date:    time.Now(),
	}
}

// Render writes the message as multipart/mixed with a single UTF-8
// text/plain part. A Message-ID is generated when none is set, and the
// rendered ID is stored back on m.
func (m *ForwardMessage) Render() ([]byte, error) {
	var h mail.Header
	h.SetDate(m.Date)
	h.SetAddressList("From", []*mail.Address{{Address: m.From}})
	h.SetAddressList("To", []*mail.Address{{Address: m.To}})
	h.SetSubject(m.Subject)

	if m.MessageID == "" {
		if err := h.GenerateMessageIDWithHostname(addressDomain(m.From)); err != nil {
			return nil, fmt.Errorf("generating message id: %w", err)
		}
		id, err := h.MessageID()
		if err != nil {
			return nil, fmt.Errorf("reading message id: %w", err)
		}
		m.MessageID = id
	} else {
		h.SetMessageID(m.MessageID)
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}

	var th mail.InlineHeader
	th.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	w, err := mw.CreateSingleInline(th)
	if err != nil {
		return nil, fmt.Errorf("creating text part: %w", err)
	}
	if _, err := io.WriteString(w, m.Body); err != nil {
		return nil, fmt.Errorf("writing text part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing text part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing message: %w", err)
	}

	return buf.Bytes(), nil
}

func addressDomain(addr string) string {
	if i := strings.LastIndex(addr, "@"); i >= 0 && i < len(addr)-1 {
		return addr[i+1:]
	}
	return "localhost"
}
