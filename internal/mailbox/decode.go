package mailbox

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"golang.org/x/text/encoding/charmap"

	"github.com/nhle/mailroute/internal/model"
)

func init() {
	// Legacy aliases that still show up in older mail clients.
	charset.RegisterEncoding("windows-1252", charmap.Windows1252)
	charset.RegisterEncoding("cp1252", charmap.Windows1252)
	charset.RegisterEncoding("latin1", charmap.ISO8859_1)
	charset.RegisterEncoding("iso-8859-15", charmap.ISO8859_15)
}

// DecodeMessage turns a raw RFC 5322 message into an Email. The subject is
// decoded from RFC 2047 encoded words. The body is the first text/plain
// part found in a depth-first walk, or the whole payload of a
// single-part message, decoded per its transfer encoding and charset.
// Unknown charsets and transfer encodings fall back to the raw bytes,
// with invalid UTF-8 sequences replaced.
func DecodeMessage(raw []byte) (model.Email, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !recoverable(err) {
		return model.Email{}, fmt.Errorf("parsing message: %w", err)
	}
	defer mr.Close()

	email := model.Email{Subject: decodeSubject(&mr.Header)}

	mediaType, _, _ := mr.Header.ContentType()
	multipart := strings.HasPrefix(mediaType, "multipart/")

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !recoverable(err) {
			return model.Email{}, fmt.Errorf("reading part: %w", err)
		}

		// A single-part message is its own body regardless of type.
		if multipart && !isPlainText(part.Header) {
			continue
		}

		body, err := io.ReadAll(part.Body)
		if err != nil {
			return model.Email{}, fmt.Errorf("reading body: %w", err)
		}
		email.Body = toUTF8(body)
		break
	}

	return email, nil
}

// recoverable reports whether go-message still produced a readable entity.
func recoverable(err error) bool {
	return message.IsUnknownCharset(err) || message.IsUnknownEncoding(err)
}

func decodeSubject(h *mail.Header) string {
	// On a decode failure Subject still returns the raw header value.
	subject, _ := h.Subject()
	return toUTF8([]byte(subject))
}

// isPlainText reports whether a part's media type is text/plain, whatever
// its disposition. A part without a Content-Type defaults to text/plain.
func isPlainText(h mail.PartHeader) bool {
	var hdr *message.Header
	switch ph := h.(type) {
	case *mail.InlineHeader:
		hdr = &ph.Header
	case *mail.AttachmentHeader:
		hdr = &ph.Header
	default:
		return false
	}

	if hdr.Get("Content-Type") == "" {
		return true
	}
	mediaType, _, err := hdr.ContentType()
	return err == nil && mediaType == "text/plain"
}

func toUTF8(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}
