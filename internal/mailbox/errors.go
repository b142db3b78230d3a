package mailbox

import (
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-smtp"
)

// FetchErrorKind classifies mailbox retrieval failures.
type FetchErrorKind int

const (
	FetchAuth FetchErrorKind = iota + 1
	FetchNetwork
	FetchProtocol
)

func (k FetchErrorKind) String() string {
	switch k {
	case FetchAuth:
		return "auth"
	case FetchNetwork:
		return "network"
	case FetchProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// FetchError is returned by Fetcher for every failure. No partial batch is
// ever returned alongside it.
type FetchError struct {
	Kind FetchErrorKind
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch error (%s): %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// SendErrorKind classifies forwarding failures.
type SendErrorKind int

const (
	SendAuthRejected SendErrorKind = iota + 1
	SendTransport
)

func (k SendErrorKind) String() string {
	switch k {
	case SendAuthRejected:
		return "auth_rejected"
	case SendTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// SendError is returned by every Sender implementation.
type SendError struct {
	Kind SendErrorKind
	Err  error
}

func (e *SendError) Error() string {
	if e.Kind == SendAuthRejected {
		return fmt.Sprintf("send error: credentials rejected: %v", e.Err)
	}
	return fmt.Sprintf("send error: %v", e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// IsFetchAuthError reports whether err is a FetchError of kind FetchAuth.
func IsFetchAuthError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == FetchAuth
}

// IsAuthRejected reports whether err is a SendError of kind
// SendAuthRejected.
func IsAuthRejected(err error) bool {
	var se *SendError
	return errors.As(err, &se) && se.Kind == SendAuthRejected
}

// isNetworkError reports whether err came from the transport rather than
// from a server response.
func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed)
}

// fetchError wraps err with the given context and picks a kind. A server
// status response is a protocol error unless it carries
// AUTHENTICATIONFAILED.
func fetchError(op string, err error) *FetchError {
	wrapped := fmt.Errorf("%s: %w", op, err)

	var imapErr *imap.Error
	switch {
	case errors.As(err, &imapErr):
		if imapErr.Code == imap.ResponseCodeAuthenticationFailed {
			return &FetchError{Kind: FetchAuth, Err: wrapped}
		}
		return &FetchError{Kind: FetchProtocol, Err: wrapped}
	case isNetworkError(err):
		return &FetchError{Kind: FetchNetwork, Err: wrapped}
	default:
		return &FetchError{Kind: FetchProtocol, Err: wrapped}
	}
}

// authReplyCodes are SMTP replies that mean the credential was refused.
var authReplyCodes = map[int]bool{
	530: true, // authentication required
	534: true, // mechanism too weak / web login required
	535: true, // credentials invalid
}

// sendError wraps err with the given context and picks a kind.
func sendError(op string, err error) *SendError {
	wrapped := fmt.Errorf("%s: %w", op, err)

	var smtpErr *smtp.SMTPError
	if errors.As(err, &smtpErr) {
		if authReplyCodes[smtpErr.Code] || smtpErr.EnhancedCode == (smtp.EnhancedCode{5, 7, 8}) {
			return &SendError{Kind: SendAuthRejected, Err: wrapped}
		}
	}
	return &SendError{Kind: SendTransport, Err: wrapped}
}
