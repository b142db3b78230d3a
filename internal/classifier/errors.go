package classifier

import (
	"errors"
	"fmt"
)

// Kind identifies why a classification failed.
type Kind int

const (
	// KindMalformedResponse means the model answer was not a JSON object
	// with all four required fields.
	KindMalformedResponse Kind = iota + 1
	// KindUnknownDepartment means the model picked a department outside
	// the directory.
	KindUnknownDepartment
	// KindQuotaExceeded means the provider refused for quota or rate
	// limits.
	KindQuotaExceeded
	// KindInvalidCredential means the provider rejected the API key.
	KindInvalidCredential
	// KindOther covers everything else.
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindMalformedResponse:
		return "malformed_response"
	case KindUnknownDepartment:
		return "unknown_department"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindInvalidCredential:
		return "invalid_credential"
	case KindOther:
		return "other"
	default:
		return "unknown"
	}
}

// Error is returned for every classification failure. A failed call never
// yields a usable result.
type Error struct {
	Kind Kind

	// Department holds the rejected value for KindUnknownDepartment.
	Department string

	Err error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindUnknownDepartment:
		return fmt.Sprintf("model chose unknown department %q", e.Department)
	case KindMalformedResponse:
		return fmt.Sprintf("malformed model response: %v", e.Err)
	case KindQuotaExceeded:
		return fmt.Sprintf("model quota exceeded: %v", e.Err)
	case KindInvalidCredential:
		return fmt.Sprintf("model credential rejected: %v", e.Err)
	default:
		return fmt.Sprintf("classification failed: %v", e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of a classifier error, or false when err is not
// one.
func KindOf(err error) (Kind, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return 0, false
}

// HasKind reports whether err is a classifier error of kind k.
func HasKind(err error, k Kind) bool {
	got, ok := KindOf(err)
	return ok && got == k
}

func newError(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Err: fmt.Errorf(format, args...)}
}
