package model

import "time"

// Email is the normalized form of a message that flows through the pipeline.
// Values are never mutated after they are fetched or entered.
type Email struct {
	// Subject is the decoded display subject.
	Subject string `json:"subject"`

	// Body is the first plain-text part of the message, or empty.
	Body string `json:"body"`
}

// ClassificationResult is the structured answer produced for one email.
type ClassificationResult struct {
	// Classification is a short label for the intent of the email.
	Classification string `json:"classification"`

	// Department is the chosen department; always a directory key once
	// validated.
	Department string `json:"department"`

	// Justification explains why the department was chosen.
	Justification string `json:"justification"`

	// SuggestedAction is the recommended next step.
	SuggestedAction string `json:"suggested_action"`
}

// ForwardRequest describes a single forwarding transfer. It only lives for
// the duration of a send.
type ForwardRequest struct {
	RecipientAddress string
	OriginalSubject  string
	OriginalBody     string
}

// Confirmation is returned by a successful send.
type Confirmation struct {
	// Recipient is the address the message was delivered to.
	Recipient string `json:"recipient"`

	// Transport names the mechanism used ("smtp" or "ses").
	Transport string `json:"transport"`

	// MessageID is the Message-ID header of the forwarded copy, or the
	// provider-assigned identifier when the transport returns one.
	MessageID string `json:"message_id"`

	// SentAt is when the transport accepted the message.
	SentAt time.Time `json:"sent_at"`
}

// Routing event actions and outcomes.
const (
	ActionClassify = "classify"
	ActionForward  = "forward"

	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// RoutingEvent is one audit record of a classify or forward attempt. It
// never carries bodies or secrets.
type RoutingEvent struct {
	ID             string    `db:"id" json:"id"`
	OccurredAt     time.Time `db:"occurred_at" json:"occurred_at"`
	Action         string    `db:"action" json:"action"`
	Subject        string    `db:"subject" json:"subject"`
	Classification string    `db:"classification" json:"classification,omitempty"`
	Department     string    `db:"department" json:"department,omitempty"`
	Recipient      string    `db:"recipient" json:"recipient,omitempty"`
	Outcome        string    `db:"outcome" json:"outcome"`
	ErrorKind      string    `db:"error_kind" json:"error_kind,omitempty"`
}
