package mailbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/nhle/mailroute/internal/model"
)

// SMTPSender forwards mail through an authenticated SMTP submission
// server.
type SMTPSender struct {
	endpoint Endpoint
	opts     options
}

var _ Sender = (*SMTPSender)(nil)

// NewSMTPSender creates a sender for the given submission endpoint.
func NewSMTPSender(endpoint Endpoint, opts ...Option) *SMTPSender {
	return &SMTPSender{
		endpoint: endpoint,
		opts:     newOptions(opts),
	}
}

// Send composes the forwarded copy and submits it with AUTH PLAIN. The
// authenticated username is the envelope and header sender.
func (s *SMTPSender) Send(
	ctx context.Context, creds Credentials, req model.ForwardRequest,
) (model.Confirmation, error) {
	if strings.TrimSpace(req.RecipientAddress) == "" {
		return model.Confirmation{}, &SendError{
			Kind: SendTransport,
			Err:  errors.New("no recipient address"),
		}
	}

	msg := ComposeForward(creds.Username, req)
	raw, err := msg.Render()
	if err != nil {
		return model.Confirmation{}, &SendError{Kind: SendTransport, Err: err}
	}

	client, err := s.connect(ctx)
	if err != nil {
		return model.Confirmation{}, err
	}
	defer client.Close()

	auth := sasl.NewPlainClient("", creds.Username, creds.Password.Reveal())
	if err := client.Auth(auth); err != nil {
		return model.Confirmation{}, sendError("SMTP auth", err)
	}

	if err := client.SendMail(creds.Username, []string{req.RecipientAddress}, bytes.NewReader(raw)); err != nil {
		return model.Confirmation{}, sendError("SMTP send", err)
	}

	// The message is already accepted at this point.
	if err := client.Quit(); err != nil {
		s.opts.logger.Debug("smtp quit failed", zap.Error(err))
	}

	s.opts.logger.Info("forwarded message",
		zap.String("transport", model.TransportSMTP),
		zap.String("recipient", req.RecipientAddress),
		zap.String("message_id", msg.MessageID),
	)

	return model.Confirmation{
		Recipient: req.RecipientAddress,
		Transport: model.TransportSMTP,
		MessageID: msg.MessageID,
		SentAt:    time.Now(),
	}, nil
}

func (s *SMTPSender) connect(ctx context.Context) (*smtp.Client, error) {
	conn, _, err := dial(ctx, s.endpoint, s.opts)
	if err != nil {
		return nil, &SendError{Kind: SendTransport, Err: err}
	}

	var client *smtp.Client
	if s.endpoint.Security == SecurityStartTLS {
		client, err = smtp.NewClientStartTLS(conn, s.opts.tlsConfigFor(s.endpoint.Host))
		if err != nil {
			conn.Close()
			return nil, sendError(fmt.Sprintf("STARTTLS with %s", s.endpoint.Address()), err)
		}
	} else {
		client = smtp.NewClient(conn)
	}

	client.CommandTimeout = s.opts.timeouts.Read
	client.SubmissionTimeout = s.opts.timeouts.Read

	return client, nil
}
