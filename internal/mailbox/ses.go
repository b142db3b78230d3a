package mailbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/nhle/mailroute/internal/credential"
	"github.com/nhle/mailroute/internal/logging"
	"github.com/nhle/mailroute/internal/model"
)

// SendEmailAPI is the subset of the SES v2 client used by SESSender.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESConfig configures an SESSender. Empty keys fall back to the default
// AWS credential chain.
type SESConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey credential.Secret
}

// SESSender forwards mail through the AWS SES v2 API as a raw MIME message,
// so the forwarded copy is byte-identical to the SMTP path.
type SESSender struct {
	client SendEmailAPI
	logger *zap.Logger
}

var _ Sender = (*SESSender)(nil)

// awsAuthCodes are API error codes that mean the AWS credentials were
// refused.
var awsAuthCodes = map[string]bool{
	"AccessDeniedException":       true,
	"ExpiredToken":                true,
	"ExpiredTokenException":       true,
	"InvalidClientTokenId":        true,
	"MissingAuthenticationToken":  true,
	"SignatureDoesNotMatch":       true,
	"UnrecognizedClientException": true,
}

// NewSESSender loads an AWS configuration for the region. The SDK retryer
// is limited to a single attempt.
func NewSESSender(ctx context.Context, cfg SESConfig, logger *zap.Logger) (*SESSender, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithRetryMaxAttempts(1),
	}

	if cfg.AccessKeyID != "" && !cfg.SecretAccessKey.Empty() {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey.Reveal(), ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return NewSESSenderWithClient(sesv2.NewFromConfig(awsCfg), logger), nil
}

// NewSESSenderWithClient wraps an existing SES client.
func NewSESSenderWithClient(client SendEmailAPI, logger *zap.Logger) *SESSender {
	return &SESSender{
		client: client,
		logger: logging.OrNop(logger),
	}
}

// Send submits the forwarded copy with creds.Username as the sender. The
// mailbox password is not used; SES authenticates with AWS credentials.
func (s *SESSender) Send(
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

	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(creds.Username),
		Destination: &types.Destination{
			ToAddresses: []string{req.RecipientAddress},
		},
		Content: &types.EmailContent{
			Raw: &types.RawMessage{Data: raw},
		},
	})
	if err != nil {
		return model.Confirmation{}, sesError(err)
	}

	messageID := msg.MessageID
	if out != nil && out.MessageId != nil {
		messageID = *out.MessageId
	}

	s.logger.Info("forwarded message",
		zap.String("transport", model.TransportSES),
		zap.String("recipient", req.RecipientAddress),
		zap.String("message_id", messageID),
	)

	return model.Confirmation{
		Recipient: req.RecipientAddress,
		Transport: model.TransportSES,
		MessageID: messageID,
		SentAt:    time.Now(),
	}, nil
}

func sesError(err error) *SendError {
	wrapped := fmt.Errorf("SES send: %w", err)

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && awsAuthCodes[apiErr.ErrorCode()] {
		return &SendError{Kind: SendAuthRejected, Err: wrapped}
	}
	return &SendError{Kind: SendTransport, Err: wrapped}
}
