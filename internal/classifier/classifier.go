// Package classifier routes an email to a department by asking a language
// model and validating its answer against the department directory.
package classifier

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/nhle/mailroute/internal/credential"
	"github.com/nhle/mailroute/internal/logging"
	"github.com/nhle/mailroute/internal/model"
)

// Completer sends a single prompt to a language model and returns the raw
// text answer. Provider failures should be returned as *Error so the quota
// and credential kinds survive.
type Completer interface {
	Complete(ctx context.Context, apiKey credential.Secret, modelName, prompt string) (string, error)
}

// Classifier builds the prompt, calls the completer once and validates the
// answer. It keeps no state between calls.
type Classifier struct {
	completer Completer
	logger    *zap.Logger
}

// New creates a Classifier backed by the given completer.
func New(completer Completer, logger *zap.Logger) *Classifier {
	return &Classifier{
		completer: completer,
		logger:    logging.OrNop(logger),
	}
}

// Classify returns the model's routing decision for email. The result's
// department is always a member of dir.
func (c *Classifier) Classify(
	ctx context.Context,
	email model.Email,
	dir model.Directory,
	apiKey credential.Secret,
	modelName string,
) (model.ClassificationResult, error) {
	if len(dir) == 0 {
		return model.ClassificationResult{}, newError(KindOther, "no departments configured")
	}
	if apiKey.Empty() {
		return model.ClassificationResult{}, newError(KindInvalidCredential, "no API key configured")
	}

	prompt := BuildPrompt(email, dir.Names())

	text, err := c.completer.Complete(ctx, apiKey, modelName, prompt)
	if err != nil {
		var ce *Error
		if !errors.As(err, &ce) {
			ce = &Error{Kind: KindOther, Err: err}
		}
		c.logger.Warn("model call failed",
			zap.String("model", modelName),
			zap.Stringer("kind", ce.Kind),
			zap.Error(err),
		)
		return model.ClassificationResult{}, ce
	}

	result, err := ParseResult(text, dir)
	if err != nil {
		c.logger.Warn("rejected model response",
			zap.String("model", modelName),
			zap.Error(err),
		)
		return model.ClassificationResult{}, err
	}

	c.logger.Info("classified email",
		zap.String("model", modelName),
		zap.String("classification", result.Classification),
		zap.String("department", result.Department),
	)

	return result, nil
}
