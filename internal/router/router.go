// Package router ties classification to forwarding: it asks the classifier
// for a department, resolves that department to an address, and hands the
// original email to a mail sender.
package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/mailroute/internal/classifier"
	"github.com/nhle/mailroute/internal/credential"
	"github.com/nhle/mailroute/internal/logging"
	"github.com/nhle/mailroute/internal/mailbox"
	"github.com/nhle/mailroute/internal/model"
)

// ErrNothingHeld is returned by Forward when no classification is held.
var ErrNothingHeld = errors.New("no classification result to forward")

// Classifier is the subset of classifier.Classifier the router needs.
type Classifier interface {
	Classify(
		ctx context.Context,
		email model.Email,
		dir model.Directory,
		apiKey credential.Secret,
		modelName string,
	) (model.ClassificationResult, error)
}

// Recorder receives one event per classify and forward attempt.
type Recorder interface {
	Record(ctx context.Context, ev model.RoutingEvent) error
}

// ModelSettings selects the model and carries its key for one call.
type ModelSettings struct {
	Name   string
	APIKey credential.Secret
}

// Held pairs a classification with the email it was made for. The caller
// keeps the most recent Held and passes it back to Forward.
type Held struct {
	Result model.ClassificationResult
	Email  model.Email
}

// Empty reports whether h holds no classification.
func (h Held) Empty() bool {
	return h.Result.Department == ""
}

// RoutingKind classifies routing failures.
type RoutingKind int

const (
	// Unconfigured means the department has no forwarding address.
	Unconfigured RoutingKind = iota + 1
)

func (k RoutingKind) String() string {
	if k == Unconfigured {
		return "unconfigured"
	}
	return "unknown"
}

// RoutingError reports a valid classification that cannot be delivered.
type RoutingError struct {
	Kind       RoutingKind
	Department string
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("no forwarding address configured for department %q", e.Department)
}

// IsUnconfigured reports whether err is a RoutingError for a department
// without an address.
func IsUnconfigured(err error) bool {
	var re *RoutingError
	return errors.As(err, &re) && re.Kind == Unconfigured
}

// Router runs the classify and forward steps. It holds no state between
// calls.
type Router struct {
	classifier Classifier
	sender     mailbox.Sender
	recorder   Recorder
	logger     *zap.Logger
	now        func() time.Time
}

// Option configures a Router.
type Option func(*Router)

// WithRecorder attaches an audit recorder.
func WithRecorder(rec Recorder) Option {
	return func(r *Router) {
		r.recorder = rec
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Router) {
		r.logger = l
	}
}

// New creates a Router.
func New(c Classifier, sender mailbox.Sender, opts ...Option) *Router {
	r := &Router{
		classifier: c,
		sender:     sender,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.OrNop(r.logger)
	return r
}

// ClassifyAndHold classifies email and returns the result paired with it.
func (r *Router) ClassifyAndHold(
	ctx context.Context, email model.Email, dir model.Directory, m ModelSettings,
) (Held, error) {
	result, err := r.classifier.Classify(ctx, email, dir, m.APIKey, m.Name)

	ev := model.RoutingEvent{
		Action:         model.ActionClassify,
		Subject:        email.Subject,
		Classification: result.Classification,
		Department:     result.Department,
	}
	r.record(ctx, ev, err)

	if err != nil {
		return Held{}, err
	}
	return Held{Result: result, Email: email}, nil
}

// ResolveDestination returns the forwarding address for result's
// department. ok is false when the address is empty or the department is
// absent.
func ResolveDestination(result model.ClassificationResult, dir model.Directory) (string, bool) {
	return dir.Address(result.Department)
}

// Forward sends the held email to its department's address.
func (r *Router) Forward(
	ctx context.Context, held Held, dir model.Directory, creds mailbox.Credentials,
) (model.Confirmation, error) {
	if held.Empty() {
		return model.Confirmation{}, ErrNothingHeld
	}

	ev := model.RoutingEvent{
		Action:         model.ActionForward,
		Subject:        held.Email.Subject,
		Classification: held.Result.Classification,
		Department:     held.Result.Department,
	}

	addr, ok := ResolveDestination(held.Result, dir)
	if !ok {
		err := &RoutingError{Kind: Unconfigured, Department: held.Result.Department}
		r.record(ctx, ev, err)
		return model.Confirmation{}, err
	}
	ev.Recipient = addr

	conf, err := r.sender.Send(ctx, creds, model.ForwardRequest{
		RecipientAddress: addr,
		OriginalSubject:  held.Email.Subject,
		OriginalBody:     held.Email.Body,
	})
	r.record(ctx, ev, err)
	if err != nil {
		return model.Confirmation{}, err
	}

	return conf, nil
}

// record logs the attempt and hands it to the recorder. Recorder failures
// never fail the action.
func (r *Router) record(ctx context.Context, ev model.RoutingEvent, err error) {
	ev.OccurredAt = r.now()
	ev.Outcome = model.OutcomeOK
	if err != nil {
		ev.Outcome = model.OutcomeError
		ev.ErrorKind = ErrorKind(err)
	}

	fields := []zap.Field{
		zap.String("action", ev.Action),
		zap.String("department", ev.Department),
		zap.String("outcome", ev.Outcome),
	}
	if err != nil {
		r.logger.Warn("routing step failed", append(fields, zap.String("error_kind", ev.ErrorKind), zap.Error(err))...)
	} else {
		r.logger.Info("routing step succeeded", fields...)
	}

	if r.recorder == nil {
		return
	}
	if recErr := r.recorder.Record(ctx, ev); recErr != nil {
		r.logger.Warn("recording routing event failed", zap.Error(recErr))
	}
}

// ErrorKind names the failure category of err for display and audit.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	if kind, ok := classifier.KindOf(err); ok {
		return kind.String()
	}

	var sendErr *mailbox.SendError
	if errors.As(err, &sendErr) {
		return sendErr.Kind.String()
	}
	var fetchErr *mailbox.FetchError
	if errors.As(err, &fetchErr) {
		return "fetch_" + fetchErr.Kind.String()
	}
	var routeErr *RoutingError
	if errors.As(err, &routeErr) {
		return routeErr.Kind.String()
	}
	if errors.Is(err, ErrNothingHeld) {
		return "nothing_held"
	}
	return "other"
}
