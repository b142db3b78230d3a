// Package app wires configuration, secrets and the routing pipeline into
// the commands and the interactive session.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/nhle/mailroute/internal/classifier"
	"github.com/nhle/mailroute/internal/credential"
	"github.com/nhle/mailroute/internal/history"
	"github.com/nhle/mailroute/internal/logging"
	"github.com/nhle/mailroute/internal/mailbox"
	"github.com/nhle/mailroute/internal/model"
	"github.com/nhle/mailroute/internal/router"
)

// ErrHistoryDisabled is returned by History when no audit store is open.
var ErrHistoryDisabled = errors.New("routing history is disabled")

// SecretSource resolves secrets by credential key.
type SecretSource interface {
	Resolve(key string) (credential.Secret, error)
}

// ModelLister lists models available to an API key.
type ModelLister interface {
	ListModels(ctx context.Context, apiKey credential.Secret) ([]string, error)
}

// App holds the long-lived collaborators of one process. Only
// configuration and collaborators live here; classification results are
// passed explicitly between Classify and Forward.
type App struct {
	cfg     *model.AppConfig
	cfgPath string
	logger  *zap.Logger
	out     io.Writer

	secrets SecretSource
	keyring *credential.Store
	history *history.Store

	fetcher *mailbox.Fetcher
	lister  ModelLister
	router  *router.Router

	completer   classifier.Completer
	sender      mailbox.Sender
	mailboxOpts []mailbox.Option
}

// Option configures an App.
type Option func(*App)

// WithOutput sets where results are printed. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(a *App) {
		a.out = w
	}
}

// WithSecrets replaces the secret source.
func WithSecrets(s SecretSource) Option {
	return func(a *App) {
		a.secrets = s
	}
}

// WithKeyring sets the keyring used by SetSecret and DeleteSecret.
func WithKeyring(s *credential.Store) Option {
	return func(a *App) {
		a.keyring = s
	}
}

// WithHistory sets the audit store. The App closes it on Close.
func WithHistory(h *history.Store) Option {
	return func(a *App) {
		a.history = h
	}
}

// WithCompleter replaces the model completer chosen from configuration.
func WithCompleter(c classifier.Completer) Option {
	return func(a *App) {
		a.completer = c
	}
}

// WithSender replaces the transport chosen from configuration.
func WithSender(s mailbox.Sender) Option {
	return func(a *App) {
		a.sender = s
	}
}

// WithMailboxOptions passes options to the IMAP fetcher and SMTP sender.
func WithMailboxOptions(opts ...mailbox.Option) Option {
	return func(a *App) {
		a.mailboxOpts = append(a.mailboxOpts, opts...)
	}
}

// New builds an App from cfg. cfgPath is where department changes are
// saved.
func New(ctx context.Context, cfg *model.AppConfig, cfgPath string, logger *zap.Logger, opts ...Option) (*App, error) {
	a := &App{
		cfg:     cfg,
		cfgPath: cfgPath,
		logger:  logging.OrNop(logger),
		out:     os.Stdout,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.secrets == nil {
		a.secrets = credential.NewResolver(a.keyring)
	}

	if err := a.build(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// Close releases the audit store.
func (a *App) Close() error {
	if a.history == nil {
		return nil
	}
	return a.history.Close()
}

// Config returns the loaded configuration.
func (a *App) Config() *model.AppConfig {
	return a.cfg
}

// Fetch returns up to limit recent inbox messages, newest first. A
// non-positive limit uses the configured default.
func (a *App) Fetch(ctx context.Context, limit int) ([]model.Email, error) {
	if limit <= 0 {
		limit = a.cfg.Fetch.Limit
	}

	password, err := a.secrets.Resolve(credential.KeyMailboxPassword)
	if err != nil {
		return nil, fmt.Errorf("mailbox password: %w", err)
	}

	return a.fetcher.Fetch(ctx, mailbox.Credentials{
		Username: a.cfg.Mailbox.Username,
		Password: password,
	}, limit)
}

// VerifyMailbox logs in to the IMAP server and selects the inbox without
// reading messages.
func (a *App) VerifyMailbox(ctx context.Context) error {
	password, err := a.secrets.Resolve(credential.KeyMailboxPassword)
	if err != nil {
		return fmt.Errorf("mailbox password: %w", err)
	}

	return a.fetcher.Verify(ctx, mailbox.Credentials{
		Username: a.cfg.Mailbox.Username,
		Password: password,
	})
}

// Classify classifies email against the configured departments. A missing
// API key is passed through as empty so the classifier reports it as an
// invalid credential.
func (a *App) Classify(ctx context.Context, email model.Email) (router.Held, error) {
	key, err := a.secrets.Resolve(credential.ModelKey(a.cfg.Model.Provider))
	if err != nil && !credential.IsNotFound(err) {
		return router.Held{}, fmt.Errorf("model API key: %w", err)
	}

	return a.router.ClassifyAndHold(ctx, email, a.cfg.Departments, router.ModelSettings{
		Name:   a.cfg.Model.Name,
		APIKey: key,
	})
}

// Forward sends the held email to its department using the current
// department addresses.
func (a *App) Forward(ctx context.Context, held router.Held) (model.Confirmation, error) {
	creds := mailbox.Credentials{Username: a.cfg.Mailbox.Username}

	if a.cfg.Mailbox.Transport != model.TransportSES && !held.Empty() {
		if _, ok := router.ResolveDestination(held.Result, a.cfg.Departments); ok {
			password, err := a.secrets.Resolve(credential.KeyMailboxPassword)
			if err != nil {
				return model.Confirmation{}, fmt.Errorf("mailbox password: %w", err)
			}
			creds.Password = password
		}
	}

	return a.router.Forward(ctx, held, a.cfg.Departments, creds)
}

// SetDepartmentAddress updates a department's forwarding address and saves
// the configuration.
func (a *App) SetDepartmentAddress(department, address string) error {
	if !a.cfg.Departments.Has(department) {
		return fmt.Errorf("unknown department %q", department)
	}

	updated := *a.cfg
	updated.Departments = a.cfg.Departments.WithAddress(department, address)
	if err := model.SaveConfig(a.cfgPath, &updated); err != nil {
		return err
	}

	a.cfg = &updated
	a.logger.Info("department address updated", zap.String("department", department))
	return nil
}

// Models lists the models available for the configured provider.
func (a *App) Models(ctx context.Context) ([]string, error) {
	if a.lister == nil {
		return []string{a.cfg.Model.Name}, nil
	}

	key, err := a.secrets.Resolve(credential.ModelKey(a.cfg.Model.Provider))
	if err != nil {
		return nil, fmt.Errorf("model API key: %w", err)
	}
	return a.lister.ListModels(ctx, key)
}

// History returns recent routing events, newest first.
func (a *App) History(ctx context.Context, limit int) ([]model.RoutingEvent, error) {
	if a.history == nil {
		return nil, ErrHistoryDisabled
	}
	return a.history.Recent(ctx, limit)
}
