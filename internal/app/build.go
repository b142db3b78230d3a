package app

import (
	"context"
	"fmt"

	"github.com/nhle/mailroute/internal/classifier"
	"github.com/nhle/mailroute/internal/credential"
	"github.com/nhle/mailroute/internal/mailbox"
	"github.com/nhle/mailroute/internal/model"
	"github.com/nhle/mailroute/internal/router"
)

// build creates the fetcher, transport, completer and router from
// configuration. Collaborators injected through options are kept.
func (a *App) build(ctx context.Context) error {
	mb := a.cfg.Mailbox
	mailboxOpts := append([]mailbox.Option{
		mailbox.WithTimeouts(mailbox.Timeouts{
			Connect: a.cfg.Timeouts.Connect(),
			Read:    a.cfg.Timeouts.Read(),
		}),
		mailbox.WithLogger(a.logger.Named("mailbox")),
	}, a.mailboxOpts...)

	imapSec, err := mailbox.ParseSecurity(mb.IMAPSecurity)
	if err != nil {
		return fmt.Errorf("imap_security: %w", err)
	}
	a.fetcher = mailbox.NewFetcher(mailbox.Endpoint{
		Host:     mb.IMAPHost,
		Port:     mb.IMAPPort,
		Security: imapSec,
	}, mailboxOpts...)

	if a.sender == nil {
		sender, err := a.buildSender(ctx, mailboxOpts)
		if err != nil {
			return err
		}
		a.sender = sender
	}

	if a.completer == nil {
		a.completer, a.lister = a.buildCompleter()
	} else if l, ok := a.completer.(ModelLister); ok {
		a.lister = l
	}

	routerOpts := []router.Option{router.WithLogger(a.logger.Named("router"))}
	if a.history != nil {
		routerOpts = append(routerOpts, router.WithRecorder(a.history))
	}
	a.router = router.New(
		classifier.New(a.completer, a.logger.Named("classifier")),
		a.sender,
		routerOpts...,
	)

	return nil
}

func (a *App) buildSender(ctx context.Context, opts []mailbox.Option) (mailbox.Sender, error) {
	mb := a.cfg.Mailbox

	switch mb.Transport {
	case model.TransportSMTP, "":
		sec, err := mailbox.ParseSecurity(mb.SMTPSecurity)
		if err != nil {
			return nil, fmt.Errorf("smtp_security: %w", err)
		}
		return mailbox.NewSMTPSender(mailbox.Endpoint{
			Host:     mb.SMTPHost,
			Port:     mb.SMTPPort,
			Security: sec,
		}, opts...), nil

	case model.TransportSES:
		sesCfg := mailbox.SESConfig{
			Region:      mb.SESRegion,
			AccessKeyID: mb.SESAccessKeyID,
		}
		if mb.SESAccessKeyID != "" {
			secret, err := a.secrets.Resolve(credential.KeyAWSSecret)
			if err != nil && !credential.IsNotFound(err) {
				return nil, fmt.Errorf("AWS secret access key: %w", err)
			}
			sesCfg.SecretAccessKey = secret
		}
		sender, err := mailbox.NewSESSender(ctx, sesCfg, a.logger.Named("ses"))
		if err != nil {
			return nil, err
		}
		return sender, nil

	default:
		return nil, fmt.Errorf("unknown transport %q (want %q or %q)", mb.Transport, model.TransportSMTP, model.TransportSES)
	}
}

func (a *App) buildCompleter() (classifier.Completer, ModelLister) {
	m := a.cfg.Model
	opts := []classifier.Option{
		classifier.WithTimeouts(a.cfg.Timeouts.Connect(), a.cfg.Timeouts.Read()),
		classifier.WithMaxTokens(m.MaxTokens),
		classifier.WithLogger(a.logger.Named(m.Provider)),
	}
	if m.BaseURL != "" {
		opts = append(opts, classifier.WithBaseURL(m.BaseURL))
	}

	if m.Provider == model.ProviderAnthropic {
		return classifier.NewAnthropic(opts...), nil
	}
	g := classifier.NewGemini(opts...)
	return g, g
}
