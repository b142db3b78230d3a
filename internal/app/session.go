package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/nhle/mailroute/internal/model"
	"github.com/nhle/mailroute/internal/router"
	"github.com/nhle/mailroute/internal/ui"
)

// Run drives the interactive session until the user quits. Errors from a
// single action are rendered with their remediation and never end the
// session.
func (a *App) Run(ctx context.Context) error {
	fmt.Fprintln(a.out, ui.Header("mailroute"))

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		choice, err := ui.ChooseAction()
		if errors.Is(err, ui.ErrAborted) || choice == ui.ChoiceQuit {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading menu choice: %w", err)
		}

		if choice == ui.ChoiceHistory {
			a.showHistory(ctx)
			continue
		}

		email, ok := a.chooseEmail(ctx, choice)
		if !ok {
			continue
		}

		held, err := ui.Spin(ctx, a.out, "Classifying...", func(ctx context.Context) (router.Held, error) {
			return a.Classify(ctx, email)
		})
		if err != nil {
			a.showError(err)
			continue
		}

		fmt.Fprintln(a.out, ui.RenderResult(held.Result, a.cfg.Departments, 0))
		a.offerForward(ctx, held)
	}
}

// chooseEmail obtains the email for the chosen source. ok is false when
// the user backed out or the source failed.
func (a *App) chooseEmail(ctx context.Context, choice string) (model.Email, bool) {
	var (
		email model.Email
		err   error
	)

	switch choice {
	case ui.ChoiceSample:
		email, err = ui.PickSample()
	case ui.ChoiceManual:
		email, err = ui.EnterEmail()
	case ui.ChoiceFetch:
		var emails []model.Email
		emails, err = ui.Spin(ctx, a.out, "Fetching inbox...", func(ctx context.Context) ([]model.Email, error) {
			return a.Fetch(ctx, 0)
		})
		if err != nil {
			break
		}
		if len(emails) == 0 {
			fmt.Fprintln(a.out, ui.RenderEmails(emails))
			return model.Email{}, false
		}
		email, err = ui.PickEmail(emails)
	default:
		return model.Email{}, false
	}

	if errors.Is(err, ui.ErrAborted) {
		return model.Email{}, false
	}
	if err != nil {
		a.showError(err)
		return model.Email{}, false
	}
	return email, true
}

// offerForward asks to forward held, first asking for an address when the
// department has none.
func (a *App) offerForward(ctx context.Context, held router.Held) {
	dept := held.Result.Department

	addr, ok := router.ResolveDestination(held.Result, a.cfg.Departments)
	if !ok {
		fmt.Fprintln(a.out, ui.WarningStyle.Render(fmt.Sprintf("No email configured for %s.", dept)))

		entered, err := ui.EnterAddress(dept)
		if err != nil || entered == "" {
			return
		}
		if err := a.SetDepartmentAddress(dept, entered); err != nil {
			a.showError(err)
			return
		}
		addr = entered
	}

	confirmed, err := ui.ConfirmForward(dept, addr)
	if err != nil || !confirmed {
		return
	}

	conf, err := ui.Spin(ctx, a.out, "Forwarding...", func(ctx context.Context) (model.Confirmation, error) {
		return a.Forward(ctx, held)
	})
	if err != nil {
		a.showError(err)
		return
	}
	fmt.Fprintln(a.out, ui.RenderConfirmation(conf))
}

func (a *App) showHistory(ctx context.Context) {
	events, err := a.History(ctx, 0)
	if err != nil {
		a.showError(err)
		return
	}
	fmt.Fprintln(a.out, ui.RenderHistory(events))
}

func (a *App) showError(err error) {
	a.logger.Debug("action failed", zap.String("error_kind", router.ErrorKind(err)), zap.Error(err))
	fmt.Fprintln(a.out, ui.RenderError(err))
}
