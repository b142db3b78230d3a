package ui

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/nhle/mailroute/internal/credential"
	"github.com/nhle/mailroute/internal/model"
)

// Main menu choices.
const (
	ChoiceSample  = "sample"
	ChoiceManual  = "manual"
	ChoiceFetch   = "fetch"
	ChoiceHistory = "history"
	ChoiceQuit    = "quit"
)

const formWidth = 72

// ErrAborted is returned when the user leaves a form with Esc or Ctrl+C.
var ErrAborted = huh.ErrUserAborted

func buildMenuForm(choice *string) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("What next?").
				Options(
					huh.NewOption("Classify a sample email", ChoiceSample),
					huh.NewOption("Type an email", ChoiceManual),
					huh.NewOption("Fetch from mailbox", ChoiceFetch),
					huh.NewOption("Show routing history", ChoiceHistory),
					huh.NewOption("Quit", ChoiceQuit),
				).
				Value(choice),
		),
	).WithWidth(formWidth)
}

// ChooseAction asks what to do next.
func ChooseAction() (string, error) {
	var choice string
	if err := buildMenuForm(&choice).Run(); err != nil {
		return "", err
	}
	return choice, nil
}

func emailOptions(emails []model.Email, labels []string) []huh.Option[int] {
	opts := make([]huh.Option[int], 0, len(emails))
	for i, e := range emails {
		label := displaySubject(e.Subject)
		if i < len(labels) && labels[i] != "" {
			label = labels[i] + ": " + label
		}
		opts = append(opts, huh.NewOption(label, i))
	}
	return opts
}

func buildPickForm(title string, opts []huh.Option[int], idx *int) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title(title).
				Options(opts...).
				Value(idx),
		),
	).WithWidth(formWidth)
}

// PickSample lets the user choose one of the built-in emails.
func PickSample() (model.Email, error) {
	emails := make([]model.Email, 0, len(Samples))
	labels := make([]string, 0, len(Samples))
	for _, s := range Samples {
		emails = append(emails, s.Email)
		labels = append(labels, s.Label)
	}

	var idx int
	if err := buildPickForm("Select an example", emailOptions(emails, labels), &idx).Run(); err != nil {
		return model.Email{}, err
	}
	return emails[idx], nil
}

// PickEmail lets the user choose one of the fetched emails.
func PickEmail(emails []model.Email) (model.Email, error) {
	if len(emails) == 0 {
		return model.Email{}, fmt.Errorf("no emails to choose from")
	}

	var idx int
	if err := buildPickForm("Select an email", emailOptions(emails, nil), &idx).Run(); err != nil {
		return model.Email{}, err
	}
	return emails[idx], nil
}

func buildEmailForm(subject, body *string) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Subject").
				Value(subject).
				Validate(validateRequired("Subject")),
			huh.NewText().
				Title("Body").
				Lines(8).
				Value(body),
		),
	).WithWidth(formWidth)
}

// EnterEmail asks for a subject and body.
func EnterEmail() (model.Email, error) {
	var subject, body string
	if err := buildEmailForm(&subject, &body).Run(); err != nil {
		return model.Email{}, err
	}
	return model.Email{Subject: subject, Body: body}, nil
}

// ConfirmForward asks whether to forward to address.
func ConfirmForward(department, address string) (bool, error) {
	ok := true
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Forward to %s (%s)?", department, address)).
				Affirmative("Forward").
				Negative("Skip").
				Value(&ok),
		),
	).WithWidth(formWidth)
	if err := form.Run(); err != nil {
		return false, err
	}
	return ok, nil
}

// EnterAddress asks for a forwarding address for department. An empty
// answer leaves the department unconfigured.
func EnterAddress(department string) (string, error) {
	var addr string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(fmt.Sprintf("Forwarding address for %s", department)).
				Description("Leave empty to skip. Saved to the config file.").
				Placeholder("team@example.com").
				Value(&addr).
				Validate(validateOptionalAddress),
		),
	).WithWidth(formWidth)
	if err := form.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(addr), nil
}

// PromptSecret asks for a secret without echoing it.
func PromptSecret(title, description string) (credential.Secret, error) {
	var value string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				Description(description).
				EchoMode(huh.EchoModePassword).
				Value(&value).
				Validate(validateRequired(title)),
		),
	).WithWidth(formWidth)
	if err := form.Run(); err != nil {
		return credential.Secret{}, err
	}
	return credential.NewSecret(value), nil
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateOptionalAddress(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if _, err := mail.ParseAddress(s); err != nil {
		return fmt.Errorf("not a valid email address")
	}
	return nil
}

