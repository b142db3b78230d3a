package ui

import (
	"errors"
	"fmt"

	"github.com/nhle/mailroute/internal/classifier"
	"github.com/nhle/mailroute/internal/credential"
	"github.com/nhle/mailroute/internal/mailbox"
	"github.com/nhle/mailroute/internal/router"
)

// AppPasswordGuide explains how to create a Gmail app password.
const AppPasswordGuide = "https://support.google.com/accounts/answer/185833"

// Remediation returns a short hint telling the user what to do about err.
// It returns an empty string when there is nothing specific to suggest.
func Remediation(err error) string {
	if err == nil {
		return ""
	}

	var ce *classifier.Error
	if errors.As(err, &ce) {
		switch ce.Kind {
		case classifier.KindQuotaExceeded:
			return "Quota exceeded. Pick a different model (see `mailroute models`) and try again."
		case classifier.KindInvalidCredential:
			return "The model API key was rejected. Update it with `mailroute secret set model`."
		case classifier.KindMalformedResponse:
			return "The model did not answer with the expected JSON. Try again or switch model."
		case classifier.KindUnknownDepartment:
			return fmt.Sprintf("The model picked %q, which is not a configured department. Try again.", ce.Department)
		default:
			return ""
		}
	}

	var se *mailbox.SendError
	if errors.As(err, &se) {
		if se.Kind == mailbox.SendAuthRejected {
			return "The mail server rejected the login. Use an app password instead of your account password: " + AppPasswordGuide
		}
		return "Could not hand the message to the mail server. Check the SMTP host, port and your connection."
	}

	var fe *mailbox.FetchError
	if errors.As(err, &fe) {
		switch fe.Kind {
		case mailbox.FetchAuth:
			return "IMAP login failed. Check the username, use an app password and make sure IMAP is enabled: " + AppPasswordGuide
		case mailbox.FetchNetwork:
			return "Could not reach the IMAP server. Check the host, port and your connection."
		default:
			return "The IMAP server sent an unexpected response. Try again later."
		}
	}

	var re *router.RoutingError
	if errors.As(err, &re) {
		return fmt.Sprintf("No forwarding address for %s. Add one under `departments` in the config file.", re.Department)
	}

	if errors.Is(err, router.ErrNothingHeld) {
		return "Classify an email before forwarding."
	}
	if credential.IsNotFound(err) {
		return "Secret not found. Store it with `mailroute secret set <mailbox|model|aws>` or set its environment variable."
	}
	return ""
}
