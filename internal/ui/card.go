package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailroute/internal/model"
	"github.com/nhle/mailroute/internal/router"
)

const timeLayout = "2006-01-02 15:04:05"

// Header renders a section title bar.
func Header(title string) string {
	return HeaderStyle.Render(title)
}

func field(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, LabelStyle.Render(label), value)
}

// RenderResult renders a classification result card. The forwarding line
// reflects the directory as it is now, not when the email was classified.
func RenderResult(res model.ClassificationResult, dir model.Directory, width int) string {
	addr, ok := router.ResolveDestination(res, dir)

	forward := WarningStyle.Render("not configured")
	if ok {
		forward = addr
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		field("Classification", res.Classification),
		field("Department", DepartmentStyle(ok).Render(res.Department)),
		field("Justification", res.Justification),
		field("Suggested action", res.SuggestedAction),
		field("Forward to", forward),
	)

	style := CardStyle
	if width > 0 {
		style = style.Width(width)
	}
	return style.Render(body)
}

// RenderConfirmation renders the outcome of a successful forward.
func RenderConfirmation(conf model.Confirmation) string {
	var b strings.Builder
	b.WriteString(SuccessStyle.Render(fmt.Sprintf("Forwarded to %s via %s", conf.Recipient, conf.Transport)))
	if conf.MessageID != "" {
		b.WriteString("\n")
		b.WriteString(HelpStyle.Render("Message-ID: " + conf.MessageID))
	}
	return b.String()
}

// RenderError renders err followed by its remediation hint, if any.
func RenderError(err error) string {
	if err == nil {
		return ""
	}
	out := ErrorStyle.Render("Error: " + err.Error())
	if hint := Remediation(err); hint != "" {
		out += "\n" + HelpStyle.Render(hint)
	}
	return out
}

// RenderEmails renders a numbered list of email subjects.
func RenderEmails(emails []model.Email) string {
	if len(emails) == 0 {
		return HelpStyle.Render("Inbox is empty.")
	}
	lines := make([]string, 0, len(emails))
	for i, e := range emails {
		lines = append(lines, fmt.Sprintf("%2d. %s", i+1, displaySubject(e.Subject)))
	}
	return strings.Join(lines, "\n")
}

// RenderHistory renders audit events, one per line.
func RenderHistory(events []model.RoutingEvent) string {
	if len(events) == 0 {
		return HelpStyle.Render("No routing history yet.")
	}
	lines := make([]string, 0, len(events))
	for _, ev := range events {
		outcome := ev.Outcome
		if ev.ErrorKind != "" {
			outcome += " (" + ev.ErrorKind + ")"
		}
		line := fmt.Sprintf("%s  %-8s  %-12s  %s  %s",
			ev.OccurredAt.Local().Format(timeLayout),
			ev.Action,
			ev.Department,
			OutcomeStyle(ev.Outcome).Render(outcome),
			displaySubject(ev.Subject),
		)
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func displaySubject(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(no subject)"
	}
	return s
}
