package classifier

import (
	"encoding/json"
	"strings"

	"github.com/nhle/mailroute/internal/model"
)

// BuildPrompt renders the classification request. The output depends only
// on its inputs, and departments keep the order given.
func BuildPrompt(email model.Email, departments []string) string {
	names, _ := json.Marshal(departments)

	var sb strings.Builder

	sb.WriteString("Analyze this email and route it to the correct department.\n\n")

	sb.WriteString("Available Departments: ")
	sb.Write(names)
	sb.WriteString("\n\n")

	sb.WriteString("Email Subject: ")
	sb.WriteString(email.Subject)
	sb.WriteString("\n")
	sb.WriteString("Email Body: ")
	sb.WriteString(email.Body)
	sb.WriteString("\n\n")

	sb.WriteString("Respond with a single JSON object and nothing else. ")
	sb.WriteString("The object must have exactly these four string fields:\n")
	sb.WriteString("{\n")
	sb.WriteString(`  "classification": "Short summary of intent (e.g. Invoice, Leave Request)",` + "\n")
	sb.WriteString(`  "department": "One of the Available Departments, copied exactly",` + "\n")
	sb.WriteString(`  "justification": "Why this department is the correct choice",` + "\n")
	sb.WriteString(`  "suggested_action": "Specific action (e.g. Forward to Finance)"` + "\n")
	sb.WriteString("}\n")
	sb.WriteString("The department must be chosen strictly from the Available Departments list.\n")

	return sb.String()
}
