package classifier

import (
	"encoding/json"
	"strings"

	"github.com/nhle/mailroute/internal/model"
)

const fence = "```"

// StripFence removes a Markdown code fence (with or without a language
// tag) around text, including a lone opening or closing marker. Unfenced
// text is only trimmed.
func StripFence(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, fence) {
		// A closing marker may appear without an opening one.
		return strings.TrimSpace(strings.TrimSuffix(t, fence))
	}

	t = strings.TrimPrefix(t, fence)
	if i := strings.IndexByte(t, '\n'); i >= 0 {
		// Opening marker line, e.g. ```json
		t = t[i+1:]
	} else {
		t = strings.TrimLeft(t, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
	}

	t = strings.TrimSpace(t)
	t = strings.TrimSuffix(t, fence)
	return strings.TrimSpace(t)
}

var requiredFields = []string{"classification", "department", "justification", "suggested_action"}

// ParseResult decodes a model answer into a ClassificationResult. Every
// required field must be present as a JSON string, and the department must
// exactly match a directory name. Values are copied without modification.
func ParseResult(text string, dir model.Directory) (model.ClassificationResult, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(StripFence(text)), &fields); err != nil {
		return model.ClassificationResult{}, newError(KindMalformedResponse, "decoding JSON: %w", err)
	}

	values := make(map[string]string, len(requiredFields))
	for _, name := range requiredFields {
		raw, ok := fields[name]
		if !ok || string(raw) == "null" {
			return model.ClassificationResult{}, newError(KindMalformedResponse, "missing field %q", name)
		}
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return model.ClassificationResult{}, newError(KindMalformedResponse, "field %q is not a string", name)
		}
		values[name] = v
	}

	result := model.ClassificationResult{
		Classification:  values["classification"],
		Department:      values["department"],
		Justification:   values["justification"],
		SuggestedAction: values["suggested_action"],
	}

	if !dir.Has(result.Department) {
		return model.ClassificationResult{}, &Error{
			Kind:       KindUnknownDepartment,
			Department: result.Department,
		}
	}

	return result, nil
}
