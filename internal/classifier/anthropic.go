package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/nhle/mailroute/internal/credential"
)

const (
	anthropicBaseURL      = "https://api.anthropic.com"
	anthropicVersion      = "2023-06-01"
	defaultAnthropicModel = "claude-sonnet-4-5-20250929"
	defaultMaxTokens      = 1024
)

// AnthropicCompleter calls the Claude Messages API.
type AnthropicCompleter struct {
	opts options
}

var _ Completer = (*AnthropicCompleter)(nil)

// NewAnthropic creates a Claude completer.
func NewAnthropic(opts ...Option) *AnthropicCompleter {
	return &AnthropicCompleter{opts: newOptions(anthropicBaseURL, opts)}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

type anthropicErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends prompt as a single user message and returns the joined
// text blocks of the reply. Gemini model names fall back to the default
// Claude model.
func (a *AnthropicCompleter) Complete(
	ctx context.Context, apiKey credential.Secret, modelName, prompt string,
) (string, error) {
	if modelName == "" || strings.Contains(modelName, "gemini") {
		modelName = defaultAnthropicModel
	}

	bodyBytes, err := json.Marshal(anthropicRequest{
		Model:     modelName,
		MaxTokens: a.opts.maxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, a.opts.baseURL+"/v1/messages", bytes.NewReader(bodyBytes),
	)
	if err != nil {
		return "", newError(KindOther, "creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", apiKey.Reveal())
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.opts.client.Do(req)
	if err != nil {
		return "", newError(KindOther, "calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", newError(KindOther, "reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", anthropicError(resp.StatusCode, respBody)
	}

	var result anthropicResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", newError(KindOther, "decoding response: %w", err)
	}

	var sb strings.Builder
	for _, block := range result.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	a.opts.logger.Debug("claude response",
		zap.String("model", modelName),
		zap.String("stop_reason", result.StopReason),
	)

	return sb.String(), nil
}

func anthropicError(status int, body []byte) *Error {
	var apiErr anthropicErrorResponse
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		msg = apiErr.Error.Message
	}

	kind := KindOther
	switch {
	case status == http.StatusTooManyRequests || apiErr.Error.Type == "rate_limit_error" || quotaText(msg):
		kind = KindQuotaExceeded
	case status == http.StatusUnauthorized || status == http.StatusForbidden ||
		apiErr.Error.Type == "authentication_error" || apiErr.Error.Type == "permission_error":
		kind = KindInvalidCredential
	}

	return &Error{Kind: kind, Err: fmt.Errorf("anthropic API error (%d): %s", status, msg)}
}
