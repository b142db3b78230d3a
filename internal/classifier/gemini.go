package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/nhle/mailroute/internal/credential"
	"github.com/nhle/mailroute/internal/model"
)

const (
	geminiBaseURL   = "https://generativelanguage.googleapis.com/v1beta"
	geminiKeyHeader = "x-goog-api-key"
)

// GeminiCompleter calls the Google Generative Language REST API.
type GeminiCompleter struct {
	opts options
}

var _ Completer = (*GeminiCompleter)(nil)

// NewGemini creates a Gemini completer.
func NewGemini(opts ...Option) *GeminiCompleter {
	return &GeminiCompleter{opts: newOptions(geminiBaseURL, opts)}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			Reason string `json:"reason"`
		} `json:"details"`
	} `json:"error"`
}

type geminiModelList struct {
	Models []struct {
		Name                       string   `json:"name"`
		SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
	} `json:"models"`
	NextPageToken string `json:"nextPageToken"`
}

// Complete sends prompt to the generateContent endpoint of modelName and
// returns the concatenated text of the first candidate.
func (g *GeminiCompleter) Complete(
	ctx context.Context, apiKey credential.Secret, modelName, prompt string,
) (string, error) {
	if modelName == "" {
		modelName = model.DefaultModelName
	}

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := g.opts.baseURL + "/" + modelPath(modelName) + ":generateContent"

	respBody, err := g.do(ctx, http.MethodPost, endpoint, apiKey, body)
	if err != nil {
		return "", err
	}

	var resp geminiResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", newError(KindOther, "decoding response: %w", err)
	}

	if len(resp.Candidates) == 0 {
		if reason := resp.PromptFeedback.BlockReason; reason != "" {
			return "", newError(KindOther, "prompt blocked by model: %s", reason)
		}
		return "", newError(KindOther, "model returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}

	g.opts.logger.Debug("gemini response",
		zap.String("model", modelName),
		zap.String("finish_reason", resp.Candidates[0].FinishReason),
	)

	return sb.String(), nil
}

// ListModels returns the names of Gemini models that support
// generateContent. When none are listed the default model is returned.
func (g *GeminiCompleter) ListModels(ctx context.Context, apiKey credential.Secret) ([]string, error) {
	if apiKey.Empty() {
		return nil, newError(KindInvalidCredential, "no API key configured")
	}

	var names []string
	pageToken := ""

	for {
		q := url.Values{}
		q.Set("pageSize", "1000")
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		respBody, err := g.do(ctx, http.MethodGet, g.opts.baseURL+"/models?"+q.Encode(), apiKey, nil)
		if err != nil {
			return nil, err
		}

		var page geminiModelList
		if err := json.Unmarshal(respBody, &page); err != nil {
			return nil, newError(KindOther, "decoding model list: %w", err)
		}

		for _, m := range page.Models {
			if !strings.Contains(m.Name, "gemini") {
				continue
			}
			for _, method := range m.SupportedGenerationMethods {
				if method == "generateContent" {
					names = append(names, m.Name)
					break
				}
			}
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	if len(names) == 0 {
		names = []string{model.DefaultModelName}
	}
	return names, nil
}

// do performs one request and maps non-200 answers to classifier errors.
// The key travels in a header so it never appears in a URL or error text.
func (g *GeminiCompleter) do(
	ctx context.Context, method, endpoint string, apiKey credential.Secret, body []byte,
) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, newError(KindOther, "creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(geminiKeyHeader, apiKey.Reveal())

	resp, err := g.opts.client.Do(req)
	if err != nil {
		return nil, newError(KindOther, "calling Gemini API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(KindOther, "reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, geminiError(resp.StatusCode, respBody)
	}
	return respBody, nil
}

func geminiError(status int, body []byte) *Error {
	var apiErr geminiErrorResponse
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		msg = apiErr.Error.Message
	}

	reasons := []string{apiErr.Error.Status}
	for _, d := range apiErr.Error.Details {
		reasons = append(reasons, d.Reason)
	}

	kind := KindOther
	switch {
	case status == http.StatusTooManyRequests || slices.Contains(reasons, "RESOURCE_EXHAUSTED") || quotaText(msg):
		kind = KindQuotaExceeded
	case status == http.StatusUnauthorized || status == http.StatusForbidden ||
		slices.Contains(reasons, "API_KEY_INVALID") || slices.Contains(reasons, "UNAUTHENTICATED") ||
		slices.Contains(reasons, "PERMISSION_DENIED"):
		kind = KindInvalidCredential
	}

	return &Error{Kind: kind, Err: fmt.Errorf("gemini API error (%d): %s", status, msg)}
}

// modelPath accepts both "gemini-1.5-flash" and "models/gemini-1.5-flash".
func modelPath(name string) string {
	if strings.HasPrefix(name, "models/") || strings.HasPrefix(name, "tunedModels/") {
		return name
	}
	return "models/" + name
}
