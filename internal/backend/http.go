package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/khushiGit123/jira-gen/internal/config"
	"github.com/khushiGit123/jira-gen/internal/errors"
	"github.com/khushiGit123/jira-gen/internal/logging"
)

const (
	messagesPath = "/v1/messages"
	apiVersion   = "2023-06-01"

	// maxErrorBody bounds how much of an error response body is read for
	// diagnostics.
	maxErrorBody = 4 << 10
)

// HTTPBackend talks to a messages-style completion endpoint over HTTP.
type HTTPBackend struct {
	cfg    config.BackendConfig
	client *http.Client
	logger *logging.Logger
}

// HTTPOption configures an HTTPBackend.
type HTTPOption func(*HTTPBackend)

// WithHTTPClient replaces the underlying HTTP client. Used by tests.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(b *HTTPBackend) {
		b.client = c
	}
}

// WithLogger sets the backend logger.
func WithLogger(l *logging.Logger) HTTPOption {
	return func(b *HTTPBackend) {
		b.logger = l
	}
}

// NewHTTP creates an HTTP backend from config. The per-request timeout comes
// from cfg.Timeout(); callers layer retries on top.
func NewHTTP(cfg config.BackendConfig, opts ...HTTPOption) *HTTPBackend {
	b := &HTTPBackend{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout(),
		},
		logger: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type messageRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Messages  []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messageResponse struct {
	Content []contentBlock `json:"content"`
	Error   *apiError      `json:"error,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Complete sends one completion request and returns the concatenated text
// blocks of the response.
func (b *HTTPBackend) Complete(ctx context.Context, req Request) (string, error) {
	body := messageRequest{
		Model:     b.cfg.Model,
		MaxTokens: b.cfg.MaxTokens,
		System:    systemPrompt(req),
		Messages: []chatMessage{
			{Role: "user", Content: req.Context},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", errors.NewTransportError("encoding completion request", err)
	}

	url := strings.TrimRight(b.cfg.BaseURL, "/") + messagesPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", errors.NewTransportError("building completion request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", b.cfg.APIKey)
	httpReq.Header.Set("Anthropic-Version", apiVersion)

	start := time.Now()
	resp, err := b.client.Do(httpReq)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded || isTimeout(err) {
			return "", errors.NewTimeoutError("completion request", b.cfg.Timeout()).WithCause(err)
		}
		return "", errors.NewTransportError("completion request failed", err)
	}
	defer resp.Body.Close()

	b.logger.Debug("completion response",
		"status", resp.StatusCode, "elapsed", time.Since(start).String())

	if resp.StatusCode != http.StatusOK {
		return "", b.statusError(resp)
	}

	var decoded messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", errors.NewTransportError("malformed completion response", err)
	}
	if decoded.Error != nil {
		return "", errors.NewTransportError(
			fmt.Sprintf("backend error (%s): %s", decoded.Error.Type, decoded.Error.Message), nil)
	}

	var sb strings.Builder
	for _, block := range decoded.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return "", errors.NewTransportError("completion response contained no text", nil)
	}
	return text, nil
}

// statusError maps a non-200 response to the error taxonomy. Rate limits and
// server errors are retryable transport errors; rejected credentials are
// configuration errors so callers fail fast instead of retrying.
func (b *HTTPBackend) statusError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	detail := strings.TrimSpace(string(snippet))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return errors.NewTransportError("backend rate limited", errors.ErrRateLimited).
			WithStatusCode(resp.StatusCode)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errors.NewConfigurationError(
			fmt.Sprintf("backend rejected credentials: %s", detail)).WithKey("backend.api_key")
	case resp.StatusCode >= 500:
		return errors.NewTransportError(
			fmt.Sprintf("backend server error: %s", detail), nil).WithStatusCode(resp.StatusCode)
	default:
		return errors.NewTransportError(
			fmt.Sprintf("unexpected backend response: %s", detail), nil).WithStatusCode(resp.StatusCode)
	}
}

// systemPrompt renders the persona framing sent as the system block.
func systemPrompt(req Request) string {
	var sb strings.Builder
	if req.Role != "" {
		fmt.Fprintf(&sb, "You are %s.", req.Role)
	}
	if req.Goal != "" {
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "Your goal: %s", req.Goal)
	}
	return sb.String()
}

func isTimeout(err error) bool {
	t, ok := err.(interface{ Timeout() bool })
	if ok && t.Timeout() {
		return true
	}
	unwrapped := errors.Unwrap(err)
	if unwrapped == nil {
		return false
	}
	return isTimeout(unwrapped)
}
