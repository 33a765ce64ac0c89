package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/khushiGit123/jira-gen/internal/config"
	"github.com/khushiGit123/jira-gen/internal/errors"
)

func backendFor(t *testing.T, srv *httptest.Server) *HTTPBackend {
	t.Helper()
	cfg := config.BackendConfig{
		BaseURL:        srv.URL,
		APIKey:         "test-key",
		Model:          "test-model",
		MaxTokens:      1024,
		TimeoutSeconds: 5,
	}
	return NewHTTP(cfg, WithHTTPClient(srv.Client()))
}

func messagesOK(text string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{{"type": "text", "text": text}},
		})
	}
}

func TestCompleteReturnsText(t *testing.T) {
	var got messageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if key := r.Header.Get("X-Api-Key"); key != "test-key" {
			t.Errorf("api key header = %q", key)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		messagesOK("hello from the model")(w, r)
	}))
	defer srv.Close()

	b := backendFor(t, srv)
	text, err := b.Complete(context.Background(), Request{
		Role:    "a business analyst",
		Goal:    "extract requirements",
		Context: "build a shop",
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != "hello from the model" {
		t.Errorf("text = %q", text)
	}
	if got.Model != "test-model" {
		t.Errorf("model = %q", got.Model)
	}
	if !strings.Contains(got.System, "business analyst") {
		t.Errorf("system prompt missing role: %q", got.System)
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != "build a shop" {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestCompleteConcatenatesTextBlocks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": "part one "},
				{"type": "tool_use", "text": "ignored"},
				{"type": "text", "text": "part two"},
			},
		})
	}))
	defer srv.Close()

	text, err := backendFor(t, srv).Complete(context.Background(), Request{Context: "x"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != "part one part two" {
		t.Errorf("text = %q", text)
	}
}

func TestCompleteStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		retryable  bool
		config     bool
		rateLimitd bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, retryable: true, rateLimitd: true},
		{name: "server error", status: http.StatusInternalServerError, retryable: true},
		{name: "bad gateway", status: http.StatusBadGateway, retryable: true},
		{name: "unauthorized", status: http.StatusUnauthorized, config: true},
		{name: "forbidden", status: http.StatusForbidden, config: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			_, err := backendFor(t, srv).Complete(context.Background(), Request{Context: "x"})
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.IsRetryable(err) != tt.retryable {
				t.Errorf("IsRetryable = %v, want %v: %v", errors.IsRetryable(err), tt.retryable, err)
			}
			if errors.IsConfiguration(err) != tt.config {
				t.Errorf("IsConfiguration = %v, want %v: %v", errors.IsConfiguration(err), tt.config, err)
			}
			if tt.rateLimitd && !errors.Is(err, errors.ErrRateLimited) {
				t.Errorf("expected ErrRateLimited in chain: %v", err)
			}
		})
	}
}

func TestCompleteMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not json"))
	}))
	defer srv.Close()

	_, err := backendFor(t, srv).Complete(context.Background(), Request{Context: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.IsRetryable(err) {
		t.Errorf("malformed body should be retryable: %v", err)
	}
}

func TestCompleteEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(messagesOK("   "))
	defer srv.Close()

	_, err := backendFor(t, srv).Complete(context.Background(), Request{Context: "x"})
	if err == nil {
		t.Fatal("expected error for empty completion")
	}
	if !strings.Contains(err.Error(), "no text") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCompleteTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	b := backendFor(t, srv)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := b.Complete(ctx, Request{Context: "x"})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.IsRetryable(err) {
		t.Errorf("timeout should be retryable: %v", err)
	}
}

func TestScriptedBackend(t *testing.T) {
	s := NewScripted().
		Respond("first").
		Fail(errors.NewTransportError("boom", nil)).
		Respond("second")

	ctx := context.Background()
	if text, err := s.Complete(ctx, Request{Context: "a"}); err != nil || text != "first" {
		t.Errorf("step 1: %q, %v", text, err)
	}
	if _, err := s.Complete(ctx, Request{Context: "b"}); err == nil {
		t.Error("step 2: expected error")
	}
	if text, err := s.Complete(ctx, Request{Context: "c"}); err != nil || text != "second" {
		t.Errorf("step 3: %q, %v", text, err)
	}
	if _, err := s.Complete(ctx, Request{Context: "d"}); err == nil {
		t.Error("exhausted script should error")
	}
	if s.Calls() != 4 {
		t.Errorf("calls = %d", s.Calls())
	}
}
