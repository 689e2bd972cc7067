package openaiservice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func completionServer(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &Client{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	}, srv
}

func TestCreateCompletionReturnsTrimmedContent(t *testing.T) {
	var captured completionPayload
	client, _ := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != completionPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  hello there \n"}}]}`))
	})

	text, err := client.CreateCompletion(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}}, 150)
	if err != nil {
		t.Fatalf("create completion: %v", err)
	}
	if text != "hello there" {
		t.Fatalf("expected trimmed content, got %q", text)
	}

	if captured.Model != defaultModel {
		t.Errorf("expected default model %s, got %s", defaultModel, captured.Model)
	}
	if captured.MaxTokens != 150 {
		t.Errorf("expected max_tokens 150, got %d", captured.MaxTokens)
	}
	if captured.Temperature != temperature {
		t.Errorf("expected temperature %v, got %v", temperature, captured.Temperature)
	}
}

func TestCreateCompletionEmptyContent(t *testing.T) {
	client, _ := completionServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"   "}}]}`))
	})

	_, err := client.CreateCompletion(context.Background(), nil, 100)
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestCreateCompletionNoChoices(t *testing.T) {
	client, _ := completionServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	_, err := client.CreateCompletion(context.Background(), nil, 100)
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestCreateCompletionUpstreamFailure(t *testing.T) {
	client, _ := completionServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	})

	_, err := client.CreateCompletion(context.Background(), nil, 100)
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if !strings.Contains(transportErr.Status, "429") {
		t.Errorf("expected 429 status, got %q", transportErr.Status)
	}
	if !strings.Contains(transportErr.Body, "rate limited") {
		t.Errorf("expected upstream body to be preserved, got %q", transportErr.Body)
	}
}

func TestCreateCompletionRequiresAPIKey(t *testing.T) {
	client := &Client{}
	_, err := client.CreateCompletion(context.Background(), nil, 100)
	if err == nil || !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Fatalf("expected missing-key error, got %v", err)
	}
}
