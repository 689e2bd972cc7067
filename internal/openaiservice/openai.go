/*
Package openaiservice implements the personalized-content generation flow:
it gathers the user's profile records, composes a prompt, calls the
external chat-completions API and materializes the response into either
daily health tips or a chat reply.
*/
package openaiservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// --- Completions API Configuration ---
const (
	defaultBaseURL = "https://api.openai.com"
	completionPath = "/v1/chat/completions"
	defaultModel   = "gpt-3.5-turbo"

	// Both call sites use the same fixed temperature.
	temperature = 0.7

	requestTimeout = 30 * time.Second
)

// ChatMessage is one role-tagged entry in the completions request body.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionPayload struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Client issues single-attempt requests to the chat-completions endpoint.
// No retry, no backoff: a failed generation is surfaced to the user, who
// can trigger it again manually.
type Client struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// NewClientFromEnv builds a Client from OPENAI_API_KEY and the optional
// OPENAI_BASE_URL / OPENAI_MODEL overrides.
func NewClientFromEnv() *Client {
	return &Client{
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		BaseURL: os.Getenv("OPENAI_BASE_URL"),
		Model:   os.Getenv("OPENAI_MODEL"),
	}
}

// CreateCompletion posts the messages and returns the trimmed text of the
// first choice. It fails with ErrEmptyResponse when the content field is
// absent or blank, and with *TransportError when the call itself fails.
func (c *Client) CreateCompletion(ctx context.Context, messages []ChatMessage, maxTokens int) (string, error) {
	if c.APIKey == "" {
		return "", fmt.Errorf("server is not configured for AI responses: OPENAI_API_KEY is not set")
	}

	model := c.Model
	if model == "" {
		model = defaultModel
	}
	baseURL := strings.TrimRight(c.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}

	payload := completionPayload{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+completionPath, bytes.NewReader(payloadBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", &TransportError{Status: resp.Status, Body: string(body)}
	}

	var completion completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("failed to decode completions response: %w", err)
	}

	if len(completion.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(completion.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
