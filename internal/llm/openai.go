package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// OpenAIClient implements ChatModel against an OpenAI-compatible chat
// completions REST API (OpenAI, Azure OpenAI, or Ollama's /v1 endpoint).
// It is safe for concurrent use.
type OpenAIClient struct {
	// baseURL is the API base (e.g. "https://api.openai.com/v1").
	baseURL string
	// apiKey is the Bearer token (OpenAI) or api-key header value (Azure).
	apiKey string
	// model is the chat model name (e.g. "gpt-4o-mini").
	model string
	// azure selects Azure-style auth (api-key header) over Bearer token.
	azure bool
	// apiVersion is the Azure OpenAI API version query param (ignored for OpenAI).
	apiVersion string
	// client is the shared HTTP client. The timeout is generous because a
	// completion with a large retrieved context can take a while.
	client *http.Client
}

// OpenAIConfig holds the settings for constructing an OpenAIClient.
type OpenAIConfig struct {
	// BaseURL is the API base URL. For OpenAI: "https://api.openai.com/v1".
	// For Azure: "https://<resource>.openai.azure.com/openai".
	// For Ollama: "http://localhost:11434/v1".
	BaseURL string
	// APIKey is the authentication key. May be empty for Ollama.
	APIKey string
	// Model is the chat model name or Azure deployment name.
	Model string
	// Azure enables Azure OpenAI mode (api-key header + api-version param).
	Azure bool
	// APIVersion is the Azure OpenAI API version. Ignored when Azure is false.
	APIVersion string
}

// NewOpenAIClient constructs an OpenAIClient from the given config.
func NewOpenAIClient(cfg *OpenAIConfig) *OpenAIClient {
	return &OpenAIClient{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		azure:      cfg.Azure,
		apiVersion: cfg.APIVersion,
		client:     &http.Client{Timeout: 2 * time.Minute},
	}
}

// chatRequest is the JSON body sent to the chat completions endpoint.
type chatRequest struct {
	Model      string    `json:"model"`
	Messages   []Message `json:"messages"`
	Tools      []Tool    `json:"tools,omitempty"`
	ToolChoice string    `json:"tool_choice,omitempty"`
}

// chatResponse is the JSON body returned from the chat completions endpoint.
// The message is kept raw: its shape varies by provider and is resolved by
// Normalize, not here.
type chatResponse struct {
	Choices []struct {
		Message json.RawMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete submits the conversation and tool schema and returns the raw
// response message of the first choice. Tool-use decisions are left to the
// model ("auto"). Failures are provider errors and propagate unretried.
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message, tools []Tool) (json.RawMessage, error) {
	body := chatRequest{
		Model:    c.model,
		Messages: messages,
	}
	if len(tools) > 0 {
		body.Tools = tools
		body.ToolChoice = "auto"
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("llm: marshal request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	if c.azure {
		url = c.baseURL + "/deployments/" + c.model + "/chat/completions?api-version=" + c.apiVersion
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("llm: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.azure:
		req.Header.Set("api-key", c.apiKey)
	case c.apiKey != "":
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm: request failed: %w", err)
	}
	defer resp.Body.Close()

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("llm: decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Error != nil {
			msg = result.Error.Message
		}
		return nil, fmt.Errorf("llm: %s", msg)
	}

	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("llm: response contained no choices")
	}

	return result.Choices[0].Message, nil
}
