package llm

import (
	"fmt"
	"os"
)

// Default chat models per backend.
const (
	defaultOpenAIModel = "gpt-4o-mini"
	defaultOllamaModel = "llama3.1"
)

// NewFromEnv constructs a ChatModel from environment variables.
//
// MODEL_PROVIDER selects the backend: openai (default), azure, or ollama.
// All three speak the OpenAI-compatible chat completions protocol, so they
// share one client with backend-specific base URLs and auth.
func NewFromEnv() (ChatModel, error) {
	backend := envOrDefault("MODEL_PROVIDER", "openai")

	switch backend {
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("llm: openai requires OPENAI_API_KEY")
		}
		return NewOpenAIClient(&OpenAIConfig{
			BaseURL: envOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			APIKey:  apiKey,
			Model:   envOrDefault("OPENAI_MODEL", defaultOpenAIModel),
		}), nil

	case "azure":
		apiKey := os.Getenv("AZURE_OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("llm: azure requires AZURE_OPENAI_API_KEY")
		}
		endpoint := os.Getenv("AZURE_OPENAI_ENDPOINT")
		if endpoint == "" {
			return nil, fmt.Errorf("llm: azure requires AZURE_OPENAI_ENDPOINT")
		}
		deployment := os.Getenv("AZURE_OPENAI_DEPLOYMENT")
		if deployment == "" {
			return nil, fmt.Errorf("llm: azure requires AZURE_OPENAI_DEPLOYMENT")
		}
		return NewOpenAIClient(&OpenAIConfig{
			BaseURL:    endpoint + "/openai",
			APIKey:     apiKey,
			Model:      deployment,
			Azure:      true,
			APIVersion: envOrDefault("AZURE_OPENAI_API_VERSION", "2025-04-01-preview"),
		}), nil

	case "ollama":
		host := envOrDefault("OLLAMA_HOST", "http://localhost:11434")
		return NewOpenAIClient(&OpenAIConfig{
			BaseURL: host + "/v1",
			Model:   envOrDefault("OLLAMA_MODEL", defaultOllamaModel),
		}), nil

	default:
		return nil, fmt.Errorf("llm: unknown backend %q — valid values: openai, azure, ollama", backend)
	}
}

// envOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
