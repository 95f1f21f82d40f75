package service

import (
	"errors"
	"net/http"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/anupa-perera/Githubpedia/internal/models"
)

func TestNewLLMClientProviderSet(t *testing.T) {
	for _, provider := range []models.Provider{
		models.ProviderOpenAI,
		models.ProviderAnthropic,
		models.ProviderOpenRouter,
	} {
		cfg := models.LLMConfig{Provider: provider, APIKey: "k", Model: "m"}
		client, err := NewLLMClient(cfg)
		if err != nil {
			t.Fatalf("provider %s: %v", provider, err)
		}
		if client == nil {
			t.Fatalf("provider %s: nil client", provider)
		}
	}
}

func TestNewLLMClientRejectsUnknownProvider(t *testing.T) {
	for _, provider := range []models.Provider{"", "vertex", "gemini", "OPENAI"} {
		cfg := models.LLMConfig{Provider: provider, APIKey: "k", Model: "m"}
		if _, err := NewLLMClient(cfg); !errors.Is(err, ErrUnsupportedProvider) {
			t.Fatalf("provider %q: expected ErrUnsupportedProvider, got %v", provider, err)
		}
	}
}

func TestOpenRouterDefaultsBaseURL(t *testing.T) {
	client, err := NewLLMClient(models.LLMConfig{Provider: models.ProviderOpenRouter, APIKey: "k", Model: "m"})
	if err != nil {
		t.Fatalf("NewLLMClient: %v", err)
	}
	if _, ok := client.(*openAIClient); !ok {
		t.Fatalf("openrouter must use the OpenAI-compatible client, got %T", client)
	}
}

func TestMapOpenAIErrorAuthDetection(t *testing.T) {
	authErr := mapOpenAIError(&openai.APIError{HTTPStatusCode: http.StatusUnauthorized, Message: "bad key"})
	var llmErr *LLMError
	if !errors.As(authErr, &llmErr) || !llmErr.Auth {
		t.Fatalf("401 must map to an auth LLMError, got %v", authErr)
	}

	serverErr := mapOpenAIError(&openai.APIError{HTTPStatusCode: http.StatusInternalServerError, Message: "boom"})
	if !errors.As(serverErr, &llmErr) || llmErr.Auth {
		t.Fatalf("500 must map to a non-auth LLMError, got %v", serverErr)
	}

	plainErr := mapOpenAIError(errors.New("connection refused"))
	if !errors.As(plainErr, &llmErr) || llmErr.Auth {
		t.Fatalf("transport error must map to a non-auth LLMError, got %v", plainErr)
	}
}
