package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	openai "github.com/sashabaranov/go-openai"

	"github.com/anupa-perera/Githubpedia/internal/models"
)

// Temperature is fixed low across providers to favour factual grounding over
// creativity.
const llmTemperature = 0.1

const (
	openRouterDefaultBaseURL = "https://openrouter.ai/api/v1"
	anthropicMaxTokens       = 4096
)

// LLMClient is the single invocation contract over every provider: send a
// system instruction and a user question, get answer text back. No retries,
// no cross-provider fallback.
type LLMClient interface {
	Generate(ctx context.Context, system, user string) (string, error)
	// GenerateStream invokes sink as tokens arrive and returns the complete
	// answer text once the stream ends.
	GenerateStream(ctx context.Context, system, user string, sink func(token string)) (string, error)
}

// LLMError wraps provider failures so the synthesizer can distinguish a
// rejected API key from everything else.
type LLMError struct {
	Auth    bool
	Message string
}

func (e *LLMError) Error() string {
	if e.Auth {
		return "llm provider rejected the API key: " + e.Message
	}
	return "llm provider error: " + e.Message
}

// ErrUnsupportedProvider is returned for any provider outside the closed set.
// It is a local configuration error; no network call is ever attempted.
var ErrUnsupportedProvider = errors.New("unsupported LLM provider")

// NewLLMClient constructs the provider-specific client for cfg.
func NewLLMClient(cfg models.LLMConfig) (LLMClient, error) {
	switch cfg.Provider {
	case models.ProviderOpenAI:
		return newOpenAIClient(cfg.APIKey, cfg.Model, cfg.BaseURL), nil
	case models.ProviderOpenRouter:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = openRouterDefaultBaseURL
		}
		return newOpenAIClient(cfg.APIKey, cfg.Model, baseURL), nil
	case models.ProviderAnthropic:
		return newAnthropicClient(cfg.APIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider)
	}
}

// ---- OpenAI-compatible providers (openai, openrouter) ----------------------

type openAIClient struct {
	client *openai.Client
	model  string
}

func newOpenAIClient(apiKey, model, baseURL string) *openAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &openAIClient{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

func (c *openAIClient) Generate(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: llmTemperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", mapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", &LLMError{Message: "empty completion response"}
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *openAIClient) GenerateStream(ctx context.Context, system, user string, sink func(string)) (string, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: llmTemperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", mapOpenAIError(err)
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", mapOpenAIError(err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if token := resp.Choices[0].Delta.Content; token != "" {
			sb.WriteString(token)
			sink(token)
		}
	}
	return sb.String(), nil
}

func mapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &LLMError{
			Auth:    apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden,
			Message: apiErr.Message,
		}
	}
	return &LLMError{Message: err.Error()}
}

// ---- Anthropic -------------------------------------------------------------

type anthropicClient struct {
	client anthropic.Client
	model  string
}

func newAnthropicClient(apiKey, model string) *anthropicClient {
	return &anthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (c *anthropicClient) params(system, user string) anthropic.MessageNewParams {
	return anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   anthropicMaxTokens,
		Temperature: anthropic.Float(llmTemperature),
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}
}

func (c *anthropicClient) Generate(ctx context.Context, system, user string) (string, error) {
	msg, err := c.client.Messages.New(ctx, c.params(system, user))
	if err != nil {
		return "", mapAnthropicError(err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

func (c *anthropicClient) GenerateStream(ctx context.Context, system, user string, sink func(string)) (string, error) {
	stream := c.client.Messages.NewStreaming(ctx, c.params(system, user))

	var sb strings.Builder
	for stream.Next() {
		event := stream.Current()
		switch variant := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := variant.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
				sb.WriteString(delta.Text)
				sink(delta.Text)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return "", mapAnthropicError(err)
	}
	return sb.String(), nil
}

func mapAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &LLMError{
			Auth:    apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden,
			Message: apiErr.Error(),
		}
	}
	return &LLMError{Message: err.Error()}
}
