package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/sashabaranov/go-openai"
	"github.com/user/ideascan/internal/config"
)

// Completer sends a single prompt to a language model and returns the raw
// text of its reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

const maxReplyTokens = 600

var defaultBaseURLs = map[string]string{
	"openrouter": "https://openrouter.ai/api/v1",
	"gemini":     "https://generativelanguage.googleapis.com/v1beta/openai/",
}

var errEmptyReply = errors.New("empty reply from model")

// NewCompleter builds the client for the configured provider.
func NewCompleter(cfg config.EnrichmentConfig) (Completer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key for provider %s", cfg.Provider)
	}

	switch cfg.Provider {
	case "anthropic":
		var opts []anthropic.ClientOption
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		return &anthropicCompleter{
			client:      anthropic.NewClient(cfg.APIKey, opts...),
			model:       cfg.Model,
			temperature: float32(cfg.Temperature),
		}, nil
	case "openai", "openrouter", "gemini":
		clientCfg := openai.DefaultConfig(cfg.APIKey)
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = defaultBaseURLs[cfg.Provider]
		}
		if baseURL != "" {
			clientCfg.BaseURL = baseURL
		}
		return &openAICompleter{
			client:      openai.NewClientWithConfig(clientCfg),
			model:       cfg.Model,
			temperature: float32(cfg.Temperature),
			jsonMode:    cfg.Provider != "openrouter",
		}, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

type anthropicCompleter struct {
	client      *anthropic.Client
	model       string
	temperature float32
}

func (c *anthropicCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	temperature := c.temperature
	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(c.model),
		MaxTokens:   maxReplyTokens,
		Temperature: &temperature,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(prompt),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Content) == 0 {
		return "", errEmptyReply
	}
	return strings.TrimSpace(resp.Content[0].GetText()), nil
}

type openAICompleter struct {
	client      *openai.Client
	model       string
	temperature float32
	jsonMode    bool
}

func (c *openAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   maxReplyTokens,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if c.jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errEmptyReply
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
