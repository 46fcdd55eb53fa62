package sut

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const openAIMaxTokens = 1024

// OpenAIBackend answers queries with an OpenAI chat model.
type OpenAIBackend struct {
	client *openai.Client
	model  string
}

func NewOpenAI(apiKey string, baseURL string, model string) *OpenAIBackend {
	cfg := openai.DefaultConfig(strings.TrimSpace(apiKey))
	if v := strings.TrimSpace(baseURL); v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}

	m := strings.TrimSpace(model)
	if m == "" {
		m = "gpt-4o"
	}

	return &OpenAIBackend{
		client: openai.NewClientWithConfig(cfg),
		model:  m,
	}
}

func (b *OpenAIBackend) Name() string { return "openai" }

func (b *OpenAIBackend) Infer(ctx context.Context, input []byte) ([]byte, error) {
	if b == nil || b.client == nil {
		return nil, errors.New("sut: openai: nil client")
	}
	if ctx == nil {
		return nil, errors.New("sut: openai: nil context")
	}

	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: string(input)},
		},
		MaxTokens:   openAIMaxTokens,
		Temperature: 0,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("sut: openai: empty response")
	}
	return []byte(resp.Choices[0].Message.Content), nil
}
