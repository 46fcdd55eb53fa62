package sut

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	claudeDefaultModel = "claude-sonnet-4-5-20250929"
	claudeMaxTokens    = 1024
)

// ClaudeBackend answers queries with a Claude model.
type ClaudeBackend struct {
	apiKey  string
	baseURL string
	model   string
}

func NewClaude(apiKey string, baseURL string, model string) *ClaudeBackend {
	m := strings.TrimSpace(model)
	if m == "" {
		m = claudeDefaultModel
	}
	return &ClaudeBackend{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: strings.TrimSpace(strings.TrimRight(baseURL, "/")),
		model:   m,
	}
}

func (b *ClaudeBackend) Name() string { return "claude" }

func (b *ClaudeBackend) Infer(ctx context.Context, input []byte) ([]byte, error) {
	if b == nil {
		return nil, errors.New("sut: claude: nil backend")
	}
	if ctx == nil {
		return nil, errors.New("sut: claude: nil context")
	}

	opts := make([]option.RequestOption, 0, 2)
	if b.apiKey != "" {
		opts = append(opts, option.WithAPIKey(b.apiKey))
	}
	if b.baseURL != "" {
		opts = append(opts, option.WithBaseURL(b.baseURL))
	}

	client := anthropic.NewClient(opts...)
	msg, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: claudeMaxTokens,
		Messages: []anthropic.MessageParam{
			{
				Role: anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewTextBlock(string(input)),
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, errors.New("sut: claude: nil response")
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text := block.AsText()
			sb.WriteString(text.Text)
		}
	}
	return []byte(sb.String()), nil
}
