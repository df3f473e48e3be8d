package synth

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/sovereignlab/sovereign/pkg/domain/synth"
)

type OpenAIProvider struct {
	Model  string
	client *openai.Client
}

func NewOpenAIProvider(model string, apiKey string) *OpenAIProvider {
	if model == "" {
		model = openai.GPT4o
	}
	return &OpenAIProvider{
		Model:  model,
		client: openai.NewClient(apiKey),
	}
}

// NewOpenAIProviderWithBaseURL creates a provider pointed at a custom
// endpoint (for testing or OpenAI-compatible local servers).
func NewOpenAIProviderWithBaseURL(model, apiKey, baseURL string) *OpenAIProvider {
	if model == "" {
		model = openai.GPT4o
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{
		Model:  model,
		client: openai.NewClientWithConfig(cfg),
	}
}

func (p *OpenAIProvider) ID() string {
	return "openai:" + p.Model
}

func (p *OpenAIProvider) Complete(ctx context.Context, req synth.CompletionRequest) (*synth.CompletionResponse, error) {
	messages := []openai.ChatCompletionMessage{}
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	chatReq := openai.ChatCompletionRequest{
		Model:    p.Model,
		Messages: messages,
	}
	if req.Temperature > 0 {
		chatReq.Temperature = req.Temperature
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("openai completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("OpenAI API returned no choices")
	}

	return &synth.CompletionResponse{
		Text:  resp.Choices[0].Message.Content,
		Model: p.Model,
		Usage: synth.TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}
