package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// hostedProvider generates through the OpenAI chat completions API.
type hostedProvider struct {
	client      *openai.Client
	model       string
	temperature float32
}

func newHosted(apiKey, model string, temperature float64) *hostedProvider {
	if model == "" {
		model = "gpt-3.5-turbo"
	}
	return &hostedProvider{
		client:      openai.NewClient(apiKey),
		model:       model,
		temperature: float32(temperature),
	}
}

func (p *hostedProvider) Kind() Kind { return Hosted }

func (p *hostedProvider) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: p.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai chat completion: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
