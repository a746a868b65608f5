package dialogue

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"
)

// Completer produces one spoken reply for one caller utterance.
// Request/response only; the realtime streaming service lives in
// internal/bridge with its own protocol.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, utterance string) (string, error)
}

// OpenAICompleter implements Completer with chat completions.
type OpenAICompleter struct {
	client *openai.Client
	model  string
}

func NewOpenAICompleter(apiKey string) *OpenAICompleter {
	return &OpenAICompleter{
		client: openai.NewClient(apiKey),
		model:  openai.GPT4,
	}
}

func (o *OpenAICompleter) Complete(ctx context.Context, systemPrompt, utterance string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: utterance},
		},
		// Replies are spoken aloud; keep them short.
		MaxTokens: 150,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("dialogue: completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
