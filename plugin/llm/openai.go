package llm

import (
	"context"

	"github.com/pkg/errors"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAI completes prompts through langchaingo's OpenAI client.
type OpenAI struct {
	llm *openai.LLM
}

func NewOpenAI(apiKey, model, baseURL string) (*OpenAI, error) {
	opts := []openai.Option{openai.WithToken(apiKey)}
	if model != "" {
		opts = append(opts, openai.WithModel(model))
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create openai client")
	}
	return &OpenAI{llm: client}, nil
}

func (*OpenAI) Name() string { return ProviderOpenAI }

func (o *OpenAI) Complete(ctx context.Context, prompt, systemMessage string) (string, error) {
	messages := make([]llms.MessageContent, 0, 2)
	if systemMessage != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, systemMessage))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, prompt))

	resp, err := o.llm.GenerateContent(ctx, messages)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty response from LLM")
	}
	return resp.Choices[0].Content, nil
}
