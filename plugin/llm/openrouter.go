package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

const defaultOpenRouterURL = "https://openrouter.ai/api/v1"

// OpenRouter calls the OpenRouter chat-completions endpoint.
type OpenRouter struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewOpenRouter(apiKey, model, baseURL string) *OpenRouter {
	if baseURL == "" {
		baseURL = defaultOpenRouterURL
	}
	return &OpenRouter{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  http.DefaultClient,
	}
}

func (*OpenRouter) Name() string { return ProviderOpenRouter }

func (o *OpenRouter) Complete(ctx context.Context, prompt, systemMessage string) (string, error) {
	messages := make([]map[string]any, 0, 2)
	if systemMessage != "" {
		messages = append(messages, map[string]any{"role": "system", "content": systemMessage})
	}
	messages = append(messages, map[string]any{"role": "user", "content": prompt})

	bodyBytes, err := json.Marshal(map[string]any{
		"model":    o.model,
		"messages": messages,
	})
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &StatusError{Provider: ProviderOpenRouter, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var apiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", errors.Wrap(err, "failed to decode completion")
	}
	if len(apiResp.Choices) == 0 {
		return "", errors.New("empty response from LLM")
	}
	return apiResp.Choices[0].Message.Content, nil
}
