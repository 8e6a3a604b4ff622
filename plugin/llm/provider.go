// Package llm provides chat-completion providers and the retry policy every
// provider call runs under.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/procura/procura/internal/profile"
)

const (
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
)

// Provider completes a single prompt.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt, systemMessage string) (string, error)
}

// StatusError is a non-2xx response from a provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Provider, e.StatusCode)
}

// HTTPStatus exposes the status code to the retry classifier.
func (e *StatusError) HTTPStatus() int {
	return e.StatusCode
}

// ErrNotConfigured is returned when no API key is set for the provider.
var ErrNotConfigured = errors.New("llm provider is not configured")

// NewFromProfile builds the configured provider wrapped in a retry policy.
func NewFromProfile(p *profile.Profile) (Provider, error) {
	var base Provider
	switch p.LLMProvider {
	case ProviderOpenRouter:
		if p.OpenRouterAPIKey == "" {
			return nil, errors.Wrap(ErrNotConfigured, "missing openrouter api key")
		}
		base = NewOpenRouter(p.OpenRouterAPIKey, p.AIModel, p.OpenRouterBaseURL)
	case ProviderOpenAI:
		if p.OpenAIAPIKey == "" {
			return nil, errors.Wrap(ErrNotConfigured, "missing openai api key")
		}
		provider, err := NewOpenAI(p.OpenAIAPIKey, p.AIModel, p.OpenAIBaseURL)
		if err != nil {
			return nil, err
		}
		base = provider
	default:
		return nil, errors.Errorf("unsupported llm provider %q", p.LLMProvider)
	}

	return NewResilient(base, Policy{
		MaxRetries:     p.RetriesFor(p.LLMProvider),
		BaseDelay:      p.RetryBaseDelay,
		MaxDelay:       p.RetryMaxDelay,
		AttemptTimeout: p.RequestTimeout,
	}), nil
}

// Resilient runs every call of the wrapped provider under a retry policy.
type Resilient struct {
	provider Provider
	policy   Policy
}

func NewResilient(provider Provider, policy Policy) *Resilient {
	if policy.Name == "" {
		policy.Name = provider.Name()
	}
	return &Resilient{provider: provider, policy: policy}
}

func (r *Resilient) Name() string {
	return r.provider.Name()
}

func (r *Resilient) Complete(ctx context.Context, prompt, systemMessage string) (string, error) {
	start := time.Now()
	text, err := Retry(ctx, r.policy, func(ctx context.Context) (string, error) {
		return r.provider.Complete(ctx, prompt, systemMessage)
	})
	if err != nil {
		return "", err
	}
	r.policy.logger().Debug("llm completion", "provider", r.provider.Name(), "duration", time.Since(start))
	return text, nil
}
