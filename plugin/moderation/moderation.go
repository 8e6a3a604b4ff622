// Package moderation screens user text with an external content classifier.
package moderation

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/procura/procura/internal/apperr"
)

// Result is a classifier verdict.
type Result struct {
	Flagged    bool
	Categories []string
}

// Classifier labels text across content categories.
type Classifier interface {
	Classify(ctx context.Context, text string) (*Result, error)
}

// Gate runs a Classifier over sanitized text. A disabled gate passes
// everything through; a failing classifier is treated as unflagged.
type Gate struct {
	classifier Classifier
	enabled    bool
}

func NewGate(classifier Classifier, enabled bool) *Gate {
	return &Gate{classifier: classifier, enabled: enabled && classifier != nil}
}

// Enabled reports whether the gate calls its classifier.
func (g *Gate) Enabled() bool {
	return g != nil && g.enabled
}

// Classify returns the verdict for text. Transport and API failures fail
// open: they are logged and reported as unflagged.
func (g *Gate) Classify(ctx context.Context, text string) *Result {
	if !g.Enabled() {
		return &Result{}
	}
	result, err := g.classifier.Classify(ctx, text)
	if err != nil {
		slog.Warn("moderation classifier failed, allowing message", "err", err, "length", len(text))
		return &Result{}
	}
	if result == nil {
		return &Result{}
	}
	return result
}

// Check classifies text and returns a Flagged error when the classifier
// flags it.
func (g *Gate) Check(ctx context.Context, text string) (*Result, error) {
	result := g.Classify(ctx, text)
	if !result.Flagged {
		return result, nil
	}
	slog.Warn("input rejected by moderation", "categories", result.Categories, "length", len(text))
	return result, apperr.Flagged(result.Categories)
}

// OpenAIClassifier calls the OpenAI moderation endpoint.
type OpenAIClassifier struct {
	client *openai.Client
	model  string
}

// NewOpenAIClassifier returns a classifier for apiKey. An empty baseURL uses
// the public OpenAI endpoint.
func NewOpenAIClassifier(apiKey, baseURL string) *OpenAIClassifier {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIClassifier{
		client: openai.NewClientWithConfig(config),
		model:  openai.ModerationTextLatest,
	}
}

func (c *OpenAIClassifier) Classify(ctx context.Context, text string) (*Result, error) {
	resp, err := c.client.Moderations(ctx, openai.ModerationRequest{Input: text, Model: c.model})
	if err != nil {
		return nil, errors.Wrap(err, "failed to call moderation endpoint")
	}
	if len(resp.Results) == 0 {
		return nil, errors.New("moderation response has no results")
	}

	result := &Result{}
	for _, r := range resp.Results {
		if !r.Flagged {
			continue
		}
		result.Flagged = true
		result.Categories = appendUnique(result.Categories, flaggedCategories(r.Categories)...)
	}
	return result, nil
}

const categoryUnspecified = "unspecified"

func flaggedCategories(c openai.ResultCategories) []string {
	var out []string
	for _, f := range []struct {
		name string
		set  bool
	}{
		{"hate", c.Hate},
		{"hate/threatening", c.HateThreatening},
		{"self-harm", c.SelfHarm},
		{"sexual", c.Sexual},
		{"sexual/minors", c.SexualMinors},
		{"violence", c.Violence},
		{"violence/graphic", c.ViolenceGraphic},
	} {
		if f.set {
			out = append(out, f.name)
		}
	}
	// Categories the client does not decode (harassment, self-harm
	// sub-variants) still flag the result.
	if len(out) == 0 {
		out = append(out, categoryUnspecified)
	}
	return out
}

func appendUnique(list []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, existing := range list {
			if existing == v {
				found = true
				break
			}
		}
		if !found {
			list = append(list, v)
		}
	}
	return list
}
