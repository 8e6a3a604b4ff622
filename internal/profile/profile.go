package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the server.
type Profile struct {
	// Mode can be "prod" or "dev".
	Mode string
	// Addr is the binding address for the server.
	Addr string
	// Port is the binding port for the server.
	Port int
	// Data is the data directory (sqlite file, vector index).
	Data string
	// Driver is the database driver: sqlite, postgres or mysql.
	Driver string
	// DSN points to where the database is stored.
	DSN string
	// Secret signs and verifies bearer tokens.
	Secret string
	// Version is the current version of the server.
	Version string

	// LLMProvider selects the completion provider: openrouter or openai.
	LLMProvider string
	// AIModel is the model name sent to the provider.
	AIModel string
	// OpenRouterAPIKey authenticates against OpenRouter.
	OpenRouterAPIKey string
	// OpenRouterBaseURL overrides the chat-completions endpoint.
	OpenRouterBaseURL string
	// OpenAIAPIKey authenticates against OpenAI (completion and moderation).
	OpenAIAPIKey string
	// OpenAIBaseURL overrides the OpenAI API base URL.
	OpenAIBaseURL string
	// MaxRetries maps a provider name to its retry ceiling.
	MaxRetries map[string]int
	// RetryBaseDelay is the backoff floor.
	RetryBaseDelay time.Duration
	// RetryMaxDelay is the backoff ceiling.
	RetryMaxDelay time.Duration
	// RequestTimeout bounds a single provider attempt.
	RequestTimeout time.Duration

	// ModerationEnabled turns on the external moderation gate.
	ModerationEnabled bool
	// StrictSafety rejects any safety detection, not only high severity.
	StrictSafety bool

	// SearchCacheTTL is how long catalog search results stay cached.
	SearchCacheTTL time.Duration
	// SemanticSearch enables the vector index fallback for catalog search.
	SemanticSearch bool
	// EmbeddingModel is the OpenAI-compatible embedding model for the index.
	EmbeddingModel string

	// ArchiveBucket receives transcripts of closed conversations when set.
	ArchiveBucket string
	// ArchiveRegion is the region of ArchiveBucket.
	ArchiveRegion string
	// ArchiveEndpoint points at an S3-compatible service instead of AWS.
	ArchiveEndpoint string
	// ArchiveAccessKeyID and ArchiveSecretAccessKey are static credentials.
	// When empty the default AWS credential chain is used.
	ArchiveAccessKeyID     string
	ArchiveSecretAccessKey string
}

// Default retry ceilings. OpenRouter fronts many upstreams and fails more often.
var defaultMaxRetries = map[string]int{
	"openrouter": 5,
	"openai":     3,
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// RetriesFor returns the retry ceiling configured for provider.
func (p *Profile) RetriesFor(provider string) int {
	if n, ok := p.MaxRetries[provider]; ok {
		return n
	}
	if n, ok := defaultMaxRetries[provider]; ok {
		return n
	}
	return 3
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		absDir, err := filepath.Abs(dataDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

// Validate fills defaults and rejects unsupported settings.
func (p *Profile) Validate() error {
	if p.Mode != "prod" && p.Mode != "dev" && p.Mode != "demo" {
		p.Mode = "dev"
	}
	switch p.Driver {
	case "sqlite", "postgres", "mysql":
	case "":
		p.Driver = "sqlite"
	default:
		return errors.Errorf("unsupported driver %q", p.Driver)
	}
	switch p.LLMProvider {
	case "openrouter", "openai":
	case "":
		p.LLMProvider = "openrouter"
	default:
		return errors.Errorf("unsupported llm provider %q", p.LLMProvider)
	}
	if p.RetryBaseDelay <= 0 {
		p.RetryBaseDelay = time.Second
	}
	if p.RetryMaxDelay <= 0 {
		p.RetryMaxDelay = 30 * time.Second
	}
	if p.RetryMaxDelay < p.RetryBaseDelay {
		return errors.Errorf("retry max delay %s is below base delay %s", p.RetryMaxDelay, p.RetryBaseDelay)
	}
	if p.RequestTimeout <= 0 {
		p.RequestTimeout = 60 * time.Second
	}
	if p.SearchCacheTTL <= 0 {
		p.SearchCacheTTL = 5 * time.Minute
	}
	if p.SemanticSearch && p.EmbeddingModel == "" {
		p.EmbeddingModel = "text-embedding-3-small"
	}
	for name, n := range p.MaxRetries {
		if n < 0 {
			return errors.Errorf("max retries for %s must not be negative", name)
		}
	}

	if p.Data == "" {
		p.Data = "."
	}
	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		return err
	}
	p.Data = dataDir
	if p.Driver == "sqlite" && p.DSN == "" {
		p.DSN = filepath.Join(dataDir, fmt.Sprintf("procura_%s.db", p.Mode))
	}
	return nil
}
