// Package server assembles the HTTP server: the JSON API, the MCP endpoint
// and the expvar metrics handler.
package server

import (
	"context"
	"expvar"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/procura/procura/internal/cache"
	"github.com/procura/procura/internal/profile"
	"github.com/procura/procura/plugin/archive"
	"github.com/procura/procura/plugin/llm"
	"github.com/procura/procura/plugin/moderation"
	"github.com/procura/procura/plugin/safety"
	"github.com/procura/procura/plugin/vectorstore"
	"github.com/procura/procura/server/agent"
	"github.com/procura/procura/server/auth"
	"github.com/procura/procura/server/commerce"
	apiv1 "github.com/procura/procura/server/router/api/v1"
	mcpserver "github.com/procura/procura/server/router/mcp"
	"github.com/procura/procura/store"
)

const (
	searchCacheSize = 1000
	shutdownTimeout = 10 * time.Second
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	commerce   *commerce.Service
	httpServer *http.Server
}

func NewServer(ctx context.Context, profile *profile.Profile, store *store.Store) (*Server, error) {
	s := &Server{
		Profile: profile,
		Store:   store,
	}

	index, err := newIndex(profile)
	if err != nil {
		return nil, err
	}
	svc, err := commerce.NewService(store, cache.NewMemory(profile.SearchCacheTTL, searchCacheSize), index)
	if err != nil {
		return nil, err
	}
	s.commerce = svc

	provider, err := llm.NewFromProfile(profile)
	if err != nil {
		if !errors.Is(err, llm.ErrNotConfigured) {
			return nil, err
		}
		slog.Warn("no model provider configured, free-text replies fall back to help text", "provider", profile.LLMProvider)
		provider = nil
	}

	var classifier moderation.Classifier
	if profile.ModerationEnabled {
		if profile.OpenAIAPIKey == "" {
			slog.Warn("moderation enabled without an OpenAI API key, gate disabled")
		} else {
			classifier = moderation.NewOpenAIClassifier(profile.OpenAIAPIKey, profile.OpenAIBaseURL)
		}
	}

	var archiver archive.Archiver
	if profile.ArchiveBucket != "" {
		s3, err := archive.NewS3(ctx, archive.S3Config{
			Bucket:          profile.ArchiveBucket,
			Region:          profile.ArchiveRegion,
			Endpoint:        profile.ArchiveEndpoint,
			AccessKeyID:     profile.ArchiveAccessKeyID,
			SecretAccessKey: profile.ArchiveSecretAccessKey,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create transcript archiver")
		}
		archiver = s3
	}

	ag := agent.New(agent.Config{
		Store:      store,
		Commerce:   svc,
		Safety:     safety.NewGate(profile.StrictSafety),
		Moderation: moderation.NewGate(classifier, profile.ModerationEnabled),
		Provider:   provider,
		Archiver:   archiver,
	})
	authenticator := auth.NewAuthenticator(profile.Secret)
	if !authenticator.Enabled() {
		slog.Warn("no secret configured, every caller is anonymous")
	}

	e := echo.New()
	e.Use(middleware.Recover())
	apiv1.NewAPIV1Service(profile, ag, authenticator).RegisterRoutes(e)

	mux := http.NewServeMux()
	mux.Handle("/mcp", mcpserver.NewMCPService(ag, authenticator, profile.Version).Handler())
	mux.Handle("/debug/vars", expvar.Handler())
	mux.Handle("/", e)

	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(profile.Addr, fmt.Sprint(profile.Port)),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func newIndex(profile *profile.Profile) (commerce.Index, error) {
	if !profile.SemanticSearch {
		return nil, nil
	}
	if profile.OpenAIAPIKey == "" {
		slog.Warn("semantic search enabled without an OpenAI API key, index disabled")
		return nil, nil
	}
	embed := vectorstore.NewOpenAICompatEmbedding(openAIBaseURL(profile), profile.OpenAIAPIKey, profile.EmbeddingModel)
	index, err := vectorstore.New(filepath.Join(profile.Data, "vectors"), embed)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open vector index")
	}
	return index, nil
}

func openAIBaseURL(profile *profile.Profile) string {
	if profile.OpenAIBaseURL != "" {
		return profile.OpenAIBaseURL
	}
	return "https://api.openai.com/v1"
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server listening", "addr", s.httpServer.Addr, "mode", s.Profile.Mode, "version", s.Profile.Version)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "failed to serve")
		}
		return nil
	})
	g.Go(func() error {
		n, err := s.commerce.Catalog.Reindex(gctx)
		if err != nil {
			slog.Warn("failed to rebuild semantic index", "error", err)
			return nil
		}
		if n > 0 {
			slog.Info("semantic index rebuilt", "items", n)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return s.Shutdown()
	})
	return g.Wait()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	slog.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "failed to shut down http server")
	}
	return nil
}
