package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/procura/procura/internal/profile"
	"github.com/procura/procura/server"
	"github.com/procura/procura/server/auth"
	"github.com/procura/procura/store"
	"github.com/procura/procura/store/db"
)

const version = "0.1.0"

var (
	rootCmd = &cobra.Command{
		Use:   "procura",
		Short: "A conversational procurement assistant: search the catalog, fill a cart and submit purchase requests by chatting.",
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			setupLogger(viper.GetString("mode"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveCmd.RunE(cmd, args)
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and MCP server",
		RunE: func(_ *cobra.Command, _ []string) error {
			instanceProfile, err := loadProfile()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			storeInstance, err := openStore(ctx, instanceProfile)
			if err != nil {
				return err
			}
			defer storeInstance.Close()

			s, err := server.NewServer(ctx, instanceProfile, storeInstance)
			if err != nil {
				return errors.Wrap(err, "failed to create server")
			}
			printGreetings(instanceProfile)
			return s.Start(ctx)
		},
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(_ *cobra.Command, _ []string) error {
			instanceProfile, err := loadProfile()
			if err != nil {
				return err
			}
			storeInstance, err := openStore(context.Background(), instanceProfile)
			if err != nil {
				return err
			}
			defer storeInstance.Close()
			slog.Info("database is up to date", "driver", instanceProfile.Driver)
			return nil
		},
	}

	tokenCmd = &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a bearer token for a user, signed with the configured secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := viper.GetString("secret")
			if secret == "" {
				return errors.New("a secret is required to issue tokens, set --secret or PROCURA_SECRET")
			}
			ttl, err := cmd.Flags().GetDuration("ttl")
			if err != nil {
				return err
			}
			token, err := auth.NewAuthenticator(secret).Issue(args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
)

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 8081)
	viper.SetDefault("llm-provider", "openrouter")
	viper.SetDefault("ai-model", "openai/gpt-4o-mini")

	flags := rootCmd.PersistentFlags()
	flags.String("mode", "dev", `mode of server, can be "prod" or "dev"`)
	flags.String("addr", "", "address of server")
	flags.Int("port", 8081, "port of server")
	flags.String("data", "", "data directory")
	flags.String("driver", "sqlite", "database driver: sqlite, postgres or mysql")
	flags.String("dsn", "", "database source name (aka. DSN)")
	flags.String("secret", "", "secret used to sign and verify bearer tokens")
	flags.String("llm-provider", "openrouter", "completion provider: openrouter or openai")
	flags.String("ai-model", "openai/gpt-4o-mini", "model name sent to the completion provider")
	flags.String("openrouter-api-key", "", "OpenRouter API key")
	flags.String("openrouter-base-url", "", "override of the OpenRouter chat completions URL")
	flags.String("openai-api-key", "", "OpenAI API key, used for completion, moderation and embeddings")
	flags.String("openai-base-url", "", "override of the OpenAI API base URL")
	flags.String("max-retries", "", `retry ceilings per provider, e.g. "openrouter=5,openai=3"`)
	flags.Duration("retry-base-delay", time.Second, "backoff floor between provider retries")
	flags.Duration("retry-max-delay", 30*time.Second, "backoff ceiling between provider retries")
	flags.Duration("request-timeout", 60*time.Second, "timeout of a single provider attempt")
	flags.Bool("moderation", false, "classify incoming messages with the OpenAI moderation endpoint")
	flags.Bool("strict-safety", false, "reject every prompt-injection detection, not only high severity ones")
	flags.Duration("search-cache-ttl", 5*time.Minute, "lifetime of cached catalog searches")
	flags.Bool("semantic-search", false, "fall back to embedding similarity when keyword search finds nothing")
	flags.String("embedding-model", "", "embedding model for semantic search")
	flags.String("archive-bucket", "", "S3 bucket receiving transcripts of finished conversations")
	flags.String("archive-region", "", "region of the archive bucket")
	flags.String("archive-endpoint", "", "S3-compatible endpoint of the archive bucket")
	flags.String("archive-access-key-id", "", "static access key id for the archive bucket")
	flags.String("archive-secret-access-key", "", "static secret access key for the archive bucket")

	if err := viper.BindPFlags(flags); err != nil {
		panic(err)
	}

	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "lifetime of the token")

	viper.SetEnvPrefix("procura")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(serveCmd, migrateCmd, tokenCmd)
}

func loadProfile() (*profile.Profile, error) {
	maxRetries, err := parseMaxRetries(viper.GetString("max-retries"))
	if err != nil {
		return nil, err
	}
	instanceProfile := &profile.Profile{
		Mode:                   viper.GetString("mode"),
		Addr:                   viper.GetString("addr"),
		Port:                   viper.GetInt("port"),
		Data:                   viper.GetString("data"),
		Driver:                 viper.GetString("driver"),
		DSN:                    viper.GetString("dsn"),
		Secret:                 viper.GetString("secret"),
		Version:                version,
		LLMProvider:            viper.GetString("llm-provider"),
		AIModel:                viper.GetString("ai-model"),
		OpenRouterAPIKey:       viper.GetString("openrouter-api-key"),
		OpenRouterBaseURL:      viper.GetString("openrouter-base-url"),
		OpenAIAPIKey:           viper.GetString("openai-api-key"),
		OpenAIBaseURL:          viper.GetString("openai-base-url"),
		MaxRetries:             maxRetries,
		RetryBaseDelay:         viper.GetDuration("retry-base-delay"),
		RetryMaxDelay:          viper.GetDuration("retry-max-delay"),
		RequestTimeout:         viper.GetDuration("request-timeout"),
		ModerationEnabled:      viper.GetBool("moderation"),
		StrictSafety:           viper.GetBool("strict-safety"),
		SearchCacheTTL:         viper.GetDuration("search-cache-ttl"),
		SemanticSearch:         viper.GetBool("semantic-search"),
		EmbeddingModel:         viper.GetString("embedding-model"),
		ArchiveBucket:          viper.GetString("archive-bucket"),
		ArchiveRegion:          viper.GetString("archive-region"),
		ArchiveEndpoint:        viper.GetString("archive-endpoint"),
		ArchiveAccessKeyID:     viper.GetString("archive-access-key-id"),
		ArchiveSecretAccessKey: viper.GetString("archive-secret-access-key"),
	}
	if err := instanceProfile.Validate(); err != nil {
		return nil, err
	}
	return instanceProfile, nil
}

// parseMaxRetries reads "provider=n" pairs separated by commas.
func parseMaxRetries(raw string) (map[string]int, error) {
	result := map[string]int{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, errors.Errorf("invalid max retries entry %q", pair)
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, errors.Wrapf(err, "invalid max retries for %s", name)
		}
		result[strings.TrimSpace(name)] = n
	}
	return result, nil
}

func openStore(ctx context.Context, instanceProfile *profile.Profile) (*store.Store, error) {
	dbDriver, err := db.NewDBDriver(instanceProfile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	storeInstance := store.New(dbDriver, instanceProfile)
	if err := storeInstance.Migrate(ctx); err != nil {
		_ = storeInstance.Close()
		return nil, err
	}
	return storeInstance, nil
}

func setupLogger(mode string) {
	var handler slog.Handler
	if mode == "prod" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	slog.SetDefault(slog.New(handler))
}

func printGreetings(p *profile.Profile) {
	if p.IsDev() {
		fmt.Printf("Development mode is enabled\n")
		fmt.Printf("Database driver: %s, DSN: %s\n", p.Driver, p.DSN)
	}
	fmt.Printf("Procura %s started successfully!\n", p.Version)
	fmt.Printf("Listening on %s:%d (API under /api/v1, MCP under /mcp)\n", p.Addr, p.Port)
}

func main() {
	// A missing .env is fine; the environment and flags still apply.
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
