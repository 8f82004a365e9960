package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/p-n-ai/dsaquest/internal/ai"
	"github.com/p-n-ai/dsaquest/internal/catalog"
	"github.com/p-n-ai/dsaquest/internal/httpapi"
	"github.com/p-n-ai/dsaquest/internal/identity"
	"github.com/p-n-ai/dsaquest/internal/platform/cache"
	"github.com/p-n-ai/dsaquest/internal/platform/config"
	"github.com/p-n-ai/dsaquest/internal/platform/database"
	"github.com/p-n-ai/dsaquest/internal/platform/logging"
	"github.com/p-n-ai/dsaquest/internal/progress"
	"github.com/p-n-ai/dsaquest/internal/sensei"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.New(os.Stdout, cfg.Log))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	handler, cleanup, err := buildHandler(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// No WriteTimeout: Sensei websocket sessions are long-lived.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// buildHandler connects the configured backends and returns the HTTP handler
// plus a cleanup func that releases them.
func buildHandler(ctx context.Context, cfg *config.Config) (http.Handler, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (http.Handler, func(), error) {
		cleanup()
		return nil, func() {}, err
	}

	readyChecks := map[string]httpapi.ReadyCheck{}

	var db *database.DB
	if cfg.Database.URL != "" {
		var err error
		db, err = database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return fail(fmt.Errorf("connect database: %w", err))
		}
		closers = append(closers, db.Close)
		if err := db.Migrate(ctx); err != nil {
			return fail(fmt.Errorf("migrate database: %w", err))
		}
		readyChecks["database"] = db.HealthCheck
		slog.Info("database connected")
	}

	var c *cache.Cache
	if cfg.Cache.URL != "" {
		var err error
		c, err = cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			return fail(fmt.Errorf("connect cache: %w", err))
		}
		closers = append(closers, func() { _ = c.Close() })
		readyChecks["cache"] = c.HealthCheck
		slog.Info("cache connected")
	}

	cat, err := newCatalog(cfg, db)
	if err != nil {
		return fail(err)
	}

	engine, err := newEngine(cfg, cat, db, c)
	if err != nil {
		return fail(err)
	}

	svc, err := newSensei(cfg, c)
	if err != nil {
		return fail(err)
	}

	auth, err := newAuthenticator(cfg)
	if err != nil {
		return fail(err)
	}

	return httpapi.NewHandler(httpapi.Deps{
		Engine:         engine,
		Sensei:         svc,
		Auth:           auth,
		ReadyChecks:    readyChecks,
		OriginPatterns: cfg.Server.AllowedOrigins,
	}), cleanup, nil
}

func newCatalog(cfg *config.Config, db *database.DB) (catalog.Catalog, error) {
	switch cfg.Catalog.Source {
	case "postgres":
		if db == nil {
			return nil, fmt.Errorf("postgres catalog requires LEARN_DATABASE_URL")
		}
		return catalog.NewPostgresCatalog(db.Pool)
	default:
		loader, err := catalog.NewLoader(cfg.Catalog.Path)
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		return loader, nil
	}
}

func newEngine(cfg *config.Config, cat catalog.Catalog, db *database.DB, c *cache.Cache) (*progress.Engine, error) {
	engineCfg := progress.EngineConfig{
		Catalog:       cat,
		ModuleXP:      cfg.Progress.ModuleXP,
		StrictModules: cfg.Progress.StrictModules,
		AwardRepeats:  cfg.Progress.AwardRepeats,
	}

	if db != nil {
		store, err := progress.NewPostgresStore(db.Pool)
		if err != nil {
			return nil, err
		}
		engineCfg.Store = store
		engineCfg.Events = progress.NewPostgresEventLogger(db.Pool)
	} else {
		slog.Warn("no database configured, progress is kept in memory")
		engineCfg.Store = progress.NewMemoryStore()
	}

	if cfg.Progress.LockBackend == "redis" {
		if c == nil {
			return nil, fmt.Errorf("redis lock backend requires LEARN_CACHE_URL")
		}
		locker, err := progress.NewRedisLocker(c.Client, 0)
		if err != nil {
			return nil, err
		}
		engineCfg.Locker = locker
	}

	if c != nil && cfg.Progress.LeaderboardTTLSec > 0 {
		lb, err := progress.NewRedisLeaderboardCache(c, time.Duration(cfg.Progress.LeaderboardTTLSec)*time.Second)
		if err != nil {
			return nil, err
		}
		engineCfg.LeaderboardCache = lb
	}

	return progress.NewEngine(engineCfg), nil
}

// newSensei returns nil when no AI provider is configured.
func newSensei(cfg *config.Config, c *cache.Cache) (*sensei.Service, error) {
	router := ai.NewRouter()

	if key := cfg.AI.Cohere.APIKey; key != "" {
		p, err := ai.NewCohereProvider(key, ai.WithCohereModel(cfg.AI.Cohere.Model))
		if err != nil {
			return nil, err
		}
		router.Register("cohere", p)
	}
	if key := cfg.AI.OpenAI.APIKey; key != "" {
		router.Register("openai", ai.NewOpenAIProvider(key, ai.WithDefaultModel(cfg.AI.OpenAI.Model)))
	}
	if key := cfg.AI.Anthropic.APIKey; key != "" {
		p, err := ai.NewAnthropicProvider(key, ai.WithAnthropicModel(cfg.AI.Anthropic.Model))
		if err != nil {
			return nil, err
		}
		router.Register("anthropic", p)
	}
	if key := cfg.AI.DeepSeek.APIKey; key != "" {
		router.Register("deepseek", ai.NewDeepSeekProvider(key))
	}
	if key := cfg.AI.OpenRouter.APIKey; key != "" {
		router.Register("openrouter", ai.NewOpenRouterProvider(key, ai.WithDefaultModel(cfg.AI.OpenRouter.Model)))
	}

	if !router.HasProvider() {
		slog.Warn("no AI provider configured, Sensei is disabled")
		return nil, nil
	}
	slog.Info("AI providers registered", "providers", router.Providers())

	limit := int64(cfg.AI.DailyTokenBudget)
	var budget ai.BudgetChecker = ai.NewInMemoryBudget(limit)
	if c != nil {
		rb, err := ai.NewRedisBudget(c.Client, limit)
		if err != nil {
			return nil, err
		}
		budget = rb
	}

	return sensei.New(sensei.Config{Completer: router, Budget: budget})
}

func newAuthenticator(cfg *config.Config) (identity.Authenticator, error) {
	switch cfg.Auth.Mode {
	case "header":
		return identity.HeaderAuthenticator{
			UserHeader:  cfg.Auth.UserHeader,
			NameHeader:  cfg.Auth.NameHeader,
			EmailHeader: cfg.Auth.EmailHeader,
		}, nil
	default:
		return identity.NewJWTAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	}
}
