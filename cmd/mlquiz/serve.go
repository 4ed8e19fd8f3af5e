package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/mlquiz/internal/account"
	"github.com/pavelanni/mlquiz/internal/auth"
	"github.com/pavelanni/mlquiz/internal/evaluator"
	"github.com/pavelanni/mlquiz/internal/handler"
	appI18n "github.com/pavelanni/mlquiz/internal/i18n"
	"github.com/pavelanni/mlquiz/internal/model"
	"github.com/pavelanni/mlquiz/internal/scoring"
	"github.com/pavelanni/mlquiz/internal/throttle"
)

const (
	providerOpenAI = "openai"
	providerGemini = "gemini"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP quiz server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	addCommonFlags(f)
	f.StringP("addr", "a", ":5000", "HTTP listen address")
	f.String("llm-provider", providerOpenAI, "Grading backend (openai, gemini)")
	f.String("llm-url", "https://api.groq.com/openai/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "", "API key for the grading model")
	f.String("llm-model", "llama-3.3-70b-versatile", "Grading model name")
	f.Duration("llm-timeout", scoring.DefaultTimeout, "Per-answer grading timeout")
	f.Int("score-concurrency", evaluator.DefaultConcurrency, "Answers graded in parallel per submission")
	f.String("jwt-secret", "", "Secret for signing bearer tokens (required)")
	f.Duration("token-ttl", auth.DefaultTTL, "Bearer token lifetime")
	f.StringSlice("cors-origins", []string{"http://localhost:5173"}, "Allowed browser origins")
	f.String("redis-addr", "", "Redis address for shared login throttling (in-memory when empty)")
	f.Int("login-max-attempts", 5, "Failed logins allowed per username within the window")
	f.Duration("login-window", 15*time.Minute, "Window for counting failed logins")
	f.String("admin-password", "", "Create the administrator with this password if missing (or set MLQUIZ_ADMIN_PASSWORD)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	secret := v.GetString("jwt-secret")
	if secret == "" {
		return errors.New("jwt secret is required: set --jwt-secret flag or MLQUIZ_JWT_SECRET env var")
	}
	tokens, err := auth.NewTokens(secret, v.GetDuration("token-ttl"))
	if err != nil {
		return fmt.Errorf("create token service: %w", err)
	}

	db, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer db.Close()

	bank, err := loadBank(v)
	if err != nil {
		return err
	}
	if err := checkBankFingerprint(ctx, db, bank); err != nil {
		return err
	}

	accounts := account.New(db, v.GetString("admin-username"))
	if err := seedAdmin(ctx, accounts, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	registered, err := db.AccountCount(ctx)
	if err != nil {
		return fmt.Errorf("count accounts: %w", err)
	}

	completer, closeCompleter, err := newCompleter(ctx, v)
	if err != nil {
		return err
	}
	defer closeCompleter()
	if p, ok := completer.(scoring.Pinger); ok {
		// Grading falls back to a neutral score when the model is down,
		// so an unreachable endpoint is not fatal.
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := p.Ping(pingCtx); err != nil {
			slog.Warn("LLM health check failed", "provider", v.GetString("llm-provider"), "error", err)
		} else {
			slog.Info("LLM endpoint OK", "provider", v.GetString("llm-provider"), "model", v.GetString("llm-model"))
		}
		cancel()
	}
	scorer := scoring.NewScorer(completer, v.GetDuration("llm-timeout"))
	eval := evaluator.New(bank, scorer, db, v.GetInt("score-concurrency"))

	limiter, closeLimiter, err := newLimiter(ctx, v)
	if err != nil {
		return err
	}
	defer closeLimiter()

	h, err := handler.New(handler.Deps{
		Store:     db,
		Accounts:  accounts,
		Evaluator: eval,
		Bank:      bank,
		Tokens:    tokens,
		Limiter:   limiter,
	}, model.ServerConfig{
		LoginWindow: v.GetDuration("login-window"),
		Grader:      v.GetString("llm-model"),
	})
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   v.GetStringSlice("cors-origins"),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Language", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	h.Routes(r)

	addr := v.GetString("addr")
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", addr,
			"db_driver", v.GetString("db-driver"),
			"provider", v.GetString("llm-provider"),
			"model", v.GetString("llm-model"),
			"questions", bank.Len(),
			"accounts", registered,
			"lang", lang,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
		slog.Info("shutting down server")
	}

	// Submit handlers return only after grading and saving, so Shutdown
	// must outlast the slowest possible submission before the database closes.
	grace := shutdownGrace(eval, v.GetDuration("llm-timeout"))
	slog.Info("waiting for in-flight requests", "grace", grace)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

const shutdownMargin = 5 * time.Second

// shutdownGrace is the worst-case time to grade and save one submission.
func shutdownGrace(eval *evaluator.Evaluator, timeout time.Duration) time.Duration {
	if timeout <= 0 {
		timeout = scoring.DefaultTimeout
	}
	return time.Duration(eval.Waves())*timeout + shutdownMargin
}

// newCompleter builds the grading backend selected by llm-provider.
func newCompleter(ctx context.Context, v *viper.Viper) (scoring.Completer, func(), error) {
	switch provider := v.GetString("llm-provider"); provider {
	case providerOpenAI:
		return scoring.NewOpenAI(v.GetString("llm-url"), v.GetString("llm-key"), v.GetString("llm-model")), func() {}, nil
	case providerGemini:
		g, err := scoring.NewGemini(ctx, v.GetString("llm-key"), v.GetString("llm-model"))
		if err != nil {
			return nil, nil, fmt.Errorf("create gemini client: %w", err)
		}
		return g, func() { _ = g.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown llm provider %q", provider)
	}
}

// newLimiter returns a Redis-backed login limiter when redis-addr is set,
// an in-process one otherwise.
func newLimiter(ctx context.Context, v *viper.Viper) (throttle.Limiter, func(), error) {
	maxAttempts := v.GetInt("login-max-attempts")
	window := v.GetDuration("login-window")

	addr := v.GetString("redis-addr")
	if addr == "" {
		return throttle.NewMemory(maxAttempts, window), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	slog.Info("using redis for login throttling", "addr", addr)
	return throttle.NewRedis(client, maxAttempts, window), func() { _ = client.Close() }, nil
}
