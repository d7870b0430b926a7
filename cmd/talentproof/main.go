package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/talentproof/internal/evaluator"
	"github.com/pavelanni/talentproof/internal/event"
	"github.com/pavelanni/talentproof/internal/generator"
	"github.com/pavelanni/talentproof/internal/handler"
	appI18n "github.com/pavelanni/talentproof/internal/i18n"
	"github.com/pavelanni/talentproof/internal/llm"
	"github.com/pavelanni/talentproof/internal/llm/prompts"
	"github.com/pavelanni/talentproof/internal/metrics"
	"github.com/pavelanni/talentproof/internal/model"
	"github.com/pavelanni/talentproof/internal/session"
	"github.com/pavelanni/talentproof/internal/store"
	"github.com/pavelanni/talentproof/internal/topics"
)

// backendVersion is reported by /health and stored in the ledger metadata.
const backendVersion = "3.0.0"

const shutdownTimeout = 10 * time.Second

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "talentproof",
		Short: "Quiz backend with behavior-based cheating detection",
	}

	serve := serveCmd()
	root.AddCommand(serve, topicsCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `talentproof --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP quiz server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringP("lang", "l", "en", "Default language for client messages (en, ru)")
	f.IntP("num-questions", "n", 0, "Questions per session (0 = topic default)")
	f.Duration("session-ttl", 30*time.Minute, "Idle lifetime of a session (0 = never expire)")
	f.Int("max-sessions", 10000, "Maximum stored sessions; the oldest is evicted (0 = unbounded)")
	f.Duration("cleanup-interval", 5*time.Minute, "How often expired sessions are removed")
	f.Bool("seed-per-user", false, "Derive question randomness from the user id")
	f.String("verifier", "length", "Answer verifier (length, option, llm)")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.String("prompt-variant", string(prompts.Standard), "LLM verification prompt variant (strict, standard, lenient)")
	f.String("db", store.MemoryDSN, "SQLite path for the results ledger")
	f.String("amqp-url", "", "AMQP broker URL for quiz events (empty = disabled)")
	f.String("amqp-exchange", "talentproof.events", "AMQP topic exchange for quiz events")
	f.StringSlice("cors-origins", []string{"*"}, "Allowed CORS origins")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func topicsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topics",
		Short: "List quiz topics and their passing thresholds",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printTopics(cmd.OutOrStdout(), topics.Default())
		},
	}
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the results ledger as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "talentproof.db", "SQLite database path")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("TALENTPROOF")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("talentproof")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/talentproof")
	v.AddConfigPath("/etc/talentproof")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func serviceConfig(v *viper.Viper) model.ServiceConfig {
	return model.ServiceConfig{
		Version:         backendVersion,
		Lang:            v.GetString("lang"),
		NumQuestions:    v.GetInt("num-questions"),
		SessionTTL:      v.GetDuration("session-ttl"),
		MaxSessions:     v.GetInt("max-sessions"),
		CleanupInterval: v.GetDuration("cleanup-interval"),
		SeedPerUser:     v.GetBool("seed-per-user"),
		Verifier:        strings.ToLower(strings.TrimSpace(v.GetString("verifier"))),
		PromptVariant:   strings.ToLower(strings.TrimSpace(v.GetString("prompt-variant"))),
		CORSOrigins:     v.GetStringSlice("cors-origins"),
	}
}

// newVerifier builds the answer verifier named in cfg.
func newVerifier(ctx context.Context, v *viper.Viper, cfg model.ServiceConfig) (evaluator.Verifier, error) {
	switch cfg.Verifier {
	case "", "length":
		return evaluator.LengthVerifier{}, nil
	case "option":
		return evaluator.OptionVerifier{}, nil
	case "llm":
		variant := cfg.PromptVariant
		if !prompts.IsValidVariant(variant) {
			slog.Warn("invalid prompt-variant, using standard", "variant", variant)
			variant = string(prompts.Standard)
		}
		set, err := prompts.Embedded()
		if err != nil {
			return nil, fmt.Errorf("load prompts: %w", err)
		}
		client := llm.New(v.GetString("llm-url"), v.GetString("llm-key"), v.GetString("llm-model"), set, prompts.Variant(variant))
		if err := client.Ping(ctx); err != nil {
			return nil, fmt.Errorf("LLM health check: %w", err)
		}
		slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))
		return client, nil
	default:
		return nil, fmt.Errorf("unknown verifier %q (want length, option or llm)", cfg.Verifier)
	}
}

func newPublisher(v *viper.Viper) (event.Publisher, error) {
	url := v.GetString("amqp-url")
	if url == "" {
		slog.Debug("event publishing disabled")
		return event.NopPublisher{}, nil
	}
	p, err := event.DialAMQP(url, v.GetString("amqp-exchange"))
	if err != nil {
		return nil, err
	}
	slog.Info("publishing events", "exchange", v.GetString("amqp-exchange"))
	return p, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	cfg := serviceConfig(v)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := appI18n.Init(cfg.Lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	for key, value := range map[string]string{
		store.KeyBackendVersion: backendVersion,
		store.KeyVerifier:       cfg.Verifier,
		store.KeyStartedAt:      time.Now().UTC().Format(time.RFC3339),
	} {
		if err := db.SetMetadata(key, value); err != nil {
			return fmt.Errorf("set metadata %s: %w", key, err)
		}
	}

	verifier, err := newVerifier(ctx, v, cfg)
	if err != nil {
		return err
	}

	publisher, err := newPublisher(v)
	if err != nil {
		return fmt.Errorf("create event publisher: %w", err)
	}
	defer publisher.Close()

	registry := topics.Default()
	sessions := session.New(generator.New(cfg.SeedPerUser), session.Options{
		TTL:         cfg.SessionTTL,
		MaxSessions: cfg.MaxSessions,
	})

	h, err := handler.New(handler.Deps{
		Sessions:  sessions,
		Topics:    registry,
		Evaluator: evaluator.New(sessions, registry, verifier),
		Results:   db,
		Events:    publisher,
		Metrics:   metrics.New(sessions.Len),
		Config:    cfg,
	})
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Accept-Language", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(appI18n.Middleware)
	h.Routes(r)

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("starting server",
		"addr", addr,
		"version", backendVersion,
		"lang", cfg.Lang,
		"num_questions", cfg.NumQuestions,
		"session_ttl", cfg.SessionTTL,
		"max_sessions", cfg.MaxSessions,
		"seed_per_user", cfg.SeedPerUser,
		"verifier", cfg.Verifier,
		"db", v.GetString("db"),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return sessions.Run(gctx, cfg.CleanupInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func printTopics(w io.Writer, registry *topics.Registry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TOPIC\tPASSING SCORE\tQUESTIONS\tEXPECTED TIME")
	for _, name := range registry.Names() {
		cfg, _ := registry.Lookup(model.Topic(name))
		fmt.Fprintf(tw, "%s\t%.0f%%\t%d\t%ds\n",
			name, cfg.PassingScore*100, registry.QuestionCount(cfg.Name), cfg.ExpectedTime)
	}
	return tw.Flush()
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	dsn := v.GetString("db")
	if dsn == "" || dsn == store.MemoryDSN {
		return errors.New("export needs a database file; an in-memory ledger is always empty")
	}
	db, err := store.New(dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.ExportAll()
	if err != nil {
		return fmt.Errorf("export results: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = cmd.OutOrStdout()
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)

	slog.Info("exported results", "count", export.Count)
	return nil
}
