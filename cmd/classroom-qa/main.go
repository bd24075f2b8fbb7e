package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eldridgejm/classroom-qa/internal/auth"
	"github.com/eldridgejm/classroom-qa/internal/classroom"
	"github.com/eldridgejm/classroom-qa/internal/config"
	"github.com/eldridgejm/classroom-qa/internal/events"
	"github.com/eldridgejm/classroom-qa/internal/handler"
	"github.com/eldridgejm/classroom-qa/internal/kv"
	"github.com/eldridgejm/classroom-qa/internal/llm"
	"github.com/eldridgejm/classroom-qa/internal/model"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "classroom-qa",
		Short: "Live classroom polling and Q&A server",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `classroom-qa --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the polling server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "classroom.db", "SQLite store path (empty for in-memory)")
	f.String("courses-file", "courses.toml", "Course table TOML file")
	f.Duration("auth-ttl", 12*time.Hour, "Identity token lifetime")
	f.Duration("ask-ttl", 30*time.Minute, "Student question lifetime")
	f.Duration("ask-window", 10*time.Second, "Per-student ask rate-limit window")
	f.Duration("archive-ttl", 24*time.Hour, "Session archive lifetime")
	f.Int("max-question-len", 1000, "Maximum student question length in characters")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.String("llm-url", "", "OpenAI-compatible API base URL (empty disables escalation summaries)")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export archived sessions as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "classroom.db", "SQLite store path")
	f.String("courses-file", "courses.toml", "Course table TOML file")
	f.String("course", "", "Course slug to export (required)")
	f.String("session-id", "", "Export a single archived session instead of all")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")

	_ = cmd.MarkFlagRequired("course")

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

	v.SetEnvPrefix("CLASSROOMQA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("classroom-qa")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/classroom-qa")
	v.AddConfigPath("/etc/classroom-qa")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// mergeCourseTable folds the courses TOML file into v, under the same
// "courses" key the main config file may carry. The file is optional
// when left at its default (the [courses] table may live in the main
// config file instead), but a path given explicitly must exist.
func mergeCourseTable(cmd *cobra.Command, v *viper.Viper) error {
	path := v.GetString("courses-file")
	if path == "" {
		return nil
	}
	_, statErr := os.Stat(path)
	switch {
	case statErr == nil:
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return fmt.Errorf("read courses file %s: %w", path, err)
		}
		slog.Info("loaded course table", "path", path)
	case cmd.Flags().Changed("courses-file") || os.Getenv("CLASSROOMQA_COURSES_FILE") != "":
		return fmt.Errorf("courses file: %w", statErr)
	}
	return nil
}

func openStore(path string) (kv.Store, error) {
	if path == "" {
		slog.Warn("no database path given, state will not survive a restart")
		return kv.NewMemory(), nil
	}
	return kv.OpenSQLite(path)
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	if err := mergeCourseTable(cmd, v); err != nil {
		return err
	}

	cfg, err := config.FromViper(v)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	store, err := openStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	// Create the LLM client only when an endpoint is configured.
	var summarizer classroom.Summarizer
	if cfg.LLMURL != "" {
		client := llm.New(cfg.LLMURL, cfg.LLMKey, cfg.LLMModel)
		if err := client.Ping(context.Background()); err != nil {
			return fmt.Errorf("LLM health check: %w", err)
		}
		slog.Info("LLM endpoint OK", "url", cfg.LLMURL, "model", cfg.LLMModel)
		summarizer = client
	} else {
		slog.Info("escalation summaries disabled")
	}

	bus := events.NewBus(slog.Default())
	svc := classroom.New(cfg, store, bus, summarizer, slog.Default())
	h := handler.New(svc, auth.New(store, cfg.AuthTTL), bus, store, cfg)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	h.Routes(r)

	// SSE streams block on the request context, so every request
	// derives from a context we can cancel at shutdown.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: r,
		BaseContext: func(net.Listener) context.Context {
			return baseCtx
		},
	}

	go purgeLoop(baseCtx, store)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-shutdownCh
		slog.Info("shutting down")
		cancelBase()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("starting server",
		"addr", cfg.Addr,
		"db", cfg.DBPath,
		"courses", len(cfg.Courses),
		"ask_window", cfg.AskWindow,
		"archive_ttl", cfg.ArchiveTTL,
	)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// purgeLoop reaps expired keys so TTL'd records (rate-limit sentinels,
// asks, archives, tokens) do not accumulate in the store.
func purgeLoop(ctx context.Context, store kv.Store) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.PurgeExpired(ctx)
			if err != nil {
				slog.Warn("purge expired keys", "error", err)
				continue
			}
			if n > 0 {
				slog.Debug("purged expired keys", "count", n)
			}
		}
	}
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	if err := mergeCourseTable(cmd, v); err != nil {
		return err
	}

	cfg, err := config.FromViper(v)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if cfg.DBPath == "" {
		return fmt.Errorf("export requires a database path: set --db")
	}

	store, err := kv.OpenSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	svc := classroom.New(cfg, store, events.NewBus(slog.Default()), nil, slog.Default())
	course := v.GetString("course")
	ctx := context.Background()

	var payload any
	if sessionID := v.GetString("session-id"); sessionID != "" {
		arch, err := svc.Archive(ctx, course, sessionID)
		if err != nil {
			return fmt.Errorf("load archive: %w", err)
		}
		payload = arch
	} else {
		summaries, err := svc.ListArchives(ctx, course)
		if err != nil {
			return fmt.Errorf("list archives: %w", err)
		}
		archives := make([]model.ArchivedSession, 0, len(summaries))
		for _, summary := range summaries {
			arch, err := svc.Archive(ctx, course, summary.SessionID)
			if err != nil {
				return fmt.Errorf("load archive %s: %w", summary.SessionID, err)
			}
			archives = append(archives, arch)
		}
		payload = archives
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
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
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}
