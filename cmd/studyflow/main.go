package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/studyflow/studyflow/internal/handler"
	appI18n "github.com/studyflow/studyflow/internal/i18n"
	"github.com/studyflow/studyflow/internal/llm"
	"github.com/studyflow/studyflow/internal/model"
	"github.com/studyflow/studyflow/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "studyflow",
		Short: "AI-assisted learning platform backend",
	}

	serve := serveCmd()
	root.AddCommand(serve, importCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `studyflow --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "studyflow.db", "SQLite database path")
	f.String("ai-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("ai-key", "ollama", "API key for the AI endpoint")
	f.String("ai-model", "llama3.2", "AI model name")
	f.StringP("lang", "l", "en", "Default response language (en, ru)")
	f.StringSlice("lessons", nil, "Paths to lesson JSON files to import on startup (repeatable)")
	f.Int("chunk-chars", 0, "Transcript chunk size in characters (0 = default)")
	f.Int("overlap-chars", 0, "Transcript chunk overlap in characters (0 = default)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import lessons from JSON files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImport,
	}
	f := cmd.Flags()
	f.String("db", "studyflow.db", "SQLite database path")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export assessment results as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "studyflow.db", "SQLite database path")
	f.String("assessment-id", "", "Assessment to export (required)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")

	_ = cmd.MarkFlagRequired("assessment-id")

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

	v.SetEnvPrefix("STUDYFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("studyflow")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/studyflow")
	v.AddConfigPath("/etc/studyflow")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if paths := v.GetStringSlice("lessons"); len(paths) > 0 {
		if err := importLessons(db, paths); err != nil {
			return fmt.Errorf("import lessons: %w", err)
		}
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	aiClient := llm.New(
		v.GetString("ai-url"),
		v.GetString("ai-key"),
		v.GetString("ai-model"),
	)
	if err := aiClient.Ping(context.Background()); err != nil {
		return fmt.Errorf("AI health check: %w", err)
	}
	slog.Info("AI endpoint OK", "url", v.GetString("ai-url"), "model", v.GetString("ai-model"))

	cfg := model.ServerConfig{
		Addr:          v.GetString("addr"),
		DBPath:        v.GetString("db"),
		AIBaseURL:     v.GetString("ai-url"),
		AIAPIKey:      v.GetString("ai-key"),
		AIModel:       v.GetString("ai-model"),
		Locale:        lang,
		MaxChunkChars: v.GetInt("chunk-chars"),
		OverlapChars:  v.GetInt("overlap-chars"),
	}

	h, err := handler.New(db, aiClient, cfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	slog.Info("starting server",
		"addr", cfg.Addr,
		"model", cfg.AIModel,
		"ai_url", cfg.AIBaseURL,
		"lang", lang,
	)
	return http.ListenAndServe(cfg.Addr, r)
}

func runImport(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	return importLessons(db, args)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.ExportAssessment(v.GetString("assessment-id"))
	if err != nil {
		return fmt.Errorf("export assessment: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
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

	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}

// lessonImport is the accepted shape of one lesson in an import file. The
// transcript field is stored exactly as it appears.
type lessonImport struct {
	Course     string          `json:"course"`
	Title      string          `json:"title"`
	VideoID    string          `json:"video_id"`
	Transcript json.RawMessage `json:"transcript"`
	Notes      string          `json:"notes"`
}

func importLessons(db *store.Store, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		hash := sha256sum(data)
		imported, err := db.IsImported(hash)
		if err != nil {
			return fmt.Errorf("check import status for %s: %w", path, err)
		}
		if imported {
			slog.Info("lesson file already imported, skipping", "path", path)
			continue
		}

		var lessons []lessonImport
		if err := json.Unmarshal(data, &lessons); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		for _, li := range lessons {
			if li.Title == "" {
				slog.Warn("skipping lesson without title", "path", path)
				continue
			}
			lesson := model.Lesson{
				ID:            uuid.NewString(),
				Course:        li.Course,
				Title:         li.Title,
				VideoID:       li.VideoID,
				RawTranscript: string(li.Transcript),
				Notes:         li.Notes,
			}
			if err := db.CreateLesson(lesson); err != nil {
				return fmt.Errorf("insert lesson from %s: %w", path, err)
			}
		}

		if err := db.MarkImported(hash, path); err != nil {
			return fmt.Errorf("record import for %s: %w", path, err)
		}
		slog.Info("imported lessons", "path", path, "count", len(lessons))
	}

	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
