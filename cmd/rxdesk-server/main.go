package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rxdesk/rxdesk/internal/config"
	"github.com/rxdesk/rxdesk/internal/domain/assembly"
	"github.com/rxdesk/rxdesk/internal/domain/intake"
	"github.com/rxdesk/rxdesk/internal/domain/workflow"
	"github.com/rxdesk/rxdesk/internal/platform/analytics"
	"github.com/rxdesk/rxdesk/internal/platform/blobstore"
	"github.com/rxdesk/rxdesk/internal/platform/export"
	"github.com/rxdesk/rxdesk/internal/platform/middleware"
	"github.com/rxdesk/rxdesk/internal/platform/render"
	"github.com/rxdesk/rxdesk/internal/platform/suggest"
	"github.com/rxdesk/rxdesk/internal/platform/websocket"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "rxdesk-server",
		Short: "Prescription authoring API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(renderCmd())
	rootCmd.AddCommand(vocabularyCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func renderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a saved prescription document",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, _ := cmd.Flags().GetString("in")
			format, _ := cmd.Flags().GetString("format")
			out, _ := cmd.Flags().GetString("out")
			if in == "" {
				return fmt.Errorf("--in is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			f, err := render.ParseFormat(format)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				file, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer file.Close()
				w = file
			}
			return renderFile(cmd.Context(), in, f, renderOptions(cfg), w)
		},
	}
	cmd.Flags().String("in", "", "Path to a document JSON file (as returned by the document endpoint)")
	cmd.Flags().String("format", "html", "Output format: html, markdown or xlsx")
	cmd.Flags().String("out", "", "Output file (defaults to stdout)")
	return cmd
}

func vocabularyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vocabulary",
		Short: "Print the condition and gender vocabularies",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "Conditions:")
			for _, c := range intake.Conditions {
				fmt.Fprintf(w, "  %s\n", c)
			}
			fmt.Fprintln(w, "Genders:")
			for _, g := range intake.Genders {
				fmt.Fprintf(w, "  %s\n", g)
			}
			return nil
		},
	}
}

// renderFile reads a document from path and writes it in format to w. The
// document is re-validated so a hand-edited file cannot produce an empty
// prescription.
func renderFile(ctx context.Context, path string, format render.Format, opts render.Options, w io.Writer) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	var doc assembly.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if len(doc.Medicines) == 0 {
		return fmt.Errorf("document %s has no medicines", path)
	}
	if doc.Doctor.Name == "" {
		return fmt.Errorf("document %s has no doctor", path)
	}
	if doc.IssuedAt.IsZero() {
		doc.IssuedAt = time.Now().UTC()
	}

	r, err := render.New(format, opts)
	if err != nil {
		return err
	}
	artifact, err := r.Render(ctx, &doc)
	if err != nil {
		return fmt.Errorf("render document: %w", err)
	}
	_, err = w.Write(artifact.Body)
	return err
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func renderOptions(cfg *config.Config) render.Options {
	return render.Options{Title: cfg.ClinicName}
}

// newSuggestClient picks the suggestion source for cfg.SuggestMode and wraps
// it with the outbound throttle.
func newSuggestClient(cfg *config.Config) (suggest.Client, error) {
	var client suggest.Client
	switch cfg.SuggestMode {
	case config.SuggestModeStub:
		client = suggest.NewStubClient()
	case config.SuggestModeRemote:
		client = suggest.NewRemoteClient(cfg.SuggestURL, cfg.SuggestTimeout)
	case config.SuggestModeOpenAI:
		client = suggest.NewModelClient(suggest.ModelConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.SuggestTimeout,
		})
	default:
		return nil, fmt.Errorf("unknown suggestion mode %q", cfg.SuggestMode)
	}

	return suggest.NewThrottled(client, throttleConfig(cfg)), nil
}

func throttleConfig(cfg *config.Config) suggest.ThrottleConfig {
	return suggest.ThrottleConfig{
		RPS:         cfg.SuggestRPS,
		Burst:       cfg.SuggestBurst,
		MaxInFlight: cfg.SuggestMaxInFlight,
		MaxFailures: 5,
		Cooldown:    30 * time.Second,
	}
}

func openExportStore(cfg *config.Config) (blobstore.BlobStore, error) {
	switch cfg.ExportStore {
	case config.ExportStoreMemory:
		return blobstore.NewInMemoryBlobStore(), nil
	case config.ExportStoreLevelDB:
		if err := os.MkdirAll(cfg.ExportDir, 0o755); err != nil {
			return nil, fmt.Errorf("create export dir: %w", err)
		}
		store, err := blobstore.OpenLevelDB(cfg.ExportDir)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown export store %q", cfg.ExportStore)
	}
}

// server bundles what runServer has to tear down.
type server struct {
	echo     *echo.Echo
	sessions *workflow.Registry
	hub      *websocket.Hub
	usage    *analytics.UsageTracker
}

func newServer(cfg *config.Config, logger zerolog.Logger, client suggest.Client, store blobstore.BlobStore) *server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	usage := analytics.NewUsageTracker(10000, 1000)
	e.Use(analytics.UsageMiddleware(usage))
	e.Use(middleware.Sanitize(logger))
	e.Use(middleware.SecurityHeaders("/api/v1/exports/"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:  []string{"Content-Type", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader, "Content-Disposition"},
	}))
	e.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           10 * time.Minute,
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout, "/api/v1/ws"))

	opts := renderOptions(cfg)
	hub := websocket.NewHub(logger)
	sessions := workflow.NewRegistry(workflow.Deps{
		Suggest:      client,
		Events:       websocket.Publishers{hub, usage},
		Exporter:     export.NewService(opts, store, logger),
		Logger:       logger,
		FetchTimeout: cfg.SuggestTimeout,
	}, cfg.SessionTTL)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"status":   "ok",
			"version":  version,
			"sessions": sessions.Len(),
			"clients":  hub.ClientCount(),
		})
	})

	// Stateless endpoints kept for existing form clients
	suggest.NewHandler(client, logger).RegisterRoutes(e)
	render.NewHandler(opts, logger).RegisterRoutes(e)

	apiV1 := e.Group("/api/v1")
	workflow.NewHandler(sessions).RegisterRoutes(apiV1)
	blobstore.NewBlobHandler(store).RegisterRoutes(apiV1)
	websocket.NewHandler(hub).RegisterRoutes(apiV1)
	analytics.NewUsageHandler(usage).RegisterRoutes(apiV1)

	return &server{echo: e, sessions: sessions, hub: hub, usage: usage}
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	client, err := newSuggestClient(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure suggestion source")
	}
	store, err := openExportStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open export store")
	}
	defer store.Close()

	srv := newServer(cfg, logger, client, store)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go srv.sessions.Run(sweepCtx, time.Minute)

	logger.Info().
		Str("suggest_mode", cfg.SuggestMode).
		Str("export_store", cfg.ExportStore).
		Dur("session_ttl", cfg.SessionTTL).
		Msg("configured")

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := srv.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.echo.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	srv.sessions.CloseAll()
	logger.Info().Msg("server stopped")
	return nil
}
