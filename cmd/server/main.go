package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	h "github.com/gorilla/handlers"
	"github.com/pressly/goose/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/stanstork/adscope-api/internal/authz"
	"github.com/stanstork/adscope-api/internal/config"
	"github.com/stanstork/adscope-api/internal/handlers"
	"github.com/stanstork/adscope-api/internal/ingest"
	"github.com/stanstork/adscope-api/internal/metrics"
	"github.com/stanstork/adscope-api/internal/middleware"
	"github.com/stanstork/adscope-api/internal/migration"
	"github.com/stanstork/adscope-api/internal/notification"
	"github.com/stanstork/adscope-api/internal/repository"
	"github.com/stanstork/adscope-api/internal/routes"
	"github.com/stanstork/adscope-api/internal/utils"

	_ "github.com/lib/pq" // PostgreSQL driver
)

type application struct {
	config        *config.Config
	db            *sql.DB
	logger        zerolog.Logger
	registry      *prometheus.Registry
	metrics       *metrics.Metrics
	notifications notification.Service
}

func main() {
	// Set up structured, level-based logging.
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	logger := zerolog.New(consoleWriter).With().Timestamp().Logger()

	log.SetFlags(0)
	log.SetOutput(logger)

	goose.SetLogger(migration.NewGooseAdapter(logger))

	// Load configuration.
	cfg := config.Load()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warn().Str("log_level", cfg.LogLevel).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Initialize database connection.
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to the database")
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	if err := db.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ping database")
	}

	// Run database migrations.
	if err := migration.Migrate(context.Background(), db, logger); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run migrations")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db, "adscope"),
	)

	app := &application{
		config:        cfg,
		db:            db,
		logger:        logger,
		registry:      registry,
		metrics:       metrics.New(registry),
		notifications: newNotificationService(cfg, db, logger),
	}

	// Initialize the HTTP router and middleware.
	router := app.initRouter()
	loggedRouter := middleware.LoggingMiddleware(app.logger)(router)
	corsHandler := h.CORS(
		h.AllowedOrigins(cfg.CORS.AllowedOrigins),
		h.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		h.AllowedHeaders([]string{"Content-Type", "Authorization", authz.HeaderAccountID, authz.HeaderTimestamp, authz.HeaderSignature}),
		h.AllowCredentials(),
	)(loggedRouter)

	// Start the HTTP server and handle graceful shutdown.
	app.startServer(corsHandler)

	logger.Info().Msg("Application terminated.")
}

func newNotificationService(cfg *config.Config, db *sql.DB, logger zerolog.Logger) notification.Service {
	repo := repository.NewNotificationRepository(db)
	if cfg.Email.SMTPHost == "" || len(cfg.Email.AlertRecipients) == 0 {
		return notification.NewService(repo, logger)
	}
	mailer, err := notification.NewSMTPMailer(cfg.Email)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure alert mailer")
	}
	return notification.NewService(repo, logger, notification.NewEmailNotifier(mailer, cfg.Email.AlertRecipients, logger))
}

// initRouter sets up all HTTP handlers and returns the router.
func (app *application) initRouter() http.Handler {
	cipher, err := utils.NewSecretCipher(app.config.SecretKey)
	if err != nil {
		app.logger.Fatal().Err(err).Msg("invalid secret_key")
	}

	// Repositories
	accountRepo := repository.NewAccountRepository(app.db, cipher)
	importRepo := repository.NewImportRepository(app.db)

	coordinator := ingest.NewCoordinator(importRepo, app.notifications, app.metrics, app.logger)
	authenticator := authz.NewAuthenticator(accountRepo)

	return routes.NewRouter(routes.Handlers{
		Health:           handlers.HealthCheck(app.db),
		Auth:             handlers.NewAuthHandler(app.config.JWTSecret, app.logger),
		Ingest:           handlers.NewIngestHandler(coordinator, app.logger),
		Runs:             handlers.NewRunHandler(importRepo, app.logger),
		Notifications:    handlers.NewNotificationHandler(app.notifications, app.logger),
		RequireSignature: authz.RequireSignature(authenticator, app.config.Ingest.MaxBodyBytes, app.metrics, app.logger),
		Metrics:          app.registry,
	})
}

// startServer launches the HTTP server and handles graceful shutdown.
func (app *application) startServer(handler http.Handler) {
	logger := app.logger
	server := &http.Server{
		Addr:              ":" + app.config.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for server errors
	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	// Wait for an interrupt signal or a server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Msgf("Received signal: %s. Shutting down...", sig)
	case err := <-serverErrCh:
		logger.Error().Err(err).Msg("Server error occurred")
	}

	// In-flight chunks finish or roll back before the pool closes.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		logger.Info().Msg("HTTP server shutdown complete.")
	}
}
