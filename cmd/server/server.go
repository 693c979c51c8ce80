// @title           Prepd Realtime API
// @version         1.0
// @description     Realtime voice-session API for Prepd mock interviews.
// @description     Manages session lifecycle, ephemeral credentials and media relay to the realtime provider.

// @contact.name   Prepd Team
// @contact.url    https://github.com/prepd-app/prepd-server

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8186
// @BasePath  /v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token from Keycloak

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"prepd-server/services/realtime-api/internal/config"
	"prepd-server/services/realtime-api/internal/domain/session"
	"prepd-server/services/realtime-api/internal/infrastructure/auth"
	"prepd-server/services/realtime-api/internal/infrastructure/feedback"
	"prepd-server/services/realtime-api/internal/infrastructure/logger"
	"prepd-server/services/realtime-api/internal/infrastructure/observability"
	"prepd-server/services/realtime-api/internal/infrastructure/provider"
	"prepd-server/services/realtime-api/internal/infrastructure/registry"
	"prepd-server/services/realtime-api/internal/infrastructure/store"
	"prepd-server/services/realtime-api/internal/interfaces/httpserver"
)

// Application holds the main application components.
type Application struct {
	httpServer *httpserver.HTTPServer
	reaper     *store.Reaper
	log        zerolog.Logger
}

// NewApplication creates a new application instance.
func NewApplication(httpServer *httpserver.HTTPServer, reaper *store.Reaper, log zerolog.Logger) *Application {
	return &Application{
		httpServer: httpServer,
		reaper:     reaper,
		log:        log,
	}
}

// Start runs the application.
func (a *Application) Start(ctx context.Context) error {
	// Start the idle-session reaper
	a.reaper.Start(ctx)

	// Run HTTP server (blocks until context cancelled)
	err := a.httpServer.Run(ctx)

	// Stop the reaper
	a.reaper.Stop()

	return err
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Setup observability
	shutdownTelemetry, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown telemetry")
		}
	}()

	// Initialize auth validator
	authValidator, err := auth.NewValidator(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize auth validator")
	}

	// Initialize provider clients
	providerClient := provider.NewClient(cfg.ProviderBaseURL, cfg.ProviderAPIKey, log)
	channelDialer := provider.NewDialer(cfg.ProviderBaseURL, cfg.ProviderAPIKey, log)

	// Initialize session store
	sessionStore, err := newSessionStore(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize session store")
	}

	// Initialize channel registry
	channelRegistry := registry.New(log)

	// Initialize idle-session reaper
	reaper := store.NewReaper(sessionStore, channelRegistry, cfg.SessionIdleTTL, cfg.SessionReapInterval, log)

	// Initialize feedback generator (optional, keyed)
	var feedbackGen session.FeedbackGenerator
	if g := feedback.New(cfg.FeedbackAPIKey, cfg.FeedbackBaseURL, cfg.FeedbackModel, sessionStore, log); g != nil {
		feedbackGen = g
	}

	// Initialize session service
	sessionService := session.NewService(
		sessionStore,
		channelRegistry,
		channelDialer,
		providerClient,
		providerClient,
		feedbackGen,
		cfg.DefaultModel,
		cfg.WarmupTimeout,
		cfg.TranscriptBaseURL,
		log,
	)

	// Initialize HTTP server
	httpServer := httpserver.New(cfg, log, sessionService, authValidator)

	// Create and start application
	app := NewApplication(httpServer, reaper, log)

	log.Info().
		Str("service", cfg.ServiceName).
		Int("port", cfg.HTTPPort).
		Str("environment", cfg.Environment).
		Str("store_driver", cfg.StoreDriver).
		Msg("starting application")

	if err := app.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("application stopped with error")
	}

	log.Info().Msg("application exited cleanly")
}

func newSessionStore(cfg *config.Config, log zerolog.Logger) (session.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		return store.NewPostgresStore(cfg.DatabaseDSN, log)
	default:
		return store.NewMemoryStore(log), nil
	}
}

func loadEnvFiles() {
	paths := []string{".env", "../.env", "../../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
