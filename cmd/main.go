package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/suteetoe/strategy-service/internal/handler"
	"github.com/suteetoe/strategy-service/internal/middleware"
	"github.com/suteetoe/strategy-service/internal/repository"
	"github.com/suteetoe/strategy-service/internal/session"
	"github.com/suteetoe/strategy-service/internal/suggestion"
	"github.com/suteetoe/strategy-service/pkg/config"
	"github.com/suteetoe/strategy-service/pkg/database"
	"github.com/suteetoe/strategy-service/pkg/jwtutil"
	"github.com/suteetoe/strategy-service/pkg/logger"
	"github.com/suteetoe/strategy-service/pkg/oauth"
	"github.com/suteetoe/strategy-service/prometheus"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	if err := logger.InitLogger(cfg); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	defer log.Sync()
	log.Info("Starting strategy service...", cfg.LogConfig()...)

	// Initialize database
	db, err := database.InitDB(&cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	if err := database.MigrateModels(db, repository.Models()...); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("Failed to get database handle", zap.Error(err))
	}
	log.Info("Database connection established")

	repo := repository.New(db)

	sessions := session.NewRegistry(repository.NewSessionStore(repo, cfg.Session.IdleTimeout), session.RegistryConfig{
		IdleTimeout: cfg.Session.IdleTimeout,
		SignInPath:  cfg.Session.SignInPath,
		InboxSize:   cfg.Session.InboxMaxSize,
		Logger:      log.Named("session"),
	})

	engine, err := suggestion.Load(cfg.Suggestion.RulesPath)
	if err != nil {
		log.Fatal("Failed to load suggestion rules", zap.Error(err))
	}

	jwt := jwtutil.NewJWTUtil(&cfg.JWT)

	deps := handler.Deps{
		ServiceName:   cfg.ServiceName,
		Repo:          repo,
		JWT:           jwt,
		Sessions:      sessions,
		Suggestions:   engine,
		IdleTimeout:   cfg.Session.IdleTimeout,
		SignInPath:    cfg.Session.SignInPath,
		SecureCookies: cfg.Server.Env == "production",
		DB:            sqlDB,
	}
	if cfg.OAuth.Enabled() {
		deps.OAuth = oauth.NewGoogleClient(cfg.OAuth, log.Named("oauth"))
		log.Info("Google sign-in enabled")
	}
	h := handler.New(deps)

	// Initialize Echo framework
	e := echo.New()
	e.HideBanner = true
	e.Validator = middleware.NewRequestValidator()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware())
	e.Use(prometheus.MetricsMiddleware())

	authenticator := middleware.NewAuthenticator(jwt, sessions, cfg.Session.SignInPath)
	h.RegisterRoutes(e, authenticator.Middleware)

	go func() {
		log.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}

	// Monitors stop without ending sessions; a restarted process resumes them.
	sessions.Close()
	if err := database.Close(db); err != nil {
		log.Error("Failed to close database", zap.Error(err))
	}
	log.Info("Server stopped")
}
