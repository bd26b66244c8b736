package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"timecal-service/internal/app"
	"timecal-service/internal/config"
	"timecal-service/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment)
	defer logger.Sync()

	// The pool is owned here: opened at startup, closed at shutdown, and
	// injected into the store.
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to db", zap.Error(err))
	}
	defer pool.Close()

	migrator, err := app.NewMigrator(pool, cfg.MigrationsPath)
	if err != nil {
		logger.Fatal("failed to create migrator", zap.Error(err))
	}
	if err := migrator.Run(ctx); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	migrator.Close()

	var notifier app.Notifier
	if cfg.SMTPAddr != "" {
		notifier = app.NewSMTPNotifier(cfg.SMTPAddr, cfg.SMTPFrom, cfg.SMTPUser, cfg.SMTPPass)
	} else {
		notifier = &app.LogNotifier{Logger: logger}
	}

	var provider app.CalendarProvider
	if google := app.NewGoogleCalendar(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL); google != nil {
		provider = google
	} else {
		logger.Warn("Google Calendar client not configured, reconciler disabled")
	}

	appInstance := &app.App{
		Store:    app.NewDB(pool),
		Calendar: provider,
		Notifier: notifier,
		Logger:   logger,
	}

	if cfg.DigestEnabled {
		digest := app.NewDigest(appInstance)
		if err := digest.Start(); err != nil {
			logger.Fatal("failed to start digest jobs", zap.Error(err))
		}
		defer digest.Stop()
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	// OAuth2 callback (must be before auth middleware)
	router.GET("/oauth2callback", appInstance.GoogleOAuth2CallbackHandler)

	router.Use(app.AuthMiddleware(cfg.JWTSecret, cfg.StaticTokens))

	api := router.Group("/api")
	{
		api.GET("/availability", appInstance.ResolveAvailabilityHandler)

		profiles := api.Group("/profiles")
		{
			profiles.POST("", appInstance.CreateProfileHandler)
			profiles.GET("/:id", appInstance.GetProfileHandler)
			profiles.POST("/:id/availability", appInstance.SetAvailabilityHandler)
			profiles.GET("/:id/availability", appInstance.ListAvailabilityHandler)
			profiles.GET("/:id/bookings", appInstance.ListBookingsHandler)
		}

		bookings := api.Group("/bookings")
		{
			bookings.POST("", appInstance.CreateBookingHandler)
			bookings.POST("/:id/status", appInstance.UpdateStatusHandler)
		}

		calendar := api.Group("/calendar")
		{
			calendar.GET("/connect", appInstance.CalendarConnectHandler)
			calendar.POST("/sync", appInstance.SyncHandler)
		}
	}

	if err := server.Run(ctx, router, cfg.Port); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
	logger.Info("server stopped")
}
