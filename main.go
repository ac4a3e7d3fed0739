package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"curalink/auth"
	"curalink/config"
	"curalink/database"
	"curalink/handlers"
	"curalink/notify"
	"curalink/routes"
	"curalink/scheduler"
	"curalink/storage"
	"curalink/websocket"
)

func newLogger(release bool) (*zap.Logger, error) {
	if release {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func connectWithRetry(cfg *config.Config, logger *zap.Logger) error {
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		if err = database.Connect(cfg.MongoURI, cfg.MongoDB); err == nil {
			return nil
		}
		logger.Warn("MongoDB connection attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		if attempt < 3 {
			time.Sleep(2 * time.Second)
		}
	}
	return err
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := newLogger(cfg.Release())
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()

	if cfg.Release() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := auth.Init(cfg.JWTSecret, cfg.TokenTTL); err != nil {
		logger.Fatal("JWT setup failed", zap.Error(err))
	}

	if err := connectWithRetry(cfg, logger); err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer database.Disconnect()
	logger.Info("MongoDB connected", zap.String("database", cfg.MongoDB))

	idxCtx, idxCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.EnsureIndexes(idxCtx); err != nil {
		logger.Fatal("Index creation failed", zap.Error(err))
	}
	idxCancel()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := websocket.NewManager(logger.Named("ws"))
	go hub.Start(ctx)

	handlers.SetLogger(logger)
	handlers.SetWebSocketManager(hub)
	handlers.SetGoogleOAuth(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)

	pusher := notify.NewPusher(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubject, logger.Named("push"))
	if !pusher.Enabled() {
		logger.Warn("Push notifications disabled, run cmd/vapidkeys and set VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY")
	}
	handlers.SetPusher(pusher)

	uploader, err := storage.New(ctx, cfg)
	switch {
	case errors.Is(err, storage.ErrDisabled):
		logger.Info("Avatar uploads disabled", zap.String("backend", cfg.StorageBackend))
	case err != nil:
		logger.Fatal("Storage setup failed", zap.Error(err))
	default:
		handlers.SetUploader(uploader)
		logger.Info("Avatar storage ready", zap.String("backend", cfg.StorageBackend))
	}

	sweeper, err := scheduler.Start(cfg.OrphanSweepSchedule, logger.Named("sweeper"))
	if err != nil {
		logger.Fatal("Scheduler setup failed", zap.Error(err))
	}

	router := routes.SetupRouter(cfg, logger, hub)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if sweeper != nil {
		<-sweeper.Stop().Done()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Forced shutdown", zap.Error(err))
	}
	logger.Info("Server stopped")
}
