package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/isdelr/bidhall/internal/api"
	"github.com/isdelr/bidhall/internal/auth"
	"github.com/isdelr/bidhall/internal/config"
	"github.com/isdelr/bidhall/internal/database"
	"github.com/isdelr/bidhall/internal/logger"
	"github.com/isdelr/bidhall/internal/monitoring"
	"github.com/isdelr/bidhall/internal/services"
	"github.com/isdelr/bidhall/internal/websocket"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.Init(cfg.LogLevel, !cfg.IsProduction())

	// Set up database
	db, err := database.New(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DatabaseDriver).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := database.Migrate(context.Background(), db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	// Set up auction rooms
	hub := websocket.NewHub(cfg.WSWriteTimeout)

	// Set up services
	userService := services.NewUserService(db)
	auctionService := services.NewAuctionService(db)
	bidService := services.NewBidService(db, auctionService, hub)
	tokens := auth.NewManager(cfg.JWTSecret, cfg.TokenTTL, userService)

	// Set up and run the background auction closer
	closer, err := monitoring.NewCloser(bidService, cfg.CloseSweepSpec)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up auction closer")
	}
	closer.Run()

	// Set up router
	router := api.NewRouter(api.RouterConfig{
		AllowedOrigins:   cfg.AllowedOrigins,
		RoomsRequireAuth: cfg.RoomsRequireAuth,
		SecureCookies:    cfg.IsProduction(),
	}, hub, tokens, userService, auctionService, bidService)

	// Set up server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("driver", db.Driver()).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	closer.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Room connections are hijacked and not tracked by Shutdown.
	hub.CloseAll()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")
}
