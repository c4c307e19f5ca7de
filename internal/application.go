package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rocketscienceinc/tictactoe-rooms-backend/internal/bot"
	"github.com/rocketscienceinc/tictactoe-rooms-backend/internal/config"
	"github.com/rocketscienceinc/tictactoe-rooms-backend/internal/registry"
	"github.com/rocketscienceinc/tictactoe-rooms-backend/internal/repository"
	"github.com/rocketscienceinc/tictactoe-rooms-backend/internal/repository/storage"
	"github.com/rocketscienceinc/tictactoe-rooms-backend/internal/session"
	"github.com/rocketscienceinc/tictactoe-rooms-backend/transport/rest"
	"github.com/rocketscienceinc/tictactoe-rooms-backend/transport/websocket"
)

const (
	shutdownTimeout = 5 * time.Second

	janitorInterval = 10 * time.Minute
	janitorMaxIdle  = time.Hour
)

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	var recorder session.Recorder
	if conf.Redis.Enabled {
		redisStorage, err := storage.New(ctx, conf.Redis.GetRedisAddr())
		if err != nil {
			return fmt.Errorf("could not connect to redis storage: %w", err)
		}

		defer func() {
			if err = redisStorage.Close(); err != nil {
				log.Error("could not close redis storage", "error", err)
			}
		}()

		recorder = repository.NewMatchRepository(redisStorage.Connection)
	}

	rooms := registry.New(logger, recorder)
	go rooms.RunJanitor(ctx.Done(), janitorInterval, janitorMaxIdle)

	botService := bot.New()

	mux := http.NewServeMux()
	rest.NewHandlers(logger, rooms, botService).Register(mux)
	websocket.New(logger, rooms).Register(mux)

	srv := &http.Server{
		Addr:         ":" + conf.HTTPPort,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown: %w", err)
		}

		return nil
	}
}
