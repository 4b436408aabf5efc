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

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/damacus/bucketfs/internal/config"
	"github.com/damacus/bucketfs/internal/filesystem"
	"github.com/damacus/bucketfs/internal/handlers"
	"github.com/damacus/bucketfs/internal/logging"
	customMiddleware "github.com/damacus/bucketfs/internal/middleware"
	"github.com/damacus/bucketfs/internal/provider"
	"github.com/damacus/bucketfs/internal/services"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := newServer(ctx, cfg, log, &services.RealStoreFactory{})
	if err != nil {
		log.Fatal().Err(err).Msg("storage setup failed")
	}

	go func() {
		log.Info().Str("listen", cfg.Listen).Msg("serving")
		if err := e.Start(cfg.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown")
	}
}

// newServer builds the store for cfg.Storage and serves the account root
// below it
func newServer(ctx context.Context, cfg *config.Config, log zerolog.Logger, factory services.StoreFactory) (*echo.Echo, error) {
	p, err := provider.New(ctx, cfg.Storage, factory, provider.StaticRoot(cfg.AccountRoot),
		filesystem.WithLogger(log),
		filesystem.WithPageSize(cfg.PageSize),
		filesystem.WithMoveConcurrency(cfg.MoveConcurrency),
	)
	if err != nil {
		return nil, err
	}
	gw, err := p.Create(ctx, provider.Account{})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("backend", cfg.Storage.Backend).
		Str("bucket", gw.Bucket()).
		Str("root", gw.Root().Key()).
		Msg("gateway ready")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(customMiddleware.RequestLogger(log))
	e.Use(middleware.Recover())
	e.Use(customMiddleware.SecurityHeaders())

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	filesHandler := handlers.NewFilesHandler(gw, log)
	api := e.Group("/api/fs")
	api.GET("/list", filesHandler.List)
	api.GET("/stat", filesHandler.Stat)
	api.GET("/download", filesHandler.Download)
	api.PUT("/upload", filesHandler.Upload)
	api.POST("/append", filesHandler.Append)
	api.POST("/mkdir", filesHandler.Mkdir)
	api.POST("/move", filesHandler.Move)
	api.POST("/touch", filesHandler.Touch)
	api.DELETE("", filesHandler.Delete)

	return e, nil
}
