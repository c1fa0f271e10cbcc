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

	"github.com/Jehaaaa/sam-extractor/internal/api"
	"github.com/Jehaaaa/sam-extractor/internal/service"
	"github.com/Jehaaaa/sam-extractor/internal/session"
	"github.com/Jehaaaa/sam-extractor/internal/storage"
	"github.com/Jehaaaa/sam-extractor/internal/web"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	cfg := a.cfg
	logger := a.logger

	// Ensure all data directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	opts, err := service.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}

	scratch, err := storage.NewScratch(cfg.GetTempDir())
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	svc, err := service.New(scratch, opts, logger)
	if err != nil {
		return err
	}

	rows, err := session.NewRowStore(session.RowStoreOptions{
		Path:        cfg.Storage.RowStorePath,
		Threads:     cfg.Advanced.DuckDBThreads,
		MemoryLimit: cfg.Advanced.DuckDBMemoryLimit,
	}, logger)
	if err != nil {
		return err
	}
	runs := session.NewManager(rows, cfg.Processing.MaxRuns, logger)
	defer runs.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start background run cleanup
	go func() {
		ticker := time.NewTicker(cfg.CleanupInterval())
		defer ticker.Stop()
		maxAge := cfg.SessionTimeout()
		for {
			select {
			case <-ticker.C:
				runs.CleanupOldRuns(ctx, maxAge)
			case <-ctx.Done():
				return
			}
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	api.SetupMiddleware(e, api.MiddlewareConfig{
		EnableCORS:     cfg.Server.EnableCORS,
		AllowOrigins:   cfg.Server.AllowOrigins,
		BodyLimit:      cfg.Server.BodyLimit,
		RequestLogging: cfg.Advanced.EnableRequestLogging,
		ShowErrors:     cfg.Advanced.DevelopmentLogging,
	}, logger.Named("http"))

	api.RegisterRoutes(e, api.NewHandlers(&api.Dependencies{
		Runner:      svc,
		Runs:        runs,
		PreviewRows: cfg.Processing.PreviewRows,
		Version:     Version,
		Logger:      logger,
	}))

	// Upload page
	if err := web.RegisterStaticRoutes(e); err != nil {
		logger.Warn("failed to register upload page", zap.Error(err))
	}

	// Configure server with settings from XML config
	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	printBanner(a.configPath, cfg.GetServerAddr(), cfg.GetDataDir())

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.StartServer(s)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func printBanner(configPath, addr, dataDir string) {
	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           SAM Extractor Server                            ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", addr)
	fmt.Printf("║  Data Dir:  %-46s║\n", dataDir)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
}
