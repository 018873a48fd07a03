package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/postdesk/internal/auth"
	"github.com/postdesk/internal/config"
	"github.com/postdesk/internal/db"
	"github.com/postdesk/internal/handler"
	"github.com/postdesk/internal/logger"
	"github.com/postdesk/internal/router"
	"github.com/postdesk/internal/service"
	"github.com/postdesk/internal/storage"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the admin API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg := config.Load()
	log := logger.Get()

	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	gdb, err := openDatabase(cfg)
	if err != nil {
		return err
	}

	created, err := db.EnsureUser(gdb, cfg.SuperRootUserName, cfg.SuperRootPassword, db.RoleAdmin)
	if err != nil {
		return err
	}
	if created {
		log.Info().Str("username", cfg.SuperRootUserName).Msg("super root user created")
	}

	store, err := openBlobStore(cfg.Storage)
	if err != nil {
		return err
	}

	api := handler.NewAPI(gdb, store, handler.Options{
		Tokens:             auth.NewTokenManager(cfg.SessionSecret, cfg.TokenTTL),
		TagCaseInsensitive: cfg.TagCaseInsensitive,
		TempImageTTL:       cfg.TempImageTTL,
	})

	routerOpts := router.Options{
		SessionSecret: cfg.SessionSecret,
		SecureCookie:  cfg.IsProduction(),
	}
	// 本地存储时由本服务直接提供上传文件
	if local, ok := store.(*storage.LocalStore); ok {
		routerOpts.UploadDir = local.Root()
		routerOpts.UploadURLPath = cfg.Storage.UploadURLPath
	}
	r := router.SetupRouter(api, routerOpts)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TempSweepInterval > 0 {
		sweeper := service.NewTempSweeper(service.NewBlobRelocator(store))
		go sweeper.Run(ctx, cfg.TempSweepInterval, cfg.TempImageTTL)
		log.Info().Dur("interval", cfg.TempSweepInterval).Dur("ttl", cfg.TempImageTTL).Msg("temp image sweeper started")
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Str("storage", cfg.Storage.Driver).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
