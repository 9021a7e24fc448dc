package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	"github.com/fotopanel/admin/internal/auth"
	"github.com/fotopanel/admin/internal/config"
	"github.com/fotopanel/admin/internal/db"
	"github.com/fotopanel/admin/internal/gallery"
	"github.com/fotopanel/admin/internal/metrics"
	appMiddleware "github.com/fotopanel/admin/internal/middleware"
	"github.com/fotopanel/admin/internal/panel"
	"github.com/fotopanel/admin/internal/photo"
	"github.com/fotopanel/admin/internal/storage"
	"github.com/fotopanel/admin/internal/upload"
	"github.com/fotopanel/admin/internal/web"

	_ "github.com/fotopanel/admin/docs/swagger"
)

// sessionCleanupInterval is how often stale sessions are purged.
const sessionCleanupInterval = time.Hour

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the admin panel HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := serve(ctx, cfg, log); err != nil {
				log.Error("server stopped with error", zap.Error(err))
				return err
			}
			return nil
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	startCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	pool, err := db.Connect(startCtx, cfg.DatabaseURL, cfg.DBMaxConns, log)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL, log); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}

	store, err := newStorage(startCtx, cfg, log)
	if err != nil {
		return fmt.Errorf("object storage init failed: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(registry)
	if err != nil {
		return err
	}

	views, err := web.NewRenderer()
	if err != nil {
		return err
	}

	// Wire dependencies: repository → service → handler
	authSvc := auth.NewService(auth.NewRepository(pool), cfg.JWTSecret, cfg.SessionTTL, log)
	if cfg.AdminEmail != "" {
		if _, err := authSvc.EnsureAdmin(startCtx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return fmt.Errorf("seed admin account: %w", err)
		}
	}
	authSvc.StartSessionCleanup(ctx, sessionCleanupInterval)

	cookies := auth.NewCookies(cfg.SessionSecret, cfg.SecureCookies, cfg.SessionTTL)
	authHandler := auth.NewHandler(authSvc, cookies, views, m, log)

	photoRepo := photo.NewRepository(pool)
	uploadHandler := upload.NewHandler(
		upload.NewService(store, photoRepo, m, log, cfg.OperationTimeout),
		cfg.UploadMaxBytes, log,
	)
	galleryHandler := gallery.NewHandler(
		gallery.NewService(photoRepo, store, cfg.JWTSecret, m, log, cfg.OperationTimeout),
		views, log,
	)
	panelHandler := panel.NewHandler(views, log)

	handler := newRouter(routes{
		Health: func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if err := pool.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		},
		Metrics: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Swagger: httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")),
		Static:  web.Static(),

		Home:      panel.Home,
		LoginPage: authHandler.LoginPage,
		Login:     authHandler.Login,
		Logout:    authHandler.Logout,
		Panel:     panelHandler.Page,

		GalleryFragment: galleryHandler.Fragment,
		ListPhotos:      galleryHandler.List,
		UploadPhotos:    uploadHandler.Upload,
		RequestDelete:   galleryHandler.RequestDelete,
		DeletePhoto:     galleryHandler.Delete,

		PageGuard: appMiddleware.RequireSession(authSvc, cookies, log, appMiddleware.RedirectToLogin),
		APIGuard:  appMiddleware.RequireSession(authSvc, cookies, log, appMiddleware.Unauthorized),
	}, log, cfg.Port)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		// Uploads stream large bodies; each storage call has its own timeout.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr), zap.String("env", cfg.AppEnv))
		log.Info("swagger UI available", zap.String("url", "http://localhost:"+cfg.Port+"/swagger/"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func newStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.Storage, error) {
	switch cfg.StorageDriver {
	case "s3":
		return storage.NewS3Storage(ctx, storage.S3Options{
			Endpoint:   cfg.StorageEndpoint,
			AccessKey:  cfg.StorageAccessKey,
			SecretKey:  cfg.StorageSecretKey,
			Bucket:     cfg.StorageBucket,
			Region:     cfg.StorageRegion,
			PublicBase: cfg.StoragePublicBase,
		}, log)
	default:
		return storage.NewMinioStorage(ctx, storage.MinioOptions{
			Endpoint:   cfg.StorageEndpoint,
			AccessKey:  cfg.StorageAccessKey,
			SecretKey:  cfg.StorageSecretKey,
			Bucket:     cfg.StorageBucket,
			PublicBase: cfg.StoragePublicBase,
			UseSSL:     cfg.StorageUseSSL,
		}, log)
	}
}
