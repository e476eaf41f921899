package entrypoint

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mrlokans/annotator/internal/auth"
	"github.com/mrlokans/annotator/internal/config"
	"github.com/mrlokans/annotator/internal/database"
	"github.com/mrlokans/annotator/internal/dataset"
	http_controllers "github.com/mrlokans/annotator/internal/http"
	"github.com/mrlokans/annotator/internal/logging"
	"github.com/mrlokans/annotator/internal/metrics"
	"github.com/mrlokans/annotator/internal/scheduler"
	"github.com/mrlokans/annotator/internal/storage"
	"github.com/mrlokans/annotator/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// NewLogger builds the process logger from configuration.
func NewLogger(cfg *config.Config) *logrus.Logger {
	return logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
}

// OpenDataset opens the database and builds the business layer on it.
// The caller closes the returned DB.
func OpenDataset(cfg *config.Config, log logrus.FieldLogger, opts ...dataset.Option) (*database.DB, *dataset.Service, error) {
	db, err := database.Open(cfg.Database.Path, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	opts = append([]dataset.Option{dataset.WithMaxImportErrors(cfg.Import.MaxErrors)}, opts...)
	return db, dataset.NewService(db, log, opts...), nil
}

// Serve runs the HTTP server until ctx is cancelled or SIGINT/SIGTERM
// arrives, then shuts down within the configured timeout.
func Serve(ctx context.Context, router *gin.Engine, cfg *config.Config, log logrus.FieldLogger, onShutdown ShutdownFunc) error {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}
	log.WithField("timeout", timeout).Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop accepting requests first, then drain background work.
	err := srv.Shutdown(shutdownCtx)
	if onShutdown != nil {
		onShutdown(shutdownCtx)
	}
	if err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	log.Info("server exited")
	return nil
}

// Run wires every component from cfg and serves until a termination
// signal.
func Run(ctx context.Context, cfg *config.Config, version string) error {
	logger := NewLogger(cfg)
	log := logging.Component(logger, "entrypoint")
	log.WithField("version", version).Info("starting annotator")

	var reg *metrics.Registry
	var opts []dataset.Option
	if cfg.Metrics.Enabled {
		var err error
		reg, err = metrics.NewRegistry()
		if err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
		opts = append(opts, dataset.WithMetrics(reg.Data))
	}

	db, svc, err := OpenDataset(cfg, logger, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.WithError(err).Error("error closing database")
		}
	}()

	blobs, err := storage.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	log.WithField("backend", cfg.Storage.Backend).Info("storage initialized")

	// Task queue
	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.FromAppConfig(cfg.Tasks), logger)
		if err != nil {
			return fmt.Errorf("failed to initialize task queue: %w", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.WithError(err).Error("error closing task client")
			}
		}()

		taskClient.Register(
			tasks.NewCleanupOrphanLabelsQueue(svc, logger),
			tasks.NewExportSnapshotQueue(svc, cfg.Snapshot.Dir, logger),
		)

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(ctx)
		go taskClient.Start(taskCtx)
	}

	// Snapshot scheduler
	var snapshots *scheduler.SnapshotScheduler
	if cfg.Snapshot.Enabled {
		var queue scheduler.Enqueuer
		if taskClient != nil {
			queue = taskClient
		}
		snapshots = scheduler.NewSnapshotScheduler(cfg.Snapshot.Schedule, cfg.Snapshot.Dir, queue, svc, logger)
		if err := snapshots.Start(ctx); err != nil {
			return fmt.Errorf("failed to start snapshot scheduler: %w", err)
		}
	}

	routerCfg := http_controllers.RouterConfig{
		Dataset:            svc,
		Database:           db,
		Blobs:              blobs,
		Logger:             logger,
		MaxUploadBytes:     cfg.Storage.MaxBytes,
		ReadOnly:           cfg.HTTP.ReadOnly,
		AuthConfig:         cfg.Auth,
		CORSAllowedOrigins: cfg.HTTP.CORSAllowedOrigins,
		Version:            version,
	}
	if taskClient != nil {
		routerCfg.TaskQueue = taskClient
	}
	if reg != nil {
		routerCfg.HTTPMetrics = reg.HTTP
		routerCfg.MetricsHandler = reg.Handler()
	}

	var authController *auth.Controller
	var sessionManager *auth.SessionManager
	if cfg.Auth.Mode == config.AuthModeLocal {
		log.Info("authentication mode: local")

		authService := auth.NewService(db.Gorm(), cfg.Auth, logger)
		if err := authService.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate users: %w", err)
		}

		sqlDB, err := db.Gorm().DB()
		if err != nil {
			return fmt.Errorf("failed to get SQL DB for sessions: %w", err)
		}
		sessionManager, err = auth.NewSessionManager(sqlDB, cfg.Auth)
		if err != nil {
			return fmt.Errorf("failed to initialize session manager: %w", err)
		}

		secret, err := csrfSecret(cfg.Auth, log)
		if err != nil {
			return err
		}

		authMiddleware := auth.NewMiddleware(authService, sessionManager, cfg.Auth)
		authController = auth.NewController(authService, sessionManager, cfg.Auth)

		routerCfg.AuthService = authService
		routerCfg.AuthMiddleware = authMiddleware
		routerCfg.AuthController = authController
		routerCfg.SessionManager = sessionManager
		routerCfg.CSRFSecret = secret

		if hasUsers, err := authService.HasUsers(ctx); err == nil && !hasUsers {
			log.Warn("no users found, POST /setup to create an administrator account")
		}
	} else {
		log.Info("authentication mode: none (no authentication required)")
	}

	router := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		if snapshots != nil {
			snapshots.Stop()
		}
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
		if authController != nil {
			authController.Stop()
		}
		if sessionManager != nil {
			sessionManager.Close()
		}
	}

	return Serve(ctx, router, cfg, log, onShutdown)
}

// csrfSecret decodes AUTH_SESSION_SECRET, accepting hex or raw bytes, or
// generates a process-lifetime secret.
func csrfSecret(cfg config.Auth, log logrus.FieldLogger) ([]byte, error) {
	if cfg.SessionSecret != "" {
		if secret, err := hex.DecodeString(cfg.SessionSecret); err == nil && len(secret) >= 32 {
			return secret, nil
		}
		if len(cfg.SessionSecret) < 32 {
			return nil, fmt.Errorf("AUTH_SESSION_SECRET must be at least 32 bytes")
		}
		return []byte(cfg.SessionSecret), nil
	}

	secret, err := auth.GenerateSessionSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSRF secret: %w", err)
	}
	log.Warn("generated session secret, set AUTH_SESSION_SECRET to keep sessions across restarts")
	return secret, nil
}
