package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/mrlokans/annotator/internal/auth"
	"github.com/mrlokans/annotator/internal/config"
	"github.com/mrlokans/annotator/internal/entities"
	"github.com/mrlokans/annotator/internal/logging"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	log := logging.Component(cfg.Logger, "http")

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logging.GinMiddleware(log))
	if cfg.HTTPMetrics != nil {
		router.Use(cfg.HTTPMetrics.Middleware())
	}

	router.Use(auth.SecurityHeadersMiddleware())

	if len(cfg.CORSAllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSAllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", auth.CSRFTokenHeader},
			ExposeHeaders:    []string{"Content-Length", "Content-Disposition", auth.CSRFTokenHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	localAuth := cfg.AuthConfig.Mode == config.AuthModeLocal && cfg.AuthMiddleware != nil

	// CSRF must run before the session so that the session context
	// survives CSRF's request replacement.
	if localAuth && len(cfg.CSRFSecret) > 0 {
		router.Use(auth.CSRFMiddleware(cfg.CSRFSecret, cfg.AuthConfig.SecureCookies, cfg.AuthService))
	}
	if cfg.SessionManager != nil {
		router.Use(cfg.SessionManager.SessionLoadSave())
	}

	mw := cfg.AuthMiddleware
	if mw == nil {
		mw = auth.NewMiddleware(nil, nil, config.Auth{Mode: config.AuthModeNone})
	}
	router.Use(mw.Handler())
	router.Use(ReadOnly(cfg.ReadOnly))
	write := mw.RequireWrite()

	health := NewHealthController(cfg.Database, cfg.Version)
	router.GET("/health", health.Status)
	router.GET("/ping", Ping)
	if cfg.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	if localAuth && cfg.AuthController != nil {
		cfg.AuthController.RegisterRoutes(router, mw)
	}

	if cfg.Dataset == nil {
		return router
	}

	api := router.Group("/api")

	images := NewImagesController(cfg.Dataset, cfg.Blobs, maxUpload(cfg.MaxUploadBytes), log)
	api.GET("/images", images.ListImages)
	api.POST("/images", write, images.Upload)
	api.POST("/images/metadata", write, images.CreateMetadata)
	api.GET("/images/:id", images.GetImage)
	api.PATCH("/images/:id", write, images.UpdateImage)
	api.DELETE("/images/:id", write, images.DeleteImage)
	api.GET("/images/:id/file", images.ServeFile)

	labels := NewLabelsController(cfg.Dataset, log)
	api.GET("/labels", labels.ListLabels)
	api.GET("/labels/suggest", labels.Suggest)
	api.GET("/labels/lookup", labels.Lookup)
	api.POST("/labels", write, labels.CreateLabel)
	api.GET("/labels/:id", labels.GetLabel)
	api.PATCH("/labels/:id", write, labels.UpdateLabel)
	api.DELETE("/labels/:id", write, labels.DeleteLabel)

	annotations := NewAnnotationsController(cfg.Dataset, log)
	api.GET("/images/:id/annotations", annotations.ListForImage)
	api.POST("/images/:id/annotations", write, annotations.Create)
	api.GET("/annotations/:id", annotations.Get)
	api.PATCH("/annotations/:id", write, annotations.UpdateConfidence)
	api.DELETE("/annotations/:id", write, annotations.Delete)

	ds := NewDatasetController(cfg.Dataset, log)
	api.POST("/dataset/import", write, ds.Import)
	api.GET("/dataset/export", ds.Export)
	api.GET("/dataset/stats", ds.Stats)

	tasksController := NewTasksController(cfg.TaskQueue, cfg.Dataset, log)
	api.POST("/admin/labels/cleanup", mw.RequireRole(entities.UserRoleAdmin), tasksController.CleanupOrphanLabels)
	api.GET("/tasks/:id", tasksController.GetTaskStatus)

	return router
}

func maxUpload(n int64) int64 {
	if n <= 0 {
		return config.DefaultUploadMaxBytes
	}
	return n
}
