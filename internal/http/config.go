package http

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/mrlokans/annotator/internal/auth"
	"github.com/mrlokans/annotator/internal/config"
	"github.com/mrlokans/annotator/internal/metrics"
	"github.com/mrlokans/annotator/internal/storage"
)

// Dataset is everything the API needs from the business layer.
type Dataset interface {
	ImageStore
	LabelStore
	AnnotationStore
	DatasetStore
}

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Dataset  Dataset
	Database Pinger
	Blobs    storage.Store
	Logger   logrus.FieldLogger

	// MaxUploadBytes caps a single image upload.
	MaxUploadBytes int64

	// ReadOnly rejects every write under /api.
	ReadOnly bool

	// Task queue (optional). Leave nil to run maintenance inline.
	TaskQueue TaskQueue

	// Authentication. AuthMiddleware is required in local mode.
	AuthConfig     config.Auth
	AuthService    *auth.Service
	AuthMiddleware *auth.Middleware
	AuthController *auth.Controller
	SessionManager *auth.SessionManager
	CSRFSecret     []byte

	CORSAllowedOrigins []string

	// Metrics (optional)
	HTTPMetrics    *metrics.HTTPMetrics
	MetricsHandler http.Handler

	// Application info
	Version string
}
