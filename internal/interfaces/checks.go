package interfaces

// Compile-time interface implementation checks.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/annotator/internal/auth"
	"github.com/mrlokans/annotator/internal/database"
	"github.com/mrlokans/annotator/internal/dataset"
	"github.com/mrlokans/annotator/internal/http"
	"github.com/mrlokans/annotator/internal/scheduler"
	"github.com/mrlokans/annotator/internal/storage"
	"github.com/mrlokans/annotator/internal/tasks"
)

// =============================================================================
// Business Layer
// =============================================================================

var _ http.Dataset = (*dataset.Service)(nil)
var _ http.OrphanLabelCleaner = (*dataset.Service)(nil)
var _ tasks.Exporter = (*dataset.Service)(nil)
var _ tasks.OrphanLabelCleaner = (*dataset.Service)(nil)

// =============================================================================
// Infrastructure
// =============================================================================

var _ http.Pinger = (*database.DB)(nil)

var _ storage.Store = (*storage.LocalStore)(nil)
var _ storage.Store = (*storage.MinioStore)(nil)

// =============================================================================
// Background Work
// =============================================================================

var _ http.TaskQueue = (*tasks.Client)(nil)
var _ scheduler.Enqueuer = (*tasks.Client)(nil)

// =============================================================================
// Authentication
// =============================================================================

var _ auth.TokenValidator = (*auth.Service)(nil)
var _ auth.UserLoader = (*auth.Service)(nil)
