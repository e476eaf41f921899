package config

const (
	// DefaultDatabasePath is the default path for the main application database
	DefaultDatabasePath = "./annotator.db"

	// DefaultUploadDir is where the local storage backend keeps uploaded images
	DefaultUploadDir = "./uploads"

	// DefaultUploadMaxBytes caps a single image upload (10 MiB)
	DefaultUploadMaxBytes = 10 << 20

	DefaultImportMaxErrors = 20
)
