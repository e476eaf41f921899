// Package interfaces holds compile-time checks that the concrete types
// wired in entrypoint satisfy the interfaces their consumers declare.
//
// # Consumers and implementations
//
//   - http.Dataset (internal/http/config.go): the image, label, annotation
//     and dataset stores used by controllers. Implemented by *dataset.Service.
//   - http.Pinger (internal/http/health.go): implemented by *database.DB.
//   - http.TaskQueue (internal/http/tasks.go) and scheduler.Enqueuer:
//     implemented by *tasks.Client over backlite.
//   - tasks.Exporter and tasks.OrphanLabelCleaner: the business operations
//     background tasks run. Implemented by *dataset.Service.
//   - storage.Store (internal/storage/storage.go): image file storage.
//     Implemented by *storage.LocalStore and *storage.MinioStore.
//   - auth.TokenValidator and auth.UserLoader: implemented by *auth.Service.
//
// Consumers declare the narrow interface they need next to the code that
// uses it. This package only imports them together so a missing method
// fails the build.
package interfaces
