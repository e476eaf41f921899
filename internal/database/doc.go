// Package database provides the connection and transaction wrapper over the
// embedded SQLite store used by the dataset repositories.
//
// # Architecture
//
//	database/
//	├── database.go      # Open, DSN, foreign key check, Close
//	├── query.go         # Query, QueryOne, Run, Select, Get, Transaction
//	├── migrate.go       # images / labels / annotations DDL and indices
//	├── errors.go        # SQLite error classification
//	├── images/          # Image repository
//	├── labels/          # Label repository
//	└── annotations/     # Annotation repository
//
// # Using Sub-packages
//
//	db, err := database.Open("./annotator.db", log)
//
//	imagesRepo := images.NewRepository(db)
//	labelsRepo := labels.NewRepository(db)
//
//	err = db.Transaction(ctx, func(tx *database.DB) error {
//	    if _, err := annotations.NewRepository(tx).DeleteForImage(ctx, id); err != nil {
//	        return err
//	    }
//	    _, err := imagesRepo.WithDB(tx).Delete(ctx, id)
//	    return err
//	})
//
// Repositories hold no business rules. Validation, error translation and
// multi-step operations live in internal/dataset.
//
// # Errors
//
// Engine errors are wrapped so callers can test them with errors.Is:
//
//   - ErrUniqueViolation: UNIQUE or PRIMARY KEY constraint
//   - ErrForeignKeyViolation: FOREIGN KEY constraint
//   - ErrCheckViolation: any other constraint (NOT NULL, CHECK)
//   - ErrBusy: SQLITE_BUSY / SQLITE_LOCKED, retryable
package database
