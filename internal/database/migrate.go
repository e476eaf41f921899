package database

import (
	"context"
	"fmt"
)

// Table layout is shared with other tools reading the same file, so the
// CREATE statements are kept column-for-column stable. Later additions are
// applied by addColumns.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS images (
		image_id        INTEGER PRIMARY KEY AUTOINCREMENT,
		filename        TEXT NOT NULL UNIQUE,
		original_name   TEXT NOT NULL,
		file_path       TEXT NOT NULL,
		file_size       INTEGER NOT NULL,
		mime_type       TEXT NOT NULL,
		uploaded_at     DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at      DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS labels (
		label_id          INTEGER PRIMARY KEY AUTOINCREMENT,
		label_name        TEXT NOT NULL UNIQUE,
		label_description TEXT,
		created_at        DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS annotations (
		annotation_id INTEGER PRIMARY KEY AUTOINCREMENT,
		image_id      INTEGER NOT NULL REFERENCES images(image_id) ON DELETE CASCADE,
		label_id      INTEGER NOT NULL REFERENCES labels(label_id) ON DELETE CASCADE,
		confidence    REAL DEFAULT 1.0,
		created_at    DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(image_id, label_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_images_filename ON images(filename)`,
	`CREATE INDEX IF NOT EXISTS idx_images_uploaded_at ON images(uploaded_at)`,
	`CREATE INDEX IF NOT EXISTS idx_labels_label_name ON labels(label_name)`,
	`CREATE INDEX IF NOT EXISTS idx_annotations_image_id ON annotations(image_id)`,
	`CREATE INDEX IF NOT EXISTS idx_annotations_label_id ON annotations(label_id)`,
}

type columnAddition struct {
	table, column, definition string
}

// Nullable so rows written by older tools stay valid.
var addColumns = []columnAddition{
	{"images", "created_by", "TEXT"},
	{"images", "updated_by", "TEXT"},
}

// Migrate creates the dataset tables and indices. It is idempotent.
func Migrate(ctx context.Context, db *DB) error {
	return db.Transaction(ctx, func(tx *DB) error {
		for _, stmt := range schemaStatements {
			if _, err := tx.Run(ctx, stmt); err != nil {
				return err
			}
		}
		for _, add := range addColumns {
			exists, err := tx.hasColumn(ctx, add.table, add.column)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", add.table, add.column, add.definition)
			if _, err := tx.Run(ctx, stmt); err != nil {
				return fmt.Errorf("add column %s.%s: %w", add.table, add.column, err)
			}
		}
		return nil
	})
}

func (d *DB) hasColumn(ctx context.Context, table, column string) (bool, error) {
	rows, err := d.Query(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return false, err
	}
	for _, row := range rows {
		if name, _ := row["name"].(string); name == column {
			return true, nil
		}
	}
	return false, nil
}
