// Package labels provides database operations for dataset labels.
//
// This package implements the LabelRepository used by internal/dataset.
//
// # Usage
//
//	repo := labels.NewRepository(db)
//	label, err := repo.FindByName(ctx, "cat")
//	if label == nil {
//	    label, err = repo.Create(ctx, "cat", nil)
//	}
package labels

import (
	"context"
	"fmt"

	"github.com/mrlokans/annotator/internal/database"
	"github.com/mrlokans/annotator/internal/entities"
)

const selectLabels = `SELECT label_id, label_name, label_description, created_at FROM labels`

var updatableColumns = []string{"label_name", "label_description"}

// Repository handles all label database operations.
type Repository struct {
	db *database.DB
}

// NewRepository creates a new labels repository.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// WithDB returns a repository bound to db, typically a transaction.
func (r *Repository) WithDB(db *database.DB) *Repository {
	return &Repository{db: db}
}

// FindAll returns every label ordered by name.
func (r *Repository) FindAll(ctx context.Context) ([]entities.Label, error) {
	labels := []entities.Label{}
	err := r.db.Select(ctx, &labels, selectLabels+` ORDER BY label_name, label_id`)
	return labels, err
}

// FindByID returns nil when the label does not exist.
func (r *Repository) FindByID(ctx context.Context, id int64) (*entities.Label, error) {
	return r.findOne(ctx, selectLabels+` WHERE label_id = ?`, id)
}

// FindByName matches the stored name exactly.
func (r *Repository) FindByName(ctx context.Context, name string) (*entities.Label, error) {
	return r.findOne(ctx, selectLabels+` WHERE label_name = ?`, name)
}

// FindByNameFold matches the name case-insensitively. When several labels
// differ only by case, the oldest wins.
func (r *Repository) FindByNameFold(ctx context.Context, name string) (*entities.Label, error) {
	return r.findOne(ctx, selectLabels+` WHERE label_name = ? COLLATE NOCASE ORDER BY label_id LIMIT 1`, name)
}

// Search finds labels whose name contains query (case-insensitive).
func (r *Repository) Search(ctx context.Context, query string, limit int) ([]entities.Label, error) {
	if limit <= 0 {
		limit = 20
	}
	labels := []entities.Label{}
	pattern := "%" + database.EscapeLike(query) + "%"
	err := r.db.Select(ctx, &labels,
		selectLabels+` WHERE label_name LIKE ? ESCAPE '\' ORDER BY length(label_name), label_name LIMIT ?`,
		pattern, limit)
	return labels, err
}

// Create inserts a label. A duplicate name yields database.ErrUniqueViolation.
func (r *Repository) Create(ctx context.Context, name string, description *string) (*entities.Label, error) {
	res, err := r.db.Run(ctx, `INSERT INTO labels (label_name, label_description) VALUES (?, ?)`, name, description)
	if err != nil {
		return nil, fmt.Errorf("insert label: %w", err)
	}
	label, err := r.FindByID(ctx, res.LastInsertID)
	if err != nil {
		return nil, err
	}
	if label == nil {
		return nil, fmt.Errorf("label %d vanished after insert", res.LastInsertID)
	}
	return label, nil
}

// Update applies patch and reports whether the label exists.
func (r *Repository) Update(ctx context.Context, id int64, patch map[string]any) (bool, error) {
	stmt, args, err := database.BuildUpdate("labels", "label_id", id, patch, updatableColumns)
	if err != nil {
		return false, err
	}
	if stmt == "" {
		n, err := r.db.Count(ctx, `SELECT COUNT(*) FROM labels WHERE label_id = ?`, id)
		return n > 0, err
	}
	res, err := r.db.Run(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("update label: %w", err)
	}
	return res.RowsAffected > 0, nil
}

// Delete removes a label row and returns the number of rows removed.
func (r *Repository) Delete(ctx context.Context, id int64) (int64, error) {
	res, err := r.db.Run(ctx, `DELETE FROM labels WHERE label_id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("delete label: %w", err)
	}
	return res.RowsAffected, nil
}

// DeleteOrphans removes labels that no annotation references.
func (r *Repository) DeleteOrphans(ctx context.Context) (int64, error) {
	res, err := r.db.Run(ctx, `
		DELETE FROM labels
		WHERE label_id NOT IN (SELECT label_id FROM annotations)
	`)
	if err != nil {
		return 0, fmt.Errorf("delete orphan labels: %w", err)
	}
	return res.RowsAffected, nil
}

func (r *Repository) Count(ctx context.Context) (int64, error) {
	return r.db.Count(ctx, `SELECT COUNT(*) FROM labels`)
}

// UsageCounts lists every label with the number of images carrying it,
// most used first.
func (r *Repository) UsageCounts(ctx context.Context) ([]entities.LabelUsage, error) {
	usage := []entities.LabelUsage{}
	err := r.db.Select(ctx, &usage, `
		SELECT l.label_id, l.label_name, l.label_description, l.created_at,
		       COUNT(a.annotation_id) AS image_count
		FROM labels l
		LEFT JOIN annotations a ON a.label_id = l.label_id
		GROUP BY l.label_id
		ORDER BY image_count DESC, l.label_name
	`)
	return usage, err
}

func (r *Repository) findOne(ctx context.Context, query string, args ...any) (*entities.Label, error) {
	var label entities.Label
	found, err := r.db.Get(ctx, &label, query, args...)
	if err != nil || !found {
		return nil, err
	}
	return &label, nil
}
