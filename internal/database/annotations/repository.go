// Package annotations provides database operations for the image/label
// junction table.
//
// # Usage
//
//	repo := annotations.NewRepository(db)
//	a, err := repo.Create(ctx, imageID, labelID, 0.9)
//	details, err := repo.FindForImage(ctx, imageID)
package annotations

import (
	"context"
	"fmt"

	"github.com/mrlokans/annotator/internal/database"
	"github.com/mrlokans/annotator/internal/entities"
)

const selectAnnotations = `SELECT annotation_id, image_id, label_id, confidence, created_at FROM annotations`

// Repository handles all annotation database operations.
type Repository struct {
	db *database.DB
}

// NewRepository creates a new annotations repository.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// WithDB returns a repository bound to db, typically a transaction.
func (r *Repository) WithDB(db *database.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindAll(ctx context.Context) ([]entities.Annotation, error) {
	out := []entities.Annotation{}
	err := r.db.Select(ctx, &out, selectAnnotations+` ORDER BY created_at DESC, annotation_id DESC`)
	return out, err
}

// FindByID returns nil when the annotation does not exist.
func (r *Repository) FindByID(ctx context.Context, id int64) (*entities.Annotation, error) {
	return r.findOne(ctx, selectAnnotations+` WHERE annotation_id = ?`, id)
}

// FindByPair returns the annotation linking imageID and labelID, or nil.
func (r *Repository) FindByPair(ctx context.Context, imageID, labelID int64) (*entities.Annotation, error) {
	return r.findOne(ctx, selectAnnotations+` WHERE image_id = ? AND label_id = ?`, imageID, labelID)
}

// FindForImage returns the image's annotations joined with their labels,
// newest first.
func (r *Repository) FindForImage(ctx context.Context, imageID int64) ([]entities.AnnotationDetail, error) {
	out := []entities.AnnotationDetail{}
	err := r.db.Select(ctx, &out, `
		SELECT a.annotation_id, a.image_id, a.label_id, a.confidence, a.created_at,
		       l.label_name, l.label_description
		FROM annotations a
		JOIN labels l ON l.label_id = a.label_id
		WHERE a.image_id = ?
		ORDER BY a.created_at DESC, a.annotation_id DESC
	`, imageID)
	return out, err
}

func (r *Repository) FindForLabel(ctx context.Context, labelID int64) ([]entities.Annotation, error) {
	out := []entities.Annotation{}
	err := r.db.Select(ctx, &out,
		selectAnnotations+` WHERE label_id = ? ORDER BY created_at DESC, annotation_id DESC`, labelID)
	return out, err
}

// Create inserts an annotation. A duplicate (image, label) pair yields
// database.ErrUniqueViolation, a missing endpoint
// database.ErrForeignKeyViolation.
func (r *Repository) Create(ctx context.Context, imageID, labelID int64, confidence float64) (*entities.Annotation, error) {
	res, err := r.db.Run(ctx,
		`INSERT INTO annotations (image_id, label_id, confidence) VALUES (?, ?, ?)`,
		imageID, labelID, confidence)
	if err != nil {
		return nil, fmt.Errorf("insert annotation: %w", err)
	}
	created, err := r.FindByID(ctx, res.LastInsertID)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return nil, fmt.Errorf("annotation %d vanished after insert", res.LastInsertID)
	}
	return created, nil
}

// UpdateConfidence reports whether the annotation exists.
func (r *Repository) UpdateConfidence(ctx context.Context, id int64, confidence float64) (bool, error) {
	res, err := r.db.Run(ctx, `UPDATE annotations SET confidence = ? WHERE annotation_id = ?`, confidence, id)
	if err != nil {
		return false, fmt.Errorf("update annotation: %w", err)
	}
	return res.RowsAffected > 0, nil
}

func (r *Repository) Delete(ctx context.Context, id int64) (int64, error) {
	return r.deleteWhere(ctx, "annotation_id", id)
}

func (r *Repository) DeleteForImage(ctx context.Context, imageID int64) (int64, error) {
	return r.deleteWhere(ctx, "image_id", imageID)
}

func (r *Repository) DeleteForLabel(ctx context.Context, labelID int64) (int64, error) {
	return r.deleteWhere(ctx, "label_id", labelID)
}

func (r *Repository) Count(ctx context.Context) (int64, error) {
	return r.db.Count(ctx, `SELECT COUNT(*) FROM annotations`)
}

func (r *Repository) deleteWhere(ctx context.Context, column string, id int64) (int64, error) {
	res, err := r.db.Run(ctx, `DELETE FROM annotations WHERE `+column+` = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("delete annotations by %s: %w", column, err)
	}
	return res.RowsAffected, nil
}

func (r *Repository) findOne(ctx context.Context, query string, args ...any) (*entities.Annotation, error) {
	var a entities.Annotation
	found, err := r.db.Get(ctx, &a, query, args...)
	if err != nil || !found {
		return nil, err
	}
	return &a, nil
}
