// Package images provides database operations for dataset images.
//
// # Usage
//
//	repo := images.NewRepository(db)
//	img, err := repo.Create(ctx, &entities.Image{Filename: "a.jpg", ...})
//	list, err := repo.FindAllWithLabels(ctx)
package images

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mrlokans/annotator/internal/database"
	"github.com/mrlokans/annotator/internal/entities"
)

const imageColumns = `image_id, filename, original_name, file_path, file_size, mime_type,
	created_by, updated_by, uploaded_at, updated_at`

const selectImages = `SELECT ` + imageColumns + ` FROM images`

// Record and unit separators used inside the aggregated label column.
const (
	pairSep  = "\x1f"
	fieldSep = "\x1e"
)

var updatableColumns = []string{
	"filename", "original_name", "file_path", "file_size", "mime_type", "updated_by", "updated_at",
}

// Repository handles all image database operations.
type Repository struct {
	db *database.DB
}

// NewRepository creates a new images repository.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// WithDB returns a repository bound to db, typically a transaction.
func (r *Repository) WithDB(db *database.DB) *Repository {
	return &Repository{db: db}
}

// FindAll returns every image, newest upload first.
func (r *Repository) FindAll(ctx context.Context) ([]entities.Image, error) {
	images := []entities.Image{}
	err := r.db.Select(ctx, &images, selectImages+` ORDER BY uploaded_at DESC, image_id DESC`)
	return images, err
}

// FindByID returns nil when the image does not exist.
func (r *Repository) FindByID(ctx context.Context, id int64) (*entities.Image, error) {
	return r.findOne(ctx, selectImages+` WHERE image_id = ?`, id)
}

func (r *Repository) FindByFilename(ctx context.Context, filename string) (*entities.Image, error) {
	return r.findOne(ctx, selectImages+` WHERE filename = ?`, filename)
}

func (r *Repository) Exists(ctx context.Context, id int64) (bool, error) {
	n, err := r.db.Count(ctx, `SELECT COUNT(*) FROM images WHERE image_id = ?`, id)
	return n > 0, err
}

// Create inserts img. A non-zero img.ID is stored as the image_id; zero
// timestamps fall back to the column defaults. A duplicate filename yields
// database.ErrUniqueViolation.
func (r *Repository) Create(ctx context.Context, img *entities.Image) (*entities.Image, error) {
	cols := []string{"filename", "original_name", "file_path", "file_size", "mime_type", "created_by", "updated_by"}
	args := []any{img.Filename, img.OriginalName, img.FilePath, img.FileSize, img.MimeType, img.CreatedBy, img.UpdatedBy}

	if img.ID != 0 {
		cols = append(cols, "image_id")
		args = append(args, img.ID)
	}
	if !img.UploadedAt.IsZero() {
		cols = append(cols, "uploaded_at")
		args = append(args, database.Timestamp(img.UploadedAt))
	}
	if !img.UpdatedAt.IsZero() {
		cols = append(cols, "updated_at")
		args = append(args, database.Timestamp(img.UpdatedAt))
	}

	stmt := fmt.Sprintf(`INSERT INTO images (%s) VALUES (%s)`,
		strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))
	res, err := r.db.Run(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("insert image: %w", err)
	}

	created, err := r.FindByID(ctx, res.LastInsertID)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return nil, fmt.Errorf("image %d vanished after insert", res.LastInsertID)
	}
	return created, nil
}

// Update applies patch and reports whether the image exists. Keys must be
// column names; timestamps are passed by the caller.
func (r *Repository) Update(ctx context.Context, id int64, patch map[string]any) (bool, error) {
	stmt, args, err := database.BuildUpdate("images", "image_id", id, patch, updatableColumns)
	if err != nil {
		return false, err
	}
	if stmt == "" {
		return r.Exists(ctx, id)
	}
	res, err := r.db.Run(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("update image: %w", err)
	}
	return res.RowsAffected > 0, nil
}

// Delete removes the image row and returns the number of rows removed.
// Annotations go with it through the foreign key cascade.
func (r *Repository) Delete(ctx context.Context, id int64) (int64, error) {
	res, err := r.db.Run(ctx, `DELETE FROM images WHERE image_id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("delete image: %w", err)
	}
	return res.RowsAffected, nil
}

func (r *Repository) Count(ctx context.Context) (int64, error) {
	return r.db.Count(ctx, `SELECT COUNT(*) FROM images`)
}

type imageLabelsRow struct {
	entities.Image
	LabelPairs *string `gorm:"column:label_pairs"`
}

// FindAllWithLabels returns every image with its label names and
// confidences, newest upload first. Labels keep annotation order.
func (r *Repository) FindAllWithLabels(ctx context.Context) ([]entities.ImageWithLabels, error) {
	var rows []imageLabelsRow
	err := r.db.Select(ctx, &rows, `
		SELECT i.image_id, i.filename, i.original_name, i.file_path, i.file_size, i.mime_type,
		       i.created_by, i.updated_by, i.uploaded_at, i.updated_at,
		       GROUP_CONCAT(
		           a.annotation_id || char(30) || COALESCE(a.confidence, 1.0) || char(30) || l.label_name,
		           char(31)
		       ) AS label_pairs
		FROM images i
		LEFT JOIN annotations a ON a.image_id = i.image_id
		LEFT JOIN labels l ON l.label_id = a.label_id
		GROUP BY i.image_id
		ORDER BY i.uploaded_at DESC, i.image_id DESC
	`)
	if err != nil {
		return nil, err
	}

	out := make([]entities.ImageWithLabels, 0, len(rows))
	for _, row := range rows {
		item := entities.ImageWithLabels{Image: row.Image, Labels: []string{}, Confidences: []float64{}}
		if row.LabelPairs != nil {
			if err := splitPairs(*row.LabelPairs, &item); err != nil {
				return nil, fmt.Errorf("image %d: %w", row.ID, err)
			}
		}
		out = append(out, item)
	}
	return out, nil
}

type labelPair struct {
	annotationID int64
	name         string
	confidence   float64
}

// splitPairs decodes "id RS confidence RS name" entries joined by US. The
// name is last so it may itself contain RS.
func splitPairs(s string, into *entities.ImageWithLabels) error {
	var pairs []labelPair
	for _, raw := range strings.Split(s, pairSep) {
		parts := strings.SplitN(raw, fieldSep, 3)
		if len(parts) != 3 {
			return fmt.Errorf("malformed label pair %q", raw)
		}
		id, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return fmt.Errorf("malformed annotation id %q: %w", parts[0], err)
		}
		c, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return fmt.Errorf("malformed confidence %q: %w", parts[1], err)
		}
		pairs = append(pairs, labelPair{annotationID: id, name: parts[2], confidence: c})
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].annotationID < pairs[j].annotationID })
	for _, p := range pairs {
		into.Labels = append(into.Labels, p.name)
		into.Confidences = append(into.Confidences, p.confidence)
	}
	return nil
}

func (r *Repository) findOne(ctx context.Context, query string, args ...any) (*entities.Image, error) {
	var img entities.Image
	found, err := r.db.Get(ctx, &img, query, args...)
	if err != nil || !found {
		return nil, err
	}
	return &img, nil
}
