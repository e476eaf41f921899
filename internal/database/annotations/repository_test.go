package annotations

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/annotator/internal/database"
	"github.com/mrlokans/annotator/internal/logging"
)

type fixture struct {
	repo    *Repository
	db      *database.DB
	imageID int64
	catID   int64
	dogID   int64
}

func setupTestDB(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(filepath.Join(t.TempDir(), "annotations.db"), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	img, err := db.Run(ctx, `INSERT INTO images (filename, original_name, file_path, file_size, mime_type)
		VALUES ('a.jpg', 'a.jpg', 'a.jpg', 1, 'image/jpeg')`)
	require.NoError(t, err)
	cat, err := db.Run(ctx, `INSERT INTO labels (label_name, label_description) VALUES ('cat', 'feline')`)
	require.NoError(t, err)
	dog, err := db.Run(ctx, `INSERT INTO labels (label_name) VALUES ('dog')`)
	require.NoError(t, err)

	return fixture{
		repo:    NewRepository(db),
		db:      db,
		imageID: img.LastInsertID,
		catID:   cat.LastInsertID,
		dogID:   dog.LastInsertID,
	}
}

func TestRepository_Create(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()

	a, err := f.repo.Create(ctx, f.imageID, f.catID, 0.9)
	require.NoError(t, err)
	assert.Positive(t, a.ID)
	assert.InDelta(t, 0.9, a.Confidence, 1e-9)
	assert.False(t, a.CreatedAt.IsZero())

	pair, err := f.repo.FindByPair(ctx, f.imageID, f.catID)
	require.NoError(t, err)
	require.NotNil(t, pair)
	assert.Equal(t, a.ID, pair.ID)

	t.Run("duplicate pair", func(t *testing.T) {
		_, err := f.repo.Create(ctx, f.imageID, f.catID, 0.1)
		assert.ErrorIs(t, err, database.ErrUniqueViolation)

		kept, err := f.repo.FindByID(ctx, a.ID)
		require.NoError(t, err)
		assert.InDelta(t, 0.9, kept.Confidence, 1e-9)
	})

	t.Run("missing endpoint", func(t *testing.T) {
		_, err := f.repo.Create(ctx, f.imageID+50, f.catID, 0.5)
		assert.ErrorIs(t, err, database.ErrForeignKeyViolation)
	})
}

func TestRepository_FindForImage(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()

	_, err := f.repo.Create(ctx, f.imageID, f.catID, 0.9)
	require.NoError(t, err)
	_, err = f.repo.Create(ctx, f.imageID, f.dogID, 0.4)
	require.NoError(t, err)

	details, err := f.repo.FindForImage(ctx, f.imageID)
	require.NoError(t, err)
	require.Len(t, details, 2)
	// Same-second timestamps fall back to id order, newest first.
	assert.Equal(t, "dog", details[0].LabelName)
	assert.Nil(t, details[0].LabelDescription)
	assert.Equal(t, "cat", details[1].LabelName)
	require.NotNil(t, details[1].LabelDescription)
	assert.Equal(t, "feline", *details[1].LabelDescription)

	forLabel, err := f.repo.FindForLabel(ctx, f.dogID)
	require.NoError(t, err)
	assert.Len(t, forLabel, 1)

	all, err := f.repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRepository_UpdateConfidence(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()
	a, err := f.repo.Create(ctx, f.imageID, f.catID, 0.9)
	require.NoError(t, err)

	ok, err := f.repo.UpdateConfidence(ctx, a.ID, 0.3)
	require.NoError(t, err)
	assert.True(t, ok)

	updated, err := f.repo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, updated.Confidence, 1e-9)

	ok, err = f.repo.UpdateConfidence(ctx, a.ID+10, 0.3)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepository_Deletes(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()
	a, err := f.repo.Create(ctx, f.imageID, f.catID, 1)
	require.NoError(t, err)
	_, err = f.repo.Create(ctx, f.imageID, f.dogID, 1)
	require.NoError(t, err)

	n, err := f.repo.Delete(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = f.repo.Delete(ctx, a.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = f.repo.DeleteForLabel(ctx, f.dogID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = f.repo.Create(ctx, f.imageID, f.catID, 1)
	require.NoError(t, err)
	n, err = f.repo.DeleteForImage(ctx, f.imageID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	count, err := f.repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
