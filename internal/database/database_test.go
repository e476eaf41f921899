package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/annotator/internal/logging"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func insertImage(t *testing.T, db *DB, filename string) int64 {
	t.Helper()
	res, err := db.Run(context.Background(),
		`INSERT INTO images (filename, original_name, file_path, file_size, mime_type) VALUES (?, ?, ?, ?, ?)`,
		filename, filename, "uploads/"+filename, 100, "image/png")
	require.NoError(t, err)
	return res.LastInsertID
}

func TestOpen_EnablesForeignKeys(t *testing.T) {
	db := setupTestDB(t)

	row, ok, err := db.QueryOne(context.Background(), "PRAGMA foreign_keys")
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 1, row["foreign_keys"])
}

func TestOpen_MigrationIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")

	db, err := Open(path, logging.Discard())
	require.NoError(t, err)
	insertImage(t, db, "a.jpg")
	require.NoError(t, db.Close())

	db, err = Open(path, logging.Discard())
	require.NoError(t, err)
	defer db.Close()

	n, err := db.Count(context.Background(), "SELECT COUNT(*) FROM images")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMigrate_AddsActorColumnsToExistingTable(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	ok, err := db.hasColumn(ctx, "images", "created_by")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.hasColumn(ctx, "images", "updated_by")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.hasColumn(ctx, "labels", "created_by")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQueryOne_NoRowsIsNotAnError(t *testing.T) {
	db := setupTestDB(t)

	row, ok, err := db.QueryOne(context.Background(), "SELECT * FROM images WHERE image_id = ?", 404)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, row)
}

func TestQuery_ReturnsRows(t *testing.T) {
	db := setupTestDB(t)
	insertImage(t, db, "a.jpg")
	insertImage(t, db, "b.jpg")

	rows, err := db.Query(context.Background(), "SELECT filename FROM images ORDER BY filename")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a.jpg", rows[0]["filename"])
	assert.Equal(t, "b.jpg", rows[1]["filename"])
}

func TestQuery_ReturnsPlainValues(t *testing.T) {
	db := setupTestDB(t)
	id := insertImage(t, db, "a.jpg")

	row, ok, err := db.QueryOne(context.Background(),
		"SELECT image_id, filename, file_size, 0.5 AS half, created_by FROM images WHERE image_id = ?", id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id, row["image_id"])
	assert.Equal(t, "a.jpg", row["filename"])
	assert.IsType(t, int64(0), row["file_size"])
	assert.Equal(t, 0.5, row["half"])
	assert.Nil(t, row["created_by"])

	pragma, ok, err := db.QueryOne(context.Background(), "PRAGMA foreign_keys")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), pragma["foreign_keys"])
}

func TestQuery_MalformedSQL(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.Query(context.Background(), "SELEC nothing")
	assert.Error(t, err)
}

func TestRun_ReportsEffect(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	id := insertImage(t, db, "a.jpg")
	assert.Positive(t, id)

	res, err := db.Run(ctx, "UPDATE images SET original_name = ? WHERE image_id = ?", "renamed", id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.RowsAffected)

	res, err = db.Run(ctx, "DELETE FROM images WHERE image_id = ?", id+100)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.RowsAffected)
}

func TestRun_ClassifiesConstraintErrors(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	insertImage(t, db, "dup.jpg")

	t.Run("unique", func(t *testing.T) {
		_, err := db.Run(ctx,
			`INSERT INTO images (filename, original_name, file_path, file_size, mime_type) VALUES (?, ?, ?, ?, ?)`,
			"dup.jpg", "x", "x", 1, "image/png")
		assert.ErrorIs(t, err, ErrUniqueViolation)
		assert.True(t, IsConstraint(err))
		assert.False(t, IsRetryable(err))
	})

	t.Run("foreign key", func(t *testing.T) {
		_, err := db.Run(ctx, "INSERT INTO annotations (image_id, label_id) VALUES (?, ?)", 999, 999)
		assert.ErrorIs(t, err, ErrForeignKeyViolation)
	})

	t.Run("not null", func(t *testing.T) {
		_, err := db.Run(ctx, "INSERT INTO labels (label_name) VALUES (NULL)")
		assert.ErrorIs(t, err, ErrCheckViolation)
	})
}

func TestCascadeDelete(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	imageID := insertImage(t, db, "a.jpg")
	res, err := db.Run(ctx, "INSERT INTO labels (label_name) VALUES (?)", "cat")
	require.NoError(t, err)
	_, err = db.Run(ctx, "INSERT INTO annotations (image_id, label_id) VALUES (?, ?)", imageID, res.LastInsertID)
	require.NoError(t, err)

	_, err = db.Run(ctx, "DELETE FROM images WHERE image_id = ?", imageID)
	require.NoError(t, err)

	n, err := db.Count(ctx, "SELECT COUNT(*) FROM annotations WHERE image_id = ?", imageID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("commits on success", func(t *testing.T) {
		db := setupTestDB(t)
		err := db.Transaction(ctx, func(tx *DB) error {
			assert.True(t, tx.InTransaction())
			insertImage(t, tx, "a.jpg")
			insertImage(t, tx, "b.jpg")
			return nil
		})
		require.NoError(t, err)

		n, err := db.Count(ctx, "SELECT COUNT(*) FROM images")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("rolls back on error and returns it", func(t *testing.T) {
		db := setupTestDB(t)
		boom := errors.New("boom")
		err := db.Transaction(ctx, func(tx *DB) error {
			insertImage(t, tx, "a.jpg")
			return boom
		})
		assert.ErrorIs(t, err, boom)

		n, err := db.Count(ctx, "SELECT COUNT(*) FROM images")
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("rolls back on panic and re-panics", func(t *testing.T) {
		db := setupTestDB(t)
		assert.Panics(t, func() {
			_ = db.Transaction(ctx, func(tx *DB) error {
				insertImage(t, tx, "a.jpg")
				panic("kaboom")
			})
		})

		n, err := db.Count(ctx, "SELECT COUNT(*) FROM images")
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("rolls back engine errors", func(t *testing.T) {
		db := setupTestDB(t)
		err := db.Transaction(ctx, func(tx *DB) error {
			insertImage(t, tx, "a.jpg")
			_, err := tx.Run(ctx,
				`INSERT INTO images (filename, original_name, file_path, file_size, mime_type) VALUES (?, ?, ?, ?, ?)`,
				"a.jpg", "x", "x", 1, "image/png")
			return err
		})
		assert.ErrorIs(t, err, ErrUniqueViolation)

		n, err := db.Count(ctx, "SELECT COUNT(*) FROM images")
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("nested failure does not undo outer work", func(t *testing.T) {
		db := setupTestDB(t)
		err := db.Transaction(ctx, func(tx *DB) error {
			insertImage(t, tx, "outer.jpg")
			inner := tx.Transaction(ctx, func(inner *DB) error {
				insertImage(t, inner, "inner.jpg")
				return errors.New("inner failed")
			})
			assert.Error(t, inner)
			return nil
		})
		require.NoError(t, err)

		rows, err := db.Query(ctx, "SELECT filename FROM images")
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "outer.jpg", rows[0]["filename"])
	})
}

func TestClose_TransactionBoundHandle(t *testing.T) {
	db := setupTestDB(t)
	err := db.Transaction(context.Background(), func(tx *DB) error {
		return tx.Close()
	})
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "file:./a.db?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", DSN("./a.db"))
	assert.Equal(t, "file:x.db?mode=ro&_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", DSN("file:x.db?mode=ro"))
}
