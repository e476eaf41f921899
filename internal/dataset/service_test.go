package dataset

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/annotator/internal/database"
	"github.com/mrlokans/annotator/internal/logging"
	"github.com/mrlokans/annotator/internal/metrics"
)

func setupTestService(t *testing.T, opts ...Option) (*Service, *database.DB) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "dataset.db"), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewService(db, logging.Discard(), opts...), db
}

func sampleImage(filename string) NewImage {
	return NewImage{
		Filename:     filename,
		OriginalName: "orig-" + filename,
		FilePath:     "uploads/" + filename,
		FileSize:     1024,
		MimeType:     "image/jpeg",
		Actor:        "alice",
	}
}

func ptr[T any](v T) *T { return &v }

func countRows(t *testing.T, db *database.DB, query string, args ...any) int64 {
	t.Helper()
	n, err := db.Count(context.Background(), query, args...)
	require.NoError(t, err)
	return n
}

func TestScenario_LabelImageAnnotation(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	label, created, err := svc.CreateLabel(ctx, NewLabel{Name: "cat"})
	require.NoError(t, err)
	assert.True(t, created)

	img, err := svc.CreateImage(ctx, sampleImage("a.jpg"))
	require.NoError(t, err)

	_, err = svc.CreateAnnotation(ctx, NewAnnotation{ImageID: img.ID, LabelName: "cat", Confidence: ptr(0.9)})
	require.NoError(t, err)

	detail, err := svc.GetImage(ctx, img.ID)
	require.NoError(t, err)
	require.NotNil(t, detail)
	require.Len(t, detail.Annotations, 1)
	assert.Equal(t, "cat", detail.Annotations[0].LabelName)
	assert.Equal(t, label.ID, detail.Annotations[0].LabelID)
	assert.InDelta(t, 0.9, detail.Annotations[0].Confidence, 1e-9)

	list, err := svc.ListImages(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []string{"cat"}, list[0].Labels)
	assert.InDeltaSlice(t, []float64{0.9}, list[0].Confidences, 1e-9)
}

func TestScenario_DuplicateFilename(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()

	_, err := svc.CreateImage(ctx, sampleImage("b.jpg"))
	require.NoError(t, err)

	_, err = svc.CreateImage(ctx, sampleImage("b.jpg"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConstraint)
	assert.EqualError(t, err, "image with this filename already exists")

	assert.Equal(t, int64(1), countRows(t, db, "SELECT COUNT(*) FROM images WHERE filename = ?", "b.jpg"))
}

func TestCreateImage_Validation(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()

	in := sampleImage("c.gif")
	in.MimeType = "text/plain"
	in.FileSize = 0
	_, err := svc.CreateImage(ctx, in)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, []string{"file_size must be greater than 0", `mime_type must start with "image/"`}, verr.Problems)
	assert.Zero(t, countRows(t, db, "SELECT COUNT(*) FROM images"))
}

func TestCreateImage_RecordsActor(t *testing.T) {
	svc, _ := setupTestService(t)

	img, err := svc.CreateImage(context.Background(), sampleImage("d.jpg"))
	require.NoError(t, err)
	require.NotNil(t, img.CreatedBy)
	require.NotNil(t, img.UpdatedBy)
	assert.Equal(t, "alice", *img.CreatedBy)
	assert.Equal(t, "alice", *img.UpdatedBy)
}

func TestUpdateImage(t *testing.T) {
	later := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	svc, _ := setupTestService(t, WithClock(func() time.Time { return later }))
	ctx := context.Background()

	img, err := svc.CreateImage(ctx, sampleImage("e.jpg"))
	require.NoError(t, err)
	_, err = svc.CreateImage(ctx, sampleImage("other.jpg"))
	require.NoError(t, err)

	t.Run("applies patch and stamps updated_at", func(t *testing.T) {
		updated, err := svc.UpdateImage(ctx, img.ID, ImagePatch{OriginalName: ptr("renamed.jpg")}, "bob")
		require.NoError(t, err)
		require.NotNil(t, updated)
		assert.Equal(t, "renamed.jpg", updated.OriginalName)
		assert.Equal(t, "e.jpg", updated.Filename)
		assert.True(t, later.Equal(updated.UpdatedAt), updated.UpdatedAt)
		assert.Equal(t, "bob", *updated.UpdatedBy)
		assert.Equal(t, "alice", *updated.CreatedBy)
	})

	t.Run("missing image returns nil without error", func(t *testing.T) {
		updated, err := svc.UpdateImage(ctx, img.ID+100, ImagePatch{OriginalName: ptr("x")}, "")
		assert.NoError(t, err)
		assert.Nil(t, updated)
	})

	t.Run("partial validation", func(t *testing.T) {
		_, err := svc.UpdateImage(ctx, img.ID, ImagePatch{FileSize: ptr(int64(-1))}, "")
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("duplicate filename", func(t *testing.T) {
		_, err := svc.UpdateImage(ctx, img.ID, ImagePatch{Filename: ptr("other.jpg")}, "")
		assert.ErrorIs(t, err, ErrConstraint)
	})
}

func TestDeleteImage_CascadesAnnotations(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()

	img, err := svc.CreateImage(ctx, sampleImage("f.jpg"))
	require.NoError(t, err)
	for _, name := range []string{"cat", "dog", "bird"} {
		_, err := svc.CreateAnnotation(ctx, NewAnnotation{ImageID: img.ID, LabelName: name})
		require.NoError(t, err)
	}
	assert.Equal(t, int64(3), countRows(t, db, "SELECT COUNT(*) FROM annotations WHERE image_id = ?", img.ID))

	deleted, err := svc.DeleteImage(ctx, img.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Zero(t, countRows(t, db, "SELECT COUNT(*) FROM annotations WHERE image_id = ?", img.ID))
	assert.Equal(t, int64(3), countRows(t, db, "SELECT COUNT(*) FROM labels"))
}

func TestDeleteImage_MissingIsIdempotent(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()
	_, err := svc.CreateImage(ctx, sampleImage("g.jpg"))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		deleted, err := svc.DeleteImage(ctx, 9999)
		require.NoError(t, err)
		assert.False(t, deleted)
	}
	assert.Equal(t, int64(1), countRows(t, db, "SELECT COUNT(*) FROM images"))
}

func TestGetImage_Missing(t *testing.T) {
	svc, _ := setupTestService(t)

	detail, err := svc.GetImage(context.Background(), 1)
	assert.NoError(t, err)
	assert.Nil(t, detail)
}

func TestStats(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	img, err := svc.CreateImage(ctx, sampleImage("h.jpg"))
	require.NoError(t, err)
	_, err = svc.CreateAnnotation(ctx, NewAnnotation{ImageID: img.ID, LabelName: "cat"})
	require.NoError(t, err)
	_, _, err = svc.CreateLabel(ctx, NewLabel{Name: "unused"})
	require.NoError(t, err)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Images)
	assert.Equal(t, int64(2), stats.Labels)
	assert.Equal(t, int64(1), stats.Annotations)
}

func TestService_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.NewDataMetrics(reg)
	require.NoError(t, err)
	svc, _ := setupTestService(t, WithMetrics(m))
	ctx := context.Background()

	_, err = svc.CreateImage(ctx, sampleImage("m.jpg"))
	require.NoError(t, err)
	_, err = svc.CreateImage(ctx, sampleImage("m.jpg"))
	require.Error(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)

	outcomes := map[string]float64{}
	for _, f := range families {
		if f.GetName() != "annotator_data_operations_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			for _, l := range metric.GetLabel() {
				if l.GetName() == "outcome" {
					outcomes[l.GetValue()] += metric.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, 1.0, outcomes[metrics.OutcomeSuccess])
	assert.Equal(t, 1.0, outcomes[metrics.OutcomeConflict])
}

func TestTranslate(t *testing.T) {
	busy := translate(errors.Join(database.ErrBusy, errors.New("locked")))
	assert.ErrorIs(t, busy, ErrBusy)

	fk := translate(database.ErrForeignKeyViolation)
	assert.ErrorIs(t, fk, ErrConstraint)

	other := errors.New("disk on fire")
	assert.Equal(t, other, translate(other))
	assert.NoError(t, translate(nil))
}
