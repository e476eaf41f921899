package http

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/annotator/internal/dataset"
	"github.com/mrlokans/annotator/internal/entities"
)

func createTestImage(t *testing.T, env *testEnv, filename string) *entities.Image {
	t.Helper()
	img, err := env.svc.CreateImage(context.Background(), dataset.NewImage{
		Filename: filename, OriginalName: filename, FilePath: filename, FileSize: 1, MimeType: "image/jpeg",
	})
	require.NoError(t, err)
	return img
}

func TestAnnotationsController_Create(t *testing.T) {
	env := setupTestEnv(t)
	img := createTestImage(t, env, "a.jpg")
	path := "/api/images/" + itoa(img.ID) + "/annotations"

	t.Run("by label name with default confidence", func(t *testing.T) {
		w := env.do(t, http.MethodPost, path, map[string]any{"label_name": "cat"})

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Equal(t, 1.0, decode[entities.Annotation](t, w).Confidence)
	})

	t.Run("duplicate pair conflicts", func(t *testing.T) {
		w := env.do(t, http.MethodPost, path, map[string]any{"label_name": "cat"})

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "annotation already exists for this image and label", decode[ErrorResponse](t, w).Error)
	})

	t.Run("by label id", func(t *testing.T) {
		dog, _, err := env.svc.CreateLabel(context.Background(), dataset.NewLabel{Name: "dog"})
		require.NoError(t, err)

		w := env.do(t, http.MethodPost, path, map[string]any{"label_id": dog.ID, "confidence": 0.25})

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Equal(t, 0.25, decode[entities.Annotation](t, w).Confidence)
	})

	t.Run("confidence out of range", func(t *testing.T) {
		w := env.do(t, http.MethodPost, path, map[string]any{"label_name": "bird", "confidence": 1.5})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing image", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/images/999/annotations", map[string]any{"label_name": "cat"})

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("missing label id", func(t *testing.T) {
		w := env.do(t, http.MethodPost, path, map[string]any{"label_id": 999})

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestAnnotationsController_ListUpdateDelete(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	img := createTestImage(t, env, "a.jpg")
	a, err := env.svc.CreateAnnotation(ctx, dataset.NewAnnotation{ImageID: img.ID, LabelName: "cat"})
	require.NoError(t, err)

	w := env.do(t, http.MethodGet, "/api/images/"+itoa(img.ID)+"/annotations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[listOf[entities.AnnotationDetail]](t, w)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "cat", list.Data[0].LabelName)

	w = env.do(t, http.MethodGet, "/api/images/999/annotations", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/annotations/"+itoa(a.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPatch, "/api/annotations/"+itoa(a.ID), map[string]any{"confidence": 0.75})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 0.75, decode[entities.Annotation](t, w).Confidence)

	w = env.do(t, http.MethodPatch, "/api/annotations/"+itoa(a.ID), map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPatch, "/api/annotations/999", map[string]any{"confidence": 0.5})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodDelete, "/api/annotations/"+itoa(a.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodDelete, "/api/annotations/"+itoa(a.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	label, err := env.svc.FindLabelByName(ctx, "cat", false)
	require.NoError(t, err)
	assert.NotNil(t, label, "deleting an annotation keeps its label")
}
