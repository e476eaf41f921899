package http

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/annotator/internal/database"
	"github.com/mrlokans/annotator/internal/dataset"
	"github.com/mrlokans/annotator/internal/logging"
	"github.com/mrlokans/annotator/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// pngBytes starts with the PNG signature, which is all content sniffing
// looks at.
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0}, 64)...)

type testEnv struct {
	db     *database.DB
	svc    *dataset.Service
	blobs  *storage.LocalStore
	router *gin.Engine
}

func setupTestEnv(t *testing.T, mutate ...func(*RouterConfig)) *testEnv {
	t.Helper()
	dir := t.TempDir()

	db, err := database.Open(filepath.Join(dir, "annotator.db"), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	blobs, err := storage.NewLocalStore(filepath.Join(dir, "uploads"))
	require.NoError(t, err)

	svc := dataset.NewService(db, logging.Discard())
	cfg := RouterConfig{
		Dataset:        svc,
		Database:       db,
		Blobs:          blobs,
		Logger:         logging.Discard(),
		MaxUploadBytes: 1 << 20,
		Version:        "test",
	}
	for _, m := range mutate {
		m(&cfg)
	}

	return &testEnv{db: db, svc: svc, blobs: blobs, router: NewRouter(cfg)}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		r = jsonBody(t, body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) upload(t *testing.T, field, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := multipartRequest(t, "/api/images", field, filename, content)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func jsonBody(t *testing.T, body any) io.Reader {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return bytes.NewReader(raw)
}

func multipartRequest(t *testing.T, path, field, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func ptr[T any](v T) *T { return &v }

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
