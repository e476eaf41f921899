package http

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mrlokans/annotator/internal/auth"
	"github.com/mrlokans/annotator/internal/dataset"
	"github.com/mrlokans/annotator/internal/logging"
	"github.com/mrlokans/annotator/internal/storage"
)

// multipartOverhead is the slack allowed on top of the file size for the
// multipart envelope.
const multipartOverhead = 64 << 10

type ImagesController struct {
	store    ImageStore
	blobs    storage.Store
	maxBytes int64
	log      logrus.FieldLogger
}

func NewImagesController(store ImageStore, blobs storage.Store, maxBytes int64, log logrus.FieldLogger) *ImagesController {
	return &ImagesController{
		store:    store,
		blobs:    blobs,
		maxBytes: maxBytes,
		log:      logging.Component(log, "http.images"),
	}
}

// ListImages returns every image with its labels
// GET /api/images
func (ic *ImagesController) ListImages(c *gin.Context) {
	list, err := ic.store.ListImages(c.Request.Context())
	if err != nil {
		respondDomainError(c, ic.log, err, "list images")
		return
	}
	c.JSON(http.StatusOK, ListResponse{Data: list, Total: len(list)})
}

// GetImage returns one image with its annotations
// GET /api/images/:id
func (ic *ImagesController) GetImage(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	img, err := ic.store.GetImage(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, ic.log, err, "get image")
		return
	}
	if img == nil {
		respondNotFound(c, "image")
		return
	}
	c.JSON(http.StatusOK, img)
}

// Upload stores a file from the multipart "image" field and records it
// POST /api/images
func (ic *ImagesController) Upload(c *gin.Context) {
	if ic.blobs == nil {
		respondError(c, http.StatusServiceUnavailable, CodeUnsupported, "file storage is not configured")
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, ic.maxBytes+multipartOverhead)
	fh, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ic.respondTooLarge(c)
			return
		}
		respondBadRequest(c, "multipart field \"image\" is required")
		return
	}
	if fh.Size > ic.maxBytes {
		ic.respondTooLarge(c)
		return
	}

	file, err := fh.Open()
	if err != nil {
		respondInternalError(c, ic.log, err, "open upload")
		return
	}
	defer file.Close()

	mimeType, ext, err := sniffImage(file)
	if err != nil {
		respondError(c, http.StatusUnsupportedMediaType, CodeUnsupported, err.Error())
		return
	}

	ctx := c.Request.Context()
	key := uuid.NewString() + ext
	location, err := ic.blobs.Put(ctx, key, file, fh.Size, mimeType)
	if err != nil {
		respondInternalError(c, ic.log, err, "store upload")
		return
	}

	name := originalName(fh)
	if name == "" {
		name = key
	}

	img, err := ic.store.CreateImage(ctx, dataset.NewImage{
		Filename:     key,
		OriginalName: name,
		FilePath:     location,
		FileSize:     fh.Size,
		MimeType:     mimeType,
		Actor:        auth.Actor(c),
	})
	if err != nil {
		if delErr := ic.blobs.Delete(ctx, location); delErr != nil {
			ic.log.WithError(delErr).WithField("location", location).Warn("could not remove orphaned upload")
		}
		respondDomainError(c, ic.log, err, "create image")
		return
	}

	ic.log.WithFields(logrus.Fields{"image_id": img.ID, "size": img.FileSize}).Info("image uploaded")
	respondCreated(c, img)
}

func (ic *ImagesController) respondTooLarge(c *gin.Context) {
	respondError(c, http.StatusRequestEntityTooLarge, CodeTooLarge,
		fmt.Sprintf("image exceeds %d bytes", ic.maxBytes))
}

// sniffImage detects the content type from the leading bytes and rewinds
// the file. Only image/* types are accepted.
func sniffImage(file multipart.File) (mimeType, ext string, err error) {
	detected, err := mimetype.DetectReader(file)
	if err != nil {
		return "", "", fmt.Errorf("could not detect file type")
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", "", fmt.Errorf("could not rewind upload")
	}

	mimeType, _, _ = strings.Cut(detected.String(), ";")
	if !strings.HasPrefix(mimeType, "image/") {
		return "", "", fmt.Errorf("unsupported file type %s, expected an image", mimeType)
	}
	return mimeType, detected.Extension(), nil
}

var (
	invalidFilenameChars = regexp.MustCompile(`[<>:"|?*\x00-\x1f\x7f]`)
	multipleSpaces       = regexp.MustCompile(`\s+`)
)

const maxOriginalNameLen = 255

// originalName keeps the last path element of the client's filename with
// control and reserved characters removed. An empty result makes the
// stored key the original name.
func originalName(fh *multipart.FileHeader) string {
	name := filepath.Base(strings.ReplaceAll(fh.Filename, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	name = invalidFilenameChars.ReplaceAllString(name, "")
	name = strings.TrimSpace(multipleSpaces.ReplaceAllString(name, " "))
	if len(name) > maxOriginalNameLen {
		name = strings.ToValidUTF8(name[:maxOriginalNameLen], "")
	}
	return name
}

// CreateMetadata records an image whose file is stored elsewhere
// POST /api/images/metadata
func (ic *ImagesController) CreateMetadata(c *gin.Context) {
	var req dataset.NewImage
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid JSON body")
		return
	}
	req.Actor = auth.Actor(c)

	img, err := ic.store.CreateImage(c.Request.Context(), req)
	if err != nil {
		respondDomainError(c, ic.log, err, "create image metadata")
		return
	}
	respondCreated(c, img)
}

// UpdateImage changes the supplied metadata fields
// PATCH /api/images/:id
func (ic *ImagesController) UpdateImage(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var patch dataset.ImagePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondBadRequest(c, "invalid JSON body")
		return
	}

	img, err := ic.store.UpdateImage(c.Request.Context(), id, patch, auth.Actor(c))
	if err != nil {
		respondDomainError(c, ic.log, err, "update image")
		return
	}
	if img == nil {
		respondNotFound(c, "image")
		return
	}
	c.JSON(http.StatusOK, img)
}

// DeleteImage removes the image, its annotations and its stored file
// DELETE /api/images/:id
func (ic *ImagesController) DeleteImage(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	img, err := ic.store.GetImage(ctx, id)
	if err != nil {
		respondDomainError(c, ic.log, err, "get image")
		return
	}
	if img == nil {
		respondNotFound(c, "image")
		return
	}

	deleted, err := ic.store.DeleteImage(ctx, id)
	if err != nil {
		respondDomainError(c, ic.log, err, "delete image")
		return
	}
	if !deleted {
		respondNotFound(c, "image")
		return
	}

	if ic.blobs != nil {
		err := ic.blobs.Delete(ctx, img.FilePath)
		if err != nil && !errors.Is(err, storage.ErrForeignLocation) && !errors.Is(err, storage.ErrInvalidKey) {
			ic.log.WithError(err).WithField("image_id", id).Warn("could not remove stored file")
		}
	}

	respondSuccess(c, "image deleted")
}

// ServeFile streams the stored file
// GET /api/images/:id/file
func (ic *ImagesController) ServeFile(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if ic.blobs == nil {
		respondNotFound(c, "file")
		return
	}

	ctx := c.Request.Context()
	img, err := ic.store.GetImage(ctx, id)
	if err != nil {
		respondDomainError(c, ic.log, err, "get image")
		return
	}
	if img == nil {
		respondNotFound(c, "image")
		return
	}

	rc, err := ic.blobs.Open(ctx, img.FilePath)
	switch {
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, storage.ErrForeignLocation),
		errors.Is(err, storage.ErrInvalidKey):
		respondNotFound(c, "file")
		return
	case err != nil:
		respondInternalError(c, ic.log, err, "open stored file")
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, img.FileSize, img.MimeType, rc, map[string]string{
		"Content-Disposition": fmt.Sprintf("inline; filename=%q", img.Filename),
	})
}
