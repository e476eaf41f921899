package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mrlokans/annotator/internal/dataset"
	"github.com/mrlokans/annotator/internal/logging"
)

type AnnotationsController struct {
	store AnnotationStore
	log   logrus.FieldLogger
}

func NewAnnotationsController(store AnnotationStore, log logrus.FieldLogger) *AnnotationsController {
	return &AnnotationsController{store: store, log: logging.Component(log, "http.annotations")}
}

type createAnnotationRequest struct {
	LabelID    int64    `json:"label_id"`
	LabelName  string   `json:"label_name"`
	Confidence *float64 `json:"confidence"`
}

// ListForImage returns the annotations of one image with label names
// GET /api/images/:id/annotations
func (ac *AnnotationsController) ListForImage(c *gin.Context) {
	imageID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	img, err := ac.store.GetImage(ctx, imageID)
	if err != nil {
		respondDomainError(c, ac.log, err, "get image")
		return
	}
	if img == nil {
		respondNotFound(c, "image")
		return
	}

	list, err := ac.store.ListAnnotationsForImage(ctx, imageID)
	if err != nil {
		respondDomainError(c, ac.log, err, "list annotations")
		return
	}
	c.JSON(http.StatusOK, ListResponse{Data: list, Total: len(list)})
}

// Create attaches a label to the image, by label_id or label_name
// POST /api/images/:id/annotations
func (ac *AnnotationsController) Create(c *gin.Context) {
	imageID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req createAnnotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid JSON body")
		return
	}

	a, err := ac.store.CreateAnnotation(c.Request.Context(), dataset.NewAnnotation{
		ImageID:    imageID,
		LabelID:    req.LabelID,
		LabelName:  req.LabelName,
		Confidence: req.Confidence,
	})
	if err != nil {
		respondDomainError(c, ac.log, err, "create annotation")
		return
	}
	respondCreated(c, a)
}

// Get
// GET /api/annotations/:id
func (ac *AnnotationsController) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	a, err := ac.store.GetAnnotation(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, ac.log, err, "get annotation")
		return
	}
	if a == nil {
		respondNotFound(c, "annotation")
		return
	}
	c.JSON(http.StatusOK, a)
}

// UpdateConfidence
// PATCH /api/annotations/:id
func (ac *AnnotationsController) UpdateConfidence(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Confidence *float64 `json:"confidence"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Confidence == nil {
		respondBadRequest(c, "confidence is required")
		return
	}

	a, err := ac.store.UpdateAnnotationConfidence(c.Request.Context(), id, *req.Confidence)
	if err != nil {
		respondDomainError(c, ac.log, err, "update annotation")
		return
	}
	c.JSON(http.StatusOK, a)
}

// Delete detaches the label; the label itself is kept
// DELETE /api/annotations/:id
func (ac *AnnotationsController) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	deleted, err := ac.store.DeleteAnnotation(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, ac.log, err, "delete annotation")
		return
	}
	if !deleted {
		respondNotFound(c, "annotation")
		return
	}
	respondSuccess(c, "annotation deleted")
}
