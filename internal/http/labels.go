package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mrlokans/annotator/internal/dataset"
	"github.com/mrlokans/annotator/internal/logging"
)

const (
	defaultSuggestLimit = 10
	maxSuggestLimit     = 50
)

type LabelsController struct {
	store LabelStore
	log   logrus.FieldLogger
}

func NewLabelsController(store LabelStore, log logrus.FieldLogger) *LabelsController {
	return &LabelsController{store: store, log: logging.Component(log, "http.labels")}
}

// ListLabels returns all labels. With ?usage=1 each label carries the
// number of images it is attached to, most used first.
// GET /api/labels
func (lc *LabelsController) ListLabels(c *gin.Context) {
	ctx := c.Request.Context()
	if truthy(c.Query("usage")) {
		usage, err := lc.store.LabelUsage(ctx)
		if err != nil {
			respondDomainError(c, lc.log, err, "label usage")
			return
		}
		c.JSON(http.StatusOK, ListResponse{Data: usage, Total: len(usage)})
		return
	}

	labels, err := lc.store.ListLabels(ctx)
	if err != nil {
		respondDomainError(c, lc.log, err, "list labels")
		return
	}
	c.JSON(http.StatusOK, ListResponse{Data: labels, Total: len(labels)})
}

// Suggest returns labels whose name contains q
// GET /api/labels/suggest?q=
func (lc *LabelsController) Suggest(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusOK, ListResponse{Data: []any{}, Total: 0})
		return
	}
	limit, ok := parseLimit(c, defaultSuggestLimit, maxSuggestLimit)
	if !ok {
		return
	}

	labels, err := lc.store.SearchLabels(c.Request.Context(), query, limit)
	if err != nil {
		respondDomainError(c, lc.log, err, "suggest labels")
		return
	}
	c.JSON(http.StatusOK, ListResponse{Data: labels, Total: len(labels)})
}

// Lookup finds a label by exact name, or case-insensitively with fold=1
// GET /api/labels/lookup?name=&fold=1
func (lc *LabelsController) Lookup(c *gin.Context) {
	name := c.Query("name")
	if strings.TrimSpace(name) == "" {
		respondBadRequest(c, "name is required")
		return
	}

	label, err := lc.store.FindLabelByName(c.Request.Context(), name, truthy(c.Query("fold")))
	if err != nil {
		respondDomainError(c, lc.log, err, "lookup label")
		return
	}
	if label == nil {
		respondNotFound(c, "label")
		return
	}
	c.JSON(http.StatusOK, label)
}

// CreateLabel returns 201 with a new label, or 200 with the existing one
// POST /api/labels
func (lc *LabelsController) CreateLabel(c *gin.Context) {
	var req dataset.NewLabel
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid JSON body")
		return
	}

	label, created, err := lc.store.CreateLabel(c.Request.Context(), req)
	if err != nil {
		respondDomainError(c, lc.log, err, "create label")
		return
	}
	if created {
		respondCreated(c, label)
		return
	}
	c.JSON(http.StatusOK, label)
}

// GetLabel
// GET /api/labels/:id
func (lc *LabelsController) GetLabel(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	label, err := lc.store.GetLabel(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, lc.log, err, "get label")
		return
	}
	if label == nil {
		respondNotFound(c, "label")
		return
	}
	c.JSON(http.StatusOK, label)
}

// UpdateLabel renames a label or changes its description
// PATCH /api/labels/:id
func (lc *LabelsController) UpdateLabel(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var patch dataset.LabelPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondBadRequest(c, "invalid JSON body")
		return
	}

	label, err := lc.store.UpdateLabel(c.Request.Context(), id, patch)
	if err != nil {
		respondDomainError(c, lc.log, err, "update label")
		return
	}
	if label == nil {
		respondNotFound(c, "label")
		return
	}
	c.JSON(http.StatusOK, label)
}

// DeleteLabel removes the label from every image
// DELETE /api/labels/:id
func (lc *LabelsController) DeleteLabel(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	deleted, err := lc.store.DeleteLabel(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, lc.log, err, "delete label")
		return
	}
	if !deleted {
		respondNotFound(c, "label")
		return
	}
	respondSuccess(c, "label deleted")
}

func truthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
