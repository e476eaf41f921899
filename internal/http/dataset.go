package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mrlokans/annotator/internal/auth"
	"github.com/mrlokans/annotator/internal/logging"
)

// maxImportBytes caps the size of an uploaded CSV file.
const maxImportBytes = 64 << 20

type DatasetController struct {
	store DatasetStore
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewDatasetController(store DatasetStore, log logrus.FieldLogger) *DatasetController {
	return &DatasetController{
		store: store,
		log:   logging.Component(log, "http.dataset"),
		now:   time.Now,
	}
}

// Import loads images and annotations from CSV. The file is sent either
// as the multipart field "csv_file" or as a raw text/csv body.
// POST /api/dataset/import
func (dc *DatasetController) Import(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBytes)

	in, closeFn, err := importSource(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, http.StatusRequestEntityTooLarge, CodeTooLarge, "import file is too large")
			return
		}
		respondBadRequest(c, err.Error())
		return
	}
	defer closeFn()

	result, err := dc.store.Import(c.Request.Context(), in, auth.Actor(c))
	if err != nil {
		respondDomainError(c, dc.log, err, "import dataset")
		return
	}
	c.JSON(http.StatusOK, result)
}

func importSource(c *gin.Context) (io.Reader, func(), error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("csv_file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, nil, err
			}
			return nil, nil, fmt.Errorf("multipart field \"csv_file\" is required")
		}
		f, err := fh.Open()
		if err != nil {
			return nil, nil, fmt.Errorf("could not read csv_file")
		}
		return f, func() { _ = f.Close() }, nil
	}

	if c.Request.ContentLength == 0 {
		return nil, nil, fmt.Errorf("request body is empty")
	}
	return c.Request.Body, func() {}, nil
}

// Export downloads the whole dataset as CSV
// GET /api/dataset/export
func (dc *DatasetController) Export(c *gin.Context) {
	var buf bytes.Buffer
	n, err := dc.store.Export(c.Request.Context(), &buf)
	if err != nil {
		respondDomainError(c, dc.log, err, "export dataset")
		return
	}

	name := fmt.Sprintf("dataset-%s.csv", dc.now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Header("X-Exported-Rows", fmt.Sprint(n))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// Stats returns row counts
// GET /api/dataset/stats
func (dc *DatasetController) Stats(c *gin.Context) {
	stats, err := dc.store.Stats(c.Request.Context())
	if err != nil {
		respondDomainError(c, dc.log, err, "dataset stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}
