package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mrlokans/annotator/internal/csvio"
	"github.com/mrlokans/annotator/internal/entities"
	"github.com/mrlokans/annotator/internal/metrics"
	"github.com/mrlokans/annotator/internal/schema"
)

type ImportResult struct {
	TotalRows          int      `json:"total_rows"`
	Imported           int      `json:"imported"`
	Skipped            int      `json:"skipped"`
	Errors             int      `json:"errors"`
	LabelsCreated      int      `json:"labels_created"`
	AnnotationsCreated int      `json:"annotations_created"`
	Messages           []string `json:"messages"`
	MessagesTruncated  bool     `json:"messages_truncated,omitempty"`
}

func (r *ImportResult) addError(max int, line int, err error) {
	r.Errors++
	if len(r.Messages) >= max {
		r.MessagesTruncated = true
		return
	}
	r.Messages = append(r.Messages, fmt.Sprintf("line %d: %v", line, err))
}

type rowResult struct {
	skipped            bool
	labelsCreated      int
	annotationsCreated int
}

// Import reads the interchange format and stores each row in its own
// transaction. Rows whose image_id already exists are skipped; a failing
// row is counted and reported without affecting the others. Only an
// unreadable header aborts the import.
func (s *Service) Import(ctx context.Context, in io.Reader, actor string) (result *ImportResult, err error) {
	defer s.track("dataset", "import")(&err)

	reader := csvio.NewReader(in)
	if err := reader.ReadHeader(); err != nil {
		return nil, newValidationError("import", err.Error())
	}

	result = &ImportResult{Messages: []string{}}
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		result.TotalRows++

		var rowErr *csvio.RowError
		if errors.As(err, &rowErr) {
			result.addError(s.maxImportErrors, rowErr.Line, rowErr.Err)
			continue
		}
		if err != nil {
			return result, fmt.Errorf("read import: %w", err)
		}

		row, err := s.importRow(ctx, rec, actor)
		switch {
		case err != nil:
			result.addError(s.maxImportErrors, rec.Line, err)
		case row.skipped:
			result.Skipped++
		default:
			result.Imported++
			result.LabelsCreated += row.labelsCreated
			result.AnnotationsCreated += row.annotationsCreated
		}
	}

	s.metrics.ImportRows(metrics.RowImported, result.Imported)
	s.metrics.ImportRows(metrics.RowSkipped, result.Skipped)
	s.metrics.ImportRows(metrics.RowFailed, result.Errors)
	s.log.WithFields(logrus.Fields{
		"rows":     result.TotalRows,
		"imported": result.Imported,
		"skipped":  result.Skipped,
		"errors":   result.Errors,
	}).Info("import finished")

	return result, nil
}

type parsedRow struct {
	image  entities.Image
	labels []csvio.LabelConfidence
}

func (s *Service) importRow(ctx context.Context, rec csvio.Record, actor string) (rowResult, error) {
	row, err := parseRow(rec, actor)
	if err != nil {
		return rowResult{}, err
	}

	var res rowResult
	err = s.inTx(ctx, func(r repos) error {
		if row.image.ID != 0 {
			exists, err := r.images.Exists(ctx, row.image.ID)
			if err != nil {
				return translate(err)
			}
			if exists {
				res.skipped = true
				return nil
			}
		}

		img, err := createImage(ctx, r, &row.image)
		if err != nil {
			return err
		}

		seen := make(map[string]bool, len(row.labels))
		for _, lc := range row.labels {
			name := schema.NormalizeLabelName(lc.Name)
			if seen[name] {
				continue
			}
			seen[name] = true

			label, created, err := findOrCreateLabel(ctx, r, name, nil)
			if err != nil {
				return fmt.Errorf("label %q: %w", name, err)
			}
			if created {
				res.labelsCreated++
			}

			confidence := schema.DefaultConfidence
			if lc.Confidence != nil {
				confidence = *lc.Confidence
			}
			if _, err := createAnnotation(ctx, r, img.ID, label.ID, confidence); err != nil {
				return fmt.Errorf("label %q: %w", name, err)
			}
			res.annotationsCreated++
		}
		return nil
	})
	if err != nil {
		return rowResult{}, err
	}
	return res, nil
}

func parseRow(rec csvio.Record, actor string) (parsedRow, error) {
	var row parsedRow
	var problems []string

	if v := rec.Get(csvio.ColImageID); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			problems = append(problems, fmt.Sprintf("invalid image_id %q", v))
		}
		row.image.ID = id
	}

	row.image.Filename = rec.Get(csvio.ColFilename)
	row.image.OriginalName = rec.Get(csvio.ColOriginalName)
	row.image.FilePath = rec.Get(csvio.ColFilePath)
	row.image.MimeType = rec.Get(csvio.ColMimeType)

	fields := schema.Record{
		"filename":      row.image.Filename,
		"original_name": row.image.OriginalName,
		"file_path":     row.image.FilePath,
		"mime_type":     row.image.MimeType,
	}
	if v := rec.Get(csvio.ColFileSize); v != "" {
		size, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			problems = append(problems, fmt.Sprintf("invalid file_size %q", v))
		} else {
			row.image.FileSize = size
			fields["file_size"] = size
		}
	} else {
		problems = append(problems, "file_size is required")
	}

	row.image.CreatedBy = actorPtr(firstNonEmpty(rec.Get(csvio.ColCreatedBy), actor))
	row.image.UpdatedBy = actorPtr(firstNonEmpty(rec.Get(csvio.ColUpdatedBy), actor))

	for _, ts := range []struct {
		col string
		dst *time.Time
	}{
		{csvio.ColUploadedAt, &row.image.UploadedAt},
		{csvio.ColUpdatedAt, &row.image.UpdatedAt},
	} {
		col, dst := ts.col, ts.dst
		v := rec.Get(col)
		if v == "" {
			continue
		}
		t, ok := schema.ParseTime(v)
		if !ok {
			problems = append(problems, fmt.Sprintf("invalid %s %q", col, v))
			continue
		}
		*dst = t
	}

	if res := schema.Validate(schema.Images, fields, schema.Options{Partial: true}); !res.Valid {
		problems = append(problems, res.Errors...)
	}

	labels, err := csvio.ParseLabels(rec.Get(csvio.ColLabels), rec.Get(csvio.ColConfidences))
	if err != nil {
		problems = append(problems, err.Error())
	}
	for _, lc := range labels {
		if res := schema.Validate(schema.Labels, schema.Record{"label_name": lc.Name}, schema.Options{}); !res.Valid {
			problems = append(problems, res.Errors...)
		}
		if lc.Confidence != nil {
			if res := schema.Validate(schema.Annotations, schema.Record{"confidence": *lc.Confidence}, schema.Options{Partial: true}); !res.Valid {
				problems = append(problems, fmt.Sprintf("label %q: %s", lc.Name, res.Errors[0]))
			}
		}
	}
	row.labels = labels

	if len(problems) > 0 {
		return parsedRow{}, newValidationError(schema.Images, problems...)
	}
	return row, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
