package dataset

import (
	"context"
	"errors"

	"github.com/mrlokans/annotator/internal/database"
	"github.com/mrlokans/annotator/internal/entities"
	"github.com/mrlokans/annotator/internal/schema"
)

// NewAnnotation attaches a label to an image. The label is addressed by
// LabelID, or by LabelName which is created when unknown. A nil
// Confidence means 1.0.
type NewAnnotation struct {
	ImageID    int64    `json:"image_id"`
	LabelID    int64    `json:"label_id,omitempty"`
	LabelName  string   `json:"label_name,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// CreateAnnotation fails with ErrNotFound when the image or label id does
// not exist and with ErrAlreadyExists when the pair is already annotated.
func (s *Service) CreateAnnotation(ctx context.Context, in NewAnnotation) (a *entities.Annotation, err error) {
	defer s.track("annotation", "create")(&err)

	confidence := schema.DefaultConfidence
	if in.Confidence != nil {
		confidence = *in.Confidence
	}
	if in.LabelID == 0 && schema.NormalizeLabelName(in.LabelName) == "" {
		return nil, newValidationError(schema.Annotations, "label_id or label_name is required")
	}

	rec := schema.Record{"image_id": in.ImageID, "confidence": confidence}
	if in.LabelID != 0 {
		rec["label_id"] = in.LabelID
	}
	if err := validate(schema.Annotations, rec, true); err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(r repos) error {
		labelID := in.LabelID
		if labelID == 0 {
			// Check the image first so a failed attach leaves no new label.
			if err := requireImage(ctx, r, in.ImageID); err != nil {
				return err
			}
			label, _, err := findOrCreateLabel(ctx, r, in.LabelName, nil)
			if err != nil {
				return err
			}
			labelID = label.ID
		}
		var err error
		a, err = createAnnotation(ctx, r, in.ImageID, labelID, confidence)
		return err
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func requireImage(ctx context.Context, r repos, id int64) error {
	ok, err := r.images.Exists(ctx, id)
	if err != nil {
		return translate(err)
	}
	if !ok {
		return notFound("image %d not found", id)
	}
	return nil
}

func createAnnotation(ctx context.Context, r repos, imageID, labelID int64, confidence float64) (*entities.Annotation, error) {
	if err := requireImage(ctx, r, imageID); err != nil {
		return nil, err
	}
	label, err := r.labels.FindByID(ctx, labelID)
	if err != nil {
		return nil, translate(err)
	}
	if label == nil {
		return nil, notFound("label %d not found", labelID)
	}

	existing, err := r.annotations.FindByPair(ctx, imageID, labelID)
	if err != nil {
		return nil, translate(err)
	}
	if existing != nil {
		return nil, duplicateAnnotation(nil)
	}

	a, err := r.annotations.Create(ctx, imageID, labelID, confidence)
	if errors.Is(err, database.ErrUniqueViolation) {
		return nil, duplicateAnnotation(err)
	}
	return a, translate(err)
}

// UpdateAnnotationConfidence changes only the confidence.
func (s *Service) UpdateAnnotationConfidence(ctx context.Context, id int64, confidence float64) (a *entities.Annotation, err error) {
	defer s.track("annotation", "update")(&err)

	if err := validate(schema.Annotations, schema.Record{"confidence": confidence}, true); err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(r repos) error {
		ok, err := r.annotations.UpdateConfidence(ctx, id, confidence)
		if err != nil {
			return translate(err)
		}
		if !ok {
			return notFound("annotation %d not found", id)
		}
		a, err = r.annotations.FindByID(ctx, id)
		return translate(err)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// DeleteAnnotation reports whether the annotation existed.
func (s *Service) DeleteAnnotation(ctx context.Context, id int64) (deleted bool, err error) {
	defer s.track("annotation", "delete")(&err)

	n, err := s.repos.annotations.Delete(ctx, id)
	if err != nil {
		return false, translate(err)
	}
	return n > 0, nil
}

func (s *Service) GetAnnotation(ctx context.Context, id int64) (*entities.Annotation, error) {
	a, err := s.repos.annotations.FindByID(ctx, id)
	return a, translate(err)
}

// ListAnnotationsForImage returns the image's annotations with label
// names, newest first.
func (s *Service) ListAnnotationsForImage(ctx context.Context, imageID int64) ([]entities.AnnotationDetail, error) {
	list, err := s.repos.annotations.FindForImage(ctx, imageID)
	return list, translate(err)
}
