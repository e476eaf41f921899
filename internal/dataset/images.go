package dataset

import (
	"context"
	"errors"

	"github.com/mrlokans/annotator/internal/database"
	"github.com/mrlokans/annotator/internal/entities"
	"github.com/mrlokans/annotator/internal/schema"
)

// NewImage is the metadata of a stored file. Actor is recorded as creator
// and last editor.
type NewImage struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"original_name"`
	FilePath     string `json:"file_path"`
	FileSize     int64  `json:"file_size"`
	MimeType     string `json:"mime_type"`
	Actor        string `json:"-"`
}

func (n NewImage) record() schema.Record {
	return schema.Record{
		"filename":      n.Filename,
		"original_name": n.OriginalName,
		"file_path":     n.FilePath,
		"file_size":     n.FileSize,
		"mime_type":     n.MimeType,
	}
}

// ImagePatch changes the supplied fields only.
type ImagePatch struct {
	Filename     *string `json:"filename,omitempty"`
	OriginalName *string `json:"original_name,omitempty"`
	FilePath     *string `json:"file_path,omitempty"`
	FileSize     *int64  `json:"file_size,omitempty"`
	MimeType     *string `json:"mime_type,omitempty"`
}

func (p ImagePatch) record() schema.Record {
	rec := schema.Record{}
	if p.Filename != nil {
		rec["filename"] = *p.Filename
	}
	if p.OriginalName != nil {
		rec["original_name"] = *p.OriginalName
	}
	if p.FilePath != nil {
		rec["file_path"] = *p.FilePath
	}
	if p.FileSize != nil {
		rec["file_size"] = *p.FileSize
	}
	if p.MimeType != nil {
		rec["mime_type"] = *p.MimeType
	}
	return rec
}

func validate(entity string, rec schema.Record, partial bool) error {
	res := schema.Validate(entity, rec, schema.Options{Partial: partial})
	if !res.Valid {
		return newValidationError(entity, res.Errors...)
	}
	return nil
}

// CreateImage validates and stores image metadata.
func (s *Service) CreateImage(ctx context.Context, in NewImage) (img *entities.Image, err error) {
	defer s.track("image", "create")(&err)

	if err := validate(schema.Images, in.record(), false); err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(r repos) error {
		var err error
		img, err = createImage(ctx, r, &entities.Image{
			Filename:     in.Filename,
			OriginalName: in.OriginalName,
			FilePath:     in.FilePath,
			FileSize:     in.FileSize,
			MimeType:     in.MimeType,
			CreatedBy:    actorPtr(in.Actor),
			UpdatedBy:    actorPtr(in.Actor),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("image_id", img.ID).Debug("image created")
	return img, nil
}

func createImage(ctx context.Context, r repos, img *entities.Image) (*entities.Image, error) {
	created, err := r.images.Create(ctx, img)
	if errors.Is(err, database.ErrUniqueViolation) {
		return nil, duplicateFilename(err)
	}
	return created, translate(err)
}

// GetImage returns the image with its annotations, or nil.
func (s *Service) GetImage(ctx context.Context, id int64) (*entities.ImageDetail, error) {
	img, err := s.repos.images.FindByID(ctx, id)
	if err != nil || img == nil {
		return nil, translate(err)
	}
	details, err := s.repos.annotations.FindForImage(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return &entities.ImageDetail{Image: *img, Annotations: details}, nil
}

// ListImages returns every image with its labels, newest first.
func (s *Service) ListImages(ctx context.Context) ([]entities.ImageWithLabels, error) {
	list, err := s.repos.images.FindAllWithLabels(ctx)
	return list, translate(err)
}

// UpdateImage applies patch and refreshes updated_at. It returns nil, nil
// when the image does not exist.
func (s *Service) UpdateImage(ctx context.Context, id int64, patch ImagePatch, actor string) (img *entities.Image, err error) {
	defer s.track("image", "update")(&err)

	rec := patch.record()
	if err := validate(schema.Images, rec, true); err != nil {
		return nil, err
	}

	changes := map[string]any(rec)
	changes["updated_at"] = database.Timestamp(s.now())
	if actor != "" {
		changes["updated_by"] = actor
	}

	err = s.inTx(ctx, func(r repos) error {
		ok, err := r.images.Update(ctx, id, changes)
		if errors.Is(err, database.ErrUniqueViolation) {
			return duplicateFilename(err)
		}
		if err != nil || !ok {
			return translate(err)
		}
		img, err = r.images.FindByID(ctx, id)
		return translate(err)
	})
	if err != nil {
		return nil, err
	}
	return img, nil
}

// DeleteImage removes the image and its annotations. It reports whether
// the image existed.
func (s *Service) DeleteImage(ctx context.Context, id int64) (deleted bool, err error) {
	defer s.track("image", "delete")(&err)

	err = s.inTx(ctx, func(r repos) error {
		if _, err := r.annotations.DeleteForImage(ctx, id); err != nil {
			return translate(err)
		}
		n, err := r.images.Delete(ctx, id)
		deleted = n > 0
		return translate(err)
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}
