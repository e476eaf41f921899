package http

import (
	"context"
	"io"

	"github.com/mrlokans/annotator/internal/dataset"
	"github.com/mrlokans/annotator/internal/entities"
)

// Each controller depends only on the methods it calls. *dataset.Service
// implements all of them.

type ImageStore interface {
	CreateImage(ctx context.Context, in dataset.NewImage) (*entities.Image, error)
	GetImage(ctx context.Context, id int64) (*entities.ImageDetail, error)
	ListImages(ctx context.Context) ([]entities.ImageWithLabels, error)
	UpdateImage(ctx context.Context, id int64, patch dataset.ImagePatch, actor string) (*entities.Image, error)
	DeleteImage(ctx context.Context, id int64) (bool, error)
}

type LabelStore interface {
	CreateLabel(ctx context.Context, in dataset.NewLabel) (*entities.Label, bool, error)
	GetLabel(ctx context.Context, id int64) (*entities.Label, error)
	FindLabelByName(ctx context.Context, name string, ignoreCase bool) (*entities.Label, error)
	ListLabels(ctx context.Context) ([]entities.Label, error)
	SearchLabels(ctx context.Context, query string, limit int) ([]entities.Label, error)
	LabelUsage(ctx context.Context) ([]entities.LabelUsage, error)
	UpdateLabel(ctx context.Context, id int64, patch dataset.LabelPatch) (*entities.Label, error)
	DeleteLabel(ctx context.Context, id int64) (bool, error)
	DeleteOrphanLabels(ctx context.Context) (int64, error)
}

type AnnotationStore interface {
	GetImage(ctx context.Context, id int64) (*entities.ImageDetail, error)
	CreateAnnotation(ctx context.Context, in dataset.NewAnnotation) (*entities.Annotation, error)
	GetAnnotation(ctx context.Context, id int64) (*entities.Annotation, error)
	ListAnnotationsForImage(ctx context.Context, imageID int64) ([]entities.AnnotationDetail, error)
	UpdateAnnotationConfidence(ctx context.Context, id int64, confidence float64) (*entities.Annotation, error)
	DeleteAnnotation(ctx context.Context, id int64) (bool, error)
}

type DatasetStore interface {
	Import(ctx context.Context, in io.Reader, actor string) (*dataset.ImportResult, error)
	Export(ctx context.Context, out io.Writer) (int, error)
	Stats(ctx context.Context) (entities.DatasetStats, error)
}
