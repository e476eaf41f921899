// Package dataset is the business layer over the image, label and
// annotation repositories. It validates input, runs multi-step writes in
// transactions and turns engine errors into domain errors.
//
// Lookups of a missing record return a nil value and a nil error, deletes
// report false. Only operations that cannot proceed without the record
// (annotation confidence updates, attaching a label to a missing image)
// fail with ErrNotFound.
package dataset

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mrlokans/annotator/internal/config"
	"github.com/mrlokans/annotator/internal/database"
	"github.com/mrlokans/annotator/internal/database/annotations"
	"github.com/mrlokans/annotator/internal/database/images"
	"github.com/mrlokans/annotator/internal/database/labels"
	"github.com/mrlokans/annotator/internal/entities"
	"github.com/mrlokans/annotator/internal/logging"
	"github.com/mrlokans/annotator/internal/metrics"
)

type Service struct {
	db              *database.DB
	repos           repos
	log             logrus.FieldLogger
	metrics         *metrics.DataMetrics
	now             func() time.Time
	maxImportErrors int
}

type Option func(*Service)

func WithMetrics(m *metrics.DataMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source used for updated_at stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMaxImportErrors bounds the error messages kept in an ImportResult.
func WithMaxImportErrors(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxImportErrors = n
		}
	}
}

func NewService(db *database.DB, log logrus.FieldLogger, opts ...Option) *Service {
	s := &Service{
		db:              db,
		repos:           reposFor(db),
		log:             logging.Component(log, "dataset"),
		now:             time.Now,
		maxImportErrors: config.DefaultImportMaxErrors,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// repos groups the repositories bound to one handle, so a transaction gets
// a consistent set.
type repos struct {
	images      *images.Repository
	labels      *labels.Repository
	annotations *annotations.Repository
}

func reposFor(db *database.DB) repos {
	return repos{
		images:      images.NewRepository(db),
		labels:      labels.NewRepository(db),
		annotations: annotations.NewRepository(db),
	}
}

// inTx runs fn with repositories bound to a new transaction.
func (s *Service) inTx(ctx context.Context, fn func(r repos) error) error {
	return s.db.Transaction(ctx, func(tx *database.DB) error {
		return fn(reposFor(tx))
	})
}

// track starts timing an operation; call the result with the operation's
// named error on return.
func (s *Service) track(entity, operation string) func(*error) {
	start := time.Now()
	return func(err *error) {
		s.metrics.Observe(entity, operation, outcome(*err), time.Since(start))
	}
}

// Stats returns row counts for the three tables.
func (s *Service) Stats(ctx context.Context) (entities.DatasetStats, error) {
	var stats entities.DatasetStats
	var err error
	if stats.Images, err = s.repos.images.Count(ctx); err != nil {
		return stats, translate(err)
	}
	if stats.Labels, err = s.repos.labels.Count(ctx); err != nil {
		return stats, translate(err)
	}
	if stats.Annotations, err = s.repos.annotations.Count(ctx); err != nil {
		return stats, translate(err)
	}
	return stats, nil
}

func actorPtr(actor string) *string {
	if actor == "" {
		return nil
	}
	return &actor
}
