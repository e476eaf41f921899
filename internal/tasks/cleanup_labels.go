package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/sirupsen/logrus"
)

const QueueCleanupOrphanLabels = "cleanup_orphan_labels"

// OrphanLabelCleaner deletes labels no image uses.
type OrphanLabelCleaner interface {
	DeleteOrphanLabels(ctx context.Context) (int64, error)
}

type CleanupOrphanLabelsTask struct{}

func (t CleanupOrphanLabelsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        QueueCleanupOrphanLabels,
		MaxAttempts: 1,
		Backoff:     time.Minute,
		Timeout:     time.Minute,
		Retention: &backlite.Retention{
			Duration: 24 * time.Hour,
			Data:     &backlite.RetainData{OnlyFailed: true},
		},
	}
}

func CleanupOrphanLabelsProcessor(cleaner OrphanLabelCleaner, log logrus.FieldLogger) backlite.QueueProcessor[CleanupOrphanLabelsTask] {
	return func(ctx context.Context, _ CleanupOrphanLabelsTask) error {
		if cleaner == nil {
			return fmt.Errorf("orphan label cleaner not configured")
		}
		removed, err := cleaner.DeleteOrphanLabels(ctx)
		if err != nil {
			return fmt.Errorf("cleanup orphan labels: %w", err)
		}
		log.WithField("removed", removed).Info("orphan label cleanup finished")
		return nil
	}
}

func NewCleanupOrphanLabelsQueue(cleaner OrphanLabelCleaner, log logrus.FieldLogger) backlite.Queue {
	return backlite.NewQueue(CleanupOrphanLabelsProcessor(cleaner, log))
}
