package tasks

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/sirupsen/logrus"
)

const QueueExportSnapshot = "export_snapshot"

const snapshotLayout = "20060102-150405"

// Exporter writes the whole dataset in the interchange format.
type Exporter interface {
	Export(ctx context.Context, w io.Writer) (int, error)
}

// ExportSnapshotTask writes a dataset export into the snapshot directory.
type ExportSnapshotTask struct {
	Reason string `json:"reason,omitempty"` // "scheduled" or "manual"
}

func (t ExportSnapshotTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        QueueExportSnapshot,
		MaxAttempts: 3,
		Backoff:     30 * time.Second,
		Timeout:     10 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   7 * 24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// SnapshotName is the file name for a snapshot taken at t.
func SnapshotName(t time.Time) string {
	return "snapshot-" + t.UTC().Format(snapshotLayout) + ".csv"
}

// WriteSnapshot exports into dir and returns the file path and the number
// of image rows. A failed export leaves no partial file.
func WriteSnapshot(ctx context.Context, exporter Exporter, dir string, now time.Time) (string, int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.csv")
	if err != nil {
		return "", 0, fmt.Errorf("create snapshot file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := exporter.Export(ctx, tmp)
	if err != nil {
		tmp.Close()
		return "", 0, fmt.Errorf("export snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", 0, fmt.Errorf("close snapshot file: %w", err)
	}

	path := filepath.Join(dir, SnapshotName(now))
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", 0, fmt.Errorf("store snapshot: %w", err)
	}
	return path, n, nil
}

func ExportSnapshotProcessor(exporter Exporter, dir string, log logrus.FieldLogger) backlite.QueueProcessor[ExportSnapshotTask] {
	return func(ctx context.Context, task ExportSnapshotTask) error {
		if exporter == nil {
			return fmt.Errorf("exporter not configured")
		}
		path, n, err := WriteSnapshot(ctx, exporter, dir, time.Now())
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{"path": path, "images": n, "reason": task.Reason}).Info("snapshot written")
		return nil
	}
}

func NewExportSnapshotQueue(exporter Exporter, dir string, log logrus.FieldLogger) backlite.Queue {
	return backlite.NewQueue(ExportSnapshotProcessor(exporter, dir, log))
}
