// Package scheduler runs periodic dataset snapshots on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/mrlokans/annotator/internal/logging"
	"github.com/mrlokans/annotator/internal/tasks"
)

// Enqueuer hands a task to the queue. *tasks.Client implements it.
type Enqueuer interface {
	Enqueue(ctx context.Context, task backlite.Task) (string, error)
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateSchedule checks a 5-field cron expression.
func ValidateSchedule(schedule string) error {
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	return nil
}

// SnapshotScheduler exports the dataset on a schedule. With a queue the
// export runs as an export_snapshot task; without one it runs inline on
// the cron goroutine.
type SnapshotScheduler struct {
	schedule string
	dir      string
	queue    Enqueuer
	exporter tasks.Exporter
	log      logrus.FieldLogger

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
	running bool
	done    chan struct{}
}

// NewSnapshotScheduler accepts a nil queue.
func NewSnapshotScheduler(schedule, dir string, queue Enqueuer, exporter tasks.Exporter, log logrus.FieldLogger) *SnapshotScheduler {
	return &SnapshotScheduler{
		schedule: schedule,
		dir:      dir,
		queue:    queue,
		exporter: exporter,
		log:      logging.Component(log, "scheduler"),
	}
}

// Start schedules the job. Cancelling ctx stops the scheduler like Stop.
func (s *SnapshotScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	if err := ValidateSchedule(s.schedule); err != nil {
		return err
	}

	c := cron.New(cron.WithParser(parser))
	entryID, err := c.AddFunc(s.schedule, func() { s.run(ctx) })
	if err != nil {
		return fmt.Errorf("failed to schedule snapshot job: %w", err)
	}
	c.Start()

	s.cron = c
	s.entryID = entryID
	s.running = true
	s.done = make(chan struct{})

	go func(done <-chan struct{}) {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-done:
		}
	}(s.done)

	s.log.WithFields(logrus.Fields{
		"schedule": s.schedule,
		"next_run": c.Entry(entryID).Next,
	}).Info("snapshot scheduler started")
	return nil
}

// Stop waits for a running job to finish.
func (s *SnapshotScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	c := s.cron
	close(s.done)
	s.mu.Unlock()

	<-c.Stop().Done()
	s.log.Info("snapshot scheduler stopped")
}

func (s *SnapshotScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns nil when the scheduler is stopped.
func (s *SnapshotScheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	next := s.cron.Entry(s.entryID).Next
	return &next
}

// RunNow takes a snapshot immediately, through the queue when there is one.
func (s *SnapshotScheduler) RunNow(ctx context.Context) error {
	return s.trigger(ctx, "manual")
}

func (s *SnapshotScheduler) run(ctx context.Context) {
	if err := s.trigger(ctx, "scheduled"); err != nil {
		s.log.WithError(err).Error("scheduled snapshot failed")
	}
}

func (s *SnapshotScheduler) trigger(ctx context.Context, reason string) error {
	if s.queue != nil {
		id, err := s.queue.Enqueue(ctx, tasks.ExportSnapshotTask{Reason: reason})
		if err != nil {
			return err
		}
		s.log.WithFields(logrus.Fields{"task_id": id, "reason": reason}).Info("snapshot enqueued")
		return nil
	}

	path, n, err := tasks.WriteSnapshot(ctx, s.exporter, s.dir, time.Now())
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"path": path, "images": n, "reason": reason}).Info("snapshot written")
	return nil
}
