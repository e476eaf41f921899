package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"
	"github.com/sirupsen/logrus"

	"github.com/mrlokans/annotator/internal/logging"
	"github.com/mrlokans/annotator/internal/tasks"
)

// TaskQueue is the part of the task client used by handlers.
type TaskQueue interface {
	Enqueue(ctx context.Context, task backlite.Task) (string, error)
	Status(ctx context.Context, taskID string) (backlite.TaskStatus, error)
}

// OrphanLabelCleaner removes labels no image uses.
type OrphanLabelCleaner interface {
	DeleteOrphanLabels(ctx context.Context) (int64, error)
}

// TasksController serves maintenance endpoints. Without a queue the
// work runs inside the request.
type TasksController struct {
	queue   TaskQueue
	cleaner OrphanLabelCleaner
	log     logrus.FieldLogger
}

func NewTasksController(queue TaskQueue, cleaner OrphanLabelCleaner, log logrus.FieldLogger) *TasksController {
	return &TasksController{queue: queue, cleaner: cleaner, log: logging.Component(log, "http.tasks")}
}

// CleanupOrphanLabels deletes labels that are attached to no image
// POST /api/admin/labels/cleanup
func (tc *TasksController) CleanupOrphanLabels(c *gin.Context) {
	ctx := c.Request.Context()

	if tc.queue != nil {
		id, err := tc.queue.Enqueue(ctx, tasks.CleanupOrphanLabelsTask{})
		if err != nil {
			respondInternalError(c, tc.log, err, "enqueue label cleanup")
			return
		}
		respondAccepted(c, "label cleanup queued", gin.H{"task_id": id})
		return
	}

	removed, err := tc.cleaner.DeleteOrphanLabels(ctx)
	if err != nil {
		respondDomainError(c, tc.log, err, "cleanup labels")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "orphan labels removed", "removed": removed})
}

// GetTaskStatus
// GET /api/tasks/:id
func (tc *TasksController) GetTaskStatus(c *gin.Context) {
	if tc.queue == nil {
		respondError(c, http.StatusNotFound, CodeNotFound, "task queue is disabled")
		return
	}

	taskID := c.Param("id")
	if taskID == "" {
		respondBadRequest(c, "task ID is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status, err := tc.queue.Status(ctx, taskID)
	if err != nil {
		respondInternalError(c, tc.log, err, "task status")
		return
	}
	if status == backlite.TaskStatusNotFound {
		respondNotFound(c, "task")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":     taskID,
		"status": taskStatusToString(status),
	})
}

func taskStatusToString(status backlite.TaskStatus) string {
	switch status {
	case backlite.TaskStatusPending:
		return "pending"
	case backlite.TaskStatusRunning:
		return "running"
	case backlite.TaskStatusSuccess:
		return "success"
	case backlite.TaskStatusFailure:
		return "failure"
	case backlite.TaskStatusNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}
