package http

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/annotator/internal/dataset"
	"github.com/mrlokans/annotator/internal/tasks"
)

type mockTaskQueue struct {
	mock.Mock
}

func (m *mockTaskQueue) Enqueue(ctx context.Context, task backlite.Task) (string, error) {
	args := m.Called(ctx, task)
	return args.String(0), args.Error(1)
}

func (m *mockTaskQueue) Status(ctx context.Context, taskID string) (backlite.TaskStatus, error) {
	args := m.Called(ctx, taskID)
	return args.Get(0).(backlite.TaskStatus), args.Error(1)
}

func TestTasksController_CleanupOrphanLabels(t *testing.T) {
	t.Run("runs inline without a queue", func(t *testing.T) {
		env := setupTestEnv(t)
		ctx := context.Background()
		img := createTestImage(t, env, "a.jpg")
		_, err := env.svc.CreateAnnotation(ctx, dataset.NewAnnotation{ImageID: img.ID, LabelName: "used"})
		require.NoError(t, err)
		_, _, err = env.svc.CreateLabel(ctx, dataset.NewLabel{Name: "orphan"})
		require.NoError(t, err)

		w := env.do(t, http.MethodPost, "/api/admin/labels/cleanup", nil)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, float64(1), decode[map[string]any](t, w)["removed"])
		labels, err := env.svc.ListLabels(ctx)
		require.NoError(t, err)
		require.Len(t, labels, 1)
		assert.Equal(t, "used", labels[0].Name)
	})

	t.Run("enqueues when a queue is configured", func(t *testing.T) {
		queue := new(mockTaskQueue)
		queue.On("Enqueue", mock.Anything, tasks.CleanupOrphanLabelsTask{}).Return("task-1", nil)
		env := setupTestEnv(t, func(c *RouterConfig) { c.TaskQueue = queue })

		w := env.do(t, http.MethodPost, "/api/admin/labels/cleanup", nil)

		require.Equal(t, http.StatusAccepted, w.Code)
		resp := decode[SuccessResponse](t, w)
		assert.Equal(t, map[string]any{"task_id": "task-1"}, resp.Data)
		queue.AssertExpectations(t)
	})

	t.Run("enqueue failure is a 500", func(t *testing.T) {
		queue := new(mockTaskQueue)
		queue.On("Enqueue", mock.Anything, mock.Anything).Return("", errors.New("disk full"))
		env := setupTestEnv(t, func(c *RouterConfig) { c.TaskQueue = queue })

		w := env.do(t, http.MethodPost, "/api/admin/labels/cleanup", nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "disk full")
	})
}

func TestTasksController_GetTaskStatus(t *testing.T) {
	queue := new(mockTaskQueue)
	queue.On("Status", mock.Anything, "t1").Return(backlite.TaskStatusSuccess, nil)
	queue.On("Status", mock.Anything, "gone").Return(backlite.TaskStatusNotFound, nil)
	env := setupTestEnv(t, func(c *RouterConfig) { c.TaskQueue = queue })

	w := env.do(t, http.MethodGet, "/api/tasks/t1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", decode[map[string]any](t, w)["status"])

	w = env.do(t, http.MethodGet, "/api/tasks/gone", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	t.Run("disabled queue", func(t *testing.T) {
		env := setupTestEnv(t)
		w := env.do(t, http.MethodGet, "/api/tasks/t1", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestTaskStatusToString(t *testing.T) {
	assert.Equal(t, "pending", taskStatusToString(backlite.TaskStatusPending))
	assert.Equal(t, "running", taskStatusToString(backlite.TaskStatusRunning))
	assert.Equal(t, "failure", taskStatusToString(backlite.TaskStatusFailure))
}
