package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goleador/traffilink-dispatch/app/dto"
	businessflow "github.com/goleador/traffilink-dispatch/business_flow"
	"github.com/goleador/traffilink-dispatch/models"
	"github.com/goleador/traffilink-dispatch/utils"
)

type stubDispatch struct {
	mu   sync.Mutex
	sent []*dto.SendSMSRequest
}

func (d *stubDispatch) Send(ctx context.Context, req *dto.SendSMSRequest, metadata *businessflow.ClientMetadata) (*dto.SendSMSResponse, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, req)
	return &dto.SendSMSResponse{SentBatches: 1}, nil
}

func (d *stubDispatch) GetBalance(ctx context.Context) (*dto.BalanceResponse, error) {
	return &dto.BalanceResponse{}, nil
}

func (d *stubDispatch) Statistics() dto.DispatchStatistics { return dto.DispatchStatistics{} }
func (d *stubDispatch) ResetStatistics()                   {}

func (d *stubDispatch) sentCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

// memTaskRepo is an in-memory ScheduledTaskRepository for scheduler tests.
type memTaskRepo struct {
	mu    sync.Mutex
	seq   uint
	tasks map[uint]*models.ScheduledTask
}

func newMemTaskRepo() *memTaskRepo {
	return &memTaskRepo{tasks: make(map[uint]*models.ScheduledTask)}
}

func (r *memTaskRepo) ByID(ctx context.Context, id uint) (*models.ScheduledTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok {
		return nil, errors.New("task not found")
	}
	copied := *task
	return &copied, nil
}

func (r *memTaskRepo) ByFilter(ctx context.Context, filter models.ScheduledTaskFilter, orderBy string, limit, offset int) ([]*models.ScheduledTask, error) {
	return nil, errors.New("not supported")
}

func (r *memTaskRepo) Save(ctx context.Context, task *models.ScheduledTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	task.ID = r.seq
	if task.UUID == "" {
		task.UUID = uuid.New().String()
	}
	copied := *task
	r.tasks[task.ID] = &copied
	return nil
}

func (r *memTaskRepo) SaveBatch(ctx context.Context, tasks []*models.ScheduledTask) error {
	for _, task := range tasks {
		if err := r.Save(ctx, task); err != nil {
			return err
		}
	}
	return nil
}

func (r *memTaskRepo) Update(ctx context.Context, task *models.ScheduledTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *task
	r.tasks[task.ID] = &copied
	return nil
}

func (r *memTaskRepo) Count(ctx context.Context, filter models.ScheduledTaskFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.tasks)), nil
}

func (r *memTaskRepo) Exists(ctx context.Context, filter models.ScheduledTaskFilter) (bool, error) {
	count, _ := r.Count(ctx, filter)
	return count > 0, nil
}

func (r *memTaskRepo) ByUUID(ctx context.Context, id string) (*models.ScheduledTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, task := range r.tasks {
		if task.UUID == id {
			copied := *task
			return &copied, nil
		}
	}
	return nil, errors.New("task not found")
}

func (r *memTaskRepo) ListByStatus(ctx context.Context, status models.TaskStatus) ([]*models.ScheduledTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ScheduledTask
	for id := uint(1); id <= r.seq; id++ {
		task, ok := r.tasks[id]
		if ok && task.Status == status {
			copied := *task
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memTaskRepo) UpdateStatus(ctx context.Context, id uint, status models.TaskStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok {
		return errors.New("task not found")
	}
	task.Status = status
	return nil
}

func (r *memTaskRepo) MarkExecuted(ctx context.Context, id uint, executedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok {
		return errors.New("task not found")
	}
	task.ExecutedCount++
	task.LastExecutedAt = &executedAt
	return nil
}

func (r *memTaskRepo) status(t *testing.T, id uint) models.TaskStatus {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	require.True(t, ok)
	return task.Status
}

func (r *memTaskRepo) executedCount(id uint) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if task, ok := r.tasks[id]; ok {
		return task.ExecutedCount
	}
	return 0
}

func newTestScheduler(t *testing.T, repo *memTaskRepo, dispatch *stubDispatch) *TaskScheduler {
	t.Helper()
	return NewTaskScheduler(repo, dispatch, time.Minute, t.TempDir())
}

func saveTask(t *testing.T, repo *memTaskRepo, task *models.ScheduledTask) uint {
	t.Helper()
	task.Status = models.TaskStatusActive
	if len(task.Contacts) == 0 {
		task.Contacts = pq.StringArray{"+989123456789"}
	}
	if task.Content == "" {
		task.Content = "scheduled hello"
	}
	require.NoError(t, repo.Save(context.Background(), task))
	return task.ID
}

func TestRunOnceExecutesImmediateTask(t *testing.T) {
	repo := newMemTaskRepo()
	dispatch := &stubDispatch{}
	s := newTestScheduler(t, repo, dispatch)

	id := saveTask(t, repo, &models.ScheduledTask{
		Type:     models.TaskTypeImmediate,
		Contacts: pq.StringArray{"+989123456789", "+989123456780"},
		Content:  "run now",
	})

	s.RunOnce(context.Background())

	require.Equal(t, 1, dispatch.sentCount())
	assert.Equal(t, "run now", dispatch.sent[0].Content)
	assert.Len(t, dispatch.sent[0].Numbers, 2)
	assert.Equal(t, 1, repo.executedCount(id))
	assert.Equal(t, models.TaskStatusCompleted, repo.status(t, id))

	// a completed task is not picked up again
	s.RunOnce(context.Background())
	assert.Equal(t, 1, dispatch.sentCount())
}

func TestRunOnceExecutesDueDailyTaskOncePerDay(t *testing.T) {
	repo := newMemTaskRepo()
	dispatch := &stubDispatch{}
	s := newTestScheduler(t, repo, dispatch)

	// anchor clock just passed, so today's run is due immediately
	id := saveTask(t, repo, &models.ScheduledTask{
		Type:     models.TaskTypeDaily,
		SendTime: utils.FormatSendTime(utils.UTCNow().Add(-2 * time.Second)),
	})

	s.RunOnce(context.Background())
	require.Equal(t, 1, dispatch.sentCount())
	assert.Equal(t, 1, repo.executedCount(id))
	assert.Equal(t, models.TaskStatusActive, repo.status(t, id))

	// next run is planned for tomorrow
	s.RunOnce(context.Background())
	assert.Equal(t, 1, dispatch.sentCount())
	next, ok := s.nextRuns[id]
	require.True(t, ok)
	assert.True(t, next.After(utils.UTCNow()))
}

func TestRunOnceSkipsFutureScheduledTask(t *testing.T) {
	repo := newMemTaskRepo()
	dispatch := &stubDispatch{}
	s := newTestScheduler(t, repo, dispatch)

	id := saveTask(t, repo, &models.ScheduledTask{
		Type:     models.TaskTypeScheduled,
		SendTime: utils.FormatSendTime(utils.UTCNow().Add(time.Hour)),
	})

	s.RunOnce(context.Background())
	assert.Equal(t, 0, dispatch.sentCount())
	assert.Equal(t, models.TaskStatusActive, repo.status(t, id))
	assert.Contains(t, s.nextRuns, id)
}

func TestRunOnceCompletesOverdueScheduledTaskWithoutSending(t *testing.T) {
	repo := newMemTaskRepo()
	dispatch := &stubDispatch{}
	s := newTestScheduler(t, repo, dispatch)

	id := saveTask(t, repo, &models.ScheduledTask{
		Type:     models.TaskTypeScheduled,
		SendTime: utils.FormatSendTime(utils.UTCNow().Add(-time.Hour)),
	})

	s.RunOnce(context.Background())
	assert.Equal(t, 0, dispatch.sentCount())
	assert.Equal(t, models.TaskStatusCompleted, repo.status(t, id))
	assert.NotContains(t, s.nextRuns, id)
}

func TestRunOncePrunesInactiveTaskPlans(t *testing.T) {
	repo := newMemTaskRepo()
	dispatch := &stubDispatch{}
	s := newTestScheduler(t, repo, dispatch)

	id := saveTask(t, repo, &models.ScheduledTask{
		Type:     models.TaskTypeScheduled,
		SendTime: utils.FormatSendTime(utils.UTCNow().Add(time.Hour)),
	})

	s.RunOnce(context.Background())
	require.Contains(t, s.nextRuns, id)

	require.NoError(t, repo.UpdateStatus(context.Background(), id, models.TaskStatusPaused))
	s.RunOnce(context.Background())
	assert.NotContains(t, s.nextRuns, id)
}

func TestStartStopsCleanly(t *testing.T) {
	repo := newMemTaskRepo()
	dispatch := &stubDispatch{}
	s := newTestScheduler(t, repo, dispatch)

	id := saveTask(t, repo, &models.ScheduledTask{
		Type:    models.TaskTypeImmediate,
		Content: "startup run",
	})

	stop := s.Start(context.Background())

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && dispatch.sentCount() == 0 {
		time.Sleep(10 * time.Millisecond)
	}
	stop()

	assert.Equal(t, 1, dispatch.sentCount())
	assert.Equal(t, 1, repo.executedCount(id))
}
