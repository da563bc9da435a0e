package scheduler

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/goleador/traffilink-dispatch/app/dto"
	businessflow "github.com/goleador/traffilink-dispatch/business_flow"
	"github.com/goleador/traffilink-dispatch/models"
	"github.com/goleador/traffilink-dispatch/repository"
	"github.com/goleador/traffilink-dispatch/utils"
)

var taskExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "scheduler_task_executions_total",
	Help: "Task executions by task type",
}, []string{"type"})

// TaskScheduler polls for active tasks and executes the due ones.
type TaskScheduler struct {
	taskRepo repository.ScheduledTaskRepository
	dispatch businessflow.DispatchFlow
	interval time.Duration
	logger   *log.Logger

	// nextRuns pins the planned execution time per task between ticks
	nextRuns map[uint]time.Time
}

// NewTaskScheduler creates a scheduler. A non-positive interval falls
// back to the default poll interval.
func NewTaskScheduler(
	taskRepo repository.ScheduledTaskRepository,
	dispatch businessflow.DispatchFlow,
	interval time.Duration,
	logDir string,
) *TaskScheduler {
	if interval <= 0 {
		interval = utils.DefaultSchedulerPollInterval
	}
	s := &TaskScheduler{
		taskRepo: taskRepo,
		dispatch: dispatch,
		interval: interval,
		nextRuns: make(map[uint]time.Time),
	}
	s.initLogger(logDir)
	return s
}

// initLogger configures a logger writing to stdout and a rotated file.
func (s *TaskScheduler) initLogger(logDir string) {
	if logDir == "" {
		logDir = "data"
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		s.logger = log.Default()
		s.logger.Printf("scheduler: failed to create log dir %s: %v", logDir, err)
		return
	}
	rotated := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "scheduler.log"),
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
	mw := io.MultiWriter(os.Stdout, rotated)
	// log.Logger is goroutine-safe; include timestamps with microseconds and UTC
	s.logger = log.New(mw, "scheduler ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
}

// Start launches the scheduler loop in a background goroutine and returns a stop function
func (s *TaskScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.RunOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()

	return cancel
}

// RunOnce performs a single poll: it loads active tasks, plans
// executions for new ones and runs everything that is due.
func (s *TaskScheduler) RunOnce(ctx context.Context) {
	now := utils.UTCNow()

	tasks, err := s.taskRepo.ListByStatus(ctx, models.TaskStatusActive)
	if err != nil {
		s.logger.Printf("scheduler: list active tasks failed: %v", err)
		return
	}

	// drop plans for tasks that are no longer active
	active := make(map[uint]struct{}, len(tasks))
	for _, task := range tasks {
		active[task.ID] = struct{}{}
	}
	for id := range s.nextRuns {
		if _, ok := active[id]; !ok {
			delete(s.nextRuns, id)
		}
	}

	for _, task := range tasks {
		next, planned := s.nextRuns[task.ID]
		if !planned {
			computed, ok := NextExecutionTime(task, now)
			if !ok {
				// nothing left to run for this task
				s.complete(ctx, task)
				continue
			}
			s.nextRuns[task.ID] = computed
			next = computed
		}

		if next.After(now) {
			continue
		}
		s.execute(ctx, task, now)
	}
}

func (s *TaskScheduler) execute(ctx context.Context, task *models.ScheduledTask, now time.Time) {
	s.logger.Printf("scheduler: executing task %s (%s, %d contacts)", task.UUID, task.Type, len(task.Contacts))

	_, err := s.dispatch.Send(ctx, &dto.SendSMSRequest{
		Numbers: task.Contacts,
		Content: task.Content,
		Sender:  task.Sender,
	}, nil)
	if err != nil {
		s.logger.Printf("scheduler: task %s send failed: %v", task.UUID, err)
	}

	if err := s.taskRepo.MarkExecuted(ctx, task.ID, now); err != nil {
		s.logger.Printf("scheduler: task %s mark executed failed: %v", task.UUID, err)
	}
	taskExecutionsTotal.WithLabelValues(task.Type.String()).Inc()

	if !task.Type.IsRecurring() {
		s.complete(ctx, task)
		return
	}

	next, ok := NextExecutionTime(task, now)
	if !ok {
		s.complete(ctx, task)
		return
	}
	s.nextRuns[task.ID] = next
	s.logger.Printf("scheduler: task %s next execution at %s", task.UUID, next.Format(time.RFC3339))
}

func (s *TaskScheduler) complete(ctx context.Context, task *models.ScheduledTask) {
	delete(s.nextRuns, task.ID)
	if err := s.taskRepo.UpdateStatus(ctx, task.ID, models.TaskStatusCompleted); err != nil {
		s.logger.Printf("scheduler: task %s complete failed: %v", task.UUID, err)
		return
	}
	s.logger.Printf("scheduler: task %s completed", task.UUID)
}

// Interval exposes the poll interval, mainly for logging at startup.
func (s *TaskScheduler) Interval() time.Duration { return s.interval }
