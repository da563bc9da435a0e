package businessflow

import (
	"context"
	"fmt"

	"github.com/goleador/traffilink-dispatch/app/dto"
	"github.com/goleador/traffilink-dispatch/models"
	"github.com/goleador/traffilink-dispatch/repository"
	"github.com/goleador/traffilink-dispatch/utils"
)

// TaskFlow manages scheduled send tasks.
type TaskFlow interface {
	CreateTask(ctx context.Context, req *dto.CreateTaskRequest, metadata *ClientMetadata) (*dto.TaskResponse, error)
	GetTask(ctx context.Context, uuid string) (*dto.TaskResponse, error)
	ListTasks(ctx context.Context, req *dto.ListTasksRequest) ([]*dto.TaskResponse, error)
	PauseTask(ctx context.Context, uuid string) (*dto.TaskResponse, error)
	ResumeTask(ctx context.Context, uuid string) (*dto.TaskResponse, error)
	CancelTask(ctx context.Context, uuid string) (*dto.TaskResponse, error)
	DeleteTask(ctx context.Context, uuid string) error
	Statistics(ctx context.Context) (*dto.TaskStatisticsResponse, error)
}

// TaskFlowImpl implements the task management business flow
type TaskFlowImpl struct {
	taskRepo repository.ScheduledTaskRepository
}

// NewTaskFlow creates a new task flow instance
func NewTaskFlow(taskRepo repository.ScheduledTaskRepository) TaskFlow {
	return &TaskFlowImpl{taskRepo: taskRepo}
}

// CreateTask validates and registers a new task. Contacts are validated
// and deduplicated before storage.
func (s *TaskFlowImpl) CreateTask(ctx context.Context, req *dto.CreateTaskRequest, metadata *ClientMetadata) (*dto.TaskResponse, error) {
	// invalid contacts are dropped; the task stores the valid remainder
	contacts, _, _ := utils.PreparePhoneList(req.Contacts)
	if len(contacts) == 0 {
		return nil, NewBusinessError("TASK_VALIDATION_FAILED", "Task has no valid contacts", ErrNoValidNumbers)
	}
	if _, err := utils.ParseSendTime(req.SendTime); err != nil {
		return nil, NewBusinessError("TASK_VALIDATION_FAILED", "Task send time is invalid", ErrInvalidSendTime)
	}
	if req.EndTime != "" {
		if _, err := utils.ParseSendTime(req.EndTime); err != nil {
			return nil, NewBusinessError("TASK_VALIDATION_FAILED", "Task end time is invalid", ErrInvalidSendTime)
		}
	}

	task := &models.ScheduledTask{
		UUID:            newUUID(),
		Type:            models.TaskType(req.Type),
		Contacts:        contacts,
		Content:         utils.SanitizeMessage(req.Content),
		Sender:          req.Sender,
		SendTime:        req.SendTime,
		IntervalSeconds: req.IntervalSeconds,
		EndTime:         req.EndTime,
		Status:          models.TaskStatusActive,
		CreatedAt:       utils.UTCNow(),
	}
	if err := task.Validate(); err != nil {
		return nil, NewBusinessError("TASK_VALIDATION_FAILED", "Task validation failed", fmt.Errorf("%w: %v", ErrTaskInvalid, err))
	}

	if err := s.taskRepo.Save(ctx, task); err != nil {
		return nil, NewBusinessError("TASK_SAVE_FAILED", "Failed to save task", err)
	}
	return taskToResponse(task), nil
}

func (s *TaskFlowImpl) GetTask(ctx context.Context, uuid string) (*dto.TaskResponse, error) {
	task, err := s.findTask(ctx, uuid)
	if err != nil {
		return nil, err
	}
	return taskToResponse(task), nil
}

func (s *TaskFlowImpl) ListTasks(ctx context.Context, req *dto.ListTasksRequest) ([]*dto.TaskResponse, error) {
	filter := models.ScheduledTaskFilter{}
	if req.Status != "" {
		status := models.TaskStatus(req.Status)
		filter.Status = &status
	}
	if req.Type != nil {
		taskType := models.TaskType(*req.Type)
		filter.Type = &taskType
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}
	tasks, err := s.taskRepo.ByFilter(ctx, filter, "created_at DESC", limit, req.Offset)
	if err != nil {
		return nil, NewBusinessError("TASK_LIST_FAILED", "Failed to list tasks", err)
	}
	out := make([]*dto.TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, taskToResponse(task))
	}
	return out, nil
}

func (s *TaskFlowImpl) PauseTask(ctx context.Context, uuid string) (*dto.TaskResponse, error) {
	return s.transition(ctx, uuid, models.TaskStatusPaused, ErrTaskNotActive)
}

func (s *TaskFlowImpl) ResumeTask(ctx context.Context, uuid string) (*dto.TaskResponse, error) {
	return s.transition(ctx, uuid, models.TaskStatusActive, ErrTaskNotPaused)
}

func (s *TaskFlowImpl) CancelTask(ctx context.Context, uuid string) (*dto.TaskResponse, error) {
	return s.transition(ctx, uuid, models.TaskStatusCancelled, ErrTaskTerminal)
}

func (s *TaskFlowImpl) transition(ctx context.Context, uuid string, target models.TaskStatus, denied error) (*dto.TaskResponse, error) {
	task, err := s.findTask(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if !task.Status.CanTransitionTo(target) {
		return nil, NewBusinessErrorf("TASK_TRANSITION_DENIED", "Cannot move task from %s to %s", denied, task.Status, target)
	}
	if err := s.taskRepo.UpdateStatus(ctx, task.ID, target); err != nil {
		return nil, NewBusinessError("TASK_UPDATE_FAILED", "Failed to update task status", err)
	}
	task.Status = target
	return taskToResponse(task), nil
}

func (s *TaskFlowImpl) DeleteTask(ctx context.Context, uuid string) error {
	task, err := s.findTask(ctx, uuid)
	if err != nil {
		return err
	}
	// cancellation is the delete operation; rows are kept for auditing
	if task.Status == models.TaskStatusActive || task.Status == models.TaskStatusPaused {
		if err := s.taskRepo.UpdateStatus(ctx, task.ID, models.TaskStatusCancelled); err != nil {
			return NewBusinessError("TASK_UPDATE_FAILED", "Failed to cancel task", err)
		}
	}
	return nil
}

func (s *TaskFlowImpl) Statistics(ctx context.Context) (*dto.TaskStatisticsResponse, error) {
	out := &dto.TaskStatisticsResponse{
		ByStatus: make(map[string]int64),
		ByType:   make(map[string]int64),
	}
	for _, status := range []models.TaskStatus{models.TaskStatusActive, models.TaskStatusPaused, models.TaskStatusCompleted, models.TaskStatusCancelled} {
		st := status
		count, err := s.taskRepo.Count(ctx, models.ScheduledTaskFilter{Status: &st})
		if err != nil {
			return nil, NewBusinessError("TASK_STATS_FAILED", "Failed to count tasks", err)
		}
		out.ByStatus[string(status)] = count
		out.Total += count
	}
	for t := models.TaskTypeImmediate; t <= models.TaskTypeMonthly; t++ {
		taskType := t
		count, err := s.taskRepo.Count(ctx, models.ScheduledTaskFilter{Type: &taskType})
		if err != nil {
			return nil, NewBusinessError("TASK_STATS_FAILED", "Failed to count tasks", err)
		}
		out.ByType[t.String()] = count
	}
	tasks, err := s.taskRepo.ByFilter(ctx, models.ScheduledTaskFilter{}, "", 0, 0)
	if err != nil {
		return nil, NewBusinessError("TASK_STATS_FAILED", "Failed to load tasks", err)
	}
	for _, task := range tasks {
		out.TotalExecutions += int64(task.ExecutedCount)
	}
	return out, nil
}

func (s *TaskFlowImpl) findTask(ctx context.Context, uuid string) (*models.ScheduledTask, error) {
	task, err := s.taskRepo.ByUUID(ctx, uuid)
	if err != nil {
		return nil, NewBusinessError("TASK_LOOKUP_FAILED", "Failed to lookup task", err)
	}
	if task == nil {
		return nil, NewBusinessError("TASK_NOT_FOUND", "Task not found", ErrTaskNotFound)
	}
	return task, nil
}

func taskToResponse(task *models.ScheduledTask) *dto.TaskResponse {
	return &dto.TaskResponse{
		UUID:            task.UUID,
		Type:            task.Type.String(),
		Status:          string(task.Status),
		Contacts:        task.Contacts,
		Content:         task.Content,
		Sender:          task.Sender,
		SendTime:        task.SendTime,
		IntervalSeconds: task.IntervalSeconds,
		EndTime:         task.EndTime,
		ExecutedCount:   task.ExecutedCount,
		LastExecutedAt:  task.LastExecutedAt,
		CreatedAt:       task.CreatedAt,
	}
}
