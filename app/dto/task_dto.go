package dto

import "time"

// CreateTaskRequest registers a one-shot or recurring send task
type CreateTaskRequest struct {
	Type            int      `json:"type" validate:"min=0,max=5"`
	Contacts        []string `json:"contacts" validate:"required,min=1"`
	Content         string   `json:"content" validate:"required"`
	Sender          string   `json:"sender,omitempty"`
	SendTime        string   `json:"send_time,omitempty"`
	IntervalSeconds int      `json:"interval_seconds,omitempty"`
	EndTime         string   `json:"end_time,omitempty"`
}

// TaskResponse is one scheduled task
type TaskResponse struct {
	UUID            string     `json:"uuid"`
	Type            string     `json:"type"`
	Status          string     `json:"status"`
	Contacts        []string   `json:"contacts"`
	Content         string     `json:"content"`
	Sender          string     `json:"sender,omitempty"`
	SendTime        string     `json:"send_time,omitempty"`
	IntervalSeconds int        `json:"interval_seconds,omitempty"`
	EndTime         string     `json:"end_time,omitempty"`
	ExecutedCount   int        `json:"executed_count"`
	LastExecutedAt  *time.Time `json:"last_executed_at,omitempty"`
	NextExecutionAt *time.Time `json:"next_execution_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ListTasksRequest filters the task listing
type ListTasksRequest struct {
	Status string `json:"status,omitempty" validate:"omitempty,oneof=active paused completed cancelled"`
	Type   *int   `json:"type,omitempty" validate:"omitempty,min=0,max=5"`
	Limit  int    `json:"limit,omitempty" validate:"omitempty,min=1,max=500"`
	Offset int    `json:"offset,omitempty" validate:"omitempty,min=0"`
}

// TaskStatisticsResponse summarizes tasks by status and type
type TaskStatisticsResponse struct {
	Total           int64            `json:"total"`
	ByStatus        map[string]int64 `json:"by_status"`
	ByType          map[string]int64 `json:"by_type"`
	TotalExecutions int64            `json:"total_executions"`
}
