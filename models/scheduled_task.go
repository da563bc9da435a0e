package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// TaskType enumerates the scheduling modes for a task
type TaskType int

const (
	TaskTypeImmediate TaskType = 0
	TaskTypeScheduled TaskType = 1
	TaskTypeInterval  TaskType = 2
	TaskTypeDaily     TaskType = 3
	TaskTypeWeekly    TaskType = 4
	TaskTypeMonthly   TaskType = 5
)

// Valid reports whether the task type is a known value
func (t TaskType) Valid() bool {
	return t >= TaskTypeImmediate && t <= TaskTypeMonthly
}

// IsRecurring reports whether the task repeats after execution
func (t TaskType) IsRecurring() bool {
	switch t {
	case TaskTypeInterval, TaskTypeDaily, TaskTypeWeekly, TaskTypeMonthly:
		return true
	}
	return false
}

// String returns the display name of the task type
func (t TaskType) String() string {
	switch t {
	case TaskTypeImmediate:
		return "immediate"
	case TaskTypeScheduled:
		return "scheduled"
	case TaskTypeInterval:
		return "interval"
	case TaskTypeDaily:
		return "daily"
	case TaskTypeWeekly:
		return "weekly"
	case TaskTypeMonthly:
		return "monthly"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// TaskStatus enumerates the lifecycle of a scheduled task
type TaskStatus string

const (
	TaskStatusActive    TaskStatus = "active"
	TaskStatusPaused    TaskStatus = "paused"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Scan implements the sql.Scanner interface
func (s *TaskStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*s = TaskStatus(v)
	case []byte:
		*s = TaskStatus(v)
	default:
		return fmt.Errorf("cannot scan %T into TaskStatus", value)
	}
	return nil
}

// Value implements the driver.Valuer interface
func (s TaskStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// Valid reports whether the status is a known value
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusActive, TaskStatusPaused, TaskStatusCompleted, TaskStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether a status change is allowed. Completed
// and cancelled are terminal.
func (s TaskStatus) CanTransitionTo(target TaskStatus) bool {
	switch s {
	case TaskStatusActive:
		return target == TaskStatusPaused || target == TaskStatusCompleted || target == TaskStatusCancelled
	case TaskStatusPaused:
		return target == TaskStatusActive || target == TaskStatusCancelled
	default:
		return false
	}
}

// ScheduledTask stores a one-shot or recurring send task
type ScheduledTask struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	UUID            string         `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`
	Type            TaskType       `gorm:"not null;index:idx_scheduled_tasks_type" json:"type"`
	Contacts        pq.StringArray `gorm:"type:text[];not null" json:"contacts"`
	Content         string         `gorm:"type:text;not null" json:"content"`
	Sender          string         `gorm:"size:20" json:"sender,omitempty"`
	SendTime        string         `gorm:"size:14" json:"send_time,omitempty"`
	IntervalSeconds int            `gorm:"not null;default:0" json:"interval_seconds,omitempty"`
	EndTime         string         `gorm:"size:14" json:"end_time,omitempty"`
	Status          TaskStatus     `gorm:"type:varchar(20);not null;default:'active';index:idx_scheduled_tasks_status" json:"status"`
	ExecutedCount   int            `gorm:"not null;default:0" json:"executed_count"`
	LastExecutedAt  *time.Time     `json:"last_executed_at,omitempty"`
	CreatedAt       time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_scheduled_tasks_created_at" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (ScheduledTask) TableName() string { return "scheduled_tasks" }

// Validate checks the task's structural invariants.
func (t *ScheduledTask) Validate() error {
	if !t.Type.Valid() {
		return fmt.Errorf("unknown task type %d", int(t.Type))
	}
	if len(t.Contacts) == 0 {
		return fmt.Errorf("task has no contacts")
	}
	if t.Content == "" {
		return fmt.Errorf("task has no content")
	}
	switch t.Type {
	case TaskTypeScheduled, TaskTypeDaily, TaskTypeWeekly, TaskTypeMonthly:
		if t.SendTime == "" {
			return fmt.Errorf("%s task requires a send time", t.Type)
		}
	case TaskTypeInterval:
		if t.IntervalSeconds <= 0 {
			return fmt.Errorf("interval task requires a positive interval")
		}
	}
	return nil
}

// ScheduledTaskFilter provides filter fields for repository queries
type ScheduledTaskFilter struct {
	ID            *uint
	UUID          *string
	Type          *TaskType
	Status        *TaskStatus
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
