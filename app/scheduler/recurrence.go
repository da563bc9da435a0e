// Package scheduler
package scheduler

import (
	"time"

	"github.com/goleador/traffilink-dispatch/models"
	"github.com/goleador/traffilink-dispatch/utils"
)

// NextExecutionTime computes when a task should run next, relative to
// now. The second return value is false when the task has no further
// execution (overdue one-shots, or the end time has been reached).
//
// The per-type rules are deliberate:
//   - interval tasks re-anchor from now, so drift accumulates;
//   - daily tasks fire at the anchor's clock time, today or tomorrow;
//   - weekly tasks use anchor+7d regardless of past executions;
//   - monthly tasks use anchor month+1, falling back to anchor+30d
//     when the day does not exist in the target month.
func NextExecutionTime(task *models.ScheduledTask, now time.Time) (time.Time, bool) {
	now = now.UTC()
	anchor, err := utils.ParseSendTime(task.SendTime)
	if err != nil {
		return time.Time{}, false
	}

	var next time.Time
	switch task.Type {
	case models.TaskTypeImmediate:
		next = now

	case models.TaskTypeScheduled:
		if !anchor.After(now) {
			return time.Time{}, false
		}
		next = anchor

	case models.TaskTypeInterval:
		next = now.Add(time.Duration(task.IntervalSeconds) * time.Second)

	case models.TaskTypeDaily:
		next = time.Date(now.Year(), now.Month(), now.Day(),
			anchor.Hour(), anchor.Minute(), anchor.Second(), 0, time.UTC)
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}

	case models.TaskTypeWeekly:
		next = anchor.AddDate(0, 0, 7)

	case models.TaskTypeMonthly:
		next = anchor.AddDate(0, 1, 0)
		// AddDate normalizes day overflow (Jan 31 -> Mar 2/3); the
		// fallback for such months is a flat 30 days instead
		if next.Day() != anchor.Day() {
			next = anchor.AddDate(0, 0, 30)
		}

	default:
		return time.Time{}, false
	}

	if task.EndTime != "" {
		end, err := utils.ParseSendTime(task.EndTime)
		if err != nil {
			return time.Time{}, false
		}
		if !end.IsZero() && !next.Before(end) {
			return time.Time{}, false
		}
	}
	return next, true
}
