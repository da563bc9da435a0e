package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goleador/traffilink-dispatch/models"
	"github.com/goleador/traffilink-dispatch/utils"
	"gorm.io/gorm"
)

// ScheduledTaskRepositoryImpl implements ScheduledTaskRepository
type ScheduledTaskRepositoryImpl struct {
	*BaseRepository[models.ScheduledTask, models.ScheduledTaskFilter]
}

func NewScheduledTaskRepository(db *gorm.DB) ScheduledTaskRepository {
	return &ScheduledTaskRepositoryImpl{BaseRepository: NewBaseRepository[models.ScheduledTask, models.ScheduledTaskFilter](db)}
}

func (r *ScheduledTaskRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.ScheduledTask, error) {
	db := r.getDB(ctx)
	var row models.ScheduledTask
	if err := db.Where("uuid = ?", uuid).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *ScheduledTaskRepositoryImpl) ListByStatus(ctx context.Context, status models.TaskStatus) ([]*models.ScheduledTask, error) {
	filter := models.ScheduledTaskFilter{Status: &status}
	return r.ByFilter(ctx, filter, "id ASC", 0, 0)
}

func (r *ScheduledTaskRepositoryImpl) UpdateStatus(ctx context.Context, id uint, status models.TaskStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid task status %q", status)
	}
	db := r.getDB(ctx)
	return db.Model(&models.ScheduledTask{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"status":     status,
			"updated_at": utils.UTCNow(),
		}).Error
}

// MarkExecuted bumps the executed counter and the last execution time in
// a single statement so concurrent ticks never lose an increment.
func (r *ScheduledTaskRepositoryImpl) MarkExecuted(ctx context.Context, id uint, executedAt time.Time) error {
	db := r.getDB(ctx)
	return db.Model(&models.ScheduledTask{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"executed_count":   gorm.Expr("executed_count + 1"),
			"last_executed_at": executedAt,
			"updated_at":       utils.UTCNow(),
		}).Error
}

func (r *ScheduledTaskRepositoryImpl) applyFilter(db *gorm.DB, f models.ScheduledTaskFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.Type != nil {
		db = db.Where("type = ?", *f.Type)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *ScheduledTaskRepositoryImpl) ByFilter(ctx context.Context, filter models.ScheduledTaskFilter, orderBy string, limit, offset int) ([]*models.ScheduledTask, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ScheduledTask{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.ScheduledTask
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ScheduledTaskRepositoryImpl) Count(ctx context.Context, filter models.ScheduledTaskFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ScheduledTask{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ScheduledTaskRepositoryImpl) Exists(ctx context.Context, filter models.ScheduledTaskFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
