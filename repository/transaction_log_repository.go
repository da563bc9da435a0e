package repository

import (
	"context"

	"github.com/goleador/traffilink-dispatch/models"
	"gorm.io/gorm"
)

// TransactionLogRepositoryImpl implements TransactionLogRepository
type TransactionLogRepositoryImpl struct {
	*BaseRepository[models.TransactionLog, models.TransactionLogFilter]
}

func NewTransactionLogRepository(db *gorm.DB) TransactionLogRepository {
	return &TransactionLogRepositoryImpl{BaseRepository: NewBaseRepository[models.TransactionLog, models.TransactionLogFilter](db)}
}

func (r *TransactionLogRepositoryImpl) ListRecent(ctx context.Context, limit int) ([]*models.TransactionLog, error) {
	return r.ByFilter(ctx, models.TransactionLogFilter{}, "created_at DESC", limit, 0)
}

func (r *TransactionLogRepositoryImpl) applyFilter(db *gorm.DB, f models.TransactionLogFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.Operation != nil {
		db = db.Where("operation = ?", *f.Operation)
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

func (r *TransactionLogRepositoryImpl) ByFilter(ctx context.Context, filter models.TransactionLogFilter, orderBy string, limit, offset int) ([]*models.TransactionLog, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.TransactionLog{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.TransactionLog
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *TransactionLogRepositoryImpl) Count(ctx context.Context, filter models.TransactionLogFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.TransactionLog{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *TransactionLogRepositoryImpl) Exists(ctx context.Context, filter models.TransactionLogFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
