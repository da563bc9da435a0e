package repository

import (
	"context"
	"errors"

	"github.com/goleador/traffilink-dispatch/models"
	"gorm.io/gorm"
)

// SMSRecordRepositoryImpl implements SMSRecordRepository
type SMSRecordRepositoryImpl struct {
	*BaseRepository[models.SMSRecord, models.SMSRecordFilter]
}

func NewSMSRecordRepository(db *gorm.DB) SMSRecordRepository {
	return &SMSRecordRepositoryImpl{BaseRepository: NewBaseRepository[models.SMSRecord, models.SMSRecordFilter](db)}
}

func (r *SMSRecordRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.SMSRecord, error) {
	db := r.getDB(ctx)
	var row models.SMSRecord
	if err := db.Where("uuid = ?", uuid).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *SMSRecordRepositoryImpl) ListByBatch(ctx context.Context, batchID string) ([]*models.SMSRecord, error) {
	filter := models.SMSRecordFilter{BatchID: &batchID}
	return r.ByFilter(ctx, filter, "id ASC", 0, 0)
}

// IncrementDeliveryCounters adds to the delivered and failed counters of
// every record in a batch without racing concurrent report fetches.
func (r *SMSRecordRepositoryImpl) IncrementDeliveryCounters(ctx context.Context, batchID string, delivered, failed int) error {
	db := r.getDB(ctx)
	return db.Model(&models.SMSRecord{}).
		Where("batch_id = ?", batchID).
		UpdateColumns(map[string]any{
			"delivered_count": gorm.Expr("delivered_count + ?", delivered),
			"failed_count":    gorm.Expr("failed_count + ?", failed),
		}).Error
}

func (r *SMSRecordRepositoryImpl) applyFilter(db *gorm.DB, f models.SMSRecordFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.BatchID != nil {
		db = db.Where("batch_id = ?", *f.BatchID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.Sender != nil {
		db = db.Where("sender = ?", *f.Sender)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *SMSRecordRepositoryImpl) ByFilter(ctx context.Context, filter models.SMSRecordFilter, orderBy string, limit, offset int) ([]*models.SMSRecord, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.SMSRecord{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.SMSRecord
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *SMSRecordRepositoryImpl) Count(ctx context.Context, filter models.SMSRecordFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.SMSRecord{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *SMSRecordRepositoryImpl) Exists(ctx context.Context, filter models.SMSRecordFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
