package repository

import (
	"context"
	"errors"

	"github.com/goleador/traffilink-dispatch/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeliveryReportRepositoryImpl implements DeliveryReportRepository
type DeliveryReportRepositoryImpl struct {
	*BaseRepository[models.DeliveryReport, models.DeliveryReportFilter]
}

func NewDeliveryReportRepository(db *gorm.DB) DeliveryReportRepository {
	return &DeliveryReportRepositoryImpl{BaseRepository: NewBaseRepository[models.DeliveryReport, models.DeliveryReportFilter](db)}
}

func (r *DeliveryReportRepositoryImpl) ListByBatch(ctx context.Context, batchID string) ([]*models.DeliveryReport, error) {
	filter := models.DeliveryReportFilter{BatchID: &batchID}
	return r.ByFilter(ctx, filter, "id ASC", 0, 0)
}

// UpsertBatch inserts reports, updating status and timestamps when a
// report for the same batch and number already exists.
func (r *DeliveryReportRepositoryImpl) UpsertBatch(ctx context.Context, reports []*models.DeliveryReport) error {
	if len(reports) == 0 {
		return nil
	}
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "batch_id"}, {Name: "number"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "error_code", "error_message", "delivered_at", "updated_at"}),
	}).CreateInBatches(reports, 100).Error
	return err
}

func (r *DeliveryReportRepositoryImpl) applyFilter(db *gorm.DB, f models.DeliveryReportFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.BatchID != nil {
		db = db.Where("batch_id = ?", *f.BatchID)
	}
	if f.Number != nil {
		db = db.Where("number = ?", *f.Number)
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

func (r *DeliveryReportRepositoryImpl) ByFilter(ctx context.Context, filter models.DeliveryReportFilter, orderBy string, limit, offset int) ([]*models.DeliveryReport, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.DeliveryReport{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.DeliveryReport
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *DeliveryReportRepositoryImpl) Count(ctx context.Context, filter models.DeliveryReportFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.DeliveryReport{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *DeliveryReportRepositoryImpl) Exists(ctx context.Context, filter models.DeliveryReportFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// IncomingSMSRepositoryImpl implements IncomingSMSRepository
type IncomingSMSRepositoryImpl struct {
	*BaseRepository[models.IncomingSMS, models.IncomingSMSFilter]
}

func NewIncomingSMSRepository(db *gorm.DB) IncomingSMSRepository {
	return &IncomingSMSRepositoryImpl{BaseRepository: NewBaseRepository[models.IncomingSMS, models.IncomingSMSFilter](db)}
}

func (r *IncomingSMSRepositoryImpl) ByProviderID(ctx context.Context, providerID string) (*models.IncomingSMS, error) {
	db := r.getDB(ctx)
	var row models.IncomingSMS
	if err := db.Where("provider_id = ?", providerID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *IncomingSMSRepositoryImpl) ListRecent(ctx context.Context, limit int) ([]*models.IncomingSMS, error) {
	return r.ByFilter(ctx, models.IncomingSMSFilter{}, "received_at DESC", limit, 0)
}

func (r *IncomingSMSRepositoryImpl) applyFilter(db *gorm.DB, f models.IncomingSMSFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.ProviderID != nil {
		db = db.Where("provider_id = ?", *f.ProviderID)
	}
	if f.From != nil {
		db = db.Where("\"from\" = ?", *f.From)
	}
	if f.ReceivedAfter != nil {
		db = db.Where("received_at >= ?", *f.ReceivedAfter)
	}
	if f.ReceivedBefore != nil {
		db = db.Where("received_at < ?", *f.ReceivedBefore)
	}
	return db
}

func (r *IncomingSMSRepositoryImpl) ByFilter(ctx context.Context, filter models.IncomingSMSFilter, orderBy string, limit, offset int) ([]*models.IncomingSMS, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.IncomingSMS{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.IncomingSMS
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *IncomingSMSRepositoryImpl) Count(ctx context.Context, filter models.IncomingSMSFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.IncomingSMS{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *IncomingSMSRepositoryImpl) Exists(ctx context.Context, filter models.IncomingSMSFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
