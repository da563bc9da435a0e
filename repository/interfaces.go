// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/goleador/traffilink-dispatch/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Update(ctx context.Context, entity *T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// SMSRecordRepository defines operations for dispatched SMS records
type SMSRecordRepository interface {
	Repository[models.SMSRecord, models.SMSRecordFilter]
	ByUUID(ctx context.Context, uuid string) (*models.SMSRecord, error)
	ListByBatch(ctx context.Context, batchID string) ([]*models.SMSRecord, error)
	IncrementDeliveryCounters(ctx context.Context, batchID string, delivered, failed int) error
}

// DeliveryReportRepository defines operations for delivery reports
type DeliveryReportRepository interface {
	Repository[models.DeliveryReport, models.DeliveryReportFilter]
	ListByBatch(ctx context.Context, batchID string) ([]*models.DeliveryReport, error)
	UpsertBatch(ctx context.Context, reports []*models.DeliveryReport) error
}

// IncomingSMSRepository defines operations for received messages
type IncomingSMSRepository interface {
	Repository[models.IncomingSMS, models.IncomingSMSFilter]
	ByProviderID(ctx context.Context, providerID string) (*models.IncomingSMS, error)
	ListRecent(ctx context.Context, limit int) ([]*models.IncomingSMS, error)
}

// ScheduledTaskRepository defines operations for scheduled tasks
type ScheduledTaskRepository interface {
	Repository[models.ScheduledTask, models.ScheduledTaskFilter]
	ByUUID(ctx context.Context, uuid string) (*models.ScheduledTask, error)
	ListByStatus(ctx context.Context, status models.TaskStatus) ([]*models.ScheduledTask, error)
	UpdateStatus(ctx context.Context, id uint, status models.TaskStatus) error
	MarkExecuted(ctx context.Context, id uint, executedAt time.Time) error
}

// CampaignRepository defines operations for template campaigns
type CampaignRepository interface {
	Repository[models.Campaign, models.CampaignFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Campaign, error)
	ByUUIDWithContacts(ctx context.Context, uuid string) (*models.Campaign, error)
	SaveContacts(ctx context.Context, contacts []*models.CampaignContact) error
	UpdateContact(ctx context.Context, contact *models.CampaignContact) error
}

// TransactionLogRepository defines operations for the operation audit log
type TransactionLogRepository interface {
	Repository[models.TransactionLog, models.TransactionLogFilter]
	ListRecent(ctx context.Context, limit int) ([]*models.TransactionLog, error)
}
