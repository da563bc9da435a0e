package models

import "time"

// TransactionStatus enumerates the outcome of a logged operation
type TransactionStatus string

const (
	TransactionStatusSuccess TransactionStatus = "success"
	TransactionStatusFailed  TransactionStatus = "failed"
)

// TransactionLog records one provider-facing operation for auditing
type TransactionLog struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	UUID          string            `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`
	Operation     string            `gorm:"size:50;not null;index:idx_transaction_logs_operation" json:"operation"`
	SMSCount      int               `gorm:"not null;default:0" json:"sms_count"`
	BalanceChange float64           `gorm:"not null;default:0" json:"balance_change"`
	Status        TransactionStatus `gorm:"type:varchar(20);not null;default:'success'" json:"status"`
	Notes         *string           `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt     time.Time         `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_transaction_logs_created_at" json:"created_at"`
}

func (TransactionLog) TableName() string { return "transaction_logs" }

// TransactionLogFilter provides filter fields for repository queries
type TransactionLogFilter struct {
	ID            *uint
	UUID          *string
	Operation     *string
	Status        *TransactionStatus
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
