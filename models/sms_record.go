package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// SMSStatus enumerates the lifecycle of an outbound SMS record
type SMSStatus string

const (
	SMSStatusPending     SMSStatus = "pending"
	SMSStatusSent        SMSStatus = "sent"
	SMSStatusFailed      SMSStatus = "failed"
	SMSStatusDelivered   SMSStatus = "delivered"
	SMSStatusUndelivered SMSStatus = "undelivered"
)

// Scan implements the sql.Scanner interface
func (s *SMSStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*s = SMSStatus(v)
	case []byte:
		*s = SMSStatus(v)
	default:
		return fmt.Errorf("cannot scan %T into SMSStatus", value)
	}
	return nil
}

// Value implements the driver.Valuer interface
func (s SMSStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// Valid reports whether the status is a known value
func (s SMSStatus) Valid() bool {
	switch s {
	case SMSStatusPending, SMSStatusSent, SMSStatusFailed, SMSStatusDelivered, SMSStatusUndelivered:
		return true
	}
	return false
}

// SMSRecord stores one dispatched message fragment and its recipients
type SMSRecord struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	UUID           string         `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`
	BatchID        string         `gorm:"size:64;index:idx_sms_records_batch_id" json:"batch_id"`
	Numbers        pq.StringArray `gorm:"type:text[];not null" json:"numbers"`
	Content        string         `gorm:"type:text;not null" json:"content"`
	Sender         string         `gorm:"size:20" json:"sender,omitempty"`
	SendTime       string         `gorm:"size:14" json:"send_time,omitempty"`
	Status         SMSStatus      `gorm:"type:varchar(20);not null;default:'pending';index:idx_sms_records_status" json:"status"`
	ErrorCode      *int           `json:"error_code,omitempty"`
	ErrorMessage   *string        `gorm:"type:text" json:"error_message,omitempty"`
	SentAt         *time.Time     `json:"sent_at,omitempty"`
	DeliveredCount int            `gorm:"not null;default:0" json:"delivered_count"`
	FailedCount    int            `gorm:"not null;default:0" json:"failed_count"`
	CreatedAt      time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_sms_records_created_at" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (SMSRecord) TableName() string { return "sms_records" }

// SMSRecordFilter provides filter fields for repository queries
type SMSRecordFilter struct {
	ID            *uint
	UUID          *string
	BatchID       *string
	Status        *SMSStatus
	Sender        *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
