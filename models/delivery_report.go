package models

import "time"

// DeliveryReport stores a per-recipient delivery status fetched from the provider
type DeliveryReport struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	BatchID      string     `gorm:"size:64;not null;index:idx_delivery_reports_batch_id" json:"batch_id"`
	Number       string     `gorm:"size:20;not null;index:idx_delivery_reports_number" json:"number"`
	Status       SMSStatus  `gorm:"type:varchar(20);not null;index:idx_delivery_reports_status" json:"status"`
	ErrorCode    *int       `json:"error_code,omitempty"`
	ErrorMessage *string    `gorm:"type:text" json:"error_message,omitempty"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty"`
	CreatedAt    time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (DeliveryReport) TableName() string { return "delivery_reports" }

// DeliveryReportFilter provides filter fields for repository queries
type DeliveryReportFilter struct {
	ID            *uint
	BatchID       *string
	Number        *string
	Status        *SMSStatus
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// IncomingSMS stores a message received on one of the account's lines
type IncomingSMS struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ProviderID string    `gorm:"size:64;uniqueIndex;not null" json:"provider_id"`
	From       string    `gorm:"size:20;not null;index:idx_incoming_sms_from" json:"from"`
	To         string    `gorm:"size:20;not null" json:"to"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	ReceivedAt time.Time `gorm:"not null;index:idx_incoming_sms_received_at" json:"received_at"`
	CreatedAt  time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (IncomingSMS) TableName() string { return "incoming_sms" }

// IncomingSMSFilter provides filter fields for repository queries
type IncomingSMSFilter struct {
	ID             *uint
	ProviderID     *string
	From           *string
	ReceivedAfter  *time.Time
	ReceivedBefore *time.Time
}
