// Package businessflow contains the business logic for the application.
package businessflow

import (
	"github.com/goleador/traffilink-dispatch/models"
	"github.com/goleador/traffilink-dispatch/repository"
	"github.com/goleador/traffilink-dispatch/utils"
	"github.com/google/uuid"
)

func newUUID() string {
	return uuid.New().String()
}

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds client-related information for audit logging
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// newTransactionLog builds an audit entry for a provider-facing operation.
func newTransactionLog(operation string, smsCount int, balanceChange float64, status models.TransactionStatus, notes string) *models.TransactionLog {
	entry := &models.TransactionLog{
		UUID:          newUUID(),
		Operation:     operation,
		SMSCount:      smsCount,
		BalanceChange: balanceChange,
		Status:        status,
		CreatedAt:     utils.UTCNow(),
	}
	if notes != "" {
		entry.Notes = &notes
	}
	return entry
}

// Repos bundles the repositories shared by the flows.
type Repos struct {
	SMSRecords      repository.SMSRecordRepository
	DeliveryReports repository.DeliveryReportRepository
	IncomingSMS     repository.IncomingSMSRepository
	Tasks           repository.ScheduledTaskRepository
	Campaigns       repository.CampaignRepository
	Transactions    repository.TransactionLogRepository
}
