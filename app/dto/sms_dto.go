package dto

import (
	"time"

	"github.com/goleador/traffilink-dispatch/utils"
)

// ProcessOptionsDTO selects message transformations for a send request
type ProcessOptionsDTO struct {
	NormalizeAccents   bool              `json:"normalize_accents"`
	RemoveSpecialChars bool              `json:"remove_special_chars"`
	RemoveEmojis       bool              `json:"remove_emojis"`
	ShortenURLs        bool              `json:"shorten_urls"`
	Prefix             string            `json:"prefix,omitempty"`
	Suffix             string            `json:"suffix,omitempty"`
	Variables          map[string]string `json:"variables,omitempty"`
	UnsubscribeCode    string            `json:"unsubscribe_code,omitempty"`
}

// SendSMSRequest dispatches a message to a list of recipients
type SendSMSRequest struct {
	Numbers  []string           `json:"numbers" validate:"required,min=1"`
	Content  string             `json:"content" validate:"required"`
	Sender   string             `json:"sender,omitempty"`
	SendTime string             `json:"send_time,omitempty"`
	Options  *ProcessOptionsDTO `json:"options,omitempty"`
}

// SendSMSResponse reports the outcome of a dispatch
type SendSMSResponse struct {
	SMSIDs            []string              `json:"sms_ids"`
	BatchIDs          []string              `json:"batch_ids"`
	Fragments         int                   `json:"fragments"`
	Recipients        int                   `json:"recipients"`
	InvalidNumbers    []utils.InvalidNumber `json:"invalid_numbers,omitempty"`
	DuplicatesRemoved int                   `json:"duplicates_removed"`
	SentBatches       int                   `json:"sent_batches"`
	FailedBatches     int                   `json:"failed_batches"`
}

// EnqueueSMSRequest queues a message with a priority
type EnqueueSMSRequest struct {
	SendSMSRequest
	Priority string `json:"priority,omitempty" validate:"omitempty,oneof=urgent high normal low"`
}

// EnqueueSMSResponse acknowledges a queued message
type EnqueueSMSResponse struct {
	ItemID   string `json:"item_id"`
	Priority string `json:"priority"`
	Depth    int    `json:"depth"`
}

// SMSRecordResponse is one stored SMS record
type SMSRecordResponse struct {
	UUID           string                   `json:"uuid"`
	BatchID        string                   `json:"batch_id,omitempty"`
	Numbers        []string                 `json:"numbers"`
	Content        string                   `json:"content"`
	Sender         string                   `json:"sender,omitempty"`
	Status         string                   `json:"status"`
	ErrorCode      *int                     `json:"error_code,omitempty"`
	ErrorMessage   *string                  `json:"error_message,omitempty"`
	SentAt         *time.Time               `json:"sent_at,omitempty"`
	DeliveredCount int                      `json:"delivered_count"`
	FailedCount    int                      `json:"failed_count"`
	CreatedAt      time.Time                `json:"created_at"`
	Reports        []DeliveryReportResponse `json:"reports,omitempty"`
}

// DeliveryReportResponse is one per-recipient delivery status
type DeliveryReportResponse struct {
	Number       string     `json:"number"`
	Status       string     `json:"status"`
	ErrorCode    *int       `json:"error_code,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty"`
}

// IncomingSMSResponse is one received message
type IncomingSMSResponse struct {
	From       string    `json:"from"`
	To         string    `json:"to"`
	Content    string    `json:"content"`
	ReceivedAt time.Time `json:"received_at"`
}

// BalanceResponse is the provider account balance
type BalanceResponse struct {
	Account     string  `json:"account"`
	Balance     float64 `json:"balance"`
	GiftBalance float64 `json:"gift_balance"`
	Total       float64 `json:"total"`
	Cached      bool    `json:"cached"`
}

// DispatchStatistics holds cumulative dispatch counters
type DispatchStatistics struct {
	MessagesSent      int64 `json:"messages_sent"`
	MessagesFailed    int64 `json:"messages_failed"`
	BatchesSent       int64 `json:"batches_sent"`
	BatchesFailed     int64 `json:"batches_failed"`
	InvalidNumbers    int64 `json:"invalid_numbers"`
	DuplicatesRemoved int64 `json:"duplicates_removed"`
}

// StatisticsResponse aggregates service-wide statistics
type StatisticsResponse struct {
	Dispatch     DispatchStatistics      `json:"dispatch"`
	Queue        QueueStatistics         `json:"queue"`
	Tasks        *TaskStatisticsResponse `json:"tasks,omitempty"`
	TotalSMS     int64                   `json:"total_sms"`
	SentSMS      int64                   `json:"sent_sms"`
	FailedSMS    int64                   `json:"failed_sms"`
	Transactions int64                   `json:"transactions"`
}

// QueueStatistics is a snapshot of the send queue
type QueueStatistics struct {
	Depth      int            `json:"depth"`
	ByPriority map[string]int `json:"by_priority"`
	Processed  int64          `json:"processed"`
	Failed     int64          `json:"failed"`
	Retried    int64          `json:"retried"`
}
