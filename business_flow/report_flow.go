package businessflow

import (
	"context"
	"time"

	"github.com/goleador/traffilink-dispatch/app/dto"
	"github.com/goleador/traffilink-dispatch/app/services"
	"github.com/goleador/traffilink-dispatch/models"
	"github.com/goleador/traffilink-dispatch/repository"
	"github.com/goleador/traffilink-dispatch/utils"
)

// ReportFlow ingests delivery reports and incoming messages from the
// provider and serves stored records.
type ReportFlow interface {
	FetchReports(ctx context.Context, batchID string) ([]dto.DeliveryReportResponse, error)
	FetchIncoming(ctx context.Context) ([]dto.IncomingSMSResponse, error)
	GetRecord(ctx context.Context, uuid string) (*dto.SMSRecordResponse, error)
	ListRecords(ctx context.Context, status string, limit, offset int) ([]*dto.SMSRecordResponse, error)
	StorageStatistics(ctx context.Context) (total, sent, failed, transactions int64, err error)
}

// ReportFlowImpl implements the report ingestion business flow
type ReportFlowImpl struct {
	provider   services.TraffilinkClient
	smsRepo    repository.SMSRecordRepository
	reportRepo repository.DeliveryReportRepository
	inboxRepo  repository.IncomingSMSRepository
	txRepo     repository.TransactionLogRepository
}

// NewReportFlow creates a new report flow instance
func NewReportFlow(
	provider services.TraffilinkClient,
	smsRepo repository.SMSRecordRepository,
	reportRepo repository.DeliveryReportRepository,
	inboxRepo repository.IncomingSMSRepository,
	txRepo repository.TransactionLogRepository,
) ReportFlow {
	return &ReportFlowImpl{
		provider:   provider,
		smsRepo:    smsRepo,
		reportRepo: reportRepo,
		inboxRepo:  inboxRepo,
		txRepo:     txRepo,
	}
}

// FetchReports pages through the provider's delivery reports for a
// batch, upserts them and bumps the per-record delivery counters.
func (s *ReportFlowImpl) FetchReports(ctx context.Context, batchID string) ([]dto.DeliveryReportResponse, error) {
	var all []dto.DeliveryReportResponse
	var rows []*models.DeliveryReport
	delivered, failed := 0, 0

	for page := 1; ; page++ {
		entries, err := s.provider.GetReport(ctx, batchID, page)
		if err != nil {
			return nil, NewBusinessError("REPORT_FETCH_FAILED", "Failed to fetch delivery reports", err)
		}
		if len(entries) == 0 {
			break
		}
		for _, entry := range entries {
			report := reportEntryToModel(batchID, entry)
			rows = append(rows, report)
			all = append(all, reportModelToResponse(report))
			switch report.Status {
			case models.SMSStatusDelivered:
				delivered++
			case models.SMSStatusFailed, models.SMSStatusUndelivered:
				failed++
			}
		}
		if len(entries) < utils.ReportBatchLimit {
			break
		}
	}

	if len(rows) > 0 {
		if err := s.reportRepo.UpsertBatch(ctx, rows); err != nil {
			return nil, NewBusinessError("REPORT_SAVE_FAILED", "Failed to save delivery reports", err)
		}
		if err := s.smsRepo.IncrementDeliveryCounters(ctx, batchID, delivered, failed); err != nil {
			return nil, NewBusinessError("REPORT_SAVE_FAILED", "Failed to update delivery counters", err)
		}
	}
	return all, nil
}

// FetchIncoming pulls new incoming messages and stores the ones not
// seen before.
func (s *ReportFlowImpl) FetchIncoming(ctx context.Context) ([]dto.IncomingSMSResponse, error) {
	messages, err := s.provider.GetIncomingSMS(ctx, utils.IncomingSMSLimit)
	if err != nil {
		return nil, NewBusinessError("INCOMING_FETCH_FAILED", "Failed to fetch incoming SMS", err)
	}

	out := make([]dto.IncomingSMSResponse, 0, len(messages))
	for _, msg := range messages {
		receivedAt, err := utils.ParseSendTime(msg.ReceivedAt)
		if err != nil {
			receivedAt = utils.UTCNow()
		}
		existing, err := s.inboxRepo.ByProviderID(ctx, msg.ID)
		if err != nil {
			return nil, NewBusinessError("INCOMING_SAVE_FAILED", "Failed to check incoming SMS", err)
		}
		if existing == nil {
			row := &models.IncomingSMS{
				ProviderID: msg.ID,
				From:       msg.From,
				To:         msg.To,
				Content:    msg.Content,
				ReceivedAt: receivedAt,
			}
			if err := s.inboxRepo.Save(ctx, row); err != nil {
				return nil, NewBusinessError("INCOMING_SAVE_FAILED", "Failed to save incoming SMS", err)
			}
		}
		out = append(out, dto.IncomingSMSResponse{
			From:       msg.From,
			To:         msg.To,
			Content:    msg.Content,
			ReceivedAt: receivedAt,
		})
	}
	return out, nil
}

// GetRecord returns a stored SMS record with its delivery reports.
func (s *ReportFlowImpl) GetRecord(ctx context.Context, uuid string) (*dto.SMSRecordResponse, error) {
	record, err := s.smsRepo.ByUUID(ctx, uuid)
	if err != nil {
		return nil, NewBusinessError("SMS_LOOKUP_FAILED", "Failed to lookup SMS record", err)
	}
	if record == nil {
		return nil, NewBusinessError("SMS_NOT_FOUND", "SMS record not found", ErrSMSNotFound)
	}
	response := recordToResponse(record)
	if record.BatchID != "" {
		reports, err := s.reportRepo.ListByBatch(ctx, record.BatchID)
		if err != nil {
			return nil, NewBusinessError("REPORT_LOOKUP_FAILED", "Failed to lookup delivery reports", err)
		}
		for _, report := range reports {
			response.Reports = append(response.Reports, reportModelToResponse(report))
		}
	}
	return response, nil
}

// ListRecords lists stored SMS records, newest first.
func (s *ReportFlowImpl) ListRecords(ctx context.Context, status string, limit, offset int) ([]*dto.SMSRecordResponse, error) {
	filter := models.SMSRecordFilter{}
	if status != "" {
		st := models.SMSStatus(status)
		filter.Status = &st
	}
	if limit <= 0 {
		limit = 100
	}
	records, err := s.smsRepo.ByFilter(ctx, filter, "created_at DESC", limit, offset)
	if err != nil {
		return nil, NewBusinessError("SMS_LIST_FAILED", "Failed to list SMS records", err)
	}
	out := make([]*dto.SMSRecordResponse, 0, len(records))
	for _, record := range records {
		out = append(out, recordToResponse(record))
	}
	return out, nil
}

// StorageStatistics returns stored totals for the statistics endpoint.
func (s *ReportFlowImpl) StorageStatistics(ctx context.Context) (total, sent, failed, transactions int64, err error) {
	total, err = s.smsRepo.Count(ctx, models.SMSRecordFilter{})
	if err != nil {
		return 0, 0, 0, 0, err
	}
	sentStatus := models.SMSStatusSent
	sent, err = s.smsRepo.Count(ctx, models.SMSRecordFilter{Status: &sentStatus})
	if err != nil {
		return 0, 0, 0, 0, err
	}
	failedStatus := models.SMSStatusFailed
	failed, err = s.smsRepo.Count(ctx, models.SMSRecordFilter{Status: &failedStatus})
	if err != nil {
		return 0, 0, 0, 0, err
	}
	transactions, err = s.txRepo.Count(ctx, models.TransactionLogFilter{})
	if err != nil {
		return 0, 0, 0, 0, err
	}
	return total, sent, failed, transactions, nil
}

func reportEntryToModel(batchID string, entry services.ReportEntry) *models.DeliveryReport {
	report := &models.DeliveryReport{
		BatchID: batchID,
		Number:  entry.Number,
		Status:  models.SMSStatus(entry.Status),
	}
	if !report.Status.Valid() {
		report.Status = models.SMSStatusUndelivered
	}
	if entry.ErrorCode != nil {
		report.ErrorCode = entry.ErrorCode
		msg := entry.ErrorMessage
		if msg == "" {
			msg = utils.ErrorCodeMessage(*entry.ErrorCode)
		}
		report.ErrorMessage = &msg
	}
	if t, err := utils.ParseSendTime(entry.SentAt); err == nil && !t.IsZero() {
		report.SentAt = &t
	}
	if t, err := utils.ParseSendTime(entry.DeliveredAt); err == nil && !t.IsZero() {
		report.DeliveredAt = &t
	}
	return report
}

func reportModelToResponse(report *models.DeliveryReport) dto.DeliveryReportResponse {
	return dto.DeliveryReportResponse{
		Number:       report.Number,
		Status:       string(report.Status),
		ErrorCode:    report.ErrorCode,
		ErrorMessage: report.ErrorMessage,
		SentAt:       report.SentAt,
		DeliveredAt:  report.DeliveredAt,
	}
}

func recordToResponse(record *models.SMSRecord) *dto.SMSRecordResponse {
	var sentAt *time.Time
	if record.SentAt != nil {
		t := *record.SentAt
		sentAt = &t
	}
	return &dto.SMSRecordResponse{
		UUID:           record.UUID,
		BatchID:        record.BatchID,
		Numbers:        record.Numbers,
		Content:        record.Content,
		Sender:         record.Sender,
		Status:         string(record.Status),
		ErrorCode:      record.ErrorCode,
		ErrorMessage:   record.ErrorMessage,
		SentAt:         sentAt,
		DeliveredCount: record.DeliveredCount,
		FailedCount:    record.FailedCount,
		CreatedAt:      record.CreatedAt,
	}
}
