package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/goleador/traffilink-dispatch/app/dto"
	"github.com/goleador/traffilink-dispatch/app/services"
	"github.com/goleador/traffilink-dispatch/models"
	"github.com/goleador/traffilink-dispatch/repository"
	"github.com/goleador/traffilink-dispatch/utils"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// DispatchFlow handles the SMS send pipeline: validation, preparation,
// fragmentation, batching and provider submission.
type DispatchFlow interface {
	Send(ctx context.Context, req *dto.SendSMSRequest, metadata *ClientMetadata) (*dto.SendSMSResponse, error)
	GetBalance(ctx context.Context) (*dto.BalanceResponse, error)
	Statistics() dto.DispatchStatistics
	ResetStatistics()
}

// DispatchFlowImpl implements the dispatch business flow
type DispatchFlowImpl struct {
	provider  services.TraffilinkClient
	processor *services.MessageProcessor
	smsRepo   repository.SMSRecordRepository
	txRepo    repository.TransactionLogRepository
	cache     *redis.Client
	db        *gorm.DB

	fragmentLimit int

	mu    sync.Mutex
	stats dto.DispatchStatistics
}

// NewDispatchFlow creates a new dispatch flow instance. The cache and db
// may be nil; persistence and balance caching are then skipped.
func NewDispatchFlow(
	provider services.TraffilinkClient,
	processor *services.MessageProcessor,
	smsRepo repository.SMSRecordRepository,
	txRepo repository.TransactionLogRepository,
	cache *redis.Client,
	db *gorm.DB,
) DispatchFlow {
	return &DispatchFlowImpl{
		provider:      provider,
		processor:     processor,
		smsRepo:       smsRepo,
		txRepo:        txRepo,
		cache:         cache,
		db:            db,
		fragmentLimit: utils.MaxMessageLength,
	}
}

// Send runs the full pipeline. The operation succeeds when at least one
// batch is accepted by the provider; counters accumulate either way.
func (s *DispatchFlowImpl) Send(ctx context.Context, req *dto.SendSMSRequest, metadata *ClientMetadata) (*dto.SendSMSResponse, error) {
	content := utils.SanitizeMessage(req.Content)
	if req.Options != nil {
		result := s.processor.Process(content, services.ProcessOptions{
			NormalizeAccents:   req.Options.NormalizeAccents,
			RemoveSpecialChars: req.Options.RemoveSpecialChars,
			RemoveEmojis:       req.Options.RemoveEmojis,
			ShortenURLs:        req.Options.ShortenURLs,
			Prefix:             req.Options.Prefix,
			Suffix:             req.Options.Suffix,
			Variables:          req.Options.Variables,
			UnsubscribeCode:    req.Options.UnsubscribeCode,
		})
		content = result.Content
	}

	if strings.TrimSpace(content) == "" {
		return nil, NewBusinessError("CONTENT_VALIDATION_FAILED", "Message content is empty", ErrEmptyContent)
	}
	if utils.ContainsSensitiveCharacters(content) {
		return nil, NewBusinessError("CONTENT_VALIDATION_FAILED", "Message content contains control characters", ErrSensitiveContent)
	}
	// content longer than the fragment limit is split below, not rejected
	if len([]rune(content)) <= s.fragmentLimit {
		if err := utils.ValidateMessageContent(content); err != nil {
			return nil, NewBusinessError("CONTENT_VALIDATION_FAILED", "Message content validation failed", err)
		}
	}
	if _, err := utils.ParseSendTime(req.SendTime); err != nil {
		return nil, NewBusinessError("SENDTIME_VALIDATION_FAILED", "Send time validation failed", ErrInvalidSendTime)
	}

	valid, invalid, duplicates := utils.PreparePhoneList(req.Numbers)
	s.addInvalid(int64(len(invalid)))
	s.addDuplicates(int64(duplicates))
	if len(valid) == 0 {
		return nil, NewBusinessError("VALIDATION_FAILED", "No valid recipient numbers", ErrNoValidNumbers)
	}

	fragments := utils.FragmentMessage(content, s.fragmentLimit)
	batches := utils.PartitionNumbers(valid, utils.SMSLimitPOST)

	response := &dto.SendSMSResponse{
		Fragments:         len(fragments),
		Recipients:        len(valid),
		InvalidNumbers:    invalid,
		DuplicatesRemoved: duplicates,
	}

	var records []*models.SMSRecord
	for _, fragment := range fragments {
		for _, batch := range batches {
			record := &models.SMSRecord{
				UUID:     newUUID(),
				Numbers:  batch,
				Content:  fragment,
				Sender:   req.Sender,
				SendTime: req.SendTime,
				Status:   models.SMSStatusPending,
			}

			result, err := s.provider.SendSMS(ctx, services.SendRequest{
				Numbers:  batch,
				Content:  fragment,
				Sender:   req.Sender,
				SendTime: req.SendTime,
			})
			if err != nil {
				code := services.ProviderErrorCode(err)
				msg := utils.ErrorCodeMessage(code)
				record.Status = models.SMSStatusFailed
				record.ErrorCode = &code
				record.ErrorMessage = &msg
				response.FailedBatches++
				s.addFailed(int64(len(batch)))
			} else {
				record.Status = models.SMSStatusSent
				record.BatchID = result.BatchID
				record.SentAt = utils.UTCNowPtr()
				response.BatchIDs = append(response.BatchIDs, result.BatchID)
				response.SentBatches++
				s.addSent(int64(len(batch)))
			}
			records = append(records, record)
			response.SMSIDs = append(response.SMSIDs, record.UUID)
		}
	}

	status := models.TransactionStatusSuccess
	if response.SentBatches == 0 {
		status = models.TransactionStatusFailed
	}
	if err := s.persist(ctx, records, status); err != nil {
		return nil, NewBusinessError("PERSISTENCE_FAILED", "Failed to persist dispatch results", err)
	}

	if response.SentBatches == 0 {
		return nil, NewBusinessError("ALL_BATCHES_FAILED", "All batches failed", ErrAllBatchesFailed)
	}
	return response, nil
}

func (s *DispatchFlowImpl) persist(ctx context.Context, records []*models.SMSRecord, status models.TransactionStatus) error {
	if s.smsRepo == nil {
		return nil
	}
	sent := 0
	for _, record := range records {
		if record.Status == models.SMSStatusSent {
			sent += len(record.Numbers)
		}
	}
	entry := newTransactionLog("send_sms", sent, 0, status, "")

	save := func(ctx context.Context) error {
		if err := s.smsRepo.SaveBatch(ctx, records); err != nil {
			return err
		}
		if s.txRepo != nil {
			return s.txRepo.Save(ctx, entry)
		}
		return nil
	}
	if s.db != nil {
		return repository.WithTransaction(ctx, s.db, save)
	}
	return save(ctx)
}

// GetBalance returns the provider balance, served from cache when fresh.
func (s *DispatchFlowImpl) GetBalance(ctx context.Context) (*dto.BalanceResponse, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, utils.BalanceCacheKey).Result(); err == nil {
			var cached services.BalanceInfo
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return &dto.BalanceResponse{
					Account:     cached.Account,
					Balance:     cached.Balance,
					GiftBalance: cached.GiftBalance,
					Total:       cached.Total(),
					Cached:      true,
				}, nil
			}
		}
	}

	balance, err := s.provider.GetBalance(ctx)
	if err != nil {
		code := services.ProviderErrorCode(err)
		return nil, NewBusinessErrorf("BALANCE_FETCH_FAILED", "Failed to fetch balance (code %d)", err, code)
	}

	if s.cache != nil {
		if raw, err := json.Marshal(balance); err == nil {
			s.cache.Set(ctx, utils.BalanceCacheKey, raw, utils.BalanceCacheTTL)
		}
	}
	if s.txRepo != nil {
		note := fmt.Sprintf("balance %.2f", balance.Total())
		_ = s.txRepo.Save(ctx, newTransactionLog("get_balance", 0, 0, models.TransactionStatusSuccess, note))
	}

	return &dto.BalanceResponse{
		Account:     balance.Account,
		Balance:     balance.Balance,
		GiftBalance: balance.GiftBalance,
		Total:       balance.Total(),
	}, nil
}

// Statistics returns a snapshot of the cumulative dispatch counters.
func (s *DispatchFlowImpl) Statistics() dto.DispatchStatistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// ResetStatistics zeroes the cumulative counters.
func (s *DispatchFlowImpl) ResetStatistics() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = dto.DispatchStatistics{}
}

func (s *DispatchFlowImpl) addSent(n int64) {
	s.mu.Lock()
	s.stats.MessagesSent += n
	s.stats.BatchesSent++
	s.mu.Unlock()
}

func (s *DispatchFlowImpl) addFailed(n int64) {
	s.mu.Lock()
	s.stats.MessagesFailed += n
	s.stats.BatchesFailed++
	s.mu.Unlock()
}

func (s *DispatchFlowImpl) addInvalid(n int64) {
	if n == 0 {
		return
	}
	s.mu.Lock()
	s.stats.InvalidNumbers += n
	s.mu.Unlock()
}

func (s *DispatchFlowImpl) addDuplicates(n int64) {
	if n == 0 {
		return
	}
	s.mu.Lock()
	s.stats.DuplicatesRemoved += n
	s.mu.Unlock()
}
