package businessflow

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/goleador/traffilink-dispatch/app/dto"
	"github.com/goleador/traffilink-dispatch/app/services"
	"github.com/goleador/traffilink-dispatch/models"
	"github.com/goleador/traffilink-dispatch/repository"
	"github.com/goleador/traffilink-dispatch/utils"
)

// campaignSendPacing is the delay between per-contact sends.
const campaignSendPacing = 100 * time.Millisecond

// CampaignFlow manages template campaigns: creation, rendering and the
// background send worker.
type CampaignFlow interface {
	CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest, metadata *ClientMetadata) (*dto.CampaignResponse, error)
	PrepareCampaign(ctx context.Context, uuid string) (*dto.CampaignResponse, error)
	SendCampaign(ctx context.Context, uuid string) (*dto.CampaignResponse, error)
	Progress(ctx context.Context, uuid string) (*dto.CampaignProgressResponse, error)
	CancelCampaign(ctx context.Context, uuid string) (*dto.CampaignResponse, error)
}

// CampaignFlowImpl implements the campaign business flow
type CampaignFlowImpl struct {
	campaignRepo repository.CampaignRepository
	dispatch     DispatchFlow
	processor    *services.MessageProcessor
	logger       *log.Logger

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// NewCampaignFlow creates a new campaign flow instance
func NewCampaignFlow(
	campaignRepo repository.CampaignRepository,
	dispatch DispatchFlow,
	processor *services.MessageProcessor,
	logger *log.Logger,
) CampaignFlow {
	return &CampaignFlowImpl{
		campaignRepo: campaignRepo,
		dispatch:     dispatch,
		processor:    processor,
		logger:       logger,
		running:      make(map[string]context.CancelFunc),
	}
}

// CreateCampaign stores a draft campaign with its contact list.
func (s *CampaignFlowImpl) CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest, metadata *ClientMetadata) (*dto.CampaignResponse, error) {
	campaign := &models.Campaign{
		UUID:      newUUID(),
		Name:      req.Name,
		Template:  req.Template,
		Sender:    req.Sender,
		Status:    models.CampaignStatusDraft,
		CreatedAt: utils.UTCNow(),
	}
	if err := s.campaignRepo.Save(ctx, campaign); err != nil {
		return nil, NewBusinessError("CAMPAIGN_SAVE_FAILED", "Failed to save campaign", err)
	}

	contacts := make([]*models.CampaignContact, 0, len(req.Contacts))
	for _, contact := range req.Contacts {
		number, err := utils.ValidatePhoneNumber(contact.Number)
		if err != nil {
			continue
		}
		contacts = append(contacts, &models.CampaignContact{
			CampaignID: campaign.ID,
			Number:     number,
			Variables:  models.JSONMap(contact.Variables),
		})
	}
	if len(contacts) == 0 {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign has no valid contacts", ErrNoValidNumbers)
	}
	if err := s.campaignRepo.SaveContacts(ctx, contacts); err != nil {
		return nil, NewBusinessError("CAMPAIGN_SAVE_FAILED", "Failed to save campaign contacts", err)
	}
	campaign.Contacts = make([]models.CampaignContact, 0, len(contacts))
	for _, contact := range contacts {
		campaign.Contacts = append(campaign.Contacts, *contact)
	}
	return campaignToResponse(campaign), nil
}

// PrepareCampaign renders the template for every contact and marks the
// campaign ready. Contacts missing required variables fail the whole
// preparation so nothing is half-rendered.
func (s *CampaignFlowImpl) PrepareCampaign(ctx context.Context, uuid string) (*dto.CampaignResponse, error) {
	campaign, err := s.findCampaignWithContacts(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if campaign.Status != models.CampaignStatusDraft {
		return nil, NewBusinessError("CAMPAIGN_STATE_CONFLICT", "Campaign is not in draft state", ErrCampaignNotDraft)
	}

	for i := range campaign.Contacts {
		contact := &campaign.Contacts[i]
		if missing := services.MissingVariables(campaign.Template, contact.Variables); len(missing) > 0 {
			return nil, NewBusinessErrorf("CAMPAIGN_MISSING_VARS", "Contact %s is missing variables %v", ErrCampaignMissingVars, contact.Number, missing)
		}
		contact.Rendered = services.SubstituteVariables(campaign.Template, contact.Variables)
		if err := s.campaignRepo.UpdateContact(ctx, contact); err != nil {
			return nil, NewBusinessError("CAMPAIGN_SAVE_FAILED", "Failed to save rendered contact", err)
		}
	}

	campaign.Status = models.CampaignStatusReady
	if err := s.campaignRepo.Update(ctx, campaign); err != nil {
		return nil, NewBusinessError("CAMPAIGN_SAVE_FAILED", "Failed to update campaign", err)
	}
	return campaignToResponse(campaign), nil
}

// SendCampaign starts the background send worker for a ready campaign.
func (s *CampaignFlowImpl) SendCampaign(ctx context.Context, uuid string) (*dto.CampaignResponse, error) {
	campaign, err := s.findCampaignWithContacts(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if campaign.Status != models.CampaignStatusReady {
		return nil, NewBusinessError("CAMPAIGN_STATE_CONFLICT", "Campaign is not ready to send", ErrCampaignNotReady)
	}

	s.mu.Lock()
	if _, running := s.running[uuid]; running {
		s.mu.Unlock()
		return nil, NewBusinessError("CAMPAIGN_STATE_CONFLICT", "Campaign send already running", ErrCampaignAlreadyRunning)
	}
	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.running[uuid] = cancel
	s.mu.Unlock()

	campaign.Status = models.CampaignStatusSending
	campaign.StartedAt = utils.UTCNowPtr()
	if err := s.campaignRepo.Update(ctx, campaign); err != nil {
		s.finishWorker(uuid)
		return nil, NewBusinessError("CAMPAIGN_SAVE_FAILED", "Failed to update campaign", err)
	}

	go s.runSendWorker(workerCtx, campaign)
	return campaignToResponse(campaign), nil
}

func (s *CampaignFlowImpl) runSendWorker(ctx context.Context, campaign *models.Campaign) {
	defer s.finishWorker(campaign.UUID)

	// cancellation stops new sends; results already produced and the
	// terminal status are still persisted
	persistCtx := context.WithoutCancel(ctx)

	cancelled := false
	for i := range campaign.Contacts {
		contact := &campaign.Contacts[i]
		if contact.Sent || contact.Failed {
			continue
		}
		select {
		case <-ctx.Done():
			cancelled = true
		default:
		}
		if cancelled {
			break
		}

		_, err := s.dispatch.Send(ctx, &dto.SendSMSRequest{
			Numbers: []string{contact.Number},
			Content: contact.Rendered,
			Sender:  campaign.Sender,
		}, nil)
		if err != nil {
			contact.Failed = true
			campaign.FailedCount++
			if s.logger != nil {
				s.logger.Printf("campaign %s: send to %s failed: %v", campaign.UUID, contact.Number, err)
			}
		} else {
			contact.Sent = true
			campaign.SentCount++
		}
		if err := s.campaignRepo.UpdateContact(persistCtx, contact); err != nil && s.logger != nil {
			s.logger.Printf("campaign %s: failed to persist contact %s: %v", campaign.UUID, contact.Number, err)
		}

		time.Sleep(campaignSendPacing)
	}

	switch {
	case cancelled:
		campaign.Status = models.CampaignStatusCancelled
	case campaign.SentCount == 0 && campaign.FailedCount > 0:
		campaign.Status = models.CampaignStatusFailed
	default:
		campaign.Status = models.CampaignStatusCompleted
	}
	campaign.FinishedAt = utils.UTCNowPtr()
	if err := s.campaignRepo.Update(persistCtx, campaign); err != nil && s.logger != nil {
		s.logger.Printf("campaign %s: failed to persist final state: %v", campaign.UUID, err)
	}
}

func (s *CampaignFlowImpl) finishWorker(uuid string) {
	s.mu.Lock()
	if cancel, ok := s.running[uuid]; ok {
		cancel()
		delete(s.running, uuid)
	}
	s.mu.Unlock()
}

// Progress reports how far a campaign send has advanced.
func (s *CampaignFlowImpl) Progress(ctx context.Context, uuid string) (*dto.CampaignProgressResponse, error) {
	campaign, err := s.findCampaignWithContacts(ctx, uuid)
	if err != nil {
		return nil, err
	}
	total := len(campaign.Contacts)
	done := campaign.SentCount + campaign.FailedCount
	percent := 0.0
	if total > 0 {
		percent = float64(done) / float64(total) * 100
	}
	return &dto.CampaignProgressResponse{
		UUID:    campaign.UUID,
		Status:  string(campaign.Status),
		Sent:    campaign.SentCount,
		Failed:  campaign.FailedCount,
		Total:   total,
		Percent: percent,
	}, nil
}

// CancelCampaign stops a running send or cancels a pending campaign.
func (s *CampaignFlowImpl) CancelCampaign(ctx context.Context, uuid string) (*dto.CampaignResponse, error) {
	campaign, err := s.findCampaignWithContacts(ctx, uuid)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	cancel, running := s.running[uuid]
	s.mu.Unlock()
	if running {
		cancel()
		return campaignToResponse(campaign), nil
	}

	if !campaign.Status.CanTransitionTo(models.CampaignStatusCancelled) {
		return nil, NewBusinessError("CAMPAIGN_STATE_CONFLICT", "Campaign cannot be cancelled", ErrCampaignNotSending)
	}
	campaign.Status = models.CampaignStatusCancelled
	if err := s.campaignRepo.Update(ctx, campaign); err != nil {
		return nil, NewBusinessError("CAMPAIGN_SAVE_FAILED", "Failed to update campaign", err)
	}
	return campaignToResponse(campaign), nil
}

func (s *CampaignFlowImpl) findCampaignWithContacts(ctx context.Context, uuid string) (*models.Campaign, error) {
	campaign, err := s.campaignRepo.ByUUIDWithContacts(ctx, uuid)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	if campaign == nil {
		return nil, NewBusinessError("CAMPAIGN_NOT_FOUND", "Campaign not found", ErrCampaignNotFound)
	}
	return campaign, nil
}

func campaignToResponse(campaign *models.Campaign) *dto.CampaignResponse {
	return &dto.CampaignResponse{
		UUID:        campaign.UUID,
		Name:        campaign.Name,
		Status:      string(campaign.Status),
		Sender:      campaign.Sender,
		SentCount:   campaign.SentCount,
		FailedCount: campaign.FailedCount,
		Total:       len(campaign.Contacts),
		StartedAt:   campaign.StartedAt,
		FinishedAt:  campaign.FinishedAt,
		CreatedAt:   campaign.CreatedAt,
	}
}
