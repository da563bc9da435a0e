package businessflow

import (
	"context"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goleador/traffilink-dispatch/app/dto"
	"github.com/goleador/traffilink-dispatch/app/services"
	"github.com/goleador/traffilink-dispatch/models"
)

// memCampaignRepo is an in-memory CampaignRepository. Writes fail when
// the caller's context is already cancelled, like a real database call.
type memCampaignRepo struct {
	mu         sync.Mutex
	seq        uint
	contactSeq uint
	campaigns  map[uint]*models.Campaign
	contacts   map[uint][]*models.CampaignContact
}

func newMemCampaignRepo() *memCampaignRepo {
	return &memCampaignRepo{
		campaigns: make(map[uint]*models.Campaign),
		contacts:  make(map[uint][]*models.CampaignContact),
	}
}

func (r *memCampaignRepo) ByID(ctx context.Context, id uint) (*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	campaign, ok := r.campaigns[id]
	if !ok {
		return nil, nil
	}
	copied := *campaign
	return &copied, nil
}

func (r *memCampaignRepo) ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	return nil, errors.New("not supported")
}

func (r *memCampaignRepo) Save(ctx context.Context, campaign *models.Campaign) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	campaign.ID = r.seq
	copied := *campaign
	copied.Contacts = nil
	r.campaigns[campaign.ID] = &copied
	return nil
}

func (r *memCampaignRepo) SaveBatch(ctx context.Context, campaigns []*models.Campaign) error {
	for _, campaign := range campaigns {
		if err := r.Save(ctx, campaign); err != nil {
			return err
		}
	}
	return nil
}

func (r *memCampaignRepo) Update(ctx context.Context, campaign *models.Campaign) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *campaign
	copied.Contacts = nil
	r.campaigns[campaign.ID] = &copied
	return nil
}

func (r *memCampaignRepo) Count(ctx context.Context, filter models.CampaignFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.campaigns)), nil
}

func (r *memCampaignRepo) Exists(ctx context.Context, filter models.CampaignFilter) (bool, error) {
	count, _ := r.Count(ctx, filter)
	return count > 0, nil
}

func (r *memCampaignRepo) ByUUID(ctx context.Context, uuid string) (*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, campaign := range r.campaigns {
		if campaign.UUID == uuid {
			copied := *campaign
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memCampaignRepo) ByUUIDWithContacts(ctx context.Context, uuid string) (*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, campaign := range r.campaigns {
		if campaign.UUID != uuid {
			continue
		}
		copied := *campaign
		for _, contact := range r.contacts[campaign.ID] {
			copied.Contacts = append(copied.Contacts, *contact)
		}
		return &copied, nil
	}
	return nil, nil
}

func (r *memCampaignRepo) SaveContacts(ctx context.Context, contacts []*models.CampaignContact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, contact := range contacts {
		r.contactSeq++
		contact.ID = r.contactSeq
		copied := *contact
		r.contacts[contact.CampaignID] = append(r.contacts[contact.CampaignID], &copied)
	}
	return nil
}

func (r *memCampaignRepo) UpdateContact(ctx context.Context, contact *models.CampaignContact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.contacts[contact.CampaignID] {
		if existing.ID == contact.ID {
			copied := *contact
			r.contacts[contact.CampaignID][i] = &copied
			return nil
		}
	}
	return errors.New("contact not found")
}

func (r *memCampaignRepo) status(t *testing.T, uuid string) models.CampaignStatus {
	t.Helper()
	campaign, err := r.ByUUID(context.Background(), uuid)
	require.NoError(t, err)
	require.NotNil(t, campaign)
	return campaign.Status
}

func (r *memCampaignRepo) sentContacts(uuid string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, campaign := range r.campaigns {
		if campaign.UUID != uuid {
			continue
		}
		sent := 0
		for _, contact := range r.contacts[campaign.ID] {
			if contact.Sent {
				sent++
			}
		}
		return sent
	}
	return 0
}

func newTestCampaignFlow(repo *memCampaignRepo) CampaignFlow {
	dispatch := NewDispatchFlow(services.NewMockTraffilinkClient(), services.NewMessageProcessor(), nil, nil, nil, nil)
	return NewCampaignFlow(repo, dispatch, services.NewMessageProcessor(), log.New(log.Writer(), "", 0))
}

func campaignRequest(contacts int) *dto.CreateCampaignRequest {
	req := &dto.CreateCampaignRequest{
		Name:     "spring promo",
		Template: "Hi {{name}}, new offers are live",
		Sender:   "5000",
	}
	for i := 0; i < contacts; i++ {
		req.Contacts = append(req.Contacts, dto.CampaignContactDTO{
			Number:    "+98912345678" + string(rune('0'+i)),
			Variables: map[string]string{"name": "contact"},
		})
	}
	return req
}

func waitForCampaign(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestCampaignLifecycle(t *testing.T) {
	repo := newMemCampaignRepo()
	flow := newTestCampaignFlow(repo)
	ctx := context.Background()

	created, err := flow.CreateCampaign(ctx, campaignRequest(3), nil)
	require.NoError(t, err)
	assert.Equal(t, "draft", created.Status)
	assert.Equal(t, 3, created.Total)

	prepared, err := flow.PrepareCampaign(ctx, created.UUID)
	require.NoError(t, err)
	assert.Equal(t, "ready", prepared.Status)

	sent, err := flow.SendCampaign(ctx, created.UUID)
	require.NoError(t, err)
	assert.Equal(t, "sending", sent.Status)

	waitForCampaign(t, func() bool {
		return repo.status(t, created.UUID) == models.CampaignStatusCompleted
	})
	assert.Equal(t, 3, repo.sentContacts(created.UUID))

	progress, err := flow.Progress(ctx, created.UUID)
	require.NoError(t, err)
	assert.Equal(t, 3, progress.Sent)
	assert.InDelta(t, 100, progress.Percent, 0.001)
}

func TestPrepareCampaignRejectsMissingVariables(t *testing.T) {
	repo := newMemCampaignRepo()
	flow := newTestCampaignFlow(repo)
	ctx := context.Background()

	req := campaignRequest(2)
	req.Contacts[1].Variables = nil
	created, err := flow.CreateCampaign(ctx, req, nil)
	require.NoError(t, err)

	_, err = flow.PrepareCampaign(ctx, created.UUID)
	require.Error(t, err)
	assert.True(t, IsCampaignMissingVars(err))
	assert.Equal(t, models.CampaignStatusDraft, repo.status(t, created.UUID))
}

func TestSendCampaignRequiresReadyState(t *testing.T) {
	repo := newMemCampaignRepo()
	flow := newTestCampaignFlow(repo)
	ctx := context.Background()

	created, err := flow.CreateCampaign(ctx, campaignRequest(1), nil)
	require.NoError(t, err)

	_, err = flow.SendCampaign(ctx, created.UUID)
	require.Error(t, err)
	assert.True(t, IsCampaignStateConflict(err))
}

func TestCancelRunningCampaignPersistsTerminalState(t *testing.T) {
	repo := newMemCampaignRepo()
	flow := newTestCampaignFlow(repo)
	ctx := context.Background()

	created, err := flow.CreateCampaign(ctx, campaignRequest(8), nil)
	require.NoError(t, err)
	_, err = flow.PrepareCampaign(ctx, created.UUID)
	require.NoError(t, err)
	_, err = flow.SendCampaign(ctx, created.UUID)
	require.NoError(t, err)

	// let the worker make some progress before cancelling
	waitForCampaign(t, func() bool { return repo.sentContacts(created.UUID) >= 1 })

	_, err = flow.CancelCampaign(ctx, created.UUID)
	require.NoError(t, err)

	// the cancelled status must land in storage, not just in memory
	waitForCampaign(t, func() bool {
		return repo.status(t, created.UUID) == models.CampaignStatusCancelled
	})

	campaign, err := repo.ByUUID(ctx, created.UUID)
	require.NoError(t, err)
	assert.NotNil(t, campaign.FinishedAt)
	assert.Less(t, campaign.SentCount, 8)
}

func TestCancelReadyCampaign(t *testing.T) {
	repo := newMemCampaignRepo()
	flow := newTestCampaignFlow(repo)
	ctx := context.Background()

	created, err := flow.CreateCampaign(ctx, campaignRequest(1), nil)
	require.NoError(t, err)
	_, err = flow.PrepareCampaign(ctx, created.UUID)
	require.NoError(t, err)

	cancelled, err := flow.CancelCampaign(ctx, created.UUID)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", cancelled.Status)
	assert.Equal(t, models.CampaignStatusCancelled, repo.status(t, created.UUID))

	// terminal states cannot be cancelled again
	_, err = flow.CancelCampaign(ctx, created.UUID)
	require.Error(t, err)
	assert.True(t, IsCampaignStateConflict(err))
}
