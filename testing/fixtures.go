// Package testing provides test utilities and database setup for testing the dispatch service
package testing

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/goleador/traffilink-dispatch/models"
	"github.com/goleador/traffilink-dispatch/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// RandomNumber returns a random valid phone number in +989xxxxxxxxx format
func RandomNumber() string {
	return fmt.Sprintf("+989%09d", rand.Intn(900000000)+100000000)
}

// CreateTestSMSRecord creates a sent SMS record with one recipient
func (tf *TestFixtures) CreateTestSMSRecord(batchID string, status models.SMSStatus) (*models.SMSRecord, error) {
	now := utils.UTCNow()
	record := &models.SMSRecord{
		UUID:     uuid.New().String(),
		BatchID:  batchID,
		Numbers:  pq.StringArray{RandomNumber()},
		Content:  "test message",
		Sender:   "5000",
		Status:   status,
		SentAt:   &now,
		SendTime: utils.FormatSendTime(now),
	}

	if err := tf.DB.DB.Create(record).Error; err != nil {
		return nil, fmt.Errorf("failed to create test SMS record: %w", err)
	}
	return record, nil
}

// CreateTestTask creates an active scheduled task of the given type
func (tf *TestFixtures) CreateTestTask(taskType models.TaskType, sendTime string) (*models.ScheduledTask, error) {
	task := &models.ScheduledTask{
		UUID:     uuid.New().String(),
		Type:     taskType,
		Contacts: pq.StringArray{RandomNumber(), RandomNumber()},
		Content:  "scheduled test message",
		Sender:   "5000",
		SendTime: sendTime,
		Status:   models.TaskStatusActive,
	}
	if taskType == models.TaskTypeInterval {
		task.IntervalSeconds = 3600
	}

	if err := tf.DB.DB.Create(task).Error; err != nil {
		return nil, fmt.Errorf("failed to create test task: %w", err)
	}
	return task, nil
}

// CreateTestCampaign creates a draft campaign with the given number of contacts
func (tf *TestFixtures) CreateTestCampaign(contacts int) (*models.Campaign, error) {
	campaign := &models.Campaign{
		UUID:     uuid.New().String(),
		Name:     fmt.Sprintf("test campaign %d", rand.Intn(10000)),
		Template: "Hello {{name}}",
		Sender:   "5000",
		Status:   models.CampaignStatusDraft,
	}

	if err := tf.DB.DB.Create(campaign).Error; err != nil {
		return nil, fmt.Errorf("failed to create test campaign: %w", err)
	}

	for i := 0; i < contacts; i++ {
		contact := &models.CampaignContact{
			CampaignID: campaign.ID,
			Number:     RandomNumber(),
			Variables:  models.JSONMap{"name": fmt.Sprintf("contact-%d", i)},
		}
		if err := tf.DB.DB.Create(contact).Error; err != nil {
			return nil, fmt.Errorf("failed to create test campaign contact: %w", err)
		}
		campaign.Contacts = append(campaign.Contacts, *contact)
	}

	return campaign, nil
}
