package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// CampaignStatus enumerates the lifecycle of a template campaign
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusReady     CampaignStatus = "ready"
	CampaignStatusSending   CampaignStatus = "sending"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusFailed    CampaignStatus = "failed"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

// Scan implements the sql.Scanner interface
func (s *CampaignStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*s = CampaignStatus(v)
	case []byte:
		*s = CampaignStatus(v)
	default:
		return fmt.Errorf("cannot scan %T into CampaignStatus", value)
	}
	return nil
}

// Value implements the driver.Valuer interface
func (s CampaignStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// Valid reports whether the status is a known value
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusReady, CampaignStatusSending,
		CampaignStatusCompleted, CampaignStatusFailed, CampaignStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether a status change is allowed.
func (s CampaignStatus) CanTransitionTo(target CampaignStatus) bool {
	switch s {
	case CampaignStatusDraft:
		return target == CampaignStatusReady || target == CampaignStatusCancelled
	case CampaignStatusReady:
		return target == CampaignStatusSending || target == CampaignStatusCancelled
	case CampaignStatusSending:
		return target == CampaignStatusCompleted || target == CampaignStatusFailed || target == CampaignStatusCancelled
	default:
		return false
	}
}

// JSONMap is a string map stored as JSONB
type JSONMap map[string]string

// Value implements the driver.Valuer interface
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements the sql.Scanner interface
func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONMap", value)
	}
	return json.Unmarshal(data, m)
}

// Campaign stores a template-based send campaign
type Campaign struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UUID        string         `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`
	Name        string         `gorm:"size:255;not null" json:"name"`
	Template    string         `gorm:"type:text;not null" json:"template"`
	Sender      string         `gorm:"size:20" json:"sender,omitempty"`
	Status      CampaignStatus `gorm:"type:varchar(20);not null;default:'draft';index:idx_campaigns_status" json:"status"`
	SentCount   int            `gorm:"not null;default:0" json:"sent_count"`
	FailedCount int            `gorm:"not null;default:0" json:"failed_count"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	FinishedAt  *time.Time     `json:"finished_at,omitempty"`
	CreatedAt   time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_campaigns_created_at" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	Contacts []CampaignContact `gorm:"foreignKey:CampaignID" json:"contacts,omitempty"`
}

func (Campaign) TableName() string { return "campaigns" }

// CampaignContact is one recipient of a campaign with its template variables
type CampaignContact struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CampaignID uint      `gorm:"not null;index:idx_campaign_contacts_campaign_id" json:"campaign_id"`
	Number     string    `gorm:"size:20;not null" json:"number"`
	Variables  JSONMap   `gorm:"type:jsonb" json:"variables,omitempty"`
	Rendered   string    `gorm:"type:text" json:"rendered,omitempty"`
	Sent       bool      `gorm:"not null;default:false" json:"sent"`
	Failed     bool      `gorm:"not null;default:false" json:"failed"`
	CreatedAt  time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (CampaignContact) TableName() string { return "campaign_contacts" }

// CampaignFilter provides filter fields for repository queries
type CampaignFilter struct {
	ID            *uint
	UUID          *string
	Name          *string
	Status        *CampaignStatus
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
