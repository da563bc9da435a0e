package dto

import "time"

// CampaignContactDTO is one campaign recipient with template variables
type CampaignContactDTO struct {
	Number    string            `json:"number" validate:"required"`
	Variables map[string]string `json:"variables,omitempty"`
}

// CreateCampaignRequest registers a template campaign
type CreateCampaignRequest struct {
	Name     string               `json:"name" validate:"required,max=255"`
	Template string               `json:"template" validate:"required"`
	Sender   string               `json:"sender,omitempty"`
	Contacts []CampaignContactDTO `json:"contacts" validate:"required,min=1,dive"`
}

// CampaignResponse is one campaign summary
type CampaignResponse struct {
	UUID        string     `json:"uuid"`
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	Sender      string     `json:"sender,omitempty"`
	SentCount   int        `json:"sent_count"`
	FailedCount int        `json:"failed_count"`
	Total       int        `json:"total"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// CampaignProgressResponse reports campaign send progress
type CampaignProgressResponse struct {
	UUID    string  `json:"uuid"`
	Status  string  `json:"status"`
	Sent    int     `json:"sent"`
	Failed  int     `json:"failed"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}
