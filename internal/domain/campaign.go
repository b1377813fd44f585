package domain

import (
	"regexp"
	"time"
)

// CampaignStatus enumerates the lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "DRAFT"
	CampaignScheduled CampaignStatus = "SCHEDULED"
	CampaignSending   CampaignStatus = "SENDING"
	CampaignSent      CampaignStatus = "SENT"
	CampaignFailed    CampaignStatus = "FAILED"
	CampaignCancelled CampaignStatus = "CANCELLED"
)

// Campaign represents one bulk-send intent: a template, a sender identity,
// and a recipient list owned by a single tenant.
type Campaign struct {
	ID              string         `json:"id" db:"id"`
	TenantID        string         `json:"tenant_id" db:"tenant_id"`
	Name            string         `json:"name" db:"name"`
	Subject         string         `json:"subject" db:"subject"`
	TemplateID      string         `json:"template_id" db:"template_id"`
	IdentityID      string         `json:"identity_id" db:"identity_id"`
	Status          CampaignStatus `json:"status" db:"status"`
	Variables       map[string]any `json:"variables" db:"variables"`
	TotalRecipients int            `json:"total_recipients" db:"total_recipients"`
	Processed       int            `json:"processed" db:"processed"`
	Successful      int            `json:"successful" db:"successful"`
	Failed          int            `json:"failed" db:"failed"`
	FailureReason   string         `json:"failure_reason,omitempty" db:"failure_reason"`
	ScheduledAt     *time.Time     `json:"scheduled_at,omitempty" db:"scheduled_at"`
	SentAt          *time.Time     `json:"sent_at,omitempty" db:"sent_at"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty" db:"completed_at"`
	CancelledAt     *time.Time     `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}

// IsTerminal returns true if the campaign is in a final state.
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignSent || c.Status == CampaignFailed || c.Status == CampaignCancelled
}

// CanStart reports whether the campaign may transition to SENDING.
func (c *Campaign) CanStart() bool {
	return c.Status == CampaignDraft || c.Status == CampaignScheduled
}

// CanCancel reports whether the campaign may transition to CANCELLED.
func (c *Campaign) CanCancel() bool {
	return c.Status == CampaignScheduled || c.Status == CampaignSending
}

// Progress is the caller-visible view of a campaign's send accounting.
type Progress struct {
	CampaignID string         `json:"campaign_id"`
	Status     CampaignStatus `json:"status"`
	Total      int            `json:"total"`
	Processed  int            `json:"processed"`
	Successful int            `json:"successful"`
	Failed     int            `json:"failed"`
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail performs the syntactic address check applied to every
// recipient at campaign creation. Deliverability is the provider's problem.
func ValidEmail(addr string) bool {
	return emailPattern.MatchString(addr)
}
