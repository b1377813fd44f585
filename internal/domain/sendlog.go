package domain

import "time"

// SendLogStatus enumerates the outcome recorded for one transmission attempt.
type SendLogStatus string

const (
	SendLogSent   SendLogStatus = "SENT"
	SendLogFailed SendLogStatus = "FAILED"
)

// SendLog is the durable, append-only record of one attempted transmission.
// Rows are never mutated once written; later delivery callbacks (bounce,
// complaint) are handled outside this core. Send logs are also the usage
// source for the monthly quota gate.
type SendLog struct {
	ID                string        `json:"id" db:"id"`
	TenantID          string        `json:"tenant_id" db:"tenant_id"`
	CampaignID        string        `json:"campaign_id" db:"campaign_id"`
	RecipientID       string        `json:"recipient_id" db:"recipient_id"`
	TemplateID        string        `json:"template_id" db:"template_id"`
	IdentityID        string        `json:"identity_id" db:"identity_id"`
	RecipientEmail    string        `json:"recipient_email" db:"recipient_email"`
	Subject           string        `json:"subject" db:"subject"`
	HTMLContent       string        `json:"html_content" db:"html_content"`
	TextContent       string        `json:"text_content" db:"text_content"`
	Status            SendLogStatus `json:"status" db:"status"`
	ProviderMessageID string        `json:"provider_message_id,omitempty" db:"provider_message_id"`
	FailureReason     string        `json:"failure_reason,omitempty" db:"failure_reason"`
	SentAt            *time.Time    `json:"sent_at,omitempty" db:"sent_at"`
	FailedAt          *time.Time    `json:"failed_at,omitempty" db:"failed_at"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
}
