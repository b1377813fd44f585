package domain

import "time"

// RecipientStatus enumerates the lifecycle of a single campaign recipient.
// PENDING → QUEUED → SENT | FAILED. SENT and FAILED are terminal; a
// recipient reaches exactly one terminal status per campaign attempt.
type RecipientStatus string

const (
	RecipientPending RecipientStatus = "PENDING"
	RecipientQueued  RecipientStatus = "QUEUED"
	RecipientSent    RecipientStatus = "SENT"
	RecipientFailed  RecipientStatus = "FAILED"
)

// IsTerminal returns true for statuses from which no further transition occurs.
func (s RecipientStatus) IsTerminal() bool {
	return s == RecipientSent || s == RecipientFailed
}

// CampaignRecipient is one destination address within a campaign, with its
// per-address template variables. Recipient rows are created in bulk at
// campaign creation and mutated at most twice (→QUEUED, →terminal).
type CampaignRecipient struct {
	ID            string          `json:"id" db:"id"`
	CampaignID    string          `json:"campaign_id" db:"campaign_id"`
	Email         string          `json:"email" db:"email"`
	Variables     map[string]any  `json:"variables" db:"variables"`
	Status        RecipientStatus `json:"status" db:"status"`
	FailureReason string          `json:"failure_reason,omitempty" db:"failure_reason"`
	QueuedAt      *time.Time      `json:"queued_at,omitempty" db:"queued_at"`
	SentAt        *time.Time      `json:"sent_at,omitempty" db:"sent_at"`
	FailedAt      *time.Time      `json:"failed_at,omitempty" db:"failed_at"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}
