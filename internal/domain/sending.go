package domain

import "time"

// EmailMessage is the fully-resolved message ready for the transport
// provider. By the time a message reaches this struct, all template
// substitution is complete.
type EmailMessage struct {
	ID           string            `json:"id"`
	CampaignID   string            `json:"campaign_id"`
	RecipientID  string            `json:"recipient_id"`
	Email        string            `json:"email"`
	FromEmail    string            `json:"from_email"`
	Subject      string            `json:"subject"`
	HTMLContent  string            `json:"html_content"`
	TextContent  string            `json:"text_content"`
	ConfigSet    string            `json:"config_set,omitempty"`
	Tags         map[string]string `json:"tags,omitempty"`
}

// SendResult is returned by the transport provider after a delivery attempt.
type SendResult struct {
	Success   bool      `json:"success"`
	MessageID string    `json:"message_id"`
	SentAt    time.Time `json:"sent_at"`
	Error     string    `json:"error,omitempty"`
}

// RenderedEmail is the output of template rendering for one recipient.
type RenderedEmail struct {
	Subject     string `json:"subject"`
	HTMLContent string `json:"html_content"`
	TextContent string `json:"text_content"`
}
