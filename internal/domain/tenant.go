package domain

import "time"

// SubscriptionStatus enumerates a tenant's billing standing.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "ACTIVE"
	SubscriptionPastDue   SubscriptionStatus = "PAST_DUE"
	SubscriptionSuspended SubscriptionStatus = "SUSPENDED"
)

// Tenant is the owning account for campaigns, templates, and identities.
// Only the fields the dispatch engine needs are modeled here; the full
// tenant CRUD surface lives outside this core.
type Tenant struct {
	ID                  string             `json:"id" db:"id"`
	Name                string             `json:"name" db:"name"`
	Plan                string             `json:"plan" db:"plan"`
	MonthlyEmailLimit   int                `json:"monthly_email_limit" db:"monthly_email_limit"`
	SubscriptionStatus  SubscriptionStatus `json:"subscription_status" db:"subscription_status"`
	SESConfigurationSet string             `json:"ses_configuration_set" db:"ses_configuration_set"`
	CreatedAt           time.Time          `json:"created_at" db:"created_at"`
}

// IdentityStatus enumerates sender identity verification states.
type IdentityStatus string

const (
	IdentityPending  IdentityStatus = "PENDING"
	IdentityVerified IdentityStatus = "VERIFIED"
	IdentityFailed   IdentityStatus = "FAILED"
)

// Identity is a verified sender address or domain belonging to a tenant.
type Identity struct {
	ID       string         `json:"id" db:"id"`
	TenantID string         `json:"tenant_id" db:"tenant_id"`
	Value    string         `json:"value" db:"value"`
	Type     string         `json:"type" db:"type"`
	Status   IdentityStatus `json:"status" db:"status"`
}

// TemplateVariable declares one substitution variable a template expects.
type TemplateVariable struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
}

// Template holds the subject/html/text bodies and variable declarations
// for rendering. Template authoring is outside this core; the engine only
// reads them.
type Template struct {
	ID          string             `json:"id" db:"id"`
	TenantID    string             `json:"tenant_id" db:"tenant_id"`
	Name        string             `json:"name" db:"name"`
	Subject     string             `json:"subject" db:"subject"`
	HTMLContent string             `json:"html_content" db:"html_content"`
	TextContent string             `json:"text_content" db:"text_content"`
	Variables   []TemplateVariable `json:"variables" db:"variables"`
	IsActive    bool               `json:"is_active" db:"is_active"`
}
