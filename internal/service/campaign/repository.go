package campaign

import (
	"context"

	"github.com/Marvin-MM/Luco-Email-sub000/internal/domain"
)

// Repository defines the data access contract for campaigns.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single campaign scoped to its tenant.
	// Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, tenantID, id string) (*domain.Campaign, error)

	// List returns campaigns matching the filter, ordered by created_at DESC.
	List(ctx context.Context, tenantID string, filter ListFilter) ([]domain.Campaign, int, error)

	// Create inserts the campaign and its recipient rows in one
	// transaction. Either everything is persisted or nothing is.
	Create(ctx context.Context, c *domain.Campaign, recipients []domain.CampaignRecipient) error

	// UpdateStatus transitions a campaign's status, stamping the matching
	// timestamp (sent_at / cancelled_at / completed_at). The update is
	// guarded: it only applies from states the target is reachable from,
	// and returns ErrInvalidTransition otherwise.
	UpdateStatus(ctx context.Context, tenantID, id string, status domain.CampaignStatus) error

	// GetTemplate returns an active template owned by the tenant.
	// Returns ErrTemplateNotFound otherwise.
	GetTemplate(ctx context.Context, tenantID, id string) (*domain.Template, error)

	// GetIdentity returns a verified sender identity owned by the tenant.
	// Returns ErrIdentityNotFound otherwise.
	GetIdentity(ctx context.Context, tenantID, id string) (*domain.Identity, error)
}

// QuotaGate answers whether a tenant may send count more emails this month.
type QuotaGate interface {
	CheckEmailLimit(ctx context.Context, tenantID string, count int) (*domain.QuotaCheck, error)
}

// ListFilter controls pagination and filtering for campaign lists.
type ListFilter struct {
	Status string
	Search string
	Limit  int
	Offset int
}
