// Package worker contains the background half of the dispatch engine:
// the campaign dispatcher, the per-recipient send worker, and the
// scheduled-campaign poller. Workers consume jobs from the queue and
// touch campaigns only through status-guarded store operations, so a
// redelivered or duplicated job never double-counts a recipient.
package worker

import (
	"context"
	"time"

	"github.com/Marvin-MM/Luco-Email-sub000/internal/domain"
	"github.com/Marvin-MM/Luco-Email-sub000/internal/queue"
)

// CampaignStore is the persistence surface the workers drive dispatch
// through. *postgres.CampaignRepo implements it.
type CampaignStore interface {
	GetByID(ctx context.Context, id string) (*domain.Campaign, error)
	SetStatusByID(ctx context.Context, id string, status domain.CampaignStatus, failureReason string) error
	FindDueScheduled(ctx context.Context, before time.Time, limit int) ([]domain.Campaign, error)

	FindPendingRecipients(ctx context.Context, campaignID string, limit int) ([]domain.CampaignRecipient, error)
	MarkRecipientsQueued(ctx context.Context, ids []string) (int, error)
	GetRecipient(ctx context.Context, id string) (*domain.CampaignRecipient, error)
	UpdateRecipientStatus(ctx context.Context, id string, from, to domain.RecipientStatus, failureReason string) (bool, error)
	IncrementCounters(ctx context.Context, campaignID string, processed, successful, failed int) error
	CountRecipientsByStatus(ctx context.Context, campaignID string) (map[domain.RecipientStatus]int, error)

	GetTemplate(ctx context.Context, tenantID, id string) (*domain.Template, error)
	GetIdentity(ctx context.Context, tenantID, id string) (*domain.Identity, error)
}

// TenantStore resolves the tenant a campaign sends on behalf of.
type TenantStore interface {
	Get(ctx context.Context, id string) (*domain.Tenant, error)
}

// SendLogStore appends transmission records.
type SendLogStore interface {
	Create(ctx context.Context, l *domain.SendLog) error
}

// Enqueuer hands jobs to the queue. *queue.Manager implements it.
type Enqueuer interface {
	Enqueue(ctx context.Context, queueName, jobType string, payload any, opts *queue.Options) (*queue.Job, error)
}

// Transport delivers one rendered email to the provider.
type Transport interface {
	Send(ctx context.Context, msg *domain.EmailMessage) (*domain.SendResult, error)
}

// Locker vends named distributed locks. The dispatcher and scheduler use
// it to keep one active loop per campaign and one poller per cluster.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// Lock is one held lock. Extend refreshes the TTL so a holder that
// outlives its initial lease keeps ownership.
type Lock interface {
	Release(ctx context.Context) error
	Extend(ctx context.Context, ttl time.Duration) error
}
