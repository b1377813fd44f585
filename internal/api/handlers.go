// Package api exposes the dispatch engine over HTTP: campaign CRUD and
// lifecycle actions, progress reads, queue administration, and health.
// Callers are scoped to a tenant through the X-Tenant-ID header.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/Marvin-MM/Luco-Email-sub000/internal/domain"
	"github.com/Marvin-MM/Luco-Email-sub000/internal/pkg/httputil"
	"github.com/Marvin-MM/Luco-Email-sub000/internal/queue"
	"github.com/Marvin-MM/Luco-Email-sub000/internal/service/campaign"
)

// CampaignAPI is the slice of the campaign service the handlers call.
type CampaignAPI interface {
	Create(ctx context.Context, tenantID string, input campaign.CreateInput) (*domain.Campaign, error)
	Get(ctx context.Context, tenantID, id string) (*domain.Campaign, error)
	List(ctx context.Context, tenantID string, f campaign.ListFilter) ([]domain.Campaign, int, error)
	Start(ctx context.Context, tenantID, id string) error
	Cancel(ctx context.Context, tenantID, id string) error
	Progress(ctx context.Context, tenantID, id string) (*domain.Progress, error)
}

// QueueAdmin is the slice of the queue manager the admin endpoints call.
type QueueAdmin interface {
	AllStats(ctx context.Context) (map[string]*queue.Stats, error)
	Pause(ctx context.Context, queueName string) error
	Resume(ctx context.Context, queueName string) error
}

// Handlers bundles the HTTP handlers and their dependencies.
type Handlers struct {
	campaigns CampaignAPI
	queues    QueueAdmin
}

// NewHandlers creates the handler set.
func NewHandlers(campaigns CampaignAPI, queues QueueAdmin) *Handlers {
	return &Handlers{campaigns: campaigns, queues: queues}
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
