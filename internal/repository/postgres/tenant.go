package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Marvin-MM/Luco-Email-sub000/internal/domain"
)

// ErrTenantNotFound is returned when a tenant id resolves to nothing.
var ErrTenantNotFound = fmt.Errorf("tenant not found")

// TenantRepo reads the tenant fields the dispatch engine and quota gate
// need. Tenant CRUD lives outside this service.
type TenantRepo struct{ db *sql.DB }

// NewTenantRepo creates a Postgres-backed tenant repository.
func NewTenantRepo(db *sql.DB) *TenantRepo { return &TenantRepo{db: db} }

func (r *TenantRepo) Get(ctx context.Context, id string) (*domain.Tenant, error) {
	t := &domain.Tenant{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, plan, monthly_email_limit, subscription_status,
		       COALESCE(ses_configuration_set, ''), created_at
		FROM tenants
		WHERE id = $1
	`, id).Scan(
		&t.ID, &t.Name, &t.Plan, &t.MonthlyEmailLimit, &t.SubscriptionStatus,
		&t.SESConfigurationSet, &t.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return t, nil
}

// SendLogRepo persists the append-only transmission log and answers the
// usage queries the quota gate runs against it.
type SendLogRepo struct{ db *sql.DB }

// NewSendLogRepo creates a Postgres-backed send log repository.
func NewSendLogRepo(db *sql.DB) *SendLogRepo { return &SendLogRepo{db: db} }

func (r *SendLogRepo) Create(ctx context.Context, l *domain.SendLog) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO send_logs
			(id, tenant_id, campaign_id, recipient_id, template_id, identity_id,
			 recipient_email, subject, html_content, text_content, status,
			 provider_message_id, failure_reason, sent_at, failed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW())
	`, l.ID, l.TenantID, l.CampaignID, l.RecipientID, l.TemplateID, l.IdentityID,
		l.RecipientEmail, l.Subject, l.HTMLContent, l.TextContent, l.Status,
		l.ProviderMessageID, l.FailureReason, l.SentAt, l.FailedAt)
	if err != nil {
		return fmt.Errorf("create send log: %w", err)
	}
	return nil
}

// CountForTenantSince counts a tenant's send log rows created at or after
// the given instant. The quota gate passes the start of the calendar month.
func (r *SendLogRepo) CountForTenantSince(ctx context.Context, tenantID string, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM send_logs
		WHERE tenant_id = $1 AND created_at >= $2
	`, tenantID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count send logs: %w", err)
	}
	return n, nil
}
