package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Marvin-MM/Luco-Email-sub000/internal/domain"
	"github.com/Marvin-MM/Luco-Email-sub000/internal/service/campaign"
)

// CampaignRepo implements campaign.Repository against PostgreSQL. It also
// carries the recipient and counter operations the dispatch workers use.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

// allowedFrom lists the prior statuses each transition target is reachable
// from. Status updates are guarded in SQL with this map so concurrent
// writers cannot race a campaign into an illegal state.
var allowedFrom = map[domain.CampaignStatus][]string{
	domain.CampaignScheduled: {string(domain.CampaignDraft)},
	domain.CampaignSending:   {string(domain.CampaignDraft), string(domain.CampaignScheduled)},
	domain.CampaignSent:      {string(domain.CampaignSending)},
	domain.CampaignFailed:    {string(domain.CampaignSending)},
	domain.CampaignCancelled: {string(domain.CampaignScheduled), string(domain.CampaignSending)},
}

// stampColumn names the timestamp column set alongside each transition.
func stampColumn(status domain.CampaignStatus) string {
	switch status {
	case domain.CampaignSending:
		return "sent_at"
	case domain.CampaignSent, domain.CampaignFailed:
		return "completed_at"
	case domain.CampaignCancelled:
		return "cancelled_at"
	}
	return ""
}

const campaignColumns = `id, tenant_id, name, subject, template_id, identity_id, status,
	       COALESCE(variables, '{}'::jsonb), total_recipients, processed, successful, failed,
	       COALESCE(failure_reason, ''), scheduled_at, sent_at, completed_at, cancelled_at,
	       created_at, updated_at`

func scanCampaign(row interface{ Scan(...any) error }) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	var vars []byte
	err := row.Scan(
		&c.ID, &c.TenantID, &c.Name, &c.Subject, &c.TemplateID, &c.IdentityID, &c.Status,
		&vars, &c.TotalRecipients, &c.Processed, &c.Successful, &c.Failed,
		&c.FailureReason, &c.ScheduledAt, &c.SentAt, &c.CompletedAt, &c.CancelledAt,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(vars) > 0 {
		if err := json.Unmarshal(vars, &c.Variables); err != nil {
			return nil, fmt.Errorf("decode variables: %w", err)
		}
	}
	return c, nil
}

func (r *CampaignRepo) Get(ctx context.Context, tenantID, id string) (*domain.Campaign, error) {
	c, err := scanCampaign(r.db.QueryRowContext(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns
		WHERE id = $1 AND tenant_id = $2
	`, id, tenantID))
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

// GetByID looks a campaign up without tenant scoping. Queue payloads carry
// only the campaign id, so the workers resolve the tenant from the row.
func (r *CampaignRepo) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	c, err := scanCampaign(r.db.QueryRowContext(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns
		WHERE id = $1
	`, id))
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) List(ctx context.Context, tenantID string, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	where := ` WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	idx := 2

	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}
	if f.Search != "" {
		where += fmt.Sprintf(" AND name ILIKE $%d", idx)
		args = append(args, "%"+f.Search+"%")
		idx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}

	q := `SELECT ` + campaignColumns + ` FROM campaigns` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

// Create inserts the campaign and all its recipient rows in one
// transaction. A failure anywhere rolls everything back.
func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign, recipients []domain.CampaignRecipient) error {
	vars, err := json.Marshal(c.Variables)
	if err != nil {
		return fmt.Errorf("encode variables: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO campaigns
			(id, tenant_id, name, subject, template_id, identity_id, status,
			 variables, total_recipients, scheduled_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
	`, c.ID, c.TenantID, c.Name, c.Subject, c.TemplateID, c.IdentityID, c.Status,
		vars, c.TotalRecipients, c.ScheduledAt)
	if err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO campaign_recipients
			(id, campaign_id, email, variables, status, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`)
	if err != nil {
		return fmt.Errorf("prepare recipients: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recipients {
		rv, err := json.Marshal(rec.Variables)
		if err != nil {
			return fmt.Errorf("encode recipient variables: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, rec.ID, rec.CampaignID, rec.Email, rv, rec.Status); err != nil {
			return fmt.Errorf("insert recipient: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *CampaignRepo) UpdateStatus(ctx context.Context, tenantID, id string, status domain.CampaignStatus) error {
	return r.transition(ctx, id, tenantID, status, "")
}

// SetStatusByID is the workers' transition entry point: no tenant scoping
// and an optional failure reason recorded with the terminal state.
func (r *CampaignRepo) SetStatusByID(ctx context.Context, id string, status domain.CampaignStatus, failureReason string) error {
	return r.transition(ctx, id, "", status, failureReason)
}

func (r *CampaignRepo) transition(ctx context.Context, id, tenantID string, status domain.CampaignStatus, failureReason string) error {
	from, ok := allowedFrom[status]
	if !ok {
		return fmt.Errorf("%w: no transition targets %s", campaign.ErrInvalidTransition, status)
	}

	q := `UPDATE campaigns SET status = $1, updated_at = NOW()`
	if col := stampColumn(status); col != "" {
		q += `, ` + col + ` = NOW()`
	}
	args := []interface{}{status}
	idx := 2
	if failureReason != "" {
		q += fmt.Sprintf(", failure_reason = $%d", idx)
		args = append(args, failureReason)
		idx++
	}
	q += fmt.Sprintf(" WHERE id = $%d AND status = ANY($%d)", idx, idx+1)
	args = append(args, id, pq.Array(from))
	idx += 2
	if tenantID != "" {
		q += fmt.Sprintf(" AND tenant_id = $%d", idx)
		args = append(args, tenantID)
	}

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		// Distinguish a missing row from a guarded transition.
		var exists bool
		checkQ := `SELECT EXISTS(SELECT 1 FROM campaigns WHERE id = $1`
		checkArgs := []interface{}{id}
		if tenantID != "" {
			checkQ += ` AND tenant_id = $2`
			checkArgs = append(checkArgs, tenantID)
		}
		checkQ += `)`
		if err := r.db.QueryRowContext(ctx, checkQ, checkArgs...).Scan(&exists); err != nil {
			return fmt.Errorf("check campaign: %w", err)
		}
		if !exists {
			return campaign.ErrNotFound
		}
		return fmt.Errorf("%w: campaign %s not in a state that allows %s",
			campaign.ErrInvalidTransition, id, status)
	}
	return nil
}

// FindDueScheduled returns SCHEDULED campaigns whose scheduled_at has
// passed, oldest first. The scheduler promotes them to SENDING.
func (r *CampaignRepo) FindDueScheduled(ctx context.Context, before time.Time, limit int) ([]domain.Campaign, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns
		WHERE status = $1 AND scheduled_at <= $2
		ORDER BY scheduled_at ASC
		LIMIT $3
	`, domain.CampaignScheduled, before, limit)
	if err != nil {
		return nil, fmt.Errorf("find due scheduled: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *CampaignRepo) GetTemplate(ctx context.Context, tenantID, id string) (*domain.Template, error) {
	t := &domain.Template{}
	var vars []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, subject, COALESCE(html_content,''), COALESCE(text_content,''),
		       COALESCE(variables, '[]'::jsonb), is_active
		FROM templates
		WHERE id = $1 AND tenant_id = $2 AND is_active = true
	`, id, tenantID).Scan(
		&t.ID, &t.TenantID, &t.Name, &t.Subject, &t.HTMLContent, &t.TextContent,
		&vars, &t.IsActive,
	)
	if err == sql.ErrNoRows {
		return nil, campaign.ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	if len(vars) > 0 {
		if err := json.Unmarshal(vars, &t.Variables); err != nil {
			return nil, fmt.Errorf("decode template variables: %w", err)
		}
	}
	return t, nil
}

func (r *CampaignRepo) GetIdentity(ctx context.Context, tenantID, id string) (*domain.Identity, error) {
	iden := &domain.Identity{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, value, type, status
		FROM identities
		WHERE id = $1 AND tenant_id = $2 AND status = $3
	`, id, tenantID, domain.IdentityVerified).Scan(
		&iden.ID, &iden.TenantID, &iden.Value, &iden.Type, &iden.Status,
	)
	if err == sql.ErrNoRows {
		return nil, campaign.ErrIdentityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}
	return iden, nil
}
