package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/Marvin-MM/Luco-Email-sub000/internal/domain"
	"github.com/Marvin-MM/Luco-Email-sub000/internal/service/campaign"
)

const recipientColumns = `id, campaign_id, email, COALESCE(variables, '{}'::jsonb), status,
	       COALESCE(failure_reason, ''), queued_at, sent_at, failed_at, created_at`

func scanRecipient(row interface{ Scan(...any) error }) (*domain.CampaignRecipient, error) {
	rec := &domain.CampaignRecipient{}
	var vars []byte
	err := row.Scan(
		&rec.ID, &rec.CampaignID, &rec.Email, &vars, &rec.Status,
		&rec.FailureReason, &rec.QueuedAt, &rec.SentAt, &rec.FailedAt, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(vars) > 0 {
		if err := json.Unmarshal(vars, &rec.Variables); err != nil {
			return nil, fmt.Errorf("decode recipient variables: %w", err)
		}
	}
	return rec, nil
}

// FindPendingRecipients returns up to limit PENDING recipients of a
// campaign in stable creation order. The dispatcher always asks from the
// front; recipients leave the PENDING set as they are queued, so a
// restarted dispatch naturally resumes where the last one stopped.
func (r *CampaignRepo) FindPendingRecipients(ctx context.Context, campaignID string, limit int) ([]domain.CampaignRecipient, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recipientColumns+`
		FROM campaign_recipients
		WHERE campaign_id = $1 AND status = $2
		ORDER BY created_at ASC, id ASC
		LIMIT $3
	`, campaignID, domain.RecipientPending, limit)
	if err != nil {
		return nil, fmt.Errorf("find pending recipients: %w", err)
	}
	defer rows.Close()

	var out []domain.CampaignRecipient
	for rows.Next() {
		rec, err := scanRecipient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// MarkRecipientsQueued flips a batch of PENDING recipients to QUEUED and
// returns how many rows actually moved. Rows another dispatcher already
// queued are skipped by the status guard.
func (r *CampaignRepo) MarkRecipientsQueued(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaign_recipients
		SET status = $1, queued_at = NOW()
		WHERE id = ANY($2) AND status = $3
	`, domain.RecipientQueued, pq.Array(ids), domain.RecipientPending)
	if err != nil {
		return 0, fmt.Errorf("mark recipients queued: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *CampaignRepo) GetRecipient(ctx context.Context, id string) (*domain.CampaignRecipient, error) {
	rec, err := scanRecipient(r.db.QueryRowContext(ctx, `
		SELECT `+recipientColumns+`
		FROM campaign_recipients
		WHERE id = $1
	`, id))
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get recipient: %w", err)
	}
	return rec, nil
}

// UpdateRecipientStatus moves one recipient from an expected prior status
// to a new one. Returns false without error when the guard does not match,
// which is how a redelivered job discovers the work is already done.
func (r *CampaignRepo) UpdateRecipientStatus(ctx context.Context, id string, from, to domain.RecipientStatus, failureReason string) (bool, error) {
	q := `UPDATE campaign_recipients SET status = $1`
	args := []interface{}{to}
	idx := 2
	switch to {
	case domain.RecipientSent:
		q += `, sent_at = NOW()`
	case domain.RecipientFailed:
		q += `, failed_at = NOW()`
	case domain.RecipientQueued:
		q += `, queued_at = NOW()`
	}
	if failureReason != "" {
		q += fmt.Sprintf(", failure_reason = $%d", idx)
		args = append(args, failureReason)
		idx++
	}
	q += fmt.Sprintf(" WHERE id = $%d AND status = $%d", idx, idx+1)
	args = append(args, id, from)

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("update recipient status: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// IncrementCounters bumps a campaign's send accounting atomically in a
// single UPDATE, so concurrent send workers never lose increments.
func (r *CampaignRepo) IncrementCounters(ctx context.Context, campaignID string, processed, successful, failed int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE campaigns
		SET processed = processed + $1,
		    successful = successful + $2,
		    failed = failed + $3,
		    updated_at = NOW()
		WHERE id = $4
	`, processed, successful, failed, campaignID)
	if err != nil {
		return fmt.Errorf("increment counters: %w", err)
	}
	return nil
}

// CountRecipientsByStatus returns how many of a campaign's recipients are
// in each status. The dispatcher uses it to finalize the campaign.
func (r *CampaignRepo) CountRecipientsByStatus(ctx context.Context, campaignID string) (map[domain.RecipientStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM campaign_recipients
		WHERE campaign_id = $1
		GROUP BY status
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("count recipients: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.RecipientStatus]int)
	for rows.Next() {
		var status domain.RecipientStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan recipient count: %w", err)
		}
		out[status] = n
	}
	return out, rows.Err()
}
