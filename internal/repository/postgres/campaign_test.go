package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Marvin-MM/Luco-Email-sub000/internal/domain"
	"github.com/Marvin-MM/Luco-Email-sub000/internal/service/campaign"
)

func newMockRepo(t *testing.T) (*CampaignRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewCampaignRepo(db), mock
}

func campaignRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "tenant_id", "name", "subject", "template_id", "identity_id", "status",
		"variables", "total_recipients", "processed", "successful", "failed",
		"failure_reason", "scheduled_at", "sent_at", "completed_at", "cancelled_at",
		"created_at", "updated_at",
	})
}

func TestCampaignGet(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM campaigns").
		WithArgs("c1", "t1").
		WillReturnRows(campaignRows().AddRow(
			"c1", "t1", "Promo", "Hello", "tpl1", "id1", "SENDING",
			[]byte(`{"brand":"Luco"}`), 3, 2, 2, 0,
			"", nil, &now, nil, nil, now, now,
		))

	c, err := repo.Get(context.Background(), "t1", "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignSending, c.Status)
	assert.Equal(t, "Luco", c.Variables["brand"])
	assert.Equal(t, 2, c.Successful)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignGetNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM campaigns").
		WithArgs("missing", "t1").
		WillReturnRows(campaignRows())

	_, err := repo.Get(context.Background(), "t1", "missing")
	assert.ErrorIs(t, err, campaign.ErrNotFound)
}

func TestCampaignCreateTransactional(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO campaigns").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectPrepare("INSERT INTO campaign_recipients")
	mock.ExpectExec("INSERT INTO campaign_recipients").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO campaign_recipients").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c := &domain.Campaign{ID: "c1", TenantID: "t1", Name: "Promo",
		Status: domain.CampaignDraft, TotalRecipients: 2}
	recs := []domain.CampaignRecipient{
		{ID: "r1", CampaignID: "c1", Email: "a@example.com", Status: domain.RecipientPending},
		{ID: "r2", CampaignID: "c1", Email: "b@example.com", Status: domain.RecipientPending},
	}
	require.NoError(t, repo.Create(context.Background(), c, recs))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignCreateRollsBackOnRecipientError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO campaigns").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectPrepare("INSERT INTO campaign_recipients")
	mock.ExpectExec("INSERT INTO campaign_recipients").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	c := &domain.Campaign{ID: "c1", TenantID: "t1", Status: domain.CampaignDraft}
	recs := []domain.CampaignRecipient{
		{ID: "r1", CampaignID: "c1", Email: "a@example.com", Status: domain.RecipientPending},
	}
	require.Error(t, repo.Create(context.Background(), c, recs))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusGuardedTransition(t *testing.T) {
	repo, mock := newMockRepo(t)

	// The guarded UPDATE matches nothing, but the campaign exists: the
	// transition itself was illegal.
	mock.ExpectExec("UPDATE campaigns SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.UpdateStatus(context.Background(), "t1", "c1", domain.CampaignSending)
	assert.ErrorIs(t, err, campaign.ErrInvalidTransition)
}

func TestUpdateStatusNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE campaigns SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := repo.UpdateStatus(context.Background(), "t1", "c1", domain.CampaignSending)
	assert.ErrorIs(t, err, campaign.ErrNotFound)
}

func TestUpdateRecipientStatusGuard(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE campaign_recipients SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))

	moved, err := repo.UpdateRecipientStatus(context.Background(), "r1",
		domain.RecipientQueued, domain.RecipientSent, "")
	require.NoError(t, err)
	assert.False(t, moved, "a mismatched prior status is a no-op, not an error")
}

func TestMarkRecipientsQueued(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE campaign_recipients").
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.MarkRecipientsQueued(context.Background(), []string{"r1", "r2", "r3"})
	require.NoError(t, err)
	assert.Equal(t, 2, n, "rows already queued elsewhere are skipped")

	n, err = repo.MarkRecipientsQueued(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIncrementCountersSingleStatement(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE campaigns").
		WithArgs(1, 1, 0, "c1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.IncrementCounters(context.Background(), "c1", 1, 1, 0))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountForTenantSince(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	since := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM send_logs").
		WithArgs("t1", since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	n, err := NewSendLogRepo(db).CountForTenantSince(context.Background(), "t1", since)
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}
