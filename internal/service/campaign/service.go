package campaign

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Marvin-MM/Luco-Email-sub000/internal/domain"
	"github.com/Marvin-MM/Luco-Email-sub000/internal/pkg/logger"
	"github.com/Marvin-MM/Luco-Email-sub000/internal/queue"
)

// Enqueuer is the slice of the job queue the service needs: the one-shot
// hand-off of an accepted campaign to the background dispatcher.
type Enqueuer interface {
	Enqueue(ctx context.Context, queueName, jobType string, payload any, opts *queue.Options) (*queue.Job, error)
}

// Service implements campaign business logic. It coordinates between the
// repository, the quota gate, and the job queue. All public methods are
// safe for concurrent use if the underlying repository is.
type Service struct {
	repo Repository
	gate QuotaGate
	jobs Enqueuer
	log  *logger.Logger
}

// NewService creates a campaign service.
func NewService(repo Repository, gate QuotaGate, jobs Enqueuer) *Service {
	return &Service{
		repo: repo,
		gate: gate,
		jobs: jobs,
		log:  logger.With("campaign.service"),
	}
}

// RecipientInput is one destination address in a create request.
type RecipientInput struct {
	Email     string         `json:"email"`
	Variables map[string]any `json:"variables,omitempty"`
}

// CreateInput holds the fields for creating a new campaign.
type CreateInput struct {
	Name        string           `json:"name"`
	Subject     string           `json:"subject"`
	TemplateID  string           `json:"template_id"`
	IdentityID  string           `json:"identity_id"`
	ScheduledAt *time.Time       `json:"scheduled_at,omitempty"`
	Variables   map[string]any   `json:"variables,omitempty"`
	Recipients  []RecipientInput `json:"recipients"`
}

// Get returns a single campaign.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*domain.Campaign, error) {
	return s.repo.Get(ctx, tenantID, id)
}

// List returns campaigns matching the filter.
func (s *Service) List(ctx context.Context, tenantID string, f ListFilter) ([]domain.Campaign, int, error) {
	return s.repo.List(ctx, tenantID, f)
}

// Create validates and persists a new campaign with its recipient list.
// Rejections (empty list, malformed addresses, missing template/identity,
// quota) are synchronous and persist nothing.
func (s *Service) Create(ctx context.Context, tenantID string, input CreateInput) (*domain.Campaign, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if input.TemplateID == "" {
		return nil, fmt.Errorf("template_id is required")
	}
	if input.IdentityID == "" {
		return nil, fmt.Errorf("identity_id is required")
	}
	if len(input.Recipients) == 0 {
		return nil, ErrEmptyRecipients
	}

	recipients, invalid := validateRecipients(input.Recipients)
	if len(invalid) > 0 {
		return nil, &ValidationError{Invalid: invalid, Total: len(input.Recipients)}
	}

	tpl, err := s.repo.GetTemplate(ctx, tenantID, input.TemplateID)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.GetIdentity(ctx, tenantID, input.IdentityID); err != nil {
		return nil, err
	}

	check, err := s.gate.CheckEmailLimit(ctx, tenantID, len(recipients))
	if err != nil {
		return nil, fmt.Errorf("quota check: %w", err)
	}
	if !check.Allowed {
		return nil, &QuotaError{
			Reason:    check.Reason,
			Remaining: check.Remaining,
			Limit:     check.Limit,
			Used:      check.Used,
			Requested: len(recipients),
		}
	}

	status := domain.CampaignDraft
	if input.ScheduledAt != nil && input.ScheduledAt.After(time.Now()) {
		status = domain.CampaignScheduled
	}

	subject := input.Subject
	if subject == "" {
		subject = tpl.Subject
	}

	c := &domain.Campaign{
		ID:              uuid.New().String(),
		TenantID:        tenantID,
		Name:            input.Name,
		Subject:         subject,
		TemplateID:      input.TemplateID,
		IdentityID:      input.IdentityID,
		Status:          status,
		Variables:       input.Variables,
		TotalRecipients: len(recipients),
		ScheduledAt:     input.ScheduledAt,
	}

	rows := make([]domain.CampaignRecipient, len(recipients))
	for i, r := range recipients {
		rows[i] = domain.CampaignRecipient{
			ID:         uuid.New().String(),
			CampaignID: c.ID,
			Email:      r.Email,
			Variables:  r.Variables,
			Status:     domain.RecipientPending,
		}
	}

	if err := s.repo.Create(ctx, c, rows); err != nil {
		return nil, fmt.Errorf("persist campaign: %w", err)
	}

	s.log.Info("campaign created", "campaign_id", c.ID, "tenant_id", tenantID,
		"recipients", len(rows), "status", c.Status)
	return c, nil
}

// Start transitions a campaign to SENDING and hands it to the background
// dispatcher exactly once, by enqueuing a single process-campaign job.
// Dispatch never runs synchronously in the request path.
func (s *Service) Start(ctx context.Context, tenantID, id string) error {
	c, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if !c.CanStart() {
		return fmt.Errorf("%w: cannot start campaign in status %s", ErrInvalidTransition, c.Status)
	}

	if err := s.repo.UpdateStatus(ctx, tenantID, id, domain.CampaignSending); err != nil {
		return fmt.Errorf("transition to sending: %w", err)
	}

	_, err = s.jobs.Enqueue(ctx, queue.QueueCampaign, queue.JobProcessCampaign,
		queue.ProcessCampaignPayload{CampaignID: id}, nil)
	if err != nil {
		// The hand-off never happened; without it nothing will drive this
		// campaign, so record the failure rather than leaving it SENDING.
		if rbErr := s.repo.UpdateStatus(ctx, tenantID, id, domain.CampaignFailed); rbErr != nil {
			s.log.Error("rollback after enqueue failure", "campaign_id", id, "error", rbErr)
		}
		return fmt.Errorf("enqueue campaign: %w", err)
	}

	s.log.Info("campaign queued for sending", "campaign_id", id, "tenant_id", tenantID)
	return nil
}

// Cancel transitions a SCHEDULED or SENDING campaign to CANCELLED. The
// dispatcher and workers observe the status cooperatively; attempts already
// in flight may still complete.
func (s *Service) Cancel(ctx context.Context, tenantID, id string) error {
	c, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if !c.CanCancel() {
		return fmt.Errorf("%w: cannot cancel campaign in status %s", ErrInvalidTransition, c.Status)
	}

	if err := s.repo.UpdateStatus(ctx, tenantID, id, domain.CampaignCancelled); err != nil {
		return err
	}

	s.log.Info("campaign cancelled", "campaign_id", id, "tenant_id", tenantID)
	return nil
}

// Progress returns the caller-visible send accounting for a campaign.
func (s *Service) Progress(ctx context.Context, tenantID, id string) (*domain.Progress, error) {
	c, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return &domain.Progress{
		CampaignID: c.ID,
		Status:     c.Status,
		Total:      c.TotalRecipients,
		Processed:  c.Processed,
		Successful: c.Successful,
		Failed:     c.Failed,
	}, nil
}

// validateRecipients lowercases and syntax-checks every address.
func validateRecipients(in []RecipientInput) ([]RecipientInput, []InvalidRecipient) {
	out := make([]RecipientInput, 0, len(in))
	var invalid []InvalidRecipient
	for i, r := range in {
		email := strings.ToLower(strings.TrimSpace(r.Email))
		switch {
		case email == "":
			invalid = append(invalid, InvalidRecipient{Index: i, Email: r.Email, Error: "missing email"})
		case !domain.ValidEmail(email):
			invalid = append(invalid, InvalidRecipient{Index: i, Email: r.Email, Error: "invalid email format"})
		default:
			out = append(out, RecipientInput{Email: email, Variables: r.Variables})
		}
	}
	return out, invalid
}
