package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Marvin-MM/Luco-Email-sub000/internal/domain"
	"github.com/Marvin-MM/Luco-Email-sub000/internal/pkg/logger"
	"github.com/Marvin-MM/Luco-Email-sub000/internal/queue"
	"github.com/Marvin-MM/Luco-Email-sub000/internal/service/campaign"
	"github.com/Marvin-MM/Luco-Email-sub000/internal/template"
)

// Sender consumes send-email jobs: renders the template for one recipient,
// delivers through the transport, and records the outcome. Every outcome
// write goes through a status guard, so a redelivered job whose recipient
// already settled is a no-op.
type Sender struct {
	store    CampaignStore
	tenants  TenantStore
	sendlogs SendLogStore
	renderer *template.Renderer
	tx       Transport
	log      *logger.Logger
}

// NewSender creates a send worker.
func NewSender(store CampaignStore, tenants TenantStore, sendlogs SendLogStore, renderer *template.Renderer, tx Transport) *Sender {
	return &Sender{
		store:    store,
		tenants:  tenants,
		sendlogs: sendlogs,
		renderer: renderer,
		tx:       tx,
		log:      logger.With("worker.sender"),
	}
}

// Register wires the sender into the queue manager.
func (s *Sender) Register(m *queue.Manager) {
	m.Register(queue.QueueEmail, queue.JobSendEmail, s.HandleSendEmail)
}

// HandleSendEmail processes one recipient. Render failures are permanent
// and never reach the transport; transport failures are returned so the
// queue retries with backoff, and the recipient is failed once the
// attempt budget runs out.
func (s *Sender) HandleSendEmail(ctx context.Context, job *queue.Job) error {
	var p queue.SendEmailPayload
	if err := job.Decode(&p); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	rec, err := s.store.GetRecipient(ctx, p.RecipientID)
	if err != nil {
		return fmt.Errorf("load recipient: %w", err)
	}
	if rec.Status.IsTerminal() {
		s.log.Debug("recipient already settled", "recipient_id", rec.ID, "status", rec.Status)
		return nil
	}

	c, err := s.store.GetByID(ctx, p.CampaignID)
	if err != nil {
		return fmt.Errorf("load campaign: %w", err)
	}
	if c.Status != domain.CampaignSending {
		// Cancelled after the job was queued. Leave the recipient as is.
		s.log.Info("skipping send, campaign no longer sending",
			"campaign_id", c.ID, "status", c.Status, "recipient_id", rec.ID)
		return nil
	}

	tenant, err := s.tenants.Get(ctx, c.TenantID)
	if err != nil {
		return fmt.Errorf("load tenant: %w", err)
	}
	tpl, err := s.store.GetTemplate(ctx, c.TenantID, c.TemplateID)
	if err != nil {
		if errors.Is(err, campaign.ErrTemplateNotFound) {
			return s.failRecipient(ctx, c, rec, "template not found or inactive")
		}
		// A store blip is not a recipient outcome. Surface it so the
		// queue retries.
		return fmt.Errorf("load template: %w", err)
	}
	identity, err := s.store.GetIdentity(ctx, c.TenantID, c.IdentityID)
	if err != nil {
		if errors.Is(err, campaign.ErrIdentityNotFound) {
			return s.failRecipient(ctx, c, rec, "sender identity not found or unverified")
		}
		return fmt.Errorf("load identity: %w", err)
	}

	rendered, err := s.renderer.Render(template.RenderInput{
		Template:  tpl,
		Subject:   c.Subject,
		Campaign:  c.Variables,
		Recipient: rec,
	})
	if err != nil {
		// Rendering is deterministic; retrying cannot fix it. The message
		// never reaches the transport.
		var merr *template.MissingVariableError
		reason := fmt.Sprintf("render failed: %v", err)
		if errors.As(err, &merr) {
			reason = merr.Error()
		}
		return s.failRecipient(ctx, c, rec, reason)
	}

	msg := &domain.EmailMessage{
		ID:          uuid.New().String(),
		CampaignID:  c.ID,
		RecipientID: rec.ID,
		Email:       rec.Email,
		FromEmail:   identity.Value,
		Subject:     rendered.Subject,
		HTMLContent: rendered.HTMLContent,
		TextContent: rendered.TextContent,
		ConfigSet:   tenant.SESConfigurationSet,
		Tags: map[string]string{
			"campaign_id":  c.ID,
			"recipient_id": rec.ID,
		},
	}

	result, err := s.tx.Send(ctx, msg)
	if err != nil {
		if job.AttemptsMade >= job.MaxAttempts {
			// Attempt budget exhausted. Settle the recipient before the
			// job lands on the failed list.
			if ferr := s.settle(ctx, c, rec, rendered, nil, fmt.Sprintf("send failed after %d attempts: %v", job.AttemptsMade, err)); ferr != nil {
				return ferr
			}
		}
		return err
	}

	return s.settle(ctx, c, rec, rendered, result, "")
}

// failRecipient settles a recipient as permanently failed without a
// transport attempt.
func (s *Sender) failRecipient(ctx context.Context, c *domain.Campaign, rec *domain.CampaignRecipient, reason string) error {
	return s.settle(ctx, c, rec, nil, nil, reason)
}

// settle records one terminal outcome: recipient status, a send log row,
// and the campaign counters. The recipient status guard makes the whole
// settlement idempotent; if another delivery of the job got here first,
// nothing is double-counted.
func (s *Sender) settle(ctx context.Context, c *domain.Campaign, rec *domain.CampaignRecipient, rendered *domain.RenderedEmail, result *domain.SendResult, failureReason string) error {
	success := failureReason == "" && result != nil && result.Success

	to := domain.RecipientFailed
	if success {
		to = domain.RecipientSent
	}
	moved, err := s.store.UpdateRecipientStatus(ctx, rec.ID, rec.Status, to, failureReason)
	if err != nil {
		return fmt.Errorf("settle recipient: %w", err)
	}
	if !moved {
		s.log.Debug("recipient settled elsewhere", "recipient_id", rec.ID)
		return nil
	}

	now := time.Now()
	l := &domain.SendLog{
		ID:             uuid.New().String(),
		TenantID:       c.TenantID,
		CampaignID:     c.ID,
		RecipientID:    rec.ID,
		TemplateID:     c.TemplateID,
		IdentityID:     c.IdentityID,
		RecipientEmail: rec.Email,
		FailureReason:  failureReason,
	}
	if rendered != nil {
		l.Subject = rendered.Subject
		l.HTMLContent = rendered.HTMLContent
		l.TextContent = rendered.TextContent
	}
	if success {
		l.Status = domain.SendLogSent
		l.ProviderMessageID = result.MessageID
		l.SentAt = &now
	} else {
		l.Status = domain.SendLogFailed
		l.FailedAt = &now
	}
	if err := s.sendlogs.Create(ctx, l); err != nil {
		return fmt.Errorf("write send log: %w", err)
	}

	successful, failed := 0, 1
	if success {
		successful, failed = 1, 0
	}
	if err := s.store.IncrementCounters(ctx, c.ID, 1, successful, failed); err != nil {
		return fmt.Errorf("update counters: %w", err)
	}

	if success {
		s.log.Info("email sent", "campaign_id", c.ID, "recipient_id", rec.ID,
			"to", logger.RedactEmail(rec.Email), "message_id", result.MessageID)
	} else {
		s.log.Warn("recipient failed", "campaign_id", c.ID, "recipient_id", rec.ID,
			"to", logger.RedactEmail(rec.Email), "reason", failureReason)
	}
	return nil
}
