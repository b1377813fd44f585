package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/Marvin-MM/Luco-Email-sub000/internal/domain"
	"github.com/Marvin-MM/Luco-Email-sub000/internal/pkg/logger"
	"github.com/Marvin-MM/Luco-Email-sub000/internal/queue"
)

const (
	DefaultBatchSize    = 100
	DefaultBatchDelay   = 5 * time.Second
	DefaultDispatchTTL  = 10 * time.Minute
	DefaultSendAttempts = 3
	DefaultSendBackoff  = 2 * time.Second
)

// DispatcherConfig tunes batch pacing. Per-campaign payload overrides win
// over these process-wide defaults.
type DispatcherConfig struct {
	BatchSize    int
	BatchDelay   time.Duration
	LockTTL      time.Duration
	SendAttempts int
	SendBackoff  time.Duration
	// FinalizePoll is how often the dispatcher re-checks for queued
	// recipients still in flight before finalizing the campaign.
	FinalizePoll time.Duration
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.BatchDelay <= 0 {
		c.BatchDelay = DefaultBatchDelay
	}
	if c.LockTTL <= 0 {
		c.LockTTL = DefaultDispatchTTL
	}
	if c.SendAttempts <= 0 {
		c.SendAttempts = DefaultSendAttempts
	}
	if c.SendBackoff <= 0 {
		c.SendBackoff = DefaultSendBackoff
	}
	if c.FinalizePoll <= 0 {
		c.FinalizePoll = time.Second
	}
	return c
}

// Dispatcher consumes process-campaign jobs. For each campaign it walks
// the PENDING recipients in batches, flips them to QUEUED, fans out one
// send-email job per recipient, and finalizes the campaign once every
// recipient has settled.
type Dispatcher struct {
	store CampaignStore
	jobs  Enqueuer
	locks Locker
	cfg   DispatcherConfig
	log   *logger.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(store CampaignStore, jobs Enqueuer, locks Locker, cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{
		store: store,
		jobs:  jobs,
		locks: locks,
		cfg:   cfg.withDefaults(),
		log:   logger.With("worker.dispatcher"),
	}
}

// Register wires the dispatcher into the queue manager.
func (d *Dispatcher) Register(m *queue.Manager) {
	m.Register(queue.QueueCampaign, queue.JobProcessCampaign, d.HandleProcessCampaign)
}

// HandleProcessCampaign runs the dispatch loop for one campaign. A
// distributed lock keeps it to a single loop per campaign; a redelivered
// job while the loop still runs errors out and retries later. Because
// batches always re-query the PENDING set from the front, a dispatch that
// died mid-way resumes exactly where it stopped.
func (d *Dispatcher) HandleProcessCampaign(ctx context.Context, job *queue.Job) error {
	var p queue.ProcessCampaignPayload
	if err := job.Decode(&p); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	batchSize := d.cfg.BatchSize
	if p.BatchSize > 0 {
		batchSize = p.BatchSize
	}
	delay := d.cfg.BatchDelay
	if p.DelayBetweenBatches > 0 {
		delay = time.Duration(p.DelayBetweenBatches) * time.Millisecond
	}

	lock, err := d.locks.Acquire(ctx, "luco:dispatch:"+p.CampaignID, d.cfg.LockTTL)
	if err != nil {
		return fmt.Errorf("acquire dispatch lock for %s: %w", p.CampaignID, err)
	}
	defer lock.Release(context.Background())

	d.log.Info("dispatch started", "campaign_id", p.CampaignID,
		"batch_size", batchSize, "batch_delay_ms", delay.Milliseconds())

	for {
		c, err := d.store.GetByID(ctx, p.CampaignID)
		if err != nil {
			return fmt.Errorf("load campaign: %w", err)
		}
		if c.Status != domain.CampaignSending {
			// Cancelled or otherwise settled while dispatching. Recipients
			// not yet queued stay where they are.
			d.log.Info("dispatch stopped, campaign no longer sending",
				"campaign_id", c.ID, "status", c.Status)
			return nil
		}

		batch, err := d.store.FindPendingRecipients(ctx, p.CampaignID, batchSize)
		if err != nil {
			return fmt.Errorf("find pending recipients: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		if err := d.dispatchBatch(ctx, c, batch); err != nil {
			return err
		}

		// A slow campaign outlives the initial lease otherwise.
		if err := lock.Extend(ctx, d.cfg.LockTTL); err != nil {
			d.log.Warn("dispatch lock extend failed", "campaign_id", p.CampaignID, "error", err)
		}

		if len(batch) < batchSize {
			break
		}
		if err := sleepCtx(ctx, delay); err != nil {
			return err
		}
	}

	return d.finalize(ctx, p.CampaignID, lock)
}

func (d *Dispatcher) dispatchBatch(ctx context.Context, c *domain.Campaign, batch []domain.CampaignRecipient) error {
	ids := make([]string, len(batch))
	for i, r := range batch {
		ids[i] = r.ID
	}
	if _, err := d.store.MarkRecipientsQueued(ctx, ids); err != nil {
		return fmt.Errorf("mark recipients queued: %w", err)
	}

	opts := &queue.Options{Attempts: d.cfg.SendAttempts, Backoff: d.cfg.SendBackoff}
	for _, r := range batch {
		_, err := d.jobs.Enqueue(ctx, queue.QueueEmail, queue.JobSendEmail, queue.SendEmailPayload{
			CampaignID:  c.ID,
			RecipientID: r.ID,
			TenantID:    c.TenantID,
		}, opts)
		if err == nil {
			continue
		}
		// A QUEUED recipient with no job behind it would hang the campaign.
		d.log.Error("enqueue send job failed", "campaign_id", c.ID,
			"recipient_id", r.ID, "error", err)
		reason := fmt.Sprintf("could not enqueue send job: %v", err)
		moved, uerr := d.store.UpdateRecipientStatus(ctx, r.ID,
			domain.RecipientQueued, domain.RecipientFailed, reason)
		if uerr != nil {
			return fmt.Errorf("fail stranded recipient: %w", uerr)
		}
		if moved {
			if cerr := d.store.IncrementCounters(ctx, c.ID, 1, 0, 1); cerr != nil {
				return fmt.Errorf("count stranded recipient: %w", cerr)
			}
		}
	}

	d.log.Debug("batch dispatched", "campaign_id", c.ID, "size", len(batch))
	return nil
}

// finalize waits for every queued recipient to settle, then records the
// terminal campaign status: SENT when at least one recipient went out,
// FAILED when none did.
func (d *Dispatcher) finalize(ctx context.Context, campaignID string, lock Lock) error {
	for {
		c, err := d.store.GetByID(ctx, campaignID)
		if err != nil {
			return fmt.Errorf("load campaign: %w", err)
		}
		if c.Status != domain.CampaignSending {
			return nil
		}

		counts, err := d.store.CountRecipientsByStatus(ctx, campaignID)
		if err != nil {
			return fmt.Errorf("count recipients: %w", err)
		}
		if counts[domain.RecipientPending]+counts[domain.RecipientQueued] == 0 {
			status := domain.CampaignSent
			reason := ""
			if counts[domain.RecipientSent] == 0 && counts[domain.RecipientFailed] > 0 {
				status = domain.CampaignFailed
				reason = "all recipients failed"
			}
			if err := d.store.SetStatusByID(ctx, campaignID, status, reason); err != nil {
				return fmt.Errorf("finalize campaign: %w", err)
			}
			d.log.Info("campaign finalized", "campaign_id", campaignID, "status", status,
				"sent", counts[domain.RecipientSent], "failed", counts[domain.RecipientFailed])
			return nil
		}

		if err := lock.Extend(ctx, d.cfg.LockTTL); err != nil {
			d.log.Warn("dispatch lock extend failed", "campaign_id", campaignID, "error", err)
		}
		if err := sleepCtx(ctx, d.cfg.FinalizePoll); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
