package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Marvin-MM/Luco-Email-sub000/internal/domain"
	"github.com/Marvin-MM/Luco-Email-sub000/internal/pkg/logger"
	"github.com/Marvin-MM/Luco-Email-sub000/internal/queue"
)

const (
	DefaultSchedulerPoll = 30 * time.Second
	schedulerLockKey     = "luco:scheduler"
	schedulerBatch       = 50
)

// Scheduler polls for SCHEDULED campaigns whose time has arrived,
// promotes them to SENDING, and hands each to the dispatcher. A
// distributed lock keeps one poller active across worker processes.
type Scheduler struct {
	store CampaignStore
	jobs  Enqueuer
	locks Locker
	poll  time.Duration
	log   *logger.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

// NewScheduler creates a scheduled-campaign poller.
func NewScheduler(store CampaignStore, jobs Enqueuer, locks Locker, poll time.Duration) *Scheduler {
	if poll <= 0 {
		poll = DefaultSchedulerPoll
	}
	return &Scheduler{
		store: store,
		jobs:  jobs,
		locks: locks,
		poll:  poll,
		log:   logger.With("worker.scheduler"),
	}
}

// Start launches the poll loop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.running = true

	s.wg.Add(1)
	go s.loop()

	s.log.Info("scheduler started", "poll_interval", s.poll.String())
	return nil
}

// Stop halts the poll loop and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) loop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.Tick(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.log.Error("scheduler tick failed", "error", err)
			}
		}
	}
}

// Tick promotes every due campaign once. Exported so a deployment can
// drive promotion from cron instead of the resident loop.
func (s *Scheduler) Tick(ctx context.Context) error {
	lock, err := s.locks.Acquire(ctx, schedulerLockKey, s.poll)
	if errors.Is(err, ErrLockHeld) {
		// Another process is polling.
		return nil
	}
	if err != nil {
		return fmt.Errorf("acquire scheduler lock: %w", err)
	}
	defer lock.Release(context.Background())

	due, err := s.store.FindDueScheduled(ctx, time.Now(), schedulerBatch)
	if err != nil {
		return fmt.Errorf("find due campaigns: %w", err)
	}

	for _, c := range due {
		if err := s.promote(ctx, c); err != nil {
			s.log.Error("promote scheduled campaign failed", "campaign_id", c.ID, "error", err)
		}
	}
	return nil
}

func (s *Scheduler) promote(ctx context.Context, c domain.Campaign) error {
	if err := s.store.SetStatusByID(ctx, c.ID, domain.CampaignSending, ""); err != nil {
		return err
	}
	_, err := s.jobs.Enqueue(ctx, queue.QueueCampaign, queue.JobProcessCampaign,
		queue.ProcessCampaignPayload{CampaignID: c.ID}, nil)
	if err != nil {
		// Same rule as a manual start: a SENDING campaign nobody drives
		// must not linger.
		if rbErr := s.store.SetStatusByID(ctx, c.ID, domain.CampaignFailed,
			fmt.Sprintf("could not enqueue dispatch: %v", err)); rbErr != nil {
			s.log.Error("rollback after enqueue failure", "campaign_id", c.ID, "error", rbErr)
		}
		return err
	}

	s.log.Info("scheduled campaign promoted", "campaign_id", c.ID,
		"tenant_id", c.TenantID, "scheduled_at", c.ScheduledAt)
	return nil
}
