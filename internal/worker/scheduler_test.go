package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Marvin-MM/Luco-Email-sub000/internal/domain"
	"github.com/Marvin-MM/Luco-Email-sub000/internal/queue"
)

func scheduledCampaign(id string, at time.Time) *domain.Campaign {
	return &domain.Campaign{
		ID: id, TenantID: "tenant-1", Status: domain.CampaignScheduled, ScheduledAt: &at,
	}
}

func TestSchedulerPromotesDueCampaigns(t *testing.T) {
	store := newMemStore()
	store.addCampaign(scheduledCampaign("due-1", time.Now().Add(-time.Minute)))
	store.addCampaign(scheduledCampaign("future-1", time.Now().Add(time.Hour)))

	jobs := &recordEnqueuer{}
	s := NewScheduler(store, jobs, noopLocker{}, time.Second)

	require.NoError(t, s.Tick(context.Background()))

	assert.Equal(t, domain.CampaignSending, store.campaign("due-1").Status)
	assert.Equal(t, domain.CampaignScheduled, store.campaign("future-1").Status)

	require.Len(t, jobs.jobs, 1)
	assert.Equal(t, queue.QueueCampaign, jobs.jobs[0].Queue)
	assert.Equal(t, queue.JobProcessCampaign, jobs.jobs[0].Type)
}

func TestSchedulerTickNoopWhenLockHeld(t *testing.T) {
	store := newMemStore()
	store.addCampaign(scheduledCampaign("due-1", time.Now().Add(-time.Minute)))

	jobs := &recordEnqueuer{}
	s := NewScheduler(store, jobs, heldLocker{}, time.Second)

	require.NoError(t, s.Tick(context.Background()))
	assert.Equal(t, domain.CampaignScheduled, store.campaign("due-1").Status)
	assert.Empty(t, jobs.jobs)
}

func TestSchedulerEnqueueFailureMarksFailed(t *testing.T) {
	store := newMemStore()
	store.addCampaign(scheduledCampaign("due-1", time.Now().Add(-time.Minute)))

	jobs := &recordEnqueuer{err: assert.AnError}
	s := NewScheduler(store, jobs, noopLocker{}, time.Second)

	require.NoError(t, s.Tick(context.Background()))

	got := store.campaign("due-1")
	assert.Equal(t, domain.CampaignFailed, got.Status)
	assert.Contains(t, got.FailureReason, "could not enqueue")
}

func TestSchedulerStartStop(t *testing.T) {
	store := newMemStore()
	s := NewScheduler(store, &recordEnqueuer{}, noopLocker{}, 10*time.Millisecond)

	require.NoError(t, s.Start())
	assert.Error(t, s.Start(), "double start is rejected")
	s.Stop()
	s.Stop() // idempotent
}
