package billing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Marvin-MM/Luco-Email-sub000/internal/domain"
)

type stubTenants struct{ t *domain.Tenant }

func (s *stubTenants) Get(ctx context.Context, id string) (*domain.Tenant, error) {
	return s.t, nil
}

type stubUsage struct {
	used  int
	since time.Time
}

func (s *stubUsage) CountForTenantSince(ctx context.Context, tenantID string, since time.Time) (int, error) {
	s.since = since
	return s.used, nil
}

func newGate(tenant *domain.Tenant, used int) (*Gate, *stubUsage) {
	usage := &stubUsage{used: used}
	g := NewGate(&stubTenants{t: tenant}, usage)
	return g, usage
}

func activeTenant(plan string, limit int) *domain.Tenant {
	return &domain.Tenant{
		ID: "t1", Plan: plan, MonthlyEmailLimit: limit,
		SubscriptionStatus: domain.SubscriptionActive,
	}
}

func TestCheckWithinLimit(t *testing.T) {
	g, _ := newGate(activeTenant(PlanStarter, 0), 9000)

	check, err := g.CheckEmailLimit(context.Background(), "t1", 500)
	require.NoError(t, err)
	assert.True(t, check.Allowed)
	assert.Equal(t, 1000, check.Remaining)
	assert.Equal(t, 10000, check.Limit)
	assert.Equal(t, 9000, check.Used)
}

func TestCheckExactlyAtLimit(t *testing.T) {
	g, _ := newGate(activeTenant(PlanFree, 0), 900)

	check, err := g.CheckEmailLimit(context.Background(), "t1", 100)
	require.NoError(t, err)
	assert.True(t, check.Allowed, "a request consuming exactly the remainder is allowed")
}

func TestCheckOverLimit(t *testing.T) {
	g, _ := newGate(activeTenant(PlanFree, 0), 900)

	check, err := g.CheckEmailLimit(context.Background(), "t1", 101)
	require.NoError(t, err)
	assert.False(t, check.Allowed)
	assert.Equal(t, "monthly email limit exceeded", check.Reason)
	assert.Equal(t, 100, check.Remaining)
}

func TestTenantOverrideBeatsPlanLimit(t *testing.T) {
	g, _ := newGate(activeTenant(PlanFree, 5000), 2000)

	check, err := g.CheckEmailLimit(context.Background(), "t1", 1000)
	require.NoError(t, err)
	assert.True(t, check.Allowed)
	assert.Equal(t, 5000, check.Limit)
}

func TestInactiveSubscriptionDenied(t *testing.T) {
	tenant := activeTenant(PlanEnterprise, 0)
	tenant.SubscriptionStatus = domain.SubscriptionPastDue
	g, _ := newGate(tenant, 0)

	check, err := g.CheckEmailLimit(context.Background(), "t1", 1)
	require.NoError(t, err)
	assert.False(t, check.Allowed)
	assert.Equal(t, "subscription is not active", check.Reason)
}

func TestUsageOverLimitClampsRemaining(t *testing.T) {
	g, _ := newGate(activeTenant(PlanFree, 0), 1500)

	check, err := g.CheckEmailLimit(context.Background(), "t1", 1)
	require.NoError(t, err)
	assert.False(t, check.Allowed)
	assert.Zero(t, check.Remaining)
}

func TestUsageWindowIsCalendarMonth(t *testing.T) {
	g, usage := newGate(activeTenant(PlanFree, 0), 0)
	g.now = func() time.Time {
		return time.Date(2026, time.August, 31, 23, 15, 0, 0, time.UTC)
	}

	_, err := g.CheckEmailLimit(context.Background(), "t1", 1)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC), usage.since)
}

func TestPlanLimits(t *testing.T) {
	assert.Equal(t, 1000, PlanLimit(PlanFree))
	assert.Equal(t, 10000, PlanLimit(PlanStarter))
	assert.Equal(t, 50000, PlanLimit(PlanProfessional))
	assert.Equal(t, 250000, PlanLimit(PlanEnterprise))
	assert.Equal(t, 1000, PlanLimit("LEGACY"), "unknown plans fall back to FREE")
}
