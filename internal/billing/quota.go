// Package billing implements the monthly email quota gate. Usage is
// derived from the send log, so the gate needs no separate counter to
// keep consistent.
package billing

import (
	"context"
	"time"

	"github.com/Marvin-MM/Luco-Email-sub000/internal/domain"
	"github.com/Marvin-MM/Luco-Email-sub000/internal/pkg/logger"
)

// Monthly email allowances per plan. A tenant row can override its plan's
// allowance with an explicit monthly_email_limit.
const (
	PlanFree         = "FREE"
	PlanStarter      = "STARTER"
	PlanProfessional = "PROFESSIONAL"
	PlanEnterprise   = "ENTERPRISE"
)

var planLimits = map[string]int{
	PlanFree:         1000,
	PlanStarter:      10000,
	PlanProfessional: 50000,
	PlanEnterprise:   250000,
}

// PlanLimit returns the monthly allowance for a plan, or the FREE
// allowance for an unknown plan name.
func PlanLimit(plan string) int {
	if l, ok := planLimits[plan]; ok {
		return l
	}
	return planLimits[PlanFree]
}

// TenantStore resolves the tenant whose quota is being checked.
type TenantStore interface {
	Get(ctx context.Context, id string) (*domain.Tenant, error)
}

// UsageStore answers how many emails a tenant has attempted since an instant.
type UsageStore interface {
	CountForTenantSince(ctx context.Context, tenantID string, since time.Time) (int, error)
}

// Gate enforces per-tenant monthly email quotas. It is consulted
// synchronously at campaign creation; once a campaign is accepted its
// sends proceed even if the tenant crosses the limit mid-flight.
type Gate struct {
	tenants TenantStore
	usage   UsageStore
	now     func() time.Time
	log     *logger.Logger
}

// NewGate creates a quota gate.
func NewGate(tenants TenantStore, usage UsageStore) *Gate {
	return &Gate{
		tenants: tenants,
		usage:   usage,
		now:     time.Now,
		log:     logger.With("billing.quota"),
	}
}

// CheckEmailLimit reports whether the tenant may send count more emails
// this calendar month.
func (g *Gate) CheckEmailLimit(ctx context.Context, tenantID string, count int) (*domain.QuotaCheck, error) {
	t, err := g.tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if t.SubscriptionStatus != domain.SubscriptionActive {
		return &domain.QuotaCheck{
			Allowed: false,
			Reason:  "subscription is not active",
		}, nil
	}

	limit := t.MonthlyEmailLimit
	if limit <= 0 {
		limit = PlanLimit(t.Plan)
	}

	used, err := g.usage.CountForTenantSince(ctx, tenantID, monthStart(g.now()))
	if err != nil {
		return nil, err
	}

	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}

	check := &domain.QuotaCheck{
		Allowed:   count <= remaining,
		Remaining: remaining,
		Limit:     limit,
		Used:      used,
	}
	if !check.Allowed {
		check.Reason = "monthly email limit exceeded"
		g.log.Warn("quota check denied", "tenant_id", tenantID,
			"requested", count, "remaining", remaining, "limit", limit)
	}
	return check, nil
}

// monthStart returns midnight UTC on the first of now's month. Quota
// windows are calendar months, not rolling 30-day windows.
func monthStart(now time.Time) time.Time {
	y, m, _ := now.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}
