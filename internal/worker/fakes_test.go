package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Marvin-MM/Luco-Email-sub000/internal/domain"
	"github.com/Marvin-MM/Luco-Email-sub000/internal/queue"
	"github.com/Marvin-MM/Luco-Email-sub000/internal/service/campaign"
)

// memStore is an in-memory CampaignStore mirroring the status guards the
// Postgres repository enforces in SQL.
type memStore struct {
	mu         sync.Mutex
	campaigns  map[string]*domain.Campaign
	recipients map[string]*domain.CampaignRecipient
	order      []string
	templates  map[string]*domain.Template
	identities map[string]*domain.Identity

	// tplFailures makes the next n GetTemplate calls fail with a
	// transient store error.
	tplFailures int
}

func newMemStore() *memStore {
	return &memStore{
		campaigns:  make(map[string]*domain.Campaign),
		recipients: make(map[string]*domain.CampaignRecipient),
		templates:  make(map[string]*domain.Template),
		identities: make(map[string]*domain.Identity),
	}
}

var memAllowedFrom = map[domain.CampaignStatus][]domain.CampaignStatus{
	domain.CampaignScheduled: {domain.CampaignDraft},
	domain.CampaignSending:   {domain.CampaignDraft, domain.CampaignScheduled},
	domain.CampaignSent:      {domain.CampaignSending},
	domain.CampaignFailed:    {domain.CampaignSending},
	domain.CampaignCancelled: {domain.CampaignScheduled, domain.CampaignSending},
}

func (m *memStore) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, errors.New("campaign not found")
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) SetStatusByID(ctx context.Context, id string, status domain.CampaignStatus, failureReason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return errors.New("campaign not found")
	}
	for _, from := range memAllowedFrom[status] {
		if c.Status == from {
			c.Status = status
			if failureReason != "" {
				c.FailureReason = failureReason
			}
			return nil
		}
	}
	return fmt.Errorf("invalid transition %s -> %s", c.Status, status)
}

func (m *memStore) FindDueScheduled(ctx context.Context, before time.Time, limit int) ([]domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Campaign
	for _, c := range m.campaigns {
		if c.Status == domain.CampaignScheduled && c.ScheduledAt != nil && !c.ScheduledAt.After(before) {
			out = append(out, *c)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) FindPendingRecipients(ctx context.Context, campaignID string, limit int) ([]domain.CampaignRecipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.CampaignRecipient
	for _, id := range m.order {
		r := m.recipients[id]
		if r.CampaignID == campaignID && r.Status == domain.RecipientPending {
			out = append(out, *r)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memStore) MarkRecipientsQueued(ctx context.Context, ids []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, id := range ids {
		if r, ok := m.recipients[id]; ok && r.Status == domain.RecipientPending {
			r.Status = domain.RecipientQueued
			n++
		}
	}
	return n, nil
}

func (m *memStore) GetRecipient(ctx context.Context, id string) (*domain.CampaignRecipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recipients[id]
	if !ok {
		return nil, errors.New("recipient not found")
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) UpdateRecipientStatus(ctx context.Context, id string, from, to domain.RecipientStatus, failureReason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recipients[id]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = to
	if failureReason != "" {
		r.FailureReason = failureReason
	}
	return true, nil
}

func (m *memStore) IncrementCounters(ctx context.Context, campaignID string, processed, successful, failed int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[campaignID]
	if !ok {
		return errors.New("campaign not found")
	}
	c.Processed += processed
	c.Successful += successful
	c.Failed += failed
	return nil
}

func (m *memStore) CountRecipientsByStatus(ctx context.Context, campaignID string) (map[domain.RecipientStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[domain.RecipientStatus]int)
	for _, r := range m.recipients {
		if r.CampaignID == campaignID {
			out[r.Status]++
		}
	}
	return out, nil
}

func (m *memStore) GetTemplate(ctx context.Context, tenantID, id string) (*domain.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tplFailures > 0 {
		m.tplFailures--
		return nil, errors.New("connection reset by peer")
	}
	t, ok := m.templates[id]
	if !ok || t.TenantID != tenantID {
		return nil, campaign.ErrTemplateNotFound
	}
	return t, nil
}

func (m *memStore) GetIdentity(ctx context.Context, tenantID, id string) (*domain.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	iden, ok := m.identities[id]
	if !ok || iden.TenantID != tenantID {
		return nil, campaign.ErrIdentityNotFound
	}
	return iden, nil
}

func (m *memStore) addCampaign(c *domain.Campaign) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaigns[c.ID] = c
}

func (m *memStore) addRecipient(r *domain.CampaignRecipient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recipients[r.ID] = r
	m.order = append(m.order, r.ID)
}

func (m *memStore) campaign(id string) domain.Campaign {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.campaigns[id]
}

func (m *memStore) recipient(id string) domain.CampaignRecipient {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.recipients[id]
}

// memTenants resolves every id to the same tenant.
type memTenants struct{ t *domain.Tenant }

func (m *memTenants) Get(ctx context.Context, id string) (*domain.Tenant, error) {
	if m.t == nil {
		return nil, errors.New("tenant not found")
	}
	return m.t, nil
}

type memSendLogs struct {
	mu   sync.Mutex
	logs []domain.SendLog
}

func (m *memSendLogs) Create(ctx context.Context, l *domain.SendLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, *l)
	return nil
}

func (m *memSendLogs) all() []domain.SendLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.SendLog(nil), m.logs...)
}

// recordEnqueuer just records jobs.
type recordEnqueuer struct {
	mu   sync.Mutex
	jobs []queue.Job
	err  error
}

func (e *recordEnqueuer) Enqueue(ctx context.Context, queueName, jobType string, payload any, opts *queue.Options) (*queue.Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	j := queue.Job{Queue: queueName, Type: jobType}
	e.jobs = append(e.jobs, j)
	return &j, nil
}

// inlineEnqueuer runs send-email jobs synchronously through a Sender,
// replaying failed attempts up to the job's budget the way the queue would.
type inlineEnqueuer struct {
	sender *Sender
	record recordEnqueuer
}

func (e *inlineEnqueuer) Enqueue(ctx context.Context, queueName, jobType string, payload any, opts *queue.Options) (*queue.Job, error) {
	j, err := e.record.Enqueue(ctx, queueName, jobType, payload, opts)
	if err != nil {
		return nil, err
	}
	if jobType != queue.JobSendEmail {
		return j, nil
	}

	attempts := 1
	if opts != nil && opts.Attempts > 0 {
		attempts = opts.Attempts
	}
	raw, _ := json.Marshal(payload)
	for attempt := 1; attempt <= attempts; attempt++ {
		job := &queue.Job{
			Queue: queueName, Type: jobType, Payload: raw,
			AttemptsMade: attempt, MaxAttempts: attempts,
		}
		if err := e.sender.HandleSendEmail(context.Background(), job); err == nil {
			break
		}
	}
	return j, nil
}

// noopLocker always grants.
type noopLocker struct{}

type noopLock struct{}

func (noopLock) Release(ctx context.Context) error { return nil }

func (noopLock) Extend(ctx context.Context, ttl time.Duration) error { return nil }

func (noopLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	return noopLock{}, nil
}

// countingLocker grants and records how often its lock is extended.
type countingLocker struct {
	mu      sync.Mutex
	extends int
}

type countingLock struct{ l *countingLocker }

func (c countingLock) Release(ctx context.Context) error { return nil }

func (c countingLock) Extend(ctx context.Context, ttl time.Duration) error {
	c.l.mu.Lock()
	defer c.l.mu.Unlock()
	c.l.extends++
	return nil
}

func (l *countingLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	return countingLock{l: l}, nil
}

func (l *countingLocker) extendCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.extends
}

// heldLocker refuses every acquisition.
type heldLocker struct{}

func (heldLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	return nil, ErrLockHeld
}

// fakeTransport scripts per-address outcomes.
type fakeTransport struct {
	mu       sync.Mutex
	failFor  map[string]int // email -> number of failures before success
	failAll  bool
	sent     []domain.EmailMessage
	attempts map[string]int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		failFor:  make(map[string]int),
		attempts: make(map[string]int),
	}
}

func (t *fakeTransport) Send(ctx context.Context, msg *domain.EmailMessage) (*domain.SendResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts[msg.Email]++
	if t.failAll || t.attempts[msg.Email] <= t.failFor[msg.Email] {
		return nil, errors.New("provider rejected")
	}
	t.sent = append(t.sent, *msg)
	return &domain.SendResult{
		Success:   true,
		MessageID: fmt.Sprintf("msg-%s-%d", msg.RecipientID, t.attempts[msg.Email]),
		SentAt:    time.Now(),
	}, nil
}

func (t *fakeTransport) sendCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}
