package queue

import (
	"encoding/json"
	"time"
)

// Queue names. Every job lives in exactly one named queue; handlers are
// registered per (queue, job type) pair.
const (
	QueueEmail        = "email"
	QueueCampaign     = "campaign"
	QueueVerification = "verification"
	QueueAnalytics    = "analytics"
	QueueBilling      = "billing"
)

// Names lists all queues in a stable order, used for stats aggregation
// and consumer startup.
var Names = []string{QueueEmail, QueueCampaign, QueueVerification, QueueAnalytics, QueueBilling}

// Job types processed by the dispatch engine.
const (
	JobProcessCampaign = "process-campaign"
	JobSendEmail       = "send-email"
)

// Job is one unit of queued work. The struct is serialized whole into
// Redis, so retried deliveries carry their attempt count with them.
type Job struct {
	ID           string          `json:"id"`
	Queue        string          `json:"queue"`
	Type         string          `json:"type"`
	Payload      json.RawMessage `json:"payload"`
	AttemptsMade int             `json:"attempts_made"`
	MaxAttempts  int             `json:"max_attempts"`
	BackoffMS    int64           `json:"backoff_ms"`
	EnqueuedAt   time.Time       `json:"enqueued_at"`
	LastError    string          `json:"last_error,omitempty"`
}

// Decode unmarshals the job payload into v.
func (j *Job) Decode(v any) error {
	return json.Unmarshal(j.Payload, v)
}

// NextBackoff returns the delay before the next retry: exponential in the
// number of attempts already made (base, 2*base, 4*base, ...).
func (j *Job) NextBackoff() time.Duration {
	base := time.Duration(j.BackoffMS) * time.Millisecond
	d := base
	for i := 1; i < j.AttemptsMade; i++ {
		d *= 2
	}
	return d
}

// Options controls retry and scheduling behavior for an enqueued job.
// Zero values fall back to the manager's defaults.
type Options struct {
	// Attempts is the total delivery budget including the first attempt.
	Attempts int
	// Backoff is the base delay for exponential retry backoff.
	Backoff time.Duration
	// Delay defers the first delivery.
	Delay time.Duration
}

// Stats reports the depth of each state within one named queue.
type Stats struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Delayed   int64 `json:"delayed"`
}

// ProcessCampaignPayload is the body of a process-campaign job.
type ProcessCampaignPayload struct {
	CampaignID          string `json:"campaign_id"`
	BatchSize           int    `json:"batch_size,omitempty"`
	DelayBetweenBatches int    `json:"delay_between_batches_ms,omitempty"`
}

// SendEmailPayload is the body of a send-email job. It carries identifiers
// only; the worker re-reads rows so a retried job always sees current state.
type SendEmailPayload struct {
	CampaignID  string `json:"campaign_id"`
	RecipientID string `json:"recipient_id"`
	TenantID    string `json:"tenant_id"`
}
