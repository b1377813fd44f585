// Package queue implements named durable job queues on Redis with
// at-least-once delivery, delayed jobs, retry with exponential backoff,
// per-queue pause/resume, and depth stats.
//
// Layout per queue: a waiting LIST, an active LIST (claimed via atomic
// LMOVE), a delayed ZSET scored by ready-time (covers both scheduled jobs
// and retry backoff), a failed LIST for jobs whose attempt budget is
// exhausted, and a completed counter. Jobs stranded in the active list by
// a crashed consumer are reclaimed by external housekeeping, not here.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Marvin-MM/Luco-Email-sub000/internal/pkg/logger"
)

// Handler processes one job. Returning an error schedules a retry until
// the job's attempt budget is exhausted, after which the job moves to the
// failed list. Handlers own their terminal-state bookkeeping: queue
// exhaustion must never be the only record of a failure.
type Handler func(ctx context.Context, job *Job) error

// ManagerConfig holds queue manager defaults and consumer concurrency.
type ManagerConfig struct {
	DefaultAttempts int
	DefaultBackoff  time.Duration
	// Concurrency maps queue name to consumer goroutine count.
	// Queues absent from the map get 1 consumer.
	Concurrency map[string]int
}

// DefaultManagerConfig returns production defaults: 3 attempts, 2s base
// backoff, 10 email consumers, 1 campaign consumer.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		DefaultAttempts: 3,
		DefaultBackoff:  2 * time.Second,
		Concurrency: map[string]int{
			QueueEmail:    10,
			QueueCampaign: 1,
		},
	}
}

// Manager owns the named queues: producers call Enqueue, consumers are
// registered with Register and driven by Start/Stop.
type Manager struct {
	client *redis.Client
	cfg    ManagerConfig
	log    *logger.Logger

	mu       sync.RWMutex
	handlers map[string]Handler // "queue:jobType"
	running  bool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewManager creates a queue manager on the given Redis client.
func NewManager(client *redis.Client, cfg ManagerConfig) *Manager {
	if cfg.DefaultAttempts <= 0 {
		cfg.DefaultAttempts = 3
	}
	if cfg.DefaultBackoff <= 0 {
		cfg.DefaultBackoff = 2 * time.Second
	}
	return &Manager{
		client:   client,
		cfg:      cfg,
		log:      logger.With("queue"),
		handlers: make(map[string]Handler),
	}
}

func waitKey(q string) string      { return "luco:queue:" + q + ":wait" }
func activeKey(q string) string    { return "luco:queue:" + q + ":active" }
func delayedKey(q string) string   { return "luco:queue:" + q + ":delayed" }
func failedKey(q string) string    { return "luco:queue:" + q + ":failed" }
func completedKey(q string) string { return "luco:queue:" + q + ":completed" }
func pausedKey(q string) string    { return "luco:queue:" + q + ":paused" }

// Enqueue adds a job to the named queue. A nil opts uses manager defaults.
// Returns the job handle (its ID is stable across retries).
func (m *Manager) Enqueue(ctx context.Context, queueName, jobType string, payload any, opts *Options) (*Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	job := &Job{
		ID:          uuid.New().String(),
		Queue:       queueName,
		Type:        jobType,
		Payload:     body,
		MaxAttempts: m.cfg.DefaultAttempts,
		BackoffMS:   m.cfg.DefaultBackoff.Milliseconds(),
		EnqueuedAt:  time.Now().UTC(),
	}

	var delay time.Duration
	if opts != nil {
		if opts.Attempts > 0 {
			job.MaxAttempts = opts.Attempts
		}
		if opts.Backoff > 0 {
			job.BackoffMS = opts.Backoff.Milliseconds()
		}
		delay = opts.Delay
	}

	raw, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal job: %w", err)
	}

	if delay > 0 {
		readyAt := float64(time.Now().Add(delay).UnixMilli())
		if err := m.client.ZAdd(ctx, delayedKey(queueName), redis.Z{Score: readyAt, Member: string(raw)}).Err(); err != nil {
			return nil, fmt.Errorf("enqueue delayed job: %w", err)
		}
		return job, nil
	}

	if err := m.client.LPush(ctx, waitKey(queueName), string(raw)).Err(); err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	return job, nil
}

// Register binds a handler to a (queue, jobType) pair. Must be called
// before Start; a job with no registered handler goes straight to the
// failed list.
func (m *Manager) Register(queueName, jobType string, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[queueName+":"+jobType] = h
}

// Start launches consumer goroutines for every queue plus one delayed-job
// promoter per queue. Returns an error if already running.
func (m *Manager) Start() error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("queue manager already running")
	}
	m.running = true
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.mu.Unlock()

	for _, q := range Names {
		n := m.cfg.Concurrency[q]
		if n <= 0 {
			n = 1
		}
		for i := 0; i < n; i++ {
			m.wg.Add(1)
			go m.consume(q)
		}
		m.wg.Add(1)
		go m.promote(q)
	}

	m.log.Info("queue manager started")
	return nil
}

// Stop drains consumers and waits for in-flight handlers to return.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.cancel()
	m.mu.Unlock()

	m.wg.Wait()
	m.log.Info("queue manager stopped")
}

// consume is one consumer loop: claim from waiting into active, dispatch,
// settle. Claiming uses LMOVE so a job is never in two places at once.
func (m *Manager) consume(queueName string) {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		paused, err := m.client.Exists(m.ctx, pausedKey(queueName)).Result()
		if err == nil && paused > 0 {
			m.sleep(500 * time.Millisecond)
			continue
		}

		raw, err := m.client.LMove(m.ctx, waitKey(queueName), activeKey(queueName), "RIGHT", "LEFT").Result()
		if err == redis.Nil {
			m.sleep(100 * time.Millisecond)
			continue
		}
		if err != nil {
			if m.ctx.Err() != nil {
				return
			}
			m.log.Error("claim failed", "queue", queueName, "error", err)
			m.sleep(time.Second)
			continue
		}

		m.process(queueName, raw)
	}
}

func (m *Manager) process(queueName, raw string) {
	defer m.client.LRem(context.Background(), activeKey(queueName), 1, raw)

	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		m.log.Error("undecodable job moved to failed", "queue", queueName, "error", err)
		m.client.LPush(context.Background(), failedKey(queueName), raw)
		return
	}

	m.mu.RLock()
	h, ok := m.handlers[queueName+":"+job.Type]
	m.mu.RUnlock()
	if !ok {
		m.log.Error("no handler for job type", "queue", queueName, "type", job.Type)
		m.client.LPush(context.Background(), failedKey(queueName), raw)
		return
	}

	job.AttemptsMade++
	err := h(m.ctx, &job)
	if err == nil {
		m.client.Incr(context.Background(), completedKey(queueName))
		return
	}

	job.LastError = err.Error()
	m.log.Warn("job failed", "queue", queueName, "type", job.Type,
		"job_id", job.ID, "attempt", job.AttemptsMade, "error", err)

	// Settlement must survive ctx cancellation during shutdown.
	bg := context.Background()
	if job.AttemptsMade >= job.MaxAttempts {
		retried, _ := json.Marshal(&job)
		m.client.LPush(bg, failedKey(queueName), string(retried))
		return
	}

	retried, merr := json.Marshal(&job)
	if merr != nil {
		m.client.LPush(bg, failedKey(queueName), raw)
		return
	}
	readyAt := float64(time.Now().Add(job.NextBackoff()).UnixMilli())
	m.client.ZAdd(bg, delayedKey(queueName), redis.Z{Score: readyAt, Member: string(retried)})
}

// promoteScript atomically moves due jobs from the delayed ZSET to the
// waiting LIST.
var promoteScript = redis.NewScript(`
	local due = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, 100)
	for i, v in ipairs(due) do
		redis.call("LPUSH", KEYS[2], v)
		redis.call("ZREM", KEYS[1], v)
	end
	return #due
`)

func (m *Manager) promote(queueName string) {
	defer m.wg.Done()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			now := strconv.FormatInt(time.Now().UnixMilli(), 10)
			_, err := promoteScript.Run(m.ctx, m.client,
				[]string{delayedKey(queueName), waitKey(queueName)}, now).Result()
			if err != nil && m.ctx.Err() == nil {
				m.log.Error("delayed promotion failed", "queue", queueName, "error", err)
			}
		}
	}
}

// Stats returns the depth of each state for one named queue.
func (m *Manager) Stats(ctx context.Context, queueName string) (*Stats, error) {
	waiting, err := m.client.LLen(ctx, waitKey(queueName)).Result()
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	active, err := m.client.LLen(ctx, activeKey(queueName)).Result()
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	delayed, err := m.client.ZCard(ctx, delayedKey(queueName)).Result()
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	failed, err := m.client.LLen(ctx, failedKey(queueName)).Result()
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	completed, err := m.client.Get(ctx, completedKey(queueName)).Int64()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}

	return &Stats{
		Waiting:   waiting,
		Active:    active,
		Completed: completed,
		Failed:    failed,
		Delayed:   delayed,
	}, nil
}

// AllStats returns stats for every named queue.
func (m *Manager) AllStats(ctx context.Context) (map[string]*Stats, error) {
	out := make(map[string]*Stats, len(Names))
	for _, q := range Names {
		s, err := m.Stats(ctx, q)
		if err != nil {
			return nil, err
		}
		out[q] = s
	}
	return out, nil
}

// Pause stops consumers of the named queue from claiming new jobs.
// In-flight jobs run to completion.
func (m *Manager) Pause(ctx context.Context, queueName string) error {
	return m.client.Set(ctx, pausedKey(queueName), "1", 0).Err()
}

// Resume lifts a pause.
func (m *Manager) Resume(ctx context.Context, queueName string) error {
	return m.client.Del(ctx, pausedKey(queueName)).Err()
}

// Paused reports whether the named queue is paused.
func (m *Manager) Paused(ctx context.Context, queueName string) (bool, error) {
	n, err := m.client.Exists(ctx, pausedKey(queueName)).Result()
	return n > 0, err
}

func (m *Manager) sleep(d time.Duration) {
	select {
	case <-m.ctx.Done():
	case <-time.After(d):
	}
}
