package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"

	"tradewatch/clients/notifier"
	"tradewatch/clients/store"
)

const (
	storageKeyQueue  = "offline_queue"
	storageKeyFailed = "failed_trades"
)

// DeliverFunc attempts one backend delivery of a queued trade.
type DeliverFunc func(ctx context.Context, trade QueuedTrade) error

// QueuedTrade is a trade awaiting backend delivery, with its retry state.
type QueuedTrade struct {
	Trade       ParsedTrade `json:"trade"`
	UserID      string      `json:"userId"`
	RetryCount  int         `json:"retryCount"`
	LastAttempt int64       `json:"lastAttempt"`
}

type DeliveryQueueConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
}

func DefaultDeliveryQueueConfig() DeliveryQueueConfig {
	return DeliveryQueueConfig{MaxRetries: 3, BaseDelay: time.Second}
}

// DrainResult summarizes one drain pass.
type DrainResult struct {
	Delivered int
	Requeued  int
	Failed    int
}

// DeliveryQueue holds trades that could not be delivered and retries them
// when connectivity returns. State survives restarts through the store.
type DeliveryQueue struct {
	logger   *zap.Logger
	store    store.Storage
	notifier notifier.Notifier
	deliver  DeliverFunc
	config   DeliveryQueueConfig

	mu       sync.Mutex
	entries  []QueuedTrade
	draining bool
}

func NewDeliveryQueue(logger *zap.Logger, st store.Storage, n notifier.Notifier, deliver DeliverFunc, cfg DeliveryQueueConfig) *DeliveryQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	return &DeliveryQueue{
		logger:   logger,
		store:    st,
		notifier: n,
		deliver:  deliver,
		config:   cfg,
	}
}

// Load restores the persisted queue and returns how many entries survived
// the last run.
func (q *DeliveryQueue) Load(ctx context.Context) (int, error) {
	if !q.store.IsEnabled() {
		return 0, nil
	}
	var stored []QueuedTrade
	if err := q.store.LoadJSON(ctx, storageKeyQueue, &stored); err != nil {
		return 0, fmt.Errorf("failed to load offline queue: %w", err)
	}

	q.mu.Lock()
	q.entries = stored
	q.mu.Unlock()

	if len(stored) > 0 {
		q.logger.Info("restored offline queue", zap.Int("entries", len(stored)))
	}
	return len(stored), nil
}

// Len reports the number of queued trades.
func (q *DeliveryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Enqueue appends a trade and persists the queue immediately so nothing is
// lost on crash. Retry state on the entry is preserved.
func (q *DeliveryQueue) Enqueue(ctx context.Context, trade QueuedTrade) error {
	trade.LastAttempt = time.Now().UnixMilli()

	q.mu.Lock()
	q.entries = append(q.entries, trade)
	snapshot := q.snapshotLocked()
	q.mu.Unlock()

	q.logger.Info("trade queued for later delivery",
		zap.String("nick", trade.Trade.Nick),
		zap.Int("queue_len", len(snapshot)))
	return q.persistQueue(ctx, snapshot)
}

// Drain attempts delivery of every queued trade, one at a time. Each entry
// gets one attempt per pass: its retry count is incremented, entries past
// the retry budget move to the permanently-failed record, the rest wait out
// an exponential backoff before the attempt and re-enter the queue on
// failure. Cancellation stops the pass and keeps the remainder queued.
func (q *DeliveryQueue) Drain(ctx context.Context) DrainResult {
	q.mu.Lock()
	if q.draining || len(q.entries) == 0 {
		q.mu.Unlock()
		return DrainResult{}
	}
	q.draining = true
	batch := q.entries
	q.entries = nil
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.draining = false
		q.mu.Unlock()
	}()

	b := &backoff.Backoff{
		Min:    q.config.BaseDelay,
		Max:    q.config.BaseDelay << uint(q.config.MaxRetries),
		Factor: 2,
		Jitter: false,
	}

	var result DrainResult
	var failed []QueuedTrade
	q.logger.Info("draining offline queue", zap.Int("entries", len(batch)))

	for i := 0; i < len(batch); i++ {
		entry := batch[i]
		entry.RetryCount++
		entry.LastAttempt = time.Now().UnixMilli()

		if entry.RetryCount > q.config.MaxRetries {
			q.logger.Warn("trade exhausted delivery retries",
				zap.String("nick", entry.Trade.Nick),
				zap.Int("retries", entry.RetryCount-1))
			failed = append(failed, entry)
			result.Failed++
			continue
		}

		if !sleepCtx(ctx, b.ForAttempt(float64(entry.RetryCount-1))) {
			// Cancelled mid-pass; put this entry and the rest back untouched.
			entry.RetryCount--
			q.requeue(append([]QueuedTrade{entry}, batch[i+1:]...))
			break
		}

		if err := q.deliver(ctx, entry); err != nil {
			q.logger.Warn("queued trade delivery failed",
				zap.String("nick", entry.Trade.Nick),
				zap.Int("retry", entry.RetryCount),
				zap.Error(err))
			q.requeue([]QueuedTrade{entry})
			result.Requeued++
			continue
		}
		result.Delivered++
	}

	q.mu.Lock()
	snapshot := q.snapshotLocked()
	q.mu.Unlock()
	if err := q.persistQueue(ctx, snapshot); err != nil {
		q.logger.Error("failed to persist offline queue", zap.Error(err))
	}

	if len(failed) > 0 {
		q.recordFailed(ctx, failed)
		q.notifier.Notify("Trade delivery failed",
			fmt.Sprintf("%d trade(s) could not be delivered and were set aside", len(failed)))
	}

	q.logger.Info("drain pass complete",
		zap.Int("delivered", result.Delivered),
		zap.Int("requeued", result.Requeued),
		zap.Int("failed", result.Failed))
	return result
}

func (q *DeliveryQueue) requeue(entries []QueuedTrade) {
	q.mu.Lock()
	q.entries = append(q.entries, entries...)
	q.mu.Unlock()
}

// snapshotLocked copies entries so persistence always writes a JSON array,
// never null.
func (q *DeliveryQueue) snapshotLocked() []QueuedTrade {
	snapshot := make([]QueuedTrade, len(q.entries))
	copy(snapshot, q.entries)
	return snapshot
}

func (q *DeliveryQueue) persistQueue(ctx context.Context, snapshot []QueuedTrade) error {
	if !q.store.IsEnabled() {
		return nil
	}
	if err := q.store.SaveJSON(ctx, storageKeyQueue, snapshot); err != nil {
		return fmt.Errorf("failed to persist offline queue: %w", err)
	}
	return nil
}

// recordFailed appends permanently failed trades to their persisted record
// so nothing is silently dropped.
func (q *DeliveryQueue) recordFailed(ctx context.Context, failed []QueuedTrade) {
	if !q.store.IsEnabled() {
		return
	}
	var existing []QueuedTrade
	if err := q.store.LoadJSON(ctx, storageKeyFailed, &existing); err != nil {
		q.logger.Error("failed to load failed-trade record", zap.Error(err))
	}
	existing = append(existing, failed...)
	if err := q.store.SaveJSON(ctx, storageKeyFailed, existing); err != nil {
		q.logger.Error("failed to persist failed-trade record", zap.Error(err))
	}
}
