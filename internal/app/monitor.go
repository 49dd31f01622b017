package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"tradewatch/clients/logwatcher"
	"tradewatch/clients/notifier"
	"tradewatch/clients/tradeapi"
)

// WatchClient is the line source the monitor consumes, satisfied by both
// the local tailer and the remote feed.
type WatchClient interface {
	StartWatch(ctx context.Context, path string) error
	StopWatch() error
	Subscribe() (<-chan []logwatcher.Line, func())
}

// Submitter delivers trade records to the backend.
type Submitter interface {
	SubmitTrade(ctx context.Context, sub tradeapi.TradeSubmission) error
}

// IdentityProvider resolves the backend identity submissions run under.
type IdentityProvider interface {
	CurrentUser(ctx context.Context) (*tradeapi.User, error)
}

var ErrNoIdentity = errors.New("no authenticated user for trade submission")

// NewBackendDeliver adapts the backend Submitter into the queue's delivery
// contract.
func NewBackendDeliver(api Submitter) DeliverFunc {
	return func(ctx context.Context, qt QueuedTrade) error {
		return api.SubmitTrade(ctx, tradeapi.TradeSubmission{
			TradeHash: TradeHash(&qt.Trade),
			Nick:      qt.Trade.Nick,
			TradeType: string(qt.Trade.Type),
			Message:   qt.Trade.Message,
			Timestamp: qt.Trade.Timestamp,
			Server:    qt.Trade.Server,
			UserID:    qt.UserID,
		})
	}
}

// Monitor owns the watch lifecycle: it attaches to a line source, runs
// every batch through the parse/alert/submit pipeline, and tracks
// connectivity for the delivery path.
type Monitor struct {
	logger   *zap.Logger
	watcher  WatchClient
	identity IdentityProvider
	queue    *DeliveryQueue
	alerts   *AlertService
	parser   *Parser
	deliver  DeliverFunc
	notifier notifier.Notifier

	mu            sync.Mutex
	watching      bool
	path          string
	unsubscribe   func()
	online        bool
	currentUserID string

	linesSeen    int64
	tradesParsed int64
	alertsFired  int64
}

func NewMonitor(
	logger *zap.Logger,
	watcher WatchClient,
	identity IdentityProvider,
	queue *DeliveryQueue,
	alerts *AlertService,
	parser *Parser,
	deliver DeliverFunc,
	n notifier.Notifier,
) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		logger:   logger,
		watcher:  watcher,
		identity: identity,
		queue:    queue,
		alerts:   alerts,
		parser:   parser,
		deliver:  deliver,
		notifier: n,
	}
}

// StartWatching attaches the monitor to path. Starting the path already
// being watched is a no-op; a different path replaces the current watch.
// On watcher failure the monitor stays idle.
func (m *Monitor) StartWatching(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.watching && m.path == path {
		m.logger.Debug("already watching", zap.String("path", path))
		return nil
	}
	if m.watching {
		m.stopLocked()
	}

	if err := m.watcher.StartWatch(ctx, path); err != nil {
		return fmt.Errorf("failed to start watching %s: %w", path, err)
	}

	batches, unsubscribe := m.watcher.Subscribe()
	m.watching = true
	m.path = path
	m.unsubscribe = unsubscribe

	go m.consume(ctx, batches)

	m.logger.Info("monitoring started", zap.String("path", path))
	return nil
}

// StopWatching detaches from the line source. The monitor always lands in
// the idle state, even if the watcher fails to stop cleanly.
func (m *Monitor) StopWatching() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.watching {
		return nil
	}
	return m.stopLocked()
}

// stopLocked unsubscribes before stopping the watcher so no batch arrives
// for a watch the caller believes is over. Callers hold m.mu.
func (m *Monitor) stopLocked() error {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	err := m.watcher.StopWatch()
	m.watching = false
	m.path = ""
	if err != nil {
		m.logger.Warn("watcher stop reported error", zap.Error(err))
		return fmt.Errorf("failed to stop watcher: %w", err)
	}
	m.logger.Info("monitoring stopped")
	return nil
}

func (m *Monitor) IsWatching() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watching
}

func (m *Monitor) CurrentFilePath() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.path
}

// SetOnline records connectivity. The offline-to-online edge kicks off a
// queue drain in the background.
func (m *Monitor) SetOnline(ctx context.Context, online bool) {
	m.mu.Lock()
	wasOnline := m.online
	m.online = online
	m.mu.Unlock()

	if online == wasOnline {
		return
	}
	m.logger.Info("connectivity changed", zap.Bool("online", online))
	if online {
		go m.queue.Drain(ctx)
	}
}

func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *Monitor) consume(ctx context.Context, batches <-chan []logwatcher.Line) {
	for batch := range batches {
		m.processBatch(ctx, batch)
	}
}

// processBatch runs lines through the pipeline in arrival order.
func (m *Monitor) processBatch(ctx context.Context, batch []logwatcher.Line) {
	for _, line := range batch {
		atomic.AddInt64(&m.linesSeen, 1)

		trade, ok := m.parser.Parse(line)
		if !ok {
			continue
		}
		atomic.AddInt64(&m.tradesParsed, 1)

		if rule := m.alerts.Check(trade); rule != nil {
			m.alerts.Fire(rule, trade)
			atomic.AddInt64(&m.alertsFired, 1)
		}

		if err := m.SubmitTrade(ctx, trade); err != nil && !errors.Is(err, ErrNoIdentity) {
			m.logger.Warn("trade submission deferred", zap.Error(err))
		}
	}
}

// SubmitTrade routes a trade candidate toward the backend: straight
// delivery when online, the offline queue otherwise or on failure. Trades
// without an authenticated identity are dropped with a notification.
func (m *Monitor) SubmitTrade(ctx context.Context, trade *ParsedTrade) error {
	userID, err := m.resolveUserID(ctx)
	if err != nil {
		return err
	}

	entry := QueuedTrade{Trade: *trade, UserID: userID}

	if !m.IsOnline() {
		return m.queue.Enqueue(ctx, entry)
	}
	if err := m.deliver(ctx, entry); err != nil {
		m.logger.Warn("live delivery failed, queueing trade", zap.Error(err))
		return m.queue.Enqueue(ctx, entry)
	}
	return nil
}

// resolveUserID returns the cached backend identity, fetching it on first
// use. A missing identity notifies the user and fails the submission.
func (m *Monitor) resolveUserID(ctx context.Context) (string, error) {
	m.mu.Lock()
	cached := m.currentUserID
	m.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	user, err := m.identity.CurrentUser(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to resolve user identity: %w", err)
	}
	if user == nil {
		m.notifier.Notify("Sign in required",
			"Trades cannot be reported until you sign in to your account")
		return "", ErrNoIdentity
	}

	m.mu.Lock()
	m.currentUserID = user.ID
	m.mu.Unlock()
	return user.ID, nil
}

// Stats reports pipeline counters since start.
func (m *Monitor) Stats() (lines, trades, alerts int64) {
	return atomic.LoadInt64(&m.linesSeen),
		atomic.LoadInt64(&m.tradesParsed),
		atomic.LoadInt64(&m.alertsFired)
}
