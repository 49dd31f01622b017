package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	clts "tradewatch/clients"
	"tradewatch/config"
)

// Runner wires the monitoring components together and runs them until the
// context ends.
type Runner struct {
	clients *clts.Clients
	cfg     *config.Config

	alerts  *AlertService
	queue   *DeliveryQueue
	monitor *Monitor
}

func NewRunner(clients *clts.Clients, cfg *config.Config) *Runner {
	return &Runner{clients: clients, cfg: cfg}
}

// Run builds the pipeline, restores persisted state, starts watching the
// configured log, and keeps the connectivity probe running until shutdown.
func (r *Runner) Run(ctx context.Context) error {
	logger := r.clients.Logger

	r.alerts = NewAlertService(logger, r.clients.Store, r.clients.Notifier, r.clients.Sound)
	if err := r.alerts.Load(ctx); err != nil {
		logger.Error("failed to load alert rules", zap.Error(err))
	}

	deliver := NewBackendDeliver(r.clients.TradeAPI)
	r.queue = NewDeliveryQueue(logger, r.clients.Store, r.clients.Notifier, deliver, DeliveryQueueConfig{
		MaxRetries: r.cfg.Queue.MaxRetries,
		BaseDelay:  r.cfg.Queue.RetryBaseDelay,
	})
	if restored, err := r.queue.Load(ctx); err != nil {
		logger.Error("failed to load offline queue", zap.Error(err))
	} else if restored > 0 {
		logger.Info("offline trades awaiting delivery", zap.Int("count", restored))
	}

	var watcher WatchClient = r.clients.LogWatcher
	if r.clients.Feed != nil {
		watcher = r.clients.Feed
	}
	r.monitor = NewMonitor(logger, watcher, r.clients.TradeAPI, r.queue, r.alerts,
		NewParser(r.cfg.Server), deliver, r.clients.Notifier)

	r.probeOnce(ctx)

	if r.cfg.Watch.LogPath != "" {
		if err := r.monitor.StartWatching(ctx, r.cfg.Watch.LogPath); err != nil {
			logger.Error("failed to start monitoring", zap.Error(err))
		}
	} else {
		logger.Info("WATCH_LOG_PATH not set, monitor idle until started")
	}

	go r.probeLoop(ctx)

	<-ctx.Done()
	logger.Info("shutting down")
	if err := r.monitor.StopWatching(); err != nil {
		logger.Warn("monitor stop reported error", zap.Error(err))
	}
	return nil
}

// Monitor exposes the running monitor for control surfaces.
func (r *Runner) Monitor() *Monitor {
	return r.monitor
}

func (r *Runner) probeLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Connectivity.ProbeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.probeOnce(ctx)
		}
	}
}

// probeOnce pings the backend and feeds the result to the monitor, which
// drains the offline queue when connectivity returns.
func (r *Runner) probeOnce(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, r.cfg.Connectivity.ProbeTimeout)
	defer cancel()
	err := r.clients.TradeAPI.Ping(probeCtx)
	r.monitor.SetOnline(ctx, err == nil)
}
