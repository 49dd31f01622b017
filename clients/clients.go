// Package clients wires up the external-facing client implementations.
package clients

import (
	"go.uber.org/zap"

	"tradewatch/clients/discord"
	"tradewatch/clients/feedws"
	"tradewatch/clients/logwatcher"
	"tradewatch/clients/notifier"
	"tradewatch/clients/sound"
	"tradewatch/clients/store"
	"tradewatch/clients/tradeapi"
	"tradewatch/config"
)

// Clients aggregates every external collaborator the app talks to.
type Clients struct {
	Logger *zap.Logger

	LogWatcher *logwatcher.Client
	// Feed is non-nil only in remote watch mode.
	Feed     *feedws.Client
	TradeAPI *tradeapi.Client
	Store    store.Storage
	Notifier notifier.Notifier
	Sound    sound.Player

	storeClient   *store.Client
	discordClient *discord.DiscordClient
}

// NewClients constructs all clients from config. A store open failure is
// fatal; everything else degrades to a disabled client.
func NewClients(logger *zap.Logger, cfg *config.Config) (*Clients, error) {
	storeClient, err := store.NewClient(logger, cfg)
	if err != nil {
		return nil, err
	}

	discordClient, err := discord.NewDiscordClient(logger, cfg)
	if err != nil {
		logger.Warn("Discord notifier unavailable", zap.Error(err))
		discordClient = nil
	}

	c := &Clients{
		Logger:        logger,
		LogWatcher:    logwatcher.NewClient(logger),
		TradeAPI:      tradeapi.NewClient(logger, cfg),
		Store:         storeClient,
		Sound:         sound.NewPlayer(logger, cfg),
		storeClient:   storeClient,
		discordClient: discordClient,
	}
	if cfg.Watch.Mode == config.WatchModeRemote {
		c.Feed = feedws.NewClient(logger, cfg.Watch.RemoteFeedURL)
	}

	notifiers := []notifier.Notifier{notifier.NewLogNotifier(logger)}
	if discordClient != nil {
		notifiers = append(notifiers, discordClient)
	}
	multi := notifier.NewMultiNotifier(notifiers...)
	c.Notifier = multi
	logger.Info("clients initialized", zap.Int("notifiers", multi.Count()))
	return c, nil
}

// Close releases client resources.
func (c *Clients) Close() {
	if c.LogWatcher != nil {
		if err := c.LogWatcher.StopWatch(); err != nil {
			c.Logger.Warn("failed to stop log watcher", zap.Error(err))
		}
	}
	if c.Feed != nil {
		if err := c.Feed.StopWatch(); err != nil {
			c.Logger.Warn("failed to stop remote feed", zap.Error(err))
		}
	}
	if c.Notifier != nil {
		if err := c.Notifier.Close(); err != nil {
			c.Logger.Warn("failed to close notifiers", zap.Error(err))
		}
	}
	if c.storeClient != nil {
		if err := c.storeClient.Close(); err != nil {
			c.Logger.Warn("failed to close store", zap.Error(err))
		}
	}
}
