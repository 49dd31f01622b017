// Package discord delivers notifications to a Discord channel.
package discord

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"tradewatch/config"
)

// DiscordClient implements notifier.Notifier over a Discord bot session.
type DiscordClient struct {
	logger    *zap.Logger
	session   *discordgo.Session
	channelID string
}

// NewDiscordClient builds a Discord notifier. Without a bot token the
// client is inert and Notify is a no-op.
func NewDiscordClient(logger *zap.Logger, cfg *config.Config) (*DiscordClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Discord.BotToken == "" {
		logger.Warn("DISCORD_BOT_TOKEN not set, Discord notifications disabled")
		return &DiscordClient{logger: logger}, nil
	}

	session, err := discordgo.New("Bot " + cfg.Discord.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("failed to open Discord session: %w", err)
	}

	logger.Info("Discord notifier connected", zap.String("channel_id", cfg.Discord.ChannelID))
	return &DiscordClient{
		logger:    logger,
		session:   session,
		channelID: cfg.Discord.ChannelID,
	}, nil
}

func (d *DiscordClient) Notify(title, body string) {
	if d.session == nil || d.channelID == "" {
		return
	}
	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: body,
		Color:       0x2ECC71,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
	if _, err := d.session.ChannelMessageSendEmbed(d.channelID, embed); err != nil {
		d.logger.Error("failed to send Discord notification",
			zap.String("title", title),
			zap.Error(err))
	}
}

func (d *DiscordClient) Close() error {
	if d.session == nil {
		return nil
	}
	return d.session.Close()
}
