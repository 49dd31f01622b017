// Package sound plays alert sounds through an external player command.
package sound

import (
	"os/exec"
	"path/filepath"

	"go.uber.org/zap"

	"tradewatch/config"
)

// Player plays a named sound. Playback is fire-and-forget.
type Player interface {
	Play(soundID string)
}

// CommandPlayer shells out to a configured player binary with the resolved
// sound file path.
type CommandPlayer struct {
	logger  *zap.Logger
	command string
	dir     string
}

// NewPlayer builds a Player from config. Without a player command the
// returned Player is a no-op.
func NewPlayer(logger *zap.Logger, cfg *config.Config) Player {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Sound.PlayerCommand == "" {
		logger.Warn("SOUND_PLAYER_COMMAND not set, alert sounds disabled")
		return &NopPlayer{}
	}
	return &CommandPlayer{
		logger:  logger,
		command: cfg.Sound.PlayerCommand,
		dir:     cfg.Sound.Dir,
	}
}

func (p *CommandPlayer) Play(soundID string) {
	if soundID == "" {
		soundID = "notification"
	}
	path := filepath.Join(p.dir, soundID+".wav")
	go func() {
		if err := exec.Command(p.command, path).Run(); err != nil {
			p.logger.Warn("failed to play sound",
				zap.String("sound", soundID),
				zap.Error(err))
		}
	}()
}

// NopPlayer discards all playback requests.
type NopPlayer struct{}

func (*NopPlayer) Play(string) {}
