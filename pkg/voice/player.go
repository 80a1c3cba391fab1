// Package voice plays synthesized audio into Discord voice channels.
package voice

import (
	"context"
	"errors"
)

// ErrNotConnected is returned when the bot has no voice connection in the
// guild.
var ErrNotConnected = errors.New("not connected to a voice channel")

// Player owns the voice side of a guild. Each guild has at most one current
// playback; starting a new one cancels the previous.
type Player interface {
	Join(guildID, channelID string) error
	Leave(guildID string) error
	Connected(guildID string) bool
	Play(ctx context.Context, guildID, path string) error
}
