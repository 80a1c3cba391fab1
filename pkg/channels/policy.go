package channels

import (
	"strings"

	"github.com/sipeed/picotts/pkg/store"
)

// Message is the part of a Discord message the bot acts on.
type Message struct {
	ID         string
	GuildID    string
	ChannelID  string
	AuthorID   string
	AuthorName string
	AuthorBot  bool
	Content    string
}

// Eligible reports whether msg should be read aloud: it was posted in the
// guild's linked text channel by a human, is not a command and has
// something to say.
func Eligible(msg Message, server *store.Server, botUserID, prefix string) bool {
	if msg.GuildID == "" || server == nil || server.TextChannel == "" {
		return false
	}
	if msg.ChannelID != server.TextChannel {
		return false
	}
	if msg.AuthorBot || (botUserID != "" && msg.AuthorID == botUserID) {
		return false
	}
	if prefix != "" && strings.HasPrefix(msg.Content, prefix) {
		return false
	}
	return strings.TrimSpace(msg.Content) != ""
}

// rateKey scopes rate limiting to one member of one guild.
func rateKey(msg Message) string {
	return msg.GuildID + ":" + msg.AuthorID
}
