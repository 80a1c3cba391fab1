package tts

import (
	"fmt"
	"path/filepath"
	"strings"
)

// testArtifactName is used when a request carries no message context, for
// example from the CLI.
const testArtifactName = "test.mp3"

// MessageContext scopes artifact naming to the message that asked for it.
type MessageContext struct {
	GuildID   string
	ChannelID string
	AuthorID  string
}

// ArtifactPath returns where the audio for mc is written under root:
// root/<guild>/<channel>/<guild>-<channel>-<author>.mp3, or root/test.mp3
// when mc is nil. The same triple always maps to the same path.
func ArtifactPath(root string, mc *MessageContext) (string, error) {
	if mc == nil {
		return filepath.Join(root, testArtifactName), nil
	}
	for _, id := range []string{mc.GuildID, mc.ChannelID, mc.AuthorID} {
		if !validPathID(id) {
			return "", newError("", ErrIO, fmt.Sprintf("invalid message context id %q", id), nil)
		}
	}
	name := fmt.Sprintf("%s-%s-%s.mp3", mc.GuildID, mc.ChannelID, mc.AuthorID)
	return filepath.Join(root, mc.GuildID, mc.ChannelID, name), nil
}

// validPathID accepts ids that are safe as a single path element. Discord
// snowflakes are decimal strings, so this only ever rejects garbage.
func validPathID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`+"\x00")
}
