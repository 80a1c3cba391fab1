package channels

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sipeed/picotts/pkg/tts"
	"github.com/sipeed/picotts/pkg/voice"
)

func (b *DiscordBot) registerCommands() {
	b.commands = NewCommandRegistry()
	b.commands.Register("join", "", "Join your voice channel and read this text channel aloud", b.cmdJoin)
	b.commands.Register("leave", "", "Leave the voice channel", b.cmdLeave)
	b.commands.Register("setvoice", "<provider>-<voice>", "Set your voice, e.g. tiktok-en_us_002", b.cmdSetVoice)
	b.commands.Register("voice", "", "Show your current voice", b.cmdVoice)
	b.commands.Register("voices", "", "List the available speech providers", b.cmdVoices)
	b.commands.Register("help", "", "Show this help", b.cmdHelp)
}

func (b *DiscordBot) cmdJoin(ctx context.Context, _ string, msg Message) (string, error) {
	channelID, ok := b.voiceChannelOf(msg.GuildID, msg.AuthorID)
	if !ok {
		return "You are not in a voice channel! Please join a channel.", nil
	}

	if err := b.player.Join(msg.GuildID, channelID); err != nil {
		return "", err
	}
	if err := b.store.SetTextChannel(ctx, msg.GuildID, msg.ChannelID); err != nil {
		return "", err
	}
	if err := b.store.SetVoiceChannel(ctx, msg.GuildID, channelID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Joining Channel <#%s>", channelID), nil
}

// cmdLeave unlinks the guild even when no voice connection exists, e.g.
// after a restart that could not rejoin.
func (b *DiscordBot) cmdLeave(ctx context.Context, _ string, msg Message) (string, error) {
	leaveErr := b.player.Leave(msg.GuildID)
	if leaveErr != nil && !errors.Is(leaveErr, voice.ErrNotConnected) {
		return "", leaveErr
	}
	if err := b.store.ClearVoiceChannel(ctx, msg.GuildID); err != nil {
		return "", err
	}
	if leaveErr != nil {
		return "Currently not in a voice channel!", nil
	}
	return "Left voice channel.", nil
}

func (b *DiscordBot) cmdSetVoice(ctx context.Context, args string, msg Message) (string, error) {
	fields := strings.Fields(args)
	if len(fields) != 1 {
		return fmt.Sprintf("Usage: `%ssetvoice <provider>-<voice>`, e.g. `%ssetvoice tiktok-en_us_002`.",
			b.config.CommandPrefix, b.config.CommandPrefix), nil
	}
	selector := fields[0]

	if err := b.speaker.ValidateSelector(selector); err != nil {
		if errors.Is(err, tts.ErrUnknownProvider) {
			return fmt.Sprintf("Unknown voice `%s`. Available providers: %s.", selector, joinProviders(b.speaker.Providers())), nil
		}
		return "", err
	}

	if err := b.store.SetVoice(ctx, msg.AuthorID, msg.GuildID, selector); err != nil {
		return "", err
	}
	return fmt.Sprintf("Set voice to `%s`", selector), nil
}

func (b *DiscordBot) cmdVoice(ctx context.Context, _ string, msg Message) (string, error) {
	user, err := b.store.GetUser(ctx, msg.AuthorID, msg.GuildID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Your voice is `%s`", user.Voice), nil
}

func (b *DiscordBot) cmdVoices(_ context.Context, _ string, _ Message) (string, error) {
	return fmt.Sprintf("Available providers: %s. Voices are written as `<provider>-<voice>`, e.g. `tiktok-en_us_002`.",
		joinProviders(b.speaker.Providers())), nil
}

func (b *DiscordBot) cmdHelp(_ context.Context, _ string, _ Message) (string, error) {
	var sb strings.Builder
	sb.WriteString("Commands:\n")
	for _, c := range b.commands.List() {
		sb.WriteString("`" + b.config.CommandPrefix + c.Name)
		if c.Usage != "" {
			sb.WriteString(" " + c.Usage)
		}
		sb.WriteString("` " + c.Description + "\n")
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
