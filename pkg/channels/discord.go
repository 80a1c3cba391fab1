package channels

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/sipeed/picotts/pkg/config"
	"github.com/sipeed/picotts/pkg/logger"
	"github.com/sipeed/picotts/pkg/ratelimit"
	"github.com/sipeed/picotts/pkg/store"
	"github.com/sipeed/picotts/pkg/tts"
	"github.com/sipeed/picotts/pkg/voice"
)

const sendTimeout = 10 * time.Second

// Speaker synthesizes a message to an audio file.
type Speaker interface {
	Speak(ctx context.Context, selector, text string, mc *tts.MessageContext) (string, error)
	ValidateSelector(selector string) error
	Providers() []string
}

// DiscordBot reads the messages of each guild's linked text channel aloud in
// its linked voice channel.
type DiscordBot struct {
	session  *discordgo.Session
	config   config.DiscordConfig
	store    *store.Store
	speaker  Speaker
	player   voice.Player
	limiter  *ratelimit.Limiter
	commands *CommandRegistry
	ctx      context.Context

	mu        sync.RWMutex
	botUserID string

	// replaceable in tests
	reply          func(msg Message, content string) error
	voiceChannelOf func(guildID, userID string) (string, bool)
}

func NewDiscordBot(cfg *config.Config, st *store.Store, speaker Speaker) (*DiscordBot, error) {
	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	if err := applyDiscordProxy(session, cfg.Discord.Proxy); err != nil {
		return nil, err
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentMessageContent

	b := &DiscordBot{
		session: session,
		config:  cfg.Discord,
		store:   st,
		speaker: speaker,
		player:  voice.NewDiscordPlayer(session, cfg.Voice),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: cfg.RateLimits.MaxRequestsPerMinute,
			Burst:             cfg.RateLimits.Burst,
		}),
		ctx: context.Background(),
	}
	b.reply = b.sendReply
	b.voiceChannelOf = b.stateVoiceChannel
	b.registerCommands()
	return b, nil
}

func (b *DiscordBot) Start(ctx context.Context) error {
	logger.InfoC("discord", "Starting Discord bot")

	b.ctx = ctx
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onGuildCreate)
	b.session.AddHandler(b.onMessage)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}

	botUser, err := b.session.User("@me")
	if err != nil {
		return fmt.Errorf("failed to get bot user: %w", err)
	}
	b.setBotUserID(botUser.ID)
	logger.InfoCF("discord", "Discord bot connected", map[string]any{
		"username": botUser.Username,
		"user_id":  botUser.ID,
	})

	return nil
}

func (b *DiscordBot) Stop(ctx context.Context) error {
	logger.InfoC("discord", "Stopping Discord bot")

	b.session.RLock()
	guilds := make([]string, 0, len(b.session.VoiceConnections))
	for guildID := range b.session.VoiceConnections {
		guilds = append(guilds, guildID)
	}
	b.session.RUnlock()
	for _, guildID := range guilds {
		if err := b.player.Leave(guildID); err != nil && !errors.Is(err, voice.ErrNotConnected) {
			logger.WarnCF("discord", "Failed to leave voice channel", map[string]any{
				"guild_id": guildID,
				"error":    err.Error(),
			})
		}
	}

	if err := b.session.Close(); err != nil {
		return fmt.Errorf("failed to close discord session: %w", err)
	}
	return nil
}

// Limiter exposes the rate limiter so idle buckets can be swept.
func (b *DiscordBot) Limiter() *ratelimit.Limiter {
	return b.limiter
}

func (b *DiscordBot) getContext() context.Context {
	if b.ctx == nil {
		return context.Background()
	}
	return b.ctx
}

func (b *DiscordBot) setBotUserID(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.botUserID = id
}

func (b *DiscordBot) getBotUserID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.botUserID
}

func (b *DiscordBot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	if r == nil {
		return
	}
	if r.User != nil {
		b.setBotUserID(r.User.ID)
	}

	ctx := b.getContext()
	for _, g := range r.Guilds {
		if err := b.store.EnsureServer(ctx, g.ID); err != nil {
			logger.ErrorCF("discord", "Failed to register guild", map[string]any{
				"guild_id": g.ID,
				"error":    err.Error(),
			})
		}
	}
	logger.InfoCF("discord", "Discord bot ready", map[string]any{
		"guilds": len(r.Guilds),
	})
}

func (b *DiscordBot) onGuildCreate(_ *discordgo.Session, g *discordgo.GuildCreate) {
	if g == nil || g.Guild == nil {
		return
	}
	ctx := b.getContext()
	if err := b.store.EnsureServer(ctx, g.ID); err != nil {
		logger.ErrorCF("discord", "Failed to register guild", map[string]any{
			"guild_id": g.ID,
			"error":    err.Error(),
		})
		return
	}
	b.restoreVoice(ctx, g.ID)
}

// restoreVoice rejoins the voice channel stored for the guild. If that is no
// longer possible the guild is unlinked so its text channel goes quiet.
func (b *DiscordBot) restoreVoice(ctx context.Context, guildID string) {
	server, err := b.store.GetServer(ctx, guildID)
	if err != nil || server.VoiceChannel == "" || b.player.Connected(guildID) {
		return
	}

	if err := b.player.Join(guildID, server.VoiceChannel); err != nil {
		logger.WarnCF("discord", "Could not rejoin voice channel, unlinking guild", map[string]any{
			"guild_id":   guildID,
			"channel_id": server.VoiceChannel,
			"error":      err.Error(),
		})
		if err := b.store.ClearVoiceChannel(ctx, guildID); err != nil {
			logger.ErrorCF("discord", "Failed to unlink guild", map[string]any{
				"guild_id": guildID,
				"error":    err.Error(),
			})
		}
		return
	}
	logger.InfoCF("discord", "Rejoined voice channel", map[string]any{
		"guild_id":   guildID,
		"channel_id": server.VoiceChannel,
	})
}

func (b *DiscordBot) onMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil || m.Author == nil {
		return
	}

	msg := Message{
		ID:         m.ID,
		GuildID:    m.GuildID,
		ChannelID:  m.ChannelID,
		AuthorID:   m.Author.ID,
		AuthorName: m.Author.Username,
		AuthorBot:  m.Author.Bot,
		Content:    m.ContentWithMentionsReplaced(),
	}
	b.handle(b.getContext(), msg)
}

// handle routes one message: commands first, then reading aloud.
func (b *DiscordBot) handle(ctx context.Context, msg Message) {
	if msg.GuildID == "" || msg.AuthorBot || msg.AuthorID == b.getBotUserID() {
		return
	}

	if name, args, ok := ParseCommand(msg.Content, b.config.CommandPrefix); ok {
		b.runCommand(ctx, name, args, msg)
		return
	}

	server, err := b.store.GetServer(ctx, msg.GuildID)
	if err != nil {
		logger.ErrorCF("discord", "Failed to load server settings", map[string]any{
			"guild_id": msg.GuildID,
			"error":    err.Error(),
		})
		return
	}
	if !Eligible(msg, server, b.getBotUserID(), b.config.CommandPrefix) {
		return
	}

	b.speak(ctx, msg)
}

func (b *DiscordBot) speak(ctx context.Context, msg Message) {
	if !b.player.Connected(msg.GuildID) {
		b.replyTo(msg, b.notInVoiceReply())
		return
	}

	if !b.limiter.Allow(rateKey(msg)) {
		logger.DebugCF("discord", "Message rate limited", map[string]any{
			"guild_id": msg.GuildID,
			"user_id":  msg.AuthorID,
		})
		b.replyTo(msg, "You're sending messages too quickly, some were not read aloud.")
		return
	}

	user, err := b.store.GetUser(ctx, msg.AuthorID, msg.GuildID)
	if err != nil {
		logger.ErrorCF("discord", "Failed to load user settings", map[string]any{
			"guild_id": msg.GuildID,
			"user_id":  msg.AuthorID,
			"error":    err.Error(),
		})
		b.replyTo(msg, "Couldn't load your voice settings, please try again.")
		return
	}

	path, err := b.speaker.Speak(ctx, user.Voice, msg.Content, &tts.MessageContext{
		GuildID:   msg.GuildID,
		ChannelID: msg.ChannelID,
		AuthorID:  msg.AuthorID,
	})
	if err != nil {
		logger.WarnCF("discord", "Speech synthesis failed", map[string]any{
			"guild_id": msg.GuildID,
			"user_id":  msg.AuthorID,
			"voice":    user.Voice,
			"error":    err.Error(),
		})
		b.replyTo(msg, describeSpeakError(user.Voice, err, b.config.CommandPrefix))
		return
	}

	if err := b.player.Play(ctx, msg.GuildID, path); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		logger.WarnCF("discord", "Playback failed", map[string]any{
			"guild_id": msg.GuildID,
			"path":     path,
			"error":    err.Error(),
		})
		if errors.Is(err, voice.ErrNotConnected) {
			b.replyTo(msg, b.notInVoiceReply())
			return
		}
		b.replyTo(msg, "Couldn't play that message: "+err.Error())
	}
}

func (b *DiscordBot) notInVoiceReply() string {
	return fmt.Sprintf("I'm not in a voice channel. Use `%sjoin` first.", b.config.CommandPrefix)
}

func describeSpeakError(selector string, err error, prefix string) string {
	switch {
	case errors.Is(err, tts.ErrUnknownProvider):
		return fmt.Sprintf("Your voice `%s` is not available. Pick another with `%ssetvoice`.", selector, prefix)
	case errors.Is(err, tts.ErrProvider):
		return "The speech service rejected that message: " + err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return "The speech service took too long to answer."
	default:
		return "Couldn't read that message aloud: " + err.Error()
	}
}

func (b *DiscordBot) runCommand(ctx context.Context, name, args string, msg Message) {
	entry, ok := b.commands.Get(name)
	if !ok {
		b.replyTo(msg, fmt.Sprintf("Unknown command `%s`. Try `%shelp`.", name, b.config.CommandPrefix))
		return
	}

	logger.DebugCF("discord", "Running command", map[string]any{
		"command":  entry.Name,
		"guild_id": msg.GuildID,
		"user_id":  msg.AuthorID,
	})

	resp, err := entry.Handler(ctx, args, msg)
	if err != nil {
		logger.WarnCF("discord", "Command failed", map[string]any{
			"command": entry.Name,
			"error":   err.Error(),
		})
		b.replyTo(msg, "Error: "+err.Error())
		return
	}
	if resp != "" {
		b.replyTo(msg, resp)
	}
}

func (b *DiscordBot) replyTo(msg Message, content string) {
	if err := b.reply(msg, content); err != nil {
		logger.ErrorCF("discord", "Failed to send reply", map[string]any{
			"channel_id": msg.ChannelID,
			"error":      err.Error(),
		})
	}
}

func (b *DiscordBot) sendReply(msg Message, content string) error {
	ctx, cancel := context.WithTimeout(b.getContext(), sendTimeout)
	defer cancel()

	ref := &discordgo.MessageReference{
		MessageID: msg.ID,
		ChannelID: msg.ChannelID,
		GuildID:   msg.GuildID,
	}

	done := make(chan error, 1)
	go func() {
		_, err := b.session.ChannelMessageSendReply(msg.ChannelID, content, ref)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send discord message: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send message timeout: %w", ctx.Err())
	}
}

func (b *DiscordBot) stateVoiceChannel(guildID, userID string) (string, bool) {
	vs, err := b.session.State.VoiceState(guildID, userID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		return "", false
	}
	return vs.ChannelID, true
}

func joinProviders(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "`" + n + "`"
	}
	return strings.Join(quoted, ", ")
}
