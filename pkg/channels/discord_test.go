package channels

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"path/filepath"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/picotts/pkg/config"
	"github.com/sipeed/picotts/pkg/ratelimit"
	"github.com/sipeed/picotts/pkg/store"
	"github.com/sipeed/picotts/pkg/tts"
	"github.com/sipeed/picotts/pkg/voice"
)

type speakCall struct {
	selector string
	text     string
	mc       tts.MessageContext
}

type fakeSpeaker struct {
	mu    sync.Mutex
	calls []speakCall
	err   error
}

func (s *fakeSpeaker) Speak(_ context.Context, selector, text string, mc *tts.MessageContext) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, speakCall{selector: selector, text: text, mc: *mc})
	if s.err != nil {
		return "", s.err
	}
	return filepath.Join("tts", mc.GuildID, mc.ChannelID, mc.GuildID+"-"+mc.ChannelID+"-"+mc.AuthorID+".mp3"), nil
}

func (s *fakeSpeaker) ValidateSelector(selector string) error {
	sel, err := tts.ParseSelector(selector)
	if err != nil {
		return err
	}
	for _, p := range s.Providers() {
		if p == sel.Provider {
			return nil
		}
	}
	return &tts.Error{Provider: sel.Provider, Kind: tts.ErrUnknownProvider}
}

func (s *fakeSpeaker) Providers() []string {
	return []string{"sapi", "tiktok", "ttsmp3"}
}

type fakePlayer struct {
	mu        sync.Mutex
	joined    map[string]string
	played    []string
	playErr   error
	joinErr   error
	connected bool
}

func (p *fakePlayer) Join(guildID, channelID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.joinErr != nil {
		return p.joinErr
	}
	if p.joined == nil {
		p.joined = make(map[string]string)
	}
	p.joined[guildID] = channelID
	p.connected = true
	return nil
}

func (p *fakePlayer) Leave(guildID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return voice.ErrNotConnected
	}
	p.connected = false
	delete(p.joined, guildID)
	return nil
}

func (p *fakePlayer) Connected(string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

func (p *fakePlayer) Play(_ context.Context, guildID, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.played = append(p.played, path)
	return p.playErr
}

type testBot struct {
	*DiscordBot
	speaker *fakeSpeaker
	player  *fakePlayer
	replies []string
	voiceOf map[string]string // user id -> voice channel id
}

func newTestBot(t *testing.T) *testBot {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "picotts.db"), config.DefaultVoice)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	tb := &testBot{
		speaker: &fakeSpeaker{},
		player:  &fakePlayer{},
		voiceOf: map[string]string{},
	}
	tb.DiscordBot = &DiscordBot{
		config:    config.DiscordConfig{CommandPrefix: config.DefaultCommandPrefix},
		store:     st,
		speaker:   tb.speaker,
		player:    tb.player,
		limiter:   ratelimit.NewLimiter(ratelimit.Config{}),
		botUserID: "bot",
		reply: func(_ Message, content string) error {
			tb.replies = append(tb.replies, content)
			return nil
		},
		voiceChannelOf: func(_, userID string) (string, bool) {
			ch, ok := tb.voiceOf[userID]
			return ch, ok
		},
	}
	tb.registerCommands()
	return tb
}

func (tb *testBot) send(content string) {
	tb.handle(context.Background(), Message{ID: "m", GuildID: "g1", ChannelID: "text", AuthorID: "u1", Content: content})
}

// link stores both channel links for g1 and marks the player connected, as
// after a successful join.
func (tb *testBot) link(t *testing.T) {
	t.Helper()
	require.NoError(t, tb.store.SetTextChannel(context.Background(), "g1", "text"))
	require.NoError(t, tb.store.SetVoiceChannel(context.Background(), "g1", "vc1"))
	tb.player.connected = true
}

func (tb *testBot) lastReply(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, tb.replies)
	return tb.replies[len(tb.replies)-1]
}

func TestJoinLinksChannels(t *testing.T) {
	tb := newTestBot(t)
	tb.voiceOf["u1"] = "vc1"

	tb.send("tts!join")
	assert.Equal(t, "Joining Channel <#vc1>", tb.lastReply(t))
	assert.Equal(t, "vc1", tb.player.joined["g1"])

	srv, err := tb.store.GetServer(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, "text", srv.TextChannel)
	assert.Equal(t, "vc1", srv.VoiceChannel)
}

func TestJoinWithoutVoiceState(t *testing.T) {
	tb := newTestBot(t)

	tb.send("tts!join")
	assert.Equal(t, "You are not in a voice channel! Please join a channel.", tb.lastReply(t))
	assert.Empty(t, tb.player.joined)
}

func TestLinkedChannelMessageIsSpokenAndPlayed(t *testing.T) {
	tb := newTestBot(t)
	tb.voiceOf["u1"] = "vc1"
	tb.send("tts!join")
	tb.replies = nil

	tb.send("hello everyone")

	require.Len(t, tb.speaker.calls, 1)
	call := tb.speaker.calls[0]
	assert.Equal(t, config.DefaultVoice, call.selector)
	assert.Equal(t, "hello everyone", call.text)
	assert.Equal(t, tts.MessageContext{GuildID: "g1", ChannelID: "text", AuthorID: "u1"}, call.mc)
	assert.Equal(t, []string{filepath.Join("tts", "g1", "text", "g1-text-u1.mp3")}, tb.player.played)
	assert.Empty(t, tb.replies)
}

func TestMessagesOutsideLinkedChannelAreIgnored(t *testing.T) {
	tb := newTestBot(t)

	// nothing linked yet
	tb.send("hello")
	assert.Empty(t, tb.speaker.calls)

	require.NoError(t, tb.store.SetTextChannel(context.Background(), "g1", "other"))
	tb.send("hello")
	assert.Empty(t, tb.speaker.calls)
	assert.Empty(t, tb.replies)
}

func TestBotAuthorsAreIgnored(t *testing.T) {
	tb := newTestBot(t)
	require.NoError(t, tb.store.SetTextChannel(context.Background(), "g1", "text"))

	tb.handle(context.Background(), Message{GuildID: "g1", ChannelID: "text", AuthorID: "bot", Content: "echo"})
	tb.handle(context.Background(), Message{GuildID: "g1", ChannelID: "text", AuthorID: "b2", AuthorBot: true, Content: "beep"})
	tb.handle(context.Background(), Message{GuildID: "g1", ChannelID: "text", AuthorID: "b2", AuthorBot: true, Content: "tts!help"})

	assert.Empty(t, tb.speaker.calls)
	assert.Empty(t, tb.replies)
}

func TestSetVoiceIsUsedForLaterMessages(t *testing.T) {
	tb := newTestBot(t)
	tb.link(t)

	tb.send("tts!setvoice sapi-Sam")
	assert.Equal(t, "Set voice to `sapi-Sam`", tb.lastReply(t))

	tb.send("tts!voice")
	assert.Equal(t, "Your voice is `sapi-Sam`", tb.lastReply(t))

	tb.send("read me")
	require.Len(t, tb.speaker.calls, 1)
	assert.Equal(t, "sapi-Sam", tb.speaker.calls[0].selector)
}

func TestSetVoiceRejectsUnknownProvider(t *testing.T) {
	tb := newTestBot(t)

	tb.send("tts!setvoice google-en-US")
	assert.Contains(t, tb.lastReply(t), "Unknown voice `google-en-US`")
	assert.Contains(t, tb.lastReply(t), "`tiktok`")

	u, err := tb.store.GetUser(context.Background(), "u1", "g1")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultVoice, u.Voice)
}

func TestSetVoiceUsage(t *testing.T) {
	tb := newTestBot(t)

	tb.send("tts!setvoice")
	assert.Contains(t, tb.lastReply(t), "Usage:")
}

func TestLeave(t *testing.T) {
	tb := newTestBot(t)

	tb.send("tts!leave")
	assert.Equal(t, "Currently not in a voice channel!", tb.lastReply(t))

	tb.voiceOf["u1"] = "vc1"
	tb.send("tts!join")
	tb.send("tts!leave")
	assert.Equal(t, "Left voice channel.", tb.lastReply(t))

	srv, err := tb.store.GetServer(context.Background(), "g1")
	require.NoError(t, err)
	assert.Empty(t, srv.VoiceChannel)
	assert.Empty(t, srv.TextChannel)

	tb.send("no longer read")
	assert.Empty(t, tb.speaker.calls)
}

func TestLeaveWithoutConnectionUnlinksChannel(t *testing.T) {
	tb := newTestBot(t)
	tb.link(t)
	tb.player.connected = false
	tb.player.playErr = voice.ErrNotConnected

	tb.send("hello")
	assert.Empty(t, tb.speaker.calls, "no synthesis without a voice connection")
	assert.Equal(t, "I'm not in a voice channel. Use `tts!join` first.", tb.lastReply(t))

	tb.send("tts!leave")
	assert.Equal(t, "Currently not in a voice channel!", tb.lastReply(t))

	srv, err := tb.store.GetServer(context.Background(), "g1")
	require.NoError(t, err)
	assert.Empty(t, srv.TextChannel)
	assert.Empty(t, srv.VoiceChannel)

	tb.replies = nil
	tb.send("still talking")
	assert.Empty(t, tb.speaker.calls)
	assert.Empty(t, tb.player.played)
	assert.Empty(t, tb.replies)
}

func TestGuildCreateRejoinsStoredVoiceChannel(t *testing.T) {
	tb := newTestBot(t)
	require.NoError(t, tb.store.SetTextChannel(context.Background(), "g1", "text"))
	require.NoError(t, tb.store.SetVoiceChannel(context.Background(), "g1", "vc9"))

	tb.onGuildCreate(nil, &discordgo.GuildCreate{Guild: &discordgo.Guild{ID: "g1"}})
	assert.Equal(t, "vc9", tb.player.joined["g1"])

	tb.send("back again")
	require.Len(t, tb.speaker.calls, 1)
}

func TestGuildCreateUnlinksWhenRejoinFails(t *testing.T) {
	tb := newTestBot(t)
	require.NoError(t, tb.store.SetTextChannel(context.Background(), "g1", "text"))
	require.NoError(t, tb.store.SetVoiceChannel(context.Background(), "g1", "vc9"))
	tb.player.joinErr = errors.New("missing permissions")

	tb.onGuildCreate(nil, &discordgo.GuildCreate{Guild: &discordgo.Guild{ID: "g1"}})

	srv, err := tb.store.GetServer(context.Background(), "g1")
	require.NoError(t, err)
	assert.Empty(t, srv.TextChannel)
	assert.Empty(t, srv.VoiceChannel)

	tb.send("anyone?")
	assert.Empty(t, tb.speaker.calls)
	assert.Empty(t, tb.replies)
}

func TestGuildCreateWithoutStoredVoiceChannel(t *testing.T) {
	tb := newTestBot(t)

	tb.onGuildCreate(nil, &discordgo.GuildCreate{Guild: &discordgo.Guild{ID: "g5"}})
	assert.Empty(t, tb.player.joined)

	srv, err := tb.store.GetServer(context.Background(), "g5")
	require.NoError(t, err)
	assert.Equal(t, "g5", srv.ID)
}

func TestUnknownCommand(t *testing.T) {
	tb := newTestBot(t)

	tb.send("tts!dance")
	assert.Equal(t, "Unknown command `dance`. Try `tts!help`.", tb.lastReply(t))
}

func TestHelpListsCommands(t *testing.T) {
	tb := newTestBot(t)

	tb.send("tts!help")
	help := tb.lastReply(t)
	for _, name := range []string{"join", "leave", "setvoice", "voice", "voices", "help"} {
		assert.Contains(t, help, "`tts!"+name)
	}
	assert.Contains(t, help, "<provider>-<voice>")
}

func TestVoicesListsProviders(t *testing.T) {
	tb := newTestBot(t)

	tb.send("tts!voices")
	assert.Contains(t, tb.lastReply(t), "`sapi`, `tiktok`, `ttsmp3`")
}

func TestSynthesisFailureIsReported(t *testing.T) {
	tb := newTestBot(t)
	tb.link(t)
	tb.speaker.err = &tts.Error{Provider: "tiktok", Kind: tts.ErrProvider, Message: "Couldn't load speech"}

	tb.send("hello")
	assert.Contains(t, tb.lastReply(t), "Couldn't load speech")
	assert.Empty(t, tb.player.played)
}

func TestPlaybackFailureIsReported(t *testing.T) {
	tb := newTestBot(t)
	tb.link(t)
	tb.player.playErr = voice.ErrNotConnected

	tb.send("hello")
	assert.Equal(t, "I'm not in a voice channel. Use `tts!join` first.", tb.lastReply(t))
}

func TestSupersededPlaybackIsSilent(t *testing.T) {
	tb := newTestBot(t)
	tb.link(t)
	tb.player.playErr = context.Canceled

	tb.send("hello")
	assert.Empty(t, tb.replies)
}

func TestRateLimitedMessagesAreReported(t *testing.T) {
	tb := newTestBot(t)
	tb.link(t)
	tb.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: 1, Burst: 1})

	tb.send("one")
	tb.send("two")

	assert.Len(t, tb.speaker.calls, 1)
	require.Len(t, tb.replies, 1)
	assert.Contains(t, tb.replies[0], "too quickly")
}

func TestDescribeSpeakError(t *testing.T) {
	unknown := describeSpeakError("foo-bar", &tts.Error{Kind: tts.ErrUnknownProvider}, "tts!")
	assert.Equal(t, "Your voice `foo-bar` is not available. Pick another with `tts!setvoice`.", unknown)

	timeout := describeSpeakError("sapi-Sam", &tts.Error{Kind: tts.ErrTransport, Cause: context.DeadlineExceeded}, "tts!")
	assert.Equal(t, "The speech service took too long to answer.", timeout)

	other := describeSpeakError("sapi-Sam", errors.New("disk full"), "tts!")
	assert.Contains(t, other, "disk full")
}

func TestReadyRegistersGuilds(t *testing.T) {
	tb := newTestBot(t)
	tb.botUserID = ""

	tb.onReady(nil, &discordgo.Ready{
		User:   &discordgo.User{ID: "bot-7"},
		Guilds: []*discordgo.Guild{{ID: "g1"}, {ID: "g2"}},
	})
	assert.Equal(t, "bot-7", tb.getBotUserID())

	for _, id := range []string{"g1", "g2"} {
		srv, err := tb.store.GetServer(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, id, srv.ID)
	}
}

func TestApplyDiscordProxy_CustomProxy(t *testing.T) {
	session, err := discordgo.New("Bot test-token")
	if err != nil {
		t.Fatalf("discordgo.New() error: %v", err)
	}

	if err := applyDiscordProxy(session, "http://127.0.0.1:7890"); err != nil {
		t.Fatalf("applyDiscordProxy() error: %v", err)
	}

	req, err := http.NewRequest("GET", "https://discord.com/api/v10/gateway", nil)
	if err != nil {
		t.Fatalf("http.NewRequest() error: %v", err)
	}

	restProxy := session.Client.Transport.(*http.Transport).Proxy
	restProxyURL, err := restProxy(req)
	if err != nil {
		t.Fatalf("rest proxy func error: %v", err)
	}
	if got, want := restProxyURL.String(), "http://127.0.0.1:7890"; got != want {
		t.Fatalf("REST proxy = %q, want %q", got, want)
	}

	wsProxyURL, err := session.Dialer.Proxy(req)
	if err != nil {
		t.Fatalf("ws proxy func error: %v", err)
	}
	if got, want := wsProxyURL.String(), "http://127.0.0.1:7890"; got != want {
		t.Fatalf("WS proxy = %q, want %q", got, want)
	}
}

func TestApplyDiscordProxy_FromEnvironment(t *testing.T) {
	t.Setenv("HTTP_PROXY", "http://127.0.0.1:8888")
	t.Setenv("http_proxy", "http://127.0.0.1:8888")
	t.Setenv("HTTPS_PROXY", "http://127.0.0.1:8888")
	t.Setenv("https_proxy", "http://127.0.0.1:8888")
	t.Setenv("ALL_PROXY", "")
	t.Setenv("all_proxy", "")

	session, err := discordgo.New("Bot test-token")
	if err != nil {
		t.Fatalf("discordgo.New() error: %v", err)
	}

	if err := applyDiscordProxy(session, ""); err != nil {
		t.Fatalf("applyDiscordProxy() error: %v", err)
	}

	req, err := http.NewRequest("GET", "https://discord.com/api/v10/gateway", nil)
	if err != nil {
		t.Fatalf("http.NewRequest() error: %v", err)
	}

	gotURL, err := session.Dialer.Proxy(req)
	if err != nil {
		t.Fatalf("ws proxy func error: %v", err)
	}

	wantURL, err := url.Parse("http://127.0.0.1:8888")
	if err != nil {
		t.Fatalf("url.Parse() error: %v", err)
	}
	if gotURL.String() != wantURL.String() {
		t.Fatalf("WS proxy = %q, want %q", gotURL.String(), wantURL.String())
	}
}

func TestApplyDiscordProxy_DoesNotTouchSharedDialer(t *testing.T) {
	for _, key := range proxyEnvKeys {
		t.Setenv(key, "")
	}

	session, err := discordgo.New("Bot test-token")
	if err != nil {
		t.Fatalf("discordgo.New() error: %v", err)
	}
	before := session.Dialer

	if err := applyDiscordProxy(session, ""); err != nil {
		t.Fatalf("applyDiscordProxy() error: %v", err)
	}
	if session.Dialer != before {
		t.Fatal("dialer replaced although no proxy is configured")
	}

	if err := applyDiscordProxy(session, "http://127.0.0.1:1"); err != nil {
		t.Fatalf("applyDiscordProxy() error: %v", err)
	}
	if session.Dialer == before {
		t.Fatal("shared dialer mutated in place")
	}
}

func TestApplyDiscordProxy_InvalidProxyURL(t *testing.T) {
	session, err := discordgo.New("Bot test-token")
	if err != nil {
		t.Fatalf("discordgo.New() error: %v", err)
	}

	if err := applyDiscordProxy(session, "://bad-proxy"); err == nil {
		t.Fatal("applyDiscordProxy() expected error for invalid proxy URL, got nil")
	}
}
