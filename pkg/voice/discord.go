package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/sipeed/picotts/pkg/config"
	"github.com/sipeed/picotts/pkg/logger"
)

const sendTimeout = 2 * time.Second

// opusSink is the part of a voice connection playback needs.
type opusSink interface {
	Speaking(on bool) error
	Send(ctx context.Context, packet []byte) error
}

type playback struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// DiscordPlayer streams audio files over discordgo voice connections.
type DiscordPlayer struct {
	session *discordgo.Session
	encode  encodeFunc
	sinkFor func(guildID string) (opusSink, bool)

	mu      sync.Mutex
	current map[string]*playback
	// one token per guild; held while audio is being sent
	slots map[string]chan struct{}
}

func NewDiscordPlayer(session *discordgo.Session, cfg config.VoiceConfig) *DiscordPlayer {
	bitrate := cfg.Bitrate
	if bitrate <= 0 {
		bitrate = 64
	}
	ffmpeg := cfg.FFmpegPath
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}

	p := &DiscordPlayer{
		session: session,
		encode:  ffmpegEncoder(ffmpeg, bitrate),
		current: make(map[string]*playback),
		slots:   make(map[string]chan struct{}),
	}
	p.sinkFor = p.voiceSink
	return p
}

func (p *DiscordPlayer) connection(guildID string) (*discordgo.VoiceConnection, bool) {
	p.session.RLock()
	defer p.session.RUnlock()
	vc, ok := p.session.VoiceConnections[guildID]
	return vc, ok && vc != nil
}

func (p *DiscordPlayer) voiceSink(guildID string) (opusSink, bool) {
	vc, ok := p.connection(guildID)
	if !ok {
		return nil, false
	}
	return &voiceConnSink{vc: vc}, true
}

// Join connects to channelID, moving the bot if it is already connected
// elsewhere in the guild.
func (p *DiscordPlayer) Join(guildID, channelID string) error {
	if _, err := p.session.ChannelVoiceJoin(guildID, channelID, false, true); err != nil {
		return fmt.Errorf("joining voice channel %s: %w", channelID, err)
	}
	logger.InfoCF("voice", "Joined voice channel", map[string]any{
		"guild_id":   guildID,
		"channel_id": channelID,
	})
	return nil
}

// Connected reports whether the bot holds a voice connection in the guild.
func (p *DiscordPlayer) Connected(guildID string) bool {
	_, ok := p.sinkFor(guildID)
	return ok
}

// Leave stops any playback and disconnects from the guild's voice channel.
func (p *DiscordPlayer) Leave(guildID string) error {
	p.stop(guildID)

	vc, ok := p.connection(guildID)
	if !ok {
		return ErrNotConnected
	}
	if err := vc.Disconnect(); err != nil {
		return fmt.Errorf("leaving voice channel: %w", err)
	}
	logger.InfoCF("voice", "Left voice channel", map[string]any{
		"guild_id": guildID,
	})
	return nil
}

// Play streams path into the guild's voice channel and returns when it has
// finished, failed or been superseded by a later Play for the same guild.
// A superseded playback returns context.Canceled.
func (p *DiscordPlayer) Play(ctx context.Context, guildID, path string) error {
	sink, ok := p.sinkFor(guildID)
	if !ok {
		return ErrNotConnected
	}

	ctx, cancel := context.WithCancel(ctx)
	pb := &playback{cancel: cancel, done: make(chan struct{})}

	p.mu.Lock()
	prev := p.current[guildID]
	p.current[guildID] = pb
	p.mu.Unlock()

	defer func() {
		cancel()
		p.mu.Lock()
		if p.current[guildID] == pb {
			delete(p.current, guildID)
		}
		p.mu.Unlock()
		close(pb.done)
	}()

	if prev != nil {
		prev.cancel()
	}

	// Every earlier playback in the guild has been cancelled, but one that
	// gave up waiting may still be draining. The slot is released only when
	// the sender has returned, so audio never interleaves.
	slot := p.slot(guildID)
	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-slot }()

	stream, wait, err := p.encode(ctx, path)
	if err != nil {
		return err
	}

	start := time.Now()
	packets, streamErr := streamOpus(ctx, stream, sink)
	stream.Close()
	waitErr := wait()

	fields := map[string]any{
		"guild_id":    guildID,
		"path":        path,
		"packets":     packets,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	switch {
	case errors.Is(streamErr, context.Canceled):
		logger.DebugCF("voice", "Playback cancelled", fields)
		return streamErr
	case streamErr != nil:
		return streamErr
	case waitErr != nil:
		return waitErr
	}
	logger.DebugCF("voice", "Playback finished", fields)
	return nil
}

func (p *DiscordPlayer) slot(guildID string) chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.slots == nil {
		p.slots = make(map[string]chan struct{})
	}
	s, ok := p.slots[guildID]
	if !ok {
		s = make(chan struct{}, 1)
		p.slots[guildID] = s
	}
	return s
}

// stop cancels the guild's current playback, if any, and waits for it.
func (p *DiscordPlayer) stop(guildID string) {
	p.mu.Lock()
	pb := p.current[guildID]
	p.mu.Unlock()
	if pb != nil {
		pb.cancel()
		<-pb.done
	}
}

var (
	opusHeadMagic = []byte("OpusHead")
	opusTagsMagic = []byte("OpusTags")
)

// streamOpus sends every audio packet of an Ogg/Opus stream to sink,
// bracketed by speaking on and off.
func streamOpus(ctx context.Context, r io.Reader, sink opusSink) (int, error) {
	if err := sink.Speaking(true); err != nil {
		return 0, fmt.Errorf("setting speaking state: %w", err)
	}
	defer sink.Speaking(false)

	ogg := NewOggReader(r)
	sent := 0
	for {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		pkt, err := ogg.NextPacket()
		if err == io.EOF {
			return sent, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return sent, ctx.Err()
			}
			return sent, fmt.Errorf("reading opus stream: %w", err)
		}
		if bytes.HasPrefix(pkt, opusHeadMagic) || bytes.HasPrefix(pkt, opusTagsMagic) || len(pkt) == 0 {
			continue
		}
		if err := sink.Send(ctx, pkt); err != nil {
			return sent, err
		}
		sent++
	}
}

type voiceConnSink struct {
	vc *discordgo.VoiceConnection
}

func (s *voiceConnSink) Speaking(on bool) error {
	return s.vc.Speaking(on)
}

func (s *voiceConnSink) Send(ctx context.Context, packet []byte) error {
	timer := time.NewTimer(sendTimeout)
	defer timer.Stop()

	select {
	case s.vc.OpusSend <- packet:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("voice connection did not accept audio within %s", sendTimeout)
	}
}
