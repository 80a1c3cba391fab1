package tts

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/sipeed/picotts/pkg/config"
	"github.com/sipeed/picotts/pkg/logger"
	"github.com/sipeed/picotts/pkg/ssrf"
)

// Service is the entry point used by the bot and the CLI: dispatch, then
// materialize, under one deadline.
type Service struct {
	dispatcher   *Dispatcher
	materializer *Materializer
	timeout      time.Duration
}

func NewService(dispatcher *Dispatcher, materializer *Materializer, timeout time.Duration) *Service {
	return &Service{
		dispatcher:   dispatcher,
		materializer: materializer,
		timeout:      timeout,
	}
}

// NewServiceFromConfig registers every enabled provider from cfg behind a
// shared HTTP client.
func NewServiceFromConfig(cfg config.TTSConfig, dir string) *Service {
	client := &http.Client{}
	registry := NewRegistry()

	p := cfg.Providers
	if p.TikTok.Enabled {
		logger.AddSecret(p.TikTok.SessionID)
		registry.Register(NewTikTokProvider(p.TikTok.Endpoint, p.TikTok.SessionID, client))
	}
	if p.TTSMP3.Enabled {
		registry.Register(NewTTSMP3Provider(p.TTSMP3.Endpoint, client))
	}
	if p.SAPI.Enabled {
		registry.Register(NewSAPIProvider(p.SAPI.Endpoint, client))
	}

	logger.InfoCF("tts", "Speech providers registered", map[string]any{
		"providers": registry.Names(),
		"dir":       dir,
	})

	guardCfg := ssrf.DefaultConfig()
	guardCfg.Enabled = cfg.DownloadGuard.Enabled
	guardCfg.AllowedHosts = cfg.DownloadGuard.AllowedHosts
	materializer := NewMaterializer(client).WithGuard(ssrf.NewGuard(guardCfg))

	return NewService(NewDispatcher(registry, dir), materializer, cfg.RequestTimeout())
}

// Speak synthesizes text with the voice named by selector and returns the
// path of the written artifact.
func (s *Service) Speak(ctx context.Context, selector, text string, mc *MessageContext) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := s.dispatcher.Request(ctx, selector, text, mc)
	if err != nil {
		return "", err
	}

	path, err := s.materializer.Download(ctx, result)
	if err != nil {
		return "", err
	}

	fields := map[string]any{
		"provider":    result.Provider(),
		"selector":    selector,
		"path":        path,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if info, err := os.Stat(path); err == nil {
		fields["size_bytes"] = info.Size()
	}
	logger.InfoCF("tts", "Speech synthesized", fields)

	return path, nil
}

// ValidateSelector reports whether selector names a registered provider,
// without contacting it.
func (s *Service) ValidateSelector(selector string) error {
	_, _, err := s.dispatcher.Registry().Resolve(selector)
	return err
}

func (s *Service) Providers() []string {
	return s.dispatcher.Registry().Names()
}
