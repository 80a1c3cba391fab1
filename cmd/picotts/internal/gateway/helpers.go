package gateway

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sipeed/picotts/cmd/picotts/internal"
	"github.com/sipeed/picotts/pkg/channels"
	"github.com/sipeed/picotts/pkg/config"
	"github.com/sipeed/picotts/pkg/cron"
	"github.com/sipeed/picotts/pkg/logger"
	"github.com/sipeed/picotts/pkg/store"
	"github.com/sipeed/picotts/pkg/tts"
)

const (
	limiterSweepSchedule = "*/10 * * * *"
	limiterIdleAge       = 30 * time.Minute
)

func gatewayCmd(debug bool) error {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if debug {
		logger.SetLevel(logger.DEBUG)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.TTS.CleanupSchedule != "" {
		if err := cron.ValidateSchedule(cfg.TTS.CleanupSchedule); err != nil {
			return fmt.Errorf("tts.cleanup_schedule: %w", err)
		}
	}

	artifactDir := cfg.ArtifactDir()
	logger.InfoCF("gateway", "Starting gateway", map[string]any{
		"log_level":    logger.GetLevel().String(),
		"artifact_dir": artifactDir,
		"database":     cfg.DatabasePath(),
	})
	if err := os.MkdirAll(artifactDir, 0o755); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}

	st, err := store.Open(cfg.DatabasePath(), cfg.TTS.DefaultVoice)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	service := tts.NewServiceFromConfig(cfg.TTS, artifactDir)

	bot, err := channels.NewDiscordBot(cfg, st, service)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cs, err := setupCronService(cfg, artifactDir, bot)
	if err != nil {
		return err
	}
	if err := cs.Start(ctx); err != nil {
		return err
	}
	defer cs.Stop()

	if err := bot.Start(ctx); err != nil {
		return err
	}

	fmt.Printf("%s Gateway started, reading linked channels aloud\n", internal.Logo)
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down...")
	cancel()
	if err := bot.Stop(context.Background()); err != nil {
		logger.ErrorCF("gateway", "Failed to stop Discord bot", map[string]any{
			"error": err.Error(),
		})
	}
	fmt.Println("✓ Gateway stopped")
	return nil
}

func setupCronService(cfg *config.Config, artifactDir string, bot *channels.DiscordBot) (*cron.CronService, error) {
	cs := cron.NewCronService()

	if cfg.TTS.CleanupSchedule != "" && cfg.TTS.MaxArtifactAgeMinutes > 0 {
		if err := cs.AddJob("artifact-janitor", cfg.TTS.CleanupSchedule,
			cron.ArtifactJanitor(artifactDir, cfg.TTS.MaxArtifactAge())); err != nil {
			return nil, err
		}
	}

	limiter := bot.Limiter()
	if limiter.Enabled() {
		if err := cs.AddJob("ratelimit-sweep", limiterSweepSchedule, func(context.Context, time.Time) error {
			limiter.Cleanup(limiterIdleAge)
			return nil
		}); err != nil {
			return nil, err
		}
	}

	for _, job := range cs.ListJobs() {
		logger.InfoCF("gateway", "Scheduled job", map[string]any{
			"job":      job.Name,
			"schedule": job.Schedule,
			"next_run": job.NextRun.Format(time.RFC3339),
		})
	}
	return cs, nil
}
