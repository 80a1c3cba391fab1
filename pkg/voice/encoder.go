package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

// Discord voice expects 48 kHz stereo Opus in 20 ms frames.
const (
	opusSampleRate = 48000
	opusChannels   = 2
	opusFrameMs    = 20
)

// encodeFunc starts transcoding path to an Ogg/Opus stream. wait returns
// once the encoder has exited.
type encodeFunc func(ctx context.Context, path string) (stream io.ReadCloser, wait func() error, err error)

func ffmpegArgs(path string, bitrateKbps int) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", path,
		"-map", "0:a",
		"-c:a", "libopus",
		"-b:a", strconv.Itoa(bitrateKbps) + "k",
		"-ar", strconv.Itoa(opusSampleRate),
		"-ac", strconv.Itoa(opusChannels),
		"-frame_duration", strconv.Itoa(opusFrameMs),
		"-application", "audio",
		"-vbr", "on",
		"-f", "ogg",
		"pipe:1",
	}
}

func ffmpegEncoder(binary string, bitrateKbps int) encodeFunc {
	return func(ctx context.Context, path string) (io.ReadCloser, func() error, error) {
		cmd := exec.CommandContext(ctx, binary, ffmpegArgs(path, bitrateKbps)...)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr

		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, nil, err
		}
		if err := cmd.Start(); err != nil {
			if errors.Is(err, exec.ErrNotFound) {
				return nil, nil, fmt.Errorf("%s not found, install ffmpeg or set voice.ffmpeg_path: %w", binary, err)
			}
			return nil, nil, fmt.Errorf("starting %s: %w", binary, err)
		}

		wait := func() error {
			if err := cmd.Wait(); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if msg := strings.TrimSpace(stderr.String()); msg != "" {
					return fmt.Errorf("%s: %w: %s", binary, err, msg)
				}
				return fmt.Errorf("%s: %w", binary, err)
			}
			return nil
		}
		return stdout, wait, nil
	}
}
