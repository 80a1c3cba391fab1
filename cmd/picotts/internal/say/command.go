package say

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sipeed/picotts/cmd/picotts/internal"
	"github.com/sipeed/picotts/pkg/tts"
)

func NewSayCommand() *cobra.Command {
	var voice string
	var dir string

	cmd := &cobra.Command{
		Use:   "say [flags] <text>",
		Short: "Synthesize text to an audio file",
		Long: "Synthesize text with one provider and write it to <dir>/test.mp3.\n" +
			"Voices are written as <provider>-<voice>, for example tiktok-en_us_002,\n" +
			"ttsmp3-Justin or sapi-Sam.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := internal.LoadConfig()
			if err != nil {
				return fmt.Errorf("error loading config: %w", err)
			}
			if voice == "" {
				voice = cfg.TTS.DefaultVoice
			}
			if dir == "" {
				dir = cfg.ArtifactDir()
			}

			service := tts.NewServiceFromConfig(cfg.TTS, dir)
			path, err := service.Speak(context.Background(), voice, strings.Join(args, " "), nil)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&voice, "voice", "v", "", "Voice selector (default tts.default_voice)")
	cmd.Flags().StringVar(&dir, "dir", "", "Artifact directory (default tts.dir)")

	return cmd
}
