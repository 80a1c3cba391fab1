package voices

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sipeed/picotts/cmd/picotts/internal"
	"github.com/sipeed/picotts/pkg/tts"
)

// exampleVoices are known-good voice ids per provider, shown as hints only.
var exampleVoices = map[string][]string{
	tts.TikTokName: {"en_us_001", "en_us_002", "en_us_006", "en_uk_001", "en_au_001", "fr_001", "de_001", "es_002", "jp_001"},
	tts.TTSMP3Name: {"Joey", "Justin", "Matthew", "Joanna", "Kendra", "Brian", "Amy", "Emma"},
	tts.SAPIName:   {"Sam", "Mike", "Mary", "Adult Male #1", "Adult Female #1"},
}

func NewVoicesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "voices",
		Short: "List the enabled speech providers and example voices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := internal.LoadConfig()
			if err != nil {
				return fmt.Errorf("error loading config: %w", err)
			}

			service := tts.NewServiceFromConfig(cfg.TTS, cfg.ArtifactDir())
			out := cmd.OutOrStdout()
			for _, provider := range service.Providers() {
				fmt.Fprintf(out, "%s\n", provider)
				for _, v := range exampleVoices[provider] {
					fmt.Fprintf(out, "  %s-%s\n", provider, v)
				}
			}
			fmt.Fprintf(out, "\nDefault voice: %s\n", cfg.TTS.DefaultVoice)
			return nil
		},
	}

	return cmd
}
