package onboard

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sipeed/picotts/cmd/picotts/internal"
	"github.com/sipeed/picotts/pkg/config"
)

func NewOnboardCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "onboard",
		Aliases: []string{"o"},
		Short:   "Initialize picotts configuration",
		Run: func(cmd *cobra.Command, _ []string) {
			if err := onboard(cmd, internal.GetConfigPath()); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				os.Exit(1)
			}
		},
	}

	return cmd
}

// onboard writes a default config to path unless one already exists.
func onboard(cmd *cobra.Command, path string) error {
	out := cmd.OutOrStdout()

	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(out, "Config already exists at %s, leaving it untouched\n", path)
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	if err := config.SaveConfig(path, config.DefaultConfig()); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Fprintf(out, "%s picotts is ready!\n\n", internal.Logo)
	fmt.Fprintf(out, "Config written to %s\n\n", path)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  1. Set discord.token in the config (or PICOTTS_DISCORD_TOKEN)")
	fmt.Fprintln(out, "  2. Make sure ffmpeg with libopus is on your PATH")
	fmt.Fprintln(out, "  3. Run: picotts gateway")
	fmt.Fprintf(out, "  4. In Discord, join a voice channel and type %sjoin\n", config.DefaultCommandPrefix)
	return nil
}
