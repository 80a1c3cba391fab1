// PicoTTS - Discord text-to-speech bot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sipeed/picotts/cmd/picotts/internal"
	"github.com/sipeed/picotts/cmd/picotts/internal/gateway"
	"github.com/sipeed/picotts/cmd/picotts/internal/onboard"
	"github.com/sipeed/picotts/cmd/picotts/internal/say"
	"github.com/sipeed/picotts/cmd/picotts/internal/version"
	"github.com/sipeed/picotts/cmd/picotts/internal/voices"
)

func NewPicoTTSCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "picotts",
		Short: fmt.Sprintf("%s picotts - Discord text-to-speech bot v%s", internal.Logo, internal.GetVersion()),
		Example: "  picotts onboard\n" +
			"  picotts gateway\n" +
			"  picotts say --voice sapi-Sam \"Hello, world!\"",
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			internal.SetConfigPath(configPath)
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.json (default $PICOTTS_CONFIG or ~/.picotts/config.json)")

	cmd.AddCommand(
		onboard.NewOnboardCommand(),
		gateway.NewGatewayCommand(),
		say.NewSayCommand(),
		voices.NewVoicesCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	if err := NewPicoTTSCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
