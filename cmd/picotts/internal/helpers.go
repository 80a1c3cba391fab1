package internal

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/sipeed/picotts/pkg/config"
	"github.com/sipeed/picotts/pkg/logger"
)

const Logo = "🔊"

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string

	configPathOverride string
)

// SetConfigPath overrides the config location for this process. An empty
// path restores the default lookup.
func SetConfigPath(path string) {
	configPathOverride = strings.TrimSpace(path)
}

func GetConfigPath() string {
	if configPathOverride != "" {
		return configPathOverride
	}
	return config.ResolveRuntimePaths().ConfigPath
}

// LoadConfig loads the config and applies its logging settings.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(GetConfigPath())
	if err != nil {
		return nil, err
	}

	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	logger.AddSecret(cfg.Discord.Token)
	if cfg.Log.File != "" {
		if err := logger.EnableFileLogging(cfg.Log.File); err != nil {
			return nil, fmt.Errorf("enabling file logging: %w", err)
		}
	}

	return cfg, nil
}

// FormatVersion returns the version string with optional git commit
func FormatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

// FormatBuildInfo returns build time and go version info
func FormatBuildInfo() (string, string) {
	build := buildTime
	goVer := goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	return build, goVer
}

func GetVersion() string {
	return version
}
