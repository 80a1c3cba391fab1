package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	EnvPicoTTSConfig = "PICOTTS_CONFIG"
	EnvPicoTTSHome   = "PICOTTS_HOME"
)

type RuntimePaths struct {
	HomeDir    string
	ConfigPath string
	LogPath    string
}

func ResolveRuntimePaths() RuntimePaths {
	if configPath := expandHome(strings.TrimSpace(os.Getenv(EnvPicoTTSConfig))); configPath != "" {
		return buildRuntimePaths(filepath.Dir(configPath), configPath)
	}

	homeDir := expandHome(strings.TrimSpace(os.Getenv(EnvPicoTTSHome)))
	if homeDir == "" {
		homeDir = defaultPicoTTSHome()
	}

	return buildRuntimePaths(homeDir, filepath.Join(homeDir, "config.json"))
}

func defaultPicoTTSHome() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".picotts"
	}
	return filepath.Join(home, ".picotts")
}

func buildRuntimePaths(homeDir, configPath string) RuntimePaths {
	return RuntimePaths{
		HomeDir:    homeDir,
		ConfigPath: configPath,
		LogPath:    filepath.Join(homeDir, "picotts.log"),
	}
}
