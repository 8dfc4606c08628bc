package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// PlatformDataDir returns the platform-specific data directory.
//
//   - macOS:   ~/Library/Application Support/maptrack/
//   - Linux:   ~/.local/share/maptrack/
//   - Windows: %APPDATA%\maptrack\
func PlatformDataDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "maptrack")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "maptrack")
		}
		return fallbackDir()
	default:
		if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
			return filepath.Join(dataHome, "maptrack")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "maptrack")
	}
}

// PlatformConfigDir returns the platform-specific config directory.
func PlatformConfigDir() string {
	switch runtime.GOOS {
	case "darwin", "windows":
		return PlatformDataDir()
	default:
		if cfgHome := os.Getenv("XDG_CONFIG_HOME"); cfgHome != "" {
			return filepath.Join(cfgHome, "maptrack")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "maptrack")
	}
}

func fallbackDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".maptrack")
}
