package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// PlatformConfigDir returns the platform-specific config directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/fieldsync/
//   - Linux:   ~/.config/fieldsync/
//   - Windows: %APPDATA%\fieldsync\
func PlatformConfigDir() string {
	if envDir := os.Getenv("FIELDSYNC_CONFIG_DIR"); envDir != "" {
		return envDir
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Application Support", "fieldsync")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "fieldsync")
		}
		return filepath.Join(homeDir(), "AppData", "Roaming", "fieldsync")
	default:
		// XDG_CONFIG_HOME or ~/.config
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			return filepath.Join(xdgConfig, "fieldsync")
		}
		return filepath.Join(homeDir(), ".config", "fieldsync")
	}
}

// PlatformLogDir returns the platform-specific log directory.
//
// Platform paths:
//   - macOS:   ~/Library/Logs/fieldsync/
//   - Linux:   ~/.local/state/fieldsync/
//   - Windows: %LOCALAPPDATA%\fieldsync\logs\
func PlatformLogDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Logs", "fieldsync")
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, "fieldsync", "logs")
		}
		return filepath.Join(homeDir(), "AppData", "Local", "fieldsync", "logs")
	default:
		// Check XDG_STATE_HOME first (for logs)
		if stateHome := os.Getenv("XDG_STATE_HOME"); stateHome != "" {
			return filepath.Join(stateHome, "fieldsync")
		}
		return filepath.Join(homeDir(), ".local", "state", "fieldsync")
	}
}

// SupportedConfigFormats returns the list of supported config file formats.
func SupportedConfigFormats() []string {
	return []string{
		"toml",
		"json",
		"yaml",
		"yml",
	}
}

// FindConfigFile searches the current directory, then the config
// directory, for config.<format>. Returns the first match or "".
func FindConfigFile() string {
	searchDirs := []string{
		".",
		PlatformConfigDir(),
	}

	for _, dir := range searchDirs {
		for _, ext := range SupportedConfigFormats() {
			path := filepath.Join(dir, "config."+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}

	return ""
}

func homeDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return home
}
