package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// PlatformDataDir returns the platform-specific data directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/henkan/
//   - Linux:   $XDG_DATA_HOME/henkan/ or ~/.local/share/henkan/
//   - Windows: %APPDATA%\henkan\
//
// Falls back to ~/.henkan if platform detection fails.
func PlatformDataDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Application Support", "henkan")
	case "linux":
		return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
	case "windows":
		return windowsDir("APPDATA")
	default:
		return fallbackDataDir()
	}
}

// PlatformConfigDir returns the platform-specific config directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/henkan/
//   - Linux:   $XDG_CONFIG_HOME/henkan/ or ~/.config/henkan/
//   - Windows: %APPDATA%\henkan\
func PlatformConfigDir() string {
	if runtime.GOOS == "linux" {
		return xdgDir("XDG_CONFIG_HOME", ".config")
	}
	return PlatformDataDir()
}

// PlatformLogDir returns the platform-specific log directory.
//
// Platform paths:
//   - macOS:   ~/Library/Logs/henkan/
//   - Linux:   $XDG_STATE_HOME/henkan/ or ~/.local/state/henkan/
//   - Windows: %LOCALAPPDATA%\henkan\logs\
func PlatformLogDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Logs", "henkan")
	case "linux":
		return xdgDir("XDG_STATE_HOME", filepath.Join(".local", "state"))
	case "windows":
		return filepath.Join(windowsDir("LOCALAPPDATA"), "logs")
	default:
		return filepath.Join(fallbackDataDir(), "logs")
	}
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}

func xdgDir(env, fallback string) string {
	if dir := os.Getenv(env); dir != "" {
		return filepath.Join(dir, "henkan")
	}
	return filepath.Join(homeDir(), fallback, "henkan")
}

func windowsDir(env string) string {
	if dir := os.Getenv(env); dir != "" {
		return filepath.Join(dir, "henkan")
	}
	return fallbackDataDir()
}

func fallbackDataDir() string {
	return filepath.Join(homeDir(), ".henkan")
}

// SupportedConfigFormats returns the list of supported config file formats.
func SupportedConfigFormats() []string {
	return []string{"toml", "json", "yaml", "yml"}
}

// FindConfigFile searches for a config file in standard locations.
// Returns the path to the first found config file, or empty string if none found.
func FindConfigFile() string {
	for _, dir := range []string{".", PlatformConfigDir()} {
		for _, ext := range SupportedConfigFormats() {
			path := filepath.Join(dir, "config."+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}
