package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "inputoverlay"

// dirKind selects one of the per-user directories.
type dirKind int

const (
	dataDir dirKind = iota
	configDir
	logDir
)

// platformDir returns the per-user directory of kind for goos:
//
//	            darwin                               windows                      other
//	data        ~/Library/Application Support/...    %APPDATA%\...                $XDG_DATA_HOME/...
//	config      same as data                         same as data                 $XDG_CONFIG_HOME/...
//	log         ~/Library/Logs/...                   %LOCALAPPDATA%\...\logs      $XDG_STATE_HOME/...
func platformDir(goos string, kind dirKind) string {
	home := homeDir()
	switch goos {
	case "darwin":
		if kind == logDir {
			return filepath.Join(home, "Library", "Logs", appName)
		}
		return filepath.Join(home, "Library", "Application Support", appName)
	case "windows":
		if kind == logDir {
			return filepath.Join(envOr("LOCALAPPDATA", filepath.Join(home, "AppData", "Local")), appName, "logs")
		}
		return filepath.Join(envOr("APPDATA", filepath.Join(home, "AppData", "Roaming")), appName)
	}
	switch kind {
	case configDir:
		return filepath.Join(envOr("XDG_CONFIG_HOME", filepath.Join(home, ".config")), appName)
	case logDir:
		return filepath.Join(envOr("XDG_STATE_HOME", filepath.Join(home, ".local", "state")), appName)
	}
	return filepath.Join(envOr("XDG_DATA_HOME", filepath.Join(home, ".local", "share")), appName)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "." + appName
}

// PlatformDataDir is where the history database and snapshots live.
func PlatformDataDir() string { return platformDir(runtime.GOOS, dataDir) }

// PlatformConfigDir is where the configuration file is looked up.
func PlatformConfigDir() string { return platformDir(runtime.GOOS, configDir) }

// PlatformLogDir is where the log file is written.
func PlatformLogDir() string { return platformDir(runtime.GOOS, logDir) }

// SupportedConfigFormats lists the configuration file extensions, in
// lookup order.
func SupportedConfigFormats() []string {
	return []string{"toml", "json", "yaml", "yml"}
}

// FindConfigFile returns the first config.<ext> found in the working
// directory, then in PlatformConfigDir, or "" if there is none.
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
