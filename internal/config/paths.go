// Package config handles configuration loading, saving, and path management.
package config

import (
	"os"
	"path/filepath"
)

const (
	// GlobalDirName is the name of the global emberwatch directory.
	GlobalDirName = ".emberwatch"
)

// File names under the global directory.
const (
	DaemonFileName   = "daemon.yaml"
	SettingsFileName = "settings.yaml"
	SocketFileName   = "emberwatch.sock"
)

// Environment overrides.
const (
	// EnvSocketPath overrides the ingress socket path.
	EnvSocketPath = "EMBERWATCH_SOCKET"

	// EnvAssistantSettings overrides the monitored assistant's settings
	// file path.
	EnvAssistantSettings = "EMBERWATCH_ASSISTANT_SETTINGS"
)

// GlobalDir returns the path to the global emberwatch directory (~/.emberwatch/).
func GlobalDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, GlobalDirName), nil
}

// GlobalDaemonFile returns the path to the daemon.yaml file.
func GlobalDaemonFile() (string, error) {
	dir, err := GlobalDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DaemonFileName), nil
}

// GlobalSettingsFile returns the path to the settings.yaml file.
func GlobalSettingsFile() (string, error) {
	dir, err := GlobalDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, SettingsFileName), nil
}

// SocketPath returns the path to the ingress socket. The EMBERWATCH_SOCKET
// environment variable wins over the default location.
func SocketPath() (string, error) {
	if p := os.Getenv(EnvSocketPath); p != "" {
		return p, nil
	}
	dir, err := GlobalDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, SocketFileName), nil
}

// AssistantSettingsPath returns the path to the monitored assistant's
// settings file. The file is shared with the assistant tool itself and is
// never assumed exclusively owned. Resolution order: EMBERWATCH_ASSISTANT_SETTINGS,
// then assistant.settings_path from settings.yaml, then the assistant's
// default location.
func AssistantSettingsPath() (string, error) {
	if p := os.Getenv(EnvAssistantSettings); p != "" {
		return p, nil
	}
	if settings, err := LoadSettings(); err == nil && settings.Assistant.SettingsPath != "" {
		return settings.Assistant.SettingsPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".claude", "settings.json"), nil
}

// EnsureGlobalDir creates the global emberwatch directory if it doesn't exist.
func EnsureGlobalDir() error {
	dir, err := GlobalDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}
