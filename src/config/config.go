package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const appName = "kokoro"

// GetConfigDir returns the OS-appropriate configuration directory for kokoro
func GetConfigDir() string {
	return filepath.Join(xdg.ConfigHome, appName)
}

// GetConfigPath returns the default settings file location
func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.toml")
}

// GetDataDir returns the directory holding the database
func GetDataDir() string {
	return filepath.Join(xdg.DataHome, appName)
}

// GetStateDir returns the directory for runtime state such as the PID file
func GetStateDir() string {
	return filepath.Join(xdg.StateHome, appName)
}

// DefaultDatabasePath returns where the libSQL database lives unless configured
func DefaultDatabasePath() string {
	return filepath.Join(GetDataDir(), "kokoro.db")
}

// PidFilePath returns the daemon PID file location
func PidFilePath() string {
	return filepath.Join(GetStateDir(), "daemon.pid")
}

// EnsureDirs creates the config, data and state directories if they don't exist
func EnsureDirs() error {
	for _, dir := range []string{GetConfigDir(), GetDataDir(), GetStateDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
