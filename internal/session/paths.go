// Package session owns the per-account filesystem layout under ~/.recado
// and the authenticated session state that replaces any ambient
// "current user" global.
package session

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.recado.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".recado")
}

// Dir returns the account-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "accounts", name)
}

// LockPath returns the lock file path for an account.
func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// CachePath returns the local-cache database path for an account.
func CachePath(name string) string {
	return filepath.Join(Dir(name), "recado.db")
}

// AccountConfigPath returns the per-account account.toml path.
func AccountConfigPath(name string) string {
	return filepath.Join(Dir(name), "account.toml")
}

// LogDir returns the log directory for an account.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "recadod.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the account directory tree with proper permissions.
func EnsureDir(name string) error {
	dirs := []string{
		Dir(name),
		LogDir(name),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
