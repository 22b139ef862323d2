// Package config reads and writes the client's TOML configuration: the
// global ~/.recado/config.toml and one account.toml per account directory.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.recado/config.toml.
type Config struct {
	DefaultAccount string `toml:"default_account"`
}

// Storage configures the object store used for media and avatars.
type Storage struct {
	Region   string `toml:"region"`
	Bucket   string `toml:"bucket"`
	Endpoint string `toml:"endpoint"` // non-empty for S3-compatible stores
}

// Account represents a per-account account.toml. DatabaseURL is the base of
// the hosted document tree; AuthURL overrides the identity endpoint in
// tests and self-hosted setups.
type Account struct {
	DatabaseURL string `toml:"database_url"`
	AuthURL     string `toml:"auth_url"`
	APIKey      string `toml:"api_key"`

	Email    string `toml:"email"`
	Password string `toml:"password"`

	// PushToken is this device's notification token, written into the
	// user record at login so other clients can address it.
	PushToken string `toml:"push_token"`

	// ContactsFile points at the device address book (CSV: name,phone).
	ContactsFile string `toml:"contacts_file"`

	Storage Storage `toml:"storage"`
}

// Load reads the global config. Returns an error if the file is missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the global config, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	return write(path, cfg)
}

// LoadAccount reads an account.toml.
func LoadAccount(path string) (*Account, error) {
	var acc Account
	_, err := toml.DecodeFile(path, &acc)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// SaveAccount writes an account.toml. The file holds credentials, so it is
// created 0600.
func SaveAccount(path string, acc *Account) error {
	return write(path, acc)
}

func write(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(v)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
