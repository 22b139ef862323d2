package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := &Config{DefaultAccount: "work"}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultAccount != "work" {
		t.Errorf("DefaultAccount = %q, want %q", loaded.DefaultAccount, "work")
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestAccountRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "account.toml")

	acc := &Account{
		DatabaseURL:  "https://demo.example.test",
		APIKey:       "key123",
		Email:        "me@example.test",
		Password:     "hunter2",
		ContactsFile: "/tmp/contacts.csv",
		Storage:      Storage{Region: "us-east-1", Bucket: "recado-media"},
	}
	if err := SaveAccount(path, acc); err != nil {
		t.Fatalf("SaveAccount() error = %v", err)
	}

	loaded, err := LoadAccount(path)
	if err != nil {
		t.Fatalf("LoadAccount() error = %v", err)
	}
	if loaded.DatabaseURL != acc.DatabaseURL || loaded.Storage.Bucket != "recado-media" {
		t.Errorf("round-trip mismatch: %+v", loaded)
	}
}

func TestAccountFilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "account.toml")

	if err := SaveAccount(path, &Account{Email: "a@b.c"}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
