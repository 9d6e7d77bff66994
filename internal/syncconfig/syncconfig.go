// Package syncconfig reads and writes the client-side configuration
// stored at ~/.config/fin/config.json.
package syncconfig

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the global fin config stored at ~/.config/fin/config.json.
type Config struct {
	ServerURL string `json:"server_url"`
	UserID    string `json:"user_id"`
	DeviceID  string `json:"device_id"`
	DataDir   string `json:"data_dir,omitempty"`
}

const defaultServerURL = "http://localhost:8080"

// ConfigDir returns ~/.config/fin, creating it if necessary.
// FIN_CONFIG_DIR overrides the location, which tests rely on.
func ConfigDir() (string, error) {
	if dir := os.Getenv("FIN_CONFIG_DIR"); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create config dir: %w", err)
		}
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, ".config", "fin")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

// Load reads the global config, returning defaults if none exists.
func Load() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{ServerURL: defaultServerURL}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config.json: %w", err)
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = defaultServerURL
	}
	return &cfg, nil
}

// Save writes the global config atomically.
func Save(cfg *Config) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(dir, "config.json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// GetServerURL returns the sync server URL.
// Priority: FIN_SERVER_URL env > config.json > default.
func GetServerURL() string {
	if v := os.Getenv("FIN_SERVER_URL"); v != "" {
		return v
	}
	cfg, err := Load()
	if err == nil && cfg.ServerURL != "" {
		return cfg.ServerURL
	}
	return defaultServerURL
}

// GetUserID returns the configured user id.
// Priority: FIN_USER_ID env > config.json.
func GetUserID() string {
	if v := os.Getenv("FIN_USER_ID"); v != "" {
		return v
	}
	cfg, err := Load()
	if err == nil {
		return cfg.UserID
	}
	return ""
}

// DataDir returns the directory holding the local database.
// Priority: FIN_DATA_DIR env > config.json > ~/.local/share/fin.
func DataDir() (string, error) {
	if v := os.Getenv("FIN_DATA_DIR"); v != "" {
		return v, nil
	}
	cfg, err := Load()
	if err == nil && cfg.DataDir != "" {
		return cfg.DataDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".local", "share", "fin"), nil
}

// LocalDBPath returns the path of the bbolt database for one user.
func LocalDBPath(userID string) (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, userID+".db"), nil
}

// GetDeviceID returns the device id from config.json, generating and
// persisting one on first use.
func GetDeviceID() (string, error) {
	cfg, err := Load()
	if err != nil {
		return "", err
	}
	if cfg.DeviceID != "" {
		return cfg.DeviceID, nil
	}
	id, err := GenerateDeviceID()
	if err != nil {
		return "", err
	}
	cfg.DeviceID = id
	if err := Save(cfg); err != nil {
		return "", err
	}
	return id, nil
}

// GenerateDeviceID creates a new random device ID (16 bytes hex).
func GenerateDeviceID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
