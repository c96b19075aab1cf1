package config

import (
	"fmt"
	"strings"
)

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  *StorageConfig `json:"storage,omitempty"`
	// Directory points at the roster file used by standalone deployments.
	// Embedding applications inject their own reader and leave this unset.
	Directory *DirectoryConfig `json:"directory,omitempty"`
	Push      PushConfig       `json:"push"`
	Alerts    AlertsConfig     `json:"alerts,omitempty"`
	Pinned    PinnedConfig     `json:"pinned,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
	// RatePerSec caps outgoing bot API calls. 0 uses the built-in default.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./teamup.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

type DirectoryConfig struct {
	Path string `json:"path"`
}

// PushConfig carries provider credentials. A provider whose credentials are
// absent is disabled; its platform is skipped at delivery time.
type PushConfig struct {
	APNs APNsConfig `json:"apns,omitempty"`
	FCM  FCMConfig  `json:"fcm,omitempty"`
}

type APNsConfig struct {
	KeyPath    string `json:"key_path,omitempty"`
	KeyID      string `json:"key_id,omitempty"`
	TeamID     string `json:"team_id,omitempty"`
	BundleID   string `json:"bundle_id,omitempty"`
	Production bool   `json:"production,omitempty"`
}

type FCMConfig struct {
	ProjectID       string `json:"project_id,omitempty"`
	CredentialsFile string `json:"credentials_file,omitempty"`
}

// AlertsConfig controls the critical-alert reporter. Alerts go to operator
// chats over the bot channel, so they only work when telegram is configured.
type AlertsConfig struct {
	Enabled bool `json:"enabled"`
}

// PinnedConfig controls the pinned daily-summary refresher.
type PinnedConfig struct {
	Enabled bool `json:"enabled"`
	// Schedule is a cron spec (e.g. "0 6 * * *" or "@every 1h").
	Schedule string `json:"schedule,omitempty"`
}

// Validate checks fields that would otherwise fail deep inside startup.
// Duration strings are parsed here so a bad reload is rejected before commit.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if _, err := ParseDurationField("telegram.poll_timeout", c.Telegram.PollTimeout); err != nil {
		return err
	}
	if c.Telegram.RatePerSec < 0 {
		return fmt.Errorf("telegram.rate_per_sec must be >= 0")
	}
	if c.Storage != nil {
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	apns := c.Push.APNs
	if apns.KeyPath != "" || apns.KeyID != "" || apns.TeamID != "" || apns.BundleID != "" {
		if apns.KeyPath == "" || apns.KeyID == "" || apns.TeamID == "" || apns.BundleID == "" {
			return fmt.Errorf("push.apns: key_path, key_id, team_id and bundle_id must all be set")
		}
	}
	fcm := c.Push.FCM
	if (fcm.ProjectID == "") != (fcm.CredentialsFile == "") {
		return fmt.Errorf("push.fcm: project_id and credentials_file must both be set")
	}
	return nil
}
