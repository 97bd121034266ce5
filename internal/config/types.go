// Package config loads the bot configuration from JSON or YAML and
// publishes validated reloads.
package config

import (
	"errors"
	"fmt"
	"strings"

	kit "vexbot/internal/transport"
)

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Notify   NotifyConfig   `json:"notify"`
	Feed     FeedConfig     `json:"feed"`
	Commands CommandsConfig `json:"commands,omitempty"`
}

type TelegramConfig struct {
	// Token may be left empty and supplied by VEXBOT_TELEGRAM_TOKEN.
	Token string `json:"token,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingTelegram mirrors warnings and errors into one chat.
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ChatID     int64  `json:"chat_id"`
	ThreadID   int    `json:"thread_id,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// StorageConfig selects the document store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./vexbot.db" }
type StorageConfig struct {
	Driver          string `json:"driver"`
	Path            string `json:"path,omitempty"`
	BusyTimeout     string `json:"busy_timeout,omitempty"` // sqlite
	Project         string `json:"project,omitempty"`      // firestore
	CredentialsFile string `json:"credentials_file,omitempty"`
}

// NotifyConfig lists the channels that receive notifications. Channel ids
// are "<chat_id>" or "<chat_id>:<thread_id>". Omitting match_reactions
// keeps the default voting reactions; an empty list disables them.
type NotifyConfig struct {
	Channels       []string `json:"channels"`
	MatchReactions []string `json:"match_reactions"`
}

type FeedConfig struct {
	Enabled   bool   `json:"enabled"`
	Schedule  string `json:"schedule,omitempty"` // cron spec, default "@every 30s"
	Timezone  string `json:"timezone,omitempty"`
	BatchSize int    `json:"batch_size,omitempty"`
}

type CommandsConfig struct {
	Workers int    `json:"workers,omitempty"`
	Timeout string `json:"timeout,omitempty"` // per command, default 15s
}

var knownDrivers = []string{"", "none", "file", "sqlite", "sqlite3", "firestore"}

// Validate checks everything that can be checked without I/O.
func (c *Config) Validate() error {
	var errs []error
	if _, err := ParseDurationField("telegram.poll_timeout", c.Telegram.PollTimeout); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("commands.timeout", c.Commands.Timeout); err != nil {
		errs = append(errs, err)
	}
	driver := strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	known := false
	for _, d := range knownDrivers {
		known = known || d == driver
	}
	if !known {
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}
	if (driver == "file" || driver == "sqlite" || driver == "sqlite3") && strings.TrimSpace(c.Storage.Path) == "" {
		errs = append(errs, fmt.Errorf("storage.path: required for driver %q", driver))
	}
	for i, id := range c.Notify.Channels {
		if _, err := kit.ParseChannelID(id); err != nil {
			errs = append(errs, fmt.Errorf("notify.channels[%d]: %w", i, err))
		}
	}
	for i, r := range c.Notify.MatchReactions {
		if strings.TrimSpace(r) == "" {
			errs = append(errs, fmt.Errorf("notify.match_reactions[%d]: empty", i))
		}
	}
	if c.Logging.Telegram.Enabled && c.Logging.Telegram.ChatID == 0 {
		errs = append(errs, errors.New("logging.telegram.chat_id: required when enabled"))
	}
	if c.Feed.BatchSize < 0 {
		errs = append(errs, errors.New("feed.batch_size: must be >= 0"))
	}
	return errors.Join(errs...)
}
