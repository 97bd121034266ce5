package app

import (
	"context"
	"strings"
	"time"

	"vexbot/internal/commands"
	"vexbot/internal/config"
	"vexbot/internal/feed"
	"vexbot/internal/notify"
	"vexbot/internal/storage"
	logx "vexbot/pkg/logx"
)

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:          strings.ToLower(strings.TrimSpace(sc.Driver)),
		Path:            strings.TrimSpace(sc.Path),
		BusyTimeout:     busy,
		Project:         strings.TrimSpace(sc.Project),
		CredentialsFile: strings.TrimSpace(sc.CredentialsFile),
	}, nil
}

// OpenStorage opens the configured store. A disabled store yields nil.
func OpenStorage(ctx context.Context, cfg *config.Config, log logx.Logger) (storage.Store, string, error) {
	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, "", err
	}
	st, err := storage.Open(ctx, sc, log)
	return st, sc.Driver, err
}

func mapLoggingConfig(cfg *config.Config) logx.Config {
	lc := cfg.Logging
	return logx.Config{
		Level:   lc.Level,
		Console: lc.Console,
		File:    logx.FileConfig{Enabled: lc.File.Enabled, Path: lc.File.Path},
		Telegram: logx.TelegramConfig{
			Enabled:    lc.Telegram.Enabled,
			ChatID:     lc.Telegram.ChatID,
			ThreadID:   lc.Telegram.ThreadID,
			MinLevel:   lc.Telegram.MinLevel,
			RatePerSec: lc.Telegram.RatePerSec,
		},
	}
}

func mapNotifyConfig(cfg *config.Config) notify.Config {
	channels := make([]string, 0, len(cfg.Notify.Channels))
	for _, c := range cfg.Notify.Channels {
		channels = append(channels, strings.TrimSpace(c))
	}
	return notify.Config{Channels: channels, MatchReactions: cfg.Notify.MatchReactions}
}

func mapFeedConfig(cfg *config.Config) feed.Config {
	fc := cfg.Feed
	return feed.Config{Enabled: fc.Enabled, Schedule: fc.Schedule, Timezone: fc.Timezone, BatchSize: fc.BatchSize}
}

func mapCommandOptions(cfg *config.Config) ([]commands.Option, error) {
	timeout, err := config.ParseDurationField("commands.timeout", cfg.Commands.Timeout)
	if err != nil {
		return nil, err
	}
	var opts []commands.Option
	if cfg.Commands.Workers > 0 {
		opts = append(opts, commands.WithWorkers(cfg.Commands.Workers))
	}
	if timeout > 0 {
		opts = append(opts, commands.WithTimeout(timeout))
	}
	return opts, nil
}
