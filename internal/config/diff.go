package config

import (
	"slices"
	"strings"

	logx "vexbot/pkg/logx"
)

// SummarizeChange lists the sections that differ and log fields
// describing the new values. Secrets are reported only as set/unset.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var (
		changed []string
		fields  []logx.Field
	)

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	if strings.TrimSpace(ot.PollTimeout) != strings.TrimSpace(nt.PollTimeout) || ot.Token != nt.Token {
		changed = append(changed, "telegram")
		fields = append(fields,
			logx.String("telegram.poll_timeout", strings.TrimSpace(nt.PollTimeout)),
			logx.Bool("telegram.token_changed", ot.Token != nt.Token),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		nl := newCfg.Logging
		changed = append(changed, "logging")
		fields = append(fields,
			logx.String("logging.level", nl.Level),
			logx.Bool("logging.console", nl.Console),
			logx.Bool("logging.file_enabled", nl.File.Enabled),
			logx.Bool("logging.telegram_enabled", nl.Telegram.Enabled),
		)
	}

	ost, nst := oldCfg.Storage, newCfg.Storage
	if ost != nst {
		changed = append(changed, "storage")
		fields = append(fields,
			logx.String("storage.driver", nst.Driver),
			logx.String("storage.path", nst.Path),
			logx.String("storage.project", nst.Project),
			logx.Bool("storage.credentials_set", nst.CredentialsFile != ""),
		)
	}

	on, nn := oldCfg.Notify, newCfg.Notify
	if !slices.Equal(on.Channels, nn.Channels) || !slices.Equal(on.MatchReactions, nn.MatchReactions) ||
		(on.MatchReactions == nil) != (nn.MatchReactions == nil) {
		changed = append(changed, "notify")
		fields = append(fields,
			logx.Strings("notify.channels", nn.Channels),
			logx.Strings("notify.match_reactions", nn.MatchReactions),
		)
	}

	if oldCfg.Feed != newCfg.Feed {
		nf := newCfg.Feed
		changed = append(changed, "feed")
		fields = append(fields,
			logx.Bool("feed.enabled", nf.Enabled),
			logx.String("feed.schedule", nf.Schedule),
			logx.String("feed.timezone", nf.Timezone),
		)
	}

	if oldCfg.Commands != newCfg.Commands {
		changed = append(changed, "commands")
		fields = append(fields,
			logx.Int("commands.workers", newCfg.Commands.Workers),
			logx.String("commands.timeout", newCfg.Commands.Timeout),
		)
	}
	return changed, fields
}
