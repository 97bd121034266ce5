// Package app wires storage, the chat adapter, the dispatcher, the change
// feed and the command router, and applies config reloads to them.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vexbot/internal/commands"
	"vexbot/internal/config"
	"vexbot/internal/feed"
	"vexbot/internal/notify"
	rtsup "vexbot/internal/runtime/supervisor"
	"vexbot/internal/storage"
	kit "vexbot/internal/transport"
	telegram "vexbot/internal/transport/telegram/adapter"
	logx "vexbot/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	store storage.Store

	adapter kit.Adapter
	disp    *notify.Dispatcher
	feed    *feed.Service
	router  *commands.Router

	updates chan kit.Update
}

type options struct {
	token   string
	adapter kit.Adapter
}

type Option func(*options)

// WithToken overrides telegram.token from the config file.
func WithToken(token string) Option { return func(o *options) { o.token = token } }

// WithAdapter replaces the Telegram adapter, e.g. in tests.
func WithAdapter(a kit.Adapter) Option { return func(o *options) { o.adapter = a } }

// New loads the config at cfgPath and builds every component. Nothing
// runs until Start.
func New(ctx context.Context, cfgPath string, opts ...Option) (*App, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg), nil)

	ad := o.adapter
	if ad == nil {
		token := strings.TrimSpace(o.token)
		if token == "" {
			token = cfg.Telegram.Token
		}
		poll, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
		if err != nil {
			return nil, err
		}
		tg, err := telegram.New(telegram.Config{Token: token, PollTimeout: poll}, log.With(logx.Component("telegram")))
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
		ad = tg
	}
	if s, ok := ad.(logx.ChatSender); ok {
		logSvc.SetSender(s)
	}

	store, driver, err := OpenStorage(ctx, cfg, log.With(logx.Component("storage")))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if store == nil {
		log.Warn("storage disabled; running on an empty in-memory store")
		store = storage.NewMemory(storage.Dump{})
	} else {
		log.Info("storage enabled", logx.String("driver", driver))
	}

	a, err := build(cfgm, cfg, ad, store, logSvc, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return a, nil
}

func build(cfgm *config.Manager, cfg *config.Config, ad kit.Adapter, store storage.Store, logSvc *logx.Service, log logx.Logger) (*App, error) {
	disp := notify.New(ad, store, mapNotifyConfig(cfg), notify.WithLogger(log.With(logx.Component("notify"))))
	fd := feed.New(mapFeedConfig(cfg), store, disp, log.With(logx.Component("feed")))
	if err := fd.Validate(mapFeedConfig(cfg)); err != nil {
		return nil, err
	}

	cmdOpts, err := mapCommandOptions(cfg)
	if err != nil {
		return nil, err
	}
	cmdOpts = append(cmdOpts, commands.WithLogger(log.With(logx.Component("commands"))))
	if _, ok := ad.(*telegram.Adapter); ok {
		cmdOpts = append(cmdOpts, commands.WithReactions(telegram.ReactionFromCallback))
	}
	router := commands.NewRouter(ad, cmdOpts...)
	router.SetCommands(commands.NewHandlers(store).Commands())

	return &App{
		cfgm:    cfgm,
		log:     log.With(logx.Component("app")),
		logs:    logSvc,
		store:   store,
		adapter: ad,
		disp:    disp,
		feed:    fd,
		router:  router,
		updates: make(chan kit.Update, 256),
	}, nil
}

// Dispatcher exposes the fan-out for callers that send their own
// notifications.
func (a *App) Dispatcher() *notify.Dispatcher { return a.disp }

// Done is closed when the app's supervisor stops, on a fatal error or Stop.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error seen by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	runCtx := a.sup.Context()

	a.cfgm.SetLogger(a.log.With(logx.Component("config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if err := a.feed.Validate(mapFeedConfig(cfg)); err != nil {
			return err
		}
		_, err := mapCommandOptions(cfg)
		return err
	})

	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		return fmt.Errorf("start adapter: %w", err)
	}
	if err := a.feed.Start(runCtx); err != nil {
		return fmt.Errorf("start feed: %w", err)
	}

	if mu, ok := a.adapter.(kit.CommandMenuUpdater); ok {
		a.sup.Go0("commands.menu", func(c context.Context) {
			if err := mu.UpdateMenuCommands(c, a.router.MenuCommands()); err != nil {
				a.log.Warn("command menu update failed", logx.Err(err))
			}
		})
	}
	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.router.Run(c, a.updates)
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case cfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(last, cfg)
				last = cfg
			}
		}
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started",
		logx.Int("channels", len(a.disp.Channels())),
		logx.Strings("match_reactions", a.disp.MatchReactions()),
	)
	return nil
}

// applyConfig pushes the hot-reloadable sections to their components.
// Telegram and storage changes need a restart.
func (a *App) applyConfig(old, cfg *config.Config) {
	sections, fields := config.SummarizeChange(old, cfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	for _, s := range sections {
		switch s {
		case "logging":
			a.logs.Apply(mapLoggingConfig(cfg))
		case "notify":
			a.disp.Apply(mapNotifyConfig(cfg))
		case "feed":
			if err := a.feed.Apply(mapFeedConfig(cfg)); err != nil {
				a.log.Warn("invalid feed config; keeping previous", logx.Err(err))
			}
		case "telegram", "storage", "commands":
			a.log.Warn("config section changed; restart required", logx.String("section", s))
		}
	}
	a.log.Info("config reloaded", append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, fields...)...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sup.Cancel()

	var errs []error
	step := func(name string, limit time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, limit)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("feed", 2*time.Second, func(c context.Context) error { a.feed.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	_ = a.logs.Close()
	return errors.Join(errs...)
}
