// Package feed polls the store's change feed on a cron schedule and hands
// new matches, awards, skills and team changes to the dispatcher.
package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"vexbot/internal/embed"
	"vexbot/internal/models"
	"vexbot/internal/notify"
	"vexbot/internal/storage"
	"vexbot/internal/vex"
	logx "vexbot/pkg/logx"
)

const (
	DefaultSchedule  = "@every 30s"
	DefaultBatchSize = 100
)

// ErrBusy is returned by Tick while a previous tick is still running.
var ErrBusy = errors.New("feed tick already running")

type Config struct {
	Enabled  bool
	Schedule string // cron spec or @every
	Timezone string // IANA name; empty means Local
	// BatchSize caps the changes read per store query.
	BatchSize int
}

// Notifier is the part of the dispatcher the feed drives.
type Notifier interface {
	Broadcast(ctx context.Context, content string, e *embed.Embed, teams []models.TeamRef, reactions []string) *notify.Batch
	SendMatchEmbed(ctx context.Context, content string, m models.Match, reactions []string) (*notify.Batch, error)
	MatchReactions() []string
}

type Service struct {
	log    logx.Logger
	store  storage.Reader
	n      Notifier
	parser cron.Parser

	mu  sync.Mutex
	cfg Config
	c   *cron.Cron
	ctx context.Context

	busy atomic.Bool

	cmu    sync.Mutex
	cursor time.Time
}

// New returns a feed whose cursor starts now: changes already in the store
// are not announced.
func New(cfg Config, store storage.Reader, n Notifier, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:    log,
		store:  store,
		n:      n,
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		cfg:    normalize(cfg),
		cursor: time.Now().UTC(),
	}
}

func normalize(cfg Config) Config {
	cfg.Schedule = strings.TrimSpace(cfg.Schedule)
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	cfg.Timezone = strings.TrimSpace(cfg.Timezone)
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return cfg
}

// Validate checks the schedule and timezone without applying them.
func (s *Service) Validate(cfg Config) error {
	cfg = normalize(cfg)
	if _, err := s.parser.Parse(cfg.Schedule); err != nil {
		return fmt.Errorf("feed schedule %q: %w", cfg.Schedule, err)
	}
	if cfg.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Timezone); err != nil {
			return fmt.Errorf("feed timezone %q: %w", cfg.Timezone, err)
		}
	}
	return nil
}

// Start schedules ticks. A disabled feed does nothing until Apply enables it.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx = ctx
	if !s.cfg.Enabled {
		s.log.Info("feed disabled")
		return nil
	}
	return s.startLocked()
}

func (s *Service) startLocked() error {
	loc := s.location()
	c := cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	ctx := s.ctx
	if _, err := c.AddFunc(s.cfg.Schedule, func() { s.scheduledTick(ctx) }); err != nil {
		return fmt.Errorf("feed schedule %q: %w", s.cfg.Schedule, err)
	}
	c.Start()
	s.c = c
	s.log.Info("feed started", logx.String("schedule", s.cfg.Schedule), logx.String("tz", loc.String()))
	return nil
}

func (s *Service) stopLocked() {
	if s.c == nil {
		return
	}
	<-s.c.Stop().Done()
	s.c = nil
}

func (s *Service) Stop(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		s.stopLocked()
		s.log.Info("feed stopped")
	}
}

// Apply swaps the configuration, restarting the schedule when it changed.
func (s *Service) Apply(cfg Config) error {
	if err := s.Validate(cfg); err != nil {
		return err
	}
	cfg = normalize(cfg)

	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.cfg
	s.cfg = cfg
	if s.ctx == nil {
		return nil
	}
	if old.Enabled == cfg.Enabled && old.Schedule == cfg.Schedule && old.Timezone == cfg.Timezone {
		return nil
	}
	s.stopLocked()
	if !cfg.Enabled {
		s.log.Info("feed disabled")
		return nil
	}
	return s.startLocked()
}

func (s *Service) location() *time.Location {
	if s.cfg.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(s.cfg.Timezone)
	if err != nil {
		s.log.Warn("invalid timezone, falling back to Local", logx.String("tz", s.cfg.Timezone), logx.Err(err))
		return time.Local
	}
	return loc
}

// Cursor is the timestamp of the newest change handled so far.
func (s *Service) Cursor() time.Time {
	s.cmu.Lock()
	defer s.cmu.Unlock()
	return s.cursor
}

// Seek moves the cursor, e.g. to replay changes after downtime.
func (s *Service) Seek(t time.Time) {
	s.cmu.Lock()
	s.cursor = t.UTC()
	s.cmu.Unlock()
}

func (s *Service) scheduledTick(ctx context.Context) {
	n, err := s.Tick(ctx)
	switch {
	case errors.Is(err, ErrBusy):
		s.log.Debug("feed tick skipped, previous still running")
	case err != nil:
		s.log.Warn("feed tick failed", logx.Int("dispatched", n), logx.Err(err))
	case n > 0:
		s.log.Debug("feed tick", logx.Int("dispatched", n))
	}
}

// Tick reads every change newer than the cursor and dispatches it. It
// returns how many changes were handled. The cursor advances past every
// handled change, including ones whose dispatch failed.
func (s *Service) Tick(ctx context.Context) (int, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return 0, ErrBusy
	}
	defer s.busy.Store(false)

	s.mu.Lock()
	batch := s.cfg.BatchSize
	s.mu.Unlock()

	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		changes, err := s.store.Changes(ctx, s.Cursor(), batch)
		if err != nil {
			return total, fmt.Errorf("read changes: %w", err)
		}
		for _, c := range changes {
			s.dispatch(ctx, c)
			s.Seek(c.At)
			total++
		}
		if len(changes) < batch {
			return total, nil
		}
	}
}

func (s *Service) dispatch(ctx context.Context, c models.Change) {
	switch c.Kind {
	case models.ChangeMatch:
		if c.Match == nil {
			break
		}
		// Errors are logged by the dispatcher.
		_, _ = s.n.SendMatchEmbed(ctx, "", *c.Match, s.n.MatchReactions())
		return

	case models.ChangeAward:
		if c.Award == nil {
			break
		}
		e := vex.AwardEmbed(ctx, s.store, s.log, *c.Award)
		if e == nil {
			return
		}
		var teams []models.TeamRef
		if c.Award.Team != nil {
			teams = []models.TeamRef{*c.Award.Team}
		}
		s.n.Broadcast(ctx, "", e, teams, nil)
		return

	case models.ChangeSkill:
		if c.Skill == nil {
			break
		}
		e := vex.SkillsEmbed(ctx, s.store, s.log, *c.Skill)
		if e == nil {
			return
		}
		s.n.Broadcast(ctx, "", e, []models.TeamRef{c.Skill.Team}, nil)
		return

	case models.ChangeTeamChange:
		if c.TeamChange == nil {
			break
		}
		s.n.Broadcast(ctx, "", vex.TeamChangeEmbed(*c.TeamChange), []models.TeamRef{c.TeamChange.Team}, nil)
		return
	}
	s.log.Warn("malformed change skipped", logx.String("kind", string(c.Kind)))
}
