package notify

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"vexbot/internal/embed"
	"vexbot/internal/models"
	"vexbot/internal/storage"
	kit "vexbot/internal/transport"
	"vexbot/internal/vex"
	logx "vexbot/pkg/logx"
	"vexbot/pkg/tgui"
)

var ErrEventNotFound = errors.New("event not found")

type Dispatcher struct {
	adapter kit.Adapter
	store   storage.Reader
	obs     Observer
	log     logx.Logger

	mu  sync.RWMutex
	cfg Config
}

type Option func(*Dispatcher)

func WithObserver(o Observer) Option  { return func(d *Dispatcher) { d.obs = o } }
func WithLogger(l logx.Logger) Option { return func(d *Dispatcher) { d.log = l } }

func New(adapter kit.Adapter, store storage.Reader, cfg Config, opts ...Option) *Dispatcher {
	d := &Dispatcher{adapter: adapter, store: store, log: logx.Nop()}
	for _, o := range opts {
		o(d)
	}
	if d.obs == nil {
		d.obs = LogObserver{Log: d.log}
	}
	d.Apply(cfg)
	return d
}

// Apply swaps the channel list and match reactions. Batches already
// started keep the list they began with.
func (d *Dispatcher) Apply(cfg Config) {
	cfg.Channels = slices.Clone(cfg.Channels)
	cfg.MatchReactions = slices.Clone(cfg.MatchReactions)
	if cfg.MatchReactions == nil {
		cfg.MatchReactions = slices.Clone(DefaultReactions)
	}
	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()
}

func (d *Dispatcher) Channels() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.cfg.Channels)
}

// MatchReactions are the reactions configured for match notifications.
func (d *Dispatcher) MatchReactions() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.cfg.MatchReactions)
}

// Batch tracks the per-channel deliveries of one dispatch.
type Batch struct {
	ID       string
	channels []string
	results  []Result
	wg       sync.WaitGroup
}

// Wait blocks until every channel finished and returns the results in
// channel order.
func (b *Batch) Wait() []Result {
	b.wg.Wait()
	return slices.Clone(b.results)
}

// ComposeText joins the content line and the mention tags, leaving out
// whichever is empty.
func ComposeText(content string, mentions []string) string {
	tags := strings.Join(mentions, " ")
	switch {
	case content == "":
		return tags
	case tags == "":
		return content
	}
	return content + "\n" + tags
}

// Broadcast delivers content and e to every configured channel, one
// goroutine per channel. It returns immediately; the caller may Wait on
// the batch or drop it. content is HTML.
func (d *Dispatcher) Broadcast(ctx context.Context, content string, e *embed.Embed, teams []models.TeamRef, reactions []string) *Batch {
	channels := d.Channels()
	b := &Batch{ID: uuid.NewString(), channels: channels, results: make([]Result, len(channels))}
	// Deliveries outlive the triggering request.
	ctx = context.WithoutCancel(ctx)
	teams = slices.Clone(teams)
	reactions = slices.Clone(reactions)

	d.log.Debug("broadcast", logx.String("batch", b.ID), logx.Int("channels", len(channels)), logx.Int("teams", len(teams)))
	b.wg.Add(len(channels))
	for i, id := range channels {
		go func() {
			defer b.wg.Done()
			start := time.Now()
			r := d.deliver(ctx, id, content, e, teams, reactions)
			r.Duration = time.Since(start)
			b.results[i] = r
			d.obs.Observe(ctx, b.ID, r)
		}()
	}
	return b
}

func (d *Dispatcher) deliver(ctx context.Context, id, content string, e *embed.Embed, teams []models.TeamRef, reactions []string) (r Result) {
	r.Channel = id
	// stage is the outcome a panic at this point maps to.
	stage := ChannelUnavailable
	defer func() {
		if p := recover(); p != nil {
			r.Outcome = stage
			r.Err = fmt.Errorf("panic: %v", p)
		}
	}()

	ch, err := d.adapter.Channel(ctx, id)
	if err != nil || ch == nil {
		r.Outcome, r.Err = ChannelUnavailable, err
		return r
	}

	stage = LookupFailed
	users, err := Subscribers(ctx, d.store, ch.Guild, teams)
	if err != nil {
		r.Outcome, r.Err = LookupFailed, err
		return r
	}
	stage = SendFailed
	mentions := make([]string, 0, len(users))
	for _, u := range users {
		mentions = append(mentions, d.adapter.Mention(u))
	}
	r.Mentions = len(mentions)

	ref, err := d.adapter.SendEmbed(ctx, *ch, ComposeText(content, mentions), e)
	if err != nil {
		r.Outcome, r.Err = SendFailed, err
		return r
	}
	r.Message = ref

	stage = ReactFailed
	for _, emoji := range reactions {
		if err := d.adapter.React(ctx, ref, emoji); err != nil {
			r.Outcome, r.Err = ReactFailed, fmt.Errorf("react %s: %w", emoji, err)
			return r
		}
	}
	r.Outcome = Delivered
	return r
}

// SendMatchEmbed loads the match's event, formats the match and
// broadcasts it to the subscribers of every team in it. A scored match is
// prefixed with its one-line summary.
func (d *Dispatcher) SendMatchEmbed(ctx context.Context, content string, m models.Match, reactions []string) (*Batch, error) {
	ev, err := d.store.GetEvent(ctx, m.Key.Event)
	if err == nil && ev == nil {
		err = fmt.Errorf("%w: %s", ErrEventNotFound, m.Key.Event)
	}
	if err != nil {
		d.log.Error("match event lookup failed", logx.String("event", m.Key.Event), logx.Err(err))
		return nil, err
	}

	text := content
	if m.Scored() {
		text = tgui.Esc(vex.MatchScoredNotification(m)).String()
		if content != "" {
			text += "\n" + content
		}
	}
	return d.Broadcast(ctx, text, vex.MatchEmbed(m, *ev), MatchTeams(m, ev.Program), reactions), nil
}
