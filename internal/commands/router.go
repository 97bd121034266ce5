// Package commands routes chat commands and button callbacks to handlers
// on a bounded worker pool.
package commands

import (
	"context"
	"runtime"
	"runtime/debug"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"vexbot/internal/embed"
	kit "vexbot/internal/transport"
	logx "vexbot/pkg/logx"
	"vexbot/pkg/tgui"
)

const defaultTimeout = 15 * time.Second

type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	Timeout     time.Duration // 0 uses the router default
	Handle      HandlerFunc
}

type Request struct {
	Update   kit.Update
	Chat     kit.ChatTarget
	FromID   int64
	FromName string
	Command  string
	Args     []string
	ReqID    string
	Log      logx.Logger
	Adapter  kit.Adapter
}

// Guild is the subscription scope of the chat the request came from.
func (r *Request) Guild() string {
	return strconv.FormatInt(r.Chat.ChatID, 10)
}

// Reply sends HTML text back to the request's chat.
func (r *Request) Reply(ctx context.Context, text string) error {
	_, err := r.Adapter.SendText(ctx, r.Chat, text, &kit.SendOptions{ParseMode: "HTML", DisablePreview: true})
	return err
}

func (r *Request) ReplyEmbed(ctx context.Context, e *embed.Embed) error {
	ch := kit.Channel{ID: r.Chat.String(), Guild: r.Guild(), Target: r.Chat}
	_, err := r.Adapter.SendEmbed(ctx, ch, "", e)
	return err
}

// ReactionDecoder extracts the emoji from a vote button's callback data.
type ReactionDecoder func(data string) (emoji string, ok bool)

type Router struct {
	mu    sync.RWMutex
	cmds  []Command
	index map[string]int // name or alias -> cmds index

	adapter kit.Adapter
	log     logx.Logger
	timeout time.Duration
	workers int
	decode  ReactionDecoder

	jobs chan func()
}

type Option func(*Router)

func WithLogger(l logx.Logger) Option        { return func(r *Router) { r.log = l } }
func WithWorkers(n int) Option               { return func(r *Router) { r.workers = n } }
func WithTimeout(d time.Duration) Option     { return func(r *Router) { r.timeout = d } }
func WithReactions(d ReactionDecoder) Option { return func(r *Router) { r.decode = d } }

func NewRouter(adapter kit.Adapter, opts ...Option) *Router {
	r := &Router{
		adapter: adapter,
		log:     logx.Nop(),
		timeout: defaultTimeout,
		index:   map[string]int{},
		jobs:    make(chan func(), 256),
	}
	for _, o := range opts {
		o(r)
	}
	if r.workers <= 0 {
		r.workers = max(runtime.NumCPU(), 2)
	}
	return r
}

// SetCommands replaces the registry. A help command is always added.
func (r *Router) SetCommands(cmds []Command) {
	help := Command{
		Name:        "help",
		Aliases:     []string{"start"},
		Description: "show commands",
		Usage:       "/help",
		Handle: func(ctx context.Context, req *Request) error {
			return req.Reply(ctx, r.helpText())
		},
	}
	all := make([]Command, 0, len(cmds)+1)
	index := map[string]int{}
	for _, c := range append(slices.Clone(cmds), help) {
		name := strings.ToLower(strings.TrimSpace(c.Name))
		if name == "" || c.Handle == nil {
			continue
		}
		if _, dup := index[name]; dup {
			continue
		}
		c.Name = name
		all = append(all, c)
		index[name] = len(all) - 1
		for _, a := range c.Aliases {
			a = strings.ToLower(strings.TrimSpace(a))
			if _, taken := index[a]; a != "" && !taken {
				index[a] = len(all) - 1
			}
		}
	}
	r.mu.Lock()
	r.cmds, r.index = all, index
	r.mu.Unlock()
}

func (r *Router) lookup(word string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[word]
	if !ok {
		return Command{}, false
	}
	return r.cmds[i], true
}

// MenuCommands lists the registry for the platform's command menu.
func (r *Router) MenuCommands() []kit.BotCommand {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]kit.BotCommand, 0, len(r.cmds))
	for _, c := range r.cmds {
		out = append(out, kit.BotCommand{Command: c.Name, Description: c.Description})
	}
	return out
}

func (r *Router) helpText() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var b strings.Builder
	b.WriteString("<b>Commands</b>")
	for _, c := range r.cmds {
		usage := c.Usage
		if usage == "" {
			usage = "/" + c.Name
		}
		b.WriteString("\n<code>" + tgui.Esc(usage).String() + "</code> " + tgui.Esc(c.Description).String())
	}
	return b.String()
}

// Run reads updates until ctx ends or updates is closed. Handlers run on
// a fixed pool of workers; updates arriving while the queue is full get a
// "busy" reply.
func (r *Router) Run(ctx context.Context, updates <-chan kit.Update) error {
	var wg sync.WaitGroup
	jobs := r.jobs
	r.log.Info("command router started", logx.Int("workers", r.workers), logx.Int("queue_cap", cap(jobs)))

	wg.Add(r.workers)
	for i := 0; i < r.workers; i++ {
		go func() {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					r.log.Error("panic in command worker", logx.Int("worker", i), logx.Any("panic", p), logx.String("stack", string(debug.Stack())))
				}
			}()
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-jobs:
					job()
				}
			}
		}()
	}
	defer func() {
		wg.Wait()
		r.log.Info("command router stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			r.route(ctx, up)
		}
	}
}

func (r *Router) route(ctx context.Context, up kit.Update) {
	switch up.Kind {
	case kit.UpdateMessage:
		r.routeMessage(ctx, up)
	case kit.UpdateCallback:
		r.routeCallback(ctx, up)
	}
}

func (r *Router) routeMessage(ctx context.Context, up kit.Update) {
	msg := up.Message
	if msg == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}
	parts := tokenize(text)
	if len(parts) == 0 {
		return
	}
	word := commandWord(parts[0])
	cmd, ok := r.lookup(word)
	if !ok {
		// Groups share commands with other bots.
		if !msg.IsGroup {
			_, _ = r.adapter.SendText(ctx, msg.Target(), "unknown command. try /help", nil)
		}
		return
	}

	rid := newReqID()
	req := &Request{
		Update:   up,
		Chat:     msg.Target(),
		FromID:   msg.FromID,
		FromName: msg.FromDisplayName,
		Command:  cmd.Name,
		Args:     parts[1:],
		ReqID:    rid,
		Adapter:  r.adapter,
		Log: r.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", msg.ChatID),
			logx.Int("thread_id", msg.ThreadID),
			logx.Int64("from_id", msg.FromID),
			logx.String("cmd", cmd.Name),
		),
	}
	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = r.timeout
	}
	final := Chain(cmd.Handle, MWPanicRecover(), MWRequestLog(), MWTimeout(timeout))

	select {
	case r.jobs <- func() {
		if err := final(ctx, req); err != nil {
			_ = req.Reply(ctx, "Something went wrong, try again later.")
		}
	}:
	default:
		_, _ = r.adapter.SendText(ctx, req.Chat, "busy, try again", nil)
	}
}

// routeCallback acknowledges vote buttons. Other callbacks are answered
// empty so the client stops its spinner.
func (r *Router) routeCallback(ctx context.Context, up kit.Update) {
	cb := up.Callback
	if cb == nil {
		return
	}
	text := ""
	if r.decode != nil {
		if emoji, ok := r.decode(cb.Data); ok {
			text = "You voted " + emoji
			r.log.Debug("vote", logx.Int64("chat_id", cb.ChatID), logx.Int("message_id", cb.MessageID), logx.Int64("from_id", cb.FromID), logx.String("emoji", emoji))
		}
	}
	select {
	case r.jobs <- func() { _ = r.adapter.AnswerCallback(ctx, cb.ID, text) }:
	default:
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "busy")
	}
}
