// Package adapter connects the bot to Telegram through telebot.
package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/fasthash/fnv1a"
	tele "gopkg.in/telebot.v4"

	"vexbot/internal/embed"
	rtsup "vexbot/internal/runtime/supervisor"
	kit "vexbot/internal/transport"
	logx "vexbot/pkg/logx"
	"vexbot/pkg/tgui"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
}

type Adapter struct {
	cfg Config
	log logx.Logger

	bot     *tele.Bot
	out     atomic.Value // chan<- kit.Update
	runMu   sync.Mutex
	running bool
	sup     *rtsup.Supervisor

	droppedUpdates atomic.Uint64

	reactMu   sync.Mutex
	reactions *reactionSets

	menuMu   sync.Mutex
	menuHash uint64
	http     *http.Client
}

var _ kit.Adapter = (*Adapter)(nil)

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Adapter{
		cfg:       cfg,
		log:       log,
		bot:       b,
		reactions: newReactionSets(defaultReactionSets, defaultReactionSetTTL),
		http:      &http.Client{Timeout: 8 * time.Second},
	}
	var nilOut chan<- kit.Update
	a.out.Store(nilOut)
	a.registerHandlers()
	return a, nil
}

func displayName(u *tele.User) string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.Username
	}
	return name
}

func (a *Adapter) registerHandlers() {
	// Handlers forward to whatever output channel Start installed.
	a.bot.Handle(tele.OnText, func(c tele.Context) error {
		m := c.Message()
		if m == nil || m.Sender == nil {
			return nil
		}
		a.sendUpdate(kit.Update{
			Kind: kit.UpdateMessage,
			Message: &kit.Message{
				ID:              m.ID,
				ChatID:          m.Chat.ID,
				ThreadID:        m.ThreadID,
				FromID:          m.Sender.ID,
				FromDisplayName: displayName(m.Sender),
				Text:            m.Text,
				IsGroup:         m.Chat.Type == tele.ChatGroup || m.Chat.Type == tele.ChatSuperGroup,
			},
		})
		return nil
	})

	a.bot.Handle(tele.OnCallback, func(c tele.Context) error {
		cb := c.Callback()
		m := c.Message()
		if cb == nil || m == nil {
			return nil
		}
		a.sendUpdate(kit.Update{
			Kind: kit.UpdateCallback,
			Callback: &kit.Callback{
				ID:        cb.ID,
				ChatID:    m.Chat.ID,
				ThreadID:  m.ThreadID,
				FromID:    cb.Sender.ID,
				MessageID: m.ID,
				Data:      cb.Data,
			},
		})
		return nil
	})
}

func (a *Adapter) sendUpdate(up kit.Update) {
	out, _ := a.out.Load().(chan<- kit.Update)
	if out == nil {
		return
	}
	select {
	case out <- up:
	default:
		a.droppedUpdates.Add(1)
	}
}

func (a *Adapter) Start(ctx context.Context, out chan<- kit.Update) error {
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = true
	a.out.Store(out)
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log))
	sup := a.sup
	a.runMu.Unlock()

	sup.Go0("updates.drop_report", func(c context.Context) {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-c.Done():
				return
			case <-ticker.C:
				if n := a.droppedUpdates.Swap(0); n > 0 {
					a.log.Warn("incoming updates dropped (channel full)", logx.Int64("count", int64(n)), logx.Int("chan_cap", cap(out)))
				}
			}
		}
	})

	sup.Go0("telebot.stop_on_cancel", func(c context.Context) {
		<-c.Done()
		a.bot.Stop()
	})

	// telebot's Start blocks until Stop; restart it if it returns early.
	sup.GoRestart0("telebot.poll", func(c context.Context) {
		a.log.Info("polling started")
		a.bot.Start()
		a.log.Info("polling stopped")
	},
		rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second),
		rtsup.WithStopOnCleanExit(false),
	)
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	sup := a.sup
	a.sup = nil
	wasRunning := a.running
	a.running = false
	var nilOut chan<- kit.Update
	a.out.Store(nilOut)
	a.runMu.Unlock()

	if !wasRunning || sup == nil {
		return nil
	}
	sup.Cancel()

	// Long polling may still be waiting on getUpdates; don't hold shutdown.
	grace := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem > 0 && rem < grace {
			grace = rem
		}
	}
	wctx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()
	if err := sup.Wait(wctx); err != nil {
		a.log.Warn("telegram stop did not finish cleanly", logx.Err(err))
	}
	return nil
}

// Channel resolves "<chat_id>[:<thread_id>]". Chats the bot cannot see
// resolve to nil.
func (a *Adapter) Channel(ctx context.Context, id string) (*kit.Channel, error) {
	target, err := kit.ParseChannelID(id)
	if err != nil {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	chat, err := a.bot.ChatByID(target.ChatID)
	if err != nil {
		a.log.Debug("channel lookup failed", logx.String("channel", id), logx.Err(err))
		return nil, nil
	}
	return &kit.Channel{
		ID:     id,
		Guild:  strconv.FormatInt(chat.ID, 10),
		Title:  chat.Title,
		Target: target,
	}, nil
}

// SendEmbed sends text and the rendered embed as one HTML message (split
// when too long) and returns the last message sent.
func (a *Adapter) SendEmbed(ctx context.Context, ch kit.Channel, text string, e *embed.Embed) (kit.MessageRef, error) {
	body := tgui.JoinH("\n\n", tgui.Raw(text), e.HTML()).String()
	refs, err := a.send(ctx, ch.Target, body, &kit.SendOptions{ParseMode: tele.ModeHTML, DisablePreview: true})
	if len(refs) == 0 {
		return kit.MessageRef{}, err
	}
	return refs[len(refs)-1], err
}

func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	refs, err := a.send(ctx, to, text, opt)
	if len(refs) == 0 {
		return kit.MessageRef{}, err
	}
	return refs[0], err
}

// SendLog lets the log service mirror warnings into a chat.
func (a *Adapter) SendLog(ctx context.Context, chatID int64, threadID int, text string) error {
	_, err := a.send(ctx, kit.ChatTarget{ChatID: chatID, ThreadID: threadID}, text, &kit.SendOptions{DisablePreview: true})
	return err
}

func (a *Adapter) send(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) ([]kit.MessageRef, error) {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	chunks := splitTelegramText(text, telegramTextLimit, opt.ParseMode)
	chat := &tele.Chat{ID: to.ChatID}

	refs := make([]kit.MessageRef, 0, len(chunks))
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return refs, err
		}
		sendOpt := &tele.SendOptions{
			ParseMode:             opt.ParseMode,
			DisableWebPagePreview: opt.DisablePreview,
			ThreadID:              to.ThreadID,
		}
		if i == 0 && opt.ReplyTo != 0 {
			sendOpt.ReplyTo = &tele.Message{ID: opt.ReplyTo, Chat: chat}
		}
		msg, err := a.bot.Send(chat, chunk, sendOpt)
		if err != nil {
			return refs, err
		}
		refs = append(refs, kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID})
	}
	return refs, nil
}

// React adds emoji as a vote button under the message. Bots may set only
// one native reaction per message, so votes are inline buttons whose
// callbacks are acknowledged by the command router.
func (a *Adapter) React(ctx context.Context, ref kit.MessageRef, emoji string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.reactMu.Lock()
	defer a.reactMu.Unlock()

	set := append(slices.Clone(a.reactions.get(ref)), emoji)
	rm := &tele.ReplyMarkup{}
	btns := make([]tele.Btn, 0, len(set))
	for _, e := range set {
		btns = append(btns, rm.Data(e, ReactUnique, e))
	}
	rm.Inline(rm.Row(btns...))

	msg := &tele.Message{ID: ref.MessageID, Chat: &tele.Chat{ID: ref.ChatID}}
	if _, err := a.bot.EditReplyMarkup(msg, rm); err != nil {
		return err
	}
	a.reactions.put(ref, set)
	return nil
}

// ReactUnique prefixes the callback data of reaction buttons.
const ReactUnique = "react"

// ReactionFromCallback extracts the emoji from a reaction button callback.
func ReactionFromCallback(data string) (string, bool) {
	data = strings.TrimPrefix(data, "\f")
	unique, emoji, ok := strings.Cut(data, "|")
	if !ok || unique != ReactUnique {
		return "", false
	}
	return emoji, true
}

func (a *Adapter) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.bot.Respond(&tele.Callback{ID: callbackID}, &tele.CallbackResponse{Text: text})
}

// Mention renders a subscribed user. Numeric ids become tg://user links,
// "@name" entries are left for Telegram to resolve.
func (a *Adapter) Mention(userID string) string {
	return mention(userID)
}

func mention(userID string) string {
	userID = strings.TrimSpace(userID)
	if strings.HasPrefix(userID, "@") {
		return tgui.Esc(userID).String()
	}
	if id, err := strconv.ParseInt(userID, 10, 64); err == nil {
		return tgui.Link(userID, fmt.Sprintf("tg://user?id=%d", id)).String()
	}
	return tgui.Esc(userID).String()
}

// UpdateMenuCommands calls setMyCommands when the command list changed.
func (a *Adapter) UpdateMenuCommands(ctx context.Context, cmds []kit.BotCommand) error {
	a.menuMu.Lock()
	defer a.menuMu.Unlock()

	sum := fnv1a.Init64
	for _, c := range cmds {
		sum = fnv1a.AddString64(sum, c.Command+"\x00"+c.Description+"\x00")
	}
	if sum == a.menuHash {
		return nil
	}

	type cmd struct {
		Command     string `json:"command"`
		Description string `json:"description"`
	}
	payload := struct {
		Commands []cmd `json:"commands"`
	}{Commands: make([]cmd, 0, len(cmds))}
	for _, c := range cmds {
		if c.Command == "" {
			continue
		}
		d := c.Description
		if d == "" {
			d = c.Command
		}
		payload.Commands = append(payload.Commands, cmd{Command: c.Command, Description: tgui.TruncRunes(d, 256)})
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	url := "https://api.telegram.org/bot" + strings.TrimSpace(a.cfg.Token) + "/setMyCommands"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var out struct {
		OK          bool   `json:"ok"`
		ErrorCode   int    `json:"error_code"`
		Description string `json:"description"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode/100 != 2 || !out.OK {
		return fmt.Errorf("telegram setMyCommands failed: %s (code=%d http=%d)", out.Description, out.ErrorCode, resp.StatusCode)
	}

	a.menuHash = sum
	a.log.Info("menu commands updated", logx.Int("count", len(payload.Commands)))
	return nil
}
