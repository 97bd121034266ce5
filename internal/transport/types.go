// Package transport defines the chat-platform surface the bot talks to.
package transport

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"vexbot/internal/embed"
)

type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdateCallback UpdateKind = "callback"
)

type Update struct {
	Kind     UpdateKind
	Message  *Message
	Callback *Callback
}

type Message struct {
	ID       int
	ChatID   int64
	ThreadID int // forum topic, 0 if none
	FromID   int64
	// FromDisplayName is the sender's name as shown in the chat.
	FromDisplayName string
	Text            string
	IsGroup         bool
}

// Target is where a reply to this message goes.
func (m *Message) Target() ChatTarget {
	return ChatTarget{ChatID: m.ChatID, ThreadID: m.ThreadID}
}

type Callback struct {
	ID        string
	FromID    int64
	ChatID    int64
	ThreadID  int
	MessageID int
	Data      string
}

type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

// String renders the target in channel-id form.
func (t ChatTarget) String() string {
	if t.ThreadID != 0 {
		return fmt.Sprintf("%d:%d", t.ChatID, t.ThreadID)
	}
	return strconv.FormatInt(t.ChatID, 10)
}

var ErrBadChannelID = errors.New("bad channel id")

// ParseChannelID parses "<chat_id>" or "<chat_id>:<thread_id>".
func ParseChannelID(id string) (ChatTarget, error) {
	chat, thread, hasThread := strings.Cut(strings.TrimSpace(id), ":")
	chatID, err := strconv.ParseInt(chat, 10, 64)
	if err != nil || chatID == 0 {
		return ChatTarget{}, fmt.Errorf("%w: %q", ErrBadChannelID, id)
	}
	t := ChatTarget{ChatID: chatID}
	if hasThread {
		n, err := strconv.Atoi(thread)
		if err != nil || n <= 0 {
			return ChatTarget{}, fmt.Errorf("%w: %q", ErrBadChannelID, id)
		}
		t.ThreadID = n
	}
	return t, nil
}

// Channel is a resolved destination. Guild is the parent group used to
// scope team subscriptions.
type Channel struct {
	ID     string
	Guild  string
	Title  string
	Target ChatTarget
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
	ReplyTo        int
}

// Adapter is the platform connection. Text passed to SendEmbed is HTML.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	// Channel resolves a configured channel id. It returns (nil, nil)
	// when the channel is unknown or not reachable by the bot.
	Channel(ctx context.Context, id string) (*Channel, error)
	SendEmbed(ctx context.Context, ch Channel, text string, e *embed.Embed) (MessageRef, error)
	// React attaches one reaction to a sent message. Reactions accumulate
	// in call order.
	React(ctx context.Context, ref MessageRef, emoji string) error
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	AnswerCallback(ctx context.Context, callbackID string, text string) error
	// Mention renders a user mention tag for a subscribed user id.
	Mention(userID string) string
}

// BotCommand is one entry of the platform's command menu.
type BotCommand struct {
	Command     string
	Description string
}

// CommandMenuUpdater is implemented by adapters with a command menu.
type CommandMenuUpdater interface {
	UpdateMenuCommands(ctx context.Context, cmds []BotCommand) error
}
