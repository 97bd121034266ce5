// Package notify fans rich messages out to the configured channels,
// mentioning the users subscribed to the teams involved.
package notify

import (
	"context"
	"time"

	kit "vexbot/internal/transport"
	logx "vexbot/pkg/logx"
)

// DefaultReactions are the voting reactions put under scored matches.
var DefaultReactions = []string{"👍", "👎"}

// Outcome is how a delivery to one channel ended.
type Outcome int

const (
	Delivered Outcome = iota
	ChannelUnavailable
	LookupFailed
	SendFailed
	ReactFailed
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case ChannelUnavailable:
		return "channel_unavailable"
	case LookupFailed:
		return "lookup_failed"
	case SendFailed:
		return "send_failed"
	case ReactFailed:
		return "react_failed"
	default:
		return "unknown"
	}
}

// Result describes one channel's delivery attempt.
type Result struct {
	Channel  string
	Outcome  Outcome
	Mentions int
	Message  kit.MessageRef
	Err      error
	Duration time.Duration
}

// Observer receives every channel result as soon as it is known.
type Observer interface {
	Observe(ctx context.Context, batchID string, r Result)
}

type ObserverFunc func(ctx context.Context, batchID string, r Result)

func (f ObserverFunc) Observe(ctx context.Context, batchID string, r Result) { f(ctx, batchID, r) }

// LogObserver logs results: delivered and unavailable at debug, failures
// at warn.
type LogObserver struct {
	Log logx.Logger
}

func (o LogObserver) Observe(_ context.Context, batchID string, r Result) {
	fields := []logx.Field{
		logx.String("batch", batchID),
		logx.String("channel", r.Channel),
		logx.String("outcome", r.Outcome.String()),
		logx.Int("mentions", r.Mentions),
		logx.Duration("took", r.Duration),
	}
	switch r.Outcome {
	case Delivered, ChannelUnavailable:
		o.Log.Debug("channel delivery", fields...)
	default:
		o.Log.Warn("channel delivery failed", append(fields, logx.Err(r.Err))...)
	}
}

// Config is the hot-reloadable part of the dispatcher.
type Config struct {
	// Channels are "<chat_id>" or "<chat_id>:<thread_id>".
	Channels       []string
	MatchReactions []string
}
