package notify

import (
	"context"
	"sync"

	"vexbot/internal/embed"
	kit "vexbot/internal/transport"
)

type sent struct {
	channel string
	text    string
	embed   *embed.Embed
	ref     kit.MessageRef
}

// fakeAdapter records sends and reactions. Unknown channel ids resolve to
// nil like chats the bot cannot see.
type fakeAdapter struct {
	mu        sync.Mutex
	channels  map[string]*kit.Channel
	sendErr   map[string]error
	reactErr  map[string]error // by emoji
	sends     []sent
	reactions map[kit.MessageRef][]string
	nextID    int
}

func newFakeAdapter(channels ...kit.Channel) *fakeAdapter {
	f := &fakeAdapter{
		channels:  map[string]*kit.Channel{},
		sendErr:   map[string]error{},
		reactErr:  map[string]error{},
		reactions: map[kit.MessageRef][]string{},
	}
	for i := range channels {
		ch := channels[i]
		f.channels[ch.ID] = &ch
	}
	return f
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                     { return nil }

func (f *fakeAdapter) Channel(_ context.Context, id string) (*kit.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channels[id], nil
}

func (f *fakeAdapter) SendEmbed(_ context.Context, ch kit.Channel, text string, e *embed.Embed) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.sendErr[ch.ID]; err != nil {
		return kit.MessageRef{}, err
	}
	f.nextID++
	ref := kit.MessageRef{ChatID: ch.Target.ChatID, ThreadID: ch.Target.ThreadID, MessageID: f.nextID}
	f.sends = append(f.sends, sent{channel: ch.ID, text: text, embed: e, ref: ref})
	return ref, nil
}

func (f *fakeAdapter) React(_ context.Context, ref kit.MessageRef, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.reactErr[emoji]; err != nil {
		return err
	}
	f.reactions[ref] = append(f.reactions[ref], emoji)
	return nil
}

func (f *fakeAdapter) SendText(context.Context, kit.ChatTarget, string, *kit.SendOptions) (kit.MessageRef, error) {
	return kit.MessageRef{}, nil
}

func (f *fakeAdapter) AnswerCallback(context.Context, string, string) error { return nil }

func (f *fakeAdapter) Mention(userID string) string { return "<@" + userID + ">" }

func (f *fakeAdapter) sentTo(channel string) []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sent
	for _, s := range f.sends {
		if s.channel == channel {
			out = append(out, s)
		}
	}
	return out
}
