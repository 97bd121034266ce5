package notify

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"

	"vexbot/internal/embed"
	"vexbot/internal/models"
	"vexbot/internal/storage"
	kit "vexbot/internal/transport"
	"vexbot/internal/vex"
)

var mentionTag = regexp.MustCompile(`<@[^>]+>`)

func vrc(id string) models.TeamRef { return models.TeamRef{Program: 1, ID: id} }

func TestBroadcastSkipsMissingChannel(t *testing.T) {
	t.Parallel()
	st := storage.NewMemory(storage.Dump{TeamSubs: []models.TeamSub{
		{Guild: "-100", Team: vrc("229A"), Users: []string{"1", "2"}},
		{Guild: "-100", Team: vrc("229B"), Users: []string{"2", "3"}},
		{Guild: "-999", Team: vrc("229A"), Users: []string{"4"}},
	}})
	fa := newFakeAdapter(kit.Channel{ID: "-100", Guild: "-100", Target: kit.ChatTarget{ChatID: -100}})
	d := New(fa, st, Config{Channels: []string{"-404", "-100"}})

	results := d.Broadcast(context.Background(), "Match update", embed.New(embed.Red), []models.TeamRef{vrc("229A"), vrc("229B")}, nil).Wait()

	if len(results) != 2 {
		t.Fatalf("expected a result per channel, got %+v", results)
	}
	if results[0].Channel != "-404" || results[0].Outcome != ChannelUnavailable {
		t.Fatalf("missing channel: %+v", results[0])
	}
	if len(fa.sentTo("-404")) != 0 {
		t.Fatalf("no send may be attempted for a missing channel")
	}
	if results[1].Outcome != Delivered || results[1].Mentions != 3 {
		t.Fatalf("delivered channel: %+v", results[1])
	}

	msgs := fa.sentTo("-100")
	if len(msgs) != 1 {
		t.Fatalf("expected one send, got %d", len(msgs))
	}
	tags := mentionTag.FindAllString(msgs[0].text, -1)
	if strings.Join(tags, " ") != "<@1> <@2> <@3>" {
		t.Fatalf("expected exactly three unique mentions in order, got %q", msgs[0].text)
	}
	if !strings.HasPrefix(msgs[0].text, "Match update\n") {
		t.Fatalf("content line first: %q", msgs[0].text)
	}
}

func TestBroadcastReactionsInOrder(t *testing.T) {
	t.Parallel()
	fa := newFakeAdapter(kit.Channel{ID: "-1", Guild: "-1", Target: kit.ChatTarget{ChatID: -1}})
	d := New(fa, storage.NewMemory(storage.Dump{}), Config{Channels: []string{"-1"}})

	r := d.Broadcast(context.Background(), "", embed.New(embed.Gold), nil, []string{"👍", "👎", "🎉"}).Wait()[0]
	if r.Outcome != Delivered {
		t.Fatalf("outcome: %+v", r)
	}
	got := fa.reactions[r.Message]
	if strings.Join(got, "") != "👍👎🎉" {
		t.Fatalf("reactions out of order: %q", got)
	}
	if text := fa.sentTo("-1")[0].text; text != "" {
		t.Fatalf("no content and no subscribers means empty text, got %q", text)
	}
}

func TestBroadcastFailuresStayPerChannel(t *testing.T) {
	t.Parallel()
	fa := newFakeAdapter(
		kit.Channel{ID: "-1", Guild: "-1", Target: kit.ChatTarget{ChatID: -1}},
		kit.Channel{ID: "-2", Guild: "-2", Target: kit.ChatTarget{ChatID: -2}},
		kit.Channel{ID: "-3", Guild: "-3", Target: kit.ChatTarget{ChatID: -3}},
	)
	fa.sendErr["-1"] = errors.New("forbidden")
	fa.reactErr["👎"] = errors.New("rate limited")
	d := New(fa, storage.NewMemory(storage.Dump{}), Config{Channels: []string{"-1", "-2"}})

	results := d.Broadcast(context.Background(), "x", nil, nil, []string{"👍", "👎", "🎉"}).Wait()
	if results[0].Outcome != SendFailed || results[0].Err == nil {
		t.Fatalf("send failure: %+v", results[0])
	}
	if results[1].Outcome != ReactFailed {
		t.Fatalf("react failure: %+v", results[1])
	}
	if got := fa.reactions[results[1].Message]; len(got) != 1 || got[0] != "👍" {
		t.Fatalf("reactions stop at the first failure, got %q", got)
	}
	if len(fa.sentTo("-3")) != 0 {
		t.Fatalf("unconfigured channel received a message")
	}
}

type brokenSubs struct{ *storage.Memory }

func (brokenSubs) TeamSubs(context.Context, string, models.TeamRef) ([]models.TeamSub, error) {
	return nil, errors.New("query failed")
}

func TestBroadcastLookupFailure(t *testing.T) {
	t.Parallel()
	fa := newFakeAdapter(kit.Channel{ID: "-1", Guild: "-1"})
	var mu sync.Mutex
	var observed []Result
	obs := ObserverFunc(func(_ context.Context, _ string, r Result) {
		mu.Lock()
		observed = append(observed, r)
		mu.Unlock()
	})
	d := New(fa, brokenSubs{storage.NewMemory(storage.Dump{})}, Config{Channels: []string{"-1"}}, WithObserver(obs))

	r := d.Broadcast(context.Background(), "x", nil, []models.TeamRef{vrc("1A")}, nil).Wait()[0]
	if r.Outcome != LookupFailed {
		t.Fatalf("outcome: %+v", r)
	}
	if len(fa.sentTo("-1")) != 0 {
		t.Fatalf("nothing is sent when subscribers cannot be resolved")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(observed) != 1 || observed[0].Outcome != LookupFailed {
		t.Fatalf("observer saw %+v", observed)
	}
}

// panicky panics in the named adapter call.
type panicky struct {
	*fakeAdapter
	at string
}

func (p panicky) Channel(ctx context.Context, id string) (*kit.Channel, error) {
	if p.at == "channel" {
		panic("channel")
	}
	return p.fakeAdapter.Channel(ctx, id)
}

func (p panicky) SendEmbed(ctx context.Context, ch kit.Channel, text string, e *embed.Embed) (kit.MessageRef, error) {
	if p.at == "send" {
		panic("send")
	}
	return p.fakeAdapter.SendEmbed(ctx, ch, text, e)
}

func (p panicky) React(ctx context.Context, ref kit.MessageRef, emoji string) error {
	if p.at == "react" {
		panic("react")
	}
	return p.fakeAdapter.React(ctx, ref, emoji)
}

type panickySubs struct{ *storage.Memory }

func (panickySubs) TeamSubs(context.Context, string, models.TeamRef) ([]models.TeamSub, error) {
	panic("lookup")
}

func TestBroadcastPanicOutcomeFollowsStage(t *testing.T) {
	t.Parallel()
	tests := []struct {
		at   string
		want Outcome
	}{
		{"channel", ChannelUnavailable},
		{"lookup", LookupFailed},
		{"send", SendFailed},
		{"react", ReactFailed},
	}
	for _, tt := range tests {
		t.Run(tt.at, func(t *testing.T) {
			t.Parallel()
			var st storage.Reader = storage.NewMemory(storage.Dump{})
			if tt.at == "lookup" {
				st = panickySubs{storage.NewMemory(storage.Dump{})}
			}
			fa := panicky{fakeAdapter: newFakeAdapter(kit.Channel{ID: "-1", Guild: "-1"}), at: tt.at}
			d := New(fa, st, Config{Channels: []string{"-1"}})

			r := d.Broadcast(context.Background(), "", embed.New(embed.Gold), []models.TeamRef{vrc("229V")}, []string{"👍"}).Wait()[0]
			if r.Outcome != tt.want || r.Err == nil || !strings.Contains(r.Err.Error(), "panic") {
				t.Fatalf("got %v (%v), want %v", r.Outcome, r.Err, tt.want)
			}
		})
	}
}

func TestApplyReplacesChannels(t *testing.T) {
	t.Parallel()
	fa := newFakeAdapter(kit.Channel{ID: "-1", Guild: "-1"}, kit.Channel{ID: "-2", Guild: "-2"})
	d := New(fa, storage.NewMemory(storage.Dump{}), Config{Channels: []string{"-1"}})
	if got := d.MatchReactions(); strings.Join(got, "") != "👍👎" {
		t.Fatalf("default match reactions: %q", got)
	}

	d.Apply(Config{Channels: []string{"-2"}, MatchReactions: []string{}})
	d.Broadcast(context.Background(), "x", nil, nil, nil).Wait()
	if len(fa.sentTo("-1")) != 0 || len(fa.sentTo("-2")) != 1 {
		t.Fatalf("apply did not take effect")
	}
	if got := d.MatchReactions(); len(got) != 0 {
		t.Fatalf("explicit empty reactions must stay empty: %q", got)
	}
}

func TestSendMatchEmbed(t *testing.T) {
	t.Parallel()
	st := storage.NewMemory(storage.Dump{
		Events: []models.Event{{SKU: "RE-VRC-23-1", Name: "Worlds", Program: 1}},
		TeamSubs: []models.TeamSub{
			{Guild: "-1", Team: vrc("515C"), Users: []string{"7"}},
			{Guild: "-1", Team: models.TeamRef{Program: 4, ID: "AUBIE"}, Users: []string{"8"}},
		},
	})
	fa := newFakeAdapter(kit.Channel{ID: "-1", Guild: "-1"})
	d := New(fa, st, Config{Channels: []string{"-1"}})

	m := models.Match{
		Key:     models.MatchKey{Event: "RE-VRC-23-1", Division: "Math", Round: 2, Instance: 1, Number: 4},
		Program: 1,
		Red:     models.Alliance{Teams: [3]string{"229A", "229B"}},
		Blue:    models.Alliance{Teams: [3]string{"515A", "AUBIE", "515C"}},
		State:   models.Played{Actual: models.Score{Red: 3, Blue: 5}},
	}
	b, err := d.SendMatchEmbed(context.Background(), "GG", m, DefaultReactions)
	if err != nil {
		t.Fatalf("SendMatchEmbed: %v", err)
	}
	r := b.Wait()[0]
	if r.Outcome != Delivered || r.Mentions != 2 {
		t.Fatalf("blue3 and VEX U teams must be notified: %+v", r)
	}
	msg := fa.sentTo("-1")[0]
	if !strings.HasPrefix(msg.text, "Q4 229A 229B🔴3-5🔵AUBIE 515A\nGG\n") {
		t.Fatalf("text: %q", msg.text)
	}
	if msg.embed == nil || msg.embed.Color != embed.Blue {
		t.Fatalf("embed: %+v", msg.embed)
	}

	m.Key.Event = "missing"
	if _, err := d.SendMatchEmbed(context.Background(), "", m, nil); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}

func TestMatchTeams(t *testing.T) {
	t.Parallel()
	m := models.Match{
		Red:  models.Alliance{Teams: [3]string{"1A", "2A", "3A"}},
		Blue: models.Alliance{Teams: [3]string{"4A", "", "WPI1"}},
	}
	got := MatchTeams(m, 1)
	want := []models.TeamRef{vrc("1A"), vrc("2A"), vrc("3A"), vrc("4A"), {Program: 4, ID: "WPI1"}}
	if len(got) != len(want) {
		t.Fatalf("got %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("slot %d: got %+v, want %+v", i, got[i], want[i])
		}
	}

	m.Blue.Teams[1] = "1a"
	if n := len(MatchTeams(m, 1)); n != 5 {
		t.Fatalf("case-insensitive duplicates collapse, got %d teams", n)
	}
}

func TestComposeText(t *testing.T) {
	t.Parallel()
	tests := []struct {
		content  string
		mentions []string
		want     string
	}{
		{"hi", nil, "hi"},
		{"", []string{"<@1>", "<@2>"}, "<@1> <@2>"},
		{"hi", []string{"<@1>"}, "hi\n<@1>"},
		{"", nil, ""},
	}
	for _, tt := range tests {
		if got := ComposeText(tt.content, tt.mentions); got != tt.want {
			t.Fatalf("ComposeText(%q, %q) = %q, want %q", tt.content, tt.mentions, got, tt.want)
		}
	}
}

func TestSubscribersUnionOrder(t *testing.T) {
	t.Parallel()
	st := storage.NewMemory(storage.Dump{TeamSubs: []models.TeamSub{
		{Guild: "g", Team: vrc("2A"), Users: []string{"b", "c"}},
		{Guild: "g", Team: vrc("1A"), Users: []string{"c", "a"}},
	}})
	got, err := Subscribers(context.Background(), st, "g", []models.TeamRef{vrc("1A"), vrc("2A"), vrc("3A")})
	if err != nil {
		t.Fatalf("Subscribers: %v", err)
	}
	if strings.Join(got, ",") != "c,a,b" {
		t.Fatalf("got %q", got)
	}
}

func TestSendMatchEmbedMentionsVIQCSubscribers(t *testing.T) {
	t.Parallel()
	st := storage.NewMemory(storage.Dump{
		Teams:  []models.Team{{Program: 41, ID: "1234A", Season: 180}},
		Events: []models.Event{{SKU: "RE-VIQRC-23-1", Name: "IQ Worlds", Program: 41}},
	})
	ctx := context.Background()
	// A bare "/sub 1234A" resolves to the registered VIQC team.
	ref, err := vex.ResolveTeamRef(ctx, st, "1234A", 0)
	if err != nil {
		t.Fatalf("ResolveTeamRef: %v", err)
	}
	if err := st.Subscribe(ctx, "-1", ref, "42"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	fa := newFakeAdapter(kit.Channel{ID: "-1", Guild: "-1"})
	d := New(fa, st, Config{Channels: []string{"-1"}})
	m := models.Match{
		Key:     models.MatchKey{Event: "RE-VIQRC-23-1", Division: "Science", Round: 2, Number: 9},
		Program: 41,
		Red:     models.Alliance{Teams: [3]string{"1234A", "99B"}},
		State:   models.Played{Actual: models.Score{Red: 40, Blue: 40}},
	}
	b, err := d.SendMatchEmbed(ctx, "", m, nil)
	if err != nil {
		t.Fatalf("SendMatchEmbed: %v", err)
	}
	if r := b.Wait()[0]; r.Outcome != Delivered || r.Mentions != 1 {
		t.Fatalf("VIQC subscriber not mentioned: %+v", r)
	}
	if !strings.Contains(fa.sentTo("-1")[0].text, "<@42>") {
		t.Fatalf("text: %q", fa.sentTo("-1")[0].text)
	}
}
