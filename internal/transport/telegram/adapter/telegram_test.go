package adapter

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	kit "vexbot/internal/transport"
)

func TestSplitShortText(t *testing.T) {
	got := splitTelegramText("hello", 10, "HTML")
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("got %q", got)
	}
}

func TestSplitPrefersNewlines(t *testing.T) {
	s := strings.Repeat("a", 6) + "\n" + strings.Repeat("b", 6)
	got := splitTelegramText(s, 10, "")
	if len(got) != 2 || got[0] != "aaaaaa" || got[1] != "bbbbbb" {
		t.Fatalf("got %q", got)
	}
}

func TestSplitAvoidsTags(t *testing.T) {
	s := "xxxxxxxx<b>yy</b>"
	got := splitTelegramText(s, 10, "HTML")
	if got[0] != "xxxxxxxx" {
		t.Fatalf("first chunk cut inside a tag: %q", got)
	}
	if strings.Join(got, "") != s {
		t.Fatalf("chunks lost content: %q", got)
	}
}

func TestSplitRespectsRunes(t *testing.T) {
	s := strings.Repeat("🔴", 25)
	for _, c := range splitTelegramText(s, 10, "") {
		if n := utf8.RuneCountInString(c); n > 10 {
			t.Fatalf("chunk has %d runes", n)
		}
	}
}

func TestMention(t *testing.T) {
	tests := map[string]string{
		"12345":   `<a href="tg://user?id=12345">12345</a>`,
		"@coach":  "@coach",
		"<weird>": "&lt;weird&gt;",
	}
	for in, want := range tests {
		if got := mention(in); got != want {
			t.Fatalf("mention(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReactionFromCallback(t *testing.T) {
	if e, ok := ReactionFromCallback("\freact|👍"); !ok || e != "👍" {
		t.Fatalf("got %q %v", e, ok)
	}
	if _, ok := ReactionFromCallback("\fother|x"); ok {
		t.Fatalf("unexpected match")
	}
}

func TestReactionSetsBounded(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_700_000_000, 0)
	s := newReactionSets(3, time.Minute)
	s.now = func() time.Time { return now }

	ref := func(id int) kit.MessageRef { return kit.MessageRef{ChatID: -1, MessageID: id} }
	for id := 1; id <= 10; id++ {
		s.put(ref(id), []string{"👍"})
	}
	if s.size() != 3 {
		t.Fatalf("size = %d, want 3", s.size())
	}
	if s.get(ref(7)) != nil || s.get(ref(8)) == nil {
		t.Fatalf("oldest entries must be dropped first")
	}

	// Updating an entry keeps a single slot for it.
	s.put(ref(8), []string{"👍", "👎"})
	if s.size() != 3 || len(s.order) != 3 {
		t.Fatalf("size = %d, order = %d", s.size(), len(s.order))
	}
	if got := s.get(ref(8)); len(got) != 2 {
		t.Fatalf("updated set: %q", got)
	}

	now = now.Add(2 * time.Minute)
	if s.get(ref(9)) != nil {
		t.Fatalf("expired entry returned")
	}
	s.put(ref(11), []string{"🎉"})
	if s.size() != 1 || s.get(ref(11)) == nil {
		t.Fatalf("expired entries not swept: size = %d", s.size())
	}
}
