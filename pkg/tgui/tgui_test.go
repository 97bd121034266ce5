package tgui

import "testing"

func TestLinkEscapes(t *testing.T) {
	got := Link("A&B <team>", "https://example.com/?a=1&b=2")
	want := H(`<a href="https://example.com/?a=1&amp;b=2">A&amp;B &lt;team&gt;</a>`)
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestBoldLink(t *testing.T) {
	got := Bold(Link("1234A", "https://robotevents.com/teams/VRC/1234A"))
	want := H(`<b><a href="https://robotevents.com/teams/VRC/1234A">1234A</a></b>`)
	if got != want {
		t.Fatalf("got %s", got)
	}
}

func TestJoinHSkipsBlank(t *testing.T) {
	if got := JoinH(" ", B("a"), "", "  ", I("b")); got != "<b>a</b> <i>b</i>" {
		t.Fatalf("got %s", got)
	}
}

func TestTruncRunes(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world", 5, "hello…"},
		{"🔴🔵🔴", 2, "🔴🔵…"},
		{"x", 0, ""},
	}
	for _, tt := range tests {
		if got := TruncRunes(tt.in, tt.n); got != tt.want {
			t.Fatalf("TruncRunes(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestUnescape(t *testing.T) {
	if got := Unescape("Gears &amp; Bolts &#39;24"); got != "Gears & Bolts '24" {
		t.Fatalf("got %q", got)
	}
}
