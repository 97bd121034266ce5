package dbinfo

import (
	"strings"
	"testing"
)

func TestDecodeFallbacks(t *testing.T) {
	t.Parallel()
	if got := DecodeProgram(ProgramVRC); got != "VRC" {
		t.Fatalf("DecodeProgram(VRC) = %q", got)
	}
	if got := DecodeProgram(99); got != "99" {
		t.Fatalf("DecodeProgram(99) = %q", got)
	}
	if got := DecodeSeason(1); got != "Season 1" {
		t.Fatalf("DecodeSeason(1) = %q", got)
	}
	if got := DecodeGrade(-1); got != "Unknown" {
		t.Fatalf("DecodeGrade(-1) = %q", got)
	}
	if got := DecodeSkill(1); got != "Programming" {
		t.Fatalf("DecodeSkill(1) = %q", got)
	}
}

func TestEliminationRounds(t *testing.T) {
	t.Parallel()
	for code := 0; code <= 10; code++ {
		want := code >= 3 && code <= 8
		if got := IsEliminationRound(code); got != want {
			t.Fatalf("IsEliminationRound(%d) = %v, want %v", code, got, want)
		}
	}
}

func TestSeasonURLUsesProgramSlug(t *testing.T) {
	t.Parallel()
	u := DecodeSeasonURL(120)
	if !strings.Contains(u, "college-competition") || !strings.HasSuffix(u, "seasonId=120") {
		t.Fatalf("unexpected season url %q", u)
	}
}

func TestEmojiToURL(t *testing.T) {
	t.Parallel()
	if got := EmojiToURL("🤖"); !strings.HasSuffix(got, "/1f916.png") {
		t.Fatalf("EmojiToURL = %q", got)
	}
	if EmojiToURL("") != "" {
		t.Fatal("expected empty url for empty emoji")
	}
}

func TestParseProgram(t *testing.T) {
	t.Parallel()
	for _, code := range []int{ProgramVRC, ProgramVEXU, ProgramVIQC} {
		name := strings.ToLower(DecodeProgram(code))
		if got, ok := ParseProgram(" " + name); !ok || got != code {
			t.Fatalf("ParseProgram(%q) = %d, %v", name, got, ok)
		}
	}
	if _, ok := ParseProgram("vex"); ok {
		t.Fatalf("unknown program accepted")
	}
}
