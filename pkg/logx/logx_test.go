package logx

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestFormatChatLine(t *testing.T) {
	line := []byte(`{"level":"warn","time":"x","message":"send failed","comp":"notify","channel":"-100"}`)
	got := formatChatLine(line)
	want := "[WARN] send failed\n- channel=-100\n- comp=notify"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	if got := formatChatLine([]byte("  plain text \n")); got != "plain text" {
		t.Fatalf("non-JSON line: got %q", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"abcdefghijklmnop", 12, "abcdefghi..."},
		{"abcdef", 3, "abc"},
		{"abc", 0, "abc"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Fatalf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	if got := parseLevel(" warning ", zerolog.InfoLevel); got != zerolog.WarnLevel {
		t.Fatalf("got %v", got)
	}
	if got := parseLevel("bogus", zerolog.ErrorLevel); got != zerolog.ErrorLevel {
		t.Fatalf("fallback: got %v", got)
	}
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSON(&buf, "debug").With(Component("feed"))
	log.Info("tick", Int("changes", 3))

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m["comp"] != "feed" || m["changes"] != float64(3) || m["message"] != "tick" {
		t.Fatalf("unexpected line: %v", m)
	}
	if !strings.HasPrefix(m["caller"].(string), "logx_test.go:") {
		t.Fatalf("caller should point at the call site, got %v", m["caller"])
	}
}

func TestZeroLoggerIsSilent(t *testing.T) {
	var l Logger
	if !l.IsZero() {
		t.Fatalf("zero logger should report IsZero")
	}
	l.Error("ignored")
	if Nop().IsZero() {
		t.Fatalf("Nop is a configured logger")
	}
}
