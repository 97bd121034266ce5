package transport

import (
	"errors"
	"testing"
)

func TestParseChannelID(t *testing.T) {
	tests := []struct {
		in      string
		want    ChatTarget
		wantErr bool
	}{
		{in: "-1001234", want: ChatTarget{ChatID: -1001234}},
		{in: " -1001234:17 ", want: ChatTarget{ChatID: -1001234, ThreadID: 17}},
		{in: "abc", wantErr: true},
		{in: "0", wantErr: true},
		{in: "-100:0", wantErr: true},
		{in: "-100:x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseChannelID(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrBadChannelID) {
					t.Fatalf("expected ErrBadChannelID, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("got %+v %v, want %+v", got, err, tt.want)
			}
			if s := got.String(); s != tt.in && " "+s+" " != tt.in {
				t.Fatalf("String() = %q", s)
			}
		})
	}
}
