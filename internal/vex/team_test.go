package vex

import (
	"context"
	"testing"

	"vexbot/internal/models"
	"vexbot/internal/storage"
)

func TestValidTeamID(t *testing.T) {
	t.Parallel()
	tests := []struct {
		id   string
		want bool
	}{
		{"229X", true},
		{"229x", true},
		{"1", true},
		{"12345", true},
		{"12345A", true},
		{"AUBIE", true},
		{"WPI1", true},
		{"BLRS22", true},
		{"1234567", false},
		{"ABCDEF", false},
		{"A", false},
		{"229XY", false},
		{"BLRS123", false},
		{"229-X", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidTeamID(tt.id); got != tt.want {
			t.Fatalf("ValidTeamID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestResolveTeamID(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name, arg, display, want string
	}{
		{"explicit wins", "  229x ", "Alice | 229X", "229X"},
		{"inner whitespace", "22 9x", "", "229X"},
		{"display fallback", "", "Alice | 229X", "229X"},
		{"whitespace arg falls back", " \t", "Bob | 515R", "515R"},
		{"only first separator", "", "Carol | 1A | extra", "1A | extra"},
		{"no separator", "", "Dave", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveTeamID(tt.arg, tt.display); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFetchTeam(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := storage.NewMemory(storage.Dump{Teams: []models.Team{
		{Program: 1, ID: "229X", Season: 154, Name: "Old"},
		{Program: 1, ID: "229X", Season: 173, Name: "New"},
		{Program: 4, ID: "AUBIE", Season: 173},
	}})

	team, err := FetchTeam(ctx, st, "229x", 154)
	if err != nil || team == nil || team.Name != "Old" {
		t.Fatalf("FetchTeam: %v %+v", err, team)
	}
	team, err = FetchTeam(ctx, st, "229X", 999)
	if err != nil || team != nil {
		t.Fatalf("missing season should be nil, got %v %+v", err, team)
	}

	teams, err := FetchTeams(ctx, st, "229X")
	if err != nil || len(teams) != 2 || teams[0].Season != 173 {
		t.Fatalf("FetchTeams: %v %+v", err, teams)
	}
	teams, err = FetchTeams(ctx, st, "aubie")
	if err != nil || len(teams) != 1 || teams[0].Program != 4 {
		t.Fatalf("letter-leading ids query VEX U: %v %+v", err, teams)
	}
	teams, err = FetchTeams(ctx, st, "9999")
	if err != nil || len(teams) != 0 {
		t.Fatalf("not found should be empty: %v %+v", err, teams)
	}
}

func TestTeamLocation(t *testing.T) {
	t.Parallel()
	got := TeamLocation(models.Team{City: "Auburn", Country: "United States"})
	if got != "Auburn, United States" {
		t.Fatalf("got %q", got)
	}
	if got := TeamLocation(models.Team{}); got != "" {
		t.Fatalf("empty location: %q", got)
	}
}

func TestResolveTeamRef(t *testing.T) {
	t.Parallel()
	st := storage.NewMemory(storage.Dump{Teams: []models.Team{
		{Program: 41, ID: "1234A", Season: 180},
		{Program: 41, ID: "229V", Season: 180},
		{Program: 1, ID: "229V", Season: 181},
	}})
	tests := []struct {
		name    string
		id      string
		program int
		want    models.TeamRef
	}{
		{"only VIQC registered", "1234a", 0, models.TeamRef{Program: 41, ID: "1234A"}},
		{"VRC preferred", "229V", 0, models.TeamRef{Program: 1, ID: "229V"}},
		{"unknown defaults to VRC", "99Z", 0, models.TeamRef{Program: 1, ID: "99Z"}},
		{"explicit program", "229V", 41, models.TeamRef{Program: 41, ID: "229V"}},
		{"letter-led is VEX U", "BNS", 41, models.TeamRef{Program: 4, ID: "BNS"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveTeamRef(context.Background(), st, tt.id, tt.program)
			if err != nil || got != tt.want {
				t.Fatalf("got %+v, %v; want %+v", got, err, tt.want)
			}
		})
	}
}
