package storage

import (
	"context"
	"errors"
	"time"

	"vexbot/internal/models"
)

var (
	ErrDisabled      = errors.New("storage disabled")
	ErrUnknownDriver = errors.New("unknown storage driver")
)

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file holding JSON documents
//   - "file": in-memory documents persisted as a JSON snapshot
//   - "firestore": Google Cloud Firestore (Project, CredentialsFile)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver          string
	Path            string
	BusyTimeout     time.Duration // sqlite only; 0 means default
	Project         string        // firestore only
	CredentialsFile string        // firestore only; empty uses application default credentials
}

// TeamQuery selects teams by case-insensitive id within a program.
// Season 0 matches every season.
type TeamQuery struct {
	ID      string
	Program int
	Season  int
}

// Reader is the read-only surface used by the bot.
//
// Not-found is never an error: single lookups return nil, list lookups
// return an empty slice.
type Reader interface {
	// FindTeams returns matching teams ordered by season, most recent first.
	FindTeams(ctx context.Context, q TeamQuery) ([]models.Team, error)
	GetEvent(ctx context.Context, sku string) (*models.Event, error)
	// EventNames returns the names of the events that exist, in no
	// particular order.
	EventNames(ctx context.Context, skus []string) ([]models.EventName, error)
	TeamSubs(ctx context.Context, guild string, team models.TeamRef) ([]models.TeamSub, error)
	// Changes returns feed entries strictly newer than since, oldest first.
	Changes(ctx context.Context, since time.Time, limit int) ([]models.Change, error)
}

// Writer is used by import tooling and subscription management.
type Writer interface {
	// PutTeam upserts a team and returns the tracked-field changes it made.
	PutTeam(ctx context.Context, t models.Team) ([]models.TeamChange, error)
	PutEvent(ctx context.Context, e models.Event) error
	PutMatch(ctx context.Context, m models.Match) error
	PutAward(ctx context.Context, a models.Award) error
	PutSkill(ctx context.Context, s models.Skill) error
	Subscribe(ctx context.Context, guild string, team models.TeamRef, user string) error
	Unsubscribe(ctx context.Context, guild string, team models.TeamRef, user string) (bool, error)
	ListSubs(ctx context.Context, guild string) ([]models.TeamSub, error)
}

// Store is the persistence API shared by all drivers.
type Store interface {
	Reader
	Writer
	Close() error
}

// Dump is the document set exchanged by the file driver and vexctl import.
type Dump struct {
	Teams       []models.Team       `json:"teams,omitempty"`
	Events      []models.Event      `json:"events,omitempty"`
	Matches     []models.Match      `json:"matches,omitempty"`
	Awards      []models.Award      `json:"awards,omitempty"`
	Skills      []models.Skill      `json:"skills,omitempty"`
	TeamSubs    []models.TeamSub    `json:"team_subs,omitempty"`
	TeamChanges []models.TeamChange `json:"team_changes,omitempty"`
}

// stamp normalizes a record timestamp: zero means now, and precision is
// capped at milliseconds so every driver orders changes identically.
func stamp(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Truncate(time.Millisecond)
}
