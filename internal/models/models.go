// Package models holds the competition records the bot formats and
// dispatches. Field tags describe the stored document shape.
package models

import (
	"strings"
	"time"
	"unicode"

	"vexbot/internal/dbinfo"
)

// TeamRef identifies a team independent of season.
type TeamRef struct {
	Program int    `json:"prog" firestore:"prog"`
	ID      string `json:"id" firestore:"id"`
}

// Key is the case-insensitive form used for lookups and subscriptions.
func (r TeamRef) Key() string {
	return dbinfo.DecodeProgram(r.Program) + "/" + strings.ToUpper(r.ID)
}

// ProgramForTeam infers a team's program family from its id: letter-leading
// ids belong to VEX U, everything else to fallback.
func ProgramForTeam(id string, fallback int) int {
	if id == "" {
		return fallback
	}
	r := []rune(id)[0]
	if !unicode.IsDigit(r) {
		return dbinfo.ProgramVEXU
	}
	return fallback
}

type Team struct {
	Program int    `json:"prog" firestore:"prog"`
	ID      string `json:"id" firestore:"id"`
	Season  int    `json:"season" firestore:"season"`
	Name    string `json:"name,omitempty" firestore:"name,omitempty"`
	Robot   string `json:"robot,omitempty" firestore:"robot,omitempty"`
	Org     string `json:"org,omitempty" firestore:"org,omitempty"`
	City    string `json:"city,omitempty" firestore:"city,omitempty"`
	Region  string `json:"region,omitempty" firestore:"region,omitempty"`
	Country string `json:"country,omitempty" firestore:"country,omitempty"`
	Grade   int    `json:"grade,omitempty" firestore:"grade,omitempty"`
}

func (t Team) Ref() TeamRef { return TeamRef{Program: t.Program, ID: t.ID} }

type Event struct {
	SKU      string    `json:"sku" firestore:"sku"`
	Name     string    `json:"name" firestore:"name"`
	Program  int       `json:"prog" firestore:"prog"`
	Season   int       `json:"season" firestore:"season"`
	TSA      bool      `json:"tsa,omitempty" firestore:"tsa,omitempty"`
	Type     string    `json:"type,omitempty" firestore:"type,omitempty"`
	Start    time.Time `json:"start" firestore:"start"`
	Size     int       `json:"size" firestore:"size"`
	Capacity int       `json:"capacity" firestore:"capacity"`
	// Cost is in cents.
	Cost   int  `json:"cost" firestore:"cost"`
	Grade  int  `json:"grade" firestore:"grade"`
	Skills bool `json:"skills" firestore:"skills"`
}

// EventName is the projection returned by batch name lookups.
type EventName struct {
	SKU  string `json:"sku" firestore:"sku"`
	Name string `json:"name" firestore:"name"`
}

type Award struct {
	Event     string    `json:"event" firestore:"event"`
	Name      string    `json:"name" firestore:"name"`
	Team      *TeamRef  `json:"team,omitempty" firestore:"team,omitempty"`
	Qualifies []string  `json:"qualifies,omitempty" firestore:"qualifies,omitempty"`
	Updated   time.Time `json:"updated" firestore:"updated"`
}

type Skill struct {
	Event    string    `json:"event" firestore:"event"`
	Type     int       `json:"type" firestore:"type"`
	Team     TeamRef   `json:"team" firestore:"team"`
	Rank     int       `json:"rank" firestore:"rank"`
	Score    int       `json:"score" firestore:"score"`
	Attempts int       `json:"attempts" firestore:"attempts"`
	Updated  time.Time `json:"updated" firestore:"updated"`
}

// TeamSub lists the users of a group subscribed to one team.
type TeamSub struct {
	Guild string   `json:"guild" firestore:"guild"`
	Team  TeamRef  `json:"team" firestore:"team"`
	Users []string `json:"users" firestore:"users"`
}

// TeamChange records an edit to a tracked team profile field.
type TeamChange struct {
	Team  TeamRef   `json:"team" firestore:"team"`
	Field string    `json:"field" firestore:"field"`
	Old   string    `json:"old,omitempty" firestore:"old,omitempty"`
	New   string    `json:"new,omitempty" firestore:"new,omitempty"`
	At    time.Time `json:"at" firestore:"at"`
}

// DiffTeam returns the tracked-field changes from old to cur. A nil old
// team yields no changes: first sightings are not announced.
func DiffTeam(old *Team, cur Team, at time.Time) []TeamChange {
	if old == nil {
		return nil
	}
	var out []TeamChange
	add := func(field, a, b string) {
		if a != b {
			out = append(out, TeamChange{Team: cur.Ref(), Field: field, Old: a, New: b, At: at})
		}
	}
	add("team name", old.Name, cur.Name)
	add("robot name", old.Robot, cur.Robot)
	add("organization", old.Org, cur.Org)
	add("location", Location(*old), Location(cur))
	return out
}

// Location joins city, region and country, skipping empty parts.
func Location(t Team) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{t.City, t.Region, t.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// ChangeKind tags the record carried by a Change.
type ChangeKind string

const (
	ChangeMatch      ChangeKind = "match"
	ChangeAward      ChangeKind = "award"
	ChangeSkill      ChangeKind = "skill"
	ChangeTeamChange ChangeKind = "team_change"
)

// Change is one entry of the store's change feed. Exactly one of the record
// pointers is set, matching Kind.
type Change struct {
	Kind       ChangeKind
	At         time.Time
	Match      *Match
	Award      *Award
	Skill      *Skill
	TeamChange *TeamChange
}
