// Package vex turns competition records into chat messages: team lookup,
// rich-message formatting and the one-line match summary.
package vex

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"vexbot/internal/dbinfo"
	"vexbot/internal/models"
	"vexbot/internal/storage"
)

var teamIDPattern = regexp.MustCompile(`(?i)^([0-9]{1,5}[A-Z]?|[A-Z]{2,5}[0-9]{0,2})$`)

// ResolveTeamID picks the team id a command refers to. An explicit
// argument wins (whitespace removed, upper-cased); otherwise the id is the
// part of the sender's display name after " | ", as in "Alice | 229X".
func ResolveTeamID(arg, displayName string) string {
	id := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, arg)
	if id != "" {
		return strings.ToUpper(id)
	}
	parts := strings.SplitN(displayName, " | ", 2)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// ValidTeamID gates every team query.
func ValidTeamID(id string) bool {
	return teamIDPattern.MatchString(id)
}

// TeamProgram infers the program family from an id alone.
func TeamProgram(id string) int {
	return models.ProgramForTeam(id, dbinfo.ProgramVRC)
}

// ResolveTeamRef picks the program a team id belongs to. An explicit
// program wins, except that letter-led ids are always VEX U. Otherwise a
// number-led id is VRC unless only a VIQC team with that id is registered.
func ResolveTeamRef(ctx context.Context, r storage.Reader, id string, program int) (models.TeamRef, error) {
	id = strings.ToUpper(id)
	if program != 0 {
		return models.TeamRef{Program: models.ProgramForTeam(id, program), ID: id}, nil
	}
	ref := models.TeamRef{Program: TeamProgram(id), ID: id}
	if ref.Program != dbinfo.ProgramVRC {
		return ref, nil
	}
	vrc, err := r.FindTeams(ctx, storage.TeamQuery{ID: id, Program: dbinfo.ProgramVRC})
	if err != nil || len(vrc) > 0 {
		return ref, err
	}
	iq, err := r.FindTeams(ctx, storage.TeamQuery{ID: id, Program: dbinfo.ProgramVIQC})
	if err != nil {
		return ref, err
	}
	if len(iq) > 0 {
		ref.Program = dbinfo.ProgramVIQC
	}
	return ref, nil
}

// FetchTeam returns the team's record for one season, or nil.
func FetchTeam(ctx context.Context, r storage.Reader, id string, season int) (*models.Team, error) {
	teams, err := r.FindTeams(ctx, storage.TeamQuery{ID: id, Program: TeamProgram(id), Season: season})
	if err != nil || len(teams) == 0 {
		return nil, err
	}
	return &teams[0], nil
}

// FetchTeams returns every season's record for the team, most recent first.
func FetchTeams(ctx context.Context, r storage.Reader, id string) ([]models.Team, error) {
	return r.FindTeams(ctx, storage.TeamQuery{ID: id, Program: TeamProgram(id)})
}

// TeamLocation is city, region and country, comma-joined.
func TeamLocation(t models.Team) string {
	return models.Location(t)
}
