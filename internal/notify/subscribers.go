package notify

import (
	"context"
	"fmt"

	"vexbot/internal/models"
	"vexbot/internal/storage"
)

// Subscribers returns the users of guild subscribed to any of teams, in
// first-seen order without duplicates. Teams are queried one at a time.
func Subscribers(ctx context.Context, r storage.Reader, guild string, teams []models.TeamRef) ([]string, error) {
	seen := make(map[string]struct{})
	var users []string
	for _, team := range teams {
		subs, err := r.TeamSubs(ctx, guild, team)
		if err != nil {
			return nil, fmt.Errorf("team subs %s: %w", team.Key(), err)
		}
		for _, sub := range subs {
			for _, u := range sub.Users {
				if _, ok := seen[u]; ok {
					continue
				}
				seen[u] = struct{}{}
				users = append(users, u)
			}
		}
	}
	return users, nil
}

// MatchTeams lists the distinct teams in all six alliance slots. Letter-led
// ids are VEX U teams; the rest belong to the event's program.
func MatchTeams(m models.Match, eventProgram int) []models.TeamRef {
	seen := make(map[string]struct{}, 6)
	out := make([]models.TeamRef, 0, 6)
	for _, id := range m.Slots() {
		if id == "" {
			continue
		}
		ref := models.TeamRef{Program: models.ProgramForTeam(id, eventProgram), ID: id}
		if _, ok := seen[ref.Key()]; ok {
			continue
		}
		seen[ref.Key()] = struct{}{}
		out = append(out, ref)
	}
	return out
}
