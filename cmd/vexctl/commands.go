package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"vexbot/internal/dbinfo"
	"vexbot/internal/models"
	"vexbot/internal/storage"
	"vexbot/internal/vex"
)

type importCmd struct {
	DryRun bool   `help:"Parse and count the dump without writing."`
	File   string `arg:"" help:"JSON dump with teams, events, matches, awards, skills and team_subs." type:"existingfile"`
}

func (c *importCmd) Run(g *globalCmd) error {
	b, err := os.ReadFile(c.File)
	if err != nil {
		return err
	}
	var d storage.Dump
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&d); err != nil {
		return fmt.Errorf("decode %s: %w", c.File, err)
	}

	counts := map[string]int{}
	var changes []models.TeamChange
	if !c.DryRun {
		ctx := context.Background()
		st, err := g.openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if changes, err = importDump(ctx, st, d, counts); err != nil {
			return err
		}
	} else {
		counts["teams"], counts["events"], counts["matches"] = len(d.Teams), len(d.Events), len(d.Matches)
		counts["awards"], counts["skills"] = len(d.Awards), len(d.Skills)
		for _, s := range d.TeamSubs {
			counts["subscriptions"] += len(s.Users)
		}
	}

	t := g.table(table.Row{"Kind", "Records"})
	for _, k := range []string{"teams", "events", "matches", "awards", "skills", "subscriptions"} {
		t.AppendRow(table.Row{k, counts[k]})
	}
	t.AppendFooter(table.Row{"team changes", len(changes)})
	t.Render()
	return nil
}

// importDump writes d in dependency order: events before the records
// that reference them.
func importDump(ctx context.Context, st storage.Writer, d storage.Dump, counts map[string]int) ([]models.TeamChange, error) {
	var changes []models.TeamChange
	for _, e := range d.Events {
		if err := st.PutEvent(ctx, e); err != nil {
			return changes, fmt.Errorf("event %s: %w", e.SKU, err)
		}
		counts["events"]++
	}
	for _, t := range d.Teams {
		ch, err := st.PutTeam(ctx, t)
		if err != nil {
			return changes, fmt.Errorf("team %s: %w", t.ID, err)
		}
		changes = append(changes, ch...)
		counts["teams"]++
	}
	for _, m := range d.Matches {
		if err := st.PutMatch(ctx, m); err != nil {
			return changes, fmt.Errorf("match %s: %w", vex.MatchString(m.Key.Round, m.Key.Instance, m.Key.Number), err)
		}
		counts["matches"]++
	}
	for _, a := range d.Awards {
		if err := st.PutAward(ctx, a); err != nil {
			return changes, fmt.Errorf("award %q: %w", a.Name, err)
		}
		counts["awards"]++
	}
	for _, s := range d.Skills {
		if err := st.PutSkill(ctx, s); err != nil {
			return changes, fmt.Errorf("skill %s: %w", s.Team.ID, err)
		}
		counts["skills"]++
	}
	for _, s := range d.TeamSubs {
		for _, u := range s.Users {
			if err := st.Subscribe(ctx, s.Guild, s.Team, u); err != nil {
				return changes, fmt.Errorf("subscription %s: %w", s.Team.Key(), err)
			}
			counts["subscriptions"]++
		}
	}
	return changes, nil
}

type teamCmd struct {
	ID      string `arg:"" help:"Team id, e.g. 229V or BNS."`
	Program string `help:"vrc, vexu or viqc. Inferred from registered teams when empty."`
}

func (c *teamCmd) Run(g *globalCmd) error {
	ctx := context.Background()
	st, err := g.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	ref, err := resolveRef(ctx, st, c.ID, c.Program)
	if err != nil {
		return err
	}
	teams, err := st.FindTeams(ctx, storage.TeamQuery{ID: ref.ID, Program: ref.Program})
	if err != nil {
		return err
	}
	if len(teams) == 0 {
		return fmt.Errorf("team %s has never been registered", ref.Key())
	}
	t := g.table(table.Row{"Season", "Team Name", "Robot Name", "Organization", "Location", "Grade"})
	for _, tm := range teams {
		t.AppendRow(table.Row{dbinfo.DecodeSeason(tm.Season), tm.Name, tm.Robot, tm.Org, vex.TeamLocation(tm), dbinfo.DecodeGrade(tm.Grade)})
	}
	t.Render()
	return nil
}

// resolveRef validates a team id and settles its program.
func resolveRef(ctx context.Context, r storage.Reader, id, program string) (models.TeamRef, error) {
	id = vex.ResolveTeamID(id, "")
	if !vex.ValidTeamID(id) {
		return models.TeamRef{}, fmt.Errorf("invalid team id %q", id)
	}
	code := 0
	if program != "" {
		var ok bool
		if code, ok = dbinfo.ParseProgram(program); !ok {
			return models.TeamRef{}, fmt.Errorf("unknown program %q", program)
		}
	}
	return vex.ResolveTeamRef(ctx, r, id, code)
}

type changesCmd struct {
	Since time.Duration `help:"How far back to look." default:"24h"`
	Limit int           `help:"Maximum entries." default:"50"`
}

func (c *changesCmd) Run(g *globalCmd) error {
	ctx := context.Background()
	st, err := g.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	changes, err := st.Changes(ctx, time.Now().Add(-c.Since), c.Limit)
	if err != nil {
		return err
	}
	t := g.table(table.Row{"At", "Kind", "Summary"})
	for _, ch := range changes {
		t.AppendRow(table.Row{ch.At.Format(time.RFC3339), string(ch.Kind), summarize(ch)})
	}
	t.Render()
	return nil
}

func summarize(c models.Change) string {
	switch {
	case c.Match != nil:
		if c.Match.Scored() {
			return c.Match.Key.Event + " " + vex.MatchScoredNotification(*c.Match)
		}
		return c.Match.Key.Event + " " + vex.MatchString(c.Match.Key.Round, c.Match.Key.Instance, c.Match.Key.Number)
	case c.Award != nil:
		s := c.Award.Event + " " + c.Award.Name
		if c.Award.Team != nil {
			s += " → " + c.Award.Team.ID
		}
		return s
	case c.Skill != nil:
		return c.Skill.Event + " " + c.Skill.Team.ID + " " + dbinfo.DecodeSkill(c.Skill.Type) + " " + strconv.Itoa(c.Skill.Score)
	case c.TeamChange != nil:
		return c.TeamChange.Team.ID + " " + c.TeamChange.Field + ": " + strconv.Quote(c.TeamChange.Old) + " → " + strconv.Quote(c.TeamChange.New)
	}
	return ""
}

type subArgs struct {
	Chat    string `arg:"" help:"Chat id the subscription belongs to."`
	Team    string `arg:"" help:"Team id."`
	User    string `arg:"" help:"User id (numeric) or @username."`
	Program string `help:"vrc, vexu or viqc. Inferred from registered teams when empty."`
}

type addSubCmd struct{ subArgs }

func (c *addSubCmd) Run(g *globalCmd) error {
	ctx := context.Background()
	st, err := g.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()
	ref, err := resolveRef(ctx, st, c.Team, c.Program)
	if err != nil {
		return err
	}
	if err := st.Subscribe(ctx, c.Chat, ref, c.User); err != nil {
		return err
	}
	fmt.Fprintf(g.out, "%s subscribed to %s in %s\n", c.User, ref.Key(), c.Chat)
	return nil
}

type rmSubCmd struct{ subArgs }

func (c *rmSubCmd) Run(g *globalCmd) error {
	ctx := context.Background()
	st, err := g.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()
	ref, err := resolveRef(ctx, st, c.Team, c.Program)
	if err != nil {
		return err
	}
	removed, err := st.Unsubscribe(ctx, c.Chat, ref, c.User)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%s is not subscribed to %s in %s", c.User, ref.Key(), c.Chat)
	}
	fmt.Fprintf(g.out, "%s unsubscribed from %s in %s\n", c.User, ref.Key(), c.Chat)
	return nil
}

type lsSubsCmd struct {
	Chat string `arg:"" help:"Chat id."`
}

func (c *lsSubsCmd) Run(g *globalCmd) error {
	ctx := context.Background()
	st, err := g.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()
	subs, err := st.ListSubs(ctx, c.Chat)
	if err != nil {
		return err
	}
	t := g.table(table.Row{"Team", "Users"})
	for _, s := range subs {
		t.AppendRow(table.Row{s.Team.Key(), strings.Join(s.Users, ", ")})
	}
	t.AppendFooter(table.Row{"Teams", len(subs)})
	t.Render()
	return nil
}
