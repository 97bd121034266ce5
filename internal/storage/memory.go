package storage

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"vexbot/internal/models"
)

// Memory is an in-process document store. It backs the file driver and is
// handy as a fixture.
type Memory struct {
	mu sync.RWMutex
	d  Dump

	// onWrite runs with mu held after every mutation. The mutation is
	// kept only if it returns nil.
	onWrite func(d *Dump) error
}

// NewMemory returns a store seeded with a copy of d.
func NewMemory(d Dump) *Memory {
	return &Memory{d: d.clone()}
}

// clone copies every slice a mutation may write to.
func (d Dump) clone() Dump {
	out := Dump{
		Teams:       slices.Clone(d.Teams),
		Events:      slices.Clone(d.Events),
		Matches:     slices.Clone(d.Matches),
		Awards:      slices.Clone(d.Awards),
		Skills:      slices.Clone(d.Skills),
		TeamSubs:    make([]models.TeamSub, 0, len(d.TeamSubs)),
		TeamChanges: slices.Clone(d.TeamChanges),
	}
	for _, s := range d.TeamSubs {
		s.Users = slices.Clone(s.Users)
		out.TeamSubs = append(out.TeamSubs, s)
	}
	return out
}

func (m *Memory) Close() error { return nil }

func sameTeam(a, b models.TeamRef) bool {
	return a.Program == b.Program && strings.EqualFold(a.ID, b.ID)
}

func (m *Memory) FindTeams(ctx context.Context, q TeamQuery) ([]models.Team, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Team, 0, 1)
	for _, t := range m.d.Teams {
		if t.Program != q.Program || !strings.EqualFold(t.ID, q.ID) {
			continue
		}
		if q.Season != 0 && t.Season != q.Season {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Season > out[j].Season })
	return out, nil
}

func (m *Memory) GetEvent(ctx context.Context, sku string) (*models.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.d.Events {
		if e.SKU == sku {
			cp := e
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Memory) EventNames(ctx context.Context, skus []string) ([]models.EventName, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.EventName, 0, len(skus))
	for _, e := range m.d.Events {
		if slices.Contains(skus, e.SKU) {
			out = append(out, models.EventName{SKU: e.SKU, Name: e.Name})
		}
	}
	return out, nil
}

func (m *Memory) TeamSubs(ctx context.Context, guild string, team models.TeamRef) ([]models.TeamSub, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.TeamSub
	for _, s := range m.d.TeamSubs {
		if s.Guild == guild && sameTeam(s.Team, team) && len(s.Users) > 0 {
			s.Users = slices.Clone(s.Users)
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *Memory) ListSubs(ctx context.Context, guild string) ([]models.TeamSub, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.TeamSub
	for _, s := range m.d.TeamSubs {
		if (guild == "" || s.Guild == guild) && len(s.Users) > 0 {
			s.Users = slices.Clone(s.Users)
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *Memory) Changes(ctx context.Context, since time.Time, limit int) ([]models.Change, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	var out []models.Change
	for i := range m.d.Matches {
		if mt := m.d.Matches[i]; mt.Updated.After(since) {
			out = append(out, models.Change{Kind: models.ChangeMatch, At: mt.Updated, Match: &mt})
		}
	}
	for i := range m.d.Awards {
		if a := m.d.Awards[i]; a.Updated.After(since) {
			a.Qualifies = slices.Clone(a.Qualifies)
			out = append(out, models.Change{Kind: models.ChangeAward, At: a.Updated, Award: &a})
		}
	}
	for i := range m.d.Skills {
		if s := m.d.Skills[i]; s.Updated.After(since) {
			out = append(out, models.Change{Kind: models.ChangeSkill, At: s.Updated, Skill: &s})
		}
	}
	for i := range m.d.TeamChanges {
		if c := m.d.TeamChanges[i]; c.At.After(since) {
			out = append(out, models.Change{Kind: models.ChangeTeamChange, At: c.At, TeamChange: &c})
		}
	}
	m.mu.RUnlock()
	return limitChanges(out, limit), nil
}

// limitChanges orders changes oldest first and keeps at most limit of them
// (limit <= 0 keeps all).
func limitChanges(in []models.Change, limit int) []models.Change {
	sort.SliceStable(in, func(i, j int) bool { return in[i].At.Before(in[j].At) })
	if limit > 0 && len(in) > limit {
		in = in[:limit]
	}
	return in
}

func (m *Memory) write(fn func(d *Dump)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.onWrite == nil {
		fn(&m.d)
		return nil
	}
	next := m.d.clone()
	fn(&next)
	if err := m.onWrite(&next); err != nil {
		return err
	}
	m.d = next
	return nil
}

func (m *Memory) PutTeam(ctx context.Context, t models.Team) ([]models.TeamChange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var changes []models.TeamChange
	err := m.write(func(d *Dump) {
		for i, cur := range d.Teams {
			if cur.Season == t.Season && sameTeam(cur.Ref(), t.Ref()) {
				changes = models.DiffTeam(&cur, t, stamp(time.Time{}))
				d.Teams[i] = t
				d.TeamChanges = append(d.TeamChanges, changes...)
				return
			}
		}
		d.Teams = append(d.Teams, t)
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}

func (m *Memory) PutEvent(ctx context.Context, e models.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.write(func(d *Dump) {
		for i := range d.Events {
			if d.Events[i].SKU == e.SKU {
				d.Events[i] = e
				return
			}
		}
		d.Events = append(d.Events, e)
	})
}

func (m *Memory) PutMatch(ctx context.Context, mt models.Match) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mt.Updated = stamp(mt.Updated)
	return m.write(func(d *Dump) {
		for i := range d.Matches {
			if d.Matches[i].Key == mt.Key {
				d.Matches[i] = mt
				return
			}
		}
		d.Matches = append(d.Matches, mt)
	})
}

func (m *Memory) PutAward(ctx context.Context, a models.Award) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.Updated = stamp(a.Updated)
	return m.write(func(d *Dump) {
		for i := range d.Awards {
			if d.Awards[i].Event == a.Event && d.Awards[i].Name == a.Name {
				d.Awards[i] = a
				return
			}
		}
		d.Awards = append(d.Awards, a)
	})
}

func (m *Memory) PutSkill(ctx context.Context, s models.Skill) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.Updated = stamp(s.Updated)
	return m.write(func(d *Dump) {
		for i, cur := range d.Skills {
			if cur.Event == s.Event && cur.Type == s.Type && sameTeam(cur.Team, s.Team) {
				d.Skills[i] = s
				return
			}
		}
		d.Skills = append(d.Skills, s)
	})
}

func (m *Memory) Subscribe(ctx context.Context, guild string, team models.TeamRef, user string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.write(func(d *Dump) {
		for i, s := range d.TeamSubs {
			if s.Guild == guild && sameTeam(s.Team, team) {
				if !slices.Contains(s.Users, user) {
					d.TeamSubs[i].Users = append(d.TeamSubs[i].Users, user)
				}
				return
			}
		}
		d.TeamSubs = append(d.TeamSubs, models.TeamSub{Guild: guild, Team: team, Users: []string{user}})
	})
}

func (m *Memory) Unsubscribe(ctx context.Context, guild string, team models.TeamRef, user string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	removed := false
	err := m.write(func(d *Dump) {
		for i, s := range d.TeamSubs {
			if s.Guild != guild || !sameTeam(s.Team, team) {
				continue
			}
			if idx := slices.Index(s.Users, user); idx >= 0 {
				d.TeamSubs[i].Users = slices.Delete(slices.Clone(s.Users), idx, idx+1)
				removed = true
			}
		}
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}
