package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vexbot/internal/models"
	logx "vexbot/pkg/logx"
)

func openDriver(t *testing.T, driver string) Store {
	t.Helper()
	if driver == "memory" {
		return NewMemory(Dump{})
	}
	st, err := Open(context.Background(), Config{
		Driver: driver,
		Path:   filepath.Join(t.TempDir(), "vexbot."+driver),
	}, logx.Nop())
	if err != nil {
		t.Fatalf("open %s: %v", driver, err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

var drivers = []string{"memory", "file", "sqlite"}

func TestFindTeamsOrdering(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			st := openDriver(t, driver)
			for _, season := range []int{139, 173, 154} {
				if _, err := st.PutTeam(ctx, models.Team{Program: 1, ID: "1234A", Season: season, Name: "Gears"}); err != nil {
					t.Fatalf("PutTeam: %v", err)
				}
			}

			got, err := st.FindTeams(ctx, TeamQuery{ID: "1234a", Program: 1})
			if err != nil {
				t.Fatalf("FindTeams: %v", err)
			}
			if len(got) != 3 || got[0].Season != 173 || got[2].Season != 139 {
				t.Fatalf("unexpected order: %+v", got)
			}

			got, err = st.FindTeams(ctx, TeamQuery{ID: "1234A", Program: 1, Season: 154})
			if err != nil {
				t.Fatalf("FindTeams season: %v", err)
			}
			if len(got) != 1 || got[0].Season != 154 {
				t.Fatalf("expected season 154, got %+v", got)
			}

			got, err = st.FindTeams(ctx, TeamQuery{ID: "1234A", Program: 4})
			if err != nil {
				t.Fatalf("FindTeams other program: %v", err)
			}
			if len(got) != 0 {
				t.Fatalf("expected no teams, got %+v", got)
			}
		})
	}
}

func TestPutTeamRecordsChanges(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			st := openDriver(t, driver)
			team := models.Team{Program: 1, ID: "99X", Season: 173, Name: "Old", City: "Austin"}
			changes, err := st.PutTeam(ctx, team)
			if err != nil || len(changes) != 0 {
				t.Fatalf("first PutTeam: %v %+v", err, changes)
			}
			team.Name = "New"
			changes, err = st.PutTeam(ctx, team)
			if err != nil {
				t.Fatalf("second PutTeam: %v", err)
			}
			if len(changes) != 1 || changes[0].Field != "team name" || changes[0].Old != "Old" || changes[0].New != "New" {
				t.Fatalf("unexpected changes: %+v", changes)
			}

			feed, err := st.Changes(ctx, time.Time{}, 0)
			if err != nil {
				t.Fatalf("Changes: %v", err)
			}
			if len(feed) != 1 || feed[0].Kind != models.ChangeTeamChange {
				t.Fatalf("expected one team change in feed, got %+v", feed)
			}
		})
	}
}

func TestEventLookups(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			st := openDriver(t, driver)
			for _, e := range []models.Event{
				{SKU: "RE-VRC-23-1000", Name: "Alpha", Program: 1},
				{SKU: "RE-VRC-23-2000", Name: "Beta", Program: 1},
			} {
				if err := st.PutEvent(ctx, e); err != nil {
					t.Fatalf("PutEvent: %v", err)
				}
			}

			e, err := st.GetEvent(ctx, "RE-VRC-23-2000")
			if err != nil || e == nil || e.Name != "Beta" {
				t.Fatalf("GetEvent: %v %+v", err, e)
			}
			e, err = st.GetEvent(ctx, "missing")
			if err != nil || e != nil {
				t.Fatalf("missing event should be nil, got %v %+v", err, e)
			}

			names, err := st.EventNames(ctx, []string{"RE-VRC-23-1000", "missing", "RE-VRC-23-2000"})
			if err != nil {
				t.Fatalf("EventNames: %v", err)
			}
			if len(names) != 2 {
				t.Fatalf("expected 2 names, got %+v", names)
			}
		})
	}
}

func TestSubscriptions(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			st := openDriver(t, driver)
			team := models.TeamRef{Program: 1, ID: "5225A"}
			for _, u := range []string{"10", "20", "10"} {
				if err := st.Subscribe(ctx, "-100", team, u); err != nil {
					t.Fatalf("Subscribe: %v", err)
				}
			}

			subs, err := st.TeamSubs(ctx, "-100", models.TeamRef{Program: 1, ID: "5225a"})
			if err != nil {
				t.Fatalf("TeamSubs: %v", err)
			}
			if len(subs) != 1 || len(subs[0].Users) != 2 || subs[0].Users[0] != "10" {
				t.Fatalf("unexpected subs: %+v", subs)
			}

			subs, err = st.TeamSubs(ctx, "-200", team)
			if err != nil || len(subs) != 0 {
				t.Fatalf("other guild should have no subs: %v %+v", err, subs)
			}

			ok, err := st.Unsubscribe(ctx, "-100", team, "10")
			if err != nil || !ok {
				t.Fatalf("Unsubscribe: %v %v", ok, err)
			}
			ok, err = st.Unsubscribe(ctx, "-100", team, "10")
			if err != nil || ok {
				t.Fatalf("second Unsubscribe should report false: %v %v", ok, err)
			}

			all, err := st.ListSubs(ctx, "")
			if err != nil {
				t.Fatalf("ListSubs: %v", err)
			}
			if len(all) != 1 || len(all[0].Users) != 1 || all[0].Users[0] != "20" {
				t.Fatalf("unexpected list: %+v", all)
			}
		})
	}
}

func TestChangesOrderAndLimit(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			st := openDriver(t, driver)
			base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
			score := models.Score{Red: 10, Blue: 4}

			if err := st.PutAward(ctx, models.Award{Event: "E", Name: "Excellence Award", Updated: base.Add(2 * time.Second)}); err != nil {
				t.Fatalf("PutAward: %v", err)
			}
			if err := st.PutMatch(ctx, models.Match{
				Key:     models.MatchKey{Event: "E", Division: "1", Round: 2, Instance: 1, Number: 7},
				Program: 1,
				Red:     models.Alliance{Teams: [3]string{"1A", "2A"}},
				Blue:    models.Alliance{Teams: [3]string{"3A", "4A"}},
				State:   models.Played{Actual: score},
				Updated: base.Add(time.Second),
			}); err != nil {
				t.Fatalf("PutMatch: %v", err)
			}
			if err := st.PutSkill(ctx, models.Skill{Event: "E", Type: 2, Team: models.TeamRef{Program: 1, ID: "1A"}, Score: 40, Updated: base.Add(3 * time.Second)}); err != nil {
				t.Fatalf("PutSkill: %v", err)
			}

			feed, err := st.Changes(ctx, base, 2)
			if err != nil {
				t.Fatalf("Changes: %v", err)
			}
			if len(feed) != 2 || feed[0].Kind != models.ChangeMatch || feed[1].Kind != models.ChangeAward {
				t.Fatalf("unexpected feed: %+v", feed)
			}
			if got, ok := models.ActualScore(feed[0].Match.State); !ok || got != score {
				t.Fatalf("match state lost: %+v", feed[0].Match.State)
			}

			feed, err = st.Changes(ctx, base.Add(2*time.Second), 0)
			if err != nil {
				t.Fatalf("Changes: %v", err)
			}
			if len(feed) != 1 || feed[0].Kind != models.ChangeSkill {
				t.Fatalf("expected only the skill, got %+v", feed)
			}
		})
	}
}

func TestFileStoreReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "vexbot.json")
	cfg := Config{Driver: "file", Path: path}

	st, err := Open(ctx, cfg, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := st.Subscribe(ctx, "-1", models.TeamRef{Program: 41, ID: "123B"}, "7"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	_ = st.Close()

	st, err = Open(ctx, cfg, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	subs, err := st.ListSubs(ctx, "-1")
	if err != nil || len(subs) != 1 || subs[0].Users[0] != "7" {
		t.Fatalf("subscription not persisted: %v %+v", err, subs)
	}
}

func TestOpenDriverSelection(t *testing.T) {
	st, err := Open(context.Background(), Config{Driver: ""}, logx.Nop())
	if err != nil || st != nil {
		t.Fatalf("empty driver should disable storage: %v %v", st, err)
	}
	_, err = Open(context.Background(), Config{Driver: "mongo"}, logx.Nop())
	if !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("expected ErrUnknownDriver, got %v", err)
	}
	_, err = Open(context.Background(), Config{Driver: "sqlite"}, logx.Nop())
	if err == nil {
		t.Fatalf("sqlite without path should fail")
	}
}

func TestFailedSnapshotDiscardsWrite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ref := models.TeamRef{Program: 1, ID: "229V"}
	m := NewMemory(Dump{
		Teams:    []models.Team{{Program: 1, ID: "229V", Season: 181, Name: "Ace"}},
		TeamSubs: []models.TeamSub{{Guild: "-1", Team: ref, Users: []string{"7"}}},
	})
	errDisk := errors.New("disk full")
	m.onWrite = func(*Dump) error { return errDisk }

	if err := m.Subscribe(ctx, "-1", ref, "8"); !errors.Is(err, errDisk) {
		t.Fatalf("Subscribe err = %v", err)
	}
	changes, err := m.PutTeam(ctx, models.Team{Program: 1, ID: "229V", Season: 181, Name: "Renamed"})
	if !errors.Is(err, errDisk) || changes != nil {
		t.Fatalf("PutTeam = %+v, %v", changes, err)
	}
	if removed, err := m.Unsubscribe(ctx, "-1", ref, "7"); removed || !errors.Is(err, errDisk) {
		t.Fatalf("Unsubscribe = %v, %v", removed, err)
	}

	subs, _ := m.TeamSubs(ctx, "-1", ref)
	if len(subs) != 1 || len(subs[0].Users) != 1 || subs[0].Users[0] != "7" {
		t.Fatalf("subscriptions changed: %+v", subs)
	}
	teams, _ := m.FindTeams(ctx, TeamQuery{ID: "229V", Program: 1})
	if len(teams) != 1 || teams[0].Name != "Ace" {
		t.Fatalf("team changed: %+v", teams)
	}
	if got, _ := m.Changes(ctx, time.Time{}, 0); len(got) != 0 {
		t.Fatalf("team change recorded: %+v", got)
	}

	m.onWrite = nil
	if err := m.Subscribe(ctx, "-1", ref, "8"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if subs, _ := m.TeamSubs(ctx, "-1", ref); len(subs[0].Users) != 2 {
		t.Fatalf("write after recovery: %+v", subs)
	}
}

func TestFileStoreUnwritableSnapshot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "data")
	st, err := Open(ctx, Config{Driver: "file", Path: filepath.Join(dir, "vexbot.json")}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()

	// A regular file where the directory was makes every snapshot fail.
	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := os.WriteFile(dir, nil, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	ref := models.TeamRef{Program: 1, ID: "229V"}
	if err := st.Subscribe(ctx, "-1", ref, "7"); err == nil {
		t.Fatalf("Subscribe succeeded without a snapshot")
	}
	if subs, _ := st.ListSubs(ctx, "-1"); len(subs) != 0 {
		t.Fatalf("unsaved subscription served: %+v", subs)
	}
}
