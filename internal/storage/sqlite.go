package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"vexbot/internal/models"
	logx "vexbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// sqliteStore keeps each record as a JSON document next to the columns it
// is queried by.
type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		_, _ = db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous = NORMAL")

	if err := st.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func scanDocs[T any](rows *sql.Rows) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *sqliteStore) FindTeams(ctx context.Context, q TeamQuery) ([]models.Team, error) {
	query := `SELECT doc FROM teams WHERE id = ? AND prog = ?`
	args := []any{q.ID, q.Program}
	if q.Season != 0 {
		query += ` AND season = ? LIMIT 1`
		args = append(args, q.Season)
	} else {
		query += ` ORDER BY season DESC`
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	teams, err := scanDocs[models.Team](rows)
	if err != nil {
		return nil, err
	}
	if teams == nil {
		teams = []models.Team{}
	}
	return teams, nil
}

func (s *sqliteStore) GetEvent(ctx context.Context, sku string) (*models.Event, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM events WHERE sku = ?`, sku).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var e models.Event
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *sqliteStore) EventNames(ctx context.Context, skus []string) ([]models.EventName, error) {
	if len(skus) == 0 {
		return nil, nil
	}
	marks := strings.TrimSuffix(strings.Repeat("?,", len(skus)), ",")
	args := make([]any, len(skus))
	for i, sku := range skus {
		args[i] = sku
	}
	rows, err := s.db.QueryContext(ctx, `SELECT sku, name FROM events WHERE sku IN (`+marks+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.EventName
	for rows.Next() {
		var n models.EventName
		if err := rows.Scan(&n.SKU, &n.Name); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *sqliteStore) TeamSubs(ctx context.Context, guild string, team models.TeamRef) ([]models.TeamSub, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user FROM team_subs WHERE guild = ? AND team_prog = ? AND team_id = ? ORDER BY rowid`,
		guild, team.Program, team.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return []models.TeamSub{{Guild: guild, Team: team, Users: users}}, nil
}

func (s *sqliteStore) ListSubs(ctx context.Context, guild string) ([]models.TeamSub, error) {
	query := `SELECT guild, team_prog, team_id, user FROM team_subs`
	var args []any
	if guild != "" {
		query += ` WHERE guild = ?`
		args = append(args, guild)
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY guild, team_prog, team_id, rowid`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.TeamSub
	for rows.Next() {
		var (
			g, id, user string
			prog        int
		)
		if err := rows.Scan(&g, &prog, &id, &user); err != nil {
			return nil, err
		}
		ref := models.TeamRef{Program: prog, ID: id}
		if n := len(out); n > 0 && out[n-1].Guild == g && sameTeam(out[n-1].Team, ref) {
			out[n-1].Users = append(out[n-1].Users, user)
			continue
		}
		out = append(out, models.TeamSub{Guild: g, Team: ref, Users: []string{user}})
	}
	return out, rows.Err()
}

func (s *sqliteStore) Changes(ctx context.Context, since time.Time, limit int) ([]models.Change, error) {
	ms := since.UnixMilli()
	tail := ` ORDER BY updated`
	if limit > 0 {
		tail += fmt.Sprintf(" LIMIT %d", limit)
	}

	var out []models.Change

	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM matches WHERE updated > ?`+tail, ms)
	if err != nil {
		return nil, err
	}
	matches, err := scanDocs[models.Match](rows)
	if err != nil {
		return nil, err
	}
	for i := range matches {
		out = append(out, models.Change{Kind: models.ChangeMatch, At: matches[i].Updated, Match: &matches[i]})
	}

	rows, err = s.db.QueryContext(ctx, `SELECT doc FROM awards WHERE updated > ?`+tail, ms)
	if err != nil {
		return nil, err
	}
	awards, err := scanDocs[models.Award](rows)
	if err != nil {
		return nil, err
	}
	for i := range awards {
		out = append(out, models.Change{Kind: models.ChangeAward, At: awards[i].Updated, Award: &awards[i]})
	}

	rows, err = s.db.QueryContext(ctx, `SELECT doc FROM skills WHERE updated > ?`+tail, ms)
	if err != nil {
		return nil, err
	}
	skills, err := scanDocs[models.Skill](rows)
	if err != nil {
		return nil, err
	}
	for i := range skills {
		out = append(out, models.Change{Kind: models.ChangeSkill, At: skills[i].Updated, Skill: &skills[i]})
	}

	rows, err = s.db.QueryContext(ctx, `SELECT doc FROM team_changes WHERE at > ? ORDER BY at, seq`, ms)
	if err != nil {
		return nil, err
	}
	tcs, err := scanDocs[models.TeamChange](rows)
	if err != nil {
		return nil, err
	}
	for i := range tcs {
		out = append(out, models.Change{Kind: models.ChangeTeamChange, At: tcs[i].At, TeamChange: &tcs[i]})
	}

	return limitChanges(out, limit), nil
}

func (s *sqliteStore) PutTeam(ctx context.Context, t models.Team) ([]models.TeamChange, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var old *models.Team
	var raw string
	err = tx.QueryRowContext(ctx, `SELECT doc FROM teams WHERE prog = ? AND id = ? AND season = ?`,
		t.Program, t.ID, t.Season).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, err
	default:
		old = &models.Team{}
		if err := json.Unmarshal([]byte(raw), old); err != nil {
			return nil, err
		}
	}

	doc, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO teams(prog, id, season, doc) VALUES(?,?,?,?)
		 ON CONFLICT(prog, id, season) DO UPDATE SET doc = excluded.doc`,
		t.Program, t.ID, t.Season, string(doc)); err != nil {
		return nil, err
	}

	changes := models.DiffTeam(old, t, stamp(time.Time{}))
	for _, c := range changes {
		b, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO team_changes(at, doc) VALUES(?,?)`, c.At.UnixMilli(), string(b)); err != nil {
			return nil, err
		}
	}
	return changes, tx.Commit()
}

func (s *sqliteStore) PutEvent(ctx context.Context, e models.Event) error {
	doc, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events(sku, name, doc) VALUES(?,?,?)
		 ON CONFLICT(sku) DO UPDATE SET name = excluded.name, doc = excluded.doc`,
		e.SKU, e.Name, string(doc))
	return err
}

func (s *sqliteStore) PutMatch(ctx context.Context, m models.Match) error {
	m.Updated = stamp(m.Updated)
	doc, err := json.Marshal(m)
	if err != nil {
		return err
	}
	k := m.Key
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO matches(event, division, round, instance, number, updated, doc) VALUES(?,?,?,?,?,?,?)
		 ON CONFLICT(event, division, round, instance, number) DO UPDATE SET updated = excluded.updated, doc = excluded.doc`,
		k.Event, k.Division, k.Round, k.Instance, k.Number, m.Updated.UnixMilli(), string(doc))
	return err
}

func (s *sqliteStore) PutAward(ctx context.Context, a models.Award) error {
	a.Updated = stamp(a.Updated)
	doc, err := json.Marshal(a)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO awards(event, name, updated, doc) VALUES(?,?,?,?)
		 ON CONFLICT(event, name) DO UPDATE SET updated = excluded.updated, doc = excluded.doc`,
		a.Event, a.Name, a.Updated.UnixMilli(), string(doc))
	return err
}

func (s *sqliteStore) PutSkill(ctx context.Context, sk models.Skill) error {
	sk.Updated = stamp(sk.Updated)
	doc, err := json.Marshal(sk)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO skills(event, type, team_prog, team_id, updated, doc) VALUES(?,?,?,?,?,?)
		 ON CONFLICT(event, type, team_prog, team_id) DO UPDATE SET updated = excluded.updated, doc = excluded.doc`,
		sk.Event, sk.Type, sk.Team.Program, sk.Team.ID, sk.Updated.UnixMilli(), string(doc))
	return err
}

func (s *sqliteStore) Subscribe(ctx context.Context, guild string, team models.TeamRef, user string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO team_subs(guild, team_prog, team_id, user) VALUES(?,?,?,?) ON CONFLICT DO NOTHING`,
		guild, team.Program, team.ID, user)
	return err
}

func (s *sqliteStore) Unsubscribe(ctx context.Context, guild string, team models.TeamRef, user string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM team_subs WHERE guild = ? AND team_prog = ? AND team_id = ? AND user = ?`,
		guild, team.Program, team.ID, user)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
