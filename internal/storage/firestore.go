package storage

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/segmentio/fasthash/fnv1a"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"vexbot/internal/models"
	logx "vexbot/pkg/logx"
)

const (
	teamsCollection       = "teams"
	eventsCollection      = "events"
	matchesCollection     = "matches"
	awardsCollection      = "awards"
	skillsCollection      = "skills"
	teamSubsCollection    = "team_subs"
	teamChangesCollection = "team_changes"
)

type firestoreStore struct {
	client *firestore.Client
	log    logx.Logger
}

// fsTeam carries the upper-cased id used for case-insensitive lookups.
type fsTeam struct {
	models.Team
	IDUpper string `firestore:"id_upper"`
}

type fsSkill struct {
	models.Skill
	TeamKey string `firestore:"team_key"`
}

type fsTeamSub struct {
	Guild   string   `firestore:"guild"`
	Program int      `firestore:"prog"`
	ID      string   `firestore:"id"`
	Users   []string `firestore:"users"`
}

func openFirestore(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	project := strings.TrimSpace(cfg.Project)
	if project == "" {
		project = firestore.DetectProjectID
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := firestore.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	log.Info("firestore store opened", logx.String("project", project))
	return &firestoreStore{client: client, log: log}, nil
}

func (s *firestoreStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func teamDocID(prog int, id string, season int) string {
	return fmt.Sprintf("%d-%s-%d", prog, strings.ToUpper(id), season)
}

func subDocID(guild string, team models.TeamRef) string {
	return fmt.Sprintf("%s_%d_%s", guild, team.Program, strings.ToUpper(team.ID))
}

func matchDocID(k models.MatchKey) string {
	return fmt.Sprintf("%s-%s-%d-%d-%d", k.Event, k.Division, k.Round, k.Instance, k.Number)
}

// Award and skill names are free text; hash them into a safe document id.
func awardDocID(a models.Award) string {
	return fmt.Sprintf("%s-%016x", a.Event, fnv1a.HashString64(a.Name))
}

func skillDocID(sk models.Skill) string {
	return fmt.Sprintf("%s-%d-%d-%s", sk.Event, sk.Type, sk.Team.Program, strings.ToUpper(sk.Team.ID))
}

func getAll[T any](ctx context.Context, q firestore.Query) ([]T, error) {
	docs, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, ss := range docs {
		var v T
		if err := ss.DataTo(&v); err != nil {
			return nil, fmt.Errorf("error getting %s data: %w", ss.Ref.ID, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *firestoreStore) FindTeams(ctx context.Context, q TeamQuery) ([]models.Team, error) {
	query := s.client.Collection(teamsCollection).
		Where("prog", "==", q.Program).
		Where("id_upper", "==", strings.ToUpper(q.ID))
	if q.Season != 0 {
		query = query.Where("season", "==", q.Season).Limit(1)
	}
	docs, err := getAll[fsTeam](ctx, query)
	if err != nil {
		return nil, err
	}
	out := make([]models.Team, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Team)
	}
	// Ordered client-side so no composite index is needed.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Season > out[j].Season })
	return out, nil
}

func (s *firestoreStore) GetEvent(ctx context.Context, sku string) (*models.Event, error) {
	ss, err := s.client.Collection(eventsCollection).Doc(sku).Get(ctx)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var e models.Event
	if err := ss.DataTo(&e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *firestoreStore) EventNames(ctx context.Context, skus []string) ([]models.EventName, error) {
	if len(skus) == 0 {
		return nil, nil
	}
	col := s.client.Collection(eventsCollection)
	refs := make([]*firestore.DocumentRef, 0, len(skus))
	for _, sku := range skus {
		refs = append(refs, col.Doc(sku))
	}
	docs, err := s.client.GetAll(ctx, refs)
	if err != nil {
		return nil, err
	}
	var out []models.EventName
	for _, ss := range docs {
		if !ss.Exists() {
			continue
		}
		var n models.EventName
		if err := ss.DataTo(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *firestoreStore) TeamSubs(ctx context.Context, guild string, team models.TeamRef) ([]models.TeamSub, error) {
	ss, err := s.client.Collection(teamSubsCollection).Doc(subDocID(guild, team)).Get(ctx)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var d fsTeamSub
	if err := ss.DataTo(&d); err != nil {
		return nil, err
	}
	if len(d.Users) == 0 {
		return nil, nil
	}
	return []models.TeamSub{{Guild: d.Guild, Team: models.TeamRef{Program: d.Program, ID: d.ID}, Users: d.Users}}, nil
}

func (s *firestoreStore) ListSubs(ctx context.Context, guild string) ([]models.TeamSub, error) {
	q := s.client.Collection(teamSubsCollection).Query
	if guild != "" {
		q = q.Where("guild", "==", guild)
	}
	docs, err := getAll[fsTeamSub](ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]models.TeamSub, 0, len(docs))
	for _, d := range docs {
		if len(d.Users) == 0 {
			continue
		}
		out = append(out, models.TeamSub{Guild: d.Guild, Team: models.TeamRef{Program: d.Program, ID: d.ID}, Users: d.Users})
	}
	return out, nil
}

func (s *firestoreStore) Changes(ctx context.Context, since time.Time, limit int) ([]models.Change, error) {
	recent := func(col, field string) firestore.Query {
		q := s.client.Collection(col).Where(field, ">", since).OrderBy(field, firestore.Asc)
		if limit > 0 {
			q = q.Limit(limit)
		}
		return q
	}

	var out []models.Change

	matches, err := getAll[models.MatchDoc](ctx, recent(matchesCollection, "updated"))
	if err != nil {
		return nil, fmt.Errorf("matches: %w", err)
	}
	for _, d := range matches {
		m := d.Match()
		out = append(out, models.Change{Kind: models.ChangeMatch, At: m.Updated, Match: &m})
	}

	awards, err := getAll[models.Award](ctx, recent(awardsCollection, "updated"))
	if err != nil {
		return nil, fmt.Errorf("awards: %w", err)
	}
	for i := range awards {
		out = append(out, models.Change{Kind: models.ChangeAward, At: awards[i].Updated, Award: &awards[i]})
	}

	skills, err := getAll[fsSkill](ctx, recent(skillsCollection, "updated"))
	if err != nil {
		return nil, fmt.Errorf("skills: %w", err)
	}
	for i := range skills {
		sk := skills[i].Skill
		out = append(out, models.Change{Kind: models.ChangeSkill, At: sk.Updated, Skill: &sk})
	}

	tcs, err := getAll[models.TeamChange](ctx, recent(teamChangesCollection, "at"))
	if err != nil {
		return nil, fmt.Errorf("team changes: %w", err)
	}
	for i := range tcs {
		out = append(out, models.Change{Kind: models.ChangeTeamChange, At: tcs[i].At, TeamChange: &tcs[i]})
	}

	return limitChanges(out, limit), nil
}

func (s *firestoreStore) PutTeam(ctx context.Context, t models.Team) ([]models.TeamChange, error) {
	ref := s.client.Collection(teamsCollection).Doc(teamDocID(t.Program, t.ID, t.Season))
	changesCol := s.client.Collection(teamChangesCollection)

	var changes []models.TeamChange
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		changes = nil
		var old *models.Team
		ss, err := tx.Get(ref)
		switch {
		case isNotFound(err):
		case err != nil:
			return err
		default:
			var d fsTeam
			if err := ss.DataTo(&d); err != nil {
				return err
			}
			old = &d.Team
		}
		if err := tx.Set(ref, fsTeam{Team: t, IDUpper: strings.ToUpper(t.ID)}); err != nil {
			return err
		}
		changes = models.DiffTeam(old, t, stamp(time.Time{}))
		for _, c := range changes {
			if err := tx.Create(changesCol.NewDoc(), c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}

func (s *firestoreStore) PutEvent(ctx context.Context, e models.Event) error {
	_, err := s.client.Collection(eventsCollection).Doc(e.SKU).Set(ctx, e)
	return err
}

func (s *firestoreStore) PutMatch(ctx context.Context, m models.Match) error {
	m.Updated = stamp(m.Updated)
	_, err := s.client.Collection(matchesCollection).Doc(matchDocID(m.Key)).Set(ctx, m.Doc())
	return err
}

func (s *firestoreStore) PutAward(ctx context.Context, a models.Award) error {
	a.Updated = stamp(a.Updated)
	_, err := s.client.Collection(awardsCollection).Doc(awardDocID(a)).Set(ctx, a)
	return err
}

func (s *firestoreStore) PutSkill(ctx context.Context, sk models.Skill) error {
	sk.Updated = stamp(sk.Updated)
	doc := fsSkill{Skill: sk, TeamKey: sk.Team.Key()}
	_, err := s.client.Collection(skillsCollection).Doc(skillDocID(sk)).Set(ctx, doc)
	return err
}

func (s *firestoreStore) Subscribe(ctx context.Context, guild string, team models.TeamRef, user string) error {
	_, err := s.client.Collection(teamSubsCollection).Doc(subDocID(guild, team)).Set(ctx, map[string]any{
		"guild": guild,
		"prog":  team.Program,
		"id":    team.ID,
		"users": firestore.ArrayUnion(user),
	}, firestore.MergeAll)
	return err
}

func (s *firestoreStore) Unsubscribe(ctx context.Context, guild string, team models.TeamRef, user string) (bool, error) {
	ref := s.client.Collection(teamSubsCollection).Doc(subDocID(guild, team))
	removed := false
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		removed = false
		ss, err := tx.Get(ref)
		if isNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		var d fsTeamSub
		if err := ss.DataTo(&d); err != nil {
			return err
		}
		if !slices.Contains(d.Users, user) {
			return nil
		}
		removed = true
		return tx.Update(ref, []firestore.Update{{Path: "users", Value: firestore.ArrayRemove(user)}})
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}
