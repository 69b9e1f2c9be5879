package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/creatormatch/backend/match"
)

var errNotFound = errors.New("not found")

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

func execSQL(ctx context.Context, q queryer, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return q.ExecContext(ctx, query, args...)
}

func querySQL(ctx context.Context, q queryer, b sq.Sqlizer) (*sql.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return q.QueryContext(ctx, query, args...)
}

func queryRowSQL(ctx context.Context, q queryer, b sq.Sqlizer) (*sql.Row, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return q.QueryRowContext(ctx, query, args...), nil
}

func nowNanos() int64 { return time.Now().UTC().UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

// encodeSet stores a tag set as JSON text; nil becomes "[]".
func encodeSet[T any](values []T) (string, error) {
	if values == nil {
		values = []T{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeSet[T any](raw string, dst *[]T) error {
	*dst = []T{}
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dst)
}

// --- creators ---

var creatorColumns = []string{
	"id", "auth_id", "name", "age", "gender", "location",
	"content_niches", "skill_level", "platforms", "goals", "timezone",
	"languages", "vibes", "bio", "avatar_url",
	"onboarding_completed", "preferences", "created_at", "updated_at",
}

func prefixed(alias string, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = alias + "." + c
	}
	return out
}

func scanCreator(row rowScanner) (*Creator, error) {
	var (
		c                                          Creator
		niches, platforms, goals, languages, vibes string
		timezone                                   int
		prefs                                      sql.NullString
		createdAt, updatedAt                       int64
	)
	if err := row.Scan(
		&c.ID, &c.AuthID, &c.Name, &c.Age, &c.Gender, &c.Location,
		&niches, &c.SkillLevel, &platforms, &goals, &timezone,
		&languages, &vibes, &c.Bio, &c.AvatarURL,
		&c.OnboardingCompleted, &prefs, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	for _, f := range []func() error{
		func() error { return decodeSet(niches, &c.ContentNiches) },
		func() error { return decodeSet(platforms, &c.Platforms) },
		func() error { return decodeSet(goals, &c.Goals) },
		func() error { return decodeSet(languages, &c.Languages) },
		func() error { return decodeSet(vibes, &c.Vibes) },
	} {
		if err := f(); err != nil {
			return nil, fmt.Errorf("decode creator %s: %w", c.ID, err)
		}
	}
	if prefs.Valid && prefs.String != "" {
		c.Preferences = &Preferences{}
		if err := json.Unmarshal([]byte(prefs.String), c.Preferences); err != nil {
			return nil, fmt.Errorf("decode preferences of %s: %w", c.ID, err)
		}
	}
	c.Timezone = match.Offset(timezone)
	c.CreatedAt = fromNanos(createdAt)
	c.UpdatedAt = fromNanos(updatedAt)
	return &c, nil
}

func collectCreators(rows *sql.Rows) ([]*Creator, error) {
	defer rows.Close()
	var out []*Creator
	for rows.Next() {
		c, err := scanCreator(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// creatorSets returns the JSON columns of c in creatorColumns order.
func creatorSets(c *Creator) (niches, platforms, goals, languages, vibes string, err error) {
	if niches, err = encodeSet(c.ContentNiches); err != nil {
		return
	}
	if platforms, err = encodeSet(c.Platforms); err != nil {
		return
	}
	if goals, err = encodeSet(c.Goals); err != nil {
		return
	}
	if languages, err = encodeSet(c.Languages); err != nil {
		return
	}
	vibes, err = encodeSet(c.Vibes)
	return
}

// insertCreator assigns an id and timestamps when missing.
func (s *store) insertCreator(ctx context.Context, c *Creator) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := nowNanos()
	c.CreatedAt, c.UpdatedAt = fromNanos(now), fromNanos(now)

	niches, platforms, goals, languages, vibes, err := creatorSets(c)
	if err != nil {
		return fmt.Errorf("encode creator: %w", err)
	}
	var prefs any
	if c.Preferences != nil {
		b, err := json.Marshal(c.Preferences)
		if err != nil {
			return fmt.Errorf("encode preferences: %w", err)
		}
		prefs = string(b)
	}

	_, err = execSQL(ctx, s.db, s.sb.Insert("creators").Columns(creatorColumns...).Values(
		c.ID, c.AuthID, c.Name, c.Age, c.Gender, c.Location,
		niches, string(c.SkillLevel), platforms, goals, int(c.Timezone),
		languages, vibes, c.Bio, c.AvatarURL,
		c.OnboardingCompleted, prefs, now, now,
	))
	if err != nil {
		return fmt.Errorf("insert creator: %w", err)
	}
	return nil
}

func (s *store) creatorBy(ctx context.Context, col, value string) (*Creator, error) {
	row, err := queryRowSQL(ctx, s.db, s.sb.Select(creatorColumns...).From("creators").Where(sq.Eq{col: value}))
	if err != nil {
		return nil, err
	}
	c, err := scanCreator(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load creator: %w", err)
	}
	return c, nil
}

func (s *store) creatorByID(ctx context.Context, id string) (*Creator, error) {
	return s.creatorBy(ctx, "id", id)
}

func (s *store) creatorByAuthID(ctx context.Context, authID string) (*Creator, error) {
	return s.creatorBy(ctx, "auth_id", authID)
}

// creatorsByIDs returns the creators found among ids, in no particular order.
func (s *store) creatorsByIDs(ctx context.Context, ids []string) ([]*Creator, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := querySQL(ctx, s.db, s.sb.Select(creatorColumns...).From("creators").Where(sq.Eq{"id": ids}))
	if err != nil {
		return nil, fmt.Errorf("load creators: %w", err)
	}
	return collectCreators(rows)
}

// candidateCreators lists every creator other than creatorID that has no match
// with creatorID in either direction.
func (s *store) candidateCreators(ctx context.Context, creatorID string) ([]*Creator, error) {
	q := s.sb.Select(prefixed("c", creatorColumns)...).
		From("creators c").
		Where(sq.NotEq{"c.id": creatorID}).
		Where(`NOT EXISTS (
			SELECT 1 FROM matches m
			WHERE (m.creator_id_1 = ? AND m.creator_id_2 = c.id)
			   OR (m.creator_id_1 = c.id AND m.creator_id_2 = ?)
		)`, creatorID, creatorID).
		OrderBy("c.id")
	rows, err := querySQL(ctx, s.db, q)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}
	return collectCreators(rows)
}

// updateCreatorProfile replaces the editable attributes of c.
func (s *store) updateCreatorProfile(ctx context.Context, c *Creator) error {
	niches, platforms, goals, languages, vibes, err := creatorSets(c)
	if err != nil {
		return fmt.Errorf("encode creator: %w", err)
	}
	now := nowNanos()
	res, err := execSQL(ctx, s.db, s.sb.Update("creators").SetMap(map[string]any{
		"name":           c.Name,
		"age":            c.Age,
		"gender":         c.Gender,
		"location":       c.Location,
		"content_niches": niches,
		"skill_level":    string(c.SkillLevel),
		"platforms":      platforms,
		"goals":          goals,
		"timezone":       int(c.Timezone),
		"languages":      languages,
		"vibes":          vibes,
		"bio":            c.Bio,
		"avatar_url":     c.AvatarURL,
		"updated_at":     now,
	}).Where(sq.Eq{"id": c.ID}))
	if err != nil {
		return fmt.Errorf("update creator: %w", err)
	}
	if err := expectRow(res); err != nil {
		return err
	}
	c.UpdatedAt = fromNanos(now)
	return nil
}

func (s *store) completeOnboarding(ctx context.Context, creatorID string, prefs Preferences) error {
	b, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	res, err := execSQL(ctx, s.db, s.sb.Update("creators").
		Set("onboarding_completed", true).
		Set("preferences", string(b)).
		Set("updated_at", nowNanos()).
		Where(sq.Eq{"id": creatorID}))
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return expectRow(res)
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errNotFound
	}
	return nil
}

// --- matches ---

var matchColumns = []string{"id", "creator_id_1", "creator_id_2", "status", "suggested_collabs", "created_at", "updated_at"}

func scanMatch(row rowScanner) (*Match, error) {
	var (
		m                    Match
		collabs              string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&m.ID, &m.CreatorID1, &m.CreatorID2, &m.Status, &collabs, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := decodeSet(collabs, &m.SuggestedCollabs); err != nil {
		return nil, fmt.Errorf("decode match %s: %w", m.ID, err)
	}
	m.CreatedAt = fromNanos(createdAt)
	m.UpdatedAt = fromNanos(updatedAt)
	return &m, nil
}

func (s *store) loadMatch(ctx context.Context, q queryer, b sq.SelectBuilder) (*Match, error) {
	row, err := queryRowSQL(ctx, q, b)
	if err != nil {
		return nil, err
	}
	m, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load match: %w", err)
	}
	return m, nil
}

func (s *store) matchByID(ctx context.Context, id string) (*Match, error) {
	return s.loadMatch(ctx, s.db, s.sb.Select(matchColumns...).From("matches").Where(sq.Eq{"id": id}))
}

// matchForUpdate loads and locks a match inside tx.
func (s *store) matchForUpdate(ctx context.Context, tx *sql.Tx, id string) (*Match, error) {
	return s.loadMatch(ctx, tx, s.forUpdate(s.sb.Select(matchColumns...).From("matches").Where(sq.Eq{"id": id})))
}

// loadPairForUpdate returns the match between a and b in either direction and
// locks it until tx finishes. Returns (nil, nil) when the pair has no match yet.
func (s *store) loadPairForUpdate(ctx context.Context, tx *sql.Tx, a, b string) (*Match, error) {
	q := s.sb.Select(matchColumns...).From("matches").
		Where(sq.Or{
			sq.Eq{"creator_id_1": a, "creator_id_2": b},
			sq.Eq{"creator_id_1": b, "creator_id_2": a},
		}).
		OrderBy("updated_at DESC", "id DESC").
		Limit(1)
	m, err := s.loadMatch(ctx, tx, s.forUpdate(q))
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	return m, err
}

// matchesForCreator lists every match creatorID takes part in, most recently updated first.
func (s *store) matchesForCreator(ctx context.Context, creatorID string) ([]*Match, error) {
	rows, err := querySQL(ctx, s.db, s.sb.Select(matchColumns...).From("matches").
		Where(sq.Or{sq.Eq{"creator_id_1": creatorID}, sq.Eq{"creator_id_2": creatorID}}).
		OrderBy("updated_at DESC", "id DESC"))
	if err != nil {
		return nil, fmt.Errorf("load matches: %w", err)
	}
	defer rows.Close()

	var out []*Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *store) insertMatch(ctx context.Context, q queryer, m *Match) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	collabs, err := encodeSet(m.SuggestedCollabs)
	if err != nil {
		return fmt.Errorf("encode collabs: %w", err)
	}
	now := nowNanos()
	m.CreatedAt, m.UpdatedAt = fromNanos(now), fromNanos(now)
	_, err = execSQL(ctx, q, s.sb.Insert("matches").Columns(matchColumns...).
		Values(m.ID, m.CreatorID1, m.CreatorID2, string(m.Status), collabs, now, now))
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	return nil
}

func (s *store) setMatchStatus(ctx context.Context, q queryer, m *Match, status MatchStatus) error {
	now := nowNanos()
	res, err := execSQL(ctx, q, s.sb.Update("matches").
		Set("status", string(status)).
		Set("updated_at", now).
		Where(sq.Eq{"id": m.ID}))
	if err != nil {
		return fmt.Errorf("update match: %w", err)
	}
	if err := expectRow(res); err != nil {
		return err
	}
	m.Status = status
	m.UpdatedAt = fromNanos(now)
	return nil
}

// --- messages ---

var messageColumns = []string{"id", "match_id", "sender_id", "content", "created_at"}

func (s *store) insertMessage(ctx context.Context, m *Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := nowNanos()
	m.CreatedAt = fromNanos(now)
	_, err := execSQL(ctx, s.db, s.sb.Insert("messages").Columns(messageColumns...).
		Values(m.ID, m.MatchID, m.SenderID, m.Content, now))
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// messagesForMatch returns up to limit messages older than before (zero = no bound),
// oldest first.
func (s *store) messagesForMatch(ctx context.Context, matchID string, before time.Time, limit int) ([]*Message, error) {
	q := s.sb.Select(messageColumns...).From("messages").
		Where(sq.Eq{"match_id": matchID}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit))
	if !before.IsZero() {
		q = q.Where(sq.Lt{"created_at": before.UTC().UnixNano()})
	}
	rows, err := querySQL(ctx, s.db, q)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	out := []*Message{}
	for rows.Next() {
		var (
			m         Message
			createdAt int64
		)
		if err := rows.Scan(&m.ID, &m.MatchID, &m.SenderID, &m.Content, &createdAt); err != nil {
			return nil, err
		}
		m.CreatedAt = fromNanos(createdAt)
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}

// truncate empties every table. Used by the seeder.
func (s *store) truncate(ctx context.Context) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, table := range []string{"messages", "matches", "creators"} {
			if _, err := execSQL(ctx, tx, s.sb.Delete(table)); err != nil {
				return fmt.Errorf("truncate %s: %w", table, err)
			}
		}
		return nil
	})
}
