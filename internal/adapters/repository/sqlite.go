package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/feisworks/feispoints/internal/domain/model"
	"github.com/feisworks/feispoints/pkg/metrics"
)

const schema = `
CREATE TABLE IF NOT EXISTS raw_scores (
	round_id      TEXT NOT NULL,
	judge_id      TEXT NOT NULL,
	competitor_id TEXT NOT NULL,
	value         REAL NOT NULL,
	notes         TEXT NOT NULL DEFAULT '',
	updated_at    TEXT NOT NULL,
	PRIMARY KEY (round_id, judge_id, competitor_id)
);

CREATE TABLE IF NOT EXISTS placements (
	id                    TEXT PRIMARY KEY,
	dancer_id             TEXT NOT NULL,
	competition_id        TEXT NOT NULL,
	feis_id               TEXT NOT NULL,
	entry_id              TEXT NOT NULL,
	rank                  INTEGER NOT NULL,
	points                REAL NOT NULL,
	dance_type            TEXT NOT NULL,
	level                 TEXT NOT NULL,
	competition_date      TEXT NOT NULL,
	triggered_advancement INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_placements_dancer ON placements(dancer_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_placements_dancer_comp
	ON placements(dancer_id, competition_id);

CREATE TABLE IF NOT EXISTS notices (
	id                      TEXT PRIMARY KEY,
	dancer_id               TEXT NOT NULL,
	from_level              TEXT NOT NULL,
	to_level                TEXT NOT NULL,
	dance_type              TEXT NOT NULL,
	acknowledged            INTEGER NOT NULL DEFAULT 0,
	acknowledged_at         TEXT,
	acknowledged_by         TEXT NOT NULL DEFAULT '',
	overridden              INTEGER NOT NULL DEFAULT 0,
	overridden_by           TEXT NOT NULL DEFAULT '',
	override_reason         TEXT NOT NULL DEFAULT '',
	triggering_placement_id TEXT NOT NULL DEFAULT '',
	created_at              TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_notices_tuple
	ON notices(dancer_id, from_level, dance_type);
CREATE INDEX IF NOT EXISTS idx_notices_dancer ON notices(dancer_id);
`

// SQLiteStore implements Store on a SQLite database. The unique index
// on (dancer_id, from_level, dance_type) gives the duplicate-notice
// guard a persistence-level backstop: two racing finalization passes
// cannot both insert a notice for the same qualifying event.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed creates) the database at dsn.
// ":memory:" gives an ephemeral store.
func NewSQLiteStore(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	// SQLite allows one writer; a single connection sidesteps
	// SQLITE_BUSY under concurrent finalization.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// SaveRawScore upserts a judge's mark; last write wins.
func (s *SQLiteStore) SaveRawScore(ctx context.Context, score model.RawScore) error {
	start := time.Now()
	defer func() { metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds())) }()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO raw_scores (round_id, judge_id, competitor_id, value, notes, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (round_id, judge_id, competitor_id)
		DO UPDATE SET value = excluded.value, notes = excluded.notes, updated_at = excluded.updated_at`,
		string(score.RoundID), string(score.JudgeID), string(score.CompetitorID),
		score.Value, score.Notes, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save raw score: %w", err)
	}
	return nil
}

// RawScores returns all scores for a round.
func (s *SQLiteStore) RawScores(ctx context.Context, roundID model.RoundID) ([]model.RawScore, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds())) }()

	rows, err := s.db.QueryContext(ctx, `
		SELECT round_id, judge_id, competitor_id, value, notes
		FROM raw_scores WHERE round_id = ?
		ORDER BY judge_id, competitor_id`, string(roundID))
	if err != nil {
		return nil, fmt.Errorf("query raw scores: %w", err)
	}
	defer rows.Close()

	var out []model.RawScore
	for rows.Next() {
		var sc model.RawScore
		var round, judge, competitor string
		if err := rows.Scan(&round, &judge, &competitor, &sc.Value, &sc.Notes); err != nil {
			return nil, fmt.Errorf("scan raw score: %w", err)
		}
		sc.RoundID = model.RoundID(round)
		sc.JudgeID = model.JudgeID(judge)
		sc.CompetitorID = model.CompetitorID(competitor)
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate raw scores: %w", err)
	}
	return out, nil
}

// SavePlacement upserts one placement record per (dancer, competition).
// On conflict the result fields are refreshed; the row's id and
// triggered_advancement flag are kept so notices referencing the
// placement stay valid.
func (s *SQLiteStore) SavePlacement(ctx context.Context, p model.PlacementHistory) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO placements
			(id, dancer_id, competition_id, feis_id, entry_id, rank, points,
			 dance_type, level, competition_date, triggered_advancement)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (dancer_id, competition_id)
		DO UPDATE SET
			feis_id = excluded.feis_id,
			entry_id = excluded.entry_id,
			rank = excluded.rank,
			points = excluded.points,
			dance_type = excluded.dance_type,
			level = excluded.level,
			competition_date = excluded.competition_date`,
		p.ID, string(p.DancerID), string(p.CompetitionID), string(p.FeisID),
		string(p.EntryID), p.Rank, p.Points, string(p.DanceType), string(p.Level),
		p.CompetitionDate.UTC().Format(time.RFC3339), boolToInt(p.TriggeredAdvancement),
	)
	if err != nil {
		return fmt.Errorf("save placement: %w", err)
	}
	return nil
}

// Placements returns a dancer's placement history, oldest first.
func (s *SQLiteStore) Placements(ctx context.Context, dancerID model.DancerID) ([]model.PlacementHistory, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds())) }()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, dancer_id, competition_id, feis_id, entry_id, rank, points,
		       dance_type, level, competition_date, triggered_advancement
		FROM placements WHERE dancer_id = ?
		ORDER BY competition_date, id`, string(dancerID))
	if err != nil {
		return nil, fmt.Errorf("query placements: %w", err)
	}
	defer rows.Close()

	var out []model.PlacementHistory
	for rows.Next() {
		var p model.PlacementHistory
		var dancer, comp, feis, entry, dance, level, date string
		var triggered int
		if err := rows.Scan(&p.ID, &dancer, &comp, &feis, &entry, &p.Rank, &p.Points,
			&dance, &level, &date, &triggered); err != nil {
			return nil, fmt.Errorf("scan placement: %w", err)
		}
		p.DancerID = model.DancerID(dancer)
		p.CompetitionID = model.CompetitionID(comp)
		p.FeisID = model.FeisID(feis)
		p.EntryID = model.EntryID(entry)
		p.DanceType = model.DanceType(dance)
		p.Level = model.Level(level)
		p.TriggeredAdvancement = triggered != 0
		if p.CompetitionDate, err = time.Parse(time.RFC3339, date); err != nil {
			return nil, fmt.Errorf("parse placement date: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate placements: %w", err)
	}
	return out, nil
}

// MarkPlacementAdvancement flags a placement record.
func (s *SQLiteStore) MarkPlacementAdvancement(ctx context.Context, placementID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE placements SET triggered_advancement = 1 WHERE id = ?`, placementID)
	if err != nil {
		return fmt.Errorf("mark placement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark placement: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: placement %s", ErrNotFound, placementID)
	}
	return nil
}

// SaveNotice persists a new notice. A violation of the tuple index is
// reported as ErrDuplicateNotice so callers can treat the race as a
// benign no-op.
func (s *SQLiteStore) SaveNotice(ctx context.Context, n model.AdvancementNotice) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notices
			(id, dancer_id, from_level, to_level, dance_type,
			 acknowledged, acknowledged_at, acknowledged_by,
			 overridden, overridden_by, override_reason,
			 triggering_placement_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(n.ID), string(n.DancerID), string(n.FromLevel), string(n.ToLevel),
		string(n.DanceType), boolToInt(n.Acknowledged), timePtrToString(n.AcknowledgedAt),
		n.AcknowledgedBy, boolToInt(n.Overridden), n.OverriddenBy, n.OverrideReason,
		n.TriggeringPlacementID, n.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: dancer %s level %s", ErrDuplicateNotice, n.DancerID, n.FromLevel)
		}
		return fmt.Errorf("save notice: %w", err)
	}
	return nil
}

// Notice returns a notice by id.
func (s *SQLiteStore) Notice(ctx context.Context, id model.NoticeID) (model.AdvancementNotice, error) {
	row := s.db.QueryRowContext(ctx, noticeSelect+` WHERE id = ?`, string(id))
	n, err := scanNotice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AdvancementNotice{}, fmt.Errorf("%w: notice %s", ErrNotFound, id)
	}
	return n, err
}

// Notices returns a dancer's notices at one level.
func (s *SQLiteStore) Notices(ctx context.Context, dancerID model.DancerID, level model.Level) ([]model.AdvancementNotice, error) {
	return s.queryNotices(ctx, noticeSelect+` WHERE dancer_id = ? AND from_level = ? ORDER BY created_at`,
		string(dancerID), string(level))
}

// NoticesForDancer returns all of a dancer's notices.
func (s *SQLiteStore) NoticesForDancer(ctx context.Context, dancerID model.DancerID) ([]model.AdvancementNotice, error) {
	return s.queryNotices(ctx, noticeSelect+` WHERE dancer_id = ? ORDER BY created_at`, string(dancerID))
}

// UpdateNotice replaces a persisted notice.
func (s *SQLiteStore) UpdateNotice(ctx context.Context, n model.AdvancementNotice) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notices SET
			acknowledged = ?, acknowledged_at = ?, acknowledged_by = ?,
			overridden = ?, overridden_by = ?, override_reason = ?
		WHERE id = ?`,
		boolToInt(n.Acknowledged), timePtrToString(n.AcknowledgedAt), n.AcknowledgedBy,
		boolToInt(n.Overridden), n.OverriddenBy, n.OverrideReason, string(n.ID),
	)
	if err != nil {
		return fmt.Errorf("update notice: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update notice: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: notice %s", ErrNotFound, n.ID)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite store: %w", err)
	}
	return nil
}

const noticeSelect = `
	SELECT id, dancer_id, from_level, to_level, dance_type,
	       acknowledged, acknowledged_at, acknowledged_by,
	       overridden, overridden_by, override_reason,
	       triggering_placement_id, created_at
	FROM notices`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotice(row rowScanner) (model.AdvancementNotice, error) {
	var n model.AdvancementNotice
	var dancer, from, to, dance, created string
	var acked, overridden int
	var ackedAt sql.NullString
	if err := row.Scan(&n.ID, &dancer, &from, &to, &dance,
		&acked, &ackedAt, &n.AcknowledgedBy,
		&overridden, &n.OverriddenBy, &n.OverrideReason,
		&n.TriggeringPlacementID, &created); err != nil {
		return model.AdvancementNotice{}, err
	}
	n.DancerID = model.DancerID(dancer)
	n.FromLevel = model.Level(from)
	n.ToLevel = model.Level(to)
	n.DanceType = model.DanceType(dance)
	n.Acknowledged = acked != 0
	n.Overridden = overridden != 0
	if ackedAt.Valid && ackedAt.String != "" {
		t, err := time.Parse(time.RFC3339Nano, ackedAt.String)
		if err != nil {
			return model.AdvancementNotice{}, fmt.Errorf("parse acknowledged_at: %w", err)
		}
		n.AcknowledgedAt = &t
	}
	var err error
	if n.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return model.AdvancementNotice{}, fmt.Errorf("parse created_at: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) queryNotices(ctx context.Context, query string, args ...any) ([]model.AdvancementNotice, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds())) }()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notices: %w", err)
	}
	defer rows.Close()

	var out []model.AdvancementNotice
	for rows.Next() {
		n, err := scanNotice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notice: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notices: %w", err)
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func timePtrToString(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// isUniqueViolation detects the tuple-index violation without binding
// to driver-private error types.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique")
}
