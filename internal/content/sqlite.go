package content

import (
	"context"
	"database/sql"
	"fmt"

	"cloud.google.com/go/civil"
	_ "modernc.org/sqlite"

	"github.com/book-expert/narration-pipeline/internal/core"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS daily_sparks (
    id             TEXT PRIMARY KEY,
    title          TEXT NOT NULL,
    scripture_ref  TEXT,
    scripture_text TEXT,
    teaching       TEXT,
    reflection     TEXT,
    action_step    TEXT,
    prayer         TEXT,
    cta            TEXT,
    week_theme     TEXT,
    publish_date   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_daily_sparks_publish_date ON daily_sparks(publish_date);
CREATE TABLE IF NOT EXISTS reading_plan_days (
    id             TEXT PRIMARY KEY,
    plan_id        TEXT NOT NULL,
    day_number     INTEGER NOT NULL,
    title          TEXT NOT NULL,
    scripture_ref  TEXT,
    scripture_text TEXT,
    teaching       TEXT,
    reflection     TEXT,
    action_step    TEXT,
    prayer         TEXT,
    week_theme     TEXT,
    scheduled_date TEXT,
    UNIQUE (plan_id, day_number)
);
CREATE INDEX IF NOT EXISTS idx_reading_plan_days_scheduled ON reading_plan_days(scheduled_date);
`

const sqliteProjectionSparks = `
SELECT id, 'spark' AS kind, '' AS parent_id, 0 AS day_number, title,
       COALESCE(scripture_ref, ''), COALESCE(scripture_text, ''), COALESCE(teaching, ''),
       COALESCE(reflection, ''), COALESCE(action_step, ''), COALESCE(prayer, ''),
       COALESCE(cta, ''), COALESCE(week_theme, ''), publish_date AS item_date
FROM daily_sparks`

const sqliteProjectionPlanDays = `
SELECT id, 'reading-plan', plan_id, day_number, title,
       COALESCE(scripture_ref, ''), COALESCE(scripture_text, ''), COALESCE(teaching, ''),
       COALESCE(reflection, ''), COALESCE(action_step, ''), COALESCE(prayer, ''),
       '', COALESCE(week_theme, ''), scheduled_date
FROM reading_plan_days`

// SQLite orders NULLs first by default; the leading term pushes undated plan days last.
// Compound selects only accept bare result columns in ORDER BY, hence the wrapping select.
const sqliteOrder = `) ORDER BY item_date IS NULL, item_date, kind, parent_id, day_number, id`

const sqliteWrap = `SELECT * FROM (`

// SQLite reads content items from a local SQLite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}

	// A single connection keeps ":memory:" databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database %s: %w", path, err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Migrate creates the content tables if they are missing.
func (s *SQLite) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("failed to apply sqlite schema: %w", err)
	}

	return nil
}

// Upsert inserts or replaces a content item.
func (s *SQLite) Upsert(ctx context.Context, item core.ContentItem) error {
	var date any
	if !item.Date.IsZero() {
		date = item.Date.String()
	}

	var err error

	switch item.Kind {
	case core.KindReadingPlan:
		_, err = s.db.ExecContext(ctx, `
INSERT OR REPLACE INTO reading_plan_days
    (id, plan_id, day_number, title, scripture_ref, scripture_text, teaching,
     reflection, action_step, prayer, week_theme, scheduled_date)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID, item.ParentID, item.DayNumber, item.Title, item.ScriptureRef, item.ScriptureText,
			item.Teaching, item.Reflection, item.Action, item.Prayer, item.WeekTheme, date)
	default:
		if date == nil {
			return fmt.Errorf("spark %s has no publish date", item.ID)
		}

		_, err = s.db.ExecContext(ctx, `
INSERT OR REPLACE INTO daily_sparks
    (id, title, scripture_ref, scripture_text, teaching, reflection, action_step,
     prayer, cta, week_theme, publish_date)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID, item.Title, item.ScriptureRef, item.ScriptureText, item.Teaching,
			item.Reflection, item.Action, item.Prayer, item.CTA, item.WeekTheme, date)
	}

	if err != nil {
		return fmt.Errorf("failed to upsert %s %s: %w", item.Kind, item.ID, err)
	}

	return nil
}

// ItemsByDateRange returns items scheduled within [start, end].
func (s *SQLite) ItemsByDateRange(ctx context.Context, start, end civil.Date) ([]core.ContentItem, error) {
	query := sqliteWrap + sqliteProjectionSparks + ` WHERE publish_date BETWEEN ? AND ?
UNION ALL` + sqliteProjectionPlanDays + ` WHERE scheduled_date BETWEEN ? AND ?` + sqliteOrder

	rows, err := s.db.QueryContext(ctx, query, start.String(), end.String(), start.String(), end.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query content between %s and %s: %w", start, end, err)
	}

	return collectSQL(rows)
}

// AllItems returns every item, dated items first.
func (s *SQLite) AllItems(ctx context.Context) ([]core.ContentItem, error) {
	rows, err := s.db.QueryContext(ctx, sqliteWrap+sqliteProjectionSparks+"\nUNION ALL"+sqliteProjectionPlanDays+sqliteOrder)
	if err != nil {
		return nil, fmt.Errorf("failed to query content: %w", err)
	}

	return collectSQL(rows)
}

func collectSQL(rows *sql.Rows) ([]core.ContentItem, error) {
	defer rows.Close()

	var items []core.ContentItem

	for rows.Next() {
		var r row
		if err := rows.Scan(r.dest()...); err != nil {
			return nil, fmt.Errorf("failed to scan content row: %w", err)
		}

		item, err := r.toItem()
		if err != nil {
			return nil, err
		}

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating content rows: %w", err)
	}

	return items, nil
}
