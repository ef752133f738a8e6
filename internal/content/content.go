// Package content provides read access to the content store for the
// narration pipeline.
//
// Two tables back the repository: daily_sparks (one devotional per calendar
// date) and reading_plan_days (one row per day of a plan, optionally
// scheduled). Both are projected onto core.ContentItem in the same column
// order so Postgres and SQLite share the row mapping.
package content

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/book-expert/narration-pipeline/internal/core"
)

// ErrUnsupportedDriver indicates an unknown content driver name.
var ErrUnsupportedDriver = errors.New("unsupported content driver")

// Driver names.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// row is the shared projection of both tables.
type row struct {
	id            string
	kind          string
	parentID      string
	dayNumber     int
	title         string
	scriptureRef  string
	scriptureText string
	teaching      string
	reflection    string
	action        string
	prayer        string
	cta           string
	weekTheme     string
	date          *string
}

// dest returns scan destinations in projection order.
func (r *row) dest() []any {
	return []any{
		&r.id, &r.kind, &r.parentID, &r.dayNumber, &r.title,
		&r.scriptureRef, &r.scriptureText, &r.teaching, &r.reflection,
		&r.action, &r.prayer, &r.cta, &r.weekTheme, &r.date,
	}
}

func (r *row) toItem() (core.ContentItem, error) {
	item := core.ContentItem{
		ID:            r.id,
		Kind:          core.Kind(r.kind),
		ParentID:      r.parentID,
		DayNumber:     r.dayNumber,
		Title:         r.title,
		ScriptureRef:  r.scriptureRef,
		ScriptureText: r.scriptureText,
		Teaching:      r.teaching,
		Reflection:    r.reflection,
		Action:        r.action,
		Prayer:        r.prayer,
		CTA:           r.cta,
		WeekTheme:     r.weekTheme,
	}

	if r.date != nil && *r.date != "" {
		date, err := civil.ParseDate(*r.date)
		if err != nil {
			return core.ContentItem{}, fmt.Errorf("content %s %s has invalid date %q: %w", r.kind, r.id, *r.date, err)
		}

		item.Date = date
	}

	return item, nil
}

// Open connects to the repository named by driver and returns it with its closer.
func Open(ctx context.Context, driver, dsn string) (core.ContentRepository, func(), error) {
	switch driver {
	case DriverPostgres:
		repo, err := ConnectPostgres(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}

		return repo, repo.Close, nil
	case DriverSQLite:
		repo, err := OpenSQLite(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}

		if err := repo.Migrate(ctx); err != nil {
			_ = repo.Close()
			return nil, nil, err
		}

		return repo, func() { _ = repo.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}
