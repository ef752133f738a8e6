package content

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/book-expert/narration-pipeline/internal/core"
)

const pgProjectionSparks = `
SELECT id, 'spark', '', 0, title,
       COALESCE(scripture_ref, ''), COALESCE(scripture_text, ''), COALESCE(teaching, ''),
       COALESCE(reflection, ''), COALESCE(action_step, ''), COALESCE(prayer, ''),
       COALESCE(cta, ''), COALESCE(week_theme, ''),
       to_char(publish_date, 'YYYY-MM-DD')
FROM daily_sparks`

const pgProjectionPlanDays = `
SELECT id, 'reading-plan', plan_id, day_number, title,
       COALESCE(scripture_ref, ''), COALESCE(scripture_text, ''), COALESCE(teaching, ''),
       COALESCE(reflection, ''), COALESCE(action_step, ''), COALESCE(prayer, ''),
       '', COALESCE(week_theme, ''),
       to_char(scheduled_date, 'YYYY-MM-DD')
FROM reading_plan_days`

const pgOrder = ` ORDER BY 14 NULLS LAST, 2, 3, 4, 1`

// Postgres reads content items from PostgreSQL.
type Postgres struct {
	pool *pgxpool.Pool
}

// ConnectPostgres establishes a connection pool to the database.
func ConnectPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// ItemsByDateRange returns items scheduled within [start, end].
func (p *Postgres) ItemsByDateRange(ctx context.Context, start, end civil.Date) ([]core.ContentItem, error) {
	query := pgProjectionSparks + ` WHERE publish_date BETWEEN $1::date AND $2::date
UNION ALL` + pgProjectionPlanDays + ` WHERE scheduled_date BETWEEN $1::date AND $2::date` + pgOrder

	rows, err := p.pool.Query(ctx, query, start.String(), end.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query content between %s and %s: %w", start, end, err)
	}

	return collectPgx(rows)
}

// AllItems returns every item, dated items first.
func (p *Postgres) AllItems(ctx context.Context) ([]core.ContentItem, error) {
	rows, err := p.pool.Query(ctx, pgProjectionSparks+"\nUNION ALL"+pgProjectionPlanDays+pgOrder)
	if err != nil {
		return nil, fmt.Errorf("failed to query content: %w", err)
	}

	return collectPgx(rows)
}

func collectPgx(rows pgx.Rows) ([]core.ContentItem, error) {
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
