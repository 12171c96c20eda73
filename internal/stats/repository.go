package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository runs the dashboard aggregate queries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a stats repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) countBy(ctx context.Context, q string, args ...any) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var k string
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			return nil, err
		}
		out[k] = n
	}
	return out, rows.Err()
}

// Summary computes the dashboard totals at now. Upcoming events already started
// (or ended, when an end is set) are counted as past.
func (r *Repository) Summary(ctx context.Context, now time.Time) (*Summary, error) {
	s := &Summary{}
	var err error

	s.Events.ByStatus, err = r.countBy(ctx, `SELECT CASE
			WHEN status = 'upcoming' AND COALESCE(ends_at, starts_at) < $1 THEN 'past'
			ELSE status END AS st, COUNT(*)
		FROM events GROUP BY st`, now)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	s.Registrations.ByPaymentStatus, err = r.countBy(ctx, `SELECT payment_status, COUNT(*) FROM registrations GROUP BY payment_status`)
	if err != nil {
		return nil, fmt.Errorf("count registrations: %w", err)
	}
	s.Enrollments.ByPaymentStatus, err = r.countBy(ctx, `SELECT payment_status, COUNT(*) FROM course_enrollments GROUP BY payment_status`)
	if err != nil {
		return nil, fmt.Errorf("count enrollments: %w", err)
	}
	courses, err := r.countBy(ctx, `SELECT status, COUNT(*) FROM courses GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count courses: %w", err)
	}
	s.Courses.Published = courses["published"]
	s.Courses.Draft = courses["draft"]

	const scalars = `SELECT
		(SELECT COUNT(*) FROM contacts),
		(SELECT COUNT(*) FROM contacts WHERE status = 'new'),
		(SELECT COUNT(*) FROM users WHERE status = 'active'),
		(SELECT COUNT(*) FROM users),
		(SELECT COALESCE(SUM(amount), 0)::bigint FROM registrations WHERE payment_status = 'paid'),
		(SELECT COALESCE(SUM(amount), 0)::bigint FROM course_enrollments WHERE payment_status = 'paid')`
	if err := r.pool.QueryRow(ctx, scalars).Scan(
		&s.Contacts.Total, &s.Contacts.New,
		&s.Users.Active, &s.Users.Total,
		&s.Revenue.Registrations, &s.Revenue.Enrollments,
	); err != nil {
		return nil, fmt.Errorf("load totals: %w", err)
	}
	s.finish()
	return s, nil
}
