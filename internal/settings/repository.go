package settings

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/communityhub/backend/internal/models"
)

// Repository handles settings persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a settings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Values returns the values of the given keys; missing keys are absent from the map.
// It implements mailer.SettingsReader.
func (r *Repository) Values(ctx context.Context, keys ...string) (map[string]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, value FROM settings WHERE key = ANY($1)`, keys)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string, len(keys))
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// List returns every setting ordered by key.
func (r *Repository) List(ctx context.Context) ([]*models.Setting, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, value, is_secret, updated_at FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()
	list := []*models.Setting{}
	for rows.Next() {
		var s models.Setting
		if err := rows.Scan(&s.Key, &s.Value, &s.IsSecret, &s.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &s)
	}
	return list, rows.Err()
}

// BulkUpsert writes all settings in one transaction.
func (r *Repository) BulkUpsert(ctx context.Context, list []*models.Setting) error {
	if len(list) == 0 {
		return nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, s := range list {
		batch.Queue(`INSERT INTO settings (key, value, is_secret, updated_at) VALUES ($1, $2, $3, NOW())
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, is_secret = EXCLUDED.is_secret, updated_at = NOW()`,
			strings.TrimSpace(s.Key), s.Value, s.IsSecret)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	return tx.Commit(ctx)
}
