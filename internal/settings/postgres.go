package settings

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

const (
	createOptionsTable = `CREATE TABLE IF NOT EXISTS graphwise_options (
	name TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	selectOptions = `SELECT name, value FROM graphwise_options`
	upsertOption  = `INSERT INTO graphwise_options (name, value, updated_at) VALUES ($1, $2, NOW())
ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
)

// PostgresStore keeps overrides in the graphwise_options table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the options table when missing.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, createOptionsTable); err != nil {
		return fmt.Errorf("create graphwise_options: %w", err)
	}
	return nil
}

func (p *PostgresStore) Load(ctx context.Context) (map[string]string, error) {
	rows, err := p.db.QueryContext(ctx, selectOptions)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		values[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settings: %w", err)
	}
	return values, nil
}

// Save upserts all values in one transaction, in key order.
func (p *PostgresStore) Save(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	names := make([]string, 0, len(values))
	for k := range values {
		names = append(names, k)
	}
	sort.Strings(names)

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settings transaction: %w", err)
	}
	for _, name := range names {
		if _, err := tx.ExecContext(ctx, upsertOption, name, values[name]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert setting %s: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settings: %w", err)
	}
	return nil
}
