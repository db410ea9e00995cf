// Package postgres provides a Postgres-backed row store.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yoshidak/webwatch/internal/watch"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for target rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type querier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Close()
}

// Store implements watch.RowStore on Postgres.
type Store struct {
	pool  querier
	table string
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "monitor_targets"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, table: table}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool querier, table string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "monitor_targets"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// List returns every target ordered by creation.
func (s *Store) List(ctx context.Context) ([]watch.MonitorTarget, error) {
	query := fmt.Sprintf(`
SELECT
	id,
	word,
	COALESCE(url, ''),
	source,
	frequency,
	COALESCE(prev_hash, ''),
	COALESCE(prev_len, 0)
FROM %s
ORDER BY created_at, id`, s.table)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()

	var targets []watch.MonitorTarget
	for rows.Next() {
		var (
			t  watch.MonitorTarget
			id string
		)
		if err := rows.Scan(&id, &t.Word, &t.URL, &t.Source, &t.Frequency, &t.PrevFingerprint, &t.PrevLength); err != nil {
			return nil, fmt.Errorf("scan target row: %w", err)
		}
		t.Ref = watch.RowRef(id)
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate target rows: %w", err)
	}
	return targets, nil
}

// columnFor whitelists the writable columns.
func columnFor(field watch.Field) (string, error) {
	switch field {
	case watch.FieldURL:
		return "url", nil
	case watch.FieldFingerprint:
		return "prev_hash", nil
	case watch.FieldLength:
		return "prev_len", nil
	default:
		return "", fmt.Errorf("unknown field %q", field)
	}
}

// UpdateCell writes a single column of one row.
func (s *Store) UpdateCell(ctx context.Context, ref watch.RowRef, field watch.Field, value string) error {
	column, err := columnFor(field)
	if err != nil {
		return err
	}

	var arg any = value
	if field == watch.FieldLength {
		n, convErr := strconv.Atoi(value)
		if convErr != nil {
			return fmt.Errorf("parse length %q: %w", value, convErr)
		}
		arg = n
	}

	query := fmt.Sprintf(`UPDATE %s SET %s = $1, updated_at = now() WHERE id = $2`, s.table, column)
	tag, err := s.pool.Exec(ctx, query, arg, string(ref))
	if err != nil {
		return fmt.Errorf("update %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("row %s not found", ref)
	}
	return nil
}

// UpdateState writes fingerprint and length in one statement.
func (s *Store) UpdateState(ctx context.Context, ref watch.RowRef, fingerprint string, length int) error {
	query := fmt.Sprintf(`UPDATE %s SET prev_hash = $1, prev_len = $2, updated_at = now() WHERE id = $3`, s.table)
	tag, err := s.pool.Exec(ctx, query, fingerprint, length, string(ref))
	if err != nil {
		return fmt.Errorf("update state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("row %s not found", ref)
	}
	return nil
}

// DeleteRow removes one row.
func (s *Store) DeleteRow(ctx context.Context, ref watch.RowRef) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table)
	tag, err := s.pool.Exec(ctx, query, string(ref))
	if err != nil {
		return fmt.Errorf("delete row: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("row %s not found", ref)
	}
	return nil
}
