// Package postgres is a store.Client that reads and writes tables directly
// in PostgreSQL. It is used when the console runs next to the database
// instead of behind the platform's HTTP API.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/gridconsole/internal/store"
)

const notFoundDetail = "Resource not found or access denied."

// DefaultKeyColumn is used when a table has no discoverable primary key.
const DefaultKeyColumn = "id"

// PoolConfig tunes the connection pool. Zero values keep pgx defaults.
type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Connect parses url and opens a pool.
func Connect(ctx context.Context, url string, pc PoolConfig) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection URL: %w", err)
	}
	if pc.MaxConns > 0 {
		config.MaxConns = pc.MaxConns
	}
	if pc.MinConns > 0 {
		config.MinConns = pc.MinConns
	}
	if pc.MaxConnLifetime > 0 {
		config.MaxConnLifetime = pc.MaxConnLifetime
	}
	if pc.MaxConnIdleTime > 0 {
		config.MaxConnIdleTime = pc.MaxConnIdleTime
	}
	config.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// Store implements store.Client on a pgx pool.
type Store struct {
	pool   *pgxpool.Pool
	qb     squirrel.StatementBuilderType
	schema string

	mu   sync.RWMutex
	keys map[string]string
}

// New returns a Store for tables in schema ("public" when empty).
func New(pool *pgxpool.Pool, schema string) *Store {
	if schema == "" {
		schema = "public"
	}
	return &Store{
		pool:   pool,
		qb:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		schema: schema,
		keys:   make(map[string]string),
	}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) ident(table string) string {
	return pgx.Identifier{s.schema, table}.Sanitize()
}

func quote(col string) string {
	return pgx.Identifier{col}.Sanitize()
}

// keyColumn returns the primary key column of table, cached per table.
func (s *Store) keyColumn(ctx context.Context, table string) (string, error) {
	s.mu.RLock()
	key, ok := s.keys[table]
	s.mu.RUnlock()
	if ok {
		return key, nil
	}

	query, args, err := s.primaryKeyQuery(table).ToSql()
	if err != nil {
		return "", err
	}
	var col string
	err = s.pool.QueryRow(ctx, query, args...).Scan(&col)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		col = DefaultKeyColumn
	case err != nil:
		return "", err
	}

	s.mu.Lock()
	s.keys[table] = col
	s.mu.Unlock()
	return col, nil
}

func (s *Store) primaryKeyQuery(table string) squirrel.SelectBuilder {
	return s.qb.Select("kcu.column_name").
		From("information_schema.table_constraints tc").
		Join("information_schema.key_column_usage kcu ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema").
		Where(squirrel.Eq{
			"tc.constraint_type": "PRIMARY KEY",
			"tc.table_schema":    s.schema,
			"tc.table_name":      table,
		}).
		OrderBy("kcu.ordinal_position").
		Limit(1)
}

func (s *Store) listQuery(table, key string) squirrel.SelectBuilder {
	return s.qb.Select("*").From(s.ident(table)).OrderBy(quote(key))
}

func (s *Store) insertQuery(table string, fields store.Row) squirrel.InsertBuilder {
	return s.qb.Insert(s.ident(table)).SetMap(quoteKeys(fields)).Suffix("RETURNING *")
}

func (s *Store) updateQuery(table, key, identity string, fields store.Row) squirrel.UpdateBuilder {
	// Compare as text so one code path serves integer, uuid and text keys.
	return s.qb.Update(s.ident(table)).
		SetMap(quoteKeys(fields)).
		Where(squirrel.Expr(quote(key)+"::text = ?", identity)).
		Suffix("RETURNING *")
}

func (s *Store) deleteQuery(table, key, identity string) squirrel.DeleteBuilder {
	return s.qb.Delete(s.ident(table)).
		Where(squirrel.Expr(quote(key)+"::text = ?", identity))
}

func quoteKeys(fields store.Row) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[quote(k)] = v
	}
	return out
}

func (s *Store) List(ctx context.Context, table string) ([]store.Row, error) {
	key, err := s.keyColumn(ctx, table)
	if err != nil {
		return nil, mapError("list", table, err)
	}
	query, args, err := s.listQuery(table, key).ToSql()
	if err != nil {
		return nil, mapError("list", table, err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError("list", table, err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, mapError("list", table, err)
	}

	out := make([]store.Row, len(maps))
	for i, m := range maps {
		out[i] = store.NormalizeRow(store.Row(m))
	}
	return out, nil
}

func (s *Store) Create(ctx context.Context, table string, fields store.Row) (store.Row, error) {
	if len(fields) == 0 {
		return nil, store.Rejected("create", table, http.StatusBadRequest, "No fields to insert")
	}
	query, args, err := s.insertQuery(table, fields).ToSql()
	if err != nil {
		return nil, mapError("create", table, err)
	}
	return s.queryOne(ctx, "create", table, query, args)
}

func (s *Store) Update(ctx context.Context, table, identity string, fields store.Row) (store.Row, error) {
	if len(fields) == 0 {
		return nil, store.Rejected("update", table, http.StatusBadRequest, "No fields to update")
	}
	key, err := s.keyColumn(ctx, table)
	if err != nil {
		return nil, mapError("update", table, err)
	}
	query, args, err := s.updateQuery(table, key, identity, fields).ToSql()
	if err != nil {
		return nil, mapError("update", table, err)
	}
	return s.queryOne(ctx, "update", table, query, args)
}

func (s *Store) Delete(ctx context.Context, table, identity string) error {
	key, err := s.keyColumn(ctx, table)
	if err != nil {
		return mapError("delete", table, err)
	}
	query, args, err := s.deleteQuery(table, key, identity).ToSql()
	if err != nil {
		return mapError("delete", table, err)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return mapError("delete", table, err)
	}
	if tag.RowsAffected() == 0 {
		return store.Rejected("delete", table, http.StatusNotFound, notFoundDetail)
	}
	return nil
}

func (s *Store) queryOne(ctx context.Context, op, table, query string, args []any) (store.Row, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(op, table, err)
	}
	m, err := pgx.CollectExactlyOneRow(rows, pgx.RowToMap)
	if err != nil {
		return nil, mapError(op, table, err)
	}
	return store.NormalizeRow(store.Row(m)), nil
}

var _ store.Client = (*Store)(nil)
