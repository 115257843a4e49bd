// Package postgres stores edge records as JSONB rows keyed by edge id.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/webgraph/internal/webgraph"
)

const defaultTable = "webgraph_edges"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for edge rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Begin(context.Context) (pgx.Tx, error)
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Ping(context.Context) error
	Close()
}

// Index is a webgraph.Index on Postgres.
type Index struct {
	pool  pool
	table string
	idKey string
}

// New connects to Postgres using the provided config.
func New(ctx context.Context, cfg Config, idKey string) (*Index, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("index.dsn is required")
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
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	idx, err := NewWithPool(p, cfg.Table, idKey)
	if err != nil {
		p.Close()
		return nil, err
	}
	return idx, nil
}

// NewWithPool constructs an index from an existing pool (primarily for testing).
func NewWithPool(p pool, table, idKey string) (*Index, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if idKey == "" {
		idKey = string(webgraph.FieldID)
	}
	return &Index{pool: p, table: table, idKey: idKey}, nil
}

// Close releases the underlying pool resources.
func (x *Index) Close() {
	if x == nil || x.pool == nil {
		return
	}
	x.pool.Close()
}

// Ping checks that the database is reachable.
func (x *Index) Ping(ctx context.Context) error {
	if err := x.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// EnsureSchema creates the edge table and its containment index.
func (x *Index) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	id TEXT PRIMARY KEY,
	doc JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS %[1]s_doc_idx ON %[1]s USING GIN (doc jsonb_path_ops);`, x.table)
	if _, err := x.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create %s: %w", x.table, err)
	}
	return nil
}

// Upsert writes docs in one transaction, replacing rows with the same id.
func (x *Index) Upsert(ctx context.Context, docs ...webgraph.Document) error {
	if len(docs) == 0 {
		return nil
	}
	type row struct {
		id   string
		body []byte
	}
	rows := make([]row, 0, len(docs))
	for _, doc := range docs {
		id, ok := doc.String(x.idKey)
		if !ok || id == "" {
			return fmt.Errorf("document without %s", x.idKey)
		}
		body, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshal document %s: %w", id, err)
		}
		rows = append(rows, row{id: id, body: body})
	}

	query := fmt.Sprintf(`
INSERT INTO %s (id, doc, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at`, x.table)

	tx, err := x.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	for _, r := range rows {
		if _, err := tx.Exec(ctx, query, r.id, r.body); err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				err = errors.Join(err, rbErr)
			}
			return fmt.Errorf("upsert %s: %w", r.id, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

// Commit is a no-op: every Upsert commits its own transaction.
func (x *Index) Commit(ctx context.Context) error {
	return ctx.Err()
}

// Get returns the document with the given id.
func (x *Index) Get(ctx context.Context, id string) (webgraph.Document, error) {
	query := fmt.Sprintf(`SELECT doc FROM %s WHERE id = $1`, x.table)
	var raw []byte
	if err := x.pool.QueryRow(ctx, query, id).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, webgraph.ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	return decode(raw)
}

// FindByField returns up to limit documents, ordered by id, whose alias
// holds value.
func (x *Index) FindByField(ctx context.Context, alias, value string, limit int) ([]webgraph.Document, error) {
	query := fmt.Sprintf(`SELECT doc FROM %s
WHERE doc @> jsonb_build_object($1::text, $2::text)
ORDER BY id
LIMIT $3`, x.table)
	return x.queryDocs(ctx, query, alias, value, limit)
}

// StreamPresent streams documents in which q.Alias holds a non-empty value.
func (x *Index) StreamPresent(ctx context.Context, q webgraph.PresenceQuery) *webgraph.DocumentStream {
	query := fmt.Sprintf(`SELECT doc FROM %s
WHERE id > $1
  AND doc->$2 IS NOT NULL
  AND doc->$2 NOT IN ('null'::jsonb, '[]'::jsonb, '""'::jsonb)
ORDER BY id
LIMIT $3`, x.table)
	return webgraph.StreamPages(ctx, q, x.idKey, func(ctx context.Context, after string, limit int) ([]webgraph.Document, error) {
		return x.queryDocs(ctx, query, after, q.Alias, limit)
	})
}

func (x *Index) queryDocs(ctx context.Context, query string, args ...any) ([]webgraph.Document, error) {
	rows, err := x.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", x.table, err)
	}
	defer rows.Close()

	var out []webgraph.Document
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", x.table, err)
		}
		doc, err := decode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", x.table, err)
	}
	return out, nil
}

func decode(raw []byte) (webgraph.Document, error) {
	var doc webgraph.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}
