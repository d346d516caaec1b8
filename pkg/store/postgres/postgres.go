// Package postgres stores each entity kind as a table of jsonb documents.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/checkout-service/pkg/refs"
	"github.com/dmehra2102/checkout-service/pkg/store"
)

var identifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Table describes the table backing one kind and the document fields that
// get expression indexes.
type Table struct {
	Kind   refs.Kind
	Index  []string
	Unique []string
}

type Backend struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewBackend(log *slog.Logger, pool *pgxpool.Pool) *Backend {
	return &Backend{log: log, pool: pool}
}

// Migrate creates the tables and indexes if they do not exist yet.
func (b *Backend) Migrate(ctx context.Context, tables ...Table) error {
	for _, t := range tables {
		name, err := tableName(t.Kind)
		if err != nil {
			return err
		}
		_, err = b.pool.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			doc JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, name))
		if err != nil {
			return fmt.Errorf("create table %s: %w", t.Kind, err)
		}
		for _, f := range t.Index {
			if err := b.createIndex(ctx, t.Kind, f, false); err != nil {
				return err
			}
		}
		for _, f := range t.Unique {
			if err := b.createIndex(ctx, t.Kind, f, true); err != nil {
				return err
			}
		}
		b.log.Info("collection ready", "kind", t.Kind)
	}
	return nil
}

func (b *Backend) createIndex(ctx context.Context, kind refs.Kind, field string, unique bool) error {
	if !identifier.MatchString(field) {
		return fmt.Errorf("invalid index field %q", field)
	}
	name, err := tableName(kind)
	if err != nil {
		return err
	}
	idx := pgx.Identifier{fmt.Sprintf("%s_%s_idx", kind, field)}.Sanitize()
	stmt := "CREATE INDEX IF NOT EXISTS"
	if unique {
		stmt = "CREATE UNIQUE INDEX IF NOT EXISTS"
	}
	_, err = b.pool.Exec(ctx, fmt.Sprintf(`%s %s ON %s ((doc->>'%s'))`, stmt, idx, name, field))
	if err != nil {
		return fmt.Errorf("create index %s.%s: %w", kind, field, err)
	}
	return nil
}

func (b *Backend) Collection(kind refs.Kind) store.Collection {
	name, err := tableName(kind)
	if err != nil {
		panic(err)
	}
	return &Collection{log: b.log, pool: b.pool, table: name}
}

func tableName(kind refs.Kind) (string, error) {
	if !identifier.MatchString(string(kind)) {
		return "", fmt.Errorf("invalid collection name %q", kind)
	}
	return pgx.Identifier{string(kind)}.Sanitize(), nil
}

type Collection struct {
	log   *slog.Logger
	pool  *pgxpool.Pool
	table string
}

func (c *Collection) Insert(ctx context.Context, doc refs.Document) error {
	id, _ := doc["id"].(string)
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = Conn(ctx, c.pool).Exec(ctx, fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES ($1, $2)`, c.table), id, raw)
	return err
}

func (c *Collection) Find(ctx context.Context, id string) (refs.Document, error) {
	var raw []byte
	err := Conn(ctx, c.pool).QueryRow(ctx, fmt.Sprintf(`SELECT doc FROM %s WHERE id=$1`, c.table), id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return refs.Decode(raw)
}

func (c *Collection) FindAll(ctx context.Context) ([]refs.Document, error) {
	rows, err := Conn(ctx, c.pool).Query(ctx, fmt.Sprintf(`SELECT doc FROM %s ORDER BY created_at, id`, c.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []refs.Document
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		doc, err := refs.Decode(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (c *Collection) FindOne(ctx context.Context, field, value string) (refs.Document, error) {
	var raw []byte
	err := Conn(ctx, c.pool).QueryRow(ctx, fmt.Sprintf(`SELECT doc FROM %s WHERE doc->>$1 = $2 ORDER BY created_at LIMIT 1`, c.table), field, value).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return refs.Decode(raw)
}

// Patch is a shallow jsonb merge in a single statement.
func (c *Collection) Patch(ctx context.Context, id string, fields refs.Document) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	ct, err := Conn(ctx, c.pool).Exec(ctx, fmt.Sprintf(`UPDATE %s SET doc = doc || $2::jsonb, updated_at = now() WHERE id=$1`, c.table), id, raw)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (c *Collection) Delete(ctx context.Context, id string) (bool, error) {
	ct, err := Conn(ctx, c.pool).Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id=$1`, c.table), id)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// Increment relies on the row lock taken by UPDATE: concurrent deltas on the
// same document serialize without any application-level locking.
func (c *Collection) Increment(ctx context.Context, id, field string, delta int64) error {
	ct, err := Conn(ctx, c.pool).Exec(ctx, fmt.Sprintf(`
		UPDATE %s
		SET doc = jsonb_set(doc, ARRAY[$2::text], to_jsonb(COALESCE((doc->>$2)::bigint, 0) + $3::bigint))
		          || jsonb_build_object('updated_at', to_char(now() AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS.US"Z"')),
		    updated_at = now()
		WHERE id=$1 AND ($3::bigint >= 0 OR COALESCE((doc->>$2)::bigint, 0) + $3::bigint >= 0)`, c.table),
		id, field, delta)
	if err != nil {
		return err
	}
	if ct.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := Conn(ctx, c.pool).QueryRow(ctx, fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE id=$1)`, c.table), id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}
	c.log.Warn("increment rejected", "table", c.table, "id", id, "field", field, "delta", delta)
	return store.ErrUnderflow
}
