package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// SQLStore keeps documents in a single JSON column and merges on conflict at
// the top level: keys in the new document replace stored keys whole, including
// nested objects and nulls, and stored keys it does not mention are kept.
// Postgres does this with jsonb ||; SQLite has no equivalent operator, so the
// stored document is read and merged inside the same transaction.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

var _ DocumentStore = (*SQLStore)(nil)

func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// BatchUpsert writes all documents in one transaction.
func (s *SQLStore) BatchUpsert(ctx context.Context, docs []Document) (err error) {
	if len(docs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &PersistenceError{Count: len(docs), Cause: fmt.Errorf("begin transaction: %w", err)}
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, doc := range docs {
		body, encErr := json.Marshal(doc)
		if encErr != nil {
			return &PersistenceError{Count: len(docs), Cause: fmt.Errorf("encode document %s: %w", doc.ID, encErr)}
		}
		if s.dialect == SQLite {
			if body, err = s.mergeStored(ctx, tx, doc.ID, body); err != nil {
				return &PersistenceError{Count: len(docs), Cause: err}
			}
		}

		query, args, buildErr := s.upsertQuery(doc, body)
		if buildErr != nil {
			return &PersistenceError{Count: len(docs), Cause: buildErr}
		}
		if _, execErr := tx.ExecContext(ctx, query, args...); execErr != nil {
			return &PersistenceError{Count: len(docs), Cause: fmt.Errorf("upsert %s: %w", doc.ID, execErr)}
		}
	}

	if err = tx.Commit(); err != nil {
		return &PersistenceError{Count: len(docs), Cause: fmt.Errorf("commit: %w", err)}
	}
	return nil
}

func (s *SQLStore) upsertQuery(doc Document, body []byte) (string, []interface{}, error) {
	builder := sq.StatementBuilder
	var docExpr sq.Sqlizer
	var merge string

	switch s.dialect {
	case Postgres:
		builder = builder.PlaceholderFormat(sq.Dollar)
		docExpr = sq.Expr("?::jsonb", string(body))
		merge = Table + ".doc || EXCLUDED.doc"
	case SQLite:
		docExpr = sq.Expr("json(?)", string(body))
		merge = "excluded.doc"
	default:
		return "", nil, fmt.Errorf("unsupported dialect %q", s.dialect)
	}

	return builder.
		Insert(Table).
		Columns("id", "doc", "content_hash", "updated_at").
		Values(doc.ID, docExpr, doc.ContentHash, doc.UpdatedAt.UTC()).
		Suffix("ON CONFLICT (id) DO UPDATE SET doc = " + merge +
			", content_hash = excluded.content_hash, updated_at = excluded.updated_at").
		ToSql()
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Get loads one stored document as raw JSON.
func (s *SQLStore) Get(ctx context.Context, id string) (json.RawMessage, error) {
	return s.load(ctx, s.db, id)
}

func (s *SQLStore) load(ctx context.Context, q rowQuerier, id string) (json.RawMessage, error) {
	builder := sq.StatementBuilder
	if s.dialect == Postgres {
		builder = builder.PlaceholderFormat(sq.Dollar)
	}

	query, args, err := builder.Select("doc").From(Table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}

	var raw []byte
	if err := q.QueryRowContext(ctx, query, args...).Scan(&raw); err != nil {
		return nil, fmt.Errorf("load document %s: %w", id, err)
	}
	return json.RawMessage(raw), nil
}

// mergeStored overlays body on the stored document with the same id, if any.
func (s *SQLStore) mergeStored(ctx context.Context, tx *sql.Tx, id string, body []byte) ([]byte, error) {
	stored, err := s.load(ctx, tx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return body, nil
	}
	if err != nil {
		return nil, err
	}
	return mergeTopLevel(stored, body)
}

// mergeTopLevel returns base with every top-level key of overlay set to the
// overlay's value.
func mergeTopLevel(base, overlay []byte) ([]byte, error) {
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, fmt.Errorf("decode stored document: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(overlay, &fields); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if merged == nil {
		merged = make(map[string]json.RawMessage, len(fields))
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}
