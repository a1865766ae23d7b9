package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mr1hm/floodsense/internal/stream"
)

// SQLite stores every collection in one table, one JSON blob per document.
type SQLite struct {
	db      *sql.DB
	changes *stream.Broadcaster[string]
}

var _ Store = (*SQLite)(nil)

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// One connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLite{
		db:      db,
		changes: stream.NewBroadcaster[string](),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error while migrating database: %w", err)
	}

	return s, nil
}

func (s *SQLite) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			data TEXT NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (collection, id)
		);

		CREATE INDEX IF NOT EXISTS idx_documents_updated ON documents(collection, updated_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLite) Close() error {
	s.changes.Close()
	return s.db.Close()
}

func (s *SQLite) Get(ctx context.Context, collection, id string) (Document, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}

	data, err := decodeData(raw)
	if err != nil {
		return Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return Document{ID: id, Data: data}, nil
}

func (s *SQLite) Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error {
	if err := ValidateID(id); err != nil {
		return err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		out := data
		if merge {
			existing, found, err := loadTx(ctx, tx, collection, id)
			if err != nil {
				return err
			}
			if found {
				out = mergeFields(existing, data)
			}
		}
		return upsertTx(ctx, tx, collection, id, out)
	})
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}

	s.changes.Broadcast(collection)
	return nil
}

func (s *SQLite) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		existing, found, err := loadTx(ctx, tx, collection, id)
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}
		return upsertTx(ctx, tx, collection, id, mergeFields(existing, fields))
	})
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}

	s.changes.Broadcast(collection)
	return nil
}

func (s *SQLite) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	id := uuid.NewString()
	if err := s.Set(ctx, collection, id, data, false); err != nil {
		return "", err
	}
	return id, nil
}

func (s *SQLite) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}

	s.changes.Broadcast(collection)
	return nil
}

func (s *SQLite) DeleteBatch(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) > MaxBatchSize {
		return ErrBatchLimit
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, id := range ids {
			if _, err := stmt.ExecContext(ctx, collection, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete batch in %s: %w", collection, err)
	}

	s.changes.Broadcast(collection)
	return nil
}

func (s *SQLite) List(ctx context.Context, q Query) ([]Document, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	query := `SELECT id, data FROM documents WHERE collection = ?`
	args := []any{q.Collection}

	for _, f := range q.Where {
		query += ` AND json_extract(data, ?) = ?`
		args = append(args, "$."+f.Field, sqlValue(f.Value))
	}

	if q.OrderBy != "" {
		query += ` ORDER BY json_extract(data, ?)`
		args = append(args, "$."+q.OrderBy)
		if q.Desc {
			query += ` DESC`
		}
		query += `, id`
	} else {
		query += ` ORDER BY id`
	}

	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", q.Collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("list %s: %w", q.Collection, err)
		}
		data, err := decodeData(raw)
		if err != nil {
			return nil, fmt.Errorf("list %s: document %s: %w", q.Collection, id, err)
		}
		docs = append(docs, Document{ID: id, Data: data})
	}

	return docs, rows.Err()
}

func (s *SQLite) Watch(ctx context.Context, q Query) (<-chan Snapshot, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	subID, changes := s.changes.Subscribe()
	out := make(chan Snapshot, 1)

	go func() {
		defer close(out)
		defer s.changes.Unsubscribe(subID)

		send := func() bool {
			docs, err := s.List(ctx, q)
			if ctx.Err() != nil {
				return false
			}
			select {
			case out <- Snapshot{Docs: docs, Err: err}:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case collection, ok := <-changes:
				if !ok {
					return
				}
				if collection != q.Collection {
					continue
				}
				if !send() {
					return
				}
			}
		}
	}()

	return out, nil
}

func (s *SQLite) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func loadTx(ctx context.Context, tx *sql.Tx, collection, id string) (map[string]any, bool, error) {
	var raw string
	err := tx.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	data, err := decodeData(raw)
	return data, true, err
}

func upsertTx(ctx context.Context, tx *sql.Tx, collection, id string, data map[string]any) error {
	raw, err := json.Marshal(normalize(data))
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		collection, id, string(raw), time.Now().UTC(),
	)
	return err
}

func mergeFields(existing, fields map[string]any) map[string]any {
	out := make(map[string]any, len(existing)+len(fields))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// normalize stores times in the same sortable layout the models use.
func normalize(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if t, ok := v.(time.Time); ok {
			out[k] = t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
			continue
		}
		out[k] = v
	}
	return out
}

func decodeData(raw string) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	return data, nil
}

// sqlValue maps a filter value onto what json_extract returns.
func sqlValue(v any) any {
	switch x := v.(type) {
	case bool:
		if x {
			return 1
		}
		return 0
	}
	return v
}
