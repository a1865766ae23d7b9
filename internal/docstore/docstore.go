// Package docstore is a small document database abstraction with a
// Firestore backend for production and a SQLite backend for local runs
// and tests.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// MaxBatchSize is the largest number of writes a single DeleteBatch may commit.
const MaxBatchSize = 500

var (
	ErrNotFound   = errors.New("document not found")
	ErrInvalidID  = errors.New("invalid document id")
	ErrBatchLimit = fmt.Errorf("batch exceeds %d writes", MaxBatchSize)
)

type Document struct {
	ID   string
	Data map[string]any
}

// Filter matches documents whose top-level Field equals Value.
type Filter struct {
	Field string
	Value any
}

type Query struct {
	Collection string
	OrderBy    string
	Desc       bool
	Where      []Filter
	Limit      int
}

// Snapshot is one delivery of a live query. Err is set when the listener
// failed; the listener keeps retrying until its context ends.
type Snapshot struct {
	Docs []Document
	Err  error
}

type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	// Set writes data to the document. With merge, existing fields not
	// present in data are kept.
	Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error
	// Update changes fields of an existing document and fails with
	// ErrNotFound when it does not exist.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Add(ctx context.Context, collection string, data map[string]any) (string, error)
	Delete(ctx context.Context, collection, id string) error
	List(ctx context.Context, q Query) ([]Document, error)
	// DeleteBatch removes ids from collection in one atomic commit.
	DeleteBatch(ctx context.Context, collection string, ids []string) error
	// Watch delivers the current result of q, then a fresh result after
	// every change to the collection. The channel closes when ctx ends.
	Watch(ctx context.Context, q Query) (<-chan Snapshot, error)
	Close() error
}

// ValidateID applies Firestore's document id rules.
func ValidateID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: empty", ErrInvalidID)
	case len(id) > 1500:
		return fmt.Errorf("%w: longer than 1500 bytes", ErrInvalidID)
	case strings.HasPrefix(id, "__"):
		return fmt.Errorf("%w: %q is reserved", ErrInvalidID, id)
	case strings.Contains(id, "/"), id == ".", id == "..":
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validateQuery(q Query) error {
	if q.Collection == "" {
		return errors.New("query without collection")
	}
	if q.OrderBy != "" && !fieldName.MatchString(q.OrderBy) {
		return fmt.Errorf("invalid order field %q", q.OrderBy)
	}
	for _, f := range q.Where {
		if !fieldName.MatchString(f.Field) {
			return fmt.Errorf("invalid filter field %q", f.Field)
		}
	}
	return nil
}
