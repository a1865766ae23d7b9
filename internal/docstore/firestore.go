package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ReconnectDelay is how long a failed live query waits before listening again.
const ReconnectDelay = 5 * time.Second

type Firestore struct {
	client *firestore.Client
}

var _ Store = (*Firestore)(nil)

func NewFirestore(client *firestore.Client) *Firestore {
	return &Firestore{client: client}
}

func (f *Firestore) Close() error {
	return f.client.Close()
}

func (f *Firestore) Get(ctx context.Context, collection, id string) (Document, error) {
	snap, err := f.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("get %s/%s: %w", collection, id, mapError(err))
	}
	return Document{ID: snap.Ref.ID, Data: snap.Data()}, nil
}

func (f *Firestore) Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error {
	if err := ValidateID(id); err != nil {
		return err
	}

	ref := f.client.Collection(collection).Doc(id)
	var err error
	if merge {
		_, err = ref.Set(ctx, data, firestore.MergeAll)
	} else {
		_, err = ref.Set(ctx, data)
	}
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return nil
}

func (f *Firestore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	updates := make([]firestore.Update, 0, len(fields))
	for path, value := range fields {
		updates = append(updates, firestore.Update{Path: path, Value: value})
	}

	if _, err := f.client.Collection(collection).Doc(id).Update(ctx, updates); err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, mapError(err))
	}
	return nil
}

func (f *Firestore) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	ref, _, err := f.client.Collection(collection).Add(ctx, data)
	if err != nil {
		return "", fmt.Errorf("add to %s: %w", collection, err)
	}
	return ref.ID, nil
}

func (f *Firestore) Delete(ctx context.Context, collection, id string) error {
	if _, err := f.client.Collection(collection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (f *Firestore) DeleteBatch(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) > MaxBatchSize {
		return ErrBatchLimit
	}

	coll := f.client.Collection(collection)
	batch := f.client.Batch()
	for _, id := range ids {
		batch.Delete(coll.Doc(id))
	}
	if _, err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("delete batch in %s: %w", collection, err)
	}
	return nil
}

func (f *Firestore) List(ctx context.Context, q Query) ([]Document, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	snaps, err := f.query(q).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", q.Collection, err)
	}
	return toDocuments(snaps), nil
}

func (f *Firestore) Watch(ctx context.Context, q Query) (<-chan Snapshot, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	out := make(chan Snapshot, 1)
	go func() {
		defer close(out)
		for {
			err := f.listen(ctx, q, out)
			if ctx.Err() != nil {
				return
			}

			slog.Warn("firestore listener failed, reconnecting",
				"collection", q.Collection, "error", err, "delay", ReconnectDelay)
			select {
			case out <- Snapshot{Err: err}:
			case <-ctx.Done():
				return
			}

			select {
			case <-time.After(ReconnectDelay):
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// listen forwards snapshots until the iterator fails or ctx ends.
func (f *Firestore) listen(ctx context.Context, q Query, out chan<- Snapshot) error {
	it := f.query(q).Snapshots(ctx)
	defer it.Stop()

	for {
		snap, err := it.Next()
		if err != nil {
			if status.Code(err) == codes.Canceled {
				return ctx.Err()
			}
			return err
		}

		docs, err := snap.Documents.GetAll()
		if err != nil {
			return err
		}

		select {
		case out <- Snapshot{Docs: toDocuments(docs)}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (f *Firestore) query(q Query) firestore.Query {
	query := f.client.Collection(q.Collection).Query
	for _, w := range q.Where {
		query = query.Where(w.Field, "==", w.Value)
	}
	if q.OrderBy != "" {
		dir := firestore.Asc
		if q.Desc {
			dir = firestore.Desc
		}
		query = query.OrderBy(q.OrderBy, dir)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	return query
}

func toDocuments(snaps []*firestore.DocumentSnapshot) []Document {
	docs := make([]Document, 0, len(snaps))
	for _, s := range snaps {
		docs = append(docs, Document{ID: s.Ref.ID, Data: s.Data()})
	}
	return docs
}

func mapError(err error) error {
	if status.Code(err) == codes.NotFound {
		return errors.Join(ErrNotFound, err)
	}
	return err
}
