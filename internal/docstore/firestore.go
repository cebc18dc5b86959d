package docstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// firestoreCollection stores documents as plain field maps so the same json
// tags drive every backend.
type firestoreCollection[T any] struct {
	coll   *firestore.CollectionRef
	logger *zap.Logger
}

func (c *firestoreCollection[T]) decode(snap *firestore.DocumentSnapshot) (Record[T], error) {
	doc, err := fromFields[T](snap.Data())
	if err != nil {
		return Record[T]{}, fmt.Errorf("decode %s: %w", snap.Ref.Path, err)
	}
	return Record[T]{ID: snap.Ref.ID, Data: doc}, nil
}

func (c *firestoreCollection[T]) Create(ctx context.Context, doc T) (string, error) {
	ref := c.coll.NewDoc()
	fields, err := toFields(ref.ID, doc)
	if err != nil {
		return "", err
	}
	if _, err := ref.Create(ctx, fields); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return "", ErrExists
		}
		return "", fmt.Errorf("create document: %w", err)
	}
	return ref.ID, nil
}

func (c *firestoreCollection[T]) Put(ctx context.Context, id string, doc T) error {
	fields, err := toFields(id, doc)
	if err != nil {
		return err
	}
	if _, err := c.coll.Doc(id).Set(ctx, fields); err != nil {
		return fmt.Errorf("set document: %w", err)
	}
	return nil
}

func (c *firestoreCollection[T]) PutIfAbsent(ctx context.Context, id string, doc T) (bool, error) {
	fields, err := toFields(id, doc)
	if err != nil {
		return false, err
	}
	if _, err := c.coll.Doc(id).Create(ctx, fields); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return false, nil
		}
		return false, fmt.Errorf("create document: %w", err)
	}
	return true, nil
}

func (c *firestoreCollection[T]) Get(ctx context.Context, id string) (*Record[T], error) {
	snap, err := c.coll.Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	rec, err := c.decode(snap)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *firestoreCollection[T]) List(ctx context.Context) ([]Record[T], error) {
	return c.collect(c.coll.Documents(ctx))
}

func (c *firestoreCollection[T]) Find(ctx context.Context, field string, value any) ([]Record[T], error) {
	v, err := normalize(value)
	if err != nil {
		return nil, err
	}
	return c.collect(c.coll.Where(field, "==", v).Documents(ctx))
}

func (c *firestoreCollection[T]) collect(it *firestore.DocumentIterator) ([]Record[T], error) {
	defer it.Stop()
	var out []Record[T]
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("iterate documents: %w", err)
		}
		rec, err := c.decode(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

func (c *firestoreCollection[T]) Update(ctx context.Context, id string, fields map[string]any) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	updates := make([]firestore.Update, 0, len(keys))
	for _, k := range keys {
		v, err := normalize(fields[k])
		if err != nil {
			return err
		}
		updates = append(updates, firestore.Update{Path: k, Value: v})
	}
	if len(updates) == 0 {
		return nil
	}
	if _, err := c.coll.Doc(id).Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		return fmt.Errorf("update document: %w", err)
	}
	return nil
}

func (c *firestoreCollection[T]) Delete(ctx context.Context, id string) error {
	if _, err := c.coll.Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Subscribe streams query snapshots; the first one is the current state.
func (c *firestoreCollection[T]) Subscribe(ctx context.Context, onChange func([]Record[T])) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	it := c.coll.Snapshots(ctx)

	first, err := c.nextSnapshot(it)
	if err != nil {
		cancel()
		it.Stop()
		return nil, err
	}
	onChange(first)

	go func() {
		for {
			docs, err := c.nextSnapshot(it)
			if err != nil {
				if ctx.Err() == nil && status.Code(err) != codes.Canceled {
					c.logger.Warn("snapshot listener stopped", zap.Error(err))
				}
				return
			}
			onChange(docs)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			it.Stop()
		})
	}, nil
}

func (c *firestoreCollection[T]) nextSnapshot(it *firestore.QuerySnapshotIterator) ([]Record[T], error) {
	snap, err := it.Next()
	if err != nil {
		return nil, err
	}
	docs, err := snap.Documents.GetAll()
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	out := make([]Record[T], 0, len(docs))
	for _, d := range docs {
		rec, err := c.decode(d)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
