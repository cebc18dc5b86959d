package docstore

import (
	"context"
	"time"
)

// Meta is embedded by stored documents.
type Meta struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Metadata gives Repo access to the embedded Meta.
func (m *Meta) Metadata() *Meta { return m }

// Doc is satisfied by pointers to structs embedding Meta.
type Doc[T any] interface {
	*T
	Metadata() *Meta
}

// Repo adds ids and timestamps on top of a Collection.
type Repo[T any, P Doc[T]] struct {
	coll    Collection[T]
	nowFunc func() time.Time
}

// NewRepo wraps c.
func NewRepo[T any, P Doc[T]](c Collection[T]) *Repo[T, P] {
	return &Repo[T, P]{coll: c, nowFunc: time.Now}
}

// WithClock replaces the time source, for tests.
func (r *Repo[T, P]) WithClock(now func() time.Time) *Repo[T, P] {
	r.nowFunc = now
	return r
}

// Now is the repo's current time.
func (r *Repo[T, P]) Now() time.Time { return r.nowFunc() }

// Collection exposes the underlying collection.
func (r *Repo[T, P]) Collection() Collection[T] { return r.coll }

func values[T any, P Doc[T]](recs []Record[T]) []T {
	out := make([]T, len(recs))
	for i, rec := range recs {
		out[i] = rec.Data
		P(&out[i]).Metadata().ID = rec.ID
	}
	return out
}

func (r *Repo[T, P]) List(ctx context.Context) ([]T, error) {
	recs, err := r.coll.List(ctx)
	if err != nil {
		return nil, err
	}
	return values[T, P](recs), nil
}

func (r *Repo[T, P]) Find(ctx context.Context, field string, value any) ([]T, error) {
	recs, err := r.coll.Find(ctx, field, value)
	if err != nil {
		return nil, err
	}
	return values[T, P](recs), nil
}

// Get returns (nil, nil) when id is absent.
func (r *Repo[T, P]) Get(ctx context.Context, id string) (*T, error) {
	rec, err := r.coll.Get(ctx, id)
	if err != nil || rec == nil {
		return nil, err
	}
	doc := rec.Data
	P(&doc).Metadata().ID = rec.ID
	return &doc, nil
}

// Create stamps doc and stores it under a new id.
func (r *Repo[T, P]) Create(ctx context.Context, doc T) (T, error) {
	now := r.nowFunc().UTC()
	m := P(&doc).Metadata()
	m.ID = ""
	m.CreatedAt, m.UpdatedAt = now, now

	id, err := r.coll.Create(ctx, doc)
	if err != nil {
		var zero T
		return zero, err
	}
	m.ID = id
	return doc, nil
}

// Replace overwrites an existing document, keeping its creation time.
func (r *Repo[T, P]) Replace(ctx context.Context, id string, doc T) (T, error) {
	var zero T
	existing, err := r.Get(ctx, id)
	if err != nil {
		return zero, err
	}
	if existing == nil {
		return zero, ErrNotFound
	}
	m := P(&doc).Metadata()
	m.ID = id
	m.CreatedAt = P(existing).Metadata().CreatedAt
	m.UpdatedAt = r.nowFunc().UTC()
	if err := r.coll.Put(ctx, id, doc); err != nil {
		return zero, err
	}
	return doc, nil
}

// Update sets fields and refreshes updatedAt.
func (r *Repo[T, P]) Update(ctx context.Context, id string, fields map[string]any) error {
	patch := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		patch[k] = v
	}
	patch["updatedAt"] = r.nowFunc().UTC()
	return r.coll.Update(ctx, id, patch)
}

func (r *Repo[T, P]) Delete(ctx context.Context, id string) error {
	return r.coll.Delete(ctx, id)
}

// Subscribe delivers decoded snapshots to fn.
func (r *Repo[T, P]) Subscribe(ctx context.Context, fn func([]T)) (func(), error) {
	return r.coll.Subscribe(ctx, func(recs []Record[T]) {
		fn(values[T, P](recs))
	})
}
