package orders

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/imrishuroy/bagshop/internal/docstore"
)

// Store encapsulates operations on the orders collection.
type Store struct {
	repo    *docstore.Repo[Order, *Order]
	nowFunc func() time.Time
}

// NewStore creates a new orders Store.
func NewStore(b *docstore.Backend) *Store {
	return &Store{
		repo:    docstore.NewRepo[Order](docstore.Open[Order](b, docstore.Orders)),
		nowFunc: time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.nowFunc = now
	s.repo.WithClock(now)
	return s
}

// Create persists a new order and returns it with its document id. A zero
// OrderDate is set to now.
func (s *Store) Create(ctx context.Context, o Order) (Order, error) {
	if o.OrderDate.IsZero() {
		o.OrderDate = s.nowFunc().UTC()
	}
	created, err := s.repo.Create(ctx, o)
	if err != nil {
		return Order{}, fmt.Errorf("create order: %w", err)
	}
	return created, nil
}

// Get fetches an order by id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, id string) (*Order, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func newestFirst(os []Order) {
	sort.SliceStable(os, func(i, j int) bool { return os[i].OrderDate.After(os[j].OrderDate) })
}

// List returns every order, newest first.
func (s *Store) List(ctx context.Context) ([]Order, error) {
	out, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	newestFirst(out)
	return out, nil
}

// Search lists the orders matching f, newest first.
func (s *Store) Search(ctx context.Context, f Filter) ([]Order, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return Apply(all, f), nil
}

// Apply filters orders in memory.
func Apply(all []Order, f Filter) []Order {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]Order, 0, len(all))
	for _, o := range all {
		switch f.Status {
		case StatusConfirmed:
			if !o.IsConfirmed {
				continue
			}
		case StatusPending:
			if o.IsConfirmed {
				continue
			}
		}
		if q != "" && !matches(o, q) {
			continue
		}
		out = append(out, o)
	}
	return out
}

func matches(o Order, q string) bool {
	return strings.Contains(strings.ToLower(o.CustomerName), q) ||
		strings.Contains(o.PrimaryPhone, q) ||
		(o.SecondaryPhone != "" && strings.Contains(o.SecondaryPhone, q)) ||
		strings.Contains(strings.ToLower(o.ID), q) ||
		strings.Contains(strings.ToLower(o.DisplayID), q)
}

// Summarize counts orders and sums the revenue of confirmed ones.
func Summarize(all []Order) Stats {
	st := Stats{Total: len(all)}
	revenue := decimal.Zero
	for _, o := range all {
		if o.IsConfirmed {
			st.Confirmed++
			revenue = revenue.Add(decimal.NewFromFloat(o.Total))
		} else {
			st.Pending++
		}
	}
	st.Revenue = revenue.Round(2).InexactFloat64()
	return st
}

// SetConfirmed sets the confirmation flag. Returns docstore.ErrNotFound for an
// unknown id.
func (s *Store) SetConfirmed(ctx context.Context, id string, confirmed bool) error {
	if err := s.repo.Update(ctx, id, map[string]any{"isConfirmed": confirmed}); err != nil {
		return fmt.Errorf("set order %s confirmed=%t: %w", id, confirmed, err)
	}
	return nil
}

func (s *Store) Confirm(ctx context.Context, id string) error {
	return s.SetConfirmed(ctx, id, true)
}

func (s *Store) Unconfirm(ctx context.Context, id string) error {
	return s.SetConfirmed(ctx, id, false)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete order %s: %w", id, err)
	}
	return nil
}

// Subscribe delivers all orders, newest first, on every change.
func (s *Store) Subscribe(ctx context.Context, fn func([]Order)) (func(), error) {
	return s.repo.Subscribe(ctx, func(os []Order) {
		newestFirst(os)
		fn(os)
	})
}
