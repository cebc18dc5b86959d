package catalog

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/imrishuroy/bagshop/internal/docstore"
)

// featuredFallback is how many products stand in when none is featured.
const featuredFallback = 4

// Products reads and edits the products collection.
type Products struct {
	repo *docstore.Repo[Product, *Product]
}

func NewProducts(b *docstore.Backend) *Products {
	return &Products{repo: docstore.NewRepo[Product](docstore.Open[Product](b, docstore.Products))}
}

// sortByName orders names the way an Arabic reader expects.
func sortByName[T any](items []T, name func(T) string) {
	c := collate.New(language.Arabic, collate.IgnoreCase)
	sort.SliceStable(items, func(i, j int) bool {
		return c.CompareString(name(items[i]), name(items[j])) < 0
	})
}

// List returns every product sorted by name.
func (s *Products) List(ctx context.Context) ([]Product, error) {
	out, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	sortByName(out, func(p Product) string { return p.Name })
	return out, nil
}

// ByCategory returns the products of one category sorted by name.
func (s *Products) ByCategory(ctx context.Context, category string) ([]Product, error) {
	out, err := s.repo.Find(ctx, "category", category)
	if err != nil {
		return nil, fmt.Errorf("products by category: %w", err)
	}
	sortByName(out, func(p Product) string { return p.Name })
	return out, nil
}

// Featured returns the featured products, or the first few by name when
// nothing is featured.
func (s *Products) Featured(ctx context.Context) ([]Product, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var featured []Product
	for _, p := range all {
		if p.Featured {
			featured = append(featured, p)
		}
	}
	if len(featured) > 0 {
		return featured, nil
	}
	if len(all) > featuredFallback {
		all = all[:featuredFallback]
	}
	return all, nil
}

// Get returns (nil, nil) for an unknown id.
func (s *Products) Get(ctx context.Context, id string) (*Product, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	return p, nil
}

func (s *Products) Create(ctx context.Context, p Product) (Product, error) {
	return s.repo.Create(ctx, p)
}

func (s *Products) Update(ctx context.Context, id string, p Product) (Product, error) {
	return s.repo.Replace(ctx, id, p)
}

func (s *Products) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// Subscribe delivers the name-sorted product list on every change.
func (s *Products) Subscribe(ctx context.Context, fn func([]Product)) (func(), error) {
	return s.repo.Subscribe(ctx, func(ps []Product) {
		sortByName(ps, func(p Product) string { return p.Name })
		fn(ps)
	})
}
