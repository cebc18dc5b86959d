package catalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/imrishuroy/bagshop/internal/docstore"
)

// Categories reads and edits the categories collection.
type Categories struct {
	repo *docstore.Repo[Category, *Category]
}

func NewCategories(b *docstore.Backend) *Categories {
	return &Categories{repo: docstore.NewRepo[Category](docstore.Open[Category](b, docstore.Categories))}
}

func (s *Categories) List(ctx context.Context) ([]Category, error) {
	out, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	sortByName(out, func(c Category) string { return c.Name })
	return out, nil
}

func (s *Categories) Create(ctx context.Context, c Category) (Category, error) {
	return s.repo.Create(ctx, c)
}

func (s *Categories) Update(ctx context.Context, id string, c Category) (Category, error) {
	return s.repo.Replace(ctx, id, c)
}

func (s *Categories) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func (s *Categories) Subscribe(ctx context.Context, fn func([]Category)) (func(), error) {
	return s.repo.Subscribe(ctx, func(cs []Category) {
		sortByName(cs, func(c Category) string { return c.Name })
		fn(cs)
	})
}

// HeroImages reads and edits the carousel slides.
type HeroImages struct {
	repo *docstore.Repo[HeroImage, *HeroImage]
}

func NewHeroImages(b *docstore.Backend) *HeroImages {
	return &HeroImages{repo: docstore.NewRepo[HeroImage](docstore.Open[HeroImage](b, docstore.HeroImages))}
}

func sortByOrder(hs []HeroImage) {
	sort.SliceStable(hs, func(i, j int) bool { return hs[i].Order < hs[j].Order })
}

func activeOnly(hs []HeroImage) []HeroImage {
	out := make([]HeroImage, 0, len(hs))
	for _, h := range hs {
		if h.IsActive {
			out = append(out, h)
		}
	}
	return out
}

// List returns all slides by display order.
func (s *HeroImages) List(ctx context.Context) ([]HeroImage, error) {
	out, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list hero images: %w", err)
	}
	sortByOrder(out)
	return out, nil
}

// Active returns the active slides by display order.
func (s *HeroImages) Active(ctx context.Context) ([]HeroImage, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return activeOnly(all), nil
}

func (s *HeroImages) Create(ctx context.Context, h HeroImage) (HeroImage, error) {
	return s.repo.Create(ctx, h)
}

func (s *HeroImages) Update(ctx context.Context, id string, h HeroImage) (HeroImage, error) {
	return s.repo.Replace(ctx, id, h)
}

func (s *HeroImages) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// SubscribeActive delivers the active slides on every change.
func (s *HeroImages) SubscribeActive(ctx context.Context, fn func([]HeroImage)) (func(), error) {
	return s.repo.Subscribe(ctx, func(hs []HeroImage) {
		sortByOrder(hs)
		fn(activeOnly(hs))
	})
}

// Banners reads and edits the banner text entries.
type Banners struct {
	repo *docstore.Repo[BannerText, *BannerText]
}

func NewBanners(b *docstore.Backend) *Banners {
	return &Banners{repo: docstore.NewRepo[BannerText](docstore.Open[BannerText](b, docstore.BannerText))}
}

func sortByCreated(bs []BannerText) {
	sort.SliceStable(bs, func(i, j int) bool { return bs[i].CreatedAt.Before(bs[j].CreatedAt) })
}

func firstActive(bs []BannerText) *BannerText {
	sortByCreated(bs)
	for i := range bs {
		if bs[i].IsActive {
			return &bs[i]
		}
	}
	return nil
}

// List returns every banner, oldest first.
func (s *Banners) List(ctx context.Context) ([]BannerText, error) {
	out, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list banner text: %w", err)
	}
	sortByCreated(out)
	return out, nil
}

// Current returns the banner to display, or nil when none is active.
func (s *Banners) Current(ctx context.Context) (*BannerText, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list banner text: %w", err)
	}
	return firstActive(all), nil
}

func (s *Banners) Create(ctx context.Context, b BannerText) (BannerText, error) {
	return s.repo.Create(ctx, b)
}

func (s *Banners) Update(ctx context.Context, id string, b BannerText) (BannerText, error) {
	return s.repo.Replace(ctx, id, b)
}

func (s *Banners) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// SubscribeCurrent delivers the displayed banner (or nil) on every change.
func (s *Banners) SubscribeCurrent(ctx context.Context, fn func(*BannerText)) (func(), error) {
	return s.repo.Subscribe(ctx, func(bs []BannerText) {
		fn(firstActive(bs))
	})
}
