// Package offers manages time-limited product discounts. Whether an offer is
// live is always computed from its end time; the stored isActive flag alone
// is never trusted.
package offers

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/imrishuroy/bagshop/internal/catalog"
	"github.com/imrishuroy/bagshop/internal/docstore"
)

// sweepParallelism bounds concurrent deactivation writes.
const sweepParallelism = 8

// Offer discounts one product until EndTime.
type Offer struct {
	docstore.Meta
	ProductID          string    `json:"productId" validate:"required"`
	ProductName        string    `json:"productName"`
	DiscountPercentage float64   `json:"discountPercentage" validate:"gte=1,lte=100"`
	EndTime            time.Time `json:"endTime" validate:"required"`
	IsActive           bool      `json:"isActive"`
}

// Expired reports endTime <= now.
func (o Offer) Expired(now time.Time) bool {
	return !o.EndTime.After(now)
}

// LiveAt reports whether the offer applies at now.
func (o Offer) LiveAt(now time.Time) bool {
	return o.IsActive && !o.Expired(now)
}

// Remaining is the time left, zero once expired.
func (o Offer) Remaining(now time.Time) time.Duration {
	if o.Expired(now) {
		return 0
	}
	return o.EndTime.Sub(now)
}

// Apply returns price reduced by the offer percentage, rounded to piasters.
func (o Offer) Apply(price float64) float64 {
	factor := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(o.DiscountPercentage).Div(decimal.NewFromInt(100)))
	return decimal.NewFromFloat(price).Mul(factor).Round(2).InexactFloat64()
}

// ProductReader resolves the product an offer points at.
type ProductReader interface {
	Get(ctx context.Context, id string) (*catalog.Product, error)
}

// Service is the offers collection plus expiry logic.
type Service struct {
	repo     *docstore.Repo[Offer, *Offer]
	products ProductReader
	logger   *zap.Logger
}

func NewService(b *docstore.Backend, products ProductReader, logger *zap.Logger) *Service {
	return &Service{
		repo:     docstore.NewRepo[Offer](docstore.Open[Offer](b, docstore.Offers)),
		products: products,
		logger:   logger,
	}
}

// WithClock replaces the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.repo.WithClock(now)
	return s
}

func (s *Service) now() time.Time { return s.repo.Now() }

func liveOnly(all []Offer, now time.Time) []Offer {
	out := make([]Offer, 0, len(all))
	for _, o := range all {
		if o.LiveAt(now) {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EndTime.Before(out[j].EndTime) })
	return out
}

// List returns every offer, latest end time first.
func (s *Service) List(ctx context.Context) ([]Offer, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].EndTime.After(all[j].EndTime) })
	return all, nil
}

// Active returns live offers, soonest ending first.
func (s *Service) Active(ctx context.Context) ([]Offer, error) {
	stored, err := s.repo.Find(ctx, "isActive", true)
	if err != nil {
		return nil, fmt.Errorf("active offers: %w", err)
	}
	return liveOnly(stored, s.now()), nil
}

// ByProduct maps product ids to the live offer shown for them. When several
// are live the soonest ending wins.
func (s *Service) ByProduct(ctx context.Context) (map[string]Offer, error) {
	active, err := s.Active(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Offer, len(active))
	for _, o := range active {
		if _, seen := out[o.ProductID]; !seen {
			out[o.ProductID] = o
		}
	}
	return out, nil
}

// ForProduct returns the live offer of one product or nil.
func (s *Service) ForProduct(ctx context.Context, productID string) (*Offer, error) {
	byProduct, err := s.ByProduct(ctx)
	if err != nil {
		return nil, err
	}
	if o, ok := byProduct[productID]; ok {
		return &o, nil
	}
	return nil, nil
}

func (s *Service) fillProductName(ctx context.Context, o *Offer) error {
	if s.products == nil {
		return nil
	}
	p, err := s.products.Get(ctx, o.ProductID)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("offer product %s: %w", o.ProductID, docstore.ErrNotFound)
	}
	o.ProductName = p.Name
	return nil
}

// Create stores a new offer for an existing product.
func (s *Service) Create(ctx context.Context, o Offer) (Offer, error) {
	if err := s.fillProductName(ctx, &o); err != nil {
		return Offer{}, err
	}
	return s.repo.Create(ctx, o)
}

func (s *Service) Update(ctx context.Context, id string, o Offer) (Offer, error) {
	if err := s.fillProductName(ctx, &o); err != nil {
		return Offer{}, err
	}
	return s.repo.Replace(ctx, id, o)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// SubscribeActive delivers live offers on every change.
func (s *Service) SubscribeActive(ctx context.Context, fn func([]Offer)) (func(), error) {
	return s.repo.Subscribe(ctx, func(all []Offer) {
		fn(liveOnly(all, s.now()))
	})
}

// Sweep clears the stored isActive flag of expired offers and returns how
// many were switched off. Reads never depend on it having run.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	stored, err := s.repo.Find(ctx, "isActive", true)
	if err != nil {
		return 0, fmt.Errorf("sweep offers: %w", err)
	}
	now := s.now()

	var expired []Offer
	for _, o := range stored {
		if o.Expired(now) {
			expired = append(expired, o)
		}
	}
	if len(expired) == 0 {
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepParallelism)
	for _, o := range expired {
		id := o.ID
		g.Go(func() error {
			if err := s.repo.Update(gctx, id, map[string]any{"isActive": false}); err != nil {
				return fmt.Errorf("deactivate offer %s: %w", id, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	s.logger.Info("deactivated expired offers", zap.Int("count", len(expired)))
	return len(expired), nil
}
