// Package discounts stores shopper-entered discount codes. Codes are kept
// uppercase and matched case-insensitively.
package discounts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/imrishuroy/bagshop/internal/docstore"
)

// ErrDuplicateCode is returned when another document already uses the code.
var ErrDuplicateCode = errors.New("discount code already exists")

// Code is a percentage discount a shopper can apply to the whole cart.
type Code struct {
	docstore.Meta
	Code               string  `json:"code" validate:"required,max=64"`
	DiscountPercentage float64 `json:"discountPercentage" validate:"gte=1,lte=100"`
	IsActive           bool    `json:"isActive"`
}

// Normalize trims and uppercases a code as typed by a user.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

type Service struct {
	repo *docstore.Repo[Code, *Code]
}

func NewService(b *docstore.Backend) *Service {
	return &Service{repo: docstore.NewRepo[Code](docstore.Open[Code](b, docstore.DiscountCodes))}
}

// List returns all codes alphabetically.
func (s *Service) List(ctx context.Context) ([]Code, error) {
	out, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list discount codes: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// FindByCode looks a code up regardless of its active flag. It returns
// (nil, nil) when no document matches.
func (s *Service) FindByCode(ctx context.Context, code string) (*Code, error) {
	code = Normalize(code)
	if code == "" {
		return nil, nil
	}
	found, err := s.repo.Find(ctx, "code", code)
	if err != nil {
		return nil, fmt.Errorf("find discount code: %w", err)
	}
	if len(found) == 0 {
		return nil, nil
	}
	// prefer an active duplicate left over from before uniqueness was enforced
	for i := range found {
		if found[i].IsActive {
			return &found[i], nil
		}
	}
	return &found[0], nil
}

func (s *Service) checkUnique(ctx context.Context, code, selfID string) error {
	found, err := s.repo.Find(ctx, "code", code)
	if err != nil {
		return fmt.Errorf("check discount code: %w", err)
	}
	for _, c := range found {
		if c.ID != selfID {
			return fmt.Errorf("%s: %w", code, ErrDuplicateCode)
		}
	}
	return nil
}

func (s *Service) Create(ctx context.Context, c Code) (Code, error) {
	c.Code = Normalize(c.Code)
	if err := s.checkUnique(ctx, c.Code, ""); err != nil {
		return Code{}, err
	}
	return s.repo.Create(ctx, c)
}

func (s *Service) Update(ctx context.Context, id string, c Code) (Code, error) {
	c.Code = Normalize(c.Code)
	if err := s.checkUnique(ctx, c.Code, id); err != nil {
		return Code{}, err
	}
	return s.repo.Replace(ctx, id, c)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) Subscribe(ctx context.Context, fn func([]Code)) (func(), error) {
	return s.repo.Subscribe(ctx, fn)
}
