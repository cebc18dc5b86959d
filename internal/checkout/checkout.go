// Package checkout turns a priced cart and a shipping form into a stored order
// and a WhatsApp hand-off link.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/imrishuroy/bagshop/internal/cart"
	"github.com/imrishuroy/bagshop/internal/localstore"
	"github.com/imrishuroy/bagshop/internal/orders"
	"github.com/imrishuroy/bagshop/internal/shipping"
	"github.com/imrishuroy/bagshop/internal/whatsapp"
)

// RedirectAfter is how long the success screen waits before going home.
const RedirectAfter = 3 * time.Second

var (
	// ErrEmptyCart blocks submission of a cart without lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrPersist means the order could not be stored; the cart is untouched.
	ErrPersist = errors.New("order could not be saved")
)

// Request is the shipping form.
type Request struct {
	CustomerName    string `json:"customerName" validate:"max=200"`
	PrimaryPhone    string `json:"primaryPhone" validate:"max=32"`
	SecondaryPhone  string `json:"secondaryPhone" validate:"max=32"`
	Governorate     string `json:"governorate" validate:"max=100"`
	District        string `json:"district" validate:"max=200"`
	DetailedAddress string `json:"detailedAddress" validate:"max=1000"`
	Notes           string `json:"notes" validate:"max=1000"`
}

// ValidationError lists the required fields that were left blank.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// Normalize trims every field.
func (r Request) Normalize() Request {
	for _, f := range []*string{
		&r.CustomerName, &r.PrimaryPhone, &r.SecondaryPhone, &r.Governorate,
		&r.District, &r.DetailedAddress, &r.Notes,
	} {
		*f = strings.TrimSpace(*f)
	}
	return r
}

// Validate requires name, primary phone, governorate and detailed address.
func (r Request) Validate() error {
	r = r.Normalize()
	var missing []string
	for _, f := range []struct {
		name, value string
	}{
		{"customerName", r.CustomerName},
		{"primaryPhone", r.PrimaryPhone},
		{"governorate", r.Governorate},
		{"detailedAddress", r.DetailedAddress},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

// OrderWriter persists orders.
type OrderWriter interface {
	Create(ctx context.Context, o orders.Order) (orders.Order, error)
}

// PhoneSource gives the WhatsApp number orders go to.
type PhoneSource interface {
	Phone() string
}

// EventPublisher announces placed orders. It may be nil.
type EventPublisher interface {
	Enabled() bool
	SendJSON(ctx context.Context, payload any, attributes map[string]string) error
}

// Redirect tells the client where to go after a successful checkout.
type Redirect struct {
	To           string `json:"to"`
	AfterSeconds int    `json:"afterSeconds"`
}

// Result is returned by a successful Submit.
type Result struct {
	OrderID     string      `json:"orderId"`
	DisplayID   string      `json:"displayId"`
	WhatsAppURL string      `json:"whatsappUrl"`
	Total       float64     `json:"total"`
	Totals      cart.Totals `json:"totals"`
	Redirect    Redirect    `json:"redirect"`
}

type Service struct {
	orders   OrderWriter
	rates    *shipping.Table
	counter  localstore.Counter
	phones   PhoneSource
	events   EventPublisher
	logger   *zap.Logger
	nowFunc  func() time.Time
	randIntN func(int) int
}

func NewService(
	ordersW OrderWriter,
	rates *shipping.Table,
	counter localstore.Counter,
	phones PhoneSource,
	events EventPublisher,
	logger *zap.Logger,
) *Service {
	return &Service{
		orders:   ordersW,
		rates:    rates,
		counter:  counter,
		phones:   phones,
		events:   events,
		logger:   logger,
		nowFunc:  time.Now,
		randIntN: rand.Intn,
	}
}

// WithClock replaces the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.nowFunc = now
	return s
}

// Quote prices the cart for delivery to governorate. Unknown governorates
// cost nothing to ship.
func (s *Service) Quote(c *cart.Cart, governorate string) cart.Totals {
	return c.Price(s.rates.Cost(governorate))
}

// nextDisplayID returns the zero-padded per-instance order number, or a
// timestamp-based id when the counter is unavailable.
func (s *Service) nextDisplayID() string {
	n, err := s.counter.Incr(localstore.KeyOrderCount)
	if err != nil {
		s.logger.Warn("order counter unavailable, using timestamp id", zap.Error(err))
		return strconv.FormatInt(s.nowFunc().UnixMilli(), 10) + "-" + strconv.Itoa(s.randIntN(1000))
	}
	return fmt.Sprintf("%03d", n)
}

// Submit validates the form, stores the order and empties the cart. On
// ErrPersist the cart and its discount are left as they were.
func (s *Service) Submit(ctx context.Context, c *cart.Cart, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}
	req = req.Normalize()
	totals := s.Quote(c, req.Governorate)
	now := s.nowFunc().UTC()

	order := orders.Order{
		DisplayID:       s.nextDisplayID(),
		CustomerName:    req.CustomerName,
		PrimaryPhone:    req.PrimaryPhone,
		SecondaryPhone:  req.SecondaryPhone,
		Governorate:     req.Governorate,
		District:        req.District,
		DetailedAddress: req.DetailedAddress,
		Notes:           req.Notes,
		Items:           c.Items(),
		Subtotal:        totals.Subtotal,
		DiscountCode:    totals.DiscountCode,
		DiscountAmount:  totals.DiscountAmount,
		ShippingCost:    totals.ShippingCost,
		Total:           totals.Total,
		OrderDate:       now,
	}

	link := whatsapp.Link(s.phones.Phone(), whatsapp.Format(order.Summary()))

	saved, err := s.orders.Create(ctx, order)
	if err != nil {
		s.logger.Error("persist order", zap.String("displayId", order.DisplayID), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrPersist, err)
	}

	c.Clear()
	c.RemoveCode()

	s.publish(ctx, saved)

	return &Result{
		OrderID:     saved.ID,
		DisplayID:   saved.DisplayID,
		WhatsAppURL: link,
		Total:       saved.Total,
		Totals:      totals,
		Redirect:    Redirect{To: "/", AfterSeconds: int(RedirectAfter / time.Second)},
	}, nil
}

func (s *Service) publish(ctx context.Context, o orders.Order) {
	if s.events == nil || !s.events.Enabled() {
		return
	}
	ev := orders.Placed{
		OrderID:   o.ID,
		DisplayID: o.DisplayID,
		Total:     o.Total,
		Items:     len(o.Items),
		OrderDate: o.OrderDate,
	}
	attrs := map[string]string{"type": orders.EventPlaced, "order_id": o.ID}
	if err := s.events.SendJSON(ctx, ev, attrs); err != nil {
		s.logger.Warn("publish order event", zap.String("orderId", o.ID), zap.Error(err))
	}
}

// ResendLink rebuilds the WhatsApp link of a stored order.
func ResendLink(phone string, o orders.Order) string {
	return whatsapp.Link(phone, whatsapp.Format(o.Summary()))
}
