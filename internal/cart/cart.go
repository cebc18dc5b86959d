// Package cart is the shopper's cart and applied discount code. A Cart lives
// on top of a localstore.KV, normally the visitor's session, and writes
// itself back after every mutation. Storage failures are logged and
// otherwise ignored: the cart keeps working from memory.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/imrishuroy/bagshop/internal/discounts"
	"github.com/imrishuroy/bagshop/internal/localstore"
)

// Reasons a discount code could not be applied.
var (
	ErrEmptyCode    = errors.New("empty discount code")
	ErrCodeNotFound = errors.New("discount code not found")
	ErrCodeInactive = errors.New("discount code inactive")
	ErrLookup       = errors.New("discount code lookup failed")
)

var messages = map[error]string{
	ErrEmptyCode:    "Please enter a discount code",
	ErrCodeNotFound: "Invalid discount code",
	ErrCodeInactive: "This discount code is no longer active",
	ErrLookup:       "Error validating discount code. Please try again.",
}

// Item is one cart line. (ProductID, Color) identifies it; Price is the unit
// price with any offer already applied.
type Item struct {
	ID        string  `json:"id"`
	ProductID string  `json:"productId"`
	Color     string  `json:"color"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Image     string  `json:"image"`
}

// LineTotal is Price × Quantity.
func (i Item) LineTotal() float64 {
	return decimal.NewFromFloat(i.Price).Mul(decimal.NewFromInt(int64(i.Quantity))).Round(2).InexactFloat64()
}

// CodeFinder looks up discount codes; (nil, nil) means no such code.
type CodeFinder interface {
	FindByCode(ctx context.Context, code string) (*discounts.Code, error)
}

type Cart struct {
	kv     localstore.KV
	logger *zap.Logger

	items         []Item
	discount      *discounts.Code
	discountError string

	newID func() string
}

// Load rehydrates the cart stored in kv. Missing or unreadable state gives an
// empty cart.
func Load(kv localstore.KV, logger *zap.Logger) *Cart {
	c := &Cart{kv: kv, logger: logger, newID: uuid.NewString}
	c.items = loadJSON[[]Item](c, localstore.KeyCartItems)
	c.discount = loadJSON[*discounts.Code](c, localstore.KeyCartDiscount)
	if v, ok, err := kv.Get(localstore.KeyDiscountError); err == nil && ok {
		c.discountError = v
	}
	return c
}

func loadJSON[T any](c *Cart, key string) T {
	var out T
	raw, ok, err := c.kv.Get(key)
	if err != nil {
		c.logger.Warn("cart storage read failed", zap.String("key", key), zap.Error(err))
		return out
	}
	if !ok || raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		c.logger.Warn("discarding unreadable cart state", zap.String("key", key), zap.Error(err))
		var zero T
		return zero
	}
	return out
}

func (c *Cart) store(key string, v any) {
	var err error
	if v == nil {
		err = c.kv.Delete(key)
	} else {
		var raw []byte
		raw, err = json.Marshal(v)
		if err == nil {
			err = c.kv.Set(key, string(raw))
		}
	}
	if err != nil {
		c.logger.Warn("cart storage write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *Cart) saveItems() {
	c.store(localstore.KeyCartItems, c.items)
}

func (c *Cart) saveDiscount() {
	if c.discount == nil {
		c.store(localstore.KeyCartDiscount, nil)
	} else {
		c.store(localstore.KeyCartDiscount, c.discount)
	}
	if c.discountError == "" {
		c.store(localstore.KeyDiscountError, nil)
		return
	}
	if err := c.kv.Set(localstore.KeyDiscountError, c.discountError); err != nil {
		c.logger.Warn("cart storage write failed", zap.String("key", localstore.KeyDiscountError), zap.Error(err))
	}
}

func (c *Cart) find(productID, color string) int {
	for i, it := range c.items {
		if it.ProductID == productID && it.Color == color {
			return i
		}
	}
	return -1
}

// Items returns a copy of the lines in insertion order.
func (c *Cart) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// AddItem merges item into an existing line with the same product and colour,
// or appends it under a new line id. A quantity below one adds nothing; the
// existing line, if any, is returned unchanged.
func (c *Cart) AddItem(item Item) Item {
	i := c.find(item.ProductID, item.Color)
	if item.Quantity <= 0 {
		if i >= 0 {
			return c.items[i]
		}
		return Item{}
	}
	if i >= 0 {
		c.items[i].Quantity += item.Quantity
		c.saveItems()
		return c.items[i]
	}
	item.ID = c.newID()
	c.items = append(c.items, item)
	c.saveItems()
	return item
}

// RemoveItem drops the matching line; absent lines are ignored.
func (c *Cart) RemoveItem(productID, color string) {
	if i := c.find(productID, color); i >= 0 {
		c.items = append(c.items[:i], c.items[i+1:]...)
		c.saveItems()
	}
}

// RemoveLine drops a line by its id.
func (c *Cart) RemoveLine(id string) {
	for i, it := range c.items {
		if it.ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			c.saveItems()
			return
		}
	}
}

// SetQuantity overwrites a line's quantity; qty <= 0 removes the line.
func (c *Cart) SetQuantity(productID, color string, qty int) {
	if qty <= 0 {
		c.RemoveItem(productID, color)
		return
	}
	if i := c.find(productID, color); i >= 0 {
		c.items[i].Quantity = qty
		c.saveItems()
	}
}

func (c *Cart) Clear() {
	c.items = nil
	c.saveItems()
}

func (c *Cart) IsEmpty() bool { return len(c.items) == 0 }

func (c *Cart) subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range c.items {
		sum = sum.Add(decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum
}

// Subtotal is Σ price × quantity.
func (c *Cart) Subtotal() float64 {
	return c.subtotal().Round(2).InexactFloat64()
}

// ItemCount is Σ quantity.
func (c *Cart) ItemCount() int {
	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

// ApplyCode validates code and attaches a snapshot of it. Any failure clears
// the previously attached code and records the reason.
func (c *Cart) ApplyCode(ctx context.Context, finder CodeFinder, code string) error {
	err := c.applyCode(ctx, finder, code)
	if err != nil {
		c.discount = nil
		c.discountError = Message(err)
	} else {
		c.discountError = ""
	}
	c.saveDiscount()
	return err
}

func (c *Cart) applyCode(ctx context.Context, finder CodeFinder, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return ErrEmptyCode
	}
	found, err := finder.FindByCode(ctx, code)
	if err != nil {
		c.logger.Error("discount code lookup failed", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrLookup, err)
	}
	if found == nil {
		return ErrCodeNotFound
	}
	if !found.IsActive {
		return ErrCodeInactive
	}
	snapshot := *found
	c.discount = &snapshot
	return nil
}

// Message is the shopper-facing text for an ApplyCode error.
func Message(err error) string {
	for _, known := range []error{ErrEmptyCode, ErrCodeNotFound, ErrCodeInactive, ErrLookup} {
		if errors.Is(err, known) {
			return messages[known]
		}
	}
	return messages[ErrLookup]
}

// RemoveCode detaches the discount and clears any error.
func (c *Cart) RemoveCode() {
	c.discount = nil
	c.discountError = ""
	c.saveDiscount()
}

// Discount returns the attached snapshot or nil.
func (c *Cart) Discount() *discounts.Code {
	if c.discount == nil {
		return nil
	}
	d := *c.discount
	return &d
}

// DiscountError is the message of the last failed ApplyCode.
func (c *Cart) DiscountError() string { return c.discountError }

func (c *Cart) discountAmount() decimal.Decimal {
	if c.discount == nil {
		return decimal.Zero
	}
	pct := decimal.NewFromFloat(c.discount.DiscountPercentage)
	return c.subtotal().Mul(pct).Div(decimal.NewFromInt(100))
}

// DiscountAmount is subtotal × pct / 100, or 0 without a code.
func (c *Cart) DiscountAmount() float64 {
	return c.discountAmount().Round(2).InexactFloat64()
}

func (c *Cart) discountedTotal() decimal.Decimal {
	t := c.subtotal().Sub(c.discountAmount())
	if t.IsNegative() {
		return decimal.Zero
	}
	return t
}

// DiscountedTotal is max(0, subtotal − discount).
func (c *Cart) DiscountedTotal() float64 {
	return c.discountedTotal().Round(2).InexactFloat64()
}

// Total adds shipping to the discounted total.
func (c *Cart) Total(shipping float64) float64 {
	return c.discountedTotal().Add(decimal.NewFromFloat(shipping)).Round(2).InexactFloat64()
}

// Totals is the priced view of a cart.
type Totals struct {
	ItemCount          int     `json:"itemCount"`
	Subtotal           float64 `json:"subtotal"`
	DiscountCode       string  `json:"discountCode,omitempty"`
	DiscountPercentage float64 `json:"discountPercentage,omitempty"`
	DiscountAmount     float64 `json:"discountAmount"`
	DiscountedTotal    float64 `json:"discountedTotal"`
	ShippingCost       float64 `json:"shippingCost"`
	Total              float64 `json:"total"`
}

// Price computes every total for the given shipping cost.
func (c *Cart) Price(shipping float64) Totals {
	t := Totals{
		ItemCount:       c.ItemCount(),
		Subtotal:        c.Subtotal(),
		DiscountAmount:  c.DiscountAmount(),
		DiscountedTotal: c.DiscountedTotal(),
		ShippingCost:    shipping,
		Total:           c.Total(shipping),
	}
	if c.discount != nil {
		t.DiscountCode = c.discount.Code
		t.DiscountPercentage = c.discount.DiscountPercentage
	}
	return t
}
