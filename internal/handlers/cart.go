package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/bagshop/internal/cart"
	"github.com/imrishuroy/bagshop/internal/localstore"
	"github.com/imrishuroy/bagshop/internal/validation"
)

// cartView is the cart as returned by every cart endpoint.
type cartView struct {
	Items         []cart.Item `json:"items"`
	Totals        cart.Totals `json:"totals"`
	DiscountError string      `json:"discountError,omitempty"`
}

var discountStatus = map[error]struct {
	status int
	code   string
}{
	cart.ErrEmptyCode:    {http.StatusBadRequest, "empty_code"},
	cart.ErrCodeNotFound: {http.StatusNotFound, "code_not_found"},
	cart.ErrCodeInactive: {http.StatusConflict, "code_inactive"},
	cart.ErrLookup:       {http.StatusBadGateway, "lookup_failed"},
}

func (h *handler) registerCart(api *gin.RouterGroup) {
	api.GET("/cart", h.getCart)
	api.DELETE("/cart", h.clearCart)
	api.POST("/cart/items", h.addCartItem)
	api.PUT("/cart/items/:id", h.setCartQuantity)
	api.DELETE("/cart/items/:id", h.removeCartItem)
	api.POST("/cart/discount", h.applyDiscount)
	api.DELETE("/cart/discount", h.removeDiscount)
}

// sessionCart loads the visitor's cart from their session.
func (h *handler) sessionCart(c *gin.Context) *cart.Cart {
	kv := localstore.NewSessionKV(h.Sessions, c.Request, c.Writer, h.Logger)
	return cart.Load(kv, h.Logger)
}

func (h *handler) renderCart(c *gin.Context, status int, crt *cart.Cart) {
	c.JSON(status, cartView{
		Items:         crt.Items(),
		Totals:        h.Checkout.Quote(crt, c.Query("governorate")),
		DiscountError: crt.DiscountError(),
	})
}

func (h *handler) getCart(c *gin.Context) {
	h.renderCart(c, http.StatusOK, h.sessionCart(c))
}

func (h *handler) clearCart(c *gin.Context) {
	crt := h.sessionCart(c)
	crt.Clear()
	h.renderCart(c, http.StatusOK, crt)
}

// addCartItem resolves the product and its live offer so the line carries
// the price the shopper actually pays.
func (h *handler) addCartItem(c *gin.Context) {
	ctx := c.Request.Context()

	var req validation.AddCartItemRequest
	if err := validation.BindAndValidate(c, &req, h.Validator); err != nil {
		return
	}

	p, err := h.Products.Get(ctx, req.ProductID)
	if err != nil {
		h.storeError(c, "get product", err)
		return
	}
	if p == nil {
		errorJSON(c, http.StatusNotFound, "product_not_found")
		return
	}
	if !p.HasColor(req.Color) {
		errorJSON(c, http.StatusBadRequest, "unknown_color")
		return
	}
	if !p.InStock {
		errorJSON(c, http.StatusConflict, "out_of_stock")
		return
	}

	price := p.Price
	offer, err := h.Offers.ForProduct(ctx, p.ID)
	if err != nil {
		h.Logger.Warn("load product offer", zap.String("productId", p.ID), zap.Error(err))
	}
	if offer != nil {
		price = offer.Apply(price)
	}

	crt := h.sessionCart(c)
	crt.AddItem(cart.Item{
		ProductID: p.ID,
		Color:     req.Color,
		Name:      p.Name,
		Price:     price,
		Quantity:  req.Quantity,
		Image:     p.ColorImage(req.Color),
	})
	h.renderCart(c, http.StatusOK, crt)
}

func findLine(crt *cart.Cart, id string) (cart.Item, bool) {
	for _, it := range crt.Items() {
		if it.ID == id {
			return it, true
		}
	}
	return cart.Item{}, false
}

func (h *handler) setCartQuantity(c *gin.Context) {
	var req validation.SetQuantityRequest
	if err := validation.BindAndValidate(c, &req, h.Validator); err != nil {
		return
	}
	crt := h.sessionCart(c)
	line, ok := findLine(crt, c.Param("id"))
	if !ok {
		errorJSON(c, http.StatusNotFound, "line_not_found")
		return
	}
	crt.SetQuantity(line.ProductID, line.Color, req.Quantity)
	h.renderCart(c, http.StatusOK, crt)
}

func (h *handler) removeCartItem(c *gin.Context) {
	crt := h.sessionCart(c)
	crt.RemoveLine(c.Param("id"))
	h.renderCart(c, http.StatusOK, crt)
}

func (h *handler) applyDiscount(c *gin.Context) {
	if !h.limiter.allow(c.ClientIP()) {
		errorJSON(c, http.StatusTooManyRequests, "rate_limited")
		return
	}
	var req validation.ApplyDiscountRequest
	if err := validation.BindAndValidate(c, &req, h.Validator); err != nil {
		return
	}

	crt := h.sessionCart(c)
	err := crt.ApplyCode(c.Request.Context(), h.Discounts, req.Code)
	if err == nil {
		h.renderCart(c, http.StatusOK, crt)
		return
	}
	for known, m := range discountStatus {
		if errors.Is(err, known) {
			c.JSON(m.status, gin.H{"error": m.code, "message": cart.Message(err)})
			return
		}
	}
	h.Logger.Error("apply discount code", zap.Error(err))
	errorJSON(c, http.StatusInternalServerError, "lookup_failed")
}

func (h *handler) removeDiscount(c *gin.Context) {
	crt := h.sessionCart(c)
	crt.RemoveCode()
	h.renderCart(c, http.StatusOK, crt)
}
