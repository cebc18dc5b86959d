// Package handlers exposes the storefront, cart, checkout and admin APIs
// over gin.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"github.com/imrishuroy/bagshop/internal/auth"
	"github.com/imrishuroy/bagshop/internal/catalog"
	"github.com/imrishuroy/bagshop/internal/checkout"
	"github.com/imrishuroy/bagshop/internal/discounts"
	"github.com/imrishuroy/bagshop/internal/docstore"
	"github.com/imrishuroy/bagshop/internal/idempotency"
	"github.com/imrishuroy/bagshop/internal/offers"
	"github.com/imrishuroy/bagshop/internal/orders"
	"github.com/imrishuroy/bagshop/internal/shipping"
	"github.com/imrishuroy/bagshop/internal/whatsapp"
)

// HandlerConfig groups dependencies for the handlers.
type HandlerConfig struct {
	Logger    *zap.Logger
	Validator *validatorv10.Validate
	Sessions  sessions.Store

	Products   *catalog.Products
	Categories *catalog.Categories
	HeroImages *catalog.HeroImages
	Banners    *catalog.Banners
	Offers     *offers.Service
	Discounts  *discounts.Service
	Orders     *orders.Store

	Shipping    *shipping.Table
	Checkout    *checkout.Service
	Idempotency *idempotency.Store
	Phones      *whatsapp.PhoneBook

	Verifier auth.Verifier
	SignIn   auth.SignIner

	// DiscountRateLimit is the number of discount-code attempts allowed
	// per client IP per minute; zero disables the limit.
	DiscountRateLimit int
	// ExportLocation is the zone order dates are rendered in on export.
	ExportLocation *time.Location
}

type handler struct {
	HandlerConfig
	limiter *ipLimiter
}

// RegisterRoutes registers every route of the API.
func RegisterRoutes(r *gin.Engine, cfg HandlerConfig) {
	h := &handler{HandlerConfig: cfg, limiter: newIPLimiter(cfg.DiscountRateLimit)}

	api := r.Group("/api")
	h.registerStorefront(api)
	h.registerCart(api)
	api.POST("/checkout", h.submitCheckout)

	admin := r.Group("/admin")
	admin.POST("/login", h.login)
	guarded := admin.Group("", auth.Middleware(cfg.Verifier, cfg.Logger))
	h.registerAdmin(guarded)
}

func errorJSON(c *gin.Context, status int, code string) {
	c.JSON(status, gin.H{"error": code})
}

// storeError answers a failed storage call. ErrNotFound becomes 404.
func (h *handler) storeError(c *gin.Context, op string, err error) {
	if errors.Is(err, docstore.ErrNotFound) {
		errorJSON(c, http.StatusNotFound, "not_found")
		return
	}
	h.Logger.Error(op, zap.Error(err))
	errorJSON(c, http.StatusInternalServerError, "storage_error")
}
