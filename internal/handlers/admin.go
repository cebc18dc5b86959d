package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/bagshop/internal/auth"
	"github.com/imrishuroy/bagshop/internal/discounts"
	"github.com/imrishuroy/bagshop/internal/docstore"
	"github.com/imrishuroy/bagshop/internal/validation"
	"github.com/imrishuroy/bagshop/internal/whatsapp"
)

// crudService is what every admin-editable collection offers.
type crudService[T any] interface {
	List(ctx context.Context) ([]T, error)
	Create(ctx context.Context, doc T) (T, error)
	Update(ctx context.Context, id string, doc T) (T, error)
	Delete(ctx context.Context, id string) error
}

func (h *handler) registerAdmin(g *gin.RouterGroup) {
	g.GET("/me", h.me)

	registerCRUD(h, g, "/products", h.Products)
	registerCRUD(h, g, "/categories", h.Categories)
	registerCRUD(h, g, "/offers", h.Offers)
	registerCRUD(h, g, "/discount-codes", h.Discounts)
	registerCRUD(h, g, "/hero-images", h.HeroImages)
	registerCRUD(h, g, "/banner-text", h.Banners)
	g.POST("/offers/sweep", h.sweepOffers)

	g.GET("/orders", h.listOrders)
	g.GET("/orders/export", h.exportOrders)
	g.GET("/orders/:id", h.getOrder)
	g.DELETE("/orders/:id", h.deleteOrder)
	g.POST("/orders/:id/confirm", h.setConfirmed(true))
	g.POST("/orders/:id/unconfirm", h.setConfirmed(false))
	g.POST("/orders/:id/resend", h.resendOrder)

	g.GET("/settings/whatsapp", h.getWhatsApp)
	g.PUT("/settings/whatsapp", h.putWhatsApp)

	g.GET("/live/orders", h.liveOrders)
}

func registerCRUD[T any](h *handler, g *gin.RouterGroup, path string, svc crudService[T]) {
	g.GET(path, func(c *gin.Context) {
		all, err := svc.List(c.Request.Context())
		if err != nil {
			h.storeError(c, "list "+path, err)
			return
		}
		c.JSON(http.StatusOK, all)
	})

	g.POST(path, func(c *gin.Context) {
		var doc T
		if err := validation.BindAndValidate(c, &doc, h.Validator); err != nil {
			return
		}
		created, err := svc.Create(c.Request.Context(), doc)
		if err != nil {
			h.writeError(c, "create "+path, err, true)
			return
		}
		c.JSON(http.StatusCreated, created)
	})

	g.PUT(path+"/:id", func(c *gin.Context) {
		var doc T
		if err := validation.BindAndValidate(c, &doc, h.Validator); err != nil {
			return
		}
		updated, err := svc.Update(c.Request.Context(), c.Param("id"), doc)
		if err != nil {
			h.writeError(c, "update "+path, err, false)
			return
		}
		c.JSON(http.StatusOK, updated)
	})

	g.DELETE(path+"/:id", func(c *gin.Context) {
		if err := svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
			h.storeError(c, "delete "+path, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}

// writeError maps admin write failures. On create, ErrNotFound can only mean
// a dangling reference such as an offer for a missing product.
func (h *handler) writeError(c *gin.Context, op string, err error, creating bool) {
	switch {
	case errors.Is(err, discounts.ErrDuplicateCode):
		errorJSON(c, http.StatusConflict, "duplicate_code")
	case creating && errors.Is(err, docstore.ErrNotFound):
		errorJSON(c, http.StatusUnprocessableEntity, "unknown_reference")
	default:
		h.storeError(c, op, err)
	}
}

func (h *handler) login(c *gin.Context) {
	var req validation.LoginRequest
	if err := validation.BindAndValidate(c, &req, h.Validator); err != nil {
		return
	}
	if h.SignIn == nil {
		errorJSON(c, http.StatusServiceUnavailable, "login_unavailable")
		return
	}
	sess, err := h.SignIn.SignIn(c.Request.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		errorJSON(c, http.StatusUnauthorized, "invalid_credentials")
	case err != nil:
		h.Logger.Error("admin sign-in", zap.Error(err))
		errorJSON(c, http.StatusBadGateway, "auth_unavailable")
	default:
		h.Logger.Info("admin signed in", zap.String("email", sess.Identity.Email))
		c.JSON(http.StatusOK, sess)
	}
}

func (h *handler) me(c *gin.Context) {
	id, _ := auth.FromContext(c)
	c.JSON(http.StatusOK, id)
}

func (h *handler) getWhatsApp(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"phone": h.Phones.Phone()})
}

func (h *handler) putWhatsApp(c *gin.Context) {
	var req validation.WhatsAppSettingsRequest
	if err := validation.BindAndValidate(c, &req, h.Validator); err != nil {
		return
	}
	phone, err := h.Phones.SetPhone(req.Phone)
	switch {
	case errors.Is(err, whatsapp.ErrInvalidPhone):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_phone", "message": err.Error()})
	case err != nil:
		h.Logger.Error("save whatsapp number", zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, "storage_error")
	default:
		c.JSON(http.StatusOK, gin.H{"phone": phone})
	}
}

func (h *handler) sweepOffers(c *gin.Context) {
	n, err := h.Offers.Sweep(c.Request.Context())
	if err != nil {
		h.Logger.Error("manual offer sweep", zap.Int("deactivated", n), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sweep_failed", "deactivated": n})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deactivated": n})
}
