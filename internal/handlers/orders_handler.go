package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/bagshop/internal/checkout"
	"github.com/imrishuroy/bagshop/internal/idempotency"
	"github.com/imrishuroy/bagshop/internal/orders"
	"github.com/imrishuroy/bagshop/internal/validation"
)

func requestHash(req checkout.Request) string {
	raw, _ := json.Marshal(req.Normalize())
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// replay answers a request whose Idempotency-Key was seen before. It reports
// false when the caller should go on and run the checkout.
func (h *handler) replay(c *gin.Context, key, hash string) bool {
	ctx := c.Request.Context()

	rec, err := h.Idempotency.Get(ctx, key)
	if err != nil {
		h.Logger.Error("idempotency lookup", zap.String("key", key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "idempotency_check_failed"})
		return true
	}
	if rec == nil {
		// expired between create and get
		c.JSON(http.StatusConflict, gin.H{"error": "idempotency_conflict"})
		return true
	}

	switch rec.Status {
	case idempotency.StatusDone:
		if err := idempotency.CheckRequest(rec, hash); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "idempotency_key_reused"})
			return true
		}
		if rec.ResponseBody != "" && json.Valid([]byte(rec.ResponseBody)) {
			c.Data(rec.ResponseStatus, "application/json", []byte(rec.ResponseBody))
			return true
		}
		c.JSON(http.StatusOK, gin.H{"orderId": rec.OrderID})
		return true
	case idempotency.StatusInProgress:
		c.JSON(http.StatusAccepted, gin.H{"message": "request already in progress"})
		return true
	case idempotency.StatusFailed:
		// a failed attempt may be retried, even with a corrected form
		if err := h.Idempotency.Retry(ctx, key); err != nil {
			h.Logger.Error("idempotency retry", zap.String("key", key), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "idempotency_check_failed"})
			return true
		}
		return false
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unknown_idempotency_status"})
		return true
	}
}

func (h *handler) submitCheckout(c *gin.Context) {
	ctx := c.Request.Context()

	var req checkout.Request
	if err := validation.BindAndValidate(c, &req, h.Validator); err != nil {
		return
	}

	key := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if key != "" {
		created, err := h.Idempotency.CreateIfNotExists(ctx, key, requestHash(req))
		if err != nil {
			h.Logger.Error("idempotency create", zap.String("key", key), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "idempotency_check_failed"})
			return
		}
		if !created && h.replay(c, key, requestHash(req)) {
			return
		}
	}

	res, err := h.Checkout.Submit(ctx, h.sessionCart(c), req)
	if err != nil {
		if key != "" {
			if merr := h.Idempotency.MarkFailed(ctx, key, err.Error()); merr != nil {
				h.Logger.Warn("mark idempotency failed", zap.String("key", key), zap.Error(merr))
			}
		}
		var verr *checkout.ValidationError
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "fields": verr.Fields})
		case errors.Is(err, checkout.ErrEmptyCart):
			errorJSON(c, http.StatusConflict, "empty_cart")
		case errors.Is(err, checkout.ErrPersist):
			errorJSON(c, http.StatusBadGateway, "order_persist_failed")
		default:
			h.Logger.Error("checkout", zap.Error(err))
			errorJSON(c, http.StatusInternalServerError, "checkout_failed")
		}
		return
	}

	body, _ := json.Marshal(res)
	if key != "" {
		if err := h.Idempotency.MarkDone(ctx, key, res.OrderID, string(body), http.StatusCreated); err != nil {
			h.Logger.Warn("mark idempotency done", zap.String("key", key), zap.Error(err))
		}
	}

	h.Logger.Info("order placed",
		zap.String("orderId", res.OrderID),
		zap.String("displayId", res.DisplayID),
		zap.Float64("total", res.Total),
	)
	c.Header("Location", fmt.Sprintf("/admin/orders/%s", res.OrderID))
	c.Data(http.StatusCreated, "application/json", body)
}

func (h *handler) listOrders(c *gin.Context) {
	all, err := h.Orders.List(c.Request.Context())
	if err != nil {
		h.storeError(c, "list orders", err)
		return
	}
	f := orders.Filter{Query: c.Query("q"), Status: c.DefaultQuery("status", orders.StatusAll)}
	c.JSON(http.StatusOK, gin.H{
		"orders": orders.Apply(all, f),
		"stats":  orders.Summarize(all),
	})
}

func (h *handler) getOrder(c *gin.Context) {
	o, err := h.Orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.storeError(c, "get order", err)
		return
	}
	if o == nil {
		errorJSON(c, http.StatusNotFound, "not_found")
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *handler) setConfirmed(confirmed bool) gin.HandlerFunc {
	set := h.Orders.Unconfirm
	if confirmed {
		set = h.Orders.Confirm
	}
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := set(c.Request.Context(), id); err != nil {
			h.storeError(c, "set order confirmation", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id, "isConfirmed": confirmed})
	}
}

func (h *handler) deleteOrder(c *gin.Context) {
	if err := h.Orders.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.storeError(c, "delete order", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) resendOrder(c *gin.Context) {
	o, err := h.Orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.storeError(c, "get order", err)
		return
	}
	if o == nil {
		errorJSON(c, http.StatusNotFound, "not_found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"whatsappUrl": checkout.ResendLink(h.Phones.Phone(), *o)})
}

func (h *handler) exportOrders(c *gin.Context) {
	format := c.DefaultQuery("format", orders.FormatXLSX)
	if format != orders.FormatXLSX && format != orders.FormatCSV {
		errorJSON(c, http.StatusBadRequest, "unknown_format")
		return
	}
	all, err := h.Orders.Search(c.Request.Context(), orders.Filter{
		Query:  c.Query("q"),
		Status: c.DefaultQuery("status", orders.StatusAll),
	})
	if err != nil {
		h.storeError(c, "search orders", err)
		return
	}

	name := fmt.Sprintf("orders-%s.%s", time.Now().UTC().Format("20060102"), format)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Header("Content-Type", orders.ContentType(format))
	c.Status(http.StatusOK)
	if err := orders.Export(c.Writer, format, all, h.ExportLocation); err != nil {
		h.Logger.Error("export orders", zap.String("format", format), zap.Error(err))
	}
}
