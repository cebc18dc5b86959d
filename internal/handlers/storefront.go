package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/bagshop/internal/catalog"
	"github.com/imrishuroy/bagshop/internal/offers"
)

// productView is a product as the storefront shows it: with its live offer,
// if any, and the price a shopper pays today.
type productView struct {
	catalog.Product
	Offer          *offers.Offer `json:"offer,omitempty"`
	EffectivePrice float64       `json:"effectivePrice"`
}

func newProductView(p catalog.Product, o *offers.Offer) productView {
	v := productView{Product: p, EffectivePrice: p.Price}
	if o != nil {
		v.Offer = o
		v.EffectivePrice = o.Apply(p.Price)
	}
	return v
}

func (h *handler) registerStorefront(api *gin.RouterGroup) {
	api.GET("/products", h.listProducts)
	api.GET("/products/featured", h.featuredProducts)
	api.GET("/products/:id", h.getProduct)
	api.GET("/categories", h.listCategories)
	api.GET("/offers/active", h.activeOffers)
	api.GET("/hero-images", h.heroImages)
	api.GET("/banner-text", h.bannerText)
	api.GET("/shipping/governorates", h.governorates)
	api.GET("/shipping", h.shippingQuote)
	api.GET("/live/:collection", h.liveCollection)
}

// withOffers decorates products with their live offers. An offers failure
// only costs the decoration.
func (h *handler) withOffers(c *gin.Context, ps []catalog.Product) []productView {
	byProduct, err := h.Offers.ByProduct(c.Request.Context())
	if err != nil {
		h.Logger.Warn("load live offers", zap.Error(err))
	}
	out := make([]productView, 0, len(ps))
	for _, p := range ps {
		var o *offers.Offer
		if live, ok := byProduct[p.ID]; ok {
			o = &live
		}
		out = append(out, newProductView(p, o))
	}
	return out
}

func (h *handler) listProducts(c *gin.Context) {
	var (
		ps  []catalog.Product
		err error
	)
	if category := c.Query("category"); category != "" {
		ps, err = h.Products.ByCategory(c.Request.Context(), category)
	} else {
		ps, err = h.Products.List(c.Request.Context())
	}
	if err != nil {
		h.storeError(c, "list products", err)
		return
	}
	c.JSON(http.StatusOK, h.withOffers(c, ps))
}

func (h *handler) featuredProducts(c *gin.Context) {
	ps, err := h.Products.Featured(c.Request.Context())
	if err != nil {
		h.storeError(c, "featured products", err)
		return
	}
	c.JSON(http.StatusOK, h.withOffers(c, ps))
}

func (h *handler) getProduct(c *gin.Context) {
	ctx := c.Request.Context()
	p, err := h.Products.Get(ctx, c.Param("id"))
	if err != nil {
		h.storeError(c, "get product", err)
		return
	}
	if p == nil {
		errorJSON(c, http.StatusNotFound, "product_not_found")
		return
	}
	o, err := h.Offers.ForProduct(ctx, p.ID)
	if err != nil {
		h.Logger.Warn("load product offer", zap.String("productId", p.ID), zap.Error(err))
	}
	c.JSON(http.StatusOK, newProductView(*p, o))
}

func (h *handler) listCategories(c *gin.Context) {
	cs, err := h.Categories.List(c.Request.Context())
	if err != nil {
		h.storeError(c, "list categories", err)
		return
	}
	c.JSON(http.StatusOK, cs)
}

func (h *handler) activeOffers(c *gin.Context) {
	live, err := h.Offers.Active(c.Request.Context())
	if err != nil {
		h.storeError(c, "active offers", err)
		return
	}
	c.JSON(http.StatusOK, live)
}

func (h *handler) heroImages(c *gin.Context) {
	hs, err := h.HeroImages.Active(c.Request.Context())
	if err != nil {
		h.storeError(c, "hero images", err)
		return
	}
	c.JSON(http.StatusOK, hs)
}

func (h *handler) bannerText(c *gin.Context) {
	b, err := h.Banners.Current(c.Request.Context())
	if err != nil {
		h.storeError(c, "banner text", err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *handler) governorates(c *gin.Context) {
	c.JSON(http.StatusOK, h.Shipping.Governorates())
}

func (h *handler) shippingQuote(c *gin.Context) {
	gov := c.Query("governorate")
	c.JSON(http.StatusOK, gin.H{
		"governorate": gov,
		"known":       h.Shipping.Known(gov),
		"cost":        h.Shipping.Cost(gov),
	})
}
