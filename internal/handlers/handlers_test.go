package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/imrishuroy/bagshop/internal/auth"
	"github.com/imrishuroy/bagshop/internal/catalog"
	"github.com/imrishuroy/bagshop/internal/checkout"
	"github.com/imrishuroy/bagshop/internal/discounts"
	"github.com/imrishuroy/bagshop/internal/docstore"
	"github.com/imrishuroy/bagshop/internal/idempotency"
	"github.com/imrishuroy/bagshop/internal/localstore"
	"github.com/imrishuroy/bagshop/internal/offers"
	"github.com/imrishuroy/bagshop/internal/orders"
	"github.com/imrishuroy/bagshop/internal/shipping"
	"github.com/imrishuroy/bagshop/internal/validation"
	"github.com/imrishuroy/bagshop/internal/whatsapp"
)

const cairo = "القاهرة"

type testEnv struct {
	r       *gin.Engine
	cfg     HandlerConfig
	cookies map[string]*http.Cookie
}

func newTestEnv(t *testing.T, rateLimit int) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	b := docstore.NewMemoryBackend(logger)

	sessionStore, err := localstore.NewSessionStore(localstore.SessionStoreDoc, "", []byte("test-session-secret-0123456789ab"), false, b)
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	admin := auth.NewLocal("admin@shop.test", string(hash), "jwt-secret")

	products := catalog.NewProducts(b)
	ordersStore := orders.NewStore(b)
	phones := whatsapp.NewPhoneBook(localstore.NewMemory(), "201000000000", logger)

	cfg := HandlerConfig{
		Logger:      logger,
		Validator:   validation.New(),
		Sessions:    sessionStore,
		Products:    products,
		Categories:  catalog.NewCategories(b),
		HeroImages:  catalog.NewHeroImages(b),
		Banners:     catalog.NewBanners(b),
		Offers:      offers.NewService(b, products, logger),
		Discounts:   discounts.NewService(b),
		Orders:      ordersStore,
		Shipping:    shipping.Default(),
		Checkout:    checkout.NewService(ordersStore, shipping.Default(), localstore.NewMemory(), phones, nil, logger),
		Idempotency: idempotency.NewStore(b, time.Hour),
		Phones:      phones,
		Verifier:    admin,
		SignIn:      admin,

		DiscountRateLimit: rateLimit,
		ExportLocation:    time.UTC,
	}
	r := gin.New()
	RegisterRoutes(r, cfg)
	return &testEnv{r: r, cfg: cfg, cookies: map[string]*http.Cookie{}}
}

// do sends a request carrying the cookies of earlier responses. headers are
// name/value pairs.
func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	for _, c := range e.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		e.cookies[c.Name] = c
	}
	return w
}

func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/admin/login", gin.H{"email": "admin@shop.test", "password": "s3cret"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var sess auth.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
	return sess.Token
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (e *testEnv) seedProduct(t *testing.T, p catalog.Product) catalog.Product {
	t.Helper()
	out, err := e.cfg.Products.Create(context.Background(), p)
	require.NoError(t, err)
	return out
}

func TestStorefront_ProductsCarryLiveOffers(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t, 0)
	tote := e.seedProduct(t, catalog.Product{Name: "Tote", Price: 500, InStock: true})
	e.seedProduct(t, catalog.Product{Name: "Clutch", Price: 200, InStock: true})
	_, err := e.cfg.Offers.Create(ctx, offers.Offer{
		ProductID: tote.ID, DiscountPercentage: 20, EndTime: time.Now().Add(time.Hour), IsActive: true,
	})
	require.NoError(t, err)

	w := e.do(t, http.MethodGet, "/api/products", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]productView](t, w)
	require.Len(t, list, 2)
	assert.Equal(t, "Clutch", list[0].Name)
	assert.Nil(t, list[0].Offer)
	assert.Equal(t, 200.0, list[0].EffectivePrice)
	require.NotNil(t, list[1].Offer)
	assert.Equal(t, 400.0, list[1].EffectivePrice)

	w = e.do(t, http.MethodGet, "/api/products/"+tote.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 400.0, decode[productView](t, w).EffectivePrice)

	w = e.do(t, http.MethodGet, "/api/products/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodGet, "/api/offers/active", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]offers.Offer](t, w), 1)
}

func TestShippingEndpoints(t *testing.T) {
	e := newTestEnv(t, 0)

	w := e.do(t, http.MethodGet, "/api/shipping?governorate="+url.QueryEscape(cairo), nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[map[string]any](t, w)
	assert.Equal(t, 66.0, got["cost"])
	assert.Equal(t, true, got["known"])

	w = e.do(t, http.MethodGet, "/api/shipping?governorate=Atlantis", nil)
	assert.Equal(t, 0.0, decode[map[string]any](t, w)["cost"])

	w = e.do(t, http.MethodGet, "/api/shipping/governorates", nil)
	assert.NotEmpty(t, decode[[]shipping.Governorate](t, w))
}

func TestCart_AddDiscountAndCheckout(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t, 0)
	tote := e.seedProduct(t, catalog.Product{
		Name: "Tote", Price: 500, InStock: true,
		Colors: []catalog.Color{{Name: "black", Image: "black.jpg"}},
	})
	_, err := e.cfg.Offers.Create(ctx, offers.Offer{
		ProductID: tote.ID, DiscountPercentage: 20, EndTime: time.Now().Add(time.Hour), IsActive: true,
	})
	require.NoError(t, err)
	_, err = e.cfg.Discounts.Create(ctx, discounts.Code{Code: "SAVE10", DiscountPercentage: 10, IsActive: true})
	require.NoError(t, err)

	w := e.do(t, http.MethodPost, "/api/cart/items", gin.H{"productId": tote.ID, "color": "black", "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	view := decode[cartView](t, w)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 400.0, view.Items[0].Price, "offer is baked into the unit price")
	assert.Equal(t, "black.jpg", view.Items[0].Image)

	w = e.do(t, http.MethodPost, "/api/cart/discount", gin.H{"code": " save10 "})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do(t, http.MethodGet, "/api/cart?governorate="+url.QueryEscape(cairo), nil)
	view = decode[cartView](t, w)
	assert.Equal(t, 800.0, view.Totals.Subtotal)
	assert.Equal(t, 80.0, view.Totals.DiscountAmount)
	assert.Equal(t, 66.0, view.Totals.ShippingCost)
	assert.Equal(t, 786.0, view.Totals.Total)

	form := gin.H{
		"customerName": "سلمى", "primaryPhone": "01012345678",
		"governorate": cairo, "detailedAddress": "15 شارع التحرير",
	}
	w = e.do(t, http.MethodPost, "/api/checkout", form, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	first := w.Body.String()
	res := decode[checkout.Result](t, w)
	assert.Equal(t, "001", res.DisplayID)
	assert.Equal(t, 786.0, res.Total)
	assert.True(t, strings.HasPrefix(res.WhatsAppURL, "https://wa.me/201000000000?text="))

	w = e.do(t, http.MethodGet, "/api/cart", nil)
	view = decode[cartView](t, w)
	assert.Empty(t, view.Items)
	assert.Empty(t, view.Totals.DiscountCode)

	// a retried submission replays the first response
	w = e.do(t, http.MethodPost, "/api/checkout", form, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, first, w.Body.String())

	all, err := e.cfg.Orders.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCart_AddRejectsBadInput(t *testing.T) {
	e := newTestEnv(t, 0)
	tote := e.seedProduct(t, catalog.Product{Name: "Tote", Price: 500, InStock: true})
	gone := e.seedProduct(t, catalog.Product{Name: "Gone", Price: 500})

	cases := []struct {
		name string
		body gin.H
		want int
	}{
		{"zero quantity", gin.H{"productId": tote.ID, "quantity": 0}, http.StatusBadRequest},
		{"unknown product", gin.H{"productId": "nope", "quantity": 1}, http.StatusNotFound},
		{"unknown colour", gin.H{"productId": tote.ID, "color": "red", "quantity": 1}, http.StatusBadRequest},
		{"out of stock", gin.H{"productId": gone.ID, "quantity": 1}, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := e.do(t, http.MethodPost, "/api/cart/items", tc.body)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
		})
	}
}

func TestCart_QuantityAndRemove(t *testing.T) {
	e := newTestEnv(t, 0)
	tote := e.seedProduct(t, catalog.Product{Name: "Tote", Price: 100, InStock: true})

	w := e.do(t, http.MethodPost, "/api/cart/items", gin.H{"productId": tote.ID, "quantity": 1})
	line := decode[cartView](t, w).Items[0]

	w = e.do(t, http.MethodPut, "/api/cart/items/"+line.ID, gin.H{"quantity": 3})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 300.0, decode[cartView](t, w).Totals.Subtotal)

	w = e.do(t, http.MethodPut, "/api/cart/items/missing", gin.H{"quantity": 3})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodDelete, "/api/cart/items/"+line.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[cartView](t, w).Items)
}

func TestCart_TwentyLinesPersistAcrossRequests(t *testing.T) {
	e := newTestEnv(t, 0)
	for i := 1; i <= 20; i++ {
		p := e.seedProduct(t, catalog.Product{
			Name:    fmt.Sprintf("حقيبة كتف جلد طبيعي %d", i),
			Price:   100,
			InStock: true,
			Colors:  []catalog.Color{{Name: "بيج", Image: fmt.Sprintf("https://cdn.shop.test/bags/%d/beige-large.jpg", i)}},
		})
		w := e.do(t, http.MethodPost, "/api/cart/items", gin.H{"productId": p.ID, "color": "بيج", "quantity": 1})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w := e.do(t, http.MethodGet, "/api/cart", nil)
	view := decode[cartView](t, w)
	assert.Len(t, view.Items, 20)
	assert.Equal(t, 2000.0, view.Totals.Subtotal)
}

func TestDiscount_Failures(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t, 0)
	_, err := e.cfg.Discounts.Create(ctx, discounts.Code{Code: "OLD", DiscountPercentage: 10, IsActive: false})
	require.NoError(t, err)

	cases := []struct {
		code    string
		status  int
		errCode string
		message string
	}{
		{"  ", http.StatusBadRequest, "empty_code", "Please enter a discount code"},
		{"NOPE", http.StatusNotFound, "code_not_found", "Invalid discount code"},
		{"old", http.StatusConflict, "code_inactive", "This discount code is no longer active"},
	}
	for _, tc := range cases {
		w := e.do(t, http.MethodPost, "/api/cart/discount", gin.H{"code": tc.code})
		require.Equal(t, tc.status, w.Code, tc.code)
		body := decode[map[string]string](t, w)
		assert.Equal(t, tc.errCode, body["error"])
		assert.Equal(t, tc.message, body["message"])
	}

	w := e.do(t, http.MethodGet, "/api/cart", nil)
	assert.Equal(t, "This discount code is no longer active", decode[cartView](t, w).DiscountError)

	w = e.do(t, http.MethodDelete, "/api/cart/discount", nil)
	assert.Empty(t, decode[cartView](t, w).DiscountError)
}

func TestDiscount_RateLimited(t *testing.T) {
	e := newTestEnv(t, 2)
	for i := 0; i < 2; i++ {
		w := e.do(t, http.MethodPost, "/api/cart/discount", gin.H{"code": "NOPE"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	}
	w := e.do(t, http.MethodPost, "/api/cart/discount", gin.H{"code": "NOPE"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestCheckout_Failures(t *testing.T) {
	e := newTestEnv(t, 0)

	form := gin.H{"customerName": "Mona", "primaryPhone": "0101", "governorate": cairo, "detailedAddress": "x"}
	w := e.do(t, http.MethodPost, "/api/checkout", form)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "empty_cart", decode[map[string]string](t, w)["error"])

	tote := e.seedProduct(t, catalog.Product{Name: "Tote", Price: 100, InStock: true})
	e.do(t, http.MethodPost, "/api/cart/items", gin.H{"productId": tote.ID, "quantity": 1})

	w = e.do(t, http.MethodPost, "/api/checkout", gin.H{"customerName": "Mona"}, "Idempotency-Key", "k-2")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "primaryPhone")

	// the failed key can be retried with a corrected form
	w = e.do(t, http.MethodPost, "/api/checkout", form, "Idempotency-Key", "k-2")
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestCheckout_CartValuesInCookieAreIgnored(t *testing.T) {
	e := newTestEnv(t, 0)

	// a cookie holding cart values, signed with the server's own secret
	signer := sessions.NewCookieStore([]byte("test-session-secret-0123456789ab"))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	sess, err := signer.New(r, localstore.SessionName)
	require.NoError(t, err)
	sess.Values[localstore.KeyCartItems] = `[{"id":"x","productId":"does-not-exist","name":"Tote","price":0.01,"quantity":5}]`
	require.NoError(t, sess.Save(r, w))
	for _, c := range w.Result().Cookies() {
		e.cookies[c.Name] = c
	}

	form := gin.H{"customerName": "Mona", "primaryPhone": "0101", "governorate": cairo, "detailedAddress": "x"}
	w = e.do(t, http.MethodPost, "/api/checkout", form)
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	all, err := e.cfg.Orders.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestAdmin_RequiresToken(t *testing.T) {
	e := newTestEnv(t, 0)
	w := e.do(t, http.MethodGet, "/admin/orders", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodPost, "/admin/login", gin.H{"email": "admin@shop.test", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := e.login(t)
	w = e.do(t, http.MethodGet, "/admin/me", nil, "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin@shop.test", decode[auth.Identity](t, w).Email)
}

func TestAdmin_CRUDValidation(t *testing.T) {
	e := newTestEnv(t, 0)
	bearer := "Bearer " + e.login(t)

	w := e.do(t, http.MethodPost, "/admin/products", gin.H{"name": "Tote", "price": 500, "originalPrice": 400}, "Authorization", bearer)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "originalPrice")

	w = e.do(t, http.MethodPost, "/admin/products", gin.H{"name": "Tote", "price": 500, "originalPrice": 650, "inStock": true}, "Authorization", bearer)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	p := decode[catalog.Product](t, w)
	assert.NotEmpty(t, p.ID)

	p.Price = 450
	w = e.do(t, http.MethodPut, "/admin/products/"+p.ID, p, "Authorization", bearer)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 450.0, decode[catalog.Product](t, w).Price)

	w = e.do(t, http.MethodPut, "/admin/products/missing", p, "Authorization", bearer)
	assert.Equal(t, http.StatusNotFound, w.Code)

	code := gin.H{"code": "save10", "discountPercentage": 10, "isActive": true}
	w = e.do(t, http.MethodPost, "/admin/discount-codes", code, "Authorization", bearer)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "SAVE10", decode[discounts.Code](t, w).Code)
	w = e.do(t, http.MethodPost, "/admin/discount-codes", code, "Authorization", bearer)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = e.do(t, http.MethodPost, "/admin/discount-codes", gin.H{"code": "X", "discountPercentage": 150}, "Authorization", bearer)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	offer := gin.H{"productId": "missing", "discountPercentage": 10, "endTime": time.Now().Add(time.Hour), "isActive": true}
	w = e.do(t, http.MethodPost, "/admin/offers", offer, "Authorization", bearer)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = e.do(t, http.MethodPost, "/admin/hero-images", gin.H{"order": 1}, "Authorization", bearer)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodDelete, "/admin/products/"+p.ID, nil, "Authorization", bearer)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = e.do(t, http.MethodGet, "/admin/products", nil, "Authorization", bearer)
	assert.Empty(t, decode[[]catalog.Product](t, w))
}

func TestAdmin_OrdersAndSettings(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t, 0)
	bearer := "Bearer " + e.login(t)

	o, err := e.cfg.Orders.Create(ctx, orders.Order{DisplayID: "007", CustomerName: "Mona", PrimaryPhone: "0101", Total: 250})
	require.NoError(t, err)
	_, err = e.cfg.Orders.Create(ctx, orders.Order{DisplayID: "008", CustomerName: "Hana", Total: 100})
	require.NoError(t, err)

	w := e.do(t, http.MethodPost, "/admin/orders/"+o.ID+"/confirm", nil, "Authorization", bearer)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodGet, "/admin/orders?status=confirmed", nil, "Authorization", bearer)
	require.Equal(t, http.StatusOK, w.Code)
	listed := decode[struct {
		Orders []orders.Order `json:"orders"`
		Stats  orders.Stats   `json:"stats"`
	}](t, w)
	require.Len(t, listed.Orders, 1)
	assert.Equal(t, "Mona", listed.Orders[0].CustomerName)
	assert.Equal(t, orders.Stats{Total: 2, Confirmed: 1, Pending: 1, Revenue: 250}, listed.Stats)

	w = e.do(t, http.MethodPost, "/admin/orders/"+o.ID+"/unconfirm", nil, "Authorization", bearer)
	require.Equal(t, http.StatusOK, w.Code)
	got, err := e.cfg.Orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, got.IsConfirmed)

	w = e.do(t, http.MethodPost, "/admin/orders/missing/confirm", nil, "Authorization", bearer)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodPut, "/admin/settings/whatsapp", gin.H{"phone": "123"}, "Authorization", bearer)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = e.do(t, http.MethodPut, "/admin/settings/whatsapp", gin.H{"phone": "+20 106 879 8221"}, "Authorization", bearer)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "201068798221", decode[map[string]string](t, w)["phone"])

	w = e.do(t, http.MethodPost, "/admin/orders/"+o.ID+"/resend", nil, "Authorization", bearer)
	require.Equal(t, http.StatusOK, w.Code)
	link := decode[map[string]string](t, w)["whatsappUrl"]
	assert.True(t, strings.HasPrefix(link, "https://wa.me/201068798221?text="), link)

	w = e.do(t, http.MethodGet, "/admin/orders/export?format=csv", nil, "Authorization", bearer)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".csv")
	assert.Contains(t, w.Body.String(), "Mona")

	w = e.do(t, http.MethodGet, "/admin/orders/export?format=pdf", nil, "Authorization", bearer)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodDelete, "/admin/orders/"+o.ID, nil, "Authorization", bearer)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestAdmin_SweepOffers(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t, 0)
	bearer := "Bearer " + e.login(t)
	p := e.seedProduct(t, catalog.Product{Name: "Tote", Price: 100})
	_, err := e.cfg.Offers.Create(ctx, offers.Offer{ProductID: p.ID, DiscountPercentage: 10, EndTime: time.Now().Add(-time.Minute), IsActive: true})
	require.NoError(t, err)

	w := e.do(t, http.MethodPost, "/admin/offers/sweep", nil, "Authorization", bearer)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.0, decode[map[string]float64](t, w)["deactivated"])
}

type wireMessage struct {
	Type       string          `json:"type"`
	Collection string          `json:"collection"`
	Data       json.RawMessage `json:"data"`
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads messages until match accepts one.
func readUntil(t *testing.T, conn *websocket.Conn, match func(wireMessage) bool) wireMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var m wireMessage
		require.NoError(t, conn.ReadJSON(&m))
		if match(m) {
			return m
		}
	}
}

func TestLive_CollectionSnapshots(t *testing.T) {
	e := newTestEnv(t, 0)
	srv := httptest.NewServer(e.r)
	defer srv.Close()

	conn := dial(t, srv, "/api/live/categories")
	first := readUntil(t, conn, func(m wireMessage) bool { return m.Type == msgSnapshot })
	assert.Equal(t, "categories", first.Collection)

	_, err := e.cfg.Categories.Create(context.Background(), catalog.Category{Name: "Totes"})
	require.NoError(t, err)

	readUntil(t, conn, func(m wireMessage) bool {
		var cs []catalog.Category
		return json.Unmarshal(m.Data, &cs) == nil && len(cs) == 1 && cs[0].Name == "Totes"
	})

	resp, err := http.Get(srv.URL + "/api/live/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLive_AdminOrdersAnnounceNewOrders(t *testing.T) {
	e := newTestEnv(t, 0)
	srv := httptest.NewServer(e.r)
	defer srv.Close()
	token := e.login(t)

	_, err := e.cfg.Orders.Create(context.Background(), orders.Order{CustomerName: "Existing", Total: 10})
	require.NoError(t, err)

	conn := dial(t, srv, "/admin/live/orders?access_token="+url.QueryEscape(token))
	first := readUntil(t, conn, func(m wireMessage) bool { return true })
	assert.Equal(t, msgSnapshot, first.Type, "the existing order is never announced")

	_, err = e.cfg.Orders.Create(context.Background(), orders.Order{CustomerName: "Mona", Total: 250})
	require.NoError(t, err)

	m := readUntil(t, conn, func(m wireMessage) bool { return m.Type == msgNewOrder })
	var o orders.Order
	require.NoError(t, json.Unmarshal(m.Data, &o))
	assert.Equal(t, "Mona", o.CustomerName)
}
