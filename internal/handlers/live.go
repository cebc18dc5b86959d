package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/imrishuroy/bagshop/internal/catalog"
	"github.com/imrishuroy/bagshop/internal/offers"
	"github.com/imrishuroy/bagshop/internal/orders"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
	liveQueueLen = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS already restricts the browser origins that reach the API
	CheckOrigin: func(*http.Request) bool { return true },
}

// Live message types.
const (
	msgSnapshot = "snapshot"
	msgNewOrder = "new_order"
)

type liveMessage struct {
	Type       string `json:"type"`
	Collection string `json:"collection"`
	Data       any    `json:"data"`
}

// feed subscribes to a collection and pushes messages until unsubscribed.
type feed func(ctx context.Context, push func(liveMessage)) (func(), error)

func snapshot(collection string, data any) liveMessage {
	return liveMessage{Type: msgSnapshot, Collection: collection, Data: data}
}

func (h *handler) feeds() map[string]feed {
	return map[string]feed{
		"products": func(ctx context.Context, push func(liveMessage)) (func(), error) {
			return h.Products.Subscribe(ctx, func(ps []catalog.Product) { push(snapshot("products", ps)) })
		},
		"categories": func(ctx context.Context, push func(liveMessage)) (func(), error) {
			return h.Categories.Subscribe(ctx, func(cs []catalog.Category) { push(snapshot("categories", cs)) })
		},
		"offers": func(ctx context.Context, push func(liveMessage)) (func(), error) {
			return h.Offers.SubscribeActive(ctx, func(live []offers.Offer) { push(snapshot("offers", live)) })
		},
		"hero-images": func(ctx context.Context, push func(liveMessage)) (func(), error) {
			return h.HeroImages.SubscribeActive(ctx, func(hs []catalog.HeroImage) { push(snapshot("hero-images", hs)) })
		},
		"banner-text": func(ctx context.Context, push func(liveMessage)) (func(), error) {
			return h.Banners.SubscribeCurrent(ctx, func(b *catalog.BannerText) { push(snapshot("banner-text", b)) })
		},
	}
}

func (h *handler) liveCollection(c *gin.Context) {
	f, ok := h.feeds()[c.Param("collection")]
	if !ok {
		errorJSON(c, http.StatusNotFound, "unknown_collection")
		return
	}
	h.stream(c, f)
}

// liveOrders streams every order snapshot and announces orders that were not
// in the previous one.
func (h *handler) liveOrders(c *gin.Context) {
	h.stream(c, func(ctx context.Context, push func(liveMessage)) (func(), error) {
		return h.Orders.WatchNew(ctx, func(all, added []orders.Order) {
			for _, o := range added {
				push(liveMessage{Type: msgNewOrder, Collection: "orders", Data: o})
			}
			push(snapshot("orders", all))
		})
	})
}

// stream upgrades the connection and writes the feed's messages until the
// client goes away. A client that falls behind is disconnected.
func (h *handler) stream(c *gin.Context, f feed) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Warn("websocket upgrade", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	out := make(chan liveMessage, liveQueueLen)
	push := func(m liveMessage) {
		select {
		case out <- m:
		case <-ctx.Done():
		default:
			h.Logger.Warn("live client too slow, closing", zap.String("path", c.FullPath()))
			cancel()
		}
	}

	unsubscribe, err := f(ctx, push)
	if err != nil {
		h.Logger.Error("live subscribe", zap.String("path", c.FullPath()), zap.Error(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscribe failed"),
			time.Now().Add(writeWait))
		return
	}
	defer unsubscribe()

	// reads only serve to notice the client closing and to receive pongs
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(m); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
