package docstore

import (
	"context"
	"sync"

	evbus "github.com/asaskevich/EventBus"
	"go.uber.org/zap"
)

// Hub fans out "collection changed" notifications inside one process.
// Backends without native push (DynamoDB, memory) publish to it after every
// successful write.
type Hub struct {
	bus evbus.Bus

	mu     sync.Mutex
	next   uint64
	subs   map[string]map[uint64]func()
	topics map[string]bool
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		bus:    evbus.New(),
		subs:   map[string]map[uint64]func(){},
		topics: map[string]bool{},
	}
}

// Publish announces that topic changed. Delivery is asynchronous.
func (h *Hub) Publish(topic string) {
	h.bus.Publish(topic)
}

// Wait blocks until all in-flight deliveries finished.
func (h *Hub) Wait() {
	h.bus.WaitAsync()
}

// listen registers fn for topic and returns its removal function.
func (h *Hub) listen(topic string, fn func()) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.topics[topic] {
		// one bus handler per topic; subscribers are tracked here so closures
		// can be removed individually
		_ = h.bus.SubscribeAsync(topic, func() { h.dispatch(topic) }, true)
		h.topics[topic] = true
	}
	if h.subs[topic] == nil {
		h.subs[topic] = map[uint64]func(){}
	}
	h.next++
	id := h.next
	h.subs[topic][id] = fn

	return func() {
		h.mu.Lock()
		delete(h.subs[topic], id)
		h.mu.Unlock()
	}
}

func (h *Hub) dispatch(topic string) {
	h.mu.Lock()
	fns := make([]func(), 0, len(h.subs[topic]))
	for _, fn := range h.subs[topic] {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// subscribeVia implements Collection.Subscribe for hub-backed collections.
func subscribeVia[T any](
	ctx context.Context,
	hub *Hub,
	topic string,
	list func(context.Context) ([]Record[T], error),
	onChange func([]Record[T]),
	logger *zap.Logger,
) (func(), error) {
	docs, err := list(ctx)
	if err != nil {
		return nil, err
	}
	onChange(docs)

	var (
		mu      sync.Mutex
		stopped bool
	)
	remove := hub.listen(topic, func() {
		mu.Lock()
		defer mu.Unlock()
		if stopped {
			return
		}
		docs, err := list(context.Background())
		if err != nil {
			logger.Warn("refresh subscription", zap.Error(err))
			return
		}
		onChange(docs)
	})

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			mu.Lock()
			stopped = true
			mu.Unlock()
			remove()
		})
	}
	context.AfterFunc(ctx, unsubscribe)
	return unsubscribe, nil
}
