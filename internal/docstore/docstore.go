// Package docstore is the document storage adapter used by every domain
// package. A Collection stores JSON-shaped documents under opaque string ids
// and supports change subscription. Field names in Find and Update are the
// documents' json names.
package docstore

import (
	"context"
	"errors"
	"sync"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"

	"github.com/imrishuroy/bagshop/internal/aws"
)

var (
	// ErrNotFound is returned by Update when the document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrExists is returned when a create collides with an existing id.
	ErrExists = errors.New("document already exists")
)

// Collection names.
const (
	Products      = "products"
	Categories    = "categories"
	Offers        = "offers"
	DiscountCodes = "discountCodes"
	Orders        = "orders"
	HeroImages    = "heroImages"
	BannerText    = "bannerText"
	CheckoutKeys  = "checkoutKeys"
	Sessions      = "sessions"
)

// Record pairs a stored document with its id.
type Record[T any] struct {
	ID   string
	Data T
}

// Collection is CRUD plus change subscription over one document collection.
type Collection[T any] interface {
	// Create stores doc under a new adapter-assigned id.
	Create(ctx context.Context, doc T) (string, error)
	// Put upserts doc under id.
	Put(ctx context.Context, id string, doc T) error
	// PutIfAbsent stores doc only if id is unused.
	PutIfAbsent(ctx context.Context, id string, doc T) (bool, error)
	// Get returns (nil, nil) when id is absent.
	Get(ctx context.Context, id string) (*Record[T], error)
	List(ctx context.Context) ([]Record[T], error)
	// Find returns documents whose field equals value.
	Find(ctx context.Context, field string, value any) ([]Record[T], error)
	// Update sets the given fields and fails with ErrNotFound if id is absent.
	Update(ctx context.Context, id string, fields map[string]any) error
	// Delete removes id. Deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error
	// Subscribe delivers the current snapshot and again after every change.
	// The returned function stops delivery and may be called more than once.
	Subscribe(ctx context.Context, onChange func([]Record[T])) (func(), error)
}

type backendKind int

const (
	kindMemory backendKind = iota
	kindDynamo
	kindFirestore
)

// Backend is a configured storage engine that collections are opened on.
type Backend struct {
	kind   backendKind
	logger *zap.Logger
	hub    *Hub

	dynamo      aws.DynamoDBAPI
	tablePrefix string

	firestore *firestore.Client

	mu     sync.Mutex
	tables map[string]*memTable
}

// NewDynamoBackend stores each collection in table <prefix><collection> with
// string hash key "id".
func NewDynamoBackend(client aws.DynamoDBAPI, tablePrefix string, logger *zap.Logger) *Backend {
	return &Backend{
		kind:        kindDynamo,
		logger:      logger,
		hub:         NewHub(),
		dynamo:      client,
		tablePrefix: tablePrefix,
	}
}

// NewFirestoreBackend stores each collection as a Firestore collection.
func NewFirestoreBackend(client *firestore.Client, logger *zap.Logger) *Backend {
	return &Backend{
		kind:      kindFirestore,
		logger:    logger,
		firestore: client,
	}
}

// NewMemoryBackend keeps everything in process memory.
func NewMemoryBackend(logger *zap.Logger) *Backend {
	return &Backend{
		kind:   kindMemory,
		logger: logger,
		hub:    NewHub(),
		tables: map[string]*memTable{},
	}
}

// Hub returns the change hub of the backend, nil for Firestore which pushes
// changes itself.
func (b *Backend) Hub() *Hub { return b.hub }

// Open returns the named collection on b.
func Open[T any](b *Backend, name string) Collection[T] {
	switch b.kind {
	case kindDynamo:
		return &dynamoCollection[T]{
			client: b.dynamo,
			name:   name,
			table:  b.tablePrefix + name,
			hub:    b.hub,
			logger: b.logger.With(zap.String("collection", name)),
		}
	case kindFirestore:
		return &firestoreCollection[T]{
			coll:   b.firestore.Collection(name),
			logger: b.logger.With(zap.String("collection", name)),
		}
	default:
		b.mu.Lock()
		t, ok := b.tables[name]
		if !ok {
			t = newMemTable()
			b.tables[name] = t
		}
		b.mu.Unlock()
		return &memoryCollection[T]{
			table:  t,
			name:   name,
			hub:    b.hub,
			logger: b.logger.With(zap.String("collection", name)),
		}
	}
}
