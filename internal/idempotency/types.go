package idempotency

import (
	"time"

	"github.com/imrishuroy/bagshop/internal/docstore"
)

// Status values for idempotency entries
const (
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
	StatusFailed     = "FAILED"
)

// Record is the shape persisted in the checkoutKeys collection. Its
// document id is the client's Idempotency-Key.
type Record struct {
	docstore.Meta
	Status         string `json:"status"`
	OrderID        string `json:"orderId,omitempty"`
	RequestHash    string `json:"requestHash,omitempty"`
	ResponseBody   string `json:"responseBody,omitempty"` // small JSON responses only
	ResponseStatus int    `json:"responseStatus,omitempty"`
	ExpiresAt      int64  `json:"expiresAt"` // TTL epoch seconds
	Note           string `json:"note,omitempty"`
}

// Expired reports whether the record outlived its TTL at now.
func (r Record) Expired(now time.Time) bool {
	return r.ExpiresAt > 0 && now.Unix() >= r.ExpiresAt
}
