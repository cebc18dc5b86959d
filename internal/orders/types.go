package orders

import (
	"time"

	"github.com/imrishuroy/bagshop/internal/cart"
	"github.com/imrishuroy/bagshop/internal/docstore"
	"github.com/imrishuroy/bagshop/internal/whatsapp"
)

// Confirmation filters for Search.
const (
	StatusAll       = "all"
	StatusConfirmed = "confirmed"
	StatusPending   = "pending"
)

// Order is the document stored in the orders collection. Items and totals
// are fixed at checkout; IsConfirmed is the only field admins change.
type Order struct {
	docstore.Meta
	DisplayID       string      `json:"displayId"`
	CustomerName    string      `json:"customerName"`
	PrimaryPhone    string      `json:"primaryPhone"`
	SecondaryPhone  string      `json:"secondaryPhone,omitempty"`
	Governorate     string      `json:"governorate"`
	District        string      `json:"district,omitempty"`
	DetailedAddress string      `json:"detailedAddress"`
	Notes           string      `json:"notes,omitempty"`
	Items           []cart.Item `json:"items"`
	Subtotal        float64     `json:"subtotal"`
	DiscountCode    string      `json:"discountCode,omitempty"`
	DiscountAmount  float64     `json:"discountAmount,omitempty"`
	ShippingCost    float64     `json:"shippingCost"`
	Total           float64     `json:"total"`
	IsConfirmed     bool        `json:"isConfirmed"`
	OrderDate       time.Time   `json:"orderDate"`
}

// Summary is the WhatsApp message view of the order. The display id is used
// when present, the document id otherwise.
func (o Order) Summary() whatsapp.Summary {
	id := o.DisplayID
	if id == "" {
		id = o.ID
	}
	return whatsapp.Summary{
		OrderID:         id,
		OrderDate:       o.OrderDate,
		CustomerName:    o.CustomerName,
		PrimaryPhone:    o.PrimaryPhone,
		SecondaryPhone:  o.SecondaryPhone,
		Governorate:     o.Governorate,
		District:        o.District,
		DetailedAddress: o.DetailedAddress,
		Items:           o.Items,
		Subtotal:        o.Subtotal,
		DiscountCode:    o.DiscountCode,
		DiscountAmount:  o.DiscountAmount,
		ShippingCost:    o.ShippingCost,
		Total:           o.Total,
	}
}

// Filter narrows an order listing.
type Filter struct {
	// Query matches name, either phone, the display id or the document id.
	Query string
	// Status is StatusAll, StatusConfirmed or StatusPending.
	Status string
}

// Stats summarises a set of orders for the admin dashboard.
type Stats struct {
	Total     int     `json:"total"`
	Confirmed int     `json:"confirmed"`
	Pending   int     `json:"pending"`
	Revenue   float64 `json:"revenue"`
}

// Placed is the event published after an order is stored.
type Placed struct {
	OrderID   string    `json:"orderId"`
	DisplayID string    `json:"displayId"`
	Total     float64   `json:"total"`
	Items     int       `json:"items"`
	OrderDate time.Time `json:"orderDate"`
}

// EventPlaced is the type attribute of Placed messages.
const EventPlaced = "order.placed"
