package validation

// AddCartItemRequest is the payload for POST /api/cart/items.
type AddCartItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Color     string `json:"color"`
	Quantity  int    `json:"quantity" validate:"required,min=1"` // must be >= 1
}

// SetQuantityRequest is the payload for PUT /api/cart/items/:id. Zero or
// less removes the line.
type SetQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// ApplyDiscountRequest is the payload for POST /api/cart/discount. The code
// is not required here: an empty code is answered with the cart's own message.
type ApplyDiscountRequest struct {
	Code string `json:"code" validate:"max=64"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// WhatsAppSettingsRequest is the payload for PUT /admin/settings/whatsapp.
type WhatsAppSettingsRequest struct {
	Phone string `json:"phone" validate:"required"`
}
