package catalog

import "github.com/imrishuroy/bagshop/internal/docstore"

// Color is a purchasable colour variant with its own image.
type Color struct {
	Name  string `json:"name" validate:"required"`
	Image string `json:"image"`
}

// Product is a catalog item. OriginalPrice, when set, marks a permanent
// markdown from OriginalPrice to Price.
type Product struct {
	docstore.Meta
	Name          string   `json:"name" validate:"required,max=200"`
	Description   string   `json:"description"`
	Price         float64  `json:"price" validate:"gt=0"`
	OriginalPrice *float64 `json:"originalPrice,omitempty"`
	Category      string   `json:"category"`
	Images        []string `json:"images,omitempty"`
	Colors        []Color  `json:"colors,omitempty" validate:"dive"`
	InStock       bool     `json:"inStock"`
	Featured      bool     `json:"featured"`
}

// ColorImage returns the image of the named colour, falling back to the
// first product image.
func (p Product) ColorImage(color string) string {
	for _, c := range p.Colors {
		if c.Name == color && c.Image != "" {
			return c.Image
		}
	}
	if len(p.Images) > 0 {
		return p.Images[0]
	}
	return ""
}

// HasColor reports whether color is one of the product's variants. Products
// without variants accept an empty colour only.
func (p Product) HasColor(color string) bool {
	if len(p.Colors) == 0 {
		return color == ""
	}
	for _, c := range p.Colors {
		if c.Name == color {
			return true
		}
	}
	return false
}

type Category struct {
	docstore.Meta
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
}

// HeroImage is one slide of the home page carousel.
type HeroImage struct {
	docstore.Meta
	ImageURL string `json:"imageUrl" validate:"required"`
	Order    int    `json:"order" validate:"gte=0"`
	IsActive bool   `json:"isActive"`
}

// BannerText is the announcement line shown above the header.
type BannerText struct {
	docstore.Meta
	Text     string `json:"text" validate:"required"`
	IsActive bool   `json:"isActive"`
}
