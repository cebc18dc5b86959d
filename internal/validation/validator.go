package validation

import (
	"fmt"
	"reflect"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/bagshop/internal/catalog"
)

// New returns a configured validator with custom struct-level validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// a markdown only makes sense when the original price is above the price
	v.RegisterStructValidation(productStructValidation, catalog.Product{})

	return v
}

func productStructValidation(sl validatorv10.StructLevel) {
	p := sl.Current().Interface().(catalog.Product)
	if p.OriginalPrice == nil {
		return
	}
	if *p.OriginalPrice <= p.Price {
		sl.ReportError(*p.OriginalPrice, "originalPrice", "OriginalPrice", "gt_price",
			fmt.Sprintf("original price %.2f must exceed price %.2f", *p.OriginalPrice, p.Price))
	}
}
