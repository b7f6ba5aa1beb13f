package checkout

import (
	"math"
	"net/url"
	"sort"

	"github.com/shopspring/decimal"

	"sentinelshop/internal/cart"
)

// LineItem is one processor line item priced in minor units.
type LineItem struct {
	Currency    string
	Name        string
	Description string
	Images      []string
	UnitAmount  int64
	Quantity    int64
}

// UnitAmount converts a whole-unit price to minor units, rounding half away
// from zero. Digits past the second decimal are lost. NaN and ±Inf yield 0.
func UnitAmount(price float64) int64 {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return 0
	}
	return decimal.NewFromFloat(price).Shift(2).Round(0).IntPart()
}

// Quantity coerces a line quantity to a positive integer.
func Quantity(q int) int64 {
	if q < 1 {
		return 1
	}
	return int64(q)
}

// BuildLineItems converts cart lines, ordered by id, resolving image paths
// against base.
func BuildLineItems(items map[string]cart.Line, currency string, base *url.URL) []LineItem {
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]LineItem, 0, len(ids))
	for _, id := range ids {
		line := items[id]

		description := line.Attribute("description")
		if description == "" {
			description = "Producto: " + line.Name
		}

		var images []string
		if image := AbsoluteURL(base, line.Image); image != "" {
			images = []string{image}
		}

		out = append(out, LineItem{
			Currency:    currency,
			Name:        line.Name,
			Description: description,
			Images:      images,
			UnitAmount:  UnitAmount(line.Price),
			Quantity:    Quantity(line.Quantity),
		})
	}
	return out
}
