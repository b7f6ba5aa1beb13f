package testing

import "sentinelshop/internal/cart"

const TestProductID = "gabinete-sentinel-pro"

// TestLine builds a raw storefront line in the flat shape the browser sends
func TestLine(id string, price float64) map[string]interface{} {
	return map[string]interface{}{
		"id":    id,
		"name":  "Producto " + id,
		"price": price,
		"image": "/frames/" + id + ".webp",
	}
}

// TestVariant references a catalog finish by id or display name
func TestVariant(finish string) map[string]string {
	return map[string]string{
		"productId": TestProductID,
		"finish":    finish,
	}
}

// CartResponse mirrors the cart endpoints' JSON
type CartResponse = cart.View

// ErrorResponse mirrors middleware.APIError
type ErrorResponse struct {
	Code      string `json:"code"`
	Error     string `json:"error"`
	Details   string `json:"details"`
	RequestID string `json:"request_id"`
}

type CheckoutResponse struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
}
