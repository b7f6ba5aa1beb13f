package checkout

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"sentinelshop/internal/cart"
)

type fakeCreator struct {
	mu         sync.Mutex
	configured bool
	err        error
	calls      int
	requests   []SessionRequest
	deadline   time.Time
}

func newFakeCreator() *fakeCreator {
	return &fakeCreator{configured: true}
}

func (f *fakeCreator) Configured() bool { return f.configured }

func (f *fakeCreator) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.requests = append(f.requests, req)
	f.deadline, _ = ctx.Deadline()
	if f.err != nil {
		return nil, f.err
	}
	return &Session{ID: "cs_test_123", URL: "https://checkout.stripe.com/c/pay/cs_test_123"}, nil
}

func testItems() map[string]cart.Line {
	return map[string]cart.Line{
		"gabinete-sentinel-pro-white": {
			ID:       "gabinete-sentinel-pro-white",
			Name:     "Gabinete Sentinel Pro (Blanco)",
			Price:    4000,
			Image:    "/frames/0300.webp",
			Quantity: 2,
		},
		"sticker": {
			ID:       "sticker",
			Name:     "Sticker",
			Price:    19.99,
			Image:    "https://cdn.example.com/x.webp",
			Quantity: 3,
			Attributes: map[string]interface{}{
				"description": "Sticker holográfico",
			},
		},
	}
}

func newTestHandoff(creator SessionCreator) *Handoff {
	h := NewHandoff(creator, DefaultSettings())
	h.now = func() time.Time { return time.Date(2025, 5, 4, 12, 30, 0, 0, time.UTC) }
	h.newKey = func() string { return "key-1" }
	return h
}

func TestBeginEmptyCartMakesNoCalls(t *testing.T) {
	creator := newFakeCreator()
	h := newTestHandoff(creator)

	for _, items := range []map[string]cart.Line{nil, {}} {
		result, err := h.Begin(context.Background(), items, Origins{})
		if result != nil {
			t.Errorf("Expected no result, got %+v", result)
		}

		var checkoutErr *Error
		if !errors.As(err, &checkoutErr) {
			t.Fatalf("Expected *Error, got %v", err)
		}
		if checkoutErr.Kind != KindValidation || checkoutErr.Status() != 400 {
			t.Errorf("Expected validation/400, got %s/%d", checkoutErr.Kind, checkoutErr.Status())
		}
		if checkoutErr.Message != MsgCartEmpty {
			t.Errorf("Expected %q, got %q", MsgCartEmpty, checkoutErr.Message)
		}
	}

	if creator.calls != 0 {
		t.Errorf("Expected zero external calls, got %d", creator.calls)
	}
}

func TestBeginEmptyCartBeforeConfiguration(t *testing.T) {
	creator := newFakeCreator()
	creator.configured = false
	h := newTestHandoff(creator)

	_, err := h.Begin(context.Background(), nil, Origins{})
	var checkoutErr *Error
	if !errors.As(err, &checkoutErr) || checkoutErr.Kind != KindValidation {
		t.Errorf("Expected validation error first, got %v", err)
	}
}

func TestBeginNotConfigured(t *testing.T) {
	creator := newFakeCreator()
	creator.configured = false
	h := newTestHandoff(creator)

	_, err := h.Begin(context.Background(), testItems(), Origins{})

	var checkoutErr *Error
	if !errors.As(err, &checkoutErr) {
		t.Fatalf("Expected *Error, got %v", err)
	}
	if checkoutErr.Kind != KindConfiguration || checkoutErr.Status() != 500 {
		t.Errorf("Expected configuration/500, got %s/%d", checkoutErr.Kind, checkoutErr.Status())
	}
	if checkoutErr.Message != MsgProcessingError {
		t.Errorf("Unexpected message %q", checkoutErr.Message)
	}
	if errors.Cause(err) != ErrNotConfigured {
		t.Errorf("Expected cause ErrNotConfigured, got %v", errors.Cause(err))
	}
	if creator.calls != 0 {
		t.Errorf("Expected zero external calls, got %d", creator.calls)
	}

	if _, err := NewHandoff(nil, DefaultSettings()).Begin(context.Background(), testItems(), Origins{}); err == nil {
		t.Error("Expected error without a creator")
	}
}

func TestBeginExternalError(t *testing.T) {
	creator := newFakeCreator()
	creator.err = &ProcessorError{Type: "invalid_request_error", Message: "Invalid currency: xyz"}
	h := newTestHandoff(creator)

	result, err := h.Begin(context.Background(), testItems(), Origins{})
	if result != nil {
		t.Errorf("Expected no result, got %+v", result)
	}

	var checkoutErr *Error
	if !errors.As(err, &checkoutErr) {
		t.Fatalf("Expected *Error, got %v", err)
	}
	if checkoutErr.Kind != KindExternal || checkoutErr.Status() != 500 {
		t.Errorf("Expected external/500, got %s/%d", checkoutErr.Kind, checkoutErr.Status())
	}
	if checkoutErr.Details() != "Invalid currency: xyz" {
		t.Errorf("Expected processor message as details, got %q", checkoutErr.Details())
	}

	// No retries
	if creator.calls != 1 {
		t.Errorf("Expected exactly one call, got %d", creator.calls)
	}
}

func TestBeginSuccess(t *testing.T) {
	creator := newFakeCreator()
	h := newTestHandoff(creator)

	before := time.Now()
	result, err := h.Begin(context.Background(), testItems(), Origins{Configured: "https://example.com"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if result.URL != "https://checkout.stripe.com/c/pay/cs_test_123" || result.SessionID != "cs_test_123" {
		t.Errorf("Unexpected result %+v", result)
	}

	req := creator.requests[0]
	if req.Mode != "payment" {
		t.Errorf("Expected payment mode, got %s", req.Mode)
	}
	if len(req.PaymentMethodTypes) != 1 || req.PaymentMethodTypes[0] != "card" {
		t.Errorf("Expected card only, got %v", req.PaymentMethodTypes)
	}
	if len(req.AllowedCountries) != 1 || req.AllowedCountries[0] != "MX" {
		t.Errorf("Expected MX only, got %v", req.AllowedCountries)
	}
	if req.BillingAddressCollection != "auto" || req.Locale != "es" {
		t.Errorf("Unexpected billing/locale %s/%s", req.BillingAddressCollection, req.Locale)
	}
	if req.SuccessURL != "https://example.com/success?session_id={CHECKOUT_SESSION_ID}" {
		t.Errorf("Unexpected success URL %s", req.SuccessURL)
	}
	if req.CancelURL != "https://example.com/canceled" {
		t.Errorf("Unexpected cancel URL %s", req.CancelURL)
	}
	if req.Metadata["timestamp"] != "2025-05-04T12:30:00Z" || req.Metadata["total_items"] != "2" {
		t.Errorf("Unexpected metadata %v", req.Metadata)
	}
	if req.IdempotencyKey != "key-1" {
		t.Errorf("Expected idempotency key, got %q", req.IdempotencyKey)
	}

	if len(req.LineItems) != 2 {
		t.Fatalf("Expected 2 line items, got %d", len(req.LineItems))
	}
	white := req.LineItems[0]
	if white.UnitAmount != 400000 || white.Quantity != 2 || white.Currency != "mxn" {
		t.Errorf("Unexpected first line %+v", white)
	}
	if white.Images[0] != "https://example.com/frames/0300.webp" {
		t.Errorf("Expected absolutized image, got %v", white.Images)
	}
	if white.Description != "Producto: Gabinete Sentinel Pro (Blanco)" {
		t.Errorf("Unexpected default description %q", white.Description)
	}

	sticker := req.LineItems[1]
	if sticker.UnitAmount != 1999 || sticker.Quantity != 3 {
		t.Errorf("Expected 1999 x 3, got %d x %d", sticker.UnitAmount, sticker.Quantity)
	}
	if sticker.Images[0] != "https://cdn.example.com/x.webp" {
		t.Errorf("Expected absolute image to pass through, got %v", sticker.Images)
	}
	if sticker.Description != "Sticker holográfico" {
		t.Errorf("Expected attribute description, got %q", sticker.Description)
	}

	if creator.deadline.IsZero() {
		t.Fatal("Expected the call to carry a deadline")
	}
	if limit := before.Add(DefaultSettings().Timeout + time.Second); creator.deadline.After(limit) {
		t.Errorf("Deadline %v beyond %v", creator.deadline, limit)
	}
}

func TestBeginDoesNotMutateInput(t *testing.T) {
	h := newTestHandoff(newFakeCreator())
	items := testItems()
	line := items["sticker"]
	line.Quantity = 0
	items["sticker"] = line

	if _, err := h.Begin(context.Background(), items, Origins{}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if items["sticker"].Quantity != 0 {
		t.Error("Expected caller's items to be left alone")
	}
}

func TestBeginFreshKeyPerCall(t *testing.T) {
	creator := newFakeCreator()
	h := NewHandoff(creator, DefaultSettings())

	for i := 0; i < 2; i++ {
		if _, err := h.Begin(context.Background(), testItems(), Origins{}); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}

	if creator.requests[0].IdempotencyKey == creator.requests[1].IdempotencyKey {
		t.Error("Expected a distinct idempotency key per invocation")
	}
}

func TestNewHandoffDefaults(t *testing.T) {
	h := NewHandoff(newFakeCreator(), Settings{})
	got := h.Settings()
	if got.Currency != "mxn" || got.Country != "MX" || got.Locale != "es" || got.Timeout != 10*time.Second {
		t.Errorf("Unexpected defaults %+v", got)
	}
}

func TestErrorFormatting(t *testing.T) {
	err := &Error{Kind: KindExternal, Message: MsgProcessingError, Err: errors.New("boom")}
	if !strings.Contains(err.Error(), "boom") || err.Code() != "checkout_failed" {
		t.Errorf("Unexpected error %q code %s", err.Error(), err.Code())
	}

	validation := &Error{Kind: KindValidation, Message: MsgCartEmpty}
	if validation.Details() != "" || validation.Code() != "cart_empty" {
		t.Errorf("Unexpected validation error %+v", validation)
	}

	config := &Error{Kind: KindConfiguration, Message: MsgProcessingError, Err: ErrNotConfigured}
	if config.Code() != "checkout_not_configured" {
		t.Errorf("Unexpected code %s", config.Code())
	}
}
