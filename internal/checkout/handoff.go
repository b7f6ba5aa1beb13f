// Package checkout turns a cart snapshot into a hosted checkout session and
// hands back the redirect target.
//
// A Handoff keeps no cart state between calls. Each Begin re-derives the line
// items and redirect URLs from its input and the deployment settings, makes
// a single processor call under a deadline and never retries.
package checkout

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sentinelshop/internal/cart"
	"sentinelshop/internal/logger"
)

const (
	MsgCartEmpty       = "El carrito está vacío"
	MsgProcessingError = "Error al procesar el pago"
)

var (
	ErrCartEmpty     = errors.New("cart empty")
	ErrNotConfigured = errors.New("payment processor is not configured")
)

// Settings are the deployment-wide checkout parameters.
type Settings struct {
	Currency string
	Country  string
	Locale   string
	Timeout  time.Duration
}

// DefaultSettings matches the single MXN deployment.
func DefaultSettings() Settings {
	return Settings{
		Currency: "mxn",
		Country:  "MX",
		Locale:   "es",
		Timeout:  10 * time.Second,
	}
}

// SessionRequest is everything the processor needs to open a hosted session.
type SessionRequest struct {
	LineItems                []LineItem
	Mode                     string
	PaymentMethodTypes       []string
	AllowedCountries         []string
	BillingAddressCollection string
	Locale                   string
	SuccessURL               string
	CancelURL                string
	Metadata                 map[string]string
	IdempotencyKey           string
}

type Session struct {
	ID  string
	URL string
}

// SessionCreator opens hosted checkout sessions at the payment processor.
type SessionCreator interface {
	Configured() bool
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
}

// Result is returned to the storefront on success.
type Result struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
}

type Handoff struct {
	creator  SessionCreator
	settings Settings
	tracer   trace.Tracer
	now      func() time.Time
	newKey   func() string
}

func NewHandoff(creator SessionCreator, settings Settings) *Handoff {
	defaults := DefaultSettings()
	if settings.Currency == "" {
		settings.Currency = defaults.Currency
	}
	if settings.Country == "" {
		settings.Country = defaults.Country
	}
	if settings.Locale == "" {
		settings.Locale = defaults.Locale
	}
	if settings.Timeout <= 0 {
		settings.Timeout = defaults.Timeout
	}

	return &Handoff{
		creator:  creator,
		settings: settings,
		tracer:   otel.Tracer("sentinelshop/checkout"),
		now:      time.Now,
		newKey:   uuid.NewString,
	}
}

func (h *Handoff) Settings() Settings {
	return h.settings
}

// Begin validates the cart, builds the session request and calls the
// processor once. Failures are returned as *Error.
func (h *Handoff) Begin(ctx context.Context, items map[string]cart.Line, origins Origins) (*Result, error) {
	ctx, span := h.tracer.Start(ctx, "checkout.Begin")
	defer span.End()
	span.SetAttributes(attribute.Int("checkout.lines", len(items)))

	if len(items) == 0 {
		span.SetStatus(codes.Error, "cart empty")
		return nil, &Error{Kind: KindValidation, Message: MsgCartEmpty}
	}

	if h.creator == nil || !h.creator.Configured() {
		logger.LogError("Checkout requested but the payment processor is not configured")
		span.SetStatus(codes.Error, "not configured")
		return nil, &Error{Kind: KindConfiguration, Message: MsgProcessingError, Err: ErrNotConfigured}
	}

	base := origins.Resolve()
	req := h.sessionRequest(items, base)
	span.SetAttributes(
		attribute.String("checkout.origin", base.String()),
		attribute.String("checkout.idempotency_key", req.IdempotencyKey),
	)

	callCtx, cancel := context.WithTimeout(ctx, h.settings.Timeout)
	defer cancel()

	start := time.Now()
	session, err := h.creator.CreateSession(callCtx, req)
	if err != nil {
		logger.LogError("Checkout session creation failed after %v: %v", time.Since(start), err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "session creation failed")
		return nil, &Error{Kind: KindExternal, Message: MsgProcessingError, Err: err}
	}
	if session == nil || session.URL == "" {
		err := errors.New("processor returned a session without a redirect URL")
		span.SetStatus(codes.Error, err.Error())
		return nil, &Error{Kind: KindExternal, Message: MsgProcessingError, Err: err}
	}

	logger.LogInfo("Checkout session %s created for %d lines in %v", session.ID, len(items), time.Since(start))
	span.SetAttributes(attribute.String("checkout.session_id", session.ID))

	return &Result{URL: session.URL, SessionID: session.ID}, nil
}

func (h *Handoff) sessionRequest(items map[string]cart.Line, base *url.URL) SessionRequest {
	return SessionRequest{
		LineItems:                BuildLineItems(items, h.settings.Currency, base),
		Mode:                     "payment",
		PaymentMethodTypes:       []string{"card"},
		AllowedCountries:         []string{h.settings.Country},
		BillingAddressCollection: "auto",
		Locale:                   h.settings.Locale,
		SuccessURL:               base.String() + "/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:                base.String() + "/canceled",
		Metadata: map[string]string{
			"timestamp":   h.now().UTC().Format(time.RFC3339),
			"total_items": strconv.Itoa(len(items)),
		},
		IdempotencyKey: h.newKey(),
	}
}
