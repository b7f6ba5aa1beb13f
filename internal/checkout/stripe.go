package checkout

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
)

type StripeConfig struct {
	SecretKey string
	// APIBase overrides https://api.stripe.com, for test stand-ins.
	APIBase    string
	HTTPClient *http.Client
	Logger     *logrus.Logger
}

// StripeSessions creates hosted checkout sessions through stripe-go.
type StripeSessions struct {
	client session.Client
	live   bool
}

func NewStripeSessions(cfg StripeConfig) *StripeSessions {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	backendConfig := &stripe.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripe.Int64(0),
	}
	if cfg.APIBase != "" {
		backendConfig.URL = stripe.String(strings.TrimRight(cfg.APIBase, "/"))
	}
	if cfg.Logger != nil {
		backendConfig.LeveledLogger = cfg.Logger
	}

	return &StripeSessions{
		client: session.Client{
			B:   stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig),
			Key: cfg.SecretKey,
		},
		live: strings.HasPrefix(cfg.SecretKey, "sk_live_"),
	}
}

func (s *StripeSessions) Configured() bool {
	return s.client.Key != ""
}

func (s *StripeSessions) Live() bool {
	return s.live
}

func (s *StripeSessions) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:                     stripe.String(req.Mode),
		PaymentMethodTypes:       stripe.StringSlice(req.PaymentMethodTypes),
		SuccessURL:               stripe.String(req.SuccessURL),
		CancelURL:                stripe.String(req.CancelURL),
		BillingAddressCollection: stripe.String(req.BillingAddressCollection),
		Locale:                   stripe.String(req.Locale),
		ShippingAddressCollection: &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice(req.AllowedCountries),
		},
	}

	for _, item := range req.LineItems {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name:        stripe.String(item.Name),
			Description: stripe.String(item.Description),
		}
		if len(item.Images) > 0 {
			product.Images = stripe.StringSlice(item.Images)
		}

		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(item.Currency),
				ProductData: product,
				UnitAmount:  stripe.Int64(item.UnitAmount),
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	for key, value := range req.Metadata {
		params.AddMetadata(key, value)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	params.Context = ctx

	created, err := s.client.New(params)
	if err != nil {
		return nil, translateStripeError(err)
	}

	return &Session{ID: created.ID, URL: created.URL}, nil
}

func translateStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return &ProcessorError{
			Type:       string(stripeErr.Type),
			Code:       string(stripeErr.Code),
			Message:    stripeErr.Msg,
			HTTPStatus: stripeErr.HTTPStatusCode,
			RequestID:  stripeErr.RequestID,
		}
	}
	return errors.Wrap(err, "stripe request failed")
}
