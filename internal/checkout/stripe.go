package checkout

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/logging"
)

type stripeSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type StripeConfig struct {
	APIKey      string
	BaseURL     string
	SuccessPath string
	CancelPath  string
	AmountCents int64
	Currency    string
	ProductName string
	// Backends overrides the Stripe transport, mainly for tests.
	Backends *stripe.Backends
}

// Stripe mints Stripe Checkout Sessions for the lead deposit. Sessions are created with
// an idempotency key derived from the lead id, so a retry returns the same session.
type Stripe struct {
	sessions    stripeSessionAPI
	successURL  string
	cancelURL   string
	amountCents int64
	currency    string
	productName string
	logger      *zap.Logger
}

func NewStripe(cfg StripeConfig, logger *zap.Logger) (*Stripe, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("stripe: api key is required")
	}
	sc := client.New(apiKey, cfg.Backends)
	return newStripe(sc.CheckoutSessions, cfg, logger)
}

func newStripe(api stripeSessionAPI, cfg StripeConfig, logger *zap.Logger) (*Stripe, error) {
	if api == nil {
		return nil, errors.New("stripe: checkout sessions client is nil")
	}
	if cfg.AmountCents <= 0 {
		return nil, errors.New("stripe: deposit amount must be positive")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("stripe: public base url is required")
	}
	successPath := cfg.SuccessPath
	if successPath == "" {
		successPath = "/checkout/success"
	}
	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "eur"
	}
	name := cfg.ProductName
	if name == "" {
		name = "Project deposit"
	}
	return &Stripe{
		sessions:    api,
		successURL:  joinURL(cfg.BaseURL, successPath),
		cancelURL:   joinURL(cfg.BaseURL, cfg.CancelPath),
		amountCents: cfg.AmountCents,
		currency:    currency,
		productName: name,
		logger:      logging.OrNop(logger).Named("stripe"),
	}, nil
}

func (s *Stripe) Mint(ctx context.Context, lead domain.Lead) (string, error) {
	if strings.TrimSpace(lead.ID) == "" {
		return "", errors.New("stripe: lead id is required")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(withQuery(s.successURL, "lead", lead.ID) + "&session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(s.cancelURL),
		ClientReferenceID: stripe.String(lead.ID),
		Metadata: map[string]string{
			"lead_id": lead.ID,
			"service": lead.Service,
		},
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(s.currency),
				UnitAmount: stripe.Int64(s.amountCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(s.productName),
					Description: stripe.String(lead.Service),
				},
			},
		}},
	}
	params.Context = ctx
	params.SetIdempotencyKey("lead-checkout-" + lead.ID)

	session, err := s.sessions.New(params)
	if err != nil {
		s.logger.Warn("create checkout session", zap.String("lead_id", lead.ID), zap.Error(err))
		return "", errors.Wrap(err, "stripe: create checkout session")
	}
	if session == nil || session.URL == "" {
		return "", errors.Newf("stripe: session for lead %s has no url", lead.ID)
	}
	s.logger.Info("checkout session created", zap.String("lead_id", lead.ID), zap.String("session_id", session.ID))
	return session.URL, nil
}
