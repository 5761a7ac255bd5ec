package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// StripeProvider creates Stripe payment intents with automatic payment
// methods enabled.
type StripeProvider struct {
	api *client.API
}

func NewStripeProvider(secretKey string) *StripeProvider {
	return NewStripeProviderWithBackends(secretKey, nil)
}

// NewStripeProviderWithBackends lets tests point the client at a fake API.
func NewStripeProviderWithBackends(secretKey string, backends *stripe.Backends) *StripeProvider {
	api := &client.API{}
	api.Init(secretKey, backends)
	return &StripeProvider{api: api}
}

func (s *StripeProvider) CreateIntent(ctx context.Context, amount decimal.Decimal, currency, userID string) (*Intent, error) {
	currency, err := validate(amount, currency)
	if err != nil {
		return nil, err
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(ToMinorUnits(amount)),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if userID != "" {
		params.AddMetadata("user_id", userID)
	}

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeInvalidRequest {
			return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, stripeErr.Msg)
		}
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       amount,
		Currency:     string(pi.Currency),
	}, nil
}
