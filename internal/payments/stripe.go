package payments

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/paymentintent"

	"github.com/mintora/mintora/internal/circuitbreaker"
)

// breakerKey identifies the Stripe API in the circuit breaker.
const breakerKey = "stripe"

// StripeCharger charges cards through Stripe PaymentIntents. A circuit
// breaker rejects charges fast while the Stripe API is failing instead of
// holding every order open for the full timeout.
type StripeCharger struct {
	logger  *slog.Logger
	breaker *circuitbreaker.Breaker
}

// NewStripeCharger configures the Stripe client with the given secret key.
func NewStripeCharger(apiKey string, logger *slog.Logger) *StripeCharger {
	stripe.Key = apiKey
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeCharger{
		logger:  logger.With("component", "stripe"),
		breaker: circuitbreaker.New(5, 30*time.Second),
	}
}

func (s *StripeCharger) Charge(ctx context.Context, req ChargeRequest) (string, error) {
	if !s.breaker.Allow(breakerKey) {
		return "", fmt.Errorf("%w: payment processor unavailable", ErrChargeFailed)
	}

	cents, err := amountToCents(req.Amount)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrChargeFailed, err)
	}
	currency := req.Currency
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(cents),
		Currency:      stripe.String(currency),
		PaymentMethod: stripe.String(req.PaymentMethod),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderID)

	pi, err := paymentintent.New(params)
	if err != nil {
		s.breaker.RecordFailure(breakerKey)
		s.logger.Error("stripe charge failed", "order_id", req.OrderID, "error", err)
		return "", fmt.Errorf("%w: %v", ErrChargeFailed, err)
	}
	s.breaker.RecordSuccess(breakerKey)
	// A declined card is an API success; only transport failures trip the breaker.
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return "", fmt.Errorf("%w: payment intent status %s", ErrChargeFailed, pi.Status)
	}

	s.logger.Info("card charged", "order_id", req.OrderID, "intent_id", pi.ID, "amount_cents", cents)
	return pi.ID, nil
}

// amountToCents converts a decimal amount string to integer cents,
// rejecting more than two fractional digits.
func amountToCents(amount string) (int64, error) {
	r, ok := new(big.Rat).SetString(amount)
	if !ok || r.Sign() <= 0 {
		return 0, fmt.Errorf("invalid amount %q", amount)
	}
	cents := new(big.Rat).Mul(r, big.NewRat(100, 1))
	if !cents.IsInt() {
		return 0, fmt.Errorf("amount %q has sub-cent precision", amount)
	}
	return cents.Num().Int64(), nil
}

var _ CardCharger = (*StripeCharger)(nil)
