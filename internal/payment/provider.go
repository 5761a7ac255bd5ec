package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"github.com/zuhaib446/nayab-gemstone/pkg/circuitbreaker"
)

var (
	ErrInvalidAmount = errors.New("amount must be greater than 0")
	ErrUnavailable   = errors.New("payment provider unavailable")
)

// Intent is the client-usable handle for confirming a payment.
type Intent struct {
	ID           string          `json:"id"`
	ClientSecret string          `json:"client_secret"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
}

type Provider interface {
	CreateIntent(ctx context.Context, amount decimal.Decimal, currency, userID string) (*Intent, error)
}

// ToMinorUnits converts an amount to cents, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func validate(amount decimal.Decimal, currency string) (string, error) {
	if !amount.IsPositive() || ToMinorUnits(amount) <= 0 {
		return "", ErrInvalidAmount
	}
	currency = strings.ToLower(strings.TrimSpace(currency))
	if len(currency) != 3 {
		return "", fmt.Errorf("%w: currency %q", ErrInvalidAmount, currency)
	}
	return currency, nil
}

// MockProvider issues local intents when no Stripe key is configured.
type MockProvider struct {
	seq atomic.Int64
}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (m *MockProvider) CreateIntent(_ context.Context, amount decimal.Decimal, currency, _ string) (*Intent, error) {
	currency, err := validate(amount, currency)
	if err != nil {
		return nil, err
	}
	id := fmt.Sprintf("TXN-%d-%d", time.Now().UnixNano(), m.seq.Add(1))
	return &Intent{
		ID:           id,
		ClientSecret: id + "_secret",
		Amount:       amount,
		Currency:     currency,
	}, nil
}

// BreakerProvider stops calling a failing provider until it recovers.
type BreakerProvider struct {
	next Provider
	cb   *gobreaker.CircuitBreaker[*Intent]
}

func NewBreakerProvider(next Provider, logger *slog.Logger) *BreakerProvider {
	cfg := circuitbreaker.DefaultConfig("payment")
	cfg.Ignore = func(err error) bool {
		return errors.Is(err, ErrInvalidAmount)
	}
	return &BreakerProvider{next: next, cb: circuitbreaker.New[*Intent](cfg, logger)}
}

func (b *BreakerProvider) CreateIntent(ctx context.Context, amount decimal.Decimal, currency, userID string) (*Intent, error) {
	intent, err := b.cb.Execute(func() (*Intent, error) {
		return b.next.CreateIntent(ctx, amount, currency, userID)
	})
	if circuitbreaker.IsOpen(err) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return intent, err
}
