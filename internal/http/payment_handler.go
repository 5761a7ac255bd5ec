package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zuhaib446/nayab-gemstone/internal/auth"
	"github.com/zuhaib446/nayab-gemstone/internal/payment"
)

type PaymentHandler struct {
	provider payment.Provider
	currency string
	timeout  time.Duration
	logger   *slog.Logger
}

func NewPaymentHandler(provider payment.Provider, currency string, timeout time.Duration, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{provider: provider, currency: currency, timeout: timeout, logger: logger}
}

type CreateIntentRequestDTO struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

type CreateIntentResponseDTO struct {
	ClientSecret    string `json:"client_secret"`
	PaymentIntentID string `json:"payment_intent_id"`
}

// POST /api/v1/payment/create-intent
func (h *PaymentHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user, _ := auth.FromContext(r.Context())

	var req CreateIntentRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if !req.Amount.IsPositive() {
		respondError(w, http.StatusBadRequest, "invalid_amount", "amount must be greater than 0")
		return
	}
	currency := req.Currency
	if currency == "" {
		currency = h.currency
	}

	intent, err := h.provider.CreateIntent(ctx, req.Amount, currency, user.ID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, CreateIntentResponseDTO{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
	})
}
