package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/zuhaib446/nayab-gemstone/internal/checkout"
	ordersdomain "github.com/zuhaib446/nayab-gemstone/internal/orders/domain"
	"github.com/zuhaib446/nayab-gemstone/internal/orders/repository"
	"github.com/zuhaib446/nayab-gemstone/internal/payment"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

func respondErrorDetails(w http.ResponseWriter, status int, code, message string, details any) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code, Details: details})
}

type stockDetails struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// handleServiceError converts domain errors to HTTP status codes.
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var (
		validation *checkout.ValidationError
		notFound   *checkout.NotFoundError
		short      *checkout.StockInsufficientError
		conflict   *checkout.ConcurrencyConflictError
		persist    *checkout.PersistenceError
	)

	switch {
	case errors.Is(err, checkout.ErrUnauthenticated):
		respondError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
	case errors.As(err, &validation):
		respondErrorDetails(w, http.StatusBadRequest, "validation_error", err.Error(),
			map[string]string{"field": validation.Field})
	case errors.As(err, &notFound):
		respondErrorDetails(w, http.StatusNotFound, "product_not_found", err.Error(),
			map[string]string{"product_id": notFound.ProductID})
	case errors.As(err, &short):
		respondErrorDetails(w, http.StatusConflict, "insufficient_stock", err.Error(),
			stockDetails{ProductID: short.ProductID, Requested: short.Requested, Available: short.Available})
	case errors.As(err, &conflict):
		respondErrorDetails(w, http.StatusConflict, "stock_conflict", err.Error(),
			stockDetails{ProductID: conflict.ProductID, Requested: conflict.Requested, Available: conflict.Available})
	case errors.Is(err, repository.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "order_not_found", "order not found")
	case errors.Is(err, ordersdomain.ErrInvalidStatus):
		respondError(w, http.StatusBadRequest, "invalid_status", err.Error())
	case errors.Is(err, ordersdomain.ErrTerminalStatus):
		respondError(w, http.StatusConflict, "terminal_status", err.Error())
	case errors.Is(err, payment.ErrInvalidAmount):
		respondError(w, http.StatusBadRequest, "invalid_amount", err.Error())
	case errors.Is(err, payment.ErrUnavailable):
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", "payment provider unavailable")
	case errors.As(err, &persist):
		logger.ErrorContext(r.Context(), "persistence failure", "op", persist.Op, "error", persist.Err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	default:
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
