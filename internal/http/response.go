package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fjod/go_cart/shop-service/internal/service"
)

type ErrorResponse struct {
	Error      string         `json:"error"`
	Code       string         `json:"code,omitempty"`
	Details    string         `json:"details,omitempty"`
	Violations []ViolationDTO `json:"violations,omitempty"`
}

type ViolationDTO struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Requested   int    `json:"requested"`
	Available   int    `json:"available"`
	Unavailable bool   `json:"unavailable,omitempty"`
}

// retryAfterSeconds is sent with 409 responses for busy resources.
const retryAfterSeconds = "1"

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleServiceError converts service error kinds to HTTP status codes.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var stockErr *service.StockError
	if errors.As(err, &stockErr) {
		resp := ErrorResponse{
			Error: stockErr.Error(),
			Code:  "insufficient_stock",
		}
		for _, v := range stockErr.Violations {
			resp.Violations = append(resp.Violations, ViolationDTO{
				ProductID:   v.ProductID,
				ProductName: v.ProductName,
				Requested:   v.Requested,
				Available:   v.Available,
				Unavailable: v.Unavailable,
			})
		}
		respondJSON(w, http.StatusBadRequest, resp)
		return
	}

	var httpStatus int
	var code string

	switch {
	case errors.Is(err, service.ErrLockUnavailable):
		w.Header().Set("Retry-After", retryAfterSeconds)
		httpStatus = http.StatusConflict
		code = "resource_busy"
	case errors.Is(err, service.ErrPaymentFailed):
		httpStatus = http.StatusBadRequest
		code = "payment_failed"
	case errors.Is(err, service.ErrNotFound):
		httpStatus = http.StatusNotFound
		code = "not_found"
	case errors.Is(err, service.ErrBadRequest):
		httpStatus = http.StatusBadRequest
		code = "invalid_argument"
	case errors.Is(err, service.ErrForbidden):
		httpStatus = http.StatusForbidden
		code = "permission_denied"
	case errors.Is(err, context.DeadlineExceeded):
		httpStatus = http.StatusGatewayTimeout
		code = "timeout"
	default:
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	respondError(w, httpStatus, code, err.Error())
}
