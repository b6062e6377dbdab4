package server

import (
	"PredictLedger/internal/domain"
	"encoding/json"
	"errors"
	"net/http"
)

var (
	errMissingPrincipal = errors.New("missing or invalid " + PrincipalHeader + " header")
	errBadRequest       = errors.New("bad request")
)

// errorBody is the JSON error response
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor maps an error to its HTTP status. Market errors keep their
// stable code; anything else is reported as Internal.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errMissingPrincipal):
		return http.StatusUnauthorized, "Unauthenticated"
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "BadRequest"
	}

	code := domain.Code(err)
	switch {
	case errors.Is(err, domain.ErrMarketNotFound):
		return http.StatusNotFound, code
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden, code
	case errors.Is(err, domain.ErrMarketClosed),
		errors.Is(err, domain.ErrMarketResolved),
		errors.Is(err, domain.ErrAlreadyClaimed),
		errors.Is(err, domain.ErrNoWinningTokens):
		return http.StatusConflict, code
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInsufficientDeposit),
		errors.Is(err, domain.ErrInsufficientLiquidity),
		errors.Is(err, domain.ErrSlippageExceeded):
		return http.StatusUnprocessableEntity, code
	default:
		return http.StatusInternalServerError, code
	}
}

func writeError(w http.ResponseWriter, err error) int {
	status, code := statusFor(err)
	writeJSON(w, status, errorBody{Code: code, Message: err.Error()})
	return status
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
