package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"hati/internal/ledger"
	"hati/internal/money"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondLedgerError maps the service error taxonomy onto HTTP statuses.
// Unknown errors are reported as 500 without leaking internals.
func respondLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrValidation):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, ledger.ErrForbidden):
		respondError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, ledger.ErrInvalidState):
		respondError(w, http.StatusConflict, "invalid state transition")
	case errors.Is(err, ledger.ErrStaleData):
		respondError(w, http.StatusConflict, "stale data, reload and retry")
	case errors.Is(err, ledger.ErrAgreementStale):
		respondError(w, http.StatusConflict, "agreement references changed settlements")
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

var errInvalidAmount = errors.New("invalid amount")

func parseAmountMinor(raw string) (int64, error) {
	amount, err := money.ParseMinor(raw)
	if err != nil || amount <= 0 {
		return 0, errInvalidAmount
	}
	return amount, nil
}

func parseLimitOffset(r *http.Request) (int, int) {
	limit := 50
	offset := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}
