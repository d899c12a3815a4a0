package handlers

import (
	"encoding/json"
	"net/http"

	"hati/internal/ledger"
	"hati/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) ListMySettlements(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	rows, err := h.settlements.ListMine(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list settlements")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"settlements": toSettlementResponses(rows)})
}

type submitPaymentRequest struct {
	Method   string  `json:"method"`
	ProofURI *string `json:"proof_uri"`
}

func (h *Handler) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req submitPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	settlement, err := h.service.SubmitPayment(r.Context(), ledger.SubmitPaymentRequest{
		SettlementID: chi.URLParam(r, "settlementID"),
		ActorID:      userID,
		Method:       req.Method,
		ProofURI:     req.ProofURI,
	})
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toSettlementResponse(settlement))
}

type batchPaymentRequest struct {
	SettlementIDs []string `json:"settlement_ids"`
	Method        string   `json:"method"`
	ProofURI      *string  `json:"proof_uri"`
}

func (h *Handler) SubmitBatchPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req batchPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	result, err := h.service.SubmitBatchPayment(r.Context(), ledger.SubmitBatchPaymentRequest{
		SettlementIDs: req.SettlementIDs,
		ActorID:       userID,
		Method:        req.Method,
		ProofURI:      req.ProofURI,
	})
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"succeeded": toSettlementResponses(result.Succeeded),
		"skipped":   result.Skipped,
	})
}

type verifyPaymentRequest struct {
	Accept bool `json:"accept"`
}

func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req verifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	settlement, err := h.service.VerifyPayment(r.Context(), ledger.VerifyPaymentRequest{
		SettlementID: chi.URLParam(r, "settlementID"),
		ActorID:      userID,
		Accept:       req.Accept,
	})
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toSettlementResponse(settlement))
}
