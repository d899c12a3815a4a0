package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"hati/internal/ledger"
	"hati/internal/middleware"
	"hati/internal/money"
	"hati/internal/store"

	"github.com/go-chi/chi/v5"
)

type agreementResponse struct {
	ID            string     `json:"id"`
	TeamID        string     `json:"team_id"`
	ProposerID    string     `json:"proposer_id"`
	ResponderID   string     `json:"responder_id"`
	ProposerOwes  string     `json:"proposer_owes"`
	ResponderOwes string     `json:"responder_owes"`
	SettlementIDs []string   `json:"settlement_ids"`
	Status        string     `json:"status"`
	ProposedAt    time.Time  `json:"proposed_at"`
	RespondedAt   *time.Time `json:"responded_at,omitempty"`
}

func toAgreementResponse(a store.Agreement) agreementResponse {
	return agreementResponse{
		ID:            a.ID,
		TeamID:        a.TeamID,
		ProposerID:    a.ProposerID,
		ResponderID:   a.ResponderID,
		ProposerOwes:  money.FormatMinor(a.ProposerOwesMinor),
		ResponderOwes: money.FormatMinor(a.ResponderOwesMinor),
		SettlementIDs: a.SettlementIDs,
		Status:        a.Status,
		ProposedAt:    a.ProposedAt,
		RespondedAt:   a.RespondedAt,
	}
}

func (h *Handler) MutualDebts(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	debts, err := h.service.DetectMutualDebts(r.Context(), chi.URLParam(r, "teamID"), userID)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"mutual_debts": debts})
}

func (h *Handler) ListMyAgreements(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	rows, err := h.agreements.ListForMember(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list agreements")
		return
	}
	agreements := make([]agreementResponse, 0, len(rows))
	for _, row := range rows {
		agreements = append(agreements, toAgreementResponse(row))
	}
	respondJSON(w, http.StatusOK, map[string]any{"agreements": agreements})
}

type proposeAgreementRequest struct {
	TeamID        string   `json:"team_id"`
	ResponderID   string   `json:"responder_id"`
	ProposerOwes  string   `json:"proposer_owes"`
	ResponderOwes string   `json:"responder_owes"`
	SettlementIDs []string `json:"settlement_ids"`
}

func (h *Handler) ProposeAgreement(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req proposeAgreementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	// Zero is a legal side here: one direction of the net can be empty
	// of offsets only when every settlement runs the other way.
	proposerOwes, err := money.ParseMinor(req.ProposerOwes)
	if err != nil || proposerOwes < 0 {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	responderOwes, err := money.ParseMinor(req.ResponderOwes)
	if err != nil || responderOwes < 0 {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	agreement, err := h.service.ProposeAgreement(r.Context(), ledger.ProposeAgreementRequest{
		TeamID:             req.TeamID,
		ProposerID:         userID,
		ResponderID:        req.ResponderID,
		ProposerOwesMinor:  proposerOwes,
		ResponderOwesMinor: responderOwes,
		SettlementIDs:      req.SettlementIDs,
	})
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toAgreementResponse(agreement))
}

type respondAgreementRequest struct {
	Accept bool `json:"accept"`
}

func (h *Handler) RespondAgreement(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req respondAgreementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	agreement, err := h.service.RespondAgreement(r.Context(), ledger.RespondAgreementRequest{
		AgreementID: chi.URLParam(r, "agreementID"),
		ActorID:     userID,
		Accept:      req.Accept,
	})
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toAgreementResponse(agreement))
}
