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

type expenseResponse struct {
	ID          string     `json:"id"`
	TeamID      string     `json:"team_id"`
	PaidBy      string     `json:"paid_by"`
	Amount      string     `json:"amount"`
	AmountMinor int64      `json:"amount_minor"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	IsMonthly   bool       `json:"is_monthly"`
	MonthNumber *int       `json:"month_number,omitempty"`
	TotalMonths *int       `json:"total_months,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toExpenseResponse(e store.Expense) expenseResponse {
	return expenseResponse{
		ID:          e.ID,
		TeamID:      e.TeamID,
		PaidBy:      e.PaidBy,
		Amount:      money.FormatMinor(e.AmountMinor),
		AmountMinor: e.AmountMinor,
		Description: e.Description,
		Category:    e.Category,
		IsMonthly:   e.IsMonthly,
		MonthNumber: e.MonthNumber,
		TotalMonths: e.TotalMonths,
		Deadline:    e.Deadline,
		CreatedAt:   e.CreatedAt,
	}
}

type settlementResponse struct {
	ID            string     `json:"id"`
	ExpenseID     string     `json:"expense_id"`
	TeamID        string     `json:"team_id"`
	OwedBy        string     `json:"owed_by"`
	OwedTo        string     `json:"owed_to"`
	Amount        string     `json:"amount"`
	AmountMinor   int64      `json:"amount_minor"`
	Status        string     `json:"status"`
	PaymentMethod *string    `json:"payment_method,omitempty"`
	ProofURI      *string    `json:"proof_uri,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
}

func toSettlementResponse(s store.Settlement) settlementResponse {
	return settlementResponse{
		ID:            s.ID,
		ExpenseID:     s.ExpenseID,
		TeamID:        s.TeamID,
		OwedBy:        s.OwedBy,
		OwedTo:        s.OwedTo,
		Amount:        money.FormatMinor(s.AmountMinor),
		AmountMinor:   s.AmountMinor,
		Status:        s.Status,
		PaymentMethod: s.PaymentMethod,
		ProofURI:      s.ProofURI,
		PaidAt:        s.PaidAt,
	}
}

func toSettlementResponses(rows []store.Settlement) []settlementResponse {
	out := make([]settlementResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, toSettlementResponse(row))
	}
	return out
}

type recordExpenseRequest struct {
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

func (h *Handler) RecordExpense(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req recordExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	amountMinor, err := parseAmountMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	expense, settlements, err := h.service.RecordExpense(r.Context(), ledger.RecordExpenseRequest{
		TeamID:      chi.URLParam(r, "teamID"),
		PayerID:     userID,
		AmountMinor: amountMinor,
		Description: req.Description,
		Category:    req.Category,
	})
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"expense":     toExpenseResponse(expense),
		"settlements": toSettlementResponses(settlements),
	})
}

type monthlyExpenseRequest struct {
	TotalAmount string `json:"total_amount"`
	Months      int    `json:"months"`
	DeadlineDay int    `json:"deadline_day"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

func (h *Handler) CreateMonthlyExpense(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req monthlyExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	totalMinor, err := parseAmountMinor(req.TotalAmount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	result, err := h.service.CreateMonthlyExpense(r.Context(), ledger.MonthlyExpenseRequest{
		TeamID:      chi.URLParam(r, "teamID"),
		PayerID:     userID,
		TotalMinor:  totalMinor,
		Months:      req.Months,
		DeadlineDay: req.DeadlineDay,
		Description: req.Description,
		Category:    req.Category,
	})
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	expenses := make([]expenseResponse, 0, len(result.Expenses))
	for _, expense := range result.Expenses {
		expenses = append(expenses, toExpenseResponse(expense))
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"expenses":               expenses,
		"per_participant_amount": money.FormatMinor(result.PerParticipantMinor),
	})
}

func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	teamID := chi.URLParam(r, "teamID")
	if ok, err := h.members.IsMember(r.Context(), teamID, userID); err != nil || !ok {
		respondError(w, http.StatusForbidden, "forbidden")
		return
	}
	limit, offset := parseLimitOffset(r)
	rows, err := h.expenses.ListByTeam(r.Context(), teamID, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list expenses")
		return
	}
	expenses := make([]expenseResponse, 0, len(rows))
	for _, row := range rows {
		expenses = append(expenses, toExpenseResponse(row))
	}
	respondJSON(w, http.StatusOK, map[string]any{"expenses": expenses})
}

type updateExpenseRequest struct {
	Description string `json:"description"`
}

func (h *Handler) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req updateExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	expense, err := h.service.UpdateExpenseDescription(r.Context(), chi.URLParam(r, "expenseID"), userID, req.Description)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toExpenseResponse(expense))
}

func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.service.DeleteExpense(r.Context(), chi.URLParam(r, "expenseID"), userID); err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) ListExpenseSettlements(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	expenseID := chi.URLParam(r, "expenseID")
	expense, err := h.expenses.GetByID(r.Context(), expenseID)
	if err != nil {
		respondError(w, http.StatusNotFound, "expense not found")
		return
	}
	if ok, err := h.members.IsMember(r.Context(), expense.TeamID, userID); err != nil || !ok {
		respondError(w, http.StatusForbidden, "forbidden")
		return
	}
	rows, err := h.settlements.ListByExpense(r.Context(), expenseID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list settlements")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"settlements": toSettlementResponses(rows)})
}
