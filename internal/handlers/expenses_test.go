package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"hati/internal/ledger"
	"hati/internal/store"
)

func TestRecordExpenseEndpoint(t *testing.T) {
	var captured ledger.RecordExpenseRequest
	handler := newTestHandler(stubMemberStore{}, stubExpenseStore{}, stubSettlementStore{}, stubAgreementStore{}, stubService{
		recordExpenseFn: func(ctx context.Context, req ledger.RecordExpenseRequest) (store.Expense, []store.Settlement, error) {
			captured = req
			return store.Expense{ID: "exp-1", TeamID: req.TeamID, PaidBy: req.PayerID, AmountMinor: req.AmountMinor}, nil, nil
		},
	})
	router := handler.Routes()

	body := strings.NewReader(`{"amount":"150.00","description":"dinner","category":"food"}`)
	req := httptest.NewRequest(http.MethodPost, "/teams/team-1/expenses", body)
	req.Header.Set("Authorization", "Bearer "+bearerToken(t, "user-1"))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.TeamID != "team-1" || captured.PayerID != "user-1" {
		t.Fatalf("unexpected request: %+v", captured)
	}
	if captured.AmountMinor != 15000 {
		t.Fatalf("expected 15000 minor units, got %d", captured.AmountMinor)
	}
}

func TestRecordExpenseEndpointRejectsBadAmount(t *testing.T) {
	handler := newTestHandler(stubMemberStore{}, stubExpenseStore{}, stubSettlementStore{}, stubAgreementStore{}, stubService{})
	router := handler.Routes()

	for _, amount := range []string{"0", "-5.00", "1.234", "abc", ""} {
		body := strings.NewReader(`{"amount":"` + amount + `","description":"x"}`)
		req := httptest.NewRequest(http.MethodPost, "/teams/team-1/expenses", body)
		req.Header.Set("Authorization", "Bearer "+bearerToken(t, "user-1"))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("amount %q: expected 400, got %d", amount, rr.Code)
		}
	}
}

func TestRecordExpenseEndpointRequiresAuth(t *testing.T) {
	handler := newTestHandler(stubMemberStore{}, stubExpenseStore{}, stubSettlementStore{}, stubAgreementStore{}, stubService{})
	router := handler.Routes()

	req := httptest.NewRequest(http.MethodPost, "/teams/team-1/expenses", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestDeleteExpenseEndpointMapsErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ledger.ErrNotFound, http.StatusNotFound},
		{ledger.ErrForbidden, http.StatusForbidden},
		{ledger.ErrStaleData, http.StatusConflict},
	}
	for _, tc := range cases {
		handler := newTestHandler(stubMemberStore{}, stubExpenseStore{}, stubSettlementStore{}, stubAgreementStore{}, stubService{
			deleteExpenseFn: func(ctx context.Context, expenseID, actorID string) error {
				return tc.err
			},
		})
		router := handler.Routes()
		req := httptest.NewRequest(http.MethodDelete, "/expenses/exp-1", nil)
		req.Header.Set("Authorization", "Bearer "+bearerToken(t, "user-1"))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != tc.want {
			t.Fatalf("error %v: expected %d, got %d", tc.err, tc.want, rr.Code)
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	handler := newTestHandler(stubMemberStore{}, stubExpenseStore{}, stubSettlementStore{}, stubAgreementStore{}, stubService{})
	router := handler.Routes()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}
