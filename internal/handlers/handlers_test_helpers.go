package handlers

import (
	"context"
	"testing"
	"time"

	"hati/internal/auth"
	"hati/internal/config"
	"hati/internal/ledger"
	"hati/internal/store"
	"hati/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

type fakeTxRunner struct {
	withTxFn func(ctx context.Context, fn func(*sqlx.Tx) error) error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.withTxFn != nil {
		return f.withTxFn(ctx, fn)
	}
	return fn(nil)
}

type stubMemberStore struct {
	createUserFn       func(ctx context.Context, tx store.Execer, id, name, email, passwordHash string) error
	getUserByEmailFn   func(ctx context.Context, email string) (store.User, error)
	getUserByIDFn      func(ctx context.Context, userID string) (store.User, error)
	createTeamFn       func(ctx context.Context, tx store.Execer, id, name, createdBy string) error
	getTeamFn          func(ctx context.Context, teamID string) (store.Team, error)
	addMemberFn        func(ctx context.Context, tx store.Execer, teamID, userID string) error
	removeMemberFn     func(ctx context.Context, tx store.Execer, teamID, userID string) (int64, error)
	listMembersFn      func(ctx context.Context, teamID string) ([]store.Member, error)
	isMemberFn         func(ctx context.Context, teamID, userID string) (bool, error)
	listTeamsForUserFn func(ctx context.Context, userID string) ([]store.Team, error)
}

func (s stubMemberStore) CreateUser(ctx context.Context, tx store.Execer, id, name, email, passwordHash string) error {
	if s.createUserFn == nil {
		return nil
	}
	return s.createUserFn(ctx, tx, id, name, email, passwordHash)
}

func (s stubMemberStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if s.getUserByEmailFn == nil {
		return store.User{}, nil
	}
	return s.getUserByEmailFn(ctx, email)
}

func (s stubMemberStore) GetUserByID(ctx context.Context, userID string) (store.User, error) {
	if s.getUserByIDFn == nil {
		return store.User{}, nil
	}
	return s.getUserByIDFn(ctx, userID)
}

func (s stubMemberStore) CreateTeam(ctx context.Context, tx store.Execer, id, name, createdBy string) error {
	if s.createTeamFn == nil {
		return nil
	}
	return s.createTeamFn(ctx, tx, id, name, createdBy)
}

func (s stubMemberStore) GetTeam(ctx context.Context, teamID string) (store.Team, error) {
	if s.getTeamFn == nil {
		return store.Team{}, nil
	}
	return s.getTeamFn(ctx, teamID)
}

func (s stubMemberStore) AddMember(ctx context.Context, tx store.Execer, teamID, userID string) error {
	if s.addMemberFn == nil {
		return nil
	}
	return s.addMemberFn(ctx, tx, teamID, userID)
}

func (s stubMemberStore) RemoveMember(ctx context.Context, tx store.Execer, teamID, userID string) (int64, error) {
	if s.removeMemberFn == nil {
		return 1, nil
	}
	return s.removeMemberFn(ctx, tx, teamID, userID)
}

func (s stubMemberStore) ListMembers(ctx context.Context, teamID string) ([]store.Member, error) {
	if s.listMembersFn == nil {
		return nil, nil
	}
	return s.listMembersFn(ctx, teamID)
}

func (s stubMemberStore) IsMember(ctx context.Context, teamID, userID string) (bool, error) {
	if s.isMemberFn == nil {
		return true, nil
	}
	return s.isMemberFn(ctx, teamID, userID)
}

func (s stubMemberStore) ListTeamsForUser(ctx context.Context, userID string) ([]store.Team, error) {
	if s.listTeamsForUserFn == nil {
		return nil, nil
	}
	return s.listTeamsForUserFn(ctx, userID)
}

type stubExpenseStore struct {
	getByIDFn    func(ctx context.Context, expenseID string) (store.Expense, error)
	listByTeamFn func(ctx context.Context, teamID string, limit, offset int) ([]store.Expense, error)
}

func (s stubExpenseStore) GetByID(ctx context.Context, expenseID string) (store.Expense, error) {
	if s.getByIDFn == nil {
		return store.Expense{}, nil
	}
	return s.getByIDFn(ctx, expenseID)
}

func (s stubExpenseStore) ListByTeam(ctx context.Context, teamID string, limit, offset int) ([]store.Expense, error) {
	if s.listByTeamFn == nil {
		return nil, nil
	}
	return s.listByTeamFn(ctx, teamID, limit, offset)
}

type stubSettlementStore struct {
	listMineFn      func(ctx context.Context, userID string) ([]store.Settlement, error)
	listByExpenseFn func(ctx context.Context, expenseID string) ([]store.Settlement, error)
}

func (s stubSettlementStore) ListMine(ctx context.Context, userID string) ([]store.Settlement, error) {
	if s.listMineFn == nil {
		return nil, nil
	}
	return s.listMineFn(ctx, userID)
}

func (s stubSettlementStore) ListByExpense(ctx context.Context, expenseID string) ([]store.Settlement, error) {
	if s.listByExpenseFn == nil {
		return nil, nil
	}
	return s.listByExpenseFn(ctx, expenseID)
}

type stubAgreementStore struct {
	listForMemberFn func(ctx context.Context, userID string) ([]store.Agreement, error)
}

func (s stubAgreementStore) ListForMember(ctx context.Context, userID string) ([]store.Agreement, error) {
	if s.listForMemberFn == nil {
		return nil, nil
	}
	return s.listForMemberFn(ctx, userID)
}

type stubAuditStore struct {
	logFn func(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

func (s stubAuditStore) Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error {
	if s.logFn == nil {
		return nil
	}
	return s.logFn(ctx, tx, actorID, action, entityType, entityID, data)
}

type stubService struct {
	recordExpenseFn     func(ctx context.Context, req ledger.RecordExpenseRequest) (store.Expense, []store.Settlement, error)
	createMonthlyFn     func(ctx context.Context, req ledger.MonthlyExpenseRequest) (ledger.MonthlyExpenseResult, error)
	updateDescriptionFn func(ctx context.Context, expenseID, actorID, description string) (store.Expense, error)
	deleteExpenseFn     func(ctx context.Context, expenseID, actorID string) error
	submitPaymentFn     func(ctx context.Context, req ledger.SubmitPaymentRequest) (store.Settlement, error)
	submitBatchFn       func(ctx context.Context, req ledger.SubmitBatchPaymentRequest) (ledger.BatchPaymentResult, error)
	verifyPaymentFn     func(ctx context.Context, req ledger.VerifyPaymentRequest) (store.Settlement, error)
	detectMutualDebtsFn func(ctx context.Context, teamID, memberID string) ([]ledger.MutualDebt, error)
	proposeAgreementFn  func(ctx context.Context, req ledger.ProposeAgreementRequest) (store.Agreement, error)
	respondAgreementFn  func(ctx context.Context, req ledger.RespondAgreementRequest) (store.Agreement, error)
	teamBalancesFn      func(ctx context.Context, teamID, actorID string) (ledger.BalanceSummary, error)
}

func (s stubService) RecordExpense(ctx context.Context, req ledger.RecordExpenseRequest) (store.Expense, []store.Settlement, error) {
	if s.recordExpenseFn == nil {
		return store.Expense{}, nil, nil
	}
	return s.recordExpenseFn(ctx, req)
}

func (s stubService) CreateMonthlyExpense(ctx context.Context, req ledger.MonthlyExpenseRequest) (ledger.MonthlyExpenseResult, error) {
	if s.createMonthlyFn == nil {
		return ledger.MonthlyExpenseResult{}, nil
	}
	return s.createMonthlyFn(ctx, req)
}

func (s stubService) UpdateExpenseDescription(ctx context.Context, expenseID, actorID, description string) (store.Expense, error) {
	if s.updateDescriptionFn == nil {
		return store.Expense{}, nil
	}
	return s.updateDescriptionFn(ctx, expenseID, actorID, description)
}

func (s stubService) DeleteExpense(ctx context.Context, expenseID, actorID string) error {
	if s.deleteExpenseFn == nil {
		return nil
	}
	return s.deleteExpenseFn(ctx, expenseID, actorID)
}

func (s stubService) SubmitPayment(ctx context.Context, req ledger.SubmitPaymentRequest) (store.Settlement, error) {
	if s.submitPaymentFn == nil {
		return store.Settlement{}, nil
	}
	return s.submitPaymentFn(ctx, req)
}

func (s stubService) SubmitBatchPayment(ctx context.Context, req ledger.SubmitBatchPaymentRequest) (ledger.BatchPaymentResult, error) {
	if s.submitBatchFn == nil {
		return ledger.BatchPaymentResult{}, nil
	}
	return s.submitBatchFn(ctx, req)
}

func (s stubService) VerifyPayment(ctx context.Context, req ledger.VerifyPaymentRequest) (store.Settlement, error) {
	if s.verifyPaymentFn == nil {
		return store.Settlement{}, nil
	}
	return s.verifyPaymentFn(ctx, req)
}

func (s stubService) DetectMutualDebts(ctx context.Context, teamID, memberID string) ([]ledger.MutualDebt, error) {
	if s.detectMutualDebtsFn == nil {
		return nil, nil
	}
	return s.detectMutualDebtsFn(ctx, teamID, memberID)
}

func (s stubService) ProposeAgreement(ctx context.Context, req ledger.ProposeAgreementRequest) (store.Agreement, error) {
	if s.proposeAgreementFn == nil {
		return store.Agreement{}, nil
	}
	return s.proposeAgreementFn(ctx, req)
}

func (s stubService) RespondAgreement(ctx context.Context, req ledger.RespondAgreementRequest) (store.Agreement, error) {
	if s.respondAgreementFn == nil {
		return store.Agreement{}, nil
	}
	return s.respondAgreementFn(ctx, req)
}

func (s stubService) TeamBalances(ctx context.Context, teamID, actorID string) (ledger.BalanceSummary, error) {
	if s.teamBalancesFn == nil {
		return ledger.BalanceSummary{}, nil
	}
	return s.teamBalancesFn(ctx, teamID, actorID)
}

func newTestHandler(members MemberStore, expenses ExpenseStore, settlements SettlementStore, agreements AgreementStore, service LedgerService) *Handler {
	cfg := config.Config{JWTSecret: "test-secret", TokenTTL: time.Minute, AllowedOrigins: "*"}
	return New(fakeTxRunner{}, cfg, zerolog.Nop(), members, expenses, settlements, agreements, stubAuditStore{}, service, websocket.NewHub())
}

func bearerToken(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.GenerateToken("test-secret", userID, time.Minute)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return token
}
