package handlers

import (
	"context"

	"hati/internal/ledger"
	"hati/internal/store"
)

type MemberStore interface {
	CreateUser(ctx context.Context, tx store.Execer, id, name, email, passwordHash string) error
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, userID string) (store.User, error)
	CreateTeam(ctx context.Context, tx store.Execer, id, name, createdBy string) error
	GetTeam(ctx context.Context, teamID string) (store.Team, error)
	AddMember(ctx context.Context, tx store.Execer, teamID, userID string) error
	RemoveMember(ctx context.Context, tx store.Execer, teamID, userID string) (int64, error)
	ListMembers(ctx context.Context, teamID string) ([]store.Member, error)
	IsMember(ctx context.Context, teamID, userID string) (bool, error)
	ListTeamsForUser(ctx context.Context, userID string) ([]store.Team, error)
}

type ExpenseStore interface {
	GetByID(ctx context.Context, expenseID string) (store.Expense, error)
	ListByTeam(ctx context.Context, teamID string, limit, offset int) ([]store.Expense, error)
}

type SettlementStore interface {
	ListMine(ctx context.Context, userID string) ([]store.Settlement, error)
	ListByExpense(ctx context.Context, expenseID string) ([]store.Settlement, error)
}

type AgreementStore interface {
	ListForMember(ctx context.Context, userID string) ([]store.Agreement, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

type LedgerService interface {
	RecordExpense(ctx context.Context, req ledger.RecordExpenseRequest) (store.Expense, []store.Settlement, error)
	CreateMonthlyExpense(ctx context.Context, req ledger.MonthlyExpenseRequest) (ledger.MonthlyExpenseResult, error)
	UpdateExpenseDescription(ctx context.Context, expenseID, actorID, description string) (store.Expense, error)
	DeleteExpense(ctx context.Context, expenseID, actorID string) error
	SubmitPayment(ctx context.Context, req ledger.SubmitPaymentRequest) (store.Settlement, error)
	SubmitBatchPayment(ctx context.Context, req ledger.SubmitBatchPaymentRequest) (ledger.BatchPaymentResult, error)
	VerifyPayment(ctx context.Context, req ledger.VerifyPaymentRequest) (store.Settlement, error)
	DetectMutualDebts(ctx context.Context, teamID, memberID string) ([]ledger.MutualDebt, error)
	ProposeAgreement(ctx context.Context, req ledger.ProposeAgreementRequest) (store.Agreement, error)
	RespondAgreement(ctx context.Context, req ledger.RespondAgreementRequest) (store.Agreement, error)
	TeamBalances(ctx context.Context, teamID, actorID string) (ledger.BalanceSummary, error)
}
