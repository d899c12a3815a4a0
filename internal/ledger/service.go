// Package ledger implements the settlement ledger: converting expenses
// into per-member debts, walking each debt through payment submission and
// verification, netting mutual debts via bilateral agreements, and
// amortizing lump sums into monthly installment plans.
//
// Every mutating operation runs in a single serializable transaction.
// Money is conserved to the centavo: the settlements derived from an
// expense always sum to the expense amount, and an accepted agreement
// closes exactly the value recorded at proposal time.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"hati/internal/cache"
	"hati/internal/db"
	"hati/internal/metrics"
	"hati/internal/money"
	"hati/internal/split"
	"hati/internal/store"
	"hati/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type MemberDirectory interface {
	ActiveMemberIDs(ctx context.Context, tx store.Selecter, teamID string) ([]string, error)
	IsMember(ctx context.Context, teamID, userID string) (bool, error)
}

type ExpenseStore interface {
	Create(ctx context.Context, tx store.Execer, e store.Expense) error
	GetByID(ctx context.Context, expenseID string) (store.Expense, error)
	GetForUpdate(ctx context.Context, tx store.Getter, expenseID string) (store.Expense, error)
	UpdateDescription(ctx context.Context, tx store.Execer, expenseID, description string) (int64, error)
	SoftDelete(ctx context.Context, tx store.Execer, expenseID string) (int64, error)
}

type SettlementStore interface {
	InsertBatch(ctx context.Context, tx store.Execer, rows []store.Settlement) error
	GetForUpdate(ctx context.Context, tx store.Getter, settlementID string) (store.Settlement, error)
	ListForUpdate(ctx context.Context, tx store.Selecter, settlementIDs []string) ([]store.Settlement, error)
	ListOpenInvolving(ctx context.Context, teamID, memberID string) ([]store.Settlement, error)
	ListOpenByTeam(ctx context.Context, teamID string) ([]store.Settlement, error)
	MarkUnconfirmed(ctx context.Context, tx store.Execer, settlementID, method string, proofURI *string) (int64, error)
	MarkPaid(ctx context.Context, tx store.Execer, settlementID string, paidAt time.Time) (int64, error)
	RejectToPending(ctx context.Context, tx store.Execer, settlementID string) (int64, error)
	MarkPaidByAgreement(ctx context.Context, tx store.Execer, settlementID string, paidAt time.Time) (int64, error)
	SoftDeleteByExpense(ctx context.Context, tx store.Execer, expenseID string) (int64, error)
}

type AgreementStore interface {
	Create(ctx context.Context, tx store.Execer, a store.Agreement) error
	GetForUpdate(ctx context.Context, tx store.Getter, agreementID string) (store.Agreement, error)
	MarkResponded(ctx context.Context, tx store.Execer, agreementID, status string, respondedAt time.Time) (int64, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

type Notifier interface {
	BroadcastSettlement(userID string, update websocket.SettlementUpdate)
}

type Service struct {
	txRunner    db.TxRunner
	members     MemberDirectory
	expenses    ExpenseStore
	settlements SettlementStore
	agreements  AgreementStore
	audit       AuditStore
	splitter    split.Strategy
	cache       cache.Cache
	notifier    Notifier
	now         func() time.Time
}

func NewService(txRunner db.TxRunner, members MemberDirectory, expenses ExpenseStore, settlements SettlementStore, agreements AgreementStore, audit AuditStore, cacheClient cache.Cache, notifier Notifier) *Service {
	return &Service{
		txRunner:    txRunner,
		members:     members,
		expenses:    expenses,
		settlements: settlements,
		agreements:  agreements,
		audit:       audit,
		splitter:    split.Equal{},
		cache:       cacheClient,
		notifier:    notifier,
		now:         time.Now,
	}
}

type RecordExpenseRequest struct {
	TeamID      string
	PayerID     string
	AmountMinor int64
	Description string
	Category    string
}

// RecordExpense creates the expense and its settlements as one atomic
// unit. The amount splits equally among the other active members; the
// payer owes nothing. A team where the payer is the only member yields
// an expense with zero settlements.
func (s *Service) RecordExpense(ctx context.Context, req RecordExpenseRequest) (store.Expense, []store.Settlement, error) {
	if err := validateExpenseInput(req.AmountMinor, req.Description); err != nil {
		return store.Expense{}, nil, err
	}

	expense := store.Expense{
		ID:          uuid.NewString(),
		TeamID:      req.TeamID,
		PaidBy:      req.PayerID,
		AmountMinor: req.AmountMinor,
		Description: strings.TrimSpace(req.Description),
		Category:    normalizeCategory(req.Category),
	}
	var settlements []store.Settlement
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		settlements, err = s.createExpenseTx(ctx, tx, &expense)
		if err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, req.PayerID, "record_expense", "expense", expense.ID, auditData(map[string]any{
			"amount":      money.FormatMinor(expense.AmountMinor),
			"settlements": len(settlements),
		}))
	})
	if err != nil {
		return store.Expense{}, nil, err
	}

	metrics.ExpensesRecorded.Inc()
	s.afterCommit(ctx, req.TeamID, settlements...)
	return expense, settlements, nil
}

// createExpenseTx inserts one expense plus its derived settlements inside
// the caller's transaction. Shared by RecordExpense and the monthly plan
// amortizer.
func (s *Service) createExpenseTx(ctx context.Context, tx *sqlx.Tx, expense *store.Expense) ([]store.Settlement, error) {
	memberIDs, err := s.members.ActiveMemberIDs(ctx, tx, expense.TeamID)
	if err != nil {
		return nil, err
	}
	debtors := make([]string, 0, len(memberIDs))
	payerFound := false
	for _, id := range memberIDs {
		if id == expense.PaidBy {
			payerFound = true
			continue
		}
		debtors = append(debtors, id)
	}
	if !payerFound {
		return nil, ErrForbidden
	}
	if err := s.expenses.Create(ctx, tx, *expense); err != nil {
		return nil, err
	}
	if len(debtors) == 0 {
		return nil, nil
	}

	shares, err := s.splitter.Split(expense.AmountMinor, len(debtors))
	if err != nil {
		return nil, err
	}
	rows := make([]store.Settlement, len(debtors))
	for i, debtor := range debtors {
		rows[i] = store.Settlement{
			ID:          uuid.NewString(),
			ExpenseID:   expense.ID,
			TeamID:      expense.TeamID,
			OwedBy:      debtor,
			OwedTo:      expense.PaidBy,
			AmountMinor: shares[i],
			Status:      store.StatusPending,
		}
	}
	if err := s.settlements.InsertBatch(ctx, tx, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateExpenseDescription is the only edit an expense supports; amount
// and payer stay immutable so settlements never need re-deriving.
func (s *Service) UpdateExpenseDescription(ctx context.Context, expenseID, actorID, description string) (store.Expense, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return store.Expense{}, validationf("description must not be empty")
	}
	var expense store.Expense
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		expense, err = s.expenses.GetForUpdate(ctx, tx, expenseID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if expense.PaidBy != actorID {
			return ErrForbidden
		}
		rows, err := s.expenses.UpdateDescription(ctx, tx, expenseID, description)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrStaleData
		}
		expense.Description = description
		return s.audit.Log(ctx, tx, actorID, "update_expense", "expense", expenseID, auditData(nil))
	})
	if err != nil {
		return store.Expense{}, err
	}
	return expense, nil
}

// DeleteExpense tombstones the expense and cascades the tombstone to its
// settlements in the same transaction, so no open settlement can survive
// referencing a deleted expense.
func (s *Service) DeleteExpense(ctx context.Context, expenseID, actorID string) error {
	var teamID string
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		expense, err := s.expenses.GetForUpdate(ctx, tx, expenseID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if expense.PaidBy != actorID {
			return ErrForbidden
		}
		teamID = expense.TeamID
		rows, err := s.expenses.SoftDelete(ctx, tx, expenseID)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrStaleData
		}
		if _, err := s.settlements.SoftDeleteByExpense(ctx, tx, expenseID); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, actorID, "delete_expense", "expense", expenseID, auditData(nil))
	})
	if err != nil {
		return err
	}
	s.afterCommit(ctx, teamID)
	return nil
}

func validateExpenseInput(amountMinor int64, description string) error {
	if amountMinor <= 0 {
		return validationf("amount must be positive")
	}
	if strings.TrimSpace(description) == "" {
		return validationf("description must not be empty")
	}
	return nil
}

func normalizeCategory(category string) string {
	category = strings.TrimSpace(category)
	if category == "" {
		return "general"
	}
	return category
}

func auditData(fields map[string]any) string {
	if len(fields) == 0 {
		return "{}"
	}
	data, _ := json.Marshal(fields)
	return string(data)
}

// afterCommit performs the post-commit side effects: the team's cached
// balance aggregate is dropped and affected members get a push update.
// Neither affects correctness; both are best-effort.
func (s *Service) afterCommit(ctx context.Context, teamID string, changed ...store.Settlement) {
	_ = s.cache.Delete(ctx, cache.TeamBalancesKey(teamID))
	for _, settlement := range changed {
		update := websocket.SettlementUpdate{
			SettlementID: settlement.ID,
			TeamID:       settlement.TeamID,
			Status:       settlement.Status,
			Amount:       money.FormatMinor(settlement.AmountMinor),
		}
		s.notifier.BroadcastSettlement(settlement.OwedBy, update)
		s.notifier.BroadcastSettlement(settlement.OwedTo, update)
	}
}
