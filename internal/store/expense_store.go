package store

import (
	"context"
	"time"
)

type ExpenseStore struct {
	db DB
}

type Expense struct {
	ID          string     `db:"id"`
	TeamID      string     `db:"team_id"`
	PaidBy      string     `db:"paid_by"`
	AmountMinor int64      `db:"amount_minor"`
	Description string     `db:"description"`
	Category    string     `db:"category"`
	IsMonthly   bool       `db:"is_monthly"`
	MonthNumber *int       `db:"month_number"`
	TotalMonths *int       `db:"total_months"`
	Deadline    *time.Time `db:"deadline"`
	DeadlineDay *int       `db:"deadline_day"`
	CreatedAt   time.Time  `db:"created_at"`
	DeletedAt   *time.Time `db:"deleted_at"`
}

func NewExpenseStore(db DB) *ExpenseStore {
	return &ExpenseStore{db: db}
}

func (s *ExpenseStore) Create(ctx context.Context, tx Execer, e Expense) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO expenses (id, team_id, paid_by, amount_minor, description, category,
		                      is_monthly, month_number, total_months, deadline, deadline_day)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, e.ID, e.TeamID, e.PaidBy, e.AmountMinor, e.Description, e.Category,
		e.IsMonthly, e.MonthNumber, e.TotalMonths, e.Deadline, e.DeadlineDay)
	return err
}

func (s *ExpenseStore) GetByID(ctx context.Context, expenseID string) (Expense, error) {
	var row Expense
	err := s.db.GetContext(ctx, &row, `
		SELECT id, team_id, paid_by, amount_minor, description, category,
		       is_monthly, month_number, total_months, deadline, deadline_day,
		       created_at, deleted_at
		FROM expenses
		WHERE id = $1 AND deleted_at IS NULL
	`, expenseID)
	return row, err
}

func (s *ExpenseStore) GetForUpdate(ctx context.Context, tx Getter, expenseID string) (Expense, error) {
	var row Expense
	err := tx.GetContext(ctx, &row, `
		SELECT id, team_id, paid_by, amount_minor, description, category,
		       is_monthly, month_number, total_months, deadline, deadline_day,
		       created_at, deleted_at
		FROM expenses
		WHERE id = $1 AND deleted_at IS NULL
		FOR UPDATE
	`, expenseID)
	return row, err
}

func (s *ExpenseStore) ListByTeam(ctx context.Context, teamID string, limit, offset int) ([]Expense, error) {
	var rows []Expense
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, team_id, paid_by, amount_minor, description, category,
		       is_monthly, month_number, total_months, deadline, deadline_day,
		       created_at, deleted_at
		FROM expenses
		WHERE team_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, teamID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateDescription is the only permitted edit on an expense. Amount and
// payer are immutable once settlements have been derived from them.
func (s *ExpenseStore) UpdateDescription(ctx context.Context, tx Execer, expenseID, description string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE expenses
		SET description = $1
		WHERE id = $2 AND deleted_at IS NULL
	`, description, expenseID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *ExpenseStore) SoftDelete(ctx context.Context, tx Execer, expenseID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE expenses
		SET deleted_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`, expenseID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
