package store

import (
	"context"
	"time"

	"github.com/lib/pq"
)

// Settlement status lifecycle: pending -> unconfirmed -> paid, with
// unconfirmed -> pending on rejection. Paid is terminal.
const (
	StatusPending     = "pending"
	StatusUnconfirmed = "unconfirmed"
	StatusPaid        = "paid"
)

const (
	MethodCash  = "cash"
	MethodGCash = "gcash"
	// MethodSettled marks settlements closed by an accepted settlement
	// agreement, without a cash transfer.
	MethodSettled = "settled"
)

type SettlementStore struct {
	db DB
}

type Settlement struct {
	ID            string     `db:"id"`
	ExpenseID     string     `db:"expense_id"`
	TeamID        string     `db:"team_id"`
	OwedBy        string     `db:"owed_by"`
	OwedTo        string     `db:"owed_to"`
	AmountMinor   int64      `db:"amount_minor"`
	Status        string     `db:"status"`
	PaymentMethod *string    `db:"payment_method"`
	ProofURI      *string    `db:"proof_uri"`
	PaidAt        *time.Time `db:"paid_at"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
	DeletedAt     *time.Time `db:"deleted_at"`
}

// Open reports whether the settlement can still change hands.
func (s Settlement) Open() bool {
	return s.DeletedAt == nil && (s.Status == StatusPending || s.Status == StatusUnconfirmed)
}

func NewSettlementStore(db DB) *SettlementStore {
	return &SettlementStore{db: db}
}

func (s *SettlementStore) InsertBatch(ctx context.Context, tx Execer, rows []Settlement) error {
	query := `
		INSERT INTO settlements (id, expense_id, team_id, owed_by, owed_to, amount_minor, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, row := range rows {
		if _, err := tx.ExecContext(ctx, query,
			row.ID, row.ExpenseID, row.TeamID, row.OwedBy, row.OwedTo, row.AmountMinor, StatusPending); err != nil {
			return err
		}
	}
	return nil
}

const settlementColumns = `
	id, expense_id, team_id, owed_by, owed_to, amount_minor, status,
	payment_method, proof_uri, paid_at, created_at, updated_at, deleted_at
`

func (s *SettlementStore) GetByID(ctx context.Context, settlementID string) (Settlement, error) {
	var row Settlement
	err := s.db.GetContext(ctx, &row, `
		SELECT `+settlementColumns+`
		FROM settlements
		WHERE id = $1 AND deleted_at IS NULL
	`, settlementID)
	return row, err
}

func (s *SettlementStore) GetForUpdate(ctx context.Context, tx Getter, settlementID string) (Settlement, error) {
	var row Settlement
	err := tx.GetContext(ctx, &row, `
		SELECT `+settlementColumns+`
		FROM settlements
		WHERE id = $1 AND deleted_at IS NULL
		FOR UPDATE
	`, settlementID)
	return row, err
}

// ListForUpdate locks and returns the given settlements in a stable order.
// Missing or soft-deleted ids are simply absent from the result; callers
// compare lengths to detect them.
func (s *SettlementStore) ListForUpdate(ctx context.Context, tx Selecter, settlementIDs []string) ([]Settlement, error) {
	var rows []Settlement
	err := tx.SelectContext(ctx, &rows, `
		SELECT `+settlementColumns+`
		FROM settlements
		WHERE id = ANY($1) AND deleted_at IS NULL
		ORDER BY id
		FOR UPDATE
	`, pq.Array(settlementIDs))
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListOpenInvolving returns all open settlements in the team where the
// member is either debtor or creditor. Settlements whose parent expense
// has been soft-deleted are excluded by the cascade on deletion, not here.
func (s *SettlementStore) ListOpenInvolving(ctx context.Context, teamID, memberID string) ([]Settlement, error) {
	var rows []Settlement
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+settlementColumns+`
		FROM settlements
		WHERE team_id = $1
		  AND (owed_by = $2 OR owed_to = $2)
		  AND status IN ('pending', 'unconfirmed')
		  AND deleted_at IS NULL
		ORDER BY created_at, id
	`, teamID, memberID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *SettlementStore) ListMine(ctx context.Context, userID string) ([]Settlement, error) {
	var rows []Settlement
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+settlementColumns+`
		FROM settlements
		WHERE (owed_by = $1 OR owed_to = $1) AND deleted_at IS NULL
		ORDER BY created_at DESC, id
	`, userID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *SettlementStore) ListByExpense(ctx context.Context, expenseID string) ([]Settlement, error) {
	var rows []Settlement
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+settlementColumns+`
		FROM settlements
		WHERE expense_id = $1 AND deleted_at IS NULL
		ORDER BY owed_by
	`, expenseID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListOpenByTeam feeds the balances aggregate.
func (s *SettlementStore) ListOpenByTeam(ctx context.Context, teamID string) ([]Settlement, error) {
	var rows []Settlement
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+settlementColumns+`
		FROM settlements
		WHERE team_id = $1
		  AND status IN ('pending', 'unconfirmed')
		  AND deleted_at IS NULL
		ORDER BY created_at, id
	`, teamID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// The transition updates below are all guarded by the expected current
// status. A zero rows-affected result means another writer got there
// first; the service layer turns that into a stale-data error.

func (s *SettlementStore) MarkUnconfirmed(ctx context.Context, tx Execer, settlementID, method string, proofURI *string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE settlements
		SET status = 'unconfirmed', payment_method = $1, proof_uri = $2, updated_at = NOW()
		WHERE id = $3 AND status = 'pending' AND deleted_at IS NULL
	`, method, proofURI, settlementID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SettlementStore) MarkPaid(ctx context.Context, tx Execer, settlementID string, paidAt time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE settlements
		SET status = 'paid', paid_at = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'unconfirmed' AND deleted_at IS NULL
	`, paidAt, settlementID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SettlementStore) RejectToPending(ctx context.Context, tx Execer, settlementID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE settlements
		SET status = 'pending', payment_method = NULL, proof_uri = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'unconfirmed' AND deleted_at IS NULL
	`, settlementID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SettlementStore) MarkPaidByAgreement(ctx context.Context, tx Execer, settlementID string, paidAt time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE settlements
		SET status = 'paid', payment_method = 'settled', proof_uri = NULL, paid_at = $1, updated_at = NOW()
		WHERE id = $2 AND status IN ('pending', 'unconfirmed') AND deleted_at IS NULL
	`, paidAt, settlementID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SettlementStore) SoftDeleteByExpense(ctx context.Context, tx Execer, expenseID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE settlements
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE expense_id = $1 AND deleted_at IS NULL
	`, expenseID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
