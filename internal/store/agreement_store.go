package store

import (
	"context"
	"time"

	"github.com/lib/pq"
)

const (
	AgreementPending  = "pending"
	AgreementAccepted = "accepted"
	AgreementRejected = "rejected"
)

type AgreementStore struct {
	db DB
}

type Agreement struct {
	ID                 string         `db:"id"`
	TeamID             string         `db:"team_id"`
	ProposerID         string         `db:"proposer_id"`
	ResponderID        string         `db:"responder_id"`
	ProposerOwesMinor  int64          `db:"proposer_owes_minor"`
	ResponderOwesMinor int64          `db:"responder_owes_minor"`
	SettlementIDs      pq.StringArray `db:"settlement_ids"`
	Status             string         `db:"status"`
	ProposedAt         time.Time      `db:"proposed_at"`
	RespondedAt        *time.Time     `db:"responded_at"`
}

func NewAgreementStore(db DB) *AgreementStore {
	return &AgreementStore{db: db}
}

func (s *AgreementStore) Create(ctx context.Context, tx Execer, a Agreement) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO settlement_agreements
			(id, team_id, proposer_id, responder_id, proposer_owes_minor, responder_owes_minor, settlement_ids, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending')
	`, a.ID, a.TeamID, a.ProposerID, a.ResponderID, a.ProposerOwesMinor, a.ResponderOwesMinor, a.SettlementIDs)
	return err
}

const agreementColumns = `
	id, team_id, proposer_id, responder_id, proposer_owes_minor,
	responder_owes_minor, settlement_ids, status, proposed_at, responded_at
`

func (s *AgreementStore) GetByID(ctx context.Context, agreementID string) (Agreement, error) {
	var row Agreement
	err := s.db.GetContext(ctx, &row, `
		SELECT `+agreementColumns+`
		FROM settlement_agreements
		WHERE id = $1
	`, agreementID)
	return row, err
}

func (s *AgreementStore) GetForUpdate(ctx context.Context, tx Getter, agreementID string) (Agreement, error) {
	var row Agreement
	err := tx.GetContext(ctx, &row, `
		SELECT `+agreementColumns+`
		FROM settlement_agreements
		WHERE id = $1
		FOR UPDATE
	`, agreementID)
	return row, err
}

// MarkResponded finalizes a pending agreement. The status guard makes
// concurrent responses first-committer-wins.
func (s *AgreementStore) MarkResponded(ctx context.Context, tx Execer, agreementID, status string, respondedAt time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE settlement_agreements
		SET status = $1, responded_at = $2
		WHERE id = $3 AND status = 'pending'
	`, status, respondedAt, agreementID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *AgreementStore) ListForMember(ctx context.Context, userID string) ([]Agreement, error) {
	var rows []Agreement
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+agreementColumns+`
		FROM settlement_agreements
		WHERE proposer_id = $1 OR responder_id = $1
		ORDER BY proposed_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
