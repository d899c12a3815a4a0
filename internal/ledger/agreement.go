package ledger

import (
	"context"
	"database/sql"
	"errors"

	"hati/internal/metrics"
	"hati/internal/money"
	"hati/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type ProposeAgreementRequest struct {
	TeamID             string
	ProposerID         string
	ResponderID        string
	ProposerOwesMinor  int64
	ResponderOwesMinor int64
	SettlementIDs      []string
}

// ProposeAgreement opens the bilateral netting handshake. The referenced
// settlements are locked and re-validated against the detector's
// snapshot: all must still be open, belong to this team, and run between
// exactly the two parties, and the passed sums must match what the rows
// actually add up to. Any drift since detection is a stale-data error;
// nothing about the settlements changes at proposal time.
func (s *Service) ProposeAgreement(ctx context.Context, req ProposeAgreementRequest) (store.Agreement, error) {
	if req.ProposerID == req.ResponderID {
		return store.Agreement{}, validationf("cannot propose an agreement with yourself")
	}
	if len(req.SettlementIDs) == 0 {
		return store.Agreement{}, validationf("settlement_ids must not be empty")
	}
	if req.ProposerOwesMinor < 0 || req.ResponderOwesMinor < 0 {
		return store.Agreement{}, validationf("owed amounts must not be negative")
	}

	settlementIDs := uniqueIDs(req.SettlementIDs)
	agreement := store.Agreement{
		ID:                 uuid.NewString(),
		TeamID:             req.TeamID,
		ProposerID:         req.ProposerID,
		ResponderID:        req.ResponderID,
		ProposerOwesMinor:  req.ProposerOwesMinor,
		ResponderOwesMinor: req.ResponderOwesMinor,
		SettlementIDs:      settlementIDs,
		Status:             store.AgreementPending,
	}
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		locked, err := s.settlements.ListForUpdate(ctx, tx, settlementIDs)
		if err != nil {
			return err
		}
		if len(locked) != len(settlementIDs) {
			return ErrStaleData
		}
		var proposerOwes, responderOwes int64
		for _, settlement := range locked {
			if !settlement.Open() || settlement.TeamID != req.TeamID {
				return ErrStaleData
			}
			switch {
			case settlement.OwedBy == req.ProposerID && settlement.OwedTo == req.ResponderID:
				proposerOwes += settlement.AmountMinor
			case settlement.OwedBy == req.ResponderID && settlement.OwedTo == req.ProposerID:
				responderOwes += settlement.AmountMinor
			default:
				return ErrStaleData
			}
		}
		if proposerOwes != req.ProposerOwesMinor || responderOwes != req.ResponderOwesMinor {
			return ErrStaleData
		}
		if err := s.agreements.Create(ctx, tx, agreement); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, req.ProposerID, "propose_agreement", "agreement", agreement.ID, auditData(map[string]any{
			"proposer_owes":  money.FormatMinor(proposerOwes),
			"responder_owes": money.FormatMinor(responderOwes),
			"settlements":    len(locked),
		}))
	})
	if err != nil {
		return store.Agreement{}, err
	}
	return agreement, nil
}

type RespondAgreementRequest struct {
	AgreementID string
	ActorID     string
	Accept      bool
}

// RespondAgreement terminates a pending agreement. Acceptance re-checks
// every referenced settlement under row locks; if any was closed since
// proposal the whole acceptance fails with ErrAgreementStale, zero
// settlements change, and the agreement stays pending for the proposer
// to re-propose. On success all referenced settlements go straight to
// paid with method "settled" and no cash moves.
func (s *Service) RespondAgreement(ctx context.Context, req RespondAgreementRequest) (store.Agreement, error) {
	var agreement store.Agreement
	var closed []store.Settlement
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		closed = nil
		var err error
		agreement, err = s.agreements.GetForUpdate(ctx, tx, req.AgreementID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if agreement.ResponderID != req.ActorID {
			return ErrForbidden
		}
		if agreement.Status != store.AgreementPending {
			return ErrInvalidState
		}
		respondedAt := s.now()

		if !req.Accept {
			rows, err := s.agreements.MarkResponded(ctx, tx, req.AgreementID, store.AgreementRejected, respondedAt)
			if err != nil {
				return err
			}
			if rows == 0 {
				return ErrStaleData
			}
			agreement.Status = store.AgreementRejected
			agreement.RespondedAt = &respondedAt
			return s.audit.Log(ctx, tx, req.ActorID, "reject_agreement", "agreement", req.AgreementID, auditData(nil))
		}

		locked, err := s.settlements.ListForUpdate(ctx, tx, agreement.SettlementIDs)
		if err != nil {
			return err
		}
		if len(locked) != len(agreement.SettlementIDs) {
			return ErrAgreementStale
		}
		var total int64
		for _, settlement := range locked {
			if !settlement.Open() {
				return ErrAgreementStale
			}
			total += settlement.AmountMinor
		}
		// The closed value must equal the value recorded at proposal
		// time; any drift in between means the snapshot went stale.
		if total != agreement.ProposerOwesMinor+agreement.ResponderOwesMinor {
			return ErrAgreementStale
		}
		for _, settlement := range locked {
			rows, err := s.settlements.MarkPaidByAgreement(ctx, tx, settlement.ID, respondedAt)
			if err != nil {
				return err
			}
			if rows == 0 {
				return ErrAgreementStale
			}
			settlement.Status = store.StatusPaid
			settlement.PaidAt = &respondedAt
			closed = append(closed, settlement)
		}
		rows, err := s.agreements.MarkResponded(ctx, tx, req.AgreementID, store.AgreementAccepted, respondedAt)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrStaleData
		}
		agreement.Status = store.AgreementAccepted
		agreement.RespondedAt = &respondedAt
		return s.audit.Log(ctx, tx, req.ActorID, "accept_agreement", "agreement", req.AgreementID, auditData(map[string]any{
			"settlements": len(closed),
			"net_value":   money.FormatMinor(total),
		}))
	})
	if err != nil {
		return store.Agreement{}, err
	}

	if agreement.Status == store.AgreementAccepted {
		metrics.AgreementsResolved.WithLabelValues(store.AgreementAccepted).Inc()
		for range closed {
			metrics.SettlementTransitions.WithLabelValues(store.StatusPaid).Inc()
		}
		s.afterCommit(ctx, agreement.TeamID, closed...)
	} else {
		metrics.AgreementsResolved.WithLabelValues(store.AgreementRejected).Inc()
	}
	return agreement, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	unique := ids[:0:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	return unique
}
