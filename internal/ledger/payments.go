package ledger

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"hati/internal/metrics"
	"hati/internal/store"

	"github.com/jmoiron/sqlx"
)

type SubmitPaymentRequest struct {
	SettlementID string
	ActorID      string
	Method       string
	ProofURI     *string
}

// SubmitPayment moves a pending settlement to unconfirmed: the debtor
// claims payment and the creditor must still verify it. Cash needs no
// proof; gcash requires a proof URI.
func (s *Service) SubmitPayment(ctx context.Context, req SubmitPaymentRequest) (store.Settlement, error) {
	proof, err := validatePaymentMethod(req.Method, req.ProofURI)
	if err != nil {
		return store.Settlement{}, err
	}

	var settlement store.Settlement
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		settlement, err = s.settlements.GetForUpdate(ctx, tx, req.SettlementID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if settlement.OwedBy != req.ActorID {
			return ErrForbidden
		}
		if settlement.Status != store.StatusPending {
			return ErrInvalidState
		}
		rows, err := s.settlements.MarkUnconfirmed(ctx, tx, req.SettlementID, req.Method, proof)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrStaleData
		}
		settlement.Status = store.StatusUnconfirmed
		settlement.PaymentMethod = &req.Method
		settlement.ProofURI = proof
		return s.audit.Log(ctx, tx, req.ActorID, "submit_payment", "settlement", req.SettlementID, auditData(map[string]any{
			"method": req.Method,
		}))
	})
	if err != nil {
		return store.Settlement{}, err
	}

	metrics.SettlementTransitions.WithLabelValues(store.StatusUnconfirmed).Inc()
	s.afterCommit(ctx, settlement.TeamID, settlement)
	return settlement, nil
}

type SubmitBatchPaymentRequest struct {
	SettlementIDs []string
	ActorID       string
	Method        string
	ProofURI      *string
}

type SkippedSettlement struct {
	SettlementID string `json:"settlement_id"`
	Reason       string `json:"reason"`
}

type BatchPaymentResult struct {
	Succeeded []store.Settlement
	Skipped   []SkippedSettlement
}

// SubmitBatchPayment submits several settlements in one transaction.
// Each settlement's eligibility is checked independently: ineligible ids
// are reported in Skipped rather than failing the batch, and eligible
// ones all transition or none do.
func (s *Service) SubmitBatchPayment(ctx context.Context, req SubmitBatchPaymentRequest) (BatchPaymentResult, error) {
	proof, err := validatePaymentMethod(req.Method, req.ProofURI)
	if err != nil {
		return BatchPaymentResult{}, err
	}
	if len(req.SettlementIDs) == 0 {
		return BatchPaymentResult{}, validationf("settlement_ids must not be empty")
	}

	var result BatchPaymentResult
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		result = BatchPaymentResult{}
		locked, err := s.settlements.ListForUpdate(ctx, tx, req.SettlementIDs)
		if err != nil {
			return err
		}
		byID := make(map[string]store.Settlement, len(locked))
		for _, settlement := range locked {
			byID[settlement.ID] = settlement
		}
		seen := make(map[string]bool, len(req.SettlementIDs))
		for _, id := range req.SettlementIDs {
			if seen[id] {
				result.Skipped = append(result.Skipped, SkippedSettlement{SettlementID: id, Reason: "duplicate"})
				continue
			}
			seen[id] = true
			settlement, ok := byID[id]
			if !ok {
				result.Skipped = append(result.Skipped, SkippedSettlement{SettlementID: id, Reason: "not found"})
				continue
			}
			if settlement.OwedBy != req.ActorID {
				result.Skipped = append(result.Skipped, SkippedSettlement{SettlementID: id, Reason: "not the debtor"})
				continue
			}
			if settlement.Status != store.StatusPending {
				result.Skipped = append(result.Skipped, SkippedSettlement{SettlementID: id, Reason: "not pending"})
				continue
			}
			rows, err := s.settlements.MarkUnconfirmed(ctx, tx, id, req.Method, proof)
			if err != nil {
				return err
			}
			if rows == 0 {
				return ErrStaleData
			}
			settlement.Status = store.StatusUnconfirmed
			settlement.PaymentMethod = &req.Method
			settlement.ProofURI = proof
			result.Succeeded = append(result.Succeeded, settlement)
		}
		if len(result.Succeeded) == 0 {
			return nil
		}
		ids := make([]string, len(result.Succeeded))
		for i, settlement := range result.Succeeded {
			ids[i] = settlement.ID
		}
		return s.audit.Log(ctx, tx, req.ActorID, "submit_batch_payment", "settlement", strings.Join(ids, ","), auditData(map[string]any{
			"method":  req.Method,
			"count":   len(ids),
			"skipped": len(result.Skipped),
		}))
	})
	if err != nil {
		return BatchPaymentResult{}, err
	}

	byTeam := make(map[string][]store.Settlement)
	for _, settlement := range result.Succeeded {
		metrics.SettlementTransitions.WithLabelValues(store.StatusUnconfirmed).Inc()
		byTeam[settlement.TeamID] = append(byTeam[settlement.TeamID], settlement)
	}
	for teamID, settlements := range byTeam {
		s.afterCommit(ctx, teamID, settlements...)
	}
	return result, nil
}

type VerifyPaymentRequest struct {
	SettlementID string
	ActorID      string
	Accept       bool
}

// VerifyPayment is the creditor's half of the handshake. Accepting an
// unconfirmed settlement closes it; rejecting returns it to pending with
// the claimed method and proof cleared so the debtor resubmits. Two
// concurrent verifies race on the status guard and exactly one wins.
func (s *Service) VerifyPayment(ctx context.Context, req VerifyPaymentRequest) (store.Settlement, error) {
	var settlement store.Settlement
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		settlement, err = s.settlements.GetForUpdate(ctx, tx, req.SettlementID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if settlement.OwedTo != req.ActorID {
			return ErrForbidden
		}
		if settlement.Status != store.StatusUnconfirmed {
			return ErrInvalidState
		}
		if req.Accept {
			paidAt := s.now()
			rows, err := s.settlements.MarkPaid(ctx, tx, req.SettlementID, paidAt)
			if err != nil {
				return err
			}
			if rows == 0 {
				return ErrStaleData
			}
			settlement.Status = store.StatusPaid
			settlement.PaidAt = &paidAt
		} else {
			rows, err := s.settlements.RejectToPending(ctx, tx, req.SettlementID)
			if err != nil {
				return err
			}
			if rows == 0 {
				return ErrStaleData
			}
			settlement.Status = store.StatusPending
			settlement.PaymentMethod = nil
			settlement.ProofURI = nil
		}
		return s.audit.Log(ctx, tx, req.ActorID, "verify_payment", "settlement", req.SettlementID, auditData(map[string]any{
			"accepted": req.Accept,
		}))
	})
	if err != nil {
		return store.Settlement{}, err
	}

	metrics.SettlementTransitions.WithLabelValues(settlement.Status).Inc()
	s.afterCommit(ctx, settlement.TeamID, settlement)
	return settlement, nil
}

func validatePaymentMethod(method string, proofURI *string) (*string, error) {
	switch method {
	case store.MethodCash:
		// Cash carries no proof even if one was sent.
		return nil, nil
	case store.MethodGCash:
		if proofURI == nil || strings.TrimSpace(*proofURI) == "" {
			return nil, validationf("method %q requires a proof URI", method)
		}
		trimmed := strings.TrimSpace(*proofURI)
		return &trimmed, nil
	default:
		return nil, validationf("unknown payment method %q", method)
	}
}
