package ledger

import (
	"context"
	"sort"
)

// MutualDebt is a candidate netting opportunity between the caller and
// one counterpart: both sides owe the other through open settlements.
type MutualDebt struct {
	CounterpartID      string   `json:"counterpart_id"`
	IOweMinor          int64    `json:"i_owe_minor"`
	TheyOweMinor       int64    `json:"they_owe_minor"`
	MySettlementIDs    []string `json:"my_settlement_ids"`
	TheirSettlementIDs []string `json:"their_settlement_ids"`
}

// DetectMutualDebts scans the member's open settlements in both
// directions and reports each counterpart with nonzero exposure both
// ways. It is a pure read; proposing an agreement re-validates the
// snapshot under locks.
func (s *Service) DetectMutualDebts(ctx context.Context, teamID, memberID string) ([]MutualDebt, error) {
	isMember, err := s.members.IsMember(ctx, teamID, memberID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrForbidden
	}

	open, err := s.settlements.ListOpenInvolving(ctx, teamID, memberID)
	if err != nil {
		return nil, err
	}

	byCounterpart := make(map[string]*MutualDebt)
	debt := func(counterpartID string) *MutualDebt {
		if d, ok := byCounterpart[counterpartID]; ok {
			return d
		}
		d := &MutualDebt{CounterpartID: counterpartID}
		byCounterpart[counterpartID] = d
		return d
	}
	for _, settlement := range open {
		if settlement.OwedBy == memberID {
			d := debt(settlement.OwedTo)
			d.IOweMinor += settlement.AmountMinor
			d.MySettlementIDs = append(d.MySettlementIDs, settlement.ID)
		} else {
			d := debt(settlement.OwedBy)
			d.TheyOweMinor += settlement.AmountMinor
			d.TheirSettlementIDs = append(d.TheirSettlementIDs, settlement.ID)
		}
	}

	mutual := make([]MutualDebt, 0, len(byCounterpart))
	for _, d := range byCounterpart {
		if d.IOweMinor > 0 && d.TheyOweMinor > 0 {
			mutual = append(mutual, *d)
		}
	}
	sort.Slice(mutual, func(i, j int) bool {
		return mutual[i].CounterpartID < mutual[j].CounterpartID
	})
	return mutual, nil
}
