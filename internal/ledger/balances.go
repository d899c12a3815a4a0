package ledger

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"hati/internal/cache"
	"hati/internal/money"
)

const balancesTTL = 30 * time.Second

// PairBalance is the net open exposure between two members: From owes To
// the listed amount after offsetting opposite-direction settlements.
type PairBalance struct {
	From        string `json:"from"`
	To          string `json:"to"`
	AmountMinor int64  `json:"amount_minor"`
	Amount      string `json:"amount"`
}

type BalanceSummary struct {
	TeamID    string        `json:"team_id"`
	Pairs     []PairBalance `json:"pairs"`
	OpenMinor int64         `json:"open_minor"`
}

// TeamBalances aggregates the team's open settlements into net pairwise
// balances. The result is served through the cache with a short TTL;
// mutations invalidate it, and a stale hit can only ever affect this
// derived view, never settlement state.
func (s *Service) TeamBalances(ctx context.Context, teamID, actorID string) (BalanceSummary, error) {
	isMember, err := s.members.IsMember(ctx, teamID, actorID)
	if err != nil {
		return BalanceSummary{}, err
	}
	if !isMember {
		return BalanceSummary{}, ErrForbidden
	}

	key := cache.TeamBalancesKey(teamID)
	if cached, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var summary BalanceSummary
		if err := json.Unmarshal(cached, &summary); err == nil {
			return summary, nil
		}
	}

	open, err := s.settlements.ListOpenByTeam(ctx, teamID)
	if err != nil {
		return BalanceSummary{}, err
	}

	// Net each unordered pair: debt in one direction offsets the other.
	type pairKey struct{ low, high string }
	net := make(map[pairKey]int64)
	var totalOpen int64
	for _, settlement := range open {
		totalOpen += settlement.AmountMinor
		pk := pairKey{low: settlement.OwedBy, high: settlement.OwedTo}
		sign := int64(1)
		if pk.low > pk.high {
			pk.low, pk.high = pk.high, pk.low
			sign = -1
		}
		net[pk] += sign * settlement.AmountMinor
	}

	summary := BalanceSummary{TeamID: teamID, OpenMinor: totalOpen}
	for pk, amount := range net {
		if amount == 0 {
			continue
		}
		pair := PairBalance{From: pk.low, To: pk.high, AmountMinor: amount}
		if amount < 0 {
			pair = PairBalance{From: pk.high, To: pk.low, AmountMinor: -amount}
		}
		pair.Amount = money.FormatMinor(pair.AmountMinor)
		summary.Pairs = append(summary.Pairs, pair)
	}
	sort.Slice(summary.Pairs, func(i, j int) bool {
		if summary.Pairs[i].From != summary.Pairs[j].From {
			return summary.Pairs[i].From < summary.Pairs[j].From
		}
		return summary.Pairs[i].To < summary.Pairs[j].To
	})

	if payload, err := json.Marshal(summary); err == nil {
		_ = s.cache.Set(ctx, key, payload, balancesTTL)
	}
	return summary, nil
}
