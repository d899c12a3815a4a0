package split

import "errors"

var ErrNoParticipants = errors.New("no participants to split among")

// Strategy divides an expense amount in minor units among n debtors.
// The returned shares must sum to exactly the input amount.
type Strategy interface {
	Split(amountMinor int64, n int) ([]int64, error)
}

// Equal divides the amount evenly and assigns the whole rounding
// remainder to the first debtor, which is the debtor with the lowest
// member id by convention. Callers pass debtors pre-sorted so the
// remainder assignment is deterministic.
type Equal struct{}

func (Equal) Split(amountMinor int64, n int) ([]int64, error) {
	if n < 1 {
		return nil, ErrNoParticipants
	}
	base := amountMinor / int64(n)
	remainder := amountMinor % int64(n)
	shares := make([]int64, n)
	for i := range shares {
		shares[i] = base
	}
	shares[0] += remainder
	return shares, nil
}
