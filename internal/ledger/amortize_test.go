package ledger

import (
	"context"
	"testing"
	"time"

	"hati/internal/cache"
	"hati/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmortizeInstallments(t *testing.T) {
	cases := []struct {
		total  int64
		months int
		want   []int64
	}{
		{12000, 12, []int64{1000, 1000, 1000, 1000, 1000, 1000, 1000, 1000, 1000, 1000, 1000, 1000}},
		{10000, 3, []int64{3334, 3334, 3332}},
		{100, 3, []int64{34, 34, 32}},
		{5000, 1, []int64{5000}},
		{7, 3, []int64{3, 3, 1}},
	}
	for _, tc := range cases {
		got, err := amortize(tc.total, tc.months)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "total %d over %d months", tc.total, tc.months)
		var sum int64
		for _, installment := range got {
			sum += installment
		}
		assert.Equal(t, tc.total, sum)
	}
}

func TestAmortizeRejectsTooSmallTotal(t *testing.T) {
	// ceil(10/24) = 1 leaves the final month with 10 - 23 = -13.
	_, err := amortize(10, 24)
	assert.ErrorIs(t, err, ErrValidation)

	// ceil(4/3) = 2 leaves the final month with exactly zero.
	_, err = amortize(4, 3)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNextDeadlineClampsShortMonths(t *testing.T) {
	loc := time.UTC
	start := time.Date(2026, time.January, 15, 10, 0, 0, 0, loc)

	first := nextDeadline(start, 31)
	assert.Equal(t, time.Date(2026, time.January, 31, 0, 0, 0, 0, loc), first)

	second := nextDeadline(first, 31)
	assert.Equal(t, time.Date(2026, time.February, 28, 0, 0, 0, 0, loc), second)

	third := nextDeadline(second, 31)
	assert.Equal(t, time.Date(2026, time.March, 31, 0, 0, 0, 0, loc), third)

	// Day already past in the current month rolls to the next one,
	// including across the year boundary.
	dec := time.Date(2026, time.December, 20, 0, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2027, time.January, 5, 0, 0, 0, 0, loc), nextDeadline(dec, 5))
}

func TestCreateMonthlyExpense(t *testing.T) {
	mem := newMemStore()
	mem.addTeam("team-1", "alice", "bob", "carol")
	svc, _ := newTestService(mem, cache.NoOp{})
	svc.now = func() time.Time {
		return time.Date(2026, time.January, 15, 12, 0, 0, 0, time.UTC)
	}
	ctx := context.Background()

	result, err := svc.CreateMonthlyExpense(ctx, MonthlyExpenseRequest{
		TeamID:      "team-1",
		PayerID:     "alice",
		TotalMinor:  100000,
		Months:      3,
		DeadlineDay: 31,
		Description: "new fridge",
		Category:    "appliances",
	})
	require.NoError(t, err)
	require.Len(t, result.Expenses, 3)

	var expenseTotal, settlementTotal int64
	for k, expense := range result.Expenses {
		assert.True(t, expense.IsMonthly)
		require.NotNil(t, expense.MonthNumber)
		assert.Equal(t, k+1, *expense.MonthNumber)
		require.NotNil(t, expense.TotalMonths)
		assert.Equal(t, 3, *expense.TotalMonths)
		expenseTotal += expense.AmountMinor

		settlements := mem.settlementsByExpense(expense.ID)
		require.Len(t, settlements, 2)
		for _, settlement := range settlements {
			assert.Equal(t, store.StatusPending, settlement.Status)
			settlementTotal += settlement.AmountMinor
		}
	}
	assert.Equal(t, int64(100000), expenseTotal)
	assert.Equal(t, int64(100000), settlementTotal)

	require.NotNil(t, result.Expenses[0].Deadline)
	assert.Equal(t, time.Date(2026, time.January, 31, 0, 0, 0, 0, time.UTC), *result.Expenses[0].Deadline)
	assert.Equal(t, time.Date(2026, time.February, 28, 0, 0, 0, 0, time.UTC), *result.Expenses[1].Deadline)
	assert.Equal(t, time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC), *result.Expenses[2].Deadline)

	// ceil(33334 / 2 debtors) for the preview figure.
	assert.Equal(t, int64(16667), result.PerParticipantMinor)
}

func TestCreateMonthlyExpenseValidation(t *testing.T) {
	mem := newMemStore()
	mem.addTeam("team-1", "alice", "bob")
	svc, _ := newTestService(mem, cache.NoOp{})
	ctx := context.Background()

	base := MonthlyExpenseRequest{
		TeamID: "team-1", PayerID: "alice", TotalMinor: 10000,
		Months: 3, DeadlineDay: 15, Description: "plan",
	}

	req := base
	req.Months = 0
	_, err := svc.CreateMonthlyExpense(ctx, req)
	assert.ErrorIs(t, err, ErrValidation)

	req = base
	req.Months = 25
	_, err = svc.CreateMonthlyExpense(ctx, req)
	assert.ErrorIs(t, err, ErrValidation)

	req = base
	req.DeadlineDay = 0
	_, err = svc.CreateMonthlyExpense(ctx, req)
	assert.ErrorIs(t, err, ErrValidation)

	req = base
	req.DeadlineDay = 32
	_, err = svc.CreateMonthlyExpense(ctx, req)
	assert.ErrorIs(t, err, ErrValidation)

	req = base
	req.TotalMinor = 10
	req.Months = 24
	_, err = svc.CreateMonthlyExpense(ctx, req)
	assert.ErrorIs(t, err, ErrValidation)

	req = base
	req.PayerID = "mallory"
	_, err = svc.CreateMonthlyExpense(ctx, req)
	assert.ErrorIs(t, err, ErrForbidden)
}
