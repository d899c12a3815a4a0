package ledger

import (
	"context"
	"fmt"
	"testing"

	"hati/internal/cache"
	"hati/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordExpenseSplitsAmongOthers(t *testing.T) {
	mem := newMemStore()
	mem.addTeam("team-1", "alice", "bob", "carol")
	svc, notifier := newTestService(mem, cache.NoOp{})

	expense, settlements, err := svc.RecordExpense(context.Background(), RecordExpenseRequest{
		TeamID:      "team-1",
		PayerID:     "alice",
		AmountMinor: 30000,
		Description: "groceries",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(30000), expense.AmountMinor)
	assert.Equal(t, "general", expense.Category)

	require.Len(t, settlements, 2)
	for _, settlement := range settlements {
		assert.Equal(t, "alice", settlement.OwedTo)
		assert.NotEqual(t, "alice", settlement.OwedBy)
		assert.Equal(t, int64(15000), settlement.AmountMinor)
		assert.Equal(t, store.StatusPending, settlement.Status)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.NotEmpty(t, notifier.updates)
}

func TestRecordExpenseRemainderGoesToFirstDebtor(t *testing.T) {
	mem := newMemStore()
	mem.addTeam("team-1", "alice", "bob", "carol", "dave")
	svc, _ := newTestService(mem, cache.NoOp{})

	// 100 centavos among 3 debtors: 34 + 33 + 33.
	_, settlements, err := svc.RecordExpense(context.Background(), RecordExpenseRequest{
		TeamID:      "team-1",
		PayerID:     "alice",
		AmountMinor: 100,
		Description: "split test",
	})
	require.NoError(t, err)
	require.Len(t, settlements, 3)
	assert.Equal(t, "bob", settlements[0].OwedBy)
	assert.Equal(t, int64(34), settlements[0].AmountMinor)
	assert.Equal(t, int64(33), settlements[1].AmountMinor)
	assert.Equal(t, int64(33), settlements[2].AmountMinor)
}

func TestRecordExpenseConservesTotal(t *testing.T) {
	amounts := []int64{1, 2, 99, 100, 9973, 1000000}
	for debtors := 1; debtors <= 23; debtors++ {
		mem := newMemStore()
		members := []string{"payer"}
		for i := 0; i < debtors; i++ {
			members = append(members, fmt.Sprintf("member-%02d", i))
		}
		mem.addTeam("team-1", members...)
		svc, _ := newTestService(mem, cache.NoOp{})

		for _, amount := range amounts {
			_, settlements, err := svc.RecordExpense(context.Background(), RecordExpenseRequest{
				TeamID:      "team-1",
				PayerID:     "payer",
				AmountMinor: amount,
				Description: "conservation",
			})
			require.NoError(t, err)
			require.Len(t, settlements, debtors)
			var sum int64
			for _, settlement := range settlements {
				assert.GreaterOrEqual(t, settlement.AmountMinor, int64(0))
				sum += settlement.AmountMinor
			}
			assert.Equal(t, amount, sum, "amount %d over %d debtors", amount, debtors)
		}
	}
}

func TestRecordExpenseSoloMember(t *testing.T) {
	mem := newMemStore()
	mem.addTeam("team-1", "alice")
	svc, _ := newTestService(mem, cache.NoOp{})

	expense, settlements, err := svc.RecordExpense(context.Background(), RecordExpenseRequest{
		TeamID:      "team-1",
		PayerID:     "alice",
		AmountMinor: 5000,
		Description: "solo",
	})
	require.NoError(t, err)
	assert.Empty(t, settlements)
	_, err = mem.GetByID(context.Background(), expense.ID)
	assert.NoError(t, err)
}

func TestRecordExpenseValidation(t *testing.T) {
	mem := newMemStore()
	mem.addTeam("team-1", "alice", "bob")
	svc, _ := newTestService(mem, cache.NoOp{})
	ctx := context.Background()

	_, _, err := svc.RecordExpense(ctx, RecordExpenseRequest{TeamID: "team-1", PayerID: "alice", AmountMinor: 0, Description: "x"})
	assert.ErrorIs(t, err, ErrValidation)

	_, _, err = svc.RecordExpense(ctx, RecordExpenseRequest{TeamID: "team-1", PayerID: "alice", AmountMinor: -100, Description: "x"})
	assert.ErrorIs(t, err, ErrValidation)

	_, _, err = svc.RecordExpense(ctx, RecordExpenseRequest{TeamID: "team-1", PayerID: "alice", AmountMinor: 100, Description: "   "})
	assert.ErrorIs(t, err, ErrValidation)

	_, _, err = svc.RecordExpense(ctx, RecordExpenseRequest{TeamID: "team-1", PayerID: "mallory", AmountMinor: 100, Description: "x"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUpdateExpenseDescription(t *testing.T) {
	mem := newMemStore()
	mem.addTeam("team-1", "alice", "bob")
	svc, _ := newTestService(mem, cache.NoOp{})
	ctx := context.Background()

	expense, _, err := svc.RecordExpense(ctx, RecordExpenseRequest{TeamID: "team-1", PayerID: "alice", AmountMinor: 100, Description: "typo"})
	require.NoError(t, err)

	updated, err := svc.UpdateExpenseDescription(ctx, expense.ID, "alice", "fixed")
	require.NoError(t, err)
	assert.Equal(t, "fixed", updated.Description)

	_, err = svc.UpdateExpenseDescription(ctx, expense.ID, "bob", "nope")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.UpdateExpenseDescription(ctx, expense.ID, "alice", "  ")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.UpdateExpenseDescription(ctx, "missing", "alice", "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteExpenseCascadesToSettlements(t *testing.T) {
	mem := newMemStore()
	mem.addTeam("team-1", "alice", "bob", "carol")
	svc, _ := newTestService(mem, cache.NoOp{})
	ctx := context.Background()

	expense, settlements, err := svc.RecordExpense(ctx, RecordExpenseRequest{TeamID: "team-1", PayerID: "alice", AmountMinor: 3000, Description: "oops"})
	require.NoError(t, err)
	require.Len(t, settlements, 2)

	err = svc.DeleteExpense(ctx, expense.ID, "bob")
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, svc.DeleteExpense(ctx, expense.ID, "alice"))

	_, err = mem.GetByID(ctx, expense.ID)
	assert.Error(t, err)
	for _, row := range mem.settlementsByExpense(expense.ID) {
		assert.NotNil(t, row.DeletedAt)
	}

	open, err := svc.DetectMutualDebts(ctx, "team-1", "bob")
	require.NoError(t, err)
	assert.Empty(t, open)

	err = svc.DeleteExpense(ctx, expense.ID, "alice")
	assert.ErrorIs(t, err, ErrNotFound)
}
