package ledger

import (
	"context"
	"strings"
	"time"

	"hati/internal/metrics"
	"hati/internal/money"
	"hati/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const (
	MinPlanMonths = 1
	MaxPlanMonths = 24
)

type MonthlyExpenseRequest struct {
	TeamID      string
	PayerID     string
	TotalMinor  int64
	Months      int
	DeadlineDay int
	Description string
	Category    string
}

type MonthlyExpenseResult struct {
	Expenses []store.Expense
	// PerParticipantMinor is the per-month share rounded up, for UI
	// preview only. The authoritative per-settlement amounts come from
	// the split applied to each month's expense independently.
	PerParticipantMinor int64
}

// CreateMonthlyExpense amortizes a lump total into monthly installments,
// each an independent expense split by the usual rules. Installments
// round up so the plan is funded early, and the final month absorbs the
// accumulated surplus downward so the grand total is exact. The whole
// plan is one transaction: either every month exists or none does.
func (s *Service) CreateMonthlyExpense(ctx context.Context, req MonthlyExpenseRequest) (MonthlyExpenseResult, error) {
	if err := validateExpenseInput(req.TotalMinor, req.Description); err != nil {
		return MonthlyExpenseResult{}, err
	}
	if req.Months < MinPlanMonths || req.Months > MaxPlanMonths {
		return MonthlyExpenseResult{}, validationf("number of months must be between %d and %d", MinPlanMonths, MaxPlanMonths)
	}
	if req.DeadlineDay < 1 || req.DeadlineDay > 31 {
		return MonthlyExpenseResult{}, validationf("deadline day must be between 1 and 31")
	}
	installments, err := amortize(req.TotalMinor, req.Months)
	if err != nil {
		return MonthlyExpenseResult{}, err
	}

	description := strings.TrimSpace(req.Description)
	category := normalizeCategory(req.Category)
	totalMonths := req.Months
	var result MonthlyExpenseResult
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		result = MonthlyExpenseResult{}
		deadline := s.now()
		var allSettlements []store.Settlement
		for k, installment := range installments {
			deadline = nextDeadline(deadline, req.DeadlineDay)
			monthNumber := k + 1
			deadlineDay := req.DeadlineDay
			deadlineCopy := deadline
			expense := store.Expense{
				ID:          uuid.NewString(),
				TeamID:      req.TeamID,
				PaidBy:      req.PayerID,
				AmountMinor: installment,
				Description: description,
				Category:    category,
				IsMonthly:   true,
				MonthNumber: &monthNumber,
				TotalMonths: &totalMonths,
				Deadline:    &deadlineCopy,
				DeadlineDay: &deadlineDay,
			}
			settlements, err := s.createExpenseTx(ctx, tx, &expense)
			if err != nil {
				return err
			}
			result.Expenses = append(result.Expenses, expense)
			allSettlements = append(allSettlements, settlements...)
		}
		if len(allSettlements) > 0 {
			debtors := len(allSettlements) / len(installments)
			result.PerParticipantMinor = ceilDiv(installments[0], int64(debtors))
		}
		return s.audit.Log(ctx, tx, req.PayerID, "create_monthly_expense", "expense", result.Expenses[0].ID, auditData(map[string]any{
			"total":  money.FormatMinor(req.TotalMinor),
			"months": req.Months,
		}))
	})
	if err != nil {
		return MonthlyExpenseResult{}, err
	}

	for range result.Expenses {
		metrics.ExpensesRecorded.Inc()
	}
	s.afterCommit(ctx, req.TeamID)
	return result, nil
}

// amortize produces the per-month installments: every month but the last
// is ceiling(total/months), the last takes the remainder. The sum equals
// total exactly. A total too small to leave the final month positive is
// rejected rather than producing a zero or negative installment.
func amortize(totalMinor int64, months int) ([]int64, error) {
	perMonth := decimal.NewFromInt(totalMinor).
		Div(decimal.NewFromInt(int64(months))).
		Ceil().
		IntPart()
	final := totalMinor - perMonth*int64(months-1)
	if final <= 0 {
		return nil, validationf("total amount is too small to spread over %d months", months)
	}
	installments := make([]int64, months)
	for i := 0; i < months-1; i++ {
		installments[i] = perMonth
	}
	installments[months-1] = final
	return installments, nil
}

func ceilDiv(amountMinor, n int64) int64 {
	return decimal.NewFromInt(amountMinor).
		Div(decimal.NewFromInt(n)).
		Ceil().
		IntPart()
}

// nextDeadline returns the first occurrence of dayOfMonth strictly after
// the given time, clamped to the last day of months that are too short.
func nextDeadline(after time.Time, dayOfMonth int) time.Time {
	year, month, _ := after.Date()
	candidate := deadlineInMonth(year, month, dayOfMonth, after.Location())
	if candidate.After(after) {
		return candidate
	}
	year, month = nextMonth(year, month)
	return deadlineInMonth(year, month, dayOfMonth, after.Location())
}

func deadlineInMonth(year int, month time.Month, dayOfMonth int, loc *time.Location) time.Time {
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
	if dayOfMonth > lastDay {
		dayOfMonth = lastDay
	}
	return time.Date(year, month, dayOfMonth, 0, 0, 0, 0, loc)
}

func nextMonth(year int, month time.Month) (int, time.Month) {
	if month == time.December {
		return year + 1, time.January
	}
	return year, month + 1
}
