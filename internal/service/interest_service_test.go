package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/oleandro/investtrack-calc-go/internal/domain"
	"github.com/oleandro/investtrack-calc-go/internal/infra/cache"
	"github.com/oleandro/investtrack-calc-go/internal/infra/memledger"
	"github.com/oleandro/investtrack-calc-go/internal/infra/observability"
	"github.com/oleandro/investtrack-calc-go/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- Fixtures ---

func newFixedInvestment(balance, rate string, startedDaysAgo int) domain.Investment {
	r := decimal.RequireFromString(rate)
	amount := decimal.RequireFromString(balance)
	return domain.Investment{
		Name:                 "CDB Fixture",
		Currency:             "BRL",
		Category:             domain.CategoryBonds,
		InitialAmount:        amount,
		CurrentBalance:       amount,
		StartDate:            time.Now().Add(-time.Duration(startedDaysAgo) * 24 * time.Hour),
		ReturnType:           domain.ReturnTypeFixed,
		InterestRate:         &r,
		Status:               domain.StatusActive,
		CompoundingFrequency: domain.CompoundMonthly,
	}
}

func newInterestFixture(t *testing.T, inv domain.Investment) (*service.InterestService, *memledger.Store, *domain.Investment) {
	t.Helper()
	store := memledger.New()
	seeded := store.Seed(inv)
	svc := service.NewInterestService(store, cache.New[*domain.InvestmentPerformance](time.Minute), observability.NewMetrics(), zap.NewNop())
	return svc, store, seeded
}

func assertDecimal(t *testing.T, got decimal.Decimal, want string, label string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Errorf("%s: expected %s, got %s", label, want, got)
	}
}

// --- Preview ---

func TestPreview_ThirtyDayPeriod(t *testing.T) {
	svc, _, inv := newInterestFixture(t, newFixedInvestment("10000", "12", 30))

	preview, err := svc.Preview(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if preview.Days != 30 {
		t.Errorf("expected 30 days, got %d", preview.Days)
	}
	// 10000 * 12% * 30/365 = 98.63
	assertDecimal(t, preview.Interest, "98.63", "interest")
	assertDecimal(t, preview.NewBalance, "10098.63", "new balance")
	assertDecimal(t, preview.PrincipalAmount, "10000", "principal")

	if got := preview.PeriodEnd.Sub(preview.PeriodStart); got != 30*24*time.Hour {
		t.Errorf("expected 30-day period, got %s", got)
	}
}

func TestPreview_Idempotent(t *testing.T) {
	svc, _, inv := newInterestFixture(t, newFixedInvestment("10000", "12", 30))

	first, err := svc.Preview(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second, err := svc.Preview(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if first.Days != second.Days {
		t.Errorf("days changed between previews: %d vs %d", first.Days, second.Days)
	}
	if !first.Interest.Equal(second.Interest) {
		t.Errorf("interest changed between previews: %s vs %s", first.Interest, second.Interest)
	}
	if !first.PeriodEnd.Equal(second.PeriodEnd) {
		t.Errorf("period end changed between previews: %s vs %s", first.PeriodEnd, second.PeriodEnd)
	}
}

func TestPreview_NotFound(t *testing.T) {
	svc, _, _ := newInterestFixture(t, newFixedInvestment("10000", "12", 30))

	_, err := svc.Preview(context.Background(), "missing-id")
	if _, ok := err.(*domain.ErrNotFound); !ok {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPreview_VariableNotEligible(t *testing.T) {
	inv := newFixedInvestment("10000", "12", 30)
	inv.ReturnType = domain.ReturnTypeVariable
	inv.InterestRate = nil
	svc, _, seeded := newInterestFixture(t, inv)

	_, err := svc.Preview(context.Background(), seeded.ID)
	if _, ok := err.(*domain.ErrInvestmentNotEligible); !ok {
		t.Fatalf("expected ErrInvestmentNotEligible, got %v", err)
	}
}

func TestPreview_InactiveNotEligible(t *testing.T) {
	inv := newFixedInvestment("10000", "12", 30)
	inv.Status = domain.StatusClosed
	svc, _, seeded := newInterestFixture(t, inv)

	_, err := svc.Preview(context.Background(), seeded.ID)
	if _, ok := err.(*domain.ErrInvestmentNotEligible); !ok {
		t.Fatalf("expected ErrInvestmentNotEligible, got %v", err)
	}
}

// --- Calculate ---

func TestCalculate_CommitsAccrual(t *testing.T) {
	svc, store, inv := newInterestFixture(t, newFixedInvestment("10000", "12", 30))
	ctx := context.Background()

	result, err := svc.Calculate(ctx, inv.ID, domain.CalcManual)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	assertDecimal(t, result.Calculation.InterestEarned, "98.63", "interest earned")
	assertDecimal(t, result.Calculation.NewBalance, "10098.63", "calculation balance")
	assertDecimal(t, result.Investment.CurrentBalance, "10098.63", "investment balance")
	if result.Calculation.CalculationType != domain.CalcManual {
		t.Errorf("expected MANUAL, got %s", result.Calculation.CalculationType)
	}
	if result.Transaction.Type != domain.TxReturn {
		t.Errorf("expected RETURN transaction, got %s", result.Transaction.Type)
	}

	// balance invariant: initial + non-reverted transactions
	txs, err := store.ListTransactions(ctx, inv.ID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	ledger := domain.LedgerBalance(inv.InitialAmount, txs)
	if !ledger.Equal(result.Investment.CurrentBalance) {
		t.Errorf("balance invariant broken: ledger %s, balance %s", ledger, result.Investment.CurrentBalance)
	}

	// next due follows the posting cadence (MONTHLY = 30d)
	if result.Investment.NextInterestDue == nil {
		t.Fatal("expected nextInterestDue to be set")
	}
	wantDue := result.Calculation.PeriodEnd.Add(30 * 24 * time.Hour)
	if !result.Investment.NextInterestDue.Equal(wantDue) {
		t.Errorf("expected nextInterestDue %s, got %s", wantDue, result.Investment.NextInterestDue)
	}
}

func TestCalculate_ZeroDayPeriodRejected(t *testing.T) {
	svc, _, inv := newInterestFixture(t, newFixedInvestment("10000", "12", 0))

	_, err := svc.Calculate(context.Background(), inv.ID, domain.CalcManual)
	if _, ok := err.(*domain.ErrValidation); !ok {
		t.Fatalf("expected ErrValidation for zero-day period, got %v", err)
	}
}

func TestCalculate_NextPeriodStartsAtPeriodEnd(t *testing.T) {
	svc, _, inv := newInterestFixture(t, newFixedInvestment("10000", "12", 30))
	ctx := context.Background()

	result, err := svc.Calculate(ctx, inv.ID, domain.CalcManual)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	preview, err := svc.Preview(ctx, inv.ID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !preview.PeriodStart.Equal(result.Calculation.PeriodEnd) {
		t.Errorf("expected next period to start at %s, got %s", result.Calculation.PeriodEnd, preview.PeriodStart)
	}
	if preview.Days != 0 {
		t.Errorf("expected 0 elapsed days right after calculation, got %d", preview.Days)
	}
}

func TestCalculate_ConcurrentNeverDoubleAccrues(t *testing.T) {
	svc, store, inv := newInterestFixture(t, newFixedInvestment("10000", "12", 30))
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Calculate(ctx, inv.ID, domain.CalcManual)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	successes := 0
	for err := range errs {
		if err == nil {
			successes++
		}
	}
	if successes != 1 {
		t.Errorf("expected exactly 1 successful accrual, got %d", successes)
	}

	updated, err := store.GetInvestment(ctx, inv.ID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	assertDecimal(t, updated.CurrentBalance, "10098.63", "balance after concurrent calculate")
}

// --- Revert ---

func TestRevert_RestoresBalanceExactly(t *testing.T) {
	svc, store, inv := newInterestFixture(t, newFixedInvestment("10000", "12", 30))
	ctx := context.Background()

	if _, err := svc.Calculate(ctx, inv.ID, domain.CalcManual); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	result, err := svc.Revert(ctx, inv.ID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	assertDecimal(t, result.Investment.CurrentBalance, "10000", "restored balance")
	if !result.Calculation.IsReverted {
		t.Error("expected calculation to be flagged reverted")
	}

	// the RETURN transaction stays in the ledger, flagged
	txs, err := store.ListTransactions(ctx, inv.ID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("expected transaction to remain in ledger, got %d entries", len(txs))
	}
	if !txs[0].IsReverted {
		t.Error("expected transaction to be flagged reverted")
	}

	ledger := domain.LedgerBalance(inv.InitialAmount, txs)
	if !ledger.Equal(result.Investment.CurrentBalance) {
		t.Errorf("balance invariant broken after revert: ledger %s, balance %s", ledger, result.Investment.CurrentBalance)
	}
}

func TestRevert_SecondRevertFails(t *testing.T) {
	svc, _, inv := newInterestFixture(t, newFixedInvestment("10000", "12", 30))
	ctx := context.Background()

	if _, err := svc.Calculate(ctx, inv.ID, domain.CalcManual); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, err := svc.Revert(ctx, inv.ID); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	_, err := svc.Revert(ctx, inv.ID)
	if _, ok := err.(*domain.ErrNoCalculationToRevert); !ok {
		t.Fatalf("expected ErrNoCalculationToRevert, got %v", err)
	}
}

func TestRevert_NothingToRevert(t *testing.T) {
	svc, _, inv := newInterestFixture(t, newFixedInvestment("10000", "12", 30))

	_, err := svc.Revert(context.Background(), inv.ID)
	if _, ok := err.(*domain.ErrNoCalculationToRevert); !ok {
		t.Fatalf("expected ErrNoCalculationToRevert, got %v", err)
	}
}

// --- Schedule ---

func TestUpdateSchedule_InvalidFrequency(t *testing.T) {
	svc, _, inv := newInterestFixture(t, newFixedInvestment("10000", "12", 30))

	_, err := svc.UpdateSchedule(context.Background(), inv.ID, &domain.ScheduleUpdate{
		AutoCalculate:        true,
		CompoundingFrequency: "WEEKLY",
	})
	if _, ok := err.(*domain.ErrValidation); !ok {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestUpdateSchedule_VariableRejected(t *testing.T) {
	inv := newFixedInvestment("10000", "12", 30)
	inv.ReturnType = domain.ReturnTypeVariable
	svc, _, seeded := newInterestFixture(t, inv)

	_, err := svc.UpdateSchedule(context.Background(), seeded.ID, &domain.ScheduleUpdate{
		AutoCalculate:        true,
		CompoundingFrequency: domain.CompoundDaily,
	})
	if _, ok := err.(*domain.ErrInvestmentNotEligible); !ok {
		t.Fatalf("expected ErrInvestmentNotEligible, got %v", err)
	}
}

func TestUpdateSchedule_EnablesAutoCalculate(t *testing.T) {
	svc, store, inv := newInterestFixture(t, newFixedInvestment("10000", "12", 30))
	ctx := context.Background()

	updated, err := svc.UpdateSchedule(ctx, inv.ID, &domain.ScheduleUpdate{
		AutoCalculate:        true,
		CompoundingFrequency: domain.CompoundDaily,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !updated.AutoCalculate {
		t.Error("expected autoCalculate to be enabled")
	}
	if updated.NextInterestDue == nil {
		t.Fatal("expected nextInterestDue to be set")
	}
	// the balance is untouched
	assertDecimal(t, updated.CurrentBalance, "10000", "balance after schedule update")

	// disabling clears the due date
	updated, err = svc.UpdateSchedule(ctx, inv.ID, &domain.ScheduleUpdate{
		AutoCalculate:        false,
		CompoundingFrequency: domain.CompoundDaily,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if updated.NextInterestDue != nil {
		t.Error("expected nextInterestDue to be cleared")
	}

	if _, err := store.GetInvestment(ctx, inv.ID); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

// --- History ---

func TestHistory_PaginatesNewestFirst(t *testing.T) {
	svc, _, inv := newInterestFixture(t, newFixedInvestment("10000", "12", 30))
	ctx := context.Background()

	// build three ledger entries: two reverted, one active
	for i := 0; i < 2; i++ {
		if _, err := svc.Calculate(ctx, inv.ID, domain.CalcManual); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, err := svc.Revert(ctx, inv.ID); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	}
	last, err := svc.Calculate(ctx, inv.ID, domain.CalcManual)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	page, err := svc.History(ctx, inv.ID, 1, 2)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if page.Pagination.Total != 3 {
		t.Errorf("expected 3 calculations in history, got %d", page.Pagination.Total)
	}
	if page.Pagination.TotalPages != 2 {
		t.Errorf("expected 2 pages, got %d", page.Pagination.TotalPages)
	}
	if page.Pagination.Page != 1 || page.Pagination.Limit != 2 {
		t.Errorf("expected pagination page=1 limit=2, got %+v", page.Pagination)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 items on page 1, got %d", len(page.Items))
	}
	if page.Items[0].ID != last.Calculation.ID {
		t.Error("expected newest calculation first")
	}

	page2, err := svc.History(ctx, inv.ID, 2, 2)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(page2.Items) != 1 {
		t.Errorf("expected 1 item on page 2, got %d", len(page2.Items))
	}
}
