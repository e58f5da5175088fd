package memledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/oleandro/investtrack-calc-go/internal/domain"
	"github.com/oleandro/investtrack-calc-go/internal/infra/memledger"

	"github.com/shopspring/decimal"
)

func seedInvestment(store *memledger.Store, balance string) *domain.Investment {
	amount := decimal.RequireFromString(balance)
	rate := decimal.RequireFromString("12")
	return store.Seed(domain.Investment{
		Name:                 "CDB",
		Currency:             "BRL",
		Category:             domain.CategoryBonds,
		InitialAmount:        amount,
		CurrentBalance:       amount,
		StartDate:            time.Now().Add(-30 * 24 * time.Hour),
		ReturnType:           domain.ReturnTypeFixed,
		InterestRate:         &rate,
		Status:               domain.StatusActive,
		CompoundingFrequency: domain.CompoundMonthly,
	})
}

func accrualCommit(inv *domain.Investment, expected, interest string) *domain.AccrualCommit {
	exp := decimal.RequireFromString(expected)
	earned := decimal.RequireFromString(interest)
	end := time.Now()
	return &domain.AccrualCommit{
		InvestmentID:    inv.ID,
		CalculationType: domain.CalcManual,
		PeriodStart:     end.Add(-30 * 24 * time.Hour),
		PeriodEnd:       end,
		ExpectedBalance: exp,
		InterestRate:    decimal.RequireFromString("12"),
		InterestEarned:  earned,
		NewBalance:      exp.Add(earned),
		NextInterestDue: end.Add(30 * 24 * time.Hour),
	}
}

func TestCommitAccrual_RejectsStaleBalance(t *testing.T) {
	store := memledger.New()
	inv := seedInvestment(store, "10000")
	ctx := context.Background()

	// derived against a balance the store no longer holds
	_, err := store.CommitAccrual(ctx, accrualCommit(inv, "9000", "88.77"))
	if _, ok := err.(*domain.ErrConcurrentModification); !ok {
		t.Fatalf("expected ErrConcurrentModification, got %v", err)
	}

	// nothing was written
	txs, err := store.ListTransactions(ctx, inv.ID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(txs) != 0 {
		t.Errorf("expected empty ledger after rejected commit, got %d entries", len(txs))
	}
}

func TestCommitAccrual_UpdatesAllThreeRecords(t *testing.T) {
	store := memledger.New()
	inv := seedInvestment(store, "10000")
	ctx := context.Background()

	result, err := store.CommitAccrual(ctx, accrualCommit(inv, "10000", "98.63"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if result.Transaction.ID != result.Calculation.TransactionID {
		t.Error("expected calculation to reference its transaction")
	}
	if !result.Investment.CurrentBalance.Equal(decimal.RequireFromString("10098.63")) {
		t.Errorf("expected balance 10098.63, got %s", result.Investment.CurrentBalance)
	}
	if result.Investment.LastInterestCalculated == nil {
		t.Error("expected lastInterestCalculated to be set")
	}
}

func TestRevertAccrual_OnlyLatestActive(t *testing.T) {
	store := memledger.New()
	inv := seedInvestment(store, "10000")
	ctx := context.Background()

	first, err := store.CommitAccrual(ctx, accrualCommit(inv, "10000", "98.63"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second, err := store.CommitAccrual(ctx, accrualCommit(inv, "10098.63", "99.60"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// reverting anything but the newest active calculation fails
	_, err = store.RevertAccrual(ctx, &domain.AccrualRevert{
		InvestmentID:    inv.ID,
		CalculationID:   first.Calculation.ID,
		RestoredBalance: first.Calculation.PrincipalAmount,
		RevertedAt:      time.Now(),
	})
	if _, ok := err.(*domain.ErrNoCalculationToRevert); !ok {
		t.Fatalf("expected ErrNoCalculationToRevert for non-latest calculation, got %v", err)
	}

	result, err := store.RevertAccrual(ctx, &domain.AccrualRevert{
		InvestmentID:    inv.ID,
		CalculationID:   second.Calculation.ID,
		RestoredBalance: second.Calculation.PrincipalAmount,
		RevertedAt:      time.Now(),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !result.Investment.CurrentBalance.Equal(decimal.RequireFromString("10098.63")) {
		t.Errorf("expected balance restored to 10098.63, got %s", result.Investment.CurrentBalance)
	}
	// the accrual clock rewinds to the previous active period
	if result.Investment.LastInterestCalculated == nil ||
		!result.Investment.LastInterestCalculated.Equal(first.Calculation.PeriodEnd) {
		t.Error("expected lastInterestCalculated rewound to the previous period end")
	}
}

func TestListCalculations_Pagination(t *testing.T) {
	store := memledger.New()
	inv := seedInvestment(store, "10000")
	ctx := context.Background()

	balance := decimal.RequireFromString("10000")
	for i := 0; i < 5; i++ {
		result, err := store.CommitAccrual(ctx, accrualCommit(inv, balance.String(), "10"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		balance = result.Investment.CurrentBalance
	}

	items, total, err := store.ListCalculations(ctx, inv.ID, 2, 2)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if total != 5 {
		t.Errorf("expected 5 total, got %d", total)
	}
	if len(items) != 2 {
		t.Errorf("expected 2 items, got %d", len(items))
	}

	items, _, err = store.ListCalculations(ctx, inv.ID, 4, 2)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected empty page past the end, got %d items", len(items))
	}
}

func TestListDueInvestments_Filters(t *testing.T) {
	store := memledger.New()
	ctx := context.Background()
	now := time.Now()

	due := seedInvestment(store, "1000")
	past := now.Add(-time.Hour)
	if _, err := store.UpdateSchedule(ctx, due.ID, &domain.ScheduleUpdate{
		AutoCalculate:        true,
		CompoundingFrequency: domain.CompoundDaily,
	}, past); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	notYet := seedInvestment(store, "2000")
	future := now.Add(time.Hour)
	if _, err := store.UpdateSchedule(ctx, notYet.ID, &domain.ScheduleUpdate{
		AutoCalculate:        true,
		CompoundingFrequency: domain.CompoundDaily,
	}, future); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	manual := seedInvestment(store, "3000")
	_ = manual // autoCalculate off, never due

	dueList, err := store.ListDueInvestments(ctx, now)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(dueList) != 1 {
		t.Fatalf("expected 1 due investment, got %d", len(dueList))
	}
	if dueList[0].ID != due.ID {
		t.Errorf("expected investment %s due, got %s", due.ID, dueList[0].ID)
	}
}

func TestUpdateSchedule_DisablingClearsDueDate(t *testing.T) {
	store := memledger.New()
	inv := seedInvestment(store, "1000")
	ctx := context.Background()

	next := time.Now().Add(24 * time.Hour)
	updated, err := store.UpdateSchedule(ctx, inv.ID, &domain.ScheduleUpdate{
		AutoCalculate:        true,
		CompoundingFrequency: domain.CompoundDaily,
	}, next)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if updated.NextInterestDue == nil {
		t.Fatal("expected nextInterestDue to be set")
	}

	updated, err = store.UpdateSchedule(ctx, inv.ID, &domain.ScheduleUpdate{
		AutoCalculate:        false,
		CompoundingFrequency: domain.CompoundDaily,
	}, next)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if updated.NextInterestDue != nil {
		t.Error("expected nextInterestDue cleared when autoCalculate is off")
	}
}
