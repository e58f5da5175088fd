package service_test

import (
	"context"
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

func newVariableInvestment(balance string) domain.Investment {
	amount := decimal.RequireFromString(balance)
	return domain.Investment{
		Name:           "ETF Fixture",
		Currency:       "BRL",
		Category:       domain.CategoryStocks,
		InitialAmount:  amount,
		CurrentBalance: amount,
		StartDate:      time.Now().Add(-90 * 24 * time.Hour),
		ReturnType:     domain.ReturnTypeVariable,
		Status:         domain.StatusActive,
	}
}

func newVariableFixture(t *testing.T, inv domain.Investment) (*service.InterestService, *memledger.Store, *domain.Investment) {
	t.Helper()
	store := memledger.New()
	seeded := store.Seed(inv)
	svc := service.NewInterestService(store, cache.New[*domain.InvestmentPerformance](time.Minute), observability.NewMetrics(), zap.NewNop())
	return svc, store, seeded
}

// --- UpdateByPercentage ---

func TestUpdateByPercentage_Gain(t *testing.T) {
	svc, _, inv := newVariableFixture(t, newVariableInvestment("5000"))

	result, err := svc.UpdateByPercentage(context.Background(), inv.ID, decimal.NewFromInt(10), time.Time{}, "monthly mark")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	assertDecimal(t, result.CalculatedAmount, "500", "calculated amount")
	assertDecimal(t, result.Investment.CurrentBalance, "5500", "new balance")
	if result.Transaction.Percentage == nil || !result.Transaction.Percentage.Equal(decimal.NewFromInt(10)) {
		t.Errorf("expected percentage 10 on transaction, got %v", result.Transaction.Percentage)
	}
	if result.Transaction.Type != domain.TxReturn {
		t.Errorf("expected RETURN transaction, got %s", result.Transaction.Type)
	}
}

func TestUpdateByPercentage_Loss(t *testing.T) {
	svc, store, inv := newVariableFixture(t, newVariableInvestment("5000"))
	ctx := context.Background()

	result, err := svc.UpdateByPercentage(ctx, inv.ID, decimal.NewFromInt(-10), time.Time{}, "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	assertDecimal(t, result.CalculatedAmount, "-500", "calculated amount")
	assertDecimal(t, result.Investment.CurrentBalance, "4500", "new balance")

	txs, err := store.ListTransactions(ctx, inv.ID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	ledger := domain.LedgerBalance(inv.InitialAmount, txs)
	if !ledger.Equal(result.Investment.CurrentBalance) {
		t.Errorf("balance invariant broken: ledger %s, balance %s", ledger, result.Investment.CurrentBalance)
	}
}

func TestUpdateByPercentage_NegativeResultRejected(t *testing.T) {
	svc, _, inv := newVariableFixture(t, newVariableInvestment("5000"))

	_, err := svc.UpdateByPercentage(context.Background(), inv.ID, decimal.NewFromInt(-150), time.Time{}, "")
	if _, ok := err.(*domain.ErrNegativeBalance); !ok {
		t.Fatalf("expected ErrNegativeBalance, got %v", err)
	}
}

func TestUpdateByPercentage_FixedRejected(t *testing.T) {
	svc, _, inv := newInterestFixture(t, newFixedInvestment("5000", "12", 30))

	_, err := svc.UpdateByPercentage(context.Background(), inv.ID, decimal.NewFromInt(10), time.Time{}, "")
	if _, ok := err.(*domain.ErrInvalidReturnType); !ok {
		t.Fatalf("expected ErrInvalidReturnType, got %v", err)
	}
}

func TestUpdateByPercentage_InactiveRejected(t *testing.T) {
	inv := newVariableInvestment("5000")
	inv.Status = domain.StatusPending
	svc, _, seeded := newVariableFixture(t, inv)

	_, err := svc.UpdateByPercentage(context.Background(), seeded.ID, decimal.NewFromInt(10), time.Time{}, "")
	if _, ok := err.(*domain.ErrInvestmentNotEligible); !ok {
		t.Fatalf("expected ErrInvestmentNotEligible, got %v", err)
	}
}

func TestUpdateByPercentage_FutureDateRejected(t *testing.T) {
	svc, _, inv := newVariableFixture(t, newVariableInvestment("5000"))

	future := time.Now().Add(24 * time.Hour)
	_, err := svc.UpdateByPercentage(context.Background(), inv.ID, decimal.NewFromInt(10), future, "")
	if _, ok := err.(*domain.ErrValidation); !ok {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

// --- UpdateByBalance ---

func TestUpdateByBalance_ImpliesPercentage(t *testing.T) {
	svc, _, inv := newVariableFixture(t, newVariableInvestment("5500"))

	result, err := svc.UpdateByBalance(context.Background(), inv.ID, decimal.NewFromInt(6000), time.Time{}, "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	assertDecimal(t, result.ReturnAmount, "500", "return amount")
	assertDecimal(t, result.Investment.CurrentBalance, "6000", "new balance")
	// 500 / 5500 * 100 = 9.0909
	if result.CalculatedPercentage == nil {
		t.Fatal("expected calculated percentage")
	}
	assertDecimal(t, *result.CalculatedPercentage, "9.0909", "implied percentage")
}

func TestUpdateByBalance_RoundTripRestoresBalance(t *testing.T) {
	svc, store, inv := newVariableFixture(t, newVariableInvestment("5000"))
	ctx := context.Background()

	if _, err := svc.UpdateByBalance(ctx, inv.ID, decimal.NewFromInt(5500), time.Time{}, ""); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	result, err := svc.UpdateByBalance(ctx, inv.ID, decimal.NewFromInt(5000), time.Time{}, "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	assertDecimal(t, result.Investment.CurrentBalance, "5000", "round-trip balance")

	txs, err := store.ListTransactions(ctx, inv.ID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(txs))
	}
	ledger := domain.LedgerBalance(inv.InitialAmount, txs)
	if !ledger.Equal(result.Investment.CurrentBalance) {
		t.Errorf("balance invariant broken: ledger %s, balance %s", ledger, result.Investment.CurrentBalance)
	}
}

// The two update modes are duals: posting +10% and posting the balance
// that a +10% gain produces must agree on the implied percentage.
func TestUpdateModes_Duality(t *testing.T) {
	ctx := context.Background()

	svcA, _, invA := newVariableFixture(t, newVariableInvestment("5000"))
	byPct, err := svcA.UpdateByPercentage(ctx, invA.ID, decimal.NewFromInt(10), time.Time{}, "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	svcB, _, invB := newVariableFixture(t, newVariableInvestment("5000"))
	byBal, err := svcB.UpdateByBalance(ctx, invB.ID, byPct.Investment.CurrentBalance, time.Time{}, "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !byBal.Investment.CurrentBalance.Equal(byPct.Investment.CurrentBalance) {
		t.Errorf("balances diverge: %s vs %s", byBal.Investment.CurrentBalance, byPct.Investment.CurrentBalance)
	}
	if byBal.CalculatedPercentage == nil {
		t.Fatal("expected implied percentage")
	}
	diff := byBal.CalculatedPercentage.Sub(decimal.NewFromInt(10)).Abs()
	if diff.GreaterThan(decimal.RequireFromString("0.0001")) {
		t.Errorf("implied percentage %s deviates from 10 by more than tolerance", byBal.CalculatedPercentage)
	}
}

func TestUpdateByBalance_NegativeRejected(t *testing.T) {
	svc, _, inv := newVariableFixture(t, newVariableInvestment("5000"))

	_, err := svc.UpdateByBalance(context.Background(), inv.ID, decimal.NewFromInt(-100), time.Time{}, "")
	if _, ok := err.(*domain.ErrNegativeBalance); !ok {
		t.Fatalf("expected ErrNegativeBalance, got %v", err)
	}
}

func TestUpdateByBalance_ZeroPriorBalance(t *testing.T) {
	svc, _, inv := newVariableFixture(t, newVariableInvestment("0"))

	result, err := svc.UpdateByBalance(context.Background(), inv.ID, decimal.NewFromInt(100), time.Time{}, "initial mark")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.CalculatedPercentage != nil {
		t.Errorf("expected nil percentage against zero balance, got %s", result.CalculatedPercentage)
	}
	assertDecimal(t, result.ReturnAmount, "100", "return amount")
	assertDecimal(t, result.Investment.CurrentBalance, "100", "new balance")
}

func TestUpdateByBalance_ZeroDelta(t *testing.T) {
	svc, _, inv := newVariableFixture(t, newVariableInvestment("5000"))

	result, err := svc.UpdateByBalance(context.Background(), inv.ID, decimal.NewFromInt(5000), time.Time{}, "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	assertDecimal(t, result.ReturnAmount, "0", "return amount")
	if result.CalculatedPercentage == nil {
		t.Fatal("expected a percentage for zero delta on non-zero balance")
	}
	assertDecimal(t, *result.CalculatedPercentage, "0", "implied percentage")
}
