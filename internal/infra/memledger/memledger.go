// Package memledger implements port.LedgerStore in memory. It backs
// local development (no LEDGER_URL configured) and the test suites.
// Commits are atomic under a single mutex, mirroring the transactional
// boundary the real Ledger Service provides.
package memledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oleandro/investtrack-calc-go/internal/domain"

	"github.com/google/uuid"
)

// Store is an in-memory, append-only ledger keyed by investment.
type Store struct {
	mu           sync.Mutex
	investments  map[string]*domain.Investment
	transactions map[string][]domain.Transaction
	calculations map[string][]domain.InterestCalculation
}

// New creates an empty store.
func New() *Store {
	return &Store{
		investments:  make(map[string]*domain.Investment),
		transactions: make(map[string][]domain.Transaction),
		calculations: make(map[string][]domain.InterestCalculation),
	}
}

// Seed inserts an investment, assigning an ID when missing.
// Intended for development fixtures and tests.
func (s *Store) Seed(inv domain.Investment) *domain.Investment {
	s.mu.Lock()
	defer s.mu.Unlock()

	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now()
	}
	s.investments[inv.ID] = &inv
	seeded := inv
	return &seeded
}

// --- Investments ---

func (s *Store) GetInvestment(_ context.Context, investmentID string) (*domain.Investment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.investments[investmentID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "investment", ID: investmentID}
	}
	invCopy := *inv
	return &invCopy, nil
}

func (s *Store) ListInvestments(_ context.Context) ([]domain.Investment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Investment, 0, len(s.investments))
	for _, inv := range s.investments {
		out = append(out, *inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListDueInvestments(_ context.Context, now time.Time) ([]domain.Investment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Investment
	for _, inv := range s.investments {
		if !inv.AutoCalculate || !inv.AccrualEligible() {
			continue
		}
		if inv.NextInterestDue != nil && inv.NextInterestDue.After(now) {
			continue
		}
		out = append(out, *inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- Transactions ---

func (s *Store) ListTransactions(_ context.Context, investmentID string) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.investments[investmentID]; !ok {
		return nil, &domain.ErrNotFound{Resource: "investment", ID: investmentID}
	}
	txs := s.transactions[investmentID]
	out := make([]domain.Transaction, len(txs))
	copy(out, txs)
	return out, nil
}

// --- Calculations ---

func (s *Store) ListCalculations(_ context.Context, investmentID string, page, limit int) ([]domain.InterestCalculation, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.investments[investmentID]; !ok {
		return nil, 0, &domain.ErrNotFound{Resource: "investment", ID: investmentID}
	}

	calcs := s.calculations[investmentID]
	total := len(calcs)

	// newest first
	ordered := make([]domain.InterestCalculation, total)
	for i := range calcs {
		ordered[total-1-i] = calcs[i]
	}

	start := (page - 1) * limit
	if start >= total {
		return []domain.InterestCalculation{}, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return ordered[start:end], total, nil
}

func (s *Store) LatestActiveCalculation(_ context.Context, investmentID string) (*domain.InterestCalculation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	calcs := s.calculations[investmentID]
	for i := len(calcs) - 1; i >= 0; i-- {
		if !calcs[i].IsReverted {
			c := calcs[i]
			return &c, nil
		}
	}
	return nil, &domain.ErrNoCalculationToRevert{InvestmentID: investmentID}
}

// --- Atomic commits ---

func (s *Store) CommitAccrual(_ context.Context, commit *domain.AccrualCommit) (*domain.AccrualResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.investments[commit.InvestmentID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "investment", ID: commit.InvestmentID}
	}
	if !inv.CurrentBalance.Equal(commit.ExpectedBalance) {
		return nil, &domain.ErrConcurrentModification{InvestmentID: commit.InvestmentID}
	}

	now := time.Now()
	tx := domain.Transaction{
		ID:              uuid.New().String(),
		InvestmentID:    inv.ID,
		Type:            domain.TxReturn,
		Amount:          commit.InterestEarned,
		Balance:         commit.NewBalance,
		Description:     "Interest accrual",
		TransactionDate: commit.PeriodEnd,
		CreatedAt:       now,
	}

	calc := domain.InterestCalculation{
		ID:              uuid.New().String(),
		InvestmentID:    inv.ID,
		CalculationType: commit.CalculationType,
		PeriodStart:     commit.PeriodStart,
		PeriodEnd:       commit.PeriodEnd,
		PrincipalAmount: commit.ExpectedBalance,
		InterestRate:    commit.InterestRate,
		InterestEarned:  commit.InterestEarned,
		NewBalance:      commit.NewBalance,
		TransactionID:   tx.ID,
		CalculatedAt:    now,
	}

	s.transactions[inv.ID] = append(s.transactions[inv.ID], tx)
	s.calculations[inv.ID] = append(s.calculations[inv.ID], calc)

	inv.CurrentBalance = commit.NewBalance
	lastCalc := commit.PeriodEnd
	inv.LastInterestCalculated = &lastCalc
	nextDue := commit.NextInterestDue
	inv.NextInterestDue = &nextDue

	invCopy := *inv
	return &domain.AccrualResult{
		Calculation: &calc,
		Transaction: &tx,
		Investment:  &invCopy,
	}, nil
}

func (s *Store) RevertAccrual(_ context.Context, revert *domain.AccrualRevert) (*domain.RevertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.investments[revert.InvestmentID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "investment", ID: revert.InvestmentID}
	}

	calcs := s.calculations[revert.InvestmentID]
	idx := -1
	for i := len(calcs) - 1; i >= 0; i-- {
		if !calcs[i].IsReverted {
			idx = i
			break
		}
	}
	if idx < 0 || calcs[idx].ID != revert.CalculationID {
		// already reverted or superseded since the caller looked
		return nil, &domain.ErrNoCalculationToRevert{InvestmentID: revert.InvestmentID}
	}

	at := revert.RevertedAt
	calcs[idx].IsReverted = true
	calcs[idx].RevertedAt = &at

	// flag the RETURN transaction; the ledger keeps it for audit
	txs := s.transactions[revert.InvestmentID]
	for i := range txs {
		if txs[i].ID == calcs[idx].TransactionID {
			txs[i].IsReverted = true
			break
		}
	}

	inv.CurrentBalance = revert.RestoredBalance
	if prev := previousActivePeriodEnd(calcs, idx); prev != nil {
		inv.LastInterestCalculated = prev
	} else {
		inv.LastInterestCalculated = nil
	}

	calcCopy := calcs[idx]
	invCopy := *inv
	return &domain.RevertResult{
		Calculation: &calcCopy,
		Investment:  &invCopy,
	}, nil
}

// previousActivePeriodEnd finds the period end of the most recent
// non-reverted calculation before idx, so the accrual clock rewinds
// together with the balance.
func previousActivePeriodEnd(calcs []domain.InterestCalculation, idx int) *time.Time {
	for i := idx - 1; i >= 0; i-- {
		if !calcs[i].IsReverted {
			end := calcs[i].PeriodEnd
			return &end
		}
	}
	return nil
}

func (s *Store) CommitReturn(_ context.Context, commit *domain.ReturnCommit) (*domain.ReturnResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.investments[commit.InvestmentID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "investment", ID: commit.InvestmentID}
	}
	if !inv.CurrentBalance.Equal(commit.ExpectedBalance) {
		return nil, &domain.ErrConcurrentModification{InvestmentID: commit.InvestmentID}
	}

	tx := domain.Transaction{
		ID:              uuid.New().String(),
		InvestmentID:    inv.ID,
		Type:            domain.TxReturn,
		Amount:          commit.Amount,
		Balance:         commit.NewBalance,
		Percentage:      commit.Percentage,
		Description:     commit.Description,
		TransactionDate: commit.EffectiveDate,
		CreatedAt:       time.Now(),
	}
	s.transactions[inv.ID] = append(s.transactions[inv.ID], tx)

	// balance is set directly, not re-derived, to avoid drift
	inv.CurrentBalance = commit.NewBalance

	invCopy := *inv
	return &domain.ReturnResult{
		Transaction: &tx,
		Investment:  &invCopy,
	}, nil
}

func (s *Store) UpdateSchedule(_ context.Context, investmentID string, sched *domain.ScheduleUpdate, nextDue time.Time) (*domain.Investment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.investments[investmentID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "investment", ID: investmentID}
	}

	inv.AutoCalculate = sched.AutoCalculate
	inv.CompoundingFrequency = sched.CompoundingFrequency
	if sched.AutoCalculate {
		inv.NextInterestDue = &nextDue
	} else {
		inv.NextInterestDue = nil
	}

	invCopy := *inv
	return &invCopy, nil
}
