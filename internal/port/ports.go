// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/oleandro/investtrack-calc-go/internal/domain"
)

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// LedgerStore is the contract with the Ledger Service, the remote
// accounting backend that owns persistence. Mutations are single
// atomic commits: the transaction, the calculation record and the
// investment update all apply or none do. Every commit carries the
// balance the caller derived its numbers from; the store returns
// domain.ErrConcurrentModification when the stored balance has moved.
type LedgerStore interface {
	// Investments
	GetInvestment(ctx context.Context, investmentID string) (*domain.Investment, error)
	ListInvestments(ctx context.Context) ([]domain.Investment, error)
	// ListDueInvestments returns ACTIVE FIXED investments with
	// autoCalculate set whose nextInterestDue is at or before now.
	ListDueInvestments(ctx context.Context, now time.Time) ([]domain.Investment, error)

	// Transactions (ledger order, oldest first)
	ListTransactions(ctx context.Context, investmentID string) ([]domain.Transaction, error)

	// Interest calculations
	ListCalculations(ctx context.Context, investmentID string, page, limit int) ([]domain.InterestCalculation, int, error)
	LatestActiveCalculation(ctx context.Context, investmentID string) (*domain.InterestCalculation, error)

	// Atomic commits
	CommitAccrual(ctx context.Context, commit *domain.AccrualCommit) (*domain.AccrualResult, error)
	RevertAccrual(ctx context.Context, revert *domain.AccrualRevert) (*domain.RevertResult, error)
	CommitReturn(ctx context.Context, commit *domain.ReturnCommit) (*domain.ReturnResult, error)

	// Schedule configuration (no balance effect)
	UpdateSchedule(ctx context.Context, investmentID string, sched *domain.ScheduleUpdate, nextDue time.Time) (*domain.Investment, error)
}
