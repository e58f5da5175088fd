// Package service provides the business logic layer (use cases).
// InterestService is the accrual engine for FIXED investments and the
// variable-return updater for VARIABLE ones; ReturnsService derives
// performance metrics from the ledger.
package service

import (
	"context"
	"time"

	"github.com/oleandro/investtrack-calc-go/internal/domain"
	"github.com/oleandro/investtrack-calc-go/internal/infra/observability"
	"github.com/oleandro/investtrack-calc-go/internal/port"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var interestTracer = otel.Tracer("service/interest")

// daysPerYear is the day-count basis: the interest rate is an annual
// percentage, prorated by elapsed whole days over 365. The compounding
// frequency only drives the posting cadence, never the proration.
var daysPerYear = decimal.NewFromInt(365)

var hundred = decimal.NewFromInt(100)

// InterestService orchestrates interest accrual and variable-return
// updates against the Ledger Service.
type InterestService struct {
	store   port.LedgerStore
	locks   *investmentLocks
	cache   port.Cache[*domain.InvestmentPerformance]
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewInterestService creates a new interest service. The cache is the
// performance-view cache shared with ReturnsService; every committed
// mutation invalidates the investment's entry so reads after a commit
// never serve the pre-commit view.
func NewInterestService(store port.LedgerStore, cache port.Cache[*domain.InvestmentPerformance], metrics *observability.Metrics, logger *zap.Logger) *InterestService {
	return &InterestService{
		store:   store,
		locks:   newInvestmentLocks(),
		cache:   cache,
		metrics: metrics,
		logger:  logger,
	}
}

func (s *InterestService) invalidatePerformance(investmentID string) {
	if s.cache != nil {
		s.cache.Delete(investmentID)
	}
}

// ============================================================
// Accrual engine (FIXED investments)
// ============================================================

// Preview projects the next accrual without side effects. The period
// covers whole elapsed days only, so repeated calls with no intervening
// mutation return identical output.
func (s *InterestService) Preview(ctx context.Context, investmentID string) (*domain.InterestPreview, error) {
	ctx, span := interestTracer.Start(ctx, "InterestService.Preview")
	defer span.End()
	span.SetAttributes(attribute.String("investment.id", investmentID))

	inv, err := s.store.GetInvestment(ctx, investmentID)
	if err != nil {
		return nil, err
	}
	return derivePreview(inv, time.Now())
}

// derivePreview computes the accrual quantities from the investment's
// current state. Calculate re-derives through the same path: the engine
// never trusts a client-supplied precomputed value.
func derivePreview(inv *domain.Investment, now time.Time) (*domain.InterestPreview, error) {
	if err := checkAccrualEligibility(inv); err != nil {
		return nil, err
	}

	periodStart := inv.AccrualPeriodStart()
	days := elapsedWholeDays(periodStart, now)
	// period end is derived from the day count, half-open [start, end)
	periodEnd := periodStart.Add(time.Duration(days) * 24 * time.Hour)

	rate := *inv.InterestRate
	principal := inv.CurrentBalance

	// interest = principal * rate/100 * days/365
	interest := principal.
		Mul(rate).
		Mul(decimal.NewFromInt(int64(days))).
		Div(hundred).
		Div(daysPerYear).
		Round(2)

	return &domain.InterestPreview{
		Preview:         true,
		InvestmentID:    inv.ID,
		Days:            days,
		PrincipalAmount: principal,
		InterestRate:    rate,
		Interest:        interest,
		NewBalance:      principal.Add(interest),
		PeriodStart:     periodStart,
		PeriodEnd:       periodEnd,
	}, nil
}

func checkAccrualEligibility(inv *domain.Investment) error {
	switch {
	case inv.ReturnType != domain.ReturnTypeFixed:
		return &domain.ErrInvestmentNotEligible{InvestmentID: inv.ID, Reason: "return type is not FIXED"}
	case inv.Status != domain.StatusActive:
		return &domain.ErrInvestmentNotEligible{InvestmentID: inv.ID, Reason: "investment is not ACTIVE"}
	case inv.InterestRate == nil:
		return &domain.ErrInvestmentNotEligible{InvestmentID: inv.ID, Reason: "interest rate is not set"}
	}
	return nil
}

// elapsedWholeDays counts complete 24h days between from and to.
func elapsedWholeDays(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from).Hours() / 24)
}

// Calculate commits one accrual. The quantities are re-derived under
// the per-investment lock and the commit carries the principal they
// were derived from; a balance moved by a concurrent writer surfaces
// domain.ErrConcurrentModification.
func (s *InterestService) Calculate(ctx context.Context, investmentID string, calcType domain.CalculationType) (*domain.AccrualResult, error) {
	ctx, span := interestTracer.Start(ctx, "InterestService.Calculate")
	defer span.End()
	span.SetAttributes(
		attribute.String("investment.id", investmentID),
		attribute.String("calculation.type", string(calcType)),
	)

	unlock := s.locks.Lock(investmentID)
	defer unlock()

	inv, err := s.store.GetInvestment(ctx, investmentID)
	if err != nil {
		return nil, err
	}

	preview, err := derivePreview(inv, time.Now())
	if err != nil {
		return nil, err
	}
	if preview.Days == 0 {
		return nil, &domain.ErrValidation{
			Field:   "period",
			Message: "no whole day has elapsed since the last calculation",
		}
	}

	commit := &domain.AccrualCommit{
		InvestmentID:    inv.ID,
		CalculationType: calcType,
		PeriodStart:     preview.PeriodStart,
		PeriodEnd:       preview.PeriodEnd,
		ExpectedBalance: preview.PrincipalAmount,
		InterestRate:    preview.InterestRate,
		InterestEarned:  preview.Interest,
		NewBalance:      preview.NewBalance,
		NextInterestDue: preview.PeriodEnd.Add(inv.CompoundingFrequency.PostingInterval()),
	}

	result, err := s.store.CommitAccrual(ctx, commit)
	if err != nil {
		if _, ok := err.(*domain.ErrConcurrentModification); ok {
			s.metrics.IncrConflict()
		}
		return nil, err
	}

	s.invalidatePerformance(inv.ID)
	s.metrics.IncrCalculation(calcType)
	s.logger.Info("interest calculated",
		zap.String("investment_id", inv.ID),
		zap.String("type", string(calcType)),
		zap.Int("days", preview.Days),
		zap.String("interest", preview.Interest.String()),
		zap.String("new_balance", preview.NewBalance.String()),
	)
	return result, nil
}

// Revert undoes the most recent non-reverted calculation (LIFO). The
// RETURN transaction stays in the ledger flagged reverted; the balance
// returns to the calculation's principal exactly. A second revert with
// no calculation left fails with domain.ErrNoCalculationToRevert.
func (s *InterestService) Revert(ctx context.Context, investmentID string) (*domain.RevertResult, error) {
	ctx, span := interestTracer.Start(ctx, "InterestService.Revert")
	defer span.End()
	span.SetAttributes(attribute.String("investment.id", investmentID))

	unlock := s.locks.Lock(investmentID)
	defer unlock()

	// ensure the investment exists before consulting its ledger
	if _, err := s.store.GetInvestment(ctx, investmentID); err != nil {
		return nil, err
	}

	latest, err := s.store.LatestActiveCalculation(ctx, investmentID)
	if err != nil {
		return nil, err
	}

	result, err := s.store.RevertAccrual(ctx, &domain.AccrualRevert{
		InvestmentID:    investmentID,
		CalculationID:   latest.ID,
		RestoredBalance: latest.PrincipalAmount,
		RevertedAt:      time.Now(),
	})
	if err != nil {
		return nil, err
	}

	s.invalidatePerformance(investmentID)
	s.metrics.IncrRevert()
	s.logger.Info("interest calculation reverted",
		zap.String("investment_id", investmentID),
		zap.String("calculation_id", latest.ID),
		zap.String("restored_balance", latest.PrincipalAmount.String()),
	)
	return result, nil
}

// UpdateSchedule is a pure configuration mutation: it never touches the
// balance and is idempotent.
func (s *InterestService) UpdateSchedule(ctx context.Context, investmentID string, sched *domain.ScheduleUpdate) (*domain.Investment, error) {
	ctx, span := interestTracer.Start(ctx, "InterestService.UpdateSchedule")
	defer span.End()
	span.SetAttributes(attribute.String("investment.id", investmentID))

	if !sched.CompoundingFrequency.Valid() {
		return nil, &domain.ErrValidation{
			Field:   "compoundingFrequency",
			Message: "must be one of DAILY, MONTHLY, QUARTERLY, ANNUALLY",
		}
	}

	inv, err := s.store.GetInvestment(ctx, investmentID)
	if err != nil {
		return nil, err
	}
	if inv.ReturnType != domain.ReturnTypeFixed {
		return nil, &domain.ErrInvestmentNotEligible{InvestmentID: investmentID, Reason: "return type is not FIXED"}
	}

	nextDue := time.Now().Add(sched.CompoundingFrequency.PostingInterval())
	return s.store.UpdateSchedule(ctx, investmentID, sched, nextDue)
}

// History returns one page of the calculation ledger, newest first.
func (s *InterestService) History(ctx context.Context, investmentID string, page, limit int) (*domain.CalculationPage, error) {
	ctx, span := interestTracer.Start(ctx, "InterestService.History")
	defer span.End()
	span.SetAttributes(attribute.String("investment.id", investmentID))

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	items, total, err := s.store.ListCalculations(ctx, investmentID, page, limit)
	if err != nil {
		return nil, err
	}

	totalPages := (total + limit - 1) / limit
	return &domain.CalculationPage{
		Items: items,
		Pagination: domain.Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
		},
	}, nil
}
