// Package scheduler runs the automatic interest accrual loop. It is an
// ordinary caller of the interest service: same locking, same atomic
// commits, same metrics as a manual calculation.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/oleandro/investtrack-calc-go/internal/domain"
	"github.com/oleandro/investtrack-calc-go/internal/port"
	"github.com/oleandro/investtrack-calc-go/internal/service"

	"go.uber.org/zap"
)

// Scheduler periodically posts due accruals for auto-calculate FIXED
// investments.
type Scheduler struct {
	store    port.LedgerStore
	interest *service.InterestService
	interval time.Duration
	logger   *zap.Logger
}

// New creates a scheduler ticking at the given interval.
func New(store port.LedgerStore, interest *service.InterestService, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		store:    store,
		interest: interest,
		interval: interval,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled, executing one pass per tick. The
// first pass runs immediately so a restart does not delay overdue
// accruals by a full interval.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("accrual scheduler started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("accrual scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single pass: one accrual per due investment.
// Failures are logged and skipped; the next pass picks them up again.
func (s *Scheduler) RunOnce(ctx context.Context) {
	due, err := s.store.ListDueInvestments(ctx, time.Now())
	if err != nil {
		s.logger.Error("scheduler: listing due investments failed", zap.Error(err))
		return
	}
	if len(due) == 0 {
		return
	}
	s.logger.Info("scheduler pass", zap.Int("due_investments", len(due)))

	for i := range due {
		if ctx.Err() != nil {
			return
		}
		result, err := s.interest.Calculate(ctx, due[i].ID, domain.CalcAutomatic)
		if err != nil {
			// A zero-day period just means the investment became due
			// within the last day; not worth an error log.
			var validation *domain.ErrValidation
			if errors.As(err, &validation) {
				s.logger.Debug("scheduler: accrual skipped",
					zap.String("investment_id", due[i].ID),
					zap.String("reason", validation.Message),
				)
				continue
			}
			s.logger.Error("scheduler: accrual failed",
				zap.String("investment_id", due[i].ID),
				zap.Error(err),
			)
			continue
		}
		s.logger.Info("scheduler: interest posted",
			zap.String("investment_id", due[i].ID),
			zap.String("interest", result.Calculation.InterestEarned.String()),
			zap.String("new_balance", result.Calculation.NewBalance.String()),
		)
	}
}
