package service

import (
	"context"
	"time"

	"github.com/oleandro/investtrack-calc-go/internal/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Variable Return Updater (VARIABLE investments)
// ============================================================
//
// Two dual, inverse operations: given a percentage, compute the new
// balance; given a new balance, back out the implied percentage. Each
// call appends exactly one RETURN transaction.

// VariablePercentageResult is the outcome of UpdateByPercentage.
type VariablePercentageResult struct {
	Transaction      *domain.Transaction `json:"transaction"`
	Investment       *domain.Investment  `json:"investment"`
	CalculatedAmount decimal.Decimal     `json:"calculatedAmount"`
}

// VariableBalanceResult is the outcome of UpdateByBalance.
// CalculatedPercentage is nil when the prior balance was zero: the
// balance update itself is still valid, the percentage is undefined.
type VariableBalanceResult struct {
	Transaction          *domain.Transaction `json:"transaction"`
	Investment           *domain.Investment  `json:"investment"`
	CalculatedPercentage *decimal.Decimal    `json:"calculatedPercentage"`
	ReturnAmount         decimal.Decimal     `json:"returnAmount"`
}

// UpdateByPercentage posts a market return expressed as a percentage of
// the current balance. Negative percentages record losses.
func (s *InterestService) UpdateByPercentage(ctx context.Context, investmentID string, percentage decimal.Decimal, effectiveDate time.Time, description string) (*VariablePercentageResult, error) {
	ctx, span := interestTracer.Start(ctx, "InterestService.UpdateByPercentage")
	defer span.End()
	span.SetAttributes(attribute.String("investment.id", investmentID))

	effectiveDate, err := normalizeEffectiveDate(effectiveDate)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(investmentID)
	defer unlock()

	inv, err := s.store.GetInvestment(ctx, investmentID)
	if err != nil {
		return nil, err
	}
	if err := checkVariableEligibility(inv); err != nil {
		return nil, err
	}

	amount := inv.CurrentBalance.Mul(percentage).Div(hundred).Round(2)
	newBalance := inv.CurrentBalance.Add(amount)
	if newBalance.IsNegative() {
		return nil, &domain.ErrNegativeBalance{InvestmentID: investmentID, Resulting: newBalance.String()}
	}

	pct := percentage
	result, err := s.store.CommitReturn(ctx, &domain.ReturnCommit{
		InvestmentID:    inv.ID,
		ExpectedBalance: inv.CurrentBalance,
		Amount:          amount,
		NewBalance:      newBalance,
		Percentage:      &pct,
		Description:     description,
		EffectiveDate:   effectiveDate,
	})
	if err != nil {
		if _, ok := err.(*domain.ErrConcurrentModification); ok {
			s.metrics.IncrConflict()
		}
		return nil, err
	}

	s.invalidatePerformance(inv.ID)
	s.metrics.IncrVariableUpdate("percentage")
	s.logger.Info("variable return posted by percentage",
		zap.String("investment_id", inv.ID),
		zap.String("percentage", percentage.String()),
		zap.String("amount", amount.String()),
		zap.String("new_balance", newBalance.String()),
	)
	return &VariablePercentageResult{
		Transaction:      result.Transaction,
		Investment:       result.Investment,
		CalculatedAmount: amount,
	}, nil
}

// UpdateByBalance posts a market return expressed as the resulting
// balance. The balance is set directly to newBalance, not re-derived
// from the return amount, to avoid floating-point drift.
func (s *InterestService) UpdateByBalance(ctx context.Context, investmentID string, newBalance decimal.Decimal, effectiveDate time.Time, description string) (*VariableBalanceResult, error) {
	ctx, span := interestTracer.Start(ctx, "InterestService.UpdateByBalance")
	defer span.End()
	span.SetAttributes(attribute.String("investment.id", investmentID))

	effectiveDate, err := normalizeEffectiveDate(effectiveDate)
	if err != nil {
		return nil, err
	}
	if newBalance.IsNegative() {
		return nil, &domain.ErrNegativeBalance{InvestmentID: investmentID, Resulting: newBalance.String()}
	}

	unlock := s.locks.Lock(investmentID)
	defer unlock()

	inv, err := s.store.GetInvestment(ctx, investmentID)
	if err != nil {
		return nil, err
	}
	if err := checkVariableEligibility(inv); err != nil {
		return nil, err
	}

	returnAmount := newBalance.Sub(inv.CurrentBalance)

	// percentage is undefined against a zero balance; the update stands
	var percentage *decimal.Decimal
	if !inv.CurrentBalance.IsZero() {
		p := returnAmount.Div(inv.CurrentBalance).Mul(hundred).Round(4)
		percentage = &p
	}

	result, err := s.store.CommitReturn(ctx, &domain.ReturnCommit{
		InvestmentID:    inv.ID,
		ExpectedBalance: inv.CurrentBalance,
		Amount:          returnAmount,
		NewBalance:      newBalance,
		Percentage:      percentage,
		Description:     description,
		EffectiveDate:   effectiveDate,
	})
	if err != nil {
		if _, ok := err.(*domain.ErrConcurrentModification); ok {
			s.metrics.IncrConflict()
		}
		return nil, err
	}

	s.invalidatePerformance(inv.ID)
	s.metrics.IncrVariableUpdate("balance")
	s.logger.Info("variable return posted by balance",
		zap.String("investment_id", inv.ID),
		zap.String("return_amount", returnAmount.String()),
		zap.String("new_balance", newBalance.String()),
	)
	return &VariableBalanceResult{
		Transaction:          result.Transaction,
		Investment:           result.Investment,
		CalculatedPercentage: percentage,
		ReturnAmount:         returnAmount,
	}, nil
}

func checkVariableEligibility(inv *domain.Investment) error {
	if inv.ReturnType != domain.ReturnTypeVariable {
		return &domain.ErrInvalidReturnType{InvestmentID: inv.ID, ReturnType: inv.ReturnType}
	}
	if inv.Status != domain.StatusActive {
		return &domain.ErrInvestmentNotEligible{InvestmentID: inv.ID, Reason: "investment is not ACTIVE"}
	}
	return nil
}

// normalizeEffectiveDate defaults a zero date to now and rejects
// future-dated updates.
func normalizeEffectiveDate(effectiveDate time.Time) (time.Time, error) {
	now := time.Now()
	if effectiveDate.IsZero() {
		return now, nil
	}
	if effectiveDate.After(now) {
		return time.Time{}, &domain.ErrValidation{
			Field:   "effectiveDate",
			Message: "must not be in the future",
		}
	}
	return effectiveDate, nil
}
