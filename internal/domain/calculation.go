package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Interest calculations (FIXED accrual ledger)
// ============================================================

// CalculationType records whether an accrual was posted by the
// scheduler (AUTOMATIC) or by an explicit caller (MANUAL).
type CalculationType string

const (
	CalcAutomatic CalculationType = "AUTOMATIC"
	CalcManual    CalculationType = "MANUAL"
)

// InterestCalculation is one committed accrual. The period is
// half-open: [PeriodStart, PeriodEnd), PeriodEnd exclusive.
type InterestCalculation struct {
	ID              string          `json:"id"`
	InvestmentID    string          `json:"investmentId"`
	CalculationType CalculationType `json:"calculationType"`
	PeriodStart     time.Time       `json:"periodStart"`
	PeriodEnd       time.Time       `json:"periodEnd"`
	PrincipalAmount decimal.Decimal `json:"principalAmount"`
	InterestRate    decimal.Decimal `json:"interestRate"`
	InterestEarned  decimal.Decimal `json:"interestEarned"`
	NewBalance      decimal.Decimal `json:"newBalance"`
	TransactionID   string          `json:"transactionId"`
	IsReverted      bool            `json:"isReverted"`
	RevertedAt      *time.Time      `json:"revertedAt,omitempty"`
	CalculatedAt    time.Time       `json:"calculatedAt"`
}

// InterestPreview is the side-effect-free projection of the next
// accrual. Calling Preview twice with no intervening mutation returns
// identical output.
type InterestPreview struct {
	// Preview is always true on the wire; clients use it to tell a
	// projection apart from a committed calculation payload.
	Preview         bool            `json:"preview"`
	InvestmentID    string          `json:"investmentId"`
	Days            int             `json:"days"`
	PrincipalAmount decimal.Decimal `json:"principalAmount"`
	InterestRate    decimal.Decimal `json:"interestRate"`
	Interest        decimal.Decimal `json:"interest"`
	NewBalance      decimal.Decimal `json:"newBalance"`
	PeriodStart     time.Time       `json:"periodStart"`
	PeriodEnd       time.Time       `json:"periodEnd"`
}

// ScheduleUpdate is the configuration mutation for automatic accrual.
// It never touches the balance.
type ScheduleUpdate struct {
	AutoCalculate        bool                 `json:"autoCalculate"`
	CompoundingFrequency CompoundingFrequency `json:"compoundingFrequency"`
}

// ============================================================
// Ledger commit payloads
// ============================================================
//
// Mutations reach the Ledger Service as single atomic commits: either
// the transaction, the calculation record and the investment update all
// apply, or none do. Each commit carries the balance the caller derived
// its numbers from; the store rejects the commit with
// ErrConcurrentModification when the stored balance has moved.

// AccrualCommit commits one fixed-interest accrual.
type AccrualCommit struct {
	InvestmentID    string
	CalculationType CalculationType
	PeriodStart     time.Time
	PeriodEnd       time.Time
	ExpectedBalance decimal.Decimal // principal the interest was derived from
	InterestRate    decimal.Decimal
	InterestEarned  decimal.Decimal
	NewBalance      decimal.Decimal
	NextInterestDue time.Time
}

// AccrualResult is the committed state returned by the ledger.
type AccrualResult struct {
	Calculation *InterestCalculation `json:"calculation"`
	Transaction *Transaction         `json:"transaction"`
	Investment  *Investment          `json:"investment"`
}

// AccrualRevert reverts the most recent non-reverted calculation.
type AccrualRevert struct {
	InvestmentID  string
	CalculationID string
	// RestoredBalance is the principal recorded by the calculation
	// being reverted; the investment balance returns to it exactly.
	RestoredBalance decimal.Decimal
	RevertedAt      time.Time
}

// RevertResult is the state after a revert.
type RevertResult struct {
	Calculation *InterestCalculation `json:"calculation"`
	Investment  *Investment          `json:"investment"`
}

// ReturnCommit commits one variable-return update (by percentage or by
// resulting balance). Amount keeps its sign; a loss posts negative.
type ReturnCommit struct {
	InvestmentID    string
	ExpectedBalance decimal.Decimal
	Amount          decimal.Decimal
	NewBalance      decimal.Decimal
	Percentage      *decimal.Decimal // nil when the prior balance was zero
	Description     string
	EffectiveDate   time.Time
}

// ReturnResult is the committed state of a variable-return update.
type ReturnResult struct {
	Transaction *Transaction `json:"transaction"`
	Investment  *Investment  `json:"investment"`
}

// Pagination describes one page of a paged listing.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// CalculationPage is one page of the calculation history ledger.
type CalculationPage struct {
	Items      []InterestCalculation `json:"items"`
	Pagination Pagination            `json:"pagination"`
}
