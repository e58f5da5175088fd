// Package domain holds the core models and typed errors of the
// investment calculation service. Amounts, balances and rates use
// decimal arithmetic; derived statistical metrics are float64.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Investments
// ============================================================

// InvestmentCategory enumerates the supported asset categories.
type InvestmentCategory string

const (
	CategoryStocks      InvestmentCategory = "STOCKS"
	CategoryBonds       InvestmentCategory = "BONDS"
	CategoryRealEstate  InvestmentCategory = "REAL_ESTATE"
	CategoryCrypto      InvestmentCategory = "CRYPTO"
	CategoryMutualFunds InvestmentCategory = "MUTUAL_FUNDS"
	CategoryOther       InvestmentCategory = "OTHER"
)

// InvestmentStatus is the lifecycle state of an investment.
type InvestmentStatus string

const (
	StatusActive  InvestmentStatus = "ACTIVE"
	StatusClosed  InvestmentStatus = "CLOSED"
	StatusPending InvestmentStatus = "PENDING"
)

// ReturnType distinguishes scheduled interest-rate accrual (FIXED)
// from manually posted, market-driven returns (VARIABLE).
type ReturnType string

const (
	ReturnTypeFixed    ReturnType = "FIXED"
	ReturnTypeVariable ReturnType = "VARIABLE"
)

// CompoundingFrequency controls the cadence at which interest is posted
// for a FIXED investment. The interest rate itself is always an annual
// percentage, prorated by elapsed days (see InterestService).
type CompoundingFrequency string

const (
	CompoundDaily     CompoundingFrequency = "DAILY"
	CompoundMonthly   CompoundingFrequency = "MONTHLY"
	CompoundQuarterly CompoundingFrequency = "QUARTERLY"
	CompoundAnnually  CompoundingFrequency = "ANNUALLY"
)

// PostingInterval returns the scheduling interval for the frequency.
// DAILY: 1 day, MONTHLY: 30, QUARTERLY: 91, ANNUALLY: 365.
func (f CompoundingFrequency) PostingInterval() time.Duration {
	switch f {
	case CompoundMonthly:
		return 30 * 24 * time.Hour
	case CompoundQuarterly:
		return 91 * 24 * time.Hour
	case CompoundAnnually:
		return 365 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Valid reports whether f is one of the supported frequencies.
func (f CompoundingFrequency) Valid() bool {
	switch f {
	case CompoundDaily, CompoundMonthly, CompoundQuarterly, CompoundAnnually:
		return true
	}
	return false
}

// Investment represents a tracked investment. The balance is mutated
// only through committed transactions; initialAmount is immutable.
type Investment struct {
	ID                     string               `json:"id"`
	Name                   string               `json:"name"`
	Currency               string               `json:"currency"`
	Category               InvestmentCategory   `json:"category"`
	InitialAmount          decimal.Decimal      `json:"initialAmount"`
	CurrentBalance         decimal.Decimal      `json:"currentBalance"`
	StartDate              time.Time            `json:"startDate"`
	ReturnType             ReturnType           `json:"returnType"`
	InterestRate           *decimal.Decimal     `json:"interestRate,omitempty"` // annual percent; required for FIXED
	Status                 InvestmentStatus     `json:"status"`
	AutoCalculate          bool                 `json:"autoCalculate"`
	CompoundingFrequency   CompoundingFrequency `json:"compoundingFrequency"`
	LastInterestCalculated *time.Time           `json:"lastInterestCalculated,omitempty"`
	NextInterestDue        *time.Time           `json:"nextInterestDue,omitempty"`
	CreatedAt              time.Time            `json:"createdAt"`
}

// AccrualEligible reports whether the investment can accrue fixed
// interest: ACTIVE, FIXED, and a non-nil rate.
func (inv *Investment) AccrualEligible() bool {
	return inv.Status == StatusActive &&
		inv.ReturnType == ReturnTypeFixed &&
		inv.InterestRate != nil
}

// AccrualPeriodStart is the start of the next accrual period: the later
// of lastInterestCalculated and startDate.
func (inv *Investment) AccrualPeriodStart() time.Time {
	if inv.LastInterestCalculated != nil && inv.LastInterestCalculated.After(inv.StartDate) {
		return *inv.LastInterestCalculated
	}
	return inv.StartDate
}
