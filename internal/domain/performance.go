package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Derived performance (never persisted)
// ============================================================

// DayReturn is the signed daily return on a single transaction date.
type DayReturn struct {
	Date   string  `json:"date"` // YYYY-MM-DD
	Return float64 `json:"return"`
}

// PerformanceMetrics are the risk/return indicators derived from an
// investment's balance history. Volatility is the standard deviation of
// daily period-over-period returns; it is a relative risk indicator,
// not an actuarial figure.
type PerformanceMetrics struct {
	TotalReturn      decimal.Decimal `json:"totalReturn"`
	TotalReturnRate  float64         `json:"totalReturnRate"`
	AnnualizedReturn float64         `json:"annualizedReturn"`
	Volatility       float64         `json:"volatility"`
	SharpeRatio      float64         `json:"sharpeRatio"`
	MaxDrawdown      float64         `json:"maxDrawdown"`
	BestDay          DayReturn       `json:"bestDay"`
	WorstDay         DayReturn       `json:"worstDay"`
}

// InvestmentPerformance is the full derived view for one investment.
// Period returns are trailing windows ending now; windows with
// insufficient history report 0 rather than erroring.
type InvestmentPerformance struct {
	InvestmentID    string             `json:"investmentId"`
	InvestmentName  string             `json:"investmentName"`
	Category        InvestmentCategory `json:"investmentType"`
	InitialAmount   decimal.Decimal    `json:"initialAmount"`
	CurrentValue    decimal.Decimal    `json:"currentValue"`
	TotalReturn     decimal.Decimal    `json:"totalReturn"`
	TotalReturnRate float64            `json:"totalReturnRate"`
	DailyReturn     float64            `json:"dailyReturn"`
	WeeklyReturn    float64            `json:"weeklyReturn"`
	MonthlyReturn   float64            `json:"monthlyReturn"`
	QuarterlyReturn float64            `json:"quarterlyReturn"`
	YearlyReturn    float64            `json:"yearlyReturn"`
	Metrics         PerformanceMetrics `json:"metrics"`
	LastUpdated     time.Time          `json:"lastUpdated"`
}

// PerformerRef identifies the best or worst performing investment.
type PerformerRef struct {
	InvestmentID string  `json:"investmentId"`
	Name         string  `json:"name"`
	ReturnRate   float64 `json:"returnRate"`
}

// PeriodBreakdown is the average return per trailing window across the
// whole portfolio.
type PeriodBreakdown struct {
	Daily     float64 `json:"daily"`
	Weekly    float64 `json:"weekly"`
	Monthly   float64 `json:"monthly"`
	Quarterly float64 `json:"quarterly"`
	Yearly    float64 `json:"yearly"`
}

// PerformanceAnalytics is the portfolio-wide overview.
type PerformanceAnalytics struct {
	TotalInvestments    int                     `json:"totalInvestments"`
	TotalValue          decimal.Decimal         `json:"totalValue"`
	TotalReturns        decimal.Decimal         `json:"totalReturns"`
	AverageReturnRate   float64                 `json:"averageReturnRate"`
	BestPerformer       *PerformerRef           `json:"bestPerformer,omitempty"`
	WorstPerformer      *PerformerRef           `json:"worstPerformer,omitempty"`
	PerformanceByPeriod PeriodBreakdown         `json:"performanceByPeriod"`
	TopPerformers       []InvestmentPerformance `json:"topPerformers"`
}

// ProjectedReturn is one horizon of a return projection.
type ProjectedReturn struct {
	Period             string  `json:"period"`
	ConservativeReturn float64 `json:"conservativeReturn"`
	ModerateReturn     float64 `json:"moderateReturn"`
	AggressiveReturn   float64 `json:"aggressiveReturn"`
}

// ProjectionRisk summarizes downside risk for a projection.
type ProjectionRisk struct {
	Volatility        float64 `json:"volatility"`
	ValueAtRisk       float64 `json:"valueAtRisk"`
	ExpectedShortfall float64 `json:"expectedShortfall"`
}

// ReturnProjection extrapolates historical performance into
// conservative/moderate/aggressive bands.
type ReturnProjection struct {
	InvestmentID     string            `json:"investmentId"`
	ProjectedReturns []ProjectedReturn `json:"projectedReturns"`
	ConfidenceLower  float64           `json:"confidenceLower"`
	ConfidenceUpper  float64           `json:"confidenceUpper"`
	RiskMetrics      ProjectionRisk    `json:"riskMetrics"`
}
