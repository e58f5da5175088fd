package service

import (
	"math"
	"sort"
	"time"

	"github.com/oleandro/investtrack-calc-go/internal/domain"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"
)

// closingBalance is the balance at end of one transaction date.
type closingBalance struct {
	date    string // YYYY-MM-DD
	balance decimal.Decimal
}

// computePerformance derives the full performance view for one
// investment from its initial amount and ledger. The balance series is
// rebuilt by folding signed amounts, not by trusting the per-row
// balance snapshots, so reverted entries fall out naturally.
//
// Output is deterministic for a given (investment, transactions, asOf
// date): LastUpdated comes from the data, and trailing windows bucket
// asOf to a UTC calendar date.
func computePerformance(inv *domain.Investment, txs []domain.Transaction, asOf time.Time, riskFreeRate float64) *domain.InvestmentPerformance {
	active := make([]domain.Transaction, 0, len(txs))
	for i := range txs {
		if !txs[i].IsReverted {
			active = append(active, txs[i])
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if !active[i].TransactionDate.Equal(active[j].TransactionDate) {
			return active[i].TransactionDate.Before(active[j].TransactionDate)
		}
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})

	closings := buildClosingBalances(inv.InitialAmount, active)
	dayReturns := buildDayReturns(inv.InitialAmount, closings)

	perf := &domain.InvestmentPerformance{
		InvestmentID:   inv.ID,
		InvestmentName: inv.Name,
		Category:       inv.Category,
		InitialAmount:  inv.InitialAmount,
		CurrentValue:   inv.CurrentBalance,
		TotalReturn:    inv.CurrentBalance.Sub(inv.InitialAmount),
		LastUpdated:    lastUpdated(inv, txs),
	}
	if inv.InitialAmount.IsPositive() {
		perf.TotalReturnRate, _ = perf.TotalReturn.Div(inv.InitialAmount).Mul(decimal.NewFromInt(100)).Float64()
	}

	asOfDay := asOf.UTC().Truncate(24 * time.Hour)
	perf.DailyReturn = trailingReturn(inv, closings, asOfDay, 1)
	perf.WeeklyReturn = trailingReturn(inv, closings, asOfDay, 7)
	perf.MonthlyReturn = trailingReturn(inv, closings, asOfDay, 30)
	perf.QuarterlyReturn = trailingReturn(inv, closings, asOfDay, 91)
	perf.YearlyReturn = trailingReturn(inv, closings, asOfDay, 365)

	perf.Metrics = domain.PerformanceMetrics{
		TotalReturn:      perf.TotalReturn,
		TotalReturnRate:  perf.TotalReturnRate,
		AnnualizedReturn: annualizedReturn(perf.TotalReturnRate, inv.StartDate, asOfDay),
		Volatility:       volatility(dayReturns),
		MaxDrawdown:      maxDrawdown(inv.InitialAmount, closings),
	}
	perf.Metrics.BestDay, perf.Metrics.WorstDay = extremeDays(dayReturns)
	if perf.Metrics.Volatility > 0 {
		perf.Metrics.SharpeRatio = (perf.Metrics.AnnualizedReturn - riskFreeRate) / perf.Metrics.Volatility
	}

	return perf
}

// buildClosingBalances folds the sorted active transactions into one
// closing balance per transaction date.
func buildClosingBalances(initial decimal.Decimal, sorted []domain.Transaction) []closingBalance {
	var out []closingBalance
	running := initial
	for i := range sorted {
		running = running.Add(sorted[i].SignedAmount())
		date := sorted[i].TransactionDate.UTC().Format("2006-01-02")
		if n := len(out); n > 0 && out[n-1].date == date {
			out[n-1].balance = running
		} else {
			out = append(out, closingBalance{date: date, balance: running})
		}
	}
	return out
}

// buildDayReturns computes the percent change of each closing balance
// against the previous one (the initial amount for the first date).
// Days with a non-positive prior balance report 0.
func buildDayReturns(initial decimal.Decimal, closings []closingBalance) []domain.DayReturn {
	out := make([]domain.DayReturn, 0, len(closings))
	prev := initial
	for _, c := range closings {
		var ret float64
		if prev.IsPositive() {
			ret, _ = c.balance.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)).Float64()
		}
		out = append(out, domain.DayReturn{Date: c.date, Return: ret})
		prev = c.balance
	}
	return out
}

// balanceOn returns the closing balance on the latest transaction date
// at or before day, or the initial amount when day falls between the
// start date and the first transaction.
func balanceOn(inv *domain.Investment, closings []closingBalance, day time.Time) (decimal.Decimal, bool) {
	if day.Before(inv.StartDate.UTC().Truncate(24 * time.Hour)) {
		return decimal.Zero, false
	}
	date := day.Format("2006-01-02")
	balance := inv.InitialAmount
	for _, c := range closings {
		if c.date > date {
			break
		}
		balance = c.balance
	}
	return balance, true
}

// trailingReturn is the percent change of the current balance against
// the balance `days` ago. Windows reaching back before the start date
// report 0: there is not enough history to measure them.
func trailingReturn(inv *domain.Investment, closings []closingBalance, asOfDay time.Time, days int) float64 {
	then := asOfDay.AddDate(0, 0, -days)
	base, ok := balanceOn(inv, closings, then)
	if !ok || !base.IsPositive() {
		return 0
	}
	ret, _ := inv.CurrentBalance.Sub(base).Div(base).Mul(decimal.NewFromInt(100)).Float64()
	return ret
}

// annualizedReturn geometrically scales the total return rate to a
// 365-day horizon. Before a full day has elapsed the total rate is
// returned as-is, and a total loss caps at -100.
func annualizedReturn(totalRate float64, startDate, asOfDay time.Time) float64 {
	elapsed := asOfDay.Sub(startDate.UTC().Truncate(24*time.Hour)).Hours() / 24
	if elapsed < 1 {
		return totalRate
	}
	base := 1 + totalRate/100
	if base <= 0 {
		return -100
	}
	return (math.Pow(base, 365/elapsed) - 1) * 100
}

// volatility is the population standard deviation of the daily returns.
// Fewer than two observations yield 0.
func volatility(dayReturns []domain.DayReturn) float64 {
	if len(dayReturns) < 2 {
		return 0
	}
	values := make([]float64, len(dayReturns))
	for i, d := range dayReturns {
		values[i] = d.Return
	}
	sd, err := stats.StandardDeviationPopulation(values)
	if err != nil {
		return 0
	}
	return sd
}

// maxDrawdown is the largest peak-to-trough decline, in percent, over
// the balance series starting at the initial amount.
func maxDrawdown(initial decimal.Decimal, closings []closingBalance) float64 {
	peak := initial
	var worst float64
	for _, c := range closings {
		if c.balance.GreaterThan(peak) {
			peak = c.balance
			continue
		}
		if peak.IsPositive() {
			dd, _ := peak.Sub(c.balance).Div(peak).Mul(decimal.NewFromInt(100)).Float64()
			if dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// extremeDays picks the best and worst daily returns. An empty series
// yields zero values.
func extremeDays(dayReturns []domain.DayReturn) (best, worst domain.DayReturn) {
	for i, d := range dayReturns {
		if i == 0 || d.Return > best.Return {
			best = d
		}
		if i == 0 || d.Return < worst.Return {
			worst = d
		}
	}
	return best, worst
}

// lastUpdated is the most recent write affecting the investment's
// derived view: the creation time of the newest transaction, falling
// back to the investment's own creation time. Reverted entries count,
// since a revert changes the view too.
func lastUpdated(inv *domain.Investment, txs []domain.Transaction) time.Time {
	latest := inv.CreatedAt
	for i := range txs {
		if txs[i].CreatedAt.After(latest) {
			latest = txs[i].CreatedAt
		}
	}
	return latest
}
