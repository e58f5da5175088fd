package service

import (
	"context"
	"sort"
	"time"

	"github.com/oleandro/investtrack-calc-go/internal/domain"
	"github.com/oleandro/investtrack-calc-go/internal/infra/observability"
	"github.com/oleandro/investtrack-calc-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var returnsTracer = otel.Tracer("service/returns")

// performanceFanout caps concurrent per-investment computations in the
// bulk endpoints.
const performanceFanout = 8

// ReturnsService derives performance metrics from investment balance
// history. It is read-only: calling it twice with unchanged underlying
// data yields identical output, which makes the results cacheable.
type ReturnsService struct {
	store        port.LedgerStore
	cache        port.Cache[*domain.InvestmentPerformance]
	metrics      *observability.Metrics
	logger       *zap.Logger
	riskFreeRate float64 // annual percent used by the Sharpe ratio, default 0
}

// NewReturnsService creates a new returns service.
func NewReturnsService(store port.LedgerStore, cache port.Cache[*domain.InvestmentPerformance], metrics *observability.Metrics, riskFreeRate float64, logger *zap.Logger) *ReturnsService {
	return &ReturnsService{
		store:        store,
		cache:        cache,
		metrics:      metrics,
		logger:       logger,
		riskFreeRate: riskFreeRate,
	}
}

// PerformanceFor computes (or serves from cache) the derived
// performance view of one investment.
func (s *ReturnsService) PerformanceFor(ctx context.Context, investmentID string) (*domain.InvestmentPerformance, error) {
	ctx, span := returnsTracer.Start(ctx, "ReturnsService.PerformanceFor")
	defer span.End()
	span.SetAttributes(attribute.String("investment.id", investmentID))

	if cached, ok := s.cache.Get(investmentID); ok {
		s.metrics.IncrCacheHit("performance")
		return cached, nil
	}
	s.metrics.IncrCacheMiss("performance")

	inv, err := s.store.GetInvestment(ctx, investmentID)
	if err != nil {
		return nil, err
	}
	txs, err := s.store.ListTransactions(ctx, investmentID)
	if err != nil {
		return nil, err
	}

	perf := computePerformance(inv, txs, time.Now(), s.riskFreeRate)
	s.cache.Set(investmentID, perf)
	return perf, nil
}

// Performances computes the derived view for every investment, with
// bounded fan-out.
func (s *ReturnsService) Performances(ctx context.Context) ([]domain.InvestmentPerformance, error) {
	ctx, span := returnsTracer.Start(ctx, "ReturnsService.Performances")
	defer span.End()

	investments, err := s.store.ListInvestments(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.InvestmentPerformance, len(investments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(performanceFanout)

	for i := range investments {
		i := i
		g.Go(func() error {
			perf, err := s.PerformanceFor(gctx, investments[i].ID)
			if err != nil {
				return err
			}
			out[i] = *perf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Analytics aggregates the portfolio-wide performance overview.
func (s *ReturnsService) Analytics(ctx context.Context) (*domain.PerformanceAnalytics, error) {
	ctx, span := returnsTracer.Start(ctx, "ReturnsService.Analytics")
	defer span.End()

	performances, err := s.Performances(ctx)
	if err != nil {
		return nil, err
	}

	analytics := &domain.PerformanceAnalytics{
		TotalInvestments: len(performances),
	}
	if len(performances) == 0 {
		analytics.TopPerformers = []domain.InvestmentPerformance{}
		return analytics, nil
	}

	var sumRate float64
	var breakdown domain.PeriodBreakdown
	best, worst := &performances[0], &performances[0]
	for i := range performances {
		p := &performances[i]
		analytics.TotalValue = analytics.TotalValue.Add(p.CurrentValue)
		analytics.TotalReturns = analytics.TotalReturns.Add(p.TotalReturn)
		sumRate += p.TotalReturnRate
		breakdown.Daily += p.DailyReturn
		breakdown.Weekly += p.WeeklyReturn
		breakdown.Monthly += p.MonthlyReturn
		breakdown.Quarterly += p.QuarterlyReturn
		breakdown.Yearly += p.YearlyReturn
		if p.TotalReturnRate > best.TotalReturnRate {
			best = p
		}
		if p.TotalReturnRate < worst.TotalReturnRate {
			worst = p
		}
	}

	n := float64(len(performances))
	analytics.AverageReturnRate = sumRate / n
	analytics.PerformanceByPeriod = domain.PeriodBreakdown{
		Daily:     breakdown.Daily / n,
		Weekly:    breakdown.Weekly / n,
		Monthly:   breakdown.Monthly / n,
		Quarterly: breakdown.Quarterly / n,
		Yearly:    breakdown.Yearly / n,
	}
	analytics.BestPerformer = &domain.PerformerRef{
		InvestmentID: best.InvestmentID,
		Name:         best.InvestmentName,
		ReturnRate:   best.TotalReturnRate,
	}
	analytics.WorstPerformer = &domain.PerformerRef{
		InvestmentID: worst.InvestmentID,
		Name:         worst.InvestmentName,
		ReturnRate:   worst.TotalReturnRate,
	}

	ranked := make([]domain.InvestmentPerformance, len(performances))
	copy(ranked, performances)
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].TotalReturnRate > ranked[j].TotalReturnRate })
	if len(ranked) > 5 {
		ranked = ranked[:5]
	}
	analytics.TopPerformers = ranked

	return analytics, nil
}

// Projections extrapolates historical performance into conservative,
// moderate and aggressive bands. The bands are parametric normal
// approximations around the annualized return, widened by volatility.
func (s *ReturnsService) Projections(ctx context.Context, investmentID string) (*domain.ReturnProjection, error) {
	ctx, span := returnsTracer.Start(ctx, "ReturnsService.Projections")
	defer span.End()
	span.SetAttributes(attribute.String("investment.id", investmentID))

	perf, err := s.PerformanceFor(ctx, investmentID)
	if err != nil {
		return nil, err
	}

	ann := perf.Metrics.AnnualizedReturn
	vol := perf.Metrics.Volatility

	horizons := []struct {
		label string
		days  float64
	}{
		{"1M", 30},
		{"3M", 91},
		{"6M", 182},
		{"1Y", 365},
	}

	projected := make([]domain.ProjectedReturn, 0, len(horizons))
	for _, h := range horizons {
		f := h.days / 365
		projected = append(projected, domain.ProjectedReturn{
			Period:             h.label,
			ConservativeReturn: (ann - vol) * f,
			ModerateReturn:     ann * f,
			AggressiveReturn:   (ann + vol) * f,
		})
	}

	return &domain.ReturnProjection{
		InvestmentID:     investmentID,
		ProjectedReturns: projected,
		ConfidenceLower:  ann - 1.96*vol,
		ConfidenceUpper:  ann + 1.96*vol,
		RiskMetrics: domain.ProjectionRisk{
			Volatility:        vol,
			ValueAtRisk:       1.65 * vol, // one-sided 95%
			ExpectedShortfall: 2.06 * vol,
		},
	}, nil
}
