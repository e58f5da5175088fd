package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/oleandro/investtrack-calc-go/internal/domain"
	"github.com/oleandro/investtrack-calc-go/internal/infra/observability"
	"github.com/oleandro/investtrack-calc-go/internal/port"
	"github.com/oleandro/investtrack-calc-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
// Routes follow the API contract consumed by the investment dashboard.
func NewRouter(interestSvc *service.InterestService, returnsSvc *service.ReturnsService, store port.LedgerStore, metrics *observability.Metrics, jwtSecret string, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(requestMetricsMiddleware(metrics))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(store, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(ServiceAuthMiddleware(jwtSecret, logger))

		// =============================================
		// 1. Fixed interest accrual
		// =============================================
		r.Route("/interest", func(r chi.Router) {
			r.Get("/preview/{investmentId}", previewHandler(interestSvc, logger))
			r.Post("/calculate/{investmentId}", calculateHandler(interestSvc, logger))
			r.Post("/revert/{investmentId}", revertHandler(interestSvc, logger))
			r.Patch("/schedule/{investmentId}", scheduleHandler(interestSvc, logger))
			r.Get("/history/{investmentId}", historyHandler(interestSvc, logger))

			// =============================================
			// 2. Variable returns
			// =============================================
			r.Post("/variable/update-percentage/{investmentId}", updateByPercentageHandler(interestSvc, logger))
			r.Post("/variable/update-balance/{investmentId}", updateByBalanceHandler(interestSvc, logger))
		})

		// =============================================
		// 3. Performance & analytics
		// =============================================
		r.Route("/returns", func(r chi.Router) {
			r.Get("/investment/{investmentId}", performanceHandler(returnsSvc, logger))
			r.Get("/performances", performancesHandler(returnsSvc, logger))
			r.Get("/analytics", analyticsHandler(returnsSvc, logger))
			r.Get("/projections/{investmentId}", projectionsHandler(returnsSvc, logger))
		})

		// =============================================
		// 4. Investments (read passthrough)
		// =============================================
		r.Get("/investments", listInvestmentsHandler(store, logger))
		r.Get("/investments/{investmentId}", getInvestmentHandler(store, logger))

		// =============================================
		// 5. Engine metrics
		// =============================================
		r.Get("/metrics/engine", engineMetricsHandler(metrics))
	})

	return r
}

// requestMetricsMiddleware records the per-request status counter and
// latency histogram against the matched route pattern.
func requestMetricsMiddleware(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			status := "success"
			if ww.Status() >= 500 {
				status = "error"
			} else if ww.Status() >= 400 {
				status = "client_error"
			}
			metrics.IncrRequest(status)

			pattern := chi.RouteContext(r.Context()).RoutePattern()
			if pattern == "" {
				pattern = r.URL.Path
			}
			metrics.RecordRequestDuration(r.Method+" "+pattern, time.Since(start))
		})
	}
}

// ============================================================
// 1. Fixed interest accrual
// ============================================================

func previewHandler(svc *service.InterestService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/interest/preview/{investmentId}")
		defer span.End()

		investmentID := chi.URLParam(r, "investmentId")
		span.SetAttributes(attribute.String("investment.id", investmentID))

		preview, err := svc.Preview(ctx, investmentID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "Interest calculation preview", preview)
	}
}

func calculateHandler(svc *service.InterestService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/interest/calculate/{investmentId}")
		defer span.End()

		investmentID := chi.URLParam(r, "investmentId")
		span.SetAttributes(attribute.String("investment.id", investmentID))

		result, err := svc.Calculate(ctx, investmentID, domain.CalcManual)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "Interest calculated successfully", result)
	}
}

func revertHandler(svc *service.InterestService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/interest/revert/{investmentId}")
		defer span.End()

		investmentID := chi.URLParam(r, "investmentId")
		span.SetAttributes(attribute.String("investment.id", investmentID))

		var body struct {
			ConfirmRevert bool `json:"confirmRevert"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || !body.ConfirmRevert {
			writeError(w, http.StatusBadRequest, "confirmRevert must be true")
			return
		}

		result, err := svc.Revert(ctx, investmentID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "Interest calculation reverted successfully", result)
	}
}

func scheduleHandler(svc *service.InterestService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/interest/schedule/{investmentId}")
		defer span.End()

		investmentID := chi.URLParam(r, "investmentId")
		span.SetAttributes(attribute.String("investment.id", investmentID))

		var sched domain.ScheduleUpdate
		if err := json.NewDecoder(r.Body).Decode(&sched); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		inv, err := svc.UpdateSchedule(ctx, investmentID, &sched)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "Calculation schedule updated", inv)
	}
}

func historyHandler(svc *service.InterestService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/interest/history/{investmentId}")
		defer span.End()

		investmentID := chi.URLParam(r, "investmentId")
		span.SetAttributes(attribute.String("investment.id", investmentID))
		page, limit := parsePagination(r)

		history, err := svc.History(ctx, investmentID, page, limit)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "Calculation history", history)
	}
}

// ============================================================
// 2. Variable returns
// ============================================================

// parseEffectiveDate accepts RFC3339 or plain dates; empty input maps
// to the zero time, which the service treats as "now".
func parseEffectiveDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func updateByPercentageHandler(svc *service.InterestService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/interest/variable/update-percentage/{investmentId}")
		defer span.End()

		investmentID := chi.URLParam(r, "investmentId")
		span.SetAttributes(attribute.String("investment.id", investmentID))

		var body struct {
			Percentage    *decimal.Decimal `json:"percentage"`
			EffectiveDate string           `json:"effectiveDate,omitempty"`
			Description   string           `json:"description,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.Percentage == nil {
			writeError(w, http.StatusBadRequest, "percentage is required")
			return
		}
		effectiveDate, ok := parseEffectiveDate(body.EffectiveDate)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid effectiveDate")
			return
		}

		result, err := svc.UpdateByPercentage(ctx, investmentID, *body.Percentage, effectiveDate, body.Description)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "Variable return updated successfully", result)
	}
}

func updateByBalanceHandler(svc *service.InterestService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/interest/variable/update-balance/{investmentId}")
		defer span.End()

		investmentID := chi.URLParam(r, "investmentId")
		span.SetAttributes(attribute.String("investment.id", investmentID))

		var body struct {
			NewBalance    *decimal.Decimal `json:"newBalance"`
			EffectiveDate string           `json:"effectiveDate,omitempty"`
			Description   string           `json:"description,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.NewBalance == nil {
			writeError(w, http.StatusBadRequest, "newBalance is required")
			return
		}
		effectiveDate, ok := parseEffectiveDate(body.EffectiveDate)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid effectiveDate")
			return
		}

		result, err := svc.UpdateByBalance(ctx, investmentID, *body.NewBalance, effectiveDate, body.Description)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "Balance updated successfully", result)
	}
}

// ============================================================
// 3. Performance & analytics
// ============================================================

func performanceHandler(svc *service.ReturnsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/returns/investment/{investmentId}")
		defer span.End()

		investmentID := chi.URLParam(r, "investmentId")
		span.SetAttributes(attribute.String("investment.id", investmentID))

		perf, err := svc.PerformanceFor(ctx, investmentID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "Investment performance", perf)
	}
}

func performancesHandler(svc *service.ReturnsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/returns/performances")
		defer span.End()

		performances, err := svc.Performances(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "Investment performances", performances)
	}
}

func analyticsHandler(svc *service.ReturnsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/returns/analytics")
		defer span.End()

		analytics, err := svc.Analytics(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "Performance analytics", analytics)
	}
}

func projectionsHandler(svc *service.ReturnsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/returns/projections/{investmentId}")
		defer span.End()

		investmentID := chi.URLParam(r, "investmentId")
		span.SetAttributes(attribute.String("investment.id", investmentID))

		projection, err := svc.Projections(ctx, investmentID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "Return projections", projection)
	}
}

// ============================================================
// 4. Investments (read passthrough)
// ============================================================

func listInvestmentsHandler(store port.LedgerStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/investments")
		defer span.End()

		investments, err := store.ListInvestments(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if investments == nil {
			investments = []domain.Investment{}
		}
		writeData(w, http.StatusOK, "Investments", investments)
	}
}

func getInvestmentHandler(store port.LedgerStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/investments/{investmentId}")
		defer span.End()

		investmentID := chi.URLParam(r, "investmentId")
		span.SetAttributes(attribute.String("investment.id", investmentID))

		inv, err := store.GetInvestment(ctx, investmentID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "Investment", inv)
	}
}

// ============================================================
// 5. Metrics & health
// ============================================================

func engineMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := metrics.GetEngineSnapshot()
		writeJSON(w, http.StatusOK, snapshot)
	}
}

func healthzHandler(store port.LedgerStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "calc-api", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}

		start := time.Now()
		_, err := store.ListInvestments(ctx)
		latency := time.Since(start).Milliseconds()
		status := "healthy"
		if err != nil {
			status = "degraded"
			logger.Warn("health check: ledger unreachable", zap.Error(err))
		}
		services = append(services, domain.ServiceHealth{
			Name: "ledger", Status: status, LatencyMs: latency, LastChecked: now,
		})

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
