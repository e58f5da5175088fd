package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/oleandro/investtrack-calc-go/internal/domain"
	"github.com/oleandro/investtrack-calc-go/internal/infra/resilience"

	"github.com/shopspring/decimal"
)

// ============================================================
// LedgerStore implementation — reads via PostgREST tables,
// atomic mutations via rpc/ procedures
// ============================================================

// --- Row mappers (snake_case Ledger Service columns) ---

type investmentRow struct {
	ID                     string           `json:"id"`
	Name                   string           `json:"name"`
	Currency               string           `json:"currency"`
	Category               string           `json:"category"`
	InitialAmount          decimal.Decimal  `json:"initial_amount"`
	CurrentBalance         decimal.Decimal  `json:"current_balance"`
	StartDate              string           `json:"start_date"`
	ReturnType             string           `json:"return_type"`
	InterestRate           *decimal.Decimal `json:"interest_rate"`
	Status                 string           `json:"status"`
	AutoCalculate          bool             `json:"auto_calculate"`
	CompoundingFrequency   string           `json:"compounding_frequency"`
	LastInterestCalculated *string          `json:"last_interest_calculated"`
	NextInterestDue        *string          `json:"next_interest_due"`
	CreatedAt              string           `json:"created_at"`
}

func (r *investmentRow) toDomain() (domain.Investment, error) {
	startDate, err := parseTime(r.StartDate)
	if err != nil {
		return domain.Investment{}, fmt.Errorf("investment %s: start_date: %w", r.ID, err)
	}
	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return domain.Investment{}, fmt.Errorf("investment %s: created_at: %w", r.ID, err)
	}

	inv := domain.Investment{
		ID:                   r.ID,
		Name:                 r.Name,
		Currency:             r.Currency,
		Category:             domain.InvestmentCategory(r.Category),
		InitialAmount:        r.InitialAmount,
		CurrentBalance:       r.CurrentBalance,
		StartDate:            startDate,
		ReturnType:           domain.ReturnType(r.ReturnType),
		InterestRate:         r.InterestRate,
		Status:               domain.InvestmentStatus(r.Status),
		AutoCalculate:        r.AutoCalculate,
		CompoundingFrequency: domain.CompoundingFrequency(r.CompoundingFrequency),
		CreatedAt:            createdAt,
	}
	if r.LastInterestCalculated != nil {
		t, err := parseTime(*r.LastInterestCalculated)
		if err != nil {
			return domain.Investment{}, fmt.Errorf("investment %s: last_interest_calculated: %w", r.ID, err)
		}
		inv.LastInterestCalculated = &t
	}
	if r.NextInterestDue != nil {
		t, err := parseTime(*r.NextInterestDue)
		if err != nil {
			return domain.Investment{}, fmt.Errorf("investment %s: next_interest_due: %w", r.ID, err)
		}
		inv.NextInterestDue = &t
	}
	return inv, nil
}

type transactionRow struct {
	ID              string           `json:"id"`
	InvestmentID    string           `json:"investment_id"`
	Type            string           `json:"type"`
	Amount          decimal.Decimal  `json:"amount"`
	Balance         decimal.Decimal  `json:"balance"`
	Percentage      *decimal.Decimal `json:"percentage"`
	Description     string           `json:"description"`
	TransactionDate string           `json:"transaction_date"`
	CreatedAt       string           `json:"created_at"`
	IsReverted      bool             `json:"is_reverted"`
}

func (r *transactionRow) toDomain() (domain.Transaction, error) {
	txDate, err := parseTime(r.TransactionDate)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s: transaction_date: %w", r.ID, err)
	}
	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s: created_at: %w", r.ID, err)
	}
	return domain.Transaction{
		ID:              r.ID,
		InvestmentID:    r.InvestmentID,
		Type:            domain.TransactionType(r.Type),
		Amount:          r.Amount,
		Balance:         r.Balance,
		Percentage:      r.Percentage,
		Description:     r.Description,
		TransactionDate: txDate,
		CreatedAt:       createdAt,
		IsReverted:      r.IsReverted,
	}, nil
}

type calculationRow struct {
	ID              string          `json:"id"`
	InvestmentID    string          `json:"investment_id"`
	CalculationType string          `json:"calculation_type"`
	PeriodStart     string          `json:"period_start"`
	PeriodEnd       string          `json:"period_end"`
	PrincipalAmount decimal.Decimal `json:"principal_amount"`
	InterestRate    decimal.Decimal `json:"interest_rate"`
	InterestEarned  decimal.Decimal `json:"interest_earned"`
	NewBalance      decimal.Decimal `json:"new_balance"`
	TransactionID   string          `json:"transaction_id"`
	IsReverted      bool            `json:"is_reverted"`
	RevertedAt      *string         `json:"reverted_at"`
	CalculatedAt    string          `json:"calculated_at"`
}

func (r *calculationRow) toDomain() (domain.InterestCalculation, error) {
	periodStart, err := parseTime(r.PeriodStart)
	if err != nil {
		return domain.InterestCalculation{}, fmt.Errorf("calculation %s: period_start: %w", r.ID, err)
	}
	periodEnd, err := parseTime(r.PeriodEnd)
	if err != nil {
		return domain.InterestCalculation{}, fmt.Errorf("calculation %s: period_end: %w", r.ID, err)
	}
	calculatedAt, err := parseTime(r.CalculatedAt)
	if err != nil {
		return domain.InterestCalculation{}, fmt.Errorf("calculation %s: calculated_at: %w", r.ID, err)
	}

	calc := domain.InterestCalculation{
		ID:              r.ID,
		InvestmentID:    r.InvestmentID,
		CalculationType: domain.CalculationType(r.CalculationType),
		PeriodStart:     periodStart,
		PeriodEnd:       periodEnd,
		PrincipalAmount: r.PrincipalAmount,
		InterestRate:    r.InterestRate,
		InterestEarned:  r.InterestEarned,
		NewBalance:      r.NewBalance,
		TransactionID:   r.TransactionID,
		IsReverted:      r.IsReverted,
		CalculatedAt:    calculatedAt,
	}
	if r.RevertedAt != nil {
		t, err := parseTime(*r.RevertedAt)
		if err != nil {
			return domain.InterestCalculation{}, fmt.Errorf("calculation %s: reverted_at: %w", r.ID, err)
		}
		calc.RevertedAt = &t
	}
	return calc, nil
}

// parseTime parses the timestamp formats the Ledger Service emits.
// Malformed values are errors: a corrupted last_interest_calculated
// read as the zero time would restart accrual from the start date and
// re-post the entire history.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("malformed timestamp %q", s)
}

// --- Investments ---

func (c *Client) GetInvestment(ctx context.Context, investmentID string) (*domain.Investment, error) {
	ctx, span := tracer.Start(ctx, "Ledger.GetInvestment")
	defer span.End()

	var inv *domain.Investment

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("investments?id=eq.%s&limit=1", investmentID)
			body, err := c.doGet(ctx, path)
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				return &domain.ErrNotFound{Resource: "investment", ID: investmentID}
			}

			var rows []investmentRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode investment: %w", err)
			}
			if len(rows) == 0 {
				return &domain.ErrNotFound{Resource: "investment", ID: investmentID}
			}

			d, err := rows[0].toDomain()
			if err != nil {
				return err
			}
			inv = &d
			return nil
		})
	})
	if err != nil {
		return nil, wrapStoreErr("ledger/investments", err)
	}
	return inv, nil
}

func (c *Client) ListInvestments(ctx context.Context) ([]domain.Investment, error) {
	ctx, span := tracer.Start(ctx, "Ledger.ListInvestments")
	defer span.End()

	var out []domain.Investment

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doGet(ctx, "investments?order=created_at.asc")
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				out = []domain.Investment{}
				return nil
			}

			var rows []investmentRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode investments: %w", err)
			}
			out = make([]domain.Investment, 0, len(rows))
			for i := range rows {
				d, err := rows[i].toDomain()
				if err != nil {
					return err
				}
				out = append(out, d)
			}
			return nil
		})
	})
	if err != nil {
		return nil, wrapStoreErr("ledger/investments", err)
	}
	return out, nil
}

func (c *Client) ListDueInvestments(ctx context.Context, now time.Time) ([]domain.Investment, error) {
	ctx, span := tracer.Start(ctx, "Ledger.ListDueInvestments")
	defer span.End()

	var out []domain.Investment

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf(
				"investments?status=eq.ACTIVE&return_type=eq.FIXED&auto_calculate=is.true&next_interest_due=lte.%s",
				now.UTC().Format(time.RFC3339),
			)
			body, err := c.doGet(ctx, path)
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				out = []domain.Investment{}
				return nil
			}

			var rows []investmentRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode due investments: %w", err)
			}
			out = make([]domain.Investment, 0, len(rows))
			for i := range rows {
				d, err := rows[i].toDomain()
				if err != nil {
					return err
				}
				out = append(out, d)
			}
			return nil
		})
	})
	if err != nil {
		return nil, wrapStoreErr("ledger/investments", err)
	}
	return out, nil
}

// --- Transactions ---

func (c *Client) ListTransactions(ctx context.Context, investmentID string) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Ledger.ListTransactions")
	defer span.End()

	var out []domain.Transaction

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("transactions?investment_id=eq.%s&order=transaction_date.asc,created_at.asc", investmentID)
			body, err := c.doGet(ctx, path)
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				out = []domain.Transaction{}
				return nil
			}

			var rows []transactionRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode transactions: %w", err)
			}
			out = make([]domain.Transaction, 0, len(rows))
			for i := range rows {
				d, err := rows[i].toDomain()
				if err != nil {
					return err
				}
				out = append(out, d)
			}
			return nil
		})
	})
	if err != nil {
		return nil, wrapStoreErr("ledger/transactions", err)
	}
	return out, nil
}

// --- Calculations ---

func (c *Client) ListCalculations(ctx context.Context, investmentID string, page, limit int) ([]domain.InterestCalculation, int, error) {
	ctx, span := tracer.Start(ctx, "Ledger.ListCalculations")
	defer span.End()

	var (
		out   []domain.InterestCalculation
		total int
	)

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			offset := (page - 1) * limit
			path := fmt.Sprintf(
				"interest_calculations?investment_id=eq.%s&order=calculated_at.desc&limit=%d&offset=%d",
				investmentID, limit, offset,
			)
			body, err := c.doGetCounted(ctx, path, &total)
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				out = []domain.InterestCalculation{}
				return nil
			}

			var rows []calculationRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode calculations: %w", err)
			}
			out = make([]domain.InterestCalculation, 0, len(rows))
			for i := range rows {
				d, err := rows[i].toDomain()
				if err != nil {
					return err
				}
				out = append(out, d)
			}
			return nil
		})
	})
	if err != nil {
		return nil, 0, wrapStoreErr("ledger/calculations", err)
	}
	return out, total, nil
}

func (c *Client) LatestActiveCalculation(ctx context.Context, investmentID string) (*domain.InterestCalculation, error) {
	ctx, span := tracer.Start(ctx, "Ledger.LatestActiveCalculation")
	defer span.End()

	var calc *domain.InterestCalculation

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf(
				"interest_calculations?investment_id=eq.%s&is_reverted=is.false&order=calculated_at.desc&limit=1",
				investmentID,
			)
			body, err := c.doGet(ctx, path)
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				return &domain.ErrNoCalculationToRevert{InvestmentID: investmentID}
			}

			var rows []calculationRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode latest calculation: %w", err)
			}
			if len(rows) == 0 {
				return &domain.ErrNoCalculationToRevert{InvestmentID: investmentID}
			}

			d, err := rows[0].toDomain()
			if err != nil {
				return err
			}
			calc = &d
			return nil
		})
	})
	if err != nil {
		return nil, wrapStoreErr("ledger/calculations", err)
	}
	return calc, nil
}

// --- Atomic commits (rpc/ procedures) ---
//
// Commit procedures are not retried: a timeout after the backend
// committed would otherwise double-accrue. The circuit breaker still
// wraps them.

func (c *Client) CommitAccrual(ctx context.Context, commit *domain.AccrualCommit) (*domain.AccrualResult, error) {
	ctx, span := tracer.Start(ctx, "Ledger.CommitAccrual")
	defer span.End()

	payload := map[string]any{
		"p_investment_id":    commit.InvestmentID,
		"p_calculation_type": string(commit.CalculationType),
		"p_period_start":     commit.PeriodStart.UTC().Format(time.RFC3339),
		"p_period_end":       commit.PeriodEnd.UTC().Format(time.RFC3339),
		"p_expected_balance": commit.ExpectedBalance,
		"p_interest_rate":    commit.InterestRate,
		"p_interest_earned":  commit.InterestEarned,
		"p_new_balance":      commit.NewBalance,
		"p_next_due":         commit.NextInterestDue.UTC().Format(time.RFC3339),
	}

	var result *domain.AccrualResult
	_, err := c.cb.Execute(func() (any, error) {
		body, status, err := c.doPost(ctx, "rpc/commit_accrual", payload)
		if err != nil {
			return nil, commitErr(commit.InvestmentID, status, err)
		}

		var row struct {
			Calculation calculationRow `json:"calculation"`
			Transaction transactionRow `json:"transaction"`
			Investment  investmentRow  `json:"investment"`
		}
		if err := json.Unmarshal(body, &row); err != nil {
			return nil, fmt.Errorf("decode accrual commit: %w", err)
		}

		calc, err := row.Calculation.toDomain()
		if err != nil {
			return nil, err
		}
		tx, err := row.Transaction.toDomain()
		if err != nil {
			return nil, err
		}
		inv, err := row.Investment.toDomain()
		if err != nil {
			return nil, err
		}
		result = &domain.AccrualResult{Calculation: &calc, Transaction: &tx, Investment: &inv}
		return nil, nil
	})
	if err != nil {
		return nil, wrapStoreErr("ledger/commit_accrual", err)
	}
	return result, nil
}

func (c *Client) RevertAccrual(ctx context.Context, revert *domain.AccrualRevert) (*domain.RevertResult, error) {
	ctx, span := tracer.Start(ctx, "Ledger.RevertAccrual")
	defer span.End()

	payload := map[string]any{
		"p_investment_id":    revert.InvestmentID,
		"p_calculation_id":   revert.CalculationID,
		"p_restored_balance": revert.RestoredBalance,
		"p_reverted_at":      revert.RevertedAt.UTC().Format(time.RFC3339),
	}

	var result *domain.RevertResult
	_, err := c.cb.Execute(func() (any, error) {
		body, status, err := c.doPost(ctx, "rpc/revert_accrual", payload)
		if err != nil {
			if status == http.StatusConflict {
				return nil, &domain.ErrNoCalculationToRevert{InvestmentID: revert.InvestmentID}
			}
			return nil, commitErr(revert.InvestmentID, status, err)
		}

		var row struct {
			Calculation calculationRow `json:"calculation"`
			Investment  investmentRow  `json:"investment"`
		}
		if err := json.Unmarshal(body, &row); err != nil {
			return nil, fmt.Errorf("decode revert: %w", err)
		}

		calc, err := row.Calculation.toDomain()
		if err != nil {
			return nil, err
		}
		inv, err := row.Investment.toDomain()
		if err != nil {
			return nil, err
		}
		result = &domain.RevertResult{Calculation: &calc, Investment: &inv}
		return nil, nil
	})
	if err != nil {
		return nil, wrapStoreErr("ledger/revert_accrual", err)
	}
	return result, nil
}

func (c *Client) CommitReturn(ctx context.Context, commit *domain.ReturnCommit) (*domain.ReturnResult, error) {
	ctx, span := tracer.Start(ctx, "Ledger.CommitReturn")
	defer span.End()

	payload := map[string]any{
		"p_investment_id":    commit.InvestmentID,
		"p_expected_balance": commit.ExpectedBalance,
		"p_amount":           commit.Amount,
		"p_new_balance":      commit.NewBalance,
		"p_description":      commit.Description,
		"p_effective_date":   commit.EffectiveDate.UTC().Format(time.RFC3339),
	}
	if commit.Percentage != nil {
		payload["p_percentage"] = commit.Percentage
	}

	var result *domain.ReturnResult
	_, err := c.cb.Execute(func() (any, error) {
		body, status, err := c.doPost(ctx, "rpc/commit_return", payload)
		if err != nil {
			return nil, commitErr(commit.InvestmentID, status, err)
		}

		var row struct {
			Transaction transactionRow `json:"transaction"`
			Investment  investmentRow  `json:"investment"`
		}
		if err := json.Unmarshal(body, &row); err != nil {
			return nil, fmt.Errorf("decode return commit: %w", err)
		}

		tx, err := row.Transaction.toDomain()
		if err != nil {
			return nil, err
		}
		inv, err := row.Investment.toDomain()
		if err != nil {
			return nil, err
		}
		result = &domain.ReturnResult{Transaction: &tx, Investment: &inv}
		return nil, nil
	})
	if err != nil {
		return nil, wrapStoreErr("ledger/commit_return", err)
	}
	return result, nil
}

// --- Schedule ---

func (c *Client) UpdateSchedule(ctx context.Context, investmentID string, sched *domain.ScheduleUpdate, nextDue time.Time) (*domain.Investment, error) {
	ctx, span := tracer.Start(ctx, "Ledger.UpdateSchedule")
	defer span.End()

	updates := map[string]any{
		"auto_calculate":        sched.AutoCalculate,
		"compounding_frequency": string(sched.CompoundingFrequency),
	}
	if sched.AutoCalculate {
		updates["next_interest_due"] = nextDue.UTC().Format(time.RFC3339)
	} else {
		updates["next_interest_due"] = nil
	}

	var inv *domain.Investment
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("investments?id=eq.%s", investmentID)
			body, err := c.doPatch(ctx, path, updates)
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				return &domain.ErrNotFound{Resource: "investment", ID: investmentID}
			}

			var rows []investmentRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode schedule update: %w", err)
			}
			if len(rows) == 0 {
				return &domain.ErrNotFound{Resource: "investment", ID: investmentID}
			}

			d, err := rows[0].toDomain()
			if err != nil {
				return err
			}
			inv = &d
			return nil
		})
	})
	if err != nil {
		return nil, wrapStoreErr("ledger/investments", err)
	}
	return inv, nil
}

// commitErr maps commit failures onto the domain taxonomy. The Ledger
// Service signals a stale expected balance with 409.
func commitErr(investmentID string, status int, err error) error {
	switch status {
	case http.StatusConflict:
		return &domain.ErrConcurrentModification{InvestmentID: investmentID}
	case http.StatusNotFound:
		return &domain.ErrNotFound{Resource: "investment", ID: investmentID}
	default:
		return err
	}
}

// wrapStoreErr keeps domain errors as-is and wraps transport failures.
func wrapStoreErr(service string, err error) error {
	switch err.(type) {
	case *domain.ErrNotFound,
		*domain.ErrNoCalculationToRevert,
		*domain.ErrConcurrentModification:
		return err
	}
	return &domain.ErrExternalService{Service: service, Err: err}
}
