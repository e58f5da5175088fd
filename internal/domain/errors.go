package domain

import "fmt"

// Error types for consistent error handling across the service.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in a Ledger Service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrInvestmentNotEligible indicates the investment cannot accrue
// fixed interest: wrong return type, inactive status, or missing rate.
type ErrInvestmentNotEligible struct {
	InvestmentID string
	Reason       string
}

func (e *ErrInvestmentNotEligible) Error() string {
	return fmt.Sprintf("investment %s not eligible for interest calculation: %s", e.InvestmentID, e.Reason)
}

// ErrInvalidReturnType indicates a variable-return operation was
// attempted against a non-VARIABLE investment.
type ErrInvalidReturnType struct {
	InvestmentID string
	ReturnType   ReturnType
}

func (e *ErrInvalidReturnType) Error() string {
	return fmt.Sprintf("investment %s has return type %s, expected VARIABLE", e.InvestmentID, e.ReturnType)
}

// ErrConcurrentModification indicates the investment's balance moved
// between derivation and commit; the caller must re-derive.
type ErrConcurrentModification struct {
	InvestmentID string
}

func (e *ErrConcurrentModification) Error() string {
	return fmt.Sprintf("investment %s was modified concurrently, recalculate and retry", e.InvestmentID)
}

// ErrNoCalculationToRevert indicates there is no non-reverted
// calculation left for the investment.
type ErrNoCalculationToRevert struct {
	InvestmentID string
}

func (e *ErrNoCalculationToRevert) Error() string {
	return fmt.Sprintf("no calculation to revert for investment %s", e.InvestmentID)
}

// ErrNegativeBalance indicates an update would drive the balance
// below zero. The core never clamps; it rejects.
type ErrNegativeBalance struct {
	InvestmentID string
	Resulting    string
}

func (e *ErrNegativeBalance) Error() string {
	return fmt.Sprintf("update rejected for investment %s: resulting balance %s is negative", e.InvestmentID, e.Resulting)
}

// ErrUnauthorized indicates a missing or invalid service credential.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}
