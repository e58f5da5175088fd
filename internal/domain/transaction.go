package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Transactions (per-investment ledger)
// ============================================================

// TransactionType determines the sign of a transaction's balance
// effect. Amounts are stored positive; the type carries the direction.
type TransactionType string

const (
	TxDeposit    TransactionType = "DEPOSIT"
	TxWithdrawal TransactionType = "WITHDRAWAL"
	TxTransfer   TransactionType = "TRANSFER"
	TxReturn     TransactionType = "RETURN"
	TxDividend   TransactionType = "DIVIDEND"
)

// Transaction is one entry of an investment's append-only ledger.
// Balance is the snapshot immediately after this transaction.
// A RETURN produced by a reverted interest calculation stays in the
// ledger with IsReverted set; the balance invariant sums non-reverted
// entries only.
type Transaction struct {
	ID              string           `json:"id"`
	InvestmentID    string           `json:"investmentId"`
	Type            TransactionType  `json:"type"`
	Amount          decimal.Decimal  `json:"amount"` // always > 0 except RETURN, which keeps its sign
	Balance         decimal.Decimal  `json:"balance"`
	Percentage      *decimal.Decimal `json:"percentage,omitempty"` // set for variable-return updates
	Description     string           `json:"description,omitempty"`
	TransactionDate time.Time        `json:"transactionDate"`
	CreatedAt       time.Time        `json:"createdAt"`
	IsReverted      bool             `json:"isReverted"`
}

// SignedAmount returns the transaction's effect on the balance.
// DEPOSIT, RETURN and DIVIDEND credit; WITHDRAWAL and TRANSFER debit.
// RETURN amounts already carry their sign (a variable update may post
// a loss), so they pass through unchanged.
func (t *Transaction) SignedAmount() decimal.Decimal {
	switch t.Type {
	case TxWithdrawal, TxTransfer:
		return t.Amount.Neg()
	default:
		return t.Amount
	}
}

// LedgerBalance folds a transaction ledger over an initial amount,
// skipping reverted entries. The result must equal the investment's
// current balance after every committed operation.
func LedgerBalance(initial decimal.Decimal, txs []Transaction) decimal.Decimal {
	balance := initial
	for i := range txs {
		if txs[i].IsReverted {
			continue
		}
		balance = balance.Add(txs[i].SignedAmount())
	}
	return balance
}
