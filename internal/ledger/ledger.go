// Package ledger posts received payments to the external accounting
// ledger. A ledger failure never rolls back a locally booked payment;
// callers surface it as a warning.
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// Transaction is one payment to be recorded in the ledger.
type Transaction struct {
	Payee string

	// Amount is the gross payment in EUR.
	Amount decimal.Decimal

	// References are the invoice references covered by the payment,
	// rendered into the memo.
	References []string

	// Date in ISO format (YYYY-MM-DD).
	Date string
}

// Provider posts transactions to the external ledger.
type Provider interface {
	PostTransaction(ctx context.Context, tx Transaction) error
}

// Noop is used when ledger posting is disabled.
type Noop struct{}

func (Noop) PostTransaction(ctx context.Context, tx Transaction) error { return nil }

// Mock is a test implementation of Provider.
type Mock struct {
	PostFunc func(ctx context.Context, tx Transaction) error
	Posted   []Transaction
}

func (m *Mock) PostTransaction(ctx context.Context, tx Transaction) error {
	m.Posted = append(m.Posted, tx)
	if m.PostFunc != nil {
		return m.PostFunc(ctx, tx)
	}
	return nil
}
