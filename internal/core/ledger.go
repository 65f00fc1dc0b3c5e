package core

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// SumTransactions returns the ledger balance.
func SumTransactions(txs []Transaction) Money {
	total := Zero
	for _, tx := range txs {
		total = total.Add(tx.Value)
	}
	return total
}

// AppendTransaction adds a new entry at the end of the ledger and recomputes
// the balance. The account is left untouched on error.
func (a *Account) AppendTransaction(in NewTransaction, now time.Time) (Transaction, error) {
	if in.Value == nil || in.Value.IsZero() {
		return Transaction{}, fmt.Errorf("%w: transaction cannot be zero", ErrInvalidAmount)
	}

	tx := Transaction{
		ID:          uuid.NewString(),
		Value:       *in.Value,
		Type:        in.Type,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	a.Transactions = append(a.Transactions, tx)
	a.recompute(now)
	return tx, nil
}

// RemoveTransaction deletes exactly one entry by id and recomputes the balance.
func (a *Account) RemoveTransaction(id string, now time.Time) error {
	idx := slices.IndexFunc(a.Transactions, func(tx Transaction) bool { return tx.ID == id })
	if idx < 0 {
		return fmt.Errorf("%w: transaction %s", ErrNotFound, id)
	}
	a.Transactions = slices.Delete(a.Transactions, idx, idx+1)
	a.recompute(now)
	return nil
}

// Reconcile re-derives the balance from the ledger and drops any override.
func (a *Account) Reconcile(now time.Time) {
	a.recompute(now)
}

// OverrideBalance sets the balance outside the ledger and records why.
func (a *Account) OverrideBalance(value Money, reason string, now time.Time) {
	a.CurrentBalance = value
	a.BalanceOverride = &BalanceOverride{Value: value, Reason: reason, At: now}
	a.UpdatedAt = now
}

// LedgerBalance is the sum of the ledger, regardless of any override.
func (a Account) LedgerBalance() Money {
	return SumTransactions(a.Transactions)
}

func (a *Account) recompute(now time.Time) {
	a.CurrentBalance = SumTransactions(a.Transactions)
	a.BalanceOverride = nil
	a.UpdatedAt = now
}

// PageTransactions orders the ledger most recent first and cuts one window.
// Equal timestamps keep their insertion order.
func PageTransactions(txs []Transaction, limit, offset int) (Page[Transaction], error) {
	pageable, err := BuildPageable(limit, offset, len(txs))
	if err != nil {
		return Page[Transaction]{}, err
	}

	ordered := slices.Clone(txs)
	slices.SortStableFunc(ordered, func(x, y Transaction) int {
		return y.CreatedAt.Compare(x.CreatedAt)
	})

	lo, hi := Window(len(ordered), limit, offset)
	data := make([]Transaction, 0, hi-lo)
	data = append(data, ordered[lo:hi]...)
	return Page[Transaction]{Data: data, Pageable: pageable}, nil
}
