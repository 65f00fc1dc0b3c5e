package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"conti/internal/sheets"
)

// Store is an in-process LedgerWriter used when no spreadsheet is
// configured and in tests.
type Store struct {
	mu   sync.Mutex
	rows []sheets.LedgerRow
}

var _ sheets.LedgerWriter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

func (s *Store) AppendRow(_ context.Context, row sheets.LedgerRow) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(row.TransactionID); i >= 0 {
		return fmt.Sprintf("mem:%d", i+1), nil
	}
	s.rows = append(s.rows, row)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

func (s *Store) DeleteTransactionRow(_ context.Context, txID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(txID); i >= 0 {
		s.rows = slices.Delete(s.rows, i, i+1)
	}
	return nil
}

func (s *Store) DeleteAccountRows(_ context.Context, accountID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.rows)
	s.rows = slices.DeleteFunc(s.rows, func(r sheets.LedgerRow) bool { return r.AccountID == accountID })
	return before - len(s.rows), nil
}

func (s *Store) TransactionIDs(context.Context) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make(map[string]struct{}, len(s.rows))
	for _, r := range s.rows {
		ids[r.TransactionID] = struct{}{}
	}
	return ids, nil
}

// Rows returns a copy of the mirrored rows in insertion order.
func (s *Store) Rows() []sheets.LedgerRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.rows)
}

func (s *Store) indexOf(txID string) int {
	return slices.IndexFunc(s.rows, func(r sheets.LedgerRow) bool { return r.TransactionID == txID })
}
