package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"conti/internal/core"
	"conti/internal/storage"
)

type entry struct {
	seq     int64
	account core.Account
}

// Store keeps accounts in process. Listings without a sort key follow
// insertion order.
type Store struct {
	mu      sync.RWMutex
	nextSeq int64
	items   map[string]entry
}

var _ storage.AccountStore = (*Store)(nil)

func New() *Store {
	return &Store{items: make(map[string]entry)}
}

func (s *Store) FindOne(_ context.Context, id string) (core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[id]
	if !ok {
		return core.Account{}, storage.NotFound(id)
	}
	return e.account.Clone(), nil
}

func (s *Store) Find(_ context.Context, q core.AccountQuery) ([]core.Account, error) {
	s.mu.RLock()
	matched := make([]entry, 0, len(s.items))
	for _, e := range s.items {
		if q.OwnerID != "" && e.account.OwnerID != q.OwnerID {
			continue
		}
		matched = append(matched, e)
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, func(x, y entry) int { return cmp.Compare(x.seq, y.seq) })
	accounts := make([]core.Account, len(matched))
	for i, e := range matched {
		accounts[i] = e.account
	}
	core.SortAccounts(accounts, q.Sort)

	limit := q.Limit
	if limit < 0 {
		limit = len(accounts)
	}
	lo, hi := core.Window(len(accounts), limit, q.Offset)

	out := make([]core.Account, 0, hi-lo)
	for _, a := range accounts[lo:hi] {
		a = a.Clone()
		if !q.WithTransactions {
			a.Transactions = nil
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Store) CountDocuments(_ context.Context, ownerID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ownerID == "" {
		return len(s.items), nil
	}
	n := 0
	for _, e := range s.items {
		if e.account.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

func (s *Store) Save(_ context.Context, a *core.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, exists := s.items[a.ID]
	if a.Version == 0 {
		if exists {
			return storage.Conflict(a.ID, a.Version)
		}
		s.nextSeq++
		a.Version = 1
		s.items[a.ID] = entry{seq: s.nextSeq, account: a.Clone()}
		return nil
	}

	if !exists {
		return storage.NotFound(a.ID)
	}
	if cur.account.Version != a.Version {
		return storage.Conflict(a.ID, a.Version)
	}
	a.Version++
	s.items[a.ID] = entry{seq: cur.seq, account: a.Clone()}
	return nil
}

func (s *Store) FindOneAndDelete(_ context.Context, id string) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	if !ok {
		return core.Account{}, storage.NotFound(id)
	}
	delete(s.items, id)
	return e.account, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
