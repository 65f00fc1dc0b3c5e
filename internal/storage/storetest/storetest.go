// Package storetest holds the behaviour every storage.AccountStore must share.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"conti/internal/core"
	"conti/internal/storage"
)

// Run exercises store against the AccountStore contract. newStore must
// return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) storage.AccountStore) {
	t.Run("insert and find", func(t *testing.T) { testInsertAndFind(t, newStore(t)) })
	t.Run("optimistic concurrency", func(t *testing.T) { testOptimisticConcurrency(t, newStore(t)) })
	t.Run("find query", func(t *testing.T) { testFindQuery(t, newStore(t)) })
	t.Run("delete", func(t *testing.T) { testDelete(t, newStore(t)) })
}

var base = time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)

func account(id, owner, name, budget string) core.Account {
	b := core.MustMoney(budget)
	return core.NewAccount(id, owner, core.CreateAccountInput{Name: &name, Budget: &b}, base)
}

func save(t *testing.T, s storage.AccountStore, a core.Account) core.Account {
	t.Helper()
	if err := s.Save(context.Background(), &a); err != nil {
		t.Fatalf("save %s: %v", a.ID, err)
	}
	return a
}

func testInsertAndFind(t *testing.T, s storage.AccountStore) {
	ctx := context.Background()

	a := account("a1", "owner", "Main", "1000")
	for _, v := range []string{"500", "-120", "30.25"} {
		m := core.MustMoney(v)
		if _, err := a.AppendTransaction(core.NewTransaction{Value: &m, Type: "food"}, base.Add(time.Hour)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	a.OverrideBalance(core.MustMoney("1"), "manual", base)

	a = save(t, s, a)
	if a.Version != 1 {
		t.Fatalf("version after insert = %d, want 1", a.Version)
	}

	got, err := s.FindOne(ctx, "a1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Name != "Main" || got.OwnerID != "owner" || got.Version != 1 {
		t.Fatalf("unexpected account: %+v", got)
	}
	if !got.Budget.Equal(core.MustMoney("1000")) || !got.CurrentBalance.Equal(core.MustMoney("1")) {
		t.Fatalf("amounts: budget=%s balance=%s", got.Budget, got.CurrentBalance)
	}
	if got.BalanceOverride == nil || got.BalanceOverride.Reason != "manual" {
		t.Fatalf("override lost: %+v", got.BalanceOverride)
	}
	if len(got.Transactions) != 3 {
		t.Fatalf("ledger length = %d, want 3", len(got.Transactions))
	}
	for i := range a.Transactions {
		want, have := a.Transactions[i], got.Transactions[i]
		if want.ID != have.ID || !want.Value.Equal(have.Value) || want.Type != have.Type || !want.CreatedAt.Equal(have.CreatedAt) {
			t.Fatalf("transaction %d: got %+v, want %+v", i, have, want)
		}
	}
	if !got.CreatedAt.Equal(base) {
		t.Fatalf("createdAt = %v", got.CreatedAt)
	}

	if _, err := s.FindOne(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	dup := account("a1", "owner", "Dup", "0")
	if err := s.Save(ctx, &dup); err == nil {
		t.Fatalf("inserting an existing id must fail")
	}
}

func testOptimisticConcurrency(t *testing.T, s storage.AccountStore) {
	ctx := context.Background()
	save(t, s, account("a1", "owner", "Main", "10"))

	first, _ := s.FindOne(ctx, "a1")
	second, _ := s.FindOne(ctx, "a1")

	first.Name = "First"
	if err := s.Save(ctx, &first); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if first.Version != 2 {
		t.Fatalf("version = %d, want 2", first.Version)
	}

	second.Name = "Second"
	if err := s.Save(ctx, &second); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	got, _ := s.FindOne(ctx, "a1")
	if got.Name != "First" {
		t.Fatalf("stale write applied: %q", got.Name)
	}

	ghost := account("ghost", "owner", "Ghost", "0")
	ghost.Version = 3
	if err := s.Save(ctx, &ghost); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testFindQuery(t *testing.T, s storage.AccountStore) {
	ctx := context.Background()
	seed := []core.Account{
		account("a", "alice", "Cash", "100"),
		account("b", "alice", "Bank", "50"),
		account("c", "bob", "Other", "70"),
		account("d", "alice", "Card", "100"),
		account("e", "alice", "Bank", "9.5"),
	}
	for _, a := range seed {
		m := core.MustMoney("1")
		_, _ = a.AppendTransaction(core.NewTransaction{Value: &m}, base)
		save(t, s, a)
	}

	n, err := s.CountDocuments(ctx, "alice")
	if err != nil || n != 4 {
		t.Fatalf("count = %d, %v", n, err)
	}

	ids := func(as []core.Account) []string {
		out := make([]string, len(as))
		for i, a := range as {
			out[i] = a.ID
		}
		return out
	}
	eq := func(a, b []string) bool {
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
		return true
	}

	cases := []struct {
		name string
		q    core.AccountQuery
		want []string
	}{
		{"insertion order", core.AccountQuery{OwnerID: "alice", Limit: -1}, []string{"a", "b", "d", "e"}},
		{"budget then name", core.AccountQuery{OwnerID: "alice", Limit: -1, Sort: []core.SortField{{Field: core.FieldBudget, Direction: core.Asc}, {Field: core.FieldName, Direction: core.Asc}}}, []string{"e", "b", "d", "a"}},
		{"name desc ties by insertion", core.AccountQuery{OwnerID: "alice", Limit: -1, Sort: []core.SortField{{Field: core.FieldName, Direction: core.Desc}}}, []string{"a", "d", "b", "e"}},
		{"window", core.AccountQuery{OwnerID: "alice", Limit: 2, Offset: 1}, []string{"b", "d"}},
		{"offset past end", core.AccountQuery{OwnerID: "alice", Limit: 2, Offset: 10}, []string{}},
		{"zero limit", core.AccountQuery{OwnerID: "alice", Limit: 0}, []string{}},
		{"other owner", core.AccountQuery{OwnerID: "bob", Limit: -1}, []string{"c"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.Find(ctx, tc.q)
			if err != nil {
				t.Fatalf("find: %v", err)
			}
			if !eq(ids(got), tc.want) {
				t.Fatalf("got %v, want %v", ids(got), tc.want)
			}
			for _, a := range got {
				if a.Transactions != nil {
					t.Fatalf("transactions must be projected out")
				}
			}
		})
	}

	full, err := s.Find(ctx, core.AccountQuery{OwnerID: "alice", Limit: -1, WithTransactions: true})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	for _, a := range full {
		if len(a.Transactions) != 1 {
			t.Fatalf("account %s ledger length = %d", a.ID, len(a.Transactions))
		}
	}
}

func testDelete(t *testing.T, s storage.AccountStore) {
	ctx := context.Background()
	save(t, s, account("a1", "owner", "Main", "10"))

	deleted, err := s.FindOneAndDelete(ctx, "a1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted.ID != "a1" || deleted.Name != "Main" {
		t.Fatalf("unexpected deleted account: %+v", deleted)
	}
	if _, err := s.FindOne(ctx, "a1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if _, err := s.FindOneAndDelete(ctx, "a1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
