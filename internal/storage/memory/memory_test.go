package memory

import (
	"context"
	"testing"
	"time"

	"conti/internal/core"
	"conti/internal/storage"
	"conti/internal/storage/storetest"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(*testing.T) storage.AccountStore { return New() })
}

func TestStoreReturnsCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	name := "Main"
	a := core.NewAccount("a1", "o", core.CreateAccountInput{Name: &name}, time.Now())
	v := core.MustMoney("5")
	_, _ = a.AppendTransaction(core.NewTransaction{Value: &v}, time.Now())
	if err := s.Save(ctx, &a); err != nil {
		t.Fatalf("save: %v", err)
	}

	a.Transactions[0].Type = "mutated"
	got, _ := s.FindOne(ctx, "a1")
	if got.Transactions[0].Type != "" {
		t.Fatalf("store aliased the caller's ledger")
	}

	got.Transactions[0].Type = "mutated"
	again, _ := s.FindOne(ctx, "a1")
	if again.Transactions[0].Type != "" {
		t.Fatalf("store handed out its own ledger")
	}
}
