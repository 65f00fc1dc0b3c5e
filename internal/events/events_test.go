package events

import (
	"strings"
	"testing"
	"time"

	"conti/internal/core"
)

func TestNewCarriesCommittedState(t *testing.T) {
	at := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	a := core.Account{ID: "a1", OwnerID: "o1", Name: "Main", Version: 4, CurrentBalance: core.MustMoney("12.5")}

	e := New(TransactionCreated, a, at).WithTransaction(core.Transaction{ID: "t1", Value: core.MustMoney("2.5")})
	if e.ID == "" || e.Key() != "a1" || e.OwnerID != "o1" || e.Version != 4 {
		t.Fatalf("unexpected event: %+v", e)
	}
	if !e.Balance.Equal(core.MustMoney("12.5")) || e.Transaction == nil || e.Transaction.ID != "t1" {
		t.Fatalf("unexpected payload: %+v", e)
	}

	raw, err := e.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	if !strings.Contains(string(raw), `"type":"transaction.created"`) {
		t.Fatalf("type missing from %s", raw)
	}
	back, err := FromJSON(raw)
	if err != nil {
		t.Fatalf("FromJSON() error = %v", err)
	}
	if back.Type != TransactionCreated || !back.Transaction.Value.Equal(core.MustMoney("2.5")) || !back.OccurredAt.Equal(at) {
		t.Fatalf("decoded event differs: %+v", back)
	}
}

func TestFromJSONRejectsGarbage(t *testing.T) {
	if _, err := FromJSON([]byte(`{"version":"x"}`)); err == nil {
		t.Fatalf("expected an error")
	}
}
