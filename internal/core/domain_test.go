package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func strp(s string) *string { return &s }

func TestCreateAccountInputValidate(t *testing.T) {
	budget := MustMoney("1000")
	negative := MustMoney("-1")
	cases := []struct {
		name string
		in   CreateAccountInput
		ok   bool
	}{
		{"name and description", CreateAccountInput{Name: strp("Main"), Description: strp("Savings"), Budget: &budget}, true},
		{"name only", CreateAccountInput{Name: strp("Main")}, true},
		{"description only", CreateAccountInput{Description: strp("Savings")}, true},
		{"nothing", CreateAccountInput{}, false},
		{"blank strings", CreateAccountInput{Name: strp("  "), Description: strp("")}, false},
		{"name too long", CreateAccountInput{Name: strp(strings.Repeat("a", 121))}, false},
		{"accented name at limit", CreateAccountInput{Name: strp(strings.Repeat("è", 120))}, true},
		{"accented name over limit", CreateAccountInput{Name: strp(strings.Repeat("è", 121))}, false},
		{"multibyte description at limit", CreateAccountInput{Description: strp(strings.Repeat("€", 500))}, true},
		{"negative budget", CreateAccountInput{Name: strp("Main"), Budget: &negative}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.in.Validate()
			if tc.ok && err != nil {
				t.Fatalf("expected ok, got %v", err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatalf("expected error")
				}
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("expected ErrValidation, got %v", err)
				}
			}
		})
	}
}

func TestNewAccountDefaults(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	a := NewAccount("a1", "u1", CreateAccountInput{Description: strp("Savings")}, now)

	if a.Name != DefaultAccountName {
		t.Fatalf("name = %q, want %q", a.Name, DefaultAccountName)
	}
	if !a.CurrentBalance.IsZero() || !a.Budget.IsZero() {
		t.Fatalf("expected zero balance and budget, got %s / %s", a.CurrentBalance, a.Budget)
	}
	if a.Transactions == nil || len(a.Transactions) != 0 {
		t.Fatalf("expected empty non-nil ledger, got %v", a.Transactions)
	}
	if !a.CreatedAt.Equal(now) || !a.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected timestamps: %v %v", a.CreatedAt, a.UpdatedAt)
	}
}

func TestAccountPublicAndSummaryStripOwner(t *testing.T) {
	value := MustMoney("5")
	a := NewAccount("a1", "u1", CreateAccountInput{Name: strp("Main")}, time.Now())
	if _, err := a.AppendTransaction(NewTransaction{Value: &value}, time.Now()); err != nil {
		t.Fatalf("append: %v", err)
	}

	pub := a.Public()
	if pub.OwnerID != "" || len(pub.Transactions) != 1 {
		t.Fatalf("public: owner=%q txs=%d", pub.OwnerID, len(pub.Transactions))
	}
	pub.Transactions[0].Description = "changed"
	if a.Transactions[0].Description == "changed" {
		t.Fatalf("public copy aliases the ledger")
	}

	sum := a.Summary()
	if sum.OwnerID != "" || sum.Transactions != nil {
		t.Fatalf("summary: owner=%q txs=%v", sum.OwnerID, sum.Transactions)
	}
}

func TestValidationErrorMessageIsStable(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"offset": "bad", "limit": "bad"}}
	want := "validation failed: limit: bad; offset: bad"
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
}
