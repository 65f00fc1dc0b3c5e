package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// DefaultAccountName is used when an account is created without a name.
	DefaultAccountName = "Account"

	// UntypedKey collects transactions that carry no type tag.
	UntypedKey = "untyped"

	maxNameLength        = 120
	maxDescriptionLength = 500
)

type (
	Transaction struct {
		ID          string    `json:"id"`
		Value       Money     `json:"value"`
		Type        string    `json:"type,omitempty"`
		Description string    `json:"description,omitempty"`
		CreatedAt   time.Time `json:"createdAt"`
		UpdatedAt   time.Time `json:"updatedAt"`
	}

	// BalanceOverride snapshots an administrative correction of the balance.
	// It is cleared by the next ledger mutation.
	BalanceOverride struct {
		Value  Money     `json:"value"`
		Reason string    `json:"reason"`
		At     time.Time `json:"at"`
	}

	Account struct {
		ID              string           `json:"id"`
		OwnerID         string           `json:"ownerId,omitempty"`
		Name            string           `json:"name"`
		Description     string           `json:"description"`
		Budget          Money            `json:"budget"`
		CurrentBalance  Money            `json:"currentBalance"`
		IsFavorite      bool             `json:"isFavorite"`
		Transactions    []Transaction    `json:"transactions,omitempty"`
		BalanceOverride *BalanceOverride `json:"balanceOverride,omitempty"`
		Version         int64            `json:"version"`
		CreatedAt       time.Time        `json:"createdAt"`
		UpdatedAt       time.Time        `json:"updatedAt"`
	}

	// CreateAccountInput is the creation payload. Nil fields were absent.
	CreateAccountInput struct {
		Name        *string
		Description *string
		Budget      *Money
	}

	// NewTransaction is the append payload for a ledger.
	NewTransaction struct {
		Value       *Money
		Type        string
		Description string
	}

	FavoriteStatus struct {
		Status bool `json:"status"`
	}

	DeleteResult struct {
		Acknowledged bool `json:"acknowledged"`
		DeletedCount int  `json:"deletedCount"`
	}

	// ListOptions carries the window and sort expression of a listing call.
	ListOptions struct {
		Limit  int
		Offset int
		Sort   string
	}

	// AccountQuery is the filter/projection handed to a store.
	AccountQuery struct {
		OwnerID string
		Sort    []SortField
		// Limit < 0 means unbounded.
		Limit            int
		Offset           int
		WithTransactions bool
	}
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidField     = errors.New("invalid sort field")
	ErrInvalidDirection = errors.New("invalid sort direction")
	ErrTypeMismatch     = errors.New("field type mismatch")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("concurrent modification")
	ErrForbidden        = errors.New("forbidden")
	ErrStorage          = errors.New("storage failure")
)

// ValidationError reports per-field problems of a payload.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, k := range sortedKeys(e.Fields) {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
}

// Validate checks the creation payload. At least one of name and description
// must carry text; the placeholder name covers a missing name.
func (in CreateAccountInput) Validate() error {
	verr := &ValidationError{}
	name := strings.TrimSpace(deref(in.Name))
	desc := strings.TrimSpace(deref(in.Description))

	if name == "" && desc == "" {
		verr.add("name", "name or description is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		verr.add("name", "name too long (max 120 characters)")
	}
	if utf8.RuneCountInString(desc) > maxDescriptionLength {
		verr.add("description", "description too long (max 500 characters)")
	}
	if in.Budget != nil && in.Budget.IsNegative() {
		verr.add("budget", "budget cannot be negative")
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// NewAccount builds a fresh account with an empty ledger and zero balance.
func NewAccount(id, ownerID string, in CreateAccountInput, now time.Time) Account {
	name := strings.TrimSpace(deref(in.Name))
	if name == "" {
		name = DefaultAccountName
	}
	budget := Zero
	if in.Budget != nil {
		budget = *in.Budget
	}
	return Account{
		ID:             id,
		OwnerID:        ownerID,
		Name:           name,
		Description:    strings.TrimSpace(deref(in.Description)),
		Budget:         budget,
		CurrentBalance: Zero,
		Transactions:   []Transaction{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Clone returns a deep copy so callers cannot alias the ledger.
func (a Account) Clone() Account {
	out := a
	if a.Transactions != nil {
		out.Transactions = append([]Transaction(nil), a.Transactions...)
	}
	if a.BalanceOverride != nil {
		o := *a.BalanceOverride
		out.BalanceOverride = &o
	}
	return out
}

// Public strips the owner reference.
func (a Account) Public() Account {
	out := a.Clone()
	out.OwnerID = ""
	return out
}

// Summary strips the owner reference and the ledger, as used in listings.
func (a Account) Summary() Account {
	out := a
	out.OwnerID = ""
	out.Transactions = nil
	if a.BalanceOverride != nil {
		o := *a.BalanceOverride
		out.BalanceOverride = &o
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
