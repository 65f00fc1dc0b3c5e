// Package events describes the notifications emitted after an account
// mutation has been committed.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"conti/internal/core"
)

type Type string

const (
	AccountCreated     Type = "account.created"
	AccountUpdated     Type = "account.updated"
	AccountDeleted     Type = "account.deleted"
	TransactionCreated Type = "transaction.created"
	TransactionDeleted Type = "transaction.deleted"
	BalanceOverridden  Type = "balance.overridden"
	BalanceReconciled  Type = "balance.reconciled"
)

// AccountEvent is a post-commit notification. Version is the account
// version the mutation produced, so consumers can drop stale deliveries.
type AccountEvent struct {
	ID          string            `json:"id"`
	Type        Type              `json:"type"`
	AccountID   string            `json:"accountId"`
	OwnerID     string            `json:"ownerId"`
	AccountName string            `json:"accountName"`
	Version     int64             `json:"version"`
	Balance     core.Money        `json:"balance"`
	Transaction *core.Transaction `json:"transaction,omitempty"`
	OccurredAt  time.Time         `json:"occurredAt"`
}

// New builds an event describing the committed state of a.
func New(t Type, a core.Account, at time.Time) AccountEvent {
	return AccountEvent{
		ID:          uuid.NewString(),
		Type:        t,
		AccountID:   a.ID,
		OwnerID:     a.OwnerID,
		AccountName: a.Name,
		Version:     a.Version,
		Balance:     a.CurrentBalance,
		OccurredAt:  at,
	}
}

// WithTransaction attaches the ledger entry a transaction event is about.
func (e AccountEvent) WithTransaction(tx core.Transaction) AccountEvent {
	e.Transaction = &tx
	return e
}

// Key groups events of one account on partitioned transports.
func (e AccountEvent) Key() string {
	return e.AccountID
}

func (e AccountEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func FromJSON(data []byte) (AccountEvent, error) {
	var e AccountEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return AccountEvent{}, err
	}
	return e, nil
}

// Publisher delivers events to a transport.
type Publisher interface {
	Publish(ctx context.Context, e AccountEvent) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, AccountEvent) error { return nil }

func (Nop) Close() error { return nil }
