// Package storage defines the persistence port of the account aggregate.
package storage

import (
	"context"
	"fmt"

	"conti/internal/core"
)

// AccountStore persists accounts together with their embedded ledgers.
// Every implementation must be safe for concurrent use.
type AccountStore interface {
	// FindOne returns the full account, ledger included.
	FindOne(ctx context.Context, id string) (core.Account, error)
	// Find applies the owner filter, sort, window and projection of q.
	Find(ctx context.Context, q core.AccountQuery) ([]core.Account, error)
	CountDocuments(ctx context.Context, ownerID string) (int, error)
	// Save inserts when a.Version is 0 and otherwise replaces the stored
	// account only if its version still equals a.Version. On success
	// a.Version holds the new version.
	Save(ctx context.Context, a *core.Account) error
	FindOneAndDelete(ctx context.Context, id string) (core.Account, error)
	Ping(ctx context.Context) error
	Close() error
}

// Wrap marks err as an infrastructure failure of op.
func Wrap(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", core.ErrStorage, op, err)
}

// NotFound reports a missing account.
func NotFound(id string) error {
	return fmt.Errorf("%w: account %s", core.ErrNotFound, id)
}

// Conflict reports a stale version on Save.
func Conflict(id string, version int64) error {
	return fmt.Errorf("%w: account %s at version %d", core.ErrConflict, id, version)
}
