package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"conti/internal/cache"
	"conti/internal/core"
	"conti/internal/events"
	"conti/internal/identity"
	applog "conti/internal/log"
	"conti/internal/storage"
)

// AccountService orchestrates the account aggregate: every mutation loads
// the account, changes it in memory and commits it with a single Save.
// Cache invalidation and event publication happen only after the commit.
type AccountService struct {
	store     storage.AccountStore
	publisher events.Publisher
	summaries cache.Cache[core.Summary]
	flight    singleflight.Group
	loc       *time.Location
	now       func() time.Time
	logger    *applog.Logger
}

// summaryTimeout bounds one shared GlobalInfo computation.
const summaryTimeout = 30 * time.Second

type Option func(*AccountService)

// WithPublisher sets the post-commit event sink.
func WithPublisher(p events.Publisher) Option {
	return func(s *AccountService) { s.publisher = p }
}

// WithSummaryCache caches GlobalInfo results per owner.
func WithSummaryCache(c cache.Cache[core.Summary]) Option {
	return func(s *AccountService) { s.summaries = c }
}

// WithLocation sets the timezone deciding the current month of a summary.
func WithLocation(loc *time.Location) Option {
	return func(s *AccountService) { s.loc = loc }
}

func WithClock(now func() time.Time) Option {
	return func(s *AccountService) { s.now = now }
}

func WithLogger(l *applog.Logger) Option {
	return func(s *AccountService) { s.logger = l }
}

func NewAccountService(store storage.AccountStore, opts ...Option) *AccountService {
	s := &AccountService{
		store:     store,
		publisher: events.Nop{},
		loc:       time.UTC,
		now:       time.Now,
		logger:    applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentAccount),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AccountService) Create(ctx context.Context, ownerID string, in core.CreateAccountInput) (core.Account, error) {
	if err := in.Validate(); err != nil {
		return core.Account{}, err
	}

	a := core.NewAccount(uuid.NewString(), ownerID, in, s.now().UTC())
	if err := s.store.Save(ctx, &a); err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}

	s.committed(ctx, events.New(events.AccountCreated, a, a.CreatedAt), applog.OpCreate)
	return a.Public(), nil
}

// Get returns the account with its ledger; the owner reference is stripped.
func (s *AccountService) Get(ctx context.Context, id string) (core.Account, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return core.Account{}, err
	}
	return a.Public(), nil
}

// GetByID returns the full stored account, owner included.
func (s *AccountService) GetByID(ctx context.Context, id string) (core.Account, error) {
	return s.load(ctx, id)
}

// List returns one page of the owner's accounts without their ledgers.
func (s *AccountService) List(ctx context.Context, ownerID string, opts core.ListOptions) (core.Page[core.Account], error) {
	sortFields, err := core.CompileSort(opts.Sort, core.AccountSortFields)
	if err != nil {
		return core.Page[core.Account]{}, err
	}
	if _, err := core.BuildPageable(opts.Limit, opts.Offset, 0); err != nil {
		return core.Page[core.Account]{}, err
	}

	total, err := s.store.CountDocuments(ctx, ownerID)
	if err != nil {
		return core.Page[core.Account]{}, fmt.Errorf("count accounts: %w", err)
	}
	accounts, err := s.store.Find(ctx, core.AccountQuery{
		OwnerID: ownerID,
		Sort:    sortFields,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
	if err != nil {
		return core.Page[core.Account]{}, fmt.Errorf("find accounts: %w", err)
	}

	pageable, err := core.BuildPageable(opts.Limit, opts.Offset, total)
	if err != nil {
		return core.Page[core.Account]{}, err
	}
	data := make([]core.Account, len(accounts))
	for i, a := range accounts {
		data[i] = a.Summary()
	}
	return core.Page[core.Account]{Data: data, Pageable: pageable}, nil
}

// Update applies a patch of the modifiable fields. The ledger and the
// balance are never touched.
func (s *AccountService) Update(ctx context.Context, id string, patch core.AccountPatch) (core.Account, error) {
	if err := patch.Validate(); err != nil {
		return core.Account{}, err
	}
	a, err := s.mutate(ctx, id, func(a *core.Account, now time.Time) error {
		patch.Apply(a, now)
		return nil
	})
	if err != nil {
		return core.Account{}, err
	}
	s.committed(ctx, events.New(events.AccountUpdated, a, a.UpdatedAt), applog.OpUpdate)
	return a.Public(), nil
}

func (s *AccountService) ToggleFavorite(ctx context.Context, id string) (core.FavoriteStatus, error) {
	a, err := s.mutate(ctx, id, func(a *core.Account, now time.Time) error {
		a.IsFavorite = !a.IsFavorite
		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		return core.FavoriteStatus{}, err
	}
	s.committed(ctx, events.New(events.AccountUpdated, a, a.UpdatedAt), applog.OpUpdate)
	return core.FavoriteStatus{Status: a.IsFavorite}, nil
}

// Delete removes the account and returns its last state.
func (s *AccountService) Delete(ctx context.Context, id string) (core.Account, error) {
	if _, err := s.load(ctx, id); err != nil {
		return core.Account{}, err
	}
	a, err := s.store.FindOneAndDelete(ctx, id)
	if err != nil {
		return core.Account{}, fmt.Errorf("delete account: %w", err)
	}
	s.committed(ctx, events.New(events.AccountDeleted, a, s.now().UTC()), applog.OpDelete)
	return a.Public(), nil
}

// SetCurrentBalance overrides the balance outside the ledger. It requires
// the admin capability; the override lasts until the next ledger mutation.
func (s *AccountService) SetCurrentBalance(ctx context.Context, id string, value core.Money, reason string) error {
	if !identity.IsAdmin(ctx) {
		return fmt.Errorf("%w: balance override requires admin", core.ErrForbidden)
	}
	a, err := s.mutate(ctx, id, func(a *core.Account, now time.Time) error {
		a.OverrideBalance(value, reason, now)
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.WarnContext(ctx, "Balance overridden",
		append(applog.NewFields().WithAccount(a.ID, a.OwnerID).ToSlice(),
			applog.FieldAmount, value.String(), "reason", reason)...)
	s.committed(ctx, events.New(events.BalanceOverridden, a, a.UpdatedAt), applog.OpOverride)
	return nil
}

// ReconcileBalance re-derives the balance from the ledger.
func (s *AccountService) ReconcileBalance(ctx context.Context, id string) (core.Account, error) {
	a, err := s.mutate(ctx, id, func(a *core.Account, now time.Time) error {
		a.Reconcile(now)
		return nil
	})
	if err != nil {
		return core.Account{}, err
	}
	s.committed(ctx, events.New(events.BalanceReconciled, a, a.UpdatedAt), applog.OpReconcile)
	return a.Public(), nil
}

// Balance returns the sum of the account's ledger.
func (s *AccountService) Balance(ctx context.Context, id string) (core.Money, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return core.Zero, err
	}
	return a.LedgerBalance(), nil
}

func (s *AccountService) CreateTransaction(ctx context.Context, accountID string, in core.NewTransaction) (core.Transaction, error) {
	var tx core.Transaction
	a, err := s.mutate(ctx, accountID, func(a *core.Account, now time.Time) error {
		var err error
		tx, err = a.AppendTransaction(in, now)
		return err
	})
	if err != nil {
		return core.Transaction{}, err
	}
	s.committed(ctx, events.New(events.TransactionCreated, a, tx.CreatedAt).WithTransaction(tx), applog.OpAppend)
	return tx, nil
}

func (s *AccountService) DeleteTransaction(ctx context.Context, accountID, txID string) (core.DeleteResult, error) {
	var removed core.Transaction
	a, err := s.mutate(ctx, accountID, func(a *core.Account, now time.Time) error {
		for _, tx := range a.Transactions {
			if tx.ID == txID {
				removed = tx
				break
			}
		}
		return a.RemoveTransaction(txID, now)
	})
	if err != nil {
		return core.DeleteResult{}, err
	}
	s.committed(ctx, events.New(events.TransactionDeleted, a, a.UpdatedAt).WithTransaction(removed), applog.OpDelete)
	return core.DeleteResult{Acknowledged: true, DeletedCount: 1}, nil
}

// ListTransactions pages the ledger, most recent first.
func (s *AccountService) ListTransactions(ctx context.Context, accountID string, opts core.ListOptions) (core.Page[core.Transaction], error) {
	if _, err := core.BuildPageable(opts.Limit, opts.Offset, 0); err != nil {
		return core.Page[core.Transaction]{}, err
	}
	a, err := s.load(ctx, accountID)
	if err != nil {
		return core.Page[core.Transaction]{}, err
	}
	return core.PageTransactions(a.Transactions, opts.Limit, opts.Offset)
}

// GlobalInfo summarises every account of ownerID. Results are cached per
// owner and concurrent computations for one owner are collapsed.
func (s *AccountService) GlobalInfo(ctx context.Context, ownerID string) (core.Summary, error) {
	if s.summaries != nil {
		sum, ok, err := s.summaries.Get(ctx, ownerID)
		if err != nil {
			s.logger.WarnContext(ctx, "Summary cache read failed",
				applog.NewFields().WithError(err).WithOperation(applog.OpSummarize).ToSlice()...)
		} else if ok {
			return sum, nil
		}
	}

	// The shared computation outlives any single caller; each caller still
	// stops waiting when its own ctx is done.
	detached := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(ownerID, func() (any, error) {
		shared, cancel := context.WithTimeout(detached, summaryTimeout)
		defer cancel()

		accounts, err := s.store.Find(shared, core.AccountQuery{OwnerID: ownerID, Limit: -1, WithTransactions: true})
		if err != nil {
			return nil, fmt.Errorf("load accounts: %w", err)
		}
		sum := core.Summarize(accounts, s.now(), s.loc)
		if s.summaries != nil {
			if err := s.summaries.Set(shared, ownerID, sum); err != nil {
				s.logger.WarnContext(shared, "Summary cache write failed",
					applog.NewFields().WithError(err).WithOperation(applog.OpSummarize).ToSlice()...)
			}
		}
		return sum, nil
	})

	select {
	case <-ctx.Done():
		return core.Summary{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return core.Summary{}, res.Err
		}
		return res.Val.(core.Summary), nil
	}
}

// Ready reports whether the store is reachable.
func (s *AccountService) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// load fetches an account the caller may address. Foreign accounts are
// reported as missing.
func (s *AccountService) load(ctx context.Context, id string) (core.Account, error) {
	a, err := s.store.FindOne(ctx, id)
	if err != nil {
		return core.Account{}, err
	}
	if !identity.CanAccess(ctx, a.OwnerID) {
		return core.Account{}, storage.NotFound(id)
	}
	return a, nil
}

// mutate runs one read-modify-write cycle. Nothing is persisted if fn or
// Save fails.
func (s *AccountService) mutate(ctx context.Context, id string, fn func(a *core.Account, now time.Time) error) (core.Account, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return core.Account{}, err
	}
	if err := fn(&a, s.now().UTC()); err != nil {
		return core.Account{}, err
	}
	if err := s.store.Save(ctx, &a); err != nil {
		if errors.Is(err, core.ErrConflict) {
			s.logger.WarnContext(ctx, "Concurrent modification rejected",
				applog.NewFields().WithAccount(a.ID, a.OwnerID).ToSlice()...)
		}
		return core.Account{}, fmt.Errorf("save account: %w", err)
	}
	return a, nil
}

// committed runs the post-commit side effects. Failures are logged only.
func (s *AccountService) committed(ctx context.Context, e events.AccountEvent, op string) {
	if s.summaries != nil {
		if err := s.summaries.Delete(ctx, e.OwnerID); err != nil {
			s.logger.WarnContext(ctx, "Summary cache invalidation failed",
				applog.NewFields().WithError(err).WithAccount(e.AccountID, e.OwnerID).ToSlice()...)
		}
	}

	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish account event",
			append(applog.NewFields().WithError(err).WithAccount(e.AccountID, e.OwnerID).WithOperation(applog.OpPublish).ToSlice(),
				applog.FieldEventType, string(e.Type))...)
	}

	s.logger.DebugContext(ctx, "Account committed",
		append(applog.NewFields().WithAccount(e.AccountID, e.OwnerID).WithOperation(op).ToSlice(),
			applog.FieldVersion, e.Version)...)
}

// Close releases the store and the publisher.
func (s *AccountService) Close() error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close account service: %w", errors.Join(errs...))
	}
	return nil
}
