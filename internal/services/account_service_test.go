package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"conti/internal/cache"
	"conti/internal/core"
	"conti/internal/events"
	"conti/internal/identity"
	applog "conti/internal/log"
	"conti/internal/storage"
	"conti/internal/storage/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.AccountEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.AccountEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// countingStore counts Find calls and can fail the next Save.
type countingStore struct {
	storage.AccountStore
	mu      sync.Mutex
	finds   int
	saveErr error
}

func (s *countingStore) Find(ctx context.Context, q core.AccountQuery) ([]core.Account, error) {
	s.mu.Lock()
	s.finds++
	s.mu.Unlock()
	return s.AccountStore.Find(ctx, q)
}

func (s *countingStore) Save(ctx context.Context, a *core.Account) error {
	s.mu.Lock()
	err := s.saveErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.AccountStore.Save(ctx, a)
}

// gatedStore holds Find until release is closed or the caller's ctx ends.
type gatedStore struct {
	storage.AccountStore
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (s *gatedStore) Find(ctx context.Context, q core.AccountQuery) ([]core.Account, error) {
	s.once.Do(func() { close(s.entered) })
	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.AccountStore.Find(ctx, q)
}

type fixture struct {
	svc   *AccountService
	store *countingStore
	pub   *recordingPublisher
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: &countingStore{AccountStore: memory.New()},
		pub:   &recordingPublisher{},
		now:   time.Date(2025, 5, 15, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewAccountService(f.store,
		WithPublisher(f.pub),
		WithSummaryCache(cache.NewLRUCache[core.Summary](16, time.Minute)),
		WithClock(func() time.Time { return f.now }),
		WithLogger(applog.New(applog.Config{Output: io.Discard, Component: applog.ComponentAccount})),
	)
	return f
}

func strp(s string) *string { return &s }

func moneyp(s string) *core.Money {
	m := core.MustMoney(s)
	return &m
}

func (f *fixture) create(t *testing.T, owner, name, budget string) core.Account {
	t.Helper()
	a, err := f.svc.Create(context.Background(), owner, core.CreateAccountInput{Name: strp(name), Budget: moneyp(budget)})
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	return a
}

func TestEndToEndBalanceAndSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, "alice", "Main", "1000")

	for _, v := range []string{"500", "-120", "30"} {
		if _, err := f.svc.CreateTransaction(ctx, a.ID, core.NewTransaction{Value: moneyp(v)}); err != nil {
			t.Fatalf("transaction %s: %v", v, err)
		}
	}

	got, err := f.svc.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.CurrentBalance.Equal(core.MustMoney("410")) || len(got.Transactions) != 3 {
		t.Fatalf("balance = %s, ledger = %d", got.CurrentBalance, len(got.Transactions))
	}
	if got.OwnerID != "" {
		t.Fatalf("owner must be stripped from reads")
	}

	bal, err := f.svc.Balance(ctx, a.ID)
	if err != nil || !bal.Equal(core.MustMoney("410")) {
		t.Fatalf("Balance() = %s, %v", bal, err)
	}

	sum, err := f.svc.GlobalInfo(ctx, "alice")
	if err != nil {
		t.Fatalf("global info: %v", err)
	}
	if !sum.TotalBudget.Equal(core.MustMoney("1000")) || !sum.TotalSpent.Equal(core.MustMoney("410")) {
		t.Fatalf("summary = %+v", sum)
	}
	if !sum.TotalSpentThisMonth.Equal(core.MustMoney("410")) {
		t.Fatalf("this month = %s", sum.TotalSpentThisMonth)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), "alice", core.CreateAccountInput{Budget: moneyp("-5")})
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if len(f.pub.types()) != 0 {
		t.Fatalf("no event expected for a rejected create")
	}

	a, err := f.svc.Create(context.Background(), "alice", core.CreateAccountInput{Description: strp("groceries")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.Name != core.DefaultAccountName || !a.Budget.IsZero() || !a.CurrentBalance.IsZero() || a.Version != 1 {
		t.Fatalf("unexpected defaults: %+v", a)
	}
}

func TestToggleFavoriteTwiceIsIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, "alice", "Main", "0")

	first, err := f.svc.ToggleFavorite(ctx, a.ID)
	if err != nil || !first.Status {
		t.Fatalf("first toggle = %+v, %v", first, err)
	}
	second, err := f.svc.ToggleFavorite(ctx, a.ID)
	if err != nil || second.Status {
		t.Fatalf("second toggle = %+v, %v", second, err)
	}
	got, _ := f.svc.Get(ctx, a.ID)
	if got.IsFavorite != a.IsFavorite {
		t.Fatalf("favorite flag changed")
	}
}

func TestListPaginationAndSort(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, b := range []string{"30", "10", "50", "20", "40"} {
		a := f.create(t, "alice", "Acct"+b, b)
		_, _ = f.svc.CreateTransaction(ctx, a.ID, core.NewTransaction{Value: moneyp("1")})
	}
	f.create(t, "bob", "Other", "1")

	page, err := f.svc.List(ctx, "alice", core.ListOptions{Limit: 2, Offset: 0})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Data) != 2 || page.Pageable != (core.Pageable{Limit: 2, Offset: 0, Total: 5}) {
		t.Fatalf("page = %d items, %+v", len(page.Data), page.Pageable)
	}
	for _, a := range page.Data {
		if a.Transactions != nil || a.OwnerID != "" {
			t.Fatalf("listing must strip ledger and owner: %+v", a)
		}
	}

	page, err = f.svc.List(ctx, "alice", core.ListOptions{Limit: 10, Sort: "budget:desc"})
	if err != nil {
		t.Fatalf("list sorted: %v", err)
	}
	want := []string{"50", "40", "30", "20", "10"}
	for i, a := range page.Data {
		if !a.Budget.Equal(core.MustMoney(want[i])) {
			t.Fatalf("position %d budget = %s, want %s", i, a.Budget, want[i])
		}
	}

	if _, err := f.svc.List(ctx, "alice", core.ListOptions{Limit: 10, Sort: "owner"}); !errors.Is(err, core.ErrInvalidField) {
		t.Fatalf("expected ErrInvalidField, got %v", err)
	}
	if _, err := f.svc.List(ctx, "alice", core.ListOptions{Limit: 10, Sort: "name:up"}); !errors.Is(err, core.ErrInvalidDirection) {
		t.Fatalf("expected ErrInvalidDirection, got %v", err)
	}
	if _, err := f.svc.List(ctx, "alice", core.ListOptions{Limit: -1}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestZeroTransactionRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, "alice", "Main", "0")
	_, _ = f.svc.CreateTransaction(ctx, a.ID, core.NewTransaction{Value: moneyp("25")})
	before := len(f.pub.types())

	_, err := f.svc.CreateTransaction(ctx, a.ID, core.NewTransaction{Value: moneyp("0")})
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	got, _ := f.svc.Get(ctx, a.ID)
	if len(got.Transactions) != 1 || !got.CurrentBalance.Equal(core.MustMoney("25")) {
		t.Fatalf("ledger changed: %+v", got)
	}
	if len(f.pub.types()) != before {
		t.Fatalf("rejected transaction must not publish")
	}

	if _, err := f.svc.CreateTransaction(ctx, "missing", core.NewTransaction{Value: moneyp("1")}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteOneOfThreeTransactions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, "alice", "Main", "0")

	var ids []string
	for _, v := range []string{"100", "-40", "15"} {
		tx, _ := f.svc.CreateTransaction(ctx, a.ID, core.NewTransaction{Value: moneyp(v)})
		ids = append(ids, tx.ID)
	}

	res, err := f.svc.DeleteTransaction(ctx, a.ID, ids[1])
	if err != nil || res != (core.DeleteResult{Acknowledged: true, DeletedCount: 1}) {
		t.Fatalf("delete = %+v, %v", res, err)
	}
	got, _ := f.svc.Get(ctx, a.ID)
	if len(got.Transactions) != 2 || !got.CurrentBalance.Equal(core.MustMoney("115")) {
		t.Fatalf("after delete: ledger=%d balance=%s", len(got.Transactions), got.CurrentBalance)
	}

	if _, err := f.svc.DeleteTransaction(ctx, a.ID, ids[1]); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a removed transaction, got %v", err)
	}

	last := f.pub.events[len(f.pub.events)-1]
	if last.Type != events.TransactionDeleted || last.Transaction == nil || last.Transaction.ID != ids[1] {
		t.Fatalf("unexpected last event: %+v", last)
	}
}

func TestListTransactionsNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, "alice", "Main", "0")
	for i, v := range []string{"1", "2", "3", "4", "5"} {
		f.now = time.Date(2025, 5, 1+i, 0, 0, 0, 0, time.UTC)
		_, _ = f.svc.CreateTransaction(ctx, a.ID, core.NewTransaction{Value: moneyp(v)})
	}

	page, err := f.svc.ListTransactions(ctx, a.ID, core.ListOptions{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Pageable.Total != 5 || len(page.Data) != 2 {
		t.Fatalf("page = %+v", page.Pageable)
	}
	if !page.Data[0].Value.Equal(core.MustMoney("4")) || !page.Data[1].Value.Equal(core.MustMoney("3")) {
		t.Fatalf("unexpected order: %s, %s", page.Data[0].Value, page.Data[1].Value)
	}
}

func TestUpdateLeavesLedgerAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, "alice", "Main", "10")
	_, _ = f.svc.CreateTransaction(ctx, a.ID, core.NewTransaction{Value: moneyp("7")})

	patch, err := core.ParseAccountPatch([]byte(`{"name":"Renamed","budget":99,"currentBalance":1}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got, err := f.svc.Update(ctx, a.ID, patch)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Name != "Renamed" || !got.Budget.Equal(core.MustMoney("99")) {
		t.Fatalf("patch not applied: %+v", got)
	}
	if !got.CurrentBalance.Equal(core.MustMoney("7")) || len(got.Transactions) != 1 {
		t.Fatalf("update touched the ledger: %+v", got)
	}

	if _, err := f.svc.Update(ctx, "missing", patch); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOwnershipHidesForeignAccounts(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "alice", "Main", "10")
	bob := identity.WithOwner(context.Background(), "bob")

	if _, err := f.svc.Get(bob, a.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.CreateTransaction(bob, a.ID, core.NewTransaction{Value: moneyp("1")}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.Delete(bob, a.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	alice := identity.WithOwner(context.Background(), "alice")
	if _, err := f.svc.Get(alice, a.ID); err != nil {
		t.Fatalf("owner get: %v", err)
	}
}

func TestBalanceOverrideAndReconcile(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "alice", "Main", "0")
	owner := identity.WithOwner(context.Background(), "alice")
	_, _ = f.svc.CreateTransaction(owner, a.ID, core.NewTransaction{Value: moneyp("20")})

	err := f.svc.SetCurrentBalance(owner, a.ID, core.MustMoney("500"), "opening balance")
	if !errors.Is(err, core.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	admin := identity.WithAdmin(owner)
	if err := f.svc.SetCurrentBalance(admin, a.ID, core.MustMoney("500"), "opening balance"); err != nil {
		t.Fatalf("override: %v", err)
	}
	got, _ := f.svc.Get(owner, a.ID)
	if !got.CurrentBalance.Equal(core.MustMoney("500")) || got.BalanceOverride == nil {
		t.Fatalf("override not stored: %+v", got)
	}
	if bal, _ := f.svc.Balance(owner, a.ID); !bal.Equal(core.MustMoney("20")) {
		t.Fatalf("ledger balance = %s, want 20", bal)
	}

	got, err = f.svc.ReconcileBalance(owner, a.ID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !got.CurrentBalance.Equal(core.MustMoney("20")) || got.BalanceOverride != nil {
		t.Fatalf("reconcile = %+v", got)
	}

	types := f.pub.types()
	if types[len(types)-2] != events.BalanceOverridden || types[len(types)-1] != events.BalanceReconciled {
		t.Fatalf("unexpected events: %v", types)
	}
}

func TestConflictIsNotApplied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, "alice", "Main", "0")
	before := len(f.pub.types())

	f.store.saveErr = storage.Conflict(a.ID, 1)
	_, err := f.svc.CreateTransaction(ctx, a.ID, core.NewTransaction{Value: moneyp("5")})
	if !errors.Is(err, core.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	f.store.saveErr = nil

	got, _ := f.svc.Get(ctx, a.ID)
	if len(got.Transactions) != 0 || !got.CurrentBalance.IsZero() {
		t.Fatalf("failed save leaked: %+v", got)
	}
	if len(f.pub.types()) != before {
		t.Fatalf("failed save must not publish")
	}
}

func TestGlobalInfoCachedAndInvalidated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, "alice", "Main", "100")

	if _, err := f.svc.GlobalInfo(ctx, "alice"); err != nil {
		t.Fatalf("global info: %v", err)
	}
	if _, err := f.svc.GlobalInfo(ctx, "alice"); err != nil {
		t.Fatalf("global info: %v", err)
	}
	if f.store.finds != 1 {
		t.Fatalf("finds = %d, want 1 (second call cached)", f.store.finds)
	}

	_, _ = f.svc.CreateTransaction(ctx, a.ID, core.NewTransaction{Value: moneyp("-30"), Type: "food"})
	sum, _ := f.svc.GlobalInfo(ctx, "alice")
	if f.store.finds != 2 {
		t.Fatalf("finds = %d, want 2 (mutation invalidates)", f.store.finds)
	}
	if !sum.SpentByType["food"].Equal(core.MustMoney("-30")) {
		t.Fatalf("summary not recomputed: %+v", sum)
	}

	empty, err := f.svc.GlobalInfo(ctx, "nobody")
	if err != nil || !empty.TotalBudget.IsZero() || len(empty.SpentByType) != 0 {
		t.Fatalf("empty owner summary = %+v, %v", empty, err)
	}
}

func TestGlobalInfoSurvivesCancelledCaller(t *testing.T) {
	store := &gatedStore{
		AccountStore: memory.New(),
		entered:      make(chan struct{}),
		release:      make(chan struct{}),
	}
	svc := NewAccountService(store, WithLogger(applog.New(applog.Config{Output: io.Discard})))
	if _, err := svc.Create(context.Background(), "alice", core.CreateAccountInput{Name: strp("Main"), Budget: moneyp("100")}); err != nil {
		t.Fatalf("create: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := svc.GlobalInfo(ctx, "alice")
		first <- err
	}()
	<-store.entered

	type result struct {
		sum core.Summary
		err error
	}
	second := make(chan result, 1)
	go func() {
		sum, err := svc.GlobalInfo(context.Background(), "alice")
		second <- result{sum, err}
	}()

	cancel()
	if err := <-first; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller err = %v, want context.Canceled", err)
	}

	time.Sleep(20 * time.Millisecond)
	close(store.release)

	select {
	case res := <-second:
		if res.err != nil {
			t.Fatalf("waiting caller err = %v", res.err)
		}
		if !res.sum.TotalBudget.Equal(core.MustMoney("100")) {
			t.Fatalf("summary = %+v", res.sum)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiting caller never returned")
	}
}

func TestDeleteAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, "alice", "Main", "0")

	deleted, err := f.svc.Delete(ctx, a.ID)
	if err != nil || deleted.ID != a.ID {
		t.Fatalf("delete = %+v, %v", deleted, err)
	}
	if _, err := f.svc.Get(ctx, a.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.Delete(ctx, a.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("broker down")
	if _, err := f.svc.Create(context.Background(), "alice", core.CreateAccountInput{Name: strp("Main")}); err != nil {
		t.Fatalf("create must succeed when publishing fails: %v", err)
	}
}
