// Package sqlstore persists accounts in SQLite or Postgres through
// database/sql. Each account is one row; its ledger is a JSON column so the
// balance and the ledger commit in the same statement.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"conti/internal/core"
	applog "conti/internal/log"
	"conti/internal/storage"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const columns = `id, owner_id, name, description, budget, current_balance, is_favorite, transactions, balance_override, version, created_at, updated_at`

const summaryColumns = `id, owner_id, name, description, budget, current_balance, is_favorite, NULL, balance_override, version, created_at, updated_at`

type Store struct {
	db      *sql.DB
	dialect Dialect
}

var _ storage.AccountStore = (*Store)(nil)

// OpenSQLite opens (creating if needed) the database file at dbPath and
// migrates it.
func OpenSQLite(ctx context.Context, dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open(SQLite.driverName(), dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	return open(ctx, db, SQLite, dbPath)
}

// OpenPostgres connects through pgx and migrates the schema.
func OpenPostgres(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open(Postgres.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return open(ctx, db, Postgres, dsn)
}

func open(ctx context.Context, db *sql.DB, d Dialect, dsn string) (*Store, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(d, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	applog.FromContext(ctx).WithComponent(applog.ComponentStorage).InfoContext(ctx, "Account store ready", "dialect", string(d))
	return &Store{db: db, dialect: d}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storage.Wrap("ping", err)
	}
	return nil
}

func (s *Store) FindOne(ctx context.Context, id string) (core.Account, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(`SELECT `+columns+` FROM accounts WHERE id = ?`), id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, storage.NotFound(id)
	}
	if err != nil {
		return core.Account{}, storage.Wrap("find account", err)
	}
	return a, nil
}

func (s *Store) Find(ctx context.Context, q core.AccountQuery) ([]core.Account, error) {
	var (
		b    strings.Builder
		args []any
	)
	b.WriteString("SELECT ")
	if q.WithTransactions {
		b.WriteString(columns)
	} else {
		b.WriteString(summaryColumns)
	}
	b.WriteString(" FROM accounts")
	if q.OwnerID != "" {
		b.WriteString(" WHERE owner_id = ?")
		args = append(args, q.OwnerID)
	}

	b.WriteString(" ORDER BY ")
	for _, f := range q.Sort {
		col, ok := s.dialect.orderColumn(f.Field)
		if !ok {
			return nil, fmt.Errorf("%w: %q", core.ErrInvalidField, f.Field)
		}
		dir := "ASC"
		if f.Direction == core.Desc {
			dir = "DESC"
		}
		b.WriteString(col + " " + dir + ", ")
	}
	b.WriteString("seq ASC")

	clause, windowArgs := s.dialect.window(q.Limit, q.Offset)
	b.WriteString(clause)
	args = append(args, windowArgs...)

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(b.String()), args...)
	if err != nil {
		return nil, storage.Wrap("find accounts", err)
	}
	defer rows.Close()

	out := []core.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, storage.Wrap("scan account", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Wrap("iterate accounts", err)
	}
	return out, nil
}

func (s *Store) CountDocuments(ctx context.Context, ownerID string) (int, error) {
	query, args := `SELECT COUNT(*) FROM accounts`, []any{}
	if ownerID != "" {
		query += ` WHERE owner_id = ?`
		args = append(args, ownerID)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, s.dialect.rebind(query), args...).Scan(&n); err != nil {
		return 0, storage.Wrap("count accounts", err)
	}
	return n, nil
}

func (s *Store) Save(ctx context.Context, a *core.Account) error {
	txs, override, err := encodeLedger(a)
	if err != nil {
		return storage.Wrap("encode ledger", err)
	}

	if a.Version == 0 {
		_, err := s.db.ExecContext(ctx, s.dialect.rebind(`INSERT INTO accounts (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			a.ID, a.OwnerID, a.Name, a.Description, a.Budget, a.CurrentBalance, a.IsFavorite,
			txs, override, 1, s.dialect.timeArg(a.CreatedAt), s.dialect.timeArg(a.UpdatedAt))
		if err != nil {
			return storage.Wrap("insert account", err)
		}
		a.Version = 1
		return nil
	}

	res, err := s.db.ExecContext(ctx, s.dialect.rebind(`UPDATE accounts SET
		name = ?, description = ?, budget = ?, current_balance = ?, is_favorite = ?,
		transactions = ?, balance_override = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`),
		a.Name, a.Description, a.Budget, a.CurrentBalance, a.IsFavorite,
		txs, override, s.dialect.timeArg(a.UpdatedAt), a.ID, a.Version)
	if err != nil {
		return storage.Wrap("update account", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storage.Wrap("update account", err)
	}
	if n == 0 {
		var one int
		err := s.db.QueryRowContext(ctx, s.dialect.rebind(`SELECT 1 FROM accounts WHERE id = ?`), a.ID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.NotFound(a.ID)
		}
		if err != nil {
			return storage.Wrap("check account", err)
		}
		return storage.Conflict(a.ID, a.Version)
	}
	a.Version++
	return nil
}

func (s *Store) FindOneAndDelete(ctx context.Context, id string) (core.Account, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(`DELETE FROM accounts WHERE id = ? RETURNING `+columns), id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, storage.NotFound(id)
	}
	if err != nil {
		return core.Account{}, storage.Wrap("delete account", err)
	}
	return a, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(sc scanner) (core.Account, error) {
	var (
		a                    core.Account
		txs, override        []byte
		createdAt, updatedAt timestamp
	)
	err := sc.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Description, &a.Budget, &a.CurrentBalance,
		&a.IsFavorite, &txs, &override, &a.Version, &createdAt, &updatedAt)
	if err != nil {
		return core.Account{}, err
	}
	a.CreatedAt, a.UpdatedAt = createdAt.Time, updatedAt.Time

	if txs != nil {
		a.Transactions = []core.Transaction{}
		if err := json.Unmarshal(txs, &a.Transactions); err != nil {
			return core.Account{}, fmt.Errorf("decode transactions: %w", err)
		}
	}
	if override != nil {
		a.BalanceOverride = &core.BalanceOverride{}
		if err := json.Unmarshal(override, a.BalanceOverride); err != nil {
			return core.Account{}, fmt.Errorf("decode balance override: %w", err)
		}
	}
	return a, nil
}

func encodeLedger(a *core.Account) (string, any, error) {
	txs := a.Transactions
	if txs == nil {
		txs = []core.Transaction{}
	}
	raw, err := json.Marshal(txs)
	if err != nil {
		return "", nil, err
	}
	if a.BalanceOverride == nil {
		return string(raw), nil, nil
	}
	o, err := json.Marshal(a.BalanceOverride)
	if err != nil {
		return "", nil, err
	}
	return string(raw), string(o), nil
}

// timestamp scans both native timestamps and RFC 3339 text.
type timestamp struct{ time.Time }

func (t *timestamp) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v.UTC()
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case nil:
		t.Time = time.Time{}
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
	return nil
}

func (t *timestamp) parse(s string) error {
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}
