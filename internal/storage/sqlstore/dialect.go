package sqlstore

import (
	"strconv"
	"strings"
	"time"

	"conti/internal/core"
)

// Dialect selects the SQL flavour and migration set of a Store.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

func (d Dialect) driverName() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite"
}

// rebind turns ? placeholders into $n for Postgres.
func (d Dialect) rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d Dialect) timeArg(t time.Time) any {
	if d == Postgres {
		return t.UTC()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// orderColumn maps an account sort field to an ORDER BY expression whose
// ordering matches core.CompareAccounts.
func (d Dialect) orderColumn(field string) (string, bool) {
	switch field {
	case core.FieldName:
		return d.textColumn("name"), true
	case core.FieldDescription:
		return d.textColumn("description"), true
	case core.FieldIsFavorite:
		return "is_favorite", true
	case core.FieldBudget:
		return d.numericColumn("budget"), true
	case core.FieldCurrentBalance:
		return d.numericColumn("current_balance"), true
	}
	return "", false
}

func (d Dialect) textColumn(col string) string {
	if d == Postgres {
		return col + ` COLLATE "C"`
	}
	return col
}

func (d Dialect) numericColumn(col string) string {
	if d == Postgres {
		return col
	}
	return "CAST(" + col + " AS REAL)"
}

// window renders LIMIT/OFFSET; a negative limit means unbounded.
func (d Dialect) window(limit, offset int) (string, []any) {
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		if d == Postgres {
			return " OFFSET ?", []any{offset}
		}
		return " LIMIT -1 OFFSET ?", []any{offset}
	}
	return " LIMIT ? OFFSET ?", []any{limit, offset}
}
