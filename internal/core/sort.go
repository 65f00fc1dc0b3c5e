package core

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

type SortDirection string

const (
	Asc  SortDirection = "asc"
	Desc SortDirection = "desc"
)

// Account fields accepted by account listings.
const (
	FieldName           = "name"
	FieldDescription    = "description"
	FieldIsFavorite     = "isFavorite"
	FieldBudget         = "budget"
	FieldCurrentBalance = "currentBalance"
)

// AccountSortFields is the whitelist for account listings.
var AccountSortFields = []string{
	FieldName,
	FieldDescription,
	FieldIsFavorite,
	FieldBudget,
	FieldCurrentBalance,
}

type SortField struct {
	Field     string
	Direction SortDirection
}

// CompileSort parses "field[:dir],field[:dir],..." against a whitelist.
//
// Tokens keep their left-to-right order and duplicates are kept. When the
// list is applied the leftmost occurrence of a field decides; a repeated field
// can only break ties the earlier one already resolved, so it has no effect.
func CompileSort(expr string, allowed []string) ([]SortField, error) {
	out := []SortField{}
	if strings.TrimSpace(expr) == "" {
		return out, nil
	}

	for _, token := range strings.Split(expr, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		field, dir, hasDir := strings.Cut(token, ":")
		field = strings.TrimSpace(field)
		if !slices.Contains(allowed, field) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidField, field)
		}

		direction := Asc
		if hasDir {
			switch strings.ToLower(strings.TrimSpace(dir)) {
			case string(Asc):
				direction = Asc
			case string(Desc):
				direction = Desc
			default:
				return nil, fmt.Errorf("%w: %q", ErrInvalidDirection, dir)
			}
		}

		out = append(out, SortField{Field: field, Direction: direction})
	}
	return out, nil
}

// CompareAccounts orders two accounts by the given fields. A zero result
// means the fields do not distinguish them.
func CompareAccounts(a, b Account, fields []SortField) int {
	for _, f := range fields {
		var c int
		switch f.Field {
		case FieldName:
			c = strings.Compare(a.Name, b.Name)
		case FieldDescription:
			c = strings.Compare(a.Description, b.Description)
		case FieldIsFavorite:
			c = compareBool(a.IsFavorite, b.IsFavorite)
		case FieldBudget:
			c = a.Budget.Cmp(b.Budget)
		case FieldCurrentBalance:
			c = a.CurrentBalance.Cmp(b.CurrentBalance)
		}
		if f.Direction == Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

// SortAccounts sorts in place; ties keep the incoming order.
func SortAccounts(accounts []Account, fields []SortField) {
	if len(fields) == 0 {
		return
	}
	slices.SortStableFunc(accounts, func(a, b Account) int {
		return CompareAccounts(a, b, fields)
	})
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
