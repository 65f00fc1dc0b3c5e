// Package core holds the account aggregate: the ledger, sorting, paging
// and the owner-wide summary. It has no I/O.
//
// Amounts are exact decimals; positive values are credits and negative
// values are debits.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a signed exact amount.
type Money = decimal.Decimal

// Zero is the additive identity for Money.
var Zero = decimal.Zero

func init() {
	// Amounts travel as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// ParseMoney converts a decimal string to Money.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and an
// optional leading sign. Zero is accepted here; ledger rules decide whether a
// zero amount is legal.
//
// Examples:
//
//	ParseMoney("12.34")  -> 12.34, nil
//	ParseMoney("-12,5")  -> -12.5, nil
//	ParseMoney("1.2.3")  -> error
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, ErrInvalidAmount
	}
	return d, nil
}

// MustMoney parses s and panics on error. Intended for tests and constants.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}
