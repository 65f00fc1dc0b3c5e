package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// AccountPatch holds the modifiable account fields. Nil means unchanged.
type AccountPatch struct {
	Name        *string
	Description *string
	IsFavorite  *bool
	Budget      *Money
}

// ParseAccountPatch decodes a JSON object into a patch. Only name,
// description, isFavorite and budget are read; other keys are ignored.
// A present, non-null value whose JSON kind differs from the field's kind
// fails with ErrTypeMismatch.
func ParseAccountPatch(raw []byte) (AccountPatch, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return AccountPatch{}, &ValidationError{Fields: map[string]string{"body": "must be a JSON object"}}
	}

	var p AccountPatch
	for _, name := range []string{FieldName, FieldDescription, FieldIsFavorite, FieldBudget} {
		v, ok := fields[name]
		if !ok || isNull(v) {
			continue
		}
		want := fieldKind(name)
		if got := jsonKind(v); got != want {
			return AccountPatch{}, fmt.Errorf("%w: %s must be a %s, got %s", ErrTypeMismatch, name, want, got)
		}

		switch name {
		case FieldName:
			var s string
			_ = json.Unmarshal(v, &s)
			p.Name = &s
		case FieldDescription:
			var s string
			_ = json.Unmarshal(v, &s)
			p.Description = &s
		case FieldIsFavorite:
			var b bool
			_ = json.Unmarshal(v, &b)
			p.IsFavorite = &b
		case FieldBudget:
			m, err := ParseMoney(string(v))
			if err != nil {
				return AccountPatch{}, fmt.Errorf("%w: budget is not a valid number", ErrTypeMismatch)
			}
			p.Budget = &m
		}
	}
	return p, nil
}

// IsEmpty reports whether the patch changes nothing.
func (p AccountPatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.IsFavorite == nil && p.Budget == nil
}

// Validate checks value ranges of the supplied fields.
func (p AccountPatch) Validate() error {
	verr := &ValidationError{}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			verr.add("name", "name cannot be empty")
		} else if utf8.RuneCountInString(name) > maxNameLength {
			verr.add("name", "name too long (max 120 characters)")
		}
	}
	if p.Description != nil && utf8.RuneCountInString(strings.TrimSpace(*p.Description)) > maxDescriptionLength {
		verr.add("description", "description too long (max 500 characters)")
	}
	if p.Budget != nil && p.Budget.IsNegative() {
		verr.add("budget", "budget cannot be negative")
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// Apply writes the supplied fields onto the account.
func (p AccountPatch) Apply(a *Account, now time.Time) {
	if p.Name != nil {
		a.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		a.Description = strings.TrimSpace(*p.Description)
	}
	if p.IsFavorite != nil {
		a.IsFavorite = *p.IsFavorite
	}
	if p.Budget != nil {
		a.Budget = *p.Budget
	}
	a.UpdatedAt = now
}

func fieldKind(name string) string {
	switch name {
	case FieldIsFavorite:
		return "boolean"
	case FieldBudget:
		return "number"
	default:
		return "string"
	}
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

func jsonKind(v json.RawMessage) string {
	v = bytes.TrimSpace(v)
	if len(v) == 0 {
		return "empty"
	}
	switch v[0] {
	case '"':
		return "string"
	case 't', 'f':
		return "boolean"
	case '{':
		return "object"
	case '[':
		return "array"
	case 'n':
		return "null"
	default:
		return "number"
	}
}
