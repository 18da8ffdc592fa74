package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type PostingKind string

const (
	PostingKindIncome  PostingKind = "income"
	PostingKindExpense PostingKind = "expense"
)

func ParsePostingKind(s string) (PostingKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income":
		return PostingKindIncome, nil
	case "expense":
		return PostingKindExpense, nil
	}
	return "", fmt.Errorf("invalid posting kind %q", s)
}

func (k PostingKind) Valid() bool {
	return k == PostingKindIncome || k == PostingKindExpense
}

// Sign is the balance effect direction: +1 for income, -1 for expense.
func (k PostingKind) Sign() int {
	if k == PostingKindIncome {
		return 1
	}
	return -1
}

// Value implements the driver.Valuer interface
func (k PostingKind) Value() (driver.Value, error) {
	return string(k), nil
}

// Scan canonicalizes case-insensitively: the store may hold legacy
// upper-case rows, and both forms must round-trip equal.
func (k *PostingKind) Scan(value interface{}) error {
	s, err := scanEnumString(value)
	if err != nil {
		return err
	}
	parsed, err := ParsePostingKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

type PostingState string

const (
	PostingStatePending   PostingState = "pending"
	PostingStateOverdue   PostingState = "overdue"
	PostingStateSettled   PostingState = "settled"
	PostingStateCancelled PostingState = "cancelled"
)

func ParsePostingState(s string) (PostingState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return PostingStatePending, nil
	case "overdue":
		return PostingStateOverdue, nil
	case "settled":
		return PostingStateSettled, nil
	case "cancelled":
		return PostingStateCancelled, nil
	}
	return "", fmt.Errorf("invalid posting state %q", s)
}

func (s PostingState) Valid() bool {
	switch s {
	case PostingStatePending, PostingStateOverdue, PostingStateSettled, PostingStateCancelled:
		return true
	}
	return false
}

// IsOpen reports whether the posting still awaits settlement.
func (s PostingState) IsOpen() bool {
	return s == PostingStatePending || s == PostingStateOverdue
}

// Value implements the driver.Valuer interface
func (s PostingState) Value() (driver.Value, error) {
	return string(s), nil
}

func (s *PostingState) Scan(value interface{}) error {
	raw, err := scanEnumString(value)
	if err != nil {
		return err
	}
	parsed, err := ParsePostingState(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

type CategoryKind string

const (
	CategoryKindIncome  CategoryKind = "income"
	CategoryKindExpense CategoryKind = "expense"
)

func ParseCategoryKind(s string) (CategoryKind, error) {
	k, err := ParsePostingKind(s)
	if err != nil {
		return "", fmt.Errorf("invalid category kind %q", s)
	}
	return CategoryKind(k), nil
}

func (k CategoryKind) Valid() bool {
	return k == CategoryKindIncome || k == CategoryKindExpense
}

// Matches reports whether a posting of the given kind may reference the category.
func (k CategoryKind) Matches(pk PostingKind) bool {
	return string(k) == string(pk)
}

// Value implements the driver.Valuer interface
func (k CategoryKind) Value() (driver.Value, error) {
	return string(k), nil
}

func (k *CategoryKind) Scan(value interface{}) error {
	s, err := scanEnumString(value)
	if err != nil {
		return err
	}
	parsed, err := ParseCategoryKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

type PartyKind string

const (
	PartyKindClient   PartyKind = "client"
	PartyKindSupplier PartyKind = "supplier"
)

func ParsePartyKind(s string) (PartyKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "client":
		return PartyKindClient, nil
	case "supplier":
		return PartyKindSupplier, nil
	}
	return "", fmt.Errorf("invalid party kind %q", s)
}

func (k PartyKind) Valid() bool {
	return k == PartyKindClient || k == PartyKindSupplier
}

// PostingKind maps the party side to the posting side it trades on:
// clients appear on receivables, suppliers on payables.
func (k PartyKind) PostingKind() PostingKind {
	if k == PartyKindClient {
		return PostingKindIncome
	}
	return PostingKindExpense
}

// Value implements the driver.Valuer interface
func (k PartyKind) Value() (driver.Value, error) {
	return string(k), nil
}

func (k *PartyKind) Scan(value interface{}) error {
	s, err := scanEnumString(value)
	if err != nil {
		return err
	}
	parsed, err := ParsePartyKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func scanEnumString(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	}
	return "", fmt.Errorf("cannot convert %T to enum", value)
}

// StringList is stored as a JSON array of strings (category subcategories).
type StringList []string

func (l StringList) Contains(s string) bool {
	for _, v := range l {
		if v == s {
			return true
		}
	}
	return false
}

// Value implements the driver.Valuer interface
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = StringList{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return errors.New("cannot convert value to StringList")
	}
	if len(raw) == 0 {
		*l = StringList{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*l = StringList(out)
	return nil
}

// GormDataType stores subcategories as JSON text across dialects.
func (StringList) GormDataType() string {
	return "json"
}
