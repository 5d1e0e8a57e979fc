package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Date is a calendar date without a time component. It is comparable and
// usable as a map key.
type Date struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	Day   int        `json:"day"`
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a "2006-01-02" date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Before reports whether d is strictly before o.
func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

// After reports whether d is strictly after o.
func (d Date) After(o Date) bool {
	return o.Before(d)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// MarshalText encodes the date as "2006-01-02".
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes a "2006-01-02" date.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// GroupedTransaction is one entry of the date-grouped history list: either a
// DateDivider or an ActualTransaction.
type GroupedTransaction interface {
	groupedTransaction()
}

// DateDivider heads the transactions of one calendar date.
type DateDivider struct {
	Date      Date  `json:"date"`
	Stats     Stats `json:"stats"`
	Collapsed bool  `json:"collapsed"`
}

// ActualTransaction is a transaction row. Hidden is display-only and derived
// from whether its date is collapsed.
type ActualTransaction struct {
	Transaction Transaction `json:"transaction"`
	Hidden      bool        `json:"hidden"`
}

func (DateDivider) groupedTransaction()       {}
func (ActualTransaction) groupedTransaction() {}

// MarshalJSON tags the row kind so clients can tell rows apart.
func (d DateDivider) MarshalJSON() ([]byte, error) {
	type divider DateDivider
	return json.Marshal(struct {
		Kind string `json:"kind"`
		divider
	}{Kind: "date", divider: divider(d)})
}

// MarshalJSON tags the row kind so clients can tell rows apart.
func (a ActualTransaction) MarshalJSON() ([]byte, error) {
	type actual ActualTransaction
	return json.Marshal(struct {
		Kind string `json:"kind"`
		actual
	}{Kind: "transaction", actual: actual(a)})
}

// Date returns the calendar date of a history row. Planned transactions
// never appear in history, so a nil DateTime yields the zero Date.
func (a ActualTransaction) Date() Date {
	if a.Transaction.DateTime == nil {
		return Date{}
	}
	return DateOf(*a.Transaction.DateTime)
}
