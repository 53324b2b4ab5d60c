package core

import (
	"errors"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

type (
	// Date is a calendar day. The embedded time is always midnight UTC.
	Date struct {
		time.Time
	}

	Transaction struct {
		ProductName  string    `json:"productName"`
		CostPrice    int64     `json:"costPrice"`
		SellPrice    int64     `json:"sellPrice"`
		CustomerName string    `json:"customerName"`
		Date         time.Time `json:"date"`
	}

	// TransactionFields are the user-editable parts of a Transaction.
	TransactionFields struct {
		ProductName  string
		CostPrice    int64
		SellPrice    int64
		CustomerName string
	}
)

var (
	ErrOutOfRange         = errors.New("transaction index out of range")
	ErrMalformedState     = errors.New("malformed persisted ledger")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDate        = errors.New("invalid date")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day t falls on in loc. A nil loc means UTC.
func DateOf(t time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) Equal(o Date) bool {
	return d.String() == o.String()
}

// Fields returns the editable fields of t.
func (t Transaction) Fields() TransactionFields {
	return TransactionFields{
		ProductName:  t.ProductName,
		CostPrice:    t.CostPrice,
		SellPrice:    t.SellPrice,
		CustomerName: t.CustomerName,
	}
}

// WithFields returns a copy of t with the editable fields replaced. The date is kept.
func (t Transaction) WithFields(f TransactionFields) Transaction {
	t.ProductName = f.ProductName
	t.CostPrice = f.CostPrice
	t.SellPrice = f.SellPrice
	t.CustomerName = f.CustomerName
	return t
}

func (f TransactionFields) Validate() error {
	if f.CostPrice < 0 {
		return fmt.Errorf("cost price: %w", ErrInvalidAmount)
	}
	if f.SellPrice < 0 {
		return fmt.Errorf("sell price: %w", ErrInvalidAmount)
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Fields().Validate(); err != nil {
		return err
	}
	if t.Date.IsZero() {
		return fmt.Errorf("transaction date: %w", ErrInvalidDate)
	}
	return nil
}
