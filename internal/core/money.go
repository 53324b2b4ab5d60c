// Package core provides the ledger domain: transactions, money handling,
// profit derivation and pagination.
//
// This file contains the money codec used by the UI adapter. Amounts are
// whole Rupiah held in an int64; there is no fractional unit.
package core

import (
	"math"
	"strconv"
	"strings"

	"github.com/Rhymond/go-money"
)

const (
	// ThousandSeparator groups digits in typed and displayed amounts.
	ThousandSeparator = "."
	// CurrencyGrapheme prefixes formatted amounts.
	CurrencyGrapheme = "Rp"
)

// rupiah renders like the id-ID locale: "Rp" and a no-break space before the amount.
var rupiah = money.NewFormatter(0, ",", ThousandSeparator, CurrencyGrapheme, "$\u00a01")

// FormatMoney returns amount grouped in thousands with the currency prefix.
//
// Examples:
//   FormatMoney(1500) -> "Rp\u00a01.500"
//   FormatMoney(-500) -> "-Rp\u00a0500"
func FormatMoney(amount int64) string {
	return rupiah.Format(amount)
}

// ParseTyped strips every non-digit character and reads the rest as a base-10
// integer. Empty input yields 0. Values that do not fit an int64 saturate at
// math.MaxInt64, so the function never fails.
func ParseTyped(raw string) int64 {
	digits := digitsOnly(raw)
	if digits == "" {
		return 0
	}
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		// Only ErrRange is possible here.
		return math.MaxInt64
	}
	return v
}

// LiveGroup regroups the digits of raw with ThousandSeparator. Everything that
// is not a digit is dropped first, so LiveGroup(LiveGroup(s)) == LiveGroup(s).
func LiveGroup(raw string) string {
	digits := digitsOnly(raw)
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	b.Grow(len(digits) + len(digits)/3)
	head := len(digits) % 3
	if head == 0 {
		head = 3
	}
	b.WriteString(digits[:head])
	for i := head; i < len(digits); i += 3 {
		b.WriteString(ThousandSeparator)
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// GroupAmount renders a non-negative amount for an input field, e.g. 1500 -> "1.500".
func GroupAmount(amount int64) string {
	if amount < 0 {
		return "-" + LiveGroup(strconv.FormatInt(amount, 10))
	}
	return LiveGroup(strconv.FormatInt(amount, 10))
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
