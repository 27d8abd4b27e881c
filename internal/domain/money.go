package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Money is an amount in cents. Arithmetic stays in integers.
type Money int64

// Cents builds Money from a cent count.
func Cents(c int64) Money { return Money(c) }

// ParseMoney parses a non-negative decimal string with at most two fraction
// digits, e.g. "199.99", "30", "0.5".
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("parse money: empty amount")
	}

	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" || strings.HasPrefix(whole, "-") || strings.HasPrefix(whole, "+") {
		return 0, fmt.Errorf("parse money %q: invalid amount", s)
	}
	if hasFrac && (frac == "" || len(frac) > 2) {
		return 0, fmt.Errorf("parse money %q: expected at most two decimals", s)
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse money %q: %w", s, err)
	}

	var cents int64
	if hasFrac {
		for len(frac) < 2 {
			frac += "0"
		}
		if frac[0] == '-' || frac[0] == '+' {
			return 0, fmt.Errorf("parse money %q: invalid amount", s)
		}
		cents, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse money %q: %w", s, err)
		}
	}

	return Money(units*100 + cents), nil
}

// MustParseMoney is ParseMoney for literals known to be valid.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Times multiplies the amount by a quantity.
func (m Money) Times(qty int) Money {
	return m * Money(qty)
}

// String formats the amount with two decimals, e.g. "259.99".
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}
