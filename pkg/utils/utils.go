package utils

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// PeriodLayout is the wire format for billing periods (one calendar month).
const PeriodLayout = "2006-01"

// DateOnly truncates t to midnight UTC of its calendar date
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MonthStart returns the first day of t's month
func MonthStart(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// MonthEnd returns the last day of t's month
func MonthEnd(t time.Time) time.Time {
	return MonthStart(t).AddDate(0, 1, -1)
}

// DaysInMonth returns the number of days in t's month
func DaysInMonth(t time.Time) int {
	return MonthEnd(t).Day()
}

// AddMonths steps forward n calendar months from the first of t's month.
// Stepping from the month start avoids time.AddDate normalising Jan 31 + 1 month into March.
func AddMonths(t time.Time, n int) time.Time {
	return MonthStart(t).AddDate(0, n, 0)
}

// DueDateInMonth returns dueDay of the month containing t,
// clamped to the last day when the month is shorter
func DueDateInMonth(t time.Time, dueDay int) time.Time {
	if last := DaysInMonth(t); dueDay > last {
		dueDay = last
	}
	if dueDay < 1 {
		dueDay = 1
	}
	y, m, _ := t.Date()
	return time.Date(y, m, dueDay, 0, 0, 0, 0, time.UTC)
}

// MaxDate returns the later of two dates
func MaxDate(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// MinDate returns the earlier of two dates
func MinDate(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

// DaysInclusive counts calendar days from start to end, both included
func DaysInclusive(start, end time.Time) int {
	days := int(DateOnly(end).Sub(DateOnly(start)).Hours()/24) + 1
	if days < 0 {
		return 0
	}
	return days
}

// ProrateMonthly bills the share of monthlyAmount covered by [start, end]
// within start's month. Formula: monthly * days / daysInMonth, rounded to cents.
func ProrateMonthly(monthlyAmount decimal.Decimal, start, end time.Time) decimal.Decimal {
	days := DaysInclusive(start, end)
	total := DaysInMonth(start)
	if days >= total {
		return monthlyAmount
	}

	share := monthlyAmount.Mul(decimal.NewFromInt(int64(days))).Div(decimal.NewFromInt(int64(total)))
	return share.Round(2)
}

// ParsePeriod parses a YYYY-MM billing period into its first day
func ParsePeriod(s string) (time.Time, error) {
	t, err := time.Parse(PeriodLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return MonthStart(t), nil
}

// ParseDate parses a YYYY-MM-DD calendar date
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return DateOnly(t), nil
}
