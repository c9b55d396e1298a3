package utils

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDueDateInMonth(t *testing.T) {
	tests := []struct {
		name     string
		month    time.Time
		dueDay   int
		expected time.Time
	}{
		{
			name:     "first of month",
			month:    date(2025, time.January, 1),
			dueDay:   1,
			expected: date(2025, time.January, 1),
		},
		{
			name:     "31st clamps in February",
			month:    date(2025, time.February, 1),
			dueDay:   31,
			expected: date(2025, time.February, 28),
		},
		{
			name:     "29th in leap February",
			month:    date(2024, time.February, 10),
			dueDay:   29,
			expected: date(2024, time.February, 29),
		},
		{
			name:     "31st clamps in April",
			month:    date(2025, time.April, 1),
			dueDay:   31,
			expected: date(2025, time.April, 30),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DueDateInMonth(tt.month, tt.dueDay))
		})
	}
}

func TestAddMonths(t *testing.T) {
	// Jan 31 must step to February, not to March 3
	assert.Equal(t, date(2025, time.February, 1), AddMonths(date(2025, time.January, 31), 1))
	assert.Equal(t, date(2026, time.January, 1), AddMonths(date(2025, time.December, 15), 1))
	assert.Equal(t, date(2025, time.March, 1), AddMonths(date(2025, time.March, 9), 0))
}

func TestMonthBounds(t *testing.T) {
	assert.Equal(t, date(2025, time.February, 28), MonthEnd(date(2025, time.February, 14)))
	assert.Equal(t, 29, DaysInMonth(date(2024, time.February, 1)))
	assert.Equal(t, date(2025, time.July, 1), MonthStart(time.Date(2025, time.July, 19, 13, 4, 0, 0, time.UTC)))
}

func TestDaysInclusive(t *testing.T) {
	assert.Equal(t, 1, DaysInclusive(date(2025, time.May, 3), date(2025, time.May, 3)))
	assert.Equal(t, 31, DaysInclusive(date(2025, time.May, 1), date(2025, time.May, 31)))
	assert.Equal(t, 0, DaysInclusive(date(2025, time.May, 5), date(2025, time.May, 1)))
}

func TestProrateMonthly(t *testing.T) {
	tests := []struct {
		name     string
		amount   decimal.Decimal
		start    time.Time
		end      time.Time
		expected decimal.Decimal
	}{
		{
			name:     "full month is not prorated",
			amount:   decimal.NewFromInt(1200),
			start:    date(2025, time.January, 1),
			end:      date(2025, time.January, 31),
			expected: decimal.NewFromInt(1200),
		},
		{
			name:     "second half of a 30 day month",
			amount:   decimal.NewFromInt(1200),
			start:    date(2025, time.June, 16),
			end:      date(2025, time.June, 30),
			expected: decimal.NewFromInt(600), // 1200 * 15 / 30
		},
		{
			name:     "rounds to cents",
			amount:   decimal.NewFromInt(1000),
			start:    date(2025, time.January, 15),
			end:      date(2025, time.January, 31),
			expected: decimal.RequireFromString("548.39"), // 1000 * 17 / 31
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ProrateMonthly(tt.amount, tt.start, tt.end)
			assert.True(t, result.Equal(tt.expected), "Expected %v, but got %v", tt.expected, result)
		})
	}
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("2025-03")
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.March, 1), p)

	_, err = ParsePeriod("March 2025")
	assert.Error(t, err)

	d, err := ParseDate("2025-01-10")
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.January, 10), d)
}
