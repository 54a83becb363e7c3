package repository

import (
	"strings"
	"time"
)

// Period is a lookback window such as "6mo" or "2y".
type Period string

const (
	P3M  Period = "3mo"
	P6M  Period = "6mo"
	P1Y  Period = "1y"
	P2Y  Period = "2y"
	P3Y  Period = "3y"
	P5Y  Period = "5y"
	P10Y Period = "10y"
)

// IsValidPeriod returns true if p is a supported lookback.
func IsValidPeriod(p Period) bool {
	switch p {
	case P3M, P6M, P1Y, P2Y, P3Y, P5Y, P10Y:
		return true
	default:
		return false
	}
}

// DefaultPeriod returns the default lookback.
func DefaultPeriod() Period { return P1Y }

// NormalizePeriod converts raw string to a valid period (or def when empty or unknown).
func NormalizePeriod(s string, def Period) Period {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	if IsValidPeriod(p) {
		return p
	}
	if def == "" {
		return DefaultPeriod()
	}
	return def
}

// PeriodFromYears maps a whole number of years to the closest supported period.
func PeriodFromYears(years int) Period {
	switch {
	case years <= 1:
		return P1Y
	case years == 2:
		return P2Y
	case years == 3 || years == 4:
		return P3Y
	case years < 10:
		return P5Y
	default:
		return P10Y
	}
}

// Range returns the [start, end] calendar window of p ending at end.
func (p Period) Range(end time.Time) (time.Time, time.Time) {
	switch p {
	case P3M:
		return end.AddDate(0, -3, 0), end
	case P6M:
		return end.AddDate(0, -6, 0), end
	case P2Y:
		return end.AddDate(-2, 0, 0), end
	case P3Y:
		return end.AddDate(-3, 0, 0), end
	case P5Y:
		return end.AddDate(-5, 0, 0), end
	case P10Y:
		return end.AddDate(-10, 0, 0), end
	default:
		return end.AddDate(-1, 0, 0), end
	}
}
