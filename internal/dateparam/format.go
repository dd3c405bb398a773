package dateparam

import "time"

// Format tags the digit-width family of a canonical date string. Every
// length check in the resolver and validator goes through Classify so the
// "ambiguous defaults to daily" policy stays auditable in one place.
type Format int

const (
	FormatUnknown Format = iota
	// FormatDaily is an 8-digit YYYYMMDD string.
	FormatDaily
	// FormatMonthly is a 6-digit YYYYMM string.
	FormatMonthly
)

func (f Format) String() string {
	switch f {
	case FormatDaily:
		return "daily"
	case FormatMonthly:
		return "monthly"
	default:
		return "unknown"
	}
}

// Classify determines the format by string length and digit-only check.
// It never parses separators or semantics; that is the validator's job.
func Classify(value string) Format {
	if !allDigits(value) {
		return FormatUnknown
	}
	switch len(value) {
	case 8:
		return FormatDaily
	case 6:
		return FormatMonthly
	default:
		return FormatUnknown
	}
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// parseDay parses a canonical YYYYMMDD string as a real calendar date in
// KST. time.ParseInLocation rejects out-of-range components (non-leap
// Feb 29, month 13), which is the actual calendar validation the
// normalizer and validator rely on.
func parseDay(value string) (time.Time, bool) {
	if len(value) != 8 || !allDigits(value) {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation("20060102", value, KST)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// parseMonth parses a canonical YYYYMM string as a real calendar month.
func parseMonth(value string) (time.Time, bool) {
	if len(value) != 6 || !allDigits(value) {
		return time.Time{}, false
	}
	return parseDay(value + "01")
}

// endOfMonth resolves the last calendar day of the month containing t by
// stepping past the month boundary and truncating back, which stays correct
// across leap years and year rollover.
func endOfMonth(t time.Time) time.Time {
	firstOfNext := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, KST).AddDate(0, 0, 32)
	firstOfNext = time.Date(firstOfNext.Year(), firstOfNext.Month(), 1, 0, 0, 0, 0, KST)
	return firstOfNext.AddDate(0, 0, -1)
}
