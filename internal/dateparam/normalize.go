package dateparam

import (
	"fmt"
	"strconv"
	"strings"
)

// Bag is the request parameter bag. Absence of a key is meaningful: it
// triggers defaulting in Normalize and "missing parameter" warnings in
// Validate. Values are always strings as delivered by the agent runtime.
type Bag map[string]string

// Parameter names recognized across the pipeline.
const (
	KeyFrom          = "from"
	KeyTo            = "to"
	KeyBillingPeriod = "billingPeriod"
	KeyBeginDate     = "beginDate"
	KeyEndDate       = "endDate"
	KeyAccountID     = "accountId"
	KeyServiceName   = "serviceName"
)

// Stale-year correction bounds. An upstream model occasionally carries a
// year from its training data into an otherwise well-formed date; a year at
// least staleYearFloor but more than staleYearWindow years behind the clock
// is rewritten to the clock's year. billingPeriod is exempt: it names an
// explicit past month.
const (
	staleYearWindow = 5
	staleYearFloor  = 2020
)

// dateKeys are the fields Normalize repairs, in a fixed order so the
// transform is deterministic.
var dateKeys = [...]string{KeyFrom, KeyTo, KeyBillingPeriod, KeyBeginDate, KeyEndDate}

// Clone returns a shallow copy; Normalize never mutates its input.
func (b Bag) Clone() Bag {
	out := make(Bag, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Has reports whether the key carries a usable value. The agent runtime
// sometimes sends the literal strings "None" or "null" for parameters it
// decided not to fill.
func (b Bag) Has(key string) bool {
	v, ok := b[key]
	if !ok {
		return false
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	switch strings.ToLower(v) {
	case "none", "null":
		return false
	}
	return true
}

// Get returns the trimmed value for key, empty when absent or unusable.
func (b Bag) Get(key string) string {
	if !b.Has(key) {
		return ""
	}
	return strings.TrimSpace(b[key])
}

// Normalize repairs the bag's date-like fields against the clock and
// returns a new bag. It is a pure transform: malformed values are left
// unmodified for the validator to flag, never rejected here. The transform
// is idempotent: canonical values pass through every rule untouched.
func Normalize(params Bag, clock Clock) Bag {
	out := params.Clone()

	// No period at all means "today". Presence is key presence: a blank
	// value blocks defaulting and falls through to the validator.
	_, hasFrom := out[KeyFrom]
	_, hasTo := out[KeyTo]
	_, hasBilling := out[KeyBillingPeriod]
	if !hasFrom && !hasTo && !hasBilling {
		today := clock.Today()
		out[KeyFrom] = today
		out[KeyTo] = today
	}

	for _, key := range dateKeys {
		raw, ok := out[key]
		if !ok {
			continue
		}
		if strings.TrimSpace(raw) == "" {
			// Present but blank: downstream validation reports it.
			continue
		}
		out[key] = normalizeValue(key, strings.TrimSpace(raw), clock)
	}

	// A single-sided period is mirrored: callers supply both bounds or
	// neither, and one bound means exactly that period. Only a fully
	// absent key is mirrored; a blank value stays for the validator.
	if _, ok := out[KeyTo]; !ok && out.Has(KeyFrom) {
		out[KeyTo] = out.Get(KeyFrom)
	}
	if _, ok := out[KeyFrom]; !ok && out.Has(KeyTo) {
		out[KeyFrom] = out.Get(KeyTo)
	}

	return out
}

func normalizeValue(key, value string, clock Clock) string {
	switch {
	case len(value) <= 2 && allDigits(value):
		// Bare month number ("5", "06") → YYYYMM under the clock year.
		month, err := strconv.Atoi(value)
		if err != nil || month < 1 || month > 12 {
			return value
		}
		return fmt.Sprintf("%04d%02d", clock.Year, month)

	case len(value) == 4 && allDigits(value):
		// MMDD → YYYYMMDD under the clock year, only when the result is a
		// real calendar date.
		candidate := fmt.Sprintf("%04d%s", clock.Year, value)
		if _, ok := parseDay(candidate); !ok {
			return value
		}
		return candidate

	case (len(value) == 6 || len(value) == 8) && allDigits(value):
		if key == KeyBillingPeriod {
			return value
		}
		return rewriteStaleYear(value, clock)

	default:
		return value
	}
}

// rewriteStaleYear replaces a hallucinated old year with the clock's year,
// keeping the original value whenever the rewrite would not re-validate as
// a real date or month.
func rewriteStaleYear(value string, clock Clock) string {
	year, err := strconv.Atoi(value[:4])
	if err != nil {
		return value
	}
	if year < staleYearFloor || year >= clock.Year-staleYearWindow {
		return value
	}
	candidate := fmt.Sprintf("%04d%s", clock.Year, value[4:])
	switch len(candidate) {
	case 8:
		if _, ok := parseDay(candidate); !ok {
			return value
		}
	case 6:
		if _, ok := parseMonth(candidate); !ok {
			return value
		}
	}
	return candidate
}
