package dateparam

import (
	"strconv"
	"time"
)

// KST is the civil timezone every relative-date computation runs in. The
// zone is pinned with a fixed offset so that a missing tzdata bundle cannot
// silently fall back to UTC and shift borderline timestamps across a day
// boundary.
var KST = time.FixedZone("Asia/Seoul", 9*60*60)

// Clock is the single canonical "now" for one request. All defaulting,
// year-correction and future-date checks derive from the same conversion,
// never from a second time.Now() call.
type Clock struct {
	Year  int
	Month int
	Day   int
	Now   time.Time
}

// NewClock captures the current instant in KST.
func NewClock() Clock {
	return ClockAt(time.Now())
}

// ClockAt builds a Clock from an arbitrary instant, converted to KST once.
func ClockAt(t time.Time) Clock {
	now := t.In(KST)
	return Clock{
		Year:  now.Year(),
		Month: int(now.Month()),
		Day:   now.Day(),
		Now:   now,
	}
}

// Today returns the clock's date in canonical YYYYMMDD form.
func (c Clock) Today() string {
	return c.Now.Format("20060102")
}

// ThisMonth returns the clock's month in canonical YYYYMM form.
func (c Clock) ThisMonth() string {
	return c.Now.Format("200601")
}

// Date truncates the clock to midnight KST for day-granularity comparisons.
func (c Clock) Date() time.Time {
	return time.Date(c.Year, time.Month(c.Month), c.Day, 0, 0, 0, 0, KST)
}

// SessionAttributes exposes the clock snapshot in the form the agent runtime
// expects to receive back on every response.
func (c Clock) SessionAttributes() map[string]string {
	return map[string]string{
		"current_year":      strconv.Itoa(c.Year),
		"current_month":     strconv.Itoa(c.Month),
		"current_day":       strconv.Itoa(c.Day),
		"current_date":      c.Today(),
		"current_month_str": c.ThisMonth(),
	}
}
