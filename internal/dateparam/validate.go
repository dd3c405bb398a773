package dateparam

import (
	"fmt"
	"strings"
	"time"
)

// EndpointContract is the per-endpoint slice of the static route table the
// validator needs: which parameters must be present and which digit width
// the date fields must carry. The billing package owns the full table and
// passes the matching contract through.
type EndpointContract struct {
	Path     string
	Required []string
	Format   Format
}

// Validate checks a normalized bag for semantic validity and returns
// advisory warnings. An empty slice means the bag is safe to send upstream.
// The bag must already be canonical: shape repair is Normalize's job and
// never happens here.
func Validate(params Bag, contract *EndpointContract, clock Clock) []string {
	var warnings []string

	if contract != nil {
		if missing := missingRequired(params, contract.Required); len(missing) > 0 {
			// Other checks are skipped: they would only restate the gap.
			return []string{fmt.Sprintf("필수 파라미터가 누락되었습니다: %s", strings.Join(missing, ", "))}
		}
		warnings = append(warnings, checkWidths(params, contract)...)
		if len(warnings) > 0 {
			return warnings
		}
	}

	if params.Has(KeyAccountID) {
		if acct := params.Get(KeyAccountID); len(acct) != 12 || !allDigits(acct) {
			warnings = append(warnings, fmt.Sprintf("accountId는 12자리 숫자여야 합니다: %q", acct))
		}
	}
	if params.Has(KeyBillingPeriod) {
		warnings = append(warnings, checkBillingPeriod(params.Get(KeyBillingPeriod), clock)...)
	}
	if params.Has(KeyFrom) || params.Has(KeyTo) {
		warnings = append(warnings, checkRange(params.Get(KeyFrom), params.Get(KeyTo), clock)...)
	}
	if params.Has(KeyBeginDate) || params.Has(KeyEndDate) {
		warnings = append(warnings, checkDailyRange(params.Get(KeyBeginDate), params.Get(KeyEndDate), clock)...)
	}
	return warnings
}

func missingRequired(params Bag, required []string) []string {
	var missing []string
	for _, name := range required {
		if !params.Has(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// checkWidths enforces the endpoint's expected digit width on every
// date-like field the endpoint requires.
func checkWidths(params Bag, contract *EndpointContract) []string {
	if contract.Format == FormatUnknown {
		return nil
	}
	var warnings []string
	for _, name := range contract.Required {
		switch name {
		case KeyFrom, KeyTo, KeyBeginDate, KeyEndDate, KeyBillingPeriod:
		default:
			continue
		}
		value := params.Get(name)
		want := contract.Format
		if name == KeyBillingPeriod {
			want = FormatMonthly
		}
		if Classify(value) != want {
			warnings = append(warnings, fmt.Sprintf("%s의 날짜 형식이 %s 엔드포인트와 맞지 않습니다: %q", name, want, value))
		}
	}
	return warnings
}

func checkBillingPeriod(value string, clock Clock) []string {
	month, ok := parseMonth(value)
	if !ok {
		return []string{fmt.Sprintf("billingPeriod가 올바른 YYYYMM 형식이 아닙니다: %q", value)}
	}
	// A same-year earlier month is never future; only a later (year, month)
	// pair is.
	if futureMonth(month, clock) {
		return []string{fmt.Sprintf("요청하신 월이 미래입니다: %s", value)}
	}
	return nil
}

// checkRange validates the from/to pair: both daily or both monthly, in
// order, and not in the future.
func checkRange(from, to string, clock Clock) []string {
	if from == "" || to == "" {
		return []string{"조회를 위한 '시작 날짜'와 '종료 날짜'가 모두 필요합니다."}
	}
	fromFmt, toFmt := Classify(from), Classify(to)
	if fromFmt == FormatUnknown || toFmt == FormatUnknown || fromFmt != toFmt {
		return []string{fmt.Sprintf("날짜 형식이 올바르지 않습니다 (YYYYMM 또는 YYYYMMDD): %q - %q", from, to)}
	}

	if fromFmt == FormatDaily {
		return checkDailyRange(from, to, clock)
	}

	fromMonth, okFrom := parseMonth(from)
	toMonth, okTo := parseMonth(to)
	if !okFrom || !okTo {
		return []string{fmt.Sprintf("날짜 형식이 올바르지 않습니다 (YYYYMM 또는 YYYYMMDD): %q - %q", from, to)}
	}
	var warnings []string
	// Ordering compares the first of the from month against the last day of
	// the to month, so an equal month is always in order.
	if fromMonth.After(endOfMonth(toMonth)) {
		warnings = append(warnings, "조회 시작일이 종료일보다 늦습니다.")
	}
	// Future check runs at (year, month) granularity: the current month is
	// always accepted even mid-month.
	if futureMonth(fromMonth, clock) || futureMonth(toMonth, clock) {
		warnings = append(warnings, fmt.Sprintf("요청하신 월이 미래입니다: %s - %s", from, to))
	}
	return warnings
}

// checkDailyRange validates an 8-digit pair (from/to or beginDate/endDate).
func checkDailyRange(begin, end string, clock Clock) []string {
	if begin == "" || end == "" {
		return []string{"조회를 위한 '시작 날짜'와 '종료 날짜'가 모두 필요합니다."}
	}
	beginDay, okBegin := parseDay(begin)
	endDay, okEnd := parseDay(end)
	if !okBegin || !okEnd {
		return []string{fmt.Sprintf("날짜 형식이 올바르지 않습니다 (YYYYMMDD): %q - %q", begin, end)}
	}
	var warnings []string
	if beginDay.After(endDay) {
		warnings = append(warnings, "조회 시작일이 종료일보다 늦습니다.")
	}
	today := clock.Date()
	if beginDay.After(today) || endDay.After(today) {
		warnings = append(warnings, fmt.Sprintf("요청하신 날짜가 미래입니다: %s - %s", begin, end))
	}
	return warnings
}

func futureMonth(month time.Time, clock Clock) bool {
	return month.Year() > clock.Year || (month.Year() == clock.Year && int(month.Month()) > clock.Month)
}
