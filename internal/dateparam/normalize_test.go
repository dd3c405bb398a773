package dateparam

import (
	"fmt"
	"reflect"
	"testing"
	"time"
)

func fixedClock(year, month, day int) Clock {
	return ClockAt(time.Date(year, time.Month(month), day, 12, 0, 0, 0, KST))
}

func TestNormalizeDefaultsToToday(t *testing.T) {
	t.Parallel()

	clock := fixedClock(2025, 6, 15)
	got := Normalize(Bag{}, clock)
	want := Bag{KeyFrom: "20250615", KeyTo: "20250615"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Normalize(empty) = %v, want %v", got, want)
	}
}

func TestNormalizeBareMonth(t *testing.T) {
	t.Parallel()

	clock := fixedClock(2025, 6, 15)
	for month := 1; month <= 12; month++ {
		for _, raw := range []string{fmt.Sprintf("%d", month), fmt.Sprintf("%02d", month)} {
			got := Normalize(Bag{KeyFrom: raw, KeyTo: raw}, clock)
			want := fmt.Sprintf("2025%02d", month)
			if got[KeyFrom] != want {
				t.Fatalf("Normalize(from=%q) from = %q, want %q", raw, got[KeyFrom], want)
			}
		}
	}
}

func TestNormalizeBareMonthOutOfRange(t *testing.T) {
	t.Parallel()

	clock := fixedClock(2025, 6, 15)
	got := Normalize(Bag{KeyFrom: "13", KeyTo: "13"}, clock)
	if got[KeyFrom] != "13" {
		t.Fatalf("Normalize(from=13) from = %q, want unchanged", got[KeyFrom])
	}
}

func TestNormalizeMMDD(t *testing.T) {
	t.Parallel()

	clock := fixedClock(2025, 6, 15)
	cases := []struct {
		raw  string
		want string
	}{
		{"0603", "20250603"},
		{"1231", "20251231"},
		{"0101", "20250101"},
		// Invalid calendar dates stay unmodified for the validator.
		{"0230", "0230"},
		{"1332", "1332"},
		{"0431", "0431"},
	}
	for _, tc := range cases {
		got := Normalize(Bag{KeyFrom: tc.raw, KeyTo: tc.raw}, clock)
		if got[KeyFrom] != tc.want {
			t.Fatalf("Normalize(from=%q) from = %q, want %q", tc.raw, got[KeyFrom], tc.want)
		}
	}
}

func TestNormalizeLeapDayMMDD(t *testing.T) {
	t.Parallel()

	// 2024 is a leap year, 2025 is not.
	if got := Normalize(Bag{KeyFrom: "0229", KeyTo: "0229"}, fixedClock(2024, 6, 1)); got[KeyFrom] != "20240229" {
		t.Fatalf("leap year: from = %q, want 20240229", got[KeyFrom])
	}
	if got := Normalize(Bag{KeyFrom: "0229", KeyTo: "0229"}, fixedClock(2025, 6, 1)); got[KeyFrom] != "0229" {
		t.Fatalf("non-leap year: from = %q, want unchanged", got[KeyFrom])
	}
}

func TestNormalizeStaleYearRewrite(t *testing.T) {
	t.Parallel()

	// With the clock at 2027, years 2020 and 2021 are stale (older than
	// clockYear-5) and at or above the floor; 2022+ is left alone.
	clock := fixedClock(2027, 6, 15)
	cases := []struct {
		raw  string
		want string
	}{
		{"202103", "202703"},
		{"20200615", "20270615"},
		{"202203", "202203"},
		{"20260101", "20260101"},
		// Below the floor: never rewritten.
		{"201903", "201903"},
		// Rewrite would produce an invalid date (2020 was a leap year,
		// 2027 is not): keep the original.
		{"20200229", "20200229"},
	}
	for _, tc := range cases {
		got := Normalize(Bag{KeyFrom: tc.raw, KeyTo: tc.raw}, clock)
		if got[KeyFrom] != tc.want {
			t.Fatalf("Normalize(from=%q) from = %q, want %q", tc.raw, got[KeyFrom], tc.want)
		}
	}
}

func TestNormalizeBillingPeriodExemptFromRewrite(t *testing.T) {
	t.Parallel()

	clock := fixedClock(2027, 6, 15)
	got := Normalize(Bag{KeyBillingPeriod: "202103"}, clock)
	if got[KeyBillingPeriod] != "202103" {
		t.Fatalf("billingPeriod = %q, want unchanged", got[KeyBillingPeriod])
	}
}

func TestNormalizeBlankValueUntouched(t *testing.T) {
	t.Parallel()

	clock := fixedClock(2025, 6, 15)
	got := Normalize(Bag{KeyFrom: "  ", KeyTo: "20250601"}, clock)
	if got[KeyFrom] != "  " {
		t.Fatalf("blank from = %q, want untouched", got[KeyFrom])
	}
}

func TestNormalizeMirrorsSingleSidedPeriod(t *testing.T) {
	t.Parallel()

	clock := fixedClock(2025, 6, 15)
	got := Normalize(Bag{KeyFrom: "5", KeyAccountID: "123456789012"}, clock)
	if got[KeyFrom] != "202505" || got[KeyTo] != "202505" {
		t.Fatalf("from/to = %q/%q, want 202505/202505", got[KeyFrom], got[KeyTo])
	}

	got = Normalize(Bag{KeyTo: "20250610"}, clock)
	if got[KeyFrom] != "20250610" {
		t.Fatalf("from = %q, want mirrored 20250610", got[KeyFrom])
	}
}

func TestNormalizePassesThroughGarbage(t *testing.T) {
	t.Parallel()

	clock := fixedClock(2025, 6, 15)
	for _, raw := range []string{"abc", "202", "20250", "2025061", "202506155", "2025-06"} {
		got := Normalize(Bag{KeyFrom: raw, KeyTo: raw}, clock)
		if got[KeyFrom] != raw {
			t.Fatalf("Normalize(from=%q) from = %q, want unchanged", raw, got[KeyFrom])
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()

	clock := fixedClock(2025, 6, 15)
	bags := []Bag{
		{},
		{KeyFrom: "5"},
		{KeyFrom: "0603", KeyTo: "0610"},
		{KeyFrom: "202105", KeyTo: "202106"},
		{KeyFrom: "garbage", KeyTo: "0230"},
		{KeyBillingPeriod: "202108"},
		{KeyFrom: "20250601", KeyTo: "20250615", KeyAccountID: "123456789012"},
	}
	for _, bag := range bags {
		once := Normalize(bag, clock)
		twice := Normalize(once, clock)
		if !reflect.DeepEqual(once, twice) {
			t.Fatalf("Normalize not idempotent for %v: once=%v twice=%v", bag, once, twice)
		}
	}
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	clock := fixedClock(2025, 6, 15)
	in := Bag{KeyFrom: "5"}
	_ = Normalize(in, clock)
	if in[KeyFrom] != "5" {
		t.Fatalf("input bag mutated: from = %q", in[KeyFrom])
	}
	if _, ok := in[KeyTo]; ok {
		t.Fatalf("input bag mutated: to added")
	}
}
