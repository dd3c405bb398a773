// Package summary renders projected billing results as ranked Korean text
// for the conversational reply: top-N services with percentages plus an
// aggregated remainder bucket.
package summary

import (
	"fmt"
	"sort"
	"strings"

	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/billing"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/dateparam"
)

const (
	defaultTopN = 8
	monthlyTopN = 10

	otherLabel    = "기타"
	noDataMessage = "조회된 데이터가 없습니다."
)

// Format renders the result for its endpoint. Daily results repeat the
// ranking per calendar date; monthly cost/invoice rollups show a longer
// top list. Empty results produce a fixed no-data line.
func Format(result billing.Result, spec billing.Spec) string {
	if result.Empty() {
		if result.Message != "" {
			return noDataMessage + " (" + result.Message + ")"
		}
		return noDataMessage
	}

	if spec.Format == dateparam.FormatDaily && spec.Family != billing.FamilyAccounts {
		return formatPerDate(result.Items, spec)
	}
	return formatRanking(result.Items, spec, "")
}

// TopN returns how many ranked rows an endpoint's summary shows before the
// remainder collapses into the other bucket.
func TopN(spec billing.Spec) int {
	if spec.Format == dateparam.FormatMonthly &&
		(spec.Family == billing.FamilyCost || spec.Family == billing.FamilyInvoice) {
		return monthlyTopN
	}
	return defaultTopN
}

type group struct {
	label  string
	amount float64
}

func formatPerDate(items []billing.Item, spec billing.Spec) string {
	byDate := map[string][]billing.Item{}
	dates := []string{}
	for _, item := range items {
		if _, seen := byDate[item.Date]; !seen {
			dates = append(dates, item.Date)
		}
		byDate[item.Date] = append(byDate[item.Date], item)
	}
	sort.Strings(dates)

	sections := make([]string, 0, len(dates))
	for _, date := range dates {
		sections = append(sections, formatRanking(byDate[date], spec, date))
	}
	return strings.Join(sections, "\n\n")
}

func formatRanking(items []billing.Item, spec billing.Spec, date string) string {
	groups := groupItems(items, spec)

	var total float64
	for _, g := range groups {
		total += g.amount
	}

	// Rank by magnitude so large credits surface next to large charges.
	sort.SliceStable(groups, func(i, j int) bool {
		return abs(groups[i].amount) > abs(groups[j].amount)
	})

	topN := TopN(spec)
	shown := groups
	var other float64
	if len(groups) > topN {
		shown = groups[:topN]
		for _, g := range groups[topN:] {
			other += g.amount
		}
	}

	var b strings.Builder
	if date != "" {
		fmt.Fprintf(&b, "[%s]\n", formatDate(date))
	}
	fmt.Fprintf(&b, "총 비용: $%.2f\n", total)
	for i, g := range shown {
		fmt.Fprintf(&b, "%d. %s: $%.2f (%s)\n", i+1, g.label, g.amount, percent(g.amount, total))
	}
	if other > 0 {
		fmt.Fprintf(&b, "%s: $%.2f (%s)\n", otherLabel, other, percent(other, total))
	}
	return strings.TrimRight(b.String(), "\n")
}

// groupItems sums amounts per label. Tag results group by the full tag
// signature instead of the service name, so distinct tag sets stay
// distinct rows.
func groupItems(items []billing.Item, spec billing.Spec) []group {
	sums := map[string]float64{}
	order := []string{}
	for _, item := range items {
		label := item.ServiceName
		if spec.Family == billing.FamilyTag {
			label = tagSignature(item)
		}
		if label == "" {
			label = "(unknown)"
		}
		if _, seen := sums[label]; !seen {
			order = append(order, label)
		}
		sums[label] += item.AmountUSD
	}
	out := make([]group, 0, len(order))
	for _, label := range order {
		out = append(out, group{label: label, amount: sums[label]})
	}
	return out
}

func tagSignature(item billing.Item) string {
	if len(item.Tags) == 0 {
		return item.ServiceName
	}
	keys := make([]string, 0, len(item.Tags))
	for k := range item.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+item.Tags[k])
	}
	return strings.Join(parts, ", ")
}

func percent(amount, total float64) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", amount/total*100)
}

func formatDate(yyyymmdd string) string {
	if len(yyyymmdd) == 8 {
		return yyyymmdd[:4] + "-" + yyyymmdd[4:6] + "-" + yyyymmdd[6:]
	}
	if len(yyyymmdd) == 6 {
		return yyyymmdd[:4] + "-" + yyyymmdd[4:]
	}
	return yyyymmdd
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
