package billing

import (
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/dateparam"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/fault"
)

// Item is one normalized row out of a billing response. Which fields are
// set depends on the endpoint family; zero values mean "not applicable".
type Item struct {
	ServiceName   string            `json:"serviceName,omitempty"`
	AmountUSD     float64           `json:"usageFeeUSD"`
	Date          string            `json:"date,omitempty"`
	BillingPeriod string            `json:"billingPeriod,omitempty"`
	AccountID     string            `json:"accountId,omitempty"`
	AccountName   string            `json:"accountName,omitempty"`
	Tags          map[string]string `json:"tags,omitempty"`
}

// Account is one registered AWS account row from /accounts.
type Account struct {
	AccountID   string `json:"accountId"`
	AccountName string `json:"accountName"`
	Email       string `json:"email,omitempty"`
	Status      string `json:"status,omitempty"`
}

// Result is a projected billing response. Exactly one of Items/Accounts/Raw
// is populated; "no data" responses are successful results with empty
// Items, never errors.
type Result struct {
	Family   Family
	Items    []Item
	Accounts []Account
	Raw      []map[string]any
	Message  string
	Code     int
}

// Empty reports whether the projection carried no rows.
func (r Result) Empty() bool {
	return len(r.Items) == 0 && len(r.Accounts) == 0 && len(r.Raw) == 0
}

type responseHeader struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type responseEnvelope struct {
	Header *responseHeader  `json:"header"`
	Body   []map[string]any `json:"body"`
}

// Project normalizes a raw FitCloud response for the given endpoint. A bare
// JSON list becomes an account list (accounts path) or a generic data list;
// a header/body envelope is unwrapped per the header code: 200 carries
// items, 203/204 are successful empty results, anything else is an upstream
// business failure carrying the header's message.
func Project(raw []byte, spec Spec) (Result, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return Result{}, fault.New(fault.KindUpstreamBusiness, "빈 응답을 받았습니다")
	}

	if strings.HasPrefix(trimmed, "[") {
		return projectBareList([]byte(trimmed), spec)
	}

	var envelope responseEnvelope
	if err := json.Unmarshal([]byte(trimmed), &envelope); err != nil {
		return Result{}, fault.Wrap(fault.KindUpstreamBusiness, err, "응답 형식을 해석할 수 없습니다")
	}
	if envelope.Header == nil {
		return Result{}, fault.New(fault.KindUpstreamBusiness, "응답에 header가 없습니다")
	}

	switch envelope.Header.Code {
	case 200:
		return projectBody(envelope.Body, spec, envelope.Header)
	case 203, 204:
		// Deliberate policy: "no data" is a successful empty result so the
		// conversational caller never sees it as a failure.
		return Result{Family: spec.Family, Message: envelope.Header.Message, Code: envelope.Header.Code}, nil
	default:
		return Result{}, fault.New(fault.KindUpstreamBusiness, "%d: %s", envelope.Header.Code, envelope.Header.Message)
	}
}

func projectBareList(raw []byte, spec Spec) (Result, error) {
	if spec.Path == PathAccounts {
		var accounts []Account
		if err := json.Unmarshal(raw, &accounts); err != nil {
			return Result{}, fault.Wrap(fault.KindUpstreamBusiness, err, "계정 목록을 해석할 수 없습니다")
		}
		return Result{Family: FamilyAccounts, Accounts: accounts, Code: 200}, nil
	}
	var rows []map[string]any
	if err := json.Unmarshal(raw, &rows); err != nil {
		return Result{}, fault.Wrap(fault.KindUpstreamBusiness, err, "응답 목록을 해석할 수 없습니다")
	}
	return Result{Family: spec.Family, Raw: rows, Code: 200}, nil
}

func projectBody(body []map[string]any, spec Spec, header *responseHeader) (Result, error) {
	out := Result{Family: spec.Family, Message: header.Message, Code: header.Code}
	switch spec.Family {
	case FamilyCost:
		out.Items = projectItems(body, "usageFee", false, spec)
	case FamilyInvoice:
		out.Items = projectItems(body, "usageFee", true, spec)
	case FamilyUsage:
		out.Items = projectItems(body, "onDemandCost", true, spec)
	case FamilyTag:
		out.Items = projectItems(body, "usageAmount", true, spec)
	default:
		out.Raw = body
	}
	return out, nil
}

// projectItems maps raw rows into Items. dropZero suppresses true no-op
// line items for invoice/usage projections while keeping negative amounts,
// which represent credits and discounts.
func projectItems(body []map[string]any, amountField string, dropZero bool, spec Spec) []Item {
	items := make([]Item, 0, len(body))
	for _, row := range body {
		amount := coerceFloat(row[amountField])
		if dropZero && amount == 0.0 {
			continue
		}
		item := Item{
			ServiceName:   stringField(row, "serviceName"),
			AmountUSD:     amount,
			BillingPeriod: stringField(row, "billingPeriod"),
			AccountID:     stringField(row, "accountId"),
			AccountName:   stringField(row, "accountName"),
		}
		if item.Date = stringField(row, "dailyDate"); item.Date == "" {
			if spec.Format == dateparam.FormatDaily {
				item.Date = stringField(row, "date")
			} else {
				item.Date = stringField(row, "monthlyDate")
			}
		}
		if spec.Family == FamilyTag {
			item.Tags = decodeTags(row["tagsJson"])
		}
		items = append(items, item)
	}
	return items
}

// coerceFloat reads an amount that upstream serializes inconsistently as a
// number or a numeric string. Unparseable values become 0.0 rather than an
// error: a single bad row must not sink the whole projection.
func coerceFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0.0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0.0
		}
		return f
	default:
		return 0.0
	}
}

// decodeTags accepts a tag map that arrives either JSON-encoded inside a
// string or already decoded. Anything unreadable collapses to an empty map.
func decodeTags(v any) map[string]string {
	out := map[string]string{}
	switch tags := v.(type) {
	case string:
		var decoded map[string]any
		if err := json.Unmarshal([]byte(tags), &decoded); err != nil {
			return out
		}
		for k, raw := range decoded {
			out[k] = stringValue(raw)
		}
	case map[string]any:
		for k, raw := range tags {
			out[k] = stringValue(raw)
		}
	}
	return out
}

func stringField(row map[string]any, key string) string {
	return stringValue(row[key])
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case nil:
		return ""
	default:
		return ""
	}
}
