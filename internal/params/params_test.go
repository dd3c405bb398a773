package params

import (
	"testing"

	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/dateparam"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/envelope"
)

func TestExtractParameterList(t *testing.T) {
	t.Parallel()

	req := &envelope.ActionRequest{
		Parameters: []envelope.Parameter{
			{Name: "from", Value: "20250601"},
			{Name: "to", Value: " 20250615 "},
			{Name: "", Value: "dropped"},
		},
	}
	bag := Extract(req)
	if bag["from"] != "20250601" {
		t.Fatalf("from = %q", bag["from"])
	}
	if bag["to"] != "20250615" {
		t.Fatalf("to = %q, want trimmed", bag["to"])
	}
	if len(bag) != 2 {
		t.Fatalf("bag = %v, want 2 keys", bag)
	}
}

func TestExtractFormBody(t *testing.T) {
	t.Parallel()

	req := &envelope.ActionRequest{
		RequestBody: envelope.RequestBody{Content: map[string]envelope.Content{
			"application/x-www-form-urlencoded": {Body: "from=202505&to=202506&accountId=123456789012"},
		}},
	}
	bag := Extract(req)
	if bag["from"] != "202505" || bag["to"] != "202506" {
		t.Fatalf("bag = %v", bag)
	}
	if bag[dateparam.KeyAccountID] != "123456789012" {
		t.Fatalf("accountId = %q", bag[dateparam.KeyAccountID])
	}
}

func TestExtractFormProperties(t *testing.T) {
	t.Parallel()

	req := &envelope.ActionRequest{
		RequestBody: envelope.RequestBody{Content: map[string]envelope.Content{
			"application/x-www-form-urlencoded": {Properties: []envelope.Parameter{
				{Name: "billingPeriod", Value: "202505"},
			}},
		}},
	}
	bag := Extract(req)
	if bag[dateparam.KeyBillingPeriod] != "202505" {
		t.Fatalf("bag = %v", bag)
	}
}

func TestExtractJSONBody(t *testing.T) {
	t.Parallel()

	req := &envelope.ActionRequest{
		RequestBody: envelope.RequestBody{Content: map[string]envelope.Content{
			"application/json": {Body: `{"from":"20250601","to":"20250615","count":3}`},
		}},
	}
	bag := Extract(req)
	if bag["from"] != "20250601" {
		t.Fatalf("bag = %v", bag)
	}
	if bag["count"] != "3" {
		t.Fatalf("numeric JSON value = %q, want \"3\"", bag["count"])
	}
}

func TestExtractParameterListWinsOverBody(t *testing.T) {
	t.Parallel()

	req := &envelope.ActionRequest{
		Parameters: []envelope.Parameter{{Name: "from", Value: "20250601"}},
		RequestBody: envelope.RequestBody{Content: map[string]envelope.Content{
			"application/json": {Body: `{"from":"19990101"}`},
		}},
	}
	bag := Extract(req)
	if bag["from"] != "20250601" {
		t.Fatalf("from = %q, want the parameter-list value", bag["from"])
	}
}

func TestExtractIgnoresMalformedJSONBody(t *testing.T) {
	t.Parallel()

	req := &envelope.ActionRequest{
		RequestBody: envelope.RequestBody{Content: map[string]envelope.Content{
			"application/json": {Body: `not json`},
		}},
	}
	if bag := Extract(req); len(bag) != 0 {
		t.Fatalf("bag = %v, want empty", bag)
	}
}

func TestExtractAdaptsKoreanMonthFragments(t *testing.T) {
	t.Parallel()

	req := &envelope.ActionRequest{
		Parameters: []envelope.Parameter{
			{Name: "from", Value: "5월"},
			{Name: "serviceName", Value: "누적 5월"},
		},
	}
	bag := Extract(req)
	if bag["from"] != "5" {
		t.Fatalf("from = %q, want \"5\"", bag["from"])
	}
	// Only date keys run through the adapter.
	if bag["serviceName"] != "누적 5월" {
		t.Fatalf("serviceName = %q", bag["serviceName"])
	}
}

func TestAdaptFreeText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"5월", "5"},
		{"05월", "05"},
		{"12월", "12"},
		{"13월", "13월"},
		{"0월", "0월"},
		{"지난 5월", "지난 5월"},
		{"202505", "202505"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := AdaptFreeText(tt.in); got != tt.want {
			t.Fatalf("AdaptFreeText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractSessionYearExpandsBareMonth(t *testing.T) {
	t.Parallel()

	req := &envelope.ActionRequest{
		Parameters: []envelope.Parameter{
			{Name: "from", Type: "string", Value: "5"},
			{Name: "to", Type: "string", Value: "05월"},
			{Name: "accountId", Type: "string", Value: "12"},
		},
		SessionAttributes: map[string]string{"current_year": "2025"},
	}
	bag := Extract(req)

	if bag["from"] != "202505" {
		t.Fatalf("from = %q, want 202505", bag["from"])
	}
	if bag["to"] != "202505" {
		t.Fatalf("to = %q, want 202505", bag["to"])
	}
	// Non-date keys never pick up the year hint.
	if bag["accountId"] != "12" {
		t.Fatalf("accountId = %q, want 12", bag["accountId"])
	}
}

func TestExtractIgnoresMalformedYearHint(t *testing.T) {
	t.Parallel()

	req := &envelope.ActionRequest{
		Parameters: []envelope.Parameter{
			{Name: "from", Type: "string", Value: "5"},
		},
		SessionAttributes: map[string]string{"current_year": "25"},
	}
	bag := Extract(req)

	if bag["from"] != "5" {
		t.Fatalf("from = %q, want bare \"5\"", bag["from"])
	}
}

func TestExtractMonthFragmentFromInputText(t *testing.T) {
	t.Parallel()

	req := &envelope.ActionRequest{InputText: "5월 비용 알려줘"}
	bag := Extract(req)

	if bag["from"] != "5" {
		t.Fatalf("from = %q, want \"5\" from inputText", bag["from"])
	}
}

func TestExtractYearMonthFragmentFromInputText(t *testing.T) {
	t.Parallel()

	req := &envelope.ActionRequest{InputText: "2024년 11월 청구 내역"}
	bag := Extract(req)

	if bag["from"] != "202411" {
		t.Fatalf("from = %q, want 202411", bag["from"])
	}
}

func TestExtractInputTextFragmentPicksUpYearHint(t *testing.T) {
	t.Parallel()

	req := &envelope.ActionRequest{
		InputText:         "5월 비용 알려줘",
		SessionAttributes: map[string]string{"current_year": "2025"},
	}
	bag := Extract(req)

	if bag["from"] != "202505" {
		t.Fatalf("from = %q, want 202505", bag["from"])
	}
}

func TestExtractExplicitDatesSuppressInputTextScan(t *testing.T) {
	t.Parallel()

	req := &envelope.ActionRequest{
		InputText: "3월 비용",
		Parameters: []envelope.Parameter{
			{Name: "billingPeriod", Type: "string", Value: "202501"},
		},
	}
	bag := Extract(req)

	if bag["billingPeriod"] != "202501" {
		t.Fatalf("billingPeriod = %q, want 202501", bag["billingPeriod"])
	}
	if _, ok := bag["from"]; ok {
		t.Fatalf("inputText scan ran despite an explicit date: %v", bag)
	}
}

func TestExtractInputTextWithoutFragmentLeavesBagEmpty(t *testing.T) {
	t.Parallel()

	bag := Extract(&envelope.ActionRequest{InputText: "계정 목록 보여줘"})
	if len(bag) != 0 {
		t.Fatalf("bag = %v, want empty", bag)
	}

	bag = Extract(&envelope.ActionRequest{InputText: "13월 비용"})
	if len(bag) != 0 {
		t.Fatalf("bag = %v, want empty for out-of-range month", bag)
	}
}
