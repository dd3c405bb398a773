// Package params extracts the flat parameter bag out of a Bedrock action
// request. The event can carry values several ways (parameter list, form
// body, JSON body, free-text inputText); extraction merges them in that
// order so explicit parameters win over body and free-text fallbacks.
package params

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/dateparam"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/envelope"
)

const (
	mediaForm = "application/x-www-form-urlencoded"
	mediaJSON = "application/json"
)

// Extract flattens every parameter source of the request into one bag.
// Later sources never overwrite earlier ones. Values are trimmed; date
// fields additionally go through the free-text adapter so fragments like
// "5월" survive the model's loose extraction.
func Extract(req *envelope.ActionRequest) dateparam.Bag {
	bag := dateparam.Bag{}

	for _, p := range req.Parameters {
		put(bag, p.Name, p.Value)
	}

	if content, ok := req.RequestBody.Content[mediaForm]; ok {
		if content.Body != "" {
			if parsed, err := url.ParseQuery(content.Body); err == nil {
				for key, values := range parsed {
					if len(values) > 0 {
						put(bag, key, values[0])
					}
				}
			}
		}
		for _, p := range content.Properties {
			put(bag, p.Name, p.Value)
		}
	} else if content, ok := req.RequestBody.Content[mediaJSON]; ok && content.Body != "" {
		var decoded map[string]any
		if err := json.Unmarshal([]byte(content.Body), &decoded); err == nil {
			for key, value := range decoded {
				put(bag, key, stringValue(value))
			}
		}
	}

	// The model sometimes supplies only the raw utterance. When no date
	// parameter made it into the bag, scan inputText for a month fragment
	// so "5월 비용 알려줘" still becomes a May query.
	if !hasDateKey(bag) {
		if fragment, ok := monthFragment(req.InputText); ok {
			bag[dateparam.KeyFrom] = fragment
		}
	}

	sessionYear := sessionCurrentYear(req.SessionAttributes)
	for _, key := range dateKeys {
		value, ok := bag[key]
		if !ok {
			continue
		}
		value = AdaptFreeText(value)
		// A bare month plus the supervisor's current_year hint expands
		// here; without the hint the normalizer fills the year itself.
		if sessionYear != "" {
			if month, ok := bareMonth(value); ok {
				value = fmt.Sprintf("%s%02d", sessionYear, month)
			}
		}
		bag[key] = value
	}
	return bag
}

var dateKeys = []string{
	dateparam.KeyFrom, dateparam.KeyTo, dateparam.KeyBillingPeriod,
	dateparam.KeyBeginDate, dateparam.KeyEndDate,
}

func hasDateKey(bag dateparam.Bag) bool {
	for _, key := range dateKeys {
		if _, ok := bag[key]; ok {
			return true
		}
	}
	return false
}

var monthFragmentPattern = regexp.MustCompile(`(?:(\d{4})년\s*)?(\d{1,2})월`)

// monthFragment pulls the first "M월" (optionally "YYYY년 M월") out of a
// free-text utterance. A bare month stays bare so the year-fill rules
// downstream treat it like any other month-only value.
func monthFragment(text string) (string, bool) {
	match := monthFragmentPattern.FindStringSubmatch(text)
	if match == nil {
		return "", false
	}
	month, err := strconv.Atoi(match[2])
	if err != nil || month < 1 || month > 12 {
		return "", false
	}
	if match[1] != "" {
		return fmt.Sprintf("%s%02d", match[1], month), true
	}
	return match[2], true
}

func sessionCurrentYear(attrs map[string]string) string {
	year := strings.TrimSpace(attrs["current_year"])
	if len(year) != 4 {
		return ""
	}
	if _, err := strconv.Atoi(year); err != nil {
		return ""
	}
	return year
}

func bareMonth(value string) (int, bool) {
	if len(value) < 1 || len(value) > 2 {
		return 0, false
	}
	month, err := strconv.Atoi(value)
	if err != nil || month < 1 || month > 12 {
		return 0, false
	}
	return month, true
}

func put(bag dateparam.Bag, key, value string) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	if _, exists := bag[key]; exists {
		return
	}
	bag[key] = strings.TrimSpace(value)
}

// AdaptFreeText converts the few free-text date fragments worth rescuing
// into digit strings the normalizer understands. Only the Korean month
// suffix is handled ("5월" → "5", "05월" → "05"); anything else passes
// through untouched. Deliberately narrow: real language understanding is
// the model's job, not this package's.
func AdaptFreeText(value string) string {
	trimmed := strings.TrimSpace(value)
	digits, found := strings.CutSuffix(trimmed, "월")
	if !found {
		return value
	}
	if len(digits) < 1 || len(digits) > 2 {
		return value
	}
	month, err := strconv.Atoi(digits)
	if err != nil || month < 1 || month > 12 {
		return value
	}
	return digits
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}
