// Package supervisor is the router agent: it reads the user's utterance,
// detects what they want, delegates to the cost gateway, and optionally
// chains the report agent on top of the cost result.
package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/goccy/go-json"

	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/billing"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/dateparam"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/envelope"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/fault"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/gateway"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/params"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/report"
)

// KeyUserInput is the required parameter carrying the raw utterance.
const KeyUserInput = "user_input"

// CostQuerier runs one billing query; the gateway satisfies it.
type CostQuerier interface {
	Query(ctx context.Context, bag dateparam.Bag, intent billing.Intent, clock dateparam.Clock) (*gateway.Payload, error)
}

// ReportRunner builds and uploads a spreadsheet; the report agent
// satisfies it.
type ReportRunner interface {
	Generate(ctx context.Context, records []map[string]any, source string) (*report.Outcome, error)
}

type Supervisor struct {
	costs   CostQuerier
	reports ReportRunner
	logger  *slog.Logger
	clock   func() dateparam.Clock
}

type Options struct {
	Costs   CostQuerier
	Reports ReportRunner
	Logger  *slog.Logger
	Clock   func() dateparam.Clock
}

func New(opts Options) (*Supervisor, error) {
	if opts.Costs == nil {
		return nil, errors.New("supervisor: cost querier is required")
	}
	if opts.Reports == nil {
		return nil, errors.New("supervisor: report runner is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = dateparam.NewClock
	}
	return &Supervisor{costs: opts.Costs, reports: opts.Reports, logger: logger, clock: clock}, nil
}

// Decision is what the keyword scan concluded about the utterance.
type Decision struct {
	Intent     billing.Intent
	WantReport bool
}

var intentKeywords = []struct {
	words  []string
	intent billing.Intent
}{
	{[]string{"태그"}, billing.IntentTagUsageQuery},
	{[]string{"청구", "인보이스", "청구서"}, billing.IntentInvoiceQuery},
	{[]string{"사용량"}, billing.IntentUsageQuery},
	{[]string{"계정 목록", "계정목록", "계정 리스트"}, billing.IntentAccountList},
}

var reportKeywords = []string{"리포트", "엑셀", "보고서"}

// Detect scans the utterance for routing keywords. Cost query is the
// default; a report keyword additionally chains the report agent.
func Detect(userInput string) Decision {
	decision := Decision{Intent: billing.IntentCostQuery}
	for _, word := range reportKeywords {
		if strings.Contains(userInput, word) {
			decision.WantReport = true
			break
		}
	}
	for _, candidate := range intentKeywords {
		for _, word := range candidate.words {
			if strings.Contains(userInput, word) {
				decision.Intent = candidate.intent
				return decision
			}
		}
	}
	return decision
}

// Result is the supervisor's payload: the cost payload plus the report
// outcome. Report failure never sinks a successful cost query; it is
// reported alongside the data.
type Result struct {
	*gateway.Payload
	Report      *report.Outcome `json:"report,omitempty"`
	ReportError string          `json:"report_error,omitempty"`
}

// Handle services one supervisor action request.
func (s *Supervisor) Handle(ctx context.Context, req *envelope.ActionRequest) *envelope.ActionResponse {
	clock := s.clock()
	sessionAttrs := clock.SessionAttributes()

	if !req.Valid() {
		err := fault.New(fault.KindClientParameter, "Invalid event format from Bedrock Agent.")
		return envelope.NewErrorResponse(req, err, sessionAttrs)
	}

	bag := params.Extract(req)
	userInput := strings.TrimSpace(bag[KeyUserInput])
	if userInput == "" {
		err := fault.New(fault.KindClientParameter, "user_input 파라미터가 필요합니다.")
		return envelope.NewErrorResponse(req, err, sessionAttrs)
	}
	delete(bag, KeyUserInput)

	decision := Detect(userInput)
	s.logger.Info("supervisor_routed",
		"intent", string(decision.Intent),
		"want_report", decision.WantReport,
		"input_len", len(userInput))

	payload, err := s.costs.Query(ctx, bag, decision.Intent, clock)
	if err != nil {
		return envelope.NewErrorResponse(req, err, sessionAttrs)
	}

	result := Result{Payload: payload}
	if decision.WantReport {
		s.runReport(ctx, payload, &result)
	}

	if encoded, err := json.Marshal(payload); err == nil {
		sessionAttrs[report.AttrCostData] = string(encoded)
		sessionAttrs[report.AttrCostProcessed] = "true"
	}

	resp, buildErr := envelope.NewResponse(req, 200, result, sessionAttrs)
	if buildErr != nil {
		return envelope.NewErrorResponse(req, buildErr, sessionAttrs)
	}
	return resp
}

// runReport chains the report agent over the cost items. Failures are
// folded into the result, not returned: the user still gets the numbers.
func (s *Supervisor) runReport(ctx context.Context, payload *gateway.Payload, result *Result) {
	records := recordsFromPayload(payload)
	if len(records) == 0 {
		result.ReportError = "리포트를 생성할 데이터가 없습니다."
		return
	}
	outcome, err := s.reports.Generate(ctx, records, "supervisor_chain")
	if err != nil {
		s.logger.Warn("report_chain_failed", "error", err)
		result.ReportError = fault.PublicMessage(err)
		return
	}
	result.Report = outcome
}

func recordsFromPayload(payload *gateway.Payload) []map[string]any {
	records := make([]map[string]any, 0, len(payload.CostItems))
	for _, item := range payload.CostItems {
		record := map[string]any{
			"serviceName": item.ServiceName,
			"usageFeeUSD": item.UsageFeeUSD,
		}
		if item.Date != "" {
			if payload.CostType == "monthly" {
				record["billingPeriod"] = item.Date
			} else {
				record["date"] = item.Date
			}
		}
		if item.AccountID != "" {
			record["accountId"] = item.AccountID
		}
		if len(item.Tags) > 0 {
			tags := make(map[string]any, len(item.Tags))
			for k, v := range item.Tags {
				tags[k] = v
			}
			record["tagsJson"] = tags
		}
		records = append(records, record)
	}
	return records
}
