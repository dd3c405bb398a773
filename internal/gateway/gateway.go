// Package gateway runs one billing query end to end: extract the
// parameter bag from the action request, normalize and validate the
// dates, resolve the endpoint, call FitCloud, and shape the reply
// payload for the agent.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/billing"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/dateparam"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/envelope"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/fault"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/params"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/summary"
)

// BillingCaller is the slice of the billing client the gateway needs.
type BillingCaller interface {
	Call(ctx context.Context, spec billing.Spec, bag dateparam.Bag, token string) ([]byte, error)
}

// TokenSource hands out the FitCloud bearer token and can drop a token
// the upstream rejected.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

type Gateway struct {
	caller BillingCaller
	tokens TokenSource
	logger *slog.Logger
	clock  func() dateparam.Clock
}

type Options struct {
	Caller BillingCaller
	Tokens TokenSource
	Logger *slog.Logger
	// Clock is optional; tests pin it.
	Clock func() dateparam.Clock
}

func New(opts Options) (*Gateway, error) {
	if opts.Caller == nil {
		return nil, errors.New("gateway: billing caller is required")
	}
	if opts.Tokens == nil {
		return nil, errors.New("gateway: token source is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = dateparam.NewClock
	}
	return &Gateway{caller: opts.Caller, tokens: opts.Tokens, logger: logger, clock: clock}, nil
}

// CostItem is one cleaned row of the agent-facing payload. Amounts are
// rounded to cents; the raw projection keeps full precision.
type CostItem struct {
	ServiceName string            `json:"serviceName"`
	UsageFeeUSD float64           `json:"usageFeeUSD"`
	Date        string            `json:"date,omitempty"`
	AccountID   string            `json:"accountId,omitempty"`
	AccountName string            `json:"accountName,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// AccountEntry mirrors one registered account in the payload.
type AccountEntry struct {
	AccountName string `json:"accountName"`
	AccountID   string `json:"accountId"`
	Email       string `json:"email,omitempty"`
	Status      string `json:"status"`
}

// Payload is the JSON body the agent receives on success.
type Payload struct {
	Success      bool           `json:"success"`
	Message      string         `json:"message"`
	CostType     string         `json:"cost_type,omitempty"`
	Scope        string         `json:"scope,omitempty"`
	CostItems    []CostItem     `json:"cost_items,omitempty"`
	TotalCostUSD *float64       `json:"total_cost_usd,omitempty"`
	ItemCount    *int           `json:"item_count,omitempty"`
	Accounts     []AccountEntry `json:"accounts,omitempty"`
	TotalCount   int            `json:"total_count,omitempty"`
	ActiveCount  int            `json:"active_count,omitempty"`
}

// Handle services one Bedrock action request and always returns a valid
// envelope; faults become error envelopes with the mapped status.
func (g *Gateway) Handle(ctx context.Context, req *envelope.ActionRequest) *envelope.ActionResponse {
	clock := g.clock()
	sessionAttrs := clock.SessionAttributes()

	if !req.Valid() {
		err := fault.New(fault.KindClientParameter, "Invalid event format from Bedrock Agent.")
		return envelope.NewErrorResponse(req, err, sessionAttrs)
	}

	if strings.TrimSpace(req.APIPath) == "" {
		err := fault.New(fault.KindClientParameter, "API path missing in event payload.")
		return envelope.NewErrorResponse(req, err, sessionAttrs)
	}
	intent, err := IntentFromPath(req.APIPath)
	if err != nil {
		return envelope.NewErrorResponse(req, err, sessionAttrs)
	}

	bag := params.Extract(req)
	payload, err := g.Query(ctx, bag, intent, clock)
	if err != nil {
		g.logger.Warn("billing_query_failed",
			"api_path", req.APIPath,
			"kind", fault.KindOf(err).String(),
			"error", err)
		return envelope.NewErrorResponse(req, err, sessionAttrs)
	}

	resp, buildErr := envelope.NewResponse(req, 200, payload, sessionAttrs)
	if buildErr != nil {
		return envelope.NewErrorResponse(req, buildErr, sessionAttrs)
	}
	return resp
}

// IntentFromPath maps the agent's declared apiPath onto a query intent.
func IntentFromPath(apiPath string) (billing.Intent, error) {
	switch {
	case strings.HasPrefix(apiPath, "/accounts"):
		return billing.IntentAccountList, nil
	case strings.HasPrefix(apiPath, "/invoice"):
		return billing.IntentInvoiceQuery, nil
	case strings.HasPrefix(apiPath, "/usage/tags"):
		return billing.IntentTagUsageQuery, nil
	case strings.HasPrefix(apiPath, "/usage"):
		return billing.IntentUsageQuery, nil
	case strings.HasPrefix(apiPath, "/costs"):
		return billing.IntentCostQuery, nil
	default:
		return "", fault.New(fault.KindUnsupportedPath, "지원하지 않는 엔드포인트: %s", apiPath)
	}
}

// Query runs the billing pipeline for an already-extracted bag.
func (g *Gateway) Query(ctx context.Context, bag dateparam.Bag, intent billing.Intent, clock dateparam.Clock) (*Payload, error) {
	normalized := dateparam.Normalize(bag, clock)

	spec, err := billing.Resolve(normalized, intent)
	if err != nil {
		return nil, err
	}

	// A billingPeriod-driven monthly cost query still has to satisfy the
	// table's from/to contract; fill both from the period.
	if spec.Family == billing.FamilyCost && normalized.Has(dateparam.KeyBillingPeriod) {
		period := normalized.Get(dateparam.KeyBillingPeriod)
		if !normalized.Has(dateparam.KeyFrom) {
			normalized[dateparam.KeyFrom] = period
		}
		if !normalized.Has(dateparam.KeyTo) {
			normalized[dateparam.KeyTo] = period
		}
	}

	if spec.Path != billing.PathAccounts {
		if warnings := dateparam.Validate(normalized, spec.Contract(), clock); len(warnings) > 0 {
			return nil, fault.New(fault.KindClientParameter, "%s", strings.Join(warnings, " "))
		}
	}

	raw, err := g.callWithTokenRetry(ctx, spec, normalized)
	if err != nil {
		return nil, err
	}

	result, err := billing.Project(raw, spec)
	if err != nil {
		return nil, err
	}

	g.logger.Info("billing_query_done",
		"path", spec.Path,
		"family", string(spec.Family),
		"items", len(result.Items),
		"accounts", len(result.Accounts))
	return buildPayload(result, spec), nil
}

// callWithTokenRetry makes the billing call, refreshing the cached token
// exactly once when FitCloud rejects it.
func (g *Gateway) callWithTokenRetry(ctx context.Context, spec billing.Spec, bag dateparam.Bag) ([]byte, error) {
	token, err := g.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := g.caller.Call(ctx, spec, bag, token)
	if err == nil || fault.KindOf(err) != fault.KindUpstreamAuth {
		return raw, err
	}

	g.logger.Info("billing_token_refresh", "path", spec.Path)
	g.tokens.Invalidate()
	token, tokenErr := g.tokens.Token(ctx)
	if tokenErr != nil {
		return nil, tokenErr
	}
	return g.caller.Call(ctx, spec, bag, token)
}

func buildPayload(result billing.Result, spec billing.Spec) *Payload {
	switch spec.Family {
	case billing.FamilyAccounts:
		return accountsPayload(result.Accounts)
	default:
		return costPayload(result, spec)
	}
}

func costPayload(result billing.Result, spec billing.Spec) *Payload {
	scope := "corp"
	if contains(spec.Required, dateparam.KeyAccountID) {
		scope = "account"
	}
	costType := "monthly"
	if spec.Format == dateparam.FormatDaily {
		costType = "daily"
	}

	items := make([]CostItem, 0, len(result.Items))
	var total float64
	for _, item := range result.Items {
		clean := CostItem{
			ServiceName: item.ServiceName,
			UsageFeeUSD: roundCents(item.AmountUSD),
			Date:        item.Date,
			Tags:        item.Tags,
		}
		if clean.Date == "" {
			clean.Date = item.BillingPeriod
		}
		if scope == "account" {
			clean.AccountID = item.AccountID
			clean.AccountName = item.AccountName
		}
		items = append(items, clean)
		total += item.AmountUSD
	}

	message := summary.Format(result, spec)
	if len(items) == 0 {
		message = "조회된 비용 데이터가 없습니다."
		total = 0
	}
	totalRounded := roundCents(total)
	count := len(items)
	return &Payload{
		Success:      true,
		Message:      message,
		CostType:     costType,
		Scope:        scope,
		CostItems:    items,
		TotalCostUSD: &totalRounded,
		ItemCount:    &count,
	}
}

func accountsPayload(accounts []billing.Account) *Payload {
	entries := make([]AccountEntry, 0, len(accounts))
	active := 0
	for _, account := range accounts {
		entry := AccountEntry{
			AccountName: orNA(account.AccountName),
			AccountID:   orNA(account.AccountID),
			Email:       account.Email,
			Status:      orNA(account.Status),
		}
		if strings.EqualFold(account.Status, "ACTIVE") {
			active++
		}
		entries = append(entries, entry)
	}
	return &Payload{
		Success:     true,
		Message:     formatAccountList(entries),
		Accounts:    entries,
		TotalCount:  len(entries),
		ActiveCount: active,
	}
}

// formatAccountList renders the block-style Korean listing the bot shows
// for "what accounts do we have".
func formatAccountList(accounts []AccountEntry) string {
	if len(accounts) == 0 {
		return "등록된 AWS 계정이 없습니다."
	}
	var b strings.Builder
	b.WriteString("현재 FitCloud에 등록된 AWS 계정 목록입니다:\n\n")
	for _, account := range accounts {
		status := "비활성"
		if strings.EqualFold(account.Status, "ACTIVE") {
			status = "활성"
		}
		fmt.Fprintf(&b, "- **%s**\n", account.AccountName)
		fmt.Fprintf(&b, "  - 계정 ID: %s\n", account.AccountID)
		fmt.Fprintf(&b, "  - 상태: %s\n\n", status)
	}
	b.WriteString("특정 계정의 비용 정보나 사용량을 확인하고 싶으시면 언제든 말씀해 주세요!")
	return b.String()
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func contains(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}
