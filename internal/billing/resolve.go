package billing

import (
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/dateparam"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/fault"
)

// Intent is the user's detected goal, derived upstream from keyword
// matching against the raw utterance. The resolver only consumes it.
type Intent string

const (
	IntentCostQuery     Intent = "cost"
	IntentInvoiceQuery  Intent = "invoice"
	IntentUsageQuery    Intent = "usage"
	IntentTagUsageQuery Intent = "tag_usage"
	IntentAccountList   Intent = "accounts"
)

// Resolve picks exactly one endpoint path for a normalized bag. Rules are
// ordered; later rules apply only when earlier ones do not match.
func Resolve(params dateparam.Bag, intent Intent) (Spec, error) {
	// A beginDate/endDate pair always means a tag breakdown, whatever the
	// keyword detection concluded.
	if params.Has(dateparam.KeyBeginDate) && params.Has(dateparam.KeyEndDate) {
		return table[PathTagUsage], nil
	}

	switch intent {
	case IntentAccountList:
		return table[PathAccounts], nil

	case IntentCostQuery, "":
		return resolveCost(params), nil

	case IntentInvoiceQuery:
		if params.Has(dateparam.KeyAccountID) {
			return table[PathAccountInvoice], nil
		}
		return table[PathCorpInvoice], nil

	case IntentUsageQuery:
		if fromFormat(params) == dateparam.FormatMonthly {
			return table[PathCorpMonthlyUsage], nil
		}
		return table[PathCorpDailyUsage], nil

	case IntentTagUsageQuery:
		// Tag intent without the date pair cannot be routed; the caller
		// must ask for beginDate/endDate.
		return Spec{}, fault.New(fault.KindClientParameter,
			"태그별 조회에는 beginDate와 endDate가 모두 필요합니다.")

	default:
		return Spec{}, fault.New(fault.KindUnsupportedPath, "지원하지 않는 요청 유형입니다: %s", intent)
	}
}

// resolveCost separates scope (accountId presence) from granularity (the
// from field's width). billingPeriod wins over from/to: it always names a
// monthly rollup. An unknown width falls back to daily, the finer
// granularity, so an ambiguous request errs toward more detail.
func resolveCost(params dateparam.Bag) Spec {
	hasAccount := params.Has(dateparam.KeyAccountID)

	if params.Has(dateparam.KeyBillingPeriod) {
		if hasAccount {
			return table[PathAccountMonthlyCost]
		}
		return table[PathCorpMonthlyCost]
	}

	monthly := fromFormat(params) == dateparam.FormatMonthly
	switch {
	case hasAccount && monthly:
		return table[PathAccountMonthlyCost]
	case hasAccount:
		return table[PathAccountDailyCost]
	case monthly:
		return table[PathCorpMonthlyCost]
	default:
		return table[PathCorpDailyCost]
	}
}

func fromFormat(params dateparam.Bag) dateparam.Format {
	return dateparam.Classify(params.Get(dateparam.KeyFrom))
}
