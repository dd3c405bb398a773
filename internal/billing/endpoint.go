// Package billing talks to the FitCloud cost/usage/invoice API: a static
// endpoint table, a resolver that picks one route per request, an HTTP
// client with bounded retry, and a projector that normalizes the raw
// responses.
package billing

import (
	"time"

	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/dateparam"
)

// Family groups endpoints that share projection rules and timeouts.
type Family string

const (
	FamilyAccounts Family = "accounts"
	FamilyCost     Family = "cost"
	FamilyInvoice  Family = "invoice"
	FamilyUsage    Family = "usage"
	FamilyTag      Family = "tag"
)

// Endpoint paths. Cost paths split by scope (corp vs. single account) and
// granularity; invoices are always monthly.
const (
	PathAccounts           = "/accounts"
	PathCorpDailyCost      = "/costs/ondemand/corp/daily"
	PathCorpMonthlyCost    = "/costs/ondemand/corp/monthly"
	PathAccountDailyCost   = "/costs/ondemand/account/daily"
	PathAccountMonthlyCost = "/costs/ondemand/account/monthly"
	PathCorpInvoice        = "/invoice/corp/monthly"
	PathAccountInvoice     = "/invoice/account/monthly"
	PathCorpDailyUsage     = "/usage/corp/daily"
	PathCorpMonthlyUsage   = "/usage/corp/monthly"
	PathTagUsage           = "/usage/tags/daily"
)

// Usage and tag queries return much larger result sets than cost/invoice
// rollups, so they get a longer deadline.
const (
	costCallTimeout  = 30 * time.Second
	usageCallTimeout = 60 * time.Second
)

// Spec is one route's contract: which parameters must be present, the
// digit width its date fields carry, and which projection family applies.
type Spec struct {
	Path     string
	Required []string
	Optional []string
	Format   dateparam.Format
	Family   Family
}

// Timeout returns the call deadline for the endpoint's family.
func (s Spec) Timeout() time.Duration {
	switch s.Family {
	case FamilyUsage, FamilyTag:
		return usageCallTimeout
	default:
		return costCallTimeout
	}
}

// Contract adapts the spec into the validator's view of it.
func (s Spec) Contract() *dateparam.EndpointContract {
	return &dateparam.EndpointContract{
		Path:     s.Path,
		Required: s.Required,
		Format:   s.Format,
	}
}

var table = map[string]Spec{
	PathAccounts: {
		Path:   PathAccounts,
		Family: FamilyAccounts,
	},
	PathCorpDailyCost: {
		Path:     PathCorpDailyCost,
		Required: []string{dateparam.KeyFrom, dateparam.KeyTo},
		Format:   dateparam.FormatDaily,
		Family:   FamilyCost,
	},
	PathCorpMonthlyCost: {
		Path:     PathCorpMonthlyCost,
		Required: []string{dateparam.KeyFrom, dateparam.KeyTo},
		Format:   dateparam.FormatMonthly,
		Family:   FamilyCost,
	},
	PathAccountDailyCost: {
		Path:     PathAccountDailyCost,
		Required: []string{dateparam.KeyFrom, dateparam.KeyTo, dateparam.KeyAccountID},
		Format:   dateparam.FormatDaily,
		Family:   FamilyCost,
	},
	PathAccountMonthlyCost: {
		Path:     PathAccountMonthlyCost,
		Required: []string{dateparam.KeyFrom, dateparam.KeyTo, dateparam.KeyAccountID},
		Format:   dateparam.FormatMonthly,
		Family:   FamilyCost,
	},
	PathCorpInvoice: {
		Path:     PathCorpInvoice,
		Required: []string{dateparam.KeyBillingPeriod},
		Format:   dateparam.FormatMonthly,
		Family:   FamilyInvoice,
	},
	PathAccountInvoice: {
		Path:     PathAccountInvoice,
		Required: []string{dateparam.KeyBillingPeriod, dateparam.KeyAccountID},
		Format:   dateparam.FormatMonthly,
		Family:   FamilyInvoice,
	},
	PathCorpDailyUsage: {
		Path:     PathCorpDailyUsage,
		Required: []string{dateparam.KeyFrom, dateparam.KeyTo},
		Optional: []string{dateparam.KeyAccountID, dateparam.KeyServiceName},
		Format:   dateparam.FormatDaily,
		Family:   FamilyUsage,
	},
	PathCorpMonthlyUsage: {
		Path:     PathCorpMonthlyUsage,
		Required: []string{dateparam.KeyFrom, dateparam.KeyTo},
		Optional: []string{dateparam.KeyAccountID, dateparam.KeyServiceName},
		Format:   dateparam.FormatMonthly,
		Family:   FamilyUsage,
	},
	PathTagUsage: {
		Path:     PathTagUsage,
		Required: []string{dateparam.KeyBeginDate, dateparam.KeyEndDate},
		Optional: []string{dateparam.KeyAccountID},
		Format:   dateparam.FormatDaily,
		Family:   FamilyTag,
	},
}

// Lookup returns the spec for a path, when the path is in the table.
func Lookup(path string) (Spec, bool) {
	spec, ok := table[path]
	return spec, ok
}

// Paths lists every route in the table; useful for diagnostics and tests.
func Paths() []string {
	out := make([]string, 0, len(table))
	for path := range table {
		out = append(out, path)
	}
	return out
}
