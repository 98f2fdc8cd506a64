// internal/settlement/payroll.go
package settlement

import "business-empire/internal/models"

// ==========================
// Payroll & Tax Engine
// ==========================

// TaxPolicy selects what the tax rate applies to. It is fixed by
// configuration for the whole deployment, never mixed within a run, so
// historical reports stay comparable.
type TaxPolicy string

const (
	TaxOnGross        TaxPolicy = "gross"
	TaxOnNetOfPayroll TaxPolicy = "net_of_payroll"
)

// CostParams are the config-driven inputs to payroll and tax.
type CostParams struct {
	WageRate           int64 // per-employee daily wage for the company's type
	SocialInsuranceBps int64 // surcharge on base payroll
	TaxRateBps         int64
	TaxPolicy          TaxPolicy
}

// ComputeCosts returns the company's payroll and tax for one day.
//
// Payroll is headcount times the per-type wage, plus the social-insurance
// surcharge on that base. Tax applies the configured rate to gross revenue
// or to gross net of payroll; under the net policy a payroll exceeding
// gross yields zero tax, never a refund.
func ComputeCosts(employeeCount int, grossRevenue int64, params CostParams) (payroll, tax int64) {
	base := int64(employeeCount) * params.WageRate
	payroll = base + base*params.SocialInsuranceBps/models.StakeScale

	taxable := grossRevenue
	if params.TaxPolicy == TaxOnNetOfPayroll {
		taxable = grossRevenue - payroll
		if taxable < 0 {
			taxable = 0
		}
	}
	tax = taxable * params.TaxRateBps / models.StakeScale
	return payroll, tax
}
