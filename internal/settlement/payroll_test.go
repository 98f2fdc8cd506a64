// internal/settlement/payroll_test.go
package settlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeCosts_GrossPolicyScenario(t *testing.T) {
	// One employee at wage 30, 10% tax on a gross of 350.
	payroll, tax := ComputeCosts(1, 350, CostParams{
		WageRate:   30,
		TaxRateBps: 1000,
		TaxPolicy:  TaxOnGross,
	})

	assert.Equal(t, int64(30), payroll)
	assert.Equal(t, int64(35), tax)
	assert.Equal(t, int64(285), 350-payroll-tax)
}

func TestComputeCosts_SocialInsuranceSurcharge(t *testing.T) {
	// 4 employees at 50 = 200 base, +2% insurance = 204.
	payroll, _ := ComputeCosts(4, 1000, CostParams{
		WageRate:           50,
		SocialInsuranceBps: 200,
		TaxRateBps:         1000,
		TaxPolicy:          TaxOnGross,
	})

	assert.Equal(t, int64(204), payroll)
}

func TestComputeCosts_NetOfPayrollPolicy(t *testing.T) {
	payroll, tax := ComputeCosts(2, 1000, CostParams{
		WageRate:   100,
		TaxRateBps: 1000,
		TaxPolicy:  TaxOnNetOfPayroll,
	})

	assert.Equal(t, int64(200), payroll)
	assert.Equal(t, int64(80), tax) // 10% of 800, not of 1000
}

func TestComputeCosts_NetOfPayrollNeverRefunds(t *testing.T) {
	// Payroll exceeds gross: taxable floors at zero.
	payroll, tax := ComputeCosts(10, 100, CostParams{
		WageRate:   50,
		TaxRateBps: 1000,
		TaxPolicy:  TaxOnNetOfPayroll,
	})

	assert.Equal(t, int64(500), payroll)
	assert.Equal(t, int64(0), tax)
}

func TestComputeCosts_ZeroEmployees(t *testing.T) {
	payroll, tax := ComputeCosts(0, 350, CostParams{
		WageRate:           50,
		SocialInsuranceBps: 200,
		TaxRateBps:         1000,
		TaxPolicy:          TaxOnGross,
	})

	assert.Equal(t, int64(0), payroll)
	assert.Equal(t, int64(35), tax)
}

func TestComputeCosts_LossIsAllowed(t *testing.T) {
	// Costs may exceed gross; the company absorbs the negative net.
	payroll, tax := ComputeCosts(20, 100, CostParams{
		WageRate:   50,
		TaxRateBps: 1000,
		TaxPolicy:  TaxOnGross,
	})

	net := 100 - payroll - tax
	assert.Equal(t, int64(1000), payroll)
	assert.Equal(t, int64(10), tax)
	assert.Less(t, net, int64(0))
}
