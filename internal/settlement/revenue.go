// internal/settlement/revenue.go
package settlement

import "business-empire/internal/models"

// ==========================
// Revenue Calculator
// ==========================

// RevenueParams are the config-driven inputs to the gross revenue
// computation. TypeBonusBps is the passive modifier of the company's type
// from the catalog; CoopCapBps bounds how far cooperation uplifts stack.
type RevenueParams struct {
	TypeBonusBps int64
	CoopCapBps   int64
}

// ComputeGrossRevenue computes one company's gross daily income. Pure: it
// reads the snapshot and never mutates stored state.
//
// Base income is the sum of every active product's BaseIncome scaled by its
// permanent multiplier, plus fixed real-estate income. Percentage uplifts
// (company type, cooperation agreements, advertising buff) are summed in
// basis points and applied to the base once, so stacking order cannot
// change the result. Integer arithmetic throughout; fractions floor.
func ComputeGrossRevenue(snap *models.CompanySnapshot, params RevenueParams) int64 {
	var base int64
	for _, p := range snap.Products {
		if !p.Active {
			continue
		}
		base += p.BaseIncome * p.MultiplierBps / models.StakeScale
	}
	for _, e := range snap.RealEstates {
		base += e.DailyIncome
	}

	uplift := params.TypeBonusBps

	var coop int64
	for _, c := range snap.Cooperations {
		coop += c.BonusBps
	}
	if coop > params.CoopCapBps {
		coop = params.CoopCapBps
	}
	uplift += coop

	if snap.AdBuff != nil {
		uplift += snap.AdBuff.BoostBps
	}

	return base + base*uplift/models.StakeScale
}
