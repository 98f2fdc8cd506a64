// internal/models/product.go
package models

// Multiplier bounds for a product's permanent income multiplier, in basis
// points. The multiplier is set once by the AI review outcome and never
// changes afterwards.
const (
	MultiplierMinBps = 10000 // x1.0
	MultiplierMaxBps = 20000 // x2.0
)

// Product earns BaseIncome*MultiplierBps/10000 minor units per day while
// Active. Retired products keep their row but stop contributing revenue.
type Product struct {
	ID            int64  `json:"id"`
	CompanyID     int64  `json:"companyId"`
	Name          string `json:"name"`
	Level         int    `json:"level"`
	BaseIncome    int64  `json:"baseIncome"`
	MultiplierBps int64  `json:"multiplierBps"`
	Active        bool   `json:"active"`
}

// RealEstate pays a fixed passive DailyIncome with no multiplier.
type RealEstate struct {
	ID           int64  `json:"id"`
	CompanyID    int64  `json:"companyId"`
	BuildingType string `json:"buildingType"`
	DailyIncome  int64  `json:"dailyIncome"`
}
