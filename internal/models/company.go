// internal/models/company.go
package models

import "time"

// CompanyTypeCount is the size of the closed company-type catalog.
const CompanyTypeCount = 8

// StakeScale is the fixed-point denominator for shareholder stakes:
// stakes are expressed in basis points and must sum to exactly StakeScale
// per company.
const StakeScale = 10000

// Company is the central ledger entity. All monetary fields are integer
// minor units; Version is the optimistic-lock counter bumped on every
// committed mutation.
type Company struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Type          string    `json:"type"`
	OwnerID       int64     `json:"ownerId"`
	Funds         int64     `json:"funds"`
	EmployeeCount int       `json:"employeeCount"`
	Level         int       `json:"level"`
	Version       int       `json:"version"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Shareholder is one (company, holder) stake. StakeBps is basis points of
// ownership; the sum over a company's shareholders is always StakeScale.
type Shareholder struct {
	CompanyID      int64 `json:"companyId"`
	HolderID       int64 `json:"holderId"`
	StakeBps       int64 `json:"stakeBps"`
	InvestedAmount int64 `json:"investedAmount"`
}

// Cooperation is a daily agreement between two companies. It grants each
// side a revenue uplift of BonusBps until ExpiresAt (the next settlement).
type Cooperation struct {
	ID         int64     `json:"id"`
	CompanyAID int64     `json:"companyAId"`
	CompanyBID int64     `json:"companyBId"`
	BonusBps   int64     `json:"bonusBps"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// AdBuff is a temporary advertising boost held in the hot-state cache,
// expiring by TTL rather than by ledger state.
type AdBuff struct {
	Tier      string    `json:"tier"`
	BoostBps  int64     `json:"boostBps"`
	ExpiresAt time.Time `json:"expiresAt"`
}
