// internal/models/snapshot.go
package models

// CompanySnapshot is everything the settlement engine needs to compute one
// company's day, loaded inside that company's transaction so the figures
// are mutually consistent.
type CompanySnapshot struct {
	Company      Company
	Products     []Product
	RealEstates  []RealEstate
	Shareholders []Shareholder
	Cooperations []Cooperation
	AdBuff       *AdBuff
}

// Boss returns the owner's shareholder row, or nil if the ledger is missing
// it (an invariant violation the engine rejects).
func (s *CompanySnapshot) Boss() *Shareholder {
	for i := range s.Shareholders {
		if s.Shareholders[i].HolderID == s.Company.OwnerID {
			return &s.Shareholders[i]
		}
	}
	return nil
}

// StakeSum returns the total stake across all shareholders, in basis points.
func (s *CompanySnapshot) StakeSum() int64 {
	var sum int64
	for i := range s.Shareholders {
		sum += s.Shareholders[i].StakeBps
	}
	return sum
}
